package config

import (
	"path/filepath"
	"strings"

	"github.com/Laisky/topic-news/library/log"

	gconfig "github.com/Laisky/go-config/v2"
	"github.com/Laisky/zap"
)

// LoadFromFile loads settings from cfgPath into gconfig.Shared.
// An empty path keeps the built-in defaults.
func LoadFromFile(cfgPath string) {
	if strings.TrimSpace(cfgPath) == "" {
		log.Logger.Info("no configuration file given, use defaults")
		return
	}

	gconfig.Shared.Set("cfg_dir", filepath.Dir(cfgPath))
	if err := gconfig.Shared.LoadFromFile(cfgPath); err != nil {
		log.Logger.Panic("load configuration",
			zap.Error(err),
			zap.String("config", cfgPath))
	}

	log.Logger.Info("load configuration",
		zap.String("config", cfgPath))
}
