package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	gconfig "github.com/Laisky/go-config/v2"
)

// Settings keys and their defaults.
const (
	KeyListen           = "listen"
	KeyLLMBackend       = "settings.llm.backend"
	KeyLLMBaseURL       = "settings.llm.base_url"
	KeyLLMWorkerModel   = "settings.llm.worker_model"
	KeyLLMManagerModel  = "settings.llm.manager_model"
	KeyLLMTimeout       = "settings.llm.timeout"
	KeySearchEngine     = "settings.search.engine"
	KeySearchEndpoint   = "settings.search.endpoint"
	KeySearchNumResults = "settings.search.num_results"
	KeySearchType       = "settings.search.type"
	KeyCrewAgents       = "settings.crew.agents_config"
	KeyCrewTasks        = "settings.crew.tasks_config"
	KeyCrewOutputDir    = "settings.crew.output_dir"
	KeyCrewMaxIter      = "settings.crew.max_iter"
	KeySessionDSN       = "settings.session.dsn"
	KeySessionTTL       = "settings.session.ttl"
	KeySessionKEKs      = "settings.session.keks"
	KeyLogFile          = "settings.log.file"
	KeyLogMaxBytes      = "settings.log.max_bytes"
	KeyWebOrigins       = "settings.web.allowed_origins"
	KeyWebMetrics       = "settings.web.metrics"
	KeyMCPEnabled       = "settings.mcp.enabled"
)

const (
	DefaultLLMBackend       = "openai"
	DefaultWorkerModel      = "gpt-3.5-turbo"
	DefaultManagerModel     = "gpt-4-turbo"
	DefaultLLMTimeout       = 120 * time.Second
	DefaultSearchEngine     = "serper"
	DefaultSearchNumResults = 10
	DefaultSearchType       = "nws"
	DefaultAgentsConfig     = "config/agents.yaml"
	DefaultTasksConfig      = "config/tasks.yaml"
	DefaultOutputDir        = "."
	DefaultMaxIter          = 1
	DefaultSessionDSN       = "file::memory:?cache=shared"
	DefaultSessionTTL       = 24 * time.Hour
	DefaultLogFile          = "app.log"
	DefaultLogMaxBytes      = int64(5 << 20)
)

// String returns the trimmed string at key, or fallback when unset.
func String(key, fallback string) string {
	if v := strings.TrimSpace(gconfig.S.GetString(key)); v != "" {
		return v
	}
	return fallback
}

// Int returns the integer at key, or fallback when unset or unparseable.
func Int(key string, fallback int) int {
	switch v := gconfig.S.Get(key).(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n
		}
	case nil:
	default:
		if n, err := strconv.Atoi(strings.TrimSpace(fmt.Sprint(v))); err == nil {
			return n
		}
	}

	return fallback
}

// Duration reads key as either a Go duration string ("90s") or an integer number of seconds.
func Duration(key string, fallback time.Duration) time.Duration {
	switch v := gconfig.S.Get(key).(type) {
	case nil:
		return fallback
	case time.Duration:
		return v
	case int:
		return time.Duration(v) * time.Second
	case int64:
		return time.Duration(v) * time.Second
	case float64:
		return time.Duration(v * float64(time.Second))
	case string:
		v = strings.TrimSpace(v)
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
		if n, err := strconv.Atoi(v); err == nil {
			return time.Duration(n) * time.Second
		}
	}

	return fallback
}

// Bool returns the boolean at key, or fallback when unset.
func Bool(key string, fallback bool) bool {
	if gconfig.S.Get(key) == nil {
		return fallback
	}
	return gconfig.S.GetBool(key)
}
