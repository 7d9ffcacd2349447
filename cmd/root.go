package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/Laisky/errors/v2"
	gconfig "github.com/Laisky/go-config/v2"
	gutils "github.com/Laisky/go-utils/v6"
	gcmd "github.com/Laisky/go-utils/v6/cmd"
	glog "github.com/Laisky/go-utils/v6/log"
	"github.com/Laisky/zap"
	"github.com/spf13/cobra"

	"github.com/Laisky/topic-news/library/config"
	"github.com/Laisky/topic-news/library/log"
)

var rootCMD = &cobra.Command{
	Use:   "topic-news",
	Short: "topic-news",
	Long:  `fetch and analyze recent news about a topic with a two-step LLM crew`,
	Args:  gcmd.NoExtraArgs,
}

// logSink is the rolling log file, set by setupLogger when settings.log.file is not empty.
var logSink *log.FileSink

func initialize(ctx context.Context, cmd *cobra.Command) error {
	if err := gconfig.Shared.BindPFlags(cmd.Flags()); err != nil {
		return errors.Wrap(err, "bind pflags")
	}

	setupSettings(ctx)
	if err := setupLogger(ctx); err != nil {
		return errors.Wrap(err, "setup logger")
	}
	if err := validateStartupConfig(); err != nil {
		return errors.WithStack(err)
	}

	return nil
}

func setupSettings(ctx context.Context) {
	// mode
	if gconfig.Shared.GetBool("debug") {
		fmt.Println("run in debug mode")
		gconfig.Shared.Set("log-level", "debug")
	} else { // prod mode
		fmt.Println("run in prod mode")
	}

	// clock
	gutils.SetInternalClock(100 * time.Millisecond)

	// load configuration
	cfgPath := gconfig.Shared.GetString("config")
	config.LoadFromFile(cfgPath)
}

func setupLogger(ctx context.Context) error {
	lvl := gconfig.Shared.GetString("log-level")
	if err := log.Logger.ChangeLevel(glog.Level(lvl)); err != nil {
		return errors.Wrapf(err, "change log level to %q", lvl)
	}

	logFile := config.String(config.KeyLogFile, config.DefaultLogFile)
	if logFile == "-" {
		return nil
	}

	maxBytes := int64(config.Int(config.KeyLogMaxBytes, int(config.DefaultLogMaxBytes)))
	sink, err := log.AttachFile(logFile, maxBytes)
	if err != nil {
		return errors.Wrapf(err, "attach log file %q", logFile)
	}

	logSink = sink
	log.Logger.Debug("log file attached", zap.String("path", sink.Path()))
	return nil
}

// logFilePath is the file the log viewer reads, empty when logs only go to the console.
func logFilePath() string {
	if logSink == nil {
		return ""
	}
	return logSink.Path()
}

func init() {
	rootCMD.PersistentFlags().Bool("debug", false, "run in debug mode")
	rootCMD.PersistentFlags().String("listen", "localhost:8501", "like `localhost:8501`")
	rootCMD.PersistentFlags().StringP("config", "c", "", "config file path, empty to run on defaults")
	rootCMD.PersistentFlags().String("log-level", "info", "`debug/info/error`")
}

// Execute execute root command
func Execute() {
	if err := rootCMD.Execute(); err != nil {
		glog.Shared.Panic("start", zap.Error(err))
	}
}
