// Package log is a logging package that provides functions to log messages.
package log

import (
	errors "github.com/Laisky/errors/v2"
	logSDK "github.com/Laisky/go-utils/v6/log"
	"github.com/Laisky/zap"
)

var Logger logSDK.Logger

func init() {
	var err error
	if Logger, err = logSDK.NewConsoleWithName("topic-news", logSDK.LevelInfo); err != nil {
		logSDK.Shared.Panic("new logger", zap.Error(err))
	}
}

// AttachFile tees every entry written through Logger (and its named children created
// afterwards) into a size-capped file at path. The returned sink serves the log viewer.
func AttachFile(path string, maxBytes int64) (*FileSink, error) {
	sink, err := NewFileSink(path, maxBytes)
	if err != nil {
		return nil, errors.Wrap(err, "new file sink")
	}

	Logger = Logger.WithOptions(zap.HooksWithFields(sink.Hook))
	return sink, nil
}
