package search

import (
	"context"

	logSDK "github.com/Laisky/go-utils/v6/log"
	"github.com/Laisky/zap"

	"github.com/Laisky/topic-news/library/log"
)

// DefaultNumResults is the number of raw hits requested from a provider.
const DefaultNumResults = 10

// Engine defines a concrete search backend that can process queries and return results.
type Engine interface {
	// Name returns the unique identifier for the engine instance.
	Name() string
	// Search executes the query. Failures that belong in an Outcome are *Error values.
	Search(ctx context.Context, query string) ([]Result, error)
}

// Run executes query on engine and folds the result into an Outcome.
// Errors that are not *Error values are reported as network issues.
func Run(ctx context.Context, engine Engine, query string) Outcome {
	results, err := engine.Search(ctx, query)
	if err == nil {
		return Outcome{Results: results}
	}

	msg := messageOf(err)
	if msg == "" {
		msg = KindNetwork.message()
		logger().Warn("search engine returned an unclassified error",
			zap.String("engine", engine.Name()), zap.Error(err))
	}

	return Outcome{Error: msg}
}

func logger() logSDK.Logger {
	return log.Logger.Named("search")
}
