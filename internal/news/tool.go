package news

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/Laisky/topic-news/internal/crew"
	"github.com/Laisky/topic-news/library/search"
)

const (
	// SearchToolName is the tool name workers use to call the search.
	SearchToolName        = "Search the internet"
	searchToolDescription = "Use this tool to search the internet for information. " +
		"This tool returns 8-9 results from Google search engine."
)

var _ crew.Tool = (*SearchTool)(nil)

// SearchTool exposes a search engine to workers. Its output is always the
// JSON descriptor of a search.Outcome, so search failures reach the worker
// as data instead of aborting the run.
type SearchTool struct {
	engine search.Engine
}

// NewSearchTool wraps engine.
func NewSearchTool(engine search.Engine) *SearchTool {
	return &SearchTool{engine: engine}
}

func (t *SearchTool) Name() string {
	return SearchToolName
}

func (t *SearchTool) Description() string {
	return searchToolDescription
}

// Run searches for input. A JSON object input with a "query" or "search_query"
// field is unwrapped first.
func (t *SearchTool) Run(ctx context.Context, input string) (string, error) {
	query := unwrapQuery(input)
	outcome := search.Run(ctx, t.engine, query)
	recordSearch(t.engine.Name(), outcome)
	return outcome.String(), nil
}

func unwrapQuery(input string) string {
	trimmed := strings.TrimSpace(input)
	if !strings.HasPrefix(trimmed, "{") {
		return input
	}

	var args map[string]any
	if err := json.Unmarshal([]byte(trimmed), &args); err != nil {
		return input
	}
	for _, key := range []string{"query", "search_query", "q"} {
		if v, ok := args[key].(string); ok {
			return v
		}
	}
	return input
}
