// Package mcp exposes the news search adapter over the MCP streamable HTTP transport.
package mcp

import (
	"context"
	"net/http"
	"strings"

	"github.com/Laisky/errors/v2"
	logSDK "github.com/Laisky/go-utils/v6/log"
	"github.com/Laisky/zap"
	mcp "github.com/mark3labs/mcp-go/mcp"
	srv "github.com/mark3labs/mcp-go/server"

	"github.com/Laisky/topic-news/internal/news"
	"github.com/Laisky/topic-news/library/log"
	"github.com/Laisky/topic-news/library/search"
)

type ctxKey string

const (
	keyAuthorization ctxKey = "authorization"
)

// NewsSearchToolName is the MCP tool name of the news search.
const NewsSearchToolName = "news_search"

// Server wraps the MCP server state for the HTTP transport.
type Server struct {
	handler http.Handler
	logger  logSDK.Logger
	engines news.EngineFactory
}

// NewServer constructs a remote MCP server exposing HTTP endpoints under a single handler.
//
// The search API key of every call is taken from the bearer token of the request,
// and handed to engines to build the engine used for that call.
func NewServer(engines news.EngineFactory, version string, logger logSDK.Logger) (*Server, error) {
	if engines == nil {
		return nil, errors.New("search engine factory is required")
	}
	if logger == nil {
		logger = log.Logger
	}
	if version == "" {
		version = "dev"
	}

	mcpServer := srv.NewMCPServer(
		"topic-news",
		version,
		srv.WithToolCapabilities(true),
		srv.WithInstructions("Use the news_search tool to look up recent news about a topic. "+
			"Pass your search API key as the bearer token."),
		srv.WithRecovery(),
		srv.WithHooks(newMCPHooks(logger.Named("mcp_hooks"))),
	)

	streamable := srv.NewStreamableHTTPServer(
		mcpServer,
		srv.WithHTTPContextFunc(func(ctx context.Context, r *http.Request) context.Context {
			authHeader, _ := resolveRequestAuthorizationHeader(r)
			return context.WithValue(ctx, keyAuthorization, authHeader)
		}),
	)

	s := &Server{
		handler: streamable,
		logger:  logger.Named("mcp"),
		engines: engines,
	}

	mcpServer.AddTool(newsSearchTool(), s.handleNewsSearch)
	return s, nil
}

// Handler returns the HTTP handler that should be mounted to serve MCP traffic.
func (s *Server) Handler() http.Handler {
	return s.handler
}

func newsSearchTool() mcp.Tool {
	return mcp.NewTool(
		NewsSearchToolName,
		mcp.WithDescription("Search recent news for a query. "+
			"Returns up to 9 results, each with title, url and summary."),
		mcp.WithString(
			"query",
			mcp.Required(),
			mcp.Description("Plain text search query, e.g. a topic plus an after:YYYY-MM-DD range."),
		),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(true),
	)
}

func (s *Server) handleNewsSearch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s == nil || s.engines == nil {
		return mcp.NewToolResultError("news search is not configured"), nil
	}

	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	query = strings.TrimSpace(query)
	if query == "" {
		return mcp.NewToolResultError("query cannot be empty"), nil
	}

	authHeader, _ := ctx.Value(keyAuthorization).(string)
	apiKey := extractAPIKey(authHeader)
	if apiKey == "" {
		s.logger.Warn("news_search missing api key", zap.String("query", query))
		return mcp.NewToolResultError("missing authorization bearer token"), nil
	}

	engine := s.engines(apiKey)
	outcome := search.Run(ctx, engine, query)
	if outcome.Failed() {
		s.logger.Warn("news_search failed",
			zap.String("engine", engine.Name()),
			zap.String("query", query),
			zap.String("error", outcome.Error))
		return mcp.NewToolResultError(outcome.Error), nil
	}

	results := outcome.Results
	if results == nil {
		results = []search.Result{}
	}

	toolResult, err := mcp.NewToolResultJSON(results)
	if err != nil {
		s.logger.Error("encode search result", zap.Error(err))
		return mcp.NewToolResultError("failed to encode search result"), nil
	}

	return toolResult, nil
}
