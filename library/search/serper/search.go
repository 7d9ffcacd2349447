// Package serper implements the news search adapter on top of the serper.dev API.
package serper

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Laisky/errors/v2"
	logSDK "github.com/Laisky/go-utils/v6/log"
	"github.com/Laisky/zap"

	"github.com/Laisky/topic-news/library/log"
	"github.com/Laisky/topic-news/library/search"
)

const (
	defaultEndpoint = "https://google.serper.dev/search"
	defaultType     = "nws"
	// logBodyLimit caps the number of response bytes logged for debugging.
	logBodyLimit = 4096
	engineName   = "serper"
)

// CredentialName names the serper key in user-facing errors.
const CredentialName = "SERPER_API_KEY"

// Option configures the SearchEngine instance.
type Option func(*SearchEngine)

// WithHTTPClient overrides the HTTP client used to communicate with serper.
func WithHTTPClient(client *http.Client) Option {
	return func(engine *SearchEngine) {
		if client != nil {
			engine.client = client
		}
	}
}

// WithLogger overrides the default logger used when no contextual logger is present.
func WithLogger(logger logSDK.Logger) Option {
	return func(engine *SearchEngine) {
		if logger != nil {
			engine.logger = logger
		}
	}
}

// WithEndpoint overrides the serper endpoint, primarily for testing.
func WithEndpoint(endpoint string) Option {
	return func(engine *SearchEngine) {
		if trimmed := strings.TrimSpace(endpoint); trimmed != "" {
			engine.endpoint = trimmed
		}
	}
}

// WithNumResults overrides how many raw hits are requested. Values below 2 are ignored.
func WithNumResults(num int) Option {
	return func(engine *SearchEngine) {
		if num >= 2 {
			engine.num = num
		}
	}
}

// WithSearchType overrides the tbm parameter ("nws" for news).
func WithSearchType(tbm string) Option {
	return func(engine *SearchEngine) {
		if trimmed := strings.TrimSpace(tbm); trimmed != "" {
			engine.tbm = trimmed
		}
	}
}

// SearchEngine queries serper's search endpoint for news hits.
type SearchEngine struct {
	apiKey   string
	client   *http.Client
	endpoint string
	num      int
	tbm      string
	logger   logSDK.Logger
}

// NewSearchEngine constructs a serper-backed engine. An empty apiKey is accepted
// here and reported by Search without touching the network.
func NewSearchEngine(apiKey string, opts ...Option) *SearchEngine {
	engine := &SearchEngine{
		apiKey:   strings.TrimSpace(apiKey),
		client:   &http.Client{},
		endpoint: defaultEndpoint,
		num:      search.DefaultNumResults,
		tbm:      defaultType,
		logger:   log.Logger.Named(engineName),
	}

	for _, opt := range opts {
		if opt != nil {
			opt(engine)
		}
	}

	return engine
}

// Name returns the engine identifier.
func (e *SearchEngine) Name() string {
	return engineName
}

type requestBody struct {
	Q   string `json:"q"`
	Num int    `json:"num"`
	Tbm string `json:"tbm"`
}

// Search sends one POST to serper and returns at most num-1 normalized results.
// Every failure is a *search.Error.
func (e *SearchEngine) Search(ctx context.Context, query string) ([]search.Result, error) {
	logger := e.logger
	if ctxLogger := log.FromContext(ctx, nil); ctxLogger != nil {
		logger = ctxLogger.Named(engineName)
	}

	if e.apiKey == "" {
		return nil, search.NewMissingCredentialError(CredentialName)
	}

	payload, err := json.Marshal(requestBody{Q: query, Num: e.num, Tbm: e.tbm})
	if err != nil {
		return nil, search.NewError(search.KindNetwork, errors.Wrap(err, "marshal serper request"))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, search.NewError(search.KindNetwork, errors.Wrap(err, "create serper request"))
	}
	req.Header.Set("X-API-KEY", e.apiKey)
	req.Header.Set("Content-Type", "application/json")

	logger.Debug("outgoing http request",
		zap.String("method", req.Method),
		zap.String("url", req.URL.String()),
		zap.String("query", query),
	)

	startAt := time.Now()
	resp, err := e.client.Do(req)
	if err != nil {
		logger.Warn("serper request failed", zap.Error(err), zap.String("query", query))
		return nil, search.NewError(search.KindNetwork, errors.Wrap(err, "send serper request"))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		logger.Warn("read serper response", zap.Error(err), zap.String("query", query))
		return nil, search.NewError(search.KindNetwork, errors.Wrap(err, "read serper response body"))
	}

	truncatedBody, truncated := truncateForLog(body, logBodyLimit)
	logger.Debug("incoming http response",
		zap.Int("status", resp.StatusCode),
		zap.String("body", truncatedBody),
		zap.Bool("body_truncated", truncated),
		zap.Duration("cost", time.Since(startAt)),
		zap.String("query", query),
	)

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, search.NewError(search.KindUnauthorized,
			errors.Errorf("serper returned status %d", resp.StatusCode))
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, search.NewError(search.KindNetwork,
			errors.Errorf("serper returned status %d: %s", resp.StatusCode, truncatedBody))
	}

	var envelope map[string]json.RawMessage
	if err = json.Unmarshal(body, &envelope); err != nil {
		return nil, search.NewError(search.KindInvalidJSON, errors.Wrap(err, "unmarshal serper response"))
	}

	rawOrganic, ok := envelope["organic"]
	if !ok || string(rawOrganic) == "null" {
		return nil, search.NewError(search.KindNoResults, nil)
	}

	var hits []json.RawMessage
	if err = json.Unmarshal(rawOrganic, &hits); err != nil {
		return nil, search.NewError(search.KindInvalidJSON, errors.Wrap(err, "unmarshal serper organic hits"))
	}

	results := search.Normalize(logger, hits, e.num, "title", "link", "snippet")
	logger.Info("serper search",
		zap.String("query", query),
		zap.Int("results", len(results)),
	)

	return results, nil
}

// truncateForLog limits the payload logged for debugging and reports whether truncation occurred.
func truncateForLog(body []byte, limit int) (string, bool) {
	if len(body) <= limit {
		return string(body), false
	}
	return string(body[:limit]), true
}
