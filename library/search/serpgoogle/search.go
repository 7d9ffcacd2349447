// Package serpgoogle queries SerpApi's Google News vertical as an alternate news engine.
package serpgoogle

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Laisky/errors/v2"
	logSDK "github.com/Laisky/go-utils/v6/log"
	"github.com/Laisky/zap"

	"github.com/Laisky/topic-news/library/log"
	"github.com/Laisky/topic-news/library/search"
)

const (
	defaultEndpoint = "https://serpapi.com/search.json"
	// logBodyLimit caps the number of response bytes logged for debugging.
	logBodyLimit         = 4096
	serpGoogleEngineName = "serp_google"
)

// CredentialName names the SerpApi key in user-facing errors.
const CredentialName = "SERPAPI_API_KEY"

// Option configures the SearchEngine instance.
type Option func(*SearchEngine)

// WithHTTPClient overrides the HTTP client used to communicate with SerpApi.
func WithHTTPClient(client *http.Client) Option {
	return func(engine *SearchEngine) {
		if client != nil {
			engine.client = client
		}
	}
}

// WithLogger overrides the default logger used for requests when no contextual logger is present.
func WithLogger(logger logSDK.Logger) Option {
	return func(engine *SearchEngine) {
		if logger != nil {
			engine.logger = logger
		}
	}
}

// WithDefaultParameters supplies key-value pairs that are added to every request.
func WithDefaultParameters(parameters map[string]string) Option {
	return func(engine *SearchEngine) {
		for key, value := range parameters {
			engine.defaultParams[key] = value
		}
	}
}

// WithEndpoint overrides the SerpApi endpoint, primarily for testing.
func WithEndpoint(endpoint string) Option {
	return func(engine *SearchEngine) {
		trimmed := strings.TrimSpace(endpoint)
		if trimmed != "" {
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

// SearchEngine queries SerpApi's Google endpoint with tbm=nws.
type SearchEngine struct {
	apiKey        string
	client        *http.Client
	endpoint      string
	num           int
	defaultParams map[string]string
	logger        logSDK.Logger
}

// NewSearchEngine constructs a SerpApi-backed news engine using the provided API key.
func NewSearchEngine(apiKey string, opts ...Option) *SearchEngine {
	engine := &SearchEngine{
		apiKey:        strings.TrimSpace(apiKey),
		client:        &http.Client{},
		endpoint:      defaultEndpoint,
		num:           search.DefaultNumResults,
		defaultParams: map[string]string{"engine": "google", "tbm": "nws"},
		logger:        log.Logger.Named(serpGoogleEngineName),
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
	return serpGoogleEngineName
}

// Search performs the SerpApi request and returns the news hits normalized
// the same way as the serper engine. Every failure is a *search.Error.
func (e *SearchEngine) Search(ctx context.Context, query string) ([]search.Result, error) {
	if e.apiKey == "" {
		return nil, search.NewMissingCredentialError(CredentialName)
	}

	endpoint, err := url.Parse(e.endpoint)
	if err != nil {
		return nil, search.NewError(search.KindNetwork, errors.Wrapf(err, "invalid serp google endpoint %q", e.endpoint))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, search.NewError(search.KindNetwork, errors.Wrap(err, "create serp google request"))
	}

	params := req.URL.Query()
	for key, value := range e.defaultParams {
		if _, exists := params[key]; !exists {
			params.Set(key, value)
		}
	}
	params.Set("q", query)
	params.Set("num", strconv.Itoa(e.num))
	params.Set("api_key", e.apiKey)
	req.URL.RawQuery = params.Encode()
	req.Header.Set("Accept", "application/json")

	logger := e.logger
	if ctxLogger := log.FromContext(ctx, nil); ctxLogger != nil {
		logger = ctxLogger.Named(serpGoogleEngineName)
	}

	logger.Debug("outgoing http request",
		zap.String("method", req.Method),
		zap.String("endpoint", endpoint.Host+endpoint.Path),
		zap.String("query", query),
	)

	startAt := time.Now()
	resp, err := e.client.Do(req)
	if err != nil {
		return nil, search.NewError(search.KindNetwork, errors.Wrap(err, "send serp google request"))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, search.NewError(search.KindNetwork, errors.Wrap(err, "read serp google response body"))
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
			errors.Errorf("serp google returned status %d", resp.StatusCode))
	case resp.StatusCode != http.StatusOK:
		return nil, search.NewError(search.KindNetwork,
			errors.Errorf("serp google returned status %d: %s", resp.StatusCode, truncatedBody))
	}

	var payload serpResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, search.NewError(search.KindInvalidJSON, errors.Wrap(err, "unmarshal serp google response"))
	}

	if payload.Error != "" {
		logger.Warn("serp google reported error", zap.String("error", payload.Error))
		return nil, search.NewError(search.KindNoResults, errors.New(payload.Error))
	}
	if payload.NewsResults == nil {
		return nil, search.NewError(search.KindNoResults, nil)
	}

	results := search.Normalize(logger, payload.NewsResults, e.num, "title", "link", "snippet")
	logger.Info("serp google search",
		zap.String("query", query),
		zap.Int("results", len(results)),
	)

	return results, nil
}

// serpResponse models the subset of fields required from the SerpApi response.
type serpResponse struct {
	NewsResults []json.RawMessage `json:"news_results"`
	Error       string            `json:"error"`
}

// truncateForLog limits the payload logged for debugging and reports whether truncation occurred.
func truncateForLog(body []byte, limit int) (string, bool) {
	if len(body) <= limit {
		return string(body), false
	}
	return string(body[:limit]), true
}
