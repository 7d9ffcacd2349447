// Package web gin server
package web

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Laisky/errors/v2"
	gmw "github.com/Laisky/gin-middlewares/v7"
	gconfig "github.com/Laisky/go-config/v2"
	logSDK "github.com/Laisky/go-utils/v6/log"
	"github.com/Laisky/zap"
	"github.com/gin-gonic/gin"

	"github.com/Laisky/topic-news/internal/news"
	"github.com/Laisky/topic-news/library/log"
)

const (
	defaultLogTailBytes int64 = 64 << 10
	shutdownTimeout           = 30 * time.Second
)

// Runner executes one pipeline run. *news.Driver satisfies it.
type Runner interface {
	Run(ctx context.Context, topic string, creds news.Credentials) *news.Report
}

// CredentialStore keeps the sidebar keys of a browser session.
type CredentialStore interface {
	Save(ctx context.Context, id string, creds news.Credentials) error
	Load(ctx context.Context, id string) (news.Credentials, error)
}

// Options wires the server collaborators.
type Options struct {
	Runner   Runner
	Sessions CredentialStore
	// MCP is mounted on /mcp when not nil.
	MCP http.Handler
	// LogFile is the rolling log shown by the log viewer.
	LogFile      string
	LogTailBytes int64
	// AllowedOrigins are host names (and their subdomains) granted CORS access.
	AllowedOrigins []string
	// Metrics registers the gin-middlewares metric endpoints.
	Metrics bool
	Logger  logSDK.Logger
}

// Server is the topic news web UI and API.
type Server struct {
	engine   *gin.Engine
	runner   Runner
	sessions CredentialStore
	logFile  string
	logTail  int64
	logger   logSDK.Logger
}

// NewServer builds the gin engine with every route registered.
func NewServer(opts Options) (*Server, error) {
	if opts.Runner == nil {
		return nil, errors.New("runner is required")
	}
	if opts.Sessions == nil {
		return nil, errors.New("session store is required")
	}
	if opts.Logger == nil {
		opts.Logger = log.Logger
	}
	if opts.LogTailBytes <= 0 {
		opts.LogTailBytes = defaultLogTailBytes
	}

	s := &Server{
		engine:   gin.New(),
		runner:   opts.Runner,
		sessions: opts.Sessions,
		logFile:  opts.LogFile,
		logTail:  opts.LogTailBytes,
		logger:   opts.Logger.Named("web"),
	}

	s.engine.Use(
		gin.Recovery(),
		gmw.NewLoggerMiddleware(
			gmw.WithLoggerMwColored(),
			gmw.WithLevel(opts.Logger.Level().String()),
			gmw.WithLogger(opts.Logger.Named("gin")),
		),
		allowCORS(opts.AllowedOrigins),
	)

	if opts.Metrics {
		if err := gmw.EnableMetric(s.engine); err != nil {
			return nil, errors.Wrap(err, "enable metric server")
		}
	}

	s.engine.SetHTMLTemplate(pageTemplates)

	s.engine.Any("/health", func(ctx *gin.Context) {
		ctx.String(http.StatusOK, "hello, world")
	})

	s.engine.GET("/", s.handleIndex)
	s.engine.POST("/credentials", s.handleSaveCredentials)
	s.engine.POST("/run", s.handleRun)
	s.engine.GET("/logs", s.handleLogs)
	s.engine.POST("/api/v1/runs", s.handleAPIRun)

	if opts.MCP != nil {
		s.engine.Any("/mcp", gmw.FromStd(opts.MCP.ServeHTTP))
		s.engine.Any("/mcp/*path", gmw.FromStd(opts.MCP.ServeHTTP))
	}

	return s, nil
}

// Handler returns the HTTP handler of the server.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves on addr until ctx is done or the listener fails.
// On cancellation in-flight requests get shutdownTimeout to finish.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening on http", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return errors.Wrap(err, "http server exit")
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "shutdown http server")
	}
	s.logger.Info("http server stopped")
	return nil
}

// RunServer builds the server and serves on addr until ctx is done.
func RunServer(ctx context.Context, addr string, opts Options) error {
	if !gconfig.Shared.GetBool("debug") {
		gin.SetMode(gin.ReleaseMode)
	}

	s, err := NewServer(opts)
	if err != nil {
		return errors.Wrap(err, "build web server")
	}
	return s.Run(ctx, addr)
}

// allowCORS grants CORS to origins whose host is one of hosts or a subdomain of one.
func allowCORS(hosts []string) gin.HandlerFunc {
	allowed := make([]string, 0, len(hosts))
	for _, h := range hosts {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			allowed = append(allowed, h)
		}
	}

	return func(ctx *gin.Context) {
		origin := ctx.Request.Header.Get("Origin")
		allowedOrigin := ""

		if origin != "" {
			parsedOriginURL, err := url.Parse(origin)
			if err == nil {
				host := strings.ToLower(parsedOriginURL.Hostname())
				for _, h := range allowed {
					if host == h || strings.HasSuffix(host, "."+h) {
						allowedOrigin = origin
						break
					}
				}
			}
		}

		if allowedOrigin != "" {
			ctx.Header("Access-Control-Allow-Origin", allowedOrigin)
			ctx.Header("Access-Control-Allow-Credentials", "true")
			ctx.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS, HEAD")
			ctx.Header("Access-Control-Allow-Headers", "Content-Type, Authorization, Accept, Origin, Mcp-Session-Id")
			ctx.Header("Access-Control-Max-Age", "86400")
			ctx.Header("Vary", "Origin")

			if ctx.Request.Method == http.MethodOptions {
				ctx.AbortWithStatus(http.StatusNoContent)
				return
			}
		} else if origin != "" && ctx.Request.Method == http.MethodOptions {
			// preflight from a disallowed origin
			ctx.AbortWithStatus(http.StatusForbidden)
			return
		}

		ctx.Next()
	}
}
