package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/Laisky/errors/v2"
	gconfig "github.com/Laisky/go-config/v2"
	gcmd "github.com/Laisky/go-utils/v6/cmd"
	"github.com/Laisky/zap"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Laisky/topic-news/internal/mcp"
	"github.com/Laisky/topic-news/internal/news"
	"github.com/Laisky/topic-news/internal/session"
	"github.com/Laisky/topic-news/internal/web"
	"github.com/Laisky/topic-news/library/config"
	"github.com/Laisky/topic-news/library/log"
)

// version is overwritten by -ldflags at build time.
var version = "dev"

const sessionPurgeInterval = 10 * time.Minute

var apiCMD = &cobra.Command{
	Use:   "api",
	Short: "api",
	Long:  `web UI, JSON API and MCP endpoint for topic news`,
	Args:  gcmd.NoExtraArgs,
	PreRun: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		if err := initialize(ctx, cmd); err != nil {
			log.Logger.Panic("init", zap.Error(err))
		}
	},
	Run: func(cmd *cobra.Command, args []string) {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if err := runAPI(ctx); err != nil {
			log.Logger.Panic("api server", zap.Error(err))
		}
	},
}

func runAPI(ctx context.Context) error {
	opts, store, err := buildWebOptions()
	if err != nil {
		return errors.Wrap(err, "build web options")
	}
	defer store.Close() // nolint: errcheck

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		purgeSessions(gctx, store)
		return nil
	})
	g.Go(func() error {
		return web.RunServer(gctx, gconfig.Shared.GetString("listen"), opts)
	})

	return g.Wait()
}

func buildWebOptions() (web.Options, *session.Store, error) {
	settings := news.LoadSettingsFromConfig()
	driver := news.NewDriver(settings)

	protector, err := sessionProtector()
	if err != nil {
		return web.Options{}, nil, errors.Wrap(err, "new session protector")
	}

	store, err := session.Open(
		config.String(config.KeySessionDSN, config.DefaultSessionDSN),
		session.WithTTL(config.Duration(config.KeySessionTTL, config.DefaultSessionTTL)),
		session.WithProtector(protector),
	)
	if err != nil {
		return web.Options{}, nil, errors.Wrap(err, "open session store")
	}

	opts := web.Options{
		Runner:         driver,
		Sessions:       store,
		LogFile:        logFilePath(),
		AllowedOrigins: gconfig.Shared.GetStringSlice(config.KeyWebOrigins),
		Metrics:        config.Bool(config.KeyWebMetrics, true),
		Logger:         log.Logger,
	}

	if config.Bool(config.KeyMCPEnabled, true) {
		mcpServer, err := mcp.NewServer(news.DefaultEngineFactory(settings), version, log.Logger)
		if err != nil {
			_ = store.Close()
			return web.Options{}, nil, errors.Wrap(err, "new mcp server")
		}
		opts.MCP = mcpServer.Handler()
	}

	return opts, store, nil
}

// sessionProtector builds the credential protector from settings.session.keks.
// Without configured KEKs a random one is used, so stored sessions do not survive a restart.
func sessionProtector() (*session.Protector, error) {
	raw := toStringMap(gconfig.Shared.Get(config.KeySessionKEKs))
	if len(raw) == 0 {
		log.Logger.Info("no session keks configured, use an ephemeral one")
		return session.NewEphemeralProtector()
	}

	keks := make(map[uint16]string, len(raw))
	for rawID, rawSecret := range raw {
		id, err := strconv.ParseUint(strings.TrimSpace(rawID), 10, 16)
		if err != nil {
			return nil, errors.Wrapf(err, "parse kek id %q", rawID)
		}
		keks[uint16(id)] = fmt.Sprint(rawSecret)
	}

	return session.NewProtector(keks)
}

func purgeSessions(ctx context.Context, store *session.Store) {
	ticker := time.NewTicker(sessionPurgeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		n, err := store.PurgeExpired(ctx)
		if err != nil {
			log.Logger.Warn("purge expired sessions", zap.Error(err))
			continue
		}
		if n > 0 {
			log.Logger.Debug("purged expired sessions", zap.Int64("count", n))
		}
	}
}

func init() {
	rootCMD.AddCommand(apiCMD)
}
