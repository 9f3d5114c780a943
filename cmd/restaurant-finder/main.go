package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/mohammed-shakir/restaurant-finder/internal/cache"
	"github.com/mohammed-shakir/restaurant-finder/internal/cache/keys"
	_ "github.com/mohammed-shakir/restaurant-finder/internal/cache/memstore"
	_ "github.com/mohammed-shakir/restaurant-finder/internal/cache/redisstore"
	"github.com/mohammed-shakir/restaurant-finder/internal/core/config"
	"github.com/mohammed-shakir/restaurant-finder/internal/core/httpclient"
	"github.com/mohammed-shakir/restaurant-finder/internal/core/observability"
	"github.com/mohammed-shakir/restaurant-finder/internal/core/server"
	"github.com/mohammed-shakir/restaurant-finder/internal/finder"
	"github.com/mohammed-shakir/restaurant-finder/internal/logger"
	"github.com/mohammed-shakir/restaurant-finder/internal/metrics"
	"github.com/mohammed-shakir/restaurant-finder/internal/places"
	"github.com/mohammed-shakir/restaurant-finder/internal/searchevents"
)

var (
	Version   = "dev"
	Revision  = ""
	BuildDate = ""
)

func main() {
	os.Exit(run())
}

func run() int {
	// overriding cache backend via flag
	backendFlag := flag.String("cache", "", "cache backend (memory|redis)")
	flag.Parse()

	cfg := config.FromEnv()
	if *backendFlag != "" {
		cfg.Cache.Backend = strings.ToLower(strings.TrimSpace(*backendFlag))
	}

	zl := logger.Build(logger.Config{
		Level:     cfg.LogLevel,
		Console:   cfg.LogConsole,
		SampleN:   cfg.LogSampleN,
		Service:   "restaurant-finder",
		Component: "server",
	}, os.Stdout)
	appLog := logger.NewSlog(&zl)

	appLog.Info("starting restaurant-finder",
		"addr", cfg.Addr,
		"version", Version,
		"cache_backend", cfg.Cache.Backend,
		"cache_ttl", cfg.Cache.TTL,
		"origins", cfg.AllowedOrigins)
	if cfg.Places.APIKey == "" {
		appLog.Warn("GOOGLE_API_KEY is empty; provider calls will be rejected")
	}

	store, err := cache.New(cfg.Cache, appLog)
	if err != nil {
		appLog.Error("cache setup failed", "err", err)
		return 1
	}
	defer func() { _ = store.Close() }()

	provider, err := places.New(appLog, httpclient.NewOutbound(cfg.Places.Timeout), places.Config{
		BaseURL:       cfg.Places.BaseURL,
		APIKey:        cfg.Places.APIKey,
		Type:          cfg.Places.Type,
		PageDelay:     cfg.Places.PageDelay,
		MaxPages:      cfg.Places.MaxPages,
		PhotoMaxWidth: cfg.Places.PhotoMaxWidth,
	})
	if err != nil {
		appLog.Error("failed to initialize places client", "err", err)
		return 1
	}

	var opts []finder.Option
	if cfg.SearchEvents.Enabled {
		pub, err := searchevents.NewPublisher(appLog, cfg.SearchEvents.Brokers, cfg.SearchEvents.Topic, 1024)
		if err != nil {
			appLog.Error("search events setup failed", "err", err)
			return 1
		}
		defer closeLogged(appLog, "search events", pub.Close)
		opts = append(opts, finder.WithEvents(pub))
	}

	svc := finder.New(appLog, provider, store, finder.Config{
		TTL:      cfg.Cache.TTL,
		Keys:     keys.ForRes(cfg.Cache.KeyH3Res),
		Coalesce: cfg.Cache.CoalesceMisses,
	}, opts...)

	deps := server.Deps{Searcher: svc, Ready: store}
	if cfg.MetricsEnabled {
		p := metrics.Init(metrics.Config{Build: metrics.BuildInfo{
			Version:   Version,
			Revision:  Revision,
			BuildDate: BuildDate,
		}})
		if err := observability.Register(p.Registerer()); err != nil {
			appLog.Error("metrics registration failed", "err", err)
			return 1
		}
		deps.Metrics = p.Handler()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := server.Run(ctx, cfg, appLog, deps); err != nil {
		appLog.Error("server exited with error", "err", err)
		return 1
	}
	appLog.Info("server stopped")
	return 0
}

func closeLogged(l *slog.Logger, what string, fn func() error) {
	if err := fn(); err != nil {
		l.Warn("close failed", "what", what, "err", err)
	}
}
