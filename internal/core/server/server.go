package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mohammed-shakir/restaurant-finder/internal/core/config"
	"github.com/mohammed-shakir/restaurant-finder/internal/core/health"
	middleware "github.com/mohammed-shakir/restaurant-finder/internal/core/middleware"
	"github.com/mohammed-shakir/restaurant-finder/internal/core/router"
)

type Deps struct {
	Searcher router.Searcher
	Ready    health.Pinger
	Metrics  http.Handler // nil disables /metrics
}

// Routes builds the HTTP handler tree.
func Routes(cfg config.Config, logger *slog.Logger, d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recover(logger, "internal server error"))
	r.Use(middleware.Logging(logger))
	r.Use(middleware.CORS(cfg.AllowedOrigins))

	r.Get("/", health.Root())
	r.Get("/healthz", health.Liveness())
	if d.Ready != nil {
		r.Get("/readyz", health.Readiness(d.Ready))
	}
	if d.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", d.Metrics)
	}
	r.With(middleware.Recover(logger, router.MsgFetchFailed)).
		Get(router.RestaurantsRoute, router.HandleRestaurants(logger, d.Searcher))
	return r
}

// sets up http and starts serving
func Run(ctx context.Context, cfg config.Config, logger *slog.Logger, d Deps) error {
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           Routes(cfg, logger, d),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		// pagination alone can take several seconds
		WriteTimeout: 90 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http listen", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	case err := <-errCh:
		return err
	}
}
