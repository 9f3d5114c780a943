// Package cache defines the result cache used by the aggregation service.
package cache

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"time"

	"github.com/mohammed-shakir/restaurant-finder/internal/core/config"
	"github.com/mohammed-shakir/restaurant-finder/internal/core/model"
)

// Entry is one cached aggregation: creation time and the sorted result list.
type Entry struct {
	CreatedAt time.Time           `json:"created_at"`
	Places    []model.PlaceResult `json:"places"`
}

// Fresh reports whether the entry is younger than ttl at now.
func (e Entry) Fresh(now time.Time, ttl time.Duration) bool {
	return now.Sub(e.CreatedAt) < ttl
}

// Interface is a key/entry store. Get returns ok=false for absent keys;
// staleness is judged by the caller against its own TTL.
type Interface interface {
	Get(ctx context.Context, key string) (Entry, bool, error)
	Put(ctx context.Context, key string, e Entry) error
	Ping(ctx context.Context) error
	Close() error
}

type Factory func(cfg config.CacheCfg, logger *slog.Logger) (Interface, error)

const DefaultBackend = "memory"

var reg = map[string]Factory{}

func Register(name string, f Factory) {
	reg[name] = f
}

// Backends lists registered backend names.
func Backends() []string {
	out := make([]string, 0, len(reg))
	for k := range reg {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func New(cfg config.CacheCfg, logger *slog.Logger) (Interface, error) {
	if f, ok := reg[cfg.Backend]; ok {
		return f(cfg, logger)
	}
	if f, ok := reg[DefaultBackend]; ok {
		logger.Warn("unknown cache backend; falling back to memory", "backend", cfg.Backend, "known", Backends())
		return f(cfg, logger)
	}
	return nil, fmt.Errorf("no factory for cache backend %q and no %s backend registered", cfg.Backend, DefaultBackend)
}

// Clone copies the place slice so callers cannot mutate stored snapshots.
func (e Entry) Clone() Entry {
	return Entry{CreatedAt: e.CreatedAt, Places: slices.Clone(e.Places)}
}
