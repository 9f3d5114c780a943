package redisstore

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/mohammed-shakir/restaurant-finder/internal/cache"
	"github.com/mohammed-shakir/restaurant-finder/internal/cache/keys"
	"github.com/mohammed-shakir/restaurant-finder/internal/core/config"
)

const namespace = "restaurants:v1"

func init() {
	cache.Register("redis", func(cfg config.CacheCfg, logger *slog.Logger) (cache.Interface, error) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		rc, err := New(ctx, cfg.RedisAddr)
		if err != nil {
			return nil, fmt.Errorf("redis client: %w", err)
		}
		logger.Info("cache backend", "backend", "redis", "addr", cfg.RedisAddr)
		return NewStore(rc, cfg.TTL, cfg.OpTimeout), nil
	})
}

// Store adapts Client to cache.Interface. Entries are JSON encoded and
// expire in Redis after ttl, so stale keys do not accumulate there.
type Store struct {
	cli     *Client
	ttl     time.Duration
	timeout time.Duration
}

func NewStore(c *Client, ttl, opTimeout time.Duration) *Store {
	return &Store{cli: c, ttl: ttl, timeout: opTimeout}
}

// returns context with timeout if set
func (s *Store) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

func (s *Store) Get(ctx context.Context, key string) (cache.Entry, bool, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	b, ok, err := s.cli.Get(ctx, keys.Storage(namespace, key))
	if err != nil || !ok {
		return cache.Entry{}, false, err
	}
	var e cache.Entry
	if err := json.Unmarshal(b, &e); err != nil {
		return cache.Entry{}, false, fmt.Errorf("decode cache entry %q: %w", key, err)
	}
	return e, true, nil
}

func (s *Store) Put(ctx context.Context, key string, e cache.Entry) error {
	b, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode cache entry %q: %w", key, err)
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.cli.Set(ctx, keys.Storage(namespace, key), b, s.ttl)
}

func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.cli.Ping(ctx)
}

func (s *Store) Close() error { return s.cli.Close() }
