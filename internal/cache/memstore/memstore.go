// Package memstore is the process-local cache backend.
package memstore

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/mohammed-shakir/restaurant-finder/internal/cache"
	"github.com/mohammed-shakir/restaurant-finder/internal/core/config"
)

func init() {
	cache.Register("memory", func(cfg config.CacheCfg, logger *slog.Logger) (cache.Interface, error) {
		logger.Info("cache backend", "backend", "memory", "max_entries", cfg.MaxEntries)
		return New(cfg.MaxEntries)
	})
}

// Store keeps entries in a map. With maxEntries > 0 it is bounded by an LRU;
// otherwise it grows with every distinct key for the life of the process.
type Store struct {
	mu      sync.RWMutex
	entries map[string]cache.Entry
	bounded *lru.Cache[string, cache.Entry]
}

func New(maxEntries int) (*Store, error) {
	if maxEntries <= 0 {
		return &Store{entries: map[string]cache.Entry{}}, nil
	}
	c, err := lru.New[string, cache.Entry](maxEntries)
	if err != nil {
		return nil, fmt.Errorf("memstore lru: %w", err)
	}
	return &Store{bounded: c}, nil
}

func (s *Store) Get(_ context.Context, key string) (cache.Entry, bool, error) {
	if s.bounded != nil {
		e, ok := s.bounded.Get(key)
		return e.Clone(), ok, nil
	}
	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()
	return e.Clone(), ok, nil
}

// Put overwrites any previous entry; last writer wins.
func (s *Store) Put(_ context.Context, key string, e cache.Entry) error {
	e = e.Clone()
	if s.bounded != nil {
		s.bounded.Add(key, e)
		return nil
	}
	s.mu.Lock()
	s.entries[key] = e
	s.mu.Unlock()
	return nil
}

func (s *Store) Len() int {
	if s.bounded != nil {
		return s.bounded.Len()
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close() error { return nil }
