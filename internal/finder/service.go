// Package finder aggregates provider pages into a sorted, enriched and
// cached list of nearby restaurants.
package finder

import (
	"cmp"
	"context"
	"fmt"
	"iter"
	"log/slog"
	"slices"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/mohammed-shakir/restaurant-finder/internal/cache"
	"github.com/mohammed-shakir/restaurant-finder/internal/cache/keys"
	"github.com/mohammed-shakir/restaurant-finder/internal/core/model"
	"github.com/mohammed-shakir/restaurant-finder/internal/core/observability"
	"github.com/mohammed-shakir/restaurant-finder/internal/geo"
	"github.com/mohammed-shakir/restaurant-finder/internal/logger"
	"github.com/mohammed-shakir/restaurant-finder/internal/places"
)

// Provider is the slice of places.Client the service needs.
type Provider interface {
	Pages(ctx context.Context, at model.Coordinate) iter.Seq2[places.Page, error]
	PhotoURL(ref string) string
}

// EventSink receives one event per served search.
type EventSink interface {
	Publish(ev Event)
}

type Event struct {
	Key     string    `json:"key"`
	Lat     float64   `json:"lat"`
	Lng     float64   `json:"lng"`
	Outcome string    `json:"outcome"`
	Count   int       `json:"count"`
	TS      time.Time `json:"ts"`
}

const (
	OutcomeHit  = "hit"
	OutcomeMiss = "miss"
)

// Result is a served search. Places must be treated as read-only.
type Result struct {
	Key     string
	Outcome string
	Places  []model.PlaceResult
}

type Config struct {
	TTL      time.Duration
	Keys     keys.Resolver
	Coalesce bool
}

type Service struct {
	logger   *slog.Logger
	provider Provider
	store    cache.Interface
	events   EventSink
	cfg      Config
	group    singleflight.Group
	now      func() time.Time // for tests
}

type Option func(*Service)

func WithEvents(sink EventSink) Option {
	return func(s *Service) { s.events = sink }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func New(logger *slog.Logger, p Provider, store cache.Interface, cfg Config, opts ...Option) *Service {
	if cfg.TTL <= 0 {
		cfg.TTL = 10 * time.Minute
	}
	s := &Service{
		logger:   logger,
		provider: p,
		store:    store,
		cfg:      cfg,
		now:      time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Nearby returns restaurants around at, sorted by distance then rating.
// A fresh cached entry is returned as-is; otherwise every provider page is
// collected and the sorted list is cached. Failures never touch the cache.
func (s *Service) Nearby(ctx context.Context, at model.Coordinate) (Result, error) {
	q, err := s.cfg.Keys.Resolve(at)
	if err != nil {
		return Result{}, err
	}
	ctx = logger.WithCacheKey(ctx, q.Key)

	if e, ok := s.lookup(ctx, q.Key); ok {
		observability.IncCacheHit()
		s.logger.InfoContext(logger.WithCacheOutcome(ctx, OutcomeHit), "serving cached results", "count", len(e.Places))
		res := Result{Key: q.Key, Outcome: OutcomeHit, Places: e.Places}
		s.publish(at, res)
		return res, nil
	}
	observability.IncCacheMiss()
	ctx = logger.WithCacheOutcome(ctx, OutcomeMiss)

	var list []model.PlaceResult
	if s.cfg.Coalesce {
		// the shared fetch outlives any single caller; each caller still
		// stops waiting when its own request goes away
		ch := s.group.DoChan(q.Key, func() (any, error) {
			return s.refresh(context.WithoutCancel(ctx), q)
		})
		select {
		case <-ctx.Done():
			return Result{}, ctx.Err()
		case r := <-ch:
			if r.Err != nil {
				return Result{}, r.Err
			}
			if r.Shared {
				s.logger.DebugContext(ctx, "joined in-flight aggregation")
			}
			list = r.Val.([]model.PlaceResult)
		}
	} else {
		list, err = s.refresh(ctx, q)
		if err != nil {
			return Result{}, err
		}
	}

	res := Result{Key: q.Key, Outcome: OutcomeMiss, Places: list}
	s.publish(at, res)
	return res, nil
}

// a cache read error is logged and treated as a miss
func (s *Service) lookup(ctx context.Context, key string) (cache.Entry, bool) {
	e, ok, err := s.store.Get(ctx, key)
	if err != nil {
		s.logger.WarnContext(ctx, "cache read failed", "err", err)
		return cache.Entry{}, false
	}
	if !ok || !e.Fresh(s.now(), s.cfg.TTL) {
		return cache.Entry{}, false
	}
	return e, true
}

func (s *Service) refresh(ctx context.Context, q keys.Query) ([]model.PlaceResult, error) {
	start := s.now()
	var list []model.PlaceResult
	pages := 0
	for page, err := range s.provider.Pages(ctx, q.Origin) {
		if err != nil {
			return nil, fmt.Errorf("fetch restaurants near %s: %w", q.Origin.Canonical(), err)
		}
		pages++
		for _, raw := range page.Places {
			list = append(list, s.enrich(q.Origin, raw))
		}
	}
	if list == nil {
		list = []model.PlaceResult{}
	}
	SortPlaces(list)

	if err := s.store.Put(ctx, q.Key, cache.Entry{CreatedAt: s.now(), Places: list}); err != nil {
		s.logger.WarnContext(ctx, "cache write failed", "err", err)
	}
	s.logger.InfoContext(ctx, "aggregated provider results",
		"pages", pages,
		"count", len(list),
		"duration", s.now().Sub(start))
	return list, nil
}

func (s *Service) enrich(origin model.Coordinate, raw places.RawPlace) model.PlaceResult {
	loc := model.Location{Lat: raw.Geometry.Location.Lat, Lng: raw.Geometry.Location.Lng}

	out := model.PlaceResult{
		PlaceID:    raw.PlaceID,
		Name:       raw.Name,
		Vicinity:   raw.Vicinity,
		Location:   loc,
		Distance:   geo.RoundMeters(geo.Distance(origin, loc.Coordinate())),
		Directions: places.DirectionsURL(loc.Coordinate()),
	}
	// zero and absent ratings both serialize as null
	if raw.Rating != nil && *raw.Rating != 0 {
		r := *raw.Rating
		out.Rating = &r
	}
	if ref, ok := raw.FirstPhotoRef(); ok {
		u := s.provider.PhotoURL(ref)
		out.Photo = &u
	}
	return out
}

func (s *Service) publish(at model.Coordinate, res Result) {
	if s.events == nil {
		return
	}
	s.events.Publish(Event{
		Key:     res.Key,
		Lat:     at.Lat,
		Lng:     at.Lng,
		Outcome: res.Outcome,
		Count:   len(res.Places),
		TS:      s.now().UTC(),
	})
}

// SortPlaces orders by ascending distance, then descending rating with a
// missing rating counted as 0. Equal pairs keep their provider order.
func SortPlaces(list []model.PlaceResult) {
	slices.SortStableFunc(list, func(a, b model.PlaceResult) int {
		if c := cmp.Compare(a.Distance, b.Distance); c != 0 {
			return c
		}
		return cmp.Compare(b.RatingOrZero(), a.RatingOrZero())
	})
}
