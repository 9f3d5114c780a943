package router

import (
	"context"
	"errors"
	"io"
	"iter"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/mohammed-shakir/restaurant-finder/internal/cache/keys"
	"github.com/mohammed-shakir/restaurant-finder/internal/cache/memstore"
	"github.com/mohammed-shakir/restaurant-finder/internal/core/model"
	"github.com/mohammed-shakir/restaurant-finder/internal/finder"
	"github.com/mohammed-shakir/restaurant-finder/internal/places"
)

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

type fakeSearcher struct {
	lastAt model.Coordinate
	res    finder.Result
	err    error
}

func (f *fakeSearcher) Nearby(_ context.Context, at model.Coordinate) (finder.Result, error) {
	f.lastAt = at
	return f.res, f.err
}

func get(t *testing.T, h http.HandlerFunc, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rr := httptest.NewRecorder()
	h(rr, req)
	return rr
}

func TestHandleRestaurants_MissingParams(t *testing.T) {
	s := &fakeSearcher{}
	h := HandleRestaurants(discard(), s)

	for _, target := range []string{
		"/api/restaurants",
		"/api/restaurants?lat=59.3",
		"/api/restaurants?lng=18.0",
		"/api/restaurants?lat=&lng=18.0",
	} {
		rr := get(t, h, target)
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("%s: status=%d want 400", target, rr.Code)
		}
		if got := rr.Body.String(); got != `{"error":"lat and lng are required"}` {
			t.Fatalf("%s: body=%s", target, got)
		}
	}
	if s.lastAt != (model.Coordinate{}) {
		t.Fatal("searcher must not be called on client errors")
	}
}

func TestHandleRestaurants_InvalidParams(t *testing.T) {
	h := HandleRestaurants(discard(), &fakeSearcher{})
	for _, target := range []string{
		"/api/restaurants?lat=abc&lng=18",
		"/api/restaurants?lat=91&lng=18",
		"/api/restaurants?lat=10&lng=-181",
		"/api/restaurants?lat=NaN&lng=1",
	} {
		rr := get(t, h, target)
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("%s: status=%d want 400", target, rr.Code)
		}
		if got := rr.Body.String(); got != `{"error":"lat and lng must be valid coordinates"}` {
			t.Fatalf("%s: body=%s", target, got)
		}
	}
}

func TestHandleRestaurants_SearchFailureIsGeneric(t *testing.T) {
	s := &fakeSearcher{err: errors.New("places: REQUEST_DENIED The provided API key is invalid")}
	rr := get(t, HandleRestaurants(discard(), s), "/api/restaurants?lat=1&lng=2")

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status=%d want 500", rr.Code)
	}
	if got := rr.Body.String(); got != `{"error":"Failed to fetch restaurants"}` {
		t.Fatalf("body=%s", got)
	}
	if s.lastAt != (model.Coordinate{Lat: 1, Lng: 2}) {
		t.Fatalf("searcher got %v", s.lastAt)
	}
}

func TestHandleRestaurants_SuccessHeaders(t *testing.T) {
	rating := 4.2
	s := &fakeSearcher{res: finder.Result{Key: "1,2", Outcome: finder.OutcomeHit, Places: []model.PlaceResult{{
		PlaceID: "p", Name: "N", Vicinity: "V", Rating: &rating,
		Location: model.Location{Lat: 1, Lng: 2}, Distance: 30,
		Directions: "https://www.google.com/maps/dir/?api=1&destination=1,2",
	}}}}
	rr := get(t, HandleRestaurants(discard(), s), "/api/restaurants?lat=1&lng=2")

	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	want := `[{"place_id":"p","name":"N","vicinity":"V","rating":4.2,"location":{"lat":1,"lng":2},"distance":30,"photo":null,"directions":"https://www.google.com/maps/dir/?api=1&destination=1,2"}]`
	if got := rr.Body.String(); got != want {
		t.Fatalf("body:\n got %s\nwant %s", got, want)
	}
	if rr.Header().Get("X-Cache") != "HIT" {
		t.Fatalf("X-Cache=%q", rr.Header().Get("X-Cache"))
	}
	if rr.Header().Get("ETag") != ETag(rr.Body.Bytes()) {
		t.Fatalf("etag mismatch")
	}
	if !strings.HasPrefix(rr.Header().Get("Content-Type"), "application/json") {
		t.Fatalf("content-type=%q", rr.Header().Get("Content-Type"))
	}
}

type countingProvider struct {
	calls atomic.Int64
	fail  bool
}

func (p *countingProvider) Pages(context.Context, model.Coordinate) iter.Seq2[places.Page, error] {
	p.calls.Add(1)
	return func(yield func(places.Page, error) bool) {
		if p.fail {
			yield(places.Page{}, errors.New("dial tcp: connection refused"))
			return
		}
		yield(places.Page{Number: 1, Places: []places.RawPlace{{
			PlaceID:  "x",
			Name:     "X",
			Geometry: &places.Geometry{Location: &places.LatLng{Lat: 1.001, Lng: 2}},
		}}}, nil)
	}
}

func (p *countingProvider) PhotoURL(ref string) string { return ref }

func TestHandleRestaurants_WithService_CacheHitIsByteIdentical(t *testing.T) {
	store, _ := memstore.New(0)
	p := &countingProvider{}
	svc := finder.New(discard(), p, store, finder.Config{Keys: keys.Exact()})
	h := HandleRestaurants(discard(), svc)

	first := get(t, h, "/api/restaurants?lat=1&lng=2")
	second := get(t, h, "/api/restaurants?lat=1.0&lng=2.00")

	if first.Code != 200 || second.Code != 200 {
		t.Fatalf("status %d/%d", first.Code, second.Code)
	}
	if first.Body.String() != second.Body.String() {
		t.Fatalf("bodies differ:\n%s\n%s", first.Body, second.Body)
	}
	if p.calls.Load() != 1 {
		t.Fatalf("upstream calls=%d want 1", p.calls.Load())
	}
	if first.Header().Get("X-Cache") != "MISS" || second.Header().Get("X-Cache") != "HIT" {
		t.Fatalf("x-cache %q/%q", first.Header().Get("X-Cache"), second.Header().Get("X-Cache"))
	}
	if first.Header().Get("ETag") != second.Header().Get("ETag") {
		t.Fatal("etag changed between identical bodies")
	}
}

func TestHandleRestaurants_WithService_UpstreamFailureLeavesCacheUnset(t *testing.T) {
	store, _ := memstore.New(0)
	svc := finder.New(discard(), &countingProvider{fail: true}, store, finder.Config{Keys: keys.Exact()})

	rr := get(t, HandleRestaurants(discard(), svc), "/api/restaurants?lat=1&lng=2")
	if rr.Code != http.StatusInternalServerError || rr.Body.String() != `{"error":"Failed to fetch restaurants"}` {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body)
	}
	if _, ok, _ := store.Get(context.Background(), "1,2"); ok {
		t.Fatal("cache entry written after failure")
	}
}

func TestParseCoordinate_TrimsAndParses(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/restaurants?lat=%2059.5%20&lng=-18.25", nil)
	c, err := ParseCoordinate(req)
	if err != nil {
		t.Fatalf("ParseCoordinate: %v", err)
	}
	if c != (model.Coordinate{Lat: 59.5, Lng: -18.25}) {
		t.Fatalf("got %v", c)
	}
}
