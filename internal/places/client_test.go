package places

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mohammed-shakir/restaurant-finder/internal/core/model"
)

// serves canned pages keyed by pagetoken and records every query
type providerDouble struct {
	mu      sync.Mutex
	pages   map[string]string
	queries []url.Values
}

func (p *providerDouble) handler(w http.ResponseWriter, r *http.Request) {
	p.mu.Lock()
	p.queries = append(p.queries, r.URL.Query())
	body, ok := p.pages[r.URL.Query().Get("pagetoken")]
	p.mu.Unlock()
	if !ok {
		http.Error(w, "unknown token", http.StatusBadRequest)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = io.WriteString(w, body)
}

func placeJSON(id string, lat, lng float64) string {
	return fmt.Sprintf(`{"place_id":%q,"name":"n-%s","vicinity":"v","geometry":{"location":{"lat":%v,"lng":%v}}}`, id, id, lat, lng)
}

type sleepRecorder struct {
	mu    sync.Mutex
	waits []time.Duration
}

func (s *sleepRecorder) sleep(_ context.Context, d time.Duration) error {
	s.mu.Lock()
	s.waits = append(s.waits, d)
	s.mu.Unlock()
	return nil
}

func newTestClient(t *testing.T, srvURL string, rec *sleepRecorder) *Client {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	c, err := New(logger, http.DefaultClient, Config{
		BaseURL:   srvURL,
		APIKey:    "secret",
		Type:      "restaurant",
		PageDelay: 2 * time.Second,
		MaxPages:  5,
	}, WithSleep(rec.sleep))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func threePages() map[string]string {
	return map[string]string{
		"":   `{"status":"OK","next_page_token":"t1","results":[` + placeJSON("a", 1, 1) + `,{"place_id":"nogeo","name":"x"}]}`,
		"t1": `{"status":"OK","next_page_token":"t2","results":[` + placeJSON("b", 2, 2) + `]}`,
		"t2": `{"status":"OK","results":[` + placeJSON("c", 3, 3) + `,` + placeJSON("d", 4, 4) + `]}`,
	}
}

func TestFetchAll_PaginatesWithDelay(t *testing.T) {
	pd := &providerDouble{pages: threePages()}
	srv := httptest.NewServer(http.HandlerFunc(pd.handler))
	defer srv.Close()

	rec := &sleepRecorder{}
	c := newTestClient(t, srv.URL, rec)

	got, err := c.FetchAll(context.Background(), model.Coordinate{Lat: 59.3293, Lng: 18.0686})
	if err != nil {
		t.Fatalf("FetchAll: %v", err)
	}

	if len(pd.queries) != 3 {
		t.Fatalf("upstream calls=%d want 3", len(pd.queries))
	}
	if len(rec.waits) != 2 || rec.waits[0] != 2*time.Second || rec.waits[1] != 2*time.Second {
		t.Fatalf("waits=%v want two 2s waits", rec.waits)
	}

	var ids []string
	for _, p := range got {
		ids = append(ids, p.PlaceID)
	}
	if strings.Join(ids, ",") != "a,b,c,d" {
		t.Fatalf("ids=%v want a,b,c,d (nogeo discarded)", ids)
	}

	first := pd.queries[0]
	if first.Has("pagetoken") {
		t.Fatalf("first request carried a page token: %v", first)
	}
	if first.Get("location") != "59.3293,18.0686" || first.Get("rankby") != "distance" ||
		first.Get("type") != "restaurant" || first.Get("key") != "secret" {
		t.Fatalf("unexpected first query: %v", first)
	}
	if pd.queries[1].Get("pagetoken") != "t1" || pd.queries[2].Get("pagetoken") != "t2" {
		t.Fatalf("tokens not forwarded: %v / %v", pd.queries[1], pd.queries[2])
	}
}

func TestPages_ReportsDiscardedAndNumbers(t *testing.T) {
	pd := &providerDouble{pages: threePages()}
	srv := httptest.NewServer(http.HandlerFunc(pd.handler))
	defer srv.Close()

	c := newTestClient(t, srv.URL, &sleepRecorder{})

	var numbers []int
	discarded := 0
	for page, err := range c.Pages(context.Background(), model.Coordinate{Lat: 1, Lng: 1}) {
		if err != nil {
			t.Fatalf("page error: %v", err)
		}
		numbers = append(numbers, page.Number)
		discarded += page.Discarded
	}
	if fmt.Sprint(numbers) != "[1 2 3]" || discarded != 1 {
		t.Fatalf("numbers=%v discarded=%d", numbers, discarded)
	}
}

func TestPages_StopsWhenConsumerBreaks(t *testing.T) {
	pd := &providerDouble{pages: threePages()}
	srv := httptest.NewServer(http.HandlerFunc(pd.handler))
	defer srv.Close()

	rec := &sleepRecorder{}
	c := newTestClient(t, srv.URL, rec)

	for range c.Pages(context.Background(), model.Coordinate{Lat: 1, Lng: 1}) {
		break
	}
	if len(pd.queries) != 1 || len(rec.waits) != 0 {
		t.Fatalf("calls=%d waits=%d after early break", len(pd.queries), len(rec.waits))
	}
}

func TestFetchAll_PageFailureAbortsWithoutPartialResults(t *testing.T) {
	pages := threePages()
	delete(pages, "t2")
	pd := &providerDouble{pages: pages}
	srv := httptest.NewServer(http.HandlerFunc(pd.handler))
	defer srv.Close()

	c := newTestClient(t, srv.URL, &sleepRecorder{})
	got, err := c.FetchAll(context.Background(), model.Coordinate{Lat: 1, Lng: 1})
	if err == nil {
		t.Fatal("expected error")
	}
	if got != nil {
		t.Fatalf("partial results returned: %v", got)
	}
	if !strings.Contains(err.Error(), "page 3") {
		t.Fatalf("error should name the failing page: %v", err)
	}
}

func TestFetchAll_ProviderStatusAndMalformedBodies(t *testing.T) {
	cases := map[string]struct {
		body string
		want error
	}{
		"denied":     {`{"status":"REQUEST_DENIED","error_message":"bad key"}`, ErrProviderStatus},
		"notjson":    {`<html>`, ErrMalformedResponse},
		"noresults":  {`{"status":"OK"}`, ErrMalformedResponse},
		"zeroresult": {`{"status":"ZERO_RESULTS","results":[]}`, nil},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			pd := &providerDouble{pages: map[string]string{"": tc.body}}
			srv := httptest.NewServer(http.HandlerFunc(pd.handler))
			defer srv.Close()

			c := newTestClient(t, srv.URL, &sleepRecorder{})
			got, err := c.FetchAll(context.Background(), model.Coordinate{Lat: 1, Lng: 1})
			if tc.want == nil {
				if err != nil || len(got) != 0 {
					t.Fatalf("got=%v err=%v want empty success", got, err)
				}
				return
			}
			if !errors.Is(err, tc.want) {
				t.Fatalf("err=%v want %v", err, tc.want)
			}
		})
	}
}

func TestPages_MaxPagesBoundsIteration(t *testing.T) {
	pd := &providerDouble{pages: map[string]string{
		"":     `{"status":"OK","next_page_token":"loop","results":[]}`,
		"loop": `{"status":"OK","next_page_token":"loop","results":[]}`,
	}}
	srv := httptest.NewServer(http.HandlerFunc(pd.handler))
	defer srv.Close()

	c := newTestClient(t, srv.URL, &sleepRecorder{})
	c.cfg.MaxPages = 3
	if _, err := c.FetchAll(context.Background(), model.Coordinate{Lat: 1, Lng: 1}); err != nil {
		t.Fatalf("FetchAll: %v", err)
	}
	if len(pd.queries) != 3 {
		t.Fatalf("calls=%d want 3", len(pd.queries))
	}
}

func TestPages_ZeroMaxPagesFollowsEveryToken(t *testing.T) {
	pages := map[string]string{}
	for i := range 7 {
		tok := ""
		if i > 0 {
			tok = fmt.Sprintf("t%d", i)
		}
		next := ""
		if i < 6 {
			next = fmt.Sprintf(`"next_page_token":"t%d",`, i+1)
		}
		pages[tok] = `{"status":"OK",` + next + `"results":[]}`
	}
	pd := &providerDouble{pages: pages}
	srv := httptest.NewServer(http.HandlerFunc(pd.handler))
	defer srv.Close()

	c := newTestClient(t, srv.URL, &sleepRecorder{})
	c.cfg.MaxPages = 0
	if _, err := c.FetchAll(context.Background(), model.Coordinate{Lat: 1, Lng: 1}); err != nil {
		t.Fatalf("FetchAll: %v", err)
	}
	if len(pd.queries) != 7 {
		t.Fatalf("calls=%d want 7", len(pd.queries))
	}
}

func TestPages_CancelledDuringDelay(t *testing.T) {
	pd := &providerDouble{pages: threePages()}
	srv := httptest.NewServer(http.HandlerFunc(pd.handler))
	defer srv.Close()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	c, err := New(logger, srv.Client(), Config{BaseURL: srv.URL, PageDelay: time.Hour})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)

	_, err = c.FetchAll(ctx, model.Coordinate{Lat: 1, Lng: 1})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err=%v want context.Canceled", err)
	}
	if len(pd.queries) != 1 {
		t.Fatalf("calls=%d want 1", len(pd.queries))
	}
}

func TestLinks(t *testing.T) {
	c := newTestClient(t, "https://maps.example.test/maps/api/place", &sleepRecorder{})

	got := c.PhotoURL("ref 1")
	want := "https://maps.example.test/maps/api/place/photo?maxwidth=400&photoreference=ref+1&key=secret"
	if got != want {
		t.Fatalf("photo=%q want %q", got, want)
	}

	d := DirectionsURL(model.Coordinate{Lat: 59.33, Lng: -18.5})
	if d != "https://www.google.com/maps/dir/?api=1&destination=59.33,-18.5" {
		t.Fatalf("directions=%q", d)
	}
}

func TestNew_RejectsBadBaseURL(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if _, err := New(logger, nil, Config{BaseURL: "ftp://x"}); err == nil {
		t.Fatal("expected scheme error")
	}
}
