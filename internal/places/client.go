// Package places queries the nearby-search endpoint of the places provider.
package places

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/mohammed-shakir/restaurant-finder/internal/core/model"
	"github.com/mohammed-shakir/restaurant-finder/internal/core/observability"
)

var (
	ErrProviderStatus    = errors.New("places: provider returned non-OK status")
	ErrMalformedResponse = errors.New("places: malformed provider response")
)

type Config struct {
	BaseURL       string
	APIKey        string
	Type          string
	PageDelay     time.Duration
	MaxPages      int
	PhotoMaxWidth int
}

// SleepFunc blocks for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

type Client struct {
	logger    *slog.Logger
	http      *http.Client
	nearbyURL *url.URL
	photoURL  *url.URL
	cfg       Config
	sleep     SleepFunc
	now       func() time.Time // for tests
}

type Option func(*Client)

// WithSleep replaces the inter-page wait, used by tests to skip real delays.
func WithSleep(fn SleepFunc) Option {
	return func(c *Client) { c.sleep = fn }
}

func New(logger *slog.Logger, hc *http.Client, cfg Config, opts ...Option) (*Client, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse places base url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("unsupported places url scheme %q", base.Scheme)
	}
	if cfg.Type == "" {
		cfg.Type = "restaurant"
	}
	if cfg.PhotoMaxWidth <= 0 {
		cfg.PhotoMaxWidth = 400
	}
	if hc == nil {
		hc = http.DefaultClient
	}
	c := &Client{
		logger:    logger,
		http:      hc,
		nearbyURL: base.JoinPath("nearbysearch", "json"),
		photoURL:  base.JoinPath("photo"),
		cfg:       cfg,
		sleep:     sleepCtx,
		now:       time.Now,
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Pages yields provider pages for a nearby search ranked by distance. The
// first request has no token; each later request reuses the previous page's
// token after the settling delay. Iteration ends after a page without a
// token, after MaxPages pages, or with a single error that ends the sequence.
func (c *Client) Pages(ctx context.Context, at model.Coordinate) iter.Seq2[Page, error] {
	return func(yield func(Page, error) bool) {
		token := ""
		for n := 1; ; n++ {
			page, err := c.fetchPage(ctx, at, token)
			if err != nil {
				yield(Page{}, fmt.Errorf("page %d: %w", n, err))
				return
			}
			page.Number = n
			if !yield(page, nil) {
				return
			}
			if page.NextPageToken == "" {
				return
			}
			if c.cfg.MaxPages > 0 && n >= c.cfg.MaxPages {
				c.logger.WarnContext(ctx, "page limit reached; ignoring next page token", "pages", n)
				return
			}
			if err := c.sleep(ctx, c.cfg.PageDelay); err != nil {
				yield(Page{}, fmt.Errorf("wait for page %d: %w", n+1, err))
				return
			}
			token = page.NextPageToken
		}
	}
}

// FetchAll drains Pages into one list, failing as a whole on any page error.
func (c *Client) FetchAll(ctx context.Context, at model.Coordinate) ([]RawPlace, error) {
	var all []RawPlace
	for page, err := range c.Pages(ctx, at) {
		if err != nil {
			return nil, err
		}
		all = append(all, page.Places...)
	}
	return all, nil
}

func (c *Client) query(at model.Coordinate, token string) url.Values {
	v := url.Values{}
	v.Set("location", at.Canonical())
	v.Set("rankby", "distance")
	v.Set("type", c.cfg.Type)
	v.Set("key", c.cfg.APIKey)
	if token != "" {
		v.Set("pagetoken", token)
	}
	return v
}

func (c *Client) fetchPage(ctx context.Context, at model.Coordinate, token string) (Page, error) {
	u := *c.nearbyURL
	u.RawQuery = c.query(at, token).Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return Page{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	start := c.now()
	page, err := c.do(req)
	observability.ObserveUpstreamLatency("places", err, c.now().Sub(start).Seconds())
	if err != nil {
		return Page{}, err
	}
	observability.IncProviderPage()
	return page, nil
}

func (c *Client) do(req *http.Request) (Page, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return Page{}, fmt.Errorf("do request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 8<<10))
		return Page{}, fmt.Errorf("upstream status %d: %s", resp.StatusCode, string(b))
	}

	var body nearbyResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Page{}, fmt.Errorf("%w: decode: %v", ErrMalformedResponse, err)
	}
	switch body.Status {
	case "OK", "ZERO_RESULTS":
	default:
		return Page{}, fmt.Errorf("%w: %s %s", ErrProviderStatus, body.Status, body.ErrorMessage)
	}
	if body.Results == nil {
		return Page{}, fmt.Errorf("%w: missing results", ErrMalformedResponse)
	}

	page := Page{NextPageToken: body.NextPageToken}
	for _, p := range body.Results {
		if !p.HasLocation() {
			page.Discarded++
			continue
		}
		page.Places = append(page.Places, p)
	}
	return page, nil
}

// PhotoURL links to the provider photo for ref.
func (c *Client) PhotoURL(ref string) string {
	u := *c.photoURL
	u.RawQuery = "maxwidth=" + strconv.Itoa(c.cfg.PhotoMaxWidth) +
		"&photoreference=" + url.QueryEscape(ref) +
		"&key=" + url.QueryEscape(c.cfg.APIKey)
	return u.String()
}

// DirectionsURL links to map directions ending at dest.
func DirectionsURL(dest model.Coordinate) string {
	return "https://www.google.com/maps/dir/?api=1&destination=" + dest.Canonical()
}
