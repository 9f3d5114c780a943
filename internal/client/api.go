// Package client is the consumer side of the restaurants API: it obtains a
// position, queries the server and renders the list.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/mohammed-shakir/restaurant-finder/internal/core/model"
)

type API struct {
	base *url.URL
	http *http.Client
}

func NewAPI(baseURL string, hc *http.Client) (*API, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse api url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported api url scheme %q", u.Scheme)
	}
	if u.Path == "" {
		u.Path = "/"
	}
	if hc == nil {
		hc = http.DefaultClient
	}
	return &API{base: u, http: hc}, nil
}

// APIError is a non-200 answer from the server.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api status %d: %s", e.Status, e.Message)
}

func (a *API) Restaurants(ctx context.Context, at model.Coordinate) ([]model.PlaceResult, error) {
	u := a.base.JoinPath("api", "restaurants")
	q := url.Values{}
	q.Set("lat", strconv.FormatFloat(at.Lat, 'f', -1, 64))
	q.Set("lng", strconv.FormatFloat(at.Lng, 'f', -1, 64))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := a.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		var body struct {
			Error string `json:"error"`
		}
		msg := strings.TrimSpace(string(b))
		if json.Unmarshal(b, &body) == nil && body.Error != "" {
			msg = body.Error
		}
		return nil, &APIError{Status: resp.StatusCode, Message: msg}
	}

	var out []model.PlaceResult
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode restaurants: %w", err)
	}
	return out, nil
}
