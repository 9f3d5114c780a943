package router

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/mohammed-shakir/restaurant-finder/internal/core/model"
	"github.com/mohammed-shakir/restaurant-finder/internal/core/observability"
	"github.com/mohammed-shakir/restaurant-finder/internal/finder"
)

const RestaurantsRoute = "/api/restaurants"

var (
	ErrMissingCoordinate = errors.New("lat and lng are required")
	ErrInvalidCoordinate = errors.New("lat and lng must be valid coordinates")
)

// MsgFetchFailed is the only failure text clients see for a search.
const MsgFetchFailed = "Failed to fetch restaurants"

// Searcher serves coordinate queries.
type Searcher interface {
	Nearby(ctx context.Context, at model.Coordinate) (finder.Result, error)
}

// HandleRestaurants validates lat/lng and serves the sorted list as JSON.
// Every search failure reaches the client as the same generic 500.
func HandleRestaurants(logger *slog.Logger, s Searcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		defer func() {
			observability.ObserveHTTP(r.Method, RestaurantsRoute, sw.code, time.Since(start).Seconds())
		}()

		at, err := ParseCoordinate(r)
		if err != nil {
			logger.DebugContext(r.Context(), "rejected restaurants query", "err", err)
			msg := ErrInvalidCoordinate.Error()
			if errors.Is(err, ErrMissingCoordinate) {
				msg = ErrMissingCoordinate.Error()
			}
			writeError(sw, http.StatusBadRequest, msg)
			return
		}

		res, err := s.Nearby(r.Context(), at)
		if err != nil {
			logger.ErrorContext(r.Context(), "error fetching restaurants", "err", err, "coordinate", at.Canonical())
			writeError(sw, http.StatusInternalServerError, MsgFetchFailed)
			return
		}

		body, err := marshal(res.Places)
		if err != nil {
			logger.ErrorContext(r.Context(), "encode restaurants", "err", err)
			writeError(sw, http.StatusInternalServerError, MsgFetchFailed)
			return
		}
		sw.Header().Set("X-Cache", strings.ToUpper(res.Outcome))
		sw.Header().Set("ETag", ETag(body))
		writeJSON(sw, http.StatusOK, body)
	}
}

// ParseCoordinate reads the required lat and lng query parameters.
func ParseCoordinate(r *http.Request) (model.Coordinate, error) {
	q := r.URL.Query()
	rawLat := strings.TrimSpace(q.Get("lat"))
	rawLng := strings.TrimSpace(q.Get("lng"))
	if rawLat == "" || rawLng == "" {
		return model.Coordinate{}, ErrMissingCoordinate
	}

	lat, err := parseDegrees(rawLat, 90)
	if err != nil {
		return model.Coordinate{}, fmt.Errorf("%w: lat: %v", ErrInvalidCoordinate, err)
	}
	lng, err := parseDegrees(rawLng, 180)
	if err != nil {
		return model.Coordinate{}, fmt.Errorf("%w: lng: %v", ErrInvalidCoordinate, err)
	}
	return model.Coordinate{Lat: lat, Lng: lng}, nil
}

func parseDegrees(v string, limit float64) (float64, error) {
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("parse float: %w", err)
	}
	if math.IsNaN(f) || f < -limit || f > limit {
		return 0, fmt.Errorf("%v outside [-%v,%v]", f, limit, limit)
	}
	return f, nil
}

// ETag fingerprints a response body.
func ETag(body []byte) string {
	return fmt.Sprintf(`"%016x"`, xxhash.Sum64(body))
}

type errorBody struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, code int, msg string) {
	b, _ := marshal(errorBody{Error: msg})
	writeJSON(w, code, b)
}

// json without HTML escaping, so URLs keep their literal '&'
func marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

func writeJSON(w http.ResponseWriter, code int, body []byte) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_, _ = w.Write(body)
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}
