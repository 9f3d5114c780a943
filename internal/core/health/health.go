package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

const RootMessage = "Backend is running!"

// Root answers the bare acknowledgement served on "/".
func Root() http.HandlerFunc {
	return text(RootMessage)
}

func Liveness() http.HandlerFunc {
	return text("ok")
}

func text(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(body))
	}
}

type Pinger interface {
	Ping(ctx context.Context) error
}

// Readiness reports whether the cache backend answers a ping.
func Readiness(p Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		type resp struct {
			Status string `json:"status"`
			Error  string `json:"error,omitempty"`
		}
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		out := resp{Status: "ready"}
		code := http.StatusOK
		if err := p.Ping(ctx); err != nil {
			out = resp{Status: "not_ready", Error: "cache unavailable"}
			code = http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(out)
	}
}
