// Package httpclient configures the HTTP client used to call the places provider.
package httpclient

import (
	"net"
	"net/http"
	"time"
)

const UserAgent = "restaurant-finder/1.0"

// NewOutbound creates the client for provider calls. A zero timeout leaves
// only the dial and TLS handshake limits in place.
func NewOutbound(timeout time.Duration) *http.Client {
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: 5 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          64,
		MaxIdleConnsPerHost:   16,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	return &http.Client{
		Transport: userAgent{next: transport},
		Timeout:   timeout,
	}
}

type userAgent struct {
	next http.RoundTripper
}

func (u userAgent) RoundTrip(r *http.Request) (*http.Response, error) {
	if r.Header.Get("User-Agent") == "" {
		r = r.Clone(r.Context())
		r.Header.Set("User-Agent", UserAgent)
	}
	return u.next.RoundTrip(r)
}
