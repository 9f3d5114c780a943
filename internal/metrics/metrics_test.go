package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func scrape(t *testing.T, p *Provider) string {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	p.Handler().ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d want 200", rr.Code)
	}
	return rr.Body.String()
}

func TestProvider_RegistersStandardCollectors_AndBuildInfo(t *testing.T) {
	p := Init(Config{Build: BuildInfo{Version: "test", Revision: "r", BuildDate: "now"}})

	body := scrape(t, p)
	if !strings.Contains(body, "go_goroutines") {
		t.Fatalf("expected go_goroutines in payload; got:\n%s", body)
	}
	if !strings.Contains(body, `app_build_info{build_date="now",revision="r",version="test"} 1`) {
		t.Fatalf("expected app_build_info in payload; got:\n%s", body)
	}
}

func TestProvider_InitRegistersExtraCollectors(t *testing.T) {
	c := prometheus.NewCounter(prometheus.CounterOpts{Name: "test_searches_total", Help: "smoke"})
	p := Init(Config{}, c)
	c.Add(3)

	if got := testutil.ToFloat64(c); got != 3 {
		t.Fatalf("counter=%v want 3", got)
	}
	body := scrape(t, p)
	if !strings.Contains(body, "test_searches_total 3") {
		t.Fatalf("extra collector not served; got:\n%s", body)
	}
	if !strings.Contains(body, `version="dev"`) {
		t.Fatalf("default version label missing; got:\n%s", body)
	}
}
