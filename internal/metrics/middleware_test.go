package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func newTestEngine() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Middleware())
	return r
}

func TestMiddlewareRecordsMatchedRoute(t *testing.T) {
	r := newTestEngine()
	r.GET("/:slug/", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	req := httptest.NewRequest(http.MethodGet, "/first-post/", http.NoBody)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}

	if val := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "/:slug/", "200")); val < 1 {
		t.Fatalf("expected http_requests_total >= 1 for route pattern, got %f", val)
	}
	if testutil.CollectAndCount(httpRequestDuration) == 0 {
		t.Fatal("expected http_request_duration_seconds to have observations")
	}
}

func TestMiddlewareCollapsesUnknownRoutes(t *testing.T) {
	r := newTestEngine()

	req := httptest.NewRequest(http.MethodGet, "/does/not/exist", http.NoBody)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if val := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "unknown", "404")); val < 1 {
		t.Fatalf("expected unknown route to be counted, got %f", val)
	}
}

func TestHandlerExposesEntryMetrics(t *testing.T) {
	EntrySavesTotal.WithLabelValues("published").Inc()

	r := newTestEngine()
	r.GET("/metrics", Handler())

	req := httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	body, err := io.ReadAll(rr.Body)
	if err != nil {
		t.Fatalf("failed to read body: %v", err)
	}
	if !strings.Contains(string(body), "entrylog_entry_saves_total") {
		t.Fatalf("expected entry save counter in exposition, got: %s", body)
	}
}

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"", "unknown"},
		{"/:slug/edit/", "/:slug/edit/"},
		{"/drafts/", "/drafts/"},
	}

	for _, tc := range tests {
		if got := normalizePath(tc.input); got != tc.expected {
			t.Errorf("normalizePath(%q) = %q, want %q", tc.input, got, tc.expected)
		}
	}
}
