package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestCollectorRecordsAndServes(t *testing.T) {

	c := New()
	c.RecordCacheHit()
	c.RecordCacheHit()
	c.RecordCacheMiss()
	c.RecordBuild(120 * time.Millisecond)
	c.RecordBuildFailure()
	c.RecordPing("google", "200")

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d, want 200", rec.Code)
	}

	body := rec.Body.String()
	for _, want := range []string{
		"news_sitemap_cache_hits_total 2",
		"news_sitemap_cache_misses_total 1",
		"news_sitemap_builds_total 1",
		"news_sitemap_build_failures_total 1",
		`news_sitemap_pings_total{endpoint="google",outcome="200"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}

func TestNilCollectorIsNoop(t *testing.T) {

	var c *Collector

	// None of these may panic
	c.RecordCacheHit()
	c.RecordCacheMiss()
	c.RecordBuild(time.Second)
	c.RecordBuildFailure()
	c.RecordPing("google", "error")

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("got status %d, want 404 from the nil collector", rec.Code)
	}
}
