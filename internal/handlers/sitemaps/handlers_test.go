package sitemaps

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/vlatan/news-sitemap/internal/config"
	"github.com/vlatan/news-sitemap/internal/coordinator"
	"github.com/vlatan/news-sitemap/internal/models"
	"github.com/vlatan/news-sitemap/internal/sitemap"
)

type fakeBuilds struct {
	payload string
	meta    models.BuildMeta
	err     error
}

func (f *fakeBuilds) GetOrBuild(ctx context.Context) (string, error) {
	return f.payload, f.err
}

func (f *fakeBuilds) Meta(ctx context.Context) (models.BuildMeta, error) {
	return f.meta, nil
}

type fakeSink struct {
	events []models.ContentEvent
}

func (f *fakeSink) HandleEvent(ev models.ContentEvent) {
	f.events = append(f.events, ev)
}

type fakePings struct {
	record models.PingRecord
}

func (f *fakePings) LastRecord(ctx context.Context) (models.PingRecord, error) {
	return f.record, nil
}

func testConfig() *config.Config {
	return &config.Config{
		SitemapEnabled: true,
		Protocol:       "https",
		Domain:         "example.com",
		HookToken:      "secret",
	}
}

func TestSitemapDisabled(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.SitemapEnabled = false
	s := New(&fakeBuilds{payload: sitemap.EmptyDocument}, nil, nil, cfg)

	rec := httptest.NewRecorder()
	s.SitemapHandler(rec, httptest.NewRequest(http.MethodGet, "/news-sitemap.xml", nil))

	if rec.Code != http.StatusNotFound {
		t.Errorf("got status %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestSitemapNoPriorBuild(t *testing.T) {
	t.Parallel()

	s := New(&fakeBuilds{payload: sitemap.EmptyDocument}, nil, nil, testConfig())

	rec := httptest.NewRecorder()
	s.SitemapHandler(rec, httptest.NewRequest(http.MethodGet, "/news-sitemap.xml", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d, want %d", rec.Code, http.StatusOK)
	}
	if got := rec.Header().Get("Cache-Control"); !strings.Contains(got, "no-cache") {
		t.Errorf("Cache-Control = %q, want a non-cacheable directive", got)
	}
	if rec.Header().Get("Etag") != "" {
		t.Error("Etag offered without a recorded build")
	}
	if rec.Body.String() != sitemap.EmptyDocument {
		t.Error("body does not match the produced document")
	}
}

func TestSitemapValidators(t *testing.T) {
	t.Parallel()

	payload := sitemap.EmptyDocument
	generated := time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)
	builds := &fakeBuilds{
		payload: payload,
		meta:    models.BuildMeta{GeneratedAt: generated, Count: 0, ETag: coordinator.ETag(payload)},
	}
	s := New(builds, nil, nil, testConfig())

	rec := httptest.NewRecorder()
	s.SitemapHandler(rec, httptest.NewRequest(http.MethodGet, "/news-sitemap.xml", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d, want %d", rec.Code, http.StatusOK)
	}

	wantETag := `"` + coordinator.ETag(payload) + `"`
	if got := rec.Header().Get("Etag"); got != wantETag {
		t.Errorf("Etag = %q, want %q", got, wantETag)
	}
	if got := rec.Header().Get("Last-Modified"); got != generated.Format(http.TimeFormat) {
		t.Errorf("Last-Modified = %q, want %q", got, generated.Format(http.TimeFormat))
	}
	if got := rec.Header().Get("Cache-Control"); !strings.Contains(got, "max-age=600") {
		t.Errorf("Cache-Control = %q, want max-age=600", got)
	}
	if got := rec.Header().Get("Content-Type"); !strings.HasPrefix(got, "application/xml") {
		t.Errorf("Content-Type = %q, want application/xml", got)
	}
}

func TestSitemapConditionalGet(t *testing.T) {
	t.Parallel()

	payload := sitemap.EmptyDocument
	generated := time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)
	builds := &fakeBuilds{
		payload: payload,
		meta:    models.BuildMeta{GeneratedAt: generated, ETag: coordinator.ETag(payload)},
	}
	s := New(builds, nil, nil, testConfig())

	tests := []struct {
		name    string
		headers map[string]string
		want    int
	}{
		{
			name:    "matching etag",
			headers: map[string]string{"If-None-Match": `"` + coordinator.ETag(payload) + `"`},
			want:    http.StatusNotModified,
		},
		{
			name:    "stale etag",
			headers: map[string]string{"If-None-Match": `"deadbeef"`},
			want:    http.StatusOK,
		},
		{
			name:    "mismatched etag wins over fresh date",
			headers: map[string]string{
				"If-None-Match":     `"deadbeef"`,
				"If-Modified-Since": generated.Add(time.Hour).Format(http.TimeFormat),
			},
			want: http.StatusOK,
		},
		{
			name:    "not modified since",
			headers: map[string]string{"If-Modified-Since": generated.Format(http.TimeFormat)},
			want:    http.StatusNotModified,
		},
		{
			name:    "modified since",
			headers: map[string]string{"If-Modified-Since": generated.Add(-time.Hour).Format(http.TimeFormat)},
			want:    http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/news-sitemap.xml", nil)
			for name, value := range tt.headers {
				req.Header.Set(name, value)
			}
			rec := httptest.NewRecorder()
			s.SitemapHandler(rec, req)
			if rec.Code != tt.want {
				t.Errorf("got status %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestHookAuth(t *testing.T) {
	t.Parallel()

	sink := &fakeSink{}
	s := New(&fakeBuilds{}, sink, nil, testConfig())

	tests := []struct {
		name  string
		token string
		want  int
	}{
		{name: "missing token", token: "", want: http.StatusUnauthorized},
		{name: "wrong token", token: "nope", want: http.StatusUnauthorized},
		{name: "valid token", token: "secret", want: http.StatusAccepted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := strings.NewReader(`{"action":"save","post_type":"post"}`)
			req := httptest.NewRequest(http.MethodPost, "/hooks/content", body)
			if tt.token != "" {
				req.Header.Set(hookTokenHeader, tt.token)
			}
			rec := httptest.NewRecorder()
			s.HookHandler(rec, req)
			if rec.Code != tt.want {
				t.Errorf("got status %d, want %d", rec.Code, tt.want)
			}
		})
	}

	if len(sink.events) != 1 {
		t.Fatalf("got %d forwarded events, want 1", len(sink.events))
	}
	if sink.events[0].Action != models.ActionSave {
		t.Errorf("forwarded action = %q, want %q", sink.events[0].Action, models.ActionSave)
	}
}

func TestHookNoConfiguredToken(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.HookToken = ""
	s := New(&fakeBuilds{}, &fakeSink{}, nil, cfg)

	req := httptest.NewRequest(http.MethodPost, "/hooks/content", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	s.HookHandler(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Errorf("got status %d, want %d", rec.Code, http.StatusForbidden)
	}
}

func TestHookBadPayload(t *testing.T) {
	t.Parallel()

	sink := &fakeSink{}
	s := New(&fakeBuilds{}, sink, nil, testConfig())

	tests := []struct {
		name string
		body string
	}{
		{name: "malformed json", body: `{not json`},
		{name: "unknown action", body: `{"action":"sneeze"}`},
		{name: "empty action", body: `{}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/hooks/content", strings.NewReader(tt.body))
			req.Header.Set(hookTokenHeader, "secret")
			rec := httptest.NewRecorder()
			s.HookHandler(rec, req)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("got status %d, want %d", rec.Code, http.StatusBadRequest)
			}
		})
	}

	if len(sink.events) != 0 {
		t.Errorf("got %d forwarded events, want 0", len(sink.events))
	}
}

func TestStatus(t *testing.T) {
	t.Parallel()

	generated := time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)
	builds := &fakeBuilds{meta: models.BuildMeta{GeneratedAt: generated, Count: 7, TookMS: 42}}
	pings := &fakePings{record: models.PingRecord{
		PingedAt: generated.Add(time.Minute),
		Results:  map[string]string{"google": "ok (200)"},
	}}
	s := New(builds, nil, pings, testConfig())

	rec := httptest.NewRecorder()
	s.StatusHandler(rec, httptest.NewRequest(http.MethodGet, "/status", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d, want %d", rec.Code, http.StatusOK)
	}

	var got struct {
		Enabled    bool              `json:"enabled"`
		SitemapURL string            `json:"sitemap_url"`
		LastBuild  *models.BuildMeta `json:"last_build"`
		LastPing   *models.PingRecord `json:"last_ping"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("unable to decode the status response: %v", err)
	}

	if !got.Enabled {
		t.Error("enabled = false, want true")
	}
	if got.SitemapURL != "https://example.com/news-sitemap.xml" {
		t.Errorf("sitemap_url = %q", got.SitemapURL)
	}
	if got.LastBuild == nil || got.LastBuild.Count != 7 {
		t.Errorf("last_build = %+v, want count 7", got.LastBuild)
	}
	if got.LastPing == nil || got.LastPing.Results["google"] != "ok (200)" {
		t.Errorf("last_ping = %+v", got.LastPing)
	}
}
