package sitemaps

import (
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"slices"
	"time"

	"github.com/vlatan/news-sitemap/internal/config"
	"github.com/vlatan/news-sitemap/internal/coordinator"
	"github.com/vlatan/news-sitemap/internal/models"
)

const hookTokenHeader = "X-Hook-Token"

var validActions = []string{
	models.ActionSave,
	models.ActionDelete,
	models.ActionTrash,
	models.ActionTransition,
}

// SitemapHandler serves the news sitemap XML with conditional
// GET support. The document always comes from the coordinator,
// so concurrent readers share one build.
func (s *Service) SitemapHandler(w http.ResponseWriter, r *http.Request) {

	if !s.config.SitemapEnabled {
		http.NotFound(w, r)
		return
	}

	payload, err := s.builds.GetOrBuild(r.Context())
	if err != nil {
		log.Printf("Unable to produce the sitemap; %v", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	meta, err := s.builds.Meta(r.Context())
	if err != nil {
		log.Printf("Unable to fetch the sitemap build meta; %v", err)
	}

	w.Header().Set("Content-Type", "application/xml; charset=utf-8")
	w.Header().Set("X-Robots-Tag", "noindex, follow")

	// Without a recorded build there are no validators to offer
	if meta.IsZero() {
		w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
		writeBody(w, r, payload)
		return
	}

	etag := coordinator.ETag(payload)
	w.Header().Set("Cache-Control", fmt.Sprintf("public, max-age=%d", int(config.CacheTTL.Seconds())))
	w.Header().Set("Etag", fmt.Sprintf(`"%s"`, etag))
	w.Header().Set("Last-Modified", meta.GeneratedAt.UTC().Format(http.TimeFormat))

	if notModified(r, etag, meta.GeneratedAt) {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	writeBody(w, r, payload)
}

// HookHandler ingests content events from the CMS. Every accepted
// event purges the cache, a publish additionally arms a pre-warm.
func (s *Service) HookHandler(w http.ResponseWriter, r *http.Request) {

	if s.config.HookToken == "" {
		log.Println("Rejecting a content event, no hook token configured")
		http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
		return
	}

	token := r.Header.Get(hookTokenHeader)
	if subtle.ConstantTimeCompare([]byte(token), []byte(s.config.HookToken)) != 1 {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	var ev models.ContentEvent
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4096)).Decode(&ev); err != nil {
		http.Error(w, "invalid event payload", http.StatusBadRequest)
		return
	}

	if !slices.Contains(validActions, ev.Action) {
		http.Error(w, fmt.Sprintf("unknown action %q", ev.Action), http.StatusBadRequest)
		return
	}

	s.events.HandleEvent(ev)
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

// StatusHandler reports the sitemap state, the last build
// and the last search-engine notification.
func (s *Service) StatusHandler(w http.ResponseWriter, r *http.Request) {

	data := map[string]any{
		"enabled":     s.config.SitemapEnabled,
		"sitemap_url": s.config.SitemapURL(),
	}

	meta, err := s.builds.Meta(r.Context())
	if err != nil {
		log.Printf("Unable to fetch the sitemap build meta; %v", err)
	}
	if !meta.IsZero() {
		data["last_build"] = meta
	}

	if s.pings != nil {
		record, err := s.pings.LastRecord(r.Context())
		if err != nil {
			log.Printf("Unable to fetch the ping record; %v", err)
		}
		if !record.PingedAt.IsZero() {
			data["last_ping"] = record
		}
	}

	writeJSON(w, http.StatusOK, data)
}

// notModified checks the conditional request headers against the
// current document. Etag wins over the modification time.
func notModified(r *http.Request, etag string, generatedAt time.Time) bool {

	if match := r.Header.Get("If-None-Match"); match != "" {
		return trimETag(match) == etag
	}

	since := r.Header.Get("If-Modified-Since")
	if since == "" {
		return false
	}

	when, err := http.ParseTime(since)
	if err != nil {
		return false
	}

	return !generatedAt.Truncate(time.Second).After(when)
}
