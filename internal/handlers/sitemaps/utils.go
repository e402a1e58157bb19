package sitemaps

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"
)

// writeBody writes the sitemap payload, logging a failed write
func writeBody(w http.ResponseWriter, r *http.Request, payload string) {
	if _, err := w.Write([]byte(payload)); err != nil {
		log.Printf("Failed to write response to %q: %v", r.URL.Path, err)
	}
}

// writeJSON serializes data to the response writer
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("Failed to encode JSON response: %v", err)
	}
}

// trimETag strips the quotes and any weak prefix from an entity tag
func trimETag(etag string) string {
	etag = strings.TrimPrefix(etag, "W/")
	return strings.Trim(etag, `"`)
}
