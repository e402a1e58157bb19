package misc

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
)

// HealthcheckHandler is a trivial liveness probe
func (s *Service) HealthcheckHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintln(w, "OK")
}

// HealthHandler reports DB and Redis health status
func (s *Service) HealthHandler(w http.ResponseWriter, r *http.Request) {

	data := map[string]any{
		"redis_status":    s.rdb.Health(r.Context()),
		"database_status": s.db.Health(r.Context()),
		"server_status":   getServerStats(),
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("Failed to encode the health response: %v", err)
	}
}

// RobotsHandler serves robots.txt with a pointer to the sitemap
func (s *Service) RobotsHandler(w http.ResponseWriter, r *http.Request) {

	var b strings.Builder
	b.WriteString("User-agent: *\n")
	b.WriteString("Allow: /\n")

	if s.config.SitemapEnabled {
		b.WriteString("\nSitemap: " + s.config.SitemapURL() + "\n")
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if _, err := w.Write([]byte(b.String())); err != nil {
		log.Printf("Failed to write response to %q: %v", r.URL.Path, err)
	}
}
