package server

import (
	"net/http"
)

func (s *Server) RegisterRoutes() http.Handler {
	mux := http.NewServeMux()

	// Register routes
	mux.HandleFunc("GET /news-sitemap.xml", s.sitemaps.SitemapHandler)
	mux.HandleFunc("POST /hooks/content", s.sitemaps.HookHandler)
	mux.HandleFunc("GET /status/{$}", s.sitemaps.StatusHandler)
	mux.HandleFunc("GET /robots.txt", s.misc.RobotsHandler)
	mux.HandleFunc("GET /healthcheck/{$}", s.misc.HealthcheckHandler)
	mux.HandleFunc("GET /health/{$}", s.misc.HealthHandler)
	mux.Handle("GET /metrics", s.metrics.Handler())

	// Chain middlwares that apply to all requests
	handler := s.mw.ApplyToAll(
		s.mw.RecoverPanic,
		s.mw.Logging,
		s.mw.RateLimit,
		s.mw.CloseBody,
		s.mw.AddHeaders,
		s.mw.Compress,
	)(mux)

	return handler
}
