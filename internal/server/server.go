package server

import (
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/vlatan/news-sitemap/internal/config"
	"github.com/vlatan/news-sitemap/internal/coordinator"
	"github.com/vlatan/news-sitemap/internal/drivers/database"
	"github.com/vlatan/news-sitemap/internal/drivers/rdb"
	"github.com/vlatan/news-sitemap/internal/handlers/misc"
	"github.com/vlatan/news-sitemap/internal/handlers/sitemaps"
	"github.com/vlatan/news-sitemap/internal/metrics"
	"github.com/vlatan/news-sitemap/internal/middlewares"
	"github.com/vlatan/news-sitemap/internal/notifier"
	postsRepo "github.com/vlatan/news-sitemap/internal/repositories/posts"
	"github.com/vlatan/news-sitemap/internal/scheduler"
	"github.com/vlatan/news-sitemap/internal/sitemap"
)

type Server struct {
	sitemaps  *sitemaps.Service
	misc      *misc.Service
	mw        *middlewares.Service
	metrics   *metrics.Collector
	scheduler *scheduler.Scheduler
	cleanup   func() error

	Domain     string
	HttpServer *http.Server
}

// Create new HTTP server
func NewServer() *Server {

	// Init config
	cfg := config.New()

	// Create database service
	db, err := database.New(cfg)
	if err != nil {
		log.Fatalf("couldn't create DB service; %v", err)
	}

	// Create Redis service
	rdb, err := rdb.New(cfg)
	if err != nil {
		log.Fatalf("couldn't create Redis service; %v", err)
	}

	// Create DB repositories
	postsRepo := postsRepo.New(db, cfg)

	// Create the metrics collector
	m := metrics.New()

	// Assemble the build pipeline
	coord := coordinator.New(rdb, postsRepo, sitemap.Options{
		SiteHost:            cfg.SiteHost(),
		PublicationName:     cfg.Publication(),
		Language:            cfg.NewsLanguage(),
		MaxURLs:             config.MaxURLs,
		RespectNoindex:      config.RespectNoindex,
		EmitKeywords:        cfg.EmitKeywords,
		DefaultGenres:       cfg.DefaultGenres,
		DefaultImageLicense: cfg.DefaultImageLicense,
	}, m)
	pings := notifier.New(rdb, cfg, m)
	sched := scheduler.New(coord, pings, cfg)

	// Create new server service
	s := &Server{
		sitemaps:  sitemaps.New(coord, sched, pings, cfg),
		misc:      misc.New(cfg, db, rdb),
		mw:        middlewares.New(cfg),
		metrics:   m,
		scheduler: sched,
		cleanup: func() error {
			db.Close()
			return rdb.Client.Close()
		},

		Domain: cfg.Domain,
		HttpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			IdleTimeout:  time.Minute,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
	}

	s.HttpServer.Handler = s.RegisterRoutes()

	return s
}
