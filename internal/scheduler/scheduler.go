// Package scheduler reacts to content events and periodic timers,
// keeping the sitemap cache purged and pre-warmed so readers rarely
// hit a cold cache.
package scheduler

import (
	"context"
	"errors"
	"log"
	"slices"
	"sync"
	"time"

	"github.com/vlatan/news-sitemap/internal/config"
	"github.com/vlatan/news-sitemap/internal/coordinator"
	"github.com/vlatan/news-sitemap/internal/models"
	"github.com/vlatan/news-sitemap/internal/notifier"
)

// How long one scheduled rebuild may take, fetch and pings included
const rebuildTimeout = 30 * time.Second

// Rebuilder is the slice of the build coordinator the scheduler needs
type Rebuilder interface {
	Rebuild(ctx context.Context) (models.BuildMeta, error)
	Purge(ctx context.Context) error
}

// Pinger notifies the search engines after a successful rebuild
type Pinger interface {
	Notify(ctx context.Context, force bool) ([]notifier.Result, error)
}

type Scheduler struct {
	co     Rebuilder
	pinger Pinger
	config *config.Config

	prewarmDelay time.Duration
	interval     time.Duration

	mu       sync.Mutex
	debounce *time.Timer
}

func New(co Rebuilder, pinger Pinger, cfg *config.Config) *Scheduler {

	// The periodic rebuild is a safety net, it only needs to fire
	// about as often as the cache expires.
	interval := max(config.CacheTTL, time.Minute)

	return &Scheduler{
		co:           co,
		pinger:       pinger,
		config:       cfg,
		prewarmDelay: config.PrewarmDelay,
		interval:     interval,
	}
}

// HandleEvent processes one content mutation. Every event purges the
// cache. A transition into published state for a configured post type
// additionally arms a debounced pre-warm, so a burst of edits
// collapses into a single rebuild.
func (s *Scheduler) HandleEvent(ev models.ContentEvent) {

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.co.Purge(ctx); err != nil {
		log.Printf("Error purging the sitemap cache; %v", err)
	}

	if !ev.Publishes() || !slices.Contains(s.config.PostTypes, ev.PostType) {
		return
	}

	s.schedulePrewarm()
}

// schedulePrewarm arms the debounce timer, or pushes it back
// if it is already armed.
func (s *Scheduler) schedulePrewarm() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.debounce != nil {
		s.debounce.Reset(s.prewarmDelay)
		return
	}

	s.debounce = time.AfterFunc(s.prewarmDelay, func() {
		s.mu.Lock()
		s.debounce = nil
		s.mu.Unlock()
		s.prewarm()
	})
}

// Start runs the periodic refresh until the context is canceled.
// The first rebuild happens right away so the first reader is fast.
func (s *Scheduler) Start(ctx context.Context) {

	log.Printf("Refresh scheduler running, rebuilding every %s", s.interval)
	s.prewarm()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	defer s.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Refresh scheduler stopped")
			return
		case <-ticker.C:
			s.prewarm()
		}
	}
}

// Stop cancels any armed pre-warm. Safe to call repeatedly.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.debounce != nil {
		s.debounce.Stop()
		s.debounce = nil
	}
}

// prewarm rebuilds the sitemap through the single-flight coordinator
// and notifies the search engines on success. A concurrent build is
// a skip, not a failure.
func (s *Scheduler) prewarm() {

	if !s.config.SitemapEnabled {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), rebuildTimeout)
	defer cancel()

	meta, err := s.co.Rebuild(ctx)
	switch {
	case errors.Is(err, coordinator.ErrBuildInProgress):
		log.Println("Skipping the scheduled rebuild, another build is in flight")
		return
	case err != nil:
		log.Printf("Scheduled rebuild failed; %v", err)
		return
	}

	log.Printf("Sitemap rebuilt with %d entries in %dms", meta.Count, meta.TookMS)

	if !s.config.PingEnabled || s.pinger == nil {
		return
	}

	if _, err := s.pinger.Notify(ctx, false); err != nil && !errors.Is(err, notifier.ErrThrottled) {
		log.Printf("Search engine ping failed; %v", err)
	}
}
