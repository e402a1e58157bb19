// Package sitemaps serves the news sitemap and its surrounding
// surfaces, the content webhook and the status endpoint.
package sitemaps

import (
	"context"

	"github.com/vlatan/news-sitemap/internal/config"
	"github.com/vlatan/news-sitemap/internal/models"
)

// BuildService is the slice of the build coordinator the handlers need
type BuildService interface {
	GetOrBuild(ctx context.Context) (string, error)
	Meta(ctx context.Context) (models.BuildMeta, error)
}

// EventSink receives content events from the webhook
type EventSink interface {
	HandleEvent(ev models.ContentEvent)
}

// PingService exposes the last search-engine notification
type PingService interface {
	LastRecord(ctx context.Context) (models.PingRecord, error)
}

type Service struct {
	builds BuildService
	events EventSink
	pings  PingService
	config *config.Config
}

func New(builds BuildService, events EventSink, pings PingService, config *config.Config) *Service {
	return &Service{
		builds: builds,
		events: events,
		pings:  pings,
		config: config,
	}
}
