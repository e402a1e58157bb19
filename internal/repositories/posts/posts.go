// Package posts is the content source of the sitemap pipeline.
// It reads published articles with their images, taxonomy terms and
// per-article overrides from the database.
package posts

import (
	"github.com/vlatan/news-sitemap/internal/config"
	"github.com/vlatan/news-sitemap/internal/drivers/database"
)

type Repository struct {
	db     database.Service
	config *config.Config
}

func New(db database.Service, config *config.Config) *Repository {
	return &Repository{
		db:     db,
		config: config,
	}
}

// SiteHost returns the hostname articles must belong to
func (r *Repository) SiteHost() string {
	return r.config.SiteHost()
}
