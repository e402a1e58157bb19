// Package misc holds the small operational endpoints,
// health reporting and robots.txt.
package misc

import (
	"github.com/vlatan/news-sitemap/internal/config"
	"github.com/vlatan/news-sitemap/internal/drivers/database"
	"github.com/vlatan/news-sitemap/internal/drivers/rdb"
)

type Service struct {
	config *config.Config
	db     database.Service
	rdb    *rdb.Service
}

func New(config *config.Config, db database.Service, rdb *rdb.Service) *Service {
	return &Service{
		config: config,
		db:     db,
		rdb:    rdb,
	}
}
