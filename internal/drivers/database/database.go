package database

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/vlatan/news-sitemap/internal/config"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Service represents a service that interacts with a database.
type Service interface {
	// Query many rows
	Query(ctx context.Context, query string, args ...any) (pgx.Rows, error)
	// Query single row
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	// Execute a query (update, insert, delete)
	Exec(ctx context.Context, query string, args ...any) (int64, error)
	// A map of health status information.
	Health(ctx context.Context) map[string]any
	// Closes the pool and terminates the database connection.
	Close()
}

type service struct {
	db     *pgxpool.Pool
	config *config.Config
}

// Produce new database service
func New(cfg *config.Config) (Service, error) {

	if cfg == nil {
		return nil, errors.New("unable to create DB service with nil config")
	}

	// Database URL
	connStr := fmt.Sprintf("postgres://%s:%s@%s:%d/%s",
		cfg.DBUsername,
		cfg.DBPassword,
		cfg.DBHost,
		cfg.DBPort,
		cfg.DBDatabase,
	)

	// Parse the config
	poolConfig, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, err
	}

	// Min 1 iddle connection,
	// to avoid creating NEW connections on low traffic sites.
	poolConfig.MinIdleConns = 1
	poolConfig.MaxConns = cfg.DBMaxConns

	db, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		return nil, err
	}

	return &service{db: db, config: cfg}, nil
}

// Query many rows
func (s *service) Query(ctx context.Context, query string, args ...any) (pgx.Rows, error) {
	return s.db.Query(ctx, query, args...)
}

// Query single row
func (s *service) QueryRow(ctx context.Context, query string, args ...any) pgx.Row {
	return s.db.QueryRow(ctx, query, args...)
}

// Execute a query (update, insert, delete)
func (s *service) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	result, err := s.db.Exec(ctx, query, args...)
	return result.RowsAffected(), err
}

// Check if the database pool is healthy
func (s *service) Health(ctx context.Context) map[string]any {

	if err := s.db.Ping(ctx); err != nil {
		return map[string]any{
			"status": "unhealthy",
			"error":  err.Error(),
		}
	}

	stats := s.db.Stat()
	return map[string]any{
		"status":            "healthy",
		"total_conns":       stats.TotalConns(),
		"idle_conns":        stats.IdleConns(),
		"acquired_conns":    stats.AcquiredConns(),
		"new_conns_count":   stats.NewConnsCount(),
		"max_conns":         stats.MaxConns(),
		"acquire_count":     stats.AcquireCount(),
		"acquire_duration":  stats.AcquireDuration().String(),
		"canceled_acquires": stats.CanceledAcquireCount(),
	}
}

// Close closes the database connection.
// It logs a message indicating the disconnection from the specific database.
func (s *service) Close() {
	log.Printf("Disconnected from database: %s", s.config.DBHost)
	s.db.Close()
}
