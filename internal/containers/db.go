// Package containers provides test container utilities
package containers

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/vlatan/news-sitemap/internal/config"
)

type dbContainer struct {
	container *postgres.PostgresContainer
}

// Terminate stops and removes the container
func (db *dbContainer) Terminate(ctx context.Context) {
	if err := db.container.Terminate(ctx); err != nil {
		log.Printf("failed to terminate container: %v", err)
	}
}

// SetupTestDB creates a PostgreSQL container and runs the migrations,
// then updates the DB host and port of the supplied config.
// Test fixtures are seeded by the tests themselves.
func SetupTestDB(ctx context.Context, cfg *config.Config, projectRoot string) (Container, error) {

	// Construct the absolute path to the migrations folder
	migrationsDir := filepath.Join(projectRoot, "migrations")

	// get the appropriate init scripts
	initScripts, err := getMigrationFiles(migrationsDir)
	if err != nil {
		return nil, err
	}

	// Create PostgreSQL container
	container, err := postgres.Run(ctx, "postgres:16.3",
		postgres.WithSQLDriver("pgx"),
		postgres.WithInitScripts(initScripts...),
		postgres.WithDatabase(cfg.DBDatabase),
		postgres.WithUsername(cfg.DBUsername),
		postgres.WithPassword(cfg.DBPassword),
		postgres.BasicWaitStrategies(),
	)

	if err != nil {
		return nil, fmt.Errorf("failed to start postgres container: %w", err)
	}

	// Get container details for connection
	host, err := container.Host(ctx)
	if err != nil {
		if cErr := container.Terminate(ctx); cErr != nil {
			log.Printf("failed to terminate container: %v", cErr)
		}
		return nil, fmt.Errorf("failed to get container host: %w", err)
	}

	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		if cErr := container.Terminate(ctx); cErr != nil {
			log.Printf("failed to terminate container: %v", cErr)
		}
		return nil, fmt.Errorf("failed to get container port: %w", err)
	}

	// Update config with container connection details
	cfg.DBHost = host
	cfg.DBPort = port.Int()

	return &dbContainer{container}, nil
}

func getMigrationFiles(migrationsDir string) ([]string, error) {
	var migrations []string

	err := filepath.Walk(migrationsDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		// Only process files ending with "up.sql"
		if !info.IsDir() && strings.HasSuffix(info.Name(), "up.sql") {
			migrations = append(migrations, path)
		}

		return nil
	})

	if err != nil {
		return nil, err
	}

	return migrations, nil
}
