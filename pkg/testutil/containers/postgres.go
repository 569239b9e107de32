//go:build integration

// Package containers starts throwaway infrastructure for integration tests.
package containers

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"testing"

	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"

	"supplytrail/internal/db"
)

// PostgresContainer wraps a testcontainers Postgres instance with the schema
// already migrated.
type PostgresContainer struct {
	Container testcontainers.Container
	URL       string
	DB        *sql.DB
}

// NewPostgresContainer starts a new Postgres container and applies the
// embedded migrations.
func NewPostgresContainer(t *testing.T) *PostgresContainer {
	t.Helper()

	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("supplytrail_test"),
		tcpostgres.WithUsername("postgres"),
		tcpostgres.WithPassword("postgres"),
		tcpostgres.BasicWaitStrategies(),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}
	t.Cleanup(func() {
		_ = container.Terminate(ctx)
	})

	url, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("failed to get postgres connection string: %v", err)
	}

	conn, err := db.Open(ctx, url)
	if err != nil {
		t.Fatalf("failed to connect to postgres: %v", err)
	}
	t.Cleanup(func() {
		_ = conn.Close()
	})

	if err := db.RunMigrations(ctx, conn); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	return &PostgresContainer{Container: container, URL: url, DB: conn}
}

// Truncate empties the given tables and resets their sequences. Use between
// tests to ensure isolation.
func (p *PostgresContainer) Truncate(t *testing.T, tables ...string) {
	t.Helper()
	query := fmt.Sprintf("TRUNCATE %s RESTART IDENTITY CASCADE", strings.Join(tables, ", "))
	if _, err := p.DB.Exec(query); err != nil {
		t.Fatalf("failed to truncate tables: %v", err)
	}
}
