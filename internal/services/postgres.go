package services

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

// PostgresChecker probes PostgreSQL over its own small database/sql pool,
// independent of the application pool
type PostgresChecker struct {
	BaseChecker
	db *sql.DB
}

// NewPostgresChecker opens a probe connection to dsn
func NewPostgresChecker(ctx context.Context, dsn string) (*PostgresChecker, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres probe: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(10 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	return &PostgresChecker{
		BaseChecker: BaseChecker{checkerType: "postgres"},
		db:          db,
	}, nil
}

// HealthCheck verifies PostgreSQL connectivity and that the schema is migrated
func (p *PostgresChecker) HealthCheck(ctx context.Context) error {
	var n int
	if err := p.db.QueryRowContext(ctx, "SELECT count(*) FROM challenges").Scan(&n); err != nil {
		return fmt.Errorf("postgres check failed: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("postgres check failed: challenges table is empty")
	}
	return nil
}

// Close closes the probe pool
func (p *PostgresChecker) Close() error {
	return p.db.Close()
}
