package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/group03/phychat-backend/internal/models"
)

// foreignKeyViolation is the PostgreSQL error code for a missing referenced row
const foreignKeyViolation = "23503"

// PostgresRepository implements Repository using PostgreSQL
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// PostgresConfig holds PostgreSQL connection configuration
type PostgresConfig struct {
	DSN         string
	MaxConns    int32
	MinConns    int32
	MaxLifetime time.Duration
}

// NewPostgresRepository creates a new PostgreSQL repository
func NewPostgresRepository(ctx context.Context, cfg PostgresConfig) (*PostgresRepository, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to parse DSN: %w", err)
	}

	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = cfg.MaxConns
	} else {
		poolConfig.MaxConns = 10
	}

	if cfg.MinConns > 0 {
		poolConfig.MinConns = cfg.MinConns
	}

	if cfg.MaxLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.MaxLifetime
	} else {
		poolConfig.MaxConnLifetime = 30 * time.Minute
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresRepository{pool: pool}, nil
}

// Migrate applies pending migrations from dir
func (r *PostgresRepository) Migrate(ctx context.Context, dir string) (int, error) {
	return RunMigrations(ctx, r.pool, dir)
}

// Ping checks database connectivity
func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// Close closes the database connection pool
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

// GetAllChallenges returns the catalog ordered by position
func (r *PostgresRepository) GetAllChallenges(ctx context.Context) ([]models.Challenge, error) {
	query := `
		SELECT id, title, description, difficulty, error_type
		FROM challenges
		ORDER BY position ASC
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list challenges: %w", err)
	}
	defer rows.Close()

	var challenges []models.Challenge
	for rows.Next() {
		var c models.Challenge
		var difficulty, errorType string

		if err := rows.Scan(&c.ID, &c.Title, &c.Description, &difficulty, &errorType); err != nil {
			return nil, fmt.Errorf("failed to scan challenge: %w", err)
		}

		c.Difficulty = models.Difficulty(difficulty)
		c.ErrorType = models.ErrorType(errorType)
		challenges = append(challenges, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating challenges: %w", err)
	}

	return challenges, nil
}

// GetStudentProgress returns every progress record of a student, oldest update first
func (r *PostgresRepository) GetStudentProgress(ctx context.Context, studentID string) ([]models.ProgressRecord, error) {
	query := `
		SELECT student_id, challenge_id, status, updated_at
		FROM student_progress
		WHERE student_id = $1
		ORDER BY updated_at ASC, challenge_id ASC
	`

	rows, err := r.pool.Query(ctx, query, studentID)
	if err != nil {
		return nil, fmt.Errorf("failed to get student progress: %w", err)
	}
	defer rows.Close()

	records := make([]models.ProgressRecord, 0)
	for rows.Next() {
		var rec models.ProgressRecord
		var status string

		if err := rows.Scan(&rec.StudentID, &rec.ChallengeID, &status, &rec.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan progress: %w", err)
		}

		rec.Status = models.ProgressStatus(status)
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating progress: %w", err)
	}

	return records, nil
}

// UpdateProgress upserts a student's status on a challenge (last write wins)
func (r *PostgresRepository) UpdateProgress(ctx context.Context, studentID, challengeID string, status models.ProgressStatus) (*models.ProgressAck, error) {
	query := `
		INSERT INTO student_progress (id, student_id, challenge_id, status, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (student_id, challenge_id)
		DO UPDATE SET status = EXCLUDED.status, updated_at = EXCLUDED.updated_at
		RETURNING id::text
	`

	var id string
	err := r.pool.QueryRow(ctx, query, uuid.NewString(), studentID, challengeID, string(status)).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolation {
			return nil, fmt.Errorf("challenge %s: %w", challengeID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to update progress: %w", err)
	}

	return &models.ProgressAck{
		ID:          id,
		StudentID:   studentID,
		ChallengeID: challengeID,
		Status:      status,
		Recorded:    true,
	}, nil
}
