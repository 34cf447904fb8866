package storage

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/felixgeelhaar/fortify/circuitbreaker"

	"github.com/group03/phychat-backend/internal/metrics"
	"github.com/group03/phychat-backend/internal/models"
)

// breakerTrips is the number of consecutive failures that opens a breaker
const breakerTrips = 5

// ProgressStore exposes a Repository as the engines' progress capability:
// reads never fail, they yield an unavailable snapshot instead.
// Calls go through circuit breakers so an outage fails fast; nothing is retried.
type ProgressStore struct {
	repo    Repository
	metrics *metrics.Metrics

	reads  circuitbreaker.CircuitBreaker[[]models.ProgressRecord]
	writes circuitbreaker.CircuitBreaker[*models.ProgressAck]
}

// NewProgressStore wraps repo; m may be nil
func NewProgressStore(repo Repository, m *metrics.Metrics) *ProgressStore {
	return &ProgressStore{
		repo:    repo,
		metrics: m,
		reads:   circuitbreaker.New[[]models.ProgressRecord](breakerConfig("progress_read")),
		writes:  circuitbreaker.New[*models.ProgressAck](breakerConfig("progress_write")),
	}
}

func breakerConfig(name string) circuitbreaker.Config {
	return circuitbreaker.Config{
		MaxRequests: 1,
		Interval:    30 * time.Second,
		Timeout:     15 * time.Second,
		ReadyToTrip: func(counts circuitbreaker.Counts) bool {
			return counts.ConsecutiveFailures >= breakerTrips
		},
		IsSuccessful: func(err error) bool {
			return err == nil || callerError(err)
		},
		OnStateChange: func(from, to circuitbreaker.State) {
			slog.Warn("circuit breaker state change",
				"breaker", name,
				"from", from.String(),
				"to", to.String())
		},
	}
}

// callerError reports errors caused by the request rather than the store:
// a cancelled or expired context, or an unknown challenge
func callerError(err error) bool {
	return errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, ErrNotFound)
}

// Snapshot reads a student's progress in a single attempt
func (s *ProgressStore) Snapshot(ctx context.Context, studentID string) models.ProgressSnapshot {
	if s.repo == nil {
		return models.UnavailableProgress("no progress store configured")
	}

	records, err := s.reads.Execute(ctx, func(ctx context.Context) ([]models.ProgressRecord, error) {
		return s.repo.GetStudentProgress(ctx, studentID)
	})
	if err != nil {
		slog.Warn("progress store unavailable", "student_id", studentID, "error", err)
		if !callerError(err) {
			s.metrics.StoreFailure("progress", "get")
		}
		return models.UnavailableProgress(err.Error())
	}

	return models.AvailableProgress(records)
}

// UpdateProgress forwards a status change to the repository
func (s *ProgressStore) UpdateProgress(ctx context.Context, studentID, challengeID string, status models.ProgressStatus) (*models.ProgressAck, error) {
	if s.repo == nil {
		return nil, ErrUnavailable
	}

	ack, err := s.writes.Execute(ctx, func(ctx context.Context) (*models.ProgressAck, error) {
		return s.repo.UpdateProgress(ctx, studentID, challengeID, status)
	})
	if err != nil {
		if !callerError(err) {
			s.metrics.StoreFailure("progress", "update")
		}
		return nil, err
	}
	return ack, nil
}
