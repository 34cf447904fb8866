package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/group03/phychat-backend/internal/catalog"
	"github.com/group03/phychat-backend/internal/models"
)

// MemoryRepository implements Repository in process memory.
// It serves the built-in catalog and is used when no database is configured.
type MemoryRepository struct {
	mu         sync.RWMutex
	challenges []models.Challenge
	known      map[string]bool
	progress   map[string]map[string]models.ProgressRecord
	now        func() time.Time
}

// NewMemoryRepository creates a repository seeded with the given challenges,
// or the built-in catalog when none are given
func NewMemoryRepository(challenges ...models.Challenge) *MemoryRepository {
	if len(challenges) == 0 {
		challenges = catalog.Defaults()
	}

	known := make(map[string]bool, len(challenges))
	for _, c := range challenges {
		known[c.ID] = true
	}

	return &MemoryRepository{
		challenges: challenges,
		known:      known,
		progress:   make(map[string]map[string]models.ProgressRecord),
		now:        time.Now,
	}
}

// GetAllChallenges returns a copy of the seeded catalog
func (m *MemoryRepository) GetAllChallenges(ctx context.Context) ([]models.Challenge, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]models.Challenge, len(m.challenges))
	copy(result, m.challenges)
	return result, nil
}

// GetStudentProgress returns a student's records, oldest update first
func (m *MemoryRepository) GetStudentProgress(ctx context.Context, studentID string) ([]models.ProgressRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	records := make([]models.ProgressRecord, 0, len(m.progress[studentID]))
	for _, rec := range m.progress[studentID] {
		records = append(records, rec)
	}

	sort.Slice(records, func(i, j int) bool {
		if records[i].UpdatedAt.Equal(records[j].UpdatedAt) {
			return records[i].ChallengeID < records[j].ChallengeID
		}
		return records[i].UpdatedAt.Before(records[j].UpdatedAt)
	})

	return records, nil
}

// UpdateProgress sets a student's status on a challenge (last write wins)
func (m *MemoryRepository) UpdateProgress(ctx context.Context, studentID, challengeID string, status models.ProgressStatus) (*models.ProgressAck, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.known[challengeID] {
		return nil, fmt.Errorf("challenge %s: %w", challengeID, ErrNotFound)
	}

	byChallenge, ok := m.progress[studentID]
	if !ok {
		byChallenge = make(map[string]models.ProgressRecord)
		m.progress[studentID] = byChallenge
	}

	byChallenge[challengeID] = models.ProgressRecord{
		StudentID:   studentID,
		ChallengeID: challengeID,
		Status:      status,
		UpdatedAt:   m.now(),
	}

	return &models.ProgressAck{
		ID:          uuid.NewString(),
		StudentID:   studentID,
		ChallengeID: challengeID,
		Status:      status,
		Recorded:    true,
	}, nil
}

// Ping always succeeds
func (m *MemoryRepository) Ping(ctx context.Context) error {
	return nil
}

// Close is a no-op
func (m *MemoryRepository) Close() error {
	return nil
}
