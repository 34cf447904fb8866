// Package recommend picks the next debugging challenge for a student.
//
// Selection is a difficulty-progression heuristic over the catalog: the number
// of completed challenges chooses a difficulty band and a challenge is drawn
// uniformly from that band. There is no learned policy.
package recommend

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/group03/phychat-backend/internal/catalog"
	"github.com/group03/phychat-backend/internal/chance"
	"github.com/group03/phychat-backend/internal/models"
)

// Confidence bounds for a regular recommendation
const (
	MinConfidence = 0.78
	MaxConfidence = 0.92
)

// Progression thresholds over the number of completed challenges
const (
	mediumAfter   = 2 // completed >= 2 moves to Medium
	advancedAfter = 4 // completed >= 4 mixes Medium and Hard
)

// CatalogSource provides the challenge catalog
type CatalogSource interface {
	GetAllChallenges(ctx context.Context) ([]models.Challenge, error)
}

// ProgressStore reads and updates student progress.
// Snapshot must not fail: an unreachable store yields an unavailable snapshot.
type ProgressStore interface {
	Snapshot(ctx context.Context, studentID string) models.ProgressSnapshot
	UpdateProgress(ctx context.Context, studentID, challengeID string, status models.ProgressStatus) (*models.ProgressAck, error)
}

// Engine recommends challenges and records outcomes
type Engine struct {
	catalog  CatalogSource
	progress ProgressStore
	rng      chance.Source

	mu     sync.RWMutex
	cached []models.Challenge
}

// NewEngine creates a recommendation engine. catalog may be nil, in which case
// the built-in catalog is used.
func NewEngine(catalog CatalogSource, progress ProgressStore, rng chance.Source) *Engine {
	return &Engine{
		catalog:  catalog,
		progress: progress,
		rng:      rng,
	}
}

// Recommend returns the next challenge for a student. It always produces a
// result: catalog and progress failures degrade to defaults.
func (e *Engine) Recommend(ctx context.Context, studentID string) *models.Recommendation {
	completed, inProgress := e.studentProgress(ctx, studentID)

	available := subtract(e.Challenges(ctx), completed)

	slog.Debug("computing recommendation",
		"student_id", studentID,
		"completed", len(completed),
		"in_progress", len(inProgress),
		"available", len(available),
	)

	if len(available) == 0 {
		return congratulations()
	}

	picked := e.selectByDifficulty(available, len(completed))

	return &models.Recommendation{
		ChallengeID: picked.ID,
		Title:       picked.Title,
		Description: picked.Description,
		Difficulty:  picked.Difficulty,
		Reason:      e.reason(picked.Difficulty, len(completed)),
		Confidence:  chance.Uniform(e.rng, MinConfidence, MaxConfidence),
	}
}

// RecordOutcome maps an attempt result to a progress status and forwards it.
// A store failure is logged and reported as an unrecorded ack.
func (e *Engine) RecordOutcome(ctx context.Context, outcome models.Outcome) *models.ProgressAck {
	status := models.StatusForOutcome(outcome.Success)

	unrecorded := &models.ProgressAck{
		StudentID:   outcome.StudentID,
		ChallengeID: outcome.ChallengeID,
		Status:      status,
	}

	if e.progress == nil {
		return unrecorded
	}

	ack, err := e.progress.UpdateProgress(ctx, outcome.StudentID, outcome.ChallengeID, status)
	if err != nil {
		slog.Warn("failed to record outcome",
			"student_id", outcome.StudentID,
			"challenge_id", outcome.ChallengeID,
			"status", status,
			"error", err,
		)
		return unrecorded
	}

	slog.Info("outcome recorded",
		"student_id", outcome.StudentID,
		"challenge_id", outcome.ChallengeID,
		"status", status,
		"time_spent", outcome.TimeSpent,
	)
	return ack
}

// Progress returns a student's progress snapshot
func (e *Engine) Progress(ctx context.Context, studentID string) models.ProgressSnapshot {
	if e.progress == nil {
		return models.UnavailableProgress("no progress store configured")
	}
	return e.progress.Snapshot(ctx, studentID)
}

// Challenges returns the catalog. The first successful, non-empty load is
// cached for the life of the engine; failures fall back to the built-in
// catalog and are retried on the next call.
func (e *Engine) Challenges(ctx context.Context) []models.Challenge {
	e.mu.RLock()
	cached := e.cached
	e.mu.RUnlock()
	if cached != nil {
		return cached
	}

	if e.catalog == nil {
		return catalog.Defaults()
	}

	challenges, err := e.catalog.GetAllChallenges(ctx)
	if err != nil || len(challenges) == 0 {
		if err == nil {
			err = fmt.Errorf("catalog source returned no challenges")
		}
		slog.Warn("catalog unavailable, using built-in challenges", "error", err)
		return catalog.Defaults()
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cached == nil {
		e.cached = challenges
	}
	return e.cached
}

func (e *Engine) studentProgress(ctx context.Context, studentID string) (completed, inProgress []string) {
	snap := e.Progress(ctx, studentID)
	if !snap.Available() {
		slog.Warn("progress unavailable, assuming no progress",
			"student_id", studentID,
			"reason", snap.Reason(),
		)
	}
	return snap.Partition()
}

// selectByDifficulty draws from the band for the completed count, or from
// everything available when the band is empty
func (e *Engine) selectByDifficulty(available []models.Challenge, completedCount int) models.Challenge {
	var band []models.Challenge
	switch {
	case completedCount < mediumAfter:
		band = filterByDifficulty(available, models.DifficultyEasy)
	case completedCount < advancedAfter:
		band = filterByDifficulty(available, models.DifficultyMedium)
	default:
		band = filterByDifficulty(available, models.DifficultyMedium, models.DifficultyHard)
	}

	if len(band) == 0 {
		band = available
	}
	return chance.Pick(e.rng, band)
}

func (e *Engine) reason(difficulty models.Difficulty, completedCount int) string {
	templates, ok := reasonTemplates[difficulty]
	if !ok {
		templates = reasonTemplates[models.DifficultyMedium]
	}

	reason := chance.Pick(e.rng, templates)
	if reasonTakesCount(reason) {
		return fmt.Sprintf(reason, completedCount)
	}
	return reason
}

func congratulations() *models.Recommendation {
	return &models.Recommendation{
		ChallengeID: models.CompletedChallengeID,
		Title:       "🎉 All Challenges Completed!",
		Description: "Congratulations! You've mastered all available debugging challenges.",
		Difficulty:  models.DifficultyExpert,
		Reason:      "You've shown excellent debugging skills. Consider helping other students or exploring advanced topics!",
		Confidence:  1.0,
	}
}

// subtract keeps catalog order and drops every challenge whose id is in ids
func subtract(challenges []models.Challenge, ids []string) []models.Challenge {
	exclude := make(map[string]bool, len(ids))
	for _, id := range ids {
		exclude[id] = true
	}

	result := make([]models.Challenge, 0, len(challenges))
	for _, c := range challenges {
		if !exclude[c.ID] {
			result = append(result, c)
		}
	}
	return result
}

func filterByDifficulty(challenges []models.Challenge, tiers ...models.Difficulty) []models.Challenge {
	var result []models.Challenge
	for _, c := range challenges {
		for _, tier := range tiers {
			if c.Difficulty == tier {
				result = append(result, c)
				break
			}
		}
	}
	return result
}
