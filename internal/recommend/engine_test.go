package recommend

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/group03/phychat-backend/internal/catalog"
	"github.com/group03/phychat-backend/internal/chance"
	"github.com/group03/phychat-backend/internal/models"
)

type fakeCatalog struct {
	mu         sync.Mutex
	challenges []models.Challenge
	err        error
	calls      int
}

func (f *fakeCatalog) GetAllChallenges(ctx context.Context) ([]models.Challenge, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.challenges, nil
}

type fakeProgress struct {
	snapshot  models.ProgressSnapshot
	updateErr error
	updates   []models.ProgressRecord
}

func (f *fakeProgress) Snapshot(ctx context.Context, studentID string) models.ProgressSnapshot {
	return f.snapshot
}

func (f *fakeProgress) UpdateProgress(ctx context.Context, studentID, challengeID string, status models.ProgressStatus) (*models.ProgressAck, error) {
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	f.updates = append(f.updates, models.ProgressRecord{StudentID: studentID, ChallengeID: challengeID, Status: status})
	return &models.ProgressAck{ID: "ack-1", StudentID: studentID, ChallengeID: challengeID, Status: status, Recorded: true}, nil
}

func completedSnapshot(ids ...string) models.ProgressSnapshot {
	records := make([]models.ProgressRecord, 0, len(ids))
	for _, id := range ids {
		records = append(records, models.ProgressRecord{StudentID: "s", ChallengeID: id, Status: models.ProgressCompleted})
	}
	return models.AvailableProgress(records)
}

func newTestEngine(progress models.ProgressSnapshot, seed uint64) *Engine {
	return NewEngine(&fakeCatalog{challenges: catalog.Defaults()}, &fakeProgress{snapshot: progress}, chance.New(seed))
}

func difficultyOf(id string) models.Difficulty {
	for _, c := range catalog.Defaults() {
		if c.ID == id {
			return c.Difficulty
		}
	}
	return ""
}

func TestRecommendProgression(t *testing.T) {
	tests := []struct {
		name      string
		completed []string
		allowed   []models.Difficulty
	}{
		{name: "no progress starts easy", completed: nil, allowed: []models.Difficulty{models.DifficultyEasy}},
		{name: "one completed stays easy", completed: []string{"1"}, allowed: []models.Difficulty{models.DifficultyEasy}},
		{name: "two completed moves to medium", completed: []string{"1", "2"}, allowed: []models.Difficulty{models.DifficultyMedium}},
		{name: "three completed stays medium", completed: []string{"1", "2", "4"}, allowed: []models.Difficulty{models.DifficultyMedium}},
		{name: "four completed mixes medium and hard", completed: []string{"1", "2", "3", "4"}, allowed: []models.Difficulty{models.DifficultyMedium, models.DifficultyHard}},
		{name: "five completed leaves hard", completed: []string{"1", "2", "3", "4", "5"}, allowed: []models.Difficulty{models.DifficultyHard}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for seed := uint64(1); seed <= 50; seed++ {
				rec := newTestEngine(completedSnapshot(tt.completed...), seed).Recommend(context.Background(), "s")

				assert.NotContains(t, tt.completed, rec.ChallengeID)
				assert.Contains(t, tt.allowed, rec.Difficulty)
				assert.Equal(t, difficultyOf(rec.ChallengeID), rec.Difficulty)
				assert.GreaterOrEqual(t, rec.Confidence, MinConfidence)
				assert.LessOrEqual(t, rec.Confidence, MaxConfidence)
			}
		})
	}
}

func TestRecommendFallsBackToAnyAvailable(t *testing.T) {
	// Two completed but no Medium left: the Medium band is empty
	challenges := []models.Challenge{
		{ID: "a", Title: "A", Difficulty: models.DifficultyEasy},
		{ID: "b", Title: "B", Difficulty: models.DifficultyEasy},
		{ID: "c", Title: "C", Difficulty: models.DifficultyEasy},
		{ID: "d", Title: "D", Difficulty: models.DifficultyHard},
	}

	seen := map[string]bool{}
	for seed := uint64(1); seed <= 100; seed++ {
		engine := NewEngine(&fakeCatalog{challenges: challenges}, &fakeProgress{snapshot: completedSnapshot("a", "b")}, chance.New(seed))
		rec := engine.Recommend(context.Background(), "s")
		require.NotEqual(t, models.CompletedChallengeID, rec.ChallengeID)
		seen[rec.ChallengeID] = true
	}

	assert.Equal(t, map[string]bool{"c": true, "d": true}, seen)
}

func TestRecommendEasyBandEmptyForNewStudent(t *testing.T) {
	challenges := []models.Challenge{
		{ID: "m", Title: "M", Difficulty: models.DifficultyMedium},
	}
	engine := NewEngine(&fakeCatalog{challenges: challenges}, &fakeProgress{snapshot: completedSnapshot()}, chance.New(5))

	rec := engine.Recommend(context.Background(), "s")
	assert.Equal(t, "m", rec.ChallengeID)
}

func TestRecommendAllCompleted(t *testing.T) {
	engine := newTestEngine(completedSnapshot("1", "2", "3", "4", "5", "6"), 9)

	rec := engine.Recommend(context.Background(), "s")

	assert.Equal(t, "completed", rec.ChallengeID)
	assert.Equal(t, models.DifficultyExpert, rec.Difficulty)
	assert.Equal(t, 1.0, rec.Confidence)
	assert.True(t, rec.IsTerminal())
}

func TestRecommendIgnoresInProgress(t *testing.T) {
	snap := models.AvailableProgress([]models.ProgressRecord{
		{ChallengeID: "1", Status: models.ProgressInProgress},
		{ChallengeID: "2", Status: models.ProgressInProgress},
	})

	// In-progress challenges stay available and do not count as completed
	seen := map[string]bool{}
	for seed := uint64(1); seed <= 60; seed++ {
		rec := newTestEngine(snap, seed).Recommend(context.Background(), "s")
		assert.Equal(t, models.DifficultyEasy, rec.Difficulty)
		seen[rec.ChallengeID] = true
	}
	assert.True(t, seen["1"] || seen["2"])
}

func TestRecommendUnavailableProgressIsZeroProgress(t *testing.T) {
	engine := newTestEngine(models.UnavailableProgress("timeout"), 3)

	rec := engine.Recommend(context.Background(), "s")
	assert.Equal(t, models.DifficultyEasy, rec.Difficulty)
}

func TestRecommendNilProgressStore(t *testing.T) {
	engine := NewEngine(nil, nil, chance.New(4))

	rec := engine.Recommend(context.Background(), "s")
	assert.Equal(t, models.DifficultyEasy, rec.Difficulty)
}

func TestRecommendIsDeterministicForSeed(t *testing.T) {
	a := newTestEngine(completedSnapshot("1"), 42).Recommend(context.Background(), "s")
	b := newTestEngine(completedSnapshot("1"), 42).Recommend(context.Background(), "s")
	assert.Equal(t, a, b)
}

func TestRecommendReason(t *testing.T) {
	for seed := uint64(1); seed <= 40; seed++ {
		rec := newTestEngine(completedSnapshot("1", "2", "4"), seed).Recommend(context.Background(), "s")
		require.Equal(t, models.DifficultyMedium, rec.Difficulty)

		assert.NotContains(t, rec.Reason, "%d")
		if strings.HasPrefix(rec.Reason, "You've completed") {
			assert.Equal(t, "You've completed 3 challenges! Ready for the next level.", rec.Reason)
		} else {
			assert.Contains(t, reasonTemplates[models.DifficultyMedium], rec.Reason)
		}
	}
}

func TestReasonUnknownDifficultyUsesMedium(t *testing.T) {
	engine := NewEngine(nil, nil, chance.New(8))
	for i := 0; i < 20; i++ {
		reason := engine.reason("Legendary", 7)
		valid := []string{
			fmt.Sprintf(reasonTemplates[models.DifficultyMedium][0], 7),
			reasonTemplates[models.DifficultyMedium][1],
			reasonTemplates[models.DifficultyMedium][2],
		}
		assert.Contains(t, valid, reason)
	}
}

func TestChallengesCaching(t *testing.T) {
	ctx := context.Background()

	t.Run("success is cached", func(t *testing.T) {
		source := &fakeCatalog{challenges: catalog.Defaults()[:2]}
		engine := NewEngine(source, nil, chance.New(1))

		assert.Len(t, engine.Challenges(ctx), 2)
		assert.Len(t, engine.Challenges(ctx), 2)
		assert.Equal(t, 1, source.calls)
	})

	t.Run("failure falls back and retries", func(t *testing.T) {
		source := &fakeCatalog{err: errors.New("db down")}
		engine := NewEngine(source, nil, chance.New(1))

		assert.Equal(t, catalog.Defaults(), engine.Challenges(ctx))

		source.mu.Lock()
		source.err = nil
		source.challenges = catalog.Defaults()[:3]
		source.mu.Unlock()

		assert.Len(t, engine.Challenges(ctx), 3)
		assert.Equal(t, 2, source.calls)
	})

	t.Run("empty catalog falls back", func(t *testing.T) {
		engine := NewEngine(&fakeCatalog{}, nil, chance.New(1))
		assert.Equal(t, catalog.Defaults(), engine.Challenges(ctx))
	})

	t.Run("nil source uses defaults", func(t *testing.T) {
		engine := NewEngine(nil, nil, chance.New(1))
		assert.Equal(t, catalog.Defaults(), engine.Challenges(ctx))
	})
}

func TestRecordOutcome(t *testing.T) {
	ctx := context.Background()

	t.Run("success completes", func(t *testing.T) {
		progress := &fakeProgress{}
		engine := NewEngine(nil, progress, chance.New(1))

		ack := engine.RecordOutcome(ctx, models.Outcome{StudentID: "s", ChallengeID: "3", Success: true, TimeSpent: 120})
		assert.True(t, ack.Recorded)
		assert.Equal(t, models.ProgressCompleted, ack.Status)
		require.Len(t, progress.updates, 1)
		assert.Equal(t, models.ProgressCompleted, progress.updates[0].Status)
	})

	t.Run("failure stays in progress", func(t *testing.T) {
		progress := &fakeProgress{}
		engine := NewEngine(nil, progress, chance.New(1))

		ack := engine.RecordOutcome(ctx, models.Outcome{StudentID: "s", ChallengeID: "3", Success: false})
		assert.Equal(t, models.ProgressInProgress, ack.Status)
		assert.Equal(t, models.ProgressInProgress, progress.updates[0].Status)
	})

	t.Run("store failure is not propagated", func(t *testing.T) {
		engine := NewEngine(nil, &fakeProgress{updateErr: errors.New("db down")}, chance.New(1))

		ack := engine.RecordOutcome(ctx, models.Outcome{StudentID: "s", ChallengeID: "3", Success: true})
		require.NotNil(t, ack)
		assert.False(t, ack.Recorded)
		assert.Equal(t, models.ProgressCompleted, ack.Status)
	})

	t.Run("no store", func(t *testing.T) {
		ack := NewEngine(nil, nil, chance.New(1)).RecordOutcome(ctx, models.Outcome{StudentID: "s", ChallengeID: "1", Success: true})
		assert.False(t, ack.Recorded)
	})
}

func TestRecommendConcurrentStudents(t *testing.T) {
	engine := newTestEngine(completedSnapshot("1", "2"), 77)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rec := engine.Recommend(context.Background(), fmt.Sprintf("student-%d", i))
			assert.Equal(t, models.DifficultyMedium, rec.Difficulty)
		}(i)
	}
	wg.Wait()
}
