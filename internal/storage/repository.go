package storage

import (
	"context"
	"errors"

	"github.com/group03/phychat-backend/internal/models"
)

var (
	// ErrNotFound is returned when a referenced record does not exist
	ErrNotFound = errors.New("not found")
	// ErrUnavailable is returned when no backing store is configured
	ErrUnavailable = errors.New("store unavailable")
)

// Repository defines the interface for challenge and progress persistence
type Repository interface {
	// Challenges
	GetAllChallenges(ctx context.Context) ([]models.Challenge, error)

	// Progress
	GetStudentProgress(ctx context.Context, studentID string) ([]models.ProgressRecord, error)
	UpdateProgress(ctx context.Context, studentID, challengeID string, status models.ProgressStatus) (*models.ProgressAck, error)

	// Health
	Ping(ctx context.Context) error
	Close() error
}

// HistoryStore defines the interface for conversation history persistence
type HistoryStore interface {
	// GetConversationHistory returns up to limit most recent messages, oldest first
	GetConversationHistory(ctx context.Context, conversationID string, limit int) ([]models.ChatMessage, error)
	SaveMessage(ctx context.Context, msg *models.ChatMessage) error

	Ping(ctx context.Context) error
	Close() error
}
