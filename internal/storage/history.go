package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/group03/phychat-backend/internal/models"
)

// RedisHistoryStore keeps each conversation as a capped Redis list of JSON messages
type RedisHistoryStore struct {
	client      *redis.Client
	maxMessages int
	ttl         time.Duration
}

// RedisHistoryConfig holds Redis history configuration
type RedisHistoryConfig struct {
	Address     string
	Password    string
	DB          int
	MaxMessages int
	TTL         time.Duration
}

// NewRedisHistoryStore connects to Redis and returns a history store
func NewRedisHistoryStore(ctx context.Context, cfg RedisHistoryConfig) (*RedisHistoryStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return newRedisHistoryStore(client, cfg.MaxMessages, cfg.TTL), nil
}

func newRedisHistoryStore(client *redis.Client, maxMessages int, ttl time.Duration) *RedisHistoryStore {
	if maxMessages <= 0 {
		maxMessages = 100
	}
	return &RedisHistoryStore{
		client:      client,
		maxMessages: maxMessages,
		ttl:         ttl,
	}
}

func conversationKey(conversationID string) string {
	return "phychat:conversation:" + conversationID
}

// GetConversationHistory returns up to limit most recent messages, oldest first
func (s *RedisHistoryStore) GetConversationHistory(ctx context.Context, conversationID string, limit int) ([]models.ChatMessage, error) {
	if limit <= 0 {
		return []models.ChatMessage{}, nil
	}

	raw, err := s.client.LRange(ctx, conversationKey(conversationID), int64(-limit), -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read conversation history: %w", err)
	}

	messages := make([]models.ChatMessage, 0, len(raw))
	for _, item := range raw {
		var msg models.ChatMessage
		if err := json.Unmarshal([]byte(item), &msg); err != nil {
			return nil, fmt.Errorf("failed to decode history message: %w", err)
		}
		messages = append(messages, msg)
	}

	return messages, nil
}

// SaveMessage appends a message, trims the list and refreshes its TTL
func (s *RedisHistoryStore) SaveMessage(ctx context.Context, msg *models.ChatMessage) error {
	prepareMessage(msg)

	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to encode history message: %w", err)
	}

	key := conversationKey(msg.ConversationID)

	pipe := s.client.TxPipeline()
	pipe.RPush(ctx, key, payload)
	pipe.LTrim(ctx, key, int64(-s.maxMessages), -1)
	if s.ttl > 0 {
		pipe.Expire(ctx, key, s.ttl)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save history message: %w", err)
	}

	return nil
}

// Ping checks Redis connectivity
func (s *RedisHistoryStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the Redis connection
func (s *RedisHistoryStore) Close() error {
	return s.client.Close()
}

// MemoryHistoryStore keeps conversations in process memory
type MemoryHistoryStore struct {
	mu            sync.RWMutex
	conversations map[string][]models.ChatMessage
	maxMessages   int
}

// NewMemoryHistoryStore creates an in-memory history store
func NewMemoryHistoryStore(maxMessages int) *MemoryHistoryStore {
	if maxMessages <= 0 {
		maxMessages = 100
	}
	return &MemoryHistoryStore{
		conversations: make(map[string][]models.ChatMessage),
		maxMessages:   maxMessages,
	}
}

// GetConversationHistory returns up to limit most recent messages, oldest first
func (s *MemoryHistoryStore) GetConversationHistory(ctx context.Context, conversationID string, limit int) ([]models.ChatMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := s.conversations[conversationID]
	if limit <= 0 {
		return []models.ChatMessage{}, nil
	}
	if len(all) > limit {
		all = all[len(all)-limit:]
	}

	result := make([]models.ChatMessage, len(all))
	copy(result, all)
	return result, nil
}

// SaveMessage appends a message, dropping the oldest past the cap
func (s *MemoryHistoryStore) SaveMessage(ctx context.Context, msg *models.ChatMessage) error {
	prepareMessage(msg)

	s.mu.Lock()
	defer s.mu.Unlock()

	messages := append(s.conversations[msg.ConversationID], *msg)
	if len(messages) > s.maxMessages {
		messages = messages[len(messages)-s.maxMessages:]
	}
	s.conversations[msg.ConversationID] = messages

	return nil
}

// Ping always succeeds
func (s *MemoryHistoryStore) Ping(ctx context.Context) error {
	return nil
}

// Close is a no-op
func (s *MemoryHistoryStore) Close() error {
	return nil
}

func prepareMessage(msg *models.ChatMessage) {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
}
