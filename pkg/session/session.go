// Package session stores per-conversation message history so the
// agent can carry context across chat turns. Two backends are
// provided: an in-process store for single-instance deployments and a
// Redis store for horizontally scaled ones.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/acme-dental/booking-agent/pkg/logging"
)

// Message is one turn of a conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Store persists conversation history keyed by session ID.
type Store interface {
	// Append adds a message to the session's history.
	Append(ctx context.Context, sessionID string, msg Message) error

	// History returns all messages of the session in order. An unknown
	// session yields an empty history, not an error.
	History(ctx context.Context, sessionID string) ([]Message, error)

	// Clear removes the session's history.
	Clear(ctx context.Context, sessionID string) error
}

// MemoryStore keeps history in process memory. Sessions expire after
// the configured TTL, checked lazily on access.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]*memorySession
	ttl      time.Duration
}

type memorySession struct {
	messages []Message
	touched  time.Time
}

// NewMemoryStore creates an in-memory store. ttl <= 0 disables
// expiration.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*memorySession),
		ttl:      ttl,
	}
}

func (s *MemoryStore) Append(_ context.Context, sessionID string, msg Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok || s.expired(sess) {
		sess = &memorySession{}
		s.sessions[sessionID] = sess
	}
	sess.messages = append(sess.messages, msg)
	sess.touched = time.Now()
	return nil
}

func (s *MemoryStore) History(_ context.Context, sessionID string) ([]Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil, nil
	}
	if s.expired(sess) {
		delete(s.sessions, sessionID)
		return nil, nil
	}
	out := make([]Message, len(sess.messages))
	copy(out, sess.messages)
	return out, nil
}

func (s *MemoryStore) Clear(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
	return nil
}

func (s *MemoryStore) expired(sess *memorySession) bool {
	return s.ttl > 0 && time.Since(sess.touched) > s.ttl
}

// RedisStore persists history in a Redis list per session, with the
// TTL refreshed on every append.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(ctx context.Context, addr string, ttl time.Duration) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("session redis unreachable: %w", err)
	}
	logger := logging.NewLogger("session")
	logger.Info().
		Str("addr", addr).
		Dur("ttl", ttl).
		Msg("Redis session store connected")
	return &RedisStore{client: client, ttl: ttl}, nil
}

func redisKey(sessionID string) string {
	return "session:" + sessionID
}

func (s *RedisStore) Append(ctx context.Context, sessionID string, msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal session message: %w", err)
	}
	key := redisKey(sessionID)
	pipe := s.client.TxPipeline()
	pipe.RPush(ctx, key, data)
	if s.ttl > 0 {
		pipe.Expire(ctx, key, s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("append session message: %w", err)
	}
	return nil
}

func (s *RedisStore) History(ctx context.Context, sessionID string) ([]Message, error) {
	raw, err := s.client.LRange(ctx, redisKey(sessionID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("read session history: %w", err)
	}
	messages := make([]Message, 0, len(raw))
	for _, item := range raw {
		var msg Message
		if err := json.Unmarshal([]byte(item), &msg); err != nil {
			return nil, fmt.Errorf("decode session message: %w", err)
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

func (s *RedisStore) Clear(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, redisKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

// Close releases the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
