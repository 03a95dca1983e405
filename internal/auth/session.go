package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"budgetly/internal/cache"

	"github.com/redis/go-redis/v9"
)

// ErrSessionNotFound is returned for unknown or expired session tokens.
var ErrSessionNotFound = errors.New("session not found")

// SessionStore maps opaque tokens to user ids. Only token hashes are kept.
type SessionStore interface {
	Create(ctx context.Context, userID string) (token string, err error)
	Lookup(ctx context.Context, token string) (userID string, err error)
	Delete(ctx context.Context, token string) error
}

// NewToken returns 32 random bytes, base64url encoded.
func NewToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate session token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// MemorySessionStore keeps sessions in an LRU cache; entries expire after the TTL.
type MemorySessionStore struct {
	sessions *cache.LRUCache[string]
}

func NewMemorySessionStore(maxSessions int, ttl time.Duration) *MemorySessionStore {
	return &MemorySessionStore{sessions: cache.NewLRUCache[string](maxSessions, ttl)}
}

// Cleaner exposes the underlying cache so a cache.Manager can sweep it.
func (s *MemorySessionStore) Cleaner() cache.Cleaner {
	return s.sessions
}

func (s *MemorySessionStore) Create(ctx context.Context, userID string) (string, error) {
	token, err := NewToken()
	if err != nil {
		return "", err
	}
	s.sessions.Set(ctx, hashToken(token), userID)
	return token, nil
}

func (s *MemorySessionStore) Lookup(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", ErrSessionNotFound
	}
	userID, ok := s.sessions.Get(ctx, hashToken(token))
	if !ok {
		return "", ErrSessionNotFound
	}
	return userID, nil
}

func (s *MemorySessionStore) Delete(ctx context.Context, token string) error {
	s.sessions.Delete(ctx, hashToken(token))
	return nil
}

const sessionKeyPrefix = "session:"

// RedisSessionStore keeps sessions in Redis with a TTL per key.
type RedisSessionStore struct {
	client cache.RedisKV
	ttl    time.Duration
}

func NewRedisSessionStore(client cache.RedisKV, ttl time.Duration) *RedisSessionStore {
	return &RedisSessionStore{client: client, ttl: ttl}
}

func (s *RedisSessionStore) Create(ctx context.Context, userID string) (string, error) {
	token, err := NewToken()
	if err != nil {
		return "", err
	}
	if err := s.client.Set(ctx, sessionKeyPrefix+hashToken(token), userID, s.ttl).Err(); err != nil {
		return "", fmt.Errorf("store session: %w", err)
	}
	return token, nil
}

func (s *RedisSessionStore) Lookup(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", ErrSessionNotFound
	}
	userID, err := s.client.Get(ctx, sessionKeyPrefix+hashToken(token)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrSessionNotFound
		}
		return "", fmt.Errorf("lookup session: %w", err)
	}
	return userID, nil
}

func (s *RedisSessionStore) Delete(ctx context.Context, token string) error {
	if err := s.client.Del(ctx, sessionKeyPrefix+hashToken(token)).Err(); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}
