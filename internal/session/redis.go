package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ashureev/studyplan/internal/domain"
	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "session:"

// RedisStore implements Store on Redis. Keys expire natively at the session's
// expiry, so DeleteExpiredSessions has nothing to do.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a Redis-backed session store.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// ErrNonPositiveTTL is returned for a session that expires at or before it is issued.
var ErrNonPositiveTTL = errors.New("session lifetime must be positive")

// CreateSession stores sess with a TTL of its lifetime, ExpiresAt minus IssuedAt.
func (s *RedisStore) CreateSession(ctx context.Context, sess *domain.Session) error {
	ttl := sess.ExpiresAt.Sub(sess.IssuedAt)
	if ttl <= 0 {
		// A zero TTL would mean "never expire" to Redis.
		return fmt.Errorf("redis set session: %w", ErrNonPositiveTTL)
	}

	val, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := s.client.Set(ctx, s.key(sess.Token), val, ttl).Err(); err != nil {
		return fmt.Errorf("redis set session: %w", err)
	}
	return nil
}

// GetSession returns (nil, nil) when the key is absent.
func (s *RedisStore) GetSession(ctx context.Context, token string) (*domain.Session, error) {
	val, err := s.client.Get(ctx, s.key(token)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil //nolint:nilnil // Store interface specifies nil,nil for not-found
	}
	if err != nil {
		return nil, fmt.Errorf("redis get session: %w", err)
	}

	var sess domain.Session
	if err := json.Unmarshal(val, &sess); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &sess, nil
}

// DeleteSession removes the key. Deleting an absent key succeeds.
func (s *RedisStore) DeleteSession(ctx context.Context, token string) error {
	if err := s.client.Del(ctx, s.key(token)).Err(); err != nil {
		return fmt.Errorf("redis delete session: %w", err)
	}
	return nil
}

// DeleteExpiredSessions is a no-op; Redis expires keys itself.
func (s *RedisStore) DeleteExpiredSessions(context.Context, time.Time) (int64, error) {
	return 0, nil
}

// Close closes the underlying client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) key(token string) string {
	return redisKeyPrefix + token
}

var _ Store = (*RedisStore)(nil)
