package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultRedisSessionPrefix = "vidtube:session:"

// RedisSessionStore keeps sessions in Redis keyed by token hash. Keys carry a
// TTL matching the session's idle expiry, so Redis evicts them on its own.
// The client is owned by the caller.
type RedisSessionStore struct {
	client redis.UniversalClient
	prefix string
	now    func() time.Time
}

type RedisSessionStoreOption func(*RedisSessionStore)

// WithRedisKeyPrefix namespaces session keys.
func WithRedisKeyPrefix(prefix string) RedisSessionStoreOption {
	return func(s *RedisSessionStore) {
		if prefix = strings.TrimSpace(prefix); prefix != "" {
			s.prefix = prefix
		}
	}
}

// WithRedisClock overrides the time source used to compute key TTLs.
func WithRedisClock(now func() time.Time) RedisSessionStoreOption {
	return func(s *RedisSessionStore) {
		if now != nil {
			s.now = now
		}
	}
}

func NewRedisSessionStore(client redis.UniversalClient, opts ...RedisSessionStoreOption) (*RedisSessionStore, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client required")
	}
	store := &RedisSessionStore{client: client, prefix: defaultRedisSessionPrefix, now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(store)
		}
	}
	return store, nil
}

type redisSession struct {
	UserID            string    `json:"userId"`
	ExpiresAt         time.Time `json:"expiresAt"`
	AbsoluteExpiresAt time.Time `json:"absoluteExpiresAt"`
}

func (s *RedisSessionStore) key(token string) (string, error) {
	hashed, err := hashSessionToken(token)
	if err != nil {
		return "", err
	}
	return s.prefix + hashed, nil
}

// Save writes the session with a TTL ending at its idle expiry. A session
// that has already expired is removed instead.
func (s *RedisSessionStore) Save(ctx context.Context, token, userID string, expiresAt, absoluteExpiresAt time.Time) error {
	key, err := s.key(token)
	if err != nil {
		return err
	}
	ttl := expiresAt.Sub(s.now())
	if ttl <= 0 {
		return s.client.Del(ctx, key).Err()
	}
	payload, err := json.Marshal(redisSession{UserID: userID, ExpiresAt: expiresAt.UTC(), AbsoluteExpiresAt: absoluteExpiresAt.UTC()})
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := s.client.Set(ctx, key, payload, ttl).Err(); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (s *RedisSessionStore) Get(ctx context.Context, token string) (SessionRecord, bool, error) {
	key, err := s.key(token)
	if err != nil {
		return SessionRecord{}, false, err
	}
	payload, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return SessionRecord{}, false, nil
	}
	if err != nil {
		return SessionRecord{}, false, fmt.Errorf("load session: %w", err)
	}
	var stored redisSession
	if err := json.Unmarshal(payload, &stored); err != nil {
		return SessionRecord{}, false, fmt.Errorf("decode session: %w", err)
	}
	return SessionRecord{
		Token:             token,
		UserID:            stored.UserID,
		ExpiresAt:         stored.ExpiresAt,
		AbsoluteExpiresAt: stored.AbsoluteExpiresAt,
	}, true, nil
}

func (s *RedisSessionStore) Delete(ctx context.Context, token string) error {
	key, err := s.key(token)
	if err != nil {
		return err
	}
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// PurgeExpired is a no-op; Redis expires keys itself.
func (s *RedisSessionStore) PurgeExpired(context.Context, time.Time) error {
	return nil
}

func (s *RedisSessionStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
