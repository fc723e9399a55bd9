package sandbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore implements Store on Redis so that several sandbox instances can
// share sessions and rate limits.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore connects to Redis and checks the connection
func NewRedisStore(ctx context.Context, cfg RedisConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:            cfg.Addr,
		Password:        cfg.Password,
		DB:              cfg.DB,
		PoolSize:        cfg.PoolSize,
		DialTimeout:     cfg.DialTimeout,
		MaxRetries:      3,
		MinRetryBackoff: 8 * time.Millisecond,
		MaxRetryBackoff: 512 * time.Millisecond,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisStore{client: client, prefix: cfg.KeyPrefix}, nil
}

func (r *RedisStore) sessionKey(token string) string { return r.prefix + "session:" + token }
func (r *RedisStore) windowKey(token string) string  { return r.prefix + "window:" + token }

func (r *RedisStore) CreateSession(ctx context.Context, s *Session, ttl time.Duration) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	if err := r.client.Set(ctx, r.sessionKey(s.Token), data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}
	return nil
}

func (r *RedisStore) GetSession(ctx context.Context, token string) (*Session, error) {
	data, err := r.client.Get(ctx, r.sessionKey(token)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}
	return &s, nil
}

// CountRequest uses a fixed window counter: the first INCR of a window sets its expiry.
func (r *RedisStore) CountRequest(ctx context.Context, token string, window time.Duration) (int64, time.Duration, error) {
	key := r.windowKey(token)

	count, err := r.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, 0, fmt.Errorf("failed to count request: %w", err)
	}
	if count == 1 {
		if err := r.client.PExpire(ctx, key, window).Err(); err != nil {
			return 0, 0, fmt.Errorf("failed to set window expiry: %w", err)
		}
		return count, window, nil
	}

	ttl, err := r.client.PTTL(ctx, key).Result()
	if err != nil {
		return 0, 0, fmt.Errorf("failed to read window expiry: %w", err)
	}
	if ttl < 0 {
		// The expiry was lost between INCR and PEXPIRE; start the window now.
		if err := r.client.PExpire(ctx, key, window).Err(); err != nil {
			return 0, 0, fmt.Errorf("failed to set window expiry: %w", err)
		}
		ttl = window
	}
	return count, ttl, nil
}

func (r *RedisStore) CountSessions(ctx context.Context) (int, error) {
	n := 0
	iter := r.client.Scan(ctx, 0, r.prefix+"session:*", 100).Iterator()
	for iter.Next(ctx) {
		n++
	}
	if err := iter.Err(); err != nil {
		return 0, fmt.Errorf("failed to scan sessions: %w", err)
	}
	return n, nil
}

func (r *RedisStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}
