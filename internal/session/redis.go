package session

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"

	"github.com/example/campus-portal/internal/breaker"
)

// DefaultKeyPrefix namespaces revocation keys in a shared redis.
const DefaultKeyPrefix = "portal:revoked:"

// RedisClient is the subset of go-redis used for revocations.
type RedisClient interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Exists(ctx context.Context, keys ...string) *redis.IntCmd
}

// RedisRevocations stores revoked token ids as expiring redis keys.
type RedisRevocations struct {
	client RedisClient
	cb     *gobreaker.CircuitBreaker
	prefix string
	now    func() time.Time
}

var _ RevocationStore = (*RedisRevocations)(nil)

// NewRedisRevocations wraps client behind a circuit breaker.
func NewRedisRevocations(client RedisClient, logger *slog.Logger) *RedisRevocations {
	return &RedisRevocations{
		client: client,
		cb:     breaker.New(breaker.Redis, logger),
		prefix: DefaultKeyPrefix,
		now:    time.Now,
	}
}

// Revoke sets a key that expires together with the token.
func (r *RedisRevocations) Revoke(ctx context.Context, tokenID string, until time.Time) error {
	ttl := until.Sub(r.now())
	if tokenID == "" || ttl <= 0 {
		return nil
	}
	_, err := r.cb.Execute(func() (interface{}, error) {
		return nil, r.client.Set(ctx, r.key(tokenID), "1", ttl).Err()
	})
	if err != nil {
		return fmt.Errorf("%w: revoke %s: %v", ErrUnavailable, tokenID, err)
	}
	return nil
}

// IsRevoked checks whether the revocation key still exists.
func (r *RedisRevocations) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	result, err := r.cb.Execute(func() (interface{}, error) {
		return r.client.Exists(ctx, r.key(tokenID)).Result()
	})
	if err != nil {
		return false, fmt.Errorf("%w: lookup %s: %v", ErrUnavailable, tokenID, err)
	}
	count, _ := result.(int64)
	return count > 0, nil
}

func (r *RedisRevocations) key(tokenID string) string {
	return r.prefix + tokenID
}
