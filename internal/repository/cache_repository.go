package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	appErrors "github.com/cdrp/console-gateway/pkg/errors"
)

// DetailKey is where one user's view of an entity detail is cached. Details
// are per user because the backend shapes them by role.
func DetailKey(userID, collection, id string) string {
	return fmt.Sprintf("detail:%s:%s:%s", userID, collection, id)
}

// entityIndexKey names the set of detail keys cached for an entity across
// all users.
func entityIndexKey(collection, id string) string {
	return fmt.Sprintf("detail-index:%s:%s", collection, id)
}

// CacheRepository keeps entity details in Redis as JSON. A nil client makes
// every read a miss and every write a no-op.
type CacheRepository struct {
	client *redis.Client
	logger *zap.Logger
}

func NewCacheRepository(client *redis.Client, logger *zap.Logger) *CacheRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CacheRepository{client: client, logger: logger}
}

func (r *CacheRepository) Enabled() bool { return r.client != nil }

// GetDetail decodes the cached detail into dest or returns ErrCacheMiss.
func (r *CacheRepository) GetDetail(ctx context.Context, userID, collection, id string, dest interface{}) error {
	if r.client == nil {
		return appErrors.ErrCacheMiss
	}
	raw, err := r.client.Get(ctx, DetailKey(userID, collection, id)).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		return appErrors.ErrCacheMiss
	case err != nil:
		return fmt.Errorf("read detail %s/%s: %w", collection, id, err)
	}
	return json.Unmarshal(raw, dest)
}

// PutDetail stores value and records its key in the entity index in a single
// transaction. The index outlives the longest detail by one ttl.
func (r *CacheRepository) PutDetail(ctx context.Context, userID, collection, id string, value interface{}, ttl time.Duration) error {
	if r.client == nil {
		return nil
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode detail %s/%s: %w", collection, id, err)
	}
	key, index := DetailKey(userID, collection, id), entityIndexKey(collection, id)
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, key, payload, ttl)
		pipe.SAdd(ctx, index, key)
		pipe.Expire(ctx, index, 2*ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("write detail %s/%s: %w", collection, id, err)
	}
	return nil
}

// InvalidateEntity deletes every user's cached copy of an entity together
// with its index.
func (r *CacheRepository) InvalidateEntity(ctx context.Context, collection, id string) error {
	if r.client == nil {
		return nil
	}
	index := entityIndexKey(collection, id)
	keys, err := r.client.SMembers(ctx, index).Result()
	if err != nil {
		return fmt.Errorf("read detail index %s/%s: %w", collection, id, err)
	}
	if err := r.client.Del(ctx, append(keys, index)...).Err(); err != nil {
		return fmt.Errorf("drop details %s/%s: %w", collection, id, err)
	}
	if len(keys) > 0 {
		r.logger.Debug("detail cache invalidated",
			zap.String("collection", collection),
			zap.String("id", id),
			zap.Int("keys", len(keys)),
		)
	}
	return nil
}

// Close releases the Redis connection, if any.
func (r *CacheRepository) Close() error {
	if r.client == nil {
		return nil
	}
	return r.client.Close()
}
