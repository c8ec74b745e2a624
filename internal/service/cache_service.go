package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/cdrp/console-gateway/internal/repository"
	appErrors "github.com/cdrp/console-gateway/pkg/errors"
)

// CacheRepository abstracts persistence for cached entity details.
type CacheRepository interface {
	GetDetail(ctx context.Context, userID, collection, id string, dest interface{}) error
	PutDetail(ctx context.Context, userID, collection, id string, value interface{}, ttl time.Duration) error
	InvalidateEntity(ctx context.Context, collection, id string) error
}

// CacheService wraps the detail cache with metrics. Cache failures never fail
// the caller; they are logged and treated as misses.
type CacheService struct {
	repo    CacheRepository
	metrics *MetricsService
	ttl     time.Duration
	logger  *zap.Logger
	enabled bool
}

// NewCacheService constructs a cache service.
func NewCacheService(repo CacheRepository, metrics *MetricsService, ttl time.Duration, logger *zap.Logger, enabled bool) *CacheService {
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CacheService{repo: repo, metrics: metrics, ttl: ttl, logger: logger, enabled: enabled}
}

// Enabled indicates whether caching is active.
func (s *CacheService) Enabled() bool {
	return s != nil && s.enabled && s.repo != nil
}

// Detail loads a cached entity detail into dest and reports a hit.
func (s *CacheService) Detail(ctx context.Context, userID, collection, id string, dest interface{}) bool {
	if !s.Enabled() {
		return false
	}
	start := time.Now()
	err := s.repo.GetDetail(ctx, userID, collection, id, dest)
	s.metrics.RecordCacheOperation(err == nil, time.Since(start))
	if err != nil && !errors.Is(err, appErrors.ErrCacheMiss) {
		s.logger.Warn("cache get failed", zap.String("key", repository.DetailKey(userID, collection, id)), zap.Error(err))
	}
	return err == nil
}

// StoreDetail caches an entity detail for one user.
func (s *CacheService) StoreDetail(ctx context.Context, userID, collection, id string, value interface{}) {
	if !s.Enabled() {
		return
	}
	if err := s.repo.PutDetail(ctx, userID, collection, id, value, s.ttl); err != nil {
		s.logger.Warn("cache set failed", zap.String("key", repository.DetailKey(userID, collection, id)), zap.Error(err))
	}
}

// Invalidate drops every cached copy of an entity.
func (s *CacheService) Invalidate(ctx context.Context, collection, id string) {
	if !s.Enabled() || id == "" {
		return
	}
	if err := s.repo.InvalidateEntity(ctx, collection, id); err != nil {
		s.logger.Warn("cache invalidate failed", zap.String("collection", collection), zap.String("id", id), zap.Error(err))
	}
}
