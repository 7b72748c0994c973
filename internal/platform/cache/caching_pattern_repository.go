// Package cache provides caching implementations for repository interfaces.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"crossmarket_backend/internal/feature/patterns/domain/entity"
	"crossmarket_backend/internal/feature/patterns/usecase"
)

// CachingPatternRepository decorates a PatternRepository with Redis caching on
// the GetActive read path. It implements the decorator pattern, transparently
// adding caching without modifying the underlying repository. Dashboard reads
// therefore never wait on a running batch: they serve last-known state.
type CachingPatternRepository struct {
	inner     usecase.PatternRepository
	rdb       *redis.Client
	ttl       time.Duration
	namespace string
}

var _ usecase.PatternRepository = (*CachingPatternRepository)(nil)

// NewCachingPatternRepository decorates a PatternRepository with Redis caching.
// If ttl is 0, it defaults to 5 minutes. If namespace is empty, it uses
// "patterns".
func NewCachingPatternRepository(rdb *redis.Client, ttl time.Duration, inner usecase.PatternRepository, namespace string) *CachingPatternRepository {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if namespace == "" {
		namespace = "patterns"
	}
	return &CachingPatternRepository{
		inner:     inner,
		rdb:       rdb,
		ttl:       ttl,
		namespace: namespace,
	}
}

// Upsert writes through to the underlying repository and invalidates cached
// reads.
func (c *CachingPatternRepository) Upsert(ctx context.Context, p entity.CorrelationPattern) error {
	if err := c.inner.Upsert(ctx, p); err != nil {
		return err
	}
	c.invalidate(ctx)
	return nil
}

// RecordOutcome writes through to the underlying repository and invalidates
// cached reads, since accuracies move.
func (c *CachingPatternRepository) RecordOutcome(ctx context.Context, patternID uint, wasCorrect bool) error {
	if err := c.inner.RecordOutcome(ctx, patternID, wasCorrect); err != nil {
		return err
	}
	c.invalidate(ctx)
	return nil
}

// GetActive retrieves admitted patterns, checking cache first then falling
// back to the database.
func (c *CachingPatternRepository) GetActive(ctx context.Context, minAccuracy float64) ([]entity.CorrelationPattern, error) {
	if c.rdb == nil {
		return c.inner.GetActive(ctx, minAccuracy)
	}

	key := c.cacheKey(minAccuracy)

	if b, err := c.rdb.Get(ctx, key).Bytes(); err == nil && len(b) > 0 {
		var out []entity.CorrelationPattern
		if err := json.Unmarshal(b, &out); err == nil {
			return out, nil
		}
		// Delete corrupted cache entry
		_ = c.rdb.Del(ctx, key).Err()
	}

	out, err := c.inner.GetActive(ctx, minAccuracy)
	if err != nil {
		return nil, err
	}

	// Best effort: a failed cache write never fails the read.
	if b, err := json.Marshal(out); err == nil {
		_ = c.rdb.Set(ctx, key, b, c.ttl).Err()
	}

	return out, nil
}

// invalidate drops every cached GetActive result for this namespace.
func (c *CachingPatternRepository) invalidate(ctx context.Context) {
	if c.rdb == nil {
		return
	}
	_ = c.deleteByPattern(ctx, c.namespace+":*")
}

// cacheKey generates a cache key for a specific query.
func (c *CachingPatternRepository) cacheKey(minAccuracy float64) string {
	return fmt.Sprintf("%s:active:%s", c.namespace, strconv.FormatFloat(minAccuracy, 'f', 2, 64))
}

// deleteByPattern deletes all cache keys matching a given pattern using SCAN.
func (c *CachingPatternRepository) deleteByPattern(ctx context.Context, pattern string) error {
	var cursor uint64
	for {
		keys, cur, err := c.rdb.Scan(ctx, cursor, pattern, 200).Result()
		if err != nil {
			return err
		}
		if len(keys) > 0 {
			if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
				return err
			}
		}
		cursor = cur
		if cursor == 0 {
			break
		}
	}
	return nil
}
