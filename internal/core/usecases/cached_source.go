package usecases

import (
	"context"
	"errors"
	"log/slog"

	"github.com/samirrijal/soundlines/internal/core/ports"
	"github.com/samirrijal/soundlines/internal/pkg/metrics"
)

const (
	cacheKeyEntities = "soundlines:raw:entities"
	cacheKeyCells    = "soundlines:raw:cells"
)

// CachedSource is a read-through cache in front of a DataSource. Raw
// payloads are cached as returned by the source, so several viewer
// processes reading the same database share one query per TTL.
type CachedSource struct {
	source     ports.DataSource
	cache      ports.CacheService
	ttlSeconds int
}

// NewCachedSource wraps source. A nil cache or a ttlSeconds <= 0 turns
// caching off and every call goes straight to source.
func NewCachedSource(source ports.DataSource, cache ports.CacheService, ttlSeconds int) *CachedSource {
	return &CachedSource{source: source, cache: cache, ttlSeconds: ttlSeconds}
}

func (s *CachedSource) enabled() bool {
	return s.cache != nil && s.ttlSeconds > 0
}

// Initialize initializes the wrapped source.
func (s *CachedSource) Initialize(ctx context.Context) error {
	return s.source.Initialize(ctx)
}

// FetchEntitiesRaw returns the cached entities payload or queries the source.
func (s *CachedSource) FetchEntitiesRaw(ctx context.Context) ([]byte, error) {
	return s.readThrough(ctx, cacheKeyEntities, "entities", s.source.FetchEntitiesRaw)
}

// FetchCellsRaw returns the cached cells payload or queries the source.
func (s *CachedSource) FetchCellsRaw(ctx context.Context) ([]byte, error) {
	return s.readThrough(ctx, cacheKeyCells, "cells", s.source.FetchCellsRaw)
}

// Invalidate drops cached payloads for kind ("entities", "cells" or "all")
// so the next fetch reaches the source.
func (s *CachedSource) Invalidate(ctx context.Context, kind string) error {
	if s.cache == nil {
		return nil
	}
	var errs []error
	if kind == "all" || kind == "entities" {
		errs = append(errs, s.cache.Delete(ctx, cacheKeyEntities))
	}
	if kind == "all" || kind == "cells" {
		errs = append(errs, s.cache.Delete(ctx, cacheKeyCells))
	}
	return errors.Join(errs...)
}

func (s *CachedSource) readThrough(ctx context.Context, key, collection string, query func(context.Context) ([]byte, error)) ([]byte, error) {
	if !s.enabled() {
		return query(ctx)
	}

	data, err := s.cache.Get(ctx, key)
	if err == nil && len(data) > 0 {
		metrics.CacheHits.WithLabelValues(collection).Inc()
		return data, nil
	}
	if err != nil && !errors.Is(err, ports.ErrCacheMiss) {
		slog.Warn("cache read failed", "collection", collection, "error", err)
	}
	metrics.CacheMisses.WithLabelValues(collection).Inc()

	data, err = query(ctx)
	if err != nil {
		return nil, err
	}

	if err := s.cache.Set(ctx, key, data, s.ttlSeconds); err != nil {
		slog.Warn("cache write failed", "collection", collection, "error", err)
	}
	return data, nil
}
