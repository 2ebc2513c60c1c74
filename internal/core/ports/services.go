package ports

import (
	"context"
	"errors"

	"github.com/samirrijal/soundlines/internal/core/domain"
)

// SnapshotPublisher announces snapshot replacements to a message broker.
type SnapshotPublisher interface {
	PublishSnapshotEvent(ctx context.Context, event domain.SnapshotEvent) error
}

// RefreshSubscriber delivers externally triggered refresh requests.
// kind is "entities", "cells" or "all".
type RefreshSubscriber interface {
	SubscribeRefresh(ctx context.Context, handler func(ctx context.Context, kind string) error) error
}

// CacheService provides read-through caching.
type CacheService interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttlSeconds int) error
	Delete(ctx context.Context, key string) error
}

// ErrCacheMiss is returned by CacheService.Get when the key is absent.
var ErrCacheMiss = errors.New("cache miss")
