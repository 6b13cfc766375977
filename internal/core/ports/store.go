package ports

import (
	"context"

	"github.com/hotvideos/video-info-service/internal/core/domain/video"
)

// VideoInfoStore is the backing key-value store queried on cache misses.
// Fetch is a point read by exact key. A missing entry yields an error wrapping
// video.ErrNotFound; any other error is a backend failure.
type VideoInfoStore interface {
	Name() string
	Fetch(ctx context.Context, key video.CacheKey) ([]byte, error)
}
