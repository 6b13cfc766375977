package ports

import (
	"context"

	"github.com/hotvideos/video-info-service/internal/core/domain/video"
)

// CacheStats is a point-in-time snapshot of cache activity and usage.
type CacheStats struct {
	Hits        uint64 `json:"hits"`
	Misses      uint64 `json:"misses"`
	Evictions   uint64 `json:"evictions"`
	Expirations uint64 `json:"expirations"`
	Entries     int    `json:"entries"`
	Bytes       int64  `json:"bytes"`
}

// VideoInfoCache is a bounded read-through cache in front of a VideoInfoStore.
// All methods are safe for concurrent use.
type VideoInfoCache interface {
	// GetOrLoad returns the payload for key, fetching it from the backing store on a miss
	// or when the cached copy is older than the configured max age.
	// The returned slice is owned by the caller.
	GetOrLoad(ctx context.Context, key video.CacheKey) ([]byte, error)
	// Stats returns current counters and usage.
	Stats() CacheStats
	// Purge drops every entry.
	Purge()
}
