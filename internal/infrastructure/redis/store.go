package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-redis/redis/v8"

	"github.com/hotvideos/video-info-service/internal/core/domain/video"
	"github.com/hotvideos/video-info-service/internal/core/ports"
)

// StringGetter is the subset of redis.Cmdable used by the store.
type StringGetter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

// VideoInfoStore reads ranked video info payloads written to Redis by the ranking job.
type VideoInfoStore struct {
	r StringGetter
	// optional key prefix to namespace entries
	prefix string
}

var _ ports.VideoInfoStore = (*VideoInfoStore)(nil)

// NewVideoInfoStore creates a new Redis-backed video info store.
func NewVideoInfoStore(r StringGetter, prefix string) *VideoInfoStore {
	return &VideoInfoStore{r: r, prefix: prefix}
}

func (s *VideoInfoStore) namespaced(key video.CacheKey) string {
	if s.prefix == "" {
		return key.String()
	}
	return s.prefix + ":" + key.String()
}

func (s *VideoInfoStore) Name() string { return "redis" }

// Fetch implements ports.VideoInfoStore.
func (s *VideoInfoStore) Fetch(ctx context.Context, key video.CacheKey) ([]byte, error) {
	ns := s.namespaced(key)
	val, err := s.r.Get(ctx, ns).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: no redis key %q", video.ErrNotFound, ns)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: redis get %q: %w", video.ErrBackendUnavailable, ns, err)
	}
	return val, nil
}
