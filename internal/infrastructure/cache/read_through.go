// Package cache provides the in-process read-through cache that fronts the video info backend.
package cache

import (
	"container/list"
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/hotvideos/video-info-service/internal/core/domain/video"
	"github.com/hotvideos/video-info-service/internal/core/ports"
)

const DefaultFetchTimeout = 5 * time.Second

// Options configures a ReadThroughCache. MaxSizeBytes and MaxAge are required.
type Options struct {
	// MaxSizeBytes bounds the sum of payload sizes held by the cache.
	MaxSizeBytes int64
	// MaxAge is how long an entry may be served after it was inserted.
	MaxAge time.Duration
	// FetchTimeout bounds a single backend call. Defaults to DefaultFetchTimeout.
	FetchTimeout time.Duration
	// CoalesceMisses allows at most one in-flight backend call per key.
	CoalesceMisses bool
	Metrics        ports.CacheMetrics
	Logger         *logrus.Logger
	// Clock is used for entry ages. Defaults to time.Now.
	Clock func() time.Time
}

type entry struct {
	key        video.CacheKey
	value      []byte
	insertedAt time.Time
	size       int64
}

// ReadThroughCache maps keys to serialized payloads, bounded by total byte size and entry age.
// Least recently used entries are evicted first. The lock is never held across a backend call.
type ReadThroughCache struct {
	store        ports.VideoInfoStore
	maxSize      int64
	maxAge       time.Duration
	fetchTimeout time.Duration
	coalesce     bool
	metrics      ports.CacheMetrics
	logger       *logrus.Logger
	now          func() time.Time
	flights      singleflight.Group

	hits   atomic.Uint64
	misses atomic.Uint64

	mu          sync.Mutex
	items       map[video.CacheKey]*list.Element
	order       *list.List // front is most recently used
	bytes       int64
	evictions   uint64
	expirations uint64
}

var _ ports.VideoInfoCache = (*ReadThroughCache)(nil)

// New validates opts and returns an empty cache backed by store.
func New(store ports.VideoInfoStore, opts Options) (*ReadThroughCache, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: backend store is required", video.ErrInvalidConfiguration)
	}
	if opts.MaxSizeBytes <= 0 {
		return nil, fmt.Errorf("%w: max size must be positive, got %d", video.ErrInvalidConfiguration, opts.MaxSizeBytes)
	}
	if opts.MaxAge <= 0 {
		return nil, fmt.Errorf("%w: max age must be positive, got %s", video.ErrInvalidConfiguration, opts.MaxAge)
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = DefaultFetchTimeout
	}
	if opts.Metrics == nil {
		opts.Metrics = ports.NoopCacheMetrics{}
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &ReadThroughCache{
		store:        store,
		maxSize:      opts.MaxSizeBytes,
		maxAge:       opts.MaxAge,
		fetchTimeout: opts.FetchTimeout,
		coalesce:     opts.CoalesceMisses,
		metrics:      opts.Metrics,
		logger:       opts.Logger,
		now:          opts.Clock,
		items:        make(map[video.CacheKey]*list.Element),
		order:        list.New(),
	}, nil
}

// GetOrLoad returns the cached payload for key when it is fresh. Otherwise it fetches the
// payload from the backend, stores it and returns it. Backend failures are returned wrapped in
// video.ErrBackendUnavailable and leave the cache untouched; video.ErrNotFound is passed through
// and never cached.
func (c *ReadThroughCache) GetOrLoad(ctx context.Context, key video.CacheKey) ([]byte, error) {
	if v, ok := c.get(key); ok {
		c.hits.Add(1)
		c.metrics.Hit()
		return v, nil
	}
	c.misses.Add(1)
	c.metrics.Miss()

	if !c.coalesce {
		return c.load(ctx, key)
	}

	// The shared fetch must not be cancelled by whichever caller happened to start it.
	detached := context.WithoutCancel(ctx)
	ch := c.flights.DoChan(string(key), func() (any, error) {
		if v, ok := c.get(key); ok {
			return v, nil
		}
		return c.load(detached, key)
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return clone(res.Val.([]byte)), nil
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %w", video.ErrBackendUnavailable, ctx.Err())
	}
}

// Stats returns a snapshot of the cache counters.
func (c *ReadThroughCache) Stats() ports.CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return ports.CacheStats{
		Hits:        c.hits.Load(),
		Misses:      c.misses.Load(),
		Evictions:   c.evictions,
		Expirations: c.expirations,
		Entries:     c.order.Len(),
		Bytes:       c.bytes,
	}
}

// Purge removes all entries. Counters are kept.
func (c *ReadThroughCache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[video.CacheKey]*list.Element)
	c.order.Init()
	c.bytes = 0
	c.metrics.SetUsage(0, 0)
}

// get returns a copy of the fresh entry for key. A stale entry is dropped.
func (c *ReadThroughCache) get(key video.CacheKey) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.items[key]
	if !ok {
		return nil, false
	}
	e := el.Value.(*entry)
	if c.now().Sub(e.insertedAt) > c.maxAge {
		c.removeElement(el)
		c.expirations++
		c.metrics.Expiration()
		c.metrics.SetUsage(c.bytes, c.order.Len())
		return nil, false
	}
	c.order.MoveToFront(el)
	return clone(e.value), true
}

func (c *ReadThroughCache) load(ctx context.Context, key video.CacheKey) ([]byte, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, c.fetchTimeout)
	defer cancel()

	start := time.Now()
	payload, err := c.fetch(fetchCtx, key)
	c.metrics.ObserveFetch(time.Since(start))
	if err != nil {
		if errors.Is(err, video.ErrNotFound) {
			return nil, err
		}
		c.metrics.BackendError()
		c.logger.WithFields(logrus.Fields{"key": key.String(), "backend": c.store.Name()}).WithError(err).Warn("video info backend fetch failed")
		if errors.Is(err, video.ErrBackendUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s: %w", video.ErrBackendUnavailable, c.store.Name(), err)
	}

	c.insert(key, payload)
	return payload, nil
}

// fetch calls the store and turns a panic into an error. A coalesced fetch runs on a goroutine
// owned by singleflight, where nothing above it could recover.
func (c *ReadThroughCache) fetch(ctx context.Context, key video.CacheKey) (payload []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			payload, err = nil, fmt.Errorf("backend panic: %v", r)
		}
	}()
	return c.store.Fetch(ctx, key)
}

func (c *ReadThroughCache) insert(key video.CacheKey, payload []byte) {
	size := int64(len(payload))

	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		c.removeElement(el)
	}
	if size > c.maxSize {
		c.logger.WithFields(logrus.Fields{"key": key.String(), "size": size, "max_size": c.maxSize}).Warn("video info payload exceeds cache size, not caching")
		c.metrics.SetUsage(c.bytes, c.order.Len())
		return
	}

	c.items[key] = c.order.PushFront(&entry{
		key:        key,
		value:      clone(payload),
		insertedAt: c.now(),
		size:       size,
	})
	c.bytes += size

	for c.bytes > c.maxSize {
		oldest := c.order.Back()
		if oldest == nil {
			break
		}
		evicted := oldest.Value.(*entry)
		c.removeElement(oldest)
		c.evictions++
		c.metrics.Eviction()
		c.logger.WithFields(logrus.Fields{"key": evicted.key.String(), "size": evicted.size}).Debug("evicted video info cache entry")
	}
	c.metrics.SetUsage(c.bytes, c.order.Len())
}

// removeElement must be called with c.mu held.
func (c *ReadThroughCache) removeElement(el *list.Element) {
	e := c.order.Remove(el).(*entry)
	delete(c.items, e.key)
	c.bytes -= e.size
}

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	cp := make([]byte, len(b))
	copy(cp, b)
	return cp
}
