package ports

import "time"

// CacheMetrics receives cache lifecycle events.
type CacheMetrics interface {
	Hit()
	Miss()
	Eviction()
	Expiration()
	BackendError()
	ObserveFetch(d time.Duration)
	SetUsage(bytes int64, entries int)
}

// NoopCacheMetrics discards every event.
type NoopCacheMetrics struct{}

func (NoopCacheMetrics) Hit()                       {}
func (NoopCacheMetrics) Miss()                      {}
func (NoopCacheMetrics) Eviction()                  {}
func (NoopCacheMetrics) Expiration()                {}
func (NoopCacheMetrics) BackendError()              {}
func (NoopCacheMetrics) ObserveFetch(time.Duration) {}
func (NoopCacheMetrics) SetUsage(int64, int)        {}
