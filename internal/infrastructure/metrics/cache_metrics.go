package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hotvideos/video-info-service/internal/core/ports"
)

// CacheMetrics implements ports.CacheMetrics with Prometheus collectors.
type CacheMetrics struct {
	lookups       *prometheus.CounterVec
	evictions     prometheus.Counter
	expirations   prometheus.Counter
	backendErrors prometheus.Counter
	fetchDuration prometheus.Histogram
	bytes         prometheus.Gauge
	entries       prometheus.Gauge
}

var _ ports.CacheMetrics = (*CacheMetrics)(nil)

// NewCacheMetrics creates the cache collectors and registers them with reg.
func NewCacheMetrics(reg prometheus.Registerer) (*CacheMetrics, error) {
	m := &CacheMetrics{
		lookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "video_info_cache_lookups_total",
				Help: "Cache lookups by result (hit or miss)",
			},
			[]string{"result"},
		),
		evictions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "video_info_cache_evictions_total",
			Help: "Entries evicted to keep the cache within its byte budget",
		}),
		expirations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "video_info_cache_expirations_total",
			Help: "Entries dropped on access because they exceeded the max age",
		}),
		backendErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "video_info_backend_errors_total",
			Help: "Backend fetches that failed or timed out",
		}),
		fetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "video_info_backend_fetch_duration_seconds",
			Help:    "Backend fetch latencies in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		bytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "video_info_cache_bytes",
			Help: "Sum of payload sizes currently cached",
		}),
		entries: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "video_info_cache_entries",
			Help: "Number of entries currently cached",
		}),
	}
	for _, c := range []prometheus.Collector{m.lookups, m.evictions, m.expirations, m.backendErrors, m.fetchDuration, m.bytes, m.entries} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *CacheMetrics) Hit()          { m.lookups.WithLabelValues("hit").Inc() }
func (m *CacheMetrics) Miss()         { m.lookups.WithLabelValues("miss").Inc() }
func (m *CacheMetrics) Eviction()     { m.evictions.Inc() }
func (m *CacheMetrics) Expiration()   { m.expirations.Inc() }
func (m *CacheMetrics) BackendError() { m.backendErrors.Inc() }

func (m *CacheMetrics) ObserveFetch(d time.Duration) {
	m.fetchDuration.Observe(d.Seconds())
}

func (m *CacheMetrics) SetUsage(bytes int64, entries int) {
	m.bytes.Set(float64(bytes))
	m.entries.Set(float64(entries))
}
