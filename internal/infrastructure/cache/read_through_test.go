package cache

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hotvideos/video-info-service/internal/core/domain/video"
	"github.com/hotvideos/video-info-service/internal/core/ports/mocks"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// payloadStore serves fixed payloads by key and counts calls per key.
type payloadStore struct {
	mu       sync.Mutex
	payloads map[video.CacheKey][]byte
	calls    map[video.CacheKey]int
}

func newPayloadStore(payloads map[video.CacheKey][]byte) *payloadStore {
	return &payloadStore{payloads: payloads, calls: map[video.CacheKey]int{}}
}

func (s *payloadStore) Name() string { return "payloads" }

func (s *payloadStore) Fetch(_ context.Context, key video.CacheKey) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[key]++
	p, ok := s.payloads[key]
	if !ok {
		return nil, fmt.Errorf("%s: %w", key, video.ErrNotFound)
	}
	return append([]byte(nil), p...), nil
}

func (s *payloadStore) Calls(key video.CacheKey) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[key]
}

func newTestCache(t *testing.T, store *payloadStore, maxSize int64, maxAge time.Duration, clock *fakeClock) *ReadThroughCache {
	t.Helper()
	c, err := New(store, Options{
		MaxSizeBytes: maxSize,
		MaxAge:       maxAge,
		Logger:       quietLogger(),
		Clock:        clock.Now,
	})
	require.NoError(t, err)
	return c
}

func (c *ReadThroughCache) storedBytes() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	var sum int64
	for el := c.order.Front(); el != nil; el = el.Next() {
		sum += int64(len(el.Value.(*entry).value))
	}
	if sum != c.bytes {
		panic(fmt.Sprintf("byte accounting drift: tracked %d, actual %d", c.bytes, sum))
	}
	return sum
}

func TestNew_InvalidConfiguration(t *testing.T) {
	store := &mocks.VideoInfoStoreMock{}
	cases := []struct {
		name  string
		store *mocks.VideoInfoStoreMock
		opts  Options
	}{
		{"zero size", store, Options{MaxSizeBytes: 0, MaxAge: time.Minute}},
		{"negative size", store, Options{MaxSizeBytes: -1, MaxAge: time.Minute}},
		{"zero age", store, Options{MaxSizeBytes: 100, MaxAge: 0}},
		{"negative age", store, Options{MaxSizeBytes: 100, MaxAge: -time.Second}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := New(tc.store, tc.opts)
			require.ErrorIs(t, err, video.ErrInvalidConfiguration)
		})
	}

	_, err := New(nil, Options{MaxSizeBytes: 100, MaxAge: time.Minute})
	require.ErrorIs(t, err, video.ErrInvalidConfiguration)
}

func TestGetOrLoad_HitDoesNotTouchBackend(t *testing.T) {
	key := video.BuildKey(video.Query{})
	store := newPayloadStore(map[video.CacheKey][]byte{key: []byte(`[{"id":1}]`)})
	c := newTestCache(t, store, 1024, time.Minute, newFakeClock())

	first, err := c.GetOrLoad(context.Background(), key)
	require.NoError(t, err)
	second, err := c.GetOrLoad(context.Background(), key)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, store.Calls(key))
	stats := c.Stats()
	assert.Equal(t, uint64(1), stats.Hits)
	assert.Equal(t, uint64(1), stats.Misses)
	assert.Equal(t, 1, stats.Entries)
	assert.Equal(t, int64(len(first)), stats.Bytes)
}

func TestGetOrLoad_ExpiredEntryIsRefetched(t *testing.T) {
	key := video.CacheKey("sort=hot&time=week")
	store := newPayloadStore(map[video.CacheKey][]byte{key: []byte("v1")})
	clock := newFakeClock()
	c := newTestCache(t, store, 1024, time.Minute, clock)

	_, err := c.GetOrLoad(context.Background(), key)
	require.NoError(t, err)

	// Age equal to max age is still servable.
	clock.Advance(time.Minute)
	_, err = c.GetOrLoad(context.Background(), key)
	require.NoError(t, err)
	require.Equal(t, 1, store.Calls(key))

	clock.Advance(time.Millisecond)
	store.mu.Lock()
	store.payloads[key] = []byte("v2-longer")
	store.mu.Unlock()

	got, err := c.GetOrLoad(context.Background(), key)
	require.NoError(t, err)
	assert.Equal(t, []byte("v2-longer"), got)
	assert.Equal(t, 2, store.Calls(key))
	assert.Equal(t, uint64(1), c.Stats().Expirations)
	assert.Equal(t, int64(len("v2-longer")), c.storedBytes())
}

func TestGetOrLoad_ReadsDoNotRefreshAge(t *testing.T) {
	key := video.CacheKey("k")
	store := newPayloadStore(map[video.CacheKey][]byte{key: []byte("v")})
	clock := newFakeClock()
	c := newTestCache(t, store, 1024, time.Minute, clock)

	_, err := c.GetOrLoad(context.Background(), key)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		clock.Advance(20 * time.Second)
		_, err = c.GetOrLoad(context.Background(), key)
		require.NoError(t, err)
	}
	// 60s elapsed: last read was still a hit, next one is stale.
	require.Equal(t, 1, store.Calls(key))
	clock.Advance(time.Second)
	_, err = c.GetOrLoad(context.Background(), key)
	require.NoError(t, err)
	assert.Equal(t, 2, store.Calls(key))
}

func TestGetOrLoad_SizeEvictionScenario(t *testing.T) {
	a, b := video.CacheKey("A"), video.CacheKey("B")
	store := newPayloadStore(map[video.CacheKey][]byte{
		a: bytes.Repeat([]byte("a"), 60),
		b: bytes.Repeat([]byte("b"), 60),
	})
	c := newTestCache(t, store, 100, time.Minute, newFakeClock())

	_, err := c.GetOrLoad(context.Background(), a)
	require.NoError(t, err)
	_, err = c.GetOrLoad(context.Background(), b)
	require.NoError(t, err)

	stats := c.Stats()
	assert.Equal(t, 1, stats.Entries)
	assert.Equal(t, int64(60), stats.Bytes)
	assert.Equal(t, uint64(1), stats.Evictions)

	_, err = c.GetOrLoad(context.Background(), a)
	require.NoError(t, err)
	assert.Equal(t, 2, store.Calls(a))
	assert.Equal(t, 1, store.Calls(b))
}

func TestGetOrLoad_EvictsLeastRecentlyUsed(t *testing.T) {
	a, b, cKey := video.CacheKey("A"), video.CacheKey("B"), video.CacheKey("C")
	store := newPayloadStore(map[video.CacheKey][]byte{
		a:    bytes.Repeat([]byte("a"), 40),
		b:    bytes.Repeat([]byte("b"), 40),
		cKey: bytes.Repeat([]byte("c"), 40),
	})
	c := newTestCache(t, store, 100, time.Minute, newFakeClock())
	ctx := context.Background()

	for _, k := range []video.CacheKey{a, b, a, cKey} {
		_, err := c.GetOrLoad(ctx, k)
		require.NoError(t, err)
	}

	// B was least recently used when C arrived.
	_, err := c.GetOrLoad(ctx, a)
	require.NoError(t, err)
	assert.Equal(t, 1, store.Calls(a))
	_, err = c.GetOrLoad(ctx, b)
	require.NoError(t, err)
	assert.Equal(t, 2, store.Calls(b))
	assert.LessOrEqual(t, c.storedBytes(), int64(100))
}

func TestGetOrLoad_EvictionTiesBrokenByInsertionOrder(t *testing.T) {
	keys := []video.CacheKey{"k1", "k2", "k3"}
	payloads := map[video.CacheKey][]byte{}
	for _, k := range keys {
		payloads[k] = bytes.Repeat([]byte("x"), 30)
	}
	payloads["big"] = bytes.Repeat([]byte("y"), 50)
	store := newPayloadStore(payloads)
	c := newTestCache(t, store, 100, time.Minute, newFakeClock())
	ctx := context.Background()

	for _, k := range keys {
		_, err := c.GetOrLoad(ctx, k)
		require.NoError(t, err)
	}
	_, err := c.GetOrLoad(ctx, "big")
	require.NoError(t, err)

	// 90+50 > 100: k1 and k2 go, k3 stays.
	c.mu.Lock()
	_, has1 := c.items["k1"]
	_, has2 := c.items["k2"]
	_, has3 := c.items["k3"]
	c.mu.Unlock()
	assert.False(t, has1)
	assert.False(t, has2)
	assert.True(t, has3)
	assert.Equal(t, int64(80), c.storedBytes())
}

func TestGetOrLoad_OversizedPayloadIsServedButNotStored(t *testing.T) {
	key := video.CacheKey("huge")
	store := newPayloadStore(map[video.CacheKey][]byte{key: bytes.Repeat([]byte("z"), 200)})
	c := newTestCache(t, store, 100, time.Minute, newFakeClock())

	got, err := c.GetOrLoad(context.Background(), key)
	require.NoError(t, err)
	assert.Len(t, got, 200)
	assert.Equal(t, 0, c.Stats().Entries)
	assert.Equal(t, int64(0), c.storedBytes())
}

func TestGetOrLoad_BackendFailureIsNotCached(t *testing.T) {
	var fail = true
	var mu sync.Mutex
	store := &mocks.VideoInfoStoreMock{FetchFn: func(ctx context.Context, key video.CacheKey) ([]byte, error) {
		mu.Lock()
		defer mu.Unlock()
		if fail {
			return nil, errors.New("connection refused")
		}
		return []byte("ok"), nil
	}}
	c, err := New(store, Options{MaxSizeBytes: 100, MaxAge: time.Minute, Logger: quietLogger()})
	require.NoError(t, err)

	_, err = c.GetOrLoad(context.Background(), "k")
	require.ErrorIs(t, err, video.ErrBackendUnavailable)
	assert.Equal(t, 0, c.Stats().Entries)

	_, err = c.GetOrLoad(context.Background(), "k")
	require.ErrorIs(t, err, video.ErrBackendUnavailable)
	assert.Equal(t, int64(2), store.Calls.Load())

	mu.Lock()
	fail = false
	mu.Unlock()
	got, err := c.GetOrLoad(context.Background(), "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("ok"), got)
	assert.Equal(t, int64(3), store.Calls.Load())
}

func TestGetOrLoad_BackendPanicIsUnavailable(t *testing.T) {
	for _, coalesce := range []bool{true, false} {
		t.Run(fmt.Sprintf("coalesce=%v", coalesce), func(t *testing.T) {
			store := &mocks.VideoInfoStoreMock{FetchFn: func(ctx context.Context, key video.CacheKey) ([]byte, error) {
				panic("nil item")
			}}
			c, err := New(store, Options{MaxSizeBytes: 100, MaxAge: time.Minute, CoalesceMisses: coalesce, Logger: quietLogger()})
			require.NoError(t, err)

			for i := 0; i < 2; i++ {
				_, err = c.GetOrLoad(context.Background(), "k")
				require.ErrorIs(t, err, video.ErrBackendUnavailable)
				assert.Contains(t, err.Error(), "nil item")
			}
			assert.Equal(t, int64(2), store.Calls.Load())
			assert.Equal(t, 0, c.Stats().Entries)
		})
	}
}

func TestGetOrLoad_NotFoundIsPropagatedAndNotCached(t *testing.T) {
	store := newPayloadStore(map[video.CacheKey][]byte{})
	c := newTestCache(t, store, 100, time.Minute, newFakeClock())

	for i := 0; i < 2; i++ {
		_, err := c.GetOrLoad(context.Background(), "missing")
		require.ErrorIs(t, err, video.ErrNotFound)
		require.NotErrorIs(t, err, video.ErrBackendUnavailable)
	}
	assert.Equal(t, 2, store.Calls("missing"))
	assert.Equal(t, 0, c.Stats().Entries)
}

func TestGetOrLoad_BackendTimeoutIsUnavailable(t *testing.T) {
	store := &mocks.VideoInfoStoreMock{FetchFn: func(ctx context.Context, key video.CacheKey) ([]byte, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}}
	for _, coalesce := range []bool{false, true} {
		t.Run(fmt.Sprintf("coalesce=%v", coalesce), func(t *testing.T) {
			c, err := New(store, Options{
				MaxSizeBytes:   100,
				MaxAge:         time.Minute,
				FetchTimeout:   20 * time.Millisecond,
				CoalesceMisses: coalesce,
				Logger:         quietLogger(),
			})
			require.NoError(t, err)

			_, err = c.GetOrLoad(context.Background(), "slow")
			require.ErrorIs(t, err, video.ErrBackendUnavailable)
			require.ErrorIs(t, err, context.DeadlineExceeded)
			assert.Equal(t, 0, c.Stats().Entries)
		})
	}
}

func TestGetOrLoad_ReturnsCopies(t *testing.T) {
	key := video.CacheKey("k")
	store := newPayloadStore(map[video.CacheKey][]byte{key: []byte("payload")})
	c := newTestCache(t, store, 100, time.Minute, newFakeClock())

	got, err := c.GetOrLoad(context.Background(), key)
	require.NoError(t, err)
	got[0] = 'X'

	again, err := c.GetOrLoad(context.Background(), key)
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), again)
	again[1] = 'Y'

	third, err := c.GetOrLoad(context.Background(), key)
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), third)
}

func TestGetOrLoad_CoalescesConcurrentMisses(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 1)
	store := &mocks.VideoInfoStoreMock{FetchFn: func(ctx context.Context, key video.CacheKey) ([]byte, error) {
		select {
		case started <- struct{}{}:
		default:
		}
		<-release
		return []byte("shared"), nil
	}}
	c, err := New(store, Options{MaxSizeBytes: 100, MaxAge: time.Minute, CoalesceMisses: true, Logger: quietLogger()})
	require.NoError(t, err)

	const callers = 20
	var wg sync.WaitGroup
	results := make([][]byte, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = c.GetOrLoad(context.Background(), "same")
		}(i)
	}
	<-started
	close(release)
	wg.Wait()

	assert.Equal(t, int64(1), store.Calls.Load())
	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, []byte("shared"), results[i])
	}
}

func TestGetOrLoad_CoalescedErrorIsSharedAndNotCached(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 1)
	store := &mocks.VideoInfoStoreMock{FetchFn: func(ctx context.Context, key video.CacheKey) ([]byte, error) {
		select {
		case started <- struct{}{}:
		default:
		}
		<-release
		return nil, errors.New("throttled")
	}}
	c, err := New(store, Options{MaxSizeBytes: 100, MaxAge: time.Minute, CoalesceMisses: true, Logger: quietLogger()})
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make([]error, 5)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = c.GetOrLoad(context.Background(), "k")
		}(i)
	}
	<-started
	close(release)
	wg.Wait()

	for _, err := range errs {
		require.ErrorIs(t, err, video.ErrBackendUnavailable)
	}
	assert.Equal(t, 0, c.Stats().Entries)
}

func TestGetOrLoad_CallerCancellationDoesNotAbortSharedFetch(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	store := &mocks.VideoInfoStoreMock{FetchFn: func(ctx context.Context, key video.CacheKey) ([]byte, error) {
		close(started)
		select {
		case <-release:
			return []byte("late"), nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}}
	c, err := New(store, Options{MaxSizeBytes: 100, MaxAge: time.Minute, CoalesceMisses: true, Logger: quietLogger()})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := c.GetOrLoad(ctx, "k")
		errCh <- err
	}()
	<-started
	cancel()
	err = <-errCh
	require.ErrorIs(t, err, video.ErrBackendUnavailable)
	require.ErrorIs(t, err, context.Canceled)

	close(release)
	require.Eventually(t, func() bool { return c.Stats().Entries == 1 }, time.Second, 5*time.Millisecond)
	got, err := c.GetOrLoad(context.Background(), "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("late"), got)
	assert.Equal(t, int64(1), store.Calls.Load())
}

func TestGetOrLoad_SlowKeyDoesNotBlockOtherKeys(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	store := &mocks.VideoInfoStoreMock{FetchFn: func(ctx context.Context, key video.CacheKey) ([]byte, error) {
		if key == "slow" {
			<-release
		}
		return []byte(key), nil
	}}
	c, err := New(store, Options{MaxSizeBytes: 100, MaxAge: time.Minute, CoalesceMisses: true, Logger: quietLogger()})
	require.NoError(t, err)

	go func() { _, _ = c.GetOrLoad(context.Background(), "slow") }()

	done := make(chan struct{})
	go func() {
		defer close(done)
		got, err := c.GetOrLoad(context.Background(), "fast")
		assert.NoError(t, err)
		assert.Equal(t, []byte("fast"), got)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("fast key blocked behind slow key")
	}
}

func TestGetOrLoad_ConcurrentAccessKeepsSizeBound(t *testing.T) {
	const maxSize = 500
	payloads := map[video.CacheKey][]byte{}
	for i := 0; i < 50; i++ {
		payloads[video.CacheKey(fmt.Sprintf("k%d", i))] = bytes.Repeat([]byte("p"), 10+i*3)
	}
	store := newPayloadStore(payloads)
	clock := newFakeClock()

	for _, coalesce := range []bool{false, true} {
		c, err := New(store, Options{MaxSizeBytes: maxSize, MaxAge: time.Minute, CoalesceMisses: coalesce, Logger: quietLogger(), Clock: clock.Now})
		require.NoError(t, err)

		var wg sync.WaitGroup
		for g := 0; g < 8; g++ {
			wg.Add(1)
			go func(seed int64) {
				defer wg.Done()
				r := rand.New(rand.NewSource(seed))
				for i := 0; i < 300; i++ {
					k := video.CacheKey(fmt.Sprintf("k%d", r.Intn(50)))
					got, err := c.GetOrLoad(context.Background(), k)
					if assert.NoError(t, err) {
						assert.Equal(t, payloads[k], got)
					}
					if i%50 == 0 {
						clock.Advance(15 * time.Second)
					}
				}
			}(int64(g))
		}
		wg.Wait()

		assert.LessOrEqual(t, c.storedBytes(), int64(maxSize))
		assert.Equal(t, c.Stats().Bytes, c.storedBytes())
	}
}

func TestPurge(t *testing.T) {
	key := video.CacheKey("k")
	store := newPayloadStore(map[video.CacheKey][]byte{key: []byte("v")})
	c := newTestCache(t, store, 100, time.Minute, newFakeClock())

	_, err := c.GetOrLoad(context.Background(), key)
	require.NoError(t, err)
	c.Purge()
	assert.Equal(t, 0, c.Stats().Entries)
	assert.Equal(t, int64(0), c.storedBytes())

	_, err = c.GetOrLoad(context.Background(), key)
	require.NoError(t, err)
	assert.Equal(t, 2, store.Calls(key))
}
