package mocks

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/hotvideos/video-info-service/internal/core/domain/video"
	"github.com/hotvideos/video-info-service/internal/core/ports"
)

// VideoInfoStoreMock is a lightweight mock for VideoInfoStore. Calls counts Fetch invocations.
type VideoInfoStoreMock struct {
	NameValue string
	FetchFn   func(ctx context.Context, key video.CacheKey) ([]byte, error)
	Calls     atomic.Int64
}

func (m *VideoInfoStoreMock) Name() string {
	if m.NameValue != "" {
		return m.NameValue
	}
	return "mock"
}
func (m *VideoInfoStoreMock) Fetch(ctx context.Context, key video.CacheKey) ([]byte, error) {
	m.Calls.Add(1)
	if m.FetchFn != nil {
		return m.FetchFn(ctx, key)
	}
	return nil, fmt.Errorf("%s: %w", key, video.ErrNotFound)
}

// VideoInfoCacheMock is a lightweight mock for VideoInfoCache
type VideoInfoCacheMock struct {
	GetOrLoadFn func(ctx context.Context, key video.CacheKey) ([]byte, error)
	StatsFn     func() ports.CacheStats
	PurgeFn     func()
}

func (m *VideoInfoCacheMock) GetOrLoad(ctx context.Context, key video.CacheKey) ([]byte, error) {
	if m.GetOrLoadFn != nil {
		return m.GetOrLoadFn(ctx, key)
	}
	return nil, fmt.Errorf("%s: %w", key, video.ErrNotFound)
}
func (m *VideoInfoCacheMock) Stats() ports.CacheStats {
	if m.StatsFn != nil {
		return m.StatsFn()
	}
	return ports.CacheStats{}
}
func (m *VideoInfoCacheMock) Purge() {
	if m.PurgeFn != nil {
		m.PurgeFn()
	}
}

// VideoInfoServiceMock is a lightweight mock for VideoInfoService
type VideoInfoServiceMock struct {
	GetVideoInfoFn func(ctx context.Context, q video.Query) ([]byte, error)
}

func (m *VideoInfoServiceMock) GetVideoInfo(ctx context.Context, q video.Query) ([]byte, error) {
	if m.GetVideoInfoFn != nil {
		return m.GetVideoInfoFn(ctx, q)
	}
	return []byte("[]"), nil
}

// HealthCheckerMock reports CheckErr from Check.
type HealthCheckerMock struct {
	NameValue string
	CheckErr  error
}

func (m *HealthCheckerMock) Name() string                  { return m.NameValue }
func (m *HealthCheckerMock) Check(_ context.Context) error { return m.CheckErr }
