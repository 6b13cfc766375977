package services

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/hotvideos/video-info-service/internal/core/domain/video"
	"github.com/hotvideos/video-info-service/internal/core/ports"
)

type VideoInfoService struct {
	cache  ports.VideoInfoCache
	logger *logrus.Logger
}

func NewVideoInfoService(cache ports.VideoInfoCache, logger *logrus.Logger) ports.VideoInfoService {
	return &VideoInfoService{
		cache:  cache,
		logger: logger,
	}
}

// GetVideoInfo returns the serialized ranked list for q, with sort and time defaults applied.
func (s *VideoInfoService) GetVideoInfo(ctx context.Context, q video.Query) ([]byte, error) {
	q = q.Normalize()
	key := video.BuildKey(q)

	payload, err := s.cache.GetOrLoad(ctx, key)
	if err != nil {
		if s.logger != nil {
			s.logger.WithFields(logrus.Fields{"sort": q.Sort, "time": q.Time, "key": key.String()}).WithError(err).Error("failed to load video info")
		}
		return nil, fmt.Errorf("failed to get video info for %s: %w", key, err)
	}
	if s.logger != nil {
		s.logger.WithFields(logrus.Fields{"key": key.String(), "bytes": len(payload)}).Debug("video info served")
	}
	return payload, nil
}
