package ports

import (
	"context"

	"github.com/hotvideos/video-info-service/internal/core/domain/video"
)

// VideoInfoService resolves ranked video info for a query.
type VideoInfoService interface {
	GetVideoInfo(ctx context.Context, q video.Query) ([]byte, error)
}
