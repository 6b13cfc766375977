package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/hotvideos/video-info-service/internal/core/domain/video"
	"github.com/hotvideos/video-info-service/internal/core/ports"
)

// Getter is satisfied by *sqlx.DB and *sqlx.Tx.
type Getter interface {
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
}

// VideoInfoRepository reads ranked video info payloads from Postgres.
type VideoInfoRepository struct {
	db Getter
}

var _ ports.VideoInfoStore = (*VideoInfoRepository)(nil)

// NewVideoInfoRepository creates a new video info repository
func NewVideoInfoRepository(db Getter) *VideoInfoRepository {
	return &VideoInfoRepository{db: db}
}

func (r *VideoInfoRepository) Name() string { return "postgres" }

// Fetch retrieves the payload stored for key
func (r *VideoInfoRepository) Fetch(ctx context.Context, key video.CacheKey) ([]byte, error) {
	var payload string
	query := `SELECT video_info FROM video_info WHERE sort_type = $1`

	err := r.db.GetContext(ctx, &payload, query, key.String())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: no row for %q", video.ErrNotFound, key)
		}
		return nil, fmt.Errorf("%w: failed to get video info: %w", video.ErrBackendUnavailable, err)
	}

	return []byte(payload), nil
}
