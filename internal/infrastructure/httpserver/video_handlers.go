package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/hotvideos/video-info-service/internal/core/domain/video"
)

// getVideoInfo serves the ranked video list for the sort and time query parameters.
// The stored payload is already JSON and is written as is.
func (s *Server) getVideoInfo(c echo.Context) error {
	q := video.Query{
		Sort: c.QueryParam("sort"),
		Time: c.QueryParam("time"),
	}

	payload, err := s.videoInfoSvc.GetVideoInfo(c.Request().Context(), q)
	if err != nil {
		return err
	}
	return c.JSONBlob(http.StatusOK, payload)
}
