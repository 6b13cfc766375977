package httpserver

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

type errorResponse struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
	Type    string `json:"type"`
}

var (
	notFoundResponse = errorResponse{Status: http.StatusNotFound, Message: "resource not found", Type: "not-found"}
	internalResponse = errorResponse{Status: http.StatusInternalServerError, Message: "internal error", Type: "internal"}
)

// handleError writes a JSON error body for every failed request. Unmatched routes are 404;
// anything else is logged and reported as a generic 500.
func (s *Server) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	resp := internalResponse
	var he *echo.HTTPError
	if errors.As(err, &he) && (he.Code == http.StatusNotFound || he.Code == http.StatusMethodNotAllowed) {
		resp = notFoundResponse
	} else if s.logger != nil {
		s.logger.WithFields(logrus.Fields{
			"method":     c.Request().Method,
			"uri":        c.Request().RequestURI,
			"request_id": c.Response().Header().Get(echo.HeaderXRequestID),
		}).WithError(err).Error("request failed")
	}

	if c.Request().Method == http.MethodHead {
		err = c.NoContent(resp.Status)
	} else {
		err = c.JSON(resp.Status, resp)
	}
	if err != nil && s.logger != nil {
		s.logger.WithError(err).Error("failed to write error response")
	}
}
