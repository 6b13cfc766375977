package middleware

import (
	"github.com/labstack/echo/v4"
)

// JSONMiddleware marks every response as JSON unless a handler sets another type.
type JSONMiddleware struct{}

func NewJSONMiddleware() *JSONMiddleware {
	return &JSONMiddleware{}
}

func (m *JSONMiddleware) ForceJSON() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Response().Header().Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
			return next(c)
		}
	}
}
