package httpserver

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/blog_auth/internal/service"
)

func statusOf(err error) int {
	switch {
	case errors.Is(err, service.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, service.ErrUnauthorized):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// httpError turns a service error into an echo error carrying only the
// client-safe message. The cause stays on Internal for the request log.
func httpError(err error) *echo.HTTPError {
	return echo.NewHTTPError(statusOf(err), service.Message(err)).SetInternal(err)
}
