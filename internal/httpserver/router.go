package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/blog_auth/internal/metrics"
	"github.com/Skotchmaster/blog_auth/internal/middleware/auth"
)

type Deps struct {
	AuthHandler *AuthHTTP
	Verifier    auth.AccessVerifier
	Metrics     *metrics.Metrics

	// Optional. Guards the session routes, e.g. the csrf middleware.
	CSRF echo.MiddlewareFunc

	// Ready reports whether backing stores answer. Nil means always ready.
	Ready func(c echo.Context) error
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/health/ready", func(c echo.Context) error {
		if d.Ready != nil {
			if err := d.Ready(c); err != nil {
				return echo.NewHTTPError(http.StatusServiceUnavailable, "not ready").SetInternal(err)
			}
		}
		return c.NoContent(http.StatusOK)
	})
	if d.Metrics != nil {
		e.GET("/metrics", echo.WrapHandler(d.Metrics.Handler()))
	}

	var guard []echo.MiddlewareFunc
	if d.CSRF != nil {
		guard = append(guard, d.CSRF)
	}

	e.POST("/register", d.AuthHandler.Register, guard...)
	e.POST("/login", d.AuthHandler.Login, guard...)
	e.GET("/refresh", d.AuthHandler.Refresh, guard...)

	private := append(guard[:len(guard):len(guard)], auth.RequireAuth(d.Verifier))
	e.POST("/logout", d.AuthHandler.LogOut, private...)
	e.GET("/me", d.AuthHandler.Me, private...)
}
