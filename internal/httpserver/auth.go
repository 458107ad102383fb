package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/blog_auth/internal/cookies"
	"github.com/Skotchmaster/blog_auth/internal/logging"
	"github.com/Skotchmaster/blog_auth/internal/middleware/auth"
	"github.com/Skotchmaster/blog_auth/internal/service"
)

type AuthHTTP struct {
	Svc          *service.AuthService
	CookieSecure bool
}

func (h *AuthHTTP) Register(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_register")

	var req service.RegisterInput
	if err := c.Bind(&req); err != nil {
		l.Warn("register_error", "status", 400, "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	res, err := h.Svc.Register(ctx, req)
	if err != nil {
		return httpError(err)
	}

	h.setSession(c, res)
	return c.JSON(http.StatusCreated, echo.Map{
		"user": res.User,
		"auth": true,
	})
}

func (h *AuthHTTP) Login(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_login")

	var req struct {
		Username string `json:"username" form:"username"`
		Password string `json:"password" form:"password"`
	}
	if err := c.Bind(&req); err != nil {
		l.Warn("login_error", "status", 400, "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	res, err := h.Svc.Login(ctx, req.Username, req.Password)
	if err != nil {
		return httpError(err)
	}

	h.setSession(c, res)
	return c.JSON(http.StatusCreated, echo.Map{
		"user": res.User,
		"auth": true,
	})
}

func (h *AuthHTTP) Refresh(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_refresh")

	refreshCookie, err := c.Cookie(cookies.RefreshToken)
	if err != nil || refreshCookie.Value == "" {
		l.Warn("refresh_error", "status", 401, "reason", "no refresh cookie")
		return echo.NewHTTPError(http.StatusUnauthorized, service.MsgUnauthorized)
	}

	res, err := h.Svc.Refresh(ctx, refreshCookie.Value)
	if err != nil {
		return httpError(err)
	}

	h.setSession(c, res)
	return c.JSON(http.StatusOK, echo.Map{
		"user": res.User,
		"auth": true,
	})
}

func (h *AuthHTTP) LogOut(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_logout")

	if refreshCookie, err := c.Cookie(cookies.RefreshToken); err == nil {
		if err := h.Svc.LogOut(ctx, refreshCookie.Value); err != nil {
			return httpError(err)
		}
	}

	c.SetCookie(cookies.DeleteCookie(cookies.RefreshToken, "/", h.CookieSecure))
	c.SetCookie(cookies.DeleteCookie(cookies.AccessToken, "/", h.CookieSecure))

	l.Info("successful_logout")
	return c.JSON(http.StatusOK, echo.Map{
		"user": nil,
		"auth": false,
	})
}

func (h *AuthHTTP) Me(c echo.Context) error {
	ctx := c.Request().Context()

	userID, ok := auth.UserIDFromContext(ctx)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, service.MsgUnauthorized)
	}

	user, err := h.Svc.User(ctx, userID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, echo.Map{"user": user})
}

func (h *AuthHTTP) setSession(c echo.Context, res *service.SessionResult) {
	c.SetCookie(cookies.CreateCookie(cookies.AccessToken, res.Access.Token, "/", h.CookieSecure))
	c.SetCookie(cookies.CreateCookie(cookies.RefreshToken, res.Refresh.Token, "/", h.CookieSecure))
}
