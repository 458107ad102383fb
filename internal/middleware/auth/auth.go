package auth

import (
	"context"
	"net/http"

	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/blog_auth/internal/cookies"
	"github.com/Skotchmaster/blog_auth/internal/logging"
	"github.com/Skotchmaster/blog_auth/internal/tokens"
)

// ContextKeyUserID is the echo.Context key holding the verified subject.
const ContextKeyUserID = "user_id"

type AccessVerifier interface {
	Verify(token string, class tokens.Class) (string, error)
}

type ctxKey struct{}

func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, ctxKey{}, userID)
}

func UserIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(ctxKey{}).(string)
	return id, ok && id != ""
}

// RequireAuth admits requests that carry a valid access token in the
// accessToken cookie or an Authorization bearer header. It never touches
// a store.
func RequireAuth(v AccessVerifier) echo.MiddlewareFunc {
	return echojwt.WithConfig(echojwt.Config{
		ContextKey:  ContextKeyUserID,
		TokenLookup: "cookie:" + cookies.AccessToken + ",header:Authorization:Bearer ",
		ParseTokenFunc: func(c echo.Context, token string) (interface{}, error) {
			return v.Verify(token, tokens.Access)
		},
		SuccessHandler: func(c echo.Context) {
			userID, _ := c.Get(ContextKeyUserID).(string)
			req := c.Request()
			ctx := logging.With(WithUserID(req.Context(), userID), "user_id", userID)
			c.SetRequest(req.WithContext(ctx))
		},
		ErrorHandler: func(c echo.Context, err error) error {
			logging.FromContext(c.Request().Context()).Warn("auth_rejected", "status", 401, "error", err)
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid or expired token")
		},
	})
}
