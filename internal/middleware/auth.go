package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/nfrund/accounts/internal/domain"
)

const (
	// AccountContextKey holds the authenticated *domain.Account.
	AccountContextKey = "account"
	// TokenContextKey holds the session token the request authenticated with.
	TokenContextKey = "session_token"
	// AuthCookieName is the cookie carrying the session token for browser clients.
	AuthCookieName = "auth_token"
)

// SessionResolver looks up the account holding a session token.
type SessionResolver interface {
	GetByToken(ctx context.Context, token string) (*domain.Account, error)
}

// Auth creates a middleware that protects routes that require
// authentication. The session token is read from an "Authorization: Bearer"
// header or, failing that, from the auth cookie. Unknown and expired tokens
// are rejected with 401. now may be nil, meaning time.Now.
func Auth(resolver SessionResolver, now func() time.Time) echo.MiddlewareFunc {
	if now == nil {
		now = time.Now
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token, fromCookie := SessionToken(c)
			if token == "" {
				return unauthorized(c, "authentication required")
			}

			ctx := c.Request().Context()
			acct, err := resolver.GetByToken(ctx, token)
			if err != nil || acct == nil {
				if err != nil && domain.StatusOf(err) == http.StatusInternalServerError {
					FromContext(ctx).Error("Session lookup failed", "error", err)
					return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
				}
				if fromCookie {
					clearAuthCookie(c)
				}
				return unauthorized(c, "invalid session token")
			}
			if acct.SessionExpired(now()) {
				if fromCookie {
					clearAuthCookie(c)
				}
				return unauthorized(c, "session token has expired")
			}

			c.Set(AccountContextKey, acct)
			c.Set(TokenContextKey, token)

			logger := FromContext(ctx).With("account_id", acct.IDString())
			c.SetRequest(c.Request().WithContext(WithLogger(ctx, logger)))

			return next(c)
		}
	}
}

// SessionToken extracts the session token from the request. fromCookie
// reports whether it came from the auth cookie.
func SessionToken(c echo.Context) (token string, fromCookie bool) {
	if header := c.Request().Header.Get(echo.HeaderAuthorization); header != "" {
		scheme, value, ok := strings.Cut(header, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(value), false
		}
	}
	if cookie, err := c.Cookie(AuthCookieName); err == nil && cookie.Value != "" {
		return cookie.Value, true
	}
	return "", false
}

// AccountFromContext returns the account stored by Auth.
func AccountFromContext(c echo.Context) (*domain.Account, bool) {
	acct, ok := c.Get(AccountContextKey).(*domain.Account)
	return acct, ok && acct != nil
}

func unauthorized(c echo.Context, message string) error {
	return c.JSON(http.StatusUnauthorized, echo.Map{
		"code":    domain.KindUnauthorized.String(),
		"message": message,
	})
}

func clearAuthCookie(c echo.Context) {
	c.SetCookie(&http.Cookie{
		Name:     AuthCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
}
