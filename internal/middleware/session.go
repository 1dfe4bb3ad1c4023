package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/mfreitas/stockholder-portal/internal/utils"
)

// SessionCookie is the cookie carrying the signed session token.
const SessionCookie = "session"

// Context keys populated by SessionAuth.
const (
	CtxUserID   = "user_id"
	CtxIsAdmin  = "is_admin"
	CtxIssuedAt = "issued_at"
)

// RevocationChecker is the slice of the auth service the session middleware
// needs: has this principal's session, issued then, been revoked since.
type RevocationChecker interface {
	IsSessionRevoked(ctx context.Context, userID uint64, issuedAt time.Time) (bool, error)
}

// SessionAuth validates the client-held session on every request: signature
// and expiry first, then the revocation ledger. A session issued before the
// principal's revocation timestamp is rejected and the cookie cleared, which
// is all "destroying" a session means here — there is no server-side session
// store. Typed principal values are injected into the request context; no
// ambient current-user anywhere.
func SessionAuth(secret string, rc RevocationChecker) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw := tokenFromRequest(c)
			if raw == "" {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
			}
			claims, err := utils.ParseSessionToken(secret, raw)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid session"})
			}

			revoked, err := rc.IsSessionRevoked(c.Request().Context(), claims.UserID, claims.IssuedAt)
			if err != nil {
				return echo.NewHTTPError(http.StatusInternalServerError, "session check failed")
			}
			if revoked {
				ClearSessionCookie(c)
				return c.JSON(http.StatusUnauthorized, echo.Map{
					"error":   "session_revoked",
					"message": "Your session has been invalidated. Please log in again.",
				})
			}

			c.Set(CtxUserID, claims.UserID)
			c.Set(CtxIsAdmin, claims.IsAdmin)
			c.Set(CtxIssuedAt, claims.IssuedAt)
			return next(c)
		}
	}
}

// tokenFromRequest prefers the session cookie and falls back to a bearer
// header for non-browser clients.
func tokenFromRequest(c echo.Context) string {
	if ck, err := c.Cookie(SessionCookie); err == nil && ck.Value != "" {
		return ck.Value
	}
	if auth := c.Request().Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return ""
}

// ClearSessionCookie expires the session cookie on the client.
func ClearSessionCookie(c echo.Context) {
	c.SetCookie(&http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}
