package handler

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/mfreitas/stockholder-portal/internal/auth"
	"github.com/mfreitas/stockholder-portal/internal/config"
	"github.com/mfreitas/stockholder-portal/internal/middleware"
	"github.com/mfreitas/stockholder-portal/internal/queue"
	"github.com/mfreitas/stockholder-portal/internal/repository"
	"github.com/mfreitas/stockholder-portal/internal/service"
	"github.com/mfreitas/stockholder-portal/internal/utils"
)

// AuthHandler bundles dependencies for the auth endpoints.
type AuthHandler struct {
	Cfg   config.Config
	Auth  *auth.Service
	Users *repository.UserRepo
}

func NewAuthHandler(cfg config.Config, svc *auth.Service, users *repository.UserRepo) *AuthHandler {
	return &AuthHandler{Cfg: cfg, Auth: svc, Users: users}
}

// ----- DTOs -----

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}
type changePasswordReq struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
	ConfirmPassword string `json:"confirm_password"`
}
type userPart struct {
	ID      uint64 `json:"id"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	IsAdmin bool   `json:"is_admin"`
}

// Login verifies credentials behind the rate-limit middleware: lockout check
// by identifier, then credential verification. The invalid-credential
// response has the same shape whether the account exists or not.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email and password are required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	res, err := h.Auth.Login(ctx, req.Email, req.Password, middleware.RequestOrigin(c))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "login failed")
	}

	switch res.Outcome {
	case auth.OutcomeAccountLocked:
		return c.JSON(http.StatusLocked, echo.Map{
			"error": "account_locked",
			"message": fmt.Sprintf(
				"Account locked due to too many failed attempts. Try again in %d minutes.",
				res.LockoutMinutes),
			"lockout_minutes": res.LockoutMinutes,
		})
	case auth.OutcomeInvalidCredential:
		body := echo.Map{
			"error":   "invalid_credentials",
			"message": "Invalid email or password.",
		}
		if res.JustLocked {
			body["message"] = fmt.Sprintf(
				"Too many failed attempts. Account locked for %d minutes.", res.LockoutMinutes)
			ev := queue.SecurityEvent{
				Kind:      queue.KindAccountLocked,
				EmailHash: utils.HashForLogging(utils.NormalizeEmail(req.Email)),
				Origin:    middleware.RequestOrigin(c),
				At:        time.Now().UTC().Format(time.RFC3339),
			}
			go func() { _ = service.PublishSecurityEvent(context.Background(), ev) }()
		} else if res.AttemptsLeft <= auth.DiscloseRemainingAt {
			body["message"] = fmt.Sprintf(
				"Invalid email or password. %d attempts remaining before lockout.", res.AttemptsLeft)
			body["attempts_remaining"] = res.AttemptsLeft
		}
		return c.JSON(http.StatusUnauthorized, body)
	}

	tok, err := utils.NewSessionToken(h.Cfg.SessionSecret, res.User.ID, res.User.IsAdmin, h.Cfg.SessionTTLHours)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "issue session failed")
	}
	h.setSessionCookie(c, tok)

	return c.JSON(http.StatusOK, echo.Map{
		"user": userPart{ID: res.User.ID, Name: res.User.Name, Email: res.User.Email, IsAdmin: res.User.IsAdmin},
		"session_expires": tok.Exp,
	})
}

// Logout clears the client-held session. Nothing is stored server-side, so
// there is nothing else to destroy.
func (h *AuthHandler) Logout(c echo.Context) error {
	middleware.ClearSessionCookie(c)
	return c.JSON(http.StatusOK, echo.Map{"message": "You have been logged out."})
}

// ChangePassword re-verifies the current password, applies the strength
// policy to the new one, and terminates the current session so the user logs
// back in with the new credential. Only this session ends; other devices are
// untouched (unlike an admin reset).
func (h *AuthHandler) ChangePassword(c echo.Context) error {
	var req changePasswordReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.NewPassword != req.ConfirmPassword {
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": "passwords must match"})
	}
	if err := utils.ValidateStrongPassword(req.NewPassword); err != nil {
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": err.Error()})
	}

	uid, ok := c.Get(middleware.CtxUserID).(uint64)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	changed, err := h.Auth.ChangePassword(ctx, uid, req.CurrentPassword, req.NewPassword)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "change password failed")
	}
	if !changed {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Current password is incorrect."})
	}

	middleware.ClearSessionCookie(c)
	return c.JSON(http.StatusOK, echo.Map{
		"message": "Your password has been changed successfully. Please log in again.",
	})
}

// Me returns the authenticated principal's profile.
func (h *AuthHandler) Me(c echo.Context) error {
	uid, ok := c.Get(middleware.CtxUserID).(uint64)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	u, err := h.Users.GetByID(ctx, uid)
	if err == sql.ErrNoRows {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "load user failed")
	}
	return c.JSON(http.StatusOK, userPart{ID: u.ID, Name: u.Name, Email: u.Email, IsAdmin: u.IsAdmin})
}

func (h *AuthHandler) setSessionCookie(c echo.Context, tok utils.SessionToken) {
	c.SetCookie(&http.Cookie{
		Name:     middleware.SessionCookie,
		Value:    tok.Token,
		Path:     "/",
		Expires:  tok.Exp,
		HttpOnly: true,
		Secure:   h.Cfg.Env == "prod",
		SameSite: http.SameSiteLaxMode,
	})
}
