// Package router wires handlers to routes. Ordering matters on the login
// path: the origin rate limit runs before the handler ever touches lockout
// state or credentials, so a limited request terminates without a single
// database read against the account.
package router

import (
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/mfreitas/stockholder-portal/internal/auth"
	"github.com/mfreitas/stockholder-portal/internal/config"
	"github.com/mfreitas/stockholder-portal/internal/handler"
	"github.com/mfreitas/stockholder-portal/internal/middleware"
)

// RegisterRoutes registers the whole route table with its middleware
// pipelines. rdb may be nil; the response cache then degrades to a no-op.
func RegisterRoutes(e *echo.Echo, cfg config.Config, svc *auth.Service,
	a *handler.AuthHandler, d *handler.DashboardHandler, adm *handler.AdminHandler,
	rdb *redis.Client) {

	e.Use(middleware.SecurityHeaders())

	e.GET("/healthz", handler.Health)

	// Unauthenticated. The login budget is deliberately coarse: it throttles
	// cross-account abuse from one origin, while the per-identifier lockout
	// guard inside the handler deals with attacks on a single account.
	pub := e.Group("/v1/auth")
	pub.POST("/login", a.Login, middleware.RateLimit(svc, 10, 30*time.Minute))

	// Authenticated: every request re-validates against the revocation
	// ledger before reaching a handler.
	sess := middleware.SessionAuth(cfg.SessionSecret, svc)
	priv := e.Group("/v1", sess)
	priv.POST("/auth/logout", a.Logout)
	priv.POST("/auth/change-password", a.ChangePassword)
	priv.GET("/me", a.Me)
	priv.GET("/dashboard", d.Dashboard)
	priv.GET("/company", d.Company, middleware.ResponseCache(rdb, 30*time.Second))

	// Admin-only.
	admin := e.Group("/v1/admin", sess, middleware.RequireAdmin())
	admin.GET("/stockholders", adm.ListStockholders)
	admin.POST("/stockholders", adm.CreateStockholder, middleware.RateLimit(svc, 10, 5*time.Minute))
	admin.PUT("/stockholders/:id", adm.UpdateStockholder, middleware.RateLimit(svc, 50, time.Minute))
	admin.DELETE("/stockholders/:id", adm.DeleteStockholder, middleware.RateLimit(svc, 5, time.Minute))
	admin.POST("/stockholders/:id/reset-password", adm.ResetPassword, middleware.RateLimit(svc, 10, 5*time.Minute))
	admin.PUT("/company/total-stocks", adm.UpdateTotalStocks, middleware.RateLimit(svc, 3, 5*time.Minute))
}
