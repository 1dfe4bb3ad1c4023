package handler

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/mfreitas/stockholder-portal/internal/auth"
	"github.com/mfreitas/stockholder-portal/internal/config"
	"github.com/mfreitas/stockholder-portal/internal/logger"
	"github.com/mfreitas/stockholder-portal/internal/middleware"
	"github.com/mfreitas/stockholder-portal/internal/queue"
	"github.com/mfreitas/stockholder-portal/internal/repository"
	"github.com/mfreitas/stockholder-portal/internal/service"
	"github.com/mfreitas/stockholder-portal/internal/utils"
)

const maxStockCount = 10_000_000

// AdminHandler serves the administrator-only account and allocation
// management endpoints. Every route here sits behind SessionAuth +
// RequireAdmin.
type AdminHandler struct {
	Cfg    config.Config
	Auth   *auth.Service
	Users  *repository.UserRepo
	Stocks *repository.StockRepo
}

func NewAdminHandler(cfg config.Config, svc *auth.Service, users *repository.UserRepo, stocks *repository.StockRepo) *AdminHandler {
	return &AdminHandler{Cfg: cfg, Auth: svc, Users: users, Stocks: stocks}
}

// ----- DTOs -----

type createStockholderReq struct {
	Name       string `json:"name"`
	Email      string `json:"email"`
	Password   string `json:"password"`
	StockCount int64  `json:"stock_count"`
}
type updateStockholderReq struct {
	Name       string `json:"name"`
	Email      string `json:"email"`
	StockCount int64  `json:"stock_count"`
}
type resetPasswordReq struct {
	NewPassword     string `json:"new_password"`
	ConfirmPassword string `json:"confirm_password"`
}
type totalStocksReq struct {
	TotalStocks int64 `json:"total_stocks"`
}

// ListStockholders returns every non-admin allocation with ownership
// percentages, sorted by percentage descending then last name ascending,
// plus the allocated/unallocated totals.
func (h *AdminHandler) ListStockholders(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	holders, err := h.Users.ListStockholders(ctx)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "list failed")
	}
	total, err := h.Stocks.TotalStocks(ctx)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "list failed")
	}

	var allocated int64
	for i := range holders {
		allocated += holders[i].StockCount
		if total > 0 {
			holders[i].Percentage = float64(holders[i].StockCount) / float64(total) * 100
		}
	}
	sort.SliceStable(holders, func(i, j int) bool {
		if holders[i].Percentage != holders[j].Percentage {
			return holders[i].Percentage > holders[j].Percentage
		}
		return lastName(holders[i].Name) < lastName(holders[j].Name)
	})

	return c.JSON(http.StatusOK, echo.Map{
		"stockholders":       holders,
		"total_stocks":       total,
		"total_allocated":    allocated,
		"unallocated_stocks": total - allocated,
	})
}

// CreateStockholder creates a principal with an initial allocation. The
// password must satisfy the strength policy; the email must be unused.
func (h *AdminHandler) CreateStockholder(c echo.Context) error {
	var req createStockholderReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" || len(req.Name) > 100 {
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": "name must be 1-100 characters"})
	}
	email := utils.NormalizeEmail(req.Email)
	if !strings.Contains(email, "@") {
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": "invalid email"})
	}
	if err := utils.ValidateStrongPassword(req.Password); err != nil {
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": err.Error()})
	}
	if req.StockCount < 0 || req.StockCount > maxStockCount {
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{
			"error": "stock count must be between 0 and 10,000,000"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	hash, err := utils.HashPassword(req.Password, h.Cfg.BcryptCost)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "create failed")
	}
	id, err := h.Users.Create(ctx, req.Name, email, hash, req.StockCount)
	if errors.Is(err, repository.ErrEmailExists) {
		return c.JSON(http.StatusConflict, echo.Map{"error": "Email already exists. Please choose a different one."})
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "create failed")
	}

	h.publishEvent(queue.SecurityEvent{
		Kind:      queue.KindStockholderCreated,
		UserID:    id,
		EmailHash: utils.HashForLogging(email),
	})
	return c.JSON(http.StatusCreated, echo.Map{
		"id": id,
		"message": fmt.Sprintf("Stockholder %q created successfully with %d stocks.",
			req.Name, req.StockCount),
	})
}

// UpdateStockholder updates name, email and stock count atomically. Admin
// principals cannot be edited through this endpoint.
func (h *AdminHandler) UpdateStockholder(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	var req updateStockholderReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" || len(req.Name) > 100 {
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": "name must be 1-100 characters"})
	}
	email := utils.NormalizeEmail(req.Email)
	if !strings.Contains(email, "@") {
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": "invalid email"})
	}
	if req.StockCount < 0 || req.StockCount > maxStockCount {
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{
			"error": "stock count must be between 0 and 10,000,000"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	err = h.Users.UpdateProfile(ctx, id, req.Name, email, req.StockCount)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "Stockholder not found."})
	case errors.Is(err, repository.ErrAdminProtected):
		return c.JSON(http.StatusForbidden, echo.Map{"error": "Cannot update admin users through this interface."})
	case errors.Is(err, repository.ErrEmailExists):
		return c.JSON(http.StatusConflict, echo.Map{"error": "Update failed. Email might already be in use."})
	case err != nil:
		return echo.NewHTTPError(http.StatusInternalServerError, "update failed")
	}

	adminID, _ := c.Get(middleware.CtxUserID).(uint64)
	h.log().Infow("stockholder updated",
		"admin_id", adminID, "user_id", id, "email_hash", utils.HashForLogging(email))
	return c.JSON(http.StatusOK, echo.Map{"message": "Stockholder updated successfully."})
}

// DeleteStockholder removes a non-admin principal and their holding.
func (h *AdminHandler) DeleteStockholder(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	target, err := h.Users.GetByID(ctx, id)
	if err == sql.ErrNoRows {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "Stockholder not found."})
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "delete failed")
	}

	err = h.Users.Delete(ctx, id)
	switch {
	case errors.Is(err, repository.ErrAdminProtected):
		return c.JSON(http.StatusForbidden, echo.Map{"error": "Cannot delete admin users."})
	case errors.Is(err, repository.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "Stockholder not found."})
	case err != nil:
		return echo.NewHTTPError(http.StatusInternalServerError, "delete failed")
	}

	h.publishEvent(queue.SecurityEvent{
		Kind:      queue.KindStockholderDeleted,
		UserID:    id,
		EmailHash: utils.HashForLogging(target.Email),
	})
	return c.JSON(http.StatusOK, echo.Map{
		"message": fmt.Sprintf("Stockholder %q has been deleted successfully.", target.Name),
	})
}

// ResetPassword replaces a stockholder's password and revokes every
// outstanding session for them, on all devices. Forbidden against admin
// principals.
func (h *AdminHandler) ResetPassword(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	var req resetPasswordReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.NewPassword != req.ConfirmPassword {
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": "passwords must match"})
	}
	if err := utils.ValidateStrongPassword(req.NewPassword); err != nil {
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": err.Error()})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	target, err := h.Auth.ResetPassword(ctx, id, req.NewPassword)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "User not found."})
	case errors.Is(err, repository.ErrAdminProtected):
		return c.JSON(http.StatusForbidden, echo.Map{"error": "Cannot reset admin user passwords through this interface."})
	case err != nil:
		return echo.NewHTTPError(http.StatusInternalServerError, "reset failed")
	}

	adminID, _ := c.Get(middleware.CtxUserID).(uint64)
	h.log().Infow("password reset by admin",
		"admin_id", adminID, "target_id", id, "email_hash", utils.HashForLogging(target.Email))
	h.publishEvent(queue.SecurityEvent{
		Kind:      queue.KindAdminPasswordReset,
		UserID:    id,
		EmailHash: utils.HashForLogging(target.Email),
	})
	return c.JSON(http.StatusOK, echo.Map{
		"message": fmt.Sprintf("Password reset successful for %s. User will be logged out.", target.Email),
	})
}

// UpdateTotalStocks replaces the company-wide total.
func (h *AdminHandler) UpdateTotalStocks(c echo.Context) error {
	var req totalStocksReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.TotalStocks < 1 {
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": "total stocks must be positive"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Stocks.UpdateTotalStocks(ctx, req.TotalStocks); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "update failed")
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "Total stocks updated successfully."})
}

func (h *AdminHandler) publishEvent(ev queue.SecurityEvent) {
	ev.At = time.Now().UTC().Format(time.RFC3339)
	go func() { _ = service.PublishSecurityEvent(context.Background(), ev) }()
}

func (h *AdminHandler) log() *zap.SugaredLogger { return logger.S() }

// lastName extracts the sort key used for tie-breaking the admin listing.
func lastName(name string) string {
	fields := strings.Fields(name)
	if len(fields) == 0 {
		return ""
	}
	return strings.ToLower(fields[len(fields)-1])
}
