package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/mfreitas/stockholder-portal/internal/middleware"
	"github.com/mfreitas/stockholder-portal/internal/repository"
)

// DashboardHandler serves the stockholder-facing read endpoints.
type DashboardHandler struct {
	Stocks *repository.StockRepo
}

func NewDashboardHandler(stocks *repository.StockRepo) *DashboardHandler {
	return &DashboardHandler{Stocks: stocks}
}

// Dashboard returns the authenticated stockholder's own allocation and
// ownership percentage. Stockholders only ever see their own row.
func (h *DashboardHandler) Dashboard(c echo.Context) error {
	uid, ok := c.Get(middleware.CtxUserID).(uint64)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	holding, err := h.Stocks.GetForUser(ctx, uid)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "load stocks failed")
	}
	total, err := h.Stocks.TotalStocks(ctx)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "load stocks failed")
	}

	pct := 0.0
	if total > 0 {
		pct = float64(holding.StockCount) / float64(total) * 100
	}

	return c.JSON(http.StatusOK, echo.Map{
		"stock_count":          holding.StockCount,
		"last_updated":         holding.LastUpdated,
		"notes":                holding.Notes,
		"total_stocks":         total,
		"ownership_percentage": pct,
	})
}

// Company returns the company name and total stocks. The body is identical
// for every authenticated user, so the route sits behind the response cache.
func (h *DashboardHandler) Company(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	info, err := h.Stocks.Company(ctx)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "load company failed")
	}
	return c.JSON(http.StatusOK, echo.Map{
		"company_name": info.CompanyName,
		"total_stocks": info.TotalStocks,
		"last_updated": info.LastUpdated,
	})
}
