package repository

import (
	"context"
	"database/sql"

	"github.com/mfreitas/stockholder-portal/internal/model"
)

// StockRepo reads and writes holdings and the single company_info row.
type StockRepo struct{ DB *sql.DB }

func NewStockRepo(db *sql.DB) *StockRepo { return &StockRepo{DB: db} }

// GetForUser returns the holding for a principal. A missing row is not an
// error: it reads as a zero holding.
func (r *StockRepo) GetForUser(ctx context.Context, userID uint64) (model.StockHolding, error) {
	var (
		h     model.StockHolding
		notes sql.NullString
	)
	err := r.DB.QueryRowContext(ctx,
		"SELECT id, user_id, stock_count, last_updated, notes FROM stocks WHERE user_id=? LIMIT 1",
		userID).Scan(&h.ID, &h.UserID, &h.StockCount, &h.LastUpdated, &notes)
	if err == sql.ErrNoRows {
		return model.StockHolding{UserID: userID}, nil
	}
	if err != nil {
		return model.StockHolding{}, err
	}
	h.Notes = notes.String
	return h, nil
}

// Upsert sets a principal's stock count, creating the holding row if needed.
func (r *StockRepo) Upsert(ctx context.Context, userID uint64, stockCount int64, notes string) error {
	var id uint64
	err := r.DB.QueryRowContext(ctx, "SELECT id FROM stocks WHERE user_id=? LIMIT 1", userID).Scan(&id)
	switch err {
	case nil:
		_, err = r.DB.ExecContext(ctx,
			"UPDATE stocks SET stock_count=?, notes=?, last_updated=NOW(6) WHERE user_id=?",
			stockCount, notes, userID)
		return err
	case sql.ErrNoRows:
		_, err = r.DB.ExecContext(ctx,
			"INSERT INTO stocks (user_id, stock_count, notes) VALUES (?,?,?)",
			userID, stockCount, notes)
		return err
	default:
		return err
	}
}

// Company returns the company_info row.
func (r *StockRepo) Company(ctx context.Context) (model.CompanyInfo, error) {
	var c model.CompanyInfo
	err := r.DB.QueryRowContext(ctx,
		"SELECT id, total_stocks, company_name, last_updated FROM company_info LIMIT 1").
		Scan(&c.ID, &c.TotalStocks, &c.CompanyName, &c.LastUpdated)
	if err == sql.ErrNoRows {
		return model.CompanyInfo{}, nil
	}
	return c, err
}

// TotalStocks returns the company-wide total used for ownership percentages.
func (r *StockRepo) TotalStocks(ctx context.Context) (int64, error) {
	var total int64
	err := r.DB.QueryRowContext(ctx, "SELECT total_stocks FROM company_info LIMIT 1").Scan(&total)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	return total, err
}

// UpdateTotalStocks replaces the company-wide total.
func (r *StockRepo) UpdateTotalStocks(ctx context.Context, total int64) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE company_info SET total_stocks=?, last_updated=NOW(6)", total)
	return err
}
