package model

import "time"

// StockHolding mirrors the 'stocks' table: one row per stockholder.
type StockHolding struct {
	ID          uint64
	UserID      uint64
	StockCount  int64
	LastUpdated time.Time
	Notes       string
}

// Stockholder is the admin listing row: a user joined with their holding.
type Stockholder struct {
	ID         uint64  `json:"id"`
	Name       string  `json:"name"`
	Email      string  `json:"email"`
	StockCount int64   `json:"stock_count"`
	Percentage float64 `json:"percentage"`
}
