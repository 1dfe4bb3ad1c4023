package model

import "time"

// CompanyInfo mirrors the single-row 'company_info' table.
type CompanyInfo struct {
	ID          uint64
	TotalStocks int64
	CompanyName string
	LastUpdated time.Time
}
