package model

import "time"

// Company is the identity entity for a listed security. The symbol is the
// sole natural key; name and sector are refreshed from scraped data.
type Company struct {
	ID           int       `db:"id" json:"id"`
	Symbol       string    `db:"symbol" json:"symbol"`
	Name         string    `db:"name" json:"name"`
	Sector       *string   `db:"sector" json:"sector,omitempty"`
	ListedShares int64     `db:"listed_shares" json:"listed_shares"`
	IsActive     bool      `db:"is_active" json:"is_active"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// SearchResult is a company enriched with its latest observation, when one exists.
type SearchResult struct {
	Symbol           string   `json:"symbol"`
	CompanyName      string   `json:"company_name"`
	Sector           string   `json:"sector"`
	HasData          bool     `json:"has_data"`
	Date             string   `json:"date,omitempty"`
	LastTradedPrice  *float64 `json:"last_traded_price,omitempty"`
	PercentageChange *float64 `json:"percentage_change,omitempty"`
}
