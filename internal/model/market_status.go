package model

import "time"

// MarketStatus is the materialized per-day summary row, upserted every cycle.
type MarketStatus struct {
	ID                int        `db:"id" json:"-"`
	Date              time.Time  `db:"date" json:"date"`
	IsMarketOpen      bool       `db:"is_market_open" json:"is_market_open"`
	LastScraped       *time.Time `db:"last_scraped" json:"last_scraped"`
	TotalTurnover     float64    `db:"total_turnover" json:"total_turnover"`
	TotalVolume       int64      `db:"total_volume" json:"total_volume"`
	TotalTransactions int        `db:"total_transactions" json:"total_transactions"`
	CreatedAt         time.Time  `db:"created_at" json:"-"`
	UpdatedAt         time.Time  `db:"updated_at" json:"-"`
}
