package model

import "time"

// SourceKind tags the provenance of an observation.
type SourceKind string

const (
	SourceLive       SourceKind = "live"
	SourceClosing    SourceKind = "closing"
	SourceHistorical SourceKind = "historical"
)

// ObservationRecord is the canonical, source-agnostic shape produced by the
// normalizer. Pointer fields are nil when the source did not provide a usable
// value and it could not be derived.
type ObservationRecord struct {
	Symbol           string   `json:"symbol"`
	SecurityName     string   `json:"security_name,omitempty"`
	LastTradedPrice  float64  `json:"last_traded_price"`
	PreviousClose    *float64 `json:"previous_close,omitempty"`
	PointChange      *float64 `json:"point_change,omitempty"`
	PercentageChange *float64 `json:"percentage_change,omitempty"`
}

// StockObservation is one persisted scrape reading for a company. Rows are
// unique on (company_id, obs_date, obs_time, source).
type StockObservation struct {
	ID               int        `db:"id" json:"id"`
	CompanyID        int        `db:"company_id" json:"-"`
	Symbol           string     `db:"symbol" json:"symbol"`
	CompanyName      string     `db:"company_name" json:"company_name"`
	LastTradedPrice  *float64   `db:"last_traded_price" json:"last_traded_price"`
	PreviousClose    *float64   `db:"previous_close" json:"previous_close"`
	PointChange      *float64   `db:"point_change" json:"point_change"`
	PercentageChange *float64   `db:"percentage_change" json:"percentage_change"`
	ObsDate          time.Time  `db:"obs_date" json:"date"`
	ObsTime          string     `db:"obs_time" json:"time"`
	Source           SourceKind `db:"source" json:"source"`
	IsClosing        bool       `db:"is_closing" json:"is_closing"`
	CreatedAt        time.Time  `db:"created_at" json:"created_at"`
}

// RankedObservation is an observation with its position in a movers list.
type RankedObservation struct {
	Rank int `json:"rank"`
	StockObservation
}

// HistoryPoint is one day of a symbol's time series.
type HistoryPoint struct {
	Date             string   `json:"date"`
	LastTradedPrice  *float64 `json:"last_traded_price"`
	PreviousClose    *float64 `json:"previous_close"`
	PointChange      *float64 `json:"point_change"`
	PercentageChange *float64 `json:"percentage_change"`
	Source           string   `json:"source"`
}
