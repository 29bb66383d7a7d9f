package model

import "time"

// CycleResult summarizes one scrape-and-reconcile cycle. A cycle never raises:
// failures are folded into Success/Message and reduced counts.
type CycleResult struct {
	Success          bool      `json:"success"`
	RecordsSaved     int       `json:"records_saved"`
	RecordsSkipped   int       `json:"records_skipped"`
	RecordsDropped   int       `json:"records_dropped"`
	CompaniesCreated int       `json:"companies_created"`
	DataSource       string    `json:"data_source_used"`
	Session          string    `json:"market_session"`
	IsTradingDay     bool      `json:"is_trading_day"`
	ScrapeDate       string    `json:"scrape_date"`
	BucketTime       string    `json:"bucket_time"`
	Message          string    `json:"message"`
	Timestamp        time.Time `json:"timestamp"`
}
