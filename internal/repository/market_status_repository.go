package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/bishal-2630/Nepse-Scrapper/internal/model"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// MarketStatusRepository handles the per-day market status summary row
type MarketStatusRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// NewMarketStatusRepository creates a new market status repository
func NewMarketStatusRepository(db *sqlx.DB, logger *zap.Logger) *MarketStatusRepository {
	return &MarketStatusRepository{
		db:     db,
		logger: logger,
	}
}

// Upsert creates or refreshes the status row for a date. At most one row per
// date exists; the unique constraint makes concurrent cycles converge.
func (r *MarketStatusRepository) Upsert(
	ctx context.Context,
	date time.Time,
	isOpen bool,
	lastScraped time.Time,
) error {
	query := `
		INSERT INTO market_status (date, is_market_open, last_scraped, created_at, updated_at)
		VALUES ($1, $2, $3, NOW(), NOW())
		ON CONFLICT (date) DO UPDATE SET
			is_market_open = EXCLUDED.is_market_open,
			last_scraped = EXCLUDED.last_scraped,
			updated_at = NOW()
	`

	_, err := r.db.ExecContext(ctx, query, date, isOpen, lastScraped)
	if err != nil {
		r.logger.Error("Failed to upsert market status",
			zap.Error(err),
			zap.Time("date", date))
		return err
	}

	return nil
}

// GetByDate returns the status row for a date, or (nil, nil) when no cycle
// has run for that date yet.
func (r *MarketStatusRepository) GetByDate(ctx context.Context, date time.Time) (*model.MarketStatus, error) {
	query := `
		SELECT id, date, is_market_open, last_scraped, total_turnover,
			total_volume, total_transactions, created_at, updated_at
		FROM market_status
		WHERE date = $1
	`

	var status model.MarketStatus
	err := r.db.GetContext(ctx, &status, query, date)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get market status",
			zap.Error(err),
			zap.Time("date", date))
		return nil, err
	}

	return &status, nil
}
