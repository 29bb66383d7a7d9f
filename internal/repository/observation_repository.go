package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/bishal-2630/Nepse-Scrapper/internal/model"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// observationColumns is the shared select list. obs_time is cast to text so
// the driver hands back a stable "HH:MM:SS" string regardless of session
// time zone settings.
const observationColumns = `
	o.id, o.company_id, o.symbol, c.name AS company_name,
	o.last_traded_price, o.previous_close, o.point_change, o.percentage_change,
	o.obs_date, o.obs_time::text AS obs_time, o.source, o.is_closing, o.created_at
`

// ObservationRepository handles database operations for stock observations
type ObservationRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// NewObservationRepository creates a new observation repository
func NewObservationRepository(db *sqlx.DB, logger *zap.Logger) *ObservationRepository {
	return &ObservationRepository{
		db:     db,
		logger: logger,
	}
}

// Exists checks whether an observation already occupies the dedup bucket.
func (r *ObservationRepository) Exists(
	ctx context.Context,
	companyID int,
	date time.Time,
	bucketTime string,
	source model.SourceKind,
) (bool, error) {
	query := `
		SELECT EXISTS(
			SELECT 1 FROM stock_observations
			WHERE company_id = $1 AND obs_date = $2 AND obs_time = $3::time AND source = $4
		)
	`

	var exists bool
	err := r.db.GetContext(ctx, &exists, query, companyID, date, bucketTime, source)
	if err != nil {
		r.logger.Error("Failed to check observation existence",
			zap.Error(err),
			zap.Int("company_id", companyID),
			zap.String("bucket", bucketTime))
		return false, err
	}

	return exists, nil
}

// Insert stores a new observation for a bucket. The unique constraint on
// (company_id, obs_date, obs_time, source) backs the caller's existence
// check: a concurrent re-trigger of the same bucket becomes a no-op here, and
// the returned flag reports whether a row was actually written.
func (r *ObservationRepository) Insert(
	ctx context.Context,
	companyID int,
	rec model.ObservationRecord,
	date time.Time,
	bucketTime string,
	source model.SourceKind,
	isClosing bool,
) (bool, error) {
	query := `
		INSERT INTO stock_observations
			(company_id, symbol, last_traded_price, previous_close, point_change,
			 percentage_change, obs_date, obs_time, source, is_closing, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8::time, $9, $10, NOW())
		ON CONFLICT (company_id, obs_date, obs_time, source) DO NOTHING
	`

	res, err := r.db.ExecContext(
		ctx, query,
		companyID, rec.Symbol, rec.LastTradedPrice, rec.PreviousClose,
		rec.PointChange, rec.PercentageChange, date, bucketTime, source, isClosing,
	)
	if err != nil {
		r.logger.Error("Failed to insert observation",
			zap.Error(err),
			zap.String("symbol", rec.Symbol),
			zap.String("bucket", bucketTime))
		return false, err
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

// Overwrite replaces the values of an existing bucket row with the latest
// scrape. Used when the duplicate policy is overwrite-latest.
func (r *ObservationRepository) Overwrite(
	ctx context.Context,
	companyID int,
	rec model.ObservationRecord,
	date time.Time,
	bucketTime string,
	source model.SourceKind,
) error {
	query := `
		UPDATE stock_observations
		SET last_traded_price = $1,
			previous_close = $2,
			point_change = $3,
			percentage_change = $4
		WHERE company_id = $5 AND obs_date = $6 AND obs_time = $7::time AND source = $8
	`

	_, err := r.db.ExecContext(
		ctx, query,
		rec.LastTradedPrice, rec.PreviousClose, rec.PointChange, rec.PercentageChange,
		companyID, date, bucketTime, source,
	)
	if err != nil {
		r.logger.Error("Failed to overwrite observation",
			zap.Error(err),
			zap.String("symbol", rec.Symbol),
			zap.String("bucket", bucketTime))
		return err
	}

	return nil
}

// LatestBucket returns the most recent scrape time recorded for a date.
// The second return is false when the date has no observations.
func (r *ObservationRepository) LatestBucket(ctx context.Context, date time.Time) (string, bool, error) {
	query := `SELECT MAX(obs_time)::text FROM stock_observations WHERE obs_date = $1`

	var bucket sql.NullString
	err := r.db.GetContext(ctx, &bucket, query, date)
	if err != nil {
		r.logger.Error("Failed to get latest bucket", zap.Error(err), zap.Time("date", date))
		return "", false, err
	}
	if !bucket.Valid {
		return "", false, nil
	}

	return bucket.String, true, nil
}

// LatestDate returns the most recent date with any observations at all.
func (r *ObservationRepository) LatestDate(ctx context.Context) (time.Time, bool, error) {
	query := `SELECT MAX(obs_date) FROM stock_observations`

	var date sql.NullTime
	err := r.db.GetContext(ctx, &date, query)
	if err != nil {
		r.logger.Error("Failed to get latest observation date", zap.Error(err))
		return time.Time{}, false, err
	}
	if !date.Valid {
		return time.Time{}, false, nil
	}

	return date.Time, true, nil
}

// GetByBucket returns every observation in one (date, time) bucket, sorted by
// percentage change descending with nulls last.
func (r *ObservationRepository) GetByBucket(ctx context.Context, date time.Time, bucketTime string) ([]model.StockObservation, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM stock_observations o
		JOIN companies c ON c.id = o.company_id
		WHERE o.obs_date = $1 AND o.obs_time = $2::time
		ORDER BY o.percentage_change DESC NULLS LAST, o.symbol
	`, observationColumns)

	var observations []model.StockObservation
	err := r.db.SelectContext(ctx, &observations, query, date, bucketTime)
	if err != nil {
		r.logger.Error("Failed to get observations by bucket",
			zap.Error(err),
			zap.Time("date", date),
			zap.String("bucket", bucketTime))
		return nil, err
	}

	return observations, nil
}

// TopMovers returns the ranked gainers (positive percentage change,
// descending) or losers (negative, ascending) for a bucket. Zero-change rows
// belong to neither list. Ties break by symbol for deterministic output.
func (r *ObservationRepository) TopMovers(
	ctx context.Context,
	date time.Time,
	bucketTime string,
	gainers bool,
	limit int,
) ([]model.StockObservation, error) {
	comparison := "o.percentage_change > 0"
	order := "o.percentage_change DESC"
	if !gainers {
		comparison = "o.percentage_change < 0"
		order = "o.percentage_change ASC"
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM stock_observations o
		JOIN companies c ON c.id = o.company_id
		WHERE o.obs_date = $1 AND o.obs_time = $2::time AND %s
		ORDER BY %s, o.symbol ASC
		LIMIT $3
	`, observationColumns, comparison, order)

	var observations []model.StockObservation
	err := r.db.SelectContext(ctx, &observations, query, date, bucketTime, limit)
	if err != nil {
		r.logger.Error("Failed to get top movers",
			zap.Error(err),
			zap.Time("date", date),
			zap.Bool("gainers", gainers))
		return nil, err
	}

	return observations, nil
}

// History returns one observation per day for a company over a date range,
// preferring the latest bucket of each day, oldest day first.
func (r *ObservationRepository) History(
	ctx context.Context,
	companyID int,
	startDate, endDate time.Time,
) ([]model.StockObservation, error) {
	query := fmt.Sprintf(`
		SELECT DISTINCT ON (o.obs_date) %s
		FROM stock_observations o
		JOIN companies c ON c.id = o.company_id
		WHERE o.company_id = $1 AND o.obs_date >= $2 AND o.obs_date <= $3
		ORDER BY o.obs_date ASC, o.obs_time DESC
	`, observationColumns)

	var observations []model.StockObservation
	err := r.db.SelectContext(ctx, &observations, query, companyID, startDate, endDate)
	if err != nil {
		r.logger.Error("Failed to get observation history",
			zap.Error(err),
			zap.Int("company_id", companyID))
		return nil, err
	}

	return observations, nil
}

// LatestForCompany returns a company's most recent observation on a date, or
// (nil, nil) when there is none.
func (r *ObservationRepository) LatestForCompany(ctx context.Context, companyID int, date time.Time) (*model.StockObservation, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM stock_observations o
		JOIN companies c ON c.id = o.company_id
		WHERE o.company_id = $1 AND o.obs_date = $2
		ORDER BY o.obs_time DESC
		LIMIT 1
	`, observationColumns)

	var obs model.StockObservation
	err := r.db.GetContext(ctx, &obs, query, companyID, date)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get latest observation for company",
			zap.Error(err),
			zap.Int("company_id", companyID))
		return nil, err
	}

	return &obs, nil
}

// ObservationFilter narrows the paginated listing.
type ObservationFilter struct {
	Symbol    string
	StartDate *time.Time
	EndDate   *time.Time
}

// List returns a page of observations matching the filter, newest first,
// along with the total match count.
func (r *ObservationRepository) List(
	ctx context.Context,
	filter ObservationFilter,
	limit, offset int,
) ([]model.StockObservation, int, error) {
	where := "1=1"
	args := []interface{}{}
	argCount := 1

	if filter.Symbol != "" {
		where += fmt.Sprintf(" AND o.symbol = UPPER($%d)", argCount)
		args = append(args, filter.Symbol)
		argCount++
	}
	if filter.StartDate != nil {
		where += fmt.Sprintf(" AND o.obs_date >= $%d", argCount)
		args = append(args, *filter.StartDate)
		argCount++
	}
	if filter.EndDate != nil {
		where += fmt.Sprintf(" AND o.obs_date <= $%d", argCount)
		args = append(args, *filter.EndDate)
		argCount++
	}

	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM stock_observations o WHERE %s`, where)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		r.logger.Error("Failed to count observations", zap.Error(err))
		return nil, 0, err
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM stock_observations o
		JOIN companies c ON c.id = o.company_id
		WHERE %s
		ORDER BY o.obs_date DESC, o.obs_time DESC, o.symbol ASC
		LIMIT $%d OFFSET $%d
	`, observationColumns, where, argCount, argCount+1)
	args = append(args, limit, offset)

	var observations []model.StockObservation
	if err := r.db.SelectContext(ctx, &observations, query, args...); err != nil {
		r.logger.Error("Failed to list observations", zap.Error(err))
		return nil, 0, err
	}

	return observations, total, nil
}
