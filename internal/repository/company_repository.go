package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/bishal-2630/Nepse-Scrapper/internal/model"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// CompanyRepository handles database operations for companies
type CompanyRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// NewCompanyRepository creates a new company repository
func NewCompanyRepository(db *sqlx.DB, logger *zap.Logger) *CompanyRepository {
	return &CompanyRepository{
		db:     db,
		logger: logger,
	}
}

// GetBySymbol retrieves a company by its symbol. Returns (nil, nil) when the
// symbol is unknown.
func (r *CompanyRepository) GetBySymbol(ctx context.Context, symbol string) (*model.Company, error) {
	query := `
		SELECT id, symbol, name, sector, listed_shares, is_active, created_at, updated_at
		FROM companies
		WHERE symbol = $1
	`

	var company model.Company
	err := r.db.GetContext(ctx, &company, query, strings.ToUpper(symbol))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get company by symbol",
			zap.Error(err),
			zap.String("symbol", symbol))
		return nil, err
	}

	return &company, nil
}

// Create inserts a new company. The symbol unique constraint makes this safe
// against concurrent first sightings: on conflict the existing row is
// returned unchanged apart from the refreshed name.
func (r *CompanyRepository) Create(ctx context.Context, company *model.Company) error {
	query := `
		INSERT INTO companies (symbol, name, sector, listed_shares, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		ON CONFLICT (symbol) DO UPDATE SET
			name = EXCLUDED.name,
			updated_at = NOW()
		RETURNING id, created_at, updated_at
	`

	err := r.db.QueryRowxContext(
		ctx,
		query,
		strings.ToUpper(company.Symbol),
		company.Name,
		company.Sector,
		company.ListedShares,
		company.IsActive,
	).Scan(&company.ID, &company.CreatedAt, &company.UpdatedAt)
	if err != nil {
		r.logger.Error("Failed to create company",
			zap.Error(err),
			zap.String("symbol", company.Symbol))
		return err
	}

	return nil
}

// UpdateInfo refreshes the display name and sector of an existing company.
func (r *CompanyRepository) UpdateInfo(ctx context.Context, id int, name string, sector *string) error {
	query := `
		UPDATE companies
		SET name = $1,
			sector = COALESCE($2, sector),
			updated_at = NOW()
		WHERE id = $3
	`

	_, err := r.db.ExecContext(ctx, query, name, sector, id)
	if err != nil {
		r.logger.Error("Failed to update company info",
			zap.Error(err),
			zap.Int("company_id", id))
		return err
	}

	return nil
}

// Search finds companies whose symbol or name contains the query, case
// insensitively, ordered by symbol.
func (r *CompanyRepository) Search(ctx context.Context, q string, limit int) ([]model.Company, error) {
	query := `
		SELECT id, symbol, name, sector, listed_shares, is_active, created_at, updated_at
		FROM companies
		WHERE symbol ILIKE '%' || $1 || '%' OR name ILIKE '%' || $1 || '%'
		ORDER BY symbol
		LIMIT $2
	`

	var companies []model.Company
	err := r.db.SelectContext(ctx, &companies, query, q, limit)
	if err != nil {
		r.logger.Error("Failed to search companies",
			zap.Error(err),
			zap.String("query", q))
		return nil, err
	}

	return companies, nil
}
