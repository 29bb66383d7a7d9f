package service

import (
	"context"
	"errors"
	"time"

	"github.com/bishal-2630/Nepse-Scrapper/internal/model"
	"github.com/bishal-2630/Nepse-Scrapper/internal/repository"
	"github.com/bishal-2630/Nepse-Scrapper/internal/scrape"
)

// ErrNotFound reports a lookup for an entity that does not exist.
var ErrNotFound = errors.New("not found")

// CompanyStore is the persistence surface for companies, satisfied by
// repository.CompanyRepository.
type CompanyStore interface {
	GetBySymbol(ctx context.Context, symbol string) (*model.Company, error)
	Create(ctx context.Context, company *model.Company) error
	UpdateInfo(ctx context.Context, id int, name string, sector *string) error
	Search(ctx context.Context, q string, limit int) ([]model.Company, error)
}

// ObservationStore is the persistence surface for stock observations,
// satisfied by repository.ObservationRepository.
type ObservationStore interface {
	Exists(ctx context.Context, companyID int, date time.Time, bucketTime string, source model.SourceKind) (bool, error)
	Insert(ctx context.Context, companyID int, rec model.ObservationRecord, date time.Time, bucketTime string, source model.SourceKind, isClosing bool) (bool, error)
	Overwrite(ctx context.Context, companyID int, rec model.ObservationRecord, date time.Time, bucketTime string, source model.SourceKind) error
	LatestBucket(ctx context.Context, date time.Time) (string, bool, error)
	LatestDate(ctx context.Context) (time.Time, bool, error)
	GetByBucket(ctx context.Context, date time.Time, bucketTime string) ([]model.StockObservation, error)
	TopMovers(ctx context.Context, date time.Time, bucketTime string, gainers bool, limit int) ([]model.StockObservation, error)
	History(ctx context.Context, companyID int, startDate, endDate time.Time) ([]model.StockObservation, error)
	LatestForCompany(ctx context.Context, companyID int, date time.Time) (*model.StockObservation, error)
	List(ctx context.Context, filter repository.ObservationFilter, limit, offset int) ([]model.StockObservation, int, error)
}

// MarketStatusStore is the persistence surface for the per-day status row,
// satisfied by repository.MarketStatusRepository.
type MarketStatusStore interface {
	Upsert(ctx context.Context, date time.Time, isOpen bool, lastScraped time.Time) error
	GetByDate(ctx context.Context, date time.Time) (*model.MarketStatus, error)
}

// PayloadFetcher is the retrying fetch surface, satisfied by scrape.Fetcher.
type PayloadFetcher interface {
	SourceName() string
	Fetch(ctx context.Context) ([]scrape.RawRecord, error)
}
