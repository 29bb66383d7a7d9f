package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/bishal-2630/Nepse-Scrapper/internal/model"
	"github.com/bishal-2630/Nepse-Scrapper/internal/repository"
	"github.com/bishal-2630/Nepse-Scrapper/internal/scrape"
)

// In-memory store fakes. They mirror the repository contracts closely enough
// for service-level tests: bucket uniqueness, (nil, nil) lookups, ranking
// order and the prior-date fallback all behave like the SQL layer.

type fakeCompanyStore struct {
	nextID   int
	bySymbol map[string]*model.Company
	failFor  map[string]error
}

func newFakeCompanyStore() *fakeCompanyStore {
	return &fakeCompanyStore{
		bySymbol: make(map[string]*model.Company),
		failFor:  make(map[string]error),
	}
}

func (f *fakeCompanyStore) GetBySymbol(_ context.Context, symbol string) (*model.Company, error) {
	if err := f.failFor[symbol]; err != nil {
		return nil, err
	}
	company, ok := f.bySymbol[symbol]
	if !ok {
		return nil, nil
	}
	copied := *company
	return &copied, nil
}

func (f *fakeCompanyStore) Create(_ context.Context, company *model.Company) error {
	if err := f.failFor[company.Symbol]; err != nil {
		return err
	}
	f.nextID++
	company.ID = f.nextID
	copied := *company
	f.bySymbol[company.Symbol] = &copied
	return nil
}

func (f *fakeCompanyStore) UpdateInfo(_ context.Context, id int, name string, sector *string) error {
	for _, company := range f.bySymbol {
		if company.ID == id {
			company.Name = name
			if sector != nil {
				company.Sector = sector
			}
			return nil
		}
	}
	return fmt.Errorf("company %d not found", id)
}

func (f *fakeCompanyStore) Search(_ context.Context, q string, limit int) ([]model.Company, error) {
	q = strings.ToLower(q)
	var matches []model.Company
	for _, company := range f.bySymbol {
		if strings.Contains(strings.ToLower(company.Symbol), q) ||
			strings.Contains(strings.ToLower(company.Name), q) {
			matches = append(matches, *company)
		}
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].Symbol < matches[j].Symbol })
	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

type storedObservation struct {
	id        int
	companyID int
	rec       model.ObservationRecord
	date      time.Time
	bucket    string
	source    model.SourceKind
	isClosing bool
}

type fakeObservationStore struct {
	nextID          int
	rows            []storedObservation
	companyNames    map[int]string
	overwrites      int
	insertErrFor    map[string]error
	overwriteErrFor map[string]error
}

func newFakeObservationStore() *fakeObservationStore {
	return &fakeObservationStore{
		companyNames:    make(map[int]string),
		insertErrFor:    make(map[string]error),
		overwriteErrFor: make(map[string]error),
	}
}

func sameDay(a, b time.Time) bool {
	return a.Format("2006-01-02") == b.Format("2006-01-02")
}

func (f *fakeObservationStore) find(companyID int, date time.Time, bucket string, source model.SourceKind) *storedObservation {
	for i := range f.rows {
		row := &f.rows[i]
		if row.companyID == companyID && sameDay(row.date, date) && row.bucket == bucket && row.source == source {
			return row
		}
	}
	return nil
}

func (f *fakeObservationStore) Exists(_ context.Context, companyID int, date time.Time, bucket string, source model.SourceKind) (bool, error) {
	return f.find(companyID, date, bucket, source) != nil, nil
}

func (f *fakeObservationStore) Insert(_ context.Context, companyID int, rec model.ObservationRecord, date time.Time, bucket string, source model.SourceKind, isClosing bool) (bool, error) {
	if err := f.insertErrFor[rec.Symbol]; err != nil {
		return false, err
	}
	if f.find(companyID, date, bucket, source) != nil {
		return false, nil
	}
	f.nextID++
	f.rows = append(f.rows, storedObservation{
		id:        f.nextID,
		companyID: companyID,
		rec:       rec,
		date:      date,
		bucket:    bucket,
		source:    source,
		isClosing: isClosing,
	})
	return true, nil
}

func (f *fakeObservationStore) Overwrite(_ context.Context, companyID int, rec model.ObservationRecord, date time.Time, bucket string, source model.SourceKind) error {
	if err := f.overwriteErrFor[rec.Symbol]; err != nil {
		return err
	}
	if row := f.find(companyID, date, bucket, source); row != nil {
		row.rec = rec
		f.overwrites++
	}
	return nil
}

func (f *fakeObservationStore) LatestBucket(_ context.Context, date time.Time) (string, bool, error) {
	latest := ""
	for _, row := range f.rows {
		if sameDay(row.date, date) && row.bucket > latest {
			latest = row.bucket
		}
	}
	return latest, latest != "", nil
}

func (f *fakeObservationStore) LatestDate(_ context.Context) (time.Time, bool, error) {
	var latest time.Time
	for _, row := range f.rows {
		if row.date.After(latest) {
			latest = row.date
		}
	}
	return latest, !latest.IsZero(), nil
}

func (f *fakeObservationStore) toModel(row storedObservation) model.StockObservation {
	ltp := row.rec.LastTradedPrice
	name := f.companyNames[row.companyID]
	if name == "" {
		name = row.rec.Symbol
	}
	return model.StockObservation{
		ID:               row.id,
		CompanyID:        row.companyID,
		Symbol:           row.rec.Symbol,
		CompanyName:      name,
		LastTradedPrice:  &ltp,
		PreviousClose:    row.rec.PreviousClose,
		PointChange:      row.rec.PointChange,
		PercentageChange: row.rec.PercentageChange,
		ObsDate:          row.date,
		ObsTime:          row.bucket,
		Source:           row.source,
		IsClosing:        row.isClosing,
	}
}

func (f *fakeObservationStore) GetByBucket(_ context.Context, date time.Time, bucket string) ([]model.StockObservation, error) {
	var out []model.StockObservation
	for _, row := range f.rows {
		if sameDay(row.date, date) && row.bucket == bucket {
			out = append(out, f.toModel(row))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out, nil
}

func (f *fakeObservationStore) TopMovers(_ context.Context, date time.Time, bucket string, gainers bool, limit int) ([]model.StockObservation, error) {
	var out []model.StockObservation
	for _, row := range f.rows {
		if !sameDay(row.date, date) || row.bucket != bucket || row.rec.PercentageChange == nil {
			continue
		}
		pct := *row.rec.PercentageChange
		if gainers && pct <= 0 {
			continue
		}
		if !gainers && pct >= 0 {
			continue
		}
		out = append(out, f.toModel(row))
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := *out[i].PercentageChange, *out[j].PercentageChange
		if a != b {
			if gainers {
				return a > b
			}
			return a < b
		}
		return out[i].Symbol < out[j].Symbol
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeObservationStore) History(_ context.Context, companyID int, startDate, endDate time.Time) ([]model.StockObservation, error) {
	latestPerDay := make(map[string]storedObservation)
	for _, row := range f.rows {
		if row.companyID != companyID || row.date.Before(startDate) || row.date.After(endDate) {
			continue
		}
		key := row.date.Format("2006-01-02")
		if prev, ok := latestPerDay[key]; !ok || row.bucket > prev.bucket {
			latestPerDay[key] = row
		}
	}
	var out []model.StockObservation
	for _, row := range latestPerDay {
		out = append(out, f.toModel(row))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ObsDate.Before(out[j].ObsDate) })
	return out, nil
}

func (f *fakeObservationStore) LatestForCompany(_ context.Context, companyID int, date time.Time) (*model.StockObservation, error) {
	var best *storedObservation
	for i := range f.rows {
		row := &f.rows[i]
		if row.companyID != companyID || !sameDay(row.date, date) {
			continue
		}
		if best == nil || row.bucket > best.bucket {
			best = row
		}
	}
	if best == nil {
		return nil, nil
	}
	obs := f.toModel(*best)
	return &obs, nil
}

func (f *fakeObservationStore) List(_ context.Context, filter repository.ObservationFilter, limit, offset int) ([]model.StockObservation, int, error) {
	var matched []model.StockObservation
	for _, row := range f.rows {
		if filter.Symbol != "" && !strings.EqualFold(filter.Symbol, row.rec.Symbol) {
			continue
		}
		if filter.StartDate != nil && row.date.Before(*filter.StartDate) {
			continue
		}
		if filter.EndDate != nil && row.date.After(*filter.EndDate) {
			continue
		}
		matched = append(matched, f.toModel(row))
	}
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].ObsDate.Equal(matched[j].ObsDate) {
			return matched[i].ObsDate.After(matched[j].ObsDate)
		}
		if matched[i].ObsTime != matched[j].ObsTime {
			return matched[i].ObsTime > matched[j].ObsTime
		}
		return matched[i].Symbol < matched[j].Symbol
	})

	total := len(matched)
	if offset >= total {
		return []model.StockObservation{}, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return matched[offset:end], total, nil
}

type statusRow struct {
	isOpen      bool
	lastScraped time.Time
}

type fakeMarketStatusStore struct {
	byDate  map[string]statusRow
	upserts int
}

func newFakeMarketStatusStore() *fakeMarketStatusStore {
	return &fakeMarketStatusStore{byDate: make(map[string]statusRow)}
}

func (f *fakeMarketStatusStore) Upsert(_ context.Context, date time.Time, isOpen bool, lastScraped time.Time) error {
	f.upserts++
	f.byDate[date.Format("2006-01-02")] = statusRow{isOpen: isOpen, lastScraped: lastScraped}
	return nil
}

func (f *fakeMarketStatusStore) GetByDate(_ context.Context, date time.Time) (*model.MarketStatus, error) {
	row, ok := f.byDate[date.Format("2006-01-02")]
	if !ok {
		return nil, nil
	}
	scraped := row.lastScraped
	return &model.MarketStatus{
		Date:         date,
		IsMarketOpen: row.isOpen,
		LastScraped:  &scraped,
	}, nil
}

// stubFetcher is a canned PayloadFetcher.
type stubFetcher struct {
	name    string
	payload []scrape.RawRecord
	err     error
	calls   int
}

func (s *stubFetcher) SourceName() string { return s.name }

func (s *stubFetcher) Fetch(context.Context) ([]scrape.RawRecord, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.payload, nil
}
