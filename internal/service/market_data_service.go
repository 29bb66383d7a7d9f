package service

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/bishal-2630/Nepse-Scrapper/internal/market"
	"github.com/bishal-2630/Nepse-Scrapper/internal/model"
	"github.com/bishal-2630/Nepse-Scrapper/internal/repository"

	"go.uber.org/zap"
)

// Clamps for the read endpoints.
const (
	DefaultMoversLimit = 10
	MaxMoversLimit     = 20
	DefaultHistoryDays = 30
	MaxHistoryDays     = 365
	searchResultLimit  = 20
)

// MarketStatusResponse is the /status payload.
type MarketStatusResponse struct {
	Date         string     `json:"date"`
	IsMarketOpen bool       `json:"is_market_open"`
	LastScraped  *time.Time `json:"last_scraped"`
	CurrentTime  string     `json:"current_time"`
	Message      string     `json:"message,omitempty"`
}

// SnapshotSummary aggregates one bucket of observations.
type SnapshotSummary struct {
	AveragePercentageChange float64             `json:"average_percentage_change"`
	TopGainer               *SummaryEntry       `json:"top_gainer,omitempty"`
	TopLoser                *SummaryEntry       `json:"top_loser,omitempty"`
}

// SummaryEntry is one highlighted stock within a snapshot summary.
type SummaryEntry struct {
	Symbol           string  `json:"symbol"`
	CompanyName      string  `json:"company_name"`
	PercentageChange float64 `json:"percentage_change"`
	LastTradedPrice  float64 `json:"last_traded_price"`
}

// LatestSnapshot is the /stocks/latest payload. IsTodayData is false when the
// service fell back to a prior date; the served date is always echoed back.
type LatestSnapshot struct {
	Date        string                   `json:"date"`
	ScrapeTime  string                   `json:"scrape_time"`
	Count       int                      `json:"count"`
	IsTodayData bool                     `json:"is_today_data"`
	Message     string                   `json:"message,omitempty"`
	Summary     *SnapshotSummary         `json:"summary,omitempty"`
	Data        []model.StockObservation `json:"data"`
}

// MoversResult is the ranked gainers/losers payload.
type MoversResult struct {
	Date        string                    `json:"date"`
	ScrapeTime  string                    `json:"scrape_time"`
	Count       int                       `json:"count"`
	IsTodayData bool                      `json:"is_today_data"`
	Message     string                    `json:"message,omitempty"`
	Data        []model.RankedObservation `json:"data"`
}

// HistoryResult is a symbol's time series payload.
type HistoryResult struct {
	Symbol      string               `json:"symbol"`
	CompanyName string               `json:"company_name"`
	Sector      string               `json:"sector,omitempty"`
	Period      string               `json:"period"`
	Days        int                  `json:"days"`
	DataPoints  int                  `json:"data_points"`
	Data        []model.HistoryPoint `json:"data"`
}

// SearchResponse is the symbol search payload.
type SearchResponse struct {
	Query    string               `json:"query"`
	Count    int                  `json:"count"`
	DataDate string               `json:"data_date,omitempty"`
	Results  []model.SearchResult `json:"results"`
}

// MarketDataService serves the read side: status, snapshots, rankings,
// history and search. It never writes.
type MarketDataService struct {
	obs       ObservationStore
	companies CompanyStore
	status    MarketStatusStore
	calendar  market.Calendar
	now       func() time.Time
	logger    *zap.Logger
}

// NewMarketDataService creates a new market data service.
func NewMarketDataService(
	obs ObservationStore,
	companies CompanyStore,
	status MarketStatusStore,
	calendar market.Calendar,
	logger *zap.Logger,
) *MarketDataService {
	return &MarketDataService{
		obs:       obs,
		companies: companies,
		status:    status,
		calendar:  calendar,
		now:       time.Now,
		logger:    logger,
	}
}

// WithClock overrides the service clock. Intended for tests.
func (s *MarketDataService) WithClock(now func() time.Time) *MarketDataService {
	s.now = now
	return s
}

func (s *MarketDataService) today() (time.Time, time.Time) {
	local := s.now().In(s.calendar.Location)
	date := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, s.calendar.Location)
	return date, local
}

// GetMarketStatus returns today's status row; absence is a success with an
// explanatory message, never an error.
func (s *MarketDataService) GetMarketStatus(ctx context.Context) (*MarketStatusResponse, error) {
	today, local := s.today()

	status, err := s.status.GetByDate(ctx, today)
	if err != nil {
		return nil, err
	}

	resp := &MarketStatusResponse{
		Date:        today.Format("2006-01-02"),
		CurrentTime: local.Format(time.RFC3339),
	}
	if status == nil {
		resp.Message = "No market data available for today"
		return resp, nil
	}

	resp.IsMarketOpen = status.IsMarketOpen
	resp.LastScraped = status.LastScraped
	return resp, nil
}

// resolveSnapshotDate finds the bucket to serve: today's latest bucket when
// present, otherwise the most recent prior date's. The boolean flags report
// (found any data, data is from today).
func (s *MarketDataService) resolveSnapshotDate(ctx context.Context) (time.Time, string, bool, bool, error) {
	today, _ := s.today()

	bucket, ok, err := s.obs.LatestBucket(ctx, today)
	if err != nil {
		return time.Time{}, "", false, false, err
	}
	if ok {
		return today, bucket, true, true, nil
	}

	priorDate, ok, err := s.obs.LatestDate(ctx)
	if err != nil {
		return time.Time{}, "", false, false, err
	}
	if !ok {
		return time.Time{}, "", false, false, nil
	}

	bucket, ok, err = s.obs.LatestBucket(ctx, priorDate)
	if err != nil || !ok {
		return time.Time{}, "", false, false, err
	}
	return priorDate, bucket, true, false, nil
}

// GetLatestSnapshot returns the latest reconciled bucket with a summary,
// falling back to the most recent prior date with an explicit indicator.
func (s *MarketDataService) GetLatestSnapshot(ctx context.Context) (*LatestSnapshot, error) {
	today, _ := s.today()

	date, bucket, found, isToday, err := s.resolveSnapshotDate(ctx)
	if err != nil {
		return nil, err
	}
	if !found {
		return &LatestSnapshot{
			Date:        today.Format("2006-01-02"),
			IsTodayData: false,
			Message:     "No stock data available",
			Data:        []model.StockObservation{},
		}, nil
	}

	observations, err := s.obs.GetByBucket(ctx, date, bucket)
	if err != nil {
		return nil, err
	}

	snapshot := &LatestSnapshot{
		Date:        date.Format("2006-01-02"),
		ScrapeTime:  bucket,
		Count:       len(observations),
		IsTodayData: isToday,
		Summary:     summarize(observations),
		Data:        observations,
	}
	if !isToday {
		snapshot.Message = fmt.Sprintf("Showing latest available data from %s", snapshot.Date)
	}
	return snapshot, nil
}

// summarize computes the average percentage change and the extreme movers of
// a bucket. Rows without a percentage change are excluded.
func summarize(observations []model.StockObservation) *SnapshotSummary {
	var sum float64
	var count int
	var gainer, loser *model.StockObservation

	for i := range observations {
		obs := &observations[i]
		if obs.PercentageChange == nil {
			continue
		}
		pct := *obs.PercentageChange
		sum += pct
		count++
		if gainer == nil || pct > *gainer.PercentageChange {
			gainer = obs
		}
		if loser == nil || pct < *loser.PercentageChange {
			loser = obs
		}
	}
	if count == 0 {
		return nil
	}

	summary := &SnapshotSummary{
		AveragePercentageChange: math.Round(sum/float64(count)*100) / 100,
	}
	summary.TopGainer = summaryEntry(gainer)
	summary.TopLoser = summaryEntry(loser)
	return summary
}

func summaryEntry(obs *model.StockObservation) *SummaryEntry {
	if obs == nil {
		return nil
	}
	entry := &SummaryEntry{
		Symbol:           obs.Symbol,
		CompanyName:      obs.CompanyName,
		PercentageChange: *obs.PercentageChange,
	}
	if obs.LastTradedPrice != nil {
		entry.LastTradedPrice = *obs.LastTradedPrice
	}
	return entry
}

// ClampMoversLimit normalizes a requested limit into [1, MaxMoversLimit].
func ClampMoversLimit(limit int) int {
	if limit < 1 {
		return DefaultMoversLimit
	}
	if limit > MaxMoversLimit {
		return MaxMoversLimit
	}
	return limit
}

// GetTopMovers returns the ranked gainers or losers for the latest snapshot,
// with the same prior-date fallback as GetLatestSnapshot.
func (s *MarketDataService) GetTopMovers(ctx context.Context, gainers bool, limit int) (*MoversResult, error) {
	today, _ := s.today()
	limit = ClampMoversLimit(limit)

	date, bucket, found, isToday, err := s.resolveSnapshotDate(ctx)
	if err != nil {
		return nil, err
	}
	if !found {
		return &MoversResult{
			Date:        today.Format("2006-01-02"),
			IsTodayData: false,
			Message:     "No stock data available",
			Data:        []model.RankedObservation{},
		}, nil
	}

	observations, err := s.obs.TopMovers(ctx, date, bucket, gainers, limit)
	if err != nil {
		return nil, err
	}

	ranked := make([]model.RankedObservation, 0, len(observations))
	for i, obs := range observations {
		ranked = append(ranked, model.RankedObservation{Rank: i + 1, StockObservation: obs})
	}

	result := &MoversResult{
		Date:        date.Format("2006-01-02"),
		ScrapeTime:  bucket,
		Count:       len(ranked),
		IsTodayData: isToday,
		Data:        ranked,
	}
	if !isToday {
		result.Message = fmt.Sprintf("Showing latest available data from %s", result.Date)
	}
	return result, nil
}

// ClampHistoryDays normalizes a requested day count into [1, MaxHistoryDays].
func ClampHistoryDays(days int) int {
	if days < 1 {
		return DefaultHistoryDays
	}
	if days > MaxHistoryDays {
		return MaxHistoryDays
	}
	return days
}

// GetSymbolHistory returns up to `days` of daily observations for a symbol.
// Unknown symbols yield ErrNotFound.
func (s *MarketDataService) GetSymbolHistory(ctx context.Context, symbol string, days int) (*HistoryResult, error) {
	days = ClampHistoryDays(days)

	company, err := s.companies.GetBySymbol(ctx, strings.ToUpper(symbol))
	if err != nil {
		return nil, err
	}
	if company == nil {
		return nil, fmt.Errorf("symbol %q: %w", symbol, ErrNotFound)
	}

	endDate, _ := s.today()
	startDate := endDate.AddDate(0, 0, -days)

	observations, err := s.obs.History(ctx, company.ID, startDate, endDate)
	if err != nil {
		return nil, err
	}

	points := make([]model.HistoryPoint, 0, len(observations))
	for _, obs := range observations {
		points = append(points, model.HistoryPoint{
			Date:             obs.ObsDate.Format("2006-01-02"),
			LastTradedPrice:  obs.LastTradedPrice,
			PreviousClose:    obs.PreviousClose,
			PointChange:      obs.PointChange,
			PercentageChange: obs.PercentageChange,
			Source:           string(obs.Source),
		})
	}

	result := &HistoryResult{
		Symbol:      company.Symbol,
		CompanyName: company.Name,
		Period:      fmt.Sprintf("%s to %s", startDate.Format("2006-01-02"), endDate.Format("2006-01-02")),
		Days:        days,
		DataPoints:  len(points),
		Data:        points,
	}
	if company.Sector != nil {
		result.Sector = *company.Sector
	}
	return result, nil
}

// SearchStocks finds companies by symbol or name substring and annotates each
// match with its most recent observation. The handler validates query length.
func (s *MarketDataService) SearchStocks(ctx context.Context, q string) (*SearchResponse, error) {
	companies, err := s.companies.Search(ctx, q, searchResultLimit)
	if err != nil {
		return nil, err
	}

	resp := &SearchResponse{
		Query:   q,
		Results: []model.SearchResult{},
	}

	latestDate, hasData, err := s.obs.LatestDate(ctx)
	if err != nil {
		return nil, err
	}
	if hasData {
		resp.DataDate = latestDate.Format("2006-01-02")
	}

	for _, company := range companies {
		result := model.SearchResult{
			Symbol:      company.Symbol,
			CompanyName: company.Name,
			Sector:      "N/A",
		}
		if company.Sector != nil && *company.Sector != "" {
			result.Sector = *company.Sector
		}

		if hasData {
			latest, err := s.obs.LatestForCompany(ctx, company.ID, latestDate)
			if err != nil {
				s.logger.Warn("Failed to load latest observation for search result",
					zap.Error(err),
					zap.String("symbol", company.Symbol))
			} else if latest != nil {
				result.HasData = true
				result.Date = latest.ObsDate.Format("2006-01-02")
				result.LastTradedPrice = latest.LastTradedPrice
				result.PercentageChange = latest.PercentageChange
			}
		}
		resp.Results = append(resp.Results, result)
	}

	resp.Count = len(resp.Results)
	return resp, nil
}

// ListObservations returns a filtered, paginated listing of raw observations.
func (s *MarketDataService) ListObservations(
	ctx context.Context,
	filter repository.ObservationFilter,
	page, limit int,
) ([]model.StockObservation, int, error) {
	offset := (page - 1) * limit
	return s.obs.List(ctx, filter, limit, offset)
}
