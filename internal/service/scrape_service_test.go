package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/bishal-2630/Nepse-Scrapper/internal/market"
	"github.com/bishal-2630/Nepse-Scrapper/internal/model"
	"github.com/bishal-2630/Nepse-Scrapper/internal/scrape"
)

// tradingPayload is a small regular-session payload: one gainer, one loser,
// one unchanged stock.
func tradingPayload() []scrape.RawRecord {
	return []scrape.RawRecord{
		{"symbol": "AAA", "securityName": "Alpha Agro Ltd.", "ltp": 110.0, "previousClose": 100.0},
		{"symbol": "BBB", "securityName": "Beta Bank Ltd.", "ltp": 90.0, "previousClose": 100.0},
		{"symbol": "CCC", "securityName": "Gamma Cement Ltd.", "ltp": 100.0, "previousClose": 100.0},
	}
}

// 2025-03-09 is a Sunday; noon falls inside the regular session.
func regularSessionClock(cal market.Calendar) func() time.Time {
	return func() time.Time {
		return time.Date(2025, 3, 9, 12, 0, 0, 0, cal.Location)
	}
}

type scrapeFixture struct {
	svc       *ScrapeService
	companies *fakeCompanyStore
	obs       *fakeObservationStore
	status    *fakeMarketStatusStore
}

func newScrapeFixture(chain []PayloadFetcher, fallback PayloadFetcher, policy DuplicatePolicy) *scrapeFixture {
	cal := market.DefaultCalendar()
	companies := newFakeCompanyStore()
	obs := newFakeObservationStore()
	status := newFakeMarketStatusStore()

	svc := NewScrapeService(
		cal,
		chain,
		fallback,
		scrape.NewNormalizer(zap.NewNop()),
		companies,
		obs,
		status,
		policy,
		zap.NewNop(),
	).WithClock(regularSessionClock(cal))

	return &scrapeFixture{svc: svc, companies: companies, obs: obs, status: status}
}

func TestRunCycleSavesRegularSession(t *testing.T) {
	source := &stubFetcher{name: "live_api", payload: tradingPayload()}
	fx := newScrapeFixture([]PayloadFetcher{source}, nil, PolicySkip)

	result := fx.svc.RunCycle(context.Background())

	assert.True(t, result.Success)
	assert.Equal(t, 3, result.RecordsSaved)
	assert.Equal(t, 0, result.RecordsSkipped)
	assert.Equal(t, 0, result.RecordsDropped)
	assert.Equal(t, 3, result.CompaniesCreated)
	assert.Equal(t, "regular", result.Session)
	assert.Equal(t, "live", result.DataSource)
	assert.Equal(t, "2025-03-09", result.ScrapeDate)
	assert.Equal(t, "12:00:00", result.BucketTime)

	require.Len(t, fx.obs.rows, 3)
	for _, row := range fx.obs.rows {
		assert.Equal(t, model.SourceLive, row.source)
		assert.False(t, row.isClosing)
		assert.Equal(t, "12:00:00", row.bucket)
	}

	// companies created from the payload
	company, err := fx.companies.GetBySymbol(context.Background(), "AAA")
	require.NoError(t, err)
	require.NotNil(t, company)
	assert.Equal(t, "Alpha Agro Ltd.", company.Name)

	// market flagged open for the day
	status, err := fx.status.GetByDate(context.Background(), time.Date(2025, 3, 9, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.NotNil(t, status)
	assert.True(t, status.IsMarketOpen)
}

func TestRunCycleIsIdempotent(t *testing.T) {
	source := &stubFetcher{name: "live_api", payload: tradingPayload()}
	fx := newScrapeFixture([]PayloadFetcher{source}, nil, PolicySkip)

	first := fx.svc.RunCycle(context.Background())
	second := fx.svc.RunCycle(context.Background())

	assert.Equal(t, 3, first.RecordsSaved)
	assert.Equal(t, 0, second.RecordsSaved)
	assert.Equal(t, 3, second.RecordsSkipped)
	assert.True(t, second.Success, "a duplicate cycle is still a successful cycle")
	assert.Equal(t, 0, second.CompaniesCreated)
	assert.Len(t, fx.obs.rows, 3, "re-running a bucket must not add rows")

	// re-trigger must not flip the open market back to closed
	status, err := fx.status.GetByDate(context.Background(), time.Date(2025, 3, 9, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.NotNil(t, status)
	assert.True(t, status.IsMarketOpen)
}

func TestRunCycleWalksSourceChain(t *testing.T) {
	primary := &stubFetcher{name: "live_api", err: scrape.ErrTimeout}
	secondary := &stubFetcher{name: "html_scrape", payload: tradingPayload()}
	fx := newScrapeFixture([]PayloadFetcher{primary, secondary}, nil, PolicySkip)

	result := fx.svc.RunCycle(context.Background())

	assert.True(t, result.Success)
	assert.Equal(t, 1, primary.calls)
	assert.Equal(t, 1, secondary.calls)
	assert.Equal(t, 3, result.RecordsSaved)
}

func TestRunCycleSyntheticFallbackIsLabelled(t *testing.T) {
	primary := &stubFetcher{name: "live_api", err: scrape.ErrConnection}
	secondary := &stubFetcher{name: "html_scrape", err: scrape.ErrNoMatchingElement}
	fallback := &stubFetcher{name: "synthetic", payload: tradingPayload()}
	fx := newScrapeFixture([]PayloadFetcher{primary, secondary}, fallback, PolicySkip)

	result := fx.svc.RunCycle(context.Background())

	assert.True(t, result.Success)
	assert.Equal(t, "synthetic", result.DataSource)
	assert.Equal(t, 1, fallback.calls)
}

func TestRunCycleAllSourcesFail(t *testing.T) {
	primary := &stubFetcher{name: "live_api", err: scrape.ErrConnection}
	fx := newScrapeFixture([]PayloadFetcher{primary}, nil, PolicySkip)

	result := fx.svc.RunCycle(context.Background())

	assert.False(t, result.Success)
	assert.Contains(t, result.Message, "all sources failed")
	assert.Empty(t, fx.obs.rows)

	// the status row is still written, with the market closed
	status, err := fx.status.GetByDate(context.Background(), time.Date(2025, 3, 9, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.NotNil(t, status)
	assert.False(t, status.IsMarketOpen)
}

func TestRunCycleOverwritePolicy(t *testing.T) {
	source := &stubFetcher{name: "live_api", payload: tradingPayload()}
	fx := newScrapeFixture([]PayloadFetcher{source}, nil, PolicyOverwrite)

	fx.svc.RunCycle(context.Background())

	// second cycle ships a new AAA price for the same bucket
	source.payload = []scrape.RawRecord{
		{"symbol": "AAA", "securityName": "Alpha Agro Ltd.", "ltp": 115.0, "previousClose": 100.0},
	}
	result := fx.svc.RunCycle(context.Background())

	assert.Equal(t, 0, result.RecordsSaved)
	assert.Equal(t, 1, result.RecordsSkipped)
	assert.Equal(t, 1, fx.obs.overwrites)

	row := fx.obs.rows[0]
	assert.Equal(t, "AAA", row.rec.Symbol)
	assert.Equal(t, 115.0, row.rec.LastTradedPrice)
}

func TestRunCycleLogsOverwriteFailures(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	cal := market.DefaultCalendar()
	companies := newFakeCompanyStore()
	obs := newFakeObservationStore()
	status := newFakeMarketStatusStore()
	source := &stubFetcher{name: "live_api", payload: []scrape.RawRecord{
		{"symbol": "AAA", "securityName": "Alpha Agro Ltd.", "ltp": 110.0},
	}}

	svc := NewScrapeService(
		cal,
		[]PayloadFetcher{source},
		nil,
		scrape.NewNormalizer(zap.NewNop()),
		companies,
		obs,
		status,
		PolicyOverwrite,
		zap.New(core),
	).WithClock(regularSessionClock(cal))

	svc.RunCycle(context.Background())
	obs.overwriteErrFor["AAA"] = assert.AnError
	result := svc.RunCycle(context.Background())

	// the failed record is counted neither as saved nor as skipped
	assert.Equal(t, 0, result.RecordsSaved)
	assert.Equal(t, 0, result.RecordsSkipped)
	assert.Equal(t, 0, obs.overwrites)

	entries := logs.FilterMessage("Failed to overwrite observation").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "AAA", entries[0].ContextMap()["symbol"])
}

func TestRunCycleCountsDroppedRecords(t *testing.T) {
	payload := append(tradingPayload(),
		scrape.RawRecord{"ltp": 10.0},               // no symbol
		scrape.RawRecord{"symbol": "DDD"},           // no price
	)
	source := &stubFetcher{name: "live_api", payload: payload}
	fx := newScrapeFixture([]PayloadFetcher{source}, nil, PolicySkip)

	result := fx.svc.RunCycle(context.Background())

	assert.Equal(t, 3, result.RecordsSaved)
	assert.Equal(t, 2, result.RecordsDropped)
}

func TestRunCycleIsolatesRecordFailures(t *testing.T) {
	source := &stubFetcher{name: "live_api", payload: tradingPayload()}
	fx := newScrapeFixture([]PayloadFetcher{source}, nil, PolicySkip)
	fx.obs.insertErrFor["BBB"] = assert.AnError

	result := fx.svc.RunCycle(context.Background())

	assert.True(t, result.Success)
	assert.Equal(t, 2, result.RecordsSaved, "one bad record must not sink the batch")
	require.Len(t, fx.obs.rows, 2)
	for _, row := range fx.obs.rows {
		assert.NotEqual(t, "BBB", row.rec.Symbol)
	}
}

func TestRunCycleClosingSession(t *testing.T) {
	source := &stubFetcher{name: "live_api", payload: tradingPayload()}
	fx := newScrapeFixture([]PayloadFetcher{source}, nil, PolicySkip)

	cal := market.DefaultCalendar()
	fx.svc.WithClock(func() time.Time {
		return time.Date(2025, 3, 9, 15, 45, 0, 0, cal.Location)
	})

	result := fx.svc.RunCycle(context.Background())

	assert.True(t, result.Success)
	assert.Equal(t, "closing", result.Session)
	assert.Equal(t, "15:30:00", result.BucketTime)

	require.Len(t, fx.obs.rows, 3)
	for _, row := range fx.obs.rows {
		assert.Equal(t, model.SourceClosing, row.source)
		assert.True(t, row.isClosing)
	}

	// market is not open outside the regular session
	status, err := fx.status.GetByDate(context.Background(), time.Date(2025, 3, 9, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.NotNil(t, status)
	assert.False(t, status.IsMarketOpen)
}

func TestRunCycleNonTradingDay(t *testing.T) {
	source := &stubFetcher{name: "live_api", payload: tradingPayload()}
	fx := newScrapeFixture([]PayloadFetcher{source}, nil, PolicySkip)

	cal := market.DefaultCalendar()
	// 2025-03-14 is a Friday
	fx.svc.WithClock(func() time.Time {
		return time.Date(2025, 3, 14, 12, 0, 0, 0, cal.Location)
	})

	result := fx.svc.RunCycle(context.Background())

	assert.False(t, result.IsTradingDay)
	assert.Equal(t, "non_trading", result.Session)
	assert.Equal(t, "16:00:00", result.BucketTime)

	require.Len(t, fx.obs.rows, 3)
	for _, row := range fx.obs.rows {
		assert.Equal(t, model.SourceHistorical, row.source)
	}
}

func TestRunCycleRefreshesCompanyName(t *testing.T) {
	source := &stubFetcher{name: "live_api", payload: []scrape.RawRecord{
		{"symbol": "AAA", "securityName": "Alpha Agro Limited", "ltp": 110.0},
	}}
	fx := newScrapeFixture([]PayloadFetcher{source}, nil, PolicySkip)

	// pre-existing company with a stale name
	require.NoError(t, fx.companies.Create(context.Background(), &model.Company{
		Symbol: "AAA", Name: "Alpha Agro Ltd.", IsActive: true,
	}))

	result := fx.svc.RunCycle(context.Background())

	assert.Equal(t, 0, result.CompaniesCreated)
	company, err := fx.companies.GetBySymbol(context.Background(), "AAA")
	require.NoError(t, err)
	assert.Equal(t, "Alpha Agro Limited", company.Name)
}

func TestRunCycleSymbolFallsBackAsCompanyName(t *testing.T) {
	source := &stubFetcher{name: "live_api", payload: []scrape.RawRecord{
		{"symbol": "ZZZ", "ltp": 55.0},
	}}
	fx := newScrapeFixture([]PayloadFetcher{source}, nil, PolicySkip)

	fx.svc.RunCycle(context.Background())

	company, err := fx.companies.GetBySymbol(context.Background(), "ZZZ")
	require.NoError(t, err)
	require.NotNil(t, company)
	assert.Equal(t, "ZZZ", company.Name)
}
