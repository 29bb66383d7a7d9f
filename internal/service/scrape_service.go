package service

import (
	"context"
	"fmt"
	"time"

	"github.com/bishal-2630/Nepse-Scrapper/internal/market"
	"github.com/bishal-2630/Nepse-Scrapper/internal/model"
	"github.com/bishal-2630/Nepse-Scrapper/internal/scrape"

	"go.uber.org/zap"
)

// DuplicatePolicy decides what happens when a scrape cycle re-visits a bucket
// that already holds a row for a company.
type DuplicatePolicy string

const (
	// PolicySkip keeps the first write and ignores re-scrapes (default).
	PolicySkip DuplicatePolicy = "skip"
	// PolicyOverwrite replaces bucket values with the latest scrape.
	PolicyOverwrite DuplicatePolicy = "overwrite"
)

// ScrapeService orchestrates one scrape-and-reconcile cycle: session
// classification, source fetching with fallback, normalization, idempotent
// reconciliation, and the market status upsert. It is the only writer.
type ScrapeService struct {
	calendar   market.Calendar
	chain      []PayloadFetcher
	fallback   PayloadFetcher
	normalizer *scrape.Normalizer
	companies  CompanyStore
	obs        ObservationStore
	status     MarketStatusStore
	policy     DuplicatePolicy
	now        func() time.Time
	logger     *zap.Logger
}

// NewScrapeService creates a scrape service. The chain is tried in order each
// cycle; fallback (may be nil) is only used when the whole chain fails.
func NewScrapeService(
	calendar market.Calendar,
	chain []PayloadFetcher,
	fallback PayloadFetcher,
	normalizer *scrape.Normalizer,
	companies CompanyStore,
	obs ObservationStore,
	status MarketStatusStore,
	policy DuplicatePolicy,
	logger *zap.Logger,
) *ScrapeService {
	if policy != PolicyOverwrite {
		policy = PolicySkip
	}
	return &ScrapeService{
		calendar:   calendar,
		chain:      chain,
		fallback:   fallback,
		normalizer: normalizer,
		companies:  companies,
		obs:        obs,
		status:     status,
		policy:     policy,
		now:        time.Now,
		logger:     logger,
	}
}

// WithClock overrides the cycle clock. Intended for tests.
func (s *ScrapeService) WithClock(now func() time.Time) *ScrapeService {
	s.now = now
	return s
}

// RunCycle executes one full cycle and never propagates component failures:
// everything is folded into the returned CycleResult. Safe to re-trigger for
// the same bucket.
func (s *ScrapeService) RunCycle(ctx context.Context) model.CycleResult {
	startedAt := s.now()
	snap := s.calendar.Classify(startedAt)

	result := model.CycleResult{
		Session:      string(snap.Session),
		IsTradingDay: snap.IsTradingDay,
		ScrapeDate:   snap.Date.Format("2006-01-02"),
		BucketTime:   snap.BucketTime.String(),
		DataSource:   string(snap.Strategy),
		Timestamp:    startedAt,
	}

	s.logger.Info("Starting scrape cycle",
		zap.String("session", result.Session),
		zap.String("strategy", string(snap.Strategy)),
		zap.String("date", result.ScrapeDate),
		zap.String("bucket", result.BucketTime))

	raw, sourceName, err := s.fetchPayload(ctx)
	if err != nil {
		result.Message = fmt.Sprintf("all sources failed: %v", err)
		s.logger.Error("Scrape cycle fetch failed", zap.Error(err))
		s.updateMarketStatus(ctx, snap, false)
		return result
	}
	if sourceName == "synthetic" {
		result.DataSource = "synthetic"
	}

	records, dropped := s.normalizer.Normalize(raw)
	result.RecordsDropped = dropped

	saved, skipped, created := s.reconcile(ctx, records, snap)
	result.RecordsSaved = saved
	result.RecordsSkipped = skipped
	result.CompaniesCreated = created
	result.Success = saved+skipped > 0

	s.updateMarketStatus(ctx, snap, saved+skipped > 0)

	if result.Success {
		result.Message = fmt.Sprintf("%d records saved, %d duplicates skipped (%s)", saved, skipped, result.DataSource)
	} else {
		result.Message = "scrape completed but no records were saved"
	}

	s.logger.Info("Scrape cycle completed",
		zap.Bool("success", result.Success),
		zap.Int("saved", saved),
		zap.Int("skipped", skipped),
		zap.Int("dropped", dropped),
		zap.Int("companies_created", created),
		zap.String("source", result.DataSource))
	return result
}

// fetchPayload walks the source chain in order, then the synthetic fallback.
// Returns the payload together with the name of the source that produced it.
func (s *ScrapeService) fetchPayload(ctx context.Context) ([]scrape.RawRecord, string, error) {
	var lastErr error
	for _, fetcher := range s.chain {
		raw, err := fetcher.Fetch(ctx)
		if err == nil {
			return raw, fetcher.SourceName(), nil
		}
		lastErr = err
		s.logger.Warn("Source exhausted its retry budget, trying next",
			zap.String("source", fetcher.SourceName()),
			zap.Error(err))
	}

	if s.fallback != nil {
		raw, err := s.fallback.Fetch(ctx)
		if err == nil {
			s.logger.Warn("Serving synthetic fallback data: every real source failed")
			return raw, s.fallback.SourceName(), nil
		}
		lastErr = err
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("no sources configured")
	}
	return nil, "", lastErr
}

// reconcile merges normalized records into storage. Each record is handled
// independently: one failure reduces the counts but never aborts the batch.
func (s *ScrapeService) reconcile(ctx context.Context, records []model.ObservationRecord, snap market.Snapshot) (saved, skipped, created int) {
	source := model.SourceKind(snap.Strategy)
	isClosing := source == model.SourceClosing || source == model.SourceHistorical
	bucket := snap.BucketTime.String()

	for _, rec := range records {
		company, wasCreated, err := s.resolveCompany(ctx, rec)
		if err != nil {
			s.logger.Error("Failed to resolve company",
				zap.Error(err),
				zap.String("symbol", rec.Symbol))
			continue
		}
		if wasCreated {
			created++
		}

		exists, err := s.obs.Exists(ctx, company.ID, snap.Date, bucket, source)
		if err != nil {
			s.logger.Error("Failed bucket existence check",
				zap.Error(err),
				zap.String("symbol", rec.Symbol))
			continue
		}

		if exists {
			if s.policy == PolicyOverwrite {
				if err := s.obs.Overwrite(ctx, company.ID, rec, snap.Date, bucket, source); err != nil {
					s.logger.Error("Failed to overwrite observation",
						zap.Error(err),
						zap.String("symbol", rec.Symbol),
						zap.String("bucket", bucket))
					continue
				}
			}
			skipped++
			s.logger.Debug("Duplicate bucket",
				zap.String("symbol", rec.Symbol),
				zap.String("bucket", bucket),
				zap.String("policy", string(s.policy)))
			continue
		}

		inserted, err := s.obs.Insert(ctx, company.ID, rec, snap.Date, bucket, source, isClosing)
		if err != nil {
			s.logger.Error("Failed to insert observation",
				zap.Error(err),
				zap.String("symbol", rec.Symbol))
			continue
		}
		if inserted {
			saved++
		} else {
			// Lost a race with a concurrent cycle; the constraint kept it safe.
			skipped++
		}
	}
	return saved, skipped, created
}

// resolveCompany finds or creates the company for a record and refreshes its
// display name when the source reports a different one.
func (s *ScrapeService) resolveCompany(ctx context.Context, rec model.ObservationRecord) (*model.Company, bool, error) {
	company, err := s.companies.GetBySymbol(ctx, rec.Symbol)
	if err != nil {
		return nil, false, err
	}

	if company == nil {
		name := rec.SecurityName
		if name == "" {
			name = rec.Symbol
		}
		company = &model.Company{
			Symbol:   rec.Symbol,
			Name:     name,
			IsActive: true,
		}
		if err := s.companies.Create(ctx, company); err != nil {
			return nil, false, err
		}
		return company, true, nil
	}

	if rec.SecurityName != "" && rec.SecurityName != company.Name {
		if err := s.companies.UpdateInfo(ctx, company.ID, rec.SecurityName, nil); err != nil {
			s.logger.Warn("Failed to refresh company name",
				zap.Error(err),
				zap.String("symbol", rec.Symbol))
		} else {
			company.Name = rec.SecurityName
		}
	}
	return company, false, nil
}

// updateMarketStatus upserts the per-day summary row. The open flag is true
// only during a regular session with data present for the current bucket;
// hasData includes duplicates so an idempotent re-trigger does not flip an
// open market back to closed.
func (s *ScrapeService) updateMarketStatus(ctx context.Context, snap market.Snapshot, hasData bool) {
	isOpen := snap.Session == market.SessionRegular && hasData
	if err := s.status.Upsert(ctx, snap.Date, isOpen, s.now()); err != nil {
		s.logger.Error("Failed to update market status", zap.Error(err))
	}
}
