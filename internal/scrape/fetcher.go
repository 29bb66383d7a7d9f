package scrape

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

// Fetcher wraps a DataSource with the shared retry policy: a bounded number
// of attempts separated by a constant delay. All failure kinds in the fetch
// taxonomy are retryable; the budget is the only cutoff.
type Fetcher struct {
	source      DataSource
	maxAttempts int
	interval    time.Duration
	logger      *zap.Logger
}

// NewFetcher creates a fetcher for one source.
func NewFetcher(source DataSource, maxAttempts int, interval time.Duration, logger *zap.Logger) *Fetcher {
	if maxAttempts < 1 {
		maxAttempts = 3
	}
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &Fetcher{
		source:      source,
		maxAttempts: maxAttempts,
		interval:    interval,
		logger:      logger,
	}
}

// SourceName reports the wrapped source's name.
func (f *Fetcher) SourceName() string { return f.source.Name() }

// Fetch runs attempts against the source until one succeeds or the attempt
// budget is exhausted, returning the last failure in that case.
func (f *Fetcher) Fetch(ctx context.Context) ([]RawRecord, error) {
	var records []RawRecord
	attempt := 0

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(f.interval), uint64(f.maxAttempts-1)),
		ctx,
	)

	err := backoff.Retry(func() error {
		attempt++
		start := time.Now()

		result, err := f.source.Fetch(ctx)
		if err != nil {
			f.logger.Warn("Fetch attempt failed",
				zap.String("source", f.source.Name()),
				zap.Int("attempt", attempt),
				zap.Int("max_attempts", f.maxAttempts),
				zap.Duration("elapsed", time.Since(start)),
				zap.Error(err))
			return err
		}

		f.logger.Info("Fetch succeeded",
			zap.String("source", f.source.Name()),
			zap.Int("attempt", attempt),
			zap.Int("records", len(result)),
			zap.Duration("elapsed", time.Since(start)))
		records = result
		return nil
	}, policy)

	if err != nil {
		return nil, err
	}
	return records, nil
}
