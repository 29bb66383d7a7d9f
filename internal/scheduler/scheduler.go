package scheduler

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/bishal-2630/Nepse-Scrapper/internal/service"
)

// Scheduler runs the scrape cycle on a cron schedule in-process.
type Scheduler struct {
	cron      *cron.Cron
	scraper   *service.ScrapeService
	spec      string
	logger    *zap.Logger
	inFlight  atomic.Bool
	isRunning bool
}

// NewScheduler creates a scheduler pinned to the market's timezone so that
// cron expressions are interpreted in exchange-local time.
func NewScheduler(scraper *service.ScrapeService, spec string, loc *time.Location, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		cron:    cron.New(cron.WithLocation(loc)),
		scraper: scraper,
		spec:    spec,
		logger:  logger,
	}
}

// Start registers the scrape job and begins the cron loop.
func (s *Scheduler) Start() error {
	if s.isRunning {
		return fmt.Errorf("scheduler is already running")
	}

	_, err := s.cron.AddFunc(s.spec, s.runCycle)
	if err != nil {
		return fmt.Errorf("failed to schedule scrape job: %w", err)
	}

	s.cron.Start()
	s.isRunning = true
	s.logger.Info("Scheduler started", zap.String("spec", s.spec))
	return nil
}

// Stop halts the cron loop and waits for a running cycle to finish.
func (s *Scheduler) Stop() {
	if !s.isRunning {
		return
	}
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.isRunning = false
	s.logger.Info("Scheduler stopped")
}

// runCycle executes one scrape cycle, skipping the tick when the previous
// cycle is still in flight.
func (s *Scheduler) runCycle() {
	if !s.inFlight.CompareAndSwap(false, true) {
		s.logger.Warn("Skipping scheduled scrape, previous cycle still running")
		return
	}
	defer s.inFlight.Store(false)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	result := s.scraper.RunCycle(ctx)
	if result.Success {
		s.logger.Info("Scheduled scrape completed",
			zap.Int("saved", result.RecordsSaved),
			zap.Int("skipped", result.RecordsSkipped),
			zap.String("source", result.DataSource))
	} else {
		s.logger.Warn("Scheduled scrape produced no data",
			zap.String("message", result.Message))
	}
}
