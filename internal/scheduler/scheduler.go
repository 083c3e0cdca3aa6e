// Package scheduler triggers the daily ingest and scan pipeline on a cron
// schedule in the exchange timezone. It is never active in simulation mode,
// where the timeline only advances through explicit cycle requests.
package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/quantrail/nse-scanner/internal/clock"
	"github.com/quantrail/nse-scanner/internal/config"
	"github.com/quantrail/nse-scanner/internal/domain"
	"github.com/quantrail/nse-scanner/internal/state"
)

// Ingestor runs ingestion for one trading date.
type Ingestor interface {
	IngestForDate(ctx context.Context, date time.Time, mode domain.ExecutionMode) (*domain.IngestReport, error)
}

// Scanner runs the scan for one trading date.
type Scanner interface {
	ScanForDate(ctx context.Context, date time.Time, mode domain.ExecutionMode) (*domain.ScanReport, error)
}

// Scheduler owns the cron loop for the daily pipeline.
type Scheduler struct {
	cron     *cron.Cron
	ingestor Ingestor
	scanner  Scanner
	state    *state.Service
	clk      clock.Clock
	cfg      config.SchedulerConfig
	logger   *zap.Logger
}

// New creates a scheduler. The cron expression fires in the clock's zone.
func New(
	ingestor Ingestor,
	scanner Scanner,
	stateSvc *state.Service,
	clk clock.Clock,
	cfg config.SchedulerConfig,
	logger *zap.Logger,
) *Scheduler {
	return &Scheduler{
		cron:     cron.New(cron.WithLocation(clk.Zone())),
		ingestor: ingestor,
		scanner:  scanner,
		state:    stateSvc,
		clk:      clk,
		cfg:      cfg,
		logger:   logger,
	}
}

// Start registers the daily job and starts the cron loop.
func (s *Scheduler) Start() error {
	if !s.cfg.Enabled {
		s.logger.Info("Scheduler disabled")
		return nil
	}

	_, err := s.cron.AddFunc(s.cfg.DailyCron, func() {
		s.RunDaily(context.Background())
	})
	if err != nil {
		return err
	}

	s.cron.Start()
	s.logger.Info("Scheduler started",
		zap.String("cron", s.cfg.DailyCron),
		zap.String("zone", s.clk.Zone().String()),
	)
	return nil
}

// Stop halts the cron loop and waits for a running job to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("Scheduler stopped")
}

// RunDaily executes the pipeline for today's date. Each stage checks its
// own execution state, so a rerun after a partial day picks up where the
// previous run stopped.
func (s *Scheduler) RunDaily(ctx context.Context) {
	today, err := s.clk.Today(ctx)
	if err != nil {
		s.logger.Error("Daily job failed to resolve trading date", zap.Error(err))
		return
	}
	dateField := zap.String("trading_date", today.Format("2006-01-02"))
	s.logger.Info("Daily scanner job triggered", dateField)

	canIngest, err := s.state.CanIngest(ctx, today)
	if err != nil {
		s.logger.Error("Daily job failed to check ingestion state", dateField, zap.Error(err))
		return
	}
	if canIngest {
		if _, err := s.ingestor.IngestForDate(ctx, today, domain.ModeScheduled); err != nil {
			s.logger.Error("Daily ingestion failed", dateField, zap.Error(err))
			return
		}
	} else {
		s.logger.Info("Ingestion already completed", dateField)
	}

	canScan, err := s.state.CanScan(ctx, today)
	if err != nil {
		s.logger.Error("Daily job failed to check scan state", dateField, zap.Error(err))
		return
	}
	if canScan {
		if _, err := s.scanner.ScanForDate(ctx, today, domain.ModeScheduled); err != nil {
			s.logger.Error("Daily scan failed", dateField, zap.Error(err))
			return
		}
	} else {
		s.logger.Info("Scan not needed or already completed", dateField)
	}

	s.logger.Info("Daily scanner job completed", dateField)
}
