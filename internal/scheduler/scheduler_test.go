package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/quantrail/nse-scanner/internal/calendar"
	"github.com/quantrail/nse-scanner/internal/config"
	"github.com/quantrail/nse-scanner/internal/domain"
	"github.com/quantrail/nse-scanner/internal/state"
)

type memoryStateRepo struct {
	states map[string]*domain.ExecutionState
	nextID int64
}

func newMemoryStateRepo() *memoryStateRepo {
	return &memoryStateRepo{states: make(map[string]*domain.ExecutionState)}
}

func (m *memoryStateRepo) GetOrCreate(ctx context.Context, tradingDate time.Time) (*domain.ExecutionState, error) {
	key := tradingDate.Format("2006-01-02")
	if st, ok := m.states[key]; ok {
		cp := *st
		return &cp, nil
	}
	m.nextID++
	st := domain.NewExecutionState(tradingDate)
	st.ID = m.nextID
	m.states[key] = st
	cp := *st
	return &cp, nil
}

func (m *memoryStateRepo) GetByDate(ctx context.Context, tradingDate time.Time) (*domain.ExecutionState, error) {
	st, ok := m.states[tradingDate.Format("2006-01-02")]
	if !ok {
		return nil, domain.NewNotFoundError("scan_execution_state", tradingDate.Format("2006-01-02"))
	}
	cp := *st
	return &cp, nil
}

func (m *memoryStateRepo) Save(ctx context.Context, st *domain.ExecutionState) error {
	cp := *st
	m.states[st.TradingDate.Format("2006-01-02")] = &cp
	return nil
}

func (m *memoryStateRepo) ListRecent(ctx context.Context, limit int) ([]*domain.ExecutionState, error) {
	out := make([]*domain.ExecutionState, 0, len(m.states))
	for _, st := range m.states {
		cp := *st
		out = append(out, &cp)
	}
	return out, nil
}

type fixedClock struct {
	now time.Time
}

func (f fixedClock) Today(ctx context.Context) (time.Time, error) { return calendar.DateOf(f.now), nil }
func (f fixedClock) Now(ctx context.Context) (time.Time, error)   { return f.now, nil }
func (f fixedClock) Zone() *time.Location                         { return time.UTC }

// recordingPipeline records calls and drives the execution state the way
// the real services do.
type recordingPipeline struct {
	state    *state.Service
	ingested int
	scanned  int
}

func (r *recordingPipeline) IngestForDate(ctx context.Context, date time.Time, mode domain.ExecutionMode) (*domain.IngestReport, error) {
	r.ingested++
	if err := r.state.StartIngestion(ctx, date, mode); err != nil {
		return nil, err
	}
	if err := r.state.CompleteIngestion(ctx, date, 10, domain.SourceHealthy); err != nil {
		return nil, err
	}
	return &domain.IngestReport{Date: date, StocksIngested: 10, SourceStatus: domain.SourceHealthy}, nil
}

func (r *recordingPipeline) ScanForDate(ctx context.Context, date time.Time, mode domain.ExecutionMode) (*domain.ScanReport, error) {
	r.scanned++
	if err := r.state.StartScan(ctx, date); err != nil {
		return nil, err
	}
	if err := r.state.CompleteScan(ctx, date, 2); err != nil {
		return nil, err
	}
	return &domain.ScanReport{Date: date, StocksScanned: 10, SignalsGenerated: 2}, nil
}

func newTestScheduler(t *testing.T) (*Scheduler, *recordingPipeline, *state.Service) {
	logger := zaptest.NewLogger(t)
	clk := fixedClock{now: time.Date(2024, time.January, 2, 19, 0, 0, 0, time.UTC)}
	stateSvc := state.NewService(newMemoryStateRepo(), clk, logger)
	pipeline := &recordingPipeline{state: stateSvc}
	cfg := config.Default().Scanner.Scheduler

	return New(pipeline, pipeline, stateSvc, clk, cfg, logger), pipeline, stateSvc
}

func TestRunDailyExecutesBothStages(t *testing.T) {
	sched, pipeline, stateSvc := newTestScheduler(t)

	sched.RunDaily(context.Background())

	assert.Equal(t, 1, pipeline.ingested)
	assert.Equal(t, 1, pipeline.scanned)

	st, err := stateSvc.GetOrCreate(context.Background(), calendar.Date(2024, time.January, 2))
	require.NoError(t, err)
	assert.Equal(t, domain.ExecutionSuccess, st.IngestionStatus)
	assert.Equal(t, domain.ExecutionSuccess, st.ScanStatus)
	assert.Equal(t, domain.ModeScheduled, st.ExecutionMode)
}

func TestRunDailyIsIdempotent(t *testing.T) {
	sched, pipeline, _ := newTestScheduler(t)

	sched.RunDaily(context.Background())
	sched.RunDaily(context.Background())

	assert.Equal(t, 1, pipeline.ingested)
	assert.Equal(t, 1, pipeline.scanned)
}

func TestRunDailyResumesAfterIngestion(t *testing.T) {
	sched, pipeline, stateSvc := newTestScheduler(t)
	date := calendar.Date(2024, time.January, 2)

	// Ingestion already ran earlier in the day; only the scan remains.
	require.NoError(t, stateSvc.StartIngestion(context.Background(), date, domain.ModeManual))
	require.NoError(t, stateSvc.CompleteIngestion(context.Background(), date, 10, domain.SourceHealthy))

	sched.RunDaily(context.Background())

	assert.Equal(t, 0, pipeline.ingested)
	assert.Equal(t, 1, pipeline.scanned)
}

func TestDefaultCronExpressionParses(t *testing.T) {
	cfg := config.Default().Scanner.Scheduler
	_, err := cron.ParseStandard(cfg.DailyCron)
	assert.NoError(t, err)
}
