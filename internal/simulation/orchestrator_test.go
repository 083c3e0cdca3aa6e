package simulation

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/quantrail/nse-scanner/internal/calendar"
	"github.com/quantrail/nse-scanner/internal/config"
	"github.com/quantrail/nse-scanner/internal/domain"
	"github.com/quantrail/nse-scanner/internal/events"
)

type memSimRepo struct {
	mu sync.Mutex
	st domain.SimulationState
}

func newMemSimRepo(baseDate time.Time) *memSimRepo {
	return &memSimRepo{st: domain.SimulationState{
		ID:       domain.SimulationStateID,
		Version:  1,
		BaseDate: baseDate,
	}}
}

func (m *memSimRepo) GetOrCreate(ctx context.Context, baseDate time.Time) (*domain.SimulationState, error) {
	return m.Get(ctx)
}

func (m *memSimRepo) Get(ctx context.Context) (*domain.SimulationState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := m.st
	return &cp, nil
}

func (m *memSimRepo) UpdateOffset(ctx context.Context, offset, expectedVersion int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.st.Version != expectedVersion {
		return domain.ErrConcurrencyConflict
	}
	m.st.TradingOffset = offset
	m.st.Version++
	return nil
}

func (m *memSimRepo) AcquireCycleLock(ctx context.Context, staleCeiling time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.st.IsCycling && m.st.CyclingStartedAt != nil && time.Since(*m.st.CyclingStartedAt) < staleCeiling {
		return domain.ErrCyclingInProgress
	}
	now := time.Now()
	m.st.IsCycling = true
	m.st.CyclingStartedAt = &now
	m.st.Version++
	return nil
}

func (m *memSimRepo) ReleaseCycleLock(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.st.IsCycling = false
	m.st.CyclingStartedAt = nil
	m.st.Version++
	return nil
}

func (m *memSimRepo) Reset(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.st.IsCycling {
		return fmt.Errorf("%w: cannot reset while a batch is cycling", domain.ErrInvalidState)
	}
	m.st.TradingOffset = 0
	m.st.Version++
	return nil
}

type fakeClock struct {
	mu            sync.Mutex
	invalidations int
}

func (f *fakeClock) Today(ctx context.Context) (time.Time, error) {
	return calendar.Date(2024, time.January, 1), nil
}

func (f *fakeClock) Now(ctx context.Context) (time.Time, error) {
	return time.Date(2024, time.January, 1, 9, 15, 0, 0, time.UTC), nil
}

func (f *fakeClock) Zone() *time.Location { return time.UTC }

func (f *fakeClock) Invalidate() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.invalidations++
}

func (f *fakeClock) invalidationCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.invalidations
}

type stubClosureStore struct{}

func (stubClosureStore) ExistsByDate(ctx context.Context, date time.Time) (bool, error) {
	return false, nil
}
func (stubClosureStore) Create(ctx context.Context, closure *domain.EmergencyClosure) error {
	return nil
}
func (stubClosureStore) DeleteByDate(ctx context.Context, date time.Time) error { return nil }

// stubPipeline records pipeline calls and fails on a configured date.
type stubPipeline struct {
	ingested []time.Time
	scanned  []time.Time
	failScan map[string]string
}

func newStubPipeline() *stubPipeline {
	return &stubPipeline{failScan: make(map[string]string)}
}

func (s *stubPipeline) IngestForDate(ctx context.Context, date time.Time, mode domain.ExecutionMode) (*domain.IngestReport, error) {
	s.ingested = append(s.ingested, date)
	return &domain.IngestReport{Date: date, StocksIngested: 10, SourceStatus: domain.SourceHealthy}, nil
}

func (s *stubPipeline) ScanForDate(ctx context.Context, date time.Time, mode domain.ExecutionMode) (*domain.ScanReport, error) {
	s.scanned = append(s.scanned, date)
	if reason, ok := s.failScan[date.Format("2006-01-02")]; ok {
		return nil, fmt.Errorf("%s", reason)
	}
	return &domain.ScanReport{Date: date, StocksScanned: 10, SignalsGenerated: 2}, nil
}

type fixture struct {
	orch     *Orchestrator
	repo     *memSimRepo
	clk      *fakeClock
	pipeline *stubPipeline
}

func newFixture(t *testing.T) *fixture {
	logger := zaptest.NewLogger(t)
	baseDate := calendar.Date(2024, time.January, 1)
	repo := newMemSimRepo(baseDate)
	cal := calendar.New(calendar.NewNSEHolidays(stubClosureStore{}))
	clk := &fakeClock{}
	pipeline := newStubPipeline()
	cfg := config.Default().Scanner.Simulation

	orch := NewOrchestrator(repo, cal, clk, pipeline, pipeline,
		events.NewNoOpPublisher(), cfg, logger)
	return &fixture{orch: orch, repo: repo, clk: clk, pipeline: pipeline}
}

func TestAdvanceRunsRequestedDays(t *testing.T) {
	f := newFixture(t)

	batch, err := f.orch.Advance(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, 3, batch.CyclesRequested)
	assert.Equal(t, 3, batch.CyclesCompleted)
	require.Len(t, batch.CycleResults, 3)

	// Base date Mon 2024-01-01 is a trading day; cycles run the days after.
	want := []time.Time{
		calendar.Date(2024, time.January, 2),
		calendar.Date(2024, time.January, 3),
		calendar.Date(2024, time.January, 4),
	}
	assert.Equal(t, want, f.pipeline.ingested)
	assert.Equal(t, want, f.pipeline.scanned)
	for i, result := range batch.CycleResults {
		assert.True(t, result.Success)
		assert.Equal(t, i+1, result.TradingOffset)
		assert.Equal(t, want[i], result.CycleDate)
		assert.Equal(t, 10, result.StocksIngested)
		assert.Equal(t, 2, result.SignalsGenerated)
	}

	st, err := f.repo.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, st.TradingOffset)
	assert.False(t, st.IsCycling)
	assert.Equal(t, 3, f.clk.invalidationCount())
}

func TestAdvanceSkipsWeekendsAndHolidays(t *testing.T) {
	f := newFixture(t)

	// Thu 2024-01-25 -> Mon 2024-01-29: Fri Jan 26 is Republic Day and the
	// weekend follows.
	f.repo.st.BaseDate = calendar.Date(2024, time.January, 25)

	batch, err := f.orch.Advance(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, batch.CycleResults, 1)
	assert.Equal(t, calendar.Date(2024, time.January, 29), batch.CycleResults[0].CycleDate)
}

func TestAdvanceAbortsOnFailedDayKeepingCompletedDays(t *testing.T) {
	f := newFixture(t)
	f.pipeline.failScan["2024-01-04"] = "provider blew up"

	batch, err := f.orch.Advance(context.Background(), 5)
	require.Error(t, err)
	assert.Equal(t, 5, batch.CyclesRequested)
	assert.Equal(t, 2, batch.CyclesCompleted)
	require.Len(t, batch.CycleResults, 3)

	failed := batch.CycleResults[2]
	assert.False(t, failed.Success)
	assert.Contains(t, failed.FailureReason, "provider blew up")
	assert.Equal(t, calendar.Date(2024, time.January, 4), failed.CycleDate)

	// Days 4 and 5 were never attempted and completed days stay committed.
	assert.Len(t, f.pipeline.ingested, 3)
	st, getErr := f.repo.Get(context.Background())
	require.NoError(t, getErr)
	assert.Equal(t, 2, st.TradingOffset)
	assert.False(t, st.IsCycling)
}

func TestAdvanceValidatesRange(t *testing.T) {
	f := newFixture(t)

	_, err := f.orch.Advance(context.Background(), -1)
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)

	_, err = f.orch.Advance(context.Background(), 2001)
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)

	batch, err := f.orch.Advance(context.Background(), 0)
	require.NoError(t, err)
	assert.Zero(t, batch.CyclesCompleted)
	assert.Empty(t, batch.CycleResults)
	assert.Empty(t, f.pipeline.ingested)
}

func TestAdvanceRejectsConcurrentBatch(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.repo.AcquireCycleLock(context.Background(), time.Hour))

	_, err := f.orch.Advance(context.Background(), 1)
	assert.ErrorIs(t, err, domain.ErrCyclingInProgress)
	assert.Empty(t, f.pipeline.ingested)
}

func TestAdvanceTakesOverStaleLock(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.repo.AcquireCycleLock(context.Background(), time.Hour))
	stale := time.Now().Add(-time.Hour)
	f.repo.st.CyclingStartedAt = &stale

	batch, err := f.orch.Advance(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 1, batch.CyclesCompleted)
}

func TestStepAdvancesOneDay(t *testing.T) {
	f := newFixture(t)

	batch, err := f.orch.Step(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, batch.CyclesCompleted)

	st, err := f.repo.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, st.TradingOffset)
}

func TestResetRewindsTimeline(t *testing.T) {
	f := newFixture(t)

	_, err := f.orch.Advance(context.Background(), 2)
	require.NoError(t, err)

	require.NoError(t, f.orch.Reset(context.Background()))

	st, err := f.repo.Get(context.Background())
	require.NoError(t, err)
	assert.Zero(t, st.TradingOffset)
	assert.Equal(t, 3, f.clk.invalidationCount())
}

func TestResetRejectedWhileCycling(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.repo.AcquireCycleLock(context.Background(), time.Hour))

	err := f.orch.Reset(context.Background())
	assert.ErrorIs(t, err, domain.ErrInvalidState)
}

func TestStatus(t *testing.T) {
	f := newFixture(t)

	status, err := f.orch.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, calendar.Date(2024, time.January, 1), status.BaseDate)
	assert.Zero(t, status.TradingOffset)
	assert.False(t, status.IsCycling)
	assert.Equal(t, calendar.Date(2024, time.January, 1), status.CurrentDate)
}
