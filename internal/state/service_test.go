package state

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/quantrail/nse-scanner/internal/calendar"
	"github.com/quantrail/nse-scanner/internal/domain"
)

// memoryStateRepo is an in-memory ExecutionStateRepository.
type memoryStateRepo struct {
	states map[time.Time]*domain.ExecutionState
	nextID int64
}

func newMemoryStateRepo() *memoryStateRepo {
	return &memoryStateRepo{states: make(map[time.Time]*domain.ExecutionState)}
}

func (r *memoryStateRepo) GetOrCreate(_ context.Context, date time.Time) (*domain.ExecutionState, error) {
	if state, ok := r.states[date]; ok {
		copied := *state
		return &copied, nil
	}
	r.nextID++
	state := domain.NewExecutionState(date)
	state.ID = r.nextID
	r.states[date] = state
	copied := *state
	return &copied, nil
}

func (r *memoryStateRepo) GetByDate(_ context.Context, date time.Time) (*domain.ExecutionState, error) {
	state, ok := r.states[date]
	if !ok {
		return nil, domain.NewNotFoundError("scan_execution_state", date.Format("2006-01-02"))
	}
	copied := *state
	return &copied, nil
}

func (r *memoryStateRepo) Save(_ context.Context, state *domain.ExecutionState) error {
	copied := *state
	r.states[state.TradingDate] = &copied
	return nil
}

func (r *memoryStateRepo) ListRecent(_ context.Context, limit int) ([]*domain.ExecutionState, error) {
	var out []*domain.ExecutionState
	for _, s := range r.states {
		copied := *s
		out = append(out, &copied)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

type fixedClock struct {
	now time.Time
}

func (c fixedClock) Today(context.Context) (time.Time, error) {
	return calendar.DateOf(c.now), nil
}
func (c fixedClock) Now(context.Context) (time.Time, error) { return c.now, nil }
func (c fixedClock) Zone() *time.Location                   { return time.UTC }

func newTestService(t *testing.T) (*Service, *memoryStateRepo) {
	repo := newMemoryStateRepo()
	clk := fixedClock{now: time.Date(2024, time.January, 2, 19, 0, 0, 0, time.UTC)}
	return NewService(repo, clk, zaptest.NewLogger(t)), repo
}

func TestIngestionGating(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	date := calendar.Date(2024, time.January, 2)

	ok, err := svc.CanIngest(ctx, date)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, svc.StartIngestion(ctx, date, domain.ModeManual))

	// In-progress blocks another start.
	ok, err = svc.CanIngest(ctx, date)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, svc.CompleteIngestion(ctx, date, 25, domain.SourceHealthy))

	// Success is terminal for the ingestion track.
	ok, err = svc.CanIngest(ctx, date)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFailedIngestionIsRetryable(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	date := calendar.Date(2024, time.January, 2)

	require.NoError(t, svc.StartIngestion(ctx, date, domain.ModeScheduled))
	require.NoError(t, svc.FailIngestion(ctx, date, "provider unavailable", domain.SourceUnavailable))

	ok, err := svc.CanIngest(ctx, date)
	require.NoError(t, err)
	assert.True(t, ok)

	state, err := svc.GetOrCreate(ctx, date)
	require.NoError(t, err)
	assert.Equal(t, domain.ExecutionFailed, state.IngestionStatus)
	assert.Equal(t, "provider unavailable", state.ErrorMessage)
	assert.Equal(t, domain.SourceUnavailable, state.DataSourceStatus)
}

func TestScanRequiresIngestedData(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	date := calendar.Date(2024, time.January, 2)

	// No ingestion yet.
	ok, err := svc.CanScan(ctx, date)
	require.NoError(t, err)
	assert.False(t, ok)

	// Ingestion succeeded but produced nothing.
	require.NoError(t, svc.CompleteIngestionNoData(ctx, date, domain.SourceNoData))
	ok, err = svc.CanScan(ctx, date)
	require.NoError(t, err)
	assert.False(t, ok)

	// A second date with data is scannable.
	other := calendar.Date(2024, time.January, 3)
	require.NoError(t, svc.CompleteIngestion(ctx, other, 30, domain.SourceHealthy))
	ok, err = svc.CanScan(ctx, other)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, svc.StartScan(ctx, other))
	ok, err = svc.CanScan(ctx, other)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, svc.CompleteScan(ctx, other, 4))
	state, err := svc.GetOrCreate(ctx, other)
	require.NoError(t, err)
	assert.Equal(t, domain.ExecutionSuccess, state.ScanStatus)
	assert.Equal(t, 4, state.SignalsGenerated)

	// Completed scans do not rerun.
	ok, err = svc.CanScan(ctx, other)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFailedScanIsRetryable(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	date := calendar.Date(2024, time.January, 2)

	require.NoError(t, svc.CompleteIngestion(ctx, date, 30, domain.SourceHealthy))
	require.NoError(t, svc.StartScan(ctx, date))
	require.NoError(t, svc.FailScan(ctx, date, "rule evaluation panicked"))

	ok, err := svc.CanScan(ctx, date)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSkipScanRecordsReason(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	date := calendar.Date(2024, time.January, 2)

	require.NoError(t, svc.CompleteIngestionNoData(ctx, date, domain.SourceNoData))
	require.NoError(t, svc.SkipScan(ctx, date, "no data ingested"))

	state, err := svc.GetOrCreate(ctx, date)
	require.NoError(t, err)
	assert.Equal(t, domain.ExecutionSkipped, state.ScanStatus)
	assert.Equal(t, "no data ingested", state.ErrorMessage)
}

func TestTransitionsStampClockTime(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	date := calendar.Date(2024, time.January, 2)

	require.NoError(t, svc.StartIngestion(ctx, date, domain.ModeAPI))

	state, err := repo.GetByDate(ctx, date)
	require.NoError(t, err)
	require.NotNil(t, state.LastIngestionTime)
	assert.Equal(t, time.Date(2024, time.January, 2, 19, 0, 0, 0, time.UTC), *state.LastIngestionTime)
	assert.Equal(t, domain.ModeAPI, state.ExecutionMode)
}
