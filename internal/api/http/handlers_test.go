package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/quantrail/nse-scanner/internal/calendar"
	"github.com/quantrail/nse-scanner/internal/db/repository"
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
	key := tradingDate.Format(dateLayout)
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
	st, ok := m.states[tradingDate.Format(dateLayout)]
	if !ok {
		return nil, domain.NewNotFoundError("scan_execution_state", tradingDate.Format(dateLayout))
	}
	cp := *st
	return &cp, nil
}

func (m *memoryStateRepo) Save(ctx context.Context, st *domain.ExecutionState) error {
	cp := *st
	m.states[st.TradingDate.Format(dateLayout)] = &cp
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

type memoryClosures struct {
	closures map[string]domain.EmergencyClosure
}

func newMemoryClosures() *memoryClosures {
	return &memoryClosures{closures: make(map[string]domain.EmergencyClosure)}
}

func (m *memoryClosures) ExistsByDate(ctx context.Context, date time.Time) (bool, error) {
	_, ok := m.closures[date.Format(dateLayout)]
	return ok, nil
}

func (m *memoryClosures) Create(ctx context.Context, closure *domain.EmergencyClosure) error {
	key := closure.Date.Format(dateLayout)
	if _, ok := m.closures[key]; !ok {
		m.closures[key] = *closure
	}
	return nil
}

func (m *memoryClosures) DeleteByDate(ctx context.Context, date time.Time) error {
	delete(m.closures, date.Format(dateLayout))
	return nil
}

func (m *memoryClosures) List(ctx context.Context) ([]domain.EmergencyClosure, error) {
	out := make([]domain.EmergencyClosure, 0, len(m.closures))
	for _, c := range m.closures {
		out = append(out, c)
	}
	return out, nil
}

type memoryResults struct {
	results []*domain.ScanResult
}

func (m *memoryResults) CreateBatch(ctx context.Context, results []*domain.ScanResult) error {
	m.results = append(m.results, results...)
	return nil
}

func (m *memoryResults) ListByDate(ctx context.Context, scanDate time.Time) ([]*domain.ScanResult, error) {
	var out []*domain.ScanResult
	for _, r := range m.results {
		if r.ScanDate.Equal(scanDate) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memoryResults) ListRecent(ctx context.Context, limit int) ([]*domain.ScanResult, error) {
	if len(m.results) > limit {
		return m.results[len(m.results)-limit:], nil
	}
	return m.results, nil
}

type fixedClock struct {
	now time.Time
}

func (f fixedClock) Today(ctx context.Context) (time.Time, error) { return calendar.DateOf(f.now), nil }
func (f fixedClock) Now(ctx context.Context) (time.Time, error)   { return f.now, nil }
func (f fixedClock) Zone() *time.Location                         { return time.UTC }

type stubPipeline struct {
	ingests []time.Time
	scans   []time.Time
}

func (s *stubPipeline) IngestForDate(ctx context.Context, date time.Time, mode domain.ExecutionMode) (*domain.IngestReport, error) {
	s.ingests = append(s.ingests, date)
	return &domain.IngestReport{Date: date, StocksIngested: 5, SourceStatus: domain.SourceHealthy}, nil
}

func (s *stubPipeline) ScanForDate(ctx context.Context, date time.Time, mode domain.ExecutionMode) (*domain.ScanReport, error) {
	s.scans = append(s.scans, date)
	return &domain.ScanReport{Date: date, StocksScanned: 5, SignalsGenerated: 1}, nil
}

type stubSim struct {
	status domain.SimulationStatus
	err    error
}

func (s *stubSim) Advance(ctx context.Context, days int) (*domain.BatchResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &domain.BatchResult{CyclesRequested: days, CyclesCompleted: days}, nil
}

func (s *stubSim) Step(ctx context.Context) (*domain.BatchResult, error) {
	return s.Advance(ctx, 1)
}

func (s *stubSim) Reset(ctx context.Context) error { return s.err }

func (s *stubSim) Status(ctx context.Context) (*domain.SimulationStatus, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &s.status, nil
}

func newTestHandler(t *testing.T, sim SimulationControl) (*Handler, *stubPipeline, *memoryResults) {
	logger := zaptest.NewLogger(t)
	clk := fixedClock{now: time.Date(2024, time.January, 2, 19, 0, 0, 0, time.UTC)}
	stateSvc := state.NewService(newMemoryStateRepo(), clk, logger)
	closures := newMemoryClosures()
	holidays := calendar.NewNSEHolidays(closures)
	cal := calendar.New(holidays)
	results := &memoryResults{}
	pipeline := &stubPipeline{}

	repos := &repository.Repositories{
		EmergencyClosure: closures,
		ScanResult:       results,
	}
	handler := NewHandler(repos, stateSvc, pipeline, pipeline, sim, holidays, cal, clk, logger)
	return handler, pipeline, results
}

func doRequest(handler http.HandlerFunc, method, url, body string) *httptest.ResponseRecorder {
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, url, reader)
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

func TestHandleStatus(t *testing.T) {
	handler, _, _ := newTestHandler(t, nil)

	rec := doRequest(handler.HandleStatus, http.MethodGet, "/api/v1/status", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp StatusResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "2024-01-02", resp.TradingDate)
	assert.Equal(t, domain.ExecutionPending, resp.State.IngestionStatus)
}

func TestHandleStatusRejectsBadDate(t *testing.T) {
	handler, _, _ := newTestHandler(t, nil)

	rec := doRequest(handler.HandleStatus, http.MethodGet, "/api/v1/status?date=yesterday", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleIngestDaily(t *testing.T) {
	handler, pipeline, _ := newTestHandler(t, nil)

	rec := doRequest(handler.HandleIngestDaily, http.MethodPost, "/api/v1/ingest/daily", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, pipeline.ingests, 1)
	assert.Equal(t, calendar.Date(2024, time.January, 2), calendar.DateOf(pipeline.ingests[0]))
}

func TestHandleIngestDailyRejectsNonTradingDay(t *testing.T) {
	handler, pipeline, _ := newTestHandler(t, nil)

	// 2024-01-06 is a Saturday.
	rec := doRequest(handler.HandleIngestDaily, http.MethodPost, "/api/v1/ingest/daily?date=2024-01-06", "")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Empty(t, pipeline.ingests)
}

func TestHandleScanExecute(t *testing.T) {
	handler, pipeline, _ := newTestHandler(t, nil)

	rec := doRequest(handler.HandleScanExecute, http.MethodPost, "/api/v1/scan/execute", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, pipeline.scans, 1)
}

func TestHandleSignalsByDate(t *testing.T) {
	handler, _, results := newTestHandler(t, nil)
	date := calendar.Date(2024, time.January, 2)
	results.results = []*domain.ScanResult{
		{Symbol: "RELIANCE", ScanDate: date, RuleName: "Breakout Confirmed", Confidence: 0.7},
		{Symbol: "TCS", ScanDate: calendar.Date(2024, time.January, 1), RuleName: "Breakout Confirmed", Confidence: 0.6},
	}

	rec := doRequest(handler.HandleSignals, http.MethodGet, "/api/v1/signals?date=2024-01-02", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp SignalsResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, 1, resp.Count)
	assert.Equal(t, "RELIANCE", resp.Signals[0].Symbol)
}

func TestHandleClosuresLifecycle(t *testing.T) {
	handler, _, _ := newTestHandler(t, nil)

	rec := doRequest(handler.HandleClosures, http.MethodPost, "/api/v1/calendar/closures",
		`{"date":"2024-01-02","reason":"cyclone"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	// The session endpoint now reports the closure.
	rec = doRequest(handler.HandleCalendarSession, http.MethodGet, "/api/v1/calendar/session?date=2024-01-02", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var session SessionResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&session))
	assert.Equal(t, domain.SessionUnexpectedClosure, session.Session)
	assert.False(t, session.TradingDay)

	rec = doRequest(handler.HandleClosures, http.MethodDelete, "/api/v1/calendar/closures?date=2024-01-02", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(handler.HandleCalendarSession, http.MethodGet, "/api/v1/calendar/session?date=2024-01-02", "")
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&session))
	assert.Equal(t, domain.SessionTrading, session.Session)
}

func TestHandleClosuresRejectsBadDate(t *testing.T) {
	handler, _, _ := newTestHandler(t, nil)

	rec := doRequest(handler.HandleClosures, http.MethodPost, "/api/v1/calendar/closures",
		`{"date":"02/01/2024"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSimulationEndpointsDisabledWithoutOrchestrator(t *testing.T) {
	handler, _, _ := newTestHandler(t, nil)

	rec := doRequest(handler.HandleSimulationStatus, http.MethodGet, "/api/v1/simulation/status", "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = doRequest(handler.HandleSimulationAdvance, http.MethodPost, "/api/v1/simulation/advance", `{"days":3}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestHandleSimulationAdvance(t *testing.T) {
	sim := &stubSim{status: domain.SimulationStatus{
		BaseDate:    calendar.Date(2024, time.January, 1),
		CurrentDate: calendar.Date(2024, time.January, 1),
	}}
	handler, _, _ := newTestHandler(t, sim)

	rec := doRequest(handler.HandleSimulationAdvance, http.MethodPost, "/api/v1/simulation/advance", `{"days":3}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var batch domain.BatchResult
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&batch))
	assert.Equal(t, 3, batch.CyclesCompleted)
}

func TestHandleSimulationAdvanceMapsDomainErrors(t *testing.T) {
	sim := &stubSim{err: domain.ErrCyclingInProgress}
	handler, _, _ := newTestHandler(t, sim)

	rec := doRequest(handler.HandleSimulationAdvance, http.MethodPost, "/api/v1/simulation/advance", `{"days":3}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	sim.err = domain.ErrInvalidArgument
	rec = doRequest(handler.HandleSimulationAdvance, http.MethodPost, "/api/v1/simulation/advance", `{"days":-1}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMethodNotAllowed(t *testing.T) {
	handler, _, _ := newTestHandler(t, nil)

	rec := doRequest(handler.HandleIngestDaily, http.MethodGet, "/api/v1/ingest/daily", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	rec = doRequest(handler.HandleSignals, http.MethodPost, "/api/v1/signals", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
