package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/quantrail/nse-scanner/internal/calendar"
	"github.com/quantrail/nse-scanner/internal/clock"
	"github.com/quantrail/nse-scanner/internal/db/repository"
	"github.com/quantrail/nse-scanner/internal/domain"
	"github.com/quantrail/nse-scanner/internal/state"
)

const dateLayout = "2006-01-02"

// Ingestor runs ingestion for one trading date.
type Ingestor interface {
	IngestForDate(ctx context.Context, date time.Time, mode domain.ExecutionMode) (*domain.IngestReport, error)
}

// Scanner runs the scan for one trading date.
type Scanner interface {
	ScanForDate(ctx context.Context, date time.Time, mode domain.ExecutionMode) (*domain.ScanReport, error)
}

// SimulationControl is the orchestrator surface exposed over the API. Nil
// when the service runs against the live exchange clock.
type SimulationControl interface {
	Advance(ctx context.Context, days int) (*domain.BatchResult, error)
	Step(ctx context.Context) (*domain.BatchResult, error)
	Reset(ctx context.Context) error
	Status(ctx context.Context) (*domain.SimulationStatus, error)
}

// Handler provides REST API handlers.
type Handler struct {
	repos    *repository.Repositories
	stateSvc *state.Service
	ingestor Ingestor
	scanner  Scanner
	sim      SimulationControl
	holidays *calendar.NSEHolidays
	cal      calendar.Calendar
	clk      clock.Clock
	logger   *zap.Logger
}

// NewHandler creates a new Handler instance. sim may be nil when the
// service is not in simulation mode.
func NewHandler(
	repos *repository.Repositories,
	stateSvc *state.Service,
	ingestor Ingestor,
	scanner Scanner,
	sim SimulationControl,
	holidays *calendar.NSEHolidays,
	cal calendar.Calendar,
	clk clock.Clock,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		repos:    repos,
		stateSvc: stateSvc,
		ingestor: ingestor,
		scanner:  scanner,
		sim:      sim,
		holidays: holidays,
		cal:      cal,
		clk:      clk,
		logger:   logger,
	}
}

// Error response structure
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// writeError writes an error response.
func writeError(w http.ResponseWriter, status int, err error, message string) {
	writeJSON(w, status, ErrorResponse{
		Error:   err.Error(),
		Message: message,
	})
}

// writeDomainError maps domain sentinels to HTTP status codes.
func (h *Handler) writeDomainError(w http.ResponseWriter, err error, message string) {
	switch {
	case errors.Is(err, domain.ErrInvalidArgument):
		writeError(w, http.StatusBadRequest, err, message)
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, err, message)
	case errors.Is(err, domain.ErrCyclingInProgress),
		errors.Is(err, domain.ErrConcurrencyConflict),
		errors.Is(err, domain.ErrInvalidState):
		writeError(w, http.StatusConflict, err, message)
	case errors.Is(err, domain.ErrProviderUnavailable):
		writeError(w, http.StatusBadGateway, err, message)
	default:
		h.logger.Error("Request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err, message)
	}
}

// parseDateParam parses an optional ?date=yyyy-mm-dd query parameter,
// defaulting to the current trading date.
func (h *Handler) parseDateParam(r *http.Request) (time.Time, error) {
	raw := r.URL.Query().Get("date")
	if raw == "" {
		return h.clk.Today(r.Context())
	}
	date, err := time.Parse(dateLayout, raw)
	if err != nil {
		return time.Time{}, domain.ErrInvalidArgument
	}
	return date, nil
}

// parseLimitParam parses an optional ?limit=N query parameter.
func parseLimitParam(r *http.Request, def int) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return def
	}
	return limit
}

// ========================================
// Status Handlers
// ========================================

// StatusResponse represents the pipeline status for one trading date.
type StatusResponse struct {
	TradingDate string                 `json:"trading_date"`
	State       *domain.ExecutionState `json:"state"`
}

// HandleStatus returns the execution state for today or ?date=.
func (h *Handler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"), "")
		return
	}

	date, err := h.parseDateParam(r)
	if err != nil {
		h.writeDomainError(w, err, "invalid date parameter")
		return
	}

	st, err := h.stateSvc.GetOrCreate(r.Context(), date)
	if err != nil {
		h.writeDomainError(w, err, "failed to load execution state")
		return
	}

	writeJSON(w, http.StatusOK, StatusResponse{
		TradingDate: st.TradingDate.Format(dateLayout),
		State:       st,
	})
}

// HandleStatusHistory returns the most recent execution states.
func (h *Handler) HandleStatusHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"), "")
		return
	}

	states, err := h.stateSvc.ListRecent(r.Context(), parseLimitParam(r, 30))
	if err != nil {
		h.writeDomainError(w, err, "failed to load execution history")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"states": states})
}

// ========================================
// Pipeline Handlers
// ========================================

// HandleIngestDaily triggers ingestion for today or ?date=.
func (h *Handler) HandleIngestDaily(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"), "")
		return
	}

	date, err := h.parseDateParam(r)
	if err != nil {
		h.writeDomainError(w, err, "invalid date parameter")
		return
	}

	session, err := h.cal.Session(r.Context(), date)
	if err != nil {
		h.writeDomainError(w, err, "failed to classify session")
		return
	}
	if !session.IsTradingSession() {
		writeError(w, http.StatusUnprocessableEntity,
			domain.NonTradingDayError{Date: date}, "not a trading day")
		return
	}

	report, err := h.ingestor.IngestForDate(r.Context(), date, domain.ModeAPI)
	if err != nil {
		h.writeDomainError(w, err, "ingestion failed")
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// HandleScanExecute triggers the scan for today or ?date=.
func (h *Handler) HandleScanExecute(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"), "")
		return
	}

	date, err := h.parseDateParam(r)
	if err != nil {
		h.writeDomainError(w, err, "invalid date parameter")
		return
	}

	report, err := h.scanner.ScanForDate(r.Context(), date, domain.ModeAPI)
	if err != nil {
		h.writeDomainError(w, err, "scan failed")
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// SignalsResponse represents a list of scan signals.
type SignalsResponse struct {
	Signals []*domain.ScanResult `json:"signals"`
	Count   int                  `json:"count"`
}

// HandleSignals lists signals for ?date= or the most recent ones.
func (h *Handler) HandleSignals(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"), "")
		return
	}

	var signals []*domain.ScanResult
	var err error
	if r.URL.Query().Get("date") != "" {
		var date time.Time
		date, err = h.parseDateParam(r)
		if err != nil {
			h.writeDomainError(w, err, "invalid date parameter")
			return
		}
		signals, err = h.repos.ScanResult.ListByDate(r.Context(), calendar.DateOf(date))
	} else {
		signals, err = h.repos.ScanResult.ListRecent(r.Context(), parseLimitParam(r, 50))
	}
	if err != nil {
		h.writeDomainError(w, err, "failed to load signals")
		return
	}

	writeJSON(w, http.StatusOK, SignalsResponse{Signals: signals, Count: len(signals)})
}

// ========================================
// Calendar Handlers
// ========================================

// SessionResponse represents the session classification of a date.
type SessionResponse struct {
	Date       string             `json:"date"`
	Session    domain.SessionType `json:"session"`
	TradingDay bool               `json:"trading_day"`
}

// HandleCalendarSession classifies ?date= (default today).
func (h *Handler) HandleCalendarSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"), "")
		return
	}

	date, err := h.parseDateParam(r)
	if err != nil {
		h.writeDomainError(w, err, "invalid date parameter")
		return
	}

	session, err := h.cal.Session(r.Context(), date)
	if err != nil {
		h.writeDomainError(w, err, "failed to classify session")
		return
	}

	writeJSON(w, http.StatusOK, SessionResponse{
		Date:       calendar.DateOf(date).Format(dateLayout),
		Session:    session,
		TradingDay: session.IsTradingSession(),
	})
}

// ClosureRequest represents the body for marking an emergency closure.
type ClosureRequest struct {
	Date   string `json:"date"`
	Reason string `json:"reason"`
}

// HandleClosures manages emergency closures: GET lists, POST marks,
// DELETE clears.
func (h *Handler) HandleClosures(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		closures, err := h.repos.EmergencyClosure.List(r.Context())
		if err != nil {
			h.writeDomainError(w, err, "failed to list closures")
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"closures": closures})

	case http.MethodPost:
		var req ClosureRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, err, "invalid request body")
			return
		}
		date, err := time.Parse(dateLayout, req.Date)
		if err != nil {
			writeError(w, http.StatusBadRequest, domain.ErrInvalidArgument, "date must be yyyy-mm-dd")
			return
		}
		if err := h.holidays.MarkEmergencyClosure(r.Context(), date, req.Reason); err != nil {
			h.writeDomainError(w, err, "failed to mark closure")
			return
		}
		writeJSON(w, http.StatusCreated, map[string]string{"date": req.Date, "status": "closed"})

	case http.MethodDelete:
		raw := r.URL.Query().Get("date")
		date, err := time.Parse(dateLayout, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, domain.ErrInvalidArgument, "date must be yyyy-mm-dd")
			return
		}
		if err := h.holidays.ClearEmergencyClosure(r.Context(), date); err != nil {
			h.writeDomainError(w, err, "failed to clear closure")
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"date": raw, "status": "cleared"})

	default:
		writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"), "")
	}
}

// ========================================
// Simulation Handlers
// ========================================

var errSimulationDisabled = errors.New("simulation mode is disabled")

// AdvanceRequest represents the body for advancing the simulation.
type AdvanceRequest struct {
	Days int `json:"days"`
}

// HandleSimulationStatus returns the current simulation snapshot.
func (h *Handler) HandleSimulationStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"), "")
		return
	}
	if h.sim == nil {
		writeError(w, http.StatusConflict, errSimulationDisabled, "")
		return
	}

	status, err := h.sim.Status(r.Context())
	if err != nil {
		h.writeDomainError(w, err, "failed to load simulation status")
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// HandleSimulationAdvance advances the simulation by the requested days.
func (h *Handler) HandleSimulationAdvance(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"), "")
		return
	}
	if h.sim == nil {
		writeError(w, http.StatusConflict, errSimulationDisabled, "")
		return
	}

	var req AdvanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err, "invalid request body")
		return
	}

	batch, err := h.sim.Advance(r.Context(), req.Days)
	if err != nil {
		if batch != nil && len(batch.CycleResults) > 0 {
			// A mid-batch failure still committed the completed days;
			// return the partial accounting with the error.
			writeJSON(w, http.StatusInternalServerError, map[string]interface{}{
				"error": err.Error(),
				"batch": batch,
			})
			return
		}
		h.writeDomainError(w, err, "failed to advance simulation")
		return
	}
	writeJSON(w, http.StatusOK, batch)
}

// HandleSimulationStep advances the simulation by one trading day.
func (h *Handler) HandleSimulationStep(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"), "")
		return
	}
	if h.sim == nil {
		writeError(w, http.StatusConflict, errSimulationDisabled, "")
		return
	}

	batch, err := h.sim.Step(r.Context())
	if err != nil {
		h.writeDomainError(w, err, "failed to step simulation")
		return
	}
	writeJSON(w, http.StatusOK, batch)
}

// HandleSimulationReset rewinds the simulation to its base date.
func (h *Handler) HandleSimulationReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"), "")
		return
	}
	if h.sim == nil {
		writeError(w, http.StatusConflict, errSimulationDisabled, "")
		return
	}

	if err := h.sim.Reset(r.Context()); err != nil {
		h.writeDomainError(w, err, "failed to reset simulation")
		return
	}

	status, err := h.sim.Status(r.Context())
	if err != nil {
		h.writeDomainError(w, err, "failed to load simulation status")
		return
	}
	writeJSON(w, http.StatusOK, status)
}
