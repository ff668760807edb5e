/*
handlers.go - HTTP API handlers for withdrawal bands

ENDPOINTS:
  Bands:
    GET    /api/band-types                     List band types
    POST   /api/resolve                        Resolve an ad-hoc band

  Mandates:
    GET    /api/mandates                       List mandates
    POST   /api/mandates                       Create mandate from JSON
    GET    /api/mandates/{id}                  Get mandate
    DELETE /api/mandates/{id}                  Delete mandate
    GET    /api/mandates/{id}/next             Next withdrawal (?today=)
    GET    /api/mandates/{id}/upcoming         Next dates (?today=&count=)
    GET    /api/mandates/{id}/withdrawals      Withdrawal history
    POST   /api/mandates/{id}/withdrawals      Schedule next withdrawal

  Withdrawals:
    GET    /api/withdrawals                    Due withdrawals (?from=&to=)

  Scheduler:
    GET    /api/scheduler/runs                 Recent scheduler runs
    POST   /api/scheduler/run                  Run the scheduler now

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Invalid configuration, overflow, invalid input
  - 404: Mandate not found
  - 409: Mandate ID taken, withdrawal already recorded
  - 500: Internal errors
*/
package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	json "github.com/goccy/go-json"
	"github.com/warp/withdrawal-bands/band"
	"github.com/warp/withdrawal-bands/factory"
	"github.com/warp/withdrawal-bands/mandate"
	"github.com/warp/withdrawal-bands/store/sqlite"
)

// DefaultUpcomingCount is used when ?count= is omitted.
const DefaultUpcomingCount = 6

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store     *sqlite.Store
	Service   *mandate.Service
	Factory   *factory.MandateFactory
	Scheduler *WithdrawalScheduler // nil when the scheduler is disabled
}

// NewHandler creates a new handler with the given store.
func NewHandler(store *sqlite.Store, svc *mandate.Service) *Handler {
	return &Handler{
		Store:   store,
		Service: svc,
		Factory: factory.NewMandateFactory(),
	}
}

// AttachScheduler exposes s through the scheduler endpoints. A disabled
// scheduler is not attached, so manual runs answer 503 as well.
func (h *Handler) AttachScheduler(s *WithdrawalScheduler) {
	if s == nil || !s.Enabled {
		h.Scheduler = nil
		return
	}
	h.Scheduler = s
}

// =============================================================================
// BAND HANDLERS
// =============================================================================

// ListBandTypes returns the band type enumeration.
func (h *Handler) ListBandTypes(w http.ResponseWriter, r *http.Request) {
	dtos := make([]BandTypeDTO, len(band.BandTypes))
	for i, bt := range band.BandTypes {
		dtos[i] = BandTypeDTO{
			Type:               string(bt),
			Code:               bt.Code(),
			Label:              bt.Label(),
			WidthMeaning:       string(bt.WidthMeaning()),
			WorkingDaysPerWeek: bt.WorkingDaysPerWeek(),
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// Resolve resolves the next withdrawal date for a band given in the body.
func (h *Handler) Resolve(w http.ResponseWriter, r *http.Request) {
	var req ResolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	cfg, err := h.Factory.ParseConfig(factory.BandJSON{
		Type:      req.BandType,
		Width:     req.BandWidth,
		AnchorDay: req.AnchorDay,
		Overflow:  req.Overflow,
	})
	if err != nil {
		writeDomainError(w, "Invalid band configuration", err)
		return
	}

	today := h.Service.Today()
	if req.Today != "" {
		if today, err = band.ParseDate(req.Today); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid today", err)
			return
		}
	}

	res, err := band.Explain(cfg, today)
	if err != nil {
		writeDomainError(w, "Failed to resolve withdrawal date", err)
		return
	}
	writeJSON(w, http.StatusOK, toResolutionDTO(res))
}

// =============================================================================
// MANDATE HANDLERS
// =============================================================================

// ListMandates returns all mandates.
func (h *Handler) ListMandates(w http.ResponseWriter, r *http.Request) {
	mandates, err := h.Store.ListMandates(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list mandates", err)
		return
	}

	dtos := make([]MandateDTO, len(mandates))
	for i, m := range mandates {
		dtos[i] = h.toMandateDTO(m)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateMandate creates a mandate from a factory JSON definition.
func (h *Handler) CreateMandate(w http.ResponseWriter, r *http.Request) {
	var mj factory.MandateJSON
	if err := json.NewDecoder(r.Body).Decode(&mj); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	m, err := h.Factory.FromJSON(mj)
	if err != nil {
		writeDomainError(w, "Invalid mandate", err)
		return
	}

	created, err := h.Service.CreateMandate(r.Context(), m)
	if err != nil {
		writeDomainError(w, "Failed to create mandate", err)
		return
	}
	writeJSON(w, http.StatusCreated, h.toMandateDTO(created))
}

// GetMandate returns a single mandate.
func (h *Handler) GetMandate(w http.ResponseWriter, r *http.Request) {
	m, err := h.Service.Get(r.Context(), mandateID(r))
	if err != nil {
		writeDomainError(w, "Failed to get mandate", err)
		return
	}
	writeJSON(w, http.StatusOK, h.toMandateDTO(*m))
}

// DeleteMandate removes a mandate, keeping its withdrawal history.
func (h *Handler) DeleteMandate(w http.ResponseWriter, r *http.Request) {
	id := mandateID(r)
	if _, err := h.Service.Get(r.Context(), id); err != nil {
		writeDomainError(w, "Failed to delete mandate", err)
		return
	}
	if err := h.Store.DeleteMandate(r.Context(), id); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to delete mandate", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// NextWithdrawal resolves the next withdrawal of a mandate.
func (h *Handler) NextWithdrawal(w http.ResponseWriter, r *http.Request) {
	today, err := todayParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid today", err)
		return
	}

	res, err := h.Service.NextWithdrawal(r.Context(), mandateID(r), today)
	if err != nil {
		writeDomainError(w, "Failed to resolve withdrawal date", err)
		return
	}
	writeJSON(w, http.StatusOK, toResolutionDTO(res))
}

// Upcoming lists the next withdrawal dates of a mandate.
func (h *Handler) Upcoming(w http.ResponseWriter, r *http.Request) {
	today, err := todayParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid today", err)
		return
	}

	count := DefaultUpcomingCount
	if s := r.URL.Query().Get("count"); s != "" {
		if count, err = strconv.Atoi(s); err != nil || count < 1 || count > band.MaxUpcoming {
			writeError(w, http.StatusBadRequest,
				fmt.Sprintf("count must be within 1..%d", band.MaxUpcoming), err)
			return
		}
	}

	id := mandateID(r)
	dates, err := h.Service.Upcoming(r.Context(), id, today, count)
	if err != nil {
		writeDomainError(w, "Failed to list upcoming withdrawals", err)
		return
	}

	dto := UpcomingDTO{MandateID: string(id), Dates: make([]string, len(dates))}
	for i, d := range dates {
		dto.Dates[i] = d.String()
	}
	writeJSON(w, http.StatusOK, dto)
}

// ListWithdrawals returns the withdrawal history of a mandate.
func (h *Handler) ListWithdrawals(w http.ResponseWriter, r *http.Request) {
	history, err := h.Service.History(r.Context(), mandateID(r))
	if err != nil {
		writeDomainError(w, "Failed to list withdrawals", err)
		return
	}
	writeJSON(w, http.StatusOK, toWithdrawalDTOs(history))
}

// ScheduleWithdrawal resolves and records the next withdrawal of a mandate.
func (h *Handler) ScheduleWithdrawal(w http.ResponseWriter, r *http.Request) {
	today, err := todayParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid today", err)
		return
	}

	wd, err := h.Service.Schedule(r.Context(), mandateID(r), today)
	if err != nil {
		writeDomainError(w, "Failed to schedule withdrawal", err)
		return
	}
	writeJSON(w, http.StatusCreated, toWithdrawalDTO(wd))
}

// =============================================================================
// WITHDRAWAL HANDLERS
// =============================================================================

// ListDueWithdrawals returns withdrawals of every mandate in [from, to].
// Defaults to the next 31 days.
func (h *Handler) ListDueWithdrawals(w http.ResponseWriter, r *http.Request) {
	period := band.Period{Start: h.Service.Today()}
	period.End = period.Start.AddDays(30)

	var err error
	if s := r.URL.Query().Get("from"); s != "" {
		if period.Start, err = band.ParseDate(s); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid from", err)
			return
		}
	}
	if s := r.URL.Query().Get("to"); s != "" {
		if period.End, err = band.ParseDate(s); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid to", err)
			return
		}
	}
	if !period.Valid() {
		writeError(w, http.StatusBadRequest, "Period ends before it starts", nil)
		return
	}

	due, err := h.Store.ListWithdrawalsBetween(r.Context(), period)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list withdrawals", err)
		return
	}
	writeJSON(w, http.StatusOK, toWithdrawalDTOs(due))
}

// =============================================================================
// SCHEDULER HANDLERS
// =============================================================================

// ListSchedulerRuns returns recent scheduler runs.
func (h *Handler) ListSchedulerRuns(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	runs, err := h.Store.GetSchedulerRuns(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list scheduler runs", err)
		return
	}

	dtos := make([]SchedulerRunDTO, len(runs))
	for i, run := range runs {
		dtos[i] = toSchedulerRunDTO(run)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// TriggerScheduler runs one scheduler pass immediately.
func (h *Handler) TriggerScheduler(w http.ResponseWriter, r *http.Request) {
	if h.Scheduler == nil {
		writeError(w, http.StatusServiceUnavailable, "Scheduler is disabled", nil)
		return
	}
	run := h.Scheduler.RunNow(r.Context())
	writeJSON(w, http.StatusOK, toSchedulerRunDTO(run))
}

// =============================================================================
// HELPERS
// =============================================================================

func mandateID(r *http.Request) mandate.MandateID {
	return mandate.MandateID(chi.URLParam(r, "id"))
}

// todayParam reads ?today=, returning a zero Date when absent.
func todayParam(r *http.Request) (band.Date, error) {
	s := r.URL.Query().Get("today")
	if s == "" {
		return band.Date{}, nil
	}
	return band.ParseDate(s)
}

func (h *Handler) toMandateDTO(m mandate.Mandate) MandateDTO {
	dto := MandateDTO{MandateJSON: h.Factory.ToJSON(m)}
	if !m.CreatedAt.IsZero() {
		dto.CreatedAt = m.CreatedAt.Format(time.RFC3339)
	}
	return dto
}

func toWithdrawalDTOs(ws []mandate.Withdrawal) []WithdrawalDTO {
	dtos := make([]WithdrawalDTO, len(ws))
	for i, wd := range ws {
		dtos[i] = toWithdrawalDTO(wd)
	}
	return dtos
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError picks the status from the error kind.
func writeDomainError(w http.ResponseWriter, message string, err error) {
	switch {
	case mandate.IsNotFound(err):
		writeError(w, http.StatusNotFound, "Mandate not found", err)
	case errors.Is(err, mandate.ErrMandateExists), errors.Is(err, mandate.ErrDuplicateWithdrawal):
		writeError(w, http.StatusConflict, message, err)
	case mandate.IsClientError(err):
		writeError(w, http.StatusBadRequest, message, err)
	default:
		writeError(w, http.StatusInternalServerError, message, err)
	}
}
