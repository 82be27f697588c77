/*
handlers.go - HTTP handlers for the job launch surface

PURPOSE:
  A thin administrative surface over the engine: record punch events,
  launch the three jobs, inspect run history and reports, and manage the
  holiday calendar. Aggregation itself never happens in a handler; every
  launch goes through the jobs.Launcher.

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: invalid input
  - 404: unknown job or resource
  - 500: store or run failures

SECURITY NOTE:
  No authentication middleware. Deploy behind an authenticated gateway.

SEE ALSO:
  - server.go: router setup and middleware
  - scheduler.go: unattended job launching
*/
package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/warp/attendance-engine/attendance"
	"github.com/warp/attendance-engine/jobs"
	"github.com/warp/attendance-engine/joblog"
	"github.com/warp/attendance-engine/store"
)

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store    store.Store
	Launcher *jobs.Launcher
	Recorder joblog.Recorder
}

func NewHandler(st store.Store, launcher *jobs.Launcher, rec joblog.Recorder) *Handler {
	return &Handler{Store: st, Launcher: launcher, Recorder: rec}
}

// =============================================================================
// DTOS
// =============================================================================

type punchRequest struct {
	UserID    string  `json:"user_id"`
	Type      string  `json:"type"`
	Timestamp string  `json:"timestamp"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type runDTO struct {
	ID           int64          `json:"id"`
	Job          string         `json:"job"`
	Status       string         `json:"status"`
	ItemsRead    int            `json:"items_read"`
	ItemsWritten int            `json:"items_written"`
	ItemsSkipped int            `json:"items_skipped"`
	Error        string         `json:"error,omitempty"`
	StartedAt    time.Time      `json:"started_at"`
	CompletedAt  *time.Time     `json:"completed_at,omitempty"`
	StepFailures map[string]int `json:"step_failures,omitempty"`
}

type summaryDTO struct {
	UserID     string `json:"user_id"`
	Type       string `json:"type"`
	TargetDate string `json:"target_date"`
	Total      string `json:"total_hours"`
	Overtime   string `json:"overtime_hours"`
	LateNight  string `json:"late_night_hours"`
	Holiday    string `json:"holiday_hours"`
}

type reportDTO struct {
	UserID    string    `json:"user_id"`
	Month     string    `json:"month"`
	Overtime  string    `json:"overtime_hours"`
	LateNight string    `json:"late_night_hours"`
	Holiday   string    `json:"holiday_hours"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type holidayRequest struct {
	Date      string `json:"date"`
	Name      string `json:"name"`
	Recurring bool   `json:"recurring"`
}

func toRunDTO(run store.JobRun, stepFailures map[string]int) runDTO {
	return runDTO{
		ID:           run.ID,
		Job:          run.JobName,
		Status:       run.Status,
		ItemsRead:    run.ItemsRead,
		ItemsWritten: run.ItemsWritten,
		ItemsSkipped: run.ItemsSkipped,
		Error:        run.Error,
		StartedAt:    run.StartedAt,
		CompletedAt:  run.CompletedAt,
		StepFailures: stepFailures,
	}
}

// =============================================================================
// PUNCH INTAKE
// =============================================================================

// CreatePunch records one punch event. The clock-in UI owns validation of
// geofencing etc.; this endpoint checks shape only.
func (h *Handler) CreatePunch(w http.ResponseWriter, r *http.Request) {
	var req punchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body", err)
		return
	}

	typ := attendance.PunchType(req.Type)
	if typ != attendance.PunchIn && typ != attendance.PunchOut {
		writeError(w, http.StatusBadRequest, "type must be \"in\" or \"out\"", nil)
		return
	}
	ts, err := time.Parse(time.RFC3339, req.Timestamp)
	if err != nil {
		writeError(w, http.StatusBadRequest, "timestamp must be RFC3339", err)
		return
	}
	if req.UserID == "" {
		writeError(w, http.StatusBadRequest, "user_id is required", nil)
		return
	}

	id, err := h.Store.AppendPunch(r.Context(), attendance.PunchEvent{
		UserID:    attendance.UserID(req.UserID),
		Type:      typ,
		Timestamp: ts,
		Latitude:  req.Latitude,
		Longitude: req.Longitude,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to record punch", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"id": id})
}

// =============================================================================
// JOBS
// =============================================================================

// ListJobs returns the launchable job names in execution order.
func (h *Handler) ListJobs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"jobs": jobs.Names()})
}

// RunJob launches a job synchronously and returns its run record. A FAILED
// run still responds 200: the run itself is the resource, and its status
// and error fields carry the outcome.
func (h *Handler) RunJob(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	run, err := h.Launcher.Run(r.Context(), name)
	if err != nil && run.ID == 0 {
		writeError(w, http.StatusNotFound, "unknown job", err)
		return
	}

	var failures map[string]int
	if h.Recorder != nil {
		failures = h.Recorder.StepCounts(name)
	}
	writeJSON(w, http.StatusOK, toRunDTO(run, failures))
}

// ListRuns returns recent job runs, newest first.
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	runs, err := h.Store.ListJobRuns(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list runs", err)
		return
	}

	dtos := make([]runDTO, len(runs))
	for i, run := range runs {
		dtos[i] = toRunDTO(run, nil)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// SUMMARIES AND REPORTS
// =============================================================================

// ListUserSummaries returns one user's summaries of a type in a date range.
func (h *Handler) ListUserSummaries(w http.ResponseWriter, r *http.Request) {
	user := attendance.UserID(chi.URLParam(r, "id"))

	typ := attendance.SummaryType(r.URL.Query().Get("type"))
	if typ == "" {
		typ = attendance.SummaryDaily
	}
	from, err := parseDate(r.URL.Query().Get("from"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "from must be YYYY-MM-DD", err)
		return
	}
	to, err := parseDate(r.URL.Query().Get("to"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "to must be YYYY-MM-DD", err)
		return
	}
	if from.IsZero() {
		from = attendance.MonthStart(time.Now())
	}
	if to.IsZero() {
		to = from.AddDate(0, 1, 0)
	}

	sums, err := h.Store.ListUserSummaries(r.Context(), user, typ, from, to)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list summaries", err)
		return
	}

	dtos := make([]summaryDTO, len(sums))
	for i, s := range sums {
		dtos[i] = summaryDTO{
			UserID:     string(s.UserID),
			Type:       string(s.Type),
			TargetDate: s.TargetDate.Format("2006-01-02"),
			Total:      s.Total.String(),
			Overtime:   s.Overtime.String(),
			LateNight:  s.LateNight.String(),
			Holiday:    s.Holiday.String(),
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// ListReports returns all overtime reports for a month (?month=YYYY-MM).
func (h *Handler) ListReports(w http.ResponseWriter, r *http.Request) {
	monthParam := r.URL.Query().Get("month")
	month, err := time.Parse("2006-01", monthParam)
	if err != nil {
		writeError(w, http.StatusBadRequest, "month must be YYYY-MM", err)
		return
	}

	reports, err := h.Store.ListReportsForMonth(r.Context(), month)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list reports", err)
		return
	}

	dtos := make([]reportDTO, len(reports))
	for i, rep := range reports {
		dtos[i] = reportDTO{
			UserID:    string(rep.UserID),
			Month:     rep.Month.Format("2006-01"),
			Overtime:  rep.Overtime.String(),
			LateNight: rep.LateNight.String(),
			Holiday:   rep.Holiday.String(),
			Status:    string(rep.Status),
			CreatedAt: rep.CreatedAt,
			UpdatedAt: rep.UpdatedAt,
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// HOLIDAYS
// =============================================================================

func (h *Handler) ListHolidays(w http.ResponseWriter, r *http.Request) {
	holidays, err := h.Store.ListHolidays(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list holidays", err)
		return
	}
	writeJSON(w, http.StatusOK, holidays)
}

func (h *Handler) CreateHoliday(w http.ResponseWriter, r *http.Request) {
	var req holidayRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body", err)
		return
	}
	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD", err)
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required", nil)
		return
	}

	holiday := attendance.Holiday{
		ID:        uuid.NewString(),
		Date:      date,
		Name:      req.Name,
		Recurring: req.Recurring,
		CreatedAt: time.Now(),
	}
	if err := h.Store.AddHoliday(r.Context(), holiday); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to add holiday", err)
		return
	}
	writeJSON(w, http.StatusCreated, holiday)
}

func (h *Handler) DeleteHoliday(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.DeleteHoliday(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to delete holiday", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// HEALTH
// =============================================================================

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// HELPERS
// =============================================================================

func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse("2006-01-02", s)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, msg string, err error) {
	body := map[string]string{"error": msg}
	if err != nil {
		body["detail"] = err.Error()
	}
	writeJSON(w, status, body)
}
