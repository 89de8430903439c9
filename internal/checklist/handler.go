package checklist

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/2beens/trainingplan/internal/middleware"
	"github.com/2beens/trainingplan/internal/plan"
	"github.com/2beens/trainingplan/internal/telemetry/metrics"
	"github.com/2beens/trainingplan/internal/telemetry/tracing"
	"github.com/2beens/trainingplan/pkg"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
)

type checklistRepo interface {
	GetSubtask(ctx context.Context, date string, section plan.Section, index int) (bool, error)
	SetSubtask(ctx context.Context, date string, section plan.Section, index int, done bool) error
	DayDone(ctx context.Context, date string) (bool, error)
	SetAllForDay(ctx context.Context, day plan.PlanDay, done bool) error
	ClearWeek(ctx context.Context, days []plan.PlanDay) error
	GetNote(ctx context.Context, date string) (string, error)
	SetNote(ctx context.Context, date, text string) error
}

type Handler struct {
	repo       checklistRepo
	aggregator *Aggregator
	noteSaver  *NoteSaver
	index      *plan.Index
	metrics    *metrics.Manager
}

func NewHandler(
	repo checklistRepo,
	aggregator *Aggregator,
	noteSaver *NoteSaver,
	index *plan.Index,
	metricsManager *metrics.Manager,
) *Handler {
	return &Handler{
		repo:       repo,
		aggregator: aggregator,
		noteSaver:  noteSaver,
		index:      index,
		metrics:    metricsManager,
	}
}

func (handler *Handler) SetupRoutes(
	router *mux.Router,
	rateLimiter middleware.RequestRateLimiter,
	resetsAllowedPerMin int,
) {
	router.HandleFunc("/checklist/{date}", handler.HandleGetDay).Methods("GET", "OPTIONS").Name("get-checklist-day")
	router.HandleFunc("/checklist/{date}/task/{section}/{index}", handler.HandleSetSubtask).Methods("PUT", "OPTIONS").Name("set-subtask")
	router.HandleFunc("/checklist/{date}/done", handler.HandleSetDayDone).Methods("POST", "OPTIONS").Name("set-day-done")
	router.HandleFunc("/checklist/{date}/note", handler.HandleGetNote).Methods("GET", "OPTIONS").Name("get-note")
	router.HandleFunc("/checklist/{date}/note", handler.HandleSaveNote).Methods("PUT", "OPTIONS").Name("save-note")
	router.HandleFunc("/checklist/{date}/note", handler.HandleClearNote).Methods("DELETE", "OPTIONS").Name("clear-note")
	router.HandleFunc("/checklist/{date}/note/flush", handler.HandleFlushNote).Methods("POST", "OPTIONS").Name("flush-note")

	router.HandleFunc("/progress/day/{date}", handler.HandleDayProgress).Methods("GET", "OPTIONS").Name("day-progress")
	router.HandleFunc("/progress/week/{week}", handler.HandleWeekProgress).Methods("GET", "OPTIONS").Name("week-progress")

	// week reset is the one destructive action - rate limit it to prevent abuse
	resetSubrouter := router.PathPrefix("/checklist/week").Subrouter()
	resetSubrouter.
		HandleFunc("/{week}/reset", handler.HandleResetWeek).
		Methods("POST", "OPTIONS").Name("reset-week")
	resetSubrouter.Use(middleware.RateLimit(rateLimiter, "reset-week", resetsAllowedPerMin))
}

type TaskStatus struct {
	plan.Task
	Done bool `json:"done"`
}

type DayChecklistResponse struct {
	Day      plan.PlanDay `json:"day"`
	Tasks    []TaskStatus `json:"tasks"`
	Note     string       `json:"note"`
	DayDone  bool         `json:"dayDone"`
	Progress DayProgress  `json:"progress"`
}

func (handler *Handler) HandleGetDay(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.checklist.getDay")
	defer span.End()

	day := handler.planDay(w, r)
	if day == nil {
		return
	}

	tasks := plan.DayTasks(*day)
	statuses := make([]TaskStatus, 0, len(tasks))
	progress := DayProgress{Total: len(tasks)}
	for _, task := range tasks {
		done, err := handler.repo.GetSubtask(ctx, day.Date, task.Section, task.Index)
		if err != nil {
			log.Errorf("get checklist day %s: %s", day.Date, err)
			http.Error(w, "failed to get checklist", http.StatusInternalServerError)
			return
		}
		if done {
			progress.Done++
		}
		statuses = append(statuses, TaskStatus{Task: task, Done: done})
	}
	progress.Completed = progress.Total > 0 && progress.Done == progress.Total

	note, err := handler.repo.GetNote(ctx, day.Date)
	if err != nil {
		log.Errorf("get note %s: %s", day.Date, err)
		http.Error(w, "failed to get checklist", http.StatusInternalServerError)
		return
	}

	dayDone, err := handler.repo.DayDone(ctx, day.Date)
	if err != nil {
		log.Errorf("get day done %s: %s", day.Date, err)
		http.Error(w, "failed to get checklist", http.StatusInternalServerError)
		return
	}

	handler.writeJSON(w, DayChecklistResponse{
		Day:      *day,
		Tasks:    statuses,
		Note:     note,
		DayDone:  dayDone,
		Progress: progress,
	})
}

type SetDoneRequest struct {
	Done bool `json:"done"`
}

func (handler *Handler) HandleSetSubtask(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.checklist.setSubtask")
	defer span.End()

	day := handler.planDay(w, r)
	if day == nil {
		return
	}

	vars := mux.Vars(r)
	section, err := plan.ParseSection(vars["section"])
	if err != nil {
		http.Error(w, "error, invalid section", http.StatusBadRequest)
		return
	}
	index, err := strconv.Atoi(vars["index"])
	if err != nil || index < 0 {
		http.Error(w, "error, index invalid", http.StatusBadRequest)
		return
	}

	var req SetDoneRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Tracef("set subtask, unmarshal json params: %s", err)
		http.Error(w, "set subtask failed", http.StatusBadRequest)
		return
	}

	if err := handler.repo.SetSubtask(ctx, day.Date, section, index, req.Done); err != nil {
		log.Errorf("set subtask %s/%s/%d: %s", day.Date, section, index, err)
		http.Error(w, "error, failed to set subtask", http.StatusInternalServerError)
		return
	}

	handler.metrics.CounterSubtaskToggles.Inc()
	handler.aggregator.Invalidate()

	handler.respondWithDayProgress(ctx, w, *day)
}

func (handler *Handler) HandleSetDayDone(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.checklist.setDayDone")
	defer span.End()

	day := handler.planDay(w, r)
	if day == nil {
		return
	}

	var req SetDoneRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Tracef("set day done, unmarshal json params: %s", err)
		http.Error(w, "set day done failed", http.StatusBadRequest)
		return
	}

	if err := handler.repo.SetAllForDay(ctx, *day, req.Done); err != nil {
		log.Errorf("set all for day %s: %s", day.Date, err)
		http.Error(w, "error, failed to set day done", http.StatusInternalServerError)
		return
	}

	handler.metrics.CounterDayToggles.Inc()
	handler.aggregator.Invalidate()

	handler.respondWithDayProgress(ctx, w, *day)
}

func (handler *Handler) HandleGetNote(w http.ResponseWriter, r *http.Request) {
	day := handler.planDay(w, r)
	if day == nil {
		return
	}

	note, err := handler.repo.GetNote(r.Context(), day.Date)
	if err != nil {
		log.Errorf("get note %s: %s", day.Date, err)
		http.Error(w, "failed to get note", http.StatusInternalServerError)
		return
	}
	handler.writeJSON(w, map[string]string{"note": note})
}

type SaveNoteRequest struct {
	Text string `json:"text"`
}

// HandleSaveNote schedules a debounced note write - rapid successive edits
// collapse into a single persisted write of the latest value.
func (handler *Handler) HandleSaveNote(w http.ResponseWriter, r *http.Request) {
	day := handler.planDay(w, r)
	if day == nil {
		return
	}

	var req SaveNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Tracef("save note, unmarshal json params: %s", err)
		http.Error(w, "save note failed", http.StatusBadRequest)
		return
	}

	handler.noteSaver.Save(day.Date, req.Text)
	handler.metrics.CounterNoteSaves.Inc()
	pkg.WriteTextResponseOK(w, "saving")
}

func (handler *Handler) HandleClearNote(w http.ResponseWriter, r *http.Request) {
	day := handler.planDay(w, r)
	if day == nil {
		return
	}

	// drop any pending debounced write first, then remove the record
	handler.noteSaver.Flush(day.Date)
	if err := handler.repo.SetNote(r.Context(), day.Date, ""); err != nil {
		log.Errorf("clear note %s: %s", day.Date, err)
		http.Error(w, "error, failed to clear note", http.StatusInternalServerError)
		return
	}
	pkg.WriteTextResponseOK(w, "cleared")
}

// HandleFlushNote persists a pending debounced note immediately. Clients call
// it when the visible day switches away, so no scheduled write gets lost.
func (handler *Handler) HandleFlushNote(w http.ResponseWriter, r *http.Request) {
	day := handler.planDay(w, r)
	if day == nil {
		return
	}
	handler.noteSaver.Flush(day.Date)
	pkg.WriteTextResponseOK(w, "flushed")
}

func (handler *Handler) HandleResetWeek(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.checklist.resetWeek")
	defer span.End()

	vars := mux.Vars(r)
	week, err := strconv.Atoi(vars["week"])
	if err != nil {
		http.Error(w, "error, week NaN", http.StatusBadRequest)
		return
	}

	days := handler.index.Week(week)
	if len(days) == 0 {
		http.Error(w, "week not found", http.StatusNotFound)
		return
	}

	if err := handler.repo.ClearWeek(ctx, days); err != nil {
		log.Errorf("reset week %d: %s", week, err)
		http.Error(w, "error, failed to reset week", http.StatusInternalServerError)
		return
	}

	handler.metrics.CounterWeekResets.Inc()
	handler.aggregator.Invalidate()

	log.Printf("week %d reset, %d days cleared", week, len(days))
	handler.writeJSON(w, map[string]int{"week": week, "daysCleared": len(days)})
}

func (handler *Handler) HandleDayProgress(w http.ResponseWriter, r *http.Request) {
	day := handler.planDay(w, r)
	if day == nil {
		return
	}
	handler.respondWithDayProgress(r.Context(), w, *day)
}

func (handler *Handler) HandleWeekProgress(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	week, err := strconv.Atoi(vars["week"])
	if err != nil {
		http.Error(w, "error, week NaN", http.StatusBadRequest)
		return
	}

	days := handler.index.Week(week)
	if len(days) == 0 {
		http.Error(w, "week not found", http.StatusNotFound)
		return
	}

	progress, err := handler.aggregator.WeekTotals(r.Context(), days)
	if err != nil {
		log.Errorf("week totals %d: %s", week, err)
		http.Error(w, "failed to get week progress", http.StatusInternalServerError)
		return
	}
	handler.writeJSON(w, progress)
}

func (handler *Handler) respondWithDayProgress(ctx context.Context, w http.ResponseWriter, day plan.PlanDay) {
	progress, err := handler.aggregator.DayTotals(ctx, day)
	if err != nil {
		log.Errorf("day totals %s: %s", day.Date, err)
		http.Error(w, "failed to get day progress", http.StatusInternalServerError)
		return
	}
	handler.writeJSON(w, progress)
}

// planDay resolves the {date} route var to a plan day; writes the error
// response and returns nil when it cannot.
func (handler *Handler) planDay(w http.ResponseWriter, r *http.Request) *plan.PlanDay {
	date := mux.Vars(r)["date"]
	if date == "" {
		http.Error(w, "error, date empty", http.StatusBadRequest)
		return nil
	}
	day := handler.index.DayByDate(date)
	if day == nil {
		http.Error(w, "error, date not in plan", http.StatusNotFound)
		return nil
	}
	return day
}

func (handler *Handler) writeJSON(w http.ResponseWriter, payload interface{}) {
	respJson, err := json.Marshal(payload)
	if err != nil {
		log.Errorf("marshal checklist response: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytesOK(w, pkg.ContentType.JSON, respJson)
}
