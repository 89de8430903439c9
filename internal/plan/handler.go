package plan

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/2beens/trainingplan/pkg"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
)

type Handler struct {
	index       *Index
	advisory    string
	todayPolicy TodayPolicy
	// ability to inject "now" for unit testing
	NowFunc func() time.Time
}

func NewHandler(index *Index, advisory string, todayPolicy TodayPolicy) *Handler {
	return &Handler{
		index:       index,
		advisory:    advisory,
		todayPolicy: todayPolicy,
		NowFunc:     time.Now,
	}
}

func (handler *Handler) SetupRoutes(router *mux.Router) {
	router.HandleFunc("/plan", handler.HandleGetPlan).Methods("GET", "OPTIONS").Name("get-plan")
	router.HandleFunc("/plan/weeks", handler.HandleGetWeeks).Methods("GET", "OPTIONS").Name("get-plan-weeks")
	router.HandleFunc("/plan/week/{week}", handler.HandleGetWeek).Methods("GET", "OPTIONS").Name("get-plan-week")
	router.HandleFunc("/plan/today", handler.HandleGetToday).Methods("GET", "OPTIONS").Name("get-plan-today")
	router.HandleFunc("/plan/select", handler.HandleSelect).Methods("GET", "OPTIONS").Name("get-plan-selection")
}

type GetPlanResponse struct {
	Days     []PlanDay `json:"days"`
	Weeks    []int     `json:"weeks"`
	Advisory string    `json:"advisory,omitempty"`
}

func (handler *Handler) HandleGetPlan(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, GetPlanResponse{
		Days:     handler.index.Days(),
		Weeks:    handler.index.Weeks(),
		Advisory: handler.advisory,
	})
}

func (handler *Handler) HandleGetWeeks(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, handler.index.Weeks())
}

func (handler *Handler) HandleGetWeek(w http.ResponseWriter, r *http.Request) {
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
	writeJSON(w, days)
}

func (handler *Handler) HandleGetToday(w http.ResponseWriter, r *http.Request) {
	policy := handler.todayPolicy
	if p := r.URL.Query().Get("policy"); p != "" {
		policy = TodayPolicy(p)
	}

	today := handler.NowFunc().Format(DateLayout)
	day := handler.index.ResolveToday(today, policy)
	if day == nil {
		// no day selected - the today panel stays empty
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, day)
}

// HandleSelect applies the week-selection consistency rule: the returned
// selection is always a member of the requested week group (or has an empty
// date if the group is empty).
func (handler *Handler) HandleSelect(w http.ResponseWriter, r *http.Request) {
	week, err := strconv.Atoi(r.URL.Query().Get("week"))
	if err != nil {
		http.Error(w, "error, week NaN", http.StatusBadRequest)
		return
	}

	current := Selection{Date: r.URL.Query().Get("date")}
	selection := handler.index.SelectWeek(current, week)
	writeJSON(w, selection)
}

func writeJSON(w http.ResponseWriter, payload interface{}) {
	respJson, err := json.Marshal(payload)
	if err != nil {
		log.Errorf("marshal plan response: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytesOK(w, pkg.ContentType.JSON, respJson)
}
