package checklist

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/2beens/trainingplan/internal/plan"
	"github.com/2beens/trainingplan/internal/telemetry/metrics"

	"github.com/go-redis/redis_rate/v9"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(
		m,
		goleak.IgnoreTopFunction("github.com/go-redis/redis/v8/internal/pool.(*ConnPool).reaper"),
	)
}

type rateLimiterStub struct {
	allowed int
}

func (s *rateLimiterStub) Allow(_ context.Context, _ string, _ redis_rate.Limit) (*redis_rate.Result, error) {
	return &redis_rate.Result{Allowed: s.allowed}, nil
}

func checklistTestDays() []plan.PlanDay {
	return []plan.PlanDay{
		{Week: 1, Date: "2025-08-12", Day: "Tue", Workout: "Run 5k", Warmup: "Leg swings;Hip circles", Cooldown: "Stretch"},
		{Week: 1, Date: "2025-08-13", Day: "Wed", Workout: "Bike 40min", Warmup: "Leg swings;Hip circles", Cooldown: "Stretch"},
		{Week: 2, Date: "2025-08-19", Day: "Tue", Workout: "Tempo run", Warmup: "Strides", Cooldown: "Stretch"},
	}
}

type checklistTestEnv struct {
	router *mux.Router
	repo   *repoMock
	saver  *NoteSaver
}

func newChecklistTestEnv(t *testing.T, rateLimiter *rateLimiterStub) *checklistTestEnv {
	t.Helper()

	repo := newRepoMock()
	aggregator := NewAggregator(repo)
	// debounce delay long enough that only explicit flushes persist notes
	saver := NewNoteSaver(repo, time.Hour)
	t.Cleanup(saver.Close)

	handler := NewHandler(repo, aggregator, saver, plan.NewIndex(checklistTestDays()), metrics.NewTestManager())
	router := mux.NewRouter()
	handler.SetupRoutes(router, rateLimiter, 10)

	return &checklistTestEnv{
		router: router,
		repo:   repo,
		saver:  saver,
	}
}

func (env *checklistTestEnv) request(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	rr := httptest.NewRecorder()
	env.router.ServeHTTP(rr, req)
	return rr
}

func TestChecklistHandler_GetDay(t *testing.T) {
	env := newChecklistTestEnv(t, &rateLimiterStub{allowed: 1})
	ctx := context.Background()

	require.NoError(t, env.repo.SetSubtask(ctx, "2025-08-12", plan.SectionWarm, 0, true))
	require.NoError(t, env.repo.SetNote(ctx, "2025-08-12", "felt strong"))

	rr := env.request(t, "GET", "/checklist/2025-08-12", "")
	require.Equal(t, http.StatusOK, rr.Code)

	var resp DayChecklistResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))

	assert.Equal(t, "2025-08-12", resp.Day.Date)
	require.Len(t, resp.Tasks, 4)
	assert.True(t, resp.Tasks[0].Done)
	assert.False(t, resp.Tasks[1].Done)
	assert.Equal(t, "felt strong", resp.Note)
	assert.False(t, resp.DayDone)
	assert.Equal(t, DayProgress{Done: 1, Total: 4}, resp.Progress)
}

func TestChecklistHandler_GetDay_UnknownDate(t *testing.T) {
	env := newChecklistTestEnv(t, &rateLimiterStub{allowed: 1})

	rr := env.request(t, "GET", "/checklist/2030-01-01", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestChecklistHandler_SetSubtask(t *testing.T) {
	env := newChecklistTestEnv(t, &rateLimiterStub{allowed: 1})

	rr := env.request(t, "PUT", "/checklist/2025-08-12/task/warm/0", `{"done":true}`)
	require.Equal(t, http.StatusOK, rr.Code)

	var progress DayProgress
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &progress))
	assert.Equal(t, DayProgress{Done: 1, Total: 4}, progress)

	// unchecking brings the count back down
	rr = env.request(t, "PUT", "/checklist/2025-08-12/task/warm/0", `{"done":false}`)
	require.Equal(t, http.StatusOK, rr.Code)
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &progress))
	assert.Equal(t, DayProgress{Done: 0, Total: 4}, progress)

	rr = env.request(t, "PUT", "/checklist/2025-08-12/task/stretching/0", `{"done":true}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = env.request(t, "PUT", "/checklist/2025-08-12/task/warm/0", "not json")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestChecklistHandler_SetDayDone(t *testing.T) {
	env := newChecklistTestEnv(t, &rateLimiterStub{allowed: 1})

	rr := env.request(t, "POST", "/checklist/2025-08-12/done", `{"done":true}`)
	require.Equal(t, http.StatusOK, rr.Code)

	var progress DayProgress
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &progress))
	assert.Equal(t, DayProgress{Done: 4, Total: 4, Completed: true}, progress)

	dayDone, err := env.repo.DayDone(context.Background(), "2025-08-12")
	require.NoError(t, err)
	assert.True(t, dayDone)
}

func TestChecklistHandler_Notes(t *testing.T) {
	env := newChecklistTestEnv(t, &rateLimiterStub{allowed: 1})

	rr := env.request(t, "PUT", "/checklist/2025-08-12/note", `{"text":"felt strong"}`)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "saving", rr.Body.String())

	// the write is debounced - nothing persisted until the flush
	assert.Empty(t, env.repo.noteWrites())

	rr = env.request(t, "POST", "/checklist/2025-08-12/note/flush", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "felt strong", env.repo.noteWrites()["2025-08-12"])

	rr = env.request(t, "GET", "/checklist/2025-08-12/note", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"note":"felt strong"}`, rr.Body.String())

	rr = env.request(t, "DELETE", "/checklist/2025-08-12/note", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "cleared", rr.Body.String())
	assert.Empty(t, env.repo.noteWrites())
}

func TestChecklistHandler_ResetWeek(t *testing.T) {
	env := newChecklistTestEnv(t, &rateLimiterStub{allowed: 1})
	ctx := context.Background()

	for _, day := range checklistTestDays()[:2] {
		require.NoError(t, env.repo.SetAllForDay(ctx, day, true))
	}

	rr := env.request(t, "POST", "/checklist/week/1/reset", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"week":1,"daysCleared":2}`, rr.Body.String())

	for _, day := range checklistTestDays()[:2] {
		done, err := env.repo.DayDone(ctx, day.Date)
		require.NoError(t, err)
		assert.False(t, done)
	}

	rr = env.request(t, "POST", "/checklist/week/42/reset", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestChecklistHandler_ResetWeek_RateLimited(t *testing.T) {
	env := newChecklistTestEnv(t, &rateLimiterStub{allowed: 0})

	rr := env.request(t, "POST", "/checklist/week/1/reset", "")
	assert.Equal(t, http.StatusTooEarly, rr.Code)
}

func TestChecklistHandler_Progress(t *testing.T) {
	env := newChecklistTestEnv(t, &rateLimiterStub{allowed: 1})
	ctx := context.Background()

	days := checklistTestDays()
	require.NoError(t, env.repo.SetAllForDay(ctx, days[0], true))
	require.NoError(t, env.repo.SetSubtask(ctx, days[1].Date, plan.SectionWarm, 0, true))
	require.NoError(t, env.repo.SetSubtask(ctx, days[1].Date, plan.SectionWorkout, 0, true))

	rr := env.request(t, "GET", "/progress/day/2025-08-12", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var day DayProgress
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &day))
	assert.Equal(t, DayProgress{Done: 4, Total: 4, Completed: true}, day)

	rr = env.request(t, "GET", "/progress/week/1", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var week WeekProgress
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &week))
	assert.Equal(t, WeekProgress{Done: 6, Total: 8, Pct: 75}, week)

	rr = env.request(t, "GET", "/progress/week/42", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}
