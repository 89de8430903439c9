package checklist

import (
	"context"
	"fmt"
	"math"

	"github.com/2beens/trainingplan/internal/plan"

	"github.com/coocood/freecache"
	log "github.com/sirupsen/logrus"
)

type completionGetter interface {
	GetSubtask(ctx context.Context, date string, section plan.Section, index int) (bool, error)
}

type DayProgress struct {
	Done      int  `json:"done"`
	Total     int  `json:"total"`
	Completed bool `json:"completed"`
}

type WeekProgress struct {
	Done  int `json:"done"`
	Total int `json:"total"`
	Pct   int `json:"pct"`
}

// Aggregator rolls per-sub-task completion up into per-day and per-week
// totals. Day totals are cached; the cache is dropped on every local mutation
// and on every change notification coming from another writer, so the values
// are always re-derived from current store state.
type Aggregator struct {
	repo  completionGetter
	cache *freecache.Cache
}

func NewAggregator(repo completionGetter) *Aggregator {
	megabyte := 1024 * 1024
	return &Aggregator{
		repo:  repo,
		cache: freecache.NewCache(megabyte),
	}
}

// Invalidate drops all cached totals. Wired to the change notification
// bridge and called after every local write.
func (a *Aggregator) Invalidate() {
	a.cache.Clear()
}

// DayTotals computes {done, total} for a day, where total counts the warm-up
// items, the single workout item and the cool-down items. A day is completed
// iff total > 0 and done == total.
func (a *Aggregator) DayTotals(ctx context.Context, day plan.PlanDay) (DayProgress, error) {
	cacheKey := []byte(day.Date)
	if cached, err := a.cache.Get(cacheKey); err == nil {
		var progress DayProgress
		if _, err := fmt.Sscanf(string(cached), "%d/%d", &progress.Done, &progress.Total); err == nil {
			progress.Completed = progress.Total > 0 && progress.Done == progress.Total
			return progress, nil
		}
	}

	tasks := plan.DayTasks(day)
	progress := DayProgress{Total: len(tasks)}
	for _, task := range tasks {
		done, err := a.repo.GetSubtask(ctx, day.Date, task.Section, task.Index)
		if err != nil {
			return DayProgress{}, fmt.Errorf("day totals %s: %w", day.Date, err)
		}
		if done {
			progress.Done++
		}
	}
	progress.Completed = progress.Total > 0 && progress.Done == progress.Total

	if err := a.cache.Set(cacheKey, []byte(fmt.Sprintf("%d/%d", progress.Done, progress.Total)), 0); err != nil {
		log.Tracef("cache day totals %s: %s", day.Date, err)
	}

	return progress, nil
}

// WeekTotals sums DayTotals over the days of a week.
func (a *Aggregator) WeekTotals(ctx context.Context, days []plan.PlanDay) (WeekProgress, error) {
	var week WeekProgress
	for _, day := range days {
		progress, err := a.DayTotals(ctx, day)
		if err != nil {
			return WeekProgress{}, err
		}
		week.Done += progress.Done
		week.Total += progress.Total
	}
	week.Pct = RoundPct(week.Done, week.Total)
	return week, nil
}

// RoundPct is the single rounding rule (round half up) used for every
// percentage, so day and week panels can never visibly disagree.
func RoundPct(done, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Floor(float64(done)/float64(total)*100 + 0.5))
}
