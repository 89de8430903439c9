package checklist

import (
	"context"
	"errors"
	"fmt"

	"github.com/2beens/trainingplan/internal/plan"
	"github.com/2beens/trainingplan/internal/telemetry/tracing"

	"github.com/go-redis/redis/v8"
)

// Persisted key layout - the durable wire format of the checklist state:
//
//	sub:{date}:{section}:{index} -> "1" / "0"
//	workoutDone:{date}           -> "1" / "0"  (legacy whole-day flag)
//	workoutNote:{date}           -> raw note text, absent key == empty note
//
// All values are plain strings; an absent completion key means "not done".
const (
	doneVal    = "1"
	notDoneVal = "0"
)

func subKey(date string, section plan.Section, index int) string {
	return fmt.Sprintf("sub:%s:%s:%d", date, section, index)
}

func dayDoneKey(date string) string {
	return "workoutDone:" + date
}

func noteKey(date string) string {
	return "workoutNote:" + date
}

type changeNotifier interface {
	NotifyChanged(ctx context.Context)
}

// Repo is the completion store: per-sub-task done flags and per-day notes,
// persisted in redis so the checklist survives restarts and is shared by
// every client surface. Every completed write pings the change notifier.
type Repo struct {
	rdb      *redis.Client
	notifier changeNotifier
}

func NewRepo(rdb *redis.Client, notifier changeNotifier) *Repo {
	return &Repo{
		rdb:      rdb,
		notifier: notifier,
	}
}

// GetSubtask returns false for absent keys - absent means incomplete.
func (r *Repo) GetSubtask(ctx context.Context, date string, section plan.Section, index int) (bool, error) {
	val, err := r.rdb.Get(ctx, subKey(date, section, index)).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get subtask: %w", err)
	}
	return val == doneVal, nil
}

// SetSubtask is an idempotent per-key write.
func (r *Repo) SetSubtask(ctx context.Context, date string, section plan.Section, index int, done bool) error {
	if err := r.rdb.Set(ctx, subKey(date, section, index), boolVal(done), 0).Err(); err != nil {
		return fmt.Errorf("set subtask: %w", err)
	}
	r.notifier.NotifyChanged(ctx)
	return nil
}

// DayDone reads the legacy whole-day completion flag.
func (r *Repo) DayDone(ctx context.Context, date string) (bool, error) {
	val, err := r.rdb.Get(ctx, dayDoneKey(date)).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get day done: %w", err)
	}
	return val == doneVal, nil
}

// SetAllForDay sets every derived sub-task of the day (warm-up items, the
// single workout item, cool-down items) and the legacy day flag to the same
// value. The call returns only after all keys are written, so no partial
// application is observable by a caller afterwards. The underlying medium
// has no cross-key transaction - a concurrent writer racing the same keys
// may still interleave, last write per key wins.
func (r *Repo) SetAllForDay(ctx context.Context, day plan.PlanDay, done bool) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "checklist.setAllForDay")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	if err := r.setAllForDay(ctx, day, done); err != nil {
		return err
	}
	r.notifier.NotifyChanged(ctx)
	return nil
}

func (r *Repo) setAllForDay(ctx context.Context, day plan.PlanDay, done bool) error {
	for _, task := range plan.DayTasks(day) {
		if err := r.rdb.Set(ctx, subKey(day.Date, task.Section, task.Index), boolVal(done), 0).Err(); err != nil {
			return fmt.Errorf("set all for day %s: %w", day.Date, err)
		}
	}
	if err := r.rdb.Set(ctx, dayDoneKey(day.Date), boolVal(done), 0).Err(); err != nil {
		return fmt.Errorf("set day done %s: %w", day.Date, err)
	}
	return nil
}

// ClearWeek resets every day of the week, equivalent to SetAllForDay(day,
// false) for each of them. Callers are expected to have gotten an explicit
// user confirmation beforehand.
func (r *Repo) ClearWeek(ctx context.Context, days []plan.PlanDay) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "checklist.clearWeek")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	for _, day := range days {
		if err := r.setAllForDay(ctx, day, false); err != nil {
			return fmt.Errorf("clear week: %w", err)
		}
	}
	r.notifier.NotifyChanged(ctx)
	return nil
}

// GetNote returns the free-text note of a date, empty string for absent.
func (r *Repo) GetNote(ctx context.Context, date string) (string, error) {
	val, err := r.rdb.Get(ctx, noteKey(date)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get note: %w", err)
	}
	return val, nil
}

// SetNote persists the note text; an empty string removes the record
// entirely to keep the storage sparse.
func (r *Repo) SetNote(ctx context.Context, date, text string) error {
	if text == "" {
		if err := r.rdb.Del(ctx, noteKey(date)).Err(); err != nil {
			return fmt.Errorf("delete note: %w", err)
		}
	} else {
		if err := r.rdb.Set(ctx, noteKey(date), text, 0).Err(); err != nil {
			return fmt.Errorf("set note: %w", err)
		}
	}
	r.notifier.NotifyChanged(ctx)
	return nil
}

func boolVal(b bool) string {
	if b {
		return doneVal
	}
	return notDoneVal
}
