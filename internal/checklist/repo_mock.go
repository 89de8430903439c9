package checklist

import (
	"context"
	"sync"

	"github.com/2beens/trainingplan/internal/plan"
)

// repoMock is an in-memory double of Repo, sharing its key layout so tests
// can assert the exact persisted state.
type repoMock struct {
	mutex         sync.Mutex
	store         map[string]string
	notifications int
	returnedErr   error
}

func newRepoMock() *repoMock {
	return &repoMock{
		store: make(map[string]string),
	}
}

func (r *repoMock) GetSubtask(_ context.Context, date string, section plan.Section, index int) (bool, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if r.returnedErr != nil {
		return false, r.returnedErr
	}
	return r.store[subKey(date, section, index)] == doneVal, nil
}

func (r *repoMock) SetSubtask(_ context.Context, date string, section plan.Section, index int, done bool) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if r.returnedErr != nil {
		return r.returnedErr
	}
	r.store[subKey(date, section, index)] = boolVal(done)
	r.notifications++
	return nil
}

func (r *repoMock) DayDone(_ context.Context, date string) (bool, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if r.returnedErr != nil {
		return false, r.returnedErr
	}
	return r.store[dayDoneKey(date)] == doneVal, nil
}

func (r *repoMock) SetAllForDay(_ context.Context, day plan.PlanDay, done bool) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if r.returnedErr != nil {
		return r.returnedErr
	}
	r.setAllForDay(day, done)
	r.notifications++
	return nil
}

func (r *repoMock) ClearWeek(_ context.Context, days []plan.PlanDay) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if r.returnedErr != nil {
		return r.returnedErr
	}
	for _, day := range days {
		r.setAllForDay(day, false)
	}
	r.notifications++
	return nil
}

func (r *repoMock) setAllForDay(day plan.PlanDay, done bool) {
	for _, task := range plan.DayTasks(day) {
		r.store[subKey(day.Date, task.Section, task.Index)] = boolVal(done)
	}
	r.store[dayDoneKey(day.Date)] = boolVal(done)
}

func (r *repoMock) GetNote(_ context.Context, date string) (string, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if r.returnedErr != nil {
		return "", r.returnedErr
	}
	return r.store[noteKey(date)], nil
}

func (r *repoMock) SetNote(_ context.Context, date, text string) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if r.returnedErr != nil {
		return r.returnedErr
	}
	if text == "" {
		delete(r.store, noteKey(date))
	} else {
		r.store[noteKey(date)] = text
	}
	r.notifications++
	return nil
}

func (r *repoMock) notificationsCount() int {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return r.notifications
}

func (r *repoMock) noteWrites() map[string]string {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	notes := make(map[string]string)
	for key, val := range r.store {
		if len(key) > len("workoutNote:") && key[:len("workoutNote:")] == "workoutNote:" {
			notes[key[len("workoutNote:"):]] = val
		}
	}
	return notes
}
