package plan

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

const DateLayout = "2006-01-02"

// PlanDay is one calendar day of the loaded training plan.
// Days are loaded once, as an immutable ordered sequence, and never mutated;
// the date is the natural key for all persisted checklist state.
type PlanDay struct {
	Week          int     `json:"week"`
	Phase         string  `json:"phase"`
	Date          string  `json:"date"` // ISO YYYY-MM-DD
	Day           string  `json:"day"`
	Workout       string  `json:"workout"`
	Warmup        string  `json:"warmup"`
	Cooldown      string  `json:"cooldown"`
	WeeklyMileage float64 `json:"weeklyMileage,omitempty"`
}

func (d PlanDay) Time() (time.Time, error) {
	return time.Parse(DateLayout, d.Date)
}

type Section string

const (
	SectionWarm    Section = "warm"
	SectionWorkout Section = "workout"
	SectionCool    Section = "cool"
)

func ParseSection(s string) (Section, error) {
	switch Section(s) {
	case SectionWarm, SectionWorkout, SectionCool:
		return Section(s), nil
	}
	return "", fmt.Errorf("unknown section: %s", s)
}

// Task is one checkable item derived from a day's free text. Identity is
// purely positional (section + index within the section's split list), so
// editing the plan text between sessions can misalign previously stored
// completion - a known trade-off carried over from the plan format, which
// has no stable task IDs.
type Task struct {
	Section Section `json:"section"`
	Index   int     `json:"index"`
	Label   string  `json:"label"`
}

// Split breaks a semicolon-delimited free-text list into atomic task labels.
// Surrounding whitespace is trimmed, empty pieces are dropped, order is kept.
func Split(text string) []string {
	if text == "" {
		return nil
	}
	var tasks []string
	for _, piece := range strings.Split(text, ";") {
		piece = strings.TrimSpace(piece)
		if piece == "" {
			continue
		}
		tasks = append(tasks, piece)
	}
	return tasks
}

// DayTasks derives the ordered checkable sub-tasks of a day:
// warm-up items, then the single workout item, then cool-down items.
func DayTasks(day PlanDay) []Task {
	var tasks []Task
	for i, label := range Split(day.Warmup) {
		tasks = append(tasks, Task{Section: SectionWarm, Index: i, Label: label})
	}
	tasks = append(tasks, Task{Section: SectionWorkout, Index: 0, Label: day.Workout})
	for i, label := range Split(day.Cooldown) {
		tasks = append(tasks, Task{Section: SectionCool, Index: i, Label: label})
	}
	return tasks
}

// SortByDate returns a copy of days ordered by date. Load order is normally
// already sorted, but the grouping logic should not depend on that.
func SortByDate(days []PlanDay) []PlanDay {
	sorted := make([]PlanDay, len(days))
	copy(sorted, days)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Date < sorted[j].Date
	})
	return sorted
}
