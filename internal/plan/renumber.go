package plan

import (
	"fmt"
	"strings"
	"time"
)

// ParseWeekday parses a weekday name ("sunday", "Sun", ...) for the
// week-renumbering configuration.
func ParseWeekday(s string) (time.Weekday, error) {
	for d := time.Sunday; d <= time.Saturday; d++ {
		name := strings.ToLower(d.String())
		lowered := strings.ToLower(s)
		if lowered == name || lowered == name[:3] {
			return d, nil
		}
	}
	return time.Sunday, fmt.Errorf("unknown weekday: %s", s)
}

// RenumberWeeks recomputes week numbers over a date-sorted copy of the plan so
// that each week ends on the given weekday (e.g. time.Sunday) and the next day
// starts a new week. It is an explicitly invoked normalization pass over the
// immutable plan at load time, not a runtime behavior - the input slice is
// left untouched.
//
// Days with unparseable dates keep the week number of the preceding day.
func RenumberWeeks(days []PlanDay, weekEndsOn time.Weekday) []PlanDay {
	renumbered := SortByDate(days)

	week := 1
	var prev *time.Time
	for i := range renumbered {
		dayTime, err := renumbered[i].Time()
		if err != nil {
			renumbered[i].Week = week
			continue
		}
		if prev != nil {
			// every week boundary passed between prev and this day starts a new week
			for t := prev.AddDate(0, 0, 1); !t.After(dayTime); t = t.AddDate(0, 0, 1) {
				if t.Weekday() == nextWeekday(weekEndsOn) {
					week++
				}
			}
		}
		renumbered[i].Week = week
		prev = &dayTime
	}
	return renumbered
}

func nextWeekday(d time.Weekday) time.Weekday {
	return (d + 1) % 7
}
