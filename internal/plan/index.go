package plan

import (
	"sort"
	"time"
)

// TodayPolicy controls what ResolveToday does when no plan day matches
// today's date exactly.
type TodayPolicy string

const (
	// TodayPolicyNone leaves the today panel empty on no exact match.
	TodayPolicyNone TodayPolicy = "none"
	// TodayPolicyNearest falls back to the day closest to today.
	TodayPolicyNearest TodayPolicy = "nearest"
)

// Selection is the active (week, date) pair of a client view. The two always
// move together - a week change that leaves the previously selected date
// outside the new week group must not leave a stale selection behind.
type Selection struct {
	Week int    `json:"week"`
	Date string `json:"date"`
}

// Index groups the immutable plan by week and answers week / today / nearest
// date lookups. Built once after the plan is loaded.
type Index struct {
	days     []PlanDay
	byWeek   map[int][]PlanDay
	weekNums []int
}

func NewIndex(days []PlanDay) *Index {
	idx := &Index{
		days:   days,
		byWeek: GroupByWeek(days),
	}
	idx.weekNums = WeekNumbers(idx.byWeek)
	return idx
}

// GroupByWeek maps week number to the days of that week,
// preserving input relative order within a week.
func GroupByWeek(days []PlanDay) map[int][]PlanDay {
	byWeek := make(map[int][]PlanDay)
	for _, d := range days {
		byWeek[d.Week] = append(byWeek[d.Week], d)
	}
	return byWeek
}

// WeekNumbers returns the distinct week numbers in ascending order.
func WeekNumbers(byWeek map[int][]PlanDay) []int {
	weekNums := make([]int, 0, len(byWeek))
	for w := range byWeek {
		weekNums = append(weekNums, w)
	}
	sort.Ints(weekNums)
	return weekNums
}

func (idx *Index) Days() []PlanDay {
	return idx.days
}

func (idx *Index) Weeks() []int {
	return idx.weekNums
}

// Week returns the days of the given week, in plan order.
func (idx *Index) Week(week int) []PlanDay {
	return idx.byWeek[week]
}

// DayByDate returns the plan day with the given date, nil when absent.
func (idx *Index) DayByDate(date string) *PlanDay {
	for i := range idx.days {
		if idx.days[i].Date == date {
			day := idx.days[i]
			return &day
		}
	}
	return nil
}

// ResolveToday finds the plan day for todayISO. With TodayPolicyNearest the
// closest day by date is returned when there is no exact match; with
// TodayPolicyNone nil is returned instead.
func (idx *Index) ResolveToday(todayISO string, policy TodayPolicy) *PlanDay {
	for i := range idx.days {
		if idx.days[i].Date == todayISO {
			day := idx.days[i]
			return &day
		}
	}
	if policy != TodayPolicyNearest {
		return nil
	}
	target, err := time.Parse(DateLayout, todayISO)
	if err != nil {
		return nil
	}
	return idx.ClosestByDate(target)
}

// ClosestByDate scans the plan for the day minimizing the absolute elapsed
// time to target. The first encountered minimum wins ties, so the result is
// stable and deterministic in plan order.
func (idx *Index) ClosestByDate(target time.Time) *PlanDay {
	var best *PlanDay
	var bestDiff time.Duration
	for i := range idx.days {
		dayTime, err := idx.days[i].Time()
		if err != nil {
			continue
		}
		diff := dayTime.Sub(target)
		if diff < 0 {
			diff = -diff
		}
		if best == nil || diff < bestDiff {
			day := idx.days[i]
			best = &day
			bestDiff = diff
		}
	}
	return best
}

// SelectWeek switches the active week. If the previously selected date is not
// a member of the new week group, the selection falls back to the first day of
// the group (or an empty date for an empty group), so a stale selection can
// never surface.
func (idx *Index) SelectWeek(current Selection, week int) Selection {
	group := idx.byWeek[week]
	for _, d := range group {
		if d.Date == current.Date {
			return Selection{Week: week, Date: current.Date}
		}
	}
	if len(group) == 0 {
		return Selection{Week: week}
	}
	return Selection{Week: week, Date: group[0].Date}
}

// SelectToday jumps the selection to today, changing week and date together.
func (idx *Index) SelectToday(todayISO string, policy TodayPolicy) Selection {
	day := idx.ResolveToday(todayISO, policy)
	if day == nil {
		return Selection{}
	}
	return Selection{Week: day.Week, Date: day.Date}
}
