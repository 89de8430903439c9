package plan

import (
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPlanDays() []PlanDay {
	newDay := func(week int, date string) PlanDay {
		return PlanDay{
			Week:     week,
			Date:     date,
			Day:      gofakeit.WeekDay(),
			Phase:    gofakeit.HipsterWord(),
			Workout:  gofakeit.Sentence(3),
			Warmup:   "Dynamic warmup",
			Cooldown: "Stretch",
		}
	}
	return []PlanDay{
		newDay(1, "2025-08-12"),
		newDay(1, "2025-08-13"),
		newDay(2, "2025-08-19"),
	}
}

func TestIndex_GroupByWeek(t *testing.T) {
	idx := NewIndex(testPlanDays())

	assert.Equal(t, []int{1, 2}, idx.Weeks())

	week1 := idx.Week(1)
	require.Len(t, week1, 2)
	// relative order within a week preserved
	assert.Equal(t, "2025-08-12", week1[0].Date)
	assert.Equal(t, "2025-08-13", week1[1].Date)

	require.Len(t, idx.Week(2), 1)
	assert.Empty(t, idx.Week(42))
}

func TestIndex_DayByDate(t *testing.T) {
	idx := NewIndex(testPlanDays())

	day := idx.DayByDate("2025-08-19")
	require.NotNil(t, day)
	assert.Equal(t, 2, day.Week)

	assert.Nil(t, idx.DayByDate("2030-01-01"))
}

func TestIndex_ResolveToday(t *testing.T) {
	idx := NewIndex(testPlanDays())

	day := idx.ResolveToday("2025-08-13", TodayPolicyNone)
	require.NotNil(t, day)
	assert.Equal(t, "2025-08-13", day.Date)

	// no exact match, policy none -> empty today panel
	assert.Nil(t, idx.ResolveToday("2025-08-15", TodayPolicyNone))

	// no exact match, policy nearest -> closest day
	day = idx.ResolveToday("2025-08-15", TodayPolicyNearest)
	require.NotNil(t, day)
	assert.Equal(t, "2025-08-13", day.Date)
}

func TestIndex_ClosestByDate_TieBreak(t *testing.T) {
	idx := NewIndex([]PlanDay{
		{Week: 1, Date: "2025-08-12"},
		{Week: 1, Date: "2025-08-14"},
	})

	// equidistant from both days - the earlier one in the input sequence wins
	target, err := time.Parse(DateLayout, "2025-08-13")
	require.NoError(t, err)

	day := idx.ClosestByDate(target)
	require.NotNil(t, day)
	assert.Equal(t, "2025-08-12", day.Date)
}

func TestIndex_SelectWeek_Consistency(t *testing.T) {
	// weeks {1: [d1, d2], 2: [d3]}
	idx := NewIndex(testPlanDays())

	current := Selection{Week: 1, Date: "2025-08-12"}

	// switching to week 2 must never keep d1 selected
	selection := idx.SelectWeek(current, 2)
	assert.Equal(t, Selection{Week: 2, Date: "2025-08-19"}, selection)

	// switching back keeps the first day of week 1
	selection = idx.SelectWeek(selection, 1)
	assert.Equal(t, Selection{Week: 1, Date: "2025-08-12"}, selection)

	// selected date member of the new week group -> selection kept
	current = Selection{Week: 1, Date: "2025-08-13"}
	selection = idx.SelectWeek(current, 1)
	assert.Equal(t, current, selection)

	// empty week group -> empty date, never a stale one
	selection = idx.SelectWeek(current, 42)
	assert.Equal(t, Selection{Week: 42}, selection)
}

func TestIndex_SelectToday(t *testing.T) {
	idx := NewIndex(testPlanDays())

	// week and date change together
	selection := idx.SelectToday("2025-08-19", TodayPolicyNone)
	assert.Equal(t, Selection{Week: 2, Date: "2025-08-19"}, selection)

	selection = idx.SelectToday("2025-08-20", TodayPolicyNearest)
	assert.Equal(t, Selection{Week: 2, Date: "2025-08-19"}, selection)

	assert.Equal(t, Selection{}, idx.SelectToday("2030-01-01", TodayPolicyNone))
}
