package plan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplit(t *testing.T) {
	testCases := []struct {
		name string
		text string
		want []string
	}{
		{
			name: "empty",
			text: "",
			want: nil,
		},
		{
			name: "single",
			text: "Dynamic warmup",
			want: []string{"Dynamic warmup"},
		},
		{
			name: "whitespace and blanks removed, order preserved",
			text: " A ; B;; C ",
			want: []string{"A", "B", "C"},
		},
		{
			name: "only separators",
			text: " ; ;; ",
			want: nil,
		},
		{
			name: "trailing separator",
			text: "Leg swings; Hip circles;",
			want: []string{"Leg swings", "Hip circles"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Split(tc.text))
		})
	}
}

func TestDayTasks(t *testing.T) {
	day := PlanDay{
		Date:     "2025-08-12",
		Workout:  "Run",
		Warmup:   "A;B",
		Cooldown: "C",
	}

	tasks := DayTasks(day)
	require.Len(t, tasks, 4)

	assert.Equal(t, Task{Section: SectionWarm, Index: 0, Label: "A"}, tasks[0])
	assert.Equal(t, Task{Section: SectionWarm, Index: 1, Label: "B"}, tasks[1])
	assert.Equal(t, Task{Section: SectionWorkout, Index: 0, Label: "Run"}, tasks[2])
	assert.Equal(t, Task{Section: SectionCool, Index: 0, Label: "C"}, tasks[3])
}

func TestDayTasks_EmptyTexts(t *testing.T) {
	// the single workout item is always there, even with empty texts
	tasks := DayTasks(PlanDay{Date: "2025-08-12"})
	require.Len(t, tasks, 1)
	assert.Equal(t, SectionWorkout, tasks[0].Section)
	assert.Equal(t, 0, tasks[0].Index)
}

func TestParseSection(t *testing.T) {
	for _, valid := range []string{"warm", "workout", "cool"} {
		section, err := ParseSection(valid)
		require.NoError(t, err)
		assert.Equal(t, Section(valid), section)
	}

	_, err := ParseSection("warmup")
	require.Error(t, err)
	_, err = ParseSection("")
	require.Error(t, err)
}

func TestSortByDate(t *testing.T) {
	days := []PlanDay{
		{Date: "2025-08-14"},
		{Date: "2025-08-12"},
		{Date: "2025-08-13"},
	}

	sorted := SortByDate(days)
	require.Len(t, sorted, 3)
	assert.Equal(t, "2025-08-12", sorted[0].Date)
	assert.Equal(t, "2025-08-13", sorted[1].Date)
	assert.Equal(t, "2025-08-14", sorted[2].Date)

	// input untouched
	assert.Equal(t, "2025-08-14", days[0].Date)
}
