package checklist

import (
	"context"
	"errors"
	"testing"

	"github.com/2beens/trainingplan/internal/plan"

	"github.com/go-redis/redismock/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type notifierStub struct {
	calls int
}

func (n *notifierStub) NotifyChanged(_ context.Context) {
	n.calls++
}

func TestRepo_GetSubtask(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	repo := NewRepo(rdb, &notifierStub{})
	ctx := context.Background()

	// absent key means incomplete, not an error
	mock.ExpectGet("sub:2025-08-12:warm:0").RedisNil()
	done, err := repo.GetSubtask(ctx, "2025-08-12", plan.SectionWarm, 0)
	require.NoError(t, err)
	assert.False(t, done)

	mock.ExpectGet("sub:2025-08-12:workout:0").SetVal("1")
	done, err = repo.GetSubtask(ctx, "2025-08-12", plan.SectionWorkout, 0)
	require.NoError(t, err)
	assert.True(t, done)

	mock.ExpectGet("sub:2025-08-12:cool:1").SetVal("0")
	done, err = repo.GetSubtask(ctx, "2025-08-12", plan.SectionCool, 1)
	require.NoError(t, err)
	assert.False(t, done)

	mock.ExpectGet("sub:2025-08-12:warm:2").SetErr(errors.New("connection lost"))
	_, err = repo.GetSubtask(ctx, "2025-08-12", plan.SectionWarm, 2)
	require.Error(t, err)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRepo_SetSubtask(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	notifier := &notifierStub{}
	repo := NewRepo(rdb, notifier)
	ctx := context.Background()

	mock.ExpectSet("sub:2025-08-12:warm:1", "1", 0).SetVal("OK")
	require.NoError(t, repo.SetSubtask(ctx, "2025-08-12", plan.SectionWarm, 1, true))

	mock.ExpectSet("sub:2025-08-12:warm:1", "0", 0).SetVal("OK")
	require.NoError(t, repo.SetSubtask(ctx, "2025-08-12", plan.SectionWarm, 1, false))

	assert.Equal(t, 2, notifier.calls)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRepo_DayDone(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	repo := NewRepo(rdb, &notifierStub{})
	ctx := context.Background()

	mock.ExpectGet("workoutDone:2025-08-12").RedisNil()
	done, err := repo.DayDone(ctx, "2025-08-12")
	require.NoError(t, err)
	assert.False(t, done)

	mock.ExpectGet("workoutDone:2025-08-12").SetVal("1")
	done, err = repo.DayDone(ctx, "2025-08-12")
	require.NoError(t, err)
	assert.True(t, done)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRepo_SetAllForDay(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	notifier := &notifierStub{}
	repo := NewRepo(rdb, notifier)

	day := plan.PlanDay{
		Date:     "2025-08-12",
		Workout:  "Run 5k",
		Warmup:   "Leg swings;Hip circles",
		Cooldown: "Stretch",
	}

	// every derived sub-task plus the legacy day flag, then one notification
	mock.ExpectSet("sub:2025-08-12:warm:0", "1", 0).SetVal("OK")
	mock.ExpectSet("sub:2025-08-12:warm:1", "1", 0).SetVal("OK")
	mock.ExpectSet("sub:2025-08-12:workout:0", "1", 0).SetVal("OK")
	mock.ExpectSet("sub:2025-08-12:cool:0", "1", 0).SetVal("OK")
	mock.ExpectSet("workoutDone:2025-08-12", "1", 0).SetVal("OK")

	require.NoError(t, repo.SetAllForDay(context.Background(), day, true))
	assert.Equal(t, 1, notifier.calls)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRepo_ClearWeek(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	notifier := &notifierStub{}
	repo := NewRepo(rdb, notifier)

	days := []plan.PlanDay{
		{Date: "2025-08-12", Workout: "Run"},
		{Date: "2025-08-13", Workout: "Bike"},
	}

	mock.ExpectSet("sub:2025-08-12:workout:0", "0", 0).SetVal("OK")
	mock.ExpectSet("workoutDone:2025-08-12", "0", 0).SetVal("OK")
	mock.ExpectSet("sub:2025-08-13:workout:0", "0", 0).SetVal("OK")
	mock.ExpectSet("workoutDone:2025-08-13", "0", 0).SetVal("OK")

	require.NoError(t, repo.ClearWeek(context.Background(), days))
	// the whole reset produces a single notification
	assert.Equal(t, 1, notifier.calls)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRepo_Notes(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	notifier := &notifierStub{}
	repo := NewRepo(rdb, notifier)
	ctx := context.Background()

	mock.ExpectGet("workoutNote:2025-08-12").RedisNil()
	note, err := repo.GetNote(ctx, "2025-08-12")
	require.NoError(t, err)
	assert.Empty(t, note)

	mock.ExpectSet("workoutNote:2025-08-12", "felt strong", 0).SetVal("OK")
	require.NoError(t, repo.SetNote(ctx, "2025-08-12", "felt strong"))

	mock.ExpectGet("workoutNote:2025-08-12").SetVal("felt strong")
	note, err = repo.GetNote(ctx, "2025-08-12")
	require.NoError(t, err)
	assert.Equal(t, "felt strong", note)

	// empty text removes the record instead of storing ""
	mock.ExpectDel("workoutNote:2025-08-12").SetVal(1)
	require.NoError(t, repo.SetNote(ctx, "2025-08-12", ""))

	assert.Equal(t, 2, notifier.calls)
	require.NoError(t, mock.ExpectationsWereMet())
}
