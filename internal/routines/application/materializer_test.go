package application

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goalpost-app/goalpost/internal/routines/domain"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

type fixture struct {
	routines     *fakeRoutineRepo
	events       *fakeEventRepo
	skips        *fakeSkipRepo
	materializer *Materializer
}

func newFixture(routines ...*domain.Routine) *fixture {
	f := &fixture{
		routines: newFakeRoutineRepo(routines...),
		events:   newFakeEventRepo(),
		skips:    newFakeSkipRepo(),
	}
	f.materializer = NewMaterializer(f.routines, f.events, f.skips, nil)
	return f
}

func mustRoutine(t *testing.T, userID, name, frequency string, start time.Time, duration int) *domain.Routine {
	t.Helper()
	r, err := domain.NewRoutine(userID, name, "desc", 2, frequency, start, duration)
	require.NoError(t, err)
	return r
}

func TestMaterialize_DailyCreatesOnePerDay(t *testing.T) {
	start := date(2026, time.September, 1)
	routine := mustRoutine(t, "u1", "Gym", "1D", start, 45)
	f := newFixture(routine)

	res, err := f.materializer.Materialize(context.Background(), routine, start.AddDate(0, 0, 10))
	require.NoError(t, err)
	assert.Equal(t, 11, res.Created)

	created := f.events.live(routine.ID())
	require.Len(t, created, 11)
	for _, e := range created {
		assert.Equal(t, "Gym", e.Name())
		assert.Equal(t, "desc", e.Description())
		assert.Equal(t, 2, e.Priority())
		assert.Equal(t, 45, e.DurationMinutes())
		assert.Equal(t, res.BatchID, e.BatchID())
	}
}

func TestMaterialize_WeekdayRestriction(t *testing.T) {
	// 2026-09-01 is a Tuesday.
	start := date(2026, time.September, 1)
	routine := mustRoutine(t, "u1", "Standup", "1W:1,3", start, 15)
	f := newFixture(routine)

	_, err := f.materializer.Materialize(context.Background(), routine, start.AddDate(0, 0, 28))
	require.NoError(t, err)

	seen := make(map[int64]bool)
	for _, e := range f.events.live(routine.ID()) {
		scheduled := *e.Scheduled()
		wd := scheduled.Weekday()
		assert.True(t, wd == time.Monday || wd == time.Wednesday, "unexpected weekday %v", wd)
		assert.False(t, seen[scheduled.Unix()], "duplicate timestamp %v", scheduled)
		seen[scheduled.Unix()] = true
	}
	assert.NotEmpty(t, seen)
}

func TestMaterialize_Idempotent(t *testing.T) {
	start := date(2026, time.September, 1)
	routine := mustRoutine(t, "u1", "Gym", "1D", start, 30)
	f := newFixture(routine)
	until := start.AddDate(0, 0, 7)

	res1, err := f.materializer.Materialize(context.Background(), routine, until)
	require.NoError(t, err)
	assert.Equal(t, 8, res1.Created)

	// Second run over the same window: the cursor is already past it.
	res2, err := f.materializer.Materialize(context.Background(), routine, until)
	require.NoError(t, err)
	assert.Zero(t, res2.Created)

	// Even with the cursor rewound the dedup check holds.
	routine.AdvanceCursor(start)
	res3, err := f.materializer.Materialize(context.Background(), routine, until)
	require.NoError(t, err)
	assert.Zero(t, res3.Created)
	assert.Len(t, f.events.live(routine.ID()), 8)
}

func TestMaterialize_AppliesTimeOfDay(t *testing.T) {
	start := date(2026, time.September, 1)
	routine := mustRoutine(t, "u1", "Gym", "1D", start, 30)
	routine.SetTimeOfDay(int64(7*3600000 + 30*60000))
	f := newFixture(routine)

	_, err := f.materializer.Materialize(context.Background(), routine, start.AddDate(0, 0, 2))
	require.NoError(t, err)

	for _, e := range f.events.live(routine.ID()) {
		scheduled := *e.Scheduled()
		assert.Equal(t, 7, scheduled.Hour())
		assert.Equal(t, 30, scheduled.Minute())
	}
}

func TestMaterialize_StopsAtRoutineEnd(t *testing.T) {
	start := date(2026, time.September, 1)
	routine := mustRoutine(t, "u1", "Gym", "1D", start, 30)
	routine.SetEnd(date(2026, time.September, 3))
	f := newFixture(routine)

	res, err := f.materializer.Materialize(context.Background(), routine, start.AddDate(0, 0, 30))
	require.NoError(t, err)
	assert.Equal(t, 3, res.Created)
}

func TestMaterialize_SkipExceptionSuppresses(t *testing.T) {
	start := date(2026, time.September, 1)
	routine := mustRoutine(t, "u1", "Gym", "1D", start, 30)
	f := newFixture(routine)

	skippedAt := date(2026, time.September, 3)
	require.NoError(t, f.skips.Create(context.Background(),
		domain.NewSkipException(routine.ID(), "u1", skippedAt)))

	res, err := f.materializer.Materialize(context.Background(), routine, start.AddDate(0, 0, 4))
	require.NoError(t, err)
	assert.Equal(t, 4, res.Created)

	for _, e := range f.events.live(routine.ID()) {
		assert.False(t, e.Scheduled().Equal(skippedAt))
	}
}

func TestRecomputeFuture_SkipSurvives(t *testing.T) {
	start := date(2026, time.September, 1)
	routine := mustRoutine(t, "u1", "Gym", "1D", start, 30)
	routine.SetEnd(date(2026, time.September, 6))
	f := newFixture(routine)
	ctx := context.Background()

	_, err := f.materializer.Materialize(ctx, routine, start.AddDate(0, 0, 5))
	require.NoError(t, err)
	require.Len(t, f.events.live(routine.ID()), 6)

	handler := NewRecomputeFutureHandler(f.routines, f.events, f.skips, f.materializer, nil)
	handler.now = func() time.Time { return start }

	from := date(2026, time.September, 3)
	res, err := handler.Handle(ctx, routine.ID(), &from)
	require.NoError(t, err)
	assert.Equal(t, 4, res.Deleted)

	// Every vacated slot got a skip exception, so nothing came back.
	assert.Zero(t, res.Created)
	assert.Len(t, f.events.live(routine.ID()), 2)

	// A later materialization pass over the window stays empty too.
	routine.AdvanceCursor(from)
	res2, err := f.materializer.Materialize(ctx, routine, start.AddDate(0, 0, 5))
	require.NoError(t, err)
	assert.Zero(t, res2.Created)
}

func TestCatchUp_RunForUser(t *testing.T) {
	start := date(2026, time.September, 1)
	r1 := mustRoutine(t, "u1", "Gym", "1D", start, 30)
	r2 := mustRoutine(t, "u1", "Review", "1W", start, 60)
	other := mustRoutine(t, "u2", "Walk", "1D", start, 20)
	f := newFixture(r1, r2, other)

	handler := NewCatchUpHandler(f.routines, f.materializer, nil)
	res, err := handler.RunForUser(context.Background(), "u1", start.AddDate(0, 0, 7))
	require.NoError(t, err)

	assert.Equal(t, 2, res.Routines)
	assert.Equal(t, 8+2, res.Created)
	assert.Empty(t, f.events.live(other.ID()))
}

func TestScheduledGeneration_CapsAtRoutineEnd(t *testing.T) {
	start := date(2026, time.September, 1)
	routine := mustRoutine(t, "u1", "Gym", "1D", start, 30)
	routine.SetEnd(start.AddDate(0, 0, 2))
	f := newFixture(routine)

	handler := NewScheduledGenerationHandler(f.routines, f.materializer, nil)
	handler.now = func() time.Time { return start }

	res, err := handler.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Routines)
	assert.Equal(t, 3, res.Created)
}

func TestRescheduleBatch_MovesFutureEvents(t *testing.T) {
	start := date(2026, time.September, 1)
	routine := mustRoutine(t, "u1", "Gym", "1D", start, 30)
	f := newFixture(routine)
	ctx := context.Background()

	_, err := f.materializer.Materialize(ctx, routine, start.AddDate(0, 0, 4))
	require.NoError(t, err)

	handler := NewRescheduleBatchHandler(f.routines, f.events, f.skips, nil)
	handler.now = func() time.Time { return start }

	moved, err := handler.Handle(ctx, routine.ID(), ScopeFuture, "", int64(18*3600000))
	require.NoError(t, err)
	assert.Equal(t, 5, moved)

	for _, e := range f.events.live(routine.ID()) {
		assert.Equal(t, 18, e.Scheduled().Hour())
	}

	// Vacated midnight slots are suppressed for the generator.
	skips, err := f.skips.ListRange(ctx, routine.ID(), start, start.AddDate(0, 0, 5))
	require.NoError(t, err)
	assert.Len(t, skips, 5)
}
