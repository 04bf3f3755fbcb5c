package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRoutine_Validation(t *testing.T) {
	start := date(2026, time.September, 1)

	_, err := NewRoutine("u1", "", "", 0, "1D", start, 30)
	assert.ErrorIs(t, err, ErrEmptyName)

	_, err = NewRoutine("u1", "Gym", "", 0, "nope", start, 30)
	assert.ErrorIs(t, err, ErrInvalidPattern)

	_, err = NewRoutine("u1", "Gym", "", 0, "1D", start, 0)
	assert.ErrorIs(t, err, ErrInvalidDuration)

	r, err := NewRoutine("u1", "Gym", "leg day", 2, "1W:1,3", start, 45)
	require.NoError(t, err)
	assert.Equal(t, "u1", r.UserID())
	assert.Equal(t, 45, r.DurationMinutes())
	assert.Nil(t, r.Next())
}

func TestRoutine_Bootstrap(t *testing.T) {
	start := date(2026, time.September, 1)
	r, err := NewRoutine("u1", "Gym", "", 0, "1D", start, 30)
	require.NoError(t, err)

	assert.True(t, r.Bootstrap())
	require.NotNil(t, r.Next())
	assert.Equal(t, start, *r.Next())

	// Second bootstrap leaves the cursor alone.
	r.AdvanceCursor(date(2026, time.September, 5))
	assert.False(t, r.Bootstrap())
	assert.Equal(t, date(2026, time.September, 5), *r.Next())
}

func TestRoutine_SetTimeOfDay_TruncatesToMinute(t *testing.T) {
	r, err := NewRoutine("u1", "Gym", "", 0, "1D", date(2026, time.September, 1), 30)
	require.NoError(t, err)

	r.SetTimeOfDay(int64(9*3600000 + 15*60000 + 59999))
	require.NotNil(t, r.TimeOfDayMillis())
	assert.Equal(t, int64(9*3600000+15*60000), *r.TimeOfDayMillis())
}

func TestRoutine_Ended(t *testing.T) {
	r, err := NewRoutine("u1", "Gym", "", 0, "1D", date(2026, time.September, 1), 30)
	require.NoError(t, err)

	assert.False(t, r.Ended(date(2026, time.December, 31)))

	r.SetEnd(date(2026, time.September, 10))
	assert.False(t, r.Ended(date(2026, time.September, 10)))
	assert.True(t, r.Ended(date(2026, time.September, 11)))
}

func TestEvent_Exportable(t *testing.T) {
	r, err := NewRoutine("u1", "Gym", "", 1, "1D", date(2026, time.September, 1), 30)
	require.NoError(t, err)

	e := NewEventFromRoutine(r, date(2026, time.September, 2), "batch-1")
	assert.True(t, e.Exportable())
	assert.Equal(t, "Gym", e.Name())
	assert.Equal(t, 1, e.Priority())
	require.NotNil(t, e.ParentID())
	assert.Equal(t, r.ID(), *e.ParentID())

	e.SoftDelete()
	assert.False(t, e.Exportable())

	imported := NewImportedEvent("u1", "Standup", "", date(2026, time.September, 2), 15, "rem-1", "cal-1")
	assert.False(t, imported.Exportable())
	assert.True(t, imported.Imported())
}
