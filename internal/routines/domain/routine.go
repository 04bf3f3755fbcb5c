// Package domain holds the routine scheduling model: recurrence patterns,
// routines, materialized events, and skip exceptions.
package domain

import (
	"time"

	"github.com/google/uuid"

	shareddomain "github.com/goalpost-app/goalpost/internal/shared/domain"
)

var (
	ErrInvalidPattern  = shareddomain.NewValidationError("frequency", "invalid pattern")
	ErrEmptyName       = shareddomain.NewValidationError("name", "cannot be empty")
	ErrInvalidDuration = shareddomain.NewValidationError("duration_minutes", "must be positive")
	ErrRoutineNotFound = shareddomain.NewNotFoundError("routine")
	ErrEventNotFound   = shareddomain.NewNotFoundError("event")
)

// Routine is a recurring obligation. Its cursor (`next`) marks the first
// occurrence not yet materialized; nil means materialization has not started.
type Routine struct {
	shareddomain.BaseEntity
	userID          string
	name            string
	description     string
	priority        int
	frequency       Pattern
	start           time.Time
	end             *time.Time
	timeOfDayMillis *int64
	durationMinutes int
	next            *time.Time
}

// NewRoutine creates a routine, validating name, pattern, and duration.
func NewRoutine(userID, name, description string, priority int, frequency string, start time.Time, durationMinutes int) (*Routine, error) {
	if name == "" {
		return nil, ErrEmptyName
	}
	pattern, err := ParsePattern(frequency)
	if err != nil {
		return nil, err
	}
	if durationMinutes <= 0 {
		return nil, ErrInvalidDuration
	}
	return &Routine{
		BaseEntity:      shareddomain.NewBaseEntity(),
		userID:          userID,
		name:            name,
		description:     description,
		priority:        priority,
		frequency:       pattern,
		start:           start.UTC(),
		durationMinutes: durationMinutes,
	}, nil
}

// RehydrateRoutine recreates a routine from persisted state. The stored
// frequency string is evaluated leniently; malformed values degrade to daily.
func RehydrateRoutine(
	id uuid.UUID,
	userID, name, description string,
	priority int,
	frequency string,
	start time.Time,
	end *time.Time,
	timeOfDayMillis *int64,
	durationMinutes int,
	next *time.Time,
	createdAt, updatedAt time.Time,
) *Routine {
	return &Routine{
		BaseEntity:      shareddomain.RehydrateBaseEntity(id, createdAt, updatedAt),
		userID:          userID,
		name:            name,
		description:     description,
		priority:        priority,
		frequency:       PatternOrDaily(frequency),
		start:           start,
		end:             end,
		timeOfDayMillis: timeOfDayMillis,
		durationMinutes: durationMinutes,
		next:            next,
	}
}

func (r *Routine) UserID() string          { return r.userID }
func (r *Routine) Name() string            { return r.name }
func (r *Routine) Description() string     { return r.description }
func (r *Routine) Priority() int           { return r.priority }
func (r *Routine) Frequency() Pattern      { return r.frequency }
func (r *Routine) Start() time.Time        { return r.start }
func (r *Routine) End() *time.Time         { return r.end }
func (r *Routine) TimeOfDayMillis() *int64 { return r.timeOfDayMillis }
func (r *Routine) DurationMinutes() int    { return r.durationMinutes }
func (r *Routine) Next() *time.Time        { return r.next }

// SetEnd caps the routine at t. Occurrences after t are never materialized.
func (r *Routine) SetEnd(t time.Time) {
	u := t.UTC()
	r.end = &u
	r.Touch()
}

// SetTimeOfDay stores a milliseconds-since-midnight offset, truncated to
// whole minutes.
func (r *Routine) SetTimeOfDay(offsetMillis int64) {
	m := (offsetMillis % dayMillis) / 60000 * 60000
	r.timeOfDayMillis = &m
	r.Touch()
}

// Bootstrap initializes a nil cursor to the routine start. A routine with a
// cursor is left alone.
func (r *Routine) Bootstrap() bool {
	if r.next != nil {
		return false
	}
	s := r.start
	r.next = &s
	r.Touch()
	return true
}

// AdvanceCursor moves the materialization cursor. Only the materializer
// calls this.
func (r *Routine) AdvanceCursor(t time.Time) {
	u := t.UTC()
	r.next = &u
	r.Touch()
}

// CursorOrStart returns the materialization starting point.
func (r *Routine) CursorOrStart() time.Time {
	if r.next != nil {
		return *r.next
	}
	return r.start
}

// Ended reports whether t falls past the routine's end date.
func (r *Routine) Ended(t time.Time) bool {
	return r.end != nil && t.After(*r.end)
}
