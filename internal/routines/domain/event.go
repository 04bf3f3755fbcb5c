package domain

import (
	"time"

	"github.com/google/uuid"

	shareddomain "github.com/goalpost-app/goalpost/internal/shared/domain"
)

// ParentType identifies what an event was generated from.
type ParentType string

const (
	ParentRoutine ParentType = "routine"
	ParentTask    ParentType = "task"
)

// SyncDirection controls which way an event flows during calendar sync.
type SyncDirection string

const (
	SyncToRemote      SyncDirection = "to_remote"
	SyncFromRemote    SyncDirection = "from_remote"
	SyncBidirectional SyncDirection = "bidirectional"
)

// Event is a concrete occurrence. Events are soft-deleted so that an
// already-exported copy can still be reconciled with the remote calendar.
type Event struct {
	shareddomain.BaseEntity
	userID           string
	name             string
	description      string
	priority         int
	scheduled        *time.Time
	durationMinutes  int
	completed        bool
	deleted          bool
	parentID         *uuid.UUID
	parentType       ParentType
	batchID          string
	remoteEventID    string
	remoteCalendarID string
	syncEnabled      bool
	syncDirection    SyncDirection
	lastSyncAt       *time.Time
	imported         bool
}

// NewEventFromRoutine materializes one occurrence of a routine.
func NewEventFromRoutine(r *Routine, scheduled time.Time, batchID string) *Event {
	s := scheduled.UTC()
	parentID := r.ID()
	return &Event{
		BaseEntity:      shareddomain.NewBaseEntity(),
		userID:          r.UserID(),
		name:            r.Name(),
		description:     r.Description(),
		priority:        r.Priority(),
		scheduled:       &s,
		durationMinutes: r.DurationMinutes(),
		parentID:        &parentID,
		parentType:      ParentRoutine,
		batchID:         batchID,
		syncEnabled:     true,
		syncDirection:   SyncToRemote,
	}
}

// NewImportedEvent creates a local copy of a remote calendar item.
func NewImportedEvent(userID, name, description string, scheduled time.Time, durationMinutes int, remoteEventID, remoteCalendarID string) *Event {
	s := scheduled.UTC()
	now := time.Now().UTC()
	return &Event{
		BaseEntity:       shareddomain.NewBaseEntity(),
		userID:           userID,
		name:             name,
		description:      description,
		scheduled:        &s,
		durationMinutes:  durationMinutes,
		remoteEventID:    remoteEventID,
		remoteCalendarID: remoteCalendarID,
		syncEnabled:      true,
		syncDirection:    SyncFromRemote,
		lastSyncAt:       &now,
		imported:         true,
	}
}

// RehydrateEvent recreates an event from persisted state.
func RehydrateEvent(
	id uuid.UUID,
	userID, name, description string,
	priority int,
	scheduled *time.Time,
	durationMinutes int,
	completed, deleted bool,
	parentID *uuid.UUID,
	parentType ParentType,
	batchID string,
	remoteEventID, remoteCalendarID string,
	syncEnabled bool,
	syncDirection SyncDirection,
	lastSyncAt *time.Time,
	imported bool,
	createdAt, updatedAt time.Time,
) *Event {
	return &Event{
		BaseEntity:       shareddomain.RehydrateBaseEntity(id, createdAt, updatedAt),
		userID:           userID,
		name:             name,
		description:      description,
		priority:         priority,
		scheduled:        scheduled,
		durationMinutes:  durationMinutes,
		completed:        completed,
		deleted:          deleted,
		parentID:         parentID,
		parentType:       parentType,
		batchID:          batchID,
		remoteEventID:    remoteEventID,
		remoteCalendarID: remoteCalendarID,
		syncEnabled:      syncEnabled,
		syncDirection:    syncDirection,
		lastSyncAt:       lastSyncAt,
		imported:         imported,
	}
}

func (e *Event) UserID() string               { return e.userID }
func (e *Event) Name() string                 { return e.name }
func (e *Event) Description() string          { return e.description }
func (e *Event) Priority() int                { return e.priority }
func (e *Event) Scheduled() *time.Time        { return e.scheduled }
func (e *Event) DurationMinutes() int         { return e.durationMinutes }
func (e *Event) Completed() bool              { return e.completed }
func (e *Event) Deleted() bool                { return e.deleted }
func (e *Event) ParentID() *uuid.UUID         { return e.parentID }
func (e *Event) ParentType() ParentType       { return e.parentType }
func (e *Event) BatchID() string              { return e.batchID }
func (e *Event) RemoteEventID() string        { return e.remoteEventID }
func (e *Event) RemoteCalendarID() string     { return e.remoteCalendarID }
func (e *Event) SyncEnabled() bool            { return e.syncEnabled }
func (e *Event) SyncDirection() SyncDirection { return e.syncDirection }
func (e *Event) LastSyncAt() *time.Time       { return e.lastSyncAt }
func (e *Event) Imported() bool               { return e.imported }

// Rename updates the event title and description.
func (e *Event) Rename(name, description string) {
	e.name = name
	e.description = description
	e.Touch()
}

// Reschedule moves the event to a new time.
func (e *Event) Reschedule(t time.Time) {
	u := t.UTC()
	e.scheduled = &u
	e.Touch()
}

// SetDuration updates the duration in minutes.
func (e *Event) SetDuration(minutes int) {
	e.durationMinutes = minutes
	e.Touch()
}

// Complete marks the event done.
func (e *Event) Complete() {
	e.completed = true
	e.Touch()
}

// SoftDelete hides the event without destroying its remote linkage.
func (e *Event) SoftDelete() {
	e.deleted = true
	e.Touch()
}

// LinkRemote records the remote calendar identity after export.
func (e *Event) LinkRemote(remoteEventID, remoteCalendarID string) {
	e.remoteEventID = remoteEventID
	e.remoteCalendarID = remoteCalendarID
	e.Touch()
}

// MarkSynced records a completed sync at t.
func (e *Event) MarkSynced(t time.Time) {
	u := t.UTC()
	e.lastSyncAt = &u
	e.Touch()
}

// Exportable reports whether the event should be pushed to the remote
// calendar.
func (e *Event) Exportable() bool {
	if !e.syncEnabled || e.deleted || e.scheduled == nil {
		return false
	}
	return e.syncDirection == SyncToRemote || e.syncDirection == SyncBidirectional
}

// EditedSince reports whether the event changed locally after t.
func (e *Event) EditedSince(t time.Time) bool {
	return e.UpdatedAt().After(t)
}
