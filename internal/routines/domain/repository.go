package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// RoutineRepository persists routines.
type RoutineRepository interface {
	Save(ctx context.Context, routine *Routine) error
	FindByID(ctx context.Context, id uuid.UUID) (*Routine, error)
	// FindEligible returns a user's routines whose cursor is nil or before
	// until. These are the routines catch-up must materialize.
	FindEligible(ctx context.Context, userID string, until time.Time) ([]*Routine, error)
	// FindNeedingGeneration returns routines, across all users, whose cursor
	// is nil or before horizon.
	FindNeedingGeneration(ctx context.Context, horizon time.Time) ([]*Routine, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// EventRepository persists events.
type EventRepository interface {
	Save(ctx context.Context, event *Event) error
	FindByID(ctx context.Context, id uuid.UUID) (*Event, error)
	// ExistsAt reports whether a non-deleted event of the routine is already
	// scheduled at t. This is the materializer's dedup check.
	ExistsAt(ctx context.Context, routineID uuid.UUID, t time.Time) (bool, error)
	// FindByRemote matches a local event to a remote calendar item.
	FindByRemote(ctx context.Context, userID, remoteEventID, remoteCalendarID string) (*Event, error)
	// FindExportable returns non-deleted, sync-enabled events with an
	// outbound direction and a scheduled time.
	FindExportable(ctx context.Context, userID string) ([]*Event, error)
	// FindFuture returns non-deleted events of the routine scheduled at or
	// after from.
	FindFuture(ctx context.Context, routineID uuid.UUID, from time.Time) ([]*Event, error)
	// FindFutureInBatch returns non-deleted events sharing a generation
	// batch, scheduled at or after from.
	FindFutureInBatch(ctx context.Context, batchID string, from time.Time) ([]*Event, error)
}

// SkipExceptionRepository persists skip exceptions.
type SkipExceptionRepository interface {
	// Create records an exception. Recording the same (routine, timestamp,
	// kind) twice is a no-op.
	Create(ctx context.Context, skip *SkipException) error
	// ListRange returns exceptions of the routine with from <= OccursAt < until.
	ListRange(ctx context.Context, routineID uuid.UUID, from, until time.Time) ([]*SkipException, error)
	// ClearFrom removes exceptions at or after from and reports how many
	// rows were removed.
	ClearFrom(ctx context.Context, routineID uuid.UUID, from time.Time) (int, error)
	ClearAll(ctx context.Context, routineID uuid.UUID) (int, error)
}
