package domain

import (
	"time"

	"github.com/google/uuid"
)

// SkipKind classifies a suppressed occurrence.
type SkipKind string

// SkipKindSkip marks an occurrence the user removed. Materialization must
// never recreate it.
const SkipKindSkip SkipKind = "skip"

// SkipException records that a single occurrence of a routine was removed.
// Exceptions are keyed by (routine, timestamp, kind) and are idempotent to
// record.
type SkipException struct {
	ID        uuid.UUID
	RoutineID uuid.UUID
	UserID    string
	OccursAt  time.Time
	Kind      SkipKind
	CreatedAt time.Time
}

// NewSkipException records a skipped occurrence at t.
func NewSkipException(routineID uuid.UUID, userID string, t time.Time) *SkipException {
	return &SkipException{
		ID:        uuid.New(),
		RoutineID: routineID,
		UserID:    userID,
		OccursAt:  t.UTC(),
		Kind:      SkipKindSkip,
		CreatedAt: time.Now().UTC(),
	}
}
