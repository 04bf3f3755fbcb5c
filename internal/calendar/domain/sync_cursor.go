// Package domain holds the calendar sync model: per-calendar incremental
// sync state.
package domain

import (
	"context"
	"time"

	"github.com/google/uuid"

	shareddomain "github.com/goalpost-app/goalpost/internal/shared/domain"
)

// ErrCursorNotFound is returned when no sync cursor exists for a calendar.
var ErrCursorNotFound = shareddomain.NewNotFoundError("sync cursor")

// ProviderGoogle is the only supported calendar provider.
const ProviderGoogle = "google"

// maxConsecutiveErrors is where the periodic worker stops picking a cursor
// up until a manual sync succeeds.
const maxConsecutiveErrors = 5

// SyncCursor tracks incremental sync state for one user's calendar. An
// empty sync token forces the next import to fetch a full time window.
type SyncCursor struct {
	shareddomain.BaseEntity
	userID       string
	calendarID   string
	provider     string
	syncToken    string
	lastSyncedAt time.Time
	errorCount   int
	lastError    string
}

// NewSyncCursor creates sync state for a user's calendar.
func NewSyncCursor(userID, calendarID string) *SyncCursor {
	return &SyncCursor{
		BaseEntity: shareddomain.NewBaseEntity(),
		userID:     userID,
		calendarID: calendarID,
		provider:   ProviderGoogle,
	}
}

// RehydrateSyncCursor recreates sync state from persisted data.
func RehydrateSyncCursor(
	id uuid.UUID,
	userID, calendarID, provider, syncToken string,
	lastSyncedAt time.Time,
	errorCount int,
	lastError string,
	createdAt, updatedAt time.Time,
) *SyncCursor {
	return &SyncCursor{
		BaseEntity:   shareddomain.RehydrateBaseEntity(id, createdAt, updatedAt),
		userID:       userID,
		calendarID:   calendarID,
		provider:     provider,
		syncToken:    syncToken,
		lastSyncedAt: lastSyncedAt,
		errorCount:   errorCount,
		lastError:    lastError,
	}
}

func (c *SyncCursor) UserID() string          { return c.userID }
func (c *SyncCursor) CalendarID() string      { return c.calendarID }
func (c *SyncCursor) Provider() string        { return c.provider }
func (c *SyncCursor) SyncToken() string       { return c.syncToken }
func (c *SyncCursor) LastSyncedAt() time.Time { return c.lastSyncedAt }
func (c *SyncCursor) ErrorCount() int         { return c.errorCount }
func (c *SyncCursor) LastError() string       { return c.lastError }

// MarkSyncSuccess records a completed sync. The stored token is replaced
// only when the provider returned a new one; some responses omit it and the
// previous token stays valid.
func (c *SyncCursor) MarkSyncSuccess(syncToken string) {
	if syncToken != "" {
		c.syncToken = syncToken
	}
	c.lastSyncedAt = time.Now().UTC()
	c.errorCount = 0
	c.lastError = ""
	c.Touch()
}

// MarkSyncFailure records a failed sync attempt.
func (c *SyncCursor) MarkSyncFailure(err error) {
	c.errorCount++
	if err != nil {
		c.lastError = err.Error()
	}
	c.Touch()
}

// ResetSyncToken discards the incremental token. The next import fetches a
// full window. Used when the provider rejects the stored token.
func (c *SyncCursor) ResetSyncToken() {
	c.syncToken = ""
	c.Touch()
}

// Healthy reports whether the cursor is still eligible for automatic sync.
func (c *SyncCursor) Healthy() bool {
	return c.errorCount < maxConsecutiveErrors
}

// SyncCursorRepository persists sync cursors.
type SyncCursorRepository interface {
	// Save upserts on (user, calendar).
	Save(ctx context.Context, cursor *SyncCursor) error
	FindByUserAndCalendar(ctx context.Context, userID, calendarID string) (*SyncCursor, error)
	FindByUser(ctx context.Context, userID string) ([]*SyncCursor, error)
	// FindPendingSync returns healthy cursors not synced within olderThan,
	// never-synced first.
	FindPendingSync(ctx context.Context, olderThan time.Duration, limit int) ([]*SyncCursor, error)
	Delete(ctx context.Context, id uuid.UUID) error
}
