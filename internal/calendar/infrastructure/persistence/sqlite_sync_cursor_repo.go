// Package persistence implements sync cursor repositories for SQLite and
// PostgreSQL.
package persistence

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/goalpost-app/goalpost/internal/calendar/domain"
	"github.com/goalpost-app/goalpost/internal/shared/infrastructure/database"
)

// SQLiteSyncCursorRepository implements SyncCursorRepository using SQLite.
type SQLiteSyncCursorRepository struct {
	db *sql.DB
}

// NewSQLiteSyncCursorRepository creates a new SQLite sync cursor repository.
func NewSQLiteSyncCursorRepository(db *sql.DB) *SQLiteSyncCursorRepository {
	return &SQLiteSyncCursorRepository{db: db}
}

const sqliteCursorColumns = `id, user_id, calendar_id, provider, sync_token,
	   last_synced_at, error_count, last_error, created_at, updated_at`

// Save persists a sync cursor (create or update).
func (r *SQLiteSyncCursorRepository) Save(ctx context.Context, cursor *domain.SyncCursor) error {
	query := `
		INSERT INTO calendar_sync_cursors (
			id, user_id, calendar_id, provider, sync_token,
			last_synced_at, error_count, last_error, created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, calendar_id) DO UPDATE SET
			provider = excluded.provider,
			sync_token = excluded.sync_token,
			last_synced_at = excluded.last_synced_at,
			error_count = excluded.error_count,
			last_error = excluded.last_error,
			updated_at = excluded.updated_at
	`

	var lastSyncedAt *string
	if !cursor.LastSyncedAt().IsZero() {
		s := cursor.LastSyncedAt().UTC().Format(time.RFC3339)
		lastSyncedAt = &s
	}

	_, err := r.db.ExecContext(ctx, query,
		cursor.ID().String(),
		cursor.UserID(),
		cursor.CalendarID(),
		cursor.Provider(),
		cursor.SyncToken(),
		lastSyncedAt,
		cursor.ErrorCount(),
		cursor.LastError(),
		cursor.CreatedAt().UTC().Format(time.RFC3339),
		cursor.UpdatedAt().UTC().Format(time.RFC3339),
	)
	return err
}

// FindByUserAndCalendar finds a sync cursor by user and calendar.
func (r *SQLiteSyncCursorRepository) FindByUserAndCalendar(ctx context.Context, userID, calendarID string) (*domain.SyncCursor, error) {
	query := `SELECT ` + sqliteCursorColumns + `
		FROM calendar_sync_cursors
		WHERE user_id = ? AND calendar_id = ?`
	cursor, err := scanSQLiteCursor(r.db.QueryRowContext(ctx, query, userID, calendarID))
	if database.IsNoRows(err) {
		return nil, domain.ErrCursorNotFound
	}
	return cursor, err
}

// FindByUser returns all sync cursors of a user.
func (r *SQLiteSyncCursorRepository) FindByUser(ctx context.Context, userID string) ([]*domain.SyncCursor, error) {
	query := `SELECT ` + sqliteCursorColumns + `
		FROM calendar_sync_cursors
		WHERE user_id = ?
		ORDER BY calendar_id`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectSQLiteCursors(rows)
}

// FindPendingSync returns healthy cursors not synced within olderThan,
// never-synced first.
func (r *SQLiteSyncCursorRepository) FindPendingSync(ctx context.Context, olderThan time.Duration, limit int) ([]*domain.SyncCursor, error) {
	cutoff := time.Now().Add(-olderThan).UTC().Format(time.RFC3339)
	query := `
		SELECT ` + sqliteCursorColumns + `
		FROM calendar_sync_cursors
		WHERE (last_synced_at IS NULL OR last_synced_at < ?)
		  AND error_count < 5
		ORDER BY CASE WHEN last_synced_at IS NULL THEN 0 ELSE 1 END, last_synced_at
		LIMIT ?
	`
	rows, err := r.db.QueryContext(ctx, query, cutoff, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectSQLiteCursors(rows)
}

// Delete removes a sync cursor.
func (r *SQLiteSyncCursorRepository) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM calendar_sync_cursors WHERE id = ?`, id.String())
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteCursor(row rowScanner) (*domain.SyncCursor, error) {
	var (
		idStr, userID, calendarID, provider string
		syncToken                           string
		lastSyncedStr                       sql.NullString
		errorCount                          int
		lastError                           string
		createdAtStr, updatedAtStr          string
	)
	err := row.Scan(
		&idStr, &userID, &calendarID, &provider, &syncToken,
		&lastSyncedStr, &errorCount, &lastError, &createdAtStr, &updatedAtStr,
	)
	if err != nil {
		return nil, err
	}

	id, err := uuid.Parse(idStr)
	if err != nil {
		return nil, err
	}
	createdAt, err := time.Parse(time.RFC3339, createdAtStr)
	if err != nil {
		return nil, err
	}
	updatedAt, err := time.Parse(time.RFC3339, updatedAtStr)
	if err != nil {
		return nil, err
	}
	var lastSyncedAt time.Time
	if lastSyncedStr.Valid {
		lastSyncedAt, err = time.Parse(time.RFC3339, lastSyncedStr.String)
		if err != nil {
			return nil, err
		}
	}

	return domain.RehydrateSyncCursor(
		id, userID, calendarID, provider, syncToken,
		lastSyncedAt, errorCount, lastError, createdAt, updatedAt,
	), nil
}

func collectSQLiteCursors(rows *sql.Rows) ([]*domain.SyncCursor, error) {
	var cursors []*domain.SyncCursor
	for rows.Next() {
		cursor, err := scanSQLiteCursor(rows)
		if err != nil {
			return nil, err
		}
		cursors = append(cursors, cursor)
	}
	return cursors, rows.Err()
}
