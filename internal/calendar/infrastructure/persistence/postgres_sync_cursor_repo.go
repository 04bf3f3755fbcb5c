package persistence

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/goalpost-app/goalpost/internal/calendar/domain"
	"github.com/goalpost-app/goalpost/internal/shared/infrastructure/database"
)

// PostgresSyncCursorRepository implements SyncCursorRepository using pgx.
type PostgresSyncCursorRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresSyncCursorRepository creates a new PostgreSQL sync cursor
// repository.
func NewPostgresSyncCursorRepository(pool *pgxpool.Pool) *PostgresSyncCursorRepository {
	return &PostgresSyncCursorRepository{pool: pool}
}

const pgCursorColumns = `id, user_id, calendar_id, provider, sync_token,
	   last_synced_at, error_count, last_error, created_at, updated_at`

// Save persists a sync cursor (create or update).
func (r *PostgresSyncCursorRepository) Save(ctx context.Context, cursor *domain.SyncCursor) error {
	query := `
		INSERT INTO calendar_sync_cursors (
			id, user_id, calendar_id, provider, sync_token,
			last_synced_at, error_count, last_error, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (user_id, calendar_id) DO UPDATE SET
			provider = EXCLUDED.provider,
			sync_token = EXCLUDED.sync_token,
			last_synced_at = EXCLUDED.last_synced_at,
			error_count = EXCLUDED.error_count,
			last_error = EXCLUDED.last_error,
			updated_at = EXCLUDED.updated_at
	`
	var lastSyncedAt *time.Time
	if !cursor.LastSyncedAt().IsZero() {
		t := cursor.LastSyncedAt().UTC()
		lastSyncedAt = &t
	}

	_, err := r.pool.Exec(ctx, query,
		cursor.ID(), cursor.UserID(), cursor.CalendarID(), cursor.Provider(),
		cursor.SyncToken(), lastSyncedAt, cursor.ErrorCount(), cursor.LastError(),
		cursor.CreatedAt(), cursor.UpdatedAt())
	return err
}

// FindByUserAndCalendar finds a sync cursor by user and calendar.
func (r *PostgresSyncCursorRepository) FindByUserAndCalendar(ctx context.Context, userID, calendarID string) (*domain.SyncCursor, error) {
	query := `SELECT ` + pgCursorColumns + `
		FROM calendar_sync_cursors
		WHERE user_id = $1 AND calendar_id = $2`
	cursor, err := scanPgCursor(r.pool.QueryRow(ctx, query, userID, calendarID))
	if database.IsNoRows(err) {
		return nil, domain.ErrCursorNotFound
	}
	return cursor, err
}

// FindByUser returns all sync cursors of a user.
func (r *PostgresSyncCursorRepository) FindByUser(ctx context.Context, userID string) ([]*domain.SyncCursor, error) {
	query := `SELECT ` + pgCursorColumns + `
		FROM calendar_sync_cursors
		WHERE user_id = $1
		ORDER BY calendar_id`
	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectPgCursors(rows)
}

// FindPendingSync returns healthy cursors not synced within olderThan,
// never-synced first.
func (r *PostgresSyncCursorRepository) FindPendingSync(ctx context.Context, olderThan time.Duration, limit int) ([]*domain.SyncCursor, error) {
	cutoff := time.Now().UTC().Add(-olderThan)
	query := `
		SELECT ` + pgCursorColumns + `
		FROM calendar_sync_cursors
		WHERE (last_synced_at IS NULL OR last_synced_at < $1)
		  AND error_count < 5
		ORDER BY last_synced_at NULLS FIRST
		LIMIT $2
	`
	rows, err := r.pool.Query(ctx, query, cutoff, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectPgCursors(rows)
}

// Delete removes a sync cursor.
func (r *PostgresSyncCursorRepository) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM calendar_sync_cursors WHERE id = $1`, id)
	return err
}

func scanPgCursor(row pgx.Row) (*domain.SyncCursor, error) {
	var (
		id                                  uuid.UUID
		userID, calendarID, provider, token string
		lastSyncedAt                        *time.Time
		errorCount                          int
		lastError                           string
		createdAt, updatedAt                time.Time
	)
	err := row.Scan(
		&id, &userID, &calendarID, &provider, &token,
		&lastSyncedAt, &errorCount, &lastError, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	var synced time.Time
	if lastSyncedAt != nil {
		synced = *lastSyncedAt
	}
	return domain.RehydrateSyncCursor(
		id, userID, calendarID, provider, token,
		synced, errorCount, lastError, createdAt, updatedAt,
	), nil
}

func collectPgCursors(rows pgx.Rows) ([]*domain.SyncCursor, error) {
	var cursors []*domain.SyncCursor
	for rows.Next() {
		cursor, err := scanPgCursor(rows)
		if err != nil {
			return nil, err
		}
		cursors = append(cursors, cursor)
	}
	return cursors, rows.Err()
}
