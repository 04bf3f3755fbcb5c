package persistence

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/goalpost-app/goalpost/internal/routines/domain"
	"github.com/goalpost-app/goalpost/internal/shared/infrastructure/database"
)

// SQLiteEventRepository implements EventRepository using SQLite.
type SQLiteEventRepository struct {
	db *sql.DB
}

// NewSQLiteEventRepository creates a new SQLite event repository.
func NewSQLiteEventRepository(db *sql.DB) *SQLiteEventRepository {
	return &SQLiteEventRepository{db: db}
}

const sqliteEventColumns = `id, user_id, name, description, priority, scheduled_at,
	   duration_minutes, completed, deleted, parent_id, parent_type, batch_id,
	   remote_event_id, remote_calendar_id, sync_enabled, sync_direction,
	   last_sync_at, imported, created_at, updated_at`

// Save persists an event (create or update).
func (r *SQLiteEventRepository) Save(ctx context.Context, event *domain.Event) error {
	query := `
		INSERT INTO events (
			id, user_id, name, description, priority, scheduled_at,
			duration_minutes, completed, deleted, parent_id, parent_type, batch_id,
			remote_event_id, remote_calendar_id, sync_enabled, sync_direction,
			last_sync_at, imported, created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			priority = excluded.priority,
			scheduled_at = excluded.scheduled_at,
			duration_minutes = excluded.duration_minutes,
			completed = excluded.completed,
			deleted = excluded.deleted,
			batch_id = excluded.batch_id,
			remote_event_id = excluded.remote_event_id,
			remote_calendar_id = excluded.remote_calendar_id,
			sync_enabled = excluded.sync_enabled,
			sync_direction = excluded.sync_direction,
			last_sync_at = excluded.last_sync_at,
			imported = excluded.imported,
			updated_at = excluded.updated_at
	`

	var parentID *string
	if p := event.ParentID(); p != nil {
		s := p.String()
		parentID = &s
	}

	_, err := r.db.ExecContext(ctx, query,
		event.ID().String(),
		event.UserID(),
		event.Name(),
		event.Description(),
		event.Priority(),
		fmtTimePtr(event.Scheduled()),
		event.DurationMinutes(),
		event.Completed(),
		event.Deleted(),
		parentID,
		string(event.ParentType()),
		event.BatchID(),
		event.RemoteEventID(),
		event.RemoteCalendarID(),
		event.SyncEnabled(),
		string(event.SyncDirection()),
		fmtTimePtr(event.LastSyncAt()),
		event.Imported(),
		fmtTime(event.CreatedAt()),
		fmtTime(event.UpdatedAt()),
	)
	return err
}

// FindByID finds an event by its ID.
func (r *SQLiteEventRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Event, error) {
	query := `SELECT ` + sqliteEventColumns + ` FROM events WHERE id = ?`
	event, err := scanSQLiteEvent(r.db.QueryRowContext(ctx, query, id.String()))
	if database.IsNoRows(err) {
		return nil, domain.ErrEventNotFound
	}
	return event, err
}

// ExistsAt reports whether a live event of the routine is scheduled at t.
func (r *SQLiteEventRepository) ExistsAt(ctx context.Context, routineID uuid.UUID, t time.Time) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM events
			WHERE parent_id = ? AND scheduled_at = ? AND deleted = 0
		)
	`
	var exists bool
	err := r.db.QueryRowContext(ctx, query, routineID.String(), fmtTime(t)).Scan(&exists)
	return exists, err
}

// FindByRemote matches a local event to a remote calendar item.
func (r *SQLiteEventRepository) FindByRemote(ctx context.Context, userID, remoteEventID, remoteCalendarID string) (*domain.Event, error) {
	query := `
		SELECT ` + sqliteEventColumns + `
		FROM events
		WHERE user_id = ? AND remote_event_id = ? AND remote_calendar_id = ?
	`
	event, err := scanSQLiteEvent(r.db.QueryRowContext(ctx, query, userID, remoteEventID, remoteCalendarID))
	if database.IsNoRows(err) {
		return nil, domain.ErrEventNotFound
	}
	return event, err
}

// FindExportable returns live outbound events with a scheduled time.
func (r *SQLiteEventRepository) FindExportable(ctx context.Context, userID string) ([]*domain.Event, error) {
	query := `
		SELECT ` + sqliteEventColumns + `
		FROM events
		WHERE user_id = ?
		  AND deleted = 0
		  AND sync_enabled = 1
		  AND sync_direction IN ('to_remote', 'bidirectional')
		  AND scheduled_at IS NOT NULL
		ORDER BY scheduled_at
	`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectSQLiteEvents(rows)
}

// FindFuture returns live events of the routine scheduled at or after from.
func (r *SQLiteEventRepository) FindFuture(ctx context.Context, routineID uuid.UUID, from time.Time) ([]*domain.Event, error) {
	query := `
		SELECT ` + sqliteEventColumns + `
		FROM events
		WHERE parent_id = ? AND deleted = 0 AND scheduled_at >= ?
		ORDER BY scheduled_at
	`
	rows, err := r.db.QueryContext(ctx, query, routineID.String(), fmtTime(from))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectSQLiteEvents(rows)
}

// FindFutureInBatch returns live events of a generation batch scheduled at
// or after from.
func (r *SQLiteEventRepository) FindFutureInBatch(ctx context.Context, batchID string, from time.Time) ([]*domain.Event, error) {
	query := `
		SELECT ` + sqliteEventColumns + `
		FROM events
		WHERE batch_id = ? AND deleted = 0 AND scheduled_at >= ?
		ORDER BY scheduled_at
	`
	rows, err := r.db.QueryContext(ctx, query, batchID, fmtTime(from))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectSQLiteEvents(rows)
}

func scanSQLiteEvent(row rowScanner) (*domain.Event, error) {
	var (
		idStr, userID, name, description   string
		priority                           int
		scheduledStr                       sql.NullString
		duration                           int
		completed, deleted                 bool
		parentIDStr, parentType            sql.NullString
		batchID                            sql.NullString
		remoteEventID, remoteCalendarID    sql.NullString
		syncEnabled                        bool
		syncDirection                      sql.NullString
		lastSyncStr                        sql.NullString
		imported                           bool
		createdAtStr, updatedAtStr         string
	)

	err := row.Scan(
		&idStr, &userID, &name, &description, &priority, &scheduledStr,
		&duration, &completed, &deleted, &parentIDStr, &parentType, &batchID,
		&remoteEventID, &remoteCalendarID, &syncEnabled, &syncDirection,
		&lastSyncStr, &imported, &createdAtStr, &updatedAtStr,
	)
	if err != nil {
		return nil, err
	}

	id, err := uuid.Parse(idStr)
	if err != nil {
		return nil, err
	}
	scheduled, err := parseTimePtr(scheduledStr)
	if err != nil {
		return nil, err
	}
	lastSyncAt, err := parseTimePtr(lastSyncStr)
	if err != nil {
		return nil, err
	}
	createdAt, err := parseTime(createdAtStr)
	if err != nil {
		return nil, err
	}
	updatedAt, err := parseTime(updatedAtStr)
	if err != nil {
		return nil, err
	}

	var parentID *uuid.UUID
	if parentIDStr.Valid && parentIDStr.String != "" {
		p, err := uuid.Parse(parentIDStr.String)
		if err != nil {
			return nil, err
		}
		parentID = &p
	}

	return domain.RehydrateEvent(
		id, userID, name, description, priority,
		scheduled, duration, completed, deleted,
		parentID, domain.ParentType(parentType.String), batchID.String,
		remoteEventID.String, remoteCalendarID.String,
		syncEnabled, domain.SyncDirection(syncDirection.String),
		lastSyncAt, imported, createdAt, updatedAt,
	), nil
}

func collectSQLiteEvents(rows *sql.Rows) ([]*domain.Event, error) {
	var events []*domain.Event
	for rows.Next() {
		event, err := scanSQLiteEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, rows.Err()
}
