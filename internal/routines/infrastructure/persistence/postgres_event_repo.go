package persistence

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/goalpost-app/goalpost/internal/routines/domain"
	"github.com/goalpost-app/goalpost/internal/shared/infrastructure/database"
)

// PostgresEventRepository implements EventRepository using pgx.
type PostgresEventRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresEventRepository creates a new PostgreSQL event repository.
func NewPostgresEventRepository(pool *pgxpool.Pool) *PostgresEventRepository {
	return &PostgresEventRepository{pool: pool}
}

const pgEventColumns = `id, user_id, name, description, priority, scheduled_at,
	   duration_minutes, completed, deleted, parent_id, parent_type, batch_id,
	   remote_event_id, remote_calendar_id, sync_enabled, sync_direction,
	   last_sync_at, imported, created_at, updated_at`

// Save persists an event (create or update).
func (r *PostgresEventRepository) Save(ctx context.Context, event *domain.Event) error {
	query := `
		INSERT INTO events (
			id, user_id, name, description, priority, scheduled_at,
			duration_minutes, completed, deleted, parent_id, parent_type, batch_id,
			remote_event_id, remote_calendar_id, sync_enabled, sync_direction,
			last_sync_at, imported, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
		        $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			priority = EXCLUDED.priority,
			scheduled_at = EXCLUDED.scheduled_at,
			duration_minutes = EXCLUDED.duration_minutes,
			completed = EXCLUDED.completed,
			deleted = EXCLUDED.deleted,
			batch_id = EXCLUDED.batch_id,
			remote_event_id = EXCLUDED.remote_event_id,
			remote_calendar_id = EXCLUDED.remote_calendar_id,
			sync_enabled = EXCLUDED.sync_enabled,
			sync_direction = EXCLUDED.sync_direction,
			last_sync_at = EXCLUDED.last_sync_at,
			imported = EXCLUDED.imported,
			updated_at = EXCLUDED.updated_at
	`
	_, err := r.pool.Exec(ctx, query,
		event.ID(),
		event.UserID(),
		event.Name(),
		event.Description(),
		event.Priority(),
		event.Scheduled(),
		event.DurationMinutes(),
		event.Completed(),
		event.Deleted(),
		event.ParentID(),
		string(event.ParentType()),
		event.BatchID(),
		event.RemoteEventID(),
		event.RemoteCalendarID(),
		event.SyncEnabled(),
		string(event.SyncDirection()),
		event.LastSyncAt(),
		event.Imported(),
		event.CreatedAt(),
		event.UpdatedAt(),
	)
	return err
}

// FindByID finds an event by its ID.
func (r *PostgresEventRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Event, error) {
	query := `SELECT ` + pgEventColumns + ` FROM events WHERE id = $1`
	event, err := scanPgEvent(r.pool.QueryRow(ctx, query, id))
	if database.IsNoRows(err) {
		return nil, domain.ErrEventNotFound
	}
	return event, err
}

// ExistsAt reports whether a live event of the routine is scheduled at t.
func (r *PostgresEventRepository) ExistsAt(ctx context.Context, routineID uuid.UUID, t time.Time) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM events
			WHERE parent_id = $1 AND scheduled_at = $2 AND NOT deleted
		)
	`
	var exists bool
	err := r.pool.QueryRow(ctx, query, routineID, t).Scan(&exists)
	return exists, err
}

// FindByRemote matches a local event to a remote calendar item.
func (r *PostgresEventRepository) FindByRemote(ctx context.Context, userID, remoteEventID, remoteCalendarID string) (*domain.Event, error) {
	query := `
		SELECT ` + pgEventColumns + `
		FROM events
		WHERE user_id = $1 AND remote_event_id = $2 AND remote_calendar_id = $3
	`
	event, err := scanPgEvent(r.pool.QueryRow(ctx, query, userID, remoteEventID, remoteCalendarID))
	if database.IsNoRows(err) {
		return nil, domain.ErrEventNotFound
	}
	return event, err
}

// FindExportable returns live outbound events with a scheduled time.
func (r *PostgresEventRepository) FindExportable(ctx context.Context, userID string) ([]*domain.Event, error) {
	query := `
		SELECT ` + pgEventColumns + `
		FROM events
		WHERE user_id = $1
		  AND NOT deleted
		  AND sync_enabled
		  AND sync_direction IN ('to_remote', 'bidirectional')
		  AND scheduled_at IS NOT NULL
		ORDER BY scheduled_at
	`
	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectPgEvents(rows)
}

// FindFuture returns live events of the routine scheduled at or after from.
func (r *PostgresEventRepository) FindFuture(ctx context.Context, routineID uuid.UUID, from time.Time) ([]*domain.Event, error) {
	query := `
		SELECT ` + pgEventColumns + `
		FROM events
		WHERE parent_id = $1 AND NOT deleted AND scheduled_at >= $2
		ORDER BY scheduled_at
	`
	rows, err := r.pool.Query(ctx, query, routineID, from)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectPgEvents(rows)
}

// FindFutureInBatch returns live events of a generation batch scheduled at
// or after from.
func (r *PostgresEventRepository) FindFutureInBatch(ctx context.Context, batchID string, from time.Time) ([]*domain.Event, error) {
	query := `
		SELECT ` + pgEventColumns + `
		FROM events
		WHERE batch_id = $1 AND NOT deleted AND scheduled_at >= $2
		ORDER BY scheduled_at
	`
	rows, err := r.pool.Query(ctx, query, batchID, from)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectPgEvents(rows)
}

func scanPgEvent(row pgx.Row) (*domain.Event, error) {
	var (
		id                              uuid.UUID
		userID, name, description       string
		priority                        int
		scheduled, lastSyncAt           *time.Time
		duration                        int
		completed, deleted              bool
		parentID                        *uuid.UUID
		parentType                      *string
		batchID                         *string
		remoteEventID, remoteCalendarID *string
		syncEnabled                     bool
		syncDirection                   *string
		imported                        bool
		createdAt, updatedAt            time.Time
	)

	err := row.Scan(
		&id, &userID, &name, &description, &priority, &scheduled,
		&duration, &completed, &deleted, &parentID, &parentType, &batchID,
		&remoteEventID, &remoteCalendarID, &syncEnabled, &syncDirection,
		&lastSyncAt, &imported, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	deref := func(s *string) string {
		if s == nil {
			return ""
		}
		return *s
	}

	return domain.RehydrateEvent(
		id, userID, name, description, priority,
		scheduled, duration, completed, deleted,
		parentID, domain.ParentType(deref(parentType)), deref(batchID),
		deref(remoteEventID), deref(remoteCalendarID),
		syncEnabled, domain.SyncDirection(deref(syncDirection)),
		lastSyncAt, imported, createdAt, updatedAt,
	), nil
}

func collectPgEvents(rows pgx.Rows) ([]*domain.Event, error) {
	var events []*domain.Event
	for rows.Next() {
		event, err := scanPgEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, rows.Err()
}
