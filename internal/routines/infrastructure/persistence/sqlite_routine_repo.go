package persistence

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/goalpost-app/goalpost/internal/routines/domain"
	"github.com/goalpost-app/goalpost/internal/shared/infrastructure/database"
)

// SQLiteRoutineRepository implements RoutineRepository using SQLite.
type SQLiteRoutineRepository struct {
	db *sql.DB
}

// NewSQLiteRoutineRepository creates a new SQLite routine repository.
func NewSQLiteRoutineRepository(db *sql.DB) *SQLiteRoutineRepository {
	return &SQLiteRoutineRepository{db: db}
}

const sqliteRoutineColumns = `id, user_id, name, description, priority, frequency,
	   start_at, end_at, time_of_day_ms, duration_minutes, next_at,
	   created_at, updated_at`

// Save persists a routine (create or update).
func (r *SQLiteRoutineRepository) Save(ctx context.Context, routine *domain.Routine) error {
	query := `
		INSERT INTO routines (
			id, user_id, name, description, priority, frequency,
			start_at, end_at, time_of_day_ms, duration_minutes, next_at,
			created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			priority = excluded.priority,
			frequency = excluded.frequency,
			start_at = excluded.start_at,
			end_at = excluded.end_at,
			time_of_day_ms = excluded.time_of_day_ms,
			duration_minutes = excluded.duration_minutes,
			next_at = excluded.next_at,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, query,
		routine.ID().String(),
		routine.UserID(),
		routine.Name(),
		routine.Description(),
		routine.Priority(),
		routine.Frequency().String(),
		fmtTime(routine.Start()),
		fmtTimePtr(routine.End()),
		routine.TimeOfDayMillis(),
		routine.DurationMinutes(),
		fmtTimePtr(routine.Next()),
		fmtTime(routine.CreatedAt()),
		fmtTime(routine.UpdatedAt()),
	)
	return err
}

// FindByID finds a routine by its ID.
func (r *SQLiteRoutineRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Routine, error) {
	query := `SELECT ` + sqliteRoutineColumns + ` FROM routines WHERE id = ?`
	routine, err := scanSQLiteRoutine(r.db.QueryRowContext(ctx, query, id.String()))
	if database.IsNoRows(err) {
		return nil, domain.ErrRoutineNotFound
	}
	return routine, err
}

// FindEligible returns the user's routines whose cursor is unset or before
// until.
func (r *SQLiteRoutineRepository) FindEligible(ctx context.Context, userID string, until time.Time) ([]*domain.Routine, error) {
	query := `
		SELECT ` + sqliteRoutineColumns + `
		FROM routines
		WHERE user_id = ? AND (next_at IS NULL OR next_at < ?)
		ORDER BY created_at
	`
	rows, err := r.db.QueryContext(ctx, query, userID, fmtTime(until))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectSQLiteRoutines(rows)
}

// FindNeedingGeneration returns routines across all users whose cursor is
// unset or before horizon.
func (r *SQLiteRoutineRepository) FindNeedingGeneration(ctx context.Context, horizon time.Time) ([]*domain.Routine, error) {
	query := `
		SELECT ` + sqliteRoutineColumns + `
		FROM routines
		WHERE next_at IS NULL OR next_at < ?
		ORDER BY next_at
	`
	rows, err := r.db.QueryContext(ctx, query, fmtTime(horizon))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectSQLiteRoutines(rows)
}

// Delete removes a routine.
func (r *SQLiteRoutineRepository) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM routines WHERE id = ?`, id.String())
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteRoutine(row rowScanner) (*domain.Routine, error) {
	var (
		idStr, userID, name, description string
		priority                         int
		frequency                        string
		startStr                         string
		endStr, nextStr                  sql.NullString
		timeOfDay                        sql.NullInt64
		duration                         int
		createdAtStr, updatedAtStr       string
	)

	err := row.Scan(
		&idStr, &userID, &name, &description, &priority, &frequency,
		&startStr, &endStr, &timeOfDay, &duration, &nextStr,
		&createdAtStr, &updatedAtStr,
	)
	if err != nil {
		return nil, err
	}

	id, err := uuid.Parse(idStr)
	if err != nil {
		return nil, err
	}
	start, err := parseTime(startStr)
	if err != nil {
		return nil, err
	}
	end, err := parseTimePtr(endStr)
	if err != nil {
		return nil, err
	}
	next, err := parseTimePtr(nextStr)
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

	var tod *int64
	if timeOfDay.Valid {
		v := timeOfDay.Int64
		tod = &v
	}

	return domain.RehydrateRoutine(
		id, userID, name, description, priority, frequency,
		start, end, tod, duration, next, createdAt, updatedAt,
	), nil
}

func collectSQLiteRoutines(rows *sql.Rows) ([]*domain.Routine, error) {
	var routines []*domain.Routine
	for rows.Next() {
		routine, err := scanSQLiteRoutine(rows)
		if err != nil {
			return nil, err
		}
		routines = append(routines, routine)
	}
	return routines, rows.Err()
}
