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

// PostgresRoutineRepository implements RoutineRepository using pgx.
type PostgresRoutineRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRoutineRepository creates a new PostgreSQL routine repository.
func NewPostgresRoutineRepository(pool *pgxpool.Pool) *PostgresRoutineRepository {
	return &PostgresRoutineRepository{pool: pool}
}

const pgRoutineColumns = `id, user_id, name, description, priority, frequency,
	   start_at, end_at, time_of_day_ms, duration_minutes, next_at,
	   created_at, updated_at`

// Save persists a routine (create or update).
func (r *PostgresRoutineRepository) Save(ctx context.Context, routine *domain.Routine) error {
	query := `
		INSERT INTO routines (
			id, user_id, name, description, priority, frequency,
			start_at, end_at, time_of_day_ms, duration_minutes, next_at,
			created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			priority = EXCLUDED.priority,
			frequency = EXCLUDED.frequency,
			start_at = EXCLUDED.start_at,
			end_at = EXCLUDED.end_at,
			time_of_day_ms = EXCLUDED.time_of_day_ms,
			duration_minutes = EXCLUDED.duration_minutes,
			next_at = EXCLUDED.next_at,
			updated_at = EXCLUDED.updated_at
	`
	_, err := r.pool.Exec(ctx, query,
		routine.ID(),
		routine.UserID(),
		routine.Name(),
		routine.Description(),
		routine.Priority(),
		routine.Frequency().String(),
		routine.Start(),
		routine.End(),
		routine.TimeOfDayMillis(),
		routine.DurationMinutes(),
		routine.Next(),
		routine.CreatedAt(),
		routine.UpdatedAt(),
	)
	return err
}

// FindByID finds a routine by its ID.
func (r *PostgresRoutineRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Routine, error) {
	query := `SELECT ` + pgRoutineColumns + ` FROM routines WHERE id = $1`
	routine, err := scanPgRoutine(r.pool.QueryRow(ctx, query, id))
	if database.IsNoRows(err) {
		return nil, domain.ErrRoutineNotFound
	}
	return routine, err
}

// FindEligible returns the user's routines whose cursor is unset or before
// until.
func (r *PostgresRoutineRepository) FindEligible(ctx context.Context, userID string, until time.Time) ([]*domain.Routine, error) {
	query := `
		SELECT ` + pgRoutineColumns + `
		FROM routines
		WHERE user_id = $1 AND (next_at IS NULL OR next_at < $2)
		ORDER BY created_at
	`
	rows, err := r.pool.Query(ctx, query, userID, until)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectPgRoutines(rows)
}

// FindNeedingGeneration returns routines across all users whose cursor is
// unset or before horizon.
func (r *PostgresRoutineRepository) FindNeedingGeneration(ctx context.Context, horizon time.Time) ([]*domain.Routine, error) {
	query := `
		SELECT ` + pgRoutineColumns + `
		FROM routines
		WHERE next_at IS NULL OR next_at < $1
		ORDER BY next_at NULLS FIRST
	`
	rows, err := r.pool.Query(ctx, query, horizon)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectPgRoutines(rows)
}

// Delete removes a routine.
func (r *PostgresRoutineRepository) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM routines WHERE id = $1`, id)
	return err
}

func scanPgRoutine(row pgx.Row) (*domain.Routine, error) {
	var (
		id                         uuid.UUID
		userID, name, description  string
		priority                   int
		frequency                  string
		start                      time.Time
		end, next                  *time.Time
		timeOfDay                  *int64
		duration                   int
		createdAt, updatedAt       time.Time
	)

	err := row.Scan(
		&id, &userID, &name, &description, &priority, &frequency,
		&start, &end, &timeOfDay, &duration, &next,
		&createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	return domain.RehydrateRoutine(
		id, userID, name, description, priority, frequency,
		start, end, timeOfDay, duration, next, createdAt, updatedAt,
	), nil
}

func collectPgRoutines(rows pgx.Rows) ([]*domain.Routine, error) {
	var routines []*domain.Routine
	for rows.Next() {
		routine, err := scanPgRoutine(rows)
		if err != nil {
			return nil, err
		}
		routines = append(routines, routine)
	}
	return routines, rows.Err()
}
