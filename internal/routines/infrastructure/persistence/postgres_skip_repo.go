package persistence

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/goalpost-app/goalpost/internal/routines/domain"
)

// PostgresSkipRepository implements SkipExceptionRepository using pgx.
type PostgresSkipRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresSkipRepository creates a new PostgreSQL skip exception
// repository.
func NewPostgresSkipRepository(pool *pgxpool.Pool) *PostgresSkipRepository {
	return &PostgresSkipRepository{pool: pool}
}

// Create records a skip exception. Duplicate (routine, timestamp, kind)
// rows are ignored.
func (r *PostgresSkipRepository) Create(ctx context.Context, skip *domain.SkipException) error {
	query := `
		INSERT INTO routine_skips (id, routine_id, user_id, occurs_at, kind, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (routine_id, occurs_at, kind) DO NOTHING
	`
	_, err := r.pool.Exec(ctx, query,
		skip.ID, skip.RoutineID, skip.UserID, skip.OccursAt, string(skip.Kind), skip.CreatedAt)
	return err
}

// ListRange returns the routine's exceptions with from <= occurs_at < until.
func (r *PostgresSkipRepository) ListRange(ctx context.Context, routineID uuid.UUID, from, until time.Time) ([]*domain.SkipException, error) {
	query := `
		SELECT id, routine_id, user_id, occurs_at, kind, created_at
		FROM routine_skips
		WHERE routine_id = $1 AND occurs_at >= $2 AND occurs_at < $3
		ORDER BY occurs_at
	`
	rows, err := r.pool.Query(ctx, query, routineID, from, until)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var skips []*domain.SkipException
	for rows.Next() {
		var (
			skip domain.SkipException
			kind string
		)
		if err := rows.Scan(&skip.ID, &skip.RoutineID, &skip.UserID, &skip.OccursAt, &kind, &skip.CreatedAt); err != nil {
			return nil, err
		}
		skip.Kind = domain.SkipKind(kind)
		skips = append(skips, &skip)
	}
	return skips, rows.Err()
}

// ClearFrom removes exceptions at or after from, returning the removed count.
func (r *PostgresSkipRepository) ClearFrom(ctx context.Context, routineID uuid.UUID, from time.Time) (int, error) {
	query := `DELETE FROM routine_skips WHERE routine_id = $1 AND occurs_at >= $2`
	tag, err := r.pool.Exec(ctx, query, routineID, from)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

// ClearAll removes every exception of the routine, returning the removed
// count.
func (r *PostgresSkipRepository) ClearAll(ctx context.Context, routineID uuid.UUID) (int, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM routine_skips WHERE routine_id = $1`, routineID)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}
