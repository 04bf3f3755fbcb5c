package persistence

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/goalpost-app/goalpost/internal/routines/domain"
)

// SQLiteSkipRepository implements SkipExceptionRepository using SQLite.
type SQLiteSkipRepository struct {
	db *sql.DB
}

// NewSQLiteSkipRepository creates a new SQLite skip exception repository.
func NewSQLiteSkipRepository(db *sql.DB) *SQLiteSkipRepository {
	return &SQLiteSkipRepository{db: db}
}

// Create records a skip exception. Duplicate (routine, timestamp, kind)
// rows are ignored.
func (r *SQLiteSkipRepository) Create(ctx context.Context, skip *domain.SkipException) error {
	query := `
		INSERT INTO routine_skips (id, routine_id, user_id, occurs_at, kind, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (routine_id, occurs_at, kind) DO NOTHING
	`
	_, err := r.db.ExecContext(ctx, query,
		skip.ID.String(),
		skip.RoutineID.String(),
		skip.UserID,
		fmtTime(skip.OccursAt),
		string(skip.Kind),
		fmtTime(skip.CreatedAt),
	)
	return err
}

// ListRange returns the routine's exceptions with from <= occurs_at < until.
func (r *SQLiteSkipRepository) ListRange(ctx context.Context, routineID uuid.UUID, from, until time.Time) ([]*domain.SkipException, error) {
	query := `
		SELECT id, routine_id, user_id, occurs_at, kind, created_at
		FROM routine_skips
		WHERE routine_id = ? AND occurs_at >= ? AND occurs_at < ?
		ORDER BY occurs_at
	`
	rows, err := r.db.QueryContext(ctx, query, routineID.String(), fmtTime(from), fmtTime(until))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var skips []*domain.SkipException
	for rows.Next() {
		skip, err := scanSQLiteSkip(rows)
		if err != nil {
			return nil, err
		}
		skips = append(skips, skip)
	}
	return skips, rows.Err()
}

// ClearFrom removes exceptions at or after from, returning the removed count.
func (r *SQLiteSkipRepository) ClearFrom(ctx context.Context, routineID uuid.UUID, from time.Time) (int, error) {
	query := `DELETE FROM routine_skips WHERE routine_id = ? AND occurs_at >= ?`
	res, err := r.db.ExecContext(ctx, query, routineID.String(), fmtTime(from))
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// ClearAll removes every exception of the routine, returning the removed
// count.
func (r *SQLiteSkipRepository) ClearAll(ctx context.Context, routineID uuid.UUID) (int, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM routine_skips WHERE routine_id = ?`, routineID.String())
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func scanSQLiteSkip(rows *sql.Rows) (*domain.SkipException, error) {
	var (
		idStr, routineIDStr, userID string
		occursStr, kind             string
		createdAtStr                string
	)
	if err := rows.Scan(&idStr, &routineIDStr, &userID, &occursStr, &kind, &createdAtStr); err != nil {
		return nil, err
	}

	id, err := uuid.Parse(idStr)
	if err != nil {
		return nil, err
	}
	routineID, err := uuid.Parse(routineIDStr)
	if err != nil {
		return nil, err
	}
	occursAt, err := parseTime(occursStr)
	if err != nil {
		return nil, err
	}
	createdAt, err := parseTime(createdAtStr)
	if err != nil {
		return nil, err
	}

	return &domain.SkipException{
		ID:        id,
		RoutineID: routineID,
		UserID:    userID,
		OccursAt:  occursAt,
		Kind:      domain.SkipKind(kind),
		CreatedAt: createdAt,
	}, nil
}
