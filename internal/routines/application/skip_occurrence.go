package application

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/goalpost-app/goalpost/internal/routines/domain"
)

// SkipOccurrenceHandler records and inspects skip exceptions.
type SkipOccurrenceHandler struct {
	routines domain.RoutineRepository
	skips    domain.SkipExceptionRepository
}

// NewSkipOccurrenceHandler creates a skip handler.
func NewSkipOccurrenceHandler(routines domain.RoutineRepository, skips domain.SkipExceptionRepository) *SkipOccurrenceHandler {
	return &SkipOccurrenceHandler{routines: routines, skips: skips}
}

// Skip suppresses the routine's occurrence at t. Repeating the call is a
// no-op.
func (h *SkipOccurrenceHandler) Skip(ctx context.Context, routineID uuid.UUID, t time.Time) error {
	routine, err := h.routines.FindByID(ctx, routineID)
	if err != nil {
		return err
	}
	skip := domain.NewSkipException(routineID, routine.UserID(), t)
	if err := h.skips.Create(ctx, skip); err != nil {
		return fmt.Errorf("recording skip exception: %w", err)
	}
	return nil
}

// ListSkipped returns the suppressed timestamps of the routine in
// [from, until).
func (h *SkipOccurrenceHandler) ListSkipped(ctx context.Context, routineID uuid.UUID, from, until time.Time) ([]time.Time, error) {
	exceptions, err := h.skips.ListRange(ctx, routineID, from, until)
	if err != nil {
		return nil, fmt.Errorf("listing skip exceptions: %w", err)
	}
	out := make([]time.Time, 0, len(exceptions))
	for _, ex := range exceptions {
		out = append(out, ex.OccursAt)
	}
	return out, nil
}

// ClearFrom removes exceptions at or after from, reopening those slots for
// materialization. Returns the number of exceptions removed.
func (h *SkipOccurrenceHandler) ClearFrom(ctx context.Context, routineID uuid.UUID, from time.Time) (int, error) {
	return h.skips.ClearFrom(ctx, routineID, from)
}

// ClearAll removes every exception of the routine and returns how many
// there were.
func (h *SkipOccurrenceHandler) ClearAll(ctx context.Context, routineID uuid.UUID) (int, error) {
	return h.skips.ClearAll(ctx, routineID)
}
