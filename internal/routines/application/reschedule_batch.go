package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/goalpost-app/goalpost/internal/routines/domain"
)

// RescheduleScope selects which of a routine's events a batch reschedule
// touches.
type RescheduleScope string

const (
	// ScopeFuture reschedules events from now on.
	ScopeFuture RescheduleScope = "future"
	// ScopeBatch reschedules only events from one generation batch.
	ScopeBatch RescheduleScope = "batch"
)

// RescheduleBatchHandler moves the time-of-day of a routine's future events
// in one pass, recording skip exceptions for the vacated timestamps so the
// generator does not refill them.
type RescheduleBatchHandler struct {
	routines domain.RoutineRepository
	events   domain.EventRepository
	skips    domain.SkipExceptionRepository
	logger   *slog.Logger
	now      func() time.Time
}

// NewRescheduleBatchHandler creates a batch reschedule handler.
func NewRescheduleBatchHandler(
	routines domain.RoutineRepository,
	events domain.EventRepository,
	skips domain.SkipExceptionRepository,
	logger *slog.Logger,
) *RescheduleBatchHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &RescheduleBatchHandler{routines: routines, events: events, skips: skips, logger: logger, now: time.Now}
}

// Handle moves every matching event to the new time-of-day offset (millis
// since midnight, truncated to whole minutes) and persists the offset on the
// routine so future materialization follows it. Returns the number of moved
// events.
func (h *RescheduleBatchHandler) Handle(ctx context.Context, routineID uuid.UUID, scope RescheduleScope, batchID string, offsetMillis int64) (int, error) {
	routine, err := h.routines.FindByID(ctx, routineID)
	if err != nil {
		return 0, err
	}

	routine.SetTimeOfDay(offsetMillis)
	if err := h.routines.Save(ctx, routine); err != nil {
		return 0, fmt.Errorf("saving routine time of day: %w", err)
	}

	from := h.now().UTC()
	var targets []*domain.Event
	switch scope {
	case ScopeBatch:
		targets, err = h.events.FindFutureInBatch(ctx, batchID, from)
	default:
		targets, err = h.events.FindFuture(ctx, routineID, from)
	}
	if err != nil {
		return 0, fmt.Errorf("finding events to reschedule: %w", err)
	}

	tod := routine.TimeOfDayMillis()
	moved := 0
	for _, event := range targets {
		old := event.Scheduled()
		if old == nil || tod == nil {
			continue
		}
		updated := domain.ApplyTimeOfDay(*old, *tod)
		if updated.Equal(*old) {
			continue
		}

		skip := domain.NewSkipException(routineID, routine.UserID(), *old)
		if err := h.skips.Create(ctx, skip); err != nil {
			return moved, fmt.Errorf("recording skip for vacated slot: %w", err)
		}

		event.Reschedule(updated)
		if err := h.events.Save(ctx, event); err != nil {
			return moved, fmt.Errorf("saving rescheduled event: %w", err)
		}
		moved++
	}

	h.logger.Info("rescheduled batch",
		"routine_id", routineID, "scope", scope, "moved", moved)
	return moved, nil
}
