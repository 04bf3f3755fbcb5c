package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/goalpost-app/goalpost/internal/routines/domain"
)

// RecomputeResult reports a recompute run.
type RecomputeResult struct {
	Deleted int
	Created int
}

// RecomputeFutureHandler rebuilds a routine's future after its schedule
// changes. Existing future events are soft-deleted with a skip exception per
// vacated timestamp, so the hourly generator does not silently recreate the
// old slots, then the window is rematerialized under the current pattern.
type RecomputeFutureHandler struct {
	routines     domain.RoutineRepository
	events       domain.EventRepository
	skips        domain.SkipExceptionRepository
	materializer *Materializer
	logger       *slog.Logger
	now          func() time.Time
}

// NewRecomputeFutureHandler creates a recompute handler.
func NewRecomputeFutureHandler(
	routines domain.RoutineRepository,
	events domain.EventRepository,
	skips domain.SkipExceptionRepository,
	materializer *Materializer,
	logger *slog.Logger,
) *RecomputeFutureHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &RecomputeFutureHandler{
		routines:     routines,
		events:       events,
		skips:        skips,
		materializer: materializer,
		logger:       logger,
		now:          time.Now,
	}
}

// Handle soft-deletes the routine's non-deleted events scheduled at or after
// from (nil means now), then rematerializes from that point to the horizon.
func (h *RecomputeFutureHandler) Handle(ctx context.Context, routineID uuid.UUID, from *time.Time) (RecomputeResult, error) {
	routine, err := h.routines.FindByID(ctx, routineID)
	if err != nil {
		return RecomputeResult{}, err
	}

	start := h.now().UTC()
	if from != nil {
		start = from.UTC()
	}

	future, err := h.events.FindFuture(ctx, routineID, start)
	if err != nil {
		return RecomputeResult{}, fmt.Errorf("finding future events: %w", err)
	}

	var result RecomputeResult
	for _, event := range future {
		scheduled := event.Scheduled()
		event.SoftDelete()
		if err := h.events.Save(ctx, event); err != nil {
			return result, fmt.Errorf("soft-deleting event: %w", err)
		}
		result.Deleted++

		if scheduled != nil {
			skip := domain.NewSkipException(routineID, routine.UserID(), *scheduled)
			if err := h.skips.Create(ctx, skip); err != nil {
				return result, fmt.Errorf("recording skip exception: %w", err)
			}
		}
	}

	routine.AdvanceCursor(start)
	until := h.now().UTC().Add(GenerationHorizon)
	res, err := h.materializer.Materialize(ctx, routine, until)
	if err != nil {
		return result, fmt.Errorf("rematerializing: %w", err)
	}
	result.Created = res.Created

	h.logger.Info("recomputed routine future",
		"routine_id", routineID, "deleted", result.Deleted, "created", result.Created)
	return result, nil
}
