package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/goalpost-app/goalpost/internal/routines/domain"
)

// GenerationHorizon is how far ahead the background generator materializes.
const GenerationHorizon = 90 * 24 * time.Hour

// ScheduledGenerationHandler is the hourly background pass that keeps every
// routine materialized out to the horizon. It takes no per-user lock; the
// materializer's dedup check makes overlap with catch-up harmless.
type ScheduledGenerationHandler struct {
	routines     domain.RoutineRepository
	materializer *Materializer
	logger       *slog.Logger
	now          func() time.Time
}

// NewScheduledGenerationHandler creates the background generation handler.
func NewScheduledGenerationHandler(routines domain.RoutineRepository, materializer *Materializer, logger *slog.Logger) *ScheduledGenerationHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ScheduledGenerationHandler{
		routines:     routines,
		materializer: materializer,
		logger:       logger,
		now:          time.Now,
	}
}

// Run materializes all routines needing generation. Per-routine failures are
// logged and do not stop the batch.
func (h *ScheduledGenerationHandler) Run(ctx context.Context) (CatchUpResult, error) {
	horizon := h.now().UTC().Add(GenerationHorizon)

	pending, err := h.routines.FindNeedingGeneration(ctx, horizon)
	if err != nil {
		return CatchUpResult{}, fmt.Errorf("finding routines needing generation: %w", err)
	}

	var result CatchUpResult
	for _, routine := range pending {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		if routine.Bootstrap() {
			if err := h.routines.Save(ctx, routine); err != nil {
				h.logger.Error("bootstrapping routine cursor",
					"routine_id", routine.ID(), "error", err)
				continue
			}
		}

		until := horizon
		if end := routine.End(); end != nil && end.Before(until) {
			until = *end
		}

		res, err := h.materializer.Materialize(ctx, routine, until)
		if err != nil {
			h.logger.Error("materializing routine",
				"routine_id", routine.ID(), "error", err)
			continue
		}
		result.Routines++
		result.Created += res.Created
	}

	h.logger.Info("scheduled generation finished",
		"routines", result.Routines, "created", result.Created)
	return result, nil
}
