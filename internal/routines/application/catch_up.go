package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/goalpost-app/goalpost/internal/routines/domain"
)

// CatchUpResult aggregates one catch-up run.
type CatchUpResult struct {
	Routines int
	Created  int
}

// CatchUpHandler materializes a single user's routines on demand, typically
// when the user opens their schedule. Runs for the same user are serialized;
// different users proceed in parallel.
type CatchUpHandler struct {
	routines     domain.RoutineRepository
	materializer *Materializer
	locks        *userLocks
	logger       *slog.Logger
}

// NewCatchUpHandler creates a catch-up handler.
func NewCatchUpHandler(routines domain.RoutineRepository, materializer *Materializer, logger *slog.Logger) *CatchUpHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &CatchUpHandler{
		routines:     routines,
		materializer: materializer,
		locks:        newUserLocks(),
		logger:       logger,
	}
}

// RunForUser materializes every eligible routine of the user up to until.
// A routine that fails is logged and skipped; the rest of the batch runs.
func (h *CatchUpHandler) RunForUser(ctx context.Context, userID string, until time.Time) (CatchUpResult, error) {
	unlock := h.locks.Acquire(userID)
	defer unlock()

	eligible, err := h.routines.FindEligible(ctx, userID, until)
	if err != nil {
		return CatchUpResult{}, fmt.Errorf("finding eligible routines: %w", err)
	}

	var result CatchUpResult
	for _, routine := range eligible {
		if routine.Bootstrap() {
			if err := h.routines.Save(ctx, routine); err != nil {
				h.logger.Error("bootstrapping routine cursor",
					"routine_id", routine.ID(), "error", err)
				continue
			}
		}

		res, err := h.materializer.Materialize(ctx, routine, until)
		if err != nil {
			h.logger.Error("materializing routine",
				"routine_id", routine.ID(), "user_id", userID, "error", err)
			continue
		}
		result.Routines++
		result.Created += res.Created
	}

	return result, nil
}
