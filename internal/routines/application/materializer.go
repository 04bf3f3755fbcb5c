// Package application wires routine materialization: turning recurrence
// patterns into stored events, catching users up on demand, and keeping
// future occurrences consistent under edits.
package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/goalpost-app/goalpost/internal/routines/domain"
)

// MaterializeResult reports what one materialization run produced.
type MaterializeResult struct {
	Created int
	BatchID string
}

// Materializer walks a routine's recurrence from its cursor to a horizon,
// creating one event per valid, non-skipped, not-yet-materialized occurrence.
type Materializer struct {
	routines domain.RoutineRepository
	events   domain.EventRepository
	skips    domain.SkipExceptionRepository
	logger   *slog.Logger
}

// NewMaterializer creates a materializer.
func NewMaterializer(
	routines domain.RoutineRepository,
	events domain.EventRepository,
	skips domain.SkipExceptionRepository,
	logger *slog.Logger,
) *Materializer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Materializer{routines: routines, events: events, skips: skips, logger: logger}
}

// Materialize generates events for routine from its cursor (or start) up to
// and including until. The cursor is advanced to the first occurrence past
// the window, so repeated runs over the same window create nothing new.
func (m *Materializer) Materialize(ctx context.Context, routine *domain.Routine, until time.Time) (MaterializeResult, error) {
	pattern := routine.Frequency()
	current := routine.CursorOrStart()
	until = until.UTC()

	batchID := fmt.Sprintf("%s-%d", routine.ID(), time.Now().UnixMilli())
	result := MaterializeResult{BatchID: batchID}

	skipped, err := m.loadSkips(ctx, routine, current, until)
	if err != nil {
		return result, err
	}

	for !current.After(until) {
		if !pattern.IsValidOccurrence(current) {
			current = pattern.Next(current)
			continue
		}

		scheduled := current
		if tod := routine.TimeOfDayMillis(); tod != nil {
			scheduled = domain.ApplyTimeOfDay(current, *tod)
		}

		if routine.Ended(scheduled) {
			break
		}

		if skipped[scheduled.Unix()] {
			current = pattern.Next(current)
			continue
		}

		exists, err := m.events.ExistsAt(ctx, routine.ID(), scheduled)
		if err != nil {
			return result, fmt.Errorf("checking existing event: %w", err)
		}
		if exists {
			current = pattern.Next(current)
			continue
		}

		event := domain.NewEventFromRoutine(routine, scheduled, batchID)
		if err := m.events.Save(ctx, event); err != nil {
			return result, fmt.Errorf("saving event: %w", err)
		}
		result.Created++

		current = pattern.Next(current)
	}

	routine.AdvanceCursor(current)
	if err := m.routines.Save(ctx, routine); err != nil {
		return result, fmt.Errorf("advancing cursor: %w", err)
	}

	m.logger.Debug("materialized routine",
		"routine_id", routine.ID(), "created", result.Created, "cursor", current)
	return result, nil
}

// loadSkips batch-loads the routine's skip exceptions for the window. The
// window is padded a day on each side so time-of-day shifted timestamps
// still land inside it.
func (m *Materializer) loadSkips(ctx context.Context, routine *domain.Routine, from, until time.Time) (map[int64]bool, error) {
	exceptions, err := m.skips.ListRange(ctx, routine.ID(), from.Add(-24*time.Hour), until.Add(48*time.Hour))
	if err != nil {
		return nil, fmt.Errorf("loading skip exceptions: %w", err)
	}
	skipped := make(map[int64]bool, len(exceptions))
	for _, ex := range exceptions {
		skipped[ex.OccursAt.Unix()] = true
	}
	return skipped, nil
}
