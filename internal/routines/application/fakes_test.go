package application

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/goalpost-app/goalpost/internal/routines/domain"
)

type fakeRoutineRepo struct {
	mu       sync.Mutex
	routines map[uuid.UUID]*domain.Routine
}

func newFakeRoutineRepo(routines ...*domain.Routine) *fakeRoutineRepo {
	r := &fakeRoutineRepo{routines: make(map[uuid.UUID]*domain.Routine)}
	for _, routine := range routines {
		r.routines[routine.ID()] = routine
	}
	return r
}

func (r *fakeRoutineRepo) Save(_ context.Context, routine *domain.Routine) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.routines[routine.ID()] = routine
	return nil
}

func (r *fakeRoutineRepo) FindByID(_ context.Context, id uuid.UUID) (*domain.Routine, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	routine, ok := r.routines[id]
	if !ok {
		return nil, domain.ErrRoutineNotFound
	}
	return routine, nil
}

func (r *fakeRoutineRepo) FindEligible(_ context.Context, userID string, until time.Time) ([]*domain.Routine, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Routine
	for _, routine := range r.routines {
		if routine.UserID() != userID {
			continue
		}
		if routine.Next() == nil || routine.Next().Before(until) {
			out = append(out, routine)
		}
	}
	return out, nil
}

func (r *fakeRoutineRepo) FindNeedingGeneration(_ context.Context, horizon time.Time) ([]*domain.Routine, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Routine
	for _, routine := range r.routines {
		if routine.Next() == nil || routine.Next().Before(horizon) {
			out = append(out, routine)
		}
	}
	return out, nil
}

func (r *fakeRoutineRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.routines, id)
	return nil
}

type fakeEventRepo struct {
	mu     sync.Mutex
	events map[uuid.UUID]*domain.Event
}

func newFakeEventRepo() *fakeEventRepo {
	return &fakeEventRepo{events: make(map[uuid.UUID]*domain.Event)}
}

func (r *fakeEventRepo) Save(_ context.Context, event *domain.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events[event.ID()] = event
	return nil
}

func (r *fakeEventRepo) FindByID(_ context.Context, id uuid.UUID) (*domain.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	event, ok := r.events[id]
	if !ok {
		return nil, domain.ErrEventNotFound
	}
	return event, nil
}

func (r *fakeEventRepo) ExistsAt(_ context.Context, routineID uuid.UUID, t time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.events {
		if e.Deleted() || e.ParentID() == nil || *e.ParentID() != routineID {
			continue
		}
		if e.Scheduled() != nil && e.Scheduled().Equal(t) {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeEventRepo) FindByRemote(_ context.Context, userID, remoteEventID, remoteCalendarID string) (*domain.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.events {
		if e.UserID() == userID && e.RemoteEventID() == remoteEventID && e.RemoteCalendarID() == remoteCalendarID {
			return e, nil
		}
	}
	return nil, domain.ErrEventNotFound
}

func (r *fakeEventRepo) FindExportable(_ context.Context, userID string) ([]*domain.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Event
	for _, e := range r.events {
		if e.UserID() == userID && e.Exportable() {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *fakeEventRepo) FindFuture(_ context.Context, routineID uuid.UUID, from time.Time) ([]*domain.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Event
	for _, e := range r.events {
		if e.Deleted() || e.ParentID() == nil || *e.ParentID() != routineID {
			continue
		}
		if e.Scheduled() != nil && !e.Scheduled().Before(from) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *fakeEventRepo) FindFutureInBatch(_ context.Context, batchID string, from time.Time) ([]*domain.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Event
	for _, e := range r.events {
		if e.Deleted() || e.BatchID() != batchID {
			continue
		}
		if e.Scheduled() != nil && !e.Scheduled().Before(from) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *fakeEventRepo) live(routineID uuid.UUID) []*domain.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Event
	for _, e := range r.events {
		if !e.Deleted() && e.ParentID() != nil && *e.ParentID() == routineID {
			out = append(out, e)
		}
	}
	return out
}

type fakeSkipRepo struct {
	mu    sync.Mutex
	skips map[string]*domain.SkipException
}

func newFakeSkipRepo() *fakeSkipRepo {
	return &fakeSkipRepo{skips: make(map[string]*domain.SkipException)}
}

func skipKey(routineID uuid.UUID, t time.Time, kind domain.SkipKind) string {
	return fmt.Sprintf("%s|%d|%s", routineID, t.Unix(), kind)
}

func (r *fakeSkipRepo) Create(_ context.Context, skip *domain.SkipException) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := skipKey(skip.RoutineID, skip.OccursAt, skip.Kind)
	if _, ok := r.skips[key]; !ok {
		r.skips[key] = skip
	}
	return nil
}

func (r *fakeSkipRepo) ListRange(_ context.Context, routineID uuid.UUID, from, until time.Time) ([]*domain.SkipException, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.SkipException
	for _, s := range r.skips {
		if s.RoutineID != routineID {
			continue
		}
		if !s.OccursAt.Before(from) && s.OccursAt.Before(until) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *fakeSkipRepo) ClearFrom(_ context.Context, routineID uuid.UUID, from time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int
	for key, s := range r.skips {
		if s.RoutineID == routineID && !s.OccursAt.Before(from) {
			delete(r.skips, key)
			n++
		}
	}
	return n, nil
}

func (r *fakeSkipRepo) ClearAll(_ context.Context, routineID uuid.UUID) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int
	for key, s := range r.skips {
		if s.RoutineID == routineID {
			delete(r.skips, key)
			n++
		}
	}
	return n, nil
}
