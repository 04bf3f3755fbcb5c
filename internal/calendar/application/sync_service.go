// Package application implements bidirectional calendar synchronization
// between local events and a remote provider.
package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"

	calendardomain "github.com/goalpost-app/goalpost/internal/calendar/domain"
	"github.com/goalpost-app/goalpost/internal/calendar/infrastructure/google"
	routinesdomain "github.com/goalpost-app/goalpost/internal/routines/domain"
)

// Import windows used when no incremental sync token exists.
const (
	importLookback  = 30 * 24 * time.Hour
	importLookahead = 60 * 24 * time.Hour
)

// TokenProvider hands out valid provider access tokens.
type TokenProvider interface {
	GetValidToken(ctx context.Context, userID string) (string, error)
}

// CalendarAPI is the remote calendar surface the sync engine needs.
type CalendarAPI interface {
	ListEvents(ctx context.Context, token, calendarID string, query google.EventQuery) (google.EventPage, error)
	InsertEvent(ctx context.Context, token, calendarID string, payload google.EventPayload) (string, error)
	UpdateEvent(ctx context.Context, token, calendarID, eventID string, payload google.EventPayload) error
	DeleteEvent(ctx context.Context, token, calendarID, eventID string) error
}

// SyncResult aggregates one sync run. Per-item failures land in Errors;
// the run itself still counts as successful.
type SyncResult struct {
	Imported  int
	Exported  int
	Updated   int
	Conflicts int
	Errors    []string
}

func (r *SyncResult) merge(other SyncResult) {
	r.Imported += other.Imported
	r.Exported += other.Exported
	r.Updated += other.Updated
	r.Conflicts += other.Conflicts
	r.Errors = append(r.Errors, other.Errors...)
}

// SyncService reconciles local events with a remote calendar. Remote calls
// go through a circuit breaker so a dead API fails fast across a batch.
type SyncService struct {
	events  routinesdomain.EventRepository
	cursors calendardomain.SyncCursorRepository
	tokens  TokenProvider
	api     CalendarAPI
	breaker *gobreaker.CircuitBreaker[any]
	logger  *slog.Logger
	now     func() time.Time
}

// NewSyncService creates a sync service.
func NewSyncService(
	events routinesdomain.EventRepository,
	cursors calendardomain.SyncCursorRepository,
	tokens TokenProvider,
	api CalendarAPI,
	logger *slog.Logger,
) *SyncService {
	if logger == nil {
		logger = slog.Default()
	}
	breaker := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:    "calendar-api",
		Timeout: 60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})
	return &SyncService{
		events:  events,
		cursors: cursors,
		tokens:  tokens,
		api:     api,
		breaker: breaker,
		logger:  logger,
		now:     time.Now,
	}
}

// SyncFrom imports remote changes into local events. The first sync fetches
// a fixed window around now; later syncs use the provider's incremental
// token. A rejected token falls back to a fresh window fetch.
func (s *SyncService) SyncFrom(ctx context.Context, userID, calendarID string) (SyncResult, error) {
	var result SyncResult

	token, err := s.tokens.GetValidToken(ctx, userID)
	if err != nil {
		return result, err
	}

	cursor, err := s.cursors.FindByUserAndCalendar(ctx, userID, calendarID)
	if errors.Is(err, calendardomain.ErrCursorNotFound) {
		cursor = calendardomain.NewSyncCursor(userID, calendarID)
	} else if err != nil {
		return result, err
	}

	page, err := s.listEvents(ctx, token, calendarID, cursor.SyncToken())
	if errors.Is(err, google.ErrInvalidSyncToken) {
		cursor.ResetSyncToken()
		page, err = s.listEvents(ctx, token, calendarID, "")
	}
	if err != nil {
		cursor.MarkSyncFailure(err)
		if saveErr := s.cursors.Save(ctx, cursor); saveErr != nil {
			s.logger.Error("saving sync cursor after failure", "error", saveErr)
		}
		return result, fmt.Errorf("listing remote events: %w", err)
	}

	lastSync := cursor.LastSyncedAt()
	for _, item := range page.Items {
		if err := s.importItem(ctx, userID, calendarID, item, lastSync, &result); err != nil {
			result.Errors = append(result.Errors,
				fmt.Sprintf("import %s: %v", item.ID, err))
		}
	}

	cursor.MarkSyncSuccess(page.NextSyncToken)
	if err := s.cursors.Save(ctx, cursor); err != nil {
		return result, fmt.Errorf("saving sync cursor: %w", err)
	}

	s.logger.Info("import finished",
		"user_id", userID, "calendar_id", calendarID,
		"imported", result.Imported, "updated", result.Updated,
		"conflicts", result.Conflicts, "errors", len(result.Errors))
	return result, nil
}

func (s *SyncService) listEvents(ctx context.Context, token, calendarID, syncToken string) (google.EventPage, error) {
	query := google.EventQuery{SyncToken: syncToken}
	if syncToken == "" {
		now := s.now().UTC()
		query.TimeMin = now.Add(-importLookback)
		query.TimeMax = now.Add(importLookahead)
	}
	page, err := s.breaker.Execute(func() (any, error) {
		return s.api.ListEvents(ctx, token, calendarID, query)
	})
	if err != nil {
		return google.EventPage{}, err
	}
	return page.(google.EventPage), nil
}

// importItem reconciles one remote item. A remote edit newer than the last
// sync wins unless the local copy was also edited since then, in which case
// the local copy stays and a conflict is recorded.
func (s *SyncService) importItem(ctx context.Context, userID, calendarID string, item google.RemoteEvent, lastSync time.Time, result *SyncResult) error {
	local, err := s.events.FindByRemote(ctx, userID, item.ID, calendarID)
	if errors.Is(err, routinesdomain.ErrEventNotFound) {
		if item.Cancelled() {
			return nil
		}
		imported := routinesdomain.NewImportedEvent(
			userID, item.Summary, item.Description,
			item.Start, item.DurationMinutes, item.ID, calendarID)
		if err := s.events.Save(ctx, imported); err != nil {
			return err
		}
		result.Imported++
		return nil
	}
	if err != nil {
		return err
	}

	if item.Cancelled() {
		if local.Deleted() {
			return nil
		}
		local.SoftDelete()
		if err := s.events.Save(ctx, local); err != nil {
			return err
		}
		result.Updated++
		return nil
	}

	if !item.Updated.After(lastSync) {
		return nil
	}
	if local.EditedSince(lastSync) && !lastSync.IsZero() {
		result.Conflicts++
		return nil
	}

	local.Rename(item.Summary, item.Description)
	local.Reschedule(item.Start)
	local.SetDuration(item.DurationMinutes)
	local.MarkSynced(s.now().UTC())
	if err := s.events.Save(ctx, local); err != nil {
		return err
	}
	result.Updated++
	return nil
}

// SyncTo exports local outbound events to the remote calendar. Events with
// a remote id are updated in place; the rest are inserted and linked.
func (s *SyncService) SyncTo(ctx context.Context, userID, calendarID string) (SyncResult, error) {
	var result SyncResult

	token, err := s.tokens.GetValidToken(ctx, userID)
	if err != nil {
		return result, err
	}

	exportable, err := s.events.FindExportable(ctx, userID)
	if err != nil {
		return result, fmt.Errorf("finding exportable events: %w", err)
	}

	for _, event := range exportable {
		if err := s.exportEvent(ctx, token, calendarID, event, &result); err != nil {
			result.Errors = append(result.Errors,
				fmt.Sprintf("export %s: %v", event.ID(), err))
		}
	}

	s.logger.Info("export finished",
		"user_id", userID, "calendar_id", calendarID,
		"exported", result.Exported, "updated", result.Updated,
		"errors", len(result.Errors))
	return result, nil
}

func (s *SyncService) exportEvent(ctx context.Context, token, calendarID string, event *routinesdomain.Event, result *SyncResult) error {
	payload := google.EventPayload{
		Summary:         event.Name(),
		Description:     event.Description(),
		Start:           *event.Scheduled(),
		DurationMinutes: event.DurationMinutes(),
	}

	if remoteID := event.RemoteEventID(); remoteID != "" {
		_, err := s.breaker.Execute(func() (any, error) {
			return nil, s.api.UpdateEvent(ctx, token, calendarID, remoteID, payload)
		})
		if err != nil {
			return err
		}
		result.Updated++
	} else {
		created, err := s.breaker.Execute(func() (any, error) {
			return s.api.InsertEvent(ctx, token, calendarID, payload)
		})
		if err != nil {
			return err
		}
		event.LinkRemote(created.(string), calendarID)
		result.Exported++
	}

	event.MarkSynced(s.now().UTC())
	return s.events.Save(ctx, event)
}

// SyncBidirectional imports then exports. An import failure aborts; an
// export failure after a successful import still returns the import counts
// alongside the error.
func (s *SyncService) SyncBidirectional(ctx context.Context, userID, calendarID string) (SyncResult, error) {
	result, err := s.SyncFrom(ctx, userID, calendarID)
	if err != nil {
		return result, err
	}

	exported, err := s.SyncTo(ctx, userID, calendarID)
	result.merge(exported)
	if err != nil {
		return result, fmt.Errorf("export after import: %w", err)
	}
	return result, nil
}
