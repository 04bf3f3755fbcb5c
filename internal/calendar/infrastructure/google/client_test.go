package google

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goalpost-app/goalpost/internal/shared/infrastructure/httpretry"
)

func testClient(serverURL string) *Client {
	policy := httpretry.DefaultPolicy()
	policy.Sleep = func(time.Duration) {}
	policy.RandInt64 = func(int64) int64 { return 0 }
	return NewClient(httpretry.New(policy, nil), nil).WithBaseURL(serverURL)
}

func TestListEvents_FollowsPageTokens(t *testing.T) {
	var pages []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		pageToken := r.URL.Query().Get("pageToken")
		pages = append(pages, pageToken)

		w.Header().Set("Content-Type", "application/json")
		switch pageToken {
		case "":
			json.NewEncoder(w).Encode(map[string]any{
				"items": []map[string]any{
					{"id": "e1", "summary": "First", "start": map[string]string{"dateTime": "2026-09-01T09:00:00Z"}, "end": map[string]string{"dateTime": "2026-09-01T09:30:00Z"}},
				},
				"nextPageToken": "p2",
			})
		case "p2":
			json.NewEncoder(w).Encode(map[string]any{
				"items": []map[string]any{
					{"id": "e2", "summary": "Second", "start": map[string]string{"date": "2026-09-02"}},
				},
				"nextSyncToken": "sync-1",
			})
		default:
			t.Errorf("unexpected page token %q", pageToken)
		}
	}))
	defer server.Close()

	page, err := testClient(server.URL).ListEvents(context.Background(), "tok", "primary", EventQuery{
		TimeMin: time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
		TimeMax: time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("ListEvents: %v", err)
	}

	if len(pages) != 2 {
		t.Fatalf("expected 2 requests, got %d", len(pages))
	}
	if len(page.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(page.Items))
	}
	if page.NextSyncToken != "sync-1" {
		t.Errorf("expected sync token sync-1, got %q", page.NextSyncToken)
	}

	timed := page.Items[0]
	if timed.DurationMinutes != 30 {
		t.Errorf("expected 30 minute duration, got %d", timed.DurationMinutes)
	}
	allDay := page.Items[1]
	if !allDay.AllDay || allDay.DurationMinutes != 1440 {
		t.Errorf("expected all-day 1440 minute event, got allDay=%v duration=%d", allDay.AllDay, allDay.DurationMinutes)
	}
}

func TestListEvents_SyncTokenQuery(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("syncToken") != "sync-1" {
			t.Errorf("expected syncToken=sync-1, got %q", q.Get("syncToken"))
		}
		if q.Get("timeMin") != "" {
			t.Errorf("time window must not be sent with a sync token")
		}
		json.NewEncoder(w).Encode(map[string]any{"items": []any{}, "nextSyncToken": "sync-2"})
	}))
	defer server.Close()

	page, err := testClient(server.URL).ListEvents(context.Background(), "tok", "primary", EventQuery{SyncToken: "sync-1"})
	if err != nil {
		t.Fatalf("ListEvents: %v", err)
	}
	if page.NextSyncToken != "sync-2" {
		t.Errorf("expected sync-2, got %q", page.NextSyncToken)
	}
}

func TestListEvents_InvalidSyncToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusGone)
	}))
	defer server.Close()

	_, err := testClient(server.URL).ListEvents(context.Background(), "tok", "primary", EventQuery{SyncToken: "stale"})
	if !errors.Is(err, ErrInvalidSyncToken) {
		t.Fatalf("expected ErrInvalidSyncToken, got %v", err)
	}
}

func TestInsertEvent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		var body wireEvent
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decoding body: %v", err)
		}
		if body.Summary != "Gym" {
			t.Errorf("expected summary Gym, got %q", body.Summary)
		}
		if body.Start == nil || body.Start.DateTime != "2026-09-01T09:00:00Z" {
			t.Errorf("unexpected start: %+v", body.Start)
		}
		if body.End == nil || body.End.DateTime != "2026-09-01T09:45:00Z" {
			t.Errorf("unexpected end: %+v", body.End)
		}
		json.NewEncoder(w).Encode(map[string]string{"id": "created-1"})
	}))
	defer server.Close()

	id, err := testClient(server.URL).InsertEvent(context.Background(), "tok", "primary", EventPayload{
		Summary:         "Gym",
		Start:           time.Date(2026, 9, 1, 9, 0, 0, 0, time.UTC),
		DurationMinutes: 45,
	})
	if err != nil {
		t.Fatalf("InsertEvent: %v", err)
	}
	if id != "created-1" {
		t.Errorf("expected created-1, got %q", id)
	}
}

func TestDeleteEvent_MissingIsSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	if err := testClient(server.URL).DeleteEvent(context.Background(), "tok", "primary", "gone"); err != nil {
		t.Fatalf("DeleteEvent: %v", err)
	}
}

func TestNormalizeEvent_Defaults(t *testing.T) {
	ev := normalizeEvent(wireEvent{
		ID:      "e1",
		Status:  "cancelled",
		Updated: "2026-09-01T10:00:00Z",
		Start:   &eventTime{DateTime: "2026-09-01T09:00:00Z"},
	})
	if !ev.Cancelled() {
		t.Error("expected cancelled")
	}
	if ev.DurationMinutes != 60 {
		t.Errorf("expected default 60 minutes, got %d", ev.DurationMinutes)
	}
	if ev.Updated.IsZero() {
		t.Error("expected parsed updated timestamp")
	}
}
