// Package google is a thin REST client for the Google Calendar v3 API,
// covering the list/insert/update/delete surface the sync engine needs.
package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	shareddomain "github.com/goalpost-app/goalpost/internal/shared/domain"
	"github.com/goalpost-app/goalpost/internal/shared/infrastructure/httpretry"
)

const defaultBaseURL = "https://www.googleapis.com/calendar/v3"

// ErrInvalidSyncToken is returned when the API rejects a stored sync token.
// The caller must discard the token and restart with a full window fetch.
var ErrInvalidSyncToken = errors.New("sync token no longer valid")

// Client calls the Calendar API through the shared retrying HTTP client.
type Client struct {
	http    *httpretry.Client
	baseURL string
	logger  *slog.Logger
}

// NewClient creates a calendar API client.
func NewClient(http *httpretry.Client, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{http: http, baseURL: defaultBaseURL, logger: logger}
}

// WithBaseURL overrides the API endpoint. Used in tests.
func (c *Client) WithBaseURL(base string) *Client {
	c.baseURL = base
	return c
}

// Calendar is one entry of the user's calendar list.
type Calendar struct {
	ID      string `json:"id"`
	Summary string `json:"summary"`
	Primary bool   `json:"primary"`
}

// RemoteEvent is a normalized calendar item.
type RemoteEvent struct {
	ID              string
	Summary         string
	Description     string
	Status          string
	Updated         time.Time
	Start           time.Time
	DurationMinutes int
	AllDay          bool
}

// Cancelled reports whether the remote copy was deleted.
func (e RemoteEvent) Cancelled() bool { return e.Status == "cancelled" }

// EventQuery selects what ListEvents fetches. A non-empty SyncToken takes
// precedence over the time window.
type EventQuery struct {
	SyncToken string
	TimeMin   time.Time
	TimeMax   time.Time
}

// EventPage is the full result of a ListEvents call, pages already merged.
type EventPage struct {
	Items         []RemoteEvent
	NextSyncToken string
}

type eventTime struct {
	Date     string `json:"date,omitempty"`
	DateTime string `json:"dateTime,omitempty"`
}

type wireEvent struct {
	ID          string     `json:"id,omitempty"`
	Summary     string     `json:"summary,omitempty"`
	Description string     `json:"description,omitempty"`
	Status      string     `json:"status,omitempty"`
	Updated     string     `json:"updated,omitempty"`
	Start       *eventTime `json:"start,omitempty"`
	End         *eventTime `json:"end,omitempty"`
}

type eventListResponse struct {
	Items         []wireEvent `json:"items"`
	NextPageToken string      `json:"nextPageToken"`
	NextSyncToken string      `json:"nextSyncToken"`
}

type calendarListResponse struct {
	Items []Calendar `json:"items"`
}

// ListCalendars returns the user's calendar list.
func (c *Client) ListCalendars(ctx context.Context, token string) ([]Calendar, error) {
	resp, err := c.http.Get(ctx, c.baseURL+"/users/me/calendarList", token)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, responseError("list calendars", resp)
	}

	var list calendarListResponse
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return nil, fmt.Errorf("decoding calendar list: %w", err)
	}
	return list.Items, nil
}

// ListEvents fetches events, following page tokens until exhausted. With a
// sync token only changes since the last sync come back, including
// cancelled items.
func (c *Client) ListEvents(ctx context.Context, token, calendarID string, query EventQuery) (EventPage, error) {
	var page EventPage
	pageToken := ""

	for {
		params := url.Values{}
		params.Set("maxResults", "250")
		params.Set("singleEvents", "true")
		if query.SyncToken != "" {
			params.Set("syncToken", query.SyncToken)
		} else {
			params.Set("timeMin", query.TimeMin.UTC().Format(time.RFC3339))
			params.Set("timeMax", query.TimeMax.UTC().Format(time.RFC3339))
		}
		if pageToken != "" {
			params.Set("pageToken", pageToken)
		}

		endpoint := fmt.Sprintf("%s/calendars/%s/events?%s",
			c.baseURL, url.PathEscape(calendarID), params.Encode())

		resp, err := c.http.Get(ctx, endpoint, token)
		if err != nil {
			return page, err
		}

		if resp.StatusCode == http.StatusGone {
			resp.Body.Close()
			return page, ErrInvalidSyncToken
		}
		if resp.StatusCode != http.StatusOK {
			defer resp.Body.Close()
			return page, responseError("list events", resp)
		}

		var list eventListResponse
		err = json.NewDecoder(resp.Body).Decode(&list)
		resp.Body.Close()
		if err != nil {
			return page, fmt.Errorf("decoding event list: %w", err)
		}

		for _, item := range list.Items {
			page.Items = append(page.Items, normalizeEvent(item))
		}

		if list.NextSyncToken != "" {
			page.NextSyncToken = list.NextSyncToken
		}
		if list.NextPageToken == "" {
			return page, nil
		}
		pageToken = list.NextPageToken
	}
}

// EventPayload is what insert and update push to the API.
type EventPayload struct {
	Summary         string
	Description     string
	Start           time.Time
	DurationMinutes int
}

// InsertEvent creates a remote event and returns its id.
func (c *Client) InsertEvent(ctx context.Context, token, calendarID string, payload EventPayload) (string, error) {
	body, err := json.Marshal(payloadToWire(payload))
	if err != nil {
		return "", err
	}

	endpoint := fmt.Sprintf("%s/calendars/%s/events", c.baseURL, url.PathEscape(calendarID))
	resp, err := c.http.Post(ctx, endpoint, token, body)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", responseError("insert event", resp)
	}

	var created wireEvent
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return "", fmt.Errorf("decoding created event: %w", err)
	}
	return created.ID, nil
}

// UpdateEvent overwrites a remote event.
func (c *Client) UpdateEvent(ctx context.Context, token, calendarID, eventID string, payload EventPayload) error {
	body, err := json.Marshal(payloadToWire(payload))
	if err != nil {
		return err
	}

	endpoint := fmt.Sprintf("%s/calendars/%s/events/%s",
		c.baseURL, url.PathEscape(calendarID), url.PathEscape(eventID))
	resp, err := c.http.Put(ctx, endpoint, token, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return responseError("update event", resp)
	}
	return nil
}

// DeleteEvent removes a remote event. A missing event counts as success.
func (c *Client) DeleteEvent(ctx context.Context, token, calendarID, eventID string) error {
	endpoint := fmt.Sprintf("%s/calendars/%s/events/%s",
		c.baseURL, url.PathEscape(calendarID), url.PathEscape(eventID))
	resp, err := c.http.Delete(ctx, endpoint, token)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusNoContent, http.StatusNotFound, http.StatusGone:
		return nil
	}
	return responseError("delete event", resp)
}

func payloadToWire(p EventPayload) wireEvent {
	start := p.Start.UTC()
	end := start.Add(time.Duration(p.DurationMinutes) * time.Minute)
	return wireEvent{
		Summary:     p.Summary,
		Description: p.Description,
		Start:       &eventTime{DateTime: start.Format(time.RFC3339)},
		End:         &eventTime{DateTime: end.Format(time.RFC3339)},
	}
}

// normalizeEvent converts a wire event. All-day events carry only a date
// and become 1440-minute occurrences at midnight UTC; timed events derive
// their duration from start/end, defaulting to 60 minutes when the end is
// absent or unparseable.
func normalizeEvent(w wireEvent) RemoteEvent {
	ev := RemoteEvent{
		ID:              w.ID,
		Summary:         w.Summary,
		Description:     w.Description,
		Status:          w.Status,
		DurationMinutes: 60,
	}
	if w.Updated != "" {
		if t, err := time.Parse(time.RFC3339, w.Updated); err == nil {
			ev.Updated = t.UTC()
		}
	}
	if w.Start == nil {
		return ev
	}

	if w.Start.Date != "" {
		if t, err := time.Parse("2006-01-02", w.Start.Date); err == nil {
			ev.Start = t.UTC()
			ev.AllDay = true
			ev.DurationMinutes = 24 * 60
		}
		return ev
	}

	start, err := time.Parse(time.RFC3339, w.Start.DateTime)
	if err != nil {
		return ev
	}
	ev.Start = start.UTC()

	if w.End != nil && w.End.DateTime != "" {
		if end, err := time.Parse(time.RFC3339, w.End.DateTime); err == nil && end.After(start) {
			ev.DurationMinutes = int(end.Sub(start) / time.Minute)
		}
	}
	return ev
}

func responseError(op string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return fmt.Errorf("%s: %w", op, &shareddomain.ExternalServiceError{
		Service: "google-calendar",
		Status:  resp.StatusCode,
		Body:    string(body),
	})
}
