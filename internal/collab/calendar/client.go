// Package calendar provides an HTTP client for the external calendar
// service that owns provider calendars. The scheduling platform is the
// source of truth for bookings; calendar events are projections and every
// call here is best effort from the caller's point of view.
package calendar

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/coachpoint/scheduling-platform/pkg/logging"
)

const defaultTimeout = 10 * time.Second

// Client talks to the calendar service REST API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *logging.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// NewClient creates a calendar service client.
func NewClient(baseURL, apiKey string, logger *logging.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = logging.Default()
	}
	c := &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
		logger: logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Event describes a calendar event for creation or reschedule.
type Event struct {
	ProviderID  string `json:"provider_id"`
	ClientID    string `json:"client_id"`
	Date        string `json:"date"` // YYYY-MM-DD
	Time        string `json:"time"` // HH:MM
	DurationMin int    `json:"duration_minutes"`
	Title       string `json:"title,omitempty"`
}

// CreateEvent creates a calendar event and returns its id.
func (c *Client) CreateEvent(ctx context.Context, ev Event) (string, error) {
	var resp struct {
		ID string `json:"id"`
	}
	if err := c.do(ctx, http.MethodPost, "/v1/events", ev, &resp); err != nil {
		return "", fmt.Errorf("calendar: create event: %w", err)
	}
	return resp.ID, nil
}

// CancelEvent removes a calendar event. When notify is true the calendar
// service emails the attendees.
func (c *Client) CancelEvent(ctx context.Context, eventID string, notify bool) error {
	path := fmt.Sprintf("/v1/events/%s?notify=%t", eventID, notify)
	if err := c.do(ctx, http.MethodDelete, path, nil, nil); err != nil {
		return fmt.Errorf("calendar: cancel event %s: %w", eventID, err)
	}
	return nil
}

// RescheduleEvent moves an existing event to a new date and time.
func (c *Client) RescheduleEvent(ctx context.Context, eventID, date, startTime string) error {
	body := map[string]string{"date": date, "time": startTime}
	path := fmt.Sprintf("/v1/events/%s/reschedule", eventID)
	if err := c.do(ctx, http.MethodPost, path, body, nil); err != nil {
		return fmt.Errorf("calendar: reschedule event %s: %w", eventID, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body, result any) error {
	var reader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("calendar API returned %d: %s", resp.StatusCode, string(respBody[:min(200, len(respBody))]))
	}
	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}
	return nil
}
