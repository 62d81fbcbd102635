// Package videobot provides an HTTP client for the meeting-recording bot
// service. Bots join video sessions to record and transcribe; when a
// session is paused or cancelled its bot must be torn down so it does not
// join an empty room.
package videobot

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

// Client talks to the video bot REST API.
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

// NewClient creates a video bot service client.
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

// ScheduleBot asks the service to join the given meeting at the given
// time and returns the bot id.
func (c *Client) ScheduleBot(ctx context.Context, meetingURL string, joinAt time.Time) (string, error) {
	body := map[string]string{
		"meeting_url": meetingURL,
		"join_at":     joinAt.UTC().Format(time.RFC3339),
	}
	var resp struct {
		BotID string `json:"bot_id"`
	}
	if err := c.do(ctx, http.MethodPost, "/v1/bots", body, &resp); err != nil {
		return "", fmt.Errorf("videobot: schedule bot: %w", err)
	}
	return resp.BotID, nil
}

// CancelBot tears down a scheduled bot.
func (c *Client) CancelBot(ctx context.Context, botID string) error {
	if err := c.do(ctx, http.MethodDelete, "/v1/bots/"+botID, nil, nil); err != nil {
		return fmt.Errorf("videobot: cancel bot %s: %w", botID, err)
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
		return fmt.Errorf("videobot API returned %d: %s", resp.StatusCode, string(respBody[:min(200, len(respBody))]))
	}
	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}
	return nil
}
