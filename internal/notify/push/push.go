// Package push delivers job notifications to translators through the mobile
// push gateway's JSON webhook.
package push

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tolkdirekt/dispatchd/internal/notify"
)

// Config captures the subset of push gateway behaviour we need.
type Config struct {
	GatewayURL string
	AppID      string
	APIKey     string
	Timeout    time.Duration
	RetryLimit int
	Client     *http.Client
}

// Client posts notification payloads to the push gateway.
type Client struct {
	gatewayURL string
	appID      string
	apiKey     string
	retryLimit int
	client     *http.Client
}

var _ notify.Gateway = (*Client)(nil)

// NewClient builds a push gateway client. Callers should pass a validated config.
func NewClient(cfg Config) (*Client, error) {
	gatewayURL := strings.TrimSpace(cfg.GatewayURL)
	if gatewayURL == "" {
		return nil, errors.New("push gateway url is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	retries := cfg.RetryLimit
	if retries < 0 {
		retries = 0
	}

	hc := cfg.Client
	if hc == nil {
		hc = &http.Client{Timeout: timeout}
	}

	return &Client{
		gatewayURL: gatewayURL,
		appID:      strings.TrimSpace(cfg.AppID),
		apiKey:     strings.TrimSpace(cfg.APIKey),
		retryLimit: retries,
		client:     hc,
	}, nil
}

// Send posts one notification to one translator. Sending the same message
// twice is safe; the gateway treats deliveries as independent events.
func (c *Client) Send(ctx context.Context, translatorID string, msg notify.Message) error {
	if strings.TrimSpace(translatorID) == "" {
		return errors.New("translator id is required")
	}

	body, err := json.Marshal(c.formatPayload(translatorID, msg))
	if err != nil {
		return fmt.Errorf("encode push payload: %w", err)
	}

	attempts := c.retryLimit + 1
	var lastErr error
	for attempt := range attempts {
		err = c.post(ctx, body)
		if err == nil {
			return nil
		}
		lastErr = err
		if attempt < attempts-1 {
			// Simple linear backoff to avoid thundering retries.
			delay := time.Duration(attempt+1) * 200 * time.Millisecond
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				if !timer.Stop() {
					<-timer.C
				}
				return ctx.Err()
			case <-timer.C:
			}
		}
	}

	return lastErr
}

func (c *Client) formatPayload(translatorID string, msg notify.Message) map[string]any {
	data := map[string]any{
		"notification_type": string(msg.Kind),
		"job_id":            msg.JobID,
		"from_language":     msg.FromLanguage,
		"to_language":       msg.ToLanguage,
		"immediate":         msg.Immediate,
		"duration_minutes":  msg.DurationMinutes,
	}
	if !msg.DueAt.IsZero() {
		data["due_at"] = msg.DueAt.UTC().Format(time.RFC3339)
	}

	payload := map[string]any{
		"recipient": translatorID,
		"heading":   headingFor(msg),
		"data":      data,
	}
	if msg.Body != "" {
		payload["contents"] = msg.Body
	}
	if c.appID != "" {
		payload["app_id"] = c.appID
	}
	return payload
}

func headingFor(msg notify.Message) string {
	if msg.Kind == notify.KindStatus {
		return "Booking update"
	}
	if msg.Immediate {
		return "New immediate booking"
	}
	return "New booking"
}

func (c *Client) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.gatewayURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create push request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Basic "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("push request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, readErr := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if readErr != nil {
			return fmt.Errorf("push gateway %s: read response: %w", resp.Status, readErr)
		}
		return fmt.Errorf("push gateway %s: %s", resp.Status, strings.TrimSpace(string(respBody)))
	}

	if _, err := io.Copy(io.Discard, resp.Body); err != nil {
		return fmt.Errorf("drain push response body: %w", err)
	}
	return nil
}
