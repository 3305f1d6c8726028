// Package sms delivers job notifications to translators as text messages
// through an HTTP SMS gateway.
package sms

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

// Config captures the subset of SMS gateway behaviour we need.
type Config struct {
	GatewayURL string
	Sender     string
	AuthToken  string
	Timeout    time.Duration
	RetryLimit int
	Client     *http.Client
}

// Client posts text messages to the SMS gateway.
type Client struct {
	gatewayURL string
	sender     string
	authToken  string
	retryLimit int
	client     *http.Client
}

var _ notify.Gateway = (*Client)(nil)

// NewClient builds an SMS gateway client. Callers should pass a validated config.
func NewClient(cfg Config) (*Client, error) {
	gatewayURL := strings.TrimSpace(cfg.GatewayURL)
	if gatewayURL == "" {
		return nil, errors.New("sms gateway url is required")
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

	sender := strings.TrimSpace(cfg.Sender)
	if sender == "" {
		sender = "dispatchd"
	}

	return &Client{
		gatewayURL: gatewayURL,
		sender:     sender,
		authToken:  strings.TrimSpace(cfg.AuthToken),
		retryLimit: retries,
		client:     hc,
	}, nil
}

// Send delivers one text message to one translator.
func (c *Client) Send(ctx context.Context, translatorID string, msg notify.Message) error {
	if strings.TrimSpace(translatorID) == "" {
		return errors.New("translator id is required")
	}

	payload := map[string]any{
		"to":     translatorID,
		"from":   c.sender,
		"text":   FormatText(msg),
		"job_id": msg.JobID,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode sms payload: %w", err)
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

// FormatText renders the message body sent over SMS. Immediate and scheduled
// bookings use different templates, matching what translators expect to read.
func FormatText(msg notify.Message) string {
	if msg.Kind == notify.KindStatus {
		if msg.Body != "" {
			return msg.Body
		}
		return fmt.Sprintf("Update on booking %s (%s -> %s).",
			msg.JobID, msg.FromLanguage, msg.ToLanguage)
	}

	if msg.Immediate {
		return fmt.Sprintf(
			"New immediate %s -> %s booking (%d min). Open the app to accept. Ref %s.",
			msg.FromLanguage, msg.ToLanguage, msg.DurationMinutes, msg.JobID,
		)
	}

	due := msg.DueAt.UTC().Format("2006-01-02 15:04")
	return fmt.Sprintf(
		"New %s -> %s booking on %s (%d min). Open the app to accept. Ref %s.",
		msg.FromLanguage, msg.ToLanguage, due, msg.DurationMinutes, msg.JobID,
	)
}

func (c *Client) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.gatewayURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create sms request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("sms request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, readErr := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if readErr != nil {
			return fmt.Errorf("sms gateway %s: read response: %w", resp.Status, readErr)
		}
		return fmt.Errorf("sms gateway %s: %s", resp.Status, strings.TrimSpace(string(respBody)))
	}

	if _, err := io.Copy(io.Discard, resp.Body); err != nil {
		return fmt.Errorf("drain sms response body: %w", err)
	}
	return nil
}
