package webhook

// Package webhook posts operator alerts to a generic JSON webhook. Its only
// caller today is the account-deletion path, which must page a human when a
// deletion is left half-finished.

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Config captures how alerts are delivered.
type Config struct {
	WebhookURL string
	Source     string // defaults to "courselens"
	Timeout    time.Duration
	RetryLimit int
	Client     *http.Client
}

// Client delivers operator alerts to a webhook.
type Client struct {
	webhookURL string
	source     string
	retryLimit int
	client     *http.Client
}

// NewClient builds a webhook client. Callers should pass a validated config.
func NewClient(cfg Config) (*Client, error) {
	webhookURL := strings.TrimSpace(cfg.WebhookURL)
	if webhookURL == "" {
		return nil, errors.New("ops webhook url is required")
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

	source := strings.TrimSpace(cfg.Source)
	if source == "" {
		source = "courselens"
	}

	return &Client{
		webhookURL: webhookURL,
		source:     source,
		retryLimit: retries,
		client:     hc,
	}, nil
}

// Alert posts a subject/detail pair, retrying with linear backoff.
func (c *Client) Alert(ctx context.Context, subject, detail string) error {
	body, err := json.Marshal(map[string]any{
		"source":      c.source,
		"subject":     subject,
		"detail":      detail,
		"occurred_at": time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("encode alert payload: %w", err)
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

func (c *Client) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create alert request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("post alert: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("alert webhook returned status %d", resp.StatusCode)
	}
	return nil
}
