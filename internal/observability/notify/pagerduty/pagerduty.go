// Package pagerduty delivers dead-letter alerts through the PagerDuty
// Events API v2.
package pagerduty

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

	"github.com/croutons-ai/precog/internal/observability/notify"
)

// DefaultEndpoint is the Events API v2 ingest URL.
const DefaultEndpoint = "https://events.pagerduty.com/v2/enqueue"

// Config captures runtime configuration for the PagerDuty sink.
type Config struct {
	RoutingKey string
	Source     string
	Component  string
	Endpoint   string // Optional: overridden in tests
	Timeout    time.Duration
	RetryLimit int
	Client     *http.Client
}

// Client publishes trigger events via PagerDuty's Events API v2.
type Client struct {
	routingKey string
	source     string
	component  string
	endpoint   string
	retryLimit int
	client     *http.Client
}

var _ notify.Sink = (*Client)(nil)

// NewClient constructs a PagerDuty events client. A routing key is required.
func NewClient(cfg Config) (*Client, error) {
	key := strings.TrimSpace(cfg.RoutingKey)
	if key == "" {
		return nil, errors.New("pagerduty routing key is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	hc := cfg.Client
	if hc == nil {
		hc = &http.Client{Timeout: timeout}
	}
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}

	return &Client{
		routingKey: key,
		source:     orDefault(cfg.Source, "precog"),
		component:  orDefault(cfg.Component, "precog"),
		endpoint:   endpoint,
		retryLimit: max(cfg.RetryLimit, 0),
		client:     hc,
	}, nil
}

// SendDeadLetter triggers a PagerDuty incident for the exhausted job.
func (c *Client) SendDeadLetter(ctx context.Context, alert notify.DeadLetterAlert) error {
	body, err := json.Marshal(c.event(alert))
	if err != nil {
		return fmt.Errorf("encode pagerduty payload: %w", err)
	}

	attempts := c.retryLimit + 1
	var lastErr error
	for attempt := range attempts {
		if lastErr = c.submit(ctx, body); lastErr == nil {
			return nil
		}
		if attempt == attempts-1 {
			break
		}
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
	return lastErr
}

func (c *Client) event(alert notify.DeadLetterAlert) map[string]any {
	failedAt := alert.FailedAt.UTC()
	if failedAt.IsZero() {
		failedAt = time.Now().UTC()
	}

	// Dedup on precog:job so redeliveries of the same job update one
	// incident instead of paging repeatedly.
	dedupKey := strings.Trim(alert.Precog+":"+alert.JobID, ":")

	return map[string]any{
		"routing_key":  c.routingKey,
		"event_action": "trigger",
		"dedup_key":    dedupKey,
		"payload": map[string]any{
			"summary": fmt.Sprintf("Job %s (%s) dead-lettered after %d retries",
				orDefault(alert.JobID, "unknown"),
				orDefault(alert.Precog, "unknown"),
				alert.Retries),
			"severity":  "critical",
			"source":    c.source,
			"component": c.component,
			"timestamp": failedAt.Format(time.RFC3339),
			"custom_details": map[string]any{
				"job_id":      alert.JobID,
				"precog":      alert.Precog,
				"task":        alert.Task,
				"error":       alert.Error,
				"error_class": alert.ErrorClass,
				"retries":     alert.Retries,
			},
		},
	}
}

func (c *Client) submit(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create pagerduty request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("pagerduty request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("pagerduty api %s: %s", resp.Status, strings.TrimSpace(string(detail)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func orDefault(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}
