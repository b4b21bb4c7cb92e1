package pagerduty

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/target/prospector/internal/observability/notify"
)

// APIEndpoint is the PagerDuty Events API v2 ingest URL.
const APIEndpoint = "https://events.pagerduty.com/v2/enqueue"

// Config captures runtime configuration for the PagerDuty sink.
type Config struct {
	RoutingKey string
	Source     string
	Component  string
	Timeout    time.Duration
	RetryLimit int
	Client     *http.Client
	// Endpoint overrides APIEndpoint.
	Endpoint string
}

// Client publishes dead-letter events via PagerDuty's Events API v2.
type Client struct {
	routingKey string
	source     string
	component  string
	endpoint   string
	retryLimit int
	client     *http.Client
}

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

	return &Client{
		routingKey: key,
		source:     fallbackString(cfg.Source, "prospector"),
		component:  fallbackString(cfg.Component, "prospector"),
		endpoint:   fallbackString(cfg.Endpoint, APIEndpoint),
		retryLimit: max(cfg.RetryLimit, 0),
		client:     hc,
	}, nil
}

// SendJobFailure submits a trigger event. Repeated failures of the same job
// share a dedup key so PagerDuty folds them into one incident. Rate limits
// and server errors are retried with exponential backoff; a rejected event
// is not.
func (c *Client) SendJobFailure(ctx context.Context, payload notify.JobFailurePayload) error {
	body, err := json.Marshal(c.buildEvent(payload))
	if err != nil {
		return fmt.Errorf("encode pagerduty payload: %w", err)
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 200 * time.Millisecond
	policy.MaxInterval = 2 * time.Second

	_, err = backoff.Retry(ctx, func() (struct{}, error) {
		return struct{}{}, c.submit(ctx, body)
	}, backoff.WithBackOff(policy), backoff.WithMaxTries(uint(c.retryLimit+1)))
	return err
}

func (c *Client) buildEvent(payload notify.JobFailurePayload) map[string]any {
	severity := fallbackString(strings.ToLower(payload.Severity), notify.SeverityCritical)

	occurredAt := payload.OccurredAt.UTC()
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}

	custom := map[string]any{
		"job_id":      payload.JobID,
		"run_id":      payload.RunID,
		"queue":       payload.Queue,
		"attempts":    strconv.Itoa(payload.Attempts),
		"error":       payload.Error,
		"error_class": payload.ErrorClass,
	}
	for k, v := range payload.Metadata {
		if _, exists := custom[k]; !exists {
			custom[k] = v
		}
	}

	dedupKey := strings.Trim(payload.Queue+":"+payload.JobID, ":")

	return map[string]any{
		"routing_key":  c.routingKey,
		"event_action": "trigger",
		"dedup_key":    dedupKey,
		"payload": map[string]any{
			"summary": fmt.Sprintf(
				"Job %s for run %s dead-lettered",
				fallbackString(payload.JobID, "unknown"),
				fallbackString(payload.RunID, "unknown"),
			),
			"severity":       severity,
			"source":         c.source,
			"component":      c.component,
			"timestamp":      occurredAt.Format(time.RFC3339),
			"custom_details": custom,
		},
	}
}

func fallbackString(value, fallback string) string {
	if v := strings.TrimSpace(value); v != "" {
		return v
	}
	return fallback
}

func (c *Client) submit(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return backoff.Permanent(fmt.Errorf("create pagerduty request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("pagerduty request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, readErr := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		if readErr != nil {
			return fmt.Errorf("read pagerduty error response: %w", readErr)
		}
		apiErr := fmt.Errorf("pagerduty api %s: %s", resp.Status, strings.TrimSpace(string(respBody)))
		if resp.StatusCode == http.StatusBadRequest {
			return backoff.Permanent(apiErr)
		}
		return apiErr
	}

	if _, err := io.Copy(io.Discard, resp.Body); err != nil {
		return fmt.Errorf("drain pagerduty response body: %w", err)
	}
	return nil
}
