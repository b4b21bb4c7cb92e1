package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/target/prospector/internal/observability/notify"
)

const retryDelay = 200 * time.Millisecond

// Config captures the subset of Slack webhook behaviour we need.
type Config struct {
	WebhookURL string
	Channel    string
	Username   string
	Timeout    time.Duration
	RetryLimit int
	Client     *http.Client
	// RunURLPrefix, when set, turns run ids into links (prefix + "/" + id).
	RunURLPrefix string
}

// Client delivers dead-letter notifications to a Slack webhook.
type Client struct {
	webhookURL   string
	channel      string
	username     string
	retryLimit   int
	runURLPrefix string
	client       *http.Client
}

// NewClient builds a Slack webhook client. Callers should pass a validated config.
func NewClient(cfg Config) (*Client, error) {
	webhookURL := strings.TrimSpace(cfg.WebhookURL)
	if webhookURL == "" {
		return nil, errors.New("slack webhook url is required")
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
		webhookURL:   webhookURL,
		channel:      strings.TrimSpace(cfg.Channel),
		username:     fallbackString(strings.TrimSpace(cfg.Username), "prospector"),
		retryLimit:   max(cfg.RetryLimit, 0),
		runURLPrefix: strings.TrimSpace(cfg.RunURLPrefix),
		client:       hc,
	}, nil
}

// SendJobFailure posts a formatted message to Slack. Server errors are
// retried up to RetryLimit times; client errors are not.
func (c *Client) SendJobFailure(ctx context.Context, payload notify.JobFailurePayload) error {
	body, err := json.Marshal(c.formatMessage(payload))
	if err != nil {
		return fmt.Errorf("encode slack payload: %w", err)
	}

	_, err = backoff.Retry(ctx, func() (struct{}, error) {
		return struct{}{}, c.post(ctx, body)
	},
		backoff.WithBackOff(backoff.NewConstantBackOff(retryDelay)),
		backoff.WithMaxTries(uint(c.retryLimit+1)),
	)
	return err
}

func (c *Client) formatMessage(payload notify.JobFailurePayload) map[string]any {
	timestamp := payload.OccurredAt
	if timestamp.IsZero() {
		timestamp = time.Now()
	}
	text := strings.Builder{}
	writeSlackHeader(&text, payload)
	appendSlackDetails(&text, payload, c.formatRunValue(payload.RunID))
	appendSlackMetadata(&text, payload.Metadata)
	writeSlackTimestamp(&text, timestamp)

	msg := map[string]any{
		"text":     text.String(),
		"username": c.username,
	}
	if c.channel != "" {
		msg["channel"] = c.channel
	}
	return msg
}

func fallbackString(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

func (c *Client) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.webhookURL, bytes.NewReader(body))
	if err != nil {
		return backoff.Permanent(fmt.Errorf("create slack request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("slack request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		err := fmt.Errorf("slack webhook %s: %s", resp.Status, strings.TrimSpace(string(respBody)))
		if resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return backoff.Permanent(err)
		}
		return err
	}

	if _, err := io.Copy(io.Discard, resp.Body); err != nil {
		return fmt.Errorf("drain slack response body: %w", err)
	}
	return nil
}

func writeSlackHeader(text *strings.Builder, payload notify.JobFailurePayload) {
	text.WriteString("*Run job dead-lettered*")
	if payload.JobID != "" {
		text.WriteString(" `")
		text.WriteString(payload.JobID)
		text.WriteByte('`')
	}
	if payload.Queue != "" {
		text.WriteString(" (")
		text.WriteString(payload.Queue)
		text.WriteByte(')')
	}
	text.WriteByte('\n')
}

func appendSlackDetails(text *strings.Builder, payload notify.JobFailurePayload, runValue string) {
	attempts := ""
	if payload.Attempts > 0 {
		attempts = strconv.Itoa(payload.Attempts)
	}
	fields := []struct {
		label string
		value string
	}{
		{"Severity", fallbackString(payload.Severity, notify.SeverityCritical)},
		{"Run", runValue},
		{"Attempts", attempts},
		{"Error class", payload.ErrorClass},
		{"Error", escapeSlackText(payload.Error)},
	}

	for _, field := range fields {
		appendSlackField(text, field.label, field.value)
	}
}

func (c *Client) formatRunValue(runID string) string {
	id := escapeSlackText(strings.TrimSpace(runID))
	if id == "" {
		return ""
	}
	if link := c.buildRunLink(strings.TrimSpace(runID)); link != "" {
		return fmt.Sprintf("<%s|%s>", link, id)
	}
	return id
}

func escapeSlackText(value string) string {
	if value == "" {
		return ""
	}
	return strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
	).Replace(value)
}

func (c *Client) buildRunLink(runID string) string {
	if c.runURLPrefix == "" {
		return ""
	}
	u, err := url.Parse(c.runURLPrefix)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	return u.JoinPath(runID).String()
}

func appendSlackField(text *strings.Builder, label, value string) {
	if strings.TrimSpace(value) == "" {
		return
	}
	text.WriteString("• ")
	text.WriteString(label)
	text.WriteString(": ")
	text.WriteString(value)
	text.WriteByte('\n')
}

func appendSlackMetadata(text *strings.Builder, metadata map[string]string) {
	if len(metadata) == 0 {
		return
	}
	text.WriteString("• Metadata:\n")
	keys := make([]string, 0, len(metadata))
	for k := range metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		text.WriteString("    • ")
		text.WriteString(k)
		text.WriteString(": ")
		text.WriteString(metadata[k])
		text.WriteByte('\n')
	}
}

func writeSlackTimestamp(text *strings.Builder, timestamp time.Time) {
	text.WriteString("• Timestamp: ")
	text.WriteString(timestamp.UTC().Format(time.RFC3339))
}
