// Package watch is a reconnecting client for the live change stream. It keeps
// a realtime.Mirror current from snapshots and change events, and starts over
// with a fresh snapshot whenever the connection is lost or the server resets it.
package watch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/target/prospector/internal/domain/model"
	"github.com/target/prospector/internal/realtime"
)

const (
	defaultInitialBackoff = 500 * time.Millisecond
	defaultMaxBackoff     = 30 * time.Second
)

// ErrReset is returned by a session the server closed with a reset event.
var ErrReset = errors.New("stream reset by server")

// StatusError is a non-200 response to the stream request.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("stream request failed: %d %s", e.Status, e.Body)
}

// Fatal reports whether retrying cannot help.
func (e *StatusError) Fatal() bool {
	return e.Status >= 400 && e.Status < 500 && e.Status != http.StatusTooManyRequests
}

// Options configures a Client.
type Options struct {
	BaseURL string // Required
	Tables  []model.Table
	// Filters maps a table to a JMESPath expression applied server side.
	Filters    map[model.Table]string
	HTTPClient *http.Client
	Logger     *slog.Logger

	InitialBackoff time.Duration
	MaxBackoff     time.Duration

	// OnReady is called after the snapshots of a session have been applied.
	OnReady func(clientID string, m *realtime.Mirror)
	// OnChange is called after a change event altered the mirror.
	OnChange func(ch realtime.Change, m *realtime.Mirror)
}

// Client streams changes into a Mirror.
type Client struct {
	opts   Options
	url    string
	http   *http.Client
	mirror *realtime.Mirror
	logger *slog.Logger
}

type readyEvent struct {
	ClientID string `json:"client_id"`
}

type resetEvent struct {
	Reason string `json:"reason"`
}

// New validates opts and builds a Client.
func New(opts Options) (*Client, error) {
	u, err := streamURL(opts.BaseURL, opts.Tables, opts.Filters)
	if err != nil {
		return nil, err
	}
	if opts.InitialBackoff <= 0 {
		opts.InitialBackoff = defaultInitialBackoff
	}
	if opts.MaxBackoff < opts.InitialBackoff {
		opts.MaxBackoff = max(defaultMaxBackoff, opts.InitialBackoff)
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		opts:   opts,
		url:    u,
		http:   hc,
		mirror: realtime.NewMirror(),
		logger: logger.With("component", "watch"),
	}, nil
}

func streamURL(base string, tables []model.Table, filters map[model.Table]string) (string, error) {
	if strings.TrimSpace(base) == "" {
		return "", errors.New("base URL is required")
	}
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse base URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("base URL must be http or https, got %q", base)
	}
	u = u.JoinPath("api", "stream")

	q := url.Values{}
	if len(tables) > 0 {
		names := make([]string, len(tables))
		for i, t := range tables {
			names[i] = string(t)
		}
		q.Set("tables", strings.Join(names, ","))
	}
	for t, expr := range filters {
		if strings.TrimSpace(expr) != "" {
			q.Set("filter."+string(t), expr)
		}
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Mirror returns the mirror the client maintains.
func (c *Client) Mirror() *realtime.Mirror { return c.mirror }

// Run streams until ctx is cancelled, reconnecting with exponential backoff.
// It returns nil on cancellation and an error only for a fatal response.
func (c *Client) Run(ctx context.Context) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.opts.InitialBackoff
	b.MaxInterval = c.opts.MaxBackoff

	for {
		ready, err := c.session(ctx)
		if ctx.Err() != nil {
			return nil
		}
		var se *StatusError
		if errors.As(err, &se) && se.Fatal() {
			return err
		}
		// A session that got as far as ready starts over at the shortest delay.
		if ready {
			b.Reset()
		}
		wait := b.NextBackOff()
		c.logger.WarnContext(ctx, "stream lost; reconnecting", "error", err, "retry_in", wait)

		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil
		case <-t.C:
		}
	}
}

// session runs one connection and reports whether it reached ready.
func (c *Client) session(ctx context.Context) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return false, err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.http.Do(req)
	if err != nil {
		return false, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return false, &StatusError{Status: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	ready := false
	err = readEvents(resp.Body, func(ev Event) error {
		switch ev.Name {
		case "snapshot":
			var s realtime.Snapshot
			if err := json.Unmarshal(ev.Data, &s); err != nil {
				return fmt.Errorf("decode snapshot: %w", err)
			}
			return c.mirror.ApplySnapshot(s)
		case "ready":
			var r readyEvent
			if err := json.Unmarshal(ev.Data, &r); err != nil {
				return fmt.Errorf("decode ready: %w", err)
			}
			ready = true
			if c.opts.OnReady != nil {
				c.opts.OnReady(r.ClientID, c.mirror)
			}
		case "change":
			var ch realtime.Change
			if err := json.Unmarshal(ev.Data, &ch); err != nil {
				return fmt.Errorf("decode change: %w", err)
			}
			changed, err := c.mirror.Apply(ch)
			if err != nil {
				return err
			}
			if changed && c.opts.OnChange != nil {
				c.opts.OnChange(ch, c.mirror)
			}
		case "reset":
			var r resetEvent
			_ = json.Unmarshal(ev.Data, &r)
			return fmt.Errorf("%w: %s", ErrReset, r.Reason)
		}
		return nil
	})
	return ready, err
}
