package changefeed

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/target/prospector/internal/core"
	"github.com/target/prospector/internal/domain/model"
)

// Source produces change events until ctx ends or its connection fails.
// Stream calls ready once it is subscribed; every change committed after
// that point reaches fn.
type Source interface {
	Stream(ctx context.Context, ready func(), fn func(context.Context, model.ChangeEvent)) error
}

const (
	defaultRelayInitialBackoff = 250 * time.Millisecond
	defaultRelayMaxBackoff     = 30 * time.Second
)

// RelayOptions configures a Relay.
type RelayOptions struct {
	Name           string
	Logger         *slog.Logger
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	// OnResync runs when a source is subscribed again after a failure.
	// Changes committed while it was down were never relayed.
	OnResync func(ctx context.Context)
}

// Relay copies events from a Source into a publisher, reconnecting with
// exponential backoff whenever the source fails.
type Relay struct {
	source Source
	sink   core.ChangePublisher
	opts   RelayOptions
	logger *slog.Logger
}

// NewRelay creates a relay from source to sink.
func NewRelay(source Source, sink core.ChangePublisher, opts RelayOptions) *Relay {
	if opts.InitialBackoff <= 0 {
		opts.InitialBackoff = defaultRelayInitialBackoff
	}
	if opts.MaxBackoff < opts.InitialBackoff {
		opts.MaxBackoff = defaultRelayMaxBackoff
	}
	if opts.Name == "" {
		opts.Name = "change_relay"
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Relay{
		source: source,
		sink:   sink,
		opts:   opts,
		logger: logger.With("component", opts.Name),
	}
}

// Run blocks until ctx is cancelled. It returns nil on cancellation.
func (r *Relay) Run(ctx context.Context) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.opts.InitialBackoff
	b.MaxInterval = r.opts.MaxBackoff

	failed := false
	for {
		started := time.Now()
		ready := func() {}
		if failed {
			ready = func() { r.resync(ctx) }
		}
		err := r.source.Stream(ctx, ready, r.forward)
		if ctx.Err() != nil {
			r.logger.InfoContext(ctx, "change relay stopped")
			return nil
		}
		if err == nil {
			err = errors.New("source ended")
		}
		// A connection that stayed up for a while starts over at the shortest delay.
		if time.Since(started) > r.opts.MaxBackoff {
			b.Reset()
		}
		failed = true
		wait := b.NextBackOff()
		r.logger.WarnContext(ctx, "change source failed; reconnecting", "error", err, "retry_in", wait)

		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			r.logger.InfoContext(ctx, "change relay stopped")
			return nil
		case <-t.C:
		}
	}
}

func (r *Relay) forward(ctx context.Context, evt model.ChangeEvent) {
	if err := r.sink.Publish(ctx, evt); err != nil {
		r.logger.WarnContext(ctx, "relayed change not delivered", "table", evt.Table, "error", err)
	}
}

func (r *Relay) resync(ctx context.Context) {
	r.logger.InfoContext(ctx, "change source resubscribed; changes during the gap were lost")
	if r.opts.OnResync != nil {
		r.opts.OnResync(ctx)
	}
}
