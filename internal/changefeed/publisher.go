// Package changefeed moves committed change events from where they originate
// (services or Postgres triggers) to every replica's subscription registry.
package changefeed

import (
	"context"
	"log/slog"

	"github.com/target/prospector/internal/core"
	"github.com/target/prospector/internal/domain/model"
	"github.com/target/prospector/internal/observability/metrics"
)

// BestEffort wraps a publisher so writers never see a publish failure. The
// row write has already committed; observers that miss the event repair it
// by resnapshotting when they reconnect.
type BestEffort struct {
	next    core.ChangePublisher
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewBestEffort wraps next.
func NewBestEffort(next core.ChangePublisher, logger *slog.Logger, m *metrics.Metrics) *BestEffort {
	if logger == nil {
		logger = slog.Default()
	}
	return &BestEffort{next: next, logger: logger.With("component", "change_publisher"), metrics: m}
}

// Publish forwards evt and always returns nil.
func (p *BestEffort) Publish(ctx context.Context, evt model.ChangeEvent) error {
	if p == nil || p.next == nil {
		return nil
	}
	if err := p.next.Publish(ctx, evt); err != nil {
		p.metrics.PublishFailed(string(evt.Table), err)
		p.logger.WarnContext(ctx, "change event not published",
			"table", evt.Table,
			"operation", evt.Operation,
			"error", err,
		)
		return nil
	}
	p.metrics.ChangePublished(string(evt.Table), string(evt.Operation))
	return nil
}

// Discard drops every event. Services use it when row triggers are the
// change source, so each write is published exactly once.
type Discard struct{}

// Publish implements core.ChangePublisher.
func (Discard) Publish(context.Context, model.ChangeEvent) error { return nil }

var (
	_ core.ChangePublisher = (*BestEffort)(nil)
	_ core.ChangePublisher = Discard{}
)
