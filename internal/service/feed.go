package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/target/prospector/internal/domain/model"
	apperrors "github.com/target/prospector/internal/errors"
	"github.com/target/prospector/internal/realtime"
)

const defaultSnapshotLimit = 50

// FeedServiceOptions groups dependencies for FeedService.
type FeedServiceOptions struct {
	Registry      *realtime.Registry // Required
	Projection    *ProjectionService // Required: snapshots and enrichment
	SnapshotLimit int
	Logger        *slog.Logger
}

// FeedRequest selects the tables a stream observes. Filters holds an
// optional JMESPath expression per table.
type FeedRequest struct {
	Tables  []model.Table
	Filters map[model.Table]string
}

// Feed is one open change stream: the snapshots to send first, then the
// client mailbox to drain.
type Feed struct {
	Client    *realtime.Client
	Snapshots []realtime.Snapshot

	projection *ProjectionService
	logger     *slog.Logger
}

// FeedService opens change streams with snapshot-then-subscribe semantics:
// subscriptions are registered before the snapshot is read, so no write
// committed after Open starts is lost. Writes already in the snapshot may be
// delivered again as live events; consumers merge them idempotently.
type FeedService struct {
	registry      *realtime.Registry
	projection    *ProjectionService
	snapshotLimit int
	logger        *slog.Logger
}

// NewFeedService constructs a new FeedService.
func NewFeedService(opts FeedServiceOptions) (*FeedService, error) {
	if opts.Registry == nil {
		return nil, errors.New("Registry is required")
	}
	if opts.Projection == nil {
		return nil, errors.New("ProjectionService is required")
	}
	limit := opts.SnapshotLimit
	if limit <= 0 {
		limit = defaultSnapshotLimit
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	// Live filters see the same joined fields as snapshot filters.
	opts.Registry.SetView(opts.Projection.Enrich)
	return &FeedService{
		registry:      opts.Registry,
		projection:    opts.Projection,
		snapshotLimit: limit,
		logger:        logger.With("component", "feed_service"),
	}, nil
}

// Open registers a new client, subscribes it to every requested table and
// reads the snapshots. The caller must Close the feed.
func (s *FeedService) Open(ctx context.Context, req FeedRequest) (*Feed, error) {
	tables := req.Tables
	if len(tables) == 0 {
		tables = model.Tables()
	}

	filters := make(map[model.Table]realtime.Filter, len(tables))
	for _, t := range tables {
		if !t.Valid() {
			return nil, apperrors.ValidationField("tables", fmt.Sprintf("unknown table %q", t))
		}
		f, err := realtime.CompileFilter(req.Filters[t])
		if err != nil {
			return nil, apperrors.ValidationField("filter."+string(t), err.Error())
		}
		filters[t] = f
	}

	client, err := s.registry.Client(realtime.NewClientID())
	if err != nil {
		return nil, fmt.Errorf("register stream client: %w", err)
	}
	feed := &Feed{Client: client, projection: s.projection, logger: s.logger}

	for _, t := range tables {
		if _, err := client.Subscribe(t, filters[t]); err != nil {
			client.Close(nil)
			return nil, fmt.Errorf("subscribe %s: %w", t, err)
		}
	}

	for _, t := range tables {
		snap, err := s.snapshot(ctx, t, filters[t])
		if err != nil {
			client.Close(nil)
			return nil, err
		}
		feed.Snapshots = append(feed.Snapshots, snap)
	}

	s.logger.DebugContext(ctx, "stream opened", "client_id", client.ID(), "tables", tables)
	return feed, nil
}

func (s *FeedService) snapshot(ctx context.Context, t model.Table, f realtime.Filter) (realtime.Snapshot, error) {
	var (
		rows any
		err  error
	)
	switch t {
	case model.TableWorkflowRuns:
		var runs []*model.RunView
		if runs, err = s.projection.ListRuns(ctx, s.snapshotLimit); err == nil {
			rows = filterViews(runs, f)
		}
	case model.TableProspects:
		var prospects []*model.ProspectView
		if prospects, err = s.projection.ListProspects(ctx, s.snapshotLimit); err == nil {
			rows = filterViews(prospects, f)
		}
	default:
		err = fmt.Errorf("%w: %q", realtime.ErrUnknownTable, t)
	}
	if err != nil {
		return realtime.Snapshot{}, fmt.Errorf("snapshot %s: %w", t, err)
	}
	raw, err := json.Marshal(rows)
	if err != nil {
		return realtime.Snapshot{}, fmt.Errorf("encode %s snapshot: %w", t, err)
	}
	return realtime.Snapshot{Table: t, Rows: raw}, nil
}

// filterViews keeps the views the filter matches, evaluated on their JSON
// form. Rows the expression cannot be evaluated on are dropped.
func filterViews[T any](rows []T, f realtime.Filter) []T {
	kept := make([]T, 0, len(rows))
	for _, r := range rows {
		if f == nil || matchesJSON(r, f) {
			kept = append(kept, r)
		}
	}
	return kept
}

func matchesJSON(v any, f realtime.Filter) bool {
	b, err := json.Marshal(v)
	if err != nil {
		return false
	}
	var row map[string]any
	if err := json.Unmarshal(b, &row); err != nil {
		return false
	}
	ok, err := f.Match(row)
	return err == nil && ok
}

// Change turns a delivery into the payload sent to the stream, attaching
// the joined view when it can be built.
func (f *Feed) Change(ctx context.Context, d realtime.Delivery) realtime.Change {
	ch := realtime.Change{ChangeEvent: d.Event}
	if d.View != nil {
		ch.View = d.View
		return ch
	}
	view, err := f.projection.Enrich(ctx, d.Event)
	if err != nil {
		f.logger.DebugContext(ctx, "change sent without view", "table", d.Event.Table, "error", err)
		return ch
	}
	ch.View = view
	return ch
}

// Close releases the client and its subscriptions.
func (f *Feed) Close() {
	f.Client.Close(nil)
}
