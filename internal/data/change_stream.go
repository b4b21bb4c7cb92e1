package data

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/target/prospector/internal/data/pgxutil"
	"github.com/target/prospector/internal/domain/model"
)

// ChangeChannel is the NOTIFY channel the row triggers publish on.
const ChangeChannel = "prospector_changes"

// rowImageSQL re-reads a row as the same JSON image row_to_json produces in the triggers.
var rowImageSQL = map[model.Table]string{
	model.TableWorkflowRuns: `SELECT row_to_json(t)::text FROM workflow_runs t WHERE id = $1`,
	model.TableProspects:    `SELECT row_to_json(t)::text FROM prospects t WHERE id = $1`,
}

// triggerPayload is the NOTIFY body. Truncated payloads carry only the row id.
type triggerPayload struct {
	model.ChangeEvent
	Truncated bool `json:"truncated"`
}

// ChangeStream turns trigger notifications into change events.
type ChangeStream struct {
	DB       pgxutil.DB
	listener pgxutil.Acquirer
	logger   *slog.Logger
}

// NewChangeStream creates a ChangeStream. listener supplies the dedicated LISTEN connection.
func NewChangeStream(db pgxutil.DB, listener pgxutil.Acquirer, logger *slog.Logger) *ChangeStream {
	if logger == nil {
		logger = slog.Default()
	}
	return &ChangeStream{DB: db, listener: listener, logger: logger.With("component", "change_stream")}
}

// Stream LISTENs until ctx ends or the connection fails, passing each decoded
// event to fn. Undecodable payloads are logged and skipped.
func (s *ChangeStream) Stream(ctx context.Context, ready func(), fn func(context.Context, model.ChangeEvent)) error {
	s.logger.InfoContext(ctx, "listening for row changes", "channel", ChangeChannel)
	return pgxutil.Listen(ctx, s.listener, ChangeChannel, ready, func(n *pgconn.Notification) {
		evt, err := s.Decode(ctx, n.Payload)
		if err != nil {
			s.logger.WarnContext(ctx, "dropping change notification", "error", err)
			return
		}
		fn(ctx, evt)
	})
}

// Decode parses a trigger payload, re-reading the row when the trigger had to truncate it.
func (s *ChangeStream) Decode(ctx context.Context, payload string) (model.ChangeEvent, error) {
	var p triggerPayload
	if err := json.Unmarshal([]byte(payload), &p); err != nil {
		return model.ChangeEvent{}, fmt.Errorf("decode change payload: %w", err)
	}
	if err := p.Validate(); err != nil {
		return model.ChangeEvent{}, err
	}
	if !p.Truncated {
		return p.ChangeEvent, nil
	}

	id, err := p.RowID()
	if err != nil {
		return model.ChangeEvent{}, err
	}
	var image string
	err = s.DB.QueryRow(ctx, rowImageSQL[p.Table], id).Scan(&image)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.ChangeEvent{}, fmt.Errorf("%s row %s vanished before re-read", p.Table, id)
	}
	if err != nil {
		return model.ChangeEvent{}, fmt.Errorf("re-read %s row: %w", p.Table, err)
	}
	return model.ChangeEvent{Table: p.Table, Operation: p.Operation, Row: json.RawMessage(image)}, nil
}
