package httpx

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/target/prospector/internal/domain/model"
	apperrors "github.com/target/prospector/internal/errors"
	"github.com/target/prospector/internal/realtime"
	"github.com/target/prospector/internal/service"
)

const defaultHeartbeat = 15 * time.Second

// StreamHandlers serves the live change feed over Server-Sent Events.
type StreamHandlers struct {
	Feeds        *service.FeedService
	Heartbeat    time.Duration
	WriteTimeout time.Duration
	Logger       *slog.Logger
}

type readyEvent struct {
	ClientID string        `json:"client_id"`
	Tables   []model.Table `json:"tables"`
}

type resetEvent struct {
	Reason realtime.DeliveryReason `json:"reason"`
}

// Stream opens a feed and writes a snapshot per table, a ready marker, then
// change events until the client disconnects or is dropped.
func (h *StreamHandlers) Stream(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	tables, err := model.ParseTables(q.Get("tables"))
	if err != nil {
		writeServiceError(w, r, h.Logger, apperrors.ValidationField("tables", err.Error()))
		return
	}
	filters := make(map[model.Table]string, len(tables))
	for _, t := range tables {
		if expr := q.Get("filter." + string(t)); expr != "" {
			filters[t] = expr
		}
	}

	ctx := r.Context()
	feed, err := h.Feeds.Open(ctx, service.FeedRequest{Tables: tables, Filters: filters})
	if err != nil {
		writeServiceError(w, r, h.Logger, err)
		return
	}
	defer feed.Close()

	client := feed.Client
	logger := h.Logger.With("client_id", client.ID())
	sse := NewSSEWriter(w, h.WriteTimeout)

	for _, snap := range feed.Snapshots {
		if err := sse.WriteEvent("snapshot", "", snap); err != nil {
			client.Drop(realtime.ReasonTransport, err)
			return
		}
	}
	if err := sse.WriteEvent("ready", "", readyEvent{ClientID: client.ID(), Tables: tables}); err != nil {
		client.Drop(realtime.ReasonTransport, err)
		return
	}

	heartbeat := h.Heartbeat
	if heartbeat <= 0 {
		heartbeat = defaultHeartbeat
	}
	ticker := time.NewTicker(heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-client.Done():
			h.writeReset(sse, logger, client.Err())
			return
		case d := <-client.Events():
			ch := feed.Change(ctx, d)
			if err := sse.WriteEvent("change", strconv.FormatUint(d.Seq, 10), ch); err != nil {
				logger.DebugContext(ctx, "stream write failed", "error", err)
				client.Drop(realtime.ReasonTransport, err)
				return
			}
		case <-ticker.C:
			if err := sse.WriteComment("ping"); err != nil {
				client.Drop(realtime.ReasonTransport, err)
				return
			}
		}
	}
}

// writeReset tells a client the server dropped it so it resnapshots.
func (h *StreamHandlers) writeReset(sse *SSEWriter, logger *slog.Logger, cause error) {
	var de *realtime.DeliveryError
	if !errors.As(cause, &de) || de.Reason == realtime.ReasonTransport {
		return
	}
	logger.Warn("stream client dropped", "reason", de.Reason)
	if err := sse.WriteEvent("reset", "", resetEvent{Reason: de.Reason}); err != nil {
		logger.Debug("reset not delivered", "error", err)
	}
}
