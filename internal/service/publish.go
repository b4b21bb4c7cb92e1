package service

import (
	"context"
	"log/slog"

	"github.com/target/prospector/internal/core"
	"github.com/target/prospector/internal/domain/model"
)

// publishChange emits a change event for a committed write. Failures are
// logged and never reach the caller: the write is already durable.
func publishChange(
	ctx context.Context,
	pub core.ChangePublisher,
	logger *slog.Logger,
	table model.Table,
	op model.Operation,
	row any,
) {
	if pub == nil {
		return
	}
	evt, err := model.NewChangeEvent(table, op, row)
	if err == nil {
		err = pub.Publish(ctx, evt)
	}
	if err != nil && logger != nil {
		logger.WarnContext(ctx, "change event dropped", "table", table, "operation", op, "error", err)
	}
}
