package changefeed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/target/prospector/internal/core"
	"github.com/target/prospector/internal/domain/model"
)

// DefaultChannelPrefix namespaces the per-table pub/sub channels.
const DefaultChannelPrefix = "prospector:changes:"

// RedisPublisher PUBLISHes change events to one channel per table.
type RedisPublisher struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisPublisher creates a publisher on client. An empty prefix uses DefaultChannelPrefix.
func NewRedisPublisher(client redis.UniversalClient, prefix string) *RedisPublisher {
	if prefix == "" {
		prefix = DefaultChannelPrefix
	}
	return &RedisPublisher{client: client, prefix: prefix}
}

// Channel returns the channel events for table are published on.
func (p *RedisPublisher) Channel(table model.Table) string {
	return p.prefix + string(table)
}

// Publish implements core.ChangePublisher.
func (p *RedisPublisher) Publish(ctx context.Context, evt model.ChangeEvent) error {
	if err := evt.Validate(); err != nil {
		return err
	}
	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal change event: %w", err)
	}
	if err := p.client.Publish(ctx, p.Channel(evt.Table), payload).Err(); err != nil {
		return fmt.Errorf("redis publish %s: %w", evt.Table, err)
	}
	return nil
}

// RedisSource receives the events every replica publishes through Redis.
type RedisSource struct {
	client redis.UniversalClient
	prefix string
	logger *slog.Logger
}

// NewRedisSource creates a source on client. An empty prefix uses DefaultChannelPrefix.
func NewRedisSource(client redis.UniversalClient, prefix string, logger *slog.Logger) *RedisSource {
	if prefix == "" {
		prefix = DefaultChannelPrefix
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisSource{client: client, prefix: prefix, logger: logger.With("component", "redis_change_source")}
}

// Stream PSUBSCRIBEs to every table channel and hands each event to fn until
// ctx ends or the subscription closes.
func (s *RedisSource) Stream(ctx context.Context, ready func(), fn func(context.Context, model.ChangeEvent)) error {
	pattern := s.prefix + "*"
	ps := s.client.PSubscribe(ctx, pattern)
	defer func() { _ = ps.Close() }()

	// Wait for the subscription to be confirmed so no publish after this
	// point is missed.
	if _, err := ps.Receive(ctx); err != nil {
		return fmt.Errorf("psubscribe %s: %w", pattern, err)
	}
	s.logger.InfoContext(ctx, "subscribed to change channels", "pattern", pattern)
	if ready != nil {
		ready()
	}

	ch := ps.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return errors.New("redis change subscription closed")
			}
			evt, err := s.decode(msg)
			if err != nil {
				s.logger.WarnContext(ctx, "dropping change message", "channel", msg.Channel, "error", err)
				continue
			}
			fn(ctx, evt)
		}
	}
}

func (s *RedisSource) decode(msg *redis.Message) (model.ChangeEvent, error) {
	var evt model.ChangeEvent
	if err := json.Unmarshal([]byte(msg.Payload), &evt); err != nil {
		return evt, fmt.Errorf("decode change message: %w", err)
	}
	if err := evt.Validate(); err != nil {
		return evt, err
	}
	if want := strings.TrimPrefix(msg.Channel, s.prefix); want != string(evt.Table) {
		return evt, fmt.Errorf("event for %q arrived on channel %q", evt.Table, msg.Channel)
	}
	return evt, nil
}

var _ core.ChangePublisher = (*RedisPublisher)(nil)
