package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/patchline/patchline/pkg/domain"
	"github.com/patchline/patchline/pkg/ports"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// StreamsBus implements the commit event bus on Redis Streams.
type StreamsBus struct {
	client        *redis.Client
	logger        *zap.Logger
	consumerGroup string
	consumerName  string
}

var _ ports.EventBus = (*StreamsBus)(nil)

// NewStreamsBus creates a new Redis Streams event bus.
func NewStreamsBus(client *redis.Client, consumerGroup, consumerName string, logger *zap.Logger) *StreamsBus {
	return &StreamsBus{
		client:        client,
		logger:        logger,
		consumerGroup: consumerGroup,
		consumerName:  consumerName,
	}
}

// Publish appends the commit event to the topic's stream.
func (b *StreamsBus) Publish(ctx context.Context, topic string, event domain.CommitEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	args := &redis.XAddArgs{
		Stream: streamKey(topic),
		Values: map[string]interface{}{"data": string(data)},
	}
	if _, err := b.client.XAdd(ctx, args).Result(); err != nil {
		return fmt.Errorf("failed to add to stream: %w", err)
	}

	b.logger.Debug("commit event published",
		zap.String("topic", topic),
		zap.String("graph_id", event.GraphID),
		zap.String("patch_id", event.PatchID))
	return nil
}

// Subscribe creates the consumer group if needed and reads the stream until
// ctx is done.
func (b *StreamsBus) Subscribe(ctx context.Context, topic string, handler ports.CommitHandler) error {
	stream := streamKey(topic)

	err := b.client.XGroupCreateMkStream(ctx, stream, b.consumerGroup, "0").Err()
	if err != nil && err.Error() != "BUSYGROUP Consumer Group name already exists" {
		return fmt.Errorf("failed to create consumer group: %w", err)
	}

	b.logger.Info("subscribed to commit stream",
		zap.String("stream", stream),
		zap.String("consumer_group", b.consumerGroup),
		zap.String("consumer", b.consumerName))

	go b.readStream(ctx, stream, handler)
	return nil
}

func (b *StreamsBus) readStream(ctx context.Context, stream string, handler ports.CommitHandler) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
			streams, err := b.client.XReadGroup(ctx, &redis.XReadGroupArgs{
				Group:    b.consumerGroup,
				Consumer: b.consumerName,
				Streams:  []string{stream, ">"},
				Count:    10,
				Block:    time.Second,
			}).Result()

			if err != nil {
				if err == redis.Nil {
					continue
				}
				if ctx.Err() != nil {
					return
				}
				b.logger.Error("failed to read from stream",
					zap.String("stream", stream),
					zap.Error(err))
				time.Sleep(time.Second)
				continue
			}

			for _, s := range streams {
				for _, message := range s.Messages {
					b.processMessage(ctx, stream, message, handler)
				}
			}
		}
	}
}

func (b *StreamsBus) processMessage(ctx context.Context, stream string, message redis.XMessage, handler ports.CommitHandler) {
	data, ok := message.Values["data"].(string)
	if !ok {
		b.logger.Error("invalid message format",
			zap.String("stream", stream),
			zap.String("message_id", message.ID))
		return
	}

	var event domain.CommitEvent
	if err := json.Unmarshal([]byte(data), &event); err != nil {
		b.logger.Error("failed to unmarshal event",
			zap.String("stream", stream),
			zap.String("message_id", message.ID),
			zap.Error(err))
		return
	}

	if err := handler(ctx, event); err != nil {
		b.logger.Error("handler error",
			zap.String("stream", stream),
			zap.String("message_id", message.ID),
			zap.Error(err))
		return
	}

	if err := b.client.XAck(ctx, stream, b.consumerGroup, message.ID).Err(); err != nil {
		b.logger.Error("failed to acknowledge message",
			zap.String("stream", stream),
			zap.String("message_id", message.ID),
			zap.Error(err))
	}
}

// Close is a no-op; the redis client is owned by the caller.
func (b *StreamsBus) Close() error {
	return nil
}

func streamKey(topic string) string {
	return fmt.Sprintf("patchline:events:%s", topic)
}
