package redis

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/example/campus-roombook/internal/application"
)

// DefaultInvalidationChannel carries room IDs whose cached schedules are stale.
const DefaultInvalidationChannel = "roombook:schedules:invalidate"

const publishTimeout = 2 * time.Second

// ScheduleInvalidator spreads schedule cache invalidations across replicas.
// InvalidateRoom clears the local cache and publishes the room ID; Listen
// applies the IDs published by every replica, this one included.
type ScheduleInvalidator struct {
	client  *Client
	channel string
	local   application.ScheduleCacheInvalidator
}

var _ application.ScheduleCacheInvalidator = (*ScheduleInvalidator)(nil)

// NewScheduleInvalidator wraps local with pub/sub on channel.
func NewScheduleInvalidator(client *Client, channel string, local application.ScheduleCacheInvalidator) *ScheduleInvalidator {
	if channel == "" {
		channel = DefaultInvalidationChannel
	}
	return &ScheduleInvalidator{client: client, channel: channel, local: local}
}

// Channel returns the pub/sub channel.
func (i *ScheduleInvalidator) Channel() string {
	return i.channel
}

// InvalidateRoom drops the local entry and tells the other replicas. A failed
// publish is logged; peers then see the change once their entry expires.
func (i *ScheduleInvalidator) InvalidateRoom(roomID string) {
	i.local.InvalidateRoom(roomID)

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := i.client.rdb.Publish(ctx, i.channel, roomID).Err(); err != nil {
		i.client.logger.Warn("failed to publish schedule invalidation",
			zap.String("room_id", roomID),
			zap.String("channel", i.channel),
			zap.Error(err),
		)
	}
}

// Listen subscribes to the channel and invalidates the local cache for every
// room received until ctx is done.
func (i *ScheduleInvalidator) Listen(ctx context.Context) error {
	sub := i.client.rdb.Subscribe(ctx, i.channel)
	defer func() { _ = sub.Close() }()

	if _, err := sub.Receive(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("redis: subscribe %s: %w", i.channel, err)
	}
	i.client.logger.Info("listening for schedule invalidations", zap.String("channel", i.channel))

	messages := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			if msg.Payload == "" {
				continue
			}
			i.local.InvalidateRoom(msg.Payload)
		}
	}
}
