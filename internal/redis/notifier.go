package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/example/campus-roombook/internal/application"
)

// DefaultNotificationChannel is the pub/sub channel used when none is configured.
const DefaultNotificationChannel = "roombook:notifications"

// notificationMessage is the JSON document published per notification.
type notificationMessage struct {
	UserID     string    `json:"user_id"`
	BookingID  string    `json:"booking_id"`
	Status     string    `json:"status"`
	Message    string    `json:"message"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Publisher implements application.Notifier by publishing to a Redis channel.
type Publisher struct {
	client  *Client
	channel string
}

var _ application.Notifier = (*Publisher)(nil)

// NewPublisher builds a publisher on channel.
func NewPublisher(client *Client, channel string) *Publisher {
	if channel == "" {
		channel = DefaultNotificationChannel
	}
	return &Publisher{client: client, channel: channel}
}

// Channel returns the channel notifications are published to.
func (p *Publisher) Channel() string {
	return p.channel
}

// Notify publishes the notification as JSON.
func (p *Publisher) Notify(ctx context.Context, notification application.Notification) error {
	payload, err := json.Marshal(notificationMessage{
		UserID:     notification.UserID,
		BookingID:  notification.BookingID,
		Status:     string(notification.Status),
		Message:    notification.Message,
		OccurredAt: notification.OccurredAt.UTC(),
	})
	if err != nil {
		return fmt.Errorf("redis: encode notification: %w", err)
	}
	if err := p.client.rdb.Publish(ctx, p.channel, payload).Err(); err != nil {
		return fmt.Errorf("redis: publish notification: %w", err)
	}
	return nil
}
