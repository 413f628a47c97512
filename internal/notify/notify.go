// Package notify provides application.Notifier implementations that do not
// depend on an external broker.
package notify

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/example/campus-roombook/internal/application"
)

// LogNotifier writes every notification to a zap logger.
type LogNotifier struct {
	logger *zap.Logger
}

var _ application.Notifier = (*LogNotifier)(nil)

// NewLogNotifier builds a LogNotifier. A nil logger falls back to zap.L().
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	if logger == nil {
		logger = zap.L()
	}
	return &LogNotifier{logger: logger.Named("notify")}
}

// Notify logs the notification at info level.
func (n *LogNotifier) Notify(_ context.Context, notification application.Notification) error {
	n.logger.Info("booking notification",
		zap.String("user_id", notification.UserID),
		zap.String("booking_id", notification.BookingID),
		zap.String("status", string(notification.Status)),
		zap.String("message", notification.Message),
		zap.Time("occurred_at", notification.OccurredAt),
	)
	return nil
}

// Fanout delivers each notification to every notifier and joins their errors.
type Fanout []application.Notifier

var _ application.Notifier = Fanout(nil)

// Notify forwards to every member even when an earlier one fails.
func (f Fanout) Notify(ctx context.Context, notification application.Notification) error {
	var errs []error
	for _, notifier := range f {
		if notifier == nil {
			continue
		}
		if err := notifier.Notify(ctx, notification); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
