package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/example/campus-roombook/internal/application"
)

type countingNotifier struct {
	calls int
	err   error
}

func (c *countingNotifier) Notify(context.Context, application.Notification) error {
	c.calls++
	return c.err
}

func sampleNotification() application.Notification {
	return application.Notification{
		UserID:     "user-1",
		BookingID:  "booking-1",
		Status:     application.BookingRejected,
		Message:    "room reserved for exams",
		OccurredAt: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC),
	}
}

func TestLogNotifier_Notify(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	notifier := NewLogNotifier(zap.New(core))

	if err := notifier.Notify(context.Background(), sampleNotification()); err != nil {
		t.Fatalf("Notify returned error: %v", err)
	}

	entries := logs.FilterMessage("booking notification").All()
	if len(entries) != 1 {
		t.Fatalf("expected one log entry, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["booking_id"] != "booking-1" || fields["status"] != "rejected" {
		t.Fatalf("unexpected fields: %#v", fields)
	}
}

func TestFanout_DeliversToEveryMember(t *testing.T) {
	boom := errors.New("boom")
	failing := &countingNotifier{err: boom}
	healthy := &countingNotifier{}

	err := Fanout{failing, nil, healthy}.Notify(context.Background(), sampleNotification())
	if !errors.Is(err, boom) {
		t.Fatalf("expected joined error to wrap boom, got %v", err)
	}
	if failing.calls != 1 || healthy.calls != 1 {
		t.Fatalf("expected each notifier to be called once, got %d and %d", failing.calls, healthy.calls)
	}

	if err := (Fanout{healthy}).Notify(context.Background(), sampleNotification()); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
}
