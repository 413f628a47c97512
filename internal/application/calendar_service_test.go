package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/campus-roombook/internal/recurrence"
)

func TestCalendarService_RoomCalendar(t *testing.T) {
	t.Parallel()

	h := newBookingHarness(t)
	booking := h.mustRequest(t, student, at(3, 9, 0), at(3, 10, 0))
	cancelled := h.mustRequest(t, student, at(4, 9, 0), at(4, 10, 0))
	if _, err := h.svc.CancelBooking(context.Background(), student, cancelled.ID); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	h.store.schedules["schedule-x"] = Schedule{
		ID:        "schedule-x",
		RoomID:    "room-1",
		DayOfWeek: time.Monday,
		StartTime: recurrence.NewTimeOfDay(7, 30, 0),
		EndTime:   recurrence.NewTimeOfDay(9, 30, 0),
		StartDate: recurrence.NewDate(2025, time.June, 1),
		EndDate:   recurrence.NewDate(2025, time.June, 30),
		Type:      ScheduleCourse,
		Title:     "Course X",
	}

	svc := NewCalendarService(h.store, h.store, h.store, time.UTC, nil)
	calendar, err := svc.RoomCalendar(context.Background(), "room-1", at(1, 0, 0), at(15, 0, 0))
	if err != nil {
		t.Fatalf("calendar failed: %v", err)
	}

	if len(calendar.Entries) != 3 {
		t.Fatalf("expected two course occurrences and one booking, got %+v", calendar.Entries)
	}
	first, second, third := calendar.Entries[0], calendar.Entries[1], calendar.Entries[2]
	if first.Kind != CalendarSchedule || !first.Start.Equal(at(2, 7, 30)) {
		t.Fatalf("unexpected first entry: %+v", first)
	}
	if second.Kind != CalendarBooking || second.ID != booking.ID || second.Status != BookingPending {
		t.Fatalf("unexpected second entry: %+v", second)
	}
	if third.Kind != CalendarSchedule || !third.Start.Equal(at(9, 7, 30)) {
		t.Fatalf("unexpected third entry: %+v", third)
	}

	_, err = svc.RoomCalendar(context.Background(), "room-1", at(1, 0, 0), at(1, 0, 0).Add(100*24*time.Hour))
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError for oversized window, got %v", err)
	}
	if _, err := svc.RoomCalendar(context.Background(), "nope", at(1, 0, 0), at(2, 0, 0)); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
