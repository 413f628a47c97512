package application

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/example/campus-roombook/internal/recurrence"
)

func TestAvailabilityService_IsRoomAvailable(t *testing.T) {
	t.Parallel()

	h := newBookingHarness(t)
	existing := h.mustRequest(t, student, at(2, 9, 0), at(2, 10, 0))

	query := func(start, end time.Time, buffer *time.Duration, exclude string) (Availability, error) {
		return h.avail.IsRoomAvailable(context.Background(), AvailabilityQuery{
			RoomID: "room-1", Start: start, End: end, Buffer: buffer, ExcludeBookingID: exclude,
		})
	}

	zero := time.Duration(0)
	result, err := query(at(2, 10, 0), at(2, 11, 0), &zero, "")
	if err != nil || !result.Available {
		t.Fatalf("expected exact touch to be free with a zero buffer, got %+v (%v)", result, err)
	}

	result, err = query(at(2, 10, 0), at(2, 11, 0), nil, "")
	if err != nil || result.Available || len(result.Bookings) != 1 {
		t.Fatalf("expected exact touch to conflict with the default buffer, got %+v (%v)", result, err)
	}

	result, err = query(at(2, 9, 0), at(2, 10, 0), nil, existing.ID)
	if err != nil || !result.Available {
		t.Fatalf("expected excluded booking to be ignored, got %+v (%v)", result, err)
	}

	if _, err := h.avail.IsRoomAvailable(context.Background(), AvailabilityQuery{RoomID: "room-closed", Start: at(2, 9, 0), End: at(2, 10, 0)}); !errors.Is(err, ErrBadRequest) {
		t.Fatalf("expected ErrBadRequest for closed room, got %v", err)
	}
	if _, err := h.avail.IsRoomAvailable(context.Background(), AvailabilityQuery{RoomID: "nope", Start: at(2, 9, 0), End: at(2, 10, 0)}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown room, got %v", err)
	}

	_, err = query(at(2, 10, 0), at(2, 9, 0), nil, "")
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError for inverted interval, got %v", err)
	}
}

func TestAvailabilityService_ScheduleOutsideValidityIsIgnored(t *testing.T) {
	t.Parallel()

	h := newBookingHarness(t)
	h.store.schedules["schedule-autumn"] = Schedule{
		ID:        "schedule-autumn",
		RoomID:    "room-1",
		DayOfWeek: time.Monday,
		StartTime: recurrence.NewTimeOfDay(7, 30, 0),
		EndTime:   recurrence.NewTimeOfDay(9, 30, 0),
		StartDate: recurrence.NewDate(2025, time.September, 1),
		EndDate:   recurrence.NewDate(2025, time.December, 20),
		Title:     "Course X",
	}

	result, err := h.avail.IsRoomAvailable(context.Background(), AvailabilityQuery{RoomID: "room-1", Start: at(2, 8, 0), End: at(2, 8, 30)})
	if err != nil || !result.Available {
		t.Fatalf("expected schedule outside its validity to be ignored, got %+v (%v)", result, err)
	}
}

func TestAvailabilityService_CachesSchedulesUntilInvalidated(t *testing.T) {
	t.Parallel()

	h := newBookingHarness(t)
	check := func() Availability {
		t.Helper()
		result, err := h.avail.IsRoomAvailable(context.Background(), AvailabilityQuery{RoomID: "room-1", Start: at(2, 8, 0), End: at(2, 8, 30)})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		return result
	}

	check()
	check()
	if got := h.store.scheduleListCount(); got != 1 {
		t.Fatalf("expected schedules to be listed once, got %d", got)
	}

	_, err := h.schedule.CreateSchedule(context.Background(), CreateScheduleParams{
		Actor: admin,
		Input: ScheduleInput{
			RoomID: "room-1", DayOfWeek: int(time.Monday), StartTime: "07:30", EndTime: "09:30",
			StartDate: "2025-06-01", EndDate: "2025-06-30", Type: "course", Title: "Course X",
		},
	})
	if err != nil {
		t.Fatalf("create schedule failed: %v", err)
	}

	if result := check(); result.Available {
		t.Fatalf("expected new schedule to be visible after invalidation")
	}
}

func TestAvailabilityService_ScheduleCreatedDuringReadIsNotHidden(t *testing.T) {
	t.Parallel()

	h := newBookingHarness(t)

	read := make(chan struct{})
	release := make(chan struct{})
	var lists atomic.Int32
	h.store.afterScheduleList = func() {
		if lists.Add(1) == 1 {
			close(read)
			<-release
		}
	}

	done := make(chan error, 1)
	go func() {
		_, err := h.avail.IsRoomAvailable(context.Background(), AvailabilityQuery{RoomID: "room-1", Start: at(2, 8, 0), End: at(2, 9, 0)})
		done <- err
	}()
	<-read

	_, err := h.schedule.CreateSchedule(context.Background(), CreateScheduleParams{
		Actor: admin,
		Input: ScheduleInput{
			RoomID: "room-1", DayOfWeek: int(time.Monday), StartTime: "07:30", EndTime: "09:30",
			StartDate: "2025-06-01", EndDate: "2025-06-30", Type: "course", Title: "Course X",
		},
	})
	if err != nil {
		t.Fatalf("create schedule failed: %v", err)
	}
	close(release)
	if err := <-done; err != nil {
		t.Fatalf("availability check failed: %v", err)
	}

	_, err = h.request(t, student, at(2, 8, 0), at(2, 9, 0))
	var cErr *ConflictError
	if !errors.As(err, &cErr) {
		t.Fatalf("expected ConflictError, got %v", err)
	}
	if len(cErr.Schedules) != 1 || cErr.Schedules[0].Title != "Course X" {
		t.Fatalf("expected Course X conflict, got %+v", cErr.Schedules)
	}

	result, err := h.avail.IsRoomAvailable(context.Background(), AvailabilityQuery{RoomID: "room-1", Start: at(2, 8, 0), End: at(2, 9, 0)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Available {
		t.Fatalf("expected the read that raced the schedule insert not to be cached")
	}
}

func TestAvailabilityService_BookingPathBypassesScheduleCache(t *testing.T) {
	t.Parallel()

	h := newBookingHarness(t)
	if _, err := h.avail.IsRoomAvailable(context.Background(), AvailabilityQuery{RoomID: "room-1", Start: at(2, 8, 0), End: at(2, 9, 0)}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Written behind the service's back, so nothing invalidates the cache.
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

	var cErr *ConflictError
	if _, err := h.request(t, student, at(2, 8, 0), at(2, 9, 0)); !errors.As(err, &cErr) {
		t.Fatalf("expected ConflictError from a fresh schedule read, got %v", err)
	}
}
