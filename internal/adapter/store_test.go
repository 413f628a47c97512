package adapter

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/campus-roombook/internal/application"
	"github.com/example/campus-roombook/internal/persistence"
	"github.com/example/campus-roombook/internal/persistence/memory"
	"github.com/example/campus-roombook/internal/recurrence"
)

var testNow = time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)

func seedRoom(t *testing.T, repos *Repositories) application.Room {
	t.Helper()
	ctx := context.Background()
	if _, err := repos.CreateCampus(ctx, application.Campus{ID: "campus-1", Name: "North", CreatedAt: testNow, UpdatedAt: testNow}); err != nil {
		t.Fatalf("CreateCampus returned error: %v", err)
	}
	room, err := repos.CreateRoom(ctx, application.Room{
		ID:             "room-1",
		CampusID:       "campus-1",
		Name:           "A-101",
		Capacity:       40,
		Status:         application.RoomStatusActive,
		ApprovalStatus: application.ApprovalApproved,
		CreatedAt:      testNow,
		UpdatedAt:      testNow,
	})
	if err != nil {
		t.Fatalf("CreateRoom returned error: %v", err)
	}
	return room
}

func TestRepositories_RoomRoundTrip(t *testing.T) {
	repos := NewRepositories(memory.Open())
	room := seedRoom(t, repos)

	if !room.Bookable() {
		t.Fatalf("expected seeded room to be bookable: %#v", room)
	}
	rooms, err := repos.ListRooms(context.Background(), "campus-1")
	if err != nil {
		t.Fatalf("ListRooms returned error: %v", err)
	}
	if len(rooms) != 1 || rooms[0].ID != "room-1" {
		t.Fatalf("unexpected rooms: %#v", rooms)
	}
	if _, err := repos.GetRoom(context.Background(), "missing"); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected persistence.ErrNotFound, got %v", err)
	}
}

func TestRepositories_BookingQueries(t *testing.T) {
	ctx := context.Background()
	repos := NewRepositories(memory.Open())
	seedRoom(t, repos)

	create := func(id string, start time.Time, status application.BookingStatus) {
		t.Helper()
		_, err := repos.CreateBooking(ctx, application.Booking{
			ID:          id,
			RoomID:      "room-1",
			RequesterID: "user-1",
			Start:       start,
			End:         start.Add(time.Hour),
			Status:      status,
			Purpose:     "study group",
			CreatedAt:   testNow,
			UpdatedAt:   testNow,
		})
		if err != nil {
			t.Fatalf("CreateBooking(%s) returned error: %v", id, err)
		}
	}
	create("b-past", testNow.Add(-3*time.Hour), application.BookingApproved)
	create("b-pending", testNow.Add(2*time.Hour), application.BookingPending)
	create("b-approved", testNow.Add(5*time.Hour), application.BookingApproved)
	create("b-cancelled", testNow.Add(8*time.Hour), application.BookingCancelled)

	active, err := repos.ListActiveBookings(ctx, "room-1", "b-pending")
	if err != nil {
		t.Fatalf("ListActiveBookings returned error: %v", err)
	}
	if len(active) != 2 || active[0].ID != "b-past" || active[1].ID != "b-approved" {
		t.Fatalf("unexpected active bookings: %#v", active)
	}

	expired, err := repos.ListExpiredBookings(ctx, testNow, nil, 0)
	if err != nil {
		t.Fatalf("ListExpiredBookings returned error: %v", err)
	}
	if len(expired) != 1 || expired[0].ID != "b-past" {
		t.Fatalf("unexpected expired bookings: %#v", expired)
	}
	next, err := repos.ListExpiredBookings(ctx, testNow, &expired[0], 0)
	if err != nil || len(next) != 0 {
		t.Fatalf("expected no expired bookings after the cursor, got %#v (%v)", next, err)
	}

	note := "projector broken"
	err = repos.UpdateBookingStatus(ctx, application.StatusChange{
		BookingID: "b-pending",
		From:      []application.BookingStatus{application.BookingPending},
		To:        application.BookingRejected,
		Note:      &note,
		At:        testNow,
	})
	if err != nil {
		t.Fatalf("UpdateBookingStatus returned error: %v", err)
	}
	rejected, err := repos.GetBooking(ctx, "b-pending")
	if err != nil {
		t.Fatalf("GetBooking returned error: %v", err)
	}
	if rejected.Status != application.BookingRejected || rejected.AdminNote == nil || *rejected.AdminNote != note {
		t.Fatalf("unexpected rejected booking: %#v", rejected)
	}

	err = repos.UpdateBookingStatus(ctx, application.StatusChange{
		BookingID: "b-pending",
		From:      []application.BookingStatus{application.BookingPending},
		To:        application.BookingApproved,
		At:        testNow,
	})
	if !errors.Is(err, persistence.ErrStaleState) {
		t.Fatalf("expected persistence.ErrStaleState, got %v", err)
	}

	from := testNow
	listed, err := repos.ListBookings(ctx, application.BookingQuery{
		RequesterID: "user-1",
		Statuses:    []application.BookingStatus{application.BookingApproved, application.BookingCancelled},
		From:        &from,
	})
	if err != nil {
		t.Fatalf("ListBookings returned error: %v", err)
	}
	if len(listed) != 2 || listed[0].ID != "b-approved" || listed[1].ID != "b-cancelled" {
		t.Fatalf("unexpected listed bookings: %#v", listed)
	}
}

func TestRepositories_ScheduleRoundTrip(t *testing.T) {
	ctx := context.Background()
	repos := NewRepositories(memory.Open())
	seedRoom(t, repos)

	schedule := application.Schedule{
		ID:        "s-1",
		RoomID:    "room-1",
		DayOfWeek: time.Monday,
		StartTime: recurrence.TimeOfDay(9 * time.Hour),
		EndTime:   recurrence.TimeOfDay(10*time.Hour + 30*time.Minute),
		StartDate: recurrence.NewDate(2025, time.June, 2),
		EndDate:   recurrence.NewDate(2025, time.August, 25),
		Type:      application.ScheduleCourse,
		Title:     "Databases",
		CreatedAt: testNow,
		UpdatedAt: testNow,
	}
	stored, err := repos.CreateSchedule(ctx, schedule)
	if err != nil {
		t.Fatalf("CreateSchedule returned error: %v", err)
	}
	if stored.StartTime != schedule.StartTime || stored.EndTime != schedule.EndTime {
		t.Fatalf("times did not survive the round trip: %s-%s", stored.StartTime, stored.EndTime)
	}
	if stored.StartDate != schedule.StartDate || stored.EndDate != schedule.EndDate || stored.DayOfWeek != time.Monday {
		t.Fatalf("unexpected stored schedule: %#v", stored)
	}

	if err := repos.DeleteSchedule(ctx, "s-1", "admin-1", testNow); err != nil {
		t.Fatalf("DeleteSchedule returned error: %v", err)
	}
	schedules, err := repos.ListSchedules(ctx, "")
	if err != nil {
		t.Fatalf("ListSchedules returned error: %v", err)
	}
	if len(schedules) != 0 {
		t.Fatalf("expected deleted schedule to be hidden, got %#v", schedules)
	}
}

func TestToApplicationSchedule_RejectsCorruptRow(t *testing.T) {
	_, err := toApplicationSchedule(persistence.Schedule{
		ID:        "s-bad",
		StartTime: "9am",
		EndTime:   "10:00:00",
		StartDate: "2025-06-02",
		EndDate:   "2025-08-25",
	})
	if err == nil {
		t.Fatalf("expected decode error for malformed time")
	}
}
