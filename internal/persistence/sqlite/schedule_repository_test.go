package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/campus-roombook/internal/persistence"
)

func newSchedule(id, roomID string, day int, start, end string) persistence.Schedule {
	now := referenceTime()
	return persistence.Schedule{
		ID:        id,
		RoomID:    roomID,
		DayOfWeek: day,
		StartTime: start,
		EndTime:   end,
		StartDate: "2025-09-01",
		EndDate:   "2025-12-20",
		Type:      "course",
		Title:     "Schedule " + id,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestScheduleRepository_CRUD(t *testing.T) {
	storage := newTestStorage(t)
	seedRoom(t, storage, "campus-1", "room-1")
	ctx := context.Background()

	schedule := newSchedule("sched-1", "room-1", 1, "07:30:00", "09:30:00")
	if err := storage.CreateSchedule(ctx, schedule); err != nil {
		t.Fatalf("CreateSchedule failed: %v", err)
	}

	fetched, err := storage.GetSchedule(ctx, "sched-1")
	if err != nil {
		t.Fatalf("GetSchedule failed: %v", err)
	}
	if fetched.DayOfWeek != 1 || fetched.StartTime != "07:30:00" || fetched.EndDate != "2025-12-20" || fetched.Type != "course" {
		t.Fatalf("unexpected schedule: %#v", fetched)
	}

	fetched.EndTime = "10:00:00"
	fetched.Title = "Course X"
	fetched.UpdatedAt = referenceTime().Add(time.Hour)
	if err := storage.UpdateSchedule(ctx, fetched); err != nil {
		t.Fatalf("UpdateSchedule failed: %v", err)
	}

	updated, err := storage.GetSchedule(ctx, "sched-1")
	if err != nil {
		t.Fatalf("GetSchedule failed: %v", err)
	}
	if updated.EndTime != "10:00:00" || updated.Title != "Course X" {
		t.Fatalf("unexpected schedule after update: %#v", updated)
	}

	if err := storage.SoftDeleteSchedule(ctx, "sched-1", "admin-1", referenceTime()); err != nil {
		t.Fatalf("SoftDeleteSchedule failed: %v", err)
	}
	if _, err := storage.GetSchedule(ctx, "sched-1"); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	if err := storage.UpdateSchedule(ctx, updated); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected ErrNotFound updating deleted schedule, got %v", err)
	}
}

func TestScheduleRepository_ListSchedules(t *testing.T) {
	storage := newTestStorage(t)
	seedRoom(t, storage, "campus-1", "room-1")
	seedRoom(t, storage, "campus-1", "room-2")
	ctx := context.Background()

	for _, schedule := range []persistence.Schedule{
		newSchedule("sched-c", "room-1", 3, "08:00:00", "09:00:00"),
		newSchedule("sched-b", "room-1", 1, "13:00:00", "15:00:00"),
		newSchedule("sched-a", "room-1", 1, "07:30:00", "09:30:00"),
		newSchedule("sched-x", "room-2", 1, "07:30:00", "09:30:00"),
	} {
		if err := storage.CreateSchedule(ctx, schedule); err != nil {
			t.Fatalf("CreateSchedule(%s) failed: %v", schedule.ID, err)
		}
	}

	schedules, err := storage.ListSchedules(ctx, persistence.ScheduleFilter{RoomID: "room-1"})
	if err != nil {
		t.Fatalf("ListSchedules failed: %v", err)
	}
	want := []string{"sched-a", "sched-b", "sched-c"}
	if len(schedules) != len(want) {
		t.Fatalf("expected %d schedules, got %d", len(want), len(schedules))
	}
	for i, id := range want {
		if schedules[i].ID != id {
			t.Fatalf("expected %s at position %d, got %s", id, i, schedules[i].ID)
		}
	}
}

func TestScheduleRepository_RejectsInvalidRows(t *testing.T) {
	storage := newTestStorage(t)
	seedRoom(t, storage, "campus-1", "room-1")
	ctx := context.Background()

	inverted := newSchedule("sched-1", "room-1", 1, "09:30:00", "07:30:00")
	if err := storage.CreateSchedule(ctx, inverted); !errors.Is(err, persistence.ErrConstraintViolation) {
		t.Fatalf("expected ErrConstraintViolation for inverted times, got %v", err)
	}

	badDay := newSchedule("sched-2", "room-1", 7, "07:30:00", "09:30:00")
	if err := storage.CreateSchedule(ctx, badDay); !errors.Is(err, persistence.ErrConstraintViolation) {
		t.Fatalf("expected ErrConstraintViolation for weekday 7, got %v", err)
	}

	orphan := newSchedule("sched-3", "missing", 1, "07:30:00", "09:30:00")
	if err := storage.CreateSchedule(ctx, orphan); !errors.Is(err, persistence.ErrForeignKeyViolation) {
		t.Fatalf("expected ErrForeignKeyViolation for unknown room, got %v", err)
	}
}
