package application

import (
	"context"
	"time"
)

// CampusRepository captures the persistence operations needed for campuses.
type CampusRepository interface {
	CreateCampus(ctx context.Context, campus Campus) (Campus, error)
	UpdateCampus(ctx context.Context, campus Campus) (Campus, error)
	GetCampus(ctx context.Context, id string) (Campus, error)
	ListCampuses(ctx context.Context) ([]Campus, error)
	DeleteCampus(ctx context.Context, id, deletedBy string, at time.Time) error
}

// RoomRepository captures the persistence operations needed for rooms.
type RoomRepository interface {
	CreateRoom(ctx context.Context, room Room) (Room, error)
	UpdateRoom(ctx context.Context, room Room) (Room, error)
	GetRoom(ctx context.Context, id string) (Room, error)
	ListRooms(ctx context.Context, campusID string) ([]Room, error)
	DeleteRoom(ctx context.Context, id, deletedBy string, at time.Time) error
}

// BookingQuery narrows booking listings. Zero values leave a dimension open.
type BookingQuery struct {
	RoomID      string
	RequesterID string
	Statuses    []BookingStatus
	From        *time.Time
	To          *time.Time
}

// StatusChange moves a booking to To while its stored status is one of From.
type StatusChange struct {
	BookingID string
	From      []BookingStatus
	To        BookingStatus
	Note      *string
	At        time.Time
}

// BookingRepository captures the persistence operations needed for bookings.
type BookingRepository interface {
	CreateBooking(ctx context.Context, booking Booking) (Booking, error)
	// UpdateBooking rewrites a booking whose stored status still equals
	// booking.Status.
	UpdateBooking(ctx context.Context, booking Booking) (Booking, error)
	GetBooking(ctx context.Context, id string) (Booking, error)
	ListBookings(ctx context.Context, query BookingQuery) ([]Booking, error)
	// ListActiveBookings returns the pending and approved bookings of a room,
	// excluding excludeID when set.
	ListActiveBookings(ctx context.Context, roomID, excludeID string) ([]Booking, error)
	// ListExpiredBookings returns approved bookings that ended at or before
	// now, ordered by start then ID. A non-nil after resumes past that booking.
	ListExpiredBookings(ctx context.Context, now time.Time, after *Booking, limit int) ([]Booking, error)
	UpdateBookingStatus(ctx context.Context, change StatusChange) error
	DeleteBooking(ctx context.Context, id, deletedBy string, at time.Time) error
}

// ScheduleRepository captures the persistence operations needed for schedules.
type ScheduleRepository interface {
	CreateSchedule(ctx context.Context, schedule Schedule) (Schedule, error)
	UpdateSchedule(ctx context.Context, schedule Schedule) (Schedule, error)
	GetSchedule(ctx context.Context, id string) (Schedule, error)
	// ListSchedules returns the live schedules of a room, or of every room
	// when roomID is empty.
	ListSchedules(ctx context.Context, roomID string) ([]Schedule, error)
	DeleteSchedule(ctx context.Context, id, deletedBy string, at time.Time) error
}

// RoomLocker serialises check-then-write sequences on one room.
type RoomLocker interface {
	// LockRoom blocks until the room lock is held or ctx ends. The returned
	// function releases the lock.
	LockRoom(ctx context.Context, roomID string) (unlock func(), err error)
}
