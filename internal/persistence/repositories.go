package persistence

import (
	"context"
	"time"
)

// CampusFilter narrows campus queries.
type CampusFilter struct {
	IncludeDeleted bool
}

// CampusRepository exposes CRUD operations for campuses.
type CampusRepository interface {
	CreateCampus(ctx context.Context, campus Campus) error
	UpdateCampus(ctx context.Context, campus Campus) error
	GetCampus(ctx context.Context, id string) (Campus, error)
	ListCampuses(ctx context.Context, filter CampusFilter) ([]Campus, error)
	SoftDeleteCampus(ctx context.Context, id, deletedBy string, at time.Time) error
}

// RoomFilter narrows room queries.
type RoomFilter struct {
	CampusID       string
	IncludeDeleted bool
}

// RoomRepository exposes CRUD operations for rooms.
type RoomRepository interface {
	CreateRoom(ctx context.Context, room Room) error
	UpdateRoom(ctx context.Context, room Room) error
	GetRoom(ctx context.Context, id string) (Room, error)
	ListRooms(ctx context.Context, filter RoomFilter) ([]Room, error)
	SoftDeleteRoom(ctx context.Context, id, deletedBy string, at time.Time) error
}

// BookingFilter narrows booking queries. Zero values leave a dimension
// unconstrained. From and To select bookings whose interval intersects
// [From, To); EndedBy selects bookings whose end is at or before the instant.
// After skips every booking ordered at or before the cursor.
type BookingFilter struct {
	RoomID         string
	RequesterID    string
	Statuses       []string
	From           *time.Time
	To             *time.Time
	EndedBy        *time.Time
	ExcludeID      string
	After          *BookingCursor
	IncludeDeleted bool
	Limit          int
}

// BookingCursor is a position in the start, ID ordering of booking lists.
type BookingCursor struct {
	Start time.Time
	ID    string
}

// Passed reports whether b is ordered after the cursor.
func (c BookingCursor) Passed(b Booking) bool {
	if b.Start.Equal(c.Start) {
		return b.ID > c.ID
	}
	return b.Start.After(c.Start)
}

// StatusTransition describes a compare-and-set status change. The update only
// applies while the stored status is one of From.
type StatusTransition struct {
	ID   string
	From []string
	To   string
	// Note replaces the admin note when non-nil.
	Note *string
	At   time.Time
}

// BookingRepository stores bookings.
type BookingRepository interface {
	CreateBooking(ctx context.Context, booking Booking) error
	// UpdateBooking rewrites the mutable fields of a booking whose stored
	// status still equals booking.Status. ErrStaleState reports a mismatch.
	UpdateBooking(ctx context.Context, booking Booking) error
	GetBooking(ctx context.Context, id string) (Booking, error)
	ListBookings(ctx context.Context, filter BookingFilter) ([]Booking, error)
	TransitionBookingStatus(ctx context.Context, transition StatusTransition) error
	SoftDeleteBooking(ctx context.Context, id, deletedBy string, at time.Time) error
}

// ScheduleFilter narrows schedule queries.
type ScheduleFilter struct {
	RoomID         string
	IncludeDeleted bool
}

// ScheduleRepository stores recurring schedules.
type ScheduleRepository interface {
	CreateSchedule(ctx context.Context, schedule Schedule) error
	UpdateSchedule(ctx context.Context, schedule Schedule) error
	GetSchedule(ctx context.Context, id string) (Schedule, error)
	ListSchedules(ctx context.Context, filter ScheduleFilter) ([]Schedule, error)
	SoftDeleteSchedule(ctx context.Context, id, deletedBy string, at time.Time) error
}

// Store aggregates every repository a backend provides.
type Store interface {
	CampusRepository
	RoomRepository
	BookingRepository
	ScheduleRepository
	Close() error
}

// ContainsStatus reports whether status is listed in statuses. An empty list
// matches every status.
func ContainsStatus(statuses []string, status string) bool {
	if len(statuses) == 0 {
		return true
	}
	for _, s := range statuses {
		if s == status {
			return true
		}
	}
	return false
}

// MatchesBookingFilter evaluates a filter against a booking in memory.
func MatchesBookingFilter(b Booking, filter BookingFilter) bool {
	if !filter.IncludeDeleted && b.IsDeleted() {
		return false
	}
	if filter.RoomID != "" && b.RoomID != filter.RoomID {
		return false
	}
	if filter.RequesterID != "" && b.RequesterID != filter.RequesterID {
		return false
	}
	if filter.ExcludeID != "" && b.ID == filter.ExcludeID {
		return false
	}
	if !ContainsStatus(filter.Statuses, b.Status) {
		return false
	}
	if filter.From != nil && !b.End.After(*filter.From) {
		return false
	}
	if filter.To != nil && !b.Start.Before(*filter.To) {
		return false
	}
	if filter.EndedBy != nil && b.End.After(*filter.EndedBy) {
		return false
	}
	if filter.After != nil && !filter.After.Passed(b) {
		return false
	}
	return true
}
