package application

import (
	"context"
	"time"

	"github.com/example/campus-roombook/internal/recurrence"
)

// Role classifies the acting user.
type Role string

const (
	RoleStudent  Role = "student"
	RoleLecturer Role = "lecturer"
	RoleAdmin    Role = "admin"
)

// Actor represents the user invoking a service method.
type Actor struct {
	UserID string
	Role   Role
}

// IsAdmin reports whether the actor holds the administrator role.
func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// Campus groups rooms at one site.
type Campus struct {
	ID        string
	Name      string
	Address   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// RoomStatus is the operational state of a room.
type RoomStatus string

const (
	RoomStatusActive      RoomStatus = "active"
	RoomStatusMaintenance RoomStatus = "maintenance"
	RoomStatusClosed      RoomStatus = "closed"
)

// ApprovalStatus is the administrative approval state of a room.
type ApprovalStatus string

const (
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalRejected ApprovalStatus = "rejected"
	ApprovalPending  ApprovalStatus = "pending"
)

// Room is a bookable space on a campus.
type Room struct {
	ID             string
	CampusID       string
	Name           string
	Capacity       int
	Status         RoomStatus
	ApprovalStatus ApprovalStatus
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Bookable reports whether the room accepts new bookings.
func (r Room) Bookable() bool {
	return r.Status == RoomStatusActive && r.ApprovalStatus == ApprovalApproved
}

// BookingStatus is a state of the booking lifecycle.
type BookingStatus string

const (
	BookingPending   BookingStatus = "pending"
	BookingApproved  BookingStatus = "approved"
	BookingRejected  BookingStatus = "rejected"
	BookingCancelled BookingStatus = "cancelled"
	BookingCompleted BookingStatus = "completed"
)

// Terminal reports whether no further transition is possible.
func (s BookingStatus) Terminal() bool {
	switch s {
	case BookingRejected, BookingCancelled, BookingCompleted:
		return true
	}
	return false
}

// Valid reports whether s is a known status.
func (s BookingStatus) Valid() bool {
	switch s {
	case BookingPending, BookingApproved, BookingRejected, BookingCancelled, BookingCompleted:
		return true
	}
	return false
}

// ActiveBookingStatuses are the statuses that occupy a room.
var ActiveBookingStatuses = []BookingStatus{BookingPending, BookingApproved}

// Booking is a one-shot reservation of a room over [Start, End).
type Booking struct {
	ID          string
	RoomID      string
	RequesterID string
	Start       time.Time
	End         time.Time
	Status      BookingStatus
	Purpose     string
	AdminNote   *string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ScheduleType tags a recurring schedule.
type ScheduleType string

const (
	ScheduleCourse      ScheduleType = "course"
	ScheduleMaintenance ScheduleType = "maintenance"
)

// Schedule is a weekly commitment on a room valid between StartDate and EndDate inclusive.
type Schedule struct {
	ID        string
	RoomID    string
	DayOfWeek time.Weekday
	StartTime recurrence.TimeOfDay
	EndTime   recurrence.TimeOfDay
	StartDate recurrence.Date
	EndDate   recurrence.Date
	Type      ScheduleType
	Title     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Pattern returns the recurrence pattern of the schedule.
func (s Schedule) Pattern() recurrence.Pattern {
	return recurrence.Pattern{
		Weekday:   s.DayOfWeek,
		Start:     s.StartTime,
		End:       s.EndTime,
		ValidFrom: s.StartDate,
		ValidTo:   s.EndDate,
	}
}

// BookingConflict describes an existing booking blocking a request.
type BookingConflict struct {
	BookingID string
	Start     time.Time
	End       time.Time
}

// ScheduleConflict describes a recurring schedule blocking a request.
type ScheduleConflict struct {
	ScheduleID string
	Title      string
	Weekday    time.Weekday
	Start      recurrence.TimeOfDay
	End        recurrence.TimeOfDay
	// Date is the first date on which the clash happens.
	Date recurrence.Date
}

// AvailabilityQuery asks whether a room is free over [Start, End).
type AvailabilityQuery struct {
	RoomID           string
	Start            time.Time
	End              time.Time
	ExcludeBookingID string
	// Buffer overrides the policy buffer when non-nil.
	Buffer *time.Duration
}

// Availability is the transient outcome of an availability check.
type Availability struct {
	Available bool
	Bookings  []BookingConflict
	Schedules []ScheduleConflict
}

// conflictError converts a negative availability into a ConflictError.
func (a Availability) conflictError() error {
	if a.Available {
		return nil
	}
	return &ConflictError{Bookings: a.Bookings, Schedules: a.Schedules}
}

// RequestBookingParams wraps the data required to request a booking.
type RequestBookingParams struct {
	Actor   Actor
	RoomID  string    `validate:"required" field:"room_id"`
	Start   time.Time `validate:"required" field:"start"`
	End     time.Time `validate:"required" field:"end"`
	Purpose string    `validate:"required,max=500" field:"purpose"`
}

// UpdateBookingParams wraps the data required to reschedule a pending booking.
type UpdateBookingParams struct {
	Actor     Actor
	BookingID string    `validate:"required" field:"booking_id"`
	Start     time.Time `validate:"required" field:"start"`
	End       time.Time `validate:"required" field:"end"`
	Purpose   string    `validate:"required,max=500" field:"purpose"`
}

// Decision is an administrator verdict on a pending booking.
type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
)

// MinRejectNoteLength is the minimum length of a rejection note.
const MinRejectNoteLength = 10

// DecideBookingParams wraps the data required to approve or reject a booking.
type DecideBookingParams struct {
	Actor     Actor
	BookingID string   `validate:"required" field:"booking_id"`
	Decision  Decision `validate:"required,oneof=approve reject" field:"decision"`
	Note      string   `validate:"max=1000" field:"note"`
}

// ListBookingsParams narrows booking listings. Non-admin actors only see their own bookings.
type ListBookingsParams struct {
	Actor       Actor
	RoomID      string
	RequesterID string
	Statuses    []BookingStatus
	From        *time.Time
	To          *time.Time
}

// ScheduleInput captures caller provided schedule fields. Times are "HH:MM"
// or "HH:MM:SS" and dates are "YYYY-MM-DD".
type ScheduleInput struct {
	RoomID    string `validate:"required" field:"room_id"`
	DayOfWeek int    `validate:"min=0,max=6" field:"day_of_week"`
	StartTime string `validate:"required" field:"start_time"`
	EndTime   string `validate:"required" field:"end_time"`
	StartDate string `validate:"required" field:"start_date"`
	EndDate   string `validate:"required" field:"end_date"`
	Type      string `validate:"required,oneof=course maintenance" field:"type"`
	Title     string `validate:"required,max=200" field:"title"`
}

// CreateScheduleParams wraps the data required to create a schedule.
type CreateScheduleParams struct {
	Actor Actor
	Input ScheduleInput
}

// UpdateScheduleParams wraps the data required to update a schedule.
type UpdateScheduleParams struct {
	Actor      Actor
	ScheduleID string
	Input      ScheduleInput
}

// CampusInput captures caller provided campus fields.
type CampusInput struct {
	Name    string `validate:"required,max=200" field:"name"`
	Address string `validate:"max=500" field:"address"`
}

// CreateCampusParams wraps the data required to create a campus.
type CreateCampusParams struct {
	Actor Actor
	Input CampusInput
}

// UpdateCampusParams wraps the data required to update a campus.
type UpdateCampusParams struct {
	Actor    Actor
	CampusID string
	Input    CampusInput
}

// RoomInput captures caller provided room fields. Empty statuses default to
// active and approved.
type RoomInput struct {
	CampusID       string `validate:"required" field:"campus_id"`
	Name           string `validate:"required,max=200" field:"name"`
	Capacity       int    `validate:"gt=0" field:"capacity"`
	Status         string `validate:"omitempty,oneof=active maintenance closed" field:"status"`
	ApprovalStatus string `validate:"omitempty,oneof=approved rejected pending" field:"approval_status"`
}

// CreateRoomParams wraps the data required to create a room.
type CreateRoomParams struct {
	Actor Actor
	Input RoomInput
}

// UpdateRoomParams wraps the data required to update a room.
type UpdateRoomParams struct {
	Actor  Actor
	RoomID string
	Input  RoomInput
}

// CalendarEntryKind distinguishes calendar entries.
type CalendarEntryKind string

const (
	CalendarBooking  CalendarEntryKind = "booking"
	CalendarSchedule CalendarEntryKind = "schedule"
)

// CalendarEntry is one concrete occupation of a room.
type CalendarEntry struct {
	Kind   CalendarEntryKind
	ID     string
	Title  string
	Start  time.Time
	End    time.Time
	Status BookingStatus
	Type   ScheduleType
}

// RoomCalendar lists the occupations of a room over [From, To).
type RoomCalendar struct {
	Room    Room
	From    time.Time
	To      time.Time
	Entries []CalendarEntry
}

// Notification informs a user about a booking status change.
type Notification struct {
	UserID     string
	BookingID  string
	Status     BookingStatus
	Message    string
	OccurredAt time.Time
}

// Notifier delivers notifications. Delivery failures never undo a transition.
type Notifier interface {
	Notify(ctx context.Context, notification Notification) error
}

// BookingPolicy holds the reservation rules.
type BookingPolicy struct {
	// Buffer is the minimum gap between two bookings of a room.
	Buffer      time.Duration
	MinDuration time.Duration
	MaxDuration time.Duration
	// MinLead and MaxAdvance bound how far ahead of now a booking may start.
	MinLead    time.Duration
	MaxAdvance time.Duration
	// Location is the campus time zone used to map bookings onto weekdays.
	Location *time.Location
}

// DefaultBookingPolicy returns the standard reservation rules.
func DefaultBookingPolicy() BookingPolicy {
	return BookingPolicy{
		Buffer:      15 * time.Minute,
		MinDuration: 30 * time.Minute,
		MaxDuration: 24 * time.Hour,
		MinLead:     30 * time.Minute,
		MaxAdvance:  30 * 24 * time.Hour,
		Location:    time.UTC,
	}
}

func (p BookingPolicy) normalized() BookingPolicy {
	def := DefaultBookingPolicy()
	if p.Buffer < 0 {
		p.Buffer = 0
	}
	if p.MinDuration <= 0 {
		p.MinDuration = def.MinDuration
	}
	if p.MaxDuration <= 0 {
		p.MaxDuration = def.MaxDuration
	}
	if p.MaxAdvance <= 0 {
		p.MaxAdvance = def.MaxAdvance
	}
	if p.MinLead < 0 {
		p.MinLead = 0
	}
	if p.Location == nil {
		p.Location = time.UTC
	}
	return p
}

// DefaultScheduleBuffer is the minimum gap between two schedules of a room.
const DefaultScheduleBuffer = 15 * time.Minute
