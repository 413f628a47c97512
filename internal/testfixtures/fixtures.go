package testfixtures

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/example/campus-roombook/internal/application"
	"github.com/example/campus-roombook/internal/persistence"
	"github.com/example/campus-roombook/internal/recurrence"
)

var (
	campusCounter   uint64
	roomCounter     uint64
	bookingCounter  uint64
	scheduleCounter uint64
)

// referenceTime is a Sunday morning so that weekday helpers land in the
// following week.
var referenceTime = time.Date(2025, time.June, 1, 8, 0, 0, 0, time.UTC)

// ReferenceTime returns the canonical baseline timestamp used by fixtures.
func ReferenceTime() time.Time {
	return referenceTime
}

// ----------------------------- Campus fixtures -----------------------------

// CampusFixture is a deterministic campus record.
type CampusFixture struct {
	ID        string
	Name      string
	Address   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CampusOption customises a CampusFixture.
type CampusOption func(*CampusFixture)

// NewCampusFixture returns a campus with unique identifiers.
func NewCampusFixture(opts ...CampusOption) CampusFixture {
	idx := atomic.AddUint64(&campusCounter, 1)
	f := CampusFixture{
		ID:        fmt.Sprintf("campus-%03d", idx),
		Name:      fmt.Sprintf("Campus %d", idx),
		Address:   fmt.Sprintf("%d University Avenue", idx),
		CreatedAt: referenceTime,
		UpdatedAt: referenceTime,
	}
	for _, opt := range opts {
		opt(&f)
	}
	return f
}

// WithCampusID overrides the campus identifier.
func WithCampusID(id string) CampusOption {
	return func(f *CampusFixture) { f.ID = id }
}

// WithCampusName overrides the campus name.
func WithCampusName(name string) CampusOption {
	return func(f *CampusFixture) { f.Name = name }
}

// Application converts the fixture into an application.Campus.
func (f CampusFixture) Application() application.Campus {
	return application.Campus{ID: f.ID, Name: f.Name, Address: f.Address, CreatedAt: f.CreatedAt, UpdatedAt: f.UpdatedAt}
}

// Persistence converts the fixture into a persistence.Campus.
func (f CampusFixture) Persistence() persistence.Campus {
	return persistence.Campus{ID: f.ID, Name: f.Name, Address: f.Address, CreatedAt: f.CreatedAt, UpdatedAt: f.UpdatedAt}
}

// ----------------------------- Room fixtures -----------------------------

// RoomFixture is a deterministic room record. Rooms default to active and
// approved, which makes them bookable.
type RoomFixture struct {
	ID             string
	CampusID       string
	Name           string
	Capacity       int
	Status         application.RoomStatus
	ApprovalStatus application.ApprovalStatus
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// RoomOption customises a RoomFixture.
type RoomOption func(*RoomFixture)

// NewRoomFixture returns a bookable room.
func NewRoomFixture(opts ...RoomOption) RoomFixture {
	idx := atomic.AddUint64(&roomCounter, 1)
	f := RoomFixture{
		ID:             fmt.Sprintf("room-%03d", idx),
		CampusID:       "campus-main",
		Name:           fmt.Sprintf("Lecture Hall %d", idx),
		Capacity:       40,
		Status:         application.RoomStatusActive,
		ApprovalStatus: application.ApprovalApproved,
		CreatedAt:      referenceTime,
		UpdatedAt:      referenceTime,
	}
	for _, opt := range opts {
		opt(&f)
	}
	return f
}

// WithRoomID overrides the room identifier.
func WithRoomID(id string) RoomOption {
	return func(f *RoomFixture) { f.ID = id }
}

// WithRoomCampus places the room on campusID.
func WithRoomCampus(campusID string) RoomOption {
	return func(f *RoomFixture) { f.CampusID = campusID }
}

// WithRoomName overrides the room name.
func WithRoomName(name string) RoomOption {
	return func(f *RoomFixture) { f.Name = name }
}

// WithRoomStatus overrides the operational and approval states.
func WithRoomStatus(status application.RoomStatus, approval application.ApprovalStatus) RoomOption {
	return func(f *RoomFixture) {
		f.Status = status
		f.ApprovalStatus = approval
	}
}

// Application converts the fixture into an application.Room.
func (f RoomFixture) Application() application.Room {
	return application.Room{
		ID:             f.ID,
		CampusID:       f.CampusID,
		Name:           f.Name,
		Capacity:       f.Capacity,
		Status:         f.Status,
		ApprovalStatus: f.ApprovalStatus,
		CreatedAt:      f.CreatedAt,
		UpdatedAt:      f.UpdatedAt,
	}
}

// Persistence converts the fixture into a persistence.Room.
func (f RoomFixture) Persistence() persistence.Room {
	return persistence.Room{
		ID:             f.ID,
		CampusID:       f.CampusID,
		Name:           f.Name,
		Capacity:       f.Capacity,
		Status:         string(f.Status),
		ApprovalStatus: string(f.ApprovalStatus),
		CreatedAt:      f.CreatedAt,
		UpdatedAt:      f.UpdatedAt,
	}
}

// ----------------------------- Booking fixtures -----------------------------

// BookingFixture is a deterministic booking. The default interval is the
// Monday after ReferenceTime from 09:00 to 10:00 UTC.
type BookingFixture struct {
	ID          string
	RoomID      string
	RequesterID string
	Start       time.Time
	End         time.Time
	Status      application.BookingStatus
	Purpose     string
	AdminNote   *string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// BookingOption customises a BookingFixture.
type BookingOption func(*BookingFixture)

// NewBookingFixture returns a pending booking.
func NewBookingFixture(opts ...BookingOption) BookingFixture {
	idx := atomic.AddUint64(&bookingCounter, 1)
	start := time.Date(2025, time.June, 2, 9, 0, 0, 0, time.UTC)
	f := BookingFixture{
		ID:          fmt.Sprintf("booking-%03d", idx),
		RoomID:      "room-main",
		RequesterID: "student-1",
		Start:       start,
		End:         start.Add(time.Hour),
		Status:      application.BookingPending,
		Purpose:     "Study group",
		CreatedAt:   referenceTime,
		UpdatedAt:   referenceTime,
	}
	for _, opt := range opts {
		opt(&f)
	}
	return f
}

// WithBookingID overrides the booking identifier.
func WithBookingID(id string) BookingOption {
	return func(f *BookingFixture) { f.ID = id }
}

// WithBookingRoom overrides the booked room.
func WithBookingRoom(roomID string) BookingOption {
	return func(f *BookingFixture) { f.RoomID = roomID }
}

// WithBookingRequester overrides the requesting user.
func WithBookingRequester(userID string) BookingOption {
	return func(f *BookingFixture) { f.RequesterID = userID }
}

// WithBookingInterval overrides the booked interval.
func WithBookingInterval(start, end time.Time) BookingOption {
	return func(f *BookingFixture) {
		f.Start = start
		f.End = end
	}
}

// WithBookingStatus overrides the lifecycle status.
func WithBookingStatus(status application.BookingStatus) BookingOption {
	return func(f *BookingFixture) { f.Status = status }
}

// WithBookingNote sets the administrator note.
func WithBookingNote(note string) BookingOption {
	return func(f *BookingFixture) { f.AdminNote = &note }
}

// Application converts the fixture into an application.Booking.
func (f BookingFixture) Application() application.Booking {
	return application.Booking{
		ID:          f.ID,
		RoomID:      f.RoomID,
		RequesterID: f.RequesterID,
		Start:       f.Start,
		End:         f.End,
		Status:      f.Status,
		Purpose:     f.Purpose,
		AdminNote:   cloneNote(f.AdminNote),
		CreatedAt:   f.CreatedAt,
		UpdatedAt:   f.UpdatedAt,
	}
}

// Persistence converts the fixture into a persistence.Booking.
func (f BookingFixture) Persistence() persistence.Booking {
	return persistence.Booking{
		ID:          f.ID,
		RoomID:      f.RoomID,
		RequesterID: f.RequesterID,
		Start:       f.Start,
		End:         f.End,
		Status:      string(f.Status),
		Purpose:     f.Purpose,
		AdminNote:   cloneNote(f.AdminNote),
		CreatedAt:   f.CreatedAt,
		UpdatedAt:   f.UpdatedAt,
	}
}

func cloneNote(note *string) *string {
	if note == nil {
		return nil
	}
	v := *note
	return &v
}

// ----------------------------- Schedule fixtures -----------------------------

// ScheduleFixture is a deterministic weekly schedule. The default is a Monday
// 10:00-12:00 course running through June 2025.
type ScheduleFixture struct {
	ID        string
	RoomID    string
	DayOfWeek time.Weekday
	StartTime recurrence.TimeOfDay
	EndTime   recurrence.TimeOfDay
	StartDate recurrence.Date
	EndDate   recurrence.Date
	Type      application.ScheduleType
	Title     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ScheduleOption customises a ScheduleFixture.
type ScheduleOption func(*ScheduleFixture)

// NewScheduleFixture returns a course schedule.
func NewScheduleFixture(opts ...ScheduleOption) ScheduleFixture {
	idx := atomic.AddUint64(&scheduleCounter, 1)
	f := ScheduleFixture{
		ID:        fmt.Sprintf("schedule-%03d", idx),
		RoomID:    "room-main",
		DayOfWeek: time.Monday,
		StartTime: recurrence.NewTimeOfDay(10, 0, 0),
		EndTime:   recurrence.NewTimeOfDay(12, 0, 0),
		StartDate: recurrence.NewDate(2025, time.June, 1),
		EndDate:   recurrence.NewDate(2025, time.June, 30),
		Type:      application.ScheduleCourse,
		Title:     fmt.Sprintf("Course %d", idx),
		CreatedAt: referenceTime,
		UpdatedAt: referenceTime,
	}
	for _, opt := range opts {
		opt(&f)
	}
	return f
}

// WithScheduleID overrides the schedule identifier.
func WithScheduleID(id string) ScheduleOption {
	return func(f *ScheduleFixture) { f.ID = id }
}

// WithScheduleRoom overrides the room.
func WithScheduleRoom(roomID string) ScheduleOption {
	return func(f *ScheduleFixture) { f.RoomID = roomID }
}

// WithScheduleSlot sets the weekday and daily window.
func WithScheduleSlot(day time.Weekday, start, end recurrence.TimeOfDay) ScheduleOption {
	return func(f *ScheduleFixture) {
		f.DayOfWeek = day
		f.StartTime = start
		f.EndTime = end
	}
}

// WithScheduleDates sets the inclusive validity range.
func WithScheduleDates(from, to recurrence.Date) ScheduleOption {
	return func(f *ScheduleFixture) {
		f.StartDate = from
		f.EndDate = to
	}
}

// WithScheduleType overrides the schedule type.
func WithScheduleType(kind application.ScheduleType) ScheduleOption {
	return func(f *ScheduleFixture) { f.Type = kind }
}

// Application converts the fixture into an application.Schedule.
func (f ScheduleFixture) Application() application.Schedule {
	return application.Schedule{
		ID:        f.ID,
		RoomID:    f.RoomID,
		DayOfWeek: f.DayOfWeek,
		StartTime: f.StartTime,
		EndTime:   f.EndTime,
		StartDate: f.StartDate,
		EndDate:   f.EndDate,
		Type:      f.Type,
		Title:     f.Title,
		CreatedAt: f.CreatedAt,
		UpdatedAt: f.UpdatedAt,
	}
}

// Persistence converts the fixture into a persistence.Schedule.
func (f ScheduleFixture) Persistence() persistence.Schedule {
	return persistence.Schedule{
		ID:        f.ID,
		RoomID:    f.RoomID,
		DayOfWeek: int(f.DayOfWeek),
		StartTime: f.StartTime.String(),
		EndTime:   f.EndTime.String(),
		StartDate: f.StartDate.String(),
		EndDate:   f.EndDate.String(),
		Type:      string(f.Type),
		Title:     f.Title,
		CreatedAt: f.CreatedAt,
		UpdatedAt: f.UpdatedAt,
	}
}
