package application

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/example/campus-roombook/internal/recurrence"
)

// MaxCalendarWindow bounds the span of a calendar query.
const MaxCalendarWindow = 93 * 24 * time.Hour

// calendarStatuses are the booking statuses shown on a room calendar.
var calendarStatuses = []BookingStatus{BookingPending, BookingApproved, BookingCompleted}

// CalendarService merges bookings and expanded schedule occurrences of a room.
type CalendarService struct {
	rooms     RoomRepository
	bookings  BookingRepository
	schedules ScheduleRepository
	engine    *recurrence.Engine
	logger    *zap.Logger
}

// NewCalendarService constructs a calendar service. Schedules are expanded in
// loc, which defaults to UTC.
func NewCalendarService(rooms RoomRepository, bookings BookingRepository, schedules ScheduleRepository, loc *time.Location, logger *zap.Logger) *CalendarService {
	return &CalendarService{
		rooms:     rooms,
		bookings:  bookings,
		schedules: schedules,
		engine:    recurrence.NewEngine(loc),
		logger:    defaultLogger(logger),
	}
}

// RoomCalendar returns the occupations of a room intersecting [from, to),
// ordered by start.
func (s *CalendarService) RoomCalendar(ctx context.Context, roomID string, from, to time.Time) (calendar RoomCalendar, err error) {
	if s == nil || s.rooms == nil || s.bookings == nil || s.schedules == nil {
		err = fmt.Errorf("CalendarService is not configured")
		return
	}

	logger := serviceLogger(ctx, s.logger, "CalendarService", "RoomCalendar",
		zap.String("room_id", roomID),
		zap.Time("from", from),
		zap.Time("to", to),
	)
	defer func() {
		if err != nil {
			logOutcome(logger, err, "failed to build room calendar", "")
			return
		}
		logger.Debug("room calendar built", zap.Int("entries", len(calendar.Entries)))
	}()

	vErr := &ValidationError{}
	validateInterval(from, to, vErr)
	if !vErr.HasErrors() && to.Sub(from) > MaxCalendarWindow {
		vErr.add("time", fmt.Sprintf("calendar window must not exceed %s", MaxCalendarWindow))
	}
	if vErr.HasErrors() {
		err = vErr
		return
	}

	var room Room
	room, err = s.rooms.GetRoom(ctx, roomID)
	if err != nil {
		err = mapRoomRepoError(err)
		return
	}

	from, to = from.UTC(), to.UTC()
	var bookings []Booking
	bookings, err = s.bookings.ListBookings(ctx, BookingQuery{
		RoomID:   room.ID,
		Statuses: calendarStatuses,
		From:     &from,
		To:       &to,
	})
	if err != nil {
		return
	}
	var schedules []Schedule
	schedules, err = s.schedules.ListSchedules(ctx, room.ID)
	if err != nil {
		return
	}

	entries := make([]CalendarEntry, 0, len(bookings))
	for _, b := range bookings {
		entries = append(entries, CalendarEntry{
			Kind:   CalendarBooking,
			ID:     b.ID,
			Title:  b.Purpose,
			Start:  b.Start,
			End:    b.End,
			Status: b.Status,
		})
	}
	for _, sched := range schedules {
		var occurrences []recurrence.Occurrence
		occurrences, err = s.engine.Occurrences(sched.Pattern(), from, to)
		if err != nil {
			err = fmt.Errorf("expand schedule %s: %w", sched.ID, err)
			return
		}
		for _, occ := range occurrences {
			entries = append(entries, CalendarEntry{
				Kind:  CalendarSchedule,
				ID:    sched.ID,
				Title: sched.Title,
				Start: occ.Start.UTC(),
				End:   occ.End.UTC(),
				Type:  sched.Type,
			})
		}
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if !entries[i].Start.Equal(entries[j].Start) {
			return entries[i].Start.Before(entries[j].Start)
		}
		return entries[i].ID < entries[j].ID
	})

	calendar = RoomCalendar{Room: room, From: from, To: to, Entries: entries}
	return
}
