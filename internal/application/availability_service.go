package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/example/campus-roombook/internal/persistence"
	"github.com/example/campus-roombook/internal/scheduler"
)

// AvailabilityServiceDeps wires the availability service.
type AvailabilityServiceDeps struct {
	Rooms     RoomRepository
	Bookings  BookingRepository
	Schedules ScheduleRepository
	Policy    BookingPolicy
	// ScheduleCacheTTL bounds how long room schedules are reused. Zero uses
	// the cache default.
	ScheduleCacheTTL time.Duration
	Now              func() time.Time
	Logger           *zap.Logger
}

// AvailabilityService answers whether a room is free for an interval. It
// never mutates state.
type AvailabilityService struct {
	rooms     RoomRepository
	bookings  BookingRepository
	schedules ScheduleRepository
	policy    BookingPolicy
	cache     *scheduleCache
	logger    *zap.Logger
}

// NewAvailabilityService constructs an availability service.
func NewAvailabilityService(deps AvailabilityServiceDeps) *AvailabilityService {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &AvailabilityService{
		rooms:     deps.Rooms,
		bookings:  deps.Bookings,
		schedules: deps.Schedules,
		policy:    deps.Policy.normalized(),
		cache:     newScheduleCache(deps.ScheduleCacheTTL, 0, now),
		logger:    defaultLogger(deps.Logger),
	}
}

func (s *AvailabilityService) loggerWith(ctx context.Context, operation string, fields ...zap.Field) *zap.Logger {
	return serviceLogger(ctx, s.logger, "AvailabilityService", operation, fields...)
}

// Policy returns the booking policy applied by the service.
func (s *AvailabilityService) Policy() BookingPolicy {
	return s.policy
}

// IsRoomAvailable checks [Start, End) against the room's active bookings,
// widened by the buffer, and against its schedules without a buffer.
func (s *AvailabilityService) IsRoomAvailable(ctx context.Context, query AvailabilityQuery) (result Availability, err error) {
	if s == nil {
		err = fmt.Errorf("AvailabilityService is nil")
		return
	}

	logger := s.loggerWith(ctx, "IsRoomAvailable",
		zap.String("room_id", query.RoomID),
		zap.Time("start", query.Start),
		zap.Time("end", query.End),
	)
	defer func() {
		if err != nil {
			logOutcome(logger, err, "availability check failed", "")
			return
		}
		logger.Debug("availability checked", zap.Bool("available", result.Available))
	}()

	vErr := &ValidationError{}
	if query.RoomID == "" {
		vErr.add("room_id", "room_id is required")
	}
	validateInterval(query.Start, query.End, vErr)
	if query.Buffer != nil && *query.Buffer < 0 {
		vErr.add("buffer", "buffer must not be negative")
	}
	if vErr.HasErrors() {
		err = vErr
		return
	}

	var room Room
	room, err = s.bookableRoom(ctx, query.RoomID)
	if err != nil {
		return
	}

	buffer := s.policy.Buffer
	if query.Buffer != nil {
		buffer = *query.Buffer
	}
	result, err = s.check(ctx, room.ID, query.Start, query.End, buffer, query.ExcludeBookingID, false)
	return
}

// InvalidateRoom drops cached schedules of a room.
func (s *AvailabilityService) InvalidateRoom(roomID string) {
	if s == nil {
		return
	}
	s.cache.Invalidate(roomID)
}

// bookableRoom loads a live room and rejects rooms that do not accept bookings.
func (s *AvailabilityService) bookableRoom(ctx context.Context, roomID string) (Room, error) {
	if s.rooms == nil {
		return Room{}, fmt.Errorf("room repository not configured")
	}
	room, err := s.rooms.GetRoom(ctx, roomID)
	if err != nil {
		if isNotFoundError(err) {
			return Room{}, ErrNotFound
		}
		return Room{}, err
	}
	if !room.Bookable() {
		return Room{}, fmt.Errorf("%w: room %s is %s/%s", ErrBadRequest, room.ID, room.Status, room.ApprovalStatus)
	}
	return room, nil
}

// check detects conflicts for [start, end) in a room. Callers about to write
// a booking hold the room lock and pass fresh so schedules are read from the
// repository rather than the cache.
func (s *AvailabilityService) check(ctx context.Context, roomID string, start, end time.Time, buffer time.Duration, excludeID string, fresh bool) (Availability, error) {
	if s.bookings == nil {
		return Availability{}, fmt.Errorf("booking repository not configured")
	}
	bookings, err := s.bookings.ListActiveBookings(ctx, roomID, excludeID)
	if err != nil {
		return Availability{}, err
	}
	schedules, err := s.roomSchedules(ctx, roomID, fresh)
	if err != nil {
		return Availability{}, err
	}

	existing := make([]scheduler.Booking, 0, len(bookings))
	for _, b := range bookings {
		if b.ID == excludeID {
			continue
		}
		existing = append(existing, scheduler.Booking{
			ID:       b.ID,
			Interval: scheduler.Interval{Start: b.Start, End: b.End},
		})
	}
	recurring := make([]scheduler.Schedule, 0, len(schedules))
	for _, sched := range schedules {
		recurring = append(recurring, toSchedulerSchedule(sched))
	}

	conflicts := scheduler.DetectConflicts(existing, recurring, scheduler.Candidate{
		Interval: scheduler.Interval{Start: start, End: end},
		Buffer:   buffer,
		Location: s.policy.Location,
	})
	return toAvailability(conflicts), nil
}

// roomSchedules returns the live schedules of a room. Unless fresh is set
// they are served from the cache when possible.
func (s *AvailabilityService) roomSchedules(ctx context.Context, roomID string, fresh bool) ([]Schedule, error) {
	if s.schedules == nil {
		return nil, nil
	}
	if !fresh {
		if cached, ok := s.cache.Get(roomID); ok {
			return cached, nil
		}
	}
	gen := s.cache.Begin()
	schedules, err := s.schedules.ListSchedules(ctx, roomID)
	if err != nil {
		if isNotFoundError(err) {
			return nil, nil
		}
		return nil, err
	}
	if !s.cache.Store(roomID, gen, schedules) {
		s.loggerWith(ctx, "roomSchedules", zap.String("room_id", roomID)).
			Debug("schedules changed during read, result not cached")
	}
	return schedules, nil
}

func toSchedulerSchedule(schedule Schedule) scheduler.Schedule {
	return scheduler.Schedule{
		ID:      schedule.ID,
		Title:   schedule.Title,
		Pattern: schedule.Pattern(),
	}
}

func toAvailability(conflicts []scheduler.Conflict) Availability {
	result := Availability{Available: len(conflicts) == 0}
	for _, c := range conflicts {
		switch c.Type {
		case scheduler.ConflictTypeBooking:
			result.Bookings = append(result.Bookings, BookingConflict{
				BookingID: c.WithID,
				Start:     c.Interval.Start,
				End:       c.Interval.End,
			})
		case scheduler.ConflictTypeSchedule:
			result.Schedules = append(result.Schedules, toScheduleConflict(c))
		}
	}
	return result
}

func toScheduleConflict(c scheduler.Conflict) ScheduleConflict {
	return ScheduleConflict{
		ScheduleID: c.WithID,
		Title:      c.Title,
		Weekday:    c.Weekday,
		Start:      c.Start,
		End:        c.End,
		Date:       c.Date,
	}
}

func validateInterval(start, end time.Time, vErr *ValidationError) {
	if start.IsZero() {
		vErr.add("start", "start is required")
	}
	if end.IsZero() {
		vErr.add("end", "end is required")
	}
	if !start.IsZero() && !end.IsZero() && !start.Before(end) {
		vErr.add("time", "start must be before end")
	}
}

func isNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, persistence.ErrNotFound)
}
