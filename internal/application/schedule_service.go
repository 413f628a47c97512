package application

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/example/campus-roombook/internal/persistence"
	"github.com/example/campus-roombook/internal/recurrence"
	"github.com/example/campus-roombook/internal/scheduler"
)

// ScheduleCacheInvalidator drops cached schedules of a room.
type ScheduleCacheInvalidator interface {
	InvalidateRoom(roomID string)
}

// ScheduleServiceDeps wires the schedule service.
type ScheduleServiceDeps struct {
	Schedules ScheduleRepository
	Rooms     RoomRepository
	Locker    RoomLocker
	Cache     ScheduleCacheInvalidator
	// Buffer is the minimum gap between two schedules of a room. Zero uses
	// DefaultScheduleBuffer and a negative value disables the gap.
	Buffer      time.Duration
	IDGenerator func() string
	Now         func() time.Time
	Logger      *zap.Logger
}

// ScheduleService manages recurring room schedules. Every mutation requires
// an administrator.
type ScheduleService struct {
	schedules   ScheduleRepository
	rooms       RoomRepository
	locker      RoomLocker
	cache       ScheduleCacheInvalidator
	buffer      time.Duration
	idGenerator func() string
	now         func() time.Time
	logger      *zap.Logger
}

// NewScheduleService wires dependencies for schedule operations.
func NewScheduleService(deps ScheduleServiceDeps) *ScheduleService {
	idGenerator := deps.IDGenerator
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	locker := deps.Locker
	if locker == nil {
		locker = NewLocalRoomLocker()
	}
	buffer := deps.Buffer
	switch {
	case buffer == 0:
		buffer = DefaultScheduleBuffer
	case buffer < 0:
		buffer = 0
	}
	return &ScheduleService{
		schedules:   deps.Schedules,
		rooms:       deps.Rooms,
		locker:      locker,
		cache:       deps.Cache,
		buffer:      buffer,
		idGenerator: idGenerator,
		now:         now,
		logger:      defaultLogger(deps.Logger),
	}
}

func (s *ScheduleService) loggerWith(ctx context.Context, operation string, fields ...zap.Field) *zap.Logger {
	return serviceLogger(ctx, s.logger, "ScheduleService", operation, fields...)
}

func (s *ScheduleService) ready() error {
	if s == nil {
		return fmt.Errorf("ScheduleService is nil")
	}
	if s.schedules == nil {
		return fmt.Errorf("schedule repository not configured")
	}
	return nil
}

// CreateSchedule validates the input and persists the schedule unless it
// clashes with another schedule of the room.
func (s *ScheduleService) CreateSchedule(ctx context.Context, params CreateScheduleParams) (schedule Schedule, err error) {
	if err = s.ready(); err != nil {
		return
	}

	logger := s.loggerWith(ctx, "CreateSchedule",
		zap.String("actor_id", params.Actor.UserID),
		zap.String("room_id", params.Input.RoomID),
	)
	defer func() {
		logOutcome(logger, err, "failed to create schedule", "schedule created", zap.String("schedule_id", schedule.ID))
	}()

	if !params.Actor.IsAdmin() {
		err = ErrForbidden
		return
	}

	var candidate Schedule
	candidate, err = parseScheduleInput(params.Input)
	if err != nil {
		return
	}

	var unlock func()
	unlock, err = s.locker.LockRoom(ctx, candidate.RoomID)
	if err != nil {
		err = fmt.Errorf("lock room %s: %w", candidate.RoomID, err)
		return
	}
	defer unlock()

	if err = s.ensureRoomExists(ctx, candidate.RoomID); err != nil {
		return
	}

	createdAt := s.now().UTC()
	candidate.ID = s.idGenerator()
	candidate.CreatedAt = createdAt
	candidate.UpdatedAt = createdAt

	if err = s.detectConflicts(ctx, candidate); err != nil {
		return
	}

	schedule, err = s.schedules.CreateSchedule(ctx, candidate)
	if err != nil {
		err = mapScheduleRepoError(err)
		schedule = Schedule{}
		return
	}
	s.invalidate(schedule.RoomID)
	return
}

// UpdateSchedule replaces the fields of an existing schedule after the same
// checks as CreateSchedule, ignoring the schedule itself.
func (s *ScheduleService) UpdateSchedule(ctx context.Context, params UpdateScheduleParams) (schedule Schedule, err error) {
	if err = s.ready(); err != nil {
		return
	}

	logger := s.loggerWith(ctx, "UpdateSchedule",
		zap.String("actor_id", params.Actor.UserID),
		zap.String("schedule_id", params.ScheduleID),
	)
	defer func() {
		logOutcome(logger, err, "failed to update schedule", "schedule updated")
	}()

	if !params.Actor.IsAdmin() {
		err = ErrForbidden
		return
	}

	var existing Schedule
	existing, err = s.schedules.GetSchedule(ctx, params.ScheduleID)
	if err != nil {
		err = mapScheduleRepoError(err)
		return
	}

	var candidate Schedule
	candidate, err = parseScheduleInput(params.Input)
	if err != nil {
		return
	}

	var unlock func()
	unlock, err = s.locker.LockRoom(ctx, candidate.RoomID)
	if err != nil {
		err = fmt.Errorf("lock room %s: %w", candidate.RoomID, err)
		return
	}
	defer unlock()

	if candidate.RoomID != existing.RoomID {
		if err = s.ensureRoomExists(ctx, candidate.RoomID); err != nil {
			return
		}
	}

	candidate.ID = existing.ID
	candidate.CreatedAt = existing.CreatedAt
	candidate.UpdatedAt = s.now().UTC()

	if err = s.detectConflicts(ctx, candidate); err != nil {
		return
	}

	schedule, err = s.schedules.UpdateSchedule(ctx, candidate)
	if err != nil {
		err = mapScheduleRepoError(err)
		schedule = Schedule{}
		return
	}
	s.invalidate(existing.RoomID)
	s.invalidate(schedule.RoomID)
	return
}

// DeleteSchedule soft-deletes a schedule. Bookings made around it are left as
// they are.
func (s *ScheduleService) DeleteSchedule(ctx context.Context, actor Actor, scheduleID string) (err error) {
	if err = s.ready(); err != nil {
		return
	}

	logger := s.loggerWith(ctx, "DeleteSchedule",
		zap.String("actor_id", actor.UserID),
		zap.String("schedule_id", scheduleID),
	)
	defer func() {
		logOutcome(logger, err, "failed to delete schedule", "schedule deleted")
	}()

	if !actor.IsAdmin() {
		err = ErrForbidden
		return
	}

	var existing Schedule
	existing, err = s.schedules.GetSchedule(ctx, scheduleID)
	if err != nil {
		err = mapScheduleRepoError(err)
		return
	}

	if err = s.schedules.DeleteSchedule(ctx, existing.ID, actor.UserID, s.now().UTC()); err != nil {
		err = mapScheduleRepoError(err)
		return
	}
	s.invalidate(existing.RoomID)
	return
}

// GetSchedule returns a live schedule.
func (s *ScheduleService) GetSchedule(ctx context.Context, scheduleID string) (Schedule, error) {
	if err := s.ready(); err != nil {
		return Schedule{}, err
	}
	schedule, err := s.schedules.GetSchedule(ctx, scheduleID)
	if err != nil {
		return Schedule{}, mapScheduleRepoError(err)
	}
	return schedule, nil
}

// ListSchedules returns the live schedules of a room, or of every room when
// roomID is empty, ordered by weekday, start time, and ID.
func (s *ScheduleService) ListSchedules(ctx context.Context, roomID string) ([]Schedule, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	schedules, err := s.schedules.ListSchedules(ctx, roomID)
	if err != nil {
		if isNotFoundError(err) {
			return nil, nil
		}
		return nil, err
	}
	ordered := cloneSchedules(schedules)
	sort.SliceStable(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		if a.DayOfWeek != b.DayOfWeek {
			return a.DayOfWeek < b.DayOfWeek
		}
		if a.StartTime != b.StartTime {
			return a.StartTime < b.StartTime
		}
		return a.ID < b.ID
	})
	return ordered, nil
}

func (s *ScheduleService) ensureRoomExists(ctx context.Context, roomID string) error {
	if s.rooms == nil {
		return nil
	}
	if _, err := s.rooms.GetRoom(ctx, roomID); err != nil {
		if isNotFoundError(err) {
			vErr := &ValidationError{}
			vErr.add("room_id", "room does not exist")
			return vErr
		}
		return err
	}
	return nil
}

func (s *ScheduleService) detectConflicts(ctx context.Context, candidate Schedule) error {
	schedules, err := s.schedules.ListSchedules(ctx, candidate.RoomID)
	if err != nil {
		if isNotFoundError(err) {
			return nil
		}
		return err
	}

	existing := make([]scheduler.Schedule, 0, len(schedules))
	for _, sched := range schedules {
		existing = append(existing, toSchedulerSchedule(sched))
	}
	conflicts := scheduler.DetectScheduleConflicts(existing, toSchedulerSchedule(candidate), s.buffer)
	if len(conflicts) == 0 {
		return nil
	}
	cErr := &ConflictError{}
	for _, c := range conflicts {
		cErr.Schedules = append(cErr.Schedules, toScheduleConflict(c))
	}
	return cErr
}

func (s *ScheduleService) invalidate(roomID string) {
	if s.cache != nil {
		s.cache.InvalidateRoom(roomID)
	}
}

// parseScheduleInput validates the input and converts it to a Schedule.
func parseScheduleInput(input ScheduleInput) (Schedule, error) {
	vErr := validateStruct(input)

	schedule := Schedule{
		RoomID:    strings.TrimSpace(input.RoomID),
		DayOfWeek: time.Weekday(input.DayOfWeek),
		Type:      ScheduleType(input.Type),
		Title:     strings.TrimSpace(input.Title),
	}

	var err error
	if input.StartTime != "" {
		if schedule.StartTime, err = recurrence.ParseTimeOfDay(input.StartTime); err != nil {
			vErr.add("start_time", "start_time must be HH:MM or HH:MM:SS")
		}
	}
	if input.EndTime != "" {
		if schedule.EndTime, err = recurrence.ParseTimeOfDay(input.EndTime); err != nil {
			vErr.add("end_time", "end_time must be HH:MM or HH:MM:SS")
		}
	}
	if input.StartDate != "" {
		if schedule.StartDate, err = recurrence.ParseDate(input.StartDate); err != nil {
			vErr.add("start_date", "start_date must be YYYY-MM-DD")
		}
	}
	if input.EndDate != "" {
		if schedule.EndDate, err = recurrence.ParseDate(input.EndDate); err != nil {
			vErr.add("end_date", "end_date must be YYYY-MM-DD")
		}
	}
	if vErr.HasErrors() {
		return Schedule{}, vErr
	}

	switch err := schedule.Pattern().Validate(); {
	case err == nil:
	case errors.Is(err, recurrence.ErrInvalidTimeRange):
		vErr.add("time", "start_time must be before end_time")
	case errors.Is(err, recurrence.ErrInvalidDateRange):
		vErr.add("date", "start_date must not be after end_date")
	default:
		vErr.add("day_of_week", err.Error())
	}
	if vErr.HasErrors() {
		return Schedule{}, vErr
	}
	return schedule, nil
}

func mapScheduleRepoError(err error) error {
	if err == nil {
		return nil
	}
	if isNotFoundError(err) {
		return ErrNotFound
	}
	if errors.Is(err, persistence.ErrDuplicate) {
		return ErrAlreadyExists
	}
	if errors.Is(err, persistence.ErrConstraintViolation) {
		vErr := &ValidationError{}
		vErr.add("time", "start_time must be before end_time")
		return vErr
	}
	if errors.Is(err, persistence.ErrForeignKeyViolation) {
		vErr := &ValidationError{}
		vErr.add("room_id", "room does not exist")
		return vErr
	}
	return err
}
