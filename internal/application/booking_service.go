package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/example/campus-roombook/internal/persistence"
)

// BookingServiceDeps wires the booking service.
type BookingServiceDeps struct {
	Bookings     BookingRepository
	Availability *AvailabilityService
	Locker       RoomLocker
	Notifier     Notifier
	IDGenerator  func() string
	Now          func() time.Time
	Logger       *zap.Logger
	// SweepBatchSize is the page size of the completion sweep. Zero uses
	// DefaultSweepBatchSize.
	SweepBatchSize int
}

// DefaultSweepBatchSize is the completion sweep page size.
const DefaultSweepBatchSize = 500

// BookingService drives the booking lifecycle:
// pending -> approved|rejected|cancelled, approved -> completed|cancelled.
type BookingService struct {
	bookings     BookingRepository
	availability *AvailabilityService
	locker       RoomLocker
	notifier     Notifier
	idGenerator  func() string
	now          func() time.Time
	logger       *zap.Logger

	sweepBatchSize int
}

// NewBookingService constructs a booking service. A nil locker falls back to
// an in-process room lock.
func NewBookingService(deps BookingServiceDeps) *BookingService {
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
	batch := deps.SweepBatchSize
	if batch <= 0 {
		batch = DefaultSweepBatchSize
	}
	return &BookingService{
		bookings:       deps.Bookings,
		availability:   deps.Availability,
		locker:         locker,
		notifier:       deps.Notifier,
		idGenerator:    idGenerator,
		now:            now,
		logger:         defaultLogger(deps.Logger),
		sweepBatchSize: batch,
	}
}

func (s *BookingService) loggerWith(ctx context.Context, operation string, fields ...zap.Field) *zap.Logger {
	return serviceLogger(ctx, s.logger, "BookingService", operation, fields...)
}

func (s *BookingService) ready() error {
	if s == nil {
		return fmt.Errorf("BookingService is nil")
	}
	if s.bookings == nil {
		return fmt.Errorf("booking repository not configured")
	}
	if s.availability == nil {
		return fmt.Errorf("availability service not configured")
	}
	return nil
}

// RequestBooking creates a pending booking once the room is free for the
// requested interval. The room lock is held across the availability check and
// the insert.
func (s *BookingService) RequestBooking(ctx context.Context, params RequestBookingParams) (booking Booking, err error) {
	if err = s.ready(); err != nil {
		return
	}

	logger := s.loggerWith(ctx, "RequestBooking",
		zap.String("actor_id", params.Actor.UserID),
		zap.String("room_id", params.RoomID),
	)
	defer func() {
		logOutcome(logger, err, "failed to request booking", "booking requested", zap.String("booking_id", booking.ID))
	}()

	if params.Actor.UserID == "" {
		err = ErrForbidden
		return
	}

	start, end := params.Start.UTC(), params.End.UTC()
	vErr := validateStruct(params)
	vErr.merge(s.validateWindow(start, end))
	if vErr.HasErrors() {
		err = vErr
		return
	}

	var unlock func()
	unlock, err = s.locker.LockRoom(ctx, params.RoomID)
	if err != nil {
		err = fmt.Errorf("lock room %s: %w", params.RoomID, err)
		return
	}
	defer unlock()

	var room Room
	room, err = s.availability.bookableRoom(ctx, params.RoomID)
	if err != nil {
		return
	}

	var availability Availability
	availability, err = s.availability.check(ctx, room.ID, start, end, s.availability.policy.Buffer, "", true)
	if err != nil {
		return
	}
	if err = availability.conflictError(); err != nil {
		return
	}

	createdAt := s.now().UTC()
	candidate := Booking{
		ID:          s.idGenerator(),
		RoomID:      room.ID,
		RequesterID: params.Actor.UserID,
		Start:       start,
		End:         end,
		Status:      BookingPending,
		Purpose:     strings.TrimSpace(params.Purpose),
		CreatedAt:   createdAt,
		UpdatedAt:   createdAt,
	}

	booking, err = s.bookings.CreateBooking(ctx, candidate)
	if err != nil {
		err = mapBookingRepoError(err)
		booking = Booking{}
	}
	return
}

// UpdateBooking reschedules a pending booking that has not started. Only the
// requester may update it.
func (s *BookingService) UpdateBooking(ctx context.Context, params UpdateBookingParams) (booking Booking, err error) {
	if err = s.ready(); err != nil {
		return
	}

	logger := s.loggerWith(ctx, "UpdateBooking",
		zap.String("actor_id", params.Actor.UserID),
		zap.String("booking_id", params.BookingID),
	)
	defer func() {
		logOutcome(logger, err, "failed to update booking", "booking updated")
	}()

	start, end := params.Start.UTC(), params.End.UTC()
	vErr := validateStruct(params)
	if vErr.HasErrors() {
		err = vErr
		return
	}

	var existing Booking
	existing, err = s.bookings.GetBooking(ctx, params.BookingID)
	if err != nil {
		err = mapBookingRepoError(err)
		return
	}
	if existing.RequesterID != params.Actor.UserID {
		err = ErrForbidden
		return
	}
	if existing.Status != BookingPending {
		err = fmt.Errorf("%w: only pending bookings can be updated, booking is %s", ErrBadRequest, existing.Status)
		return
	}
	if !s.now().Before(existing.Start) {
		err = fmt.Errorf("%w: booking has already started", ErrBadRequest)
		return
	}

	vErr.merge(s.validateWindow(start, end))
	if vErr.HasErrors() {
		err = vErr
		return
	}

	var unlock func()
	unlock, err = s.locker.LockRoom(ctx, existing.RoomID)
	if err != nil {
		err = fmt.Errorf("lock room %s: %w", existing.RoomID, err)
		return
	}
	defer unlock()

	if _, err = s.availability.bookableRoom(ctx, existing.RoomID); err != nil {
		return
	}

	var availability Availability
	availability, err = s.availability.check(ctx, existing.RoomID, start, end, s.availability.policy.Buffer, existing.ID, true)
	if err != nil {
		return
	}
	if err = availability.conflictError(); err != nil {
		return
	}

	updated := existing
	updated.Start = start
	updated.End = end
	updated.Purpose = strings.TrimSpace(params.Purpose)
	updated.UpdatedAt = s.now().UTC()

	booking, err = s.bookings.UpdateBooking(ctx, updated)
	if err != nil {
		err = mapBookingRepoError(err)
		booking = Booking{}
	}
	return
}

// DecideBooking approves or rejects a pending booking and notifies the
// requester. Rejections need a note of at least MinRejectNoteLength characters.
func (s *BookingService) DecideBooking(ctx context.Context, params DecideBookingParams) (booking Booking, err error) {
	if err = s.ready(); err != nil {
		return
	}

	logger := s.loggerWith(ctx, "DecideBooking",
		zap.String("actor_id", params.Actor.UserID),
		zap.String("booking_id", params.BookingID),
		zap.String("decision", string(params.Decision)),
	)
	defer func() {
		logOutcome(logger, err, "failed to decide booking", "booking decided")
	}()

	if !params.Actor.IsAdmin() {
		err = ErrForbidden
		return
	}

	note := strings.TrimSpace(params.Note)
	vErr := validateStruct(params)
	if params.Decision == DecisionReject && len([]rune(note)) < MinRejectNoteLength {
		vErr.add("note", fmt.Sprintf("note must be at least %d characters when rejecting", MinRejectNoteLength))
	}
	if vErr.HasErrors() {
		err = vErr
		return
	}

	var existing Booking
	existing, err = s.bookings.GetBooking(ctx, params.BookingID)
	if err != nil {
		err = mapBookingRepoError(err)
		return
	}
	if existing.Status != BookingPending {
		err = fmt.Errorf("%w: only pending bookings can be decided, booking is %s", ErrBadRequest, existing.Status)
		return
	}

	target := BookingApproved
	if params.Decision == DecisionReject {
		target = BookingRejected
	}
	var notePtr *string
	if note != "" {
		notePtr = &note
	}

	booking, err = s.transition(ctx, existing, []BookingStatus{BookingPending}, target, notePtr)
	if err != nil {
		booking = Booking{}
		return
	}

	message := "Your booking was approved."
	if target == BookingRejected {
		message = "Your booking was rejected: " + note
	}
	s.notify(ctx, logger, booking, message)
	return
}

// CancelBooking cancels a pending or approved booking before it starts. The
// requester or an administrator may cancel; an administrator cancellation is
// reported to the requester. Cancelling a terminal booking is a bad request.
func (s *BookingService) CancelBooking(ctx context.Context, actor Actor, bookingID string) (cancelled bool, err error) {
	if err = s.ready(); err != nil {
		return
	}

	logger := s.loggerWith(ctx, "CancelBooking",
		zap.String("actor_id", actor.UserID),
		zap.String("booking_id", bookingID),
	)
	defer func() {
		logOutcome(logger, err, "failed to cancel booking", "booking cancelled")
	}()

	var existing Booking
	existing, err = s.bookings.GetBooking(ctx, bookingID)
	if err != nil {
		err = mapBookingRepoError(err)
		return
	}

	owner := existing.RequesterID == actor.UserID
	if !owner && !actor.IsAdmin() {
		err = ErrForbidden
		return
	}
	if existing.Status != BookingPending && existing.Status != BookingApproved {
		err = fmt.Errorf("%w: booking is already %s", ErrBadRequest, existing.Status)
		return
	}
	if !s.now().Before(existing.Start) {
		err = fmt.Errorf("%w: booking has already started", ErrBadRequest)
		return
	}

	var updated Booking
	updated, err = s.transition(ctx, existing, []BookingStatus{BookingPending, BookingApproved}, BookingCancelled, nil)
	if err != nil {
		return
	}

	if !owner {
		s.notify(ctx, logger, updated, "Your booking was cancelled by an administrator.")
	}
	cancelled = true
	return
}

// CompleteExpiredBookings marks approved bookings whose end has passed as
// completed and returns how many were completed. Per-booking failures are
// logged and skipped, and the sweep pages past them so they cannot starve
// later bookings. A cancelled ctx abandons the rest of the sweep.
func (s *BookingService) CompleteExpiredBookings(ctx context.Context) (completed int, err error) {
	if err = s.ready(); err != nil {
		return
	}

	failed := 0
	logger := s.loggerWith(ctx, "CompleteExpiredBookings")
	defer func() {
		logOutcome(logger, err, "failed to complete expired bookings", "expired bookings completed",
			zap.Int("completed", completed),
			zap.Int("failed", failed),
		)
	}()

	now := s.now().UTC()
	var after *Booking
	for {
		var expired []Booking
		expired, err = s.bookings.ListExpiredBookings(ctx, now, after, s.sweepBatchSize)
		if err != nil || len(expired) == 0 {
			return
		}

		for i, booking := range expired {
			if ctx.Err() != nil {
				logger.Info("completion sweep interrupted", zap.Int("remaining_in_batch", len(expired)-i))
				return
			}
			updated, terr := s.transition(ctx, booking, []BookingStatus{BookingApproved}, BookingCompleted, nil)
			if terr != nil {
				failed++
				logger.Warn("failed to complete booking",
					zap.String("booking_id", booking.ID),
					zap.Error(terr),
					zap.String("error_kind", ErrorKind(terr)),
				)
				continue
			}
			completed++
			s.notify(ctx, logger, updated, "Your booking has been completed.")
		}

		last := expired[len(expired)-1]
		after = &last
	}
}

// GetBooking returns a booking visible to the actor.
func (s *BookingService) GetBooking(ctx context.Context, actor Actor, bookingID string) (Booking, error) {
	if err := s.ready(); err != nil {
		return Booking{}, err
	}
	booking, err := s.bookings.GetBooking(ctx, bookingID)
	if err != nil {
		return Booking{}, mapBookingRepoError(err)
	}
	if booking.RequesterID != actor.UserID && !actor.IsAdmin() {
		return Booking{}, ErrForbidden
	}
	return booking, nil
}

// ListBookings lists bookings ordered by start. Non-admin actors only see
// their own bookings.
func (s *BookingService) ListBookings(ctx context.Context, params ListBookingsParams) ([]Booking, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	query := BookingQuery{
		RoomID:      params.RoomID,
		RequesterID: params.RequesterID,
		Statuses:    params.Statuses,
		From:        params.From,
		To:          params.To,
	}
	if !params.Actor.IsAdmin() {
		if params.Actor.UserID == "" {
			return nil, ErrForbidden
		}
		query.RequesterID = params.Actor.UserID
	}
	vErr := &ValidationError{}
	for _, status := range params.Statuses {
		if !status.Valid() {
			vErr.add("status", fmt.Sprintf("unknown status %q", status))
		}
	}
	if params.From != nil && params.To != nil && !params.From.Before(*params.To) {
		vErr.add("time", "from must be before to")
	}
	if vErr.HasErrors() {
		return nil, vErr
	}

	bookings, err := s.bookings.ListBookings(ctx, query)
	if err != nil {
		if isNotFoundError(err) {
			return nil, nil
		}
		return nil, err
	}
	return bookings, nil
}

// DeleteBooking soft-deletes a booking of the actor. An approved booking that
// has not ended must be cancelled first.
func (s *BookingService) DeleteBooking(ctx context.Context, actor Actor, bookingID string) (err error) {
	if err = s.ready(); err != nil {
		return
	}

	logger := s.loggerWith(ctx, "DeleteBooking",
		zap.String("actor_id", actor.UserID),
		zap.String("booking_id", bookingID),
	)
	defer func() {
		logOutcome(logger, err, "failed to delete booking", "booking deleted")
	}()

	var existing Booking
	existing, err = s.bookings.GetBooking(ctx, bookingID)
	if err != nil {
		err = mapBookingRepoError(err)
		return
	}
	if existing.RequesterID != actor.UserID {
		err = ErrForbidden
		return
	}
	if existing.Status == BookingApproved && s.now().Before(existing.End) {
		err = fmt.Errorf("%w: cancel the approved booking before deleting it", ErrBadRequest)
		return
	}

	if err = s.bookings.DeleteBooking(ctx, existing.ID, actor.UserID, s.now().UTC()); err != nil {
		err = mapBookingRepoError(err)
	}
	return
}

// validateWindow checks the duration and lead-time policy.
func (s *BookingService) validateWindow(start, end time.Time) *ValidationError {
	vErr := &ValidationError{}
	validateInterval(start, end, vErr)
	if vErr.HasErrors() {
		return vErr
	}

	policy := s.availability.policy
	duration := end.Sub(start)
	if duration < policy.MinDuration {
		vErr.add("duration", fmt.Sprintf("booking must last at least %s", policy.MinDuration))
	} else if duration > policy.MaxDuration {
		vErr.add("duration", fmt.Sprintf("booking must last at most %s", policy.MaxDuration))
	}

	now := s.now()
	if start.Before(now.Add(policy.MinLead)) {
		vErr.add("start", fmt.Sprintf("booking must start at least %s from now", policy.MinLead))
	} else if start.After(now.Add(policy.MaxAdvance)) {
		vErr.add("start", fmt.Sprintf("booking must start within %s from now", policy.MaxAdvance))
	}
	return vErr
}

func (s *BookingService) transition(ctx context.Context, booking Booking, from []BookingStatus, to BookingStatus, note *string) (Booking, error) {
	at := s.now().UTC()
	err := s.bookings.UpdateBookingStatus(ctx, StatusChange{
		BookingID: booking.ID,
		From:      from,
		To:        to,
		Note:      note,
		At:        at,
	})
	if err != nil {
		return Booking{}, mapBookingRepoError(err)
	}
	booking.Status = to
	booking.UpdatedAt = at
	if note != nil {
		value := *note
		booking.AdminNote = &value
	}
	return booking, nil
}

// notify delivers a status notification. Failures are logged only.
func (s *BookingService) notify(ctx context.Context, logger *zap.Logger, booking Booking, message string) {
	if s.notifier == nil {
		return
	}
	err := s.notifier.Notify(ctx, Notification{
		UserID:     booking.RequesterID,
		BookingID:  booking.ID,
		Status:     booking.Status,
		Message:    message,
		OccurredAt: booking.UpdatedAt,
	})
	if err != nil {
		logger.Warn("failed to deliver notification",
			zap.String("booking_id", booking.ID),
			zap.String("status", string(booking.Status)),
			zap.Error(err),
		)
	}
}

func mapBookingRepoError(err error) error {
	if err == nil {
		return nil
	}
	if isNotFoundError(err) {
		return ErrNotFound
	}
	if errors.Is(err, persistence.ErrStaleState) {
		return fmt.Errorf("%w: booking status changed concurrently", ErrBadRequest)
	}
	if errors.Is(err, persistence.ErrDuplicate) {
		return ErrAlreadyExists
	}
	if errors.Is(err, persistence.ErrConstraintViolation) {
		vErr := &ValidationError{}
		vErr.add("time", "start must be before end")
		return vErr
	}
	if errors.Is(err, persistence.ErrForeignKeyViolation) {
		vErr := &ValidationError{}
		vErr.add("room_id", "room does not exist")
		return vErr
	}
	return err
}
