// Package adapter bridges the persistence backends to the repository
// interfaces consumed by the application services.
package adapter

import (
	"context"
	"fmt"
	"time"

	"github.com/example/campus-roombook/internal/application"
	"github.com/example/campus-roombook/internal/persistence"
	"github.com/example/campus-roombook/internal/recurrence"
)

// ExpiredBatchSize is the page size of expired booking lists when the caller
// passes none.
const ExpiredBatchSize = 500

// Repositories implements every application repository on top of a
// persistence.Store. Persistence errors are passed through unchanged so that
// the services can map them.
type Repositories struct {
	store persistence.Store
}

var (
	_ application.CampusRepository   = (*Repositories)(nil)
	_ application.RoomRepository     = (*Repositories)(nil)
	_ application.BookingRepository  = (*Repositories)(nil)
	_ application.ScheduleRepository = (*Repositories)(nil)
)

// NewRepositories wraps store.
func NewRepositories(store persistence.Store) *Repositories {
	return &Repositories{store: store}
}

func (r *Repositories) CreateCampus(ctx context.Context, campus application.Campus) (application.Campus, error) {
	if err := r.store.CreateCampus(ctx, toPersistenceCampus(campus)); err != nil {
		return application.Campus{}, err
	}
	return r.GetCampus(ctx, campus.ID)
}

func (r *Repositories) UpdateCampus(ctx context.Context, campus application.Campus) (application.Campus, error) {
	if err := r.store.UpdateCampus(ctx, toPersistenceCampus(campus)); err != nil {
		return application.Campus{}, err
	}
	return r.GetCampus(ctx, campus.ID)
}

func (r *Repositories) GetCampus(ctx context.Context, id string) (application.Campus, error) {
	stored, err := r.store.GetCampus(ctx, id)
	if err != nil {
		return application.Campus{}, err
	}
	return toApplicationCampus(stored), nil
}

func (r *Repositories) ListCampuses(ctx context.Context) ([]application.Campus, error) {
	models, err := r.store.ListCampuses(ctx, persistence.CampusFilter{})
	if err != nil {
		return nil, err
	}
	if len(models) == 0 {
		return nil, nil
	}
	campuses := make([]application.Campus, 0, len(models))
	for _, model := range models {
		campuses = append(campuses, toApplicationCampus(model))
	}
	return campuses, nil
}

func (r *Repositories) DeleteCampus(ctx context.Context, id, deletedBy string, at time.Time) error {
	return r.store.SoftDeleteCampus(ctx, id, deletedBy, at)
}

func (r *Repositories) CreateRoom(ctx context.Context, room application.Room) (application.Room, error) {
	if err := r.store.CreateRoom(ctx, toPersistenceRoom(room)); err != nil {
		return application.Room{}, err
	}
	return r.GetRoom(ctx, room.ID)
}

func (r *Repositories) UpdateRoom(ctx context.Context, room application.Room) (application.Room, error) {
	if err := r.store.UpdateRoom(ctx, toPersistenceRoom(room)); err != nil {
		return application.Room{}, err
	}
	return r.GetRoom(ctx, room.ID)
}

func (r *Repositories) GetRoom(ctx context.Context, id string) (application.Room, error) {
	stored, err := r.store.GetRoom(ctx, id)
	if err != nil {
		return application.Room{}, err
	}
	return toApplicationRoom(stored), nil
}

func (r *Repositories) ListRooms(ctx context.Context, campusID string) ([]application.Room, error) {
	models, err := r.store.ListRooms(ctx, persistence.RoomFilter{CampusID: campusID})
	if err != nil {
		return nil, err
	}
	if len(models) == 0 {
		return nil, nil
	}
	rooms := make([]application.Room, 0, len(models))
	for _, model := range models {
		rooms = append(rooms, toApplicationRoom(model))
	}
	return rooms, nil
}

func (r *Repositories) DeleteRoom(ctx context.Context, id, deletedBy string, at time.Time) error {
	return r.store.SoftDeleteRoom(ctx, id, deletedBy, at)
}

func (r *Repositories) CreateBooking(ctx context.Context, booking application.Booking) (application.Booking, error) {
	if err := r.store.CreateBooking(ctx, toPersistenceBooking(booking)); err != nil {
		return application.Booking{}, err
	}
	return r.GetBooking(ctx, booking.ID)
}

func (r *Repositories) UpdateBooking(ctx context.Context, booking application.Booking) (application.Booking, error) {
	if err := r.store.UpdateBooking(ctx, toPersistenceBooking(booking)); err != nil {
		return application.Booking{}, err
	}
	return r.GetBooking(ctx, booking.ID)
}

func (r *Repositories) GetBooking(ctx context.Context, id string) (application.Booking, error) {
	stored, err := r.store.GetBooking(ctx, id)
	if err != nil {
		return application.Booking{}, err
	}
	return toApplicationBooking(stored), nil
}

func (r *Repositories) ListBookings(ctx context.Context, query application.BookingQuery) ([]application.Booking, error) {
	return r.listBookings(ctx, persistence.BookingFilter{
		RoomID:      query.RoomID,
		RequesterID: query.RequesterID,
		Statuses:    toPersistenceStatuses(query.Statuses),
		From:        query.From,
		To:          query.To,
	})
}

func (r *Repositories) ListActiveBookings(ctx context.Context, roomID, excludeID string) ([]application.Booking, error) {
	return r.listBookings(ctx, persistence.BookingFilter{
		RoomID:    roomID,
		Statuses:  toPersistenceStatuses(application.ActiveBookingStatuses),
		ExcludeID: excludeID,
	})
}

func (r *Repositories) ListExpiredBookings(ctx context.Context, now time.Time, after *application.Booking, limit int) ([]application.Booking, error) {
	if limit <= 0 {
		limit = ExpiredBatchSize
	}
	endedBy := now.UTC()
	filter := persistence.BookingFilter{
		Statuses: []string{string(application.BookingApproved)},
		EndedBy:  &endedBy,
		Limit:    limit,
	}
	if after != nil {
		filter.After = &persistence.BookingCursor{Start: after.Start.UTC(), ID: after.ID}
	}
	return r.listBookings(ctx, filter)
}

func (r *Repositories) listBookings(ctx context.Context, filter persistence.BookingFilter) ([]application.Booking, error) {
	models, err := r.store.ListBookings(ctx, filter)
	if err != nil {
		return nil, err
	}
	if len(models) == 0 {
		return nil, nil
	}
	bookings := make([]application.Booking, 0, len(models))
	for _, model := range models {
		bookings = append(bookings, toApplicationBooking(model))
	}
	return bookings, nil
}

func (r *Repositories) UpdateBookingStatus(ctx context.Context, change application.StatusChange) error {
	return r.store.TransitionBookingStatus(ctx, persistence.StatusTransition{
		ID:   change.BookingID,
		From: toPersistenceStatuses(change.From),
		To:   string(change.To),
		Note: cloneString(change.Note),
		At:   change.At,
	})
}

func (r *Repositories) DeleteBooking(ctx context.Context, id, deletedBy string, at time.Time) error {
	return r.store.SoftDeleteBooking(ctx, id, deletedBy, at)
}

func (r *Repositories) CreateSchedule(ctx context.Context, schedule application.Schedule) (application.Schedule, error) {
	if err := r.store.CreateSchedule(ctx, toPersistenceSchedule(schedule)); err != nil {
		return application.Schedule{}, err
	}
	return r.GetSchedule(ctx, schedule.ID)
}

func (r *Repositories) UpdateSchedule(ctx context.Context, schedule application.Schedule) (application.Schedule, error) {
	if err := r.store.UpdateSchedule(ctx, toPersistenceSchedule(schedule)); err != nil {
		return application.Schedule{}, err
	}
	return r.GetSchedule(ctx, schedule.ID)
}

func (r *Repositories) GetSchedule(ctx context.Context, id string) (application.Schedule, error) {
	stored, err := r.store.GetSchedule(ctx, id)
	if err != nil {
		return application.Schedule{}, err
	}
	return toApplicationSchedule(stored)
}

func (r *Repositories) ListSchedules(ctx context.Context, roomID string) ([]application.Schedule, error) {
	models, err := r.store.ListSchedules(ctx, persistence.ScheduleFilter{RoomID: roomID})
	if err != nil {
		return nil, err
	}
	if len(models) == 0 {
		return nil, nil
	}
	schedules := make([]application.Schedule, 0, len(models))
	for _, model := range models {
		schedule, err := toApplicationSchedule(model)
		if err != nil {
			return nil, err
		}
		schedules = append(schedules, schedule)
	}
	return schedules, nil
}

func (r *Repositories) DeleteSchedule(ctx context.Context, id, deletedBy string, at time.Time) error {
	return r.store.SoftDeleteSchedule(ctx, id, deletedBy, at)
}

func toApplicationCampus(model persistence.Campus) application.Campus {
	return application.Campus{
		ID:        model.ID,
		Name:      model.Name,
		Address:   model.Address,
		CreatedAt: model.CreatedAt,
		UpdatedAt: model.UpdatedAt,
	}
}

func toPersistenceCampus(campus application.Campus) persistence.Campus {
	return persistence.Campus{
		ID:        campus.ID,
		Name:      campus.Name,
		Address:   campus.Address,
		CreatedAt: campus.CreatedAt,
		UpdatedAt: campus.UpdatedAt,
	}
}

func toApplicationRoom(model persistence.Room) application.Room {
	return application.Room{
		ID:             model.ID,
		CampusID:       model.CampusID,
		Name:           model.Name,
		Capacity:       model.Capacity,
		Status:         application.RoomStatus(model.Status),
		ApprovalStatus: application.ApprovalStatus(model.ApprovalStatus),
		CreatedAt:      model.CreatedAt,
		UpdatedAt:      model.UpdatedAt,
	}
}

func toPersistenceRoom(room application.Room) persistence.Room {
	return persistence.Room{
		ID:             room.ID,
		CampusID:       room.CampusID,
		Name:           room.Name,
		Capacity:       room.Capacity,
		Status:         string(room.Status),
		ApprovalStatus: string(room.ApprovalStatus),
		CreatedAt:      room.CreatedAt,
		UpdatedAt:      room.UpdatedAt,
	}
}

func toApplicationBooking(model persistence.Booking) application.Booking {
	return application.Booking{
		ID:          model.ID,
		RoomID:      model.RoomID,
		RequesterID: model.RequesterID,
		Start:       model.Start,
		End:         model.End,
		Status:      application.BookingStatus(model.Status),
		Purpose:     model.Purpose,
		AdminNote:   cloneString(model.AdminNote),
		CreatedAt:   model.CreatedAt,
		UpdatedAt:   model.UpdatedAt,
	}
}

func toPersistenceBooking(booking application.Booking) persistence.Booking {
	return persistence.Booking{
		ID:          booking.ID,
		RoomID:      booking.RoomID,
		RequesterID: booking.RequesterID,
		Start:       booking.Start.UTC(),
		End:         booking.End.UTC(),
		Status:      string(booking.Status),
		Purpose:     booking.Purpose,
		AdminNote:   cloneString(booking.AdminNote),
		CreatedAt:   booking.CreatedAt,
		UpdatedAt:   booking.UpdatedAt,
	}
}

func toApplicationSchedule(model persistence.Schedule) (application.Schedule, error) {
	startTime, err := recurrence.ParseTimeOfDay(model.StartTime)
	if err != nil {
		return application.Schedule{}, fmt.Errorf("decode schedule %s: %w", model.ID, err)
	}
	endTime, err := recurrence.ParseTimeOfDay(model.EndTime)
	if err != nil {
		return application.Schedule{}, fmt.Errorf("decode schedule %s: %w", model.ID, err)
	}
	startDate, err := recurrence.ParseDate(model.StartDate)
	if err != nil {
		return application.Schedule{}, fmt.Errorf("decode schedule %s: %w", model.ID, err)
	}
	endDate, err := recurrence.ParseDate(model.EndDate)
	if err != nil {
		return application.Schedule{}, fmt.Errorf("decode schedule %s: %w", model.ID, err)
	}
	return application.Schedule{
		ID:        model.ID,
		RoomID:    model.RoomID,
		DayOfWeek: time.Weekday(model.DayOfWeek),
		StartTime: startTime,
		EndTime:   endTime,
		StartDate: startDate,
		EndDate:   endDate,
		Type:      application.ScheduleType(model.Type),
		Title:     model.Title,
		CreatedAt: model.CreatedAt,
		UpdatedAt: model.UpdatedAt,
	}, nil
}

func toPersistenceSchedule(schedule application.Schedule) persistence.Schedule {
	return persistence.Schedule{
		ID:        schedule.ID,
		RoomID:    schedule.RoomID,
		DayOfWeek: int(schedule.DayOfWeek),
		StartTime: schedule.StartTime.String(),
		EndTime:   schedule.EndTime.String(),
		StartDate: schedule.StartDate.String(),
		EndDate:   schedule.EndDate.String(),
		Type:      string(schedule.Type),
		Title:     schedule.Title,
		CreatedAt: schedule.CreatedAt,
		UpdatedAt: schedule.UpdatedAt,
	}
}

func toPersistenceStatuses(statuses []application.BookingStatus) []string {
	if len(statuses) == 0 {
		return nil
	}
	out := make([]string, len(statuses))
	for i, status := range statuses {
		out[i] = string(status)
	}
	return out
}

func cloneString(value *string) *string {
	if value == nil {
		return nil
	}
	clone := *value
	return &clone
}
