package postgres

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/example/campus-roombook/internal/persistence"
)

// Storage implements persistence.Store on PostgreSQL through gorm.
type Storage struct {
	db     *gorm.DB
	logger *zap.Logger
}

var _ persistence.Store = (*Storage)(nil)

// Open connects to PostgreSQL. Call Migrate before use.
func Open(cfg Config, logger *zap.Logger) (*Storage, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	db, err := NewDB(cfg, logger)
	if err != nil {
		return nil, err
	}
	return &Storage{db: db, logger: logger}, nil
}

// NewStorage wraps an existing gorm connection.
func NewStorage(db *gorm.DB, logger *zap.Logger) *Storage {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Storage{db: db, logger: logger}
}

// Migrate applies the embedded schema migrations.
func (s *Storage) Migrate(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("postgres: underlying sql.DB: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("postgres: ping: %w", err)
	}
	return RunMigrations(sqlDB, s.logger)
}

// Ping reports whether the database is reachable.
func (s *Storage) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close releases the connection pool.
func (s *Storage) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func live(db *gorm.DB, includeDeleted bool) *gorm.DB {
	if includeDeleted {
		return db
	}
	return db.Where("deleted_at IS NULL")
}

func softDelete(ctx context.Context, db *gorm.DB, model any, id, deletedBy string, at time.Time) error {
	updates := map[string]any{
		"deleted_at": at.UTC(),
		"updated_at": at.UTC(),
		"deleted_by": nil,
	}
	if deletedBy != "" {
		updates["deleted_by"] = deletedBy
	}
	result := db.WithContext(ctx).Model(model).
		Where("id = ? AND deleted_at IS NULL", id).
		Updates(updates)
	if result.Error != nil {
		return mapError(result.Error)
	}
	if result.RowsAffected == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

// --- campuses ---

// CreateCampus inserts a campus.
func (s *Storage) CreateCampus(ctx context.Context, campus persistence.Campus) error {
	if campus.ID == "" {
		return persistence.ErrConstraintViolation
	}
	record := campusFromPersistence(campus)
	return mapError(s.db.WithContext(ctx).Create(&record).Error)
}

// UpdateCampus rewrites a live campus.
func (s *Storage) UpdateCampus(ctx context.Context, campus persistence.Campus) error {
	result := s.db.WithContext(ctx).Model(&campusRecord{}).
		Where("id = ? AND deleted_at IS NULL", campus.ID).
		Updates(map[string]any{
			"name":       campus.Name,
			"address":    campus.Address,
			"updated_at": campus.UpdatedAt.UTC(),
		})
	if result.Error != nil {
		return mapError(result.Error)
	}
	if result.RowsAffected == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

// GetCampus loads a live campus.
func (s *Storage) GetCampus(ctx context.Context, id string) (persistence.Campus, error) {
	var record campusRecord
	err := s.db.WithContext(ctx).Where("id = ? AND deleted_at IS NULL", id).First(&record).Error
	if err != nil {
		return persistence.Campus{}, mapError(err)
	}
	return record.toPersistence(), nil
}

// ListCampuses returns campuses ordered by name then ID.
func (s *Storage) ListCampuses(ctx context.Context, filter persistence.CampusFilter) ([]persistence.Campus, error) {
	var records []campusRecord
	err := live(s.db.WithContext(ctx), filter.IncludeDeleted).Order("name ASC, id ASC").Find(&records).Error
	if err != nil {
		return nil, mapError(err)
	}
	campuses := make([]persistence.Campus, 0, len(records))
	for _, r := range records {
		campuses = append(campuses, r.toPersistence())
	}
	return campuses, nil
}

// SoftDeleteCampus stamps the campus deleted.
func (s *Storage) SoftDeleteCampus(ctx context.Context, id, deletedBy string, at time.Time) error {
	return softDelete(ctx, s.db, &campusRecord{}, id, deletedBy, at)
}

// --- rooms ---

// CreateRoom inserts a room.
func (s *Storage) CreateRoom(ctx context.Context, room persistence.Room) error {
	if room.ID == "" || room.Capacity <= 0 {
		return persistence.ErrConstraintViolation
	}
	record := roomFromPersistence(room)
	return mapError(s.db.WithContext(ctx).Create(&record).Error)
}

// UpdateRoom rewrites a live room.
func (s *Storage) UpdateRoom(ctx context.Context, room persistence.Room) error {
	if room.Capacity <= 0 {
		return persistence.ErrConstraintViolation
	}
	result := s.db.WithContext(ctx).Model(&roomRecord{}).
		Where("id = ? AND deleted_at IS NULL", room.ID).
		Updates(map[string]any{
			"campus_id":       room.CampusID,
			"name":            room.Name,
			"capacity":        room.Capacity,
			"status":          room.Status,
			"approval_status": room.ApprovalStatus,
			"updated_at":      room.UpdatedAt.UTC(),
		})
	if result.Error != nil {
		return mapError(result.Error)
	}
	if result.RowsAffected == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

// GetRoom loads a live room.
func (s *Storage) GetRoom(ctx context.Context, id string) (persistence.Room, error) {
	var record roomRecord
	err := s.db.WithContext(ctx).Where("id = ? AND deleted_at IS NULL", id).First(&record).Error
	if err != nil {
		return persistence.Room{}, mapError(err)
	}
	return record.toPersistence(), nil
}

// ListRooms returns rooms ordered by name then ID.
func (s *Storage) ListRooms(ctx context.Context, filter persistence.RoomFilter) ([]persistence.Room, error) {
	query := live(s.db.WithContext(ctx), filter.IncludeDeleted)
	if filter.CampusID != "" {
		query = query.Where("campus_id = ?", filter.CampusID)
	}
	var records []roomRecord
	if err := query.Order("name ASC, id ASC").Find(&records).Error; err != nil {
		return nil, mapError(err)
	}
	rooms := make([]persistence.Room, 0, len(records))
	for _, r := range records {
		rooms = append(rooms, r.toPersistence())
	}
	return rooms, nil
}

// SoftDeleteRoom stamps the room deleted.
func (s *Storage) SoftDeleteRoom(ctx context.Context, id, deletedBy string, at time.Time) error {
	return softDelete(ctx, s.db, &roomRecord{}, id, deletedBy, at)
}

// --- bookings ---

// CreateBooking inserts a booking.
func (s *Storage) CreateBooking(ctx context.Context, booking persistence.Booking) error {
	if booking.ID == "" || !booking.Start.Before(booking.End) {
		return persistence.ErrConstraintViolation
	}
	record := bookingFromPersistence(booking)
	return mapError(s.db.WithContext(ctx).Create(&record).Error)
}

// UpdateBooking rewrites interval and purpose while the stored status matches booking.Status.
func (s *Storage) UpdateBooking(ctx context.Context, booking persistence.Booking) error {
	if booking.ID == "" || !booking.Start.Before(booking.End) {
		return persistence.ErrConstraintViolation
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&bookingRecord{}).
			Where("id = ? AND status = ? AND deleted_at IS NULL", booking.ID, booking.Status).
			Updates(map[string]any{
				"start_at":   booking.Start.UTC(),
				"end_at":     booking.End.UTC(),
				"purpose":    booking.Purpose,
				"updated_at": booking.UpdatedAt.UTC(),
			})
		if result.Error != nil {
			return mapError(result.Error)
		}
		if result.RowsAffected == 0 {
			return explainMiss(tx, booking.ID)
		}
		return nil
	})
}

// GetBooking loads a live booking.
func (s *Storage) GetBooking(ctx context.Context, id string) (persistence.Booking, error) {
	var record bookingRecord
	err := s.db.WithContext(ctx).Where("id = ? AND deleted_at IS NULL", id).First(&record).Error
	if err != nil {
		return persistence.Booking{}, mapError(err)
	}
	return record.toPersistence(), nil
}

// ListBookings returns bookings matching filter ordered by start then ID.
func (s *Storage) ListBookings(ctx context.Context, filter persistence.BookingFilter) ([]persistence.Booking, error) {
	query := live(s.db.WithContext(ctx), filter.IncludeDeleted)
	if filter.RoomID != "" {
		query = query.Where("room_id = ?", filter.RoomID)
	}
	if filter.RequesterID != "" {
		query = query.Where("requester_id = ?", filter.RequesterID)
	}
	if filter.ExcludeID != "" {
		query = query.Where("id <> ?", filter.ExcludeID)
	}
	if len(filter.Statuses) > 0 {
		query = query.Where("status IN ?", filter.Statuses)
	}
	if filter.From != nil {
		query = query.Where("end_at > ?", filter.From.UTC())
	}
	if filter.To != nil {
		query = query.Where("start_at < ?", filter.To.UTC())
	}
	if filter.EndedBy != nil {
		query = query.Where("end_at <= ?", filter.EndedBy.UTC())
	}
	if filter.After != nil {
		start := filter.After.Start.UTC()
		query = query.Where("(start_at > ? OR (start_at = ? AND id > ?))", start, start, filter.After.ID)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}

	var records []bookingRecord
	if err := query.Order("start_at ASC, id ASC").Find(&records).Error; err != nil {
		return nil, mapError(err)
	}
	bookings := make([]persistence.Booking, 0, len(records))
	for _, r := range records {
		bookings = append(bookings, r.toPersistence())
	}
	return bookings, nil
}

// TransitionBookingStatus applies a compare-and-set status change.
func (s *Storage) TransitionBookingStatus(ctx context.Context, transition persistence.StatusTransition) error {
	if len(transition.From) == 0 {
		return fmt.Errorf("postgres: transition without source statuses: %w", persistence.ErrConstraintViolation)
	}
	updates := map[string]any{
		"status":     transition.To,
		"updated_at": transition.At.UTC(),
	}
	if transition.Note != nil {
		updates["admin_note"] = *transition.Note
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&bookingRecord{}).
			Where("id = ? AND status IN ? AND deleted_at IS NULL", transition.ID, transition.From).
			Updates(updates)
		if result.Error != nil {
			return mapError(result.Error)
		}
		if result.RowsAffected == 0 {
			return explainMiss(tx, transition.ID)
		}
		return nil
	})
}

// SoftDeleteBooking stamps the booking deleted.
func (s *Storage) SoftDeleteBooking(ctx context.Context, id, deletedBy string, at time.Time) error {
	return softDelete(ctx, s.db, &bookingRecord{}, id, deletedBy, at)
}

func explainMiss(tx *gorm.DB, id string) error {
	var count int64
	err := tx.Model(&bookingRecord{}).Where("id = ? AND deleted_at IS NULL", id).Count(&count).Error
	if err != nil {
		return mapError(err)
	}
	if count == 0 {
		return persistence.ErrNotFound
	}
	return persistence.ErrStaleState
}

// --- schedules ---

// CreateSchedule inserts a schedule.
func (s *Storage) CreateSchedule(ctx context.Context, schedule persistence.Schedule) error {
	if schedule.ID == "" || schedule.DayOfWeek < 0 || schedule.DayOfWeek > 6 {
		return persistence.ErrConstraintViolation
	}
	record := scheduleFromPersistence(schedule)
	return mapError(s.db.WithContext(ctx).Create(&record).Error)
}

// UpdateSchedule rewrites a live schedule.
func (s *Storage) UpdateSchedule(ctx context.Context, schedule persistence.Schedule) error {
	if schedule.DayOfWeek < 0 || schedule.DayOfWeek > 6 {
		return persistence.ErrConstraintViolation
	}
	result := s.db.WithContext(ctx).Model(&scheduleRecord{}).
		Where("id = ? AND deleted_at IS NULL", schedule.ID).
		Updates(map[string]any{
			"room_id":     schedule.RoomID,
			"day_of_week": schedule.DayOfWeek,
			"start_time":  schedule.StartTime,
			"end_time":    schedule.EndTime,
			"start_date":  schedule.StartDate,
			"end_date":    schedule.EndDate,
			"type":        schedule.Type,
			"title":       schedule.Title,
			"updated_at":  schedule.UpdatedAt.UTC(),
		})
	if result.Error != nil {
		return mapError(result.Error)
	}
	if result.RowsAffected == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

// GetSchedule loads a live schedule.
func (s *Storage) GetSchedule(ctx context.Context, id string) (persistence.Schedule, error) {
	var record scheduleRecord
	err := s.db.WithContext(ctx).Where("id = ? AND deleted_at IS NULL", id).First(&record).Error
	if err != nil {
		return persistence.Schedule{}, mapError(err)
	}
	return record.toPersistence(), nil
}

// ListSchedules returns schedules ordered by weekday, start time, then ID.
func (s *Storage) ListSchedules(ctx context.Context, filter persistence.ScheduleFilter) ([]persistence.Schedule, error) {
	query := live(s.db.WithContext(ctx), filter.IncludeDeleted)
	if filter.RoomID != "" {
		query = query.Where("room_id = ?", filter.RoomID)
	}
	var records []scheduleRecord
	if err := query.Order("day_of_week ASC, start_time ASC, id ASC").Find(&records).Error; err != nil {
		return nil, mapError(err)
	}
	schedules := make([]persistence.Schedule, 0, len(records))
	for _, r := range records {
		schedules = append(schedules, r.toPersistence())
	}
	return schedules, nil
}

// SoftDeleteSchedule stamps the schedule deleted.
func (s *Storage) SoftDeleteSchedule(ctx context.Context, id, deletedBy string, at time.Time) error {
	return softDelete(ctx, s.db, &scheduleRecord{}, id, deletedBy, at)
}
