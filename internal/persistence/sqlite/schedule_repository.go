package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/example/campus-roombook/internal/persistence"
)

// ScheduleRepository implements persistence.ScheduleRepository using SQLite
type ScheduleRepository struct {
	helper *QueryHelper
	mapper *ErrorMapper
	retry  *RetryHelper
}

// NewScheduleRepository creates a new SQLite schedule repository
func NewScheduleRepository(pool *ConnectionPool) *ScheduleRepository {
	return &ScheduleRepository{
		helper: NewQueryHelper(pool),
		mapper: NewErrorMapper(),
		retry:  NewRetryHelper(DefaultRetryConfig()),
	}
}

const scheduleColumns = `id, room_id, day_of_week, start_time, end_time, start_date, end_date, type, title, created_at, updated_at, deleted_at, deleted_by`

// CreateSchedule inserts a new schedule
func (r *ScheduleRepository) CreateSchedule(ctx context.Context, schedule persistence.Schedule) error {
	if err := validateSchedule(schedule); err != nil {
		return err
	}

	query := `
		INSERT INTO schedules (id, room_id, day_of_week, start_time, end_time, start_date, end_date, type, title, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	return r.retry.WithRetry(ctx, func() error {
		_, err := r.helper.Exec(ctx, query,
			schedule.ID,
			schedule.RoomID,
			schedule.DayOfWeek,
			schedule.StartTime,
			schedule.EndTime,
			schedule.StartDate,
			schedule.EndDate,
			schedule.Type,
			schedule.Title,
			formatTime(schedule.CreatedAt),
			formatTime(schedule.UpdatedAt),
		)
		return err
	})
}

// UpdateSchedule rewrites a live schedule
func (r *ScheduleRepository) UpdateSchedule(ctx context.Context, schedule persistence.Schedule) error {
	if err := validateSchedule(schedule); err != nil {
		return err
	}

	query := `
		UPDATE schedules
		SET room_id = ?, day_of_week = ?, start_time = ?, end_time = ?, start_date = ?, end_date = ?, type = ?, title = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	var result sql.Result
	err := r.retry.WithRetry(ctx, func() error {
		var execErr error
		result, execErr = r.helper.Exec(ctx, query,
			schedule.RoomID,
			schedule.DayOfWeek,
			schedule.StartTime,
			schedule.EndTime,
			schedule.StartDate,
			schedule.EndDate,
			schedule.Type,
			schedule.Title,
			formatTime(schedule.UpdatedAt),
			schedule.ID,
		)
		return execErr
	})
	if err != nil {
		return err
	}
	return requireAffected(result)
}

// GetSchedule retrieves a live schedule by ID
func (r *ScheduleRepository) GetSchedule(ctx context.Context, id string) (persistence.Schedule, error) {
	if id == "" {
		return persistence.Schedule{}, persistence.ErrNotFound
	}

	query := `SELECT ` + scheduleColumns + ` FROM schedules WHERE id = ? AND deleted_at IS NULL`

	schedule, err := scanSchedule(r.helper.QueryRow(ctx, query, id))
	if err != nil {
		return persistence.Schedule{}, r.mapper.MapError(err)
	}
	return schedule, nil
}

// ListSchedules returns schedules ordered by weekday, start time, then ID
func (r *ScheduleRepository) ListSchedules(ctx context.Context, filter persistence.ScheduleFilter) ([]persistence.Schedule, error) {
	var (
		clauses []string
		args    []any
	)
	if !filter.IncludeDeleted {
		clauses = append(clauses, "deleted_at IS NULL")
	}
	if filter.RoomID != "" {
		clauses = append(clauses, "room_id = ?")
		args = append(args, filter.RoomID)
	}

	query := `SELECT ` + scheduleColumns + ` FROM schedules` + whereClause(clauses) + ` ORDER BY day_of_week ASC, start_time ASC, id ASC`

	rows, err := r.helper.Query(ctx, query, args...)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	var schedules []persistence.Schedule
	for rows.Next() {
		schedule, err := scanSchedule(rows)
		if err != nil {
			return nil, r.mapper.MapError(err)
		}
		schedules = append(schedules, schedule)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}
	return schedules, nil
}

// SoftDeleteSchedule marks a live schedule as deleted
func (r *ScheduleRepository) SoftDeleteSchedule(ctx context.Context, id, deletedBy string, at time.Time) error {
	return softDelete(ctx, r.helper, r.retry, "schedules", id, deletedBy, at)
}

func validateSchedule(schedule persistence.Schedule) error {
	if schedule.ID == "" || schedule.RoomID == "" {
		return persistence.ErrConstraintViolation
	}
	if schedule.DayOfWeek < 0 || schedule.DayOfWeek > 6 {
		return persistence.ErrConstraintViolation
	}
	if schedule.StartTime >= schedule.EndTime || schedule.StartDate > schedule.EndDate {
		return persistence.ErrConstraintViolation
	}
	return nil
}

func scanSchedule(row rowScanner) (persistence.Schedule, error) {
	var (
		schedule             persistence.Schedule
		createdAt, updatedAt string
		deletedAt, deletedBy sql.NullString
	)
	if err := row.Scan(
		&schedule.ID,
		&schedule.RoomID,
		&schedule.DayOfWeek,
		&schedule.StartTime,
		&schedule.EndTime,
		&schedule.StartDate,
		&schedule.EndDate,
		&schedule.Type,
		&schedule.Title,
		&createdAt,
		&updatedAt,
		&deletedAt,
		&deletedBy,
	); err != nil {
		return persistence.Schedule{}, err
	}

	var err error
	if schedule.CreatedAt, err = parseTime(createdAt); err != nil {
		return persistence.Schedule{}, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if schedule.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return persistence.Schedule{}, fmt.Errorf("failed to parse updated_at: %w", err)
	}
	if schedule.SoftDelete, err = scanSoftDelete(deletedAt, deletedBy); err != nil {
		return persistence.Schedule{}, err
	}
	return schedule, nil
}
