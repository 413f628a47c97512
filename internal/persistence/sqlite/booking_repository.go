package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/example/campus-roombook/internal/persistence"
)

// BookingRepository implements persistence.BookingRepository using SQLite
type BookingRepository struct {
	pool   *ConnectionPool
	helper *QueryHelper
	mapper *ErrorMapper
	retry  *RetryHelper
}

// NewBookingRepository creates a new SQLite booking repository
func NewBookingRepository(pool *ConnectionPool) *BookingRepository {
	return &BookingRepository{
		pool:   pool,
		helper: NewQueryHelper(pool),
		mapper: NewErrorMapper(),
		retry:  NewRetryHelper(DefaultRetryConfig()),
	}
}

const bookingColumns = `id, room_id, requester_id, start_at, end_at, status, purpose, admin_note, created_at, updated_at, deleted_at, deleted_by`

// CreateBooking inserts a new booking
func (r *BookingRepository) CreateBooking(ctx context.Context, booking persistence.Booking) error {
	if booking.ID == "" || !booking.Start.Before(booking.End) {
		return persistence.ErrConstraintViolation
	}

	query := `
		INSERT INTO bookings (id, room_id, requester_id, start_at, end_at, status, purpose, admin_note, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	return r.retry.WithRetry(ctx, func() error {
		_, err := r.helper.Exec(ctx, query,
			booking.ID,
			booking.RoomID,
			booking.RequesterID,
			formatTime(booking.Start),
			formatTime(booking.End),
			booking.Status,
			booking.Purpose,
			nullableString(booking.AdminNote),
			formatTime(booking.CreatedAt),
			formatTime(booking.UpdatedAt),
		)
		return err
	})
}

// UpdateBooking rewrites interval and purpose while the stored status matches booking.Status.
func (r *BookingRepository) UpdateBooking(ctx context.Context, booking persistence.Booking) error {
	if booking.ID == "" || !booking.Start.Before(booking.End) {
		return persistence.ErrConstraintViolation
	}

	return r.retry.WithRetry(ctx, func() error {
		return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
			result, err := r.helper.ExecTx(ctx, tx, `
				UPDATE bookings
				SET start_at = ?, end_at = ?, purpose = ?, updated_at = ?
				WHERE id = ? AND status = ? AND deleted_at IS NULL
			`,
				formatTime(booking.Start),
				formatTime(booking.End),
				booking.Purpose,
				formatTime(booking.UpdatedAt),
				booking.ID,
				booking.Status,
			)
			if err != nil {
				return err
			}
			return r.explainMiss(ctx, tx, result, booking.ID)
		})
	})
}

// GetBooking retrieves a live booking by ID
func (r *BookingRepository) GetBooking(ctx context.Context, id string) (persistence.Booking, error) {
	if id == "" {
		return persistence.Booking{}, persistence.ErrNotFound
	}

	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = ? AND deleted_at IS NULL`

	booking, err := scanBooking(r.helper.QueryRow(ctx, query, id))
	if err != nil {
		return persistence.Booking{}, r.mapper.MapError(err)
	}
	return booking, nil
}

// ListBookings returns bookings matching filter ordered by start then ID
func (r *BookingRepository) ListBookings(ctx context.Context, filter persistence.BookingFilter) ([]persistence.Booking, error) {
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
	if filter.RequesterID != "" {
		clauses = append(clauses, "requester_id = ?")
		args = append(args, filter.RequesterID)
	}
	if filter.ExcludeID != "" {
		clauses = append(clauses, "id <> ?")
		args = append(args, filter.ExcludeID)
	}
	if len(filter.Statuses) > 0 {
		clauses = append(clauses, "status IN ("+placeholders(len(filter.Statuses))+")")
		for _, status := range filter.Statuses {
			args = append(args, status)
		}
	}
	if filter.From != nil {
		clauses = append(clauses, "end_at > ?")
		args = append(args, formatTime(*filter.From))
	}
	if filter.To != nil {
		clauses = append(clauses, "start_at < ?")
		args = append(args, formatTime(*filter.To))
	}
	if filter.EndedBy != nil {
		clauses = append(clauses, "end_at <= ?")
		args = append(args, formatTime(*filter.EndedBy))
	}
	if filter.After != nil {
		start := formatTime(filter.After.Start)
		clauses = append(clauses, "(start_at > ? OR (start_at = ? AND id > ?))")
		args = append(args, start, start, filter.After.ID)
	}

	query := `SELECT ` + bookingColumns + ` FROM bookings` + whereClause(clauses) + ` ORDER BY start_at ASC, id ASC`
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := r.helper.Query(ctx, query, args...)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	var bookings []persistence.Booking
	for rows.Next() {
		booking, err := scanBooking(rows)
		if err != nil {
			return nil, r.mapper.MapError(err)
		}
		bookings = append(bookings, booking)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}
	return bookings, nil
}

// TransitionBookingStatus applies a compare-and-set status change
func (r *BookingRepository) TransitionBookingStatus(ctx context.Context, transition persistence.StatusTransition) error {
	if transition.ID == "" || transition.To == "" || len(transition.From) == 0 {
		return persistence.ErrConstraintViolation
	}

	args := []any{transition.To, nullableString(transition.Note), formatTime(transition.At), transition.ID}
	for _, from := range transition.From {
		args = append(args, from)
	}

	query := `
		UPDATE bookings
		SET status = ?, admin_note = COALESCE(?, admin_note), updated_at = ?
		WHERE id = ? AND deleted_at IS NULL AND status IN (` + placeholders(len(transition.From)) + `)
	`

	return r.retry.WithRetry(ctx, func() error {
		return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
			result, err := r.helper.ExecTx(ctx, tx, query, args...)
			if err != nil {
				return err
			}
			return r.explainMiss(ctx, tx, result, transition.ID)
		})
	})
}

// SoftDeleteBooking marks a live booking as deleted
func (r *BookingRepository) SoftDeleteBooking(ctx context.Context, id, deletedBy string, at time.Time) error {
	return softDelete(ctx, r.helper, r.retry, "bookings", id, deletedBy, at)
}

// explainMiss distinguishes a missing row from a state mismatch when a
// conditional update affected nothing.
func (r *BookingRepository) explainMiss(ctx context.Context, tx *sql.Tx, result sql.Result, id string) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected > 0 {
		return nil
	}

	var exists int
	err = r.helper.QueryRowTx(ctx, tx, `SELECT 1 FROM bookings WHERE id = ? AND deleted_at IS NULL`, id).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return persistence.ErrNotFound
	}
	if err != nil {
		return err
	}
	return persistence.ErrStaleState
}

func scanBooking(row rowScanner) (persistence.Booking, error) {
	var (
		booking              persistence.Booking
		start, end           string
		adminNote            sql.NullString
		createdAt, updatedAt string
		deletedAt, deletedBy sql.NullString
	)
	if err := row.Scan(
		&booking.ID,
		&booking.RoomID,
		&booking.RequesterID,
		&start,
		&end,
		&booking.Status,
		&booking.Purpose,
		&adminNote,
		&createdAt,
		&updatedAt,
		&deletedAt,
		&deletedBy,
	); err != nil {
		return persistence.Booking{}, err
	}

	var err error
	if booking.Start, err = parseTime(start); err != nil {
		return persistence.Booking{}, fmt.Errorf("failed to parse start_at: %w", err)
	}
	if booking.End, err = parseTime(end); err != nil {
		return persistence.Booking{}, fmt.Errorf("failed to parse end_at: %w", err)
	}
	if booking.CreatedAt, err = parseTime(createdAt); err != nil {
		return persistence.Booking{}, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if booking.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return persistence.Booking{}, fmt.Errorf("failed to parse updated_at: %w", err)
	}
	if adminNote.Valid {
		note := adminNote.String
		booking.AdminNote = &note
	}
	if booking.SoftDelete, err = scanSoftDelete(deletedAt, deletedBy); err != nil {
		return persistence.Booking{}, err
	}
	return booking, nil
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
