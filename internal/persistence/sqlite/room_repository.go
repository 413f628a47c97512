package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/example/campus-roombook/internal/persistence"
)

// RoomRepository implements persistence.RoomRepository using SQLite
type RoomRepository struct {
	helper *QueryHelper
	mapper *ErrorMapper
	retry  *RetryHelper
}

// NewRoomRepository creates a new SQLite room repository
func NewRoomRepository(pool *ConnectionPool) *RoomRepository {
	return &RoomRepository{
		helper: NewQueryHelper(pool),
		mapper: NewErrorMapper(),
		retry:  NewRetryHelper(DefaultRetryConfig()),
	}
}

const roomColumns = `id, campus_id, name, capacity, status, approval_status, created_at, updated_at, deleted_at, deleted_by`

// CreateRoom inserts a new room into the database
func (r *RoomRepository) CreateRoom(ctx context.Context, room persistence.Room) error {
	if room.ID == "" || room.Capacity <= 0 {
		return persistence.ErrConstraintViolation
	}

	query := `
		INSERT INTO rooms (id, campus_id, name, capacity, status, approval_status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	return r.retry.WithRetry(ctx, func() error {
		_, err := r.helper.Exec(ctx, query,
			room.ID,
			room.CampusID,
			room.Name,
			room.Capacity,
			room.Status,
			room.ApprovalStatus,
			formatTime(room.CreatedAt),
			formatTime(room.UpdatedAt),
		)
		return err
	})
}

// UpdateRoom updates a live room in the database
func (r *RoomRepository) UpdateRoom(ctx context.Context, room persistence.Room) error {
	if room.ID == "" || room.Capacity <= 0 {
		return persistence.ErrConstraintViolation
	}

	query := `
		UPDATE rooms
		SET campus_id = ?, name = ?, capacity = ?, status = ?, approval_status = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	var result sql.Result
	err := r.retry.WithRetry(ctx, func() error {
		var execErr error
		result, execErr = r.helper.Exec(ctx, query,
			room.CampusID,
			room.Name,
			room.Capacity,
			room.Status,
			room.ApprovalStatus,
			formatTime(room.UpdatedAt),
			room.ID,
		)
		return execErr
	})
	if err != nil {
		return err
	}

	return requireAffected(result)
}

// GetRoom retrieves a live room by ID from the database
func (r *RoomRepository) GetRoom(ctx context.Context, id string) (persistence.Room, error) {
	if id == "" {
		return persistence.Room{}, persistence.ErrNotFound
	}

	query := `SELECT ` + roomColumns + ` FROM rooms WHERE id = ? AND deleted_at IS NULL`

	room, err := scanRoom(r.helper.QueryRow(ctx, query, id))
	if err != nil {
		return persistence.Room{}, r.mapper.MapError(err)
	}
	return room, nil
}

// ListRooms returns rooms ordered by name then ID
func (r *RoomRepository) ListRooms(ctx context.Context, filter persistence.RoomFilter) ([]persistence.Room, error) {
	var (
		clauses []string
		args    []any
	)
	if !filter.IncludeDeleted {
		clauses = append(clauses, "deleted_at IS NULL")
	}
	if filter.CampusID != "" {
		clauses = append(clauses, "campus_id = ?")
		args = append(args, filter.CampusID)
	}

	query := `SELECT ` + roomColumns + ` FROM rooms` + whereClause(clauses) + ` ORDER BY name ASC, id ASC`

	rows, err := r.helper.Query(ctx, query, args...)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	var rooms []persistence.Room
	for rows.Next() {
		room, err := scanRoom(rows)
		if err != nil {
			return nil, r.mapper.MapError(err)
		}
		rooms = append(rooms, room)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}
	return rooms, nil
}

// SoftDeleteRoom marks a live room as deleted
func (r *RoomRepository) SoftDeleteRoom(ctx context.Context, id, deletedBy string, at time.Time) error {
	return softDelete(ctx, r.helper, r.retry, "rooms", id, deletedBy, at)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRoom(row rowScanner) (persistence.Room, error) {
	var (
		room                   persistence.Room
		createdAt, updatedAt   string
		deletedAt, deletedByNS sql.NullString
	)
	if err := row.Scan(
		&room.ID,
		&room.CampusID,
		&room.Name,
		&room.Capacity,
		&room.Status,
		&room.ApprovalStatus,
		&createdAt,
		&updatedAt,
		&deletedAt,
		&deletedByNS,
	); err != nil {
		return persistence.Room{}, err
	}

	var err error
	if room.CreatedAt, err = parseTime(createdAt); err != nil {
		return persistence.Room{}, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if room.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return persistence.Room{}, fmt.Errorf("failed to parse updated_at: %w", err)
	}
	if room.SoftDelete, err = scanSoftDelete(deletedAt, deletedByNS); err != nil {
		return persistence.Room{}, err
	}
	return room, nil
}

func whereClause(clauses []string) string {
	if len(clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(clauses, " AND ")
}

func requireAffected(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

// softDelete stamps deleted_at and deleted_by on a live row of table.
func softDelete(ctx context.Context, helper *QueryHelper, retry *RetryHelper, table, id, deletedBy string, at time.Time) error {
	if id == "" {
		return persistence.ErrNotFound
	}

	var by any
	if deletedBy != "" {
		by = deletedBy
	}

	query := fmt.Sprintf(`UPDATE %s SET deleted_at = ?, deleted_by = ?, updated_at = ? WHERE id = ? AND deleted_at IS NULL`, table)

	var result sql.Result
	err := retry.WithRetry(ctx, func() error {
		var execErr error
		result, execErr = helper.Exec(ctx, query, formatTime(at), by, formatTime(at), id)
		return execErr
	})
	if err != nil {
		return err
	}
	return requireAffected(result)
}
