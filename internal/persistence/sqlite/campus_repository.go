package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/example/campus-roombook/internal/persistence"
)

// CampusRepository implements persistence.CampusRepository using SQLite
type CampusRepository struct {
	helper *QueryHelper
	mapper *ErrorMapper
	retry  *RetryHelper
}

// NewCampusRepository creates a new SQLite campus repository
func NewCampusRepository(pool *ConnectionPool) *CampusRepository {
	return &CampusRepository{
		helper: NewQueryHelper(pool),
		mapper: NewErrorMapper(),
		retry:  NewRetryHelper(DefaultRetryConfig()),
	}
}

const campusColumns = `id, name, address, created_at, updated_at, deleted_at, deleted_by`

// CreateCampus inserts a new campus
func (r *CampusRepository) CreateCampus(ctx context.Context, campus persistence.Campus) error {
	if campus.ID == "" {
		return persistence.ErrConstraintViolation
	}

	query := `INSERT INTO campuses (id, name, address, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`

	return r.retry.WithRetry(ctx, func() error {
		_, err := r.helper.Exec(ctx, query,
			campus.ID,
			campus.Name,
			campus.Address,
			formatTime(campus.CreatedAt),
			formatTime(campus.UpdatedAt),
		)
		return err
	})
}

// UpdateCampus updates a live campus
func (r *CampusRepository) UpdateCampus(ctx context.Context, campus persistence.Campus) error {
	query := `UPDATE campuses SET name = ?, address = ?, updated_at = ? WHERE id = ? AND deleted_at IS NULL`

	var result sql.Result
	err := r.retry.WithRetry(ctx, func() error {
		var execErr error
		result, execErr = r.helper.Exec(ctx, query, campus.Name, campus.Address, formatTime(campus.UpdatedAt), campus.ID)
		return execErr
	})
	if err != nil {
		return err
	}
	return requireAffected(result)
}

// GetCampus retrieves a live campus by ID
func (r *CampusRepository) GetCampus(ctx context.Context, id string) (persistence.Campus, error) {
	if id == "" {
		return persistence.Campus{}, persistence.ErrNotFound
	}

	query := `SELECT ` + campusColumns + ` FROM campuses WHERE id = ? AND deleted_at IS NULL`

	campus, err := scanCampus(r.helper.QueryRow(ctx, query, id))
	if err != nil {
		return persistence.Campus{}, r.mapper.MapError(err)
	}
	return campus, nil
}

// ListCampuses returns campuses ordered by name then ID
func (r *CampusRepository) ListCampuses(ctx context.Context, filter persistence.CampusFilter) ([]persistence.Campus, error) {
	var clauses []string
	if !filter.IncludeDeleted {
		clauses = append(clauses, "deleted_at IS NULL")
	}

	query := `SELECT ` + campusColumns + ` FROM campuses` + whereClause(clauses) + ` ORDER BY name ASC, id ASC`

	rows, err := r.helper.Query(ctx, query)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	var campuses []persistence.Campus
	for rows.Next() {
		campus, err := scanCampus(rows)
		if err != nil {
			return nil, r.mapper.MapError(err)
		}
		campuses = append(campuses, campus)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}
	return campuses, nil
}

// SoftDeleteCampus marks a live campus as deleted
func (r *CampusRepository) SoftDeleteCampus(ctx context.Context, id, deletedBy string, at time.Time) error {
	return softDelete(ctx, r.helper, r.retry, "campuses", id, deletedBy, at)
}

func scanCampus(row rowScanner) (persistence.Campus, error) {
	var (
		campus               persistence.Campus
		createdAt, updatedAt string
		deletedAt, deletedBy sql.NullString
	)
	if err := row.Scan(&campus.ID, &campus.Name, &campus.Address, &createdAt, &updatedAt, &deletedAt, &deletedBy); err != nil {
		return persistence.Campus{}, err
	}

	var err error
	if campus.CreatedAt, err = parseTime(createdAt); err != nil {
		return persistence.Campus{}, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if campus.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return persistence.Campus{}, fmt.Errorf("failed to parse updated_at: %w", err)
	}
	if campus.SoftDelete, err = scanSoftDelete(deletedAt, deletedBy); err != nil {
		return persistence.Campus{}, err
	}
	return campus, nil
}
