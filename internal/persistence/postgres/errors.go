package postgres

import (
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/example/campus-roombook/internal/persistence"
)

// mapError converts gorm and PostgreSQL errors into persistence sentinels.
// gorm translates unique and foreign key violations when TranslateError is
// set; check and not-null violations are matched on their SQLSTATE.
func mapError(err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return persistence.ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%w: %v", persistence.ErrDuplicate, err)
	case errors.Is(err, gorm.ErrForeignKeyViolated):
		return fmt.Errorf("%w: %v", persistence.ErrForeignKeyViolation, err)
	}

	msg := err.Error()
	switch {
	case strings.Contains(msg, "SQLSTATE 23505"):
		return fmt.Errorf("%w: %v", persistence.ErrDuplicate, err)
	case strings.Contains(msg, "SQLSTATE 23503"):
		return fmt.Errorf("%w: %v", persistence.ErrForeignKeyViolation, err)
	case strings.Contains(msg, "SQLSTATE 23514"), strings.Contains(msg, "SQLSTATE 23502"):
		return fmt.Errorf("%w: %v", persistence.ErrConstraintViolation, err)
	}
	return err
}
