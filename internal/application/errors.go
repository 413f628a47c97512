package application

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrForbidden is returned when the acting user lacks rights over the target.
	ErrForbidden = errors.New("application: forbidden")
	// ErrNotFound is returned when the requested resource does not exist.
	ErrNotFound = errors.New("application: not found")
	// ErrBadRequest is returned for invalid state transitions and non-bookable rooms.
	ErrBadRequest = errors.New("application: bad request")
	// ErrConflict is returned when a booking or schedule overlaps an existing one.
	ErrConflict = errors.New("application: conflict")
	// ErrAlreadyExists is returned when a unique name is already taken.
	ErrAlreadyExists = errors.New("application: already exists")
)

// ValidationError captures field level validation issues that callers can surface to users.
type ValidationError struct {
	FieldErrors map[string]string
}

// Error implements the error interface.
func (v *ValidationError) Error() string {
	if v == nil {
		return ""
	}
	return "validation failed"
}

// HasErrors reports whether any field level issues were recorded.
func (v *ValidationError) HasErrors() bool {
	return v != nil && len(v.FieldErrors) > 0
}

// add records a field level validation error. The first message for a field wins.
func (v *ValidationError) add(field, message string) {
	if v.FieldErrors == nil {
		v.FieldErrors = make(map[string]string)
	}
	if _, exists := v.FieldErrors[field]; exists {
		return
	}
	v.FieldErrors[field] = message
}

// merge copies entries from another validation error into the receiver.
func (v *ValidationError) merge(other *ValidationError) {
	if other == nil || len(other.FieldErrors) == 0 {
		return
	}
	for field, msg := range other.FieldErrors {
		v.add(field, msg)
	}
}

// ConflictError names the bookings and schedules blocking a request.
type ConflictError struct {
	Bookings  []BookingConflict
	Schedules []ScheduleConflict
}

// Error implements the error interface.
func (e *ConflictError) Error() string {
	if e == nil {
		return ""
	}
	parts := make([]string, 0, len(e.Bookings)+len(e.Schedules))
	for _, b := range e.Bookings {
		parts = append(parts, fmt.Sprintf("booking %s (%s - %s)", b.BookingID,
			b.Start.UTC().Format("2006-01-02 15:04"), b.End.UTC().Format("2006-01-02 15:04")))
	}
	for _, s := range e.Schedules {
		parts = append(parts, fmt.Sprintf("schedule %q (%s %s-%s)", s.Title, s.Weekday, s.Start, s.End))
	}
	if len(parts) == 0 {
		return ErrConflict.Error()
	}
	return "conflicts with " + strings.Join(parts, ", ")
}

// Unwrap lets errors.Is match ErrConflict.
func (e *ConflictError) Unwrap() error {
	return ErrConflict
}
