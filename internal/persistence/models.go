package persistence

import "time"

// SoftDelete carries the audit columns shared by every soft-deletable record.
type SoftDelete struct {
	DeletedAt *time.Time
	DeletedBy *string
}

// IsDeleted reports whether the record has been soft-deleted.
func (s SoftDelete) IsDeleted() bool {
	return s.DeletedAt != nil
}

// MarkDeleted stamps the record as deleted by the given actor.
func (s *SoftDelete) MarkDeleted(by string, at time.Time) {
	at = at.UTC()
	s.DeletedAt = &at
	if by == "" {
		s.DeletedBy = nil
		return
	}
	s.DeletedBy = &by
}

// Campus groups rooms at one physical site.
type Campus struct {
	ID        string
	Name      string
	Address   string
	CreatedAt time.Time
	UpdatedAt time.Time
	SoftDelete
}

// Room represents a bookable room on a campus.
type Room struct {
	ID             string
	CampusID       string
	Name           string
	Capacity       int
	Status         string
	ApprovalStatus string
	CreatedAt      time.Time
	UpdatedAt      time.Time
	SoftDelete
}

// Booking represents a one-shot reservation stored in persistence.
type Booking struct {
	ID          string
	RoomID      string
	RequesterID string
	Start       time.Time
	End         time.Time
	Status      string
	Purpose     string
	AdminNote   *string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	SoftDelete
}

// Schedule represents a recurring weekly commitment stored in persistence.
// Times of day are "HH:MM:SS" and dates are "YYYY-MM-DD".
type Schedule struct {
	ID        string
	RoomID    string
	DayOfWeek int
	StartTime string
	EndTime   string
	StartDate string
	EndDate   string
	Type      string
	Title     string
	CreatedAt time.Time
	UpdatedAt time.Time
	SoftDelete
}
