package postgres

import (
	"time"

	"github.com/example/campus-roombook/internal/persistence"
)

// SoftDeleteColumns maps the audit columns shared by every table.
type SoftDeleteColumns struct {
	DeletedAt *time.Time `gorm:"column:deleted_at"`
	DeletedBy *string    `gorm:"column:deleted_by;size:64"`
}

func (c SoftDeleteColumns) toPersistence() persistence.SoftDelete {
	out := persistence.SoftDelete{DeletedBy: c.DeletedBy}
	if c.DeletedAt != nil {
		at := c.DeletedAt.UTC()
		out.DeletedAt = &at
	}
	return out
}

type campusRecord struct {
	ID        string    `gorm:"column:id;primaryKey;size:64"`
	Name      string    `gorm:"column:name;size:200;not null"`
	Address   string    `gorm:"column:address;not null"`
	CreatedAt time.Time `gorm:"column:created_at;not null"`
	UpdatedAt time.Time `gorm:"column:updated_at;not null"`
	SoftDeleteColumns
}

func (campusRecord) TableName() string { return "campuses" }

func campusFromPersistence(c persistence.Campus) campusRecord {
	return campusRecord{
		ID:        c.ID,
		Name:      c.Name,
		Address:   c.Address,
		CreatedAt: c.CreatedAt.UTC(),
		UpdatedAt: c.UpdatedAt.UTC(),
	}
}

func (r campusRecord) toPersistence() persistence.Campus {
	return persistence.Campus{
		ID:         r.ID,
		Name:       r.Name,
		Address:    r.Address,
		CreatedAt:  r.CreatedAt.UTC(),
		UpdatedAt:  r.UpdatedAt.UTC(),
		SoftDelete: r.SoftDeleteColumns.toPersistence(),
	}
}

type roomRecord struct {
	ID             string    `gorm:"column:id;primaryKey;size:64"`
	CampusID       string    `gorm:"column:campus_id;size:64;not null"`
	Name           string    `gorm:"column:name;size:200;not null"`
	Capacity       int       `gorm:"column:capacity;not null"`
	Status         string    `gorm:"column:status;size:20;not null"`
	ApprovalStatus string    `gorm:"column:approval_status;size:20;not null"`
	CreatedAt      time.Time `gorm:"column:created_at;not null"`
	UpdatedAt      time.Time `gorm:"column:updated_at;not null"`
	SoftDeleteColumns
}

func (roomRecord) TableName() string { return "rooms" }

func roomFromPersistence(r persistence.Room) roomRecord {
	return roomRecord{
		ID:             r.ID,
		CampusID:       r.CampusID,
		Name:           r.Name,
		Capacity:       r.Capacity,
		Status:         r.Status,
		ApprovalStatus: r.ApprovalStatus,
		CreatedAt:      r.CreatedAt.UTC(),
		UpdatedAt:      r.UpdatedAt.UTC(),
	}
}

func (r roomRecord) toPersistence() persistence.Room {
	return persistence.Room{
		ID:             r.ID,
		CampusID:       r.CampusID,
		Name:           r.Name,
		Capacity:       r.Capacity,
		Status:         r.Status,
		ApprovalStatus: r.ApprovalStatus,
		CreatedAt:      r.CreatedAt.UTC(),
		UpdatedAt:      r.UpdatedAt.UTC(),
		SoftDelete:     r.SoftDeleteColumns.toPersistence(),
	}
}

type bookingRecord struct {
	ID          string    `gorm:"column:id;primaryKey;size:64"`
	RoomID      string    `gorm:"column:room_id;size:64;not null"`
	RequesterID string    `gorm:"column:requester_id;size:64;not null"`
	StartAt     time.Time `gorm:"column:start_at;not null"`
	EndAt       time.Time `gorm:"column:end_at;not null"`
	Status      string    `gorm:"column:status;size:20;not null"`
	Purpose     string    `gorm:"column:purpose;not null"`
	AdminNote   *string   `gorm:"column:admin_note"`
	CreatedAt   time.Time `gorm:"column:created_at;not null"`
	UpdatedAt   time.Time `gorm:"column:updated_at;not null"`
	SoftDeleteColumns
}

func (bookingRecord) TableName() string { return "bookings" }

func bookingFromPersistence(b persistence.Booking) bookingRecord {
	return bookingRecord{
		ID:          b.ID,
		RoomID:      b.RoomID,
		RequesterID: b.RequesterID,
		StartAt:     b.Start.UTC(),
		EndAt:       b.End.UTC(),
		Status:      b.Status,
		Purpose:     b.Purpose,
		AdminNote:   b.AdminNote,
		CreatedAt:   b.CreatedAt.UTC(),
		UpdatedAt:   b.UpdatedAt.UTC(),
	}
}

func (r bookingRecord) toPersistence() persistence.Booking {
	return persistence.Booking{
		ID:          r.ID,
		RoomID:      r.RoomID,
		RequesterID: r.RequesterID,
		Start:       r.StartAt.UTC(),
		End:         r.EndAt.UTC(),
		Status:      r.Status,
		Purpose:     r.Purpose,
		AdminNote:   r.AdminNote,
		CreatedAt:   r.CreatedAt.UTC(),
		UpdatedAt:   r.UpdatedAt.UTC(),
		SoftDelete:  r.SoftDeleteColumns.toPersistence(),
	}
}

type scheduleRecord struct {
	ID        string    `gorm:"column:id;primaryKey;size:64"`
	RoomID    string    `gorm:"column:room_id;size:64;not null"`
	DayOfWeek int       `gorm:"column:day_of_week;not null"`
	StartTime string    `gorm:"column:start_time;size:8;not null"`
	EndTime   string    `gorm:"column:end_time;size:8;not null"`
	StartDate string    `gorm:"column:start_date;size:10;not null"`
	EndDate   string    `gorm:"column:end_date;size:10;not null"`
	Type      string    `gorm:"column:type;size:20;not null"`
	Title     string    `gorm:"column:title;size:200;not null"`
	CreatedAt time.Time `gorm:"column:created_at;not null"`
	UpdatedAt time.Time `gorm:"column:updated_at;not null"`
	SoftDeleteColumns
}

func (scheduleRecord) TableName() string { return "schedules" }

func scheduleFromPersistence(s persistence.Schedule) scheduleRecord {
	return scheduleRecord{
		ID:        s.ID,
		RoomID:    s.RoomID,
		DayOfWeek: s.DayOfWeek,
		StartTime: s.StartTime,
		EndTime:   s.EndTime,
		StartDate: s.StartDate,
		EndDate:   s.EndDate,
		Type:      s.Type,
		Title:     s.Title,
		CreatedAt: s.CreatedAt.UTC(),
		UpdatedAt: s.UpdatedAt.UTC(),
	}
}

func (r scheduleRecord) toPersistence() persistence.Schedule {
	return persistence.Schedule{
		ID:         r.ID,
		RoomID:     r.RoomID,
		DayOfWeek:  r.DayOfWeek,
		StartTime:  r.StartTime,
		EndTime:    r.EndTime,
		StartDate:  r.StartDate,
		EndDate:    r.EndDate,
		Type:       r.Type,
		Title:      r.Title,
		CreatedAt:  r.CreatedAt.UTC(),
		UpdatedAt:  r.UpdatedAt.UTC(),
		SoftDelete: r.SoftDeleteColumns.toPersistence(),
	}
}
