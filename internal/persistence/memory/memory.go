package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/example/campus-roombook/internal/persistence"
)

// Storage provides an in-memory persistence layer implementation.
type Storage struct {
	mu        sync.RWMutex
	campuses  map[string]persistence.Campus
	rooms     map[string]persistence.Room
	bookings  map[string]persistence.Booking
	schedules map[string]persistence.Schedule
}

var _ persistence.Store = (*Storage)(nil)

// Open returns a new empty Storage instance.
func Open() *Storage {
	return &Storage{
		campuses:  make(map[string]persistence.Campus),
		rooms:     make(map[string]persistence.Room),
		bookings:  make(map[string]persistence.Booking),
		schedules: make(map[string]persistence.Schedule),
	}
}

// Close releases resources held by the storage. No-op for the in-memory implementation.
func (s *Storage) Close() error {
	return nil
}

// --- CampusRepository implementation ---

// CreateCampus stores a new campus.
func (s *Storage) CreateCampus(ctx context.Context, campus persistence.Campus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if campus.ID == "" {
		return persistence.ErrConstraintViolation
	}
	if _, ok := s.campuses[campus.ID]; ok {
		return fmt.Errorf("memory: campus %s: %w", campus.ID, persistence.ErrDuplicate)
	}
	for _, existing := range s.campuses {
		if !existing.IsDeleted() && existing.Name == campus.Name {
			return fmt.Errorf("memory: campus name %q: %w", campus.Name, persistence.ErrDuplicate)
		}
	}

	s.campuses[campus.ID] = cloneCampus(campus)
	return nil
}

// UpdateCampus updates an existing campus.
func (s *Storage) UpdateCampus(ctx context.Context, campus persistence.Campus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.campuses[campus.ID]
	if !ok || existing.IsDeleted() {
		return persistence.ErrNotFound
	}
	for id, other := range s.campuses {
		if id != campus.ID && !other.IsDeleted() && other.Name == campus.Name {
			return fmt.Errorf("memory: campus name %q: %w", campus.Name, persistence.ErrDuplicate)
		}
	}

	campus.CreatedAt = existing.CreatedAt
	campus.SoftDelete = existing.SoftDelete
	s.campuses[campus.ID] = cloneCampus(campus)
	return nil
}

// GetCampus retrieves a live campus by ID.
func (s *Storage) GetCampus(ctx context.Context, id string) (persistence.Campus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	campus, ok := s.campuses[id]
	if !ok || campus.IsDeleted() {
		return persistence.Campus{}, persistence.ErrNotFound
	}
	return cloneCampus(campus), nil
}

// ListCampuses returns campuses ordered by name then ID.
func (s *Storage) ListCampuses(ctx context.Context, filter persistence.CampusFilter) ([]persistence.Campus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	campuses := make([]persistence.Campus, 0, len(s.campuses))
	for _, campus := range s.campuses {
		if campus.IsDeleted() && !filter.IncludeDeleted {
			continue
		}
		campuses = append(campuses, cloneCampus(campus))
	}
	sort.Slice(campuses, func(i, j int) bool {
		if campuses[i].Name == campuses[j].Name {
			return campuses[i].ID < campuses[j].ID
		}
		return campuses[i].Name < campuses[j].Name
	})
	return campuses, nil
}

// SoftDeleteCampus marks a campus as deleted.
func (s *Storage) SoftDeleteCampus(ctx context.Context, id, deletedBy string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	campus, ok := s.campuses[id]
	if !ok || campus.IsDeleted() {
		return persistence.ErrNotFound
	}
	campus.MarkDeleted(deletedBy, at)
	campus.UpdatedAt = at.UTC()
	s.campuses[id] = campus
	return nil
}

// --- RoomRepository implementation ---

// CreateRoom stores a new room.
func (s *Storage) CreateRoom(ctx context.Context, room persistence.Room) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if room.ID == "" || room.Capacity <= 0 {
		return persistence.ErrConstraintViolation
	}
	if _, ok := s.rooms[room.ID]; ok {
		return fmt.Errorf("memory: room %s: %w", room.ID, persistence.ErrDuplicate)
	}
	if err := s.ensureCampusLocked(room.CampusID); err != nil {
		return err
	}
	if err := s.ensureUniqueRoomNameLocked(room); err != nil {
		return err
	}

	s.rooms[room.ID] = cloneRoom(room)
	return nil
}

// UpdateRoom updates an existing room.
func (s *Storage) UpdateRoom(ctx context.Context, room persistence.Room) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.rooms[room.ID]
	if !ok || existing.IsDeleted() {
		return persistence.ErrNotFound
	}
	if room.Capacity <= 0 {
		return persistence.ErrConstraintViolation
	}
	if err := s.ensureCampusLocked(room.CampusID); err != nil {
		return err
	}
	if err := s.ensureUniqueRoomNameLocked(room); err != nil {
		return err
	}

	room.CreatedAt = existing.CreatedAt
	room.SoftDelete = existing.SoftDelete
	s.rooms[room.ID] = cloneRoom(room)
	return nil
}

// GetRoom retrieves a live room by ID.
func (s *Storage) GetRoom(ctx context.Context, id string) (persistence.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	room, ok := s.rooms[id]
	if !ok || room.IsDeleted() {
		return persistence.Room{}, persistence.ErrNotFound
	}
	return cloneRoom(room), nil
}

// ListRooms returns rooms ordered by name then ID.
func (s *Storage) ListRooms(ctx context.Context, filter persistence.RoomFilter) ([]persistence.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rooms := make([]persistence.Room, 0, len(s.rooms))
	for _, room := range s.rooms {
		if room.IsDeleted() && !filter.IncludeDeleted {
			continue
		}
		if filter.CampusID != "" && room.CampusID != filter.CampusID {
			continue
		}
		rooms = append(rooms, cloneRoom(room))
	}
	sort.Slice(rooms, func(i, j int) bool {
		if rooms[i].Name == rooms[j].Name {
			return rooms[i].ID < rooms[j].ID
		}
		return rooms[i].Name < rooms[j].Name
	})
	return rooms, nil
}

// SoftDeleteRoom marks a room as deleted.
func (s *Storage) SoftDeleteRoom(ctx context.Context, id, deletedBy string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	room, ok := s.rooms[id]
	if !ok || room.IsDeleted() {
		return persistence.ErrNotFound
	}
	room.MarkDeleted(deletedBy, at)
	room.UpdatedAt = at.UTC()
	s.rooms[id] = room
	return nil
}

func (s *Storage) ensureCampusLocked(campusID string) error {
	campus, ok := s.campuses[campusID]
	if !ok || campus.IsDeleted() {
		return fmt.Errorf("memory: campus %s: %w", campusID, persistence.ErrForeignKeyViolation)
	}
	return nil
}

func (s *Storage) ensureUniqueRoomNameLocked(room persistence.Room) error {
	for id, other := range s.rooms {
		if id == room.ID || other.IsDeleted() {
			continue
		}
		if other.CampusID == room.CampusID && other.Name == room.Name {
			return fmt.Errorf("memory: room name %q: %w", room.Name, persistence.ErrDuplicate)
		}
	}
	return nil
}

// --- BookingRepository implementation ---

// CreateBooking stores a new booking.
func (s *Storage) CreateBooking(ctx context.Context, booking persistence.Booking) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if booking.ID == "" || !booking.Start.Before(booking.End) {
		return persistence.ErrConstraintViolation
	}
	if _, ok := s.bookings[booking.ID]; ok {
		return fmt.Errorf("memory: booking %s: %w", booking.ID, persistence.ErrDuplicate)
	}
	if _, ok := s.rooms[booking.RoomID]; !ok {
		return fmt.Errorf("memory: room %s: %w", booking.RoomID, persistence.ErrForeignKeyViolation)
	}

	s.bookings[booking.ID] = cloneBooking(booking)
	return nil
}

// UpdateBooking rewrites the interval and purpose while the stored status matches.
func (s *Storage) UpdateBooking(ctx context.Context, booking persistence.Booking) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.bookings[booking.ID]
	if !ok || existing.IsDeleted() {
		return persistence.ErrNotFound
	}
	if existing.Status != booking.Status {
		return persistence.ErrStaleState
	}
	if !booking.Start.Before(booking.End) {
		return persistence.ErrConstraintViolation
	}

	existing.Start = booking.Start.UTC()
	existing.End = booking.End.UTC()
	existing.Purpose = booking.Purpose
	existing.UpdatedAt = booking.UpdatedAt.UTC()
	s.bookings[booking.ID] = cloneBooking(existing)
	return nil
}

// GetBooking retrieves a live booking by ID.
func (s *Storage) GetBooking(ctx context.Context, id string) (persistence.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	booking, ok := s.bookings[id]
	if !ok || booking.IsDeleted() {
		return persistence.Booking{}, persistence.ErrNotFound
	}
	return cloneBooking(booking), nil
}

// ListBookings returns bookings matching the filter ordered by start then ID.
func (s *Storage) ListBookings(ctx context.Context, filter persistence.BookingFilter) ([]persistence.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	bookings := make([]persistence.Booking, 0)
	for _, booking := range s.bookings {
		if persistence.MatchesBookingFilter(booking, filter) {
			bookings = append(bookings, cloneBooking(booking))
		}
	}
	sort.Slice(bookings, func(i, j int) bool {
		if bookings[i].Start.Equal(bookings[j].Start) {
			return bookings[i].ID < bookings[j].ID
		}
		return bookings[i].Start.Before(bookings[j].Start)
	})
	if filter.Limit > 0 && len(bookings) > filter.Limit {
		bookings = bookings[:filter.Limit]
	}
	return bookings, nil
}

// TransitionBookingStatus applies a compare-and-set status change.
func (s *Storage) TransitionBookingStatus(ctx context.Context, transition persistence.StatusTransition) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	booking, ok := s.bookings[transition.ID]
	if !ok || booking.IsDeleted() {
		return persistence.ErrNotFound
	}
	if !persistence.ContainsStatus(transition.From, booking.Status) {
		return persistence.ErrStaleState
	}

	booking.Status = transition.To
	if transition.Note != nil {
		note := *transition.Note
		booking.AdminNote = &note
	}
	booking.UpdatedAt = transition.At.UTC()
	s.bookings[booking.ID] = booking
	return nil
}

// SoftDeleteBooking marks a booking as deleted.
func (s *Storage) SoftDeleteBooking(ctx context.Context, id, deletedBy string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	booking, ok := s.bookings[id]
	if !ok || booking.IsDeleted() {
		return persistence.ErrNotFound
	}
	booking.MarkDeleted(deletedBy, at)
	booking.UpdatedAt = at.UTC()
	s.bookings[id] = booking
	return nil
}

// --- ScheduleRepository implementation ---

// CreateSchedule stores a new schedule.
func (s *Storage) CreateSchedule(ctx context.Context, schedule persistence.Schedule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if schedule.ID == "" {
		return persistence.ErrConstraintViolation
	}
	if _, ok := s.schedules[schedule.ID]; ok {
		return fmt.Errorf("memory: schedule %s: %w", schedule.ID, persistence.ErrDuplicate)
	}
	if _, ok := s.rooms[schedule.RoomID]; !ok {
		return fmt.Errorf("memory: room %s: %w", schedule.RoomID, persistence.ErrForeignKeyViolation)
	}

	s.schedules[schedule.ID] = cloneSchedule(schedule)
	return nil
}

// UpdateSchedule updates an existing schedule.
func (s *Storage) UpdateSchedule(ctx context.Context, schedule persistence.Schedule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.schedules[schedule.ID]
	if !ok || existing.IsDeleted() {
		return persistence.ErrNotFound
	}
	if _, ok := s.rooms[schedule.RoomID]; !ok {
		return fmt.Errorf("memory: room %s: %w", schedule.RoomID, persistence.ErrForeignKeyViolation)
	}

	schedule.CreatedAt = existing.CreatedAt
	schedule.SoftDelete = existing.SoftDelete
	s.schedules[schedule.ID] = cloneSchedule(schedule)
	return nil
}

// GetSchedule retrieves a live schedule by ID.
func (s *Storage) GetSchedule(ctx context.Context, id string) (persistence.Schedule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	schedule, ok := s.schedules[id]
	if !ok || schedule.IsDeleted() {
		return persistence.Schedule{}, persistence.ErrNotFound
	}
	return cloneSchedule(schedule), nil
}

// ListSchedules returns schedules ordered by weekday, start time, then ID.
func (s *Storage) ListSchedules(ctx context.Context, filter persistence.ScheduleFilter) ([]persistence.Schedule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	schedules := make([]persistence.Schedule, 0)
	for _, schedule := range s.schedules {
		if schedule.IsDeleted() && !filter.IncludeDeleted {
			continue
		}
		if filter.RoomID != "" && schedule.RoomID != filter.RoomID {
			continue
		}
		schedules = append(schedules, cloneSchedule(schedule))
	}
	sort.Slice(schedules, func(i, j int) bool {
		a, b := schedules[i], schedules[j]
		if a.DayOfWeek != b.DayOfWeek {
			return a.DayOfWeek < b.DayOfWeek
		}
		if a.StartTime != b.StartTime {
			return a.StartTime < b.StartTime
		}
		return a.ID < b.ID
	})
	return schedules, nil
}

// SoftDeleteSchedule marks a schedule as deleted.
func (s *Storage) SoftDeleteSchedule(ctx context.Context, id, deletedBy string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	schedule, ok := s.schedules[id]
	if !ok || schedule.IsDeleted() {
		return persistence.ErrNotFound
	}
	schedule.MarkDeleted(deletedBy, at)
	schedule.UpdatedAt = at.UTC()
	s.schedules[id] = schedule
	return nil
}

func cloneSoftDelete(sd persistence.SoftDelete) persistence.SoftDelete {
	var out persistence.SoftDelete
	if sd.DeletedAt != nil {
		at := *sd.DeletedAt
		out.DeletedAt = &at
	}
	if sd.DeletedBy != nil {
		by := *sd.DeletedBy
		out.DeletedBy = &by
	}
	return out
}

func cloneCampus(campus persistence.Campus) persistence.Campus {
	campus.SoftDelete = cloneSoftDelete(campus.SoftDelete)
	return campus
}

func cloneRoom(room persistence.Room) persistence.Room {
	room.SoftDelete = cloneSoftDelete(room.SoftDelete)
	return room
}

func cloneBooking(booking persistence.Booking) persistence.Booking {
	if booking.AdminNote != nil {
		note := *booking.AdminNote
		booking.AdminNote = &note
	}
	booking.SoftDelete = cloneSoftDelete(booking.SoftDelete)
	return booking
}

func cloneSchedule(schedule persistence.Schedule) persistence.Schedule {
	schedule.SoftDelete = cloneSoftDelete(schedule.SoftDelete)
	return schedule
}
