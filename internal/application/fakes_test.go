package application

import (
	"context"
	"slices"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/example/campus-roombook/internal/persistence"
)

// fakeStore is an in-memory implementation of every repository interface.
type fakeStore struct {
	mu        sync.Mutex
	campuses  map[string]Campus
	rooms     map[string]Room
	bookings  map[string]Booking
	schedules map[string]Schedule
	deleted   map[string]string

	scheduleLists int
	// listDelay widens the window between an availability check and the
	// following insert.
	listDelay time.Duration
	statusErr error
	// statusErrFor fails status changes of selected bookings.
	statusErrFor func(bookingID string) error
	// afterScheduleList runs once a schedule list has been read, outside the
	// store lock.
	afterScheduleList func()
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		campuses:  make(map[string]Campus),
		rooms:     make(map[string]Room),
		bookings:  make(map[string]Booking),
		schedules: make(map[string]Schedule),
		deleted:   make(map[string]string),
	}
}

func (f *fakeStore) CreateCampus(ctx context.Context, campus Campus) (Campus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.campuses {
		if c.Name == campus.Name {
			return Campus{}, persistence.ErrDuplicate
		}
	}
	f.campuses[campus.ID] = campus
	return campus, nil
}

func (f *fakeStore) UpdateCampus(ctx context.Context, campus Campus) (Campus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.campuses[campus.ID]; !ok {
		return Campus{}, persistence.ErrNotFound
	}
	f.campuses[campus.ID] = campus
	return campus, nil
}

func (f *fakeStore) GetCampus(ctx context.Context, id string) (Campus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.campuses[id]
	if !ok {
		return Campus{}, persistence.ErrNotFound
	}
	return c, nil
}

func (f *fakeStore) ListCampuses(ctx context.Context) ([]Campus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Campus, 0, len(f.campuses))
	for _, c := range f.campuses {
		out = append(out, c)
	}
	return out, nil
}

func (f *fakeStore) DeleteCampus(ctx context.Context, id, deletedBy string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.campuses[id]; !ok {
		return persistence.ErrNotFound
	}
	delete(f.campuses, id)
	f.deleted[id] = deletedBy
	return nil
}

func (f *fakeStore) CreateRoom(ctx context.Context, room Room) (Room, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.campuses[room.CampusID]; !ok {
		return Room{}, persistence.ErrForeignKeyViolation
	}
	for _, r := range f.rooms {
		if r.CampusID == room.CampusID && r.Name == room.Name {
			return Room{}, persistence.ErrDuplicate
		}
	}
	f.rooms[room.ID] = room
	return room, nil
}

func (f *fakeStore) UpdateRoom(ctx context.Context, room Room) (Room, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.rooms[room.ID]; !ok {
		return Room{}, persistence.ErrNotFound
	}
	f.rooms[room.ID] = room
	return room, nil
}

func (f *fakeStore) GetRoom(ctx context.Context, id string) (Room, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.rooms[id]
	if !ok {
		return Room{}, persistence.ErrNotFound
	}
	return r, nil
}

func (f *fakeStore) ListRooms(ctx context.Context, campusID string) ([]Room, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Room, 0)
	for _, r := range f.rooms {
		if campusID == "" || r.CampusID == campusID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeStore) DeleteRoom(ctx context.Context, id, deletedBy string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.rooms[id]; !ok {
		return persistence.ErrNotFound
	}
	delete(f.rooms, id)
	f.deleted[id] = deletedBy
	return nil
}

func (f *fakeStore) CreateBooking(ctx context.Context, booking Booking) (Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.bookings[booking.ID]; ok {
		return Booking{}, persistence.ErrDuplicate
	}
	f.bookings[booking.ID] = booking
	return booking, nil
}

func (f *fakeStore) UpdateBooking(ctx context.Context, booking Booking) (Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.bookings[booking.ID]
	if !ok {
		return Booking{}, persistence.ErrNotFound
	}
	if stored.Status != booking.Status {
		return Booking{}, persistence.ErrStaleState
	}
	f.bookings[booking.ID] = booking
	return booking, nil
}

func (f *fakeStore) GetBooking(ctx context.Context, id string) (Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.bookings[id]
	if !ok {
		return Booking{}, persistence.ErrNotFound
	}
	return b, nil
}

func (f *fakeStore) ListBookings(ctx context.Context, query BookingQuery) ([]Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Booking, 0)
	for _, b := range f.bookings {
		if query.RoomID != "" && b.RoomID != query.RoomID {
			continue
		}
		if query.RequesterID != "" && b.RequesterID != query.RequesterID {
			continue
		}
		if len(query.Statuses) > 0 && !slices.Contains(query.Statuses, b.Status) {
			continue
		}
		if query.From != nil && !b.End.After(*query.From) {
			continue
		}
		if query.To != nil && !b.Start.Before(*query.To) {
			continue
		}
		out = append(out, b)
	}
	sortBookings(out)
	return out, nil
}

func (f *fakeStore) ListActiveBookings(ctx context.Context, roomID, excludeID string) ([]Booking, error) {
	f.mu.Lock()
	delay := f.listDelay
	out := make([]Booking, 0)
	for _, b := range f.bookings {
		if b.RoomID != roomID || b.ID == excludeID {
			continue
		}
		if b.Status == BookingPending || b.Status == BookingApproved {
			out = append(out, b)
		}
	}
	f.mu.Unlock()
	if delay > 0 {
		time.Sleep(delay)
	}
	sortBookings(out)
	return out, nil
}

func (f *fakeStore) ListExpiredBookings(ctx context.Context, now time.Time, after *Booking, limit int) ([]Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Booking, 0)
	for _, b := range f.bookings {
		if b.Status != BookingApproved || b.End.After(now) {
			continue
		}
		if after != nil && (b.Start.Before(after.Start) || (b.Start.Equal(after.Start) && b.ID <= after.ID)) {
			continue
		}
		out = append(out, b)
	}
	sortBookings(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeStore) UpdateBookingStatus(ctx context.Context, change StatusChange) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.statusErr != nil {
		return f.statusErr
	}
	if f.statusErrFor != nil {
		if err := f.statusErrFor(change.BookingID); err != nil {
			return err
		}
	}
	b, ok := f.bookings[change.BookingID]
	if !ok {
		return persistence.ErrNotFound
	}
	if !slices.Contains(change.From, b.Status) {
		return persistence.ErrStaleState
	}
	b.Status = change.To
	b.UpdatedAt = change.At
	if change.Note != nil {
		note := *change.Note
		b.AdminNote = &note
	}
	f.bookings[b.ID] = b
	return nil
}

func (f *fakeStore) DeleteBooking(ctx context.Context, id, deletedBy string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.bookings[id]; !ok {
		return persistence.ErrNotFound
	}
	delete(f.bookings, id)
	f.deleted[id] = deletedBy
	return nil
}

func (f *fakeStore) CreateSchedule(ctx context.Context, schedule Schedule) (Schedule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.schedules[schedule.ID] = schedule
	return schedule, nil
}

func (f *fakeStore) UpdateSchedule(ctx context.Context, schedule Schedule) (Schedule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.schedules[schedule.ID]; !ok {
		return Schedule{}, persistence.ErrNotFound
	}
	f.schedules[schedule.ID] = schedule
	return schedule, nil
}

func (f *fakeStore) GetSchedule(ctx context.Context, id string) (Schedule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.schedules[id]
	if !ok {
		return Schedule{}, persistence.ErrNotFound
	}
	return s, nil
}

func (f *fakeStore) ListSchedules(ctx context.Context, roomID string) ([]Schedule, error) {
	f.mu.Lock()
	f.scheduleLists++
	out := make([]Schedule, 0)
	for _, s := range f.schedules {
		if roomID == "" || s.RoomID == roomID {
			out = append(out, s)
		}
	}
	hook := f.afterScheduleList
	f.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if hook != nil {
		hook()
	}
	return out, nil
}

func (f *fakeStore) DeleteSchedule(ctx context.Context, id, deletedBy string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.schedules[id]; !ok {
		return persistence.ErrNotFound
	}
	delete(f.schedules, id)
	f.deleted[id] = deletedBy
	return nil
}

func (f *fakeStore) scheduleListCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.scheduleLists
}

func sortBookings(bookings []Booking) {
	sort.Slice(bookings, func(i, j int) bool {
		if !bookings[i].Start.Equal(bookings[j].Start) {
			return bookings[i].Start.Before(bookings[j].Start)
		}
		return bookings[i].ID < bookings[j].ID
	})
}

type recordingNotifier struct {
	mu            sync.Mutex
	notifications []Notification
	err           error
}

func (n *recordingNotifier) Notify(ctx context.Context, notification Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notifications = append(n.notifications, notification)
	return n.err
}

func (n *recordingNotifier) all() []Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]Notification, len(n.notifications))
	copy(out, n.notifications)
	return out
}

// sequence returns a deterministic ID generator safe for concurrent use.
func sequence(prefix string) func() string {
	var (
		mu sync.Mutex
		n  int
	)
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return prefix + "-" + strconv.Itoa(n)
	}
}
