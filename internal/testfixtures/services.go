package testfixtures

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/example/campus-roombook/internal/adapter"
	"github.com/example/campus-roombook/internal/application"
	"github.com/example/campus-roombook/internal/persistence"
	"github.com/example/campus-roombook/internal/persistence/memory"
)

// RecordingNotifier captures notifications for assertions.
type RecordingNotifier struct {
	mu   sync.Mutex
	sent []application.Notification
}

// Notify implements application.Notifier.
func (r *RecordingNotifier) Notify(_ context.Context, n application.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, n)
	return nil
}

// Sent returns a copy of the captured notifications.
func (r *RecordingNotifier) Sent() []application.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]application.Notification(nil), r.sent...)
}

// ServiceStack is a fully wired set of application services over one store.
type ServiceStack struct {
	Store        persistence.Store
	Repositories *adapter.Repositories
	Clock        *Clock
	Notifier     *RecordingNotifier

	Availability *application.AvailabilityService
	Bookings     *application.BookingService
	Schedules    *application.ScheduleService
	Rooms        *application.RoomService
	Calendars    *application.CalendarService
}

// ServiceStackOption configures NewServiceStack.
type ServiceStackOption func(*stackConfig)

type stackConfig struct {
	store  persistence.Store
	clock  *Clock
	policy application.BookingPolicy
	logger *zap.Logger
}

// WithStore runs the stack against store instead of a fresh memory store.
func WithStore(store persistence.Store) ServiceStackOption {
	return func(c *stackConfig) { c.store = store }
}

// WithClock overrides the clock shared by every service.
func WithClock(clock *Clock) ServiceStackOption {
	return func(c *stackConfig) { c.clock = clock }
}

// WithPolicy overrides the booking policy.
func WithPolicy(policy application.BookingPolicy) ServiceStackOption {
	return func(c *stackConfig) { c.policy = policy }
}

// NewServiceStack wires every application service against an in-memory store
// unless WithStore is given. Schedule mutations invalidate the availability
// cache as they do in production.
func NewServiceStack(tb testing.TB, opts ...ServiceStackOption) *ServiceStack {
	tb.Helper()

	cfg := stackConfig{
		clock:  NewClock(time.Time{}),
		policy: application.DefaultBookingPolicy(),
		logger: zaptest.NewLogger(tb),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.store == nil {
		cfg.store = memory.Open()
	}

	repos := adapter.NewRepositories(cfg.store)
	ids := NewIDGenerator("id")
	notifier := &RecordingNotifier{}
	locker := application.NewLocalRoomLocker()
	now := cfg.clock.NowFunc()

	availability := application.NewAvailabilityService(application.AvailabilityServiceDeps{
		Rooms:     repos,
		Bookings:  repos,
		Schedules: repos,
		Policy:    cfg.policy,
		Now:       now,
		Logger:    cfg.logger,
	})

	stack := &ServiceStack{
		Store:        cfg.store,
		Repositories: repos,
		Clock:        cfg.clock,
		Notifier:     notifier,
		Availability: availability,
		Bookings: application.NewBookingService(application.BookingServiceDeps{
			Bookings:     repos,
			Availability: availability,
			Locker:       locker,
			Notifier:     notifier,
			IDGenerator:  NewIDGenerator("booking").NextFunc(),
			Now:          now,
			Logger:       cfg.logger,
		}),
		Schedules: application.NewScheduleService(application.ScheduleServiceDeps{
			Schedules:   repos,
			Rooms:       repos,
			Locker:      locker,
			Cache:       availability,
			IDGenerator: NewIDGenerator("schedule").NextFunc(),
			Now:         now,
			Logger:      cfg.logger,
		}),
		Rooms:     application.NewRoomServiceWithLogger(repos, repos, ids.NextFunc(), now, cfg.logger),
		Calendars: application.NewCalendarService(repos, repos, repos, cfg.policy.Location, cfg.logger),
	}

	tb.Cleanup(func() { _ = cfg.store.Close() })
	return stack
}

// SeedRoom stores a campus and a room directly, bypassing authorisation.
func (s *ServiceStack) SeedRoom(tb testing.TB, room RoomFixture) application.Room {
	tb.Helper()
	ctx := context.Background()

	if _, err := s.Store.GetCampus(ctx, room.CampusID); err != nil {
		campus := NewCampusFixture(WithCampusID(room.CampusID)).Persistence()
		if err := s.Store.CreateCampus(ctx, campus); err != nil {
			tb.Fatalf("seed campus %s: %v", room.CampusID, err)
		}
	}
	if err := s.Store.CreateRoom(ctx, room.Persistence()); err != nil {
		tb.Fatalf("seed room %s: %v", room.ID, err)
	}
	return room.Application()
}

// SeedBooking stores a booking directly.
func (s *ServiceStack) SeedBooking(tb testing.TB, booking BookingFixture) application.Booking {
	tb.Helper()
	if err := s.Store.CreateBooking(context.Background(), booking.Persistence()); err != nil {
		tb.Fatalf("seed booking %s: %v", booking.ID, err)
	}
	return booking.Application()
}

// SeedSchedule stores a schedule directly and drops any cached schedules of its room.
func (s *ServiceStack) SeedSchedule(tb testing.TB, schedule ScheduleFixture) application.Schedule {
	tb.Helper()
	if err := s.Store.CreateSchedule(context.Background(), schedule.Persistence()); err != nil {
		tb.Fatalf("seed schedule %s: %v", schedule.ID, err)
	}
	s.Availability.InvalidateRoom(schedule.RoomID)
	return schedule.Application()
}
