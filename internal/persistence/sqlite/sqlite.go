package sqlite

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/example/campus-roombook/internal/persistence"
)

// Storage bundles the SQLite repositories over one connection pool.
type Storage struct {
	*CampusRepository
	*RoomRepository
	*BookingRepository
	*ScheduleRepository

	pool   *ConnectionPool
	logger *zap.Logger
}

var _ persistence.Store = (*Storage)(nil)

// Open connects to the database described by config. Call Migrate before use.
func Open(config Config, logger *zap.Logger) (*Storage, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	pool, err := NewConnectionPool(config)
	if err != nil {
		return nil, err
	}
	return &Storage{
		CampusRepository:   NewCampusRepository(pool),
		RoomRepository:     NewRoomRepository(pool),
		BookingRepository:  NewBookingRepository(pool),
		ScheduleRepository: NewScheduleRepository(pool),
		pool:               pool,
		logger:             logger,
	}, nil
}

// Migrate applies the embedded schema migrations.
func (s *Storage) Migrate(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("sqlite: ping: %w", err)
	}
	return RunMigrations(s.pool.DB(), s.logger)
}

// Ping reports whether the database is reachable.
func (s *Storage) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the connection pool.
func (s *Storage) Close() error {
	return s.pool.Close()
}
