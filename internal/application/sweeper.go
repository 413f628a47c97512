package application

import (
	"context"
	"time"

	"go.uber.org/zap"
)

const (
	// DefaultSweepInterval is the pause between successful completion sweeps.
	DefaultSweepInterval = 5 * time.Minute
	// DefaultSweepRetryDelay is the pause after a failed sweep.
	DefaultSweepRetryDelay = time.Minute
)

// BookingCompleter completes bookings whose end has passed.
type BookingCompleter interface {
	CompleteExpiredBookings(ctx context.Context) (int, error)
}

// CompletionSweeper periodically completes expired bookings until its
// context is cancelled.
type CompletionSweeper struct {
	completer  BookingCompleter
	interval   time.Duration
	retryDelay time.Duration
	logger     *zap.Logger
}

// NewCompletionSweeper constructs a sweeper. Non-positive durations use the
// defaults.
func NewCompletionSweeper(completer BookingCompleter, interval, retryDelay time.Duration, logger *zap.Logger) *CompletionSweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	if retryDelay <= 0 {
		retryDelay = DefaultSweepRetryDelay
	}
	return &CompletionSweeper{
		completer:  completer,
		interval:   interval,
		retryDelay: retryDelay,
		logger:     defaultLogger(logger).With(zap.String("service", "CompletionSweeper")),
	}
}

// Run sweeps immediately and then after every interval, or after the retry
// delay when a sweep fails. It returns ctx.Err() once ctx is cancelled.
func (s *CompletionSweeper) Run(ctx context.Context) error {
	s.logger.Info("completion sweeper started",
		zap.Duration("interval", s.interval),
		zap.Duration("retry_delay", s.retryDelay),
	)
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("completion sweeper stopped")
			return ctx.Err()
		case <-timer.C:
		}

		wait := s.interval
		completed, err := s.completer.CompleteExpiredBookings(ctx)
		switch {
		case err != nil && ctx.Err() == nil:
			wait = s.retryDelay
			s.logger.Error("completion sweep failed, retrying",
				zap.Error(err),
				zap.Duration("retry_in", wait),
			)
		case completed > 0:
			s.logger.Info("completion sweep finished", zap.Int("completed", completed))
		}
		timer.Reset(wait)
	}
}
