package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/campus-roombook/internal/adapter"
	"github.com/example/campus-roombook/internal/application"
	"github.com/example/campus-roombook/internal/config"
	httptransport "github.com/example/campus-roombook/internal/http"
	"github.com/example/campus-roombook/internal/logging"
	"github.com/example/campus-roombook/internal/notify"
	"github.com/example/campus-roombook/internal/persistence"
	"github.com/example/campus-roombook/internal/persistence/memory"
	"github.com/example/campus-roombook/internal/persistence/postgres"
	"github.com/example/campus-roombook/internal/persistence/sqlite"
	"github.com/example/campus-roombook/internal/redis"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(os.Getenv("ROOMBOOK_CONFIG_FILE"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()
	zap.ReplaceGlobals(logger)

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("roombook stopped with error", zap.Error(err))
		os.Exit(1)
	}
}

// run wires the service from cfg and blocks until ctx is cancelled.
func run(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	store, health, err := openStore(ctx, cfg.Database, logger)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := store.Close(); cerr != nil {
			logger.Error("failed to close storage", zap.Error(cerr))
		}
	}()

	var redisClient *redis.Client
	if cfg.Lock.Backend == "redis" || cfg.Notify.Backend == "redis" {
		redisClient, err = redis.NewClient(cfg.Redis, logger)
		if err != nil {
			return err
		}
		defer func() { _ = redisClient.Close() }()
	}

	wired, err := buildApp(cfg, store, redisClient, time.Now, logger)
	if err != nil {
		return err
	}

	if wired.invalidations != nil {
		go func() {
			if err := wired.invalidations.Listen(ctx); err != nil {
				logger.Error("schedule invalidation listener stopped", zap.Error(err))
			}
		}()
	}

	sweeper := application.NewCompletionSweeper(wired.bookings, cfg.Sweep.Interval, cfg.Sweep.RetryDelay, logger)
	sweepDone := make(chan struct{})
	go func() {
		defer close(sweepDone)
		_ = sweeper.Run(ctx)
	}()

	router := wired.router(cfg.Auth.JWTSecret, health, logger)
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("failed to shutdown server", zap.Error(err))
		}
	}()

	logger.Info("roombook API listening",
		zap.String("addr", server.Addr),
		zap.String("database", cfg.Database.Driver),
		zap.String("lock_backend", cfg.Lock.Backend),
		zap.String("notify_backend", cfg.Notify.Backend),
	)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve: %w", err)
	}
	<-sweepDone
	return nil
}

// openStore opens and migrates the configured storage backend. The returned
// health check pings the database, or always succeeds for the memory store.
func openStore(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger) (persistence.Store, httptransport.HealthCheck, error) {
	switch cfg.Driver {
	case "memory":
		logger.Warn("using in-memory storage; data is lost on restart")
		return memory.Open(), nil, nil
	case "sqlite":
		storage, err := sqlite.Open(sqlite.Config{DSN: cfg.SQLiteDSN, MaxOpenConns: cfg.MaxOpenConns}, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite: %w", err)
		}
		if err := storage.Migrate(ctx); err != nil {
			_ = storage.Close()
			return nil, nil, fmt.Errorf("migrate sqlite: %w", err)
		}
		return storage, storage.Ping, nil
	case "postgres":
		storage, err := postgres.Open(postgres.Config{
			DSN:             cfg.PostgresDSN,
			MaxOpenConns:    cfg.MaxOpenConns,
			MaxIdleConns:    cfg.MaxIdleConns,
			ConnMaxLifetime: cfg.ConnMaxLifetime,
		}, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("open postgres: %w", err)
		}
		if err := storage.Migrate(ctx); err != nil {
			_ = storage.Close()
			return nil, nil, fmt.Errorf("migrate postgres: %w", err)
		}
		return storage, storage.Ping, nil
	default:
		return nil, nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

// app holds the wired application services.
type app struct {
	availability *application.AvailabilityService
	bookings     *application.BookingService
	schedules    *application.ScheduleService
	rooms        *application.RoomService
	calendars    *application.CalendarService
	location     *time.Location
	now          func() time.Time

	// invalidations is set when replicas share Redis locks.
	invalidations *redis.ScheduleInvalidator
}

func buildApp(cfg config.Config, store persistence.Store, redisClient *redis.Client, now func() time.Time, logger *zap.Logger) (*app, error) {
	policy, err := bookingPolicy(cfg.Booking)
	if err != nil {
		return nil, err
	}
	locker, err := newRoomLocker(cfg.Lock, redisClient)
	if err != nil {
		return nil, err
	}
	notifier, err := newNotifier(cfg.Notify, redisClient, logger)
	if err != nil {
		return nil, err
	}

	repos := adapter.NewRepositories(store)
	idGenerator := uuid.NewString

	availability := application.NewAvailabilityService(application.AvailabilityServiceDeps{
		Rooms:            repos,
		Bookings:         repos,
		Schedules:        repos,
		Policy:           policy,
		ScheduleCacheTTL: cfg.Schedule.CacheTTL,
		Now:              now,
		Logger:           logger,
	})

	var scheduleCache application.ScheduleCacheInvalidator = availability
	var invalidations *redis.ScheduleInvalidator
	if cfg.Lock.Backend == "redis" && redisClient != nil {
		invalidations = redis.NewScheduleInvalidator(redisClient, cfg.Schedule.InvalidationChannel, availability)
		scheduleCache = invalidations
	}

	scheduleBuffer := cfg.Schedule.Buffer
	if scheduleBuffer == 0 {
		// The service reads zero as the default gap, so a configured zero is passed as negative.
		scheduleBuffer = -1
	}

	return &app{
		availability: availability,
		bookings: application.NewBookingService(application.BookingServiceDeps{
			Bookings:     repos,
			Availability: availability,
			Locker:       locker,
			Notifier:     notifier,
			IDGenerator:  idGenerator,
			Now:          now,
			Logger:       logger,
		}),
		schedules: application.NewScheduleService(application.ScheduleServiceDeps{
			Schedules:   repos,
			Rooms:       repos,
			Locker:      locker,
			Cache:       scheduleCache,
			Buffer:      scheduleBuffer,
			IDGenerator: idGenerator,
			Now:         now,
			Logger:      logger,
		}),
		rooms:         application.NewRoomServiceWithLogger(repos, repos, idGenerator, now, logger),
		calendars:     application.NewCalendarService(repos, repos, repos, policy.Location, logger),
		location:      policy.Location,
		now:           now,
		invalidations: invalidations,
	}, nil
}

func (a *app) router(secret string, health httptransport.HealthCheck, logger *zap.Logger) http.Handler {
	return httptransport.NewRouter(httptransport.RouterConfig{
		Rooms:     httptransport.NewRoomHandler(a.rooms, logger),
		Bookings:  httptransport.NewBookingHandler(a.bookings, a.availability, logger),
		Schedules: httptransport.NewScheduleHandler(a.schedules, logger),
		Calendars: httptransport.NewCalendarHandler(httptransport.CalendarHandlerDeps{
			Calendars: a.calendars,
			Rooms:     a.rooms,
			Bookings:  a.bookings,
			Location:  a.location,
			Now:       a.now,
			Logger:    logger,
		}),
		Verifier: httptransport.NewTokenVerifier(secret),
		Health:   health,
		Logger:   logger,
	})
}

func bookingPolicy(cfg config.BookingConfig) (application.BookingPolicy, error) {
	loc, err := cfg.Location()
	if err != nil {
		return application.BookingPolicy{}, fmt.Errorf("booking timezone: %w", err)
	}
	return application.BookingPolicy{
		Buffer:      cfg.Buffer,
		MinDuration: cfg.MinDuration,
		MaxDuration: cfg.MaxDuration,
		MinLead:     cfg.MinLead,
		MaxAdvance:  cfg.MaxAdvance,
		Location:    loc,
	}, nil
}

func newRoomLocker(cfg config.LockConfig, client *redis.Client) (application.RoomLocker, error) {
	switch cfg.Backend {
	case "redis":
		if client == nil {
			return nil, errors.New("redis lock backend requires a redis client")
		}
		return redis.NewRoomLocker(client, cfg.TTL, cfg.Wait), nil
	default:
		return application.NewLocalRoomLocker(), nil
	}
}

func newNotifier(cfg config.NotifyConfig, client *redis.Client, logger *zap.Logger) (application.Notifier, error) {
	logNotifier := notify.NewLogNotifier(logger)
	switch cfg.Backend {
	case "redis":
		if client == nil {
			return nil, errors.New("redis notify backend requires a redis client")
		}
		return notify.Fanout{logNotifier, redis.NewPublisher(client, cfg.Channel)}, nil
	default:
		return logNotifier, nil
	}
}
