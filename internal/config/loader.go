package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config captures the runtime configuration of the room booking service.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Lock     LockConfig     `mapstructure:"lock"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Booking  BookingConfig  `mapstructure:"booking"`
	Schedule ScheduleConfig `mapstructure:"schedule"`
	Sweep    SweepConfig    `mapstructure:"sweep"`
	Notify   NotifyConfig   `mapstructure:"notify"`
	Log      LogConfig      `mapstructure:"log"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig selects and configures the storage backend.
type DatabaseConfig struct {
	// Driver is one of "sqlite", "postgres", or "memory".
	Driver          string        `mapstructure:"driver"`
	SQLiteDSN       string        `mapstructure:"sqlite_dsn"`
	PostgresDSN     string        `mapstructure:"postgres_dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// RedisConfig configures the shared Redis client.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// LockConfig selects the room lock implementation.
type LockConfig struct {
	// Backend is "local" or "redis".
	Backend string        `mapstructure:"backend"`
	TTL     time.Duration `mapstructure:"ttl"`
	Wait    time.Duration `mapstructure:"wait"`
}

// AuthConfig configures bearer token verification.
type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
}

// BookingConfig holds the reservation policy.
type BookingConfig struct {
	Buffer      time.Duration `mapstructure:"buffer"`
	MinDuration time.Duration `mapstructure:"min_duration"`
	MaxDuration time.Duration `mapstructure:"max_duration"`
	MinLead     time.Duration `mapstructure:"min_lead"`
	MaxAdvance  time.Duration `mapstructure:"max_advance"`
	// Timezone is the campus IANA zone used to map bookings onto weekdays.
	Timezone string `mapstructure:"timezone"`
}

// Location resolves Timezone.
func (c BookingConfig) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(c.Timezone)
}

// ScheduleConfig holds the recurring schedule policy.
type ScheduleConfig struct {
	Buffer   time.Duration `mapstructure:"buffer"`
	CacheTTL time.Duration `mapstructure:"cache_ttl"`

	// InvalidationChannel is the Redis channel replicas use to drop each
	// other's cached schedules. Only used with the redis lock backend.
	InvalidationChannel string `mapstructure:"invalidation_channel"`
}

// SweepConfig configures the completion sweeper.
type SweepConfig struct {
	Interval   time.Duration `mapstructure:"interval"`
	RetryDelay time.Duration `mapstructure:"retry_delay"`
}

// NotifyConfig selects the notification backend.
type NotifyConfig struct {
	// Backend is "log" or "redis".
	Backend string `mapstructure:"backend"`
	Channel string `mapstructure:"channel"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from defaults, an optional YAML file, a .env file
// when present, and ROOMBOOK_* environment variables, in increasing priority.
// An empty path searches ./config and the working directory for config.yaml.
func Load(path string) (Config, error) {
	// A missing .env file is normal outside local development.
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("ROOMBOOK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("config: read file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: decode: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.shutdown_timeout", "10s")

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.sqlite_dsn", "roombook.db")
	v.SetDefault("database.postgres_dsn", "")
	v.SetDefault("database.max_open_conns", 0)
	v.SetDefault("database.max_idle_conns", 0)
	v.SetDefault("database.conn_max_lifetime", "1h")

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("lock.backend", "local")
	v.SetDefault("lock.ttl", "10s")
	v.SetDefault("lock.wait", "5s")

	v.SetDefault("auth.jwt_secret", "")

	v.SetDefault("booking.buffer", "15m")
	v.SetDefault("booking.min_duration", "30m")
	v.SetDefault("booking.max_duration", "24h")
	v.SetDefault("booking.min_lead", "30m")
	v.SetDefault("booking.max_advance", "720h")
	v.SetDefault("booking.timezone", "UTC")

	v.SetDefault("schedule.buffer", "15m")
	v.SetDefault("schedule.cache_ttl", "30s")
	v.SetDefault("schedule.invalidation_channel", "roombook:schedules:invalidate")

	v.SetDefault("sweep.interval", "5m")
	v.SetDefault("sweep.retry_delay", "1m")

	v.SetDefault("notify.backend", "log")
	v.SetDefault("notify.channel", "roombook:notifications")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// Validate reports every missing or invalid key in one error.
func (c Config) Validate() error {
	missing := make([]string, 0, 2)
	invalid := make([]string, 0, 4)

	if strings.TrimSpace(c.Auth.JWTSecret) == "" {
		missing = append(missing, "auth.jwt_secret")
	} else if len(c.Auth.JWTSecret) < 16 {
		invalid = append(invalid, "auth.jwt_secret")
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		invalid = append(invalid, "server.port")
	}

	switch c.Database.Driver {
	case "sqlite":
		if strings.TrimSpace(c.Database.SQLiteDSN) == "" {
			missing = append(missing, "database.sqlite_dsn")
		}
	case "postgres":
		if strings.TrimSpace(c.Database.PostgresDSN) == "" {
			missing = append(missing, "database.postgres_dsn")
		}
	case "memory":
	default:
		invalid = append(invalid, "database.driver")
	}

	if c.Lock.Backend != "local" && c.Lock.Backend != "redis" {
		invalid = append(invalid, "lock.backend")
	}
	if c.Notify.Backend != "log" && c.Notify.Backend != "redis" {
		invalid = append(invalid, "notify.backend")
	}

	if c.Booking.Buffer < 0 {
		invalid = append(invalid, "booking.buffer")
	}
	if c.Booking.MinDuration <= 0 || c.Booking.MaxDuration < c.Booking.MinDuration {
		invalid = append(invalid, "booking.min_duration")
	}
	if c.Booking.MinLead < 0 || c.Booking.MaxAdvance <= c.Booking.MinLead {
		invalid = append(invalid, "booking.max_advance")
	}
	if _, err := c.Booking.Location(); err != nil {
		invalid = append(invalid, "booking.timezone")
	}
	if c.Schedule.Buffer < 0 {
		invalid = append(invalid, "schedule.buffer")
	}
	if c.Sweep.Interval <= 0 {
		invalid = append(invalid, "sweep.interval")
	}
	if c.Sweep.RetryDelay <= 0 {
		invalid = append(invalid, "sweep.retry_delay")
	}

	if len(missing) > 0 {
		return fmt.Errorf("config: missing required values: %s", strings.Join(missing, ", "))
	}
	if len(invalid) > 0 {
		return fmt.Errorf("config: invalid values: %s", strings.Join(invalid, ", "))
	}
	return nil
}
