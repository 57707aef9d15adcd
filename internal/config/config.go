package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port                  string        `mapstructure:"PORT"`
	Env                   string        `mapstructure:"ENV"`
	DatabaseURL           string        `mapstructure:"DATABASE_URL"`
	DBMaxConns            int32         `mapstructure:"DB_MAX_CONNS"`
	DBMinConns            int32         `mapstructure:"DB_MIN_CONNS"`
	MigrationsDir         string        `mapstructure:"MIGRATIONS_DIR"` // empty: embedded migrations
	DefaultTenant         string        `mapstructure:"DEFAULT_TENANT"`
	CORSOrigins           []string      `mapstructure:"CORS_ORIGINS"`
	RateLimitRPS          float64       `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst        int           `mapstructure:"RATE_LIMIT_BURST"`
	JWTSigningKey         string        `mapstructure:"JWT_SIGNING_KEY"`
	AuthIssuer            string        `mapstructure:"AUTH_ISSUER"`
	RedisURL              string        `mapstructure:"REDIS_URL"`
	ScheduleCacheTTL      time.Duration `mapstructure:"SCHEDULE_CACHE_TTL"`
	AMQPURL               string        `mapstructure:"AMQP_URL"`
	AMQPExchange          string        `mapstructure:"AMQP_EXCHANGE"`
	ClinicTimezone        string        `mapstructure:"CLINIC_TIMEZONE"`
	DailyAppointmentLimit int           `mapstructure:"DAILY_APPOINTMENT_LIMIT"`
	EnforceDailyLimit     bool          `mapstructure:"ENFORCE_DAILY_LIMIT"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 2)
	v.SetDefault("MIGRATIONS_DIR", "")
	v.SetDefault("DEFAULT_TENANT", "main")
	v.SetDefault("CORS_ORIGINS", "http://localhost:5173")
	v.SetDefault("RATE_LIMIT_RPS", 50)
	v.SetDefault("RATE_LIMIT_BURST", 100)
	v.SetDefault("SCHEDULE_CACHE_TTL", "10m")
	v.SetDefault("AMQP_EXCHANGE", "clinic.events")
	v.SetDefault("CLINIC_TIMEZONE", "Local")
	v.SetDefault("DAILY_APPOINTMENT_LIMIT", 5)
	v.SetDefault("ENFORCE_DAILY_LIMIT", true)

	// Bind env vars explicitly so Unmarshal picks them up
	for _, key := range []string{
		"PORT", "ENV", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS", "MIGRATIONS_DIR",
		"DEFAULT_TENANT", "CORS_ORIGINS", "RATE_LIMIT_RPS", "RATE_LIMIT_BURST",
		"JWT_SIGNING_KEY", "AUTH_ISSUER", "REDIS_URL", "SCHEDULE_CACHE_TTL",
		"AMQP_URL", "AMQP_EXCHANGE", "CLINIC_TIMEZONE",
		"DAILY_APPOINTMENT_LIMIT", "ENFORCE_DAILY_LIMIT",
	} {
		_ = v.BindEnv(key)
	}

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if len(cfg.CORSOrigins) == 1 && strings.Contains(cfg.CORSOrigins[0], ",") {
		cfg.CORSOrigins = strings.Split(cfg.CORSOrigins[0], ",")
	}
	if cfg.CORSOrigins == nil {
		if origins := v.GetString("CORS_ORIGINS"); origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.IsDev() && cfg.JWTSigningKey == "" {
		log.Println("WARNING: ENV=development without JWT_SIGNING_KEY; every request is treated as an admin session.")
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Location resolves CLINIC_TIMEZONE. Slot grids, "today" and daily limits
// are all computed on this calendar.
func (c *Config) Location() (*time.Location, error) {
	if c.ClinicTimezone == "" || c.ClinicTimezone == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.ClinicTimezone)
	if err != nil {
		return nil, fmt.Errorf("invalid CLINIC_TIMEZONE %q: %w", c.ClinicTimezone, err)
	}
	return loc, nil
}

// Validate checks that the configuration is safe to run. Outside development
// a JWT signing key is mandatory so that the clinic token check is enforced.
func (c *Config) Validate() error {
	if !c.IsDev() && c.JWTSigningKey == "" {
		return fmt.Errorf("JWT_SIGNING_KEY is required when ENV=%q", c.Env)
	}
	if c.JWTSigningKey != "" && len(c.JWTSigningKey) < 32 {
		return fmt.Errorf("JWT_SIGNING_KEY must be at least 32 characters, got %d", len(c.JWTSigningKey))
	}
	if c.DailyAppointmentLimit <= 0 {
		return fmt.Errorf("DAILY_APPOINTMENT_LIMIT must be positive, got %d", c.DailyAppointmentLimit)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}
