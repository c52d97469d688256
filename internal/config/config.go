// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"github.com/codr1/Shuttlers/internal/models"
)

const (
	DefaultMaxProofBytes    = 5 * 1024 * 1024
	DefaultAvailabilityCron = "0 10 * * 3"
	DefaultOverdueCron      = "30 0 * * *"
	DefaultTimezone         = "Asia/Kolkata"
)

// DefaultAllowedProofTypes are the mime types accepted for proof of payment.
var DefaultAllowedProofTypes = []string{"image/jpeg", "image/png", "image/jpg", "application/pdf"}

type DatabaseConfig struct {
	Driver   string `yaml:"driver"`
	Filename string `yaml:"filename"`
}

// RedisConfig enables distributed slot locks when Addr is set.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	DB       int    `yaml:"db"`
	Password string `yaml:"-"` // Loaded from environment
}

// EventsConfig enables AMQP domain events when URL is set.
type EventsConfig struct {
	Exchange string `yaml:"exchange"`
	URL      string `yaml:"-"` // Loaded from environment
}

type StorageConfig struct {
	Driver        string `yaml:"driver"` // cloudinary or local
	CloudName     string `yaml:"cloud_name"`
	Folder        string `yaml:"folder"`
	LocalDir      string `yaml:"local_dir"`
	PublicBaseURL string `yaml:"public_base_url"`
	APIKey        string `yaml:"-"` // Loaded from environment
	APISecret     string `yaml:"-"` // Loaded from environment
}

type PaymentsConfig struct {
	MaxProofBytes     int64    `yaml:"max_proof_bytes"`
	AllowedProofTypes []string `yaml:"allowed_proof_types"`
}

type AvailabilityConfig struct {
	Cron             string `yaml:"cron"`
	GameWeekday      string `yaml:"game_weekday"`
	WeekStartWeekday string `yaml:"week_start_weekday"`
	GameTime         string `yaml:"game_time"`
	Concurrency      int    `yaml:"concurrency"`
}

type RateLimitConfig struct {
	MaxPerWindow int           `yaml:"max_per_window"`
	Window       time.Duration `yaml:"window"`
}

type Config struct {
	App struct {
		Name        string `yaml:"name"`
		Environment string `yaml:"environment"`
		Port        int    `yaml:"port"`
		BaseURL     string `yaml:"base_url"`
		Timezone    string `yaml:"timezone"`
	} `yaml:"app"`

	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Events   EventsConfig   `yaml:"events"`
	Storage  StorageConfig  `yaml:"storage"`
	Payments PaymentsConfig `yaml:"payments"`

	Availability AvailabilityConfig `yaml:"availability"`

	Bookings struct {
		OverdueCron string `yaml:"overdue_cron"`
	} `yaml:"bookings"`

	Venues struct {
		DefaultPhoneRegion string `yaml:"default_phone_region"`
	} `yaml:"venues"`

	RateLimit RateLimitConfig `yaml:"ratelimit"`
}

// Load loads both .env and yaml configuration
func Load(configPath string) (*Config, error) {
	// Load .env file if it exists
	envPath := filepath.Join(filepath.Dir(configPath), ".env")
	if err := godotenv.Load(envPath); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("error loading .env file: %w", err)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes YAML, overlays secrets from the environment, fills defaults
// and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	// Load sensitive values from environment
	cfg.Redis.Password = os.Getenv("REDIS_PASSWORD")
	cfg.Events.URL = os.Getenv("AMQP_URL")
	cfg.Storage.APIKey = os.Getenv("CLOUDINARY_API_KEY")
	cfg.Storage.APISecret = os.Getenv("CLOUDINARY_API_SECRET")

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Default returns a development configuration.
func Default() *Config {
	cfg := &Config{}
	cfg.App.Name = "shuttlers"
	cfg.App.Environment = "development"
	cfg.App.Port = 8080
	cfg.Database.Driver = "sqlite"
	cfg.Database.Filename = "build/db/shuttlers.db"
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.App.Timezone == "" {
		c.App.Timezone = DefaultTimezone
	}
	if c.Events.Exchange == "" {
		c.Events.Exchange = "shuttlers.events"
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = "local"
	}
	if c.Storage.Folder == "" {
		c.Storage.Folder = "payment-proofs"
	}
	if c.Storage.LocalDir == "" {
		c.Storage.LocalDir = "build/uploads"
	}
	if c.Payments.MaxProofBytes == 0 {
		c.Payments.MaxProofBytes = DefaultMaxProofBytes
	}
	if len(c.Payments.AllowedProofTypes) == 0 {
		c.Payments.AllowedProofTypes = append([]string(nil), DefaultAllowedProofTypes...)
	}
	if c.Availability.Cron == "" {
		c.Availability.Cron = DefaultAvailabilityCron
	}
	if c.Availability.GameWeekday == "" {
		c.Availability.GameWeekday = "friday"
	}
	if c.Availability.WeekStartWeekday == "" {
		c.Availability.WeekStartWeekday = "wednesday"
	}
	if c.Availability.GameTime == "" {
		c.Availability.GameTime = "10:00"
	}
	if c.Availability.Concurrency == 0 {
		c.Availability.Concurrency = 8
	}
	if c.Bookings.OverdueCron == "" {
		c.Bookings.OverdueCron = DefaultOverdueCron
	}
	if c.Venues.DefaultPhoneRegion == "" {
		c.Venues.DefaultPhoneRegion = "IN"
	}
	if c.RateLimit.MaxPerWindow == 0 {
		c.RateLimit.MaxPerWindow = 10
	}
	if c.RateLimit.Window == 0 {
		c.RateLimit.Window = time.Minute
	}
}

func (c *Config) Validate() error {
	if c.App.Name == "" {
		return fmt.Errorf("app name is required")
	}
	if c.App.Port == 0 {
		return fmt.Errorf("app port is required")
	}
	if _, err := c.Location(); err != nil {
		return err
	}

	switch c.Database.Driver {
	case "sqlite":
		if c.Database.Filename == "" {
			return fmt.Errorf("database filename is required for sqlite")
		}
	case "":
		return fmt.Errorf("database driver is required")
	default:
		return fmt.Errorf("unsupported database driver: %s", c.Database.Driver)
	}

	switch c.Storage.Driver {
	case "local":
	case "cloudinary":
		if c.Storage.CloudName == "" {
			return fmt.Errorf("storage cloud_name is required for cloudinary")
		}
		if c.Storage.APIKey == "" || c.Storage.APISecret == "" {
			return fmt.Errorf("CLOUDINARY_API_KEY and CLOUDINARY_API_SECRET are required for cloudinary")
		}
	default:
		return fmt.Errorf("unsupported storage driver: %s", c.Storage.Driver)
	}

	if c.Payments.MaxProofBytes < 0 {
		return fmt.Errorf("payments max_proof_bytes must not be negative")
	}

	for name, expr := range map[string]string{
		"availability cron":     c.Availability.Cron,
		"bookings overdue_cron": c.Bookings.OverdueCron,
	} {
		if _, err := cron.ParseStandard(expr); err != nil {
			return fmt.Errorf("invalid %s %q: %w", name, expr, err)
		}
	}
	if _, err := ParseWeekday(c.Availability.GameWeekday); err != nil {
		return fmt.Errorf("availability game_weekday: %w", err)
	}
	if _, err := ParseWeekday(c.Availability.WeekStartWeekday); err != nil {
		return fmt.Errorf("availability week_start_weekday: %w", err)
	}
	if _, err := models.ParseTimeOfDay(c.Availability.GameTime); err != nil {
		return fmt.Errorf("availability game_time: %w", err)
	}
	if c.Availability.Concurrency < 1 {
		return fmt.Errorf("availability concurrency must be at least 1")
	}
	if c.RateLimit.MaxPerWindow < 1 || c.RateLimit.Window <= 0 {
		return fmt.Errorf("ratelimit max_per_window and window must be positive")
	}

	return nil
}

// Location returns the club time zone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.App.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", c.App.Timezone, err)
	}
	return loc, nil
}

// IsDevelopment reports whether the app runs in the development environment.
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "" || c.App.Environment == "development"
}

var weekdays = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// ParseWeekday parses an English weekday name, case-insensitively.
func ParseWeekday(s string) (time.Weekday, error) {
	wd, ok := weekdays[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return time.Sunday, fmt.Errorf("unknown weekday %q", s)
	}
	return wd, nil
}
