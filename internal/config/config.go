package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// Server
	Port        int    `envconfig:"PORT" default:"3000"`
	Environment string `envconfig:"ENV" default:"development"`

	// Database
	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`

	// Security: sha256 hex digests of the keys gate devices present
	GateAPIKeys []string `envconfig:"GATE_API_KEYS"`

	// Provider
	ProviderType  string `envconfig:"PROVIDER_TYPE" default:"deepface"`
	DeepFaceURL   string `envconfig:"DEEPFACE_URL" default:"http://localhost:5005"`
	DeepFaceModel string `envconfig:"DEEPFACE_MODEL" default:"Facenet"`
	FaceGate      string `envconfig:"FACE_GATE" default:"none"`
	AWSRegion     string `envconfig:"AWS_REGION" default:"us-east-1"`

	// Attendance service
	AttendanceURL     string        `envconfig:"ATTENDANCE_URL" required:"true"`
	AttendanceToken   string        `envconfig:"ATTENDANCE_TOKEN"`
	AttendanceTimeout time.Duration `envconfig:"ATTENDANCE_TIMEOUT" default:"10s"`

	// IANA zone shift windows are written in, e.g. America/Sao_Paulo
	ShiftTimezone string `envconfig:"SHIFT_TIMEZONE" default:"Local"`

	// Verification
	SampleInterval    time.Duration `envconfig:"SAMPLE_INTERVAL" default:"600ms"`
	RequiredStreak    int           `envconfig:"REQUIRED_STREAK" default:"2"`
	MatchThreshold    float64       `envconfig:"MATCH_THRESHOLD" default:"0.45"`
	FailCountdown     int           `envconfig:"FAIL_COUNTDOWN" default:"5"`
	SuccessCloseDelay time.Duration `envconfig:"SUCCESS_CLOSE_DELAY" default:"1s"`

	// Retention
	ReferenceCacheTTL time.Duration `envconfig:"REFERENCE_CACHE_TTL" default:"30m"`
	AttemptRetention  time.Duration `envconfig:"ATTEMPT_RETENTION" default:"720h"`

	// Frames accepted per second per session
	FrameRateLimit float64 `envconfig:"FRAME_RATE_LIMIT" default:"5"`
}

// Load reads an optional .env file and then the environment. Variables
// already set in the environment win over the file.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.ProviderType {
	case "deepface", "mock":
	default:
		return fmt.Errorf("invalid PROVIDER_TYPE %q", c.ProviderType)
	}
	switch c.FaceGate {
	case "none", "rekognition":
	default:
		return fmt.Errorf("invalid FACE_GATE %q", c.FaceGate)
	}
	if c.RequiredStreak < 1 {
		return fmt.Errorf("REQUIRED_STREAK must be at least 1, got %d", c.RequiredStreak)
	}
	if c.MatchThreshold <= 0 || c.MatchThreshold > 2 {
		return fmt.Errorf("MATCH_THRESHOLD must be in (0, 2], got %v", c.MatchThreshold)
	}
	if c.FailCountdown < 1 {
		return fmt.Errorf("FAIL_COUNTDOWN must be at least 1, got %d", c.FailCountdown)
	}
	if c.SampleInterval <= 0 {
		return fmt.Errorf("SAMPLE_INTERVAL must be positive")
	}
	if c.FrameRateLimit <= 0 {
		return fmt.Errorf("FRAME_RATE_LIMIT must be positive")
	}
	if _, err := c.ShiftLocation(); err != nil {
		return err
	}
	return nil
}

// ShiftLocation resolves SHIFT_TIMEZONE.
func (c *Config) ShiftLocation() (*time.Location, error) {
	loc, err := time.LoadLocation(c.ShiftTimezone)
	if err != nil {
		return nil, fmt.Errorf("invalid SHIFT_TIMEZONE %q: %w", c.ShiftTimezone, err)
	}
	return loc, nil
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
