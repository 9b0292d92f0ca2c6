// Package config provides application configuration.
package config

import (
	"crypto/rand"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ashureev/rollcall/internal/headcount"
	"github.com/ashureev/rollcall/internal/store"
)

// Config holds all application configuration.
type Config struct {
	Port         string
	GRPCPort     string // empty disables the health RPC listener
	FrontendURL  string
	StoreBackend string
	DBPath       string
	SeedStudents bool

	RotationPeriod time.Duration
	PollPeriod     time.Duration
	QRSize         int
	MaxImageBytes  int64

	Auth   AuthConfig
	Oracle OracleConfig
}

// AuthConfig holds the fixed shared secrets and cookie signing settings.
type AuthConfig struct {
	PresenterID       string
	PresenterPassword string
	AttendeePassword  string
	Secret            []byte
	TTL               time.Duration
}

// OracleConfig selects the headcount backend.
type OracleConfig struct {
	Backend      string
	URL          string
	GeminiAPIKey string
	GeminiModel  string
	Timeout      time.Duration
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	secret := []byte(getEnv("AUTH_SECRET", ""))
	if len(secret) == 0 {
		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return nil, fmt.Errorf("generate auth secret: %w", err)
		}
	}

	cfg := &Config{
		Port:           getEnv("PORT", "8080"),
		GRPCPort:       getEnv("GRPC_PORT", "9090"),
		FrontendURL:    getEnv("FRONTEND_URL", ""),
		StoreBackend:   strings.ToLower(getEnv("STORE_BACKEND", store.BackendSQLite)),
		DBPath:         getEnv("DB_PATH", "./data/attendance.db"),
		SeedStudents:   getEnvBool("SEED_STUDENTS", true),
		RotationPeriod: getEnvDuration("ROTATION_PERIOD", 30*time.Second),
		PollPeriod:     getEnvDuration("POLL_PERIOD", 2*time.Second),
		QRSize:         getEnvInt("QR_SIZE", 288),
		MaxImageBytes:  int64(getEnvInt("MAX_IMAGE_BYTES", 8<<20)),
		Auth: AuthConfig{
			PresenterID:       getEnv("PRESENTER_ID", "instructor@school.edu"),
			PresenterPassword: getEnv("PRESENTER_PASSWORD", "password123"),
			AttendeePassword:  getEnv("ATTENDEE_PASSWORD", "password456"),
			Secret:            secret,
			TTL:               getEnvDuration("AUTH_TTL", 12*time.Hour),
		},
		Oracle: OracleConfig{
			Backend:      strings.ToLower(getEnv("ORACLE_BACKEND", defaultOracleBackend())),
			URL:          getEnv("ORACLE_URL", ""),
			GeminiAPIKey: getEnv("GEMINI_API_KEY", ""),
			GeminiModel:  getEnv("GEMINI_MODEL", headcount.DefaultGeminiModel),
			Timeout:      getEnvDuration("ORACLE_TIMEOUT", 30*time.Second),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// defaultOracleBackend picks a backend from whichever credentials are set.
func defaultOracleBackend() string {
	switch {
	case os.Getenv("ORACLE_URL") != "":
		return headcount.BackendHTTP
	case os.Getenv("GEMINI_API_KEY") != "":
		return headcount.BackendGemini
	default:
		return headcount.BackendNone
	}
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	switch c.StoreBackend {
	case store.BackendSQLite:
		if c.DBPath == "" {
			return fmt.Errorf("DB_PATH cannot be empty")
		}
	case store.BackendMemory:
	default:
		return fmt.Errorf("STORE_BACKEND must be %q or %q", store.BackendSQLite, store.BackendMemory)
	}
	if c.RotationPeriod < time.Second {
		return fmt.Errorf("ROTATION_PERIOD must be at least 1s")
	}
	if c.PollPeriod <= 0 {
		return fmt.Errorf("POLL_PERIOD must be > 0")
	}
	if c.QRSize < 64 {
		return fmt.Errorf("QR_SIZE must be at least 64")
	}
	if c.MaxImageBytes <= 0 {
		return fmt.Errorf("MAX_IMAGE_BYTES must be > 0")
	}
	if c.Auth.PresenterID == "" || c.Auth.PresenterPassword == "" || c.Auth.AttendeePassword == "" {
		return fmt.Errorf("PRESENTER_ID, PRESENTER_PASSWORD and ATTENDEE_PASSWORD cannot be empty")
	}
	if len(c.Auth.Secret) < 16 {
		return fmt.Errorf("AUTH_SECRET must be at least 16 bytes")
	}
	if c.Auth.TTL <= 0 {
		return fmt.Errorf("AUTH_TTL must be > 0")
	}
	switch c.Oracle.Backend {
	case headcount.BackendHTTP:
		if c.Oracle.URL == "" {
			return fmt.Errorf("ORACLE_URL is required for the http oracle")
		}
	case headcount.BackendGemini:
		if c.Oracle.GeminiAPIKey == "" {
			return fmt.Errorf("GEMINI_API_KEY is required for the gemini oracle")
		}
	case headcount.BackendNone:
	default:
		return fmt.Errorf("ORACLE_BACKEND must be http, gemini or none")
	}
	if c.Oracle.Timeout <= 0 {
		return fmt.Errorf("ORACLE_TIMEOUT must be > 0")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	if env := os.Getenv("APP_ENV"); env != "" {
		return env == "development"
	}
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

// getEnv treats an empty variable as unset.
func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && strings.TrimSpace(value) != "" {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return d
}
