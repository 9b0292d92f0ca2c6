package config

import (
	"strings"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"PORT", "GRPC_PORT", "FRONTEND_URL", "STORE_BACKEND", "DB_PATH", "SEED_STUDENTS",
		"ROTATION_PERIOD", "POLL_PERIOD", "QR_SIZE", "MAX_IMAGE_BYTES",
		"PRESENTER_ID", "PRESENTER_PASSWORD", "ATTENDEE_PASSWORD", "AUTH_SECRET", "AUTH_TTL",
		"ORACLE_BACKEND", "ORACLE_URL", "GEMINI_API_KEY", "GEMINI_MODEL", "ORACLE_TIMEOUT", "APP_ENV",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.RotationPeriod != 30*time.Second || cfg.PollPeriod != 2*time.Second {
		t.Fatalf("unexpected cadences: %v / %v", cfg.RotationPeriod, cfg.PollPeriod)
	}
	if len(cfg.Auth.Secret) < 16 {
		t.Fatalf("expected a generated auth secret, got %d bytes", len(cfg.Auth.Secret))
	}
	if cfg.Port != "8080" || cfg.DBPath != "./data/attendance.db" || cfg.QRSize != 288 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.Auth.PresenterID != "instructor@school.edu" || cfg.Auth.TTL != 12*time.Hour {
		t.Fatalf("unexpected auth defaults: %+v", cfg.Auth)
	}
	if cfg.Oracle.Backend != "none" || !cfg.SeedStudents {
		t.Fatalf("unexpected oracle/seed defaults: %+v", cfg)
	}
	if !cfg.IsDevelopment() {
		t.Fatal("expected development mode without FRONTEND_URL")
	}
}

func TestLoadRejectsIncompleteOracle(t *testing.T) {
	clearEnv(t)
	t.Setenv("ORACLE_BACKEND", "gemini")
	t.Setenv("GEMINI_API_KEY", "")

	_, err := Load()
	if err == nil || !strings.Contains(err.Error(), "GEMINI_API_KEY") {
		t.Fatalf("expected GEMINI_API_KEY error, got %v", err)
	}
}

func TestLoadRejectsUnknownBackend(t *testing.T) {
	clearEnv(t)
	t.Setenv("STORE_BACKEND", "postgres")

	if _, err := Load(); err == nil || !strings.Contains(err.Error(), "STORE_BACKEND") {
		t.Fatalf("expected STORE_BACKEND error, got %v", err)
	}
}

func TestGetEnvDurationFallback(t *testing.T) {
	t.Setenv("ROLLCALL_TEST_DURATION", "soon")
	if got := getEnvDuration("ROLLCALL_TEST_DURATION", time.Minute); got != time.Minute {
		t.Fatalf("expected fallback, got %v", got)
	}
	t.Setenv("ROLLCALL_TEST_DURATION", "45s")
	if got := getEnvDuration("ROLLCALL_TEST_DURATION", time.Minute); got != 45*time.Second {
		t.Fatalf("expected 45s, got %v", got)
	}
}
