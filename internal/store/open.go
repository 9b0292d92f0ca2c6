package store

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ashureev/rollcall/internal/domain"
)

// Open selects a backend once at startup. When the SQLite backend cannot be
// opened the in-process store substitutes for it, with a warning.
func Open(backend, dbPath string) (Repository, string, error) {
	switch strings.ToLower(strings.TrimSpace(backend)) {
	case BackendMemory:
		return NewMemory(), BackendMemory, nil
	case "", BackendSQLite:
		repo, err := NewSQLite(dbPath)
		if err != nil {
			slog.Warn("SQLite unavailable, falling back to in-process store", "db_path", dbPath, "error", err)
			return NewMemory(), BackendMemory, nil
		}
		return repo, BackendSQLite, nil
	default:
		return nil, "", fmt.Errorf("unknown store backend %q", backend)
	}
}

// demoStudents is the roster used when the directory starts empty.
var demoStudents = []struct{ name, roll string }{
	{"Alice Johnson", "S001"},
	{"Bob Williams", "S002"},
	{"Charlie Brown", "S003"},
	{"Diana Miller", "S004"},
	{"Ethan Davis", "S005"},
	{"Fiona Garcia", "S006"},
	{"George Rodriguez", "S007"},
}

// SeedStudents inserts the demo roster if the directory is empty and
// returns the number of students inserted.
func SeedStudents(ctx context.Context, repo Repository) (int, error) {
	existing, err := repo.ListStudents(ctx)
	if err != nil {
		return 0, fmt.Errorf("list students: %w", err)
	}
	if len(existing) > 0 {
		return 0, nil
	}

	now := time.Now()
	for _, s := range demoStudents {
		if err := repo.UpsertStudent(ctx, &domain.Student{
			ID:         uuid.NewString(),
			Name:       s.name,
			RollNumber: s.roll,
			CreatedAt:  now,
		}); err != nil {
			return 0, fmt.Errorf("seed %s: %w", s.roll, err)
		}
	}
	return len(demoStudents), nil
}
