// Package store provides the attendance store capability and its backends.
package store

import (
	"context"
	"time"

	"github.com/ashureev/rollcall/internal/domain"
)

// Repository is the single source of truth for attendance. Both backends
// must enforce at most one record per (sessionID, attendeeID), atomically.
type Repository interface {
	// RecordIfAbsent inserts {attendeeID, sessionID, at} unless a record for
	// the pair exists. Failures wrap domain.ErrStoreWrite.
	RecordIfAbsent(ctx context.Context, sessionID, attendeeID string, at time.Time) (domain.RecordOutcome, error)

	// ListBySession returns the session's records in arrival order, joined
	// with the attendee display name.
	ListBySession(ctx context.Context, sessionID string) ([]domain.RosterEntry, error)

	// GetStudent retrieves a student by ID. Returns nil, nil when absent.
	GetStudent(ctx context.Context, id string) (*domain.Student, error)

	// GetStudentByRollNumber retrieves a student by roll key. Returns nil, nil when absent.
	GetStudentByRollNumber(ctx context.Context, rollNumber string) (*domain.Student, error)

	// ListStudents returns the directory ordered by name.
	ListStudents(ctx context.Context) ([]*domain.Student, error)

	// UpsertStudent creates or updates directory reference data.
	UpsertStudent(ctx context.Context, student *domain.Student) error

	// Ping verifies the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases backend resources.
	Close() error
}

// Backend names accepted by Open.
const (
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)
