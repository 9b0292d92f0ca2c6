package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ashureev/rollcall/internal/domain"
)

type attendanceKey struct {
	sessionID  string
	attendeeID string
}

// MemoryStore is the in-process fallback used when no database is configured.
// It satisfies the same uniqueness and listing contract as SQLiteStore.
type MemoryStore struct {
	mu        sync.RWMutex
	students  map[string]domain.Student
	byRoll    map[string]string
	seen      map[attendanceKey]struct{}
	bySession map[string][]domain.AttendanceRecord
	closed    bool
}

// NewMemory creates an empty in-process repository.
func NewMemory() Repository {
	return &MemoryStore{
		students:  make(map[string]domain.Student),
		byRoll:    make(map[string]string),
		seen:      make(map[attendanceKey]struct{}),
		bySession: make(map[string][]domain.AttendanceRecord),
	}
}

// RecordIfAbsent checks and inserts under one lock.
func (m *MemoryStore) RecordIfAbsent(_ context.Context, sessionID, attendeeID string, at time.Time) (domain.RecordOutcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return 0, fmt.Errorf("%w: store closed", domain.ErrStoreWrite)
	}

	key := attendanceKey{sessionID: sessionID, attendeeID: attendeeID}
	if _, ok := m.seen[key]; ok {
		return domain.AlreadyPresent, nil
	}
	m.seen[key] = struct{}{}
	m.bySession[sessionID] = append(m.bySession[sessionID], domain.AttendanceRecord{
		ID:         uuid.NewString(),
		AttendeeID: attendeeID,
		SessionID:  sessionID,
		RecordedAt: time.UnixMilli(at.UnixMilli()),
	})
	return domain.Inserted, nil
}

// ListBySession returns the session's records in arrival order.
func (m *MemoryStore) ListBySession(_ context.Context, sessionID string) ([]domain.RosterEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	records := m.bySession[sessionID]
	entries := make([]domain.RosterEntry, 0, len(records))
	for _, rec := range records {
		name := domain.UnknownStudentName
		if st, ok := m.students[rec.AttendeeID]; ok {
			name = st.Name
		}
		entries = append(entries, domain.RosterEntry{
			AttendeeID:  rec.AttendeeID,
			DisplayName: name,
			RecordedAt:  rec.RecordedAt,
		})
	}
	return entries, nil
}

// GetStudent retrieves a student by ID.
func (m *MemoryStore) GetStudent(_ context.Context, id string) (*domain.Student, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st, ok := m.students[id]
	if !ok {
		return nil, nil
	}
	return &st, nil
}

// GetStudentByRollNumber retrieves a student by roll number.
func (m *MemoryStore) GetStudentByRollNumber(_ context.Context, rollNumber string) (*domain.Student, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byRoll[rollNumber]
	if !ok {
		return nil, nil
	}
	st := m.students[id]
	return &st, nil
}

// ListStudents returns the directory ordered by name, then ID.
func (m *MemoryStore) ListStudents(_ context.Context) ([]*domain.Student, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	students := make([]*domain.Student, 0, len(m.students))
	for _, st := range m.students {
		st := st
		students = append(students, &st)
	}
	sort.Slice(students, func(i, j int) bool {
		if c := strings.Compare(students[i].Name, students[j].Name); c != 0 {
			return c < 0
		}
		return students[i].ID < students[j].ID
	})
	return students, nil
}

// UpsertStudent creates or updates a student.
func (m *MemoryStore) UpsertStudent(_ context.Context, student *domain.Student) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if owner, ok := m.byRoll[student.RollNumber]; ok && owner != student.ID {
		return fmt.Errorf("upsert student: roll number %q already assigned", student.RollNumber)
	}
	if prev, ok := m.students[student.ID]; ok {
		delete(m.byRoll, prev.RollNumber)
		if student.CreatedAt.IsZero() {
			student.CreatedAt = prev.CreatedAt
		}
	}
	m.students[student.ID] = *student
	m.byRoll[student.RollNumber] = student.ID
	return nil
}

// Ping always succeeds while the store is open.
func (m *MemoryStore) Ping(_ context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return fmt.Errorf("memory store closed")
	}
	return nil
}

// Close marks the store closed; later writes fail.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
