package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/ashureev/rollcall/internal/domain"
	"github.com/ashureev/rollcall/internal/shared"
)

const (
	writeMaxRetries = 3
	writeBaseDelay  = 50 * time.Millisecond
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// WAL mode lets the roster poller read while scans are being written.
	dsn := dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS students (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		roll_number TEXT NOT NULL UNIQUE,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_students_name ON students(name);

	CREATE TABLE IF NOT EXISTS attendance (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		student_id TEXT NOT NULL,
		recorded_at INTEGER NOT NULL,
		UNIQUE(session_id, student_id)
	);
	CREATE INDEX IF NOT EXISTS idx_attendance_session ON attendance(session_id, recorded_at);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

// RecordIfAbsent inserts an attendance record unless the pair already exists.
// The UNIQUE(session_id, student_id) constraint makes check-and-insert a
// single atomic statement, so concurrent identical scans cannot both insert.
func (s *SQLiteStore) RecordIfAbsent(ctx context.Context, sessionID, attendeeID string, at time.Time) (domain.RecordOutcome, error) {
	query := `
	INSERT INTO attendance (id, session_id, student_id, recorded_at)
	VALUES (?, ?, ?, ?)
	ON CONFLICT(session_id, student_id) DO NOTHING`

	var affected int64
	err := shared.RetryOnConflict(ctx, "record attendance", writeMaxRetries, writeBaseDelay, func() error {
		result, err := s.db.ExecContext(ctx, query, uuid.NewString(), sessionID, attendeeID, at.UnixMilli())
		if err != nil {
			return err
		}
		affected, err = result.RowsAffected()
		return err
	})
	if err != nil {
		// Older SQLite builds without upsert support still surface the
		// constraint; that is the duplicate case, not a failure.
		if shared.IsSQLiteConstraintError(err) {
			return domain.AlreadyPresent, nil
		}
		return 0, fmt.Errorf("%w: insert attendance: %v", domain.ErrStoreWrite, err)
	}

	if affected == 0 {
		return domain.AlreadyPresent, nil
	}
	return domain.Inserted, nil
}

// ListBySession returns attendance for a session joined with student names.
func (s *SQLiteStore) ListBySession(ctx context.Context, sessionID string) ([]domain.RosterEntry, error) {
	query := `
		SELECT a.student_id, COALESCE(st.name, ?), a.recorded_at
		FROM attendance a
		LEFT JOIN students st ON st.id = a.student_id
		WHERE a.session_id = ?
		ORDER BY a.recorded_at, a.rowid`

	rows, err := s.db.QueryContext(ctx, query, domain.UnknownStudentName, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query attendance: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close attendance rows", "error", closeErr)
		}
	}()

	entries := []domain.RosterEntry{}
	for rows.Next() {
		var entry domain.RosterEntry
		var recordedAt int64
		if err := rows.Scan(&entry.AttendeeID, &entry.DisplayName, &recordedAt); err != nil {
			return nil, fmt.Errorf("scan attendance row: %w", err)
		}
		entry.RecordedAt = time.UnixMilli(recordedAt)
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attendance: %w", err)
	}
	return entries, nil
}

// GetStudent retrieves a student by ID.
func (s *SQLiteStore) GetStudent(ctx context.Context, id string) (*domain.Student, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, roll_number, created_at FROM students WHERE id = ?`, id)
	return scanStudent(row)
}

// GetStudentByRollNumber retrieves a student by roll number.
func (s *SQLiteStore) GetStudentByRollNumber(ctx context.Context, rollNumber string) (*domain.Student, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, roll_number, created_at FROM students WHERE roll_number = ?`, rollNumber)
	return scanStudent(row)
}

func scanStudent(row *sql.Row) (*domain.Student, error) {
	var student domain.Student
	var createdAt int64
	err := row.Scan(&student.ID, &student.Name, &student.RollNumber, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan student row: %w", err)
	}
	student.CreatedAt = time.Unix(createdAt, 0)
	return &student, nil
}

// ListStudents returns all students ordered by name.
func (s *SQLiteStore) ListStudents(ctx context.Context) ([]*domain.Student, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, roll_number, created_at FROM students ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("query students: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close student rows", "error", closeErr)
		}
	}()

	var students []*domain.Student
	for rows.Next() {
		var student domain.Student
		var createdAt int64
		if err := rows.Scan(&student.ID, &student.Name, &student.RollNumber, &createdAt); err != nil {
			return nil, fmt.Errorf("scan student row: %w", err)
		}
		student.CreatedAt = time.Unix(createdAt, 0)
		students = append(students, &student)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate students: %w", err)
	}
	return students, nil
}

// UpsertStudent creates or updates a student record.
func (s *SQLiteStore) UpsertStudent(ctx context.Context, student *domain.Student) error {
	query := `
	INSERT INTO students (id, name, roll_number, created_at)
	VALUES (?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		name = excluded.name,
		roll_number = excluded.roll_number`

	err := shared.RetryOnConflict(ctx, "upsert student", writeMaxRetries, writeBaseDelay, func() error {
		_, err := s.db.ExecContext(ctx, query,
			student.ID, student.Name, student.RollNumber, student.CreatedAt.Unix())
		return err
	})
	if err != nil {
		return fmt.Errorf("upsert student: %w", err)
	}
	return nil
}
