package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/ashureev/rollcall/internal/domain"
)

func newSQLiteRepo(t *testing.T) Repository {
	t.Helper()
	repo, err := NewSQLite(filepath.Join(t.TempDir(), "attendance.db"))
	if err != nil {
		t.Fatalf("NewSQLite failed: %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func newMemoryRepo(t *testing.T) Repository {
	t.Helper()
	return NewMemory()
}

// Both backends must behave identically.
var backends = map[string]func(t *testing.T) Repository{
	BackendSQLite: newSQLiteRepo,
	BackendMemory: newMemoryRepo,
}

func TestRecordIfAbsentIsIdempotent(t *testing.T) {
	for name, newRepo := range backends {
		t.Run(name, func(t *testing.T) {
			repo := newRepo(t)
			ctx := context.Background()
			now := time.UnixMilli(1_700_000_000_000)

			first, err := repo.RecordIfAbsent(ctx, "sess-1", "stu-1", now)
			if err != nil {
				t.Fatalf("first record failed: %v", err)
			}
			if first != domain.Inserted {
				t.Fatalf("expected Inserted, got %v", first)
			}

			second, err := repo.RecordIfAbsent(ctx, "sess-1", "stu-1", now.Add(10*time.Second))
			if err != nil {
				t.Fatalf("second record failed: %v", err)
			}
			if second != domain.AlreadyPresent {
				t.Fatalf("expected AlreadyPresent, got %v", second)
			}

			entries, err := repo.ListBySession(ctx, "sess-1")
			if err != nil {
				t.Fatalf("ListBySession failed: %v", err)
			}
			if len(entries) != 1 {
				t.Fatalf("expected exactly one record, got %d", len(entries))
			}
			if !entries[0].RecordedAt.Equal(now) {
				t.Fatalf("expected first-seen timestamp %v, got %v", now, entries[0].RecordedAt)
			}
		})
	}
}

func TestRecordIsScopedToSession(t *testing.T) {
	for name, newRepo := range backends {
		t.Run(name, func(t *testing.T) {
			repo := newRepo(t)
			ctx := context.Background()
			now := time.Now()

			for _, sid := range []string{"sess-a", "sess-b"} {
				outcome, err := repo.RecordIfAbsent(ctx, sid, "stu-1", now)
				if err != nil || outcome != domain.Inserted {
					t.Fatalf("%s: expected Inserted, got %v (%v)", sid, outcome, err)
				}
			}

			entries, err := repo.ListBySession(ctx, "sess-a")
			if err != nil {
				t.Fatalf("ListBySession failed: %v", err)
			}
			if len(entries) != 1 {
				t.Fatalf("expected one record for sess-a, got %d", len(entries))
			}

			empty, err := repo.ListBySession(ctx, "sess-unknown")
			if err != nil {
				t.Fatalf("ListBySession failed: %v", err)
			}
			if len(empty) != 0 {
				t.Fatalf("expected no records, got %d", len(empty))
			}
		})
	}
}

func TestConcurrentIdenticalScansInsertOnce(t *testing.T) {
	for name, newRepo := range backends {
		t.Run(name, func(t *testing.T) {
			repo := newRepo(t)
			ctx := context.Background()
			now := time.Now()

			const scanners = 16
			var wg sync.WaitGroup
			var mu sync.Mutex
			inserted := 0
			for i := 0; i < scanners; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					outcome, err := repo.RecordIfAbsent(ctx, "sess-race", "stu-1", now)
					if err != nil {
						t.Errorf("RecordIfAbsent failed: %v", err)
						return
					}
					if outcome == domain.Inserted {
						mu.Lock()
						inserted++
						mu.Unlock()
					}
				}()
			}
			wg.Wait()

			if inserted != 1 {
				t.Fatalf("expected exactly one Inserted, got %d", inserted)
			}
			entries, err := repo.ListBySession(ctx, "sess-race")
			if err != nil {
				t.Fatalf("ListBySession failed: %v", err)
			}
			if len(entries) != 1 {
				t.Fatalf("expected one record, got %d", len(entries))
			}
		})
	}
}

func TestListBySessionJoinsDisplayNames(t *testing.T) {
	for name, newRepo := range backends {
		t.Run(name, func(t *testing.T) {
			repo := newRepo(t)
			ctx := context.Background()
			base := time.UnixMilli(1_700_000_000_000)

			if err := repo.UpsertStudent(ctx, &domain.Student{ID: "stu-1", Name: "Bob", RollNumber: "S002", CreatedAt: base}); err != nil {
				t.Fatalf("UpsertStudent failed: %v", err)
			}
			if _, err := repo.RecordIfAbsent(ctx, "sess", "stu-1", base); err != nil {
				t.Fatalf("record failed: %v", err)
			}
			if _, err := repo.RecordIfAbsent(ctx, "sess", "ghost", base.Add(time.Second)); err != nil {
				t.Fatalf("record failed: %v", err)
			}

			entries, err := repo.ListBySession(ctx, "sess")
			if err != nil {
				t.Fatalf("ListBySession failed: %v", err)
			}
			if len(entries) != 2 {
				t.Fatalf("expected 2 entries, got %d", len(entries))
			}
			if entries[0].DisplayName != "Bob" {
				t.Fatalf("expected Bob first (arrival order), got %q", entries[0].DisplayName)
			}
			if entries[1].DisplayName != domain.UnknownStudentName {
				t.Fatalf("expected unknown student placeholder, got %q", entries[1].DisplayName)
			}
		})
	}
}

func TestStudentLookup(t *testing.T) {
	for name, newRepo := range backends {
		t.Run(name, func(t *testing.T) {
			repo := newRepo(t)
			ctx := context.Background()

			n, err := SeedStudents(ctx, repo)
			if err != nil {
				t.Fatalf("SeedStudents failed: %v", err)
			}
			if n != len(demoStudents) {
				t.Fatalf("expected %d seeded students, got %d", len(demoStudents), n)
			}
			again, err := SeedStudents(ctx, repo)
			if err != nil || again != 0 {
				t.Fatalf("expected second seed to be a no-op, got %d (%v)", again, err)
			}

			students, err := repo.ListStudents(ctx)
			if err != nil {
				t.Fatalf("ListStudents failed: %v", err)
			}
			if len(students) != len(demoStudents) || students[0].Name != "Alice Johnson" {
				t.Fatalf("unexpected directory order: %+v", students)
			}

			bob, err := repo.GetStudentByRollNumber(ctx, "S002")
			if err != nil || bob == nil || bob.Name != "Bob Williams" {
				t.Fatalf("expected Bob Williams for S002, got %+v (%v)", bob, err)
			}
			byID, err := repo.GetStudent(ctx, bob.ID)
			if err != nil || byID == nil || byID.RollNumber != "S002" {
				t.Fatalf("expected lookup by ID to match, got %+v (%v)", byID, err)
			}
			missing, err := repo.GetStudentByRollNumber(ctx, "S999")
			if err != nil || missing != nil {
				t.Fatalf("expected nil for unknown roll number, got %+v (%v)", missing, err)
			}
		})
	}
}

func TestClosedMemoryStoreReportsWriteFailure(t *testing.T) {
	repo := NewMemory()
	_ = repo.Close()
	_, err := repo.RecordIfAbsent(context.Background(), "s", "a", time.Now())
	if !errors.Is(err, domain.ErrStoreWrite) {
		t.Fatalf("expected ErrStoreWrite, got %v", err)
	}
}

func TestOpenFallsBackToMemory(t *testing.T) {
	repo, backend, err := Open(BackendMemory, "")
	if err != nil || backend != BackendMemory || repo == nil {
		t.Fatalf("expected memory backend, got %q (%v)", backend, err)
	}

	// A regular file in the parent path makes the database directory uncreatable.
	blocker := filepath.Join(t.TempDir(), "blocker")
	if err := os.WriteFile(blocker, []byte("x"), 0o600); err != nil {
		t.Fatalf("write blocker: %v", err)
	}
	repo, backend, err = Open(BackendSQLite, filepath.Join(blocker, "data", "attendance.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer repo.Close()
	if backend != BackendMemory {
		t.Fatalf("expected fallback to memory, got %q", backend)
	}

	if _, _, err := Open("postgres", ""); err == nil {
		t.Fatal("expected error for unknown backend")
	}
}
