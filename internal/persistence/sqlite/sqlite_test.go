package sqlite

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/example/campus-portal/internal/persistence"
)

func openTestPool(t *testing.T) *ConnectionPool {
	t.Helper()

	ctx := context.Background()
	pool, err := Open(ctx, InMemoryConfig())
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	t.Cleanup(func() { pool.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if err := NewMigrator(pool.DB(), logger).Migrate(ctx); err != nil {
		t.Fatalf("Migrate returned error: %v", err)
	}
	return pool
}

func TestConfigValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		cfg  Config
	}{
		{name: "empty dsn", cfg: Config{}},
		{name: "negative busy timeout", cfg: Config{DSN: ":memory:", BusyTimeout: -time.Second}},
		{name: "unknown journal mode", cfg: Config{DSN: ":memory:", JournalMode: "FAST"}},
		{name: "negative pool", cfg: Config{DSN: ":memory:", MaxOpenConns: -1}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if _, err := Open(context.Background(), tt.cfg); err == nil {
				t.Fatalf("expected Open to reject %+v", tt.cfg)
			}
		})
	}
}

func TestMigrateIsIdempotent(t *testing.T) {
	t.Parallel()

	pool := openTestPool(t)
	ctx := context.Background()
	migrator := NewMigrator(pool.DB(), slog.New(slog.NewTextHandler(io.Discard, nil)))

	if err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("second Migrate returned error: %v", err)
	}
	applied, err := migrator.Applied(ctx)
	if err != nil {
		t.Fatalf("Applied returned error: %v", err)
	}
	if len(applied) != 1 || applied[0].Version != "0001" {
		t.Fatalf("expected one applied migration, got %+v", applied)
	}
	if applied[0].Checksum == "" {
		t.Fatalf("expected checksum to be recorded")
	}
}

func TestParseSQL(t *testing.T) {
	t.Parallel()

	statements := parseSQL(`
-- comment only
CREATE TABLE a (id TEXT);

-- another
CREATE INDEX idx ON a(id);
`)
	if len(statements) != 2 {
		t.Fatalf("expected 2 statements, got %d: %q", len(statements), statements)
	}
	if statements[0] != "CREATE TABLE a (id TEXT)" {
		t.Fatalf("unexpected first statement %q", statements[0])
	}
}

func TestAccountRepositoryReplaceAndList(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := NewAccountRepository(openTestPool(t))

	first := []persistence.AccountRecord{
		{ID: "admin", DisplayName: "Admin", Email: "admin@example.edu", CredentialSecret: "x", EmailVerified: true, Role: "ADMIN", Locale: "en"},
		{ID: "student1", DisplayName: "Yosser", Email: "yosser@example.edu", CredentialSecret: "y", Role: "STUDENT", Locale: "fr"},
	}
	if err := repo.ReplaceAccounts(ctx, first); err != nil {
		t.Fatalf("ReplaceAccounts returned error: %v", err)
	}

	got, err := repo.ListAccounts(ctx)
	if err != nil {
		t.Fatalf("ListAccounts returned error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 accounts, got %d", len(got))
	}
	if got[0].ID != "admin" || !got[0].EmailVerified || got[1].Locale != "fr" || got[1].Position != 1 {
		t.Fatalf("unexpected accounts: %+v", got)
	}

	if err := repo.ReplaceAccounts(ctx, first[1:]); err != nil {
		t.Fatalf("ReplaceAccounts returned error: %v", err)
	}
	got, _ = repo.ListAccounts(ctx)
	if len(got) != 1 || got[0].ID != "student1" || got[0].Position != 0 {
		t.Fatalf("expected snapshot to be replaced, got %+v", got)
	}
}

func TestAccountRepositoryRejectsDuplicateEmail(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := NewAccountRepository(openTestPool(t))

	if err := repo.ReplaceAccounts(ctx, []persistence.AccountRecord{{ID: "keep", Email: "keep@example.edu", Role: "STUDENT", Locale: "en"}}); err != nil {
		t.Fatalf("ReplaceAccounts returned error: %v", err)
	}

	err := repo.ReplaceAccounts(ctx, []persistence.AccountRecord{
		{ID: "a", Email: "same@example.edu", Role: "STUDENT", Locale: "en"},
		{ID: "b", Email: "same@example.edu", Role: "STUDENT", Locale: "en"},
	})
	if !errors.Is(err, persistence.ErrConstraintViolation) {
		t.Fatalf("expected constraint violation, got %v", err)
	}

	got, _ := repo.ListAccounts(ctx)
	if len(got) != 1 || got[0].ID != "keep" {
		t.Fatalf("expected failed replace to roll back, got %+v", got)
	}
}

func TestEventRepositoryRoundTripsMilliseconds(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := NewEventRepository(openTestPool(t))

	start := time.Date(2025, time.March, 3, 8, 30, 0, 123_000_000, time.UTC)
	events := []persistence.EventRecord{
		{ID: "e2", Title: "Database Systems", Start: start.Add(24 * time.Hour), End: start.Add(26 * time.Hour), Location: "Room B202"},
		{ID: "e1", Title: "Advanced Programming", Start: start, End: start.Add(90 * time.Minute), Organizer: "Prof. Elynn Lee"},
	}
	if err := repo.ReplaceEvents(ctx, events); err != nil {
		t.Fatalf("ReplaceEvents returned error: %v", err)
	}

	got, err := repo.ListEvents(ctx)
	if err != nil {
		t.Fatalf("ListEvents returned error: %v", err)
	}
	if len(got) != 2 || got[0].ID != "e2" || got[1].ID != "e1" {
		t.Fatalf("expected insertion order to be kept, got %+v", got)
	}
	if !got[1].Start.Equal(start) || !got[1].End.Equal(start.Add(90*time.Minute)) {
		t.Fatalf("expected times to round trip, got %v - %v", got[1].Start, got[1].End)
	}
}

func TestFeedbackRepository(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := NewFeedbackRepository(openTestPool(t))
	base := time.Date(2025, time.March, 1, 9, 0, 0, 0, time.UTC)

	if err := repo.CreateFeedback(ctx, persistence.FeedbackRecord{ID: "f2", UserID: "anonymous", Message: "second", CreatedAt: base.Add(time.Minute)}); err != nil {
		t.Fatalf("CreateFeedback returned error: %v", err)
	}
	if err := repo.CreateFeedback(ctx, persistence.FeedbackRecord{ID: "f1", UserID: "anonymous", Message: "first", CreatedAt: base}); err != nil {
		t.Fatalf("CreateFeedback returned error: %v", err)
	}
	if err := repo.CreateFeedback(ctx, persistence.FeedbackRecord{ID: "f1", UserID: "anonymous", Message: "dup", CreatedAt: base}); !errors.Is(err, persistence.ErrConstraintViolation) {
		t.Fatalf("expected duplicate id to violate constraint, got %v", err)
	}
	if err := repo.CreateFeedback(ctx, persistence.FeedbackRecord{ID: "f3", UserID: "anonymous", CreatedAt: base}); !errors.Is(err, persistence.ErrConstraintViolation) {
		t.Fatalf("expected empty message to violate constraint, got %v", err)
	}

	got, err := repo.ListFeedback(ctx)
	if err != nil {
		t.Fatalf("ListFeedback returned error: %v", err)
	}
	if len(got) != 2 || got[0].ID != "f1" || !got[0].CreatedAt.Equal(base) {
		t.Fatalf("unexpected feedback: %+v", got)
	}
}

func TestNotificationRepositoryFiltersByRole(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := NewNotificationRepository(openTestPool(t))
	base := time.Date(2025, time.March, 1, 9, 0, 0, 0, time.UTC)

	for _, n := range []persistence.NotificationRecord{
		{ID: "n1", Content: "exam moved", SentBy: "admin", SentToRole: "STUDENT", CreatedAt: base},
		{ID: "n2", Content: "staff meeting", SentBy: "admin", SentToRole: "PROFESSOR", CreatedAt: base},
		{ID: "n3", Content: "library hours", SentBy: "admin", SentToRole: "STUDENT", CreatedAt: base.Add(time.Hour)},
	} {
		if err := repo.CreateNotification(ctx, n); err != nil {
			t.Fatalf("CreateNotification returned error: %v", err)
		}
	}

	got, err := repo.ListNotificationsForRole(ctx, "STUDENT")
	if err != nil {
		t.Fatalf("ListNotificationsForRole returned error: %v", err)
	}
	if len(got) != 2 || got[0].ID != "n3" || got[1].ID != "n1" {
		t.Fatalf("expected newest student notifications first, got %+v", got)
	}

	none, _ := repo.ListNotificationsForRole(ctx, "ADMIN")
	if len(none) != 0 {
		t.Fatalf("expected no admin notifications, got %+v", none)
	}
}
