package application_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/example/campus-portal/internal/application"
	"github.com/example/campus-portal/internal/calendar"
	"github.com/example/campus-portal/internal/directory"
	"github.com/example/campus-portal/internal/persistence"
	"github.com/example/campus-portal/internal/persistence/memory"
	"github.com/example/campus-portal/internal/testfixtures"
)

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestSnapshotMirror_Hydrate(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	storage := memory.New()
	event := testfixtures.NewEventFixture(testfixtures.WithEventID("persisted-event"))
	if err := storage.ReplaceAccounts(ctx, []persistence.AccountRecord{adminFixture.Record(0), studentFixture.Record(1)}); err != nil {
		t.Fatalf("ReplaceAccounts returned error: %v", err)
	}
	if err := storage.ReplaceEvents(ctx, []persistence.EventRecord{event.Record(0)}); err != nil {
		t.Fatalf("ReplaceEvents returned error: %v", err)
	}

	dir := directory.New()
	cal := calendar.New(calendar.WithLocation(time.UTC))
	mirror := application.NewSnapshotMirror(dir, cal, storage, storage, nil, discardLogger())

	accounts, events, err := mirror.Hydrate(ctx)
	if err != nil {
		t.Fatalf("Hydrate returned error: %v", err)
	}
	if accounts != 2 || events != 1 {
		t.Fatalf("expected 2 accounts and 1 event, got %d and %d", accounts, events)
	}
	if account, ok := dir.GetByID("admin"); !ok || account.Role != directory.RoleAdmin {
		t.Fatalf("expected admin to be restored, got %+v", account)
	}
	if _, ok := dir.Login("student1", studentFixture.Secret); !ok {
		t.Fatalf("expected restored secret to verify")
	}
	if _, ok := cal.GetByID("persisted-event"); !ok {
		t.Fatalf("expected event to be restored")
	}

	again, _, err := mirror.Hydrate(ctx)
	if err != nil || again != 0 {
		t.Fatalf("expected second hydrate to add nothing, got %d, %v", again, err)
	}
}

func TestSnapshotMirror_Run(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	storage := memory.New()
	dir := directory.New()
	cal := calendar.New(calendar.WithLocation(time.UTC))
	mirror := application.NewSnapshotMirror(dir, cal, storage, storage, nil, discardLogger())

	done := make(chan error, 1)
	go func() { done <- mirror.Run(ctx) }()

	dir.Provision(professorFixture.Directory())
	added := cal.AddEvent(testfixtures.NewEventFixture().Input())

	waitFor(t, "accounts to be mirrored", func() bool {
		records, _ := storage.ListAccounts(context.Background())
		return len(records) == 1 && records[0].ID == professorFixture.ID
	})
	waitFor(t, "events to be mirrored", func() bool {
		records, _ := storage.ListEvents(context.Background())
		return len(records) == 1 && records[0].ID == added.ID
	})

	cal.DeleteEvent(added.ID)
	waitFor(t, "deletion to be mirrored", func() bool {
		records, _ := storage.ListEvents(context.Background())
		return len(records) == 0
	})

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Run did not stop after cancel")
	}
}

// contextStrictStorage refuses writes once their context is done.
type contextStrictStorage struct {
	*memory.Storage
	refused atomic.Int32
}

func (s *contextStrictStorage) ReplaceAccounts(ctx context.Context, accounts []persistence.AccountRecord) error {
	if err := ctx.Err(); err != nil {
		s.refused.Add(1)
		return err
	}
	return s.Storage.ReplaceAccounts(ctx, accounts)
}

func (s *contextStrictStorage) ReplaceEvents(ctx context.Context, events []persistence.EventRecord) error {
	if err := ctx.Err(); err != nil {
		s.refused.Add(1)
		return err
	}
	return s.Storage.ReplaceEvents(ctx, events)
}

func TestSnapshotMirror_RunFlushesAfterCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	storage := &contextStrictStorage{Storage: memory.New()}
	dir := directory.New()
	cal := calendar.New(calendar.WithLocation(time.UTC))
	mirror := application.NewSnapshotMirror(dir, cal, storage, storage, nil, discardLogger())

	cancel()
	dir.Provision(professorFixture.Directory())
	added := cal.AddEvent(testfixtures.NewEventFixture().Input())

	if err := mirror.Run(ctx); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	if refused := storage.refused.Load(); refused != 0 {
		t.Fatalf("expected writes to outlive cancellation, got %d refused", refused)
	}
	accounts, err := storage.ListAccounts(context.Background())
	if err != nil || len(accounts) != 1 || accounts[0].ID != professorFixture.ID {
		t.Fatalf("expected the late account to be flushed, got %+v, %v", accounts, err)
	}
	events, err := storage.ListEvents(context.Background())
	if err != nil || len(events) != 1 || events[0].ID != added.ID {
		t.Fatalf("expected the late event to be flushed, got %+v, %v", events, err)
	}
}
