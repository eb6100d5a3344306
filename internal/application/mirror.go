package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/example/campus-portal/internal/calendar"
	"github.com/example/campus-portal/internal/directory"
	"github.com/example/campus-portal/internal/observable"
	"github.com/example/campus-portal/internal/persistence"
)

// RosterSource is a directory that can be restored from and observed.
type RosterSource interface {
	Restore(accounts []directory.Account) int
	Roster() *observable.Value[[]directory.Account]
}

// CalendarSource is a calendar that can be restored from and observed.
type CalendarSource interface {
	Restore(events []calendar.Event) int
	Snapshot() *observable.Value[[]calendar.Event]
}

// SnapshotMirror keeps the sqlite tables in step with the in-memory stores.
// The stores stay authoritative; the tables only receive full snapshots.
type SnapshotMirror struct {
	roster     RosterSource
	calendar   CalendarSource
	accountsDB persistence.AccountRepository
	eventsDB   persistence.EventRepository
	observer   StoreObserver
	logger     *slog.Logger
}

// NewSnapshotMirror wires the stores to their repositories.
func NewSnapshotMirror(roster RosterSource, cal CalendarSource, accounts persistence.AccountRepository, events persistence.EventRepository, observer StoreObserver, logger *slog.Logger) *SnapshotMirror {
	return &SnapshotMirror{
		roster:     roster,
		calendar:   cal,
		accountsDB: accounts,
		eventsDB:   events,
		observer:   defaultObserver(observer),
		logger:     defaultLogger(logger),
	}
}

// Hydrate loads the persisted accounts and events into the stores. Records
// already present in a store are skipped.
func (m *SnapshotMirror) Hydrate(ctx context.Context) (accounts, events int, err error) {
	if m == nil {
		err = fmt.Errorf("SnapshotMirror is nil")
		return
	}

	logger := serviceLogger(ctx, m.logger, "SnapshotMirror", "Hydrate")
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "hydration failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "stores hydrated", "accounts", accounts, "events", events)
	}()

	var accountRecords []persistence.AccountRecord
	accountRecords, err = m.accountsDB.ListAccounts(ctx)
	m.observer.StoreOperation("sqlite_accounts", "list", err == nil)
	if err != nil {
		return
	}
	restoredAccounts := make([]directory.Account, 0, len(accountRecords))
	for _, record := range accountRecords {
		restoredAccounts = append(restoredAccounts, accountFromRecord(record))
	}
	accounts = m.roster.Restore(restoredAccounts)

	var eventRecords []persistence.EventRecord
	eventRecords, err = m.eventsDB.ListEvents(ctx)
	m.observer.StoreOperation("sqlite_events", "list", err == nil)
	if err != nil {
		return
	}
	restoredEvents := make([]calendar.Event, 0, len(eventRecords))
	for _, record := range eventRecords {
		restoredEvents = append(restoredEvents, eventFromRecord(record))
	}
	events = m.calendar.Restore(restoredEvents)
	return
}

// Run writes every roster and calendar snapshot through the repositories
// until ctx ends, then flushes the current snapshots once more so changes
// made while the watchers were stopping still reach the tables. Writes run
// detached from ctx cancellation. Write failures are logged and the next
// snapshot retries.
func (m *SnapshotMirror) Run(ctx context.Context) error {
	if m == nil {
		return fmt.Errorf("SnapshotMirror is nil")
	}

	logger := serviceLogger(ctx, m.logger, "SnapshotMirror", "Run")
	logger.InfoContext(ctx, "snapshot mirror started")

	writeCtx := context.WithoutCancel(ctx)
	rosterDone := m.roster.Roster().Watch(ctx, func(snapshot []directory.Account) {
		m.writeAccounts(writeCtx, logger, snapshot)
	})
	calendarDone := m.calendar.Snapshot().Watch(ctx, func(snapshot []calendar.Event) {
		m.writeEvents(writeCtx, logger, snapshot)
	})

	<-rosterDone
	<-calendarDone

	m.writeAccounts(writeCtx, logger, m.roster.Roster().Get())
	m.writeEvents(writeCtx, logger, m.calendar.Snapshot().Get())
	logger.InfoContext(writeCtx, "snapshot mirror stopped")
	return nil
}

func (m *SnapshotMirror) writeAccounts(ctx context.Context, logger *slog.Logger, snapshot []directory.Account) {
	records := make([]persistence.AccountRecord, 0, len(snapshot))
	for i, account := range snapshot {
		records = append(records, accountToRecord(account, i))
	}
	err := m.accountsDB.ReplaceAccounts(ctx, records)
	m.observer.StoreOperation("sqlite_accounts", "replace", err == nil)
	if err != nil {
		logger.ErrorContext(ctx, "failed to mirror accounts", "count", len(records), "error", err)
	}
}

func (m *SnapshotMirror) writeEvents(ctx context.Context, logger *slog.Logger, snapshot []calendar.Event) {
	records := make([]persistence.EventRecord, 0, len(snapshot))
	for i, event := range snapshot {
		records = append(records, eventToRecord(event, i))
	}
	err := m.eventsDB.ReplaceEvents(ctx, records)
	m.observer.StoreOperation("sqlite_events", "replace", err == nil)
	if err != nil {
		logger.ErrorContext(ctx, "failed to mirror events", "count", len(records), "error", err)
	}
}

func accountToRecord(account directory.Account, position int) persistence.AccountRecord {
	return persistence.AccountRecord{
		ID:               account.ID,
		DisplayName:      account.DisplayName,
		Email:            account.Email,
		CredentialSecret: account.CredentialSecret,
		EmailVerified:    account.EmailVerified,
		Role:             account.Role.String(),
		Locale:           account.Locale,
		Position:         position,
	}
}

func accountFromRecord(record persistence.AccountRecord) directory.Account {
	role, ok := directory.ParseRole(record.Role)
	if !ok {
		role = directory.RoleStudent
	}
	locale := record.Locale
	if locale == "" {
		locale = directory.DefaultLocale
	}
	return directory.Account{
		ID:               record.ID,
		DisplayName:      record.DisplayName,
		Email:            record.Email,
		CredentialSecret: record.CredentialSecret,
		EmailVerified:    record.EmailVerified,
		Role:             role,
		Locale:           locale,
	}
}

func eventToRecord(event calendar.Event, position int) persistence.EventRecord {
	return persistence.EventRecord{
		ID:          event.ID,
		Title:       event.Title,
		Description: event.Description,
		Start:       event.Start.UTC(),
		End:         event.End.UTC(),
		Location:    event.Location,
		Organizer:   event.Organizer,
		Position:    position,
	}
}

func eventFromRecord(record persistence.EventRecord) calendar.Event {
	return calendar.Event{
		ID:          record.ID,
		Title:       record.Title,
		Description: record.Description,
		Start:       record.Start.Truncate(time.Millisecond),
		End:         record.End.Truncate(time.Millisecond),
		Location:    record.Location,
		Organizer:   record.Organizer,
	}
}
