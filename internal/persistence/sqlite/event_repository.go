package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"

	"github.com/example/campus-portal/internal/persistence"
)

// EventRepository implements persistence.EventRepository using SQLite.
// Times are stored as Unix milliseconds and read back in UTC.
type EventRepository struct {
	pool *ConnectionPool
}

var _ persistence.EventRepository = (*EventRepository)(nil)

// NewEventRepository creates a SQLite event repository.
func NewEventRepository(pool *ConnectionPool) *EventRepository {
	return &EventRepository{pool: pool}
}

// ReplaceEvents swaps the stored snapshot for events in one transaction.
func (r *EventRepository) ReplaceEvents(ctx context.Context, events []persistence.EventRecord) error {
	return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM events`); err != nil {
			return errors.Wrap(err, "sqlite: clear events")
		}

		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO events (id, title, description, start_ms, end_ms, location, organizer, position)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return errors.Wrap(err, "sqlite: prepare event insert")
		}
		defer stmt.Close()

		for i, event := range events {
			if event.ID == "" {
				return persistence.ErrConstraintViolation
			}
			_, err := stmt.ExecContext(ctx,
				event.ID,
				event.Title,
				event.Description,
				event.Start.UnixMilli(),
				event.End.UnixMilli(),
				event.Location,
				event.Organizer,
				i,
			)
			if err != nil {
				return mapError(err)
			}
		}
		return nil
	})
}

// ListEvents returns the stored snapshot in position order.
func (r *EventRepository) ListEvents(ctx context.Context) ([]persistence.EventRecord, error) {
	rows, err := r.pool.DB().QueryContext(ctx, `
		SELECT id, title, description, start_ms, end_ms, location, organizer, position
		FROM events
		ORDER BY position ASC`)
	if err != nil {
		return nil, errors.Wrap(err, "sqlite: list events")
	}
	defer rows.Close()

	events := make([]persistence.EventRecord, 0)
	for rows.Next() {
		var (
			event          persistence.EventRecord
			startMs, endMs int64
		)
		if err := rows.Scan(
			&event.ID,
			&event.Title,
			&event.Description,
			&startMs,
			&endMs,
			&event.Location,
			&event.Organizer,
			&event.Position,
		); err != nil {
			return nil, errors.Wrap(err, "sqlite: scan event")
		}
		event.Start = time.UnixMilli(startMs).UTC()
		event.End = time.UnixMilli(endMs).UTC()
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "sqlite: iterate events")
	}
	return events, nil
}
