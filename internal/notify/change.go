// Package notify delivers calendar changes to a change feed and role
// broadcasts to push subscribers.
package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/pkg/errors"
)

// ChangeKind names what happened to an event.
type ChangeKind string

const (
	EventCreated ChangeKind = "event.created"
	EventUpdated ChangeKind = "event.updated"
	EventDeleted ChangeKind = "event.deleted"
)

// Change describes one calendar mutation. Start and End are zero for deletions.
type Change struct {
	ID         string     `json:"id"`
	Kind       ChangeKind `json:"kind"`
	EventID    string     `json:"event_id"`
	Title      string     `json:"title,omitempty"`
	Start      time.Time  `json:"start,omitzero"`
	End        time.Time  `json:"end,omitzero"`
	Location   string     `json:"location,omitempty"`
	Actor      string     `json:"actor,omitempty"`
	OccurredAt time.Time  `json:"occurred_at"`
}

func (c Change) encode() ([]byte, error) {
	data, err := json.Marshal(c)
	return data, errors.Wrapf(err, "notify: encode change %s", c.ID)
}

// Publisher ships calendar changes to downstream consumers.
type Publisher interface {
	Publish(ctx context.Context, change Change) error
	Close() error
}

// NoopPublisher drops every change.
type NoopPublisher struct {
	logger *slog.Logger
}

// NewNoopPublisher returns a Publisher that only logs at debug level.
func NewNoopPublisher(logger *slog.Logger) *NoopPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &NoopPublisher{logger: logger}
}

func (p *NoopPublisher) Publish(ctx context.Context, change Change) error {
	p.logger.DebugContext(ctx, "change feed disabled, skipping",
		slog.String("kind", string(change.Kind)),
		slog.String("event_id", change.EventID),
	)
	return nil
}

func (p *NoopPublisher) Close() error {
	return nil
}
