package sqlite

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/example/campus-portal/internal/persistence"
)

// FeedbackRepository implements persistence.FeedbackRepository using SQLite.
type FeedbackRepository struct {
	pool *ConnectionPool
}

var _ persistence.FeedbackRepository = (*FeedbackRepository)(nil)

// NewFeedbackRepository creates a SQLite feedback repository.
func NewFeedbackRepository(pool *ConnectionPool) *FeedbackRepository {
	return &FeedbackRepository{pool: pool}
}

// CreateFeedback inserts a feedback message.
func (r *FeedbackRepository) CreateFeedback(ctx context.Context, feedback persistence.FeedbackRecord) error {
	if feedback.ID == "" {
		return persistence.ErrConstraintViolation
	}

	_, err := r.pool.DB().ExecContext(ctx,
		`INSERT INTO feedback (id, user_id, message, created_ms) VALUES (?, ?, ?, ?)`,
		feedback.ID,
		feedback.UserID,
		feedback.Message,
		feedback.CreatedAt.UnixMilli(),
	)
	return mapError(err)
}

// ListFeedback returns every message, oldest first.
func (r *FeedbackRepository) ListFeedback(ctx context.Context) ([]persistence.FeedbackRecord, error) {
	rows, err := r.pool.DB().QueryContext(ctx, `
		SELECT id, user_id, message, created_ms
		FROM feedback
		ORDER BY created_ms ASC, id ASC`)
	if err != nil {
		return nil, errors.Wrap(err, "sqlite: list feedback")
	}
	defer rows.Close()

	feedback := make([]persistence.FeedbackRecord, 0)
	for rows.Next() {
		var (
			record    persistence.FeedbackRecord
			createdMs int64
		)
		if err := rows.Scan(&record.ID, &record.UserID, &record.Message, &createdMs); err != nil {
			return nil, errors.Wrap(err, "sqlite: scan feedback")
		}
		record.CreatedAt = time.UnixMilli(createdMs).UTC()
		feedback = append(feedback, record)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "sqlite: iterate feedback")
	}
	return feedback, nil
}
