package sqlite

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/example/campus-portal/internal/persistence"
)

// NotificationRepository implements persistence.NotificationRepository using SQLite.
type NotificationRepository struct {
	pool *ConnectionPool
}

var _ persistence.NotificationRepository = (*NotificationRepository)(nil)

// NewNotificationRepository creates a SQLite notification repository.
func NewNotificationRepository(pool *ConnectionPool) *NotificationRepository {
	return &NotificationRepository{pool: pool}
}

// CreateNotification inserts a role broadcast.
func (r *NotificationRepository) CreateNotification(ctx context.Context, notification persistence.NotificationRecord) error {
	if notification.ID == "" {
		return persistence.ErrConstraintViolation
	}

	_, err := r.pool.DB().ExecContext(ctx, `
		INSERT INTO notifications (id, content, sent_by, sent_to_role, created_ms)
		VALUES (?, ?, ?, ?, ?)`,
		notification.ID,
		notification.Content,
		notification.SentBy,
		notification.SentToRole,
		notification.CreatedAt.UnixMilli(),
	)
	return mapError(err)
}

// ListNotificationsForRole returns the broadcasts sent to role, newest first.
func (r *NotificationRepository) ListNotificationsForRole(ctx context.Context, role string) ([]persistence.NotificationRecord, error) {
	rows, err := r.pool.DB().QueryContext(ctx, `
		SELECT id, content, sent_by, sent_to_role, created_ms
		FROM notifications
		WHERE sent_to_role = ?
		ORDER BY created_ms DESC, id DESC`, role)
	if err != nil {
		return nil, errors.Wrap(err, "sqlite: list notifications")
	}
	defer rows.Close()

	notifications := make([]persistence.NotificationRecord, 0)
	for rows.Next() {
		var (
			record    persistence.NotificationRecord
			createdMs int64
		)
		if err := rows.Scan(&record.ID, &record.Content, &record.SentBy, &record.SentToRole, &createdMs); err != nil {
			return nil, errors.Wrap(err, "sqlite: scan notification")
		}
		record.CreatedAt = time.UnixMilli(createdMs).UTC()
		notifications = append(notifications, record)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "sqlite: iterate notifications")
	}
	return notifications, nil
}
