package application

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/example/campus-portal/internal/directory"
	"github.com/example/campus-portal/internal/notify"
	"github.com/example/campus-portal/internal/persistence"
)

// NotificationService records role broadcasts and pushes them to devices.
type NotificationService struct {
	notifications persistence.NotificationRepository
	broadcaster   notify.Broadcaster
	observer      StoreObserver
	idGenerator   func() string
	now           func() time.Time
	logger        *slog.Logger
}

// NewNotificationService wires dependencies for notification operations. A
// nil broadcaster disables push delivery.
func NewNotificationService(notifications persistence.NotificationRepository, broadcaster notify.Broadcaster, observer StoreObserver, idGenerator func() string, now func() time.Time, logger *slog.Logger) *NotificationService {
	if broadcaster == nil {
		broadcaster = notify.NoopBroadcaster{}
	}
	if idGenerator == nil {
		idGenerator = uuid.NewString
	}
	if now == nil {
		now = time.Now
	}
	return &NotificationService{
		notifications: notifications,
		broadcaster:   broadcaster,
		observer:      defaultObserver(observer),
		idGenerator:   idGenerator,
		now:           now,
		logger:        defaultLogger(logger),
	}
}

func (s *NotificationService) ready() error {
	if s == nil {
		return fmt.Errorf("NotificationService is nil")
	}
	if s.notifications == nil {
		return fmt.Errorf("notification repository not configured")
	}
	return nil
}

// Broadcast records a notification for every account holding the target role
// and pushes it to the role topic. Only admins may broadcast. Push failures
// are logged and do not fail the call.
func (s *NotificationService) Broadcast(ctx context.Context, params BroadcastParams) (notification Notification, err error) {
	if err = s.ready(); err != nil {
		return
	}

	role := strings.ToUpper(strings.TrimSpace(params.Role))
	logger := serviceLogger(ctx, s.logger, "NotificationService", "Broadcast",
		"principal_id", params.Principal.AccountID,
		"role", role,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "broadcast failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("notification_id", notification.ID).InfoContext(ctx, "notification broadcast")
	}()

	if !params.Principal.IsAdmin() {
		err = ErrUnauthorized
		return
	}

	content := strings.TrimSpace(params.Content)
	if vErr := validateStruct(broadcastRequest{Content: content, Role: role}); vErr.HasErrors() {
		err = vErr
		return
	}

	record := persistence.NotificationRecord{
		ID:         s.idGenerator(),
		Content:    content,
		SentBy:     params.Principal.AccountID,
		SentToRole: role,
		CreatedAt:  s.now().UTC().Truncate(time.Millisecond),
	}
	if err = s.notifications.CreateNotification(ctx, record); err != nil {
		s.observer.StoreOperation("notifications", "create", false)
		return
	}
	s.observer.StoreOperation("notifications", "create", true)
	notification = notificationFromRecord(record)

	if pErr := s.broadcaster.Broadcast(ctx, notify.Notification{
		ID:        record.ID,
		Content:   record.Content,
		SentBy:    record.SentBy,
		Role:      record.SentToRole,
		CreatedAt: record.CreatedAt,
	}); pErr != nil {
		logger.WarnContext(ctx, "failed to push notification", "error", pErr)
	}
	return
}

// ListForRole returns the notifications sent to the principal's role, newest
// first.
func (s *NotificationService) ListForRole(ctx context.Context, principal Principal) ([]Notification, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if !principal.authenticated() {
		return nil, ErrUnauthorized
	}

	records, err := s.notifications.ListNotificationsForRole(ctx, principal.Role.String())
	s.observer.StoreOperation("notifications", "list", err == nil)
	if err != nil {
		return nil, err
	}
	out := make([]Notification, 0, len(records))
	for _, record := range records {
		out = append(out, notificationFromRecord(record))
	}
	return out, nil
}

func notificationFromRecord(record persistence.NotificationRecord) Notification {
	return Notification{
		ID:        record.ID,
		Content:   record.Content,
		SentBy:    record.SentBy,
		Role:      directory.Role(record.SentToRole),
		CreatedAt: record.CreatedAt,
	}
}
