package notify

import (
	"context"
	"log/slog"
	"strings"
	"time"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"github.com/pkg/errors"
)

// RoleTopicPrefix prefixes the FCM topic every member of a role subscribes to.
const RoleTopicPrefix = "role-"

// Notification is a message sent to every account holding a role.
type Notification struct {
	ID        string
	Content   string
	SentBy    string
	Role      string
	CreatedAt time.Time
}

// Broadcaster pushes role notifications to devices.
type Broadcaster interface {
	Broadcast(ctx context.Context, notification Notification) error
}

// NoopBroadcaster drops every notification.
type NoopBroadcaster struct{}

func (NoopBroadcaster) Broadcast(context.Context, Notification) error {
	return nil
}

type messagingClient interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
}

// FCMBroadcaster sends notifications to per-role FCM topics.
type FCMBroadcaster struct {
	client messagingClient
	logger *slog.Logger
}

// NewFCMBroadcaster gets a messaging client from app.
func NewFCMBroadcaster(ctx context.Context, app *firebase.App, logger *slog.Logger) (*FCMBroadcaster, error) {
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "notify: get messaging client")
	}
	return newFCMBroadcaster(client, logger), nil
}

func newFCMBroadcaster(client messagingClient, logger *slog.Logger) *FCMBroadcaster {
	if logger == nil {
		logger = slog.Default()
	}
	return &FCMBroadcaster{client: client, logger: logger}
}

// Broadcast sends notification to the topic of its role.
func (b *FCMBroadcaster) Broadcast(ctx context.Context, notification Notification) error {
	message := fcmMessage(notification)
	messageID, err := b.client.Send(ctx, message)
	if err != nil {
		return errors.Wrapf(err, "notify: send notification %s to %s", notification.ID, message.Topic)
	}
	b.logger.InfoContext(ctx, "notification broadcast",
		slog.String("notification_id", notification.ID),
		slog.String("topic", message.Topic),
		slog.String("message_id", messageID),
	)
	return nil
}

// RoleTopic returns the FCM topic for role.
func RoleTopic(role string) string {
	return RoleTopicPrefix + strings.ToUpper(strings.TrimSpace(role))
}

func fcmMessage(notification Notification) *messaging.Message {
	return &messaging.Message{
		Topic: RoleTopic(notification.Role),
		Notification: &messaging.Notification{
			Title: "New notification",
			Body:  notification.Content,
		},
		Data: map[string]string{
			"notification_id": notification.ID,
			"sent_by":         notification.SentBy,
			"role":            notification.Role,
			"created_at":      notification.CreatedAt.UTC().Format(time.RFC3339),
		},
	}
}
