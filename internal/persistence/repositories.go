package persistence

import "context"

// AccountRepository stores full snapshots of the account registry.
type AccountRepository interface {
	ReplaceAccounts(ctx context.Context, accounts []AccountRecord) error
	ListAccounts(ctx context.Context) ([]AccountRecord, error)
}

// EventRepository stores full snapshots of the event calendar.
type EventRepository interface {
	ReplaceEvents(ctx context.Context, events []EventRecord) error
	ListEvents(ctx context.Context) ([]EventRecord, error)
}

// FeedbackRepository stores anonymous feedback.
type FeedbackRepository interface {
	CreateFeedback(ctx context.Context, feedback FeedbackRecord) error
	ListFeedback(ctx context.Context) ([]FeedbackRecord, error)
}

// NotificationRepository stores role broadcasts.
type NotificationRepository interface {
	CreateNotification(ctx context.Context, notification NotificationRecord) error
	ListNotificationsForRole(ctx context.Context, role string) ([]NotificationRecord, error)
}
