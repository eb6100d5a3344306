package persistence

import "time"

// AccountRecord is the stored form of a directory account. CredentialSecret is
// whatever the configured credential scheme produced.
type AccountRecord struct {
	ID               string
	DisplayName      string
	Email            string
	CredentialSecret string
	EmailVerified    bool
	Role             string
	Locale           string
	Position         int
}

// EventRecord is the stored form of a calendar event.
type EventRecord struct {
	ID          string
	Title       string
	Description string
	Start       time.Time
	End         time.Time
	Location    string
	Organizer   string
	Position    int
}

// FeedbackRecord is an anonymous feedback message.
type FeedbackRecord struct {
	ID        string
	UserID    string
	Message   string
	CreatedAt time.Time
}

// NotificationRecord is a message broadcast to every account with a role.
type NotificationRecord struct {
	ID         string
	Content    string
	SentBy     string
	SentToRole string
	CreatedAt  time.Time
}
