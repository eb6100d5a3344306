// Package memory implements the persistence repositories in process memory.
// It backs feedback and notifications when no database is configured.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/example/campus-portal/internal/persistence"
)

// Storage keeps every repository's records in maps guarded by one lock.
type Storage struct {
	mu            sync.RWMutex
	accounts      []persistence.AccountRecord
	events        []persistence.EventRecord
	feedback      map[string]persistence.FeedbackRecord
	notifications map[string]persistence.NotificationRecord
}

var (
	_ persistence.AccountRepository      = (*Storage)(nil)
	_ persistence.EventRepository        = (*Storage)(nil)
	_ persistence.FeedbackRepository     = (*Storage)(nil)
	_ persistence.NotificationRepository = (*Storage)(nil)
)

// New returns an empty Storage.
func New() *Storage {
	return &Storage{
		feedback:      make(map[string]persistence.FeedbackRecord),
		notifications: make(map[string]persistence.NotificationRecord),
	}
}

// --- AccountRepository implementation ---

// ReplaceAccounts swaps the stored account snapshot.
func (s *Storage) ReplaceAccounts(ctx context.Context, accounts []persistence.AccountRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := make([]persistence.AccountRecord, len(accounts))
	copy(next, accounts)
	for i := range next {
		next[i].Position = i
	}
	s.accounts = next
	return nil
}

// ListAccounts returns the stored snapshot in position order.
func (s *Storage) ListAccounts(ctx context.Context) ([]persistence.AccountRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]persistence.AccountRecord, len(s.accounts))
	copy(out, s.accounts)
	return out, nil
}

// --- EventRepository implementation ---

// ReplaceEvents swaps the stored event snapshot.
func (s *Storage) ReplaceEvents(ctx context.Context, events []persistence.EventRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := make([]persistence.EventRecord, len(events))
	copy(next, events)
	for i := range next {
		next[i].Position = i
	}
	s.events = next
	return nil
}

// ListEvents returns the stored snapshot in position order.
func (s *Storage) ListEvents(ctx context.Context) ([]persistence.EventRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]persistence.EventRecord, len(s.events))
	copy(out, s.events)
	return out, nil
}

// --- FeedbackRepository implementation ---

// CreateFeedback stores a new feedback message.
func (s *Storage) CreateFeedback(ctx context.Context, feedback persistence.FeedbackRecord) error {
	if feedback.ID == "" {
		return persistence.ErrConstraintViolation
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.feedback[feedback.ID]; ok {
		return fmt.Errorf("memory: feedback %s already exists: %w", feedback.ID, persistence.ErrConstraintViolation)
	}
	s.feedback[feedback.ID] = feedback
	return nil
}

// ListFeedback returns all feedback ordered by CreatedAt ascending.
func (s *Storage) ListFeedback(ctx context.Context) ([]persistence.FeedbackRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]persistence.FeedbackRecord, 0, len(s.feedback))
	for _, feedback := range s.feedback {
		out = append(out, feedback)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// --- NotificationRepository implementation ---

// CreateNotification stores a new role broadcast.
func (s *Storage) CreateNotification(ctx context.Context, notification persistence.NotificationRecord) error {
	if notification.ID == "" {
		return persistence.ErrConstraintViolation
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.notifications[notification.ID]; ok {
		return fmt.Errorf("memory: notification %s already exists: %w", notification.ID, persistence.ErrConstraintViolation)
	}
	s.notifications[notification.ID] = notification
	return nil
}

// ListNotificationsForRole returns the broadcasts sent to role, newest first.
func (s *Storage) ListNotificationsForRole(ctx context.Context, role string) ([]persistence.NotificationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]persistence.NotificationRecord, 0)
	for _, notification := range s.notifications {
		if notification.SentToRole == role {
			out = append(out, notification)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}
