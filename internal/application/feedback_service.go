package application

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/example/campus-portal/internal/persistence"
)

// FeedbackService records anonymous feedback.
type FeedbackService struct {
	feedback    persistence.FeedbackRepository
	observer    StoreObserver
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewFeedbackService wires dependencies for feedback operations.
func NewFeedbackService(feedback persistence.FeedbackRepository, observer StoreObserver, idGenerator func() string, now func() time.Time, logger *slog.Logger) *FeedbackService {
	if idGenerator == nil {
		idGenerator = uuid.NewString
	}
	if now == nil {
		now = time.Now
	}
	return &FeedbackService{
		feedback:    feedback,
		observer:    defaultObserver(observer),
		idGenerator: idGenerator,
		now:         now,
		logger:      defaultLogger(logger),
	}
}

func (s *FeedbackService) ready() error {
	if s == nil {
		return fmt.Errorf("FeedbackService is nil")
	}
	if s.feedback == nil {
		return fmt.Errorf("feedback repository not configured")
	}
	return nil
}

// Submit stores message as anonymous feedback. The message must not be blank
// and may hold at most MaxFeedbackLength characters.
func (s *FeedbackService) Submit(ctx context.Context, message string) (feedback Feedback, err error) {
	if err = s.ready(); err != nil {
		return
	}

	logger := serviceLogger(ctx, s.logger, "FeedbackService", "Submit")
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "feedback submission failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("feedback_id", feedback.ID).InfoContext(ctx, "feedback submitted")
	}()

	message = strings.TrimSpace(message)
	if vErr := validateStruct(feedbackRequest{Message: message}); vErr.HasErrors() {
		err = vErr
		return
	}

	record := persistence.FeedbackRecord{
		ID:        s.idGenerator(),
		UserID:    AnonymousUser,
		Message:   message,
		CreatedAt: s.now().UTC().Truncate(time.Millisecond),
	}
	if err = s.feedback.CreateFeedback(ctx, record); err != nil {
		s.observer.StoreOperation("feedback", "create", false)
		return
	}
	s.observer.StoreOperation("feedback", "create", true)

	feedback = Feedback(record)
	return
}

// List returns every feedback message, oldest first. Only admins may read
// feedback.
func (s *FeedbackService) List(ctx context.Context, principal Principal) ([]Feedback, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if !principal.IsAdmin() {
		return nil, ErrUnauthorized
	}

	records, err := s.feedback.ListFeedback(ctx)
	s.observer.StoreOperation("feedback", "list", err == nil)
	if err != nil {
		return nil, err
	}
	out := make([]Feedback, 0, len(records))
	for _, record := range records {
		out = append(out, Feedback(record))
	}
	return out, nil
}
