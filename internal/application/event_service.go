package application

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/example/campus-portal/internal/calendar"
	"github.com/example/campus-portal/internal/notify"
)

// EventStore is the calendar surface used by EventService.
type EventStore interface {
	AddEvent(input calendar.EventInput) calendar.Event
	UpdateEventChecked(id string, patch calendar.EventPatch, check func(next calendar.Event) error) (calendar.Event, bool, error)
	DeleteEvent(id string) bool
	GetByID(id string) (calendar.Event, bool)
	EventsForDate(date time.Time) []calendar.Event
	UpcomingEvents(limit int) []calendar.Event
	MonthView(year int, month time.Month) calendar.MonthView
}

// EventService applies authorization and validation to calendar operations
// and announces every change on the change feed.
type EventService struct {
	events      EventStore
	publisher   notify.Publisher
	observer    StoreObserver
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewEventService wires dependencies for calendar operations. A nil publisher
// disables the change feed.
func NewEventService(events EventStore, publisher notify.Publisher, observer StoreObserver, idGenerator func() string, now func() time.Time, logger *slog.Logger) *EventService {
	if idGenerator == nil {
		idGenerator = uuid.NewString
	}
	if now == nil {
		now = time.Now
	}
	if publisher == nil {
		publisher = notify.NewNoopPublisher(logger)
	}
	return &EventService{
		events:      events,
		publisher:   publisher,
		observer:    defaultObserver(observer),
		idGenerator: idGenerator,
		now:         now,
		logger:      defaultLogger(logger),
	}
}

func (s *EventService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "EventService", operation, attrs...)
}

func (s *EventService) ready() error {
	if s == nil {
		return fmt.Errorf("EventService is nil")
	}
	if s.events == nil {
		return fmt.Errorf("event store not configured")
	}
	return nil
}

// Create adds an event. Only admins and professors may create events.
func (s *EventService) Create(ctx context.Context, params CreateEventParams) (event calendar.Event, err error) {
	if err = s.ready(); err != nil {
		return
	}

	logger := s.loggerWith(ctx, "Create", "principal_id", params.Principal.AccountID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "event creation failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("event_id", event.ID).InfoContext(ctx, "event created")
	}()

	if !params.Principal.canManageEvents() {
		err = ErrUnauthorized
		return
	}

	title := strings.TrimSpace(params.Title)
	vErr := validateStruct(eventRequest{Title: title})
	validateEventWindow(params.Start, params.End, vErr)
	if vErr.HasErrors() {
		err = vErr
		return
	}

	event = s.events.AddEvent(calendar.EventInput{
		Title:       title,
		Description: params.Description,
		Start:       params.Start,
		End:         params.End,
		Location:    strings.TrimSpace(params.Location),
		Organizer:   strings.TrimSpace(params.Organizer),
	})
	s.observer.StoreOperation("calendar", "add", true)
	s.publish(ctx, logger, notify.EventCreated, event, params.Principal)
	return
}

// Update patches an event. Only admins and professors may edit events.
func (s *EventService) Update(ctx context.Context, params UpdateEventParams) (event calendar.Event, err error) {
	if err = s.ready(); err != nil {
		return
	}

	logger := s.loggerWith(ctx, "Update",
		"principal_id", params.Principal.AccountID,
		"event_id", params.EventID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "event update failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "event updated")
	}()

	if !params.Principal.canManageEvents() {
		err = ErrUnauthorized
		return
	}

	if params.Title != nil {
		params.Title = trimmed(params.Title)
	}
	vErr := &ValidationError{}
	if params.Title != nil {
		vErr.merge(validateStruct(eventRequest{Title: *params.Title}))
	}


	// The window is checked against the stored event inside the write so a
	// concurrent update cannot slip in between.
	var ok bool
	event, ok, err = s.events.UpdateEventChecked(params.EventID, params.patch(), func(next calendar.Event) error {
		checked := &ValidationError{}
		checked.merge(vErr)
		validateEventWindow(next.Start, next.End, checked)
		return checked.errOrNil()
	})
	if err != nil {
		return
	}
	s.observer.StoreOperation("calendar", "update", ok)
	if !ok {
		err = ErrNotFound
		return
	}
	s.publish(ctx, logger, notify.EventUpdated, event, params.Principal)
	return
}

// Delete removes an event. Only admins and professors may delete events.
func (s *EventService) Delete(ctx context.Context, principal Principal, eventID string) (err error) {
	if err = s.ready(); err != nil {
		return
	}

	logger := s.loggerWith(ctx, "Delete",
		"principal_id", principal.AccountID,
		"event_id", eventID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "event deletion failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "event deleted")
	}()

	if !principal.canManageEvents() {
		err = ErrUnauthorized
		return
	}

	ok := s.events.DeleteEvent(eventID)
	s.observer.StoreOperation("calendar", "delete", ok)
	if !ok {
		err = ErrNotFound
		return
	}
	s.publish(ctx, logger, notify.EventDeleted, calendar.Event{ID: eventID}, principal)
	return
}

// Get returns a single event.
func (s *EventService) Get(ctx context.Context, principal Principal, eventID string) (calendar.Event, error) {
	if err := s.ready(); err != nil {
		return calendar.Event{}, err
	}
	if !principal.authenticated() {
		return calendar.Event{}, ErrUnauthorized
	}
	event, ok := s.events.GetByID(eventID)
	s.observer.StoreOperation("calendar", "get", ok)
	if !ok {
		return calendar.Event{}, ErrNotFound
	}
	return event, nil
}

// ForDate returns the events starting on the calendar day containing date.
func (s *EventService) ForDate(ctx context.Context, principal Principal, date time.Time) ([]calendar.Event, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if !principal.authenticated() {
		return nil, ErrUnauthorized
	}
	events := s.events.EventsForDate(date)
	s.observer.StoreOperation("calendar", "for_date", true)
	return events, nil
}

// Upcoming returns at most limit future events. A non-positive limit uses the
// calendar default.
func (s *EventService) Upcoming(ctx context.Context, principal Principal, limit int) ([]calendar.Event, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if !principal.authenticated() {
		return nil, ErrUnauthorized
	}
	events := s.events.UpcomingEvents(limit)
	s.observer.StoreOperation("calendar", "upcoming", true)
	return events, nil
}

// Month returns the month grid with per-day event markers.
func (s *EventService) Month(ctx context.Context, principal Principal, year int, month time.Month) (calendar.MonthView, error) {
	if err := s.ready(); err != nil {
		return calendar.MonthView{}, err
	}
	if !principal.authenticated() {
		return calendar.MonthView{}, ErrUnauthorized
	}
	if month < time.January || month > time.December {
		vErr := &ValidationError{}
		vErr.add("month", "must be between 1 and 12")
		return calendar.MonthView{}, vErr
	}
	view := s.events.MonthView(year, month)
	s.observer.StoreOperation("calendar", "month", true)
	return view, nil
}

func (s *EventService) publish(ctx context.Context, logger *slog.Logger, kind notify.ChangeKind, event calendar.Event, actor Principal) {
	change := notify.Change{
		ID:         s.idGenerator(),
		Kind:       kind,
		EventID:    event.ID,
		Title:      event.Title,
		Start:      event.Start,
		End:        event.End,
		Location:   event.Location,
		Actor:      actor.AccountID,
		OccurredAt: s.now(),
	}
	if err := s.publisher.Publish(ctx, change); err != nil {
		logger.WarnContext(ctx, "failed to publish calendar change", "change_id", change.ID, "kind", string(kind), "error", err)
	}
}

func validateEventWindow(start, end time.Time, vErr *ValidationError) {
	if start.IsZero() {
		vErr.add("start", "is required")
	}
	if end.IsZero() {
		vErr.add("end", "is required")
	}
	if !start.IsZero() && !end.IsZero() && end.Before(start) {
		vErr.add("end", "must not be before start")
	}
}
