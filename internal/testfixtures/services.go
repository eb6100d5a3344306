package testfixtures

import (
	"log/slog"
	"time"

	"github.com/example/campus-portal/internal/application"
	"github.com/example/campus-portal/internal/notify"
	"github.com/example/campus-portal/internal/persistence"
)

// ServiceFactory assists tests with constructing application services using
// deterministic identifiers and clocks.
type ServiceFactory struct {
	Clock       *Clock
	IDGenerator *IDGenerator
}

// ServiceFactoryOption configures a ServiceFactory instance.
type ServiceFactoryOption func(*ServiceFactory)

// NewServiceFactory constructs a ServiceFactory with defaults.
func NewServiceFactory(opts ...ServiceFactoryOption) *ServiceFactory {
	factory := &ServiceFactory{
		Clock:       NewClock(time.Time{}),
		IDGenerator: NewIDGenerator("id"),
	}
	for _, opt := range opts {
		opt(factory)
	}
	if factory.Clock == nil {
		factory.Clock = NewClock(time.Time{})
	}
	if factory.IDGenerator == nil {
		factory.IDGenerator = NewIDGenerator("id")
	}
	return factory
}

// WithClock overrides the clock used by the factory.
func WithClock(clock *Clock) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.Clock = clock
	}
}

// WithIDGenerator overrides the identifier generator used by the factory.
func WithIDGenerator(generator *IDGenerator) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.IDGenerator = generator
	}
}

// EventServiceDeps captures dependencies for constructing an event service.
type EventServiceDeps struct {
	Events    application.EventStore
	Publisher notify.Publisher
	Observer  application.StoreObserver
	Logger    *slog.Logger
}

// NewEventService builds an event service using the supplied dependencies.
func (f *ServiceFactory) NewEventService(deps EventServiceDeps) *application.EventService {
	return application.NewEventService(
		deps.Events,
		deps.Publisher,
		deps.Observer,
		f.IDGenerator.NextFunc(),
		f.Clock.NowFunc(),
		deps.Logger,
	)
}

// FeedbackServiceDeps captures dependencies for constructing a feedback service.
type FeedbackServiceDeps struct {
	Feedback persistence.FeedbackRepository
	Observer application.StoreObserver
	Logger   *slog.Logger
}

// NewFeedbackService builds a feedback service using the supplied dependencies.
func (f *ServiceFactory) NewFeedbackService(deps FeedbackServiceDeps) *application.FeedbackService {
	return application.NewFeedbackService(
		deps.Feedback,
		deps.Observer,
		f.IDGenerator.NextFunc(),
		f.Clock.NowFunc(),
		deps.Logger,
	)
}

// NotificationServiceDeps captures dependencies for constructing a
// notification service.
type NotificationServiceDeps struct {
	Notifications persistence.NotificationRepository
	Broadcaster   notify.Broadcaster
	Observer      application.StoreObserver
	Logger        *slog.Logger
}

// NewNotificationService builds a notification service using the supplied
// dependencies.
func (f *ServiceFactory) NewNotificationService(deps NotificationServiceDeps) *application.NotificationService {
	return application.NewNotificationService(
		deps.Notifications,
		deps.Broadcaster,
		deps.Observer,
		f.IDGenerator.NextFunc(),
		f.Clock.NowFunc(),
		deps.Logger,
	)
}
