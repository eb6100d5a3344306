package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/example/campus-portal/internal/application"
	"github.com/example/campus-portal/internal/calendar"
	"github.com/example/campus-portal/internal/chat"
	"github.com/example/campus-portal/internal/config"
	"github.com/example/campus-portal/internal/credential"
	"github.com/example/campus-portal/internal/directory"
	httptransport "github.com/example/campus-portal/internal/http"
	"github.com/example/campus-portal/internal/identity/firebase"
	"github.com/example/campus-portal/internal/logging"
	"github.com/example/campus-portal/internal/metrics"
	"github.com/example/campus-portal/internal/notify"
	"github.com/example/campus-portal/internal/persistence"
	"github.com/example/campus-portal/internal/persistence/memory"
	"github.com/example/campus-portal/internal/persistence/sqlite"
	"github.com/example/campus-portal/internal/portal"
	"github.com/example/campus-portal/internal/session"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stderr, nil)).Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger, err := logging.New(os.Stdout, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stderr, nil)).Error("failed to build logger", "error", err)
		os.Exit(1)
	}

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("portal stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	app, err := newPortalApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := app.Close(); cerr != nil {
			logger.Error("failed to release resources", "error", cerr)
		}
	}()

	// The mirror outlives ctx so writes made by requests draining during
	// Shutdown still reach sqlite. It stops after the server has drained and
	// before the deferred Close releases the pool.
	stopMirror := app.startMirror(ctx, logger)

	// No WriteTimeout: /events/stream holds its response open.
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           app.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	drained := make(chan struct{})
	go func() {
		defer close(drained)
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("failed to shutdown server", "error", err)
		}
	}()

	logger.Info("campus portal listening", "addr", server.Addr, "timezone", cfg.Timezone)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		stopMirror()
		return fmt.Errorf("serve http: %w", err)
	}
	<-drained
	stopMirror()
	return nil
}

// startMirror runs the snapshot mirror on a context detached from ctx's
// cancellation. The returned func stops it and waits for the final flush.
func (a *portalApp) startMirror(ctx context.Context, logger *slog.Logger) func() {
	if a.mirror == nil {
		return func() {}
	}
	mirrorCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := a.mirror.Run(mirrorCtx); err != nil {
			logger.Error("snapshot mirror failed", "error", err)
		}
	}()
	return func() {
		cancel()
		<-done
	}
}

// portalApp is the fully wired process: stores, services and the router.
type portalApp struct {
	handler   http.Handler
	container *portal.Container
	metrics   *metrics.Metrics
	auth      *application.AuthService
	mirror    *application.SnapshotMirror
	closers   []func() error
}

func newPortalApp(ctx context.Context, cfg config.Config, logger *slog.Logger) (app *portalApp, err error) {
	app = &portalApp{}
	defer func() {
		if err != nil {
			if cerr := app.Close(); cerr != nil {
				logger.Error("failed to release resources", "error", cerr)
			}
			app = nil
		}
	}()

	scheme, err := credential.ByName(cfg.SecretScheme)
	if err != nil {
		return app, fmt.Errorf("select credential scheme: %w", err)
	}

	app.metrics = metrics.New()
	app.container = portal.NewContainer(
		portal.WithDirectoryOptions(directory.WithScheme(scheme), directory.WithLogger(logger)),
		portal.WithCalendarOptions(calendar.WithLocation(cfg.Location())),
	)
	dir := app.container.Directory()
	cal := app.container.Calendar()

	var (
		feedbackRepo     persistence.FeedbackRepository
		notificationRepo persistence.NotificationRepository
	)
	if cfg.SQLiteDSN != "" {
		pool, err := openSQLite(ctx, cfg.SQLiteDSN, logger)
		if err != nil {
			return app, err
		}
		app.closers = append(app.closers, pool.Close)

		feedbackRepo = sqlite.NewFeedbackRepository(pool)
		notificationRepo = sqlite.NewNotificationRepository(pool)
		app.mirror = application.NewSnapshotMirror(dir, cal, sqlite.NewAccountRepository(pool), sqlite.NewEventRepository(pool), app.metrics, logger)
		if _, _, err := app.mirror.Hydrate(ctx); err != nil {
			return app, fmt.Errorf("hydrate stores: %w", err)
		}
	} else {
		logger.Warn("no sqlite dsn configured, feedback and notifications are kept in memory")
		storage := memory.New()
		feedbackRepo = storage
		notificationRepo = storage
	}

	if cfg.SeedDemoData {
		portal.Seed(dir, cal, time.Now(), logger)
	}

	revocations, err := newRevocationStore(ctx, cfg, logger)
	if err != nil {
		return app, err
	}
	if closer, ok := revocations.(interface{ Close() error }); ok {
		app.closers = append(app.closers, closer.Close)
	}

	issuer, err := session.NewIssuer([]byte(cfg.SessionSecret), cfg.SessionTTL)
	if err != nil {
		return app, fmt.Errorf("build session issuer: %w", err)
	}

	var (
		authOpts    []application.AuthOption
		broadcaster notify.Broadcaster = notify.NoopBroadcaster{}
	)
	if cfg.FirebaseProjectID != "" {
		provider, err := firebase.New(ctx, firebase.Config{
			ProjectID:       cfg.FirebaseProjectID,
			CredentialsFile: cfg.FirebaseCredentialsFile,
			AdminEmail:      cfg.AdminEmail,
		}, logger)
		if err != nil {
			return app, fmt.Errorf("initialize firebase: %w", err)
		}
		app.closers = append(app.closers, provider.Close)
		authOpts = append(authOpts, application.WithIdentityProvider(provider))

		fcm, err := notify.NewFCMBroadcaster(ctx, provider.App(), logger)
		if err != nil {
			return app, fmt.Errorf("initialize push broadcasts: %w", err)
		}
		broadcaster = fcm
	}

	publisher, err := notify.NewPublisher(ctx, notify.FeedConfig{
		Provider:        cfg.NotifyProvider,
		PubSubProjectID: cfg.PubSubProjectID,
		PubSubTopic:     cfg.PubSubTopic,
		AMQPURL:         cfg.AMQPURL,
		AMQPExchange:    cfg.AMQPExchange,
	}, logger)
	if err != nil {
		return app, fmt.Errorf("initialize change feed: %w", err)
	}
	app.closers = append(app.closers, publisher.Close)

	var completer application.ChatCompleter
	if cfg.ChatAPIKey != "" {
		completer = chat.NewClient(chat.Config{
			APIKey:   cfg.ChatAPIKey,
			Endpoint: cfg.ChatEndpoint,
			Model:    cfg.ChatModel,
		}, logger)
	} else {
		logger.Warn("no chat api key configured, the assistant is disabled")
	}

	app.auth = application.NewAuthService(dir, issuer, revocations, app.metrics, logger, authOpts...)
	events := application.NewEventService(cal, publisher, app.metrics, uuid.NewString, time.Now, logger)
	feedback := application.NewFeedbackService(feedbackRepo, app.metrics, uuid.NewString, time.Now, logger)
	notifications := application.NewNotificationService(notificationRepo, broadcaster, app.metrics, uuid.NewString, time.Now, logger)

	app.handler = httptransport.NewRouter(httptransport.RouterConfig{
		Auth:          httptransport.NewAuthHandler(app.auth, logger),
		Accounts:      httptransport.NewAccountHandler(application.NewDirectoryService(dir, app.metrics, logger), logger),
		Events:        httptransport.NewEventHandler(events, cal, cal.Location(), logger),
		Feedback:      httptransport.NewFeedbackHandler(feedback, logger),
		Notifications: httptransport.NewNotificationHandler(notifications, logger),
		Chat:          httptransport.NewChatHandler(application.NewChatService(completer, "", logger), logger),
		Sessions:      app.auth,
		Metrics:       app.metrics.Handler(),
		Logger:        logger,
		Middleware: []func(http.Handler) http.Handler{
			httptransport.RequestLogger(logger),
			httptransport.Metrics(app.metrics),
		},
	})
	return app, nil
}

// Close releases resources in reverse acquisition order.
func (a *portalApp) Close() error {
	if a == nil {
		return nil
	}
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func openSQLite(ctx context.Context, dsn string, logger *slog.Logger) (*sqlite.ConnectionPool, error) {
	cfg := sqlite.DefaultConfig(dsn)
	if dsn == ":memory:" {
		cfg = sqlite.InMemoryConfig()
	}
	pool, err := sqlite.Open(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	if err := sqlite.NewMigrator(pool.DB(), logger).Migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("apply migrations: %w", err)
	}
	return pool, nil
}

type redisRevocations struct {
	*session.RedisRevocations
	client *redis.Client
}

func (r redisRevocations) Close() error {
	return r.client.Close()
}

func newRevocationStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (session.RevocationStore, error) {
	if cfg.RedisAddr == "" {
		if cfg.RevocationFile != "" {
			store, err := session.OpenFileRevocations(cfg.RevocationFile, nil)
			if err != nil {
				return nil, err
			}
			logger.Info("using file revocation store", "path", cfg.RevocationFile)
			return store, nil
		}
		return session.NewMemoryRevocations(0, nil), nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Warn("redis is not reachable yet, revocation checks will fail closed", "addr", cfg.RedisAddr, "error", err)
	} else {
		logger.Info("using redis revocation store", "addr", cfg.RedisAddr)
	}
	return redisRevocations{RedisRevocations: session.NewRedisRevocations(client, logger), client: client}, nil
}
