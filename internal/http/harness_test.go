package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/example/campus-portal/internal/application"
	"github.com/example/campus-portal/internal/calendar"
	"github.com/example/campus-portal/internal/chat"
	"github.com/example/campus-portal/internal/directory"
	"github.com/example/campus-portal/internal/persistence/memory"
	"github.com/example/campus-portal/internal/session"
	"github.com/example/campus-portal/internal/testfixtures"
)

var (
	adminFixture = testfixtures.NewAccountFixture(
		testfixtures.WithAccountID("admin"),
		testfixtures.WithAccountEmail("admin@tbsuniversity.edu"),
		testfixtures.WithAccountSecret("admin123"),
		testfixtures.WithAccountRole(directory.RoleAdmin),
		testfixtures.WithAccountVerified(),
	)
	studentFixture = testfixtures.NewAccountFixture(
		testfixtures.WithAccountID("student1"),
		testfixtures.WithAccountDisplayName("Yosser"),
		testfixtures.WithAccountEmail("yosser@tbsuniversity.edu"),
		testfixtures.WithAccountSecret("password123"),
	)
	professorFixture = testfixtures.NewAccountFixture(
		testfixtures.WithAccountID("prof1"),
		testfixtures.WithAccountDisplayName("Elynn Lee"),
		testfixtures.WithAccountEmail("elynn@tbsuniversity.edu"),
		testfixtures.WithAccountSecret("professor123"),
		testfixtures.WithAccountRole(directory.RoleProfessor),
	)
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type completerStub struct {
	mu    sync.Mutex
	reply string
	err   error
}

func (c *completerStub) Complete(ctx context.Context, messages []chat.Message) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reply, c.err
}

func (c *completerStub) Describe(ctx context.Context, message chat.Message) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reply, c.err
}

type requestObserverStub struct {
	mu       sync.Mutex
	observed []string
	statuses []int
}

func (o *requestObserverStub) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.observed = append(o.observed, method+" "+route)
	o.statuses = append(o.statuses, status)
}

// portalHarness wires the real services behind the router.
type portalHarness struct {
	dir      *directory.Directory
	cal      *calendar.Calendar
	auth     *application.AuthService
	observer *requestObserverStub
	handler  http.Handler
}

func newPortalHarness(t *testing.T) *portalHarness {
	t.Helper()

	logger := discardLogger()
	clock := testfixtures.NewClock(time.Time{})

	dir := directory.New()
	for _, fixture := range []testfixtures.AccountFixture{adminFixture, studentFixture, professorFixture} {
		if _, ok := dir.Provision(fixture.Directory()); !ok {
			t.Fatalf("failed to provision %s", fixture.ID)
		}
	}
	cal := calendar.New(
		calendar.WithLocation(time.UTC),
		calendar.WithClock(clock.NowFunc()),
		calendar.WithIDGenerator(testfixtures.NewIDGenerator("event").NextUUID),
	)

	issuer, err := session.NewIssuer([]byte("test-secret"), time.Hour)
	if err != nil {
		t.Fatalf("NewIssuer returned error: %v", err)
	}
	auth := application.NewAuthService(dir, issuer, session.NewMemoryRevocations(0, nil), nil, logger)

	factory := testfixtures.NewServiceFactory(testfixtures.WithClock(clock))
	storage := memory.New()
	events := factory.NewEventService(testfixtures.EventServiceDeps{Events: cal, Logger: logger})
	feedback := factory.NewFeedbackService(testfixtures.FeedbackServiceDeps{Feedback: storage, Logger: logger})
	notifications := factory.NewNotificationService(testfixtures.NotificationServiceDeps{Notifications: storage, Logger: logger})
	chatService := application.NewChatService(&completerStub{reply: "Try the library."}, "", logger)

	observer := &requestObserverStub{}
	handler := NewRouter(RouterConfig{
		Auth:          NewAuthHandler(auth, logger),
		Accounts:      NewAccountHandler(application.NewDirectoryService(dir, nil, logger), logger),
		Events:        NewEventHandler(events, cal, time.UTC, logger),
		Feedback:      NewFeedbackHandler(feedback, logger),
		Notifications: NewNotificationHandler(notifications, logger),
		Chat:          NewChatHandler(chatService, logger),
		Sessions:      auth,
		Metrics:       http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { _, _ = io.WriteString(w, "# metrics\n") }),
		Logger:        logger,
		Middleware:    []func(http.Handler) http.Handler{RequestLogger(logger), Metrics(observer)},
	})

	return &portalHarness{dir: dir, cal: cal, auth: auth, observer: observer, handler: handler}
}

func (h *portalHarness) do(t *testing.T, method, path string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to encode body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	recorder := httptest.NewRecorder()
	h.handler.ServeHTTP(recorder, req)
	return recorder
}

func (h *portalHarness) login(t *testing.T, fixture testfixtures.AccountFixture) string {
	t.Helper()

	rec := h.do(t, http.MethodPost, "/sessions", map[string]string{"identifier": fixture.ID, "secret": fixture.Secret}, "")
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected login to succeed for %s, got %d: %s", fixture.ID, rec.Code, rec.Body.String())
	}
	var resp sessionResponse
	decodeBody(t, rec, &resp)
	return resp.Token
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), target); err != nil {
		t.Fatalf("failed to decode response %q: %v", rec.Body.String(), err)
	}
}
