package application_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/example/campus-portal/internal/application"
	"github.com/example/campus-portal/internal/directory"
	"github.com/example/campus-portal/internal/identity"
	"github.com/example/campus-portal/internal/session"
	"github.com/example/campus-portal/internal/testfixtures"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type authHarness struct {
	clock       *testfixtures.Clock
	dir         *directory.Directory
	issuer      *session.Issuer
	revocations *session.MemoryRevocations
	provider    *providerStub
	svc         *application.AuthService
}

func newAuthHarness(t *testing.T, accounts ...testfixtures.AccountFixture) *authHarness {
	t.Helper()

	clock := testfixtures.NewClock(time.Time{})
	dir := directory.New()
	for _, fixture := range accounts {
		if _, ok := dir.Provision(fixture.Directory()); !ok {
			t.Fatalf("failed to provision %s", fixture.ID)
		}
	}
	issuer, err := session.NewIssuer([]byte("test-secret"), time.Hour,
		session.WithClock(clock.NowFunc()),
		session.WithIDGenerator(testfixtures.NewIDGenerator("jti").NextFunc()),
	)
	if err != nil {
		t.Fatalf("NewIssuer returned error: %v", err)
	}
	revocations := session.NewMemoryRevocations(0, clock.NowFunc())
	provider := &providerStub{}

	svc := application.NewAuthService(dir, issuer, revocations, nil, discardLogger(),
		application.WithIdentityProvider(provider),
		application.WithAccountIDGenerator(testfixtures.NewIDGenerator("acct").NextFunc()),
	)
	return &authHarness{clock: clock, dir: dir, issuer: issuer, revocations: revocations, provider: provider, svc: svc}
}

type providerStub struct {
	mu         sync.Mutex
	profile    identity.Profile
	signInErr  error
	signedOut  []string
	signOutErr error
}

func (p *providerStub) SignIn(ctx context.Context, idToken string) (identity.Profile, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.signInErr != nil {
		return identity.Profile{}, p.signInErr
	}
	return p.profile, nil
}

func (p *providerStub) SignUp(ctx context.Context, email, secret, displayName string) (identity.Profile, error) {
	return identity.Profile{}, errors.New("not implemented")
}

func (p *providerStub) SignOut(ctx context.Context, uid string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.signedOut = append(p.signedOut, uid)
	return p.signOutErr
}

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

func TestAuthService_Login(t *testing.T) {
	t.Parallel()

	t.Run("issues a token for matching credentials", func(t *testing.T) {
		t.Parallel()

		h := newAuthHarness(t, adminFixture, studentFixture)
		result, err := h.svc.Login(context.Background(), application.LoginParams{Identifier: "yosser@tbsuniversity.edu", Secret: "password123"})
		if err != nil {
			t.Fatalf("Login returned error: %v", err)
		}
		if result.Account.ID != "student1" {
			t.Fatalf("expected student1, got %q", result.Account.ID)
		}
		if result.Token.Subject != "student1" || result.Token.Role != "STUDENT" {
			t.Fatalf("unexpected token claims: %+v", result.Token)
		}
		if !result.Token.ExpiresAt.Equal(h.clock.Now().Add(time.Hour)) {
			t.Fatalf("expected expiry one hour out, got %v", result.Token.ExpiresAt)
		}
		if active, ok := h.dir.Active(); !ok || active.ID != "student1" {
			t.Fatalf("expected directory session to point at student1, got %+v", active)
		}
	})

	t.Run("rejects a wrong secret without touching the session", func(t *testing.T) {
		t.Parallel()

		h := newAuthHarness(t, adminFixture)
		_, err := h.svc.Login(context.Background(), application.LoginParams{Identifier: "admin", Secret: "wrong"})
		if !errors.Is(err, application.ErrInvalidCredentials) {
			t.Fatalf("expected ErrInvalidCredentials, got %v", err)
		}
		if _, ok := h.dir.Active(); ok {
			t.Fatalf("expected no active session after a failed login")
		}
	})

	t.Run("rejects blank input", func(t *testing.T) {
		t.Parallel()

		h := newAuthHarness(t, adminFixture)
		_, err := h.svc.Login(context.Background(), application.LoginParams{Identifier: "  ", Secret: ""})
		if !errors.Is(err, application.ErrInvalidCredentials) {
			t.Fatalf("expected ErrInvalidCredentials, got %v", err)
		}
	})
}

func TestAuthService_Register(t *testing.T) {
	t.Parallel()

	t.Run("creates a student account with a generated id", func(t *testing.T) {
		t.Parallel()

		h := newAuthHarness(t, adminFixture)
		result, err := h.svc.Register(context.Background(), application.RegisterParams{
			DisplayName: "Nour",
			Email:       "nour@tbsuniversity.edu",
			Secret:      "Str0ng!Pass",
		})
		if err != nil {
			t.Fatalf("Register returned error: %v", err)
		}
		if result.Account.ID != "acct-1" {
			t.Fatalf("expected generated id acct-1, got %q", result.Account.ID)
		}
		if result.Account.Role != directory.RoleStudent || result.Account.EmailVerified {
			t.Fatalf("unexpected account: %+v", result.Account)
		}
		if result.Account.Locale != directory.DefaultLocale {
			t.Fatalf("expected default locale, got %q", result.Account.Locale)
		}
	})

	t.Run("reports field errors", func(t *testing.T) {
		t.Parallel()

		h := newAuthHarness(t)
		_, err := h.svc.Register(context.Background(), application.RegisterParams{
			ID:          "not a username",
			DisplayName: " ",
			Email:       "not-an-email",
			Secret:      "weakpass",
		})
		var vErr *application.ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("expected ValidationError, got %v", err)
		}
		for _, field := range []string{"id", "display_name", "email", "secret"} {
			if _, ok := vErr.FieldErrors[field]; !ok {
				t.Fatalf("expected %s field error, got %+v", field, vErr.FieldErrors)
			}
		}
	})

	t.Run("rejects a taken email", func(t *testing.T) {
		t.Parallel()

		h := newAuthHarness(t, studentFixture)
		_, err := h.svc.Register(context.Background(), application.RegisterParams{
			ID:          "10000001",
			DisplayName: "Someone",
			Email:       studentFixture.Email,
			Secret:      "Str0ng!Pass",
		})
		if !errors.Is(err, application.ErrAlreadyExists) {
			t.Fatalf("expected ErrAlreadyExists, got %v", err)
		}
	})
}

func TestAuthService_LogoutAndValidate(t *testing.T) {
	t.Parallel()

	t.Run("revoked tokens no longer validate", func(t *testing.T) {
		t.Parallel()

		ctx := context.Background()
		h := newAuthHarness(t, adminFixture)
		result, err := h.svc.Login(ctx, application.LoginParams{Identifier: "admin", Secret: "admin123"})
		if err != nil {
			t.Fatalf("Login returned error: %v", err)
		}

		principal, err := h.svc.ValidateSession(ctx, result.Token.Value)
		if err != nil {
			t.Fatalf("ValidateSession returned error: %v", err)
		}
		if !principal.IsAdmin() || principal.TokenID != result.Token.ID {
			t.Fatalf("unexpected principal: %+v", principal)
		}

		if err := h.svc.Logout(ctx, principal); err != nil {
			t.Fatalf("Logout returned error: %v", err)
		}
		if _, ok := h.dir.Active(); ok {
			t.Fatalf("expected directory session to be cleared")
		}
		if _, err := h.svc.ValidateSession(ctx, result.Token.Value); !errors.Is(err, application.ErrSessionRevoked) {
			t.Fatalf("expected ErrSessionRevoked, got %v", err)
		}
	})

	t.Run("logout keeps another account's directory session", func(t *testing.T) {
		t.Parallel()

		ctx := context.Background()
		h := newAuthHarness(t, adminFixture, studentFixture)
		first, _ := h.svc.Login(ctx, application.LoginParams{Identifier: "admin", Secret: "admin123"})
		principal, _ := h.svc.ValidateSession(ctx, first.Token.Value)
		if _, err := h.svc.Login(ctx, application.LoginParams{Identifier: "student1", Secret: "password123"}); err != nil {
			t.Fatalf("Login returned error: %v", err)
		}

		if err := h.svc.Logout(ctx, principal); err != nil {
			t.Fatalf("Logout returned error: %v", err)
		}
		if active, ok := h.dir.Active(); !ok || active.ID != "student1" {
			t.Fatalf("expected student1 to stay active, got %+v", active)
		}
	})

	t.Run("rejects malformed and expired tokens", func(t *testing.T) {
		t.Parallel()

		ctx := context.Background()
		h := newAuthHarness(t, adminFixture)
		if _, err := h.svc.ValidateSession(ctx, "garbage"); !errors.Is(err, application.ErrUnauthorized) {
			t.Fatalf("expected ErrUnauthorized, got %v", err)
		}

		result, _ := h.svc.Login(ctx, application.LoginParams{Identifier: "admin", Secret: "admin123"})
		h.clock.Advance(2 * time.Hour)
		if _, err := h.svc.ValidateSession(ctx, result.Token.Value); !errors.Is(err, application.ErrUnauthorized) {
			t.Fatalf("expected ErrUnauthorized for expired token, got %v", err)
		}
	})

	t.Run("reports an unreachable revocation store", func(t *testing.T) {
		t.Parallel()

		ctx := context.Background()
		dir := directory.New()
		dir.Provision(adminFixture.Directory())
		issuer, _ := session.NewIssuer([]byte("secret"), time.Hour)
		svc := application.NewAuthService(dir, issuer, failingRevocations{}, nil, discardLogger())

		result, err := svc.Login(ctx, application.LoginParams{Identifier: "admin", Secret: "admin123"})
		if err != nil {
			t.Fatalf("Login returned error: %v", err)
		}
		if _, err := svc.ValidateSession(ctx, result.Token.Value); !errors.Is(err, application.ErrUnavailable) {
			t.Fatalf("expected ErrUnavailable, got %v", err)
		}
	})
}

type failingRevocations struct{}

func (failingRevocations) Revoke(context.Context, string, time.Time) error {
	return session.ErrUnavailable
}

func (failingRevocations) IsRevoked(context.Context, string) (bool, error) {
	return false, session.ErrUnavailable
}

func TestAuthService_FederatedLogin(t *testing.T) {
	t.Parallel()

	t.Run("provisions unknown accounts once", func(t *testing.T) {
		t.Parallel()

		ctx := context.Background()
		h := newAuthHarness(t, adminFixture)
		h.provider.profile = identity.Profile{
			UID:           "uid-1",
			Email:         "amira@tbsuniversity.edu",
			DisplayName:   "Amira",
			EmailVerified: true,
			Role:          directory.RoleStudent,
			StudentID:     "12345678",
		}

		result, err := h.svc.FederatedLogin(ctx, "id-token")
		if err != nil {
			t.Fatalf("FederatedLogin returned error: %v", err)
		}
		if result.Account.ID != "12345678" || !result.Account.EmailVerified {
			t.Fatalf("unexpected account: %+v", result.Account)
		}
		if result.Token.FederatedUID != "uid-1" {
			t.Fatalf("expected federated uid on token, got %q", result.Token.FederatedUID)
		}

		if _, err := h.svc.FederatedLogin(ctx, "id-token"); err != nil {
			t.Fatalf("second FederatedLogin returned error: %v", err)
		}
		if got := len(h.dir.Accounts()); got != 2 {
			t.Fatalf("expected one provisioned account, got %d accounts", got)
		}

		principal, err := h.svc.ValidateSession(ctx, result.Token.Value)
		if err != nil {
			t.Fatalf("ValidateSession returned error: %v", err)
		}
		if err := h.svc.Logout(ctx, principal); err != nil {
			t.Fatalf("Logout returned error: %v", err)
		}
		if len(h.provider.signedOut) != 1 || h.provider.signedOut[0] != "uid-1" {
			t.Fatalf("expected provider sign-out for uid-1, got %v", h.provider.signedOut)
		}
	})

	t.Run("matches existing accounts by email", func(t *testing.T) {
		t.Parallel()

		h := newAuthHarness(t, adminFixture)
		h.provider.profile = identity.Profile{UID: "uid-admin", Email: "admin@tbsuniversity.edu", Role: directory.RoleAdmin}

		result, err := h.svc.FederatedLogin(context.Background(), "id-token")
		if err != nil {
			t.Fatalf("FederatedLogin returned error: %v", err)
		}
		if result.Account.ID != "admin" {
			t.Fatalf("expected existing admin account, got %q", result.Account.ID)
		}
	})

	t.Run("maps provider failures", func(t *testing.T) {
		t.Parallel()

		h := newAuthHarness(t)
		h.provider.signInErr = identity.ErrInvalidToken
		if _, err := h.svc.FederatedLogin(context.Background(), "bad"); !errors.Is(err, application.ErrInvalidCredentials) {
			t.Fatalf("expected ErrInvalidCredentials, got %v", err)
		}

		h.provider.signInErr = errors.New("connection reset")
		if _, err := h.svc.FederatedLogin(context.Background(), "token"); !errors.Is(err, application.ErrUnavailable) {
			t.Fatalf("expected ErrUnavailable, got %v", err)
		}
	})

	t.Run("requires a provider", func(t *testing.T) {
		t.Parallel()

		issuer, _ := session.NewIssuer([]byte("secret"), time.Hour)
		svc := application.NewAuthService(directory.New(), issuer, nil, nil, discardLogger())
		if _, err := svc.FederatedLogin(context.Background(), "token"); !errors.Is(err, application.ErrUnavailable) {
			t.Fatalf("expected ErrUnavailable, got %v", err)
		}
	})
}
