package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/example/campus-portal/internal/directory"
	"github.com/example/campus-portal/internal/identity"
	"github.com/example/campus-portal/internal/session"
)

// AccountStore is the directory surface used by the application services.
type AccountStore interface {
	Login(identifier, secret string) (directory.Account, bool)
	Register(input directory.RegisterInput) (directory.Account, bool)
	Activate(id string) (directory.Account, bool)
	Provision(account directory.Account) (directory.Account, bool)
	Logout()
	Active() (directory.Account, bool)
	GetByID(id string) (directory.Account, bool)
	GetByRole(role directory.Role) []directory.Account
	Accounts() []directory.Account
	UpdateProfile(id string, patch directory.ProfilePatch) (directory.Account, bool)
}

// TokenIssuer signs and verifies session tokens.
type TokenIssuer interface {
	Issue(subject, role string) (session.Token, error)
	IssueFederated(subject, role, federatedUID string) (session.Token, error)
	Parse(value string) (session.Token, error)
}

// AuthService coordinates sign-in, registration and session validation.
type AuthService struct {
	accounts    AccountStore
	issuer      TokenIssuer
	revocations session.RevocationStore
	provider    identity.Provider
	observer    StoreObserver
	idGenerator func() string
	logger      *slog.Logger
}

// AuthOption customizes an AuthService.
type AuthOption func(*AuthService)

// WithIdentityProvider enables FederatedLogin.
func WithIdentityProvider(provider identity.Provider) AuthOption {
	return func(s *AuthService) {
		s.provider = provider
	}
}

// WithAccountIDGenerator overrides how ids are generated for registrations
// that do not supply one.
func WithAccountIDGenerator(next func() string) AuthOption {
	return func(s *AuthService) {
		if next != nil {
			s.idGenerator = next
		}
	}
}

// NewAuthService constructs an AuthService with the provided dependencies.
func NewAuthService(accounts AccountStore, issuer TokenIssuer, revocations session.RevocationStore, observer StoreObserver, logger *slog.Logger, opts ...AuthOption) *AuthService {
	s := &AuthService{
		accounts:    accounts,
		issuer:      issuer,
		revocations: revocations,
		observer:    defaultObserver(observer),
		idGenerator: uuid.NewString,
		logger:      defaultLogger(logger),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *AuthService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "AuthService", operation, attrs...)
}

func (s *AuthService) ready() error {
	if s == nil {
		return fmt.Errorf("AuthService is nil")
	}
	if s.accounts == nil {
		return fmt.Errorf("account store not configured")
	}
	if s.issuer == nil {
		return fmt.Errorf("token issuer not configured")
	}
	return nil
}

// Login verifies credentials against the directory and issues a session token.
func (s *AuthService) Login(ctx context.Context, params LoginParams) (result AuthResult, err error) {
	if err = s.ready(); err != nil {
		return
	}

	identifier := strings.TrimSpace(params.Identifier)
	logger := s.loggerWith(ctx, "Login", "identifier", identifier)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "login failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With(
			"account_id", result.Account.ID,
			"token_id", result.Token.ID,
		).InfoContext(ctx, "login succeeded")
	}()

	if vErr := validateStruct(loginRequest{Identifier: identifier, Secret: params.Secret}); vErr.HasErrors() {
		err = ErrInvalidCredentials
		return
	}

	account, ok := s.accounts.Login(identifier, params.Secret)
	s.observer.StoreOperation("directory", "login", ok)
	if !ok {
		err = ErrInvalidCredentials
		return
	}

	result, err = s.issue(account, "")
	return
}

// Register creates a STUDENT account, signs it in and issues a session token.
func (s *AuthService) Register(ctx context.Context, params RegisterParams) (result AuthResult, err error) {
	if err = s.ready(); err != nil {
		return
	}

	req := registerRequest{
		ID:          strings.TrimSpace(params.ID),
		DisplayName: strings.TrimSpace(params.DisplayName),
		Email:       strings.TrimSpace(params.Email),
		Secret:      params.Secret,
	}
	logger := s.loggerWith(ctx, "Register", "email", req.Email)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "registration failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("account_id", result.Account.ID).InfoContext(ctx, "account registered")
	}()

	if vErr := validateStruct(req); vErr.HasErrors() {
		err = vErr
		return
	}
	if req.ID == "" {
		req.ID = s.idGenerator()
	}

	account, ok := s.accounts.Register(directory.RegisterInput{
		ID:          req.ID,
		DisplayName: req.DisplayName,
		Email:       req.Email,
		Secret:      req.Secret,
		Role:        directory.RoleStudent,
	})
	s.observer.StoreOperation("directory", "register", ok)
	if !ok {
		err = ErrAlreadyExists
		return
	}

	result, err = s.issue(account, "")
	return
}

// FederatedLogin signs in with an identity provider ID token. Accounts the
// directory does not know yet are provisioned from the provider profile.
func (s *AuthService) FederatedLogin(ctx context.Context, idToken string) (result AuthResult, err error) {
	if err = s.ready(); err != nil {
		return
	}

	logger := s.loggerWith(ctx, "FederatedLogin")
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "federated login failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("account_id", result.Account.ID).InfoContext(ctx, "federated login succeeded")
	}()

	if s.provider == nil {
		err = fmt.Errorf("%w: identity provider not configured", ErrUnavailable)
		return
	}
	idToken = strings.TrimSpace(idToken)
	if idToken == "" {
		err = ErrInvalidCredentials
		return
	}

	var profile identity.Profile
	profile, err = s.provider.SignIn(ctx, idToken)
	if err != nil {
		if errors.Is(err, identity.ErrInvalidToken) {
			err = ErrInvalidCredentials
			return
		}
		err = fmt.Errorf("%w: %v", ErrUnavailable, err)
		return
	}

	account, found := s.findFederated(profile)
	if !found {
		account, err = s.provision(profile)
		if err != nil {
			return
		}
		logger.InfoContext(ctx, "provisioned federated account", "account_id", account.ID, "uid", profile.UID)
	}

	account, ok := s.accounts.Activate(account.ID)
	s.observer.StoreOperation("directory", "activate", ok)
	if !ok {
		err = ErrNotFound
		return
	}

	result, err = s.issue(account, profile.UID)
	return
}

func (s *AuthService) findFederated(profile identity.Profile) (directory.Account, bool) {
	if account, ok := s.accounts.GetByID(profile.AccountID()); ok {
		return account, true
	}
	if profile.Email == "" {
		return directory.Account{}, false
	}
	for _, account := range s.accounts.Accounts() {
		if strings.EqualFold(account.Email, profile.Email) {
			return account, true
		}
	}
	return directory.Account{}, false
}

func (s *AuthService) provision(profile identity.Profile) (directory.Account, error) {
	role := profile.Role
	if !role.IsValid() {
		role = directory.RoleStudent
	}
	// Federated accounts never sign in with a directory secret.
	account, ok := s.accounts.Provision(directory.Account{
		ID:               profile.AccountID(),
		DisplayName:      profile.DisplayName,
		Email:            profile.Email,
		CredentialSecret: uuid.NewString(),
		EmailVerified:    profile.EmailVerified,
		Role:             role,
		Locale:           directory.DefaultLocale,
	})
	s.observer.StoreOperation("directory", "provision", ok)
	if !ok {
		return directory.Account{}, ErrAlreadyExists
	}
	return account, nil
}

func (s *AuthService) issue(account directory.Account, federatedUID string) (AuthResult, error) {
	var (
		token session.Token
		err   error
	)
	if federatedUID != "" {
		token, err = s.issuer.IssueFederated(account.ID, account.Role.String(), federatedUID)
	} else {
		token, err = s.issuer.Issue(account.ID, account.Role.String())
	}
	if err != nil {
		return AuthResult{}, err
	}
	return AuthResult{Account: account, Token: token}, nil
}

// Logout revokes the principal's token and ends the directory session when it
// belongs to the principal.
func (s *AuthService) Logout(ctx context.Context, principal Principal) (err error) {
	if err = s.ready(); err != nil {
		return
	}

	logger := s.loggerWith(ctx, "Logout", "account_id", principal.AccountID, "token_id", principal.TokenID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "logout failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "logged out")
	}()

	if !principal.authenticated() {
		err = ErrUnauthorized
		return
	}

	if s.revocations != nil && principal.TokenID != "" {
		if rErr := s.revocations.Revoke(ctx, principal.TokenID, principal.ExpiresAt); rErr != nil {
			err = fmt.Errorf("%w: %v", ErrUnavailable, rErr)
			return
		}
	}

	if principal.FederatedUID != "" && s.provider != nil {
		if sErr := s.provider.SignOut(ctx, principal.FederatedUID); sErr != nil {
			logger.WarnContext(ctx, "failed to revoke provider tokens", "error", sErr)
		}
	}

	if active, ok := s.accounts.Active(); ok && active.ID == principal.AccountID {
		s.accounts.Logout()
	}
	return
}

// ValidateSession verifies token and returns the principal it identifies.
func (s *AuthService) ValidateSession(ctx context.Context, token string) (principal Principal, err error) {
	if err = s.ready(); err != nil {
		return
	}

	trimmed := strings.TrimSpace(token)
	logger := s.loggerWith(ctx, "ValidateSession", "token_provided", trimmed != "")
	defer func() {
		if err != nil {
			logger.WarnContext(ctx, "session validation failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("principal_id", principal.AccountID).DebugContext(ctx, "session validated")
	}()

	if trimmed == "" {
		err = ErrUnauthorized
		return
	}

	var parsed session.Token
	parsed, err = s.issuer.Parse(trimmed)
	if err != nil {
		err = fmt.Errorf("%w: %v", ErrUnauthorized, err)
		return
	}

	if s.revocations != nil {
		revoked, rErr := s.revocations.IsRevoked(ctx, parsed.ID)
		if rErr != nil {
			err = fmt.Errorf("%w: %v", ErrUnavailable, rErr)
			return
		}
		if revoked {
			err = ErrSessionRevoked
			return
		}
	}

	account, ok := s.accounts.GetByID(parsed.Subject)
	s.observer.StoreOperation("directory", "get", ok)
	if !ok {
		err = ErrUnauthorized
		return
	}

	principal = Principal{
		AccountID:    account.ID,
		Role:         account.Role,
		TokenID:      parsed.ID,
		ExpiresAt:    parsed.ExpiresAt,
		FederatedUID: parsed.FederatedUID,
	}
	return
}
