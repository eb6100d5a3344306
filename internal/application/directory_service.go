package application

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/example/campus-portal/internal/directory"
)

// DirectoryService exposes account lookups and profile edits with
// authorization applied.
type DirectoryService struct {
	accounts AccountStore
	observer StoreObserver
	logger   *slog.Logger
}

// NewDirectoryService wires dependencies for account operations.
func NewDirectoryService(accounts AccountStore, observer StoreObserver, logger *slog.Logger) *DirectoryService {
	return &DirectoryService{
		accounts: accounts,
		observer: defaultObserver(observer),
		logger:   defaultLogger(logger),
	}
}

func (s *DirectoryService) ready() error {
	if s == nil {
		return fmt.Errorf("DirectoryService is nil")
	}
	if s.accounts == nil {
		return fmt.Errorf("account store not configured")
	}
	return nil
}

// Me returns the principal's own account.
func (s *DirectoryService) Me(ctx context.Context, principal Principal) (directory.Account, error) {
	return s.Get(ctx, principal, principal.AccountID)
}

// Get returns an account. Principals may read their own account; admins may
// read any.
func (s *DirectoryService) Get(ctx context.Context, principal Principal, accountID string) (directory.Account, error) {
	if err := s.ready(); err != nil {
		return directory.Account{}, err
	}
	if !principal.authenticated() || !principal.canAccess(accountID) {
		return directory.Account{}, ErrUnauthorized
	}

	account, ok := s.accounts.GetByID(accountID)
	s.observer.StoreOperation("directory", "get", ok)
	if !ok {
		return directory.Account{}, ErrNotFound
	}
	return account, nil
}

// ListByRole returns accounts holding role in registration order. Only admins
// and professors may list accounts.
func (s *DirectoryService) ListByRole(ctx context.Context, principal Principal, role string) ([]directory.Account, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if !principal.canManageEvents() {
		return nil, ErrUnauthorized
	}

	parsed, ok := directory.ParseRole(role)
	if !ok {
		vErr := &ValidationError{}
		vErr.add("role", "is not a recognised value")
		return nil, vErr
	}

	accounts := s.accounts.GetByRole(parsed)
	s.observer.StoreOperation("directory", "list_by_role", true)
	return accounts, nil
}

// UpdateProfile applies a partial profile update. Principals may edit their
// own profile; admins may edit any.
func (s *DirectoryService) UpdateProfile(ctx context.Context, params UpdateProfileParams) (account directory.Account, err error) {
	if err = s.ready(); err != nil {
		return
	}

	logger := serviceLogger(ctx, s.logger, "DirectoryService", "UpdateProfile",
		"principal_id", params.Principal.AccountID,
		"account_id", params.AccountID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "profile update failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "profile updated")
	}()

	if !params.Principal.authenticated() || !params.Principal.canAccess(params.AccountID) {
		err = ErrUnauthorized
		return
	}

	req := profileRequest{
		DisplayName: trimmed(params.DisplayName),
		Email:       trimmed(params.Email),
		Secret:      params.Secret,
		Locale:      trimmed(params.Locale),
	}
	if vErr := validateStruct(req); vErr.HasErrors() {
		err = vErr
		return
	}
	if req.Locale != nil {
		canonical, _ := NormalizeLocale(*req.Locale)
		req.Locale = &canonical
	}

	existing, ok := s.accounts.GetByID(params.AccountID)
	if !ok {
		s.observer.StoreOperation("directory", "update_profile", false)
		err = ErrNotFound
		return
	}
	if req.Email != nil && *req.Email != existing.Email && s.emailTaken(existing.ID, *req.Email) {
		err = ErrAlreadyExists
		return
	}

	account, ok = s.accounts.UpdateProfile(params.AccountID, directory.ProfilePatch{
		DisplayName: req.DisplayName,
		Email:       req.Email,
		Secret:      req.Secret,
		Locale:      req.Locale,
	})
	s.observer.StoreOperation("directory", "update_profile", ok)
	if !ok {
		err = ErrNotFound
	}
	return
}

func (s *DirectoryService) emailTaken(ownerID, email string) bool {
	for _, account := range s.accounts.Accounts() {
		if account.ID != ownerID && account.Email == email {
			return true
		}
	}
	return false
}

func trimmed(value *string) *string {
	if value == nil {
		return nil
	}
	out := strings.TrimSpace(*value)
	return &out
}
