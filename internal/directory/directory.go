// Package directory holds the in-memory account registry and the active session.
//
// Every operation reports expected misses (duplicate id or email, unknown id,
// bad credentials) through its boolean result. Nothing in this package returns
// an error for a business-rule outcome.
package directory

import (
	"log/slog"
	"sync"

	"github.com/example/campus-portal/internal/credential"
	"github.com/example/campus-portal/internal/observable"
)

// Directory is the authoritative registry of accounts.
type Directory struct {
	mu       sync.Mutex
	accounts []Account
	active   *observable.Value[*Account]
	roster   *observable.Value[[]Account]
	scheme   credential.Scheme
	logger   *slog.Logger
}

// Option configures a Directory.
type Option func(*Directory)

// WithScheme sets how secrets are stored and checked. The default stores them
// as supplied.
func WithScheme(scheme credential.Scheme) Option {
	return func(d *Directory) {
		if scheme != nil {
			d.scheme = scheme
		}
	}
}

// WithLogger sets the logger used for scheme failures.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Directory) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// New returns an empty Directory with no active session.
func New(opts ...Option) *Directory {
	d := &Directory{
		active: observable.New[*Account](nil),
		roster: observable.New([]Account{}),
		scheme: credential.Plain(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Login marks the account whose id or email equals identifier as the active
// session when secret matches. A miss leaves the current session untouched.
func (d *Directory) Login(identifier, secret string) (Account, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, account := range d.accounts {
		if account.ID != identifier && account.Email != identifier {
			continue
		}
		if !d.scheme.Check(secret, account.CredentialSecret) {
			continue
		}
		d.setActiveLocked(account)
		return account, true
	}
	return Account{}, false
}

// Register appends a new account and makes it the active session. It fails
// when the id or the email is already taken.
func (d *Directory) Register(input RegisterInput) (Account, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.takenLocked(input.ID, input.Email) {
		return Account{}, false
	}

	stored, err := d.scheme.Hash(input.Secret)
	if err != nil {
		d.logger.Error("failed to hash credential secret", "account_id", input.ID, "error", err)
		return Account{}, false
	}

	role := input.Role
	if role == "" {
		role = RoleStudent
	}
	account := Account{
		ID:               input.ID,
		DisplayName:      input.DisplayName,
		Email:            input.Email,
		CredentialSecret: stored,
		EmailVerified:    false,
		Role:             role,
		Locale:           DefaultLocale,
	}
	d.accounts = append(d.accounts, account)
	d.publishRosterLocked()
	d.setActiveLocked(account)
	return account, true
}

// Activate makes the account with the given id the active session without
// checking a secret. It is used after an external identity provider has
// vouched for the user.
func (d *Directory) Activate(id string) (Account, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	idx := d.indexLocked(id)
	if idx < 0 {
		return Account{}, false
	}
	d.setActiveLocked(d.accounts[idx])
	return d.accounts[idx], true
}

// Logout clears the active session.
func (d *Directory) Logout() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.active.Get() == nil {
		return
	}
	d.active.Publish(nil)
}

// UpdateProfile replaces the fields set in patch on the account with the given
// id. It fails for an unknown id or when the new email belongs to another
// account. When the account is the active session, the session is re-pointed
// at the updated record.
func (d *Directory) UpdateProfile(id string, patch ProfilePatch) (Account, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	idx := d.indexLocked(id)
	if idx < 0 {
		return Account{}, false
	}
	updated := d.accounts[idx]

	if patch.Email != nil && *patch.Email != updated.Email {
		for i, other := range d.accounts {
			if i != idx && other.Email == *patch.Email {
				return Account{}, false
			}
		}
		updated.Email = *patch.Email
	}
	if patch.DisplayName != nil {
		updated.DisplayName = *patch.DisplayName
	}
	if patch.Secret != nil {
		stored, err := d.scheme.Hash(*patch.Secret)
		if err != nil {
			d.logger.Error("failed to hash credential secret", "account_id", id, "error", err)
			return Account{}, false
		}
		updated.CredentialSecret = stored
	}
	if patch.Locale != nil {
		updated.Locale = *patch.Locale
	}

	d.accounts[idx] = updated
	d.publishRosterLocked()
	if current := d.active.Get(); current != nil && current.ID == id {
		d.setActiveLocked(updated)
	}
	return updated, true
}

// GetByID looks up an account by id.
func (d *Directory) GetByID(id string) (Account, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if idx := d.indexLocked(id); idx >= 0 {
		return d.accounts[idx], true
	}
	return Account{}, false
}

// GetByRole returns every account with the given role in registration order.
func (d *Directory) GetByRole(role Role) []Account {
	d.mu.Lock()
	defer d.mu.Unlock()

	matches := make([]Account, 0)
	for _, account := range d.accounts {
		if account.Role == role {
			matches = append(matches, account)
		}
	}
	return matches
}

// Accounts returns a copy of the registry in registration order.
func (d *Directory) Accounts() []Account {
	d.mu.Lock()
	defer d.mu.Unlock()
	return cloneAccounts(d.accounts)
}

// Active returns the account of the active session.
func (d *Directory) Active() (Account, bool) {
	current := d.active.Get()
	if current == nil {
		return Account{}, false
	}
	return *current, true
}

// Subscribe observes the active session. Snapshots are nil while nobody is
// logged in. Receivers must not modify the pointed-to account.
func (d *Directory) Subscribe() (<-chan *Account, func()) {
	return d.active.Subscribe()
}

// Session exposes the active-session snapshot container.
func (d *Directory) Session() *observable.Value[*Account] {
	return d.active
}

// Roster exposes the snapshot container for the full account list, republished
// after every registry change.
func (d *Directory) Roster() *observable.Value[[]Account] {
	return d.roster
}

// Provision inserts a fully specified account without touching the active
// session. The secret is converted to its stored form first. It fails when the
// id or the email is taken.
func (d *Directory) Provision(account Account) (Account, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.takenLocked(account.ID, account.Email) {
		return Account{}, false
	}
	stored, err := d.scheme.Hash(account.CredentialSecret)
	if err != nil {
		d.logger.Error("failed to hash credential secret", "account_id", account.ID, "error", err)
		return Account{}, false
	}
	account.CredentialSecret = stored
	if account.Role == "" {
		account.Role = RoleStudent
	}
	if account.Locale == "" {
		account.Locale = DefaultLocale
	}
	d.accounts = append(d.accounts, account)
	d.publishRosterLocked()
	return account, true
}

// Restore loads accounts whose secrets are already in stored form. Records
// that collide with an existing id or email are skipped. It returns how many
// records were added.
func (d *Directory) Restore(accounts []Account) int {
	d.mu.Lock()
	defer d.mu.Unlock()

	added := 0
	for _, account := range accounts {
		if d.takenLocked(account.ID, account.Email) {
			continue
		}
		d.accounts = append(d.accounts, account)
		added++
	}
	if added > 0 {
		d.publishRosterLocked()
	}
	return added
}

func (d *Directory) takenLocked(id, email string) bool {
	for _, account := range d.accounts {
		if account.ID == id || account.Email == email {
			return true
		}
	}
	return false
}

func (d *Directory) indexLocked(id string) int {
	for i, account := range d.accounts {
		if account.ID == id {
			return i
		}
	}
	return -1
}

func (d *Directory) setActiveLocked(account Account) {
	snapshot := account
	d.active.Publish(&snapshot)
}

func (d *Directory) publishRosterLocked() {
	d.roster.Publish(cloneAccounts(d.accounts))
}

func cloneAccounts(accounts []Account) []Account {
	out := make([]Account, len(accounts))
	copy(out, accounts)
	return out
}
