package testfixtures

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/example/campus-portal/internal/application"
	"github.com/example/campus-portal/internal/calendar"
	"github.com/example/campus-portal/internal/directory"
	"github.com/example/campus-portal/internal/persistence"
)

var (
	accountCounter uint64
	eventCounter   uint64
)

var referenceTime = time.Date(2024, time.January, 2, 15, 4, 5, 0, time.UTC)

// ReferenceTime returns the canonical baseline timestamp used by fixtures.
func ReferenceTime() time.Time {
	return referenceTime
}

// ---------------------------- Account fixtures ----------------------------

// AccountFixture represents a deterministic directory account that can be
// materialised for directory, application or persistence tests.
type AccountFixture struct {
	ID            string
	DisplayName   string
	Email         string
	Secret        string
	EmailVerified bool
	Role          directory.Role
	Locale        string
}

// AccountOption configures the generated account fixture.
type AccountOption func(*AccountFixture)

// NewAccountFixture returns a deterministic STUDENT account with optional
// overrides.
func NewAccountFixture(opts ...AccountOption) AccountFixture {
	idx := atomic.AddUint64(&accountCounter, 1)
	fixture := AccountFixture{
		ID:          fmt.Sprintf("account-%03d", idx),
		DisplayName: fmt.Sprintf("Account %03d", idx),
		Email:       fmt.Sprintf("account-%03d@tbsuniversity.edu", idx),
		Secret:      "Secret#123",
		Role:        directory.RoleStudent,
		Locale:      directory.DefaultLocale,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithAccountID overrides the account id.
func WithAccountID(id string) AccountOption {
	return func(f *AccountFixture) {
		f.ID = id
	}
}

// WithAccountEmail overrides the account email.
func WithAccountEmail(email string) AccountOption {
	return func(f *AccountFixture) {
		f.Email = email
	}
}

// WithAccountDisplayName overrides the display name.
func WithAccountDisplayName(name string) AccountOption {
	return func(f *AccountFixture) {
		f.DisplayName = name
	}
}

// WithAccountSecret overrides the plain-text secret.
func WithAccountSecret(secret string) AccountOption {
	return func(f *AccountFixture) {
		f.Secret = secret
	}
}

// WithAccountRole overrides the role.
func WithAccountRole(role directory.Role) AccountOption {
	return func(f *AccountFixture) {
		f.Role = role
	}
}

// WithAccountVerified marks the email as verified.
func WithAccountVerified() AccountOption {
	return func(f *AccountFixture) {
		f.EmailVerified = true
	}
}

// Directory materialises the fixture as a directory account. The secret is
// left in plain form; Directory.Provision converts it.
func (f AccountFixture) Directory() directory.Account {
	return directory.Account{
		ID:               f.ID,
		DisplayName:      f.DisplayName,
		Email:            f.Email,
		CredentialSecret: f.Secret,
		EmailVerified:    f.EmailVerified,
		Role:             f.Role,
		Locale:           f.Locale,
	}
}

// Record materialises the fixture as a persistence record at position.
func (f AccountFixture) Record(position int) persistence.AccountRecord {
	return persistence.AccountRecord{
		ID:               f.ID,
		DisplayName:      f.DisplayName,
		Email:            f.Email,
		CredentialSecret: f.Secret,
		EmailVerified:    f.EmailVerified,
		Role:             f.Role.String(),
		Locale:           f.Locale,
		Position:         position,
	}
}

// Principal returns an application principal for the fixture.
func (f AccountFixture) Principal() application.Principal {
	return application.Principal{AccountID: f.ID, Role: f.Role}
}

// ----------------------------- Event fixtures -----------------------------

// EventFixture represents a deterministic calendar event.
type EventFixture struct {
	ID          string
	Title       string
	Description string
	Start       time.Time
	End         time.Time
	Location    string
	Organizer   string
}

// EventOption configures the generated event fixture.
type EventOption func(*EventFixture)

// NewEventFixture returns a one hour event on the reference day with optional
// overrides.
func NewEventFixture(opts ...EventOption) EventFixture {
	idx := atomic.AddUint64(&eventCounter, 1)
	start := referenceTime.Truncate(time.Hour)
	fixture := EventFixture{
		ID:        fmt.Sprintf("event-%03d", idx),
		Title:     fmt.Sprintf("Lecture %03d", idx),
		Start:     start,
		End:       start.Add(time.Hour),
		Location:  "Room A101",
		Organizer: "Prof. Elynn Lee",
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithEventID overrides the event id.
func WithEventID(id string) EventOption {
	return func(f *EventFixture) {
		f.ID = id
	}
}

// WithEventTitle overrides the title.
func WithEventTitle(title string) EventOption {
	return func(f *EventFixture) {
		f.Title = title
	}
}

// WithEventStartEnd overrides the time window.
func WithEventStartEnd(start, end time.Time) EventOption {
	return func(f *EventFixture) {
		f.Start = start
		f.End = end
	}
}

// WithEventLocation overrides the location.
func WithEventLocation(location string) EventOption {
	return func(f *EventFixture) {
		f.Location = location
	}
}

// Input materialises the fixture as calendar input.
func (f EventFixture) Input() calendar.EventInput {
	return calendar.EventInput{
		Title:       f.Title,
		Description: f.Description,
		Start:       f.Start,
		End:         f.End,
		Location:    f.Location,
		Organizer:   f.Organizer,
	}
}

// Event materialises the fixture as a stored calendar event.
func (f EventFixture) Event() calendar.Event {
	return calendar.Event{
		ID:          f.ID,
		Title:       f.Title,
		Description: f.Description,
		Start:       f.Start,
		End:         f.End,
		Location:    f.Location,
		Organizer:   f.Organizer,
	}
}

// Record materialises the fixture as a persistence record at position.
func (f EventFixture) Record(position int) persistence.EventRecord {
	return persistence.EventRecord{
		ID:          f.ID,
		Title:       f.Title,
		Description: f.Description,
		Start:       f.Start,
		End:         f.End,
		Location:    f.Location,
		Organizer:   f.Organizer,
		Position:    position,
	}
}
