// Package identity describes accounts vouched for by an external identity
// provider.
package identity

import (
	"context"
	"errors"

	"github.com/example/campus-portal/internal/directory"
)

var (
	// ErrInvalidToken is returned when the provider rejects an ID token.
	ErrInvalidToken = errors.New("identity: invalid id token")
	// ErrEmailTaken is returned when sign-up hits an existing provider account.
	ErrEmailTaken = errors.New("identity: email already registered")
)

// Profile is what the provider and its profile documents know about a user.
type Profile struct {
	UID             string
	Email           string
	DisplayName     string
	EmailVerified   bool
	Role            directory.Role
	StudentID       string
	Level           string
	CumulativeGPA   float64
	EnrolledCourses []string
}

// AccountID returns the directory id for the profile: the student id when
// known, otherwise the provider uid.
func (p Profile) AccountID() string {
	if p.StudentID != "" {
		return p.StudentID
	}
	return p.UID
}

// Provider verifies and manages provider accounts.
type Provider interface {
	SignIn(ctx context.Context, idToken string) (Profile, error)
	SignUp(ctx context.Context, email, secret, displayName string) (Profile, error)
	SignOut(ctx context.Context, uid string) error
}
