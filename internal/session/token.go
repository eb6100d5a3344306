// Package session issues and verifies the bearer tokens handed out by the
// portal's HTTP surface, and tracks tokens revoked by logout.
package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// DefaultTTL is used when the issuer is built without a positive lifetime.
const DefaultTTL = 24 * time.Hour

var (
	// ErrInvalidToken is returned for malformed, tampered or expired tokens.
	ErrInvalidToken = errors.New("session: invalid token")
	// ErrMissingSecret is returned when the signing secret is empty.
	ErrMissingSecret = errors.New("session: signing secret is required")
)

// Claims are the JWT claims carried by a portal session token.
type Claims struct {
	Role         string `json:"role"`
	FederatedUID string `json:"fuid,omitempty"`
	jwt.RegisteredClaims
}

// Token is an issued or parsed session token.
type Token struct {
	Value   string
	ID      string
	Subject string
	Role    string
	// FederatedUID is the identity provider uid for federated sign-ins.
	FederatedUID string
	IssuedAt     time.Time
	ExpiresAt    time.Time
}

// Issuer signs and parses HS256 session tokens.
type Issuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
	newID  func() string
}

// IssuerOption customizes an Issuer.
type IssuerOption func(*Issuer)

// WithClock overrides the issuer's time source.
func WithClock(now func() time.Time) IssuerOption {
	return func(i *Issuer) {
		if now != nil {
			i.now = now
		}
	}
}

// WithIDGenerator overrides how token ids (jti) are produced.
func WithIDGenerator(newID func() string) IssuerOption {
	return func(i *Issuer) {
		if newID != nil {
			i.newID = newID
		}
	}
}

// NewIssuer builds an Issuer for secret. A non-positive ttl means DefaultTTL.
func NewIssuer(secret []byte, ttl time.Duration, opts ...IssuerOption) (*Issuer, error) {
	if len(secret) == 0 {
		return nil, ErrMissingSecret
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	issuer := &Issuer{
		secret: append([]byte(nil), secret...),
		ttl:    ttl,
		now:    time.Now,
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(issuer)
	}
	return issuer, nil
}

// TTL reports the lifetime of issued tokens.
func (i *Issuer) TTL() time.Duration {
	return i.ttl
}

// Issue signs a token for subject with role.
func (i *Issuer) Issue(subject, role string) (Token, error) {
	return i.issue(subject, role, "")
}

// IssueFederated signs a token that also records the provider uid.
func (i *Issuer) IssueFederated(subject, role, federatedUID string) (Token, error) {
	return i.issue(subject, role, federatedUID)
}

func (i *Issuer) issue(subject, role, federatedUID string) (Token, error) {
	issuedAt := i.now()
	claims := Claims{
		Role:         role,
		FederatedUID: federatedUID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        i.newID(),
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(i.ttl)),
		},
	}

	value, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return Token{}, fmt.Errorf("session: sign token: %w", err)
	}
	return tokenFromClaims(value, claims), nil
}

// Parse verifies value and returns its contents. Any failure wraps ErrInvalidToken.
func (i *Issuer) Parse(value string) (Token, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(value, claims,
		func(*jwt.Token) (interface{}, error) { return i.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(i.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return Token{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid || claims.Subject == "" || claims.ID == "" {
		return Token{}, ErrInvalidToken
	}
	return tokenFromClaims(value, *claims), nil
}

func tokenFromClaims(value string, claims Claims) Token {
	token := Token{
		Value:        value,
		ID:           claims.ID,
		Subject:      claims.Subject,
		Role:         claims.Role,
		FederatedUID: claims.FederatedUID,
	}
	if claims.IssuedAt != nil {
		token.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		token.ExpiresAt = claims.ExpiresAt.Time
	}
	return token
}
