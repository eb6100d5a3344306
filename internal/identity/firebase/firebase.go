// Package firebase implements identity.Provider with Firebase Authentication
// and Firestore profile documents.
package firebase

import (
	"context"
	"log/slog"
	"strings"

	"cloud.google.com/go/firestore"
	firebasesdk "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"github.com/pkg/errors"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/example/campus-portal/internal/directory"
	"github.com/example/campus-portal/internal/identity"
)

// Firestore collections.
const (
	StudentsCollection = "students"
	UsersCollection    = "users"
)

// Config configures the Firebase app.
type Config struct {
	ProjectID       string
	CredentialsFile string
	AdminEmail      string
}

type authClient interface {
	VerifyIDToken(ctx context.Context, idToken string) (*auth.Token, error)
	GetUser(ctx context.Context, uid string) (*auth.UserRecord, error)
	CreateUser(ctx context.Context, user *auth.UserToCreate) (*auth.UserRecord, error)
	RevokeRefreshTokens(ctx context.Context, uid string) error
}

type profileStore interface {
	StudentByEmail(ctx context.Context, email string) (map[string]interface{}, bool, error)
	SaveUser(ctx context.Context, uid string, data map[string]interface{}) error
	Close() error
}

// Provider signs users in against Firebase.
type Provider struct {
	app        *firebasesdk.App
	auth       authClient
	store      profileStore
	adminEmail string
	logger     *slog.Logger
}

var _ identity.Provider = (*Provider)(nil)

// New initializes the Firebase app and its Auth and Firestore clients.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Provider, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	app, err := firebasesdk.NewApp(ctx, &firebasesdk.Config{ProjectID: cfg.ProjectID}, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "firebase: initialize app")
	}

	authClient, err := app.Auth(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "firebase: get auth client")
	}
	store, err := app.Firestore(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "firebase: get firestore client")
	}

	logger.Info("firebase identity provider initialized", slog.String("project_id", cfg.ProjectID))

	provider := newProvider(authClient, &firestoreStore{client: store}, cfg.AdminEmail, logger)
	provider.app = app
	return provider, nil
}

func newProvider(auth authClient, store profileStore, adminEmail string, logger *slog.Logger) *Provider {
	if logger == nil {
		logger = slog.Default()
	}
	return &Provider{
		auth:       auth,
		store:      store,
		adminEmail: strings.ToLower(strings.TrimSpace(adminEmail)),
		logger:     logger,
	}
}

// App returns the underlying Firebase app, shared with push messaging.
func (p *Provider) App() *firebasesdk.App {
	return p.app
}

// SignIn verifies idToken and resolves the user's profile.
func (p *Provider) SignIn(ctx context.Context, idToken string) (identity.Profile, error) {
	token, err := p.auth.VerifyIDToken(ctx, idToken)
	if err != nil {
		return identity.Profile{}, errors.Wrapf(identity.ErrInvalidToken, "firebase: %v", err)
	}

	user, err := p.auth.GetUser(ctx, token.UID)
	if err != nil {
		return identity.Profile{}, errors.Wrapf(err, "firebase: get user %s", token.UID)
	}
	return p.resolve(ctx, user), nil
}

// SignUp creates a provider account and its users/{uid} document.
func (p *Provider) SignUp(ctx context.Context, email, secret, displayName string) (identity.Profile, error) {
	params := (&auth.UserToCreate{}).
		Email(email).
		Password(secret).
		DisplayName(displayName).
		EmailVerified(false)

	user, err := p.auth.CreateUser(ctx, params)
	if err != nil {
		if auth.IsEmailAlreadyExists(err) {
			return identity.Profile{}, identity.ErrEmailTaken
		}
		return identity.Profile{}, errors.Wrap(err, "firebase: create user")
	}

	err = p.store.SaveUser(ctx, user.UID, map[string]interface{}{
		"email":     email,
		"name":      displayName,
		"role":      directory.RoleStudent.String(),
		"language":  directory.DefaultLocale,
		"createdAt": firestore.ServerTimestamp,
	})
	if err != nil {
		return identity.Profile{}, errors.Wrapf(err, "firebase: save user %s", user.UID)
	}

	return identity.Profile{
		UID:         user.UID,
		Email:       email,
		DisplayName: displayName,
		Role:        directory.RoleStudent,
	}, nil
}

// SignOut revokes every refresh token of uid.
func (p *Provider) SignOut(ctx context.Context, uid string) error {
	return errors.Wrapf(p.auth.RevokeRefreshTokens(ctx, uid), "firebase: revoke tokens for %s", uid)
}

// Close releases the Firestore client.
func (p *Provider) Close() error {
	if p.store == nil {
		return nil
	}
	return errors.WithStack(p.store.Close())
}

// resolve maps a provider user to a profile. A failed profile lookup falls
// back to a plain student profile.
func (p *Provider) resolve(ctx context.Context, user *auth.UserRecord) identity.Profile {
	email := ""
	displayName := ""
	uid := ""
	if user.UserInfo != nil {
		email = user.Email
		displayName = user.DisplayName
		uid = user.UID
	}

	if p.adminEmail != "" && strings.EqualFold(email, p.adminEmail) {
		return identity.Profile{
			UID:           uid,
			Email:         email,
			DisplayName:   fallback(displayName, "Administrator"),
			EmailVerified: user.EmailVerified,
			Role:          directory.RoleAdmin,
		}
	}

	data, found, err := p.store.StudentByEmail(ctx, email)
	if err != nil {
		p.logger.WarnContext(ctx, "student profile lookup failed",
			slog.String("uid", uid),
			slog.Any("error", err),
		)
	}
	if err == nil && found {
		return profileFromDocument(uid, email, user.EmailVerified, data)
	}

	return identity.Profile{
		UID:           uid,
		Email:         email,
		DisplayName:   fallback(displayName, "User"),
		EmailVerified: user.EmailVerified,
		Role:          directory.RoleStudent,
	}
}

func profileFromDocument(uid, email string, verified bool, data map[string]interface{}) identity.Profile {
	profile := identity.Profile{
		UID:           uid,
		Email:         email,
		EmailVerified: verified,
		Role:          directory.RoleStudent,
		StudentID:     stringField(data, "id"),
		DisplayName:   fallback(stringField(data, "fullName"), "User"),
		Level:         stringField(data, "level"),
	}

	switch gpa := data["cumulativeGPA"].(type) {
	case float64:
		profile.CumulativeGPA = gpa
	case int64:
		profile.CumulativeGPA = float64(gpa)
	case int:
		profile.CumulativeGPA = float64(gpa)
	}

	if courses, ok := data["enrolledCourses"].([]interface{}); ok {
		for _, course := range courses {
			if name, ok := course.(string); ok {
				profile.EnrolledCourses = append(profile.EnrolledCourses, name)
			}
		}
	}
	return profile
}

func stringField(data map[string]interface{}, key string) string {
	value, _ := data[key].(string)
	return value
}

func fallback(value, def string) string {
	if strings.TrimSpace(value) == "" {
		return def
	}
	return value
}

type firestoreStore struct {
	client *firestore.Client
}

func (s *firestoreStore) StudentByEmail(ctx context.Context, email string) (map[string]interface{}, bool, error) {
	if email == "" {
		return nil, false, nil
	}
	iter := s.client.Collection(StudentsCollection).Where("email", "==", email).Limit(1).Documents(ctx)
	defer iter.Stop()

	doc, err := iter.Next()
	if errors.Is(err, iterator.Done) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrap(err, "firebase: query students")
	}
	return doc.Data(), true, nil
}

func (s *firestoreStore) SaveUser(ctx context.Context, uid string, data map[string]interface{}) error {
	_, err := s.client.Collection(UsersCollection).Doc(uid).Set(ctx, data)
	return errors.Wrapf(err, "firebase: write %s/%s", UsersCollection, uid)
}

func (s *firestoreStore) Close() error {
	return s.client.Close()
}
