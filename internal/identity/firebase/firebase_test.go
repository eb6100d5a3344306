package firebase

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"firebase.google.com/go/v4/auth"

	"github.com/example/campus-portal/internal/directory"
	"github.com/example/campus-portal/internal/identity"
)

type stubAuth struct {
	users      map[string]*auth.UserRecord
	tokens     map[string]string
	revoked    []string
	created    *auth.UserToCreate
	createErr  error
	verifyHits int
}

func (s *stubAuth) VerifyIDToken(_ context.Context, idToken string) (*auth.Token, error) {
	s.verifyHits++
	uid, ok := s.tokens[idToken]
	if !ok {
		return nil, errors.New("ID token has invalid signature")
	}
	return &auth.Token{UID: uid}, nil
}

func (s *stubAuth) GetUser(_ context.Context, uid string) (*auth.UserRecord, error) {
	user, ok := s.users[uid]
	if !ok {
		return nil, errors.New("no user record found")
	}
	return user, nil
}

func (s *stubAuth) CreateUser(_ context.Context, user *auth.UserToCreate) (*auth.UserRecord, error) {
	if s.createErr != nil {
		return nil, s.createErr
	}
	s.created = user
	return &auth.UserRecord{UserInfo: &auth.UserInfo{UID: "new-uid"}}, nil
}

func (s *stubAuth) RevokeRefreshTokens(_ context.Context, uid string) error {
	s.revoked = append(s.revoked, uid)
	return nil
}

type stubStore struct {
	students map[string]map[string]interface{}
	saved    map[string]map[string]interface{}
	err      error
}

func (s *stubStore) StudentByEmail(_ context.Context, email string) (map[string]interface{}, bool, error) {
	if s.err != nil {
		return nil, false, s.err
	}
	data, ok := s.students[email]
	return data, ok, nil
}

func (s *stubStore) SaveUser(_ context.Context, uid string, data map[string]interface{}) error {
	if s.saved == nil {
		s.saved = make(map[string]map[string]interface{})
	}
	s.saved[uid] = data
	return nil
}

func (s *stubStore) Close() error { return nil }

func userRecord(uid, email, name string, verified bool) *auth.UserRecord {
	return &auth.UserRecord{
		UserInfo:      &auth.UserInfo{UID: uid, Email: email, DisplayName: name},
		EmailVerified: verified,
	}
}

func newTestProvider(a *stubAuth, s *stubStore) *Provider {
	return newProvider(a, s, "Admin@TBSUniversity.edu", slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestSignInResolvesRoles(t *testing.T) {
	t.Parallel()

	a := &stubAuth{
		tokens: map[string]string{"admin-token": "u-admin", "student-token": "u-student", "other-token": "u-other"},
		users: map[string]*auth.UserRecord{
			"u-admin":   userRecord("u-admin", "admin@tbsuniversity.edu", "", true),
			"u-student": userRecord("u-student", "yosser@tbsuniversity.edu", "Y", true),
			"u-other":   userRecord("u-other", "guest@example.com", "", false),
		},
	}
	s := &stubStore{students: map[string]map[string]interface{}{
		"yosser@tbsuniversity.edu": {
			"id":              "12345678",
			"fullName":        "Yosser",
			"level":           "L3",
			"cumulativeGPA":   int64(3),
			"enrolledCourses": []interface{}{"Advanced Programming", "Database Systems", 42},
		},
	}}
	provider := newTestProvider(a, s)
	ctx := context.Background()

	admin, err := provider.SignIn(ctx, "admin-token")
	if err != nil {
		t.Fatalf("SignIn returned error: %v", err)
	}
	if admin.Role != directory.RoleAdmin || admin.DisplayName != "Administrator" {
		t.Fatalf("expected admin profile, got %+v", admin)
	}

	student, err := provider.SignIn(ctx, "student-token")
	if err != nil {
		t.Fatalf("SignIn returned error: %v", err)
	}
	if student.Role != directory.RoleStudent || student.AccountID() != "12345678" || student.Level != "L3" {
		t.Fatalf("unexpected student profile: %+v", student)
	}
	if student.CumulativeGPA != 3 || len(student.EnrolledCourses) != 2 {
		t.Fatalf("unexpected student details: %+v", student)
	}

	other, err := provider.SignIn(ctx, "other-token")
	if err != nil {
		t.Fatalf("SignIn returned error: %v", err)
	}
	if other.Role != directory.RoleStudent || other.DisplayName != "User" || other.AccountID() != "u-other" {
		t.Fatalf("unexpected default profile: %+v", other)
	}
}

func TestSignInRejectsInvalidToken(t *testing.T) {
	t.Parallel()

	provider := newTestProvider(&stubAuth{}, &stubStore{})
	if _, err := provider.SignIn(context.Background(), "forged"); !errors.Is(err, identity.ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestSignInFallsBackWhenLookupFails(t *testing.T) {
	t.Parallel()

	a := &stubAuth{
		tokens: map[string]string{"t": "u1"},
		users:  map[string]*auth.UserRecord{"u1": userRecord("u1", "yosser@tbsuniversity.edu", "Yosser", true)},
	}
	provider := newTestProvider(a, &stubStore{err: errors.New("firestore unavailable")})

	profile, err := provider.SignIn(context.Background(), "t")
	if err != nil {
		t.Fatalf("SignIn returned error: %v", err)
	}
	if profile.Role != directory.RoleStudent || profile.DisplayName != "Yosser" || !profile.EmailVerified {
		t.Fatalf("unexpected fallback profile: %+v", profile)
	}
}

func TestSignUpWritesUserDocument(t *testing.T) {
	t.Parallel()

	a := &stubAuth{}
	s := &stubStore{}
	provider := newTestProvider(a, s)

	profile, err := provider.SignUp(context.Background(), "new@tbsuniversity.edu", "Secret1!", "New Student")
	if err != nil {
		t.Fatalf("SignUp returned error: %v", err)
	}
	if profile.UID != "new-uid" || profile.Role != directory.RoleStudent {
		t.Fatalf("unexpected profile: %+v", profile)
	}
	doc, ok := s.saved["new-uid"]
	if !ok {
		t.Fatalf("expected users/new-uid to be written")
	}
	if doc["role"] != "STUDENT" || doc["email"] != "new@tbsuniversity.edu" || doc["language"] != "en" {
		t.Fatalf("unexpected user document: %+v", doc)
	}
}

func TestSignOutRevokesRefreshTokens(t *testing.T) {
	t.Parallel()

	a := &stubAuth{}
	provider := newTestProvider(a, &stubStore{})
	if err := provider.SignOut(context.Background(), "u1"); err != nil {
		t.Fatalf("SignOut returned error: %v", err)
	}
	if len(a.revoked) != 1 || a.revoked[0] != "u1" {
		t.Fatalf("expected u1 to be revoked, got %v", a.revoked)
	}
}

func TestProfileFromDocumentToleratesMissingFields(t *testing.T) {
	t.Parallel()

	profile := profileFromDocument("uid", "x@example.com", false, map[string]interface{}{"cumulativeGPA": 3.5})
	if profile.DisplayName != "User" || profile.StudentID != "" || profile.CumulativeGPA != 3.5 {
		t.Fatalf("unexpected profile: %+v", profile)
	}
}
