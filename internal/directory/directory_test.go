package directory

import (
	"fmt"
	"testing"

	"github.com/example/campus-portal/internal/credential"
)

func strPtr(s string) *string { return &s }

func registerStudent(t *testing.T, d *Directory, id, email string) Account {
	t.Helper()
	account, ok := d.Register(RegisterInput{ID: id, DisplayName: "Name " + id, Email: email, Secret: "secret-" + id})
	if !ok {
		t.Fatalf("expected registration of %s to succeed", id)
	}
	return account
}

func TestDirectoryRegister(t *testing.T) {
	t.Parallel()

	t.Run("applies defaults and activates the session", func(t *testing.T) {
		t.Parallel()
		d := New()

		account, ok := d.Register(RegisterInput{ID: "student1", DisplayName: "Yosser", Email: "s1@x.com", Secret: "pw"})
		if !ok {
			t.Fatalf("expected registration to succeed")
		}
		if account.Role != RoleStudent {
			t.Fatalf("expected default role STUDENT, got %s", account.Role)
		}
		if account.EmailVerified {
			t.Fatalf("expected email to be unverified")
		}
		if account.Locale != "en" {
			t.Fatalf("expected locale en, got %q", account.Locale)
		}
		active, ok := d.Active()
		if !ok || active.ID != "student1" {
			t.Fatalf("expected student1 to be active, got %+v (ok=%v)", active, ok)
		}
	})

	t.Run("rejects duplicate id or email", func(t *testing.T) {
		t.Parallel()
		d := New()
		registerStudent(t, d, "student1", "s1@x.com")

		if _, ok := d.Register(RegisterInput{ID: "student1", Email: "other@x.com"}); ok {
			t.Fatalf("expected duplicate id to be rejected")
		}
		if _, ok := d.Register(RegisterInput{ID: "other", Email: "s1@x.com"}); ok {
			t.Fatalf("expected duplicate email to be rejected")
		}
		if got := len(d.Accounts()); got != 1 {
			t.Fatalf("expected registry size 1 after rejected registrations, got %d", got)
		}
		if _, ok := d.Register(RegisterInput{ID: "other", Email: "other@x.com"}); !ok {
			t.Fatalf("expected distinct id and email to register")
		}
	})

	t.Run("keeps ids and emails unique", func(t *testing.T) {
		t.Parallel()
		d := New()
		for i := 0; i < 20; i++ {
			d.Register(RegisterInput{ID: fmt.Sprintf("u%d", i%7), Email: fmt.Sprintf("u%d@x.com", i%5)})
		}

		ids := make(map[string]bool)
		emails := make(map[string]bool)
		for _, account := range d.Accounts() {
			if ids[account.ID] || emails[account.Email] {
				t.Fatalf("duplicate account detected: %+v", account)
			}
			ids[account.ID] = true
			emails[account.Email] = true
		}
	})
}

func TestDirectoryLogin(t *testing.T) {
	t.Parallel()

	t.Run("matches by id or email after registration", func(t *testing.T) {
		t.Parallel()
		d := New()
		registered := registerStudent(t, d, "student1", "s1@x.com")
		d.Logout()

		for _, identifier := range []string{"student1", "s1@x.com"} {
			account, ok := d.Login(identifier, "secret-student1")
			if !ok {
				t.Fatalf("expected login with %q to succeed", identifier)
			}
			if account.ID != registered.ID {
				t.Fatalf("expected account %s, got %s", registered.ID, account.ID)
			}
		}
	})

	t.Run("miss leaves the current session untouched", func(t *testing.T) {
		t.Parallel()
		d := New()
		registerStudent(t, d, "student1", "s1@x.com")

		if _, ok := d.Login("student1", "wrong"); ok {
			t.Fatalf("expected wrong secret to fail")
		}
		if _, ok := d.Login("nobody", "secret-student1"); ok {
			t.Fatalf("expected unknown identifier to fail")
		}
		active, ok := d.Active()
		if !ok || active.ID != "student1" {
			t.Fatalf("expected session to remain on student1, got %+v", active)
		}
	})

	t.Run("verifies hashed secrets through the scheme", func(t *testing.T) {
		t.Parallel()
		d := New(WithScheme(credential.Argon2id(credential.Argon2idParams{Memory: 1024, Iterations: 1, Parallelism: 1, SaltLength: 8, KeyLength: 16})))
		account := registerStudent(t, d, "student1", "s1@x.com")
		if account.CredentialSecret == "secret-student1" {
			t.Fatalf("expected secret to be stored hashed")
		}
		if _, ok := d.Login("s1@x.com", "secret-student1"); !ok {
			t.Fatalf("expected login against hashed secret to succeed")
		}
	})
}

func TestDirectoryLogoutIsIdempotent(t *testing.T) {
	t.Parallel()

	d := New()
	registerStudent(t, d, "student1", "s1@x.com")
	updates, cancel := d.Subscribe()
	defer cancel()
	<-updates

	d.Logout()
	if snapshot := <-updates; snapshot != nil {
		t.Fatalf("expected nil snapshot after logout, got %+v", snapshot)
	}
	d.Logout()
	select {
	case snapshot := <-updates:
		t.Fatalf("expected repeated logout not to publish, got %+v", snapshot)
	default:
	}
	if _, ok := d.Active(); ok {
		t.Fatalf("expected no active session")
	}
}

func TestDirectoryUpdateProfile(t *testing.T) {
	t.Parallel()

	t.Run("name only keeps email and secret", func(t *testing.T) {
		t.Parallel()
		d := New()
		before := registerStudent(t, d, "student1", "s1@x.com")

		after, ok := d.UpdateProfile("student1", ProfilePatch{DisplayName: strPtr("Renamed")})
		if !ok {
			t.Fatalf("expected update to succeed")
		}
		if after.DisplayName != "Renamed" {
			t.Fatalf("expected new name, got %q", after.DisplayName)
		}
		if after.Email != before.Email || after.CredentialSecret != before.CredentialSecret {
			t.Fatalf("expected email and secret unchanged, got %+v", after)
		}
	})

	t.Run("refreshes the active session", func(t *testing.T) {
		t.Parallel()
		d := New()
		registerStudent(t, d, "student1", "s1@x.com")

		if _, ok := d.UpdateProfile("student1", ProfilePatch{Email: strPtr("new@x.com"), Secret: strPtr("new-secret")}); !ok {
			t.Fatalf("expected update to succeed")
		}
		active, _ := d.Active()
		if active.Email != "new@x.com" {
			t.Fatalf("expected active session to reflect new email, got %q", active.Email)
		}
		if _, ok := d.Login("new@x.com", "new-secret"); !ok {
			t.Fatalf("expected login with updated credentials to succeed")
		}
	})

	t.Run("does not touch an unrelated session", func(t *testing.T) {
		t.Parallel()
		d := New()
		registerStudent(t, d, "student1", "s1@x.com")
		registerStudent(t, d, "student2", "s2@x.com")

		if _, ok := d.UpdateProfile("student1", ProfilePatch{DisplayName: strPtr("Other")}); !ok {
			t.Fatalf("expected update to succeed")
		}
		active, _ := d.Active()
		if active.ID != "student2" {
			t.Fatalf("expected student2 to stay active, got %s", active.ID)
		}
	})

	t.Run("fails for unknown id or taken email", func(t *testing.T) {
		t.Parallel()
		d := New()
		registerStudent(t, d, "student1", "s1@x.com")
		registerStudent(t, d, "student2", "s2@x.com")

		if _, ok := d.UpdateProfile("ghost", ProfilePatch{DisplayName: strPtr("x")}); ok {
			t.Fatalf("expected unknown id to fail")
		}
		if _, ok := d.UpdateProfile("student1", ProfilePatch{Email: strPtr("s2@x.com")}); ok {
			t.Fatalf("expected taken email to fail")
		}
		account, _ := d.GetByID("student1")
		if account.Email != "s1@x.com" {
			t.Fatalf("expected email unchanged after rejected update, got %q", account.Email)
		}
	})
}

func TestDirectoryQueries(t *testing.T) {
	t.Parallel()

	d := New()
	d.Provision(Account{ID: "admin", Email: "admin@x.com", CredentialSecret: "a", Role: RoleAdmin})
	d.Provision(Account{ID: "s1", Email: "s1@x.com", CredentialSecret: "b"})
	d.Provision(Account{ID: "p1", Email: "p1@x.com", CredentialSecret: "c", Role: RoleProfessor})
	d.Provision(Account{ID: "s2", Email: "s2@x.com", CredentialSecret: "d", Role: RoleStudent})

	if _, ok := d.Active(); ok {
		t.Fatalf("expected provisioning not to open a session")
	}

	students := d.GetByRole(RoleStudent)
	if len(students) != 2 || students[0].ID != "s1" || students[1].ID != "s2" {
		t.Fatalf("expected students in insertion order, got %+v", students)
	}
	if got := d.GetByRole(RoleAdmin); len(got) != 1 || got[0].ID != "admin" {
		t.Fatalf("unexpected admins: %+v", got)
	}
	if _, ok := d.GetByID("p1"); !ok {
		t.Fatalf("expected p1 to be found")
	}
	if _, ok := d.GetByID("missing"); ok {
		t.Fatalf("expected missing id to be absent")
	}
}

func TestDirectoryRestoreSkipsCollisions(t *testing.T) {
	t.Parallel()

	d := New()
	registerStudent(t, d, "student1", "s1@x.com")

	added := d.Restore([]Account{
		{ID: "student1", Email: "dup@x.com"},
		{ID: "fresh", Email: "s1@x.com"},
		{ID: "p1", Email: "p1@x.com", Role: RoleProfessor, CredentialSecret: "stored"},
	})
	if added != 1 {
		t.Fatalf("expected one restored account, got %d", added)
	}
	account, ok := d.Login("p1", "stored")
	if !ok || account.Role != RoleProfessor {
		t.Fatalf("expected restored account to log in with its stored secret")
	}
}

func TestDirectoryRosterSnapshots(t *testing.T) {
	t.Parallel()

	d := New()
	updates, cancel := d.Roster().Subscribe()
	defer cancel()
	if initial := <-updates; len(initial) != 0 {
		t.Fatalf("expected empty initial roster, got %d", len(initial))
	}

	registerStudent(t, d, "student1", "s1@x.com")
	if snapshot := <-updates; len(snapshot) != 1 {
		t.Fatalf("expected roster with one account, got %d", len(snapshot))
	}

	d.Login("student1", "secret-student1")
	select {
	case snapshot := <-updates:
		t.Fatalf("expected login not to republish the roster, got %d accounts", len(snapshot))
	default:
	}
}

func TestParseRole(t *testing.T) {
	t.Parallel()

	if role, ok := ParseRole(" professor "); !ok || role != RoleProfessor {
		t.Fatalf("expected PROFESSOR, got %q (ok=%v)", role, ok)
	}
	if _, ok := ParseRole("parent"); ok {
		t.Fatalf("expected unknown role to be rejected")
	}
}

func TestDirectoryActivate(t *testing.T) {
	t.Parallel()

	d := New()
	if _, ok := d.Provision(Account{ID: "prof1", Email: "elynn@x.com", CredentialSecret: "pw", Role: RoleProfessor}); !ok {
		t.Fatalf("expected provisioning to succeed")
	}
	if _, ok := d.Active(); ok {
		t.Fatalf("expected provisioning to leave the session empty")
	}

	if _, ok := d.Activate("missing"); ok {
		t.Fatalf("expected unknown id to miss")
	}
	account, ok := d.Activate("prof1")
	if !ok || account.Role != RoleProfessor {
		t.Fatalf("expected prof1 to be activated, got %+v", account)
	}
	if active, ok := d.Active(); !ok || active.ID != "prof1" {
		t.Fatalf("expected prof1 to be the active session, got %+v", active)
	}
}
