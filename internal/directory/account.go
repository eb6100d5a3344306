package directory

import "strings"

// Role classifies what an account may do in the portal.
type Role string

const (
	RoleAdmin     Role = "ADMIN"
	RoleProfessor Role = "PROFESSOR"
	RoleStudent   Role = "STUDENT"
)

// DefaultLocale is assigned to every newly registered account.
const DefaultLocale = "en"

// IsValid reports whether r is one of the known roles.
func (r Role) IsValid() bool {
	switch r {
	case RoleAdmin, RoleProfessor, RoleStudent:
		return true
	}
	return false
}

func (r Role) String() string {
	return string(r)
}

// ParseRole maps a case-insensitive role name to a Role.
func ParseRole(value string) (Role, bool) {
	role := Role(strings.ToUpper(strings.TrimSpace(value)))
	return role, role.IsValid()
}

// Account is a registered identity.
type Account struct {
	ID               string
	DisplayName      string
	Email            string
	CredentialSecret string
	EmailVerified    bool
	Role             Role
	Locale           string
}

// RegisterInput carries the fields accepted by Register. A zero Role means
// RoleStudent.
type RegisterInput struct {
	ID          string
	DisplayName string
	Email       string
	Secret      string
	Role        Role
}

// ProfilePatch lists the fields UpdateProfile may replace. Nil fields keep
// their stored value.
type ProfilePatch struct {
	DisplayName *string
	Email       *string
	Secret      *string
	Locale      *string
}

// IsEmpty reports whether the patch changes nothing.
func (p ProfilePatch) IsEmpty() bool {
	return p.DisplayName == nil && p.Email == nil && p.Secret == nil && p.Locale == nil
}
