package application

import (
	"time"

	"github.com/example/campus-portal/internal/calendar"
	"github.com/example/campus-portal/internal/directory"
	"github.com/example/campus-portal/internal/session"
)

// Principal identifies the account acting on a request.
type Principal struct {
	AccountID    string
	Role         directory.Role
	TokenID      string
	ExpiresAt    time.Time
	FederatedUID string
}

// IsAdmin reports whether the principal holds the ADMIN role.
func (p Principal) IsAdmin() bool {
	return p.Role == directory.RoleAdmin
}

func (p Principal) authenticated() bool {
	return p.AccountID != ""
}

func (p Principal) canManageEvents() bool {
	return p.Role == directory.RoleAdmin || p.Role == directory.RoleProfessor
}

func (p Principal) canAccess(accountID string) bool {
	return p.AccountID == accountID || p.IsAdmin()
}

// LoginParams carries a login attempt. Identifier is an account id or email.
type LoginParams struct {
	Identifier string
	Secret     string
}

// RegisterParams carries a self-service registration. An empty ID is
// generated.
type RegisterParams struct {
	ID          string
	DisplayName string
	Email       string
	Secret      string
}

// AuthResult is returned by every successful sign-in.
type AuthResult struct {
	Account directory.Account
	Token   session.Token
}

// UpdateProfileParams carries a profile patch. Nil fields are left unchanged.
type UpdateProfileParams struct {
	Principal   Principal
	AccountID   string
	DisplayName *string
	Email       *string
	Secret      *string
	Locale      *string
}

// CreateEventParams carries a new calendar event.
type CreateEventParams struct {
	Principal   Principal
	Title       string
	Description string
	Start       time.Time
	End         time.Time
	Location    string
	Organizer   string
}

// UpdateEventParams carries an event patch. Nil fields are left unchanged.
type UpdateEventParams struct {
	Principal   Principal
	EventID     string
	Title       *string
	Description *string
	Start       *time.Time
	End         *time.Time
	Location    *string
	Organizer   *string
}

func (p UpdateEventParams) patch() calendar.EventPatch {
	return calendar.EventPatch{
		Title:       p.Title,
		Description: p.Description,
		Start:       p.Start,
		End:         p.End,
		Location:    p.Location,
		Organizer:   p.Organizer,
	}
}

// Feedback is an anonymous message left for the portal staff.
type Feedback struct {
	ID        string
	UserID    string
	Message   string
	CreatedAt time.Time
}

// Notification is a message sent to every account holding a role.
type Notification struct {
	ID        string
	Content   string
	SentBy    string
	Role      directory.Role
	CreatedAt time.Time
}

// BroadcastParams carries a role broadcast.
type BroadcastParams struct {
	Principal Principal
	Content   string
	Role      string
}

// ChatReply is the assistant's answer plus the conversation length after it.
type ChatReply struct {
	Reply string
	Turns int
}
