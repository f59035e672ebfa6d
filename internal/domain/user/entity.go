package user

import (
	"time"

	"github.com/google/uuid"
)

// Role is what a user does on the platform
type Role string

const (
	RoleRequester Role = "requester"
	RoleFulfiller Role = "fulfiller"
	RoleBoth      Role = "both"
)

// Status is the account state
type Status string

const (
	StatusNew     Status = "new"
	StatusActive  Status = "active"
	StatusPause   Status = "pause"
	StatusBlocked Status = "blocked"
)

// User represents the users table
type User struct {
	ID          uuid.UUID
	ExternalID  int64 // chat transport id
	Username    string
	Role        Role
	Status      Status
	Confirmed   bool
	ConfirmedAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// CanFulfil reports whether the user has a fulfiller profile.
func (u *User) CanFulfil() bool {
	return u.Role == RoleFulfiller || u.Role == RoleBoth
}

// EligibleFor reports whether u may be offered a task owned by ownerID.
func (u *User) EligibleFor(ownerID uuid.UUID) bool {
	if u.ID == ownerID {
		return false
	}
	if !u.Confirmed || !u.CanFulfil() {
		return false
	}
	return u.Status != StatusBlocked && u.Status != StatusPause
}

// Handle is how the counterparty reaches the user in chat.
func (u *User) Handle() string {
	if u.Username == "" {
		return "no username"
	}
	return "@" + u.Username
}
