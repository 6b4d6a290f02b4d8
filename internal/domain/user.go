// Package domain contains the core business entities for the Luma identity service.
// These are pure Go structs with no external dependencies, representing
// users, their groups and the requester identity used by every operation.
package domain

import (
	"time"
)

// RootGroupID is the reserved group id of the root role.
const RootGroupID int64 = 1

// DefaultGroupID is the group assigned to newly registered users.
const DefaultGroupID int64 = 3

// User represents a registered account.
type User struct {
	// UID is the unique identifier for the user (auto-generated, immutable).
	UID int64 `json:"uid"`

	// GID is the group the user belongs to. Group 1 is root.
	GID int64 `json:"gid"`

	// Username is the unique login name.
	// Compared exactly (case-sensitive).
	Username string `json:"username"`

	// Email is the unique, lower-cased email address.
	Email string `json:"email"`

	// PasswordHash is the bcrypt digest of the user's password.
	// This must never be exposed in API responses.
	PasswordHash string `json:"-"`

	// StaffUser and StaffRoot are capability flags derived from the group.
	StaffUser bool `json:"staff_user"`
	StaffRoot bool `json:"staff_root"`

	// Ban controls. A user missing any of these is considered banned.
	CanMsg     bool `json:"can_msg"`
	CanSubmit  bool `json:"can_submit"`
	CanComment bool `json:"can_comment"`

	// Profile fields editable by the owner.
	Title     string `json:"title"`
	Bio       string `json:"bio"`
	Website   string `json:"website"`
	Avatar    string `json:"avatar"`
	ShowEmail bool   `json:"show_email"`

	// Provenance, maintained by the system only.
	RegisteredIP string     `json:"registered_ip"`
	JoinDate     time.Time  `json:"join_date"`
	LastVisit    *time.Time `json:"last_visit,omitempty"`
	LastActive   *time.Time `json:"last_active,omitempty"`
	LastIP       string     `json:"last_ip"`
}

// NewUser creates a new User in the default group with all privileges intact.
func NewUser(username, email, passwordHash, registeredIP string) *User {
	return &User{
		GID:          DefaultGroupID,
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
		CanMsg:       true,
		CanSubmit:    true,
		CanComment:   true,
		ShowEmail:    false,
		RegisteredIP: registeredIP,
		JoinDate:     time.Now().UTC(),
	}
}

// IsBanned reports whether any ban control has been revoked.
func (u *User) IsBanned() bool {
	return !u.CanMsg || !u.CanSubmit || !u.CanComment
}

// Actor builds the requester identity for this user.
func (u *User) Actor() *Actor {
	return &Actor{
		UID:        u.UID,
		Username:   u.Username,
		GID:        u.GID,
		StaffUser:  u.StaffUser,
		StaffRoot:  u.StaffRoot,
		CanMsg:     u.CanMsg,
		CanSubmit:  u.CanSubmit,
		CanComment: u.CanComment,
	}
}

// UserProfile is a user with counts of related content.
type UserProfile struct {
	*User

	// Comments is the number of comments authored by the user.
	Comments int64 `json:"comments"`

	// Submissions is the number of accepted submissions (queue code 0).
	Submissions int64 `json:"submissions"`
}

// Subject is the identity proven by a successful login.
type Subject struct {
	UID      int64  `json:"uid"`
	Username string `json:"username"`
}
