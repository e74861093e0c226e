package model

import (
	"errors"
	"strings"
	"time"
)

type Role string

const (
	RoleGuest   Role = "guest"
	RoleStudent Role = "student"
	RoleAdmin   Role = "admin"
)

var errUnknownRole = errors.New("unknown_role")

func ParseRole(value string) (Role, error) {
	switch Role(strings.TrimSpace(strings.ToLower(value))) {
	case RoleGuest, "":
		return RoleGuest, nil
	case RoleStudent:
		return RoleStudent, nil
	case RoleAdmin:
		return RoleAdmin, nil
	default:
		return RoleGuest, errUnknownRole
	}
}

func (r Role) String() string {
	return string(r)
}

type Identity struct {
	UserID string
	Email  string
}

func (i Identity) Empty() bool {
	return i.UserID == "" && i.Email == ""
}

type Session struct {
	ID         string
	Role       Role
	Identity   Identity
	Guest      bool
	LastActive time.Time
}

func GuestSession(id string) Session {
	return Session{ID: id, Role: RoleGuest}
}

func (s Session) IsAdmin() bool {
	return s.Role == RoleAdmin
}

func (s Session) IsStudent() bool {
	return s.Role == RoleStudent
}

// CanEdit is the capability flag handed to list screens for showing
// create/edit/delete affordances.
func (s Session) CanEdit() bool {
	return s.IsAdmin()
}

// NormalizeEmail is the comparison form used for the admin allowlist and
// message recipients.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
