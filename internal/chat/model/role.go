package model

import (
	"strings"

	"github.com/If-Master/ChatControlPlugin/pkg/errors"
)

// Role is a user's privilege level within one channel. The zero value
// RoleNone means "plain member" when a membership record exists and
// "non-member" otherwise; it is never stored.
type Role string

const (
	RoleNone    Role = ""
	RoleOwner   Role = "owner"
	RoleManager Role = "manager"
	RoleTrusted Role = "trusted"
	RoleMuted   Role = "muted"
	RoleBanned  Role = "banned"
)

// ParseRole validates a stored permission level. Anything outside the
// closed set is a validation error; callers must not proceed with a
// mutation after a rejected parse.
func ParseRole(s string) (Role, error) {
	switch r := Role(strings.ToLower(s)); r {
	case RoleOwner, RoleManager, RoleTrusted, RoleMuted, RoleBanned:
		return r, nil
	default:
		return RoleNone, errors.ErrInvalidRole
	}
}

func (r Role) Valid() bool {
	switch r {
	case RoleOwner, RoleManager, RoleTrusted, RoleMuted, RoleBanned:
		return true
	}
	return false
}

// Rank orders roles for authorization checks: owner > manager > trusted >
// plain member > muted. RoleBanned carries no rank; the global ban registry
// pre-empts it at the membership layer.
func (r Role) Rank() int {
	switch r {
	case RoleOwner:
		return 4
	case RoleManager:
		return 3
	case RoleTrusted:
		return 2
	case RoleNone:
		return 1
	case RoleMuted:
		return 0
	default:
		return -1
	}
}

func (r Role) AtLeast(threshold Role) bool {
	return r.Rank() >= threshold.Rank()
}

func (r Role) String() string {
	if r == RoleNone {
		return "member"
	}
	return string(r)
}
