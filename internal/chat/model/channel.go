package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

const DefaultMaxMembers = 100

// Channel combines a durable definition with runtime predicate logic.
// Instances are reconstructed from the channel registry at load time;
// only the definition fields are ever persisted.
type Channel struct {
	Name        string
	Prefix      string
	Private     bool
	Owner       uuid.UUID // uuid.Nil for built-in system channels
	Description string
	// RequiredCapability gates join/receive; empty means ungated.
	RequiredCapability string
	AllowInvites       bool
	MaxMembers         int
	CreatedAt          time.Time

	// Frozen mirrors the process-wide freeze flag; it is runtime-only
	// and never persisted per-channel.
	Frozen bool
}

func NewChannel(name string, prefix string, private bool, owner uuid.UUID, description, requiredCapability string) *Channel {
	return &Channel{
		Name:               strings.ToLower(name),
		Prefix:             prefix,
		Private:            private,
		Owner:              owner,
		Description:        description,
		RequiredCapability: requiredCapability,
		AllowInvites:       true,
		MaxMembers:         DefaultMaxMembers,
		CreatedAt:          time.Now(),
	}
}

func (c *Channel) IsOwner(user uuid.UUID) bool {
	return c.Owner != uuid.Nil && c.Owner == user
}

// Access is the fact set the predicates below are evaluated against.
// Callers gather it from the stores; the entity itself never does I/O.
type Access struct {
	Role        Role
	Member      bool
	MemberCount int
	// Banned is the global ban, Blocked the channel-scoped block.
	Banned  bool
	Blocked bool
	// Admin holds the chat.admin capability, HasRequiredCapability the
	// channel's RequiredCapability (vacuously true when ungated).
	Admin                 bool
	HasRequiredCapability bool
}

// CanJoin reports whether a user with the given facts may join. Globally
// banned users may still join a channel they own.
func (c *Channel) CanJoin(a Access) bool {
	if a.Role == RoleBanned {
		return false
	}
	if a.Banned && a.Role != RoleOwner {
		return false
	}
	if a.MemberCount >= c.MaxMembers {
		return false
	}
	if c.RequiredCapability != "" && !a.HasRequiredCapability {
		return false
	}
	if !c.Private {
		return true
	}
	// capability-gated private channels admit on the capability alone
	if c.RequiredCapability != "" && a.HasRequiredCapability {
		return true
	}
	return a.Role == RoleOwner || a.Role == RoleManager || a.Role == RoleTrusted
}

func (c *Channel) CanSpeak(a Access) bool {
	if c.Frozen && !a.Admin && a.Role != RoleOwner && a.Role != RoleManager {
		return false
	}
	if a.Role == RoleMuted {
		return false
	}
	return !a.Banned && a.Role != RoleBanned
}

func (c *Channel) CanReceive(a Access) bool {
	if a.Banned || a.Role == RoleBanned {
		return false
	}
	return !c.Private || c.RequiredCapability == "" || a.HasRequiredCapability
}

func (c *Channel) CanInvite(a Access) bool {
	if a.Role == RoleOwner || a.Role == RoleManager {
		return true
	}
	if !c.AllowInvites {
		return false
	}
	if a.Role == RoleTrusted {
		return true
	}
	return !c.Private
}
