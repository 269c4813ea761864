package chat

import (
	"context"

	"github.com/google/uuid"

	"github.com/If-Master/ChatControlPlugin/internal/chat/model"
)

// Store is the durable membership/permission/ban/block state behind the
// chat manager. Two implementations exist: a relational store (bun) and a
// flat-file store; the backend selector picks one at startup and the
// choice never changes for the process lifetime. All methods are safe for
// concurrent use. Mutations are last-write-wins between concurrent
// callers of the same key.
type Store interface {
	// Relational reports which backend this store is. The value is fixed
	// at construction.
	Relational() bool

	// Membership. Add and remove are idempotent; removal deactivates
	// rather than deletes.
	AddMember(ctx context.Context, user uuid.UUID, channel string) error
	RemoveMember(ctx context.Context, user uuid.UUID, channel string) error
	IsMember(ctx context.Context, user uuid.UUID, channel string) (bool, error)
	ListChannels(ctx context.Context, user uuid.UUID) ([]string, error)
	ListMembers(ctx context.Context, channel string) ([]uuid.UUID, error)

	// Permissions. SetRole validates the role before any I/O. GetRole
	// returns RoleNone when no record exists. Unmute removes the record
	// only if the current role is exactly muted, otherwise it is a no-op.
	SetRole(ctx context.Context, user uuid.UUID, channel string, role model.Role, grantedBy uuid.UUID) error
	GetRole(ctx context.Context, user uuid.UUID, channel string) (model.Role, error)
	RemoveRole(ctx context.Context, user uuid.UUID, channel string) error
	ListRoles(ctx context.Context, channel string) (map[uuid.UUID]model.Role, error)
	Unmute(ctx context.Context, user uuid.UUID, channel string) error

	// Global ban registry. The membership cascade on ban is orchestrated
	// by the manager, not here.
	Ban(ctx context.Context, user uuid.UUID, bannedBy uuid.UUID, reason string) error
	Unban(ctx context.Context, user uuid.UUID) error
	IsBanned(ctx context.Context, user uuid.UUID) (bool, error)

	// Channel-scoped blocks.
	Block(ctx context.Context, user uuid.UUID, channel string, blockedBy uuid.UUID, reason string) error
	Unblock(ctx context.Context, user uuid.UUID, channel string) error
	IsBlocked(ctx context.Context, user uuid.UUID, channel string) (bool, error)
	ListBlocked(ctx context.Context, user uuid.UUID) ([]string, error)
	ClearBlocks(ctx context.Context, user uuid.UUID) error

	// Channel registry. LoadChannels returns active custom channels only;
	// built-ins are constructed in-process and never persisted.
	SaveChannel(ctx context.Context, ch *model.Channel) error
	DeleteChannel(ctx context.Context, name string) error
	LoadChannels(ctx context.Context) ([]*model.Channel, error)

	// Per-user channel quota tracking.
	ChannelCount(ctx context.Context, user uuid.UUID) (int, error)
	RecordChannelCreation(ctx context.Context, user uuid.UUID, channel string) error
	RecordChannelDeletion(ctx context.Context, user uuid.UUID, channel string) error

	// Append-only chat log. History returns newest first; the file
	// backend keeps no log and returns an empty slice.
	LogMessage(ctx context.Context, channel, sender, message string) error
	History(ctx context.Context, channel string, limit int) ([]model.ChatMessage, error)

	Close() error
}
