package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Durable rows for the relational backend. Removal is modelled as
// is_active = false so audit history survives; chat_permissions is the
// one table that deletes physically (a removed role has no audit value
// beyond granted_at, which the next grant overwrites anyway).

type MembershipRecord struct {
	bun.BaseModel `bun:"table:chat_memberships"`

	ID         int64     `bun:",pk,autoincrement"`
	PlayerUUID uuid.UUID `bun:"player_uuid,type:uuid,notnull,unique:unique_membership"`
	ChatName   string    `bun:"chat_name,notnull,unique:unique_membership"`
	JoinedAt   time.Time `bun:"joined_at,nullzero,notnull,default:current_timestamp"`
	IsActive   bool      `bun:"is_active,notnull,default:true"`
}

type PermissionRecord struct {
	bun.BaseModel `bun:"table:chat_permissions"`

	ID              int64     `bun:",pk,autoincrement"`
	PlayerUUID      uuid.UUID `bun:"player_uuid,type:uuid,notnull,unique:unique_permission"`
	ChatName        string    `bun:"chat_name,notnull,unique:unique_permission"`
	PermissionLevel string    `bun:"permission_level,notnull"`
	GrantedAt       time.Time `bun:"granted_at,nullzero,notnull,default:current_timestamp"`
	GrantedBy       uuid.UUID `bun:"granted_by,type:uuid,nullzero"`
}

type BanRecord struct {
	bun.BaseModel `bun:"table:chat_bans"`

	ID         int64     `bun:",pk,autoincrement"`
	PlayerUUID uuid.UUID `bun:"player_uuid,type:uuid,notnull,unique"`
	BannedAt   time.Time `bun:"banned_at,nullzero,notnull,default:current_timestamp"`
	BannedBy   uuid.UUID `bun:"banned_by,type:uuid,nullzero"`
	Reason     string    `bun:"reason"`
	IsActive   bool      `bun:"is_active,notnull,default:true"`
}

type BlockRecord struct {
	bun.BaseModel `bun:"table:channel_blocks"`

	ID          int64     `bun:",pk,autoincrement"`
	PlayerUUID  uuid.UUID `bun:"player_uuid,type:uuid,notnull,unique:unique_block"`
	ChannelName string    `bun:"channel_name,notnull,unique:unique_block"`
	BlockedAt   time.Time `bun:"blocked_at,nullzero,notnull,default:current_timestamp"`
	BlockedBy   uuid.UUID `bun:"blocked_by,type:uuid,nullzero"`
	Reason      string    `bun:"reason"`
	IsActive    bool      `bun:"is_active,notnull,default:true"`
}

type ChannelRecord struct {
	bun.BaseModel `bun:"table:custom_channels"`

	ID                 int64     `bun:",pk,autoincrement"`
	ChannelName        string    `bun:"channel_name,notnull,unique"`
	ChannelPrefix      string    `bun:"channel_prefix"`
	IsPrivate          bool      `bun:"is_private,notnull,default:false"`
	OwnerUUID          uuid.UUID `bun:"owner_uuid,type:uuid,notnull"`
	Description        string    `bun:"description"`
	RequiredPermission string    `bun:"required_permission"`
	CreatedAt          time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	IsActive           bool      `bun:"is_active,notnull,default:true"`
}

func (r *ChannelRecord) ToChannel() *Channel {
	ch := NewChannel(r.ChannelName, r.ChannelPrefix, r.IsPrivate, r.OwnerUUID, r.Description, r.RequiredPermission)
	if !r.CreatedAt.IsZero() {
		ch.CreatedAt = r.CreatedAt
	}
	return ch
}

func RecordFromChannel(ch *Channel) *ChannelRecord {
	return &ChannelRecord{
		ChannelName:        ch.Name,
		ChannelPrefix:      ch.Prefix,
		IsPrivate:          ch.Private,
		OwnerUUID:          ch.Owner,
		Description:        ch.Description,
		RequiredPermission: ch.RequiredCapability,
		CreatedAt:          ch.CreatedAt,
		IsActive:           true,
	}
}

type PlayerChannelsRecord struct {
	bun.BaseModel `bun:"table:player_channels,alias:player_channels"`

	PlayerUUID   uuid.UUID `bun:"player_uuid,pk,type:uuid"`
	ChannelCount int       `bun:"channel_count,notnull,default:0"`
	LastUpdated  time.Time `bun:"last_updated,nullzero,notnull,default:current_timestamp"`
}

type ChannelOwnershipRecord struct {
	bun.BaseModel `bun:"table:channel_ownership"`

	ID          int64     `bun:",pk,autoincrement"`
	PlayerUUID  uuid.UUID `bun:"player_uuid,type:uuid,notnull,unique:unique_player_channel"`
	ChannelName string    `bun:"channel_name,notnull,unique:unique_player_channel"`
	CreatedAt   time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	IsActive    bool      `bun:"is_active,notnull,default:true"`
	ServerName  string    `bun:"server_name"`
}

// ChatLogRecord is append-only; there is no soft delete.
type ChatLogRecord struct {
	bun.BaseModel `bun:"table:chat_logs"`

	ID         int64     `bun:",pk,autoincrement"`
	ChatName   string    `bun:"chat_name,notnull"`
	Sender     string    `bun:"sender,notnull"`
	Message    string    `bun:"message,notnull"`
	Timestamp  time.Time `bun:"timestamp,nullzero,notnull,default:current_timestamp"`
	ServerName string    `bun:"server_name"`
}

// ChatMessage is the read-side shape handed to the dispatcher.
type ChatMessage struct {
	Sender    string
	Message   string
	Timestamp time.Time
}
