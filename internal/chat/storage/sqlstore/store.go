package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"github.com/uptrace/bun"

	"github.com/If-Master/ChatControlPlugin/internal/chat/model"
	"github.com/If-Master/ChatControlPlugin/pkg/errors"
	"github.com/If-Master/ChatControlPlugin/pkg/logger"
)

const (
	cacheTTL     = 30 * time.Second
	cacheCleanup = time.Minute
)

// Store is the relational backend. Hot lookups (global bans, per-channel
// roles) go through a short-TTL read cache that every mutation of the
// same key invalidates.
type Store struct {
	db         *bun.DB
	log        *logger.Logger
	cache      *cache.Cache
	serverName string
}

func New(db *bun.DB, log *logger.Logger, serverName string) *Store {
	return &Store{
		db:         db,
		log:        log,
		cache:      cache.New(cacheTTL, cacheCleanup),
		serverName: serverName,
	}
}

// Init creates every table the store touches. CREATE TABLE IF NOT EXISTS
// keeps startup idempotent across restarts.
func (s *Store) Init(ctx context.Context) error {
	models := []any{
		(*model.MembershipRecord)(nil),
		(*model.PermissionRecord)(nil),
		(*model.BanRecord)(nil),
		(*model.BlockRecord)(nil),
		(*model.ChannelRecord)(nil),
		(*model.PlayerChannelsRecord)(nil),
		(*model.ChannelOwnershipRecord)(nil),
		(*model.ChatLogRecord)(nil),
	}
	for _, m := range models {
		if _, err := s.db.NewCreateTable().Model(m).IfNotExists().Exec(ctx); err != nil {
			return errors.ErrStorageIO("create table", err)
		}
	}
	return nil
}

func (s *Store) Relational() bool { return true }

func (s *Store) Close() error { return s.db.Close() }

func banKey(user uuid.UUID) string { return "ban:" + user.String() }

func roleKey(user uuid.UUID, channel string) string {
	return "role:" + user.String() + ":" + channel
}

// ---- membership ----

func (s *Store) AddMember(ctx context.Context, user uuid.UUID, channel string) error {
	rec := &model.MembershipRecord{
		PlayerUUID: user,
		ChatName:   channel,
		JoinedAt:   time.Now(),
		IsActive:   true,
	}
	_, err := s.db.NewInsert().
		Model(rec).
		On("CONFLICT (player_uuid, chat_name) DO UPDATE").
		Set("is_active = TRUE").
		Set("joined_at = EXCLUDED.joined_at").
		Exec(ctx)
	if err != nil {
		return errors.ErrStorageIO("add member", err)
	}
	return nil
}

func (s *Store) RemoveMember(ctx context.Context, user uuid.UUID, channel string) error {
	_, err := s.db.NewUpdate().
		Model((*model.MembershipRecord)(nil)).
		Set("is_active = FALSE").
		Where("player_uuid = ?", user).
		Where("chat_name = ?", channel).
		Exec(ctx)
	if err != nil {
		return errors.ErrStorageIO("remove member", err)
	}
	return nil
}

func (s *Store) IsMember(ctx context.Context, user uuid.UUID, channel string) (bool, error) {
	exists, err := s.db.NewSelect().
		Model((*model.MembershipRecord)(nil)).
		Where("player_uuid = ?", user).
		Where("chat_name = ?", channel).
		Where("is_active = TRUE").
		Exists(ctx)
	if err != nil {
		return false, errors.ErrStorageIO("check member", err)
	}
	return exists, nil
}

func (s *Store) ListChannels(ctx context.Context, user uuid.UUID) ([]string, error) {
	var names []string
	err := s.db.NewSelect().
		Model((*model.MembershipRecord)(nil)).
		Column("chat_name").
		Where("player_uuid = ?", user).
		Where("is_active = TRUE").
		Scan(ctx, &names)
	if err != nil {
		return nil, errors.ErrStorageIO("list channels", err)
	}
	return names, nil
}

func (s *Store) ListMembers(ctx context.Context, channel string) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := s.db.NewSelect().
		Model((*model.MembershipRecord)(nil)).
		Column("player_uuid").
		Where("chat_name = ?", channel).
		Where("is_active = TRUE").
		Scan(ctx, &ids)
	if err != nil {
		return nil, errors.ErrStorageIO("list members", err)
	}
	return ids, nil
}

// ---- permissions ----

func (s *Store) SetRole(ctx context.Context, user uuid.UUID, channel string, role model.Role, grantedBy uuid.UUID) error {
	if !role.Valid() || role == model.RoleNone {
		return errors.ErrInvalidRole
	}
	rec := &model.PermissionRecord{
		PlayerUUID:      user,
		ChatName:        channel,
		PermissionLevel: string(role),
		GrantedAt:       time.Now(),
		GrantedBy:       grantedBy,
	}
	_, err := s.db.NewInsert().
		Model(rec).
		On("CONFLICT (player_uuid, chat_name) DO UPDATE").
		Set("permission_level = EXCLUDED.permission_level").
		Set("granted_at = EXCLUDED.granted_at").
		Set("granted_by = EXCLUDED.granted_by").
		Exec(ctx)
	if err != nil {
		return errors.ErrStorageIO("set role", err)
	}
	s.cache.Delete(roleKey(user, channel))
	return nil
}

func (s *Store) GetRole(ctx context.Context, user uuid.UUID, channel string) (model.Role, error) {
	key := roleKey(user, channel)
	if v, ok := s.cache.Get(key); ok {
		return v.(model.Role), nil
	}
	rec := new(model.PermissionRecord)
	err := s.db.NewSelect().
		Model(rec).
		Where("player_uuid = ?", user).
		Where("chat_name = ?", channel).
		Scan(ctx)
	if err == sql.ErrNoRows {
		s.cache.Set(key, model.RoleNone, cache.DefaultExpiration)
		return model.RoleNone, nil
	}
	if err != nil {
		return model.RoleNone, errors.ErrStorageIO("get role", err)
	}
	role, err := model.ParseRole(rec.PermissionLevel)
	if err != nil {
		// An unparseable stored level counts as no role rather than
		// poisoning every caller.
		s.log.Warnf("ignoring unknown permission level %q for %s in %s", rec.PermissionLevel, user, channel)
		return model.RoleNone, nil
	}
	s.cache.Set(key, role, cache.DefaultExpiration)
	return role, nil
}

func (s *Store) RemoveRole(ctx context.Context, user uuid.UUID, channel string) error {
	_, err := s.db.NewDelete().
		Model((*model.PermissionRecord)(nil)).
		Where("player_uuid = ?", user).
		Where("chat_name = ?", channel).
		Exec(ctx)
	if err != nil {
		return errors.ErrStorageIO("remove role", err)
	}
	s.cache.Delete(roleKey(user, channel))
	return nil
}

func (s *Store) ListRoles(ctx context.Context, channel string) (map[uuid.UUID]model.Role, error) {
	var recs []model.PermissionRecord
	err := s.db.NewSelect().
		Model(&recs).
		Where("chat_name = ?", channel).
		Scan(ctx)
	if err != nil {
		return nil, errors.ErrStorageIO("list roles", err)
	}
	out := make(map[uuid.UUID]model.Role, len(recs))
	for _, rec := range recs {
		role, err := model.ParseRole(rec.PermissionLevel)
		if err != nil {
			s.log.Warnf("ignoring unknown permission level %q for %s in %s", rec.PermissionLevel, rec.PlayerUUID, channel)
			continue
		}
		out[rec.PlayerUUID] = role
	}
	return out, nil
}

// Unmute deletes the permission row only when it is exactly muted, so a
// racing promotion is never clobbered.
func (s *Store) Unmute(ctx context.Context, user uuid.UUID, channel string) error {
	_, err := s.db.NewDelete().
		Model((*model.PermissionRecord)(nil)).
		Where("player_uuid = ?", user).
		Where("chat_name = ?", channel).
		Where("permission_level = ?", string(model.RoleMuted)).
		Exec(ctx)
	if err != nil {
		return errors.ErrStorageIO("unmute", err)
	}
	s.cache.Delete(roleKey(user, channel))
	return nil
}

// ---- bans ----

func (s *Store) Ban(ctx context.Context, user uuid.UUID, bannedBy uuid.UUID, reason string) error {
	rec := &model.BanRecord{
		PlayerUUID: user,
		BannedAt:   time.Now(),
		BannedBy:   bannedBy,
		Reason:     reason,
		IsActive:   true,
	}
	_, err := s.db.NewInsert().
		Model(rec).
		On("CONFLICT (player_uuid) DO UPDATE").
		Set("is_active = TRUE").
		Set("banned_at = EXCLUDED.banned_at").
		Set("banned_by = EXCLUDED.banned_by").
		Set("reason = EXCLUDED.reason").
		Exec(ctx)
	if err != nil {
		return errors.ErrStorageIO("ban", err)
	}
	s.cache.Delete(banKey(user))
	return nil
}

func (s *Store) Unban(ctx context.Context, user uuid.UUID) error {
	_, err := s.db.NewUpdate().
		Model((*model.BanRecord)(nil)).
		Set("is_active = FALSE").
		Where("player_uuid = ?", user).
		Exec(ctx)
	if err != nil {
		return errors.ErrStorageIO("unban", err)
	}
	s.cache.Delete(banKey(user))
	return nil
}

func (s *Store) IsBanned(ctx context.Context, user uuid.UUID) (bool, error) {
	key := banKey(user)
	if v, ok := s.cache.Get(key); ok {
		return v.(bool), nil
	}
	banned, err := s.db.NewSelect().
		Model((*model.BanRecord)(nil)).
		Where("player_uuid = ?", user).
		Where("is_active = TRUE").
		Exists(ctx)
	if err != nil {
		return false, errors.ErrStorageIO("check ban", err)
	}
	s.cache.Set(key, banned, cache.DefaultExpiration)
	return banned, nil
}

// ---- blocks ----

func (s *Store) Block(ctx context.Context, user uuid.UUID, channel string, blockedBy uuid.UUID, reason string) error {
	rec := &model.BlockRecord{
		PlayerUUID:  user,
		ChannelName: channel,
		BlockedAt:   time.Now(),
		BlockedBy:   blockedBy,
		Reason:      reason,
		IsActive:    true,
	}
	_, err := s.db.NewInsert().
		Model(rec).
		On("CONFLICT (player_uuid, channel_name) DO UPDATE").
		Set("is_active = TRUE").
		Set("blocked_at = EXCLUDED.blocked_at").
		Set("blocked_by = EXCLUDED.blocked_by").
		Set("reason = EXCLUDED.reason").
		Exec(ctx)
	if err != nil {
		return errors.ErrStorageIO("block", err)
	}
	return nil
}

func (s *Store) Unblock(ctx context.Context, user uuid.UUID, channel string) error {
	_, err := s.db.NewUpdate().
		Model((*model.BlockRecord)(nil)).
		Set("is_active = FALSE").
		Where("player_uuid = ?", user).
		Where("channel_name = ?", channel).
		Exec(ctx)
	if err != nil {
		return errors.ErrStorageIO("unblock", err)
	}
	return nil
}

func (s *Store) IsBlocked(ctx context.Context, user uuid.UUID, channel string) (bool, error) {
	blocked, err := s.db.NewSelect().
		Model((*model.BlockRecord)(nil)).
		Where("player_uuid = ?", user).
		Where("channel_name = ?", channel).
		Where("is_active = TRUE").
		Exists(ctx)
	if err != nil {
		return false, errors.ErrStorageIO("check block", err)
	}
	return blocked, nil
}

func (s *Store) ListBlocked(ctx context.Context, user uuid.UUID) ([]string, error) {
	var names []string
	err := s.db.NewSelect().
		Model((*model.BlockRecord)(nil)).
		Column("channel_name").
		Where("player_uuid = ?", user).
		Where("is_active = TRUE").
		Scan(ctx, &names)
	if err != nil {
		return nil, errors.ErrStorageIO("list blocked", err)
	}
	return names, nil
}

func (s *Store) ClearBlocks(ctx context.Context, user uuid.UUID) error {
	_, err := s.db.NewUpdate().
		Model((*model.BlockRecord)(nil)).
		Set("is_active = FALSE").
		Where("player_uuid = ?", user).
		Exec(ctx)
	if err != nil {
		return errors.ErrStorageIO("clear blocks", err)
	}
	return nil
}

// ---- channel registry ----

func (s *Store) SaveChannel(ctx context.Context, ch *model.Channel) error {
	rec := model.RecordFromChannel(ch)
	_, err := s.db.NewInsert().
		Model(rec).
		On("CONFLICT (channel_name) DO UPDATE").
		Set("channel_prefix = EXCLUDED.channel_prefix").
		Set("is_private = EXCLUDED.is_private").
		Set("owner_uuid = EXCLUDED.owner_uuid").
		Set("description = EXCLUDED.description").
		Set("required_permission = EXCLUDED.required_permission").
		Set("is_active = TRUE").
		Exec(ctx)
	if err != nil {
		return errors.ErrStorageIO("save channel", err)
	}
	return nil
}

func (s *Store) DeleteChannel(ctx context.Context, name string) error {
	_, err := s.db.NewUpdate().
		Model((*model.ChannelRecord)(nil)).
		Set("is_active = FALSE").
		Where("channel_name = ?", name).
		Exec(ctx)
	if err != nil {
		return errors.ErrStorageIO("delete channel", err)
	}
	return nil
}

func (s *Store) LoadChannels(ctx context.Context) ([]*model.Channel, error) {
	var recs []model.ChannelRecord
	err := s.db.NewSelect().
		Model(&recs).
		Where("is_active = TRUE").
		Scan(ctx)
	if err != nil {
		return nil, errors.ErrStorageIO("load channels", err)
	}
	out := make([]*model.Channel, 0, len(recs))
	for i := range recs {
		out = append(out, recs[i].ToChannel())
	}
	return out, nil
}

// ---- quotas ----

func (s *Store) ChannelCount(ctx context.Context, user uuid.UUID) (int, error) {
	rec := new(model.PlayerChannelsRecord)
	err := s.db.NewSelect().
		Model(rec).
		Where("player_uuid = ?", user).
		Scan(ctx)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, errors.ErrStorageIO("channel count", err)
	}
	return rec.ChannelCount, nil
}

func (s *Store) RecordChannelCreation(ctx context.Context, user uuid.UUID, channel string) error {
	counter := &model.PlayerChannelsRecord{
		PlayerUUID:   user,
		ChannelCount: 1,
		LastUpdated:  time.Now(),
	}
	_, err := s.db.NewInsert().
		Model(counter).
		On("CONFLICT (player_uuid) DO UPDATE").
		Set("channel_count = player_channels.channel_count + 1").
		Set("last_updated = EXCLUDED.last_updated").
		Exec(ctx)
	if err != nil {
		return errors.ErrStorageIO("record channel creation", err)
	}
	ownership := &model.ChannelOwnershipRecord{
		PlayerUUID:  user,
		ChannelName: channel,
		CreatedAt:   time.Now(),
		IsActive:    true,
		ServerName:  s.serverName,
	}
	_, err = s.db.NewInsert().
		Model(ownership).
		On("CONFLICT (player_uuid, channel_name) DO UPDATE").
		Set("is_active = TRUE").
		Set("server_name = EXCLUDED.server_name").
		Exec(ctx)
	if err != nil {
		return errors.ErrStorageIO("record channel ownership", err)
	}
	return nil
}

func (s *Store) RecordChannelDeletion(ctx context.Context, user uuid.UUID, channel string) error {
	// CASE instead of GREATEST so the statement runs on sqlite too.
	_, err := s.db.NewUpdate().
		Model((*model.PlayerChannelsRecord)(nil)).
		Set("channel_count = CASE WHEN channel_count > 0 THEN channel_count - 1 ELSE 0 END").
		Set("last_updated = ?", time.Now()).
		Where("player_uuid = ?", user).
		Exec(ctx)
	if err != nil {
		return errors.ErrStorageIO("record channel deletion", err)
	}
	_, err = s.db.NewUpdate().
		Model((*model.ChannelOwnershipRecord)(nil)).
		Set("is_active = FALSE").
		Where("player_uuid = ?", user).
		Where("channel_name = ?", channel).
		Exec(ctx)
	if err != nil {
		return errors.ErrStorageIO("record ownership deletion", err)
	}
	return nil
}

// ---- chat log ----

func (s *Store) LogMessage(ctx context.Context, channel, sender, message string) error {
	rec := &model.ChatLogRecord{
		ChatName:   channel,
		Sender:     sender,
		Message:    message,
		Timestamp:  time.Now(),
		ServerName: s.serverName,
	}
	if _, err := s.db.NewInsert().Model(rec).Exec(ctx); err != nil {
		return errors.ErrStorageIO("log message", err)
	}
	return nil
}

func (s *Store) History(ctx context.Context, channel string, limit int) ([]model.ChatMessage, error) {
	if limit <= 0 {
		limit = 50
	}
	var recs []model.ChatLogRecord
	err := s.db.NewSelect().
		Model(&recs).
		Where("chat_name = ?", channel).
		Order("timestamp DESC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, errors.ErrStorageIO("history", err)
	}
	out := make([]model.ChatMessage, 0, len(recs))
	for _, rec := range recs {
		out = append(out, model.ChatMessage{
			Sender:    rec.Sender,
			Message:   rec.Message,
			Timestamp: rec.Timestamp,
		})
	}
	return out, nil
}

// Ping verifies the connection before the selector commits to this
// backend.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}
	return nil
}
