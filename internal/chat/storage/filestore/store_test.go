package filestore

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/If-Master/ChatControlPlugin/internal/chat/model"
	"github.com/If-Master/ChatControlPlugin/pkg/logger"
)

func newTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	dir := t.TempDir()
	st, err := New(dir, logger.NewNop())
	require.NoError(t, err)
	return st, dir
}

func reopen(t *testing.T, dir string) *Store {
	t.Helper()
	st, err := New(dir, logger.NewNop())
	require.NoError(t, err)
	return st
}

func TestFileStoreIsNotRelational(t *testing.T) {
	st, _ := newTestStore(t)
	assert.False(t, st.Relational())
}

func TestMembershipRoundTrip(t *testing.T) {
	ctx := context.Background()
	st, dir := newTestStore(t)
	user := uuid.New()

	require.NoError(t, st.AddMember(ctx, user, "clan"))
	// adding twice must not duplicate
	require.NoError(t, st.AddMember(ctx, user, "clan"))

	ok, err := st.IsMember(ctx, user, "clan")
	require.NoError(t, err)
	assert.True(t, ok)

	channels, err := st.ListChannels(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, []string{"clan"}, channels)

	members, err := st.ListMembers(ctx, "clan")
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{user}, members)

	// survives a reload
	st2 := reopen(t, dir)
	ok, err = st2.IsMember(ctx, user, "clan")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, st2.RemoveMember(ctx, user, "clan"))
	ok, err = st2.IsMember(ctx, user, "clan")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRoleLifecycle(t *testing.T) {
	ctx := context.Background()
	st, dir := newTestStore(t)
	user := uuid.New()
	granter := uuid.New()

	role, err := st.GetRole(ctx, user, "clan")
	require.NoError(t, err)
	assert.Equal(t, model.RoleNone, role)

	require.NoError(t, st.SetRole(ctx, user, "clan", model.RoleManager, granter))
	role, err = st.GetRole(ctx, user, "clan")
	require.NoError(t, err)
	assert.Equal(t, model.RoleManager, role)

	t.Run("invalid role is rejected before write", func(t *testing.T) {
		assert.Error(t, st.SetRole(ctx, user, "clan", model.Role("op"), granter))
		assert.Error(t, st.SetRole(ctx, user, "clan", model.RoleNone, granter))
	})

	st2 := reopen(t, dir)
	role, err = st2.GetRole(ctx, user, "clan")
	require.NoError(t, err)
	assert.Equal(t, model.RoleManager, role)

	require.NoError(t, st2.RemoveRole(ctx, user, "clan"))
	role, err = st2.GetRole(ctx, user, "clan")
	require.NoError(t, err)
	assert.Equal(t, model.RoleNone, role)
}

func TestUnmuteOnlyLiftsMutes(t *testing.T) {
	ctx := context.Background()
	st, _ := newTestStore(t)
	user := uuid.New()
	granter := uuid.New()

	t.Run("unmuting a manager keeps the role", func(t *testing.T) {
		require.NoError(t, st.SetRole(ctx, user, "clan", model.RoleManager, granter))
		require.NoError(t, st.Unmute(ctx, user, "clan"))
		role, err := st.GetRole(ctx, user, "clan")
		require.NoError(t, err)
		assert.Equal(t, model.RoleManager, role)
	})

	t.Run("unmuting a muted user clears it", func(t *testing.T) {
		require.NoError(t, st.SetRole(ctx, user, "clan", model.RoleMuted, granter))
		require.NoError(t, st.Unmute(ctx, user, "clan"))
		role, err := st.GetRole(ctx, user, "clan")
		require.NoError(t, err)
		assert.Equal(t, model.RoleNone, role)
	})

	t.Run("unmuting nobody is a no-op", func(t *testing.T) {
		require.NoError(t, st.Unmute(ctx, uuid.New(), "clan"))
	})
}

func TestBanRoundTrip(t *testing.T) {
	ctx := context.Background()
	st, dir := newTestStore(t)
	user := uuid.New()
	admin := uuid.New()

	banned, err := st.IsBanned(ctx, user)
	require.NoError(t, err)
	assert.False(t, banned)

	require.NoError(t, st.Ban(ctx, user, admin, "spam"))
	st2 := reopen(t, dir)
	banned, err = st2.IsBanned(ctx, user)
	require.NoError(t, err)
	assert.True(t, banned)

	require.NoError(t, st2.Unban(ctx, user))
	banned, err = st2.IsBanned(ctx, user)
	require.NoError(t, err)
	assert.False(t, banned)
}

func TestBlockRoundTrip(t *testing.T) {
	ctx := context.Background()
	st, dir := newTestStore(t)
	user := uuid.New()
	owner := uuid.New()

	require.NoError(t, st.Block(ctx, user, "clan", owner, "kicked"))
	require.NoError(t, st.Block(ctx, user, "trade", owner, "left"))

	blocked, err := st.IsBlocked(ctx, user, "clan")
	require.NoError(t, err)
	assert.True(t, blocked)

	names, err := st.ListBlocked(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, []string{"clan", "trade"}, names)

	st2 := reopen(t, dir)
	require.NoError(t, st2.Unblock(ctx, user, "clan"))
	blocked, err = st2.IsBlocked(ctx, user, "clan")
	require.NoError(t, err)
	assert.False(t, blocked)

	require.NoError(t, st2.ClearBlocks(ctx, user))
	names, err = st2.ListBlocked(ctx, user)
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestChannelRegistryRoundTrip(t *testing.T) {
	ctx := context.Background()
	st, dir := newTestStore(t)
	owner := uuid.New()

	ch := model.NewChannel("Clan", "[C]", true, owner, "clan chat", "chat.vip")
	require.NoError(t, st.SaveChannel(ctx, ch))

	st2 := reopen(t, dir)
	channels, err := st2.LoadChannels(ctx)
	require.NoError(t, err)
	require.Len(t, channels, 1)

	got := channels[0]
	assert.Equal(t, "clan", got.Name)
	assert.Equal(t, "[C]", got.Prefix)
	assert.True(t, got.Private)
	assert.Equal(t, owner, got.Owner)
	assert.Equal(t, "clan chat", got.Description)
	assert.Equal(t, "chat.vip", got.RequiredCapability)

	require.NoError(t, st2.DeleteChannel(ctx, "clan"))
	channels, err = st2.LoadChannels(ctx)
	require.NoError(t, err)
	assert.Empty(t, channels)
}

func TestChannelsAreStoredByValue(t *testing.T) {
	ctx := context.Background()
	st, _ := newTestStore(t)
	owner := uuid.New()

	ch := model.NewChannel("clan", "[C]", true, owner, "", "")
	require.NoError(t, st.SaveChannel(ctx, ch))

	// mutating the caller's struct must not leak into the registry
	ch.Owner = uuid.New()
	channels, err := st.LoadChannels(ctx)
	require.NoError(t, err)
	require.Len(t, channels, 1)
	assert.Equal(t, owner, channels[0].Owner)

	// nor may mutating a loaded struct
	channels[0].Owner = uuid.New()
	again, err := st.LoadChannels(ctx)
	require.NoError(t, err)
	require.Len(t, again, 1)
	assert.Equal(t, owner, again[0].Owner)
}

func TestQuotaTracking(t *testing.T) {
	ctx := context.Background()
	st, dir := newTestStore(t)
	user := uuid.New()

	count, err := st.ChannelCount(ctx, user)
	require.NoError(t, err)
	assert.Zero(t, count)

	require.NoError(t, st.RecordChannelCreation(ctx, user, "a"))
	require.NoError(t, st.RecordChannelCreation(ctx, user, "b"))

	st2 := reopen(t, dir)
	count, err = st2.ChannelCount(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	require.NoError(t, st2.RecordChannelDeletion(ctx, user, "a"))
	require.NoError(t, st2.RecordChannelDeletion(ctx, user, "b"))
	// deleting below zero must clamp
	require.NoError(t, st2.RecordChannelDeletion(ctx, user, "ghost"))
	count, err = st2.ChannelCount(ctx, user)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestCorruptEntriesAreSkipped(t *testing.T) {
	dir := t.TempDir()
	good := uuid.New()
	doc := "chats:\n" +
		"  clan:\n" +
		"    members:\n" +
		"      - not-a-uuid\n" +
		"      - " + good.String() + "\n" +
		"banned_users:\n" +
		"  - also-garbage\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "chats.yml"), []byte(doc), 0o644))

	st, err := New(dir, logger.NewNop())
	require.NoError(t, err)

	members, err := st.ListMembers(context.Background(), "clan")
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{good}, members)
}

func TestFileStoreKeepsNoLog(t *testing.T) {
	ctx := context.Background()
	st, _ := newTestStore(t)

	require.NoError(t, st.LogMessage(ctx, "public", "alice", "hi"))
	msgs, err := st.History(ctx, "public", 10)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}
