package sqlstore

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	"github.com/If-Master/ChatControlPlugin/internal/chat/model"
	"github.com/If-Master/ChatControlPlugin/pkg/logger"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "chat.db")
	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	require.NoError(t, err)
	db := bun.NewDB(sqldb, sqlitedialect.New())

	st := New(db, logger.NewNop(), "test-server")
	require.NoError(t, st.Init(context.Background()))
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestSQLStoreIsRelational(t *testing.T) {
	st := newTestStore(t)
	assert.True(t, st.Relational())
}

func TestMembershipUpsert(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	user := uuid.New()

	require.NoError(t, st.AddMember(ctx, user, "clan"))
	require.NoError(t, st.AddMember(ctx, user, "clan"))

	members, err := st.ListMembers(ctx, "clan")
	require.NoError(t, err)
	assert.Len(t, members, 1)

	t.Run("remove deactivates and re-add restores", func(t *testing.T) {
		require.NoError(t, st.RemoveMember(ctx, user, "clan"))
		ok, err := st.IsMember(ctx, user, "clan")
		require.NoError(t, err)
		assert.False(t, ok)

		require.NoError(t, st.AddMember(ctx, user, "clan"))
		ok, err = st.IsMember(ctx, user, "clan")
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("list channels for user", func(t *testing.T) {
		require.NoError(t, st.AddMember(ctx, user, "trade"))
		channels, err := st.ListChannels(ctx, user)
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"clan", "trade"}, channels)
	})
}

func TestRoleUpsertAndCache(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	user := uuid.New()
	granter := uuid.New()

	role, err := st.GetRole(ctx, user, "clan")
	require.NoError(t, err)
	assert.Equal(t, model.RoleNone, role)

	require.NoError(t, st.SetRole(ctx, user, "clan", model.RoleTrusted, granter))
	role, err = st.GetRole(ctx, user, "clan")
	require.NoError(t, err)
	assert.Equal(t, model.RoleTrusted, role)

	// overwrite through the same unique key
	require.NoError(t, st.SetRole(ctx, user, "clan", model.RoleManager, granter))
	role, err = st.GetRole(ctx, user, "clan")
	require.NoError(t, err)
	assert.Equal(t, model.RoleManager, role)

	roles, err := st.ListRoles(ctx, "clan")
	require.NoError(t, err)
	assert.Equal(t, map[uuid.UUID]model.Role{user: model.RoleManager}, roles)

	require.NoError(t, st.RemoveRole(ctx, user, "clan"))
	role, err = st.GetRole(ctx, user, "clan")
	require.NoError(t, err)
	assert.Equal(t, model.RoleNone, role)
}

func TestUnmuteGuardsRole(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	user := uuid.New()
	granter := uuid.New()

	require.NoError(t, st.SetRole(ctx, user, "clan", model.RoleManager, granter))
	require.NoError(t, st.Unmute(ctx, user, "clan"))
	role, err := st.GetRole(ctx, user, "clan")
	require.NoError(t, err)
	assert.Equal(t, model.RoleManager, role, "unmute must not clear a non-muted role")

	require.NoError(t, st.SetRole(ctx, user, "clan", model.RoleMuted, granter))
	require.NoError(t, st.Unmute(ctx, user, "clan"))
	role, err = st.GetRole(ctx, user, "clan")
	require.NoError(t, err)
	assert.Equal(t, model.RoleNone, role)
}

func TestBanUpsertAndCacheInvalidation(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	user := uuid.New()
	admin := uuid.New()

	banned, err := st.IsBanned(ctx, user)
	require.NoError(t, err)
	assert.False(t, banned)

	// the negative result is now cached; Ban must invalidate it
	require.NoError(t, st.Ban(ctx, user, admin, "spam"))
	banned, err = st.IsBanned(ctx, user)
	require.NoError(t, err)
	assert.True(t, banned)

	// banning again upserts the same row
	require.NoError(t, st.Ban(ctx, user, admin, "still spam"))

	require.NoError(t, st.Unban(ctx, user))
	banned, err = st.IsBanned(ctx, user)
	require.NoError(t, err)
	assert.False(t, banned)
}

func TestBlockLifecycle(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	user := uuid.New()
	owner := uuid.New()

	require.NoError(t, st.Block(ctx, user, "clan", owner, "kicked"))
	require.NoError(t, st.Block(ctx, user, "trade", owner, "left"))

	blocked, err := st.IsBlocked(ctx, user, "clan")
	require.NoError(t, err)
	assert.True(t, blocked)

	names, err := st.ListBlocked(ctx, user)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"clan", "trade"}, names)

	require.NoError(t, st.Unblock(ctx, user, "clan"))
	blocked, err = st.IsBlocked(ctx, user, "clan")
	require.NoError(t, err)
	assert.False(t, blocked)

	require.NoError(t, st.ClearBlocks(ctx, user))
	names, err = st.ListBlocked(ctx, user)
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestChannelRegistry(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	owner := uuid.New()

	ch := model.NewChannel("clan", "[C]", true, owner, "clan chat", "chat.vip")
	require.NoError(t, st.SaveChannel(ctx, ch))

	// saving again updates in place
	ch.Description = "updated"
	require.NoError(t, st.SaveChannel(ctx, ch))

	channels, err := st.LoadChannels(ctx)
	require.NoError(t, err)
	require.Len(t, channels, 1)
	assert.Equal(t, "clan", channels[0].Name)
	assert.Equal(t, "updated", channels[0].Description)
	assert.Equal(t, owner, channels[0].Owner)

	t.Run("delete hides, re-save revives", func(t *testing.T) {
		require.NoError(t, st.DeleteChannel(ctx, "clan"))
		channels, err := st.LoadChannels(ctx)
		require.NoError(t, err)
		assert.Empty(t, channels)

		require.NoError(t, st.SaveChannel(ctx, ch))
		channels, err = st.LoadChannels(ctx)
		require.NoError(t, err)
		assert.Len(t, channels, 1)
	})
}

func TestQuotaCounter(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	user := uuid.New()

	count, err := st.ChannelCount(ctx, user)
	require.NoError(t, err)
	assert.Zero(t, count)

	require.NoError(t, st.RecordChannelCreation(ctx, user, "a"))
	require.NoError(t, st.RecordChannelCreation(ctx, user, "b"))
	count, err = st.ChannelCount(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	require.NoError(t, st.RecordChannelDeletion(ctx, user, "a"))
	require.NoError(t, st.RecordChannelDeletion(ctx, user, "b"))
	require.NoError(t, st.RecordChannelDeletion(ctx, user, "b"))
	count, err = st.ChannelCount(ctx, user)
	require.NoError(t, err)
	assert.Zero(t, count, "counter must clamp at zero")
}

func TestChatLogHistory(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	require.NoError(t, st.LogMessage(ctx, "public", "alice", "first"))
	require.NoError(t, st.LogMessage(ctx, "public", "bob", "second"))
	require.NoError(t, st.LogMessage(ctx, "clan", "carol", "elsewhere"))

	msgs, err := st.History(ctx, "public", 10)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	for _, m := range msgs {
		assert.NotEqual(t, "carol", m.Sender)
	}

	t.Run("limit defaults when non-positive", func(t *testing.T) {
		msgs, err := st.History(ctx, "public", 0)
		require.NoError(t, err)
		assert.Len(t, msgs, 2)
	})
}
