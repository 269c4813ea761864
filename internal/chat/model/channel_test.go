package model

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func publicTestChannel() *Channel {
	return NewChannel("General", "[G]", false, uuid.Nil, "", "")
}

func privateTestChannel(owner uuid.UUID) *Channel {
	return NewChannel("clan", "[C]", true, owner, "clan chat", "")
}

func TestNewChannelNormalizesName(t *testing.T) {
	ch := publicTestChannel()
	assert.Equal(t, "general", ch.Name)
	assert.True(t, ch.AllowInvites)
	assert.Equal(t, DefaultMaxMembers, ch.MaxMembers)
}

func TestCanJoin(t *testing.T) {
	owner := uuid.New()

	t.Run("public channel admits anyone", func(t *testing.T) {
		ch := publicTestChannel()
		assert.True(t, ch.CanJoin(Access{HasRequiredCapability: true}))
	})

	t.Run("private channel needs a role", func(t *testing.T) {
		ch := privateTestChannel(owner)
		assert.False(t, ch.CanJoin(Access{HasRequiredCapability: true}))
		assert.True(t, ch.CanJoin(Access{Role: RoleTrusted, HasRequiredCapability: true}))
		assert.True(t, ch.CanJoin(Access{Role: RoleManager, HasRequiredCapability: true}))
		assert.True(t, ch.CanJoin(Access{Role: RoleOwner, HasRequiredCapability: true}))
		assert.False(t, ch.CanJoin(Access{Role: RoleMuted, HasRequiredCapability: true}))
	})

	t.Run("globally banned users are kept out", func(t *testing.T) {
		ch := publicTestChannel()
		assert.False(t, ch.CanJoin(Access{Banned: true, HasRequiredCapability: true}))
	})

	t.Run("banned owner may still enter their own channel", func(t *testing.T) {
		ch := privateTestChannel(owner)
		assert.True(t, ch.CanJoin(Access{Role: RoleOwner, Banned: true, HasRequiredCapability: true}))
	})

	t.Run("channel-level banned role wins over ownership", func(t *testing.T) {
		ch := publicTestChannel()
		assert.False(t, ch.CanJoin(Access{Role: RoleBanned, HasRequiredCapability: true}))
	})

	t.Run("full channel rejects", func(t *testing.T) {
		ch := publicTestChannel()
		ch.MaxMembers = 2
		assert.False(t, ch.CanJoin(Access{MemberCount: 2, HasRequiredCapability: true}))
		assert.True(t, ch.CanJoin(Access{MemberCount: 1, HasRequiredCapability: true}))
	})

	t.Run("capability gate", func(t *testing.T) {
		ch := NewChannel("staff", "[S]", false, uuid.Nil, "", "chat.staff")
		assert.False(t, ch.CanJoin(Access{}))
		assert.True(t, ch.CanJoin(Access{HasRequiredCapability: true}))
	})

	t.Run("private gated channel admits on the capability alone", func(t *testing.T) {
		ch := NewChannel("staff", "[S]", true, uuid.Nil, "", "chat.staff")
		assert.False(t, ch.CanJoin(Access{}))
		assert.True(t, ch.CanJoin(Access{HasRequiredCapability: true}))
	})
}

func TestCanSpeak(t *testing.T) {
	ch := publicTestChannel()

	t.Run("plain member speaks", func(t *testing.T) {
		assert.True(t, ch.CanSpeak(Access{}))
	})

	t.Run("muted and banned cannot", func(t *testing.T) {
		assert.False(t, ch.CanSpeak(Access{Role: RoleMuted}))
		assert.False(t, ch.CanSpeak(Access{Role: RoleBanned}))
		assert.False(t, ch.CanSpeak(Access{Banned: true}))
	})

	t.Run("freeze silences plain members only", func(t *testing.T) {
		frozen := publicTestChannel()
		frozen.Frozen = true
		assert.False(t, frozen.CanSpeak(Access{}))
		assert.False(t, frozen.CanSpeak(Access{Role: RoleTrusted}))
		assert.True(t, frozen.CanSpeak(Access{Role: RoleOwner}))
		assert.True(t, frozen.CanSpeak(Access{Role: RoleManager}))
		assert.True(t, frozen.CanSpeak(Access{Admin: true}))
	})

	t.Run("freeze does not let a muted manager speak", func(t *testing.T) {
		frozen := publicTestChannel()
		frozen.Frozen = true
		assert.False(t, frozen.CanSpeak(Access{Role: RoleMuted, Admin: false}))
	})
}

func TestCanReceive(t *testing.T) {
	owner := uuid.New()

	t.Run("banned users receive nothing", func(t *testing.T) {
		ch := publicTestChannel()
		assert.False(t, ch.CanReceive(Access{Banned: true}))
		assert.False(t, ch.CanReceive(Access{Role: RoleBanned}))
	})

	t.Run("capability-gated private channel", func(t *testing.T) {
		ch := NewChannel("dev", "[D]", true, owner, "", "chat.dev")
		assert.False(t, ch.CanReceive(Access{}))
		assert.True(t, ch.CanReceive(Access{HasRequiredCapability: true}))
	})

	t.Run("ungated private channel delivers to members", func(t *testing.T) {
		ch := privateTestChannel(owner)
		assert.True(t, ch.CanReceive(Access{Member: true}))
	})
}

func TestCanInvite(t *testing.T) {
	owner := uuid.New()
	ch := privateTestChannel(owner)

	assert.True(t, ch.CanInvite(Access{Role: RoleOwner}))
	assert.True(t, ch.CanInvite(Access{Role: RoleManager}))
	assert.True(t, ch.CanInvite(Access{Role: RoleTrusted}))
	assert.False(t, ch.CanInvite(Access{}))

	t.Run("invites disabled blocks everyone below manager", func(t *testing.T) {
		closed := privateTestChannel(owner)
		closed.AllowInvites = false
		assert.True(t, closed.CanInvite(Access{Role: RoleOwner}))
		assert.True(t, closed.CanInvite(Access{Role: RoleManager}))
		assert.False(t, closed.CanInvite(Access{Role: RoleTrusted}))
	})

	t.Run("anyone may invite to an open public channel", func(t *testing.T) {
		open := publicTestChannel()
		assert.True(t, open.CanInvite(Access{}))
	})
}
