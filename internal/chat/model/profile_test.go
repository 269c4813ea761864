package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProfileJoinSwitchesFromPublic(t *testing.T) {
	p := NewUserChatProfile()
	assert.Equal(t, PublicChannel, p.CurrentChat())

	p.JoinChat("Clan")
	assert.Equal(t, "clan", p.CurrentChat())
	assert.True(t, p.IsInChat("CLAN"))

	// already off public, a further join keeps the current channel
	p.JoinChat("trade")
	assert.Equal(t, "clan", p.CurrentChat())
}

func TestProfileLeaveFallsBack(t *testing.T) {
	p := NewUserChatProfile()
	p.JoinChat("clan")
	p.SetCurrentChat("clan")

	p.LeaveChat("clan")
	assert.False(t, p.IsInChat("clan"))
	assert.Equal(t, PublicChannel, p.CurrentChat())

	t.Run("leaving everything restores public", func(t *testing.T) {
		p := NewUserChatProfile()
		p.JoinChat("a")
		p.JoinChat("b")
		p.LeaveAllChats()
		assert.Equal(t, PublicChannel, p.CurrentChat())
		assert.Equal(t, []string{PublicChannel}, p.JoinedChats())
	})
}

func TestProfileVisibility(t *testing.T) {
	p := NewUserChatProfile()
	p.JoinChat("trade")

	p.ToggleChatVisibility("trade")
	assert.True(t, p.IsChatHidden("trade"))
	assert.NotContains(t, p.VisibleChats(), "trade")

	p.ToggleChatVisibility("trade")
	assert.False(t, p.IsChatHidden("trade"))
	assert.Contains(t, p.VisibleChats(), "trade")
}

func TestProfileMessageCounters(t *testing.T) {
	p := NewUserChatProfile()
	p.RecordMessage("public")
	p.RecordMessage("public")
	p.RecordMessage("clan")

	assert.Equal(t, 2, p.MessageCount("public"))
	assert.Equal(t, 3, p.TotalMessageCount())
}

func TestProfileSnapshotRoundTrip(t *testing.T) {
	p := NewUserChatProfile()
	p.JoinChat("clan")
	p.JoinChat("trade")
	p.ToggleChatVisibility("trade")
	p.SetCurrentChat("clan")
	p.RecordMessage("clan")

	restored := p.Snapshot().Restore()
	require.NotNil(t, restored)

	assert.Equal(t, "clan", restored.CurrentChat())
	assert.True(t, restored.IsInChat("clan"))
	assert.True(t, restored.IsInChat("trade"))
	assert.True(t, restored.IsChatHidden("trade"))
	assert.Equal(t, 1, restored.MessageCount("clan"))
	assert.Equal(t, p.Created().Unix(), restored.Created().Unix())
}
