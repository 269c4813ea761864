package manager

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/If-Master/ChatControlPlugin/config"
	"github.com/If-Master/ChatControlPlugin/internal/chat"
	"github.com/If-Master/ChatControlPlugin/internal/chat/model"
	"github.com/If-Master/ChatControlPlugin/internal/chat/profile"
	"github.com/If-Master/ChatControlPlugin/pkg/async"
	"github.com/If-Master/ChatControlPlugin/pkg/errors"
	"github.com/If-Master/ChatControlPlugin/pkg/logger"
)

const maxChannelNameLen = 16

// Built-in channels, constructed in-process and never persisted.
const (
	StaffChannel = "staff"
	DevChannel   = "dev"
)

// Manager orchestrates every chat workflow against the selected store.
// Validation happens synchronously before a future is spawned, so
// callers see argument errors immediately; anything that touches the
// store runs in the future's goroutine.
type Manager struct {
	store    chat.Store
	profiles *profile.Manager
	caps     chat.CapabilityChecker
	log      *logger.Logger

	maxChannelsPerUser int
	defaultMaxMembers  int

	mu       sync.RWMutex
	channels map[string]*model.Channel

	frozen atomic.Bool
}

// New builds the manager, registers the built-in channels and loads the
// custom channel registry from the store.
func New(ctx context.Context, store chat.Store, profiles *profile.Manager, caps chat.CapabilityChecker, cfg *config.Config, log *logger.Logger) (*Manager, error) {
	m := &Manager{
		store:              store,
		profiles:           profiles,
		caps:               caps,
		log:                log,
		maxChannelsPerUser: cfg.Chat.MaxChannelsPerUser,
		defaultMaxMembers:  cfg.Chat.DefaultMaxMembers,
		channels:           make(map[string]*model.Channel),
	}
	if m.defaultMaxMembers <= 0 {
		m.defaultMaxMembers = model.DefaultMaxMembers
	}

	for _, ch := range builtinChannels() {
		m.channels[ch.Name] = ch
	}

	custom, err := store.LoadChannels(ctx)
	if err != nil {
		return nil, err
	}
	for _, ch := range custom {
		if _, taken := m.channels[ch.Name]; taken {
			log.Warn("ignoring stored channel shadowing a built-in", "channel", ch.Name)
			continue
		}
		m.channels[ch.Name] = ch
	}
	log.Info("channel registry loaded", "custom", len(custom))
	return m, nil
}

func builtinChannels() []*model.Channel {
	public := model.NewChannel(model.PublicChannel, "[P]", false, uuid.Nil, "Server-wide chat", "")
	staff := model.NewChannel(StaffChannel, "[S]", true, uuid.Nil, "Staff-only chat", chat.CapStaff)
	dev := model.NewChannel(DevChannel, "[D]", true, uuid.Nil, "Developer chat", chat.CapDev)
	staff.AllowInvites = false
	dev.AllowInvites = false
	return []*model.Channel{public, staff, dev}
}

// Channel returns a copy of the named channel's definition.
func (m *Manager) Channel(name string) (model.Channel, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ch, ok := m.channels[strings.ToLower(name)]
	if !ok {
		return model.Channel{}, false
	}
	out := *ch
	out.Frozen = m.frozen.Load()
	return out, true
}

// ChannelNames lists every registered channel, built-ins included.
func (m *Manager) ChannelNames() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.channels))
	for name := range m.channels {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func (m *Manager) Frozen() bool { return m.frozen.Load() }

func (m *Manager) Profile(user uuid.UUID) *model.UserChatProfile {
	return m.profiles.Get(user)
}

// channel fetches the live entry; callers must not retain it past the
// current operation.
func (m *Manager) channel(name string) (*model.Channel, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ch, ok := m.channels[strings.ToLower(name)]
	return ch, ok
}

// snapshot copies the entry with the current freeze flag applied, giving
// the predicates a race-free view.
func (m *Manager) snapshot(ch *model.Channel) model.Channel {
	m.mu.RLock()
	out := *ch
	m.mu.RUnlock()
	out.Frozen = m.frozen.Load()
	return out
}

func (m *Manager) isAdmin(user uuid.UUID) bool {
	return m.caps.Has(user, chat.CapAdmin)
}

// access gathers the fact set the channel predicates evaluate against.
// It takes a snapshot value so a concurrent ownership transfer cannot
// tear the view.
func (m *Manager) access(ctx context.Context, ch model.Channel, user uuid.UUID) (model.Access, error) {
	var a model.Access
	var err error

	if a.Role, err = m.store.GetRole(ctx, user, ch.Name); err != nil {
		return a, err
	}
	if a.Member, err = m.store.IsMember(ctx, user, ch.Name); err != nil {
		return a, err
	}
	members, err := m.store.ListMembers(ctx, ch.Name)
	if err != nil {
		return a, err
	}
	a.MemberCount = len(members)
	if a.Banned, err = m.store.IsBanned(ctx, user); err != nil {
		return a, err
	}
	if a.Blocked, err = m.store.IsBlocked(ctx, user, ch.Name); err != nil {
		return a, err
	}
	a.Admin = m.isAdmin(user)
	a.HasRequiredCapability = ch.RequiredCapability == "" || a.Admin || m.caps.Has(user, ch.RequiredCapability)
	if ch.IsOwner(user) {
		a.Role = model.RoleOwner
	}
	return a, nil
}

// ---- channel lifecycle ----

// CreateChannel validates the name synchronously, then creates the
// channel, grants the owner role and joins the creator.
func (m *Manager) CreateChannel(ctx context.Context, owner uuid.UUID, name, prefix string, private bool, description, requiredCapability string) *async.Future[chat.Outcome] {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return async.Resolved(chat.Outcome{}, errors.ErrChannelNameEmpty)
	}
	if len(name) > maxChannelNameLen {
		return async.Resolved(chat.Outcome{}, errors.ErrChannelNameTooLong)
	}
	if _, exists := m.channel(name); exists {
		return async.Resolved(chat.Outcome{}, errors.ErrChannelExists)
	}

	return async.Go(func() (chat.Outcome, error) {
		banned, err := m.store.IsBanned(ctx, owner)
		if err != nil {
			return chat.Outcome{}, err
		}
		if banned {
			return chat.Denied("banned users cannot create channels"), nil
		}

		if m.maxChannelsPerUser >= 0 && !m.caps.Has(owner, chat.CapUnlimitedChannels) {
			count, err := m.store.ChannelCount(ctx, owner)
			if err != nil {
				return chat.Outcome{}, err
			}
			if count >= m.maxChannelsPerUser {
				return chat.Denied(fmt.Sprintf("channel limit of %d reached", m.maxChannelsPerUser)), nil
			}
		}

		ch := model.NewChannel(name, prefix, private, owner, description, requiredCapability)
		ch.MaxMembers = m.defaultMaxMembers

		m.mu.Lock()
		if _, exists := m.channels[name]; exists {
			m.mu.Unlock()
			return chat.Outcome{}, errors.ErrChannelExists
		}
		m.channels[name] = ch
		m.mu.Unlock()

		if err := m.store.SaveChannel(ctx, ch); err != nil {
			m.mu.Lock()
			delete(m.channels, name)
			m.mu.Unlock()
			return chat.Outcome{}, err
		}
		if err := m.store.RecordChannelCreation(ctx, owner, name); err != nil {
			return chat.Outcome{}, err
		}
		if err := m.store.AddMember(ctx, owner, name); err != nil {
			return chat.Outcome{}, err
		}
		if err := m.store.SetRole(ctx, owner, name, model.RoleOwner, owner); err != nil {
			return chat.Outcome{}, err
		}
		m.profiles.Get(owner).JoinChat(name)

		m.log.Info("channel created", "channel", name, "owner", owner, "private", private)
		return chat.OK("channel " + name + " created"), nil
	})
}

// DeleteChannel removes a custom channel. Only the owner or an admin may
// delete; built-ins cannot be deleted.
func (m *Manager) DeleteChannel(ctx context.Context, actor uuid.UUID, name string) *async.Future[chat.Outcome] {
	name = strings.ToLower(name)
	ch, ok := m.channel(name)
	if !ok {
		return async.Resolved(chat.Outcome{}, errors.ErrChannelNotFound)
	}
	if m.snapshot(ch).Owner == uuid.Nil {
		return async.Resolved(chat.Denied("built-in channels cannot be deleted"), nil)
	}

	return async.Go(func() (chat.Outcome, error) {
		snap := m.snapshot(ch)
		if !snap.IsOwner(actor) && !m.isAdmin(actor) {
			return chat.Denied("only the owner may delete a channel"), nil
		}

		members, err := m.store.ListMembers(ctx, name)
		if err != nil {
			return chat.Outcome{}, err
		}
		for _, member := range members {
			if err := m.store.RemoveMember(ctx, member, name); err != nil {
				return chat.Outcome{}, err
			}
			if err := m.store.RemoveRole(ctx, member, name); err != nil {
				return chat.Outcome{}, err
			}
			m.profiles.Get(member).LeaveChat(name)
		}

		if err := m.store.DeleteChannel(ctx, name); err != nil {
			return chat.Outcome{}, err
		}
		if err := m.store.RecordChannelDeletion(ctx, snap.Owner, name); err != nil {
			return chat.Outcome{}, err
		}

		m.mu.Lock()
		delete(m.channels, name)
		m.mu.Unlock()

		m.log.Info("channel deleted", "channel", name, "actor", actor)
		return chat.OK("channel " + name + " deleted"), nil
	})
}

// TransferOwnership moves a custom channel to a new owner. The old
// owner keeps membership but loses their role record; quota tracking
// follows the channel. Globally banned users cannot receive a channel.
func (m *Manager) TransferOwnership(ctx context.Context, actor, newOwner uuid.UUID, name string) *async.Future[chat.Outcome] {
	name = strings.ToLower(name)
	ch, ok := m.channel(name)
	if !ok {
		return async.Resolved(chat.Outcome{}, errors.ErrChannelNotFound)
	}
	if m.snapshot(ch).Owner == uuid.Nil {
		return async.Resolved(chat.Denied("built-in channels cannot be transferred"), nil)
	}

	return async.Go(func() (chat.Outcome, error) {
		snap := m.snapshot(ch)
		if !snap.IsOwner(actor) && !m.isAdmin(actor) {
			return chat.Denied("only the owner may transfer a channel"), nil
		}
		oldOwner := snap.Owner
		if newOwner == oldOwner {
			return chat.Noop("user already owns this channel"), nil
		}
		banned, err := m.store.IsBanned(ctx, newOwner)
		if err != nil {
			return chat.Outcome{}, err
		}
		if banned {
			return chat.Denied("that user is banned from chat"), nil
		}

		// Promote before clearing the old record so there is no zero-owner
		// window in the store; the entity's Owner pointer stays the
		// tiebreaker until the flip below.
		if err := m.store.AddMember(ctx, newOwner, name); err != nil {
			return chat.Outcome{}, err
		}
		if err := m.store.SetRole(ctx, newOwner, name, model.RoleOwner, actor); err != nil {
			return chat.Outcome{}, err
		}
		if err := m.store.RemoveRole(ctx, oldOwner, name); err != nil {
			return chat.Outcome{}, err
		}

		// Flip the authoritative owner pointer under the registry lock so
		// there is never a moment with two owners visible.
		m.mu.Lock()
		ch.Owner = newOwner
		updated := *ch
		m.mu.Unlock()

		if err := m.store.SaveChannel(ctx, &updated); err != nil {
			return chat.Outcome{}, err
		}
		if err := m.store.RecordChannelDeletion(ctx, oldOwner, name); err != nil {
			return chat.Outcome{}, err
		}
		if err := m.store.RecordChannelCreation(ctx, newOwner, name); err != nil {
			return chat.Outcome{}, err
		}
		m.profiles.Get(newOwner).JoinChat(name)

		m.log.Info("channel transferred", "channel", name, "from", oldOwner, "to", newOwner)
		return chat.OK("ownership of " + name + " transferred"), nil
	})
}

// ---- membership ----

// Join adds the user to the channel. Joining a channel the user is
// already in becomes a current-channel switch.
func (m *Manager) Join(ctx context.Context, user uuid.UUID, name string) *async.Future[chat.Outcome] {
	name = strings.ToLower(name)
	ch, ok := m.channel(name)
	if !ok {
		return async.Resolved(chat.Outcome{}, errors.ErrChannelNotFound)
	}

	return async.Go(func() (chat.Outcome, error) {
		snap := m.snapshot(ch)
		a, err := m.access(ctx, snap, user)
		if err != nil {
			return chat.Outcome{}, err
		}
		if a.Member {
			m.profiles.Get(user).SetCurrentChat(name)
			return chat.Switched("already a member, switched to " + name), nil
		}
		if a.Blocked {
			return chat.Denied("you are blocked from " + name), nil
		}
		if !snap.CanJoin(a) {
			return chat.Denied("you cannot join " + name), nil
		}

		if err := m.store.AddMember(ctx, user, name); err != nil {
			return chat.Outcome{}, err
		}
		m.profiles.Get(user).JoinChat(name)
		return chat.OK("joined " + name), nil
	})
}

// Leave removes the user from a channel. Owners must transfer first,
// public cannot be left, and leaving a private channel installs a block
// so re-entry needs a fresh invite.
func (m *Manager) Leave(ctx context.Context, user uuid.UUID, name string) *async.Future[chat.Outcome] {
	name = strings.ToLower(name)
	if name == model.PublicChannel {
		return async.Resolved(chat.Outcome{}, errors.ErrCannotLeavePublic)
	}
	ch, ok := m.channel(name)
	if !ok {
		return async.Resolved(chat.Outcome{}, errors.ErrChannelNotFound)
	}

	return async.Go(func() (chat.Outcome, error) {
		snap := m.snapshot(ch)
		member, err := m.store.IsMember(ctx, user, name)
		if err != nil {
			return chat.Outcome{}, err
		}
		if !member {
			return chat.Outcome{}, errors.ErrNotInChannel
		}
		if snap.IsOwner(user) {
			return chat.Outcome{}, errors.ErrOwnerCannotLeave
		}

		if err := m.removeFromChannel(ctx, user, name); err != nil {
			return chat.Outcome{}, err
		}
		if snap.Private {
			if err := m.store.Block(ctx, user, name, user, "left the channel"); err != nil {
				return chat.Outcome{}, err
			}
		}
		return chat.OK("left " + name), nil
	})
}

// removeFromChannel strips membership, role and profile state.
func (m *Manager) removeFromChannel(ctx context.Context, user uuid.UUID, name string) error {
	if err := m.store.RemoveMember(ctx, user, name); err != nil {
		return err
	}
	if err := m.store.RemoveRole(ctx, user, name); err != nil {
		return err
	}
	m.profiles.Get(user).LeaveChat(name)
	return nil
}

// SelectChannel switches the user's current channel to one they are in.
// Selecting a capability-gated channel the user holds the capability for
// auto-joins it first. Banned users may only select a channel they own.
func (m *Manager) SelectChannel(ctx context.Context, user uuid.UUID, name string) *async.Future[chat.Outcome] {
	name = strings.ToLower(name)
	ch, ok := m.channel(name)
	if !ok {
		return async.Resolved(chat.Outcome{}, errors.ErrChannelNotFound)
	}

	return async.Go(func() (chat.Outcome, error) {
		banned, err := m.store.IsBanned(ctx, user)
		if err != nil {
			return chat.Outcome{}, err
		}
		snap := m.snapshot(ch)
		if banned && !snap.IsOwner(user) {
			return chat.Denied("you are banned from chat"), nil
		}
		member, err := m.store.IsMember(ctx, user, name)
		if err != nil {
			return chat.Outcome{}, err
		}
		if !member && name != model.PublicChannel {
			snap := m.snapshot(ch)
			if snap.RequiredCapability == "" {
				return chat.Outcome{}, errors.ErrNotInChannel
			}
			a, err := m.access(ctx, snap, user)
			if err != nil {
				return chat.Outcome{}, err
			}
			if !snap.CanJoin(a) {
				return chat.Outcome{}, errors.ErrNotInChannel
			}
			if err := m.store.AddMember(ctx, user, name); err != nil {
				return chat.Outcome{}, err
			}
			m.profiles.Get(user).JoinChat(name)
		}
		m.profiles.Get(user).SetCurrentChat(name)
		return chat.OK("now talking in " + name), nil
	})
}

// ToggleHidden flips whether the channel's messages are shown to the
// user. Profile-only; membership is untouched.
func (m *Manager) ToggleHidden(_ context.Context, user uuid.UUID, name string) *async.Future[chat.Outcome] {
	name = strings.ToLower(name)
	if _, ok := m.channel(name); !ok {
		return async.Resolved(chat.Outcome{}, errors.ErrChannelNotFound)
	}
	p := m.profiles.Get(user)
	p.ToggleChatVisibility(name)
	if p.IsChatHidden(name) {
		return async.Resolved(chat.OK(name+" hidden"), nil)
	}
	return async.Resolved(chat.OK(name+" shown"), nil)
}

// Invite adds the target directly to the channel, clearing any block
// the target carried. Membership only; no role is granted.
func (m *Manager) Invite(ctx context.Context, actor, target uuid.UUID, name string) *async.Future[chat.Outcome] {
	name = strings.ToLower(name)
	ch, ok := m.channel(name)
	if !ok {
		return async.Resolved(chat.Outcome{}, errors.ErrChannelNotFound)
	}

	return async.Go(func() (chat.Outcome, error) {
		snap := m.snapshot(ch)
		actorAccess, err := m.access(ctx, snap, actor)
		if err != nil {
			return chat.Outcome{}, err
		}
		if !snap.CanInvite(actorAccess) && !actorAccess.Admin {
			return chat.Denied("you cannot invite to " + name), nil
		}

		banned, err := m.store.IsBanned(ctx, target)
		if err != nil {
			return chat.Outcome{}, err
		}
		if banned {
			return chat.Denied("that user is banned from chat"), nil
		}
		member, err := m.store.IsMember(ctx, target, name)
		if err != nil {
			return chat.Outcome{}, err
		}
		if member {
			return chat.Noop("user is already in " + name), nil
		}

		if err := m.store.Unblock(ctx, target, name); err != nil {
			return chat.Outcome{}, err
		}
		if err := m.store.AddMember(ctx, target, name); err != nil {
			return chat.Outcome{}, err
		}
		m.profiles.Get(target).JoinChat(name)

		m.log.Info("user invited", "channel", name, "actor", actor, "target", target)
		return chat.OK("invited to " + name), nil
	})
}

// Kick removes the target from the channel. Kicking from a private
// channel installs a block. The owner cannot be kicked.
func (m *Manager) Kick(ctx context.Context, actor, target uuid.UUID, name string) *async.Future[chat.Outcome] {
	name = strings.ToLower(name)
	ch, ok := m.channel(name)
	if !ok {
		return async.Resolved(chat.Outcome{}, errors.ErrChannelNotFound)
	}
	if name == model.PublicChannel {
		return async.Resolved(chat.Denied("users cannot be kicked from public"), nil)
	}

	return async.Go(func() (chat.Outcome, error) {
		snap := m.snapshot(ch)
		if snap.IsOwner(target) {
			return chat.Denied("the channel owner cannot be kicked"), nil
		}
		actorRole, err := m.store.GetRole(ctx, actor, name)
		if err != nil {
			return chat.Outcome{}, err
		}
		allowed := snap.IsOwner(actor) || actorRole == model.RoleManager || m.isAdmin(actor)
		if !allowed {
			return chat.Denied("you cannot kick from " + name), nil
		}
		member, err := m.store.IsMember(ctx, target, name)
		if err != nil {
			return chat.Outcome{}, err
		}
		if !member {
			return chat.Outcome{}, errors.ErrNotInChannel
		}

		if err := m.removeFromChannel(ctx, target, name); err != nil {
			return chat.Outcome{}, err
		}
		if snap.Private {
			if err := m.store.Block(ctx, target, name, actor, "kicked"); err != nil {
				return chat.Outcome{}, err
			}
		}
		m.log.Info("user kicked", "channel", name, "actor", actor, "target", target)
		return chat.OK("kicked from " + name), nil
	})
}

// ForceKick is the admin escape hatch: removes anyone, owner included,
// without installing a block.
func (m *Manager) ForceKick(ctx context.Context, actor, target uuid.UUID, name string) *async.Future[chat.Outcome] {
	name = strings.ToLower(name)
	if _, ok := m.channel(name); !ok {
		return async.Resolved(chat.Outcome{}, errors.ErrChannelNotFound)
	}
	if !m.isAdmin(actor) {
		return async.Resolved(chat.Denied("force kick requires "+chat.CapAdmin), nil)
	}

	return async.Go(func() (chat.Outcome, error) {
		member, err := m.store.IsMember(ctx, target, name)
		if err != nil {
			return chat.Outcome{}, err
		}
		if !member {
			return chat.Noop("user is not in " + name), nil
		}
		if err := m.removeFromChannel(ctx, target, name); err != nil {
			return chat.Outcome{}, err
		}
		m.log.Info("user force-kicked", "channel", name, "actor", actor, "target", target)
		return chat.OK("force-kicked from " + name), nil
	})
}

// ---- roles ----

// roleAuthority reports whether the actor may manage roles in the
// channel: owner, manager, or admin capability.
func (m *Manager) roleAuthority(ctx context.Context, ch model.Channel, actor uuid.UUID) (bool, error) {
	if ch.IsOwner(actor) || m.isAdmin(actor) {
		return true, nil
	}
	role, err := m.store.GetRole(ctx, actor, ch.Name)
	if err != nil {
		return false, err
	}
	return role == model.RoleManager, nil
}

// SetRole is the shared role-assignment workflow behind Trust,
// AssignManager and Mute.
func (m *Manager) SetRole(ctx context.Context, actor, target uuid.UUID, name string, role model.Role) *async.Future[chat.Outcome] {
	name = strings.ToLower(name)
	if !role.Valid() || role == model.RoleNone || role == model.RoleOwner {
		return async.Resolved(chat.Outcome{}, errors.ErrInvalidRole)
	}
	ch, ok := m.channel(name)
	if !ok {
		return async.Resolved(chat.Outcome{}, errors.ErrChannelNotFound)
	}

	return async.Go(func() (chat.Outcome, error) {
		snap := m.snapshot(ch)
		allowed, err := m.roleAuthority(ctx, snap, actor)
		if err != nil {
			return chat.Outcome{}, err
		}
		if !allowed {
			return chat.Denied("you cannot manage roles in " + name), nil
		}
		// only the owner hands out manager
		if role == model.RoleManager && !snap.IsOwner(actor) && !m.isAdmin(actor) {
			return chat.Denied("only the owner may assign managers in " + name), nil
		}
		if snap.IsOwner(target) {
			return chat.Denied("the channel owner's role cannot be changed"), nil
		}
		if err := m.store.SetRole(ctx, target, name, role, actor); err != nil {
			return chat.Outcome{}, err
		}
		m.log.Info("role assigned", "channel", name, "target", target, "role", role, "actor", actor)
		return chat.OK(string(role) + " assigned in " + name), nil
	})
}

func (m *Manager) Trust(ctx context.Context, actor, target uuid.UUID, name string) *async.Future[chat.Outcome] {
	return m.SetRole(ctx, actor, target, name, model.RoleTrusted)
}

func (m *Manager) AssignManager(ctx context.Context, actor, target uuid.UUID, name string) *async.Future[chat.Outcome] {
	return m.SetRole(ctx, actor, target, name, model.RoleManager)
}

func (m *Manager) Mute(ctx context.Context, actor, target uuid.UUID, name string) *async.Future[chat.Outcome] {
	return m.SetRole(ctx, actor, target, name, model.RoleMuted)
}

// Unmute lifts a mute. Unmuting a user who is not muted is a no-op, so
// a racing promotion is never lost.
func (m *Manager) Unmute(ctx context.Context, actor, target uuid.UUID, name string) *async.Future[chat.Outcome] {
	name = strings.ToLower(name)
	ch, ok := m.channel(name)
	if !ok {
		return async.Resolved(chat.Outcome{}, errors.ErrChannelNotFound)
	}

	return async.Go(func() (chat.Outcome, error) {
		allowed, err := m.roleAuthority(ctx, m.snapshot(ch), actor)
		if err != nil {
			return chat.Outcome{}, err
		}
		if !allowed {
			return chat.Denied("you cannot manage roles in " + name), nil
		}
		role, err := m.store.GetRole(ctx, target, name)
		if err != nil {
			return chat.Outcome{}, err
		}
		if role != model.RoleMuted {
			return chat.Noop("user is not muted in " + name), nil
		}
		if err := m.store.Unmute(ctx, target, name); err != nil {
			return chat.Outcome{}, err
		}
		return chat.OK("unmuted in " + name), nil
	})
}

// ---- global moderation ----

// BanUser bans globally and cascades: the target is removed from every
// channel except those they own.
func (m *Manager) BanUser(ctx context.Context, actor, target uuid.UUID, reason string) *async.Future[chat.Outcome] {
	if !m.isAdmin(actor) {
		return async.Resolved(chat.Denied("banning requires "+chat.CapAdmin), nil)
	}

	return async.Go(func() (chat.Outcome, error) {
		already, err := m.store.IsBanned(ctx, target)
		if err != nil {
			return chat.Outcome{}, err
		}
		if already {
			return chat.Noop("user is already banned"), nil
		}
		if err := m.store.Ban(ctx, target, actor, reason); err != nil {
			return chat.Outcome{}, err
		}

		joined, err := m.store.ListChannels(ctx, target)
		if err != nil {
			return chat.Outcome{}, err
		}
		for _, name := range joined {
			// public membership is implicit and never removed
			if name == model.PublicChannel {
				continue
			}
			if ch, ok := m.channel(name); ok {
				if snap := m.snapshot(ch); snap.IsOwner(target) {
					// Ownership records survive a ban; the owner may
					// return to their own channels after an unban.
					continue
				}
			}
			if err := m.removeFromChannel(ctx, target, name); err != nil {
				return chat.Outcome{}, err
			}
		}

		m.log.Info("user banned", "target", target, "actor", actor, "reason", reason)
		return chat.OK("user banned from chat"), nil
	})
}

// UnbanUser lifts a global ban. Memberships removed by the ban cascade
// are not restored; the user rejoins on their own.
func (m *Manager) UnbanUser(ctx context.Context, actor, target uuid.UUID) *async.Future[chat.Outcome] {
	if !m.isAdmin(actor) {
		return async.Resolved(chat.Denied("unbanning requires "+chat.CapAdmin), nil)
	}

	return async.Go(func() (chat.Outcome, error) {
		banned, err := m.store.IsBanned(ctx, target)
		if err != nil {
			return chat.Outcome{}, err
		}
		if !banned {
			return chat.Noop("user is not banned"), nil
		}
		if err := m.store.Unban(ctx, target); err != nil {
			return chat.Outcome{}, err
		}
		m.log.Info("user unbanned", "target", target, "actor", actor)
		return chat.OK("user unbanned"), nil
	})
}

// ToggleFreeze flips the process-wide freeze. While frozen, only
// admins, owners and managers may speak; membership operations are
// unaffected.
func (m *Manager) ToggleFreeze(actor uuid.UUID) *async.Future[chat.Outcome] {
	if !m.isAdmin(actor) {
		return async.Resolved(chat.Denied("freezing chat requires "+chat.CapAdmin), nil)
	}
	now := !m.frozen.Load()
	m.frozen.Store(now)
	m.log.Info("chat freeze toggled", "frozen", now, "actor", actor)
	if now {
		return async.Resolved(chat.OK("chat frozen"), nil)
	}
	return async.Resolved(chat.OK("chat unfrozen"), nil)
}

// ---- messages ----

// SendMessage checks the sender against their current channel, records
// the message in the chat log and bumps the profile counters. Delivery
// itself is the host's concern; the outcome detail names the channel so
// the host can dispatch.
func (m *Manager) SendMessage(ctx context.Context, user uuid.UUID, senderName, text string) *async.Future[chat.Outcome] {
	if strings.TrimSpace(text) == "" {
		return async.Resolved(chat.Outcome{}, errors.InvalidArg("message cannot be empty"))
	}
	p := m.profiles.Get(user)
	name := p.CurrentChat()
	ch, ok := m.channel(name)
	if !ok {
		return async.Resolved(chat.Outcome{}, errors.ErrChannelNotFound)
	}

	return async.Go(func() (chat.Outcome, error) {
		snap := m.snapshot(ch)
		a, err := m.access(ctx, snap, user)
		if err != nil {
			return chat.Outcome{}, err
		}
		if name != model.PublicChannel && !a.Member {
			return chat.Outcome{}, errors.ErrNotInChannel
		}
		if !snap.CanSpeak(a) {
			if snap.Frozen {
				return chat.Denied("chat is frozen"), nil
			}
			return chat.Denied("you cannot speak in " + name), nil
		}

		if err := m.store.LogMessage(ctx, name, senderName, text); err != nil {
			return chat.Outcome{}, err
		}
		p.RecordMessage(name)
		return chat.OK(name), nil
	})
}

// History returns the channel's recent messages, newest first.
func (m *Manager) History(ctx context.Context, name string, limit int) *async.Future[[]model.ChatMessage] {
	name = strings.ToLower(name)
	if _, ok := m.channel(name); !ok {
		return async.Resolved[[]model.ChatMessage](nil, errors.ErrChannelNotFound)
	}
	return async.Go(func() ([]model.ChatMessage, error) {
		return m.store.History(ctx, name, limit)
	})
}

// CanReceive reports whether the user should be shown a message in the
// channel; hidden channels are filtered here too.
func (m *Manager) CanReceive(ctx context.Context, user uuid.UUID, name string) (bool, error) {
	name = strings.ToLower(name)
	ch, ok := m.channel(name)
	if !ok {
		return false, errors.ErrChannelNotFound
	}
	if m.profiles.Get(user).IsChatHidden(name) {
		return false, nil
	}
	snap := m.snapshot(ch)
	a, err := m.access(ctx, snap, user)
	if err != nil {
		return false, err
	}
	return snap.CanReceive(a), nil
}
