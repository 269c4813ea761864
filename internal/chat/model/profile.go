package model

import (
	"strings"
	"sync"
	"time"
)

const PublicChannel = "public"

// UserChatProfile tracks one user's channel view: joined set, hidden set,
// current-channel pointer and per-channel message counters. It is owned by
// the profile manager and mutated concurrently by chat workflows.
type UserChatProfile struct {
	mu           sync.RWMutex
	joined       map[string]struct{}
	hidden       map[string]struct{}
	current      string
	lastMessage  map[string]time.Time
	messageCount map[string]int
	created      time.Time
}

func NewUserChatProfile() *UserChatProfile {
	return &UserChatProfile{
		joined:       map[string]struct{}{PublicChannel: {}},
		hidden:       make(map[string]struct{}),
		current:      PublicChannel,
		lastMessage:  make(map[string]time.Time),
		messageCount: make(map[string]int),
		created:      time.Now(),
	}
}

func (p *UserChatProfile) CurrentChat() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.current
}

func (p *UserChatProfile) SetCurrentChat(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.current = strings.ToLower(name)
}

func (p *UserChatProfile) IsInChat(name string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.joined[strings.ToLower(name)]
	return ok
}

// JoinChat adds the channel and, when the user is still sitting in the
// public default, switches the current pointer to the new channel.
func (p *UserChatProfile) JoinChat(name string) {
	name = strings.ToLower(name)
	p.mu.Lock()
	defer p.mu.Unlock()
	p.joined[name] = struct{}{}
	if p.current == "" || p.current == PublicChannel {
		p.current = name
	}
}

// LeaveChat removes the channel; a dangling current pointer falls back to
// another joined channel, or public.
func (p *UserChatProfile) LeaveChat(name string) {
	name = strings.ToLower(name)
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.joined, name)
	delete(p.hidden, name)
	if p.current != name {
		return
	}
	for other := range p.joined {
		p.current = other
		return
	}
	p.joined[PublicChannel] = struct{}{}
	p.current = PublicChannel
}

func (p *UserChatProfile) LeaveAllChats() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.joined = map[string]struct{}{PublicChannel: {}}
	p.hidden = make(map[string]struct{})
	p.current = PublicChannel
}

func (p *UserChatProfile) IsChatHidden(name string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.hidden[strings.ToLower(name)]
	return ok
}

func (p *UserChatProfile) ToggleChatVisibility(name string) {
	name = strings.ToLower(name)
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.hidden[name]; ok {
		delete(p.hidden, name)
	} else {
		p.hidden[name] = struct{}{}
	}
}

func (p *UserChatProfile) RecordMessage(name string) {
	name = strings.ToLower(name)
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lastMessage[name] = time.Now()
	p.messageCount[name]++
}

func (p *UserChatProfile) MessageCount(name string) int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.messageCount[strings.ToLower(name)]
}

func (p *UserChatProfile) TotalMessageCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	total := 0
	for _, n := range p.messageCount {
		total += n
	}
	return total
}

func (p *UserChatProfile) JoinedChats() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]string, 0, len(p.joined))
	for name := range p.joined {
		out = append(out, name)
	}
	return out
}

func (p *UserChatProfile) HiddenChats() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]string, 0, len(p.hidden))
	for name := range p.hidden {
		out = append(out, name)
	}
	return out
}

// VisibleChats is the joined set minus the hidden set.
func (p *UserChatProfile) VisibleChats() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]string, 0, len(p.joined))
	for name := range p.joined {
		if _, ok := p.hidden[name]; !ok {
			out = append(out, name)
		}
	}
	return out
}

func (p *UserChatProfile) Created() time.Time {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.created
}

// Snapshot returns a point-in-time copy for persistence.
func (p *UserChatProfile) Snapshot() ProfileSnapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()
	snap := ProfileSnapshot{
		Current:       p.current,
		Created:       p.created,
		MessageCounts: make(map[string]int, len(p.messageCount)),
	}
	for name := range p.joined {
		snap.Joined = append(snap.Joined, name)
	}
	for name := range p.hidden {
		snap.Hidden = append(snap.Hidden, name)
	}
	for name, n := range p.messageCount {
		snap.MessageCounts[name] = n
	}
	return snap
}

func (s ProfileSnapshot) Restore() *UserChatProfile {
	p := NewUserChatProfile()
	for _, name := range s.Joined {
		p.joined[strings.ToLower(name)] = struct{}{}
	}
	for _, name := range s.Hidden {
		p.hidden[strings.ToLower(name)] = struct{}{}
	}
	if s.Current != "" {
		p.current = strings.ToLower(s.Current)
	}
	if !s.Created.IsZero() {
		p.created = s.Created
	}
	for name, n := range s.MessageCounts {
		p.messageCount[strings.ToLower(name)] = n
	}
	return p
}

type ProfileSnapshot struct {
	Joined        []string       `yaml:"joined_chats"`
	Hidden        []string       `yaml:"hidden_chats,omitempty"`
	Current       string         `yaml:"current_chat"`
	MessageCounts map[string]int `yaml:"message_counts,omitempty"`
	Created       time.Time      `yaml:"profile_created"`
}
