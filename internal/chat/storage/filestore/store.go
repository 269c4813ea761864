package filestore

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/If-Master/ChatControlPlugin/internal/chat/model"
	"github.com/If-Master/ChatControlPlugin/pkg/errors"
	"github.com/If-Master/ChatControlPlugin/pkg/logger"
)

const (
	chatsFile       = "chats.yml"
	channelDataFile = "channel_data.yml"
)

// Store is the flat-file backend. The in-memory maps are authoritative;
// every mutation rewrites the owning document in full. Reads never touch
// disk after startup.
type Store struct {
	dir string
	log *logger.Logger

	mu sync.RWMutex
	// chats.yml
	members map[string]map[uuid.UUID]struct{} // channel -> members
	roles   map[string]map[uuid.UUID]model.Role
	banned  map[uuid.UUID]struct{}
	// channel_data.yml
	channels map[string]*model.Channel
	blocks   map[uuid.UUID]map[string]struct{} // user -> blocked channels
	counts   map[uuid.UUID]int
	owned    map[uuid.UUID]map[string]struct{}

	// one writer per document at a time
	chatsWriteMu       sync.Mutex
	channelDataWriteMu sync.Mutex
}

// New loads both documents from dir, creating the directory if needed.
// Entries with unparseable UUIDs are skipped with a warning rather than
// failing the whole load.
func New(dir string, log *logger.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.ErrStorageIO("create data dir", err)
	}
	s := &Store{
		dir:      dir,
		log:      log,
		members:  make(map[string]map[uuid.UUID]struct{}),
		roles:    make(map[string]map[uuid.UUID]model.Role),
		banned:   make(map[uuid.UUID]struct{}),
		channels: make(map[string]*model.Channel),
		blocks:   make(map[uuid.UUID]map[string]struct{}),
		counts:   make(map[uuid.UUID]int),
		owned:    make(map[uuid.UUID]map[string]struct{}),
	}
	if err := s.loadChats(); err != nil {
		return nil, err
	}
	if err := s.loadChannelData(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) Relational() bool { return false }

func (s *Store) Close() error { return nil }

// ---- document shapes ----

type chatsDoc struct {
	Chats       map[string]chatEntry `yaml:"chats"`
	BannedUsers []string             `yaml:"banned_users,omitempty"`
}

type chatEntry struct {
	Members     []string          `yaml:"members,omitempty"`
	Permissions map[string]string `yaml:"permissions,omitempty"`
}

type channelDataDoc struct {
	Players        map[string]playerEntry  `yaml:"players,omitempty"`
	CustomChannels map[string]channelEntry `yaml:"custom_channels,omitempty"`
	ChannelBlocks  map[string][]string     `yaml:"channel_blocks,omitempty"`
}

type playerEntry struct {
	ChannelCount  int      `yaml:"channel_count"`
	OwnedChannels []string `yaml:"owned_channels,omitempty"`
}

type channelEntry struct {
	Prefix             string    `yaml:"prefix,omitempty"`
	Private            bool      `yaml:"private"`
	Owner              string    `yaml:"owner"`
	Description        string    `yaml:"description,omitempty"`
	RequiredPermission string    `yaml:"required_permission,omitempty"`
	CreatedAt          time.Time `yaml:"created_at"`
}

// ---- load ----

func (s *Store) readDoc(name string, out any) error {
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return errors.ErrStorageIO("read "+name, err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return errors.ErrStorageIO("parse "+name, err)
	}
	return nil
}

func (s *Store) parseUUID(raw, where string) (uuid.UUID, bool) {
	id, err := uuid.Parse(raw)
	if err != nil {
		s.log.Warnf("skipping corrupt uuid %q in %s", raw, where)
		return uuid.Nil, false
	}
	return id, true
}

func (s *Store) loadChats() error {
	var doc chatsDoc
	if err := s.readDoc(chatsFile, &doc); err != nil {
		return err
	}
	for channel, entry := range doc.Chats {
		for _, raw := range entry.Members {
			id, ok := s.parseUUID(raw, chatsFile)
			if !ok {
				continue
			}
			if s.members[channel] == nil {
				s.members[channel] = make(map[uuid.UUID]struct{})
			}
			s.members[channel][id] = struct{}{}
		}
		for raw, level := range entry.Permissions {
			id, ok := s.parseUUID(raw, chatsFile)
			if !ok {
				continue
			}
			role, err := model.ParseRole(level)
			if err != nil {
				s.log.Warnf("skipping unknown permission level %q for %s in %s", level, id, channel)
				continue
			}
			if s.roles[channel] == nil {
				s.roles[channel] = make(map[uuid.UUID]model.Role)
			}
			s.roles[channel][id] = role
		}
	}
	for _, raw := range doc.BannedUsers {
		if id, ok := s.parseUUID(raw, chatsFile); ok {
			s.banned[id] = struct{}{}
		}
	}
	return nil
}

func (s *Store) loadChannelData() error {
	var doc channelDataDoc
	if err := s.readDoc(channelDataFile, &doc); err != nil {
		return err
	}
	for raw, entry := range doc.Players {
		id, ok := s.parseUUID(raw, channelDataFile)
		if !ok {
			continue
		}
		s.counts[id] = entry.ChannelCount
		for _, name := range entry.OwnedChannels {
			if s.owned[id] == nil {
				s.owned[id] = make(map[string]struct{})
			}
			s.owned[id][name] = struct{}{}
		}
	}
	for name, entry := range doc.CustomChannels {
		owner, ok := s.parseUUID(entry.Owner, channelDataFile)
		if !ok {
			continue
		}
		ch := model.NewChannel(name, entry.Prefix, entry.Private, owner, entry.Description, entry.RequiredPermission)
		if !entry.CreatedAt.IsZero() {
			ch.CreatedAt = entry.CreatedAt
		}
		s.channels[ch.Name] = ch
	}
	for raw, names := range doc.ChannelBlocks {
		id, ok := s.parseUUID(raw, channelDataFile)
		if !ok {
			continue
		}
		for _, name := range names {
			if s.blocks[id] == nil {
				s.blocks[id] = make(map[string]struct{})
			}
			s.blocks[id][name] = struct{}{}
		}
	}
	return nil
}

// ---- save ----

func (s *Store) writeDoc(name string, doc any) error {
	data, err := yaml.Marshal(doc)
	if err != nil {
		return errors.ErrStorageIO("encode "+name, err)
	}
	if err := os.WriteFile(filepath.Join(s.dir, name), data, 0o644); err != nil {
		return errors.ErrStorageIO("write "+name, err)
	}
	return nil
}

func (s *Store) saveChats() error {
	s.chatsWriteMu.Lock()
	defer s.chatsWriteMu.Unlock()

	s.mu.RLock()
	doc := chatsDoc{Chats: make(map[string]chatEntry)}
	for channel, members := range s.members {
		entry := doc.Chats[channel]
		for id := range members {
			entry.Members = append(entry.Members, id.String())
		}
		sort.Strings(entry.Members)
		doc.Chats[channel] = entry
	}
	for channel, roles := range s.roles {
		entry := doc.Chats[channel]
		entry.Permissions = make(map[string]string, len(roles))
		for id, role := range roles {
			entry.Permissions[id.String()] = string(role)
		}
		doc.Chats[channel] = entry
	}
	for id := range s.banned {
		doc.BannedUsers = append(doc.BannedUsers, id.String())
	}
	sort.Strings(doc.BannedUsers)
	s.mu.RUnlock()

	return s.writeDoc(chatsFile, doc)
}

func (s *Store) saveChannelData() error {
	s.channelDataWriteMu.Lock()
	defer s.channelDataWriteMu.Unlock()

	s.mu.RLock()
	doc := channelDataDoc{
		Players:        make(map[string]playerEntry),
		CustomChannels: make(map[string]channelEntry),
		ChannelBlocks:  make(map[string][]string),
	}
	for id, count := range s.counts {
		entry := doc.Players[id.String()]
		entry.ChannelCount = count
		doc.Players[id.String()] = entry
	}
	for id, names := range s.owned {
		entry := doc.Players[id.String()]
		for name := range names {
			entry.OwnedChannels = append(entry.OwnedChannels, name)
		}
		sort.Strings(entry.OwnedChannels)
		doc.Players[id.String()] = entry
	}
	for name, ch := range s.channels {
		doc.CustomChannels[name] = channelEntry{
			Prefix:             ch.Prefix,
			Private:            ch.Private,
			Owner:              ch.Owner.String(),
			Description:        ch.Description,
			RequiredPermission: ch.RequiredCapability,
			CreatedAt:          ch.CreatedAt,
		}
	}
	for id, names := range s.blocks {
		var list []string
		for name := range names {
			list = append(list, name)
		}
		sort.Strings(list)
		doc.ChannelBlocks[id.String()] = list
	}
	s.mu.RUnlock()

	return s.writeDoc(channelDataFile, doc)
}

// ---- membership ----

func (s *Store) AddMember(_ context.Context, user uuid.UUID, channel string) error {
	s.mu.Lock()
	if s.members[channel] == nil {
		s.members[channel] = make(map[uuid.UUID]struct{})
	}
	s.members[channel][user] = struct{}{}
	s.mu.Unlock()
	return s.saveChats()
}

func (s *Store) RemoveMember(_ context.Context, user uuid.UUID, channel string) error {
	s.mu.Lock()
	if members, ok := s.members[channel]; ok {
		delete(members, user)
		if len(members) == 0 {
			delete(s.members, channel)
		}
	}
	s.mu.Unlock()
	return s.saveChats()
}

func (s *Store) IsMember(_ context.Context, user uuid.UUID, channel string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.members[channel][user]
	return ok, nil
}

func (s *Store) ListChannels(_ context.Context, user uuid.UUID) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []string
	for channel, members := range s.members {
		if _, ok := members[user]; ok {
			out = append(out, channel)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (s *Store) ListMembers(_ context.Context, channel string) ([]uuid.UUID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]uuid.UUID, 0, len(s.members[channel]))
	for id := range s.members[channel] {
		out = append(out, id)
	}
	return out, nil
}

// ---- permissions ----

func (s *Store) SetRole(_ context.Context, user uuid.UUID, channel string, role model.Role, _ uuid.UUID) error {
	if !role.Valid() || role == model.RoleNone {
		return errors.ErrInvalidRole
	}
	s.mu.Lock()
	if s.roles[channel] == nil {
		s.roles[channel] = make(map[uuid.UUID]model.Role)
	}
	s.roles[channel][user] = role
	s.mu.Unlock()
	return s.saveChats()
}

func (s *Store) GetRole(_ context.Context, user uuid.UUID, channel string) (model.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if role, ok := s.roles[channel][user]; ok {
		return role, nil
	}
	return model.RoleNone, nil
}

func (s *Store) RemoveRole(_ context.Context, user uuid.UUID, channel string) error {
	s.mu.Lock()
	if roles, ok := s.roles[channel]; ok {
		delete(roles, user)
		if len(roles) == 0 {
			delete(s.roles, channel)
		}
	}
	s.mu.Unlock()
	return s.saveChats()
}

func (s *Store) ListRoles(_ context.Context, channel string) (map[uuid.UUID]model.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[uuid.UUID]model.Role, len(s.roles[channel]))
	for id, role := range s.roles[channel] {
		out[id] = role
	}
	return out, nil
}

func (s *Store) Unmute(_ context.Context, user uuid.UUID, channel string) error {
	s.mu.Lock()
	changed := false
	if roles, ok := s.roles[channel]; ok && roles[user] == model.RoleMuted {
		delete(roles, user)
		if len(roles) == 0 {
			delete(s.roles, channel)
		}
		changed = true
	}
	s.mu.Unlock()
	if !changed {
		return nil
	}
	return s.saveChats()
}

// ---- bans ----

func (s *Store) Ban(_ context.Context, user uuid.UUID, _ uuid.UUID, _ string) error {
	s.mu.Lock()
	s.banned[user] = struct{}{}
	s.mu.Unlock()
	return s.saveChats()
}

func (s *Store) Unban(_ context.Context, user uuid.UUID) error {
	s.mu.Lock()
	delete(s.banned, user)
	s.mu.Unlock()
	return s.saveChats()
}

func (s *Store) IsBanned(_ context.Context, user uuid.UUID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.banned[user]
	return ok, nil
}

// ---- blocks ----

func (s *Store) Block(_ context.Context, user uuid.UUID, channel string, _ uuid.UUID, _ string) error {
	s.mu.Lock()
	if s.blocks[user] == nil {
		s.blocks[user] = make(map[string]struct{})
	}
	s.blocks[user][channel] = struct{}{}
	s.mu.Unlock()
	return s.saveChannelData()
}

func (s *Store) Unblock(_ context.Context, user uuid.UUID, channel string) error {
	s.mu.Lock()
	if blocks, ok := s.blocks[user]; ok {
		delete(blocks, channel)
		if len(blocks) == 0 {
			delete(s.blocks, user)
		}
	}
	s.mu.Unlock()
	return s.saveChannelData()
}

func (s *Store) IsBlocked(_ context.Context, user uuid.UUID, channel string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.blocks[user][channel]
	return ok, nil
}

func (s *Store) ListBlocked(_ context.Context, user uuid.UUID) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []string
	for name := range s.blocks[user] {
		out = append(out, name)
	}
	sort.Strings(out)
	return out, nil
}

func (s *Store) ClearBlocks(_ context.Context, user uuid.UUID) error {
	s.mu.Lock()
	delete(s.blocks, user)
	s.mu.Unlock()
	return s.saveChannelData()
}

// ---- channel registry ----

// SaveChannel stores a copy so later mutation of the caller's struct
// cannot race the persistence pass.
func (s *Store) SaveChannel(_ context.Context, ch *model.Channel) error {
	own := *ch
	s.mu.Lock()
	s.channels[own.Name] = &own
	s.mu.Unlock()
	return s.saveChannelData()
}

func (s *Store) DeleteChannel(_ context.Context, name string) error {
	s.mu.Lock()
	delete(s.channels, name)
	s.mu.Unlock()
	return s.saveChannelData()
}

func (s *Store) LoadChannels(_ context.Context) ([]*model.Channel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*model.Channel, 0, len(s.channels))
	for _, ch := range s.channels {
		cp := *ch
		out = append(out, &cp)
	}
	return out, nil
}

// ---- quotas ----

func (s *Store) ChannelCount(_ context.Context, user uuid.UUID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.counts[user], nil
}

func (s *Store) RecordChannelCreation(_ context.Context, user uuid.UUID, channel string) error {
	s.mu.Lock()
	s.counts[user]++
	if s.owned[user] == nil {
		s.owned[user] = make(map[string]struct{})
	}
	s.owned[user][channel] = struct{}{}
	s.mu.Unlock()
	return s.saveChannelData()
}

func (s *Store) RecordChannelDeletion(_ context.Context, user uuid.UUID, channel string) error {
	s.mu.Lock()
	if s.counts[user] > 0 {
		s.counts[user]--
	}
	if owned, ok := s.owned[user]; ok {
		delete(owned, channel)
		if len(owned) == 0 {
			delete(s.owned, user)
		}
	}
	s.mu.Unlock()
	return s.saveChannelData()
}

// ---- chat log ----

// The file backend keeps no message log.

func (s *Store) LogMessage(_ context.Context, _, _, _ string) error { return nil }

func (s *Store) History(_ context.Context, _ string, _ int) ([]model.ChatMessage, error) {
	return nil, nil
}
