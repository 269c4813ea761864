package profile

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/If-Master/ChatControlPlugin/internal/chat/model"
	"github.com/If-Master/ChatControlPlugin/pkg/errors"
	"github.com/If-Master/ChatControlPlugin/pkg/logger"
)

// Manager keeps per-user chat profiles, loading each from its YAML file
// on first access and holding it in memory until Unload. One file per
// user under <dir>/profiles.
type Manager struct {
	dir string
	log *logger.Logger

	mu       sync.Mutex
	profiles map[uuid.UUID]*model.UserChatProfile
}

func NewManager(dataDir string, log *logger.Logger) (*Manager, error) {
	dir := filepath.Join(dataDir, "profiles")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.ErrStorageIO("create profile dir", err)
	}
	return &Manager{
		dir:      dir,
		log:      log,
		profiles: make(map[uuid.UUID]*model.UserChatProfile),
	}, nil
}

func (m *Manager) path(user uuid.UUID) string {
	return filepath.Join(m.dir, user.String()+".yml")
}

// Get returns the user's profile, loading it from disk on first access.
// A missing or unreadable file yields a fresh default profile.
func (m *Manager) Get(user uuid.UUID) *model.UserChatProfile {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.profiles[user]; ok {
		return p
	}
	p := m.load(user)
	m.profiles[user] = p
	return p
}

func (m *Manager) load(user uuid.UUID) *model.UserChatProfile {
	data, err := os.ReadFile(m.path(user))
	if err != nil {
		if !os.IsNotExist(err) {
			m.log.Warn("failed to read profile, starting fresh", "user", user, "error", err)
		}
		return model.NewUserChatProfile()
	}
	var snap model.ProfileSnapshot
	if err := yaml.Unmarshal(data, &snap); err != nil {
		m.log.Warn("corrupt profile file, starting fresh", "user", user, "error", err)
		return model.NewUserChatProfile()
	}
	return snap.Restore()
}

// Save writes the user's current profile to disk. A no-op when the
// profile was never loaded.
func (m *Manager) Save(user uuid.UUID) error {
	m.mu.Lock()
	p, ok := m.profiles[user]
	m.mu.Unlock()
	if !ok {
		return nil
	}
	return m.write(user, p)
}

func (m *Manager) write(user uuid.UUID, p *model.UserChatProfile) error {
	data, err := yaml.Marshal(p.Snapshot())
	if err != nil {
		return errors.ErrStorageIO("encode profile", err)
	}
	if err := os.WriteFile(m.path(user), data, 0o644); err != nil {
		return errors.ErrStorageIO("write profile", err)
	}
	return nil
}

// Unload saves and evicts the profile, typically on disconnect.
func (m *Manager) Unload(user uuid.UUID) error {
	m.mu.Lock()
	p, ok := m.profiles[user]
	delete(m.profiles, user)
	m.mu.Unlock()
	if !ok {
		return nil
	}
	return m.write(user, p)
}

// SaveAll flushes every loaded profile. Errors are logged per profile
// so one bad file does not stop the rest of a shutdown flush.
func (m *Manager) SaveAll() {
	m.mu.Lock()
	snapshot := make(map[uuid.UUID]*model.UserChatProfile, len(m.profiles))
	for user, p := range m.profiles {
		snapshot[user] = p
	}
	m.mu.Unlock()

	for user, p := range snapshot {
		if err := m.write(user, p); err != nil {
			m.log.Error("failed to save profile", "user", user, "error", err)
		}
	}
}

// Loaded reports how many profiles are resident.
func (m *Manager) Loaded() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.profiles)
}
