package tokens

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/vortexlabs/loginchat/pkg/logger"
	"github.com/vortexlabs/loginchat/pkg/store"
)

const (
	AccessTokenKey  = "access_token"
	RefreshTokenKey = "refresh_token"
	UserKey         = "user"
)

// User is the cached profile returned by the login endpoints. Unknown
// fields are kept so profile merges do not drop data.
type User map[string]interface{}

type memoryTokens struct {
	accessToken  string
	refreshToken string
}

// Manager keeps the access and refresh tokens in the session store, with an
// in-memory copy used whenever that store fails.
type Manager struct {
	store store.Store

	mu     sync.RWMutex
	memory *memoryTokens
}

func NewManager(s store.Store) *Manager {
	if s == nil {
		s = store.UnavailableStore{}
	}
	return &Manager{store: s}
}

// SetTokens saves both tokens. The refresh token is only written when
// non-empty. On any storage failure both values are kept in memory instead.
func (m *Manager) SetTokens(accessToken, refreshToken string) {
	err := m.store.Set(AccessTokenKey, accessToken)
	if err == nil && refreshToken != "" {
		err = m.store.Set(RefreshTokenKey, refreshToken)
	}
	if err != nil {
		logger.WarnCF("tokens", "Session storage unavailable, keeping tokens in memory",
			map[string]interface{}{"error": err.Error()})
		m.mu.Lock()
		m.memory = &memoryTokens{accessToken: accessToken, refreshToken: refreshToken}
		m.mu.Unlock()
	}
}

func (m *Manager) AccessToken() string {
	return m.lookup(AccessTokenKey, func(t *memoryTokens) string { return t.accessToken })
}

func (m *Manager) RefreshToken() string {
	return m.lookup(RefreshTokenKey, func(t *memoryTokens) string { return t.refreshToken })
}

func (m *Manager) lookup(key string, fromMemory func(*memoryTokens) string) string {
	if v, err := m.store.Get(key); err == nil && v != "" {
		return v
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.memory == nil {
		return ""
	}
	return fromMemory(m.memory)
}

// Clear removes tokens and the cached user. Storage errors are ignored;
// the memory copy is always dropped.
func (m *Manager) Clear() {
	_ = m.store.Delete(AccessTokenKey)
	_ = m.store.Delete(RefreshTokenKey)
	_ = m.store.Delete(UserKey)

	m.mu.Lock()
	m.memory = nil
	m.mu.Unlock()
}

func (m *Manager) SetUser(u User) error {
	data, err := json.Marshal(u)
	if err != nil {
		return err
	}
	return m.store.Set(UserKey, string(data))
}

// User returns the cached user, or nil when none is stored.
func (m *Manager) User() (User, error) {
	raw, err := m.store.Get(UserKey)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if raw == "" {
		return nil, nil
	}
	var u User
	if err := json.Unmarshal([]byte(raw), &u); err != nil {
		return nil, err
	}
	return u, nil
}

// MergeUser overlays fields onto the cached user. Nothing is written when no
// user is cached.
func (m *Manager) MergeUser(fields map[string]interface{}) error {
	current, err := m.User()
	if err != nil || current == nil {
		return err
	}
	for k, v := range fields {
		current[k] = v
	}
	return m.SetUser(current)
}

func codeSentKey(kind string) string {
	return "cooldown:" + kind
}

// LastCodeSent returns when a verification code of this kind was last
// requested in this session.
func (m *Manager) LastCodeSent(kind string) (time.Time, bool) {
	raw, err := m.store.Get(codeSentKey(kind))
	if err != nil {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// MarkCodeSent records a verification code request. Storage errors are
// logged; the cooldown then only holds for this process.
func (m *Manager) MarkCodeSent(kind string, at time.Time) {
	if err := m.store.Set(codeSentKey(kind), at.UTC().Format(time.RFC3339Nano)); err != nil {
		logger.DebugCF("tokens", "Could not record code request", map[string]interface{}{
			"kind":  kind,
			"error": err.Error(),
		})
	}
}
