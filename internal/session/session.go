// Package session persists the signed-in operator's bearer token.
//
// A Store is a small string key-value store. The fleet client keeps two
// keys in it: KeyToken holds the bearer token and KeyUser the JSON profile
// returned at login. Both are removed together when the backend rejects the
// token.
package session

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/muurk/fleetsync/internal/logging"
	"go.uber.org/zap"
)

const (
	// KeyToken is the key holding the bearer token.
	KeyToken = "token"

	// KeyUser is the key holding the signed-in user's profile as JSON.
	KeyUser = "user"
)

// ErrNoSession is returned by Session.Require when no token is stored.
var ErrNoSession = errors.New("not logged in")

// Store is a persisted key-value store.
type Store interface {
	// Get returns the value for key and whether it was present.
	Get(key string) (string, bool, error)
	// Set stores value under key, replacing any previous value.
	Set(key, value string) error
	// Delete removes the given keys. Missing keys are not an error.
	Delete(keys ...string) error
}

// Session is the credential view over a Store.
type Session struct {
	store Store
}

// New wraps store.
func New(store Store) *Session {
	return &Session{store: store}
}

// Token returns the stored token, or "" when there is none or the store
// cannot be read.
func (s *Session) Token() string {
	token, ok, err := s.store.Get(KeyToken)
	if err != nil {
		logging.Warn("Failed to read session token", zap.Error(err))
		return ""
	}
	if !ok {
		return ""
	}
	return token
}

// Require returns the stored token or ErrNoSession.
func (s *Session) Require() (string, error) {
	if token := s.Token(); token != "" {
		return token, nil
	}
	return "", ErrNoSession
}

// AuthorizationHeader returns the Authorization header value for the stored
// token, adding the Bearer prefix when it is missing. It returns "" when
// there is no token.
func (s *Session) AuthorizationHeader() string {
	token := s.Token()
	if token == "" {
		return ""
	}
	if strings.HasPrefix(token, "Bearer ") {
		return token
	}
	return "Bearer " + token
}

// User returns the stored user profile JSON.
func (s *Session) User() (string, bool) {
	user, ok, err := s.store.Get(KeyUser)
	if err != nil {
		logging.Warn("Failed to read session user", zap.Error(err))
		return "", false
	}
	return user, ok
}

// Save stores a fresh token and, if non-empty, the user profile.
func (s *Session) Save(token, user string) error {
	if token == "" {
		return fmt.Errorf("empty session token")
	}
	if err := s.store.Set(KeyToken, token); err != nil {
		return fmt.Errorf("failed to store token: %w", err)
	}
	if user != "" {
		if err := s.store.Set(KeyUser, user); err != nil {
			return fmt.Errorf("failed to store user: %w", err)
		}
	}
	return nil
}

// Clear removes the token and user profile.
func (s *Session) Clear() error {
	if err := s.store.Delete(KeyToken, KeyUser); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	return nil
}

// MemoryStore is a Store that lives only as long as the process.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string]string)}
}

func (m *MemoryStore) Get(key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *MemoryStore) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

func (m *MemoryStore) Delete(keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.values, k)
	}
	return nil
}
