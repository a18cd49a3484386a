package file

import (
	"context"
	"sync"

	"github.com/tzurot/tzurot/internal/store"
)

type authFileData struct {
	Users   map[string]store.UserAuth `json:"users"`
	Proxies map[string]string         `json:"proxies"` // display identity → real user ID
}

// AuthStore keeps user auth state and proxy identity mappings in one
// JSON file.
type AuthStore struct {
	mu   sync.RWMutex
	path string
	data authFileData
}

// NewAuthStore loads (or initializes) the auth file.
func NewAuthStore(path string) (*AuthStore, error) {
	s := &AuthStore{
		path: path,
		data: authFileData{
			Users:   make(map[string]store.UserAuth),
			Proxies: make(map[string]string),
		},
	}
	if err := loadJSON(path, &s.data); err != nil {
		return nil, err
	}
	if s.data.Users == nil {
		s.data.Users = make(map[string]store.UserAuth)
	}
	if s.data.Proxies == nil {
		s.data.Proxies = make(map[string]string)
	}
	return s, nil
}

func (s *AuthStore) GetUserAuth(_ context.Context, userID string) (store.UserAuth, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	auth, ok := s.data.Users[userID]
	return auth, ok, nil
}

func (s *AuthStore) SetUserAuth(_ context.Context, auth store.UserAuth) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.Users[auth.UserID] = auth
	return saveJSON(s.path, &s.data)
}

func (s *AuthStore) RevokeUserAuth(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data.Users, userID)
	return saveJSON(s.path, &s.data)
}

func (s *AuthStore) RecordProxyIdentity(_ context.Context, key, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.Proxies[key] = userID
	return saveJSON(s.path, &s.data)
}

func (s *AuthStore) LookupProxyIdentity(_ context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	userID, ok := s.data.Proxies[key]
	return userID, ok, nil
}
