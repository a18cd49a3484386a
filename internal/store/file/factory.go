package file

import (
	"fmt"
	"path/filepath"

	"github.com/tzurot/tzurot/internal/store"
)

// NewFileStores creates all stores backed by JSON files under DataDir
// (standalone mode).
func NewFileStores(cfg store.StoreConfig) (*store.Stores, error) {
	dir := cfg.DataDir
	if dir == "" {
		dir = "data"
	}

	personalitiesPath := cfg.PersonalitiesFile
	if personalitiesPath == "" {
		personalitiesPath = filepath.Join(dir, "personalities.json")
	}

	personalities, err := NewPersonalityStore(personalitiesPath)
	if err != nil {
		return nil, fmt.Errorf("personality store: %w", err)
	}
	auth, err := NewAuthStore(filepath.Join(dir, "auth.json"))
	if err != nil {
		return nil, fmt.Errorf("auth store: %w", err)
	}
	conversations, err := NewConversationStore(filepath.Join(dir, "conversations.json"))
	if err != nil {
		return nil, fmt.Errorf("conversation store: %w", err)
	}

	return &store.Stores{
		Personalities: personalities,
		Auth:          auth,
		Conversations: conversations,
	}, nil
}
