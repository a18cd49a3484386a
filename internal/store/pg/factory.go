package pg

import (
	"fmt"

	"github.com/tzurot/tzurot/internal/store"
)

// NewPGStores creates all stores backed by Postgres (managed mode).
func NewPGStores(cfg store.StoreConfig) (*store.Stores, error) {
	db, err := OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	return &store.Stores{
		Personalities: NewPGPersonalityStore(db),
		Auth:          NewPGAuthStore(db),
		Conversations: NewPGConversationStore(db),
	}, nil
}
