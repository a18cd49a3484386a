// Package store defines the storage interfaces behind the personality,
// authorization, and conversation state, with file-backed (standalone)
// and Postgres-backed (managed) implementations in subpackages.
package store

// Stores is the top-level container for all storage backends.
type Stores struct {
	Personalities PersonalityStore
	Auth          AuthStore
	Conversations ConversationStore
}

// StoreConfig carries backend selection inputs to the factories.
type StoreConfig struct {
	PostgresDSN       string // managed mode when set
	DataDir           string // standalone mode file location
	PersonalitiesFile string // overrides <DataDir>/personalities.json
}
