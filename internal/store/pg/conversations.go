package pg

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"github.com/tzurot/tzurot/internal/store"
)

// PGConversationStore implements store.ConversationStore backed by Postgres.
type PGConversationStore struct {
	db *sql.DB
}

func NewPGConversationStore(db *sql.DB) *PGConversationStore {
	return &PGConversationStore{db: db}
}

func (s *PGConversationStore) SetActive(ctx context.Context, conv store.ActiveConversation) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO active_conversations (id, user_id, channel_id, personality, updated_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (user_id, channel_id) DO UPDATE SET
			personality = EXCLUDED.personality,
			updated_at = EXCLUDED.updated_at`,
		uuid.Must(uuid.NewV7()), conv.UserID, conv.ChannelID, conv.Personality, conv.UpdatedAt)
	return err
}

func (s *PGConversationStore) GetActive(ctx context.Context, userID, channelID string) (store.ActiveConversation, bool, error) {
	var conv store.ActiveConversation
	err := s.db.QueryRowContext(ctx,
		`SELECT user_id, channel_id, personality, updated_at
		 FROM active_conversations WHERE user_id = $1 AND channel_id = $2`,
		userID, channelID,
	).Scan(&conv.UserID, &conv.ChannelID, &conv.Personality, &conv.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return store.ActiveConversation{}, false, nil
	}
	if err != nil {
		return store.ActiveConversation{}, false, err
	}
	return conv, true, nil
}

func (s *PGConversationStore) ClearActive(ctx context.Context, userID, channelID string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM active_conversations WHERE user_id = $1 AND channel_id = $2`,
		userID, channelID)
	return err
}

func (s *PGConversationStore) Activate(ctx context.Context, act store.ChannelActivation) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO channel_activations (id, channel_id, personality, activated_by, activated_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (channel_id) DO UPDATE SET
			personality = EXCLUDED.personality,
			activated_by = EXCLUDED.activated_by,
			activated_at = EXCLUDED.activated_at`,
		uuid.Must(uuid.NewV7()), act.ChannelID, act.Personality, act.ActivatedBy, act.ActivatedAt)
	return err
}

func (s *PGConversationStore) GetActivation(ctx context.Context, channelID string) (store.ChannelActivation, bool, error) {
	var act store.ChannelActivation
	err := s.db.QueryRowContext(ctx,
		`SELECT channel_id, personality, activated_by, activated_at
		 FROM channel_activations WHERE channel_id = $1`, channelID,
	).Scan(&act.ChannelID, &act.Personality, &act.ActivatedBy, &act.ActivatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return store.ChannelActivation{}, false, nil
	}
	if err != nil {
		return store.ChannelActivation{}, false, err
	}
	return act, true, nil
}

func (s *PGConversationStore) Deactivate(ctx context.Context, channelID string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM channel_activations WHERE channel_id = $1`, channelID)
	return err
}
