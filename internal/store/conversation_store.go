package store

import (
	"context"
	"time"
)

// ActiveConversation binds a (user, channel) pair to the personality from
// a recent turn, so follow-up messages route without a fresh mention.
type ActiveConversation struct {
	UserID      string    `json:"user_id"`
	ChannelID   string    `json:"channel_id"`
	Personality string    `json:"personality"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ChannelActivation is a channel-wide sticky binding to a personality,
// independent of per-user conversation state.
type ChannelActivation struct {
	ChannelID   string    `json:"channel_id"`
	Personality string    `json:"personality"`
	ActivatedBy string    `json:"activated_by"`
	ActivatedAt time.Time `json:"activated_at"`
}

// ConversationStore persists conversation bindings.
type ConversationStore interface {
	SetActive(ctx context.Context, conv ActiveConversation) error
	GetActive(ctx context.Context, userID, channelID string) (ActiveConversation, bool, error)
	ClearActive(ctx context.Context, userID, channelID string) error

	Activate(ctx context.Context, act ChannelActivation) error
	GetActivation(ctx context.Context, channelID string) (ChannelActivation, bool, error)
	Deactivate(ctx context.Context, channelID string) error
}
