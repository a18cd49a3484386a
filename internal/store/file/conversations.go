package file

import (
	"context"
	"sync"

	"github.com/tzurot/tzurot/internal/store"
)

type conversationFileData struct {
	Active      map[string]store.ActiveConversation `json:"active"`      // "user:channel" → binding
	Activations map[string]store.ChannelActivation  `json:"activations"` // channel → activation
}

// ConversationStore keeps conversation bindings in one JSON file.
type ConversationStore struct {
	mu   sync.RWMutex
	path string
	data conversationFileData
}

// NewConversationStore loads (or initializes) the conversation file.
func NewConversationStore(path string) (*ConversationStore, error) {
	s := &ConversationStore{
		path: path,
		data: conversationFileData{
			Active:      make(map[string]store.ActiveConversation),
			Activations: make(map[string]store.ChannelActivation),
		},
	}
	if err := loadJSON(path, &s.data); err != nil {
		return nil, err
	}
	if s.data.Active == nil {
		s.data.Active = make(map[string]store.ActiveConversation)
	}
	if s.data.Activations == nil {
		s.data.Activations = make(map[string]store.ChannelActivation)
	}
	return s, nil
}

func activeKey(userID, channelID string) string { return userID + ":" + channelID }

func (s *ConversationStore) SetActive(_ context.Context, conv store.ActiveConversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.Active[activeKey(conv.UserID, conv.ChannelID)] = conv
	return saveJSON(s.path, &s.data)
}

func (s *ConversationStore) GetActive(_ context.Context, userID, channelID string) (store.ActiveConversation, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	conv, ok := s.data.Active[activeKey(userID, channelID)]
	return conv, ok, nil
}

func (s *ConversationStore) ClearActive(_ context.Context, userID, channelID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data.Active, activeKey(userID, channelID))
	return saveJSON(s.path, &s.data)
}

func (s *ConversationStore) Activate(_ context.Context, act store.ChannelActivation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.Activations[act.ChannelID] = act
	return saveJSON(s.path, &s.data)
}

func (s *ConversationStore) GetActivation(_ context.Context, channelID string) (store.ChannelActivation, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	act, ok := s.data.Activations[channelID]
	return act, ok, nil
}

func (s *ConversationStore) Deactivate(_ context.Context, channelID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data.Activations, channelID)
	return saveJSON(s.path, &s.data)
}
