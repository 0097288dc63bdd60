// Package service holds the business rules of the assistant: the chat flow,
// event reconciliation against the remote calendar, and conversation access.
package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/capitalize-ai/calendar-assistant/internal/model"
	"github.com/capitalize-ai/calendar-assistant/pkg/logger"
)

// ConversationService handles conversation operations.
type ConversationService struct {
	store  ConversationStore
	logger *logger.Logger
}

// NewConversationService creates a new conversation service.
func NewConversationService(store ConversationStore, log *logger.Logger) *ConversationService {
	return &ConversationService{store: store, logger: log.Named("conversations")}
}

// List returns the user's conversations, most recently active first.
func (s *ConversationService) List(ctx context.Context, userID string) ([]model.Conversation, error) {
	return s.store.ListConversations(ctx, userID)
}

// Get returns one conversation with its messages.
func (s *ConversationService) Get(ctx context.Context, userID, id string) (*model.Conversation, error) {
	return s.store.GetConversation(ctx, userID, id)
}

// Delete removes a conversation and its messages. Events it produced are kept.
func (s *ConversationService) Delete(ctx context.Context, userID, id string) error {
	if err := s.store.DeleteConversation(ctx, userID, id); err != nil {
		return err
	}
	s.logger.Info("conversation deleted", zap.String("conversation_id", id), zap.String("user_id", userID))
	return nil
}
