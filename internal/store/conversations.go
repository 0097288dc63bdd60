package store

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/capitalize-ai/calendar-assistant/internal/model"
)

func orderedMessages(db *gorm.DB) *gorm.DB {
	return db.Order("timestamp ASC, id ASC")
}

// CreateConversation starts an empty conversation for userID.
func (s *Store) CreateConversation(ctx context.Context, userID string) (*model.Conversation, error) {
	conv := &model.Conversation{UserID: userID, Messages: []model.Message{}}
	if err := s.db.WithContext(ctx).Create(conv).Error; err != nil {
		return nil, fmt.Errorf("create conversation: %w", err)
	}
	return conv, nil
}

// GetConversation loads a conversation with its messages in order.
func (s *Store) GetConversation(ctx context.Context, userID, id string) (*model.Conversation, error) {
	var conv model.Conversation
	err := s.db.WithContext(ctx).
		Preload("Messages", orderedMessages).
		Where("id = ? AND user_id = ?", id, userID).
		First(&conv).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &conv, nil
}

// ListConversations returns userID's conversations, most recently updated first.
func (s *Store) ListConversations(ctx context.Context, userID string) ([]model.Conversation, error) {
	convs := []model.Conversation{}
	err := s.db.WithContext(ctx).
		Preload("Messages", orderedMessages).
		Where("user_id = ?", userID).
		Order("updated_at DESC").
		Find(&convs).Error
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	return convs, nil
}

// TouchConversation bumps updated_at.
func (s *Store) TouchConversation(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Model(&model.Conversation{}).
		Where("id = ?", id).
		UpdateColumn("updated_at", time.Now().UTC()).Error
}

// DeleteConversation removes a conversation and its messages. Events produced
// by the conversation survive with their conversation and message links cleared.
func (s *Store) DeleteConversation(ctx context.Context, userID, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var conv model.Conversation
		if err := tx.Where("id = ? AND user_id = ?", id, userID).First(&conv).Error; err != nil {
			return notFound(err)
		}
		if err := tx.Model(&model.Event{}).
			Where("conversation_id = ?", id).
			UpdateColumns(map[string]any{"conversation_id": nil, "message_id": nil}).Error; err != nil {
			return fmt.Errorf("detach events: %w", err)
		}
		if err := tx.Where("conversation_id = ?", id).Delete(&model.Message{}).Error; err != nil {
			return fmt.Errorf("delete messages: %w", err)
		}
		if err := tx.Delete(&conv).Error; err != nil {
			return fmt.Errorf("delete conversation: %w", err)
		}
		return nil
	})
}

// AddMessage appends a message to its conversation.
func (s *Store) AddMessage(ctx context.Context, msg *model.Message) error {
	if err := s.db.WithContext(ctx).Create(msg).Error; err != nil {
		return fmt.Errorf("add message: %w", err)
	}
	return nil
}

// ListMessages returns a conversation's messages in chronological order.
func (s *Store) ListMessages(ctx context.Context, conversationID string) ([]model.Message, error) {
	msgs := []model.Message{}
	err := orderedMessages(s.db.WithContext(ctx)).
		Where("conversation_id = ?", conversationID).
		Find(&msgs).Error
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return msgs, nil
}
