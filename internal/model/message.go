package model

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

// MessageRole represents the role of a message sender.
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

// Valid reports whether r is a known role.
func (r MessageRole) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// Message is one immutable turn of a conversation.
type Message struct {
	ID             string      `gorm:"primaryKey;type:varchar(36)" json:"id"`
	ConversationID string      `gorm:"type:varchar(36);index;not null" json:"conversation_id"`
	Role           MessageRole `gorm:"type:varchar(16);not null" json:"role"`
	Content        string      `gorm:"type:text;not null" json:"content"`
	Timestamp      time.Time   `gorm:"index" json:"timestamp"`
}

// BeforeSave validates the role and fills id and timestamp.
func (m *Message) BeforeSave(_ *gorm.DB) error {
	if !m.Role.Valid() {
		return fmt.Errorf("%w: message role %q", ErrInvalidInput, m.Role)
	}
	if m.ConversationID == "" {
		return fmt.Errorf("%w: message without conversation", ErrInvalidInput)
	}
	if m.ID == "" {
		m.ID = NewID()
	}
	if m.Timestamp.IsZero() {
		m.Timestamp = time.Now().UTC()
	}
	return nil
}

// Turn is the role/content pair handed to the intent extractor.
type Turn struct {
	Role    MessageRole
	Content string
}

// Turns converts stored messages to extractor history, preserving order.
func Turns(msgs []Message) []Turn {
	turns := make([]Turn, 0, len(msgs))
	for _, m := range msgs {
		turns = append(turns, Turn{Role: m.Role, Content: m.Content})
	}
	return turns
}

// ChatRequest is the body of POST /chat.
type ChatRequest struct {
	Message        string  `json:"message"`
	ConversationID *string `json:"conversation_id,omitempty"`
}

// ChatResponse is returned by POST /chat and POST /chat/voice.
type ChatResponse struct {
	Message          *Message `json:"message"`
	AssistantMessage *Message `json:"assistant_message"`
	Events           []Event  `json:"events"`
	ConversationID   string   `json:"conversation_id"`
}
