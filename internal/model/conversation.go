// Package model defines the records and request/response types of the
// calendar assistant.
package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Conversation is a chat thread owned by one user. Messages are ordered by
// timestamp, which matches insertion order.
type Conversation struct {
	ID        string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	UserID    string    `gorm:"type:varchar(128);index;not null" json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Messages  []Message `gorm:"foreignKey:ConversationID;constraint:OnDelete:CASCADE" json:"messages"`
}

// BeforeCreate assigns a time-ordered id.
func (c *Conversation) BeforeCreate(_ *gorm.DB) error {
	if c.ID == "" {
		c.ID = NewID()
	}
	return nil
}

// NewID returns a UUIDv7 string, falling back to v4 if the clock source fails.
func NewID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
