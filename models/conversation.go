package models

import (
	"time"

	"github.com/google/uuid"
)

// Conversation is the persistent pairing of exactly two users. The stored
// pair is normalized (lower user id in slot 1) so the composite unique index
// holds regardless of who opened the conversation.
type Conversation struct {
	ID             uuid.UUID     `gorm:"type:uuid;primaryKey" json:"id"`
	Participant1ID uint          `gorm:"not null;uniqueIndex:idx_conversation_pair" json:"participant1_id"`
	Participant2ID uint          `gorm:"not null;uniqueIndex:idx_conversation_pair" json:"participant2_id"`
	Participant1   User          `gorm:"foreignKey:Participant1ID" json:"participant1"`
	Participant2   User          `gorm:"foreignKey:Participant2ID" json:"participant2"`
	Messages       []ChatMessage `gorm:"foreignKey:ConversationID" json:"messages,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

// HasParticipant reports whether userID is bound to the conversation.
func (c *Conversation) HasParticipant(userID uint) bool {
	return c.Participant1ID == userID || c.Participant2ID == userID
}

// OtherParticipant returns the peer of userID in the conversation.
func (c *Conversation) OtherParticipant(userID uint) uint {
	if c.Participant1ID == userID {
		return c.Participant2ID
	}
	return c.Participant1ID
}
