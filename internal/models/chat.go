package models

import (
	"bytes"
	"time"

	"github.com/google/uuid"
)

type Conversation struct {
	ID             uuid.UUID `json:"id"`
	Participant1ID uuid.UUID `json:"participant1_id"`
	Participant2ID uuid.UUID `json:"participant2_id"`
	LastMessageAt  time.Time `json:"last_message_at"`
	CreatedAt      time.Time `json:"created_at"`
}

func (c *Conversation) HasParticipant(userID uuid.UUID) bool {
	return c.Participant1ID == userID || c.Participant2ID == userID
}

// OtherParticipant returns the participant that is not userID.
func (c *Conversation) OtherParticipant(userID uuid.UUID) uuid.UUID {
	if c.Participant1ID == userID {
		return c.Participant2ID
	}
	return c.Participant1ID
}

// CanonicalPair orders two user ids the way postgres orders uuids, so an
// unordered pair always maps to the same (participant1, participant2) row.
func CanonicalPair(a, b uuid.UUID) (uuid.UUID, uuid.UUID) {
	if bytes.Compare(a[:], b[:]) > 0 {
		return b, a
	}
	return a, b
}

type ChatMessage struct {
	ID             uuid.UUID `json:"id"`
	ConversationID uuid.UUID `json:"conversation_id"`
	SenderID       uuid.UUID `json:"sender_id"`
	Content        string    `json:"content"`
	Read           bool      `json:"read"`
	CreatedAt      time.Time `json:"created_at"`
}

type ConversationSummary struct {
	Conversation
	OtherUser   *PublicUser  `json:"other_user,omitempty"`
	LastMessage *ChatMessage `json:"last_message,omitempty"`
	UnreadCount int          `json:"unread_count"`
}
