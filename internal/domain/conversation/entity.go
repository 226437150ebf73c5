package conversation

import (
	"bytes"
	"time"

	"campus-relay/internal/domain"
	"campus-relay/internal/domain/message"

	"github.com/google/uuid"
)

// Conversation represents the conversations table. One row exists per
// unordered participant pair and context; ParticipantA always sorts first.
type Conversation struct {
	ID            uuid.UUID         `gorm:"type:uuid;primaryKey"`
	ParticipantA  uuid.UUID         `gorm:"type:uuid;not null;index"`
	ParticipantB  uuid.UUID         `gorm:"type:uuid;not null;index"`
	Context       domain.ContextRef `gorm:"embedded;embeddedPrefix:context_"`
	LastMessageID uuid.NullUUID     `gorm:"type:uuid"`
	CreatedAt     time.Time
	UpdatedAt     time.Time

	// Relationships
	LastMessage *message.Message `gorm:"foreignKey:LastMessageID"`
}

func (Conversation) TableName() string {
	return "conversations"
}

// Key identifies a conversation independent of who sent first.
type Key struct {
	ParticipantA uuid.UUID
	ParticipantB uuid.UUID
	Context      domain.ContextRef
}

// NewKey orders the two participants so that (x, y) and (y, x) produce the same key.
func NewKey(x, y uuid.UUID, ctx domain.ContextRef) Key {
	if bytes.Compare(x[:], y[:]) > 0 {
		x, y = y, x
	}
	return Key{ParticipantA: x, ParticipantB: y, Context: ctx}
}

func (c Conversation) Key() Key {
	return Key{ParticipantA: c.ParticipantA, ParticipantB: c.ParticipantB, Context: c.Context}
}

func (c Conversation) HasParticipant(userID uuid.UUID) bool {
	return c.ParticipantA == userID || c.ParticipantB == userID
}

// OtherParticipant returns the participant that is not userID.
func (c Conversation) OtherParticipant(userID uuid.UUID) uuid.UUID {
	if c.ParticipantA == userID {
		return c.ParticipantB
	}
	return c.ParticipantA
}
