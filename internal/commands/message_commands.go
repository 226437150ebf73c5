package commands

import (
	relay_errors "campus-relay/pkg/errors"

	"github.com/google/uuid"
)

const (
	TypeSendMessage = "message.send"
	TypeMarkRead    = "message.read"
)

// SendMessageCommand is a message.send frame from a live connection.
// SenderID comes from the authenticated connection, never from the frame.
type SendMessageCommand struct {
	SenderID    uuid.UUID `json:"-"`
	RecipientID string    `json:"recipientId"`
	Text        string    `json:"text"`
	ListingID   string    `json:"listingId,omitempty"`
	TextbookID  string    `json:"textbookId,omitempty"`
	NoteID      string    `json:"noteId,omitempty"`
	Ref         string    `json:"ref,omitempty"`
}

func (SendMessageCommand) CommandType() string {
	return TypeSendMessage
}

func (c SendMessageCommand) Validate() error {
	if c.SenderID == uuid.Nil {
		return relay_errors.ErrUnauthorized
	}
	return nil
}

// MarkReadCommand is a message.read frame from a live connection.
type MarkReadCommand struct {
	ReaderID   uuid.UUID `json:"-"`
	MessageIDs []string  `json:"messageIds"`
	Ref        string    `json:"ref,omitempty"`
}

func (MarkReadCommand) CommandType() string {
	return TypeMarkRead
}

func (c MarkReadCommand) Validate() error {
	if c.ReaderID == uuid.Nil {
		return relay_errors.ErrUnauthorized
	}
	if len(c.MessageIDs) == 0 {
		return relay_errors.ErrEmptyBatch
	}
	return nil
}
