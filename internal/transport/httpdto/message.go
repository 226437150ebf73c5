package httpdto

import (
	"time"

	"campus-relay/internal/domain/message"
)

type SendMessageRequest struct {
	RecipientID string `json:"recipientId"`
	Text        string `json:"text"`
	ListingID   string `json:"listingId,omitempty"`
	TextbookID  string `json:"textbookId,omitempty"`
	NoteID      string `json:"noteId,omitempty"`
}

type MarkReadRequest struct {
	MessageIDs []string `json:"messageIds"`
}

type MarkReadResponse struct {
	Ref     string `json:"ref,omitempty"`
	Updated int    `json:"updated"`
}

type UnreadCountResponse struct {
	Count int64 `json:"count"`
}

// UserSummary carries the display fields of a message participant.
type UserSummary struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
}

type MessageResponse struct {
	ID                    string       `json:"id"`
	SenderID              string       `json:"senderId"`
	RecipientID           string       `json:"recipientId"`
	Sender                *UserSummary `json:"sender,omitempty"`
	Text                  string       `json:"text"`
	ListingID             string       `json:"listingId,omitempty"`
	TextbookID            string       `json:"textbookId,omitempty"`
	NoteID                string       `json:"noteId,omitempty"`
	Read                  bool         `json:"read"`
	EmailNotificationSent bool         `json:"emailNotificationSent"`
	CreatedAt             time.Time    `json:"createdAt"`
}

func NewMessageResponse(m message.Message) MessageResponse {
	listingID, textbookID, noteID := m.Context.Fields()
	return MessageResponse{
		ID:                    m.ID.String(),
		SenderID:              m.SenderID.String(),
		RecipientID:           m.ReceiverID.String(),
		Text:                  m.Text,
		ListingID:             listingID,
		TextbookID:            textbookID,
		NoteID:                noteID,
		Read:                  m.Read,
		EmailNotificationSent: m.EmailNotificationSent,
		CreatedAt:             m.CreatedAt,
	}
}

func NewMessageResponses(items []message.Message) []MessageResponse {
	out := make([]MessageResponse, 0, len(items))
	for _, m := range items {
		out = append(out, NewMessageResponse(m))
	}
	return out
}

// MessagesReadEvent is pushed to the original sender when the recipient reads.
type MessagesReadEvent struct {
	ReaderID   string    `json:"readerId"`
	MessageIDs []string  `json:"messageIds"`
	ReadAt     time.Time `json:"readAt"`
}

// MessageSentEvent acknowledges a socket message.send.
type MessageSentEvent struct {
	Ref     string          `json:"ref,omitempty"`
	Message MessageResponse `json:"message"`
}
