package httpdto

import (
	"time"

	"campus-relay/internal/domain/conversation"

	"github.com/google/uuid"
)

type ConversationResponse struct {
	ID           string           `json:"id"`
	Participants []string         `json:"participants"`
	OtherUserID  string           `json:"otherUserId,omitempty"`
	ListingID    string           `json:"listingId,omitempty"`
	TextbookID   string           `json:"textbookId,omitempty"`
	NoteID       string           `json:"noteId,omitempty"`
	LastMessage  *MessageResponse `json:"lastMessage,omitempty"`
	CreatedAt    time.Time        `json:"createdAt"`
	UpdatedAt    time.Time        `json:"updatedAt"`
}

// NewConversationResponse renders c from the point of view of viewerID.
func NewConversationResponse(c conversation.Conversation, viewerID uuid.UUID) ConversationResponse {
	listingID, textbookID, noteID := c.Context.Fields()
	resp := ConversationResponse{
		ID:           c.ID.String(),
		Participants: []string{c.ParticipantA.String(), c.ParticipantB.String()},
		ListingID:    listingID,
		TextbookID:   textbookID,
		NoteID:       noteID,
		CreatedAt:    c.CreatedAt,
		UpdatedAt:    c.UpdatedAt,
	}
	if c.HasParticipant(viewerID) {
		resp.OtherUserID = c.OtherParticipant(viewerID).String()
	}
	if c.LastMessage != nil {
		last := NewMessageResponse(*c.LastMessage)
		resp.LastMessage = &last
	}
	return resp
}

func NewConversationResponses(items []conversation.Conversation, viewerID uuid.UUID) []ConversationResponse {
	out := make([]ConversationResponse, 0, len(items))
	for _, c := range items {
		out = append(out, NewConversationResponse(c, viewerID))
	}
	return out
}
