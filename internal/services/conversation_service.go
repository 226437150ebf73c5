package services

import (
	"context"

	"campus-relay/internal/domain"
	"campus-relay/internal/domain/conversation"
	"campus-relay/internal/repository"
	relay_errors "campus-relay/pkg/errors"

	"github.com/google/uuid"
)

// ConversationService reads the conversation index. Writes happen only
// through DeliveryService.SendMessage.
type ConversationService struct {
	repo repository.ConversationRepository
}

func NewConversationService(repo repository.ConversationRepository) *ConversationService {
	return &ConversationService{repo: repo}
}

// List returns the caller's conversations, most recently active first.
func (s *ConversationService) List(ctx context.Context, callerID uuid.UUID) ([]conversation.Conversation, error) {
	if callerID == uuid.Nil {
		return nil, relay_errors.ErrUnauthorized
	}
	return s.repo.ListForUser(ctx, callerID)
}

// Get returns one conversation. Absent is ErrNotFound; present but not the
// caller's is ErrForbidden.
func (s *ConversationService) Get(ctx context.Context, callerID uuid.UUID, rawID string) (conversation.Conversation, error) {
	if callerID == uuid.Nil {
		return conversation.Conversation{}, relay_errors.ErrUnauthorized
	}
	id, err := domain.ParseID(rawID)
	if err != nil {
		return conversation.Conversation{}, err
	}
	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return conversation.Conversation{}, err
	}
	if !c.HasParticipant(callerID) {
		return conversation.Conversation{}, relay_errors.ErrForbidden
	}
	return c, nil
}
