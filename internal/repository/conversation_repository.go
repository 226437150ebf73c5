package repository

import (
	"context"
	"time"

	"campus-relay/internal/domain/conversation"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PostgresConversationRepository struct {
	db *gorm.DB
}

func NewConversationRepository(db *gorm.DB) ConversationRepository {
	return &PostgresConversationRepository{db: db}
}

func (r *PostgresConversationRepository) Upsert(ctx context.Context, key conversation.Key, lastMessageID uuid.UUID, at time.Time) (conversation.Conversation, error) {
	c := conversation.Conversation{
		ID:            uuid.New(),
		ParticipantA:  key.ParticipantA,
		ParticipantB:  key.ParticipantB,
		Context:       key.Context,
		LastMessageID: uuid.NullUUID{UUID: lastMessageID, Valid: true},
		CreatedAt:     at,
		UpdatedAt:     at,
	}
	err := r.db.WithContext(ctx).
		Omit(clause.Associations).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{
				{Name: "participant_a"},
				{Name: "participant_b"},
				{Name: "context_kind"},
				{Name: "context_id"},
			},
			DoUpdates: clause.AssignmentColumns([]string{"last_message_id", "updated_at"}),
		}).
		Create(&c).Error
	if err != nil {
		return conversation.Conversation{}, translateError(err)
	}
	// On conflict the generated ID was discarded; read back the surviving row.
	return r.Find(ctx, key)
}

func (r *PostgresConversationRepository) GetByID(ctx context.Context, id uuid.UUID) (conversation.Conversation, error) {
	var c conversation.Conversation
	err := r.db.WithContext(ctx).
		Preload("LastMessage").
		Where("id = ?", id).
		First(&c).Error
	if err != nil {
		return conversation.Conversation{}, translateError(err)
	}
	return c, nil
}

func (r *PostgresConversationRepository) Find(ctx context.Context, key conversation.Key) (conversation.Conversation, error) {
	var c conversation.Conversation
	err := r.db.WithContext(ctx).
		Preload("LastMessage").
		Where("participant_a = ? AND participant_b = ?", key.ParticipantA, key.ParticipantB).
		Where("context_kind = ? AND context_id = ?", key.Context.Kind, key.Context.ID).
		First(&c).Error
	if err != nil {
		return conversation.Conversation{}, translateError(err)
	}
	return c, nil
}

func (r *PostgresConversationRepository) ListForUser(ctx context.Context, userID uuid.UUID) ([]conversation.Conversation, error) {
	var conversations []conversation.Conversation
	err := r.db.WithContext(ctx).
		Preload("LastMessage").
		Where("participant_a = ? OR participant_b = ?", userID, userID).
		Order("updated_at DESC").
		Find(&conversations).Error
	if err != nil {
		return nil, err
	}
	return conversations, nil
}
