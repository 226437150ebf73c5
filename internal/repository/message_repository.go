package repository

import (
	"context"
	"database/sql"
	"time"

	"campus-relay/internal/domain"
	"campus-relay/internal/domain/message"
	relay_errors "campus-relay/pkg/errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PostgresMessageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &PostgresMessageRepository{db: db}
}

func (r *PostgresMessageRepository) Create(ctx context.Context, m *message.Message) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return translateError(r.db.WithContext(ctx).Create(m).Error)
}

func (r *PostgresMessageRepository) GetByID(ctx context.Context, id uuid.UUID) (message.Message, error) {
	var m message.Message
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&m).Error
	if err != nil {
		return message.Message{}, translateError(err)
	}
	return m, nil
}

func (r *PostgresMessageRepository) GetThread(ctx context.Context, a, b uuid.UUID, ref domain.ContextRef) ([]message.Message, error) {
	var messages []message.Message
	err := r.db.WithContext(ctx).
		Where("((sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?))", a, b, b, a).
		Where("context_kind = ? AND context_id = ?", ref.Kind, ref.ID).
		Order("created_at ASC, id ASC").
		Find(&messages).Error
	if err != nil {
		return nil, err
	}
	return messages, nil
}

func (r *PostgresMessageRepository) MarkRead(ctx context.Context, receiverID uuid.UUID, ids []uuid.UUID) ([]message.Message, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var updated []message.Message
	err := r.db.WithContext(ctx).
		Model(&updated).
		Clauses(clause.Returning{}).
		Where("id IN ? AND receiver_id = ? AND is_read = ?", ids, receiverID, false).
		Update("is_read", true).Error
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (r *PostgresMessageRepository) CountUnread(ctx context.Context, receiverID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&message.Message{}).
		Where("receiver_id = ? AND is_read = ?", receiverID, false).
		Count(&count).Error
	return count, err
}

func (r *PostgresMessageRepository) GetEscalationCandidates(ctx context.Context, cutoff time.Time, after *Cursor, limit int) ([]message.Message, error) {
	var messages []message.Message
	q := r.db.WithContext(ctx).
		Where("is_read = ? AND email_notification_sent = ? AND created_at <= ?", false, false, cutoff)
	if after != nil {
		q = q.Where("(created_at, id) > (?, ?)", after.CreatedAt, after.ID)
	}
	q = q.Order("created_at ASC, id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&messages).Error; err != nil {
		return nil, err
	}
	return messages, nil
}

func (r *PostgresMessageRepository) ClaimEscalation(ctx context.Context, id uuid.UUID, claimedAt, staleBefore time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&message.Message{}).
		Where("id = ? AND email_notification_sent = ?", id, false).
		Where("(escalation_claimed_at IS NULL OR escalation_claimed_at < ?)", staleBefore).
		Update("escalation_claimed_at", sql.NullTime{Time: claimedAt, Valid: true})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return relay_errors.ErrConflict
	}
	return nil
}

func (r *PostgresMessageRepository) ReleaseEscalation(ctx context.Context, id uuid.UUID, claimedAt time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&message.Message{}).
		Where("id = ? AND escalation_claimed_at = ?", id, claimedAt).
		Update("escalation_claimed_at", sql.NullTime{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return relay_errors.ErrConflict
	}
	return nil
}

func (r *PostgresMessageRepository) MarkEmailNotificationSent(ctx context.Context, id uuid.UUID, sentAt time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&message.Message{}).
		Where("id = ? AND email_notification_sent = ?", id, false).
		Updates(map[string]any{
			"email_notification_sent":    true,
			"email_notification_sent_at": sql.NullTime{Time: sentAt, Valid: true},
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return relay_errors.ErrConflict
	}
	return nil
}
