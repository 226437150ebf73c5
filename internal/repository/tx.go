package repository

import (
	"context"

	"gorm.io/gorm"
)

// Repositories is the set of stores a unit of work can touch.
type Repositories struct {
	Messages      MessageRepository
	Conversations ConversationRepository
	Notifications NotificationRepository
}

// TxManager runs fn so that all writes made through tx commit or roll back together.
type TxManager interface {
	WithinTx(ctx context.Context, fn func(tx Repositories) error) error
}

type GormTxManager struct {
	db *gorm.DB
}

func NewTxManager(db *gorm.DB) *GormTxManager {
	return &GormTxManager{db: db}
}

func (m *GormTxManager) WithinTx(ctx context.Context, fn func(tx Repositories) error) error {
	return m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(Repositories{
			Messages:      NewMessageRepository(tx),
			Conversations: NewConversationRepository(tx),
			Notifications: NewNotificationRepository(tx),
		})
	})
}

// Repositories returns the non-transactional set.
func (m *GormTxManager) Repositories() Repositories {
	return Repositories{
		Messages:      NewMessageRepository(m.db),
		Conversations: NewConversationRepository(m.db),
		Notifications: NewNotificationRepository(m.db),
	}
}
