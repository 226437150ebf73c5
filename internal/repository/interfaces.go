package repository

import (
	"context"
	"time"

	"campus-relay/internal/domain"
	"campus-relay/internal/domain/conversation"
	"campus-relay/internal/domain/message"
	"campus-relay/internal/domain/notification"
	"campus-relay/internal/domain/user"

	"github.com/google/uuid"
)

type MessageRepository interface {
	Create(ctx context.Context, m *message.Message) error
	GetByID(ctx context.Context, id uuid.UUID) (message.Message, error)

	// GetThread returns every message exchanged by a and b about ref, oldest first.
	GetThread(ctx context.Context, a, b uuid.UUID, ref domain.ContextRef) ([]message.Message, error)

	// MarkRead flips read=true on the listed messages addressed to receiverID
	// and returns the messages that actually changed.
	MarkRead(ctx context.Context, receiverID uuid.UUID, ids []uuid.UUID) ([]message.Message, error)
	CountUnread(ctx context.Context, receiverID uuid.UUID) (int64, error)

	// GetEscalationCandidates returns unread, un-emailed messages created at or
	// before cutoff, oldest first. A non-nil after resumes past that position.
	GetEscalationCandidates(ctx context.Context, cutoff time.Time, after *Cursor, limit int) ([]message.Message, error)

	// ClaimEscalation reserves the message for one sweep before its email is
	// sent. It fails with ErrConflict when the message was already emailed or
	// another claim newer than staleBefore holds it.
	ClaimEscalation(ctx context.Context, id uuid.UUID, claimedAt, staleBefore time.Time) error
	// ReleaseEscalation drops the claim taken at claimedAt so a later sweep can retry.
	ReleaseEscalation(ctx context.Context, id uuid.UUID, claimedAt time.Time) error

	// MarkEmailNotificationSent is conditional on the flag still being false;
	// it returns ErrConflict when another sweep already claimed the message.
	MarkEmailNotificationSent(ctx context.Context, id uuid.UUID, sentAt time.Time) error
}

// Cursor is a keyset position in (created_at, id) order.
type Cursor struct {
	CreatedAt time.Time
	ID        uuid.UUID
}

// CursorAfter returns the position just past m.
func CursorAfter(m message.Message) *Cursor {
	return &Cursor{CreatedAt: m.CreatedAt, ID: m.ID}
}

type ConversationRepository interface {
	// Upsert creates the conversation for key or, if it exists, points it at
	// lastMessageID and bumps updatedAt. It is a single statement.
	Upsert(ctx context.Context, key conversation.Key, lastMessageID uuid.UUID, at time.Time) (conversation.Conversation, error)
	GetByID(ctx context.Context, id uuid.UUID) (conversation.Conversation, error)
	Find(ctx context.Context, key conversation.Key) (conversation.Conversation, error)
	ListForUser(ctx context.Context, userID uuid.UUID) ([]conversation.Conversation, error)
}

type NotificationRepository interface {
	Create(ctx context.Context, n *notification.Notification) error
	GetByID(ctx context.Context, id uuid.UUID) (notification.Notification, error)
	ListForUser(ctx context.Context, userID uuid.UUID, unreadOnly bool, limit int) ([]notification.Notification, error)
	CountUnread(ctx context.Context, userID uuid.UUID) (int64, error)
	MarkRead(ctx context.Context, id uuid.UUID) error
	MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// UserDirectory resolves display name and email. It returns ErrNotFound for
// unknown users and any other error for transient failures.
type UserDirectory interface {
	GetProfile(ctx context.Context, id uuid.UUID) (user.Profile, error)
}

// SubjectDirectory resolves the title of a listing, textbook or note.
type SubjectDirectory interface {
	GetSubjectTitle(ctx context.Context, ref domain.ContextRef) (string, error)
}
