package services

import (
	"context"
	"encoding/json"
	"strings"

	"campus-relay/internal/domain"
	"campus-relay/internal/domain/notification"
	"campus-relay/internal/events"
	"campus-relay/internal/repository"
	"campus-relay/internal/transport/httpdto"
	relay_errors "campus-relay/pkg/errors"
	"campus-relay/pkg/logger"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type NotificationService struct {
	notifications repository.NotificationRepository
	push          pusher
	log           *logger.Logger
}

func NewNotificationService(notifications repository.NotificationRepository, registry events.Registry, log *logger.Logger) *NotificationService {
	log = log.Named("notifications")
	return &NotificationService{
		notifications: notifications,
		push:          newPusher(registry, log),
		log:           log,
	}
}

type CreateNotificationInput struct {
	UserID      uuid.UUID
	Type        notification.Type
	Title       string
	Message     string
	RelatedID   uuid.NullUUID
	RelatedType string
	Metadata    map[string]any
}

func (in CreateNotificationInput) validate() error {
	if in.UserID == uuid.Nil {
		return relay_errors.ErrMissingReceiver
	}
	if !in.Type.Valid() {
		return relay_errors.Invalidf("unknown notification type %q", in.Type)
	}
	if strings.TrimSpace(in.Title) == "" {
		return relay_errors.Invalidf("notification title is required")
	}
	return nil
}

// Create stores a notification without pushing it.
func (s *NotificationService) Create(ctx context.Context, in CreateNotificationInput) (notification.Notification, error) {
	if err := in.validate(); err != nil {
		return notification.Notification{}, err
	}
	n := notification.Notification{
		ID:          uuid.New(),
		UserID:      in.UserID,
		Type:        in.Type,
		Title:       strings.TrimSpace(in.Title),
		Message:     in.Message,
		RelatedID:   in.RelatedID,
		RelatedType: in.RelatedType,
	}
	if len(in.Metadata) > 0 {
		raw, err := json.Marshal(in.Metadata)
		if err != nil {
			return notification.Notification{}, relay_errors.Invalidf("notification metadata: %v", err)
		}
		n.Metadata = datatypes.JSON(raw)
	}
	if err := s.notifications.Create(ctx, &n); err != nil {
		return notification.Notification{}, err
	}
	return n, nil
}

// Notify stores a notification and pushes notification.new to the owner.
func (s *NotificationService) Notify(ctx context.Context, in CreateNotificationInput) (notification.Notification, error) {
	n, err := s.Create(ctx, in)
	if err != nil {
		return notification.Notification{}, err
	}
	if env, ok := s.push.envelope(ctx, events.EventNotificationNew, httpdto.NewNotificationResponse(n)); ok {
		s.push.push(ctx, n.UserID, env)
	}
	return n, nil
}

func (s *NotificationService) List(ctx context.Context, userID uuid.UUID, unreadOnly bool, limit int) ([]notification.Notification, error) {
	return s.notifications.ListForUser(ctx, userID, unreadOnly, limit)
}

func (s *NotificationService) UnreadCount(ctx context.Context, userID uuid.UUID) (int64, error) {
	return s.notifications.CountUnread(ctx, userID)
}

// owned loads a notification and enforces ownership: absent is 404, someone
// else's is 403.
func (s *NotificationService) owned(ctx context.Context, userID uuid.UUID, rawID string) (notification.Notification, error) {
	id, err := domain.ParseID(rawID)
	if err != nil {
		return notification.Notification{}, err
	}
	n, err := s.notifications.GetByID(ctx, id)
	if err != nil {
		return notification.Notification{}, err
	}
	if n.UserID != userID {
		return notification.Notification{}, relay_errors.ErrForbidden
	}
	return n, nil
}

func (s *NotificationService) MarkRead(ctx context.Context, userID uuid.UUID, rawID string) (notification.Notification, error) {
	n, err := s.owned(ctx, userID, rawID)
	if err != nil {
		return notification.Notification{}, err
	}
	if n.Read {
		return n, nil
	}
	if err := s.notifications.MarkRead(ctx, n.ID); err != nil {
		return notification.Notification{}, err
	}
	n.Read = true
	return n, nil
}

func (s *NotificationService) MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	return s.notifications.MarkAllRead(ctx, userID)
}

func (s *NotificationService) Delete(ctx context.Context, userID uuid.UUID, rawID string) error {
	n, err := s.owned(ctx, userID, rawID)
	if err != nil {
		return err
	}
	return s.notifications.Delete(ctx, n.ID)
}
