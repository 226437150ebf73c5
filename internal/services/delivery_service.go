package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"campus-relay/internal/commands"
	"campus-relay/internal/domain"
	"campus-relay/internal/domain/conversation"
	"campus-relay/internal/domain/message"
	"campus-relay/internal/domain/notification"
	"campus-relay/internal/domain/user"
	"campus-relay/internal/events"
	"campus-relay/internal/repository"
	"campus-relay/internal/transport/httpdto"
	relay_errors "campus-relay/pkg/errors"
	"campus-relay/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// notificationPreviewLength bounds the message text copied into a notification body.
const notificationPreviewLength = 100

// DeliveryService records a message and fans it out: conversation index,
// notification inbox and live connections.
type DeliveryService struct {
	tx            repository.TxManager
	notifications *NotificationService
	users         repository.UserDirectory
	push          pusher
	log           *logger.Logger
	clock         func() time.Time
}

func NewDeliveryService(tx repository.TxManager, notifications *NotificationService, users repository.UserDirectory, registry events.Registry, log *logger.Logger) *DeliveryService {
	log = log.Named("delivery")
	return &DeliveryService{
		tx:            tx,
		notifications: notifications,
		users:         users,
		push:          newPusher(registry, log),
		log:           log,
		clock:         time.Now,
	}
}

type SendMessageInput struct {
	SenderID    uuid.UUID
	RecipientID string
	Text        string
	ListingID   string
	TextbookID  string
	NoteID      string
}

type validatedSend struct {
	sender    uuid.UUID
	recipient uuid.UUID
	text      string
	context   domain.ContextRef
}

func (in SendMessageInput) validate() (validatedSend, error) {
	if in.SenderID == uuid.Nil {
		return validatedSend{}, relay_errors.ErrUnauthorized
	}
	if strings.TrimSpace(in.RecipientID) == "" {
		return validatedSend{}, relay_errors.ErrMissingReceiver
	}
	text := strings.TrimSpace(in.Text)
	if text == "" {
		return validatedSend{}, relay_errors.ErrEmptyText
	}
	recipient, err := domain.ParseID(in.RecipientID)
	if err != nil {
		return validatedSend{}, err
	}
	ref, err := domain.ContextFromFields(in.ListingID, in.TextbookID, in.NoteID)
	if err != nil {
		return validatedSend{}, err
	}
	if recipient == in.SenderID {
		return validatedSend{}, relay_errors.ErrSelfSend
	}
	return validatedSend{sender: in.SenderID, recipient: recipient, text: text, context: ref}, nil
}

// SendMessage validates, persists the message and upserts its conversation in
// one transaction, then creates the recipient's notification and pushes both
// to the recipient's live connections. Only the transactional part can fail
// the call.
func (s *DeliveryService) SendMessage(ctx context.Context, in SendMessageInput) (message.Message, error) {
	v, err := in.validate()
	if err != nil {
		return message.Message{}, err
	}

	now := s.clock().UTC()
	msg := message.Message{
		ID:         uuid.New(),
		SenderID:   v.sender,
		ReceiverID: v.recipient,
		Context:    v.context,
		Text:       v.text,
		CreatedAt:  now,
	}
	err = s.tx.WithinTx(ctx, func(tx repository.Repositories) error {
		if err := tx.Messages.Create(ctx, &msg); err != nil {
			return fmt.Errorf("create message: %w", err)
		}
		key := conversation.NewKey(v.sender, v.recipient, v.context)
		if _, err := tx.Conversations.Upsert(ctx, key, msg.ID, now); err != nil {
			return fmt.Errorf("upsert conversation: %w", err)
		}
		return nil
	})
	if err != nil {
		s.log.With(ctx).Error("send message failed",
			zap.String("sender_id", v.sender.String()),
			zap.String("recipient_id", v.recipient.String()),
			zap.Error(err),
		)
		return message.Message{}, err
	}

	s.fanOut(ctx, msg)
	return msg, nil
}

// fanOut runs the best-effort side effects of a send.
func (s *DeliveryService) fanOut(ctx context.Context, msg message.Message) {
	log := s.log.With(ctx).With(zap.String("message_id", msg.ID.String()))
	defer func() {
		if r := recover(); r != nil {
			log.Error("message fan-out panicked", zap.Any("panic", r))
		}
	}()

	sender := s.senderProfile(ctx, msg.SenderID)

	payload := httpdto.NewMessageResponse(msg)
	payload.Sender = &httpdto.UserSummary{ID: sender.ID.String(), DisplayName: sender.Name()}

	var envs []events.Envelope
	if env, ok := s.push.envelope(ctx, events.EventMessageNew, payload); ok {
		envs = append(envs, env)
	}

	n, err := s.notifications.Create(ctx, CreateNotificationInput{
		UserID:      msg.ReceiverID,
		Type:        notification.TypeMessage,
		Title:       "New message from " + sender.Name(),
		Message:     msg.Preview(notificationPreviewLength),
		RelatedID:   uuid.NullUUID{UUID: msg.ID, Valid: true},
		RelatedType: "Message",
		Metadata: map[string]any{
			"senderId":    msg.SenderID.String(),
			"contextKind": string(msg.Context.Kind),
			"contextId":   msg.Context.ID.String(),
		},
	})
	if err != nil {
		log.Warn("notification create failed", zap.String("recipient_id", msg.ReceiverID.String()), zap.Error(err))
	} else if env, ok := s.push.envelope(ctx, events.EventNotificationNew, httpdto.NewNotificationResponse(n)); ok {
		envs = append(envs, env)
	}

	s.push.push(ctx, msg.ReceiverID, envs...)
}

func (s *DeliveryService) senderProfile(ctx context.Context, id uuid.UUID) user.Profile {
	if s.users == nil {
		return user.Profile{ID: id}
	}
	p, err := s.users.GetProfile(ctx, id)
	if err != nil {
		if !errors.Is(err, relay_errors.ErrNotFound) {
			s.log.With(ctx).Warn("sender lookup failed", zap.String("sender_id", id.String()), zap.Error(err))
		}
		return user.Profile{ID: id}
	}
	return p
}

// RegisterHandlers wires message.send frames from live connections.
func (s *DeliveryService) RegisterHandlers(bus *commands.Bus) {
	bus.Register(commands.TypeSendMessage, commands.HandlerFunc(func(ctx context.Context, cmd commands.Command) (commands.Result, error) {
		typed, ok := cmd.(commands.SendMessageCommand)
		if !ok {
			return commands.Result{}, relay_errors.ErrInvalidInput
		}
		msg, err := s.SendMessage(ctx, SendMessageInput{
			SenderID:    typed.SenderID,
			RecipientID: typed.RecipientID,
			Text:        typed.Text,
			ListingID:   typed.ListingID,
			TextbookID:  typed.TextbookID,
			NoteID:      typed.NoteID,
		})
		if err != nil {
			return commands.Result{}, err
		}
		return commands.Result{
			AggregateID: msg.ID.String(),
			Payload:     httpdto.MessageSentEvent{Ref: typed.Ref, Message: httpdto.NewMessageResponse(msg)},
		}, nil
	}))
}
