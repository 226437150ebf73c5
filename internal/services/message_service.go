package services

import (
	"context"
	"time"

	"campus-relay/internal/commands"
	"campus-relay/internal/domain"
	"campus-relay/internal/domain/message"
	"campus-relay/internal/events"
	"campus-relay/internal/repository"
	"campus-relay/internal/transport/httpdto"
	relay_errors "campus-relay/pkg/errors"
	"campus-relay/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type MessageService struct {
	messages repository.MessageRepository
	push     pusher
	log      *logger.Logger
	clock    func() time.Time
}

func NewMessageService(messages repository.MessageRepository, registry events.Registry, log *logger.Logger) *MessageService {
	log = log.Named("messages")
	return &MessageService{
		messages: messages,
		push:     newPusher(registry, log),
		log:      log,
		clock:    time.Now,
	}
}

// GetMessages returns the thread between the caller and otherUserID about one
// subject, oldest first.
func (s *MessageService) GetMessages(ctx context.Context, callerID uuid.UUID, otherUserID, listingID, textbookID, noteID string) ([]message.Message, error) {
	if callerID == uuid.Nil {
		return nil, relay_errors.ErrUnauthorized
	}
	other, err := domain.ParseID(otherUserID)
	if err != nil {
		return nil, err
	}
	ref, err := domain.ContextFromFields(listingID, textbookID, noteID)
	if err != nil {
		return nil, err
	}
	return s.messages.GetThread(ctx, callerID, other, ref)
}

// MarkRead flips the read flag on the caller's received messages. IDs that
// are not addressed to the caller, or already read, are ignored. A malformed
// id rejects the whole batch.
func (s *MessageService) MarkRead(ctx context.Context, callerID uuid.UUID, rawIDs []string) (int, error) {
	if callerID == uuid.Nil {
		return 0, relay_errors.ErrUnauthorized
	}
	if len(rawIDs) == 0 {
		return 0, relay_errors.ErrEmptyBatch
	}
	ids := make([]uuid.UUID, 0, len(rawIDs))
	seen := make(map[uuid.UUID]struct{}, len(rawIDs))
	for _, raw := range rawIDs {
		id, err := domain.ParseID(raw)
		if err != nil {
			return 0, err
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}

	updated, err := s.messages.MarkRead(ctx, callerID, ids)
	if err != nil {
		return 0, err
	}
	if len(updated) > 0 {
		s.notifySenders(ctx, callerID, updated)
	}
	return len(updated), nil
}

// notifySenders pushes one message.read per original sender.
func (s *MessageService) notifySenders(ctx context.Context, readerID uuid.UUID, updated []message.Message) {
	bySender := make(map[uuid.UUID][]string)
	var order []uuid.UUID
	for _, m := range updated {
		if _, ok := bySender[m.SenderID]; !ok {
			order = append(order, m.SenderID)
		}
		bySender[m.SenderID] = append(bySender[m.SenderID], m.ID.String())
	}
	readAt := s.clock().UTC()
	for _, sender := range order {
		env, ok := s.push.envelope(ctx, events.EventMessageRead, httpdto.MessagesReadEvent{
			ReaderID:   readerID.String(),
			MessageIDs: bySender[sender],
			ReadAt:     readAt,
		})
		if !ok {
			continue
		}
		s.push.push(ctx, sender, env)
	}
	s.log.With(ctx).Debug("messages marked read",
		zap.String("reader_id", readerID.String()),
		zap.Int("count", len(updated)),
	)
}

func (s *MessageService) UnreadCount(ctx context.Context, callerID uuid.UUID) (int64, error) {
	if callerID == uuid.Nil {
		return 0, relay_errors.ErrUnauthorized
	}
	return s.messages.CountUnread(ctx, callerID)
}

// RegisterHandlers wires message.read frames from live connections.
func (s *MessageService) RegisterHandlers(bus *commands.Bus) {
	bus.Register(commands.TypeMarkRead, commands.HandlerFunc(func(ctx context.Context, cmd commands.Command) (commands.Result, error) {
		typed, ok := cmd.(commands.MarkReadCommand)
		if !ok {
			return commands.Result{}, relay_errors.ErrInvalidInput
		}
		n, err := s.MarkRead(ctx, typed.ReaderID, typed.MessageIDs)
		if err != nil {
			return commands.Result{}, err
		}
		return commands.Result{
			AggregateID: typed.ReaderID.String(),
			Payload:     httpdto.MarkReadResponse{Ref: typed.Ref, Updated: n},
		}, nil
	}))
}
