package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"campus-relay/internal/domain/conversation"
	"campus-relay/internal/domain/notification"
	"campus-relay/internal/events"
	"campus-relay/internal/repository"

	"github.com/google/uuid"
)

var errStoreDown = errors.New("store unavailable")

type fakeHandle struct {
	id     string
	userID uuid.UUID
	err    error

	mu        sync.Mutex
	delivered []events.Envelope
}

func (h *fakeHandle) ID() string        { return h.id }
func (h *fakeHandle) UserID() uuid.UUID { return h.userID }

func (h *fakeHandle) Deliver(env events.Envelope) error {
	if h.err != nil {
		return h.err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.delivered = append(h.delivered, env)
	return nil
}

func (h *fakeHandle) Events() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, 0, len(h.delivered))
	for _, env := range h.delivered {
		out = append(out, env.Event)
	}
	return out
}

func (h *fakeHandle) Envelopes() []events.Envelope {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]events.Envelope(nil), h.delivered...)
}

type broadcast struct {
	userID uuid.UUID
	env    events.Envelope
}

// fakeRegistry records broadcasts and serves a fixed set of handles.
type fakeRegistry struct {
	mu           sync.Mutex
	handles      map[uuid.UUID][]events.Handle
	broadcasts   []broadcast
	broadcastErr error
	panicOnPush  bool
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{handles: make(map[uuid.UUID][]events.Handle)}
}

func (r *fakeRegistry) connect(userID uuid.UUID) *fakeHandle {
	h := &fakeHandle{id: uuid.NewString(), userID: userID}
	r.mu.Lock()
	r.handles[userID] = append(r.handles[userID], h)
	r.mu.Unlock()
	return h
}

func (r *fakeRegistry) Lookup(userID uuid.UUID) []events.Handle {
	if r.panicOnPush {
		panic("registry exploded")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]events.Handle(nil), r.handles[userID]...)
}

func (r *fakeRegistry) BroadcastToUser(_ context.Context, userID uuid.UUID, env events.Envelope) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.broadcasts = append(r.broadcasts, broadcast{userID: userID, env: env})
	return r.broadcastErr
}

func (r *fakeRegistry) broadcastEvents(userID uuid.UUID) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, b := range r.broadcasts {
		if b.userID == userID {
			out = append(out, b.env.Event)
		}
	}
	return out
}

// failingConversations fails every upsert.
type failingConversations struct {
	repository.ConversationRepository
}

func (failingConversations) Upsert(context.Context, conversation.Key, uuid.UUID, time.Time) (conversation.Conversation, error) {
	return conversation.Conversation{}, errStoreDown
}

// failingUpsertTx runs against a memory store with a broken conversation index.
type failingUpsertTx struct {
	store *repository.MemoryStore
}

func (t failingUpsertTx) WithinTx(ctx context.Context, fn func(tx repository.Repositories) error) error {
	return t.store.WithinTx(ctx, func(tx repository.Repositories) error {
		tx.Conversations = failingConversations{tx.Conversations}
		return fn(tx)
	})
}

type failingNotifications struct {
	repository.NotificationRepository
}

func (failingNotifications) Create(context.Context, *notification.Notification) error {
	return errStoreDown
}
