package repository

import (
	"bytes"
	"context"
	"sort"
	"sync"
	"time"

	"campus-relay/internal/domain"
	"campus-relay/internal/domain/conversation"
	"campus-relay/internal/domain/message"
	"campus-relay/internal/domain/notification"
	"campus-relay/internal/domain/user"
	relay_errors "campus-relay/pkg/errors"

	"github.com/google/uuid"
)

// MemoryStore keeps every relay table in-process. It backs STORE_DRIVER=memory
// and the service tests. The repositories share one lock so multi-table
// reads stay consistent.
type MemoryStore struct {
	mu sync.RWMutex

	messages      map[uuid.UUID]message.Message
	messageOrder  []uuid.UUID
	conversations map[uuid.UUID]conversation.Conversation
	convByKey     map[conversation.Key]uuid.UUID
	notifications map[uuid.UUID]notification.Notification
	notifOrder    []uuid.UUID
	profiles      map[uuid.UUID]user.Profile
	subjects      map[domain.ContextRef]string

	Messages      *MemoryMessageRepository
	Conversations *MemoryConversationRepository
	Notifications *MemoryNotificationRepository
	Directory     *MemoryDirectory
}

// NewMemoryStore initializes an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{
		messages:      make(map[uuid.UUID]message.Message),
		conversations: make(map[uuid.UUID]conversation.Conversation),
		convByKey:     make(map[conversation.Key]uuid.UUID),
		notifications: make(map[uuid.UUID]notification.Notification),
		profiles:      make(map[uuid.UUID]user.Profile),
		subjects:      make(map[domain.ContextRef]string),
	}
	s.Messages = &MemoryMessageRepository{s: s}
	s.Conversations = &MemoryConversationRepository{s: s}
	s.Notifications = &MemoryNotificationRepository{s: s}
	s.Directory = &MemoryDirectory{s: s}
	return s
}

// AddUser registers a profile for lookups.
func (s *MemoryStore) AddUser(p user.Profile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[p.ID] = p
}

// AddSubject registers a listing, textbook or note title.
func (s *MemoryStore) AddSubject(ref domain.ContextRef, title string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subjects[ref] = title
}

// RemoveSubject simulates a deleted listing, textbook or note.
func (s *MemoryStore) RemoveSubject(ref domain.ContextRef) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.subjects, ref)
}

// Repositories returns the store's repositories as a set.
func (s *MemoryStore) Repositories() Repositories {
	return Repositories{
		Messages:      s.Messages,
		Conversations: s.Conversations,
		Notifications: s.Notifications,
	}
}

// WithinTx runs fn against the store. Messages created inside fn are
// removed again if fn fails.
func (s *MemoryStore) WithinTx(ctx context.Context, fn func(tx Repositories) error) error {
	msgs := &memoryTxMessages{MemoryMessageRepository: s.Messages}
	tx := s.Repositories()
	tx.Messages = msgs
	if err := fn(tx); err != nil {
		s.rollbackMessages(msgs.created)
		return err
	}
	return nil
}

func (s *MemoryStore) rollbackMessages(ids []uuid.UUID) {
	if len(ids) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	drop := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
		delete(s.messages, id)
	}
	kept := s.messageOrder[:0]
	for _, id := range s.messageOrder {
		if _, ok := drop[id]; !ok {
			kept = append(kept, id)
		}
	}
	s.messageOrder = kept
}

type memoryTxMessages struct {
	*MemoryMessageRepository
	created []uuid.UUID
}

func (r *memoryTxMessages) Create(ctx context.Context, m *message.Message) error {
	if err := r.MemoryMessageRepository.Create(ctx, m); err != nil {
		return err
	}
	r.created = append(r.created, m.ID)
	return nil
}

// MemoryMessageRepository implements MessageRepository.
type MemoryMessageRepository struct {
	s *MemoryStore
}

func (r *MemoryMessageRepository) Create(_ context.Context, m *message.Message) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	if _, exists := r.s.messages[m.ID]; exists {
		return relay_errors.ErrConflict
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	r.s.messages[m.ID] = *m
	r.s.messageOrder = append(r.s.messageOrder, m.ID)
	return nil
}

func (r *MemoryMessageRepository) GetByID(_ context.Context, id uuid.UUID) (message.Message, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	m, ok := r.s.messages[id]
	if !ok {
		return message.Message{}, relay_errors.ErrNotFound
	}
	return m, nil
}

// All returns every stored message in insertion order.
func (r *MemoryMessageRepository) All() []message.Message {
	return r.filter(func(message.Message) bool { return true })
}

func (r *MemoryMessageRepository) filter(keep func(message.Message) bool) []message.Message {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	res := make([]message.Message, 0)
	for _, id := range r.s.messageOrder {
		if m := r.s.messages[id]; keep(m) {
			res = append(res, m)
		}
	}
	return res
}

func (r *MemoryMessageRepository) GetThread(_ context.Context, a, b uuid.UUID, ref domain.ContextRef) ([]message.Message, error) {
	res := r.filter(func(m message.Message) bool {
		return m.Between(a, b) && m.Context == ref
	})
	sort.SliceStable(res, func(i, j int) bool { return res[i].CreatedAt.Before(res[j].CreatedAt) })
	return res, nil
}

func (r *MemoryMessageRepository) MarkRead(_ context.Context, receiverID uuid.UUID, ids []uuid.UUID) ([]message.Message, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var updated []message.Message
	for _, id := range ids {
		m, ok := r.s.messages[id]
		if !ok || m.ReceiverID != receiverID || m.Read {
			continue
		}
		m.Read = true
		r.s.messages[id] = m
		updated = append(updated, m)
	}
	return updated, nil
}

func (r *MemoryMessageRepository) CountUnread(_ context.Context, receiverID uuid.UUID) (int64, error) {
	return int64(len(r.filter(func(m message.Message) bool {
		return m.ReceiverID == receiverID && !m.Read
	}))), nil
}

func (r *MemoryMessageRepository) GetEscalationCandidates(_ context.Context, cutoff time.Time, after *Cursor, limit int) ([]message.Message, error) {
	res := r.filter(func(m message.Message) bool {
		return m.DueForEscalation(cutoff) && (after == nil || after.before(m))
	})
	sort.Slice(res, func(i, j int) bool { return CursorAfter(res[i]).before(res[j]) })
	if limit > 0 && len(res) > limit {
		res = res[:limit]
	}
	return res, nil
}

func (r *MemoryMessageRepository) ClaimEscalation(_ context.Context, id uuid.UUID, claimedAt, staleBefore time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m, ok := r.s.messages[id]
	if !ok || m.EmailNotificationSent {
		return relay_errors.ErrConflict
	}
	if m.EscalationClaimedAt.Valid && !m.EscalationClaimedAt.Time.Before(staleBefore) {
		return relay_errors.ErrConflict
	}
	m.EscalationClaimedAt.Time = claimedAt
	m.EscalationClaimedAt.Valid = true
	r.s.messages[id] = m
	return nil
}

func (r *MemoryMessageRepository) ReleaseEscalation(_ context.Context, id uuid.UUID, claimedAt time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m, ok := r.s.messages[id]
	if !ok || !m.EscalationClaimedAt.Valid || !m.EscalationClaimedAt.Time.Equal(claimedAt) {
		return relay_errors.ErrConflict
	}
	m.EscalationClaimedAt.Time = time.Time{}
	m.EscalationClaimedAt.Valid = false
	r.s.messages[id] = m
	return nil
}

func (r *MemoryMessageRepository) MarkEmailNotificationSent(_ context.Context, id uuid.UUID, sentAt time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m, ok := r.s.messages[id]
	if !ok || m.EmailNotificationSent {
		return relay_errors.ErrConflict
	}
	m.EmailNotificationSent = true
	m.EmailNotificationSentAt.Time = sentAt
	m.EmailNotificationSentAt.Valid = true
	r.s.messages[id] = m
	return nil
}

// MemoryConversationRepository implements ConversationRepository.
type MemoryConversationRepository struct {
	s *MemoryStore
}

func (r *MemoryConversationRepository) Upsert(_ context.Context, key conversation.Key, lastMessageID uuid.UUID, at time.Time) (conversation.Conversation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	last := uuid.NullUUID{UUID: lastMessageID, Valid: true}
	if id, ok := r.s.convByKey[key]; ok {
		c := r.s.conversations[id]
		c.LastMessageID = last
		c.UpdatedAt = at
		r.s.conversations[id] = c
		return r.withLastMessage(c), nil
	}
	c := conversation.Conversation{
		ID:            uuid.New(),
		ParticipantA:  key.ParticipantA,
		ParticipantB:  key.ParticipantB,
		Context:       key.Context,
		LastMessageID: last,
		CreatedAt:     at,
		UpdatedAt:     at,
	}
	r.s.conversations[c.ID] = c
	r.s.convByKey[key] = c.ID
	return r.withLastMessage(c), nil
}

// withLastMessage mirrors the gorm Preload. Caller holds the lock.
func (r *MemoryConversationRepository) withLastMessage(c conversation.Conversation) conversation.Conversation {
	if c.LastMessageID.Valid {
		if m, ok := r.s.messages[c.LastMessageID.UUID]; ok {
			c.LastMessage = &m
		}
	}
	return c
}

func (r *MemoryConversationRepository) GetByID(_ context.Context, id uuid.UUID) (conversation.Conversation, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	c, ok := r.s.conversations[id]
	if !ok {
		return conversation.Conversation{}, relay_errors.ErrNotFound
	}
	return r.withLastMessage(c), nil
}

func (r *MemoryConversationRepository) Find(_ context.Context, key conversation.Key) (conversation.Conversation, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	id, ok := r.s.convByKey[key]
	if !ok {
		return conversation.Conversation{}, relay_errors.ErrNotFound
	}
	return r.withLastMessage(r.s.conversations[id]), nil
}

func (r *MemoryConversationRepository) ListForUser(_ context.Context, userID uuid.UUID) ([]conversation.Conversation, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	res := make([]conversation.Conversation, 0)
	for _, c := range r.s.conversations {
		if c.HasParticipant(userID) {
			res = append(res, r.withLastMessage(c))
		}
	}
	sort.Slice(res, func(i, j int) bool {
		if res[i].UpdatedAt.Equal(res[j].UpdatedAt) {
			return res[i].ID.String() < res[j].ID.String()
		}
		return res[i].UpdatedAt.After(res[j].UpdatedAt)
	})
	return res, nil
}

// Count returns the number of stored conversations.
func (r *MemoryConversationRepository) Count() int {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return len(r.s.conversations)
}

// MemoryNotificationRepository implements NotificationRepository.
type MemoryNotificationRepository struct {
	s *MemoryStore
}

func (r *MemoryNotificationRepository) Create(_ context.Context, n *notification.Notification) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	r.s.notifications[n.ID] = *n
	r.s.notifOrder = append(r.s.notifOrder, n.ID)
	return nil
}

func (r *MemoryNotificationRepository) GetByID(_ context.Context, id uuid.UUID) (notification.Notification, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	n, ok := r.s.notifications[id]
	if !ok {
		return notification.Notification{}, relay_errors.ErrNotFound
	}
	return n, nil
}

func (r *MemoryNotificationRepository) ListForUser(_ context.Context, userID uuid.UUID, unreadOnly bool, limit int) ([]notification.Notification, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	limit = clampLimit(limit)
	res := make([]notification.Notification, 0)
	// newest first
	for i := len(r.s.notifOrder) - 1; i >= 0 && len(res) < limit; i-- {
		n, ok := r.s.notifications[r.s.notifOrder[i]]
		if !ok || n.UserID != userID || (unreadOnly && n.Read) {
			continue
		}
		res = append(res, n)
	}
	return res, nil
}

func (r *MemoryNotificationRepository) CountUnread(_ context.Context, userID uuid.UUID) (int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var count int64
	for _, n := range r.s.notifications {
		if n.UserID == userID && !n.Read {
			count++
		}
	}
	return count, nil
}

func (r *MemoryNotificationRepository) MarkRead(_ context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n, ok := r.s.notifications[id]
	if !ok {
		return relay_errors.ErrNotFound
	}
	n.Read = true
	r.s.notifications[id] = n
	return nil
}

func (r *MemoryNotificationRepository) MarkAllRead(_ context.Context, userID uuid.UUID) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var updated int64
	for id, n := range r.s.notifications {
		if n.UserID == userID && !n.Read {
			n.Read = true
			r.s.notifications[id] = n
			updated++
		}
	}
	return updated, nil
}

func (r *MemoryNotificationRepository) Delete(_ context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.notifications[id]; !ok {
		return relay_errors.ErrNotFound
	}
	delete(r.s.notifications, id)
	return nil
}

// All returns every stored notification in insertion order.
func (r *MemoryNotificationRepository) All() []notification.Notification {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	res := make([]notification.Notification, 0, len(r.s.notifOrder))
	for _, id := range r.s.notifOrder {
		if n, ok := r.s.notifications[id]; ok {
			res = append(res, n)
		}
	}
	return res
}

// MemoryDirectory implements UserDirectory and SubjectDirectory.
type MemoryDirectory struct {
	s *MemoryStore
}

func (d *MemoryDirectory) GetProfile(_ context.Context, id uuid.UUID) (user.Profile, error) {
	d.s.mu.RLock()
	defer d.s.mu.RUnlock()
	p, ok := d.s.profiles[id]
	if !ok {
		return user.Profile{}, relay_errors.ErrNotFound
	}
	return p, nil
}

func (d *MemoryDirectory) GetSubjectTitle(_ context.Context, ref domain.ContextRef) (string, error) {
	d.s.mu.RLock()
	defer d.s.mu.RUnlock()
	title, ok := d.s.subjects[ref]
	if !ok {
		return "", relay_errors.ErrNotFound
	}
	return title, nil
}

// before reports whether c sorts strictly before m.
func (c *Cursor) before(m message.Message) bool {
	if !c.CreatedAt.Equal(m.CreatedAt) {
		return c.CreatedAt.Before(m.CreatedAt)
	}
	return bytes.Compare(c.ID[:], m.ID[:]) < 0
}
