package repository

import (
	"context"
	"testing"
	"time"

	"campus-relay/internal/domain"
	"campus-relay/internal/domain/conversation"
	"campus-relay/internal/domain/message"
	"campus-relay/internal/domain/notification"
	"campus-relay/internal/domain/user"
	relay_errors "campus-relay/pkg/errors"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryMessageThreadOrdering(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	a, b := uuid.New(), uuid.New()
	ref := domain.ListingRef(uuid.New())
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	// inserted out of chronological order
	for i, offset := range []time.Duration{2 * time.Second, 0, time.Second} {
		sender, receiver := a, b
		if i%2 == 1 {
			sender, receiver = b, a
		}
		m := &message.Message{SenderID: sender, ReceiverID: receiver, Context: ref, Text: offset.String(), CreatedAt: base.Add(offset)}
		require.NoError(t, s.Messages.Create(ctx, m))
	}
	// different context, must not leak into the thread
	require.NoError(t, s.Messages.Create(ctx, &message.Message{SenderID: a, ReceiverID: b, Context: domain.NoteRef(uuid.New()), Text: "other", CreatedAt: base}))

	thread, err := s.Messages.GetThread(ctx, b, a, ref)
	require.NoError(t, err)
	require.Len(t, thread, 3)
	assert.Equal(t, "0s", thread[0].Text)
	assert.Equal(t, "1s", thread[1].Text)
	assert.Equal(t, "2s", thread[2].Text)
}

func TestMemoryMarkReadScope(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	me, other, third := uuid.New(), uuid.New(), uuid.New()
	ref := domain.NoteRef(uuid.New())

	inbound := &message.Message{SenderID: other, ReceiverID: me, Context: ref, Text: "hi"}
	outbound := &message.Message{SenderID: me, ReceiverID: other, Context: ref, Text: "yo"}
	foreign := &message.Message{SenderID: other, ReceiverID: third, Context: ref, Text: "psst"}
	for _, m := range []*message.Message{inbound, outbound, foreign} {
		require.NoError(t, s.Messages.Create(ctx, m))
	}

	updated, err := s.Messages.MarkRead(ctx, me, []uuid.UUID{inbound.ID, outbound.ID, foreign.ID, uuid.New()})
	require.NoError(t, err)
	require.Len(t, updated, 1)
	assert.Equal(t, inbound.ID, updated[0].ID)

	got, _ := s.Messages.GetByID(ctx, outbound.ID)
	assert.False(t, got.Read)
	got, _ = s.Messages.GetByID(ctx, foreign.ID)
	assert.False(t, got.Read)

	// second call is a no-op
	updated, err = s.Messages.MarkRead(ctx, me, []uuid.UUID{inbound.ID})
	require.NoError(t, err)
	assert.Empty(t, updated)

	count, err := s.Messages.CountUnread(ctx, me)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestMemoryEscalationCandidates(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	ref := domain.TextbookRef(uuid.New())

	old := &message.Message{SenderID: uuid.New(), ReceiverID: uuid.New(), Context: ref, Text: "old", CreatedAt: now.Add(-20 * time.Minute)}
	older := &message.Message{SenderID: uuid.New(), ReceiverID: uuid.New(), Context: ref, Text: "older", CreatedAt: now.Add(-30 * time.Minute)}
	fresh := &message.Message{SenderID: uuid.New(), ReceiverID: uuid.New(), Context: ref, Text: "fresh", CreatedAt: now.Add(-time.Minute)}
	read := &message.Message{SenderID: uuid.New(), ReceiverID: uuid.New(), Context: ref, Text: "read", Read: true, CreatedAt: now.Add(-time.Hour)}
	for _, m := range []*message.Message{old, older, fresh, read} {
		require.NoError(t, s.Messages.Create(ctx, m))
	}

	cutoff := now.Add(-10 * time.Minute)
	got, err := s.Messages.GetEscalationCandidates(ctx, cutoff, nil, 0)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, older.ID, got[0].ID)
	assert.Equal(t, old.ID, got[1].ID)

	require.NoError(t, s.Messages.MarkEmailNotificationSent(ctx, older.ID, now))
	assert.ErrorIs(t, s.Messages.MarkEmailNotificationSent(ctx, older.ID, now), relay_errors.ErrConflict)

	got, err = s.Messages.GetEscalationCandidates(ctx, cutoff, nil, 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, old.ID, got[0].ID)

	got, err = s.Messages.GetEscalationCandidates(ctx, cutoff, CursorAfter(got[0]), 0)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestMemoryEscalationClaim(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	m := &message.Message{SenderID: uuid.New(), ReceiverID: uuid.New(), Context: domain.ListingRef(uuid.New()), Text: "hi", CreatedAt: now.Add(-time.Hour)}
	require.NoError(t, s.Messages.Create(ctx, m))
	lease := 5 * time.Minute

	require.NoError(t, s.Messages.ClaimEscalation(ctx, m.ID, now, now.Add(-lease)))
	// a second sweep inside the lease loses
	assert.ErrorIs(t, s.Messages.ClaimEscalation(ctx, m.ID, now.Add(time.Minute), now.Add(time.Minute-lease)), relay_errors.ErrConflict)

	// only the holder can release
	assert.ErrorIs(t, s.Messages.ReleaseEscalation(ctx, m.ID, now.Add(time.Second)), relay_errors.ErrConflict)
	require.NoError(t, s.Messages.ReleaseEscalation(ctx, m.ID, now))
	require.NoError(t, s.Messages.ClaimEscalation(ctx, m.ID, now.Add(time.Minute), now.Add(time.Minute-lease)))

	// a stale claim is taken over
	later := now.Add(time.Minute + lease + time.Second)
	require.NoError(t, s.Messages.ClaimEscalation(ctx, m.ID, later, later.Add(-lease)))

	require.NoError(t, s.Messages.MarkEmailNotificationSent(ctx, m.ID, later))
	far := later.Add(time.Hour)
	assert.ErrorIs(t, s.Messages.ClaimEscalation(ctx, m.ID, far, far.Add(-lease)), relay_errors.ErrConflict)
	assert.ErrorIs(t, s.Messages.ClaimEscalation(ctx, uuid.New(), far, far.Add(-lease)), relay_errors.ErrConflict)
}

func TestMemoryConversationUpsert(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	a, b := uuid.New(), uuid.New()
	ref := domain.ListingRef(uuid.New())
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	m1 := &message.Message{SenderID: a, ReceiverID: b, Context: ref, Text: "1"}
	m2 := &message.Message{SenderID: b, ReceiverID: a, Context: ref, Text: "2"}
	require.NoError(t, s.Messages.Create(ctx, m1))
	require.NoError(t, s.Messages.Create(ctx, m2))

	first, err := s.Conversations.Upsert(ctx, conversation.NewKey(a, b, ref), m1.ID, t0)
	require.NoError(t, err)
	second, err := s.Conversations.Upsert(ctx, conversation.NewKey(b, a, ref), m2.ID, t0.Add(time.Minute))
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 1, s.Conversations.Count())
	assert.Equal(t, m2.ID, second.LastMessageID.UUID)
	require.NotNil(t, second.LastMessage)
	assert.Equal(t, "2", second.LastMessage.Text)
	assert.Equal(t, t0, second.CreatedAt)
	assert.Equal(t, t0.Add(time.Minute), second.UpdatedAt)

	list, err := s.Conversations.ListForUser(ctx, b)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	_, err = s.Conversations.GetByID(ctx, uuid.New())
	assert.ErrorIs(t, err, relay_errors.ErrNotFound)
}

func TestMemoryNotificationInbox(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	owner := uuid.New()

	var ids []uuid.UUID
	for i := 0; i < 3; i++ {
		n := &notification.Notification{UserID: owner, Type: notification.TypeMessage, Title: "t", Message: "m"}
		require.NoError(t, s.Notifications.Create(ctx, n))
		ids = append(ids, n.ID)
	}
	require.NoError(t, s.Notifications.Create(ctx, &notification.Notification{UserID: uuid.New(), Type: notification.TypeSystem}))

	list, err := s.Notifications.ListForUser(ctx, owner, false, 0)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, ids[2], list[0].ID)

	require.NoError(t, s.Notifications.MarkRead(ctx, ids[0]))
	unread, err := s.Notifications.ListForUser(ctx, owner, true, 0)
	require.NoError(t, err)
	assert.Len(t, unread, 2)

	n, err := s.Notifications.MarkAllRead(ctx, owner)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
	count, _ := s.Notifications.CountUnread(ctx, owner)
	assert.Zero(t, count)

	require.NoError(t, s.Notifications.Delete(ctx, ids[1]))
	assert.ErrorIs(t, s.Notifications.Delete(ctx, ids[1]), relay_errors.ErrNotFound)
}

func TestMemoryDirectory(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	id := uuid.New()
	ref := domain.NoteRef(uuid.New())
	s.AddUser(user.Profile{ID: id, DisplayName: "Ada", Email: "ada@campus.edu"})
	s.AddSubject(ref, "Linear Algebra notes")

	p, err := s.Directory.GetProfile(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Ada", p.Name())

	title, err := s.Directory.GetSubjectTitle(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, "Linear Algebra notes", title)

	s.RemoveSubject(ref)
	_, err = s.Directory.GetSubjectTitle(ctx, ref)
	assert.ErrorIs(t, err, relay_errors.ErrNotFound)
	_, err = s.Directory.GetProfile(ctx, uuid.New())
	assert.ErrorIs(t, err, relay_errors.ErrNotFound)
}

func TestMemoryWithinTxRollsBackMessages(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	ref := domain.ListingRef(uuid.New())
	kept := &message.Message{SenderID: uuid.New(), ReceiverID: uuid.New(), Context: ref, Text: "kept"}
	require.NoError(t, s.Messages.Create(ctx, kept))

	boom := assert.AnError
	err := s.WithinTx(ctx, func(tx Repositories) error {
		m := &message.Message{SenderID: uuid.New(), ReceiverID: uuid.New(), Context: ref, Text: "dropped"}
		require.NoError(t, tx.Messages.Create(ctx, m))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	all := s.Messages.All()
	require.Len(t, all, 1)
	assert.Equal(t, kept.ID, all[0].ID)

	err = s.WithinTx(ctx, func(tx Repositories) error {
		return tx.Messages.Create(ctx, &message.Message{SenderID: uuid.New(), ReceiverID: uuid.New(), Context: ref, Text: "committed"})
	})
	require.NoError(t, err)
	assert.Len(t, s.Messages.All(), 2)
}
