package escalation

import (
	"context"
	"strings"
	"testing"
	"time"

	"campus-relay/internal/domain"
	"campus-relay/internal/domain/message"
	"campus-relay/internal/domain/user"
	"campus-relay/internal/mailer"
	"campus-relay/internal/mocks"
	"campus-relay/internal/repository"
	"campus-relay/pkg/logger"

	"github.com/golang/mock/gomock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sweepFixture struct {
	store  *repository.MemoryStore
	mailer *mocks.MockMailer
	proc   *Processor
	now    time.Time
	seller user.Profile
	buyer  user.Profile
	lamp   domain.ContextRef
}

func newSweepFixture(t *testing.T, cfg Config) *sweepFixture {
	t.Helper()
	ctrl := gomock.NewController(t)
	store := repository.NewMemoryStore()
	f := &sweepFixture{
		store:  store,
		mailer: mocks.NewMockMailer(ctrl),
		now:    time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC),
		seller: user.Profile{ID: uuid.New(), DisplayName: "Sam Seller", Email: "sam@campus.test"},
		buyer:  user.Profile{ID: uuid.New(), DisplayName: "Bea Buyer", Email: "bea@campus.test"},
		lamp:   domain.ListingRef(uuid.New()),
	}
	store.AddUser(f.seller)
	store.AddUser(f.buyer)
	store.AddSubject(f.lamp, "Desk lamp")
	f.proc = f.newProcessor(cfg)
	return f
}

// newProcessor builds another sweeper over the same store and mailer, as a
// second relay process would.
func (f *sweepFixture) newProcessor(cfg Config) *Processor {
	if cfg.AppURL == "" {
		cfg.AppURL = "https://relay.campus.test/"
	}
	p := NewProcessor(f.store.Messages, f.store.Directory, f.store.Directory, f.mailer, cfg, logger.NewNop())
	p.clock = func() time.Time { return f.now }
	return p
}

func (f *sweepFixture) message(t *testing.T, from, to uuid.UUID, text string, at time.Time) message.Message {
	t.Helper()
	m := message.Message{SenderID: from, ReceiverID: to, Context: f.lamp, Text: text, CreatedAt: at}
	require.NoError(t, f.store.Messages.Create(context.Background(), &m))
	return m
}

func (f *sweepFixture) get(t *testing.T, id uuid.UUID) message.Message {
	t.Helper()
	m, err := f.store.Messages.GetByID(context.Background(), id)
	require.NoError(t, err)
	return m
}

func TestSweepEscalatesExactlyOnce(t *testing.T) {
	ctx := context.Background()
	f := newSweepFixture(t, Config{})
	sentAt := f.now
	m := f.message(t, f.buyer.ID, f.seller.ID, "Is this available?", sentAt)

	// T+9: too early
	f.now = sentAt.Add(9 * time.Minute)
	res, err := f.proc.Sweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, res.Candidates)
	assert.False(t, f.get(t, m.ID).EmailNotificationSent)

	// T+11: exactly one email
	var got mailer.Message
	f.mailer.EXPECT().Send(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, msg mailer.Message) error {
		got = msg
		return nil
	}).Times(1)
	f.now = sentAt.Add(11 * time.Minute)
	res, err = f.proc.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, SweepResult{Candidates: 1, Sent: 1}, res)

	stored := f.get(t, m.ID)
	assert.True(t, stored.EmailNotificationSent)
	require.True(t, stored.EmailNotificationSentAt.Valid)
	assert.Equal(t, f.now, stored.EmailNotificationSentAt.Time)
	assert.False(t, stored.Read)

	assert.Equal(t, "sam@campus.test", got.To)
	assert.Equal(t, "New message from Bea Buyer", got.Subject)
	assert.Contains(t, got.Body, "Hi Sam Seller")
	assert.Contains(t, got.Body, "about Desk lamp")
	assert.Contains(t, got.Body, "Is this available?")
	assert.Contains(t, got.Body, "https://relay.campus.test/messages")

	// T+20: nothing more
	f.now = sentAt.Add(20 * time.Minute)
	res, err = f.proc.Sweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, res.Candidates)
}

func TestSweepSkipsMessagesReadInTime(t *testing.T) {
	ctx := context.Background()
	f := newSweepFixture(t, Config{})
	m := f.message(t, f.buyer.ID, f.seller.ID, "hello", f.now)

	_, err := f.store.Messages.MarkRead(ctx, f.seller.ID, []uuid.UUID{m.ID})
	require.NoError(t, err)

	for _, later := range []time.Duration{11 * time.Minute, time.Hour, 48 * time.Hour} {
		f.now = m.CreatedAt.Add(later)
		res, err := f.proc.Sweep(ctx)
		require.NoError(t, err)
		assert.Zero(t, res.Candidates)
	}
	assert.False(t, f.get(t, m.ID).EmailNotificationSent)
}

func TestSweepSkipsUnreachableRecipients(t *testing.T) {
	ctx := context.Background()
	f := newSweepFixture(t, Config{})
	noEmail := user.Profile{ID: uuid.New(), DisplayName: "Quiet"}
	f.store.AddUser(noEmail)
	base := f.now

	a := f.message(t, f.buyer.ID, noEmail.ID, "no inbox", base)
	b := f.message(t, f.buyer.ID, uuid.New(), "unknown user", base)
	c := f.message(t, f.buyer.ID, f.buyer.ID, "self", base)

	f.now = base.Add(15 * time.Minute)
	res, err := f.proc.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, SweepResult{Candidates: 3, Skipped: 3}, res)
	for _, m := range []message.Message{a, b, c} {
		assert.False(t, f.get(t, m.ID).EmailNotificationSent)
	}
}

func TestSweepOmitsTitleForDeletedSubject(t *testing.T) {
	f := newSweepFixture(t, Config{})
	f.store.RemoveSubject(f.lamp)
	f.message(t, f.buyer.ID, f.seller.ID, "still there?", f.now)
	f.now = f.now.Add(time.Hour)

	f.mailer.EXPECT().Send(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, msg mailer.Message) error {
		assert.NotContains(t, msg.Body, "about")
		assert.Contains(t, msg.Body, "Bea Buyer sent you a message:")
		return nil
	})
	res, err := f.proc.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Sent)
}

func TestSweepTruncatesPreview(t *testing.T) {
	f := newSweepFixture(t, Config{})
	f.message(t, f.buyer.ID, f.seller.ID, strings.Repeat("x", 120), f.now)
	f.now = f.now.Add(time.Hour)

	f.mailer.EXPECT().Send(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, msg mailer.Message) error {
		assert.Contains(t, msg.Body, strings.Repeat("x", 100)+"...")
		assert.NotContains(t, msg.Body, strings.Repeat("x", 101))
		return nil
	})
	_, err := f.proc.Sweep(context.Background())
	require.NoError(t, err)
}

func TestSweepRetriesFailedSends(t *testing.T) {
	ctx := context.Background()
	f := newSweepFixture(t, Config{})
	m := f.message(t, f.buyer.ID, f.seller.ID, "hello", f.now)
	f.now = f.now.Add(11 * time.Minute)

	gomock.InOrder(
		f.mailer.EXPECT().Send(gomock.Any(), gomock.Any()).Return(assert.AnError),
		f.mailer.EXPECT().Send(gomock.Any(), gomock.Any()).Return(nil),
	)

	res, err := f.proc.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, SweepResult{Candidates: 1, Failed: 1}, res)
	assert.False(t, f.get(t, m.ID).EmailNotificationSent)

	f.now = f.now.Add(time.Minute)
	res, err = f.proc.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, SweepResult{Candidates: 1, Sent: 1}, res)
	assert.True(t, f.get(t, m.ID).EmailNotificationSent)
}

func TestSweepContinuesPastPanickingMessage(t *testing.T) {
	f := newSweepFixture(t, Config{})
	first := f.message(t, f.buyer.ID, f.seller.ID, "first", f.now)
	second := f.message(t, f.seller.ID, f.buyer.ID, "second", f.now.Add(time.Second))
	f.now = f.now.Add(time.Hour)

	gomock.InOrder(
		f.mailer.EXPECT().Send(gomock.Any(), gomock.Any()).DoAndReturn(func(context.Context, mailer.Message) error {
			panic("smtp client exploded")
		}),
		f.mailer.EXPECT().Send(gomock.Any(), gomock.Any()).Return(nil),
	)

	res, err := f.proc.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SweepResult{Candidates: 2, Sent: 1, Failed: 1}, res)
	assert.False(t, f.get(t, first.ID).EmailNotificationSent)
	assert.True(t, f.get(t, second.ID).EmailNotificationSent)
}

func TestSweepBoundsSendTime(t *testing.T) {
	f := newSweepFixture(t, Config{SendTimeout: 20 * time.Millisecond})
	m := f.message(t, f.buyer.ID, f.seller.ID, "hello", f.now)
	f.now = f.now.Add(time.Hour)

	f.mailer.EXPECT().Send(gomock.Any(), gomock.Any()).DoAndReturn(func(ctx context.Context, _ mailer.Message) error {
		<-ctx.Done()
		return ctx.Err()
	})

	started := time.Now()
	res, err := f.proc.Sweep(context.Background())
	require.NoError(t, err)
	assert.Less(t, time.Since(started), 5*time.Second)
	assert.Equal(t, 1, res.Failed)
	assert.False(t, f.get(t, m.ID).EmailNotificationSent)
}

func TestSweepPagesPastSkippedBacklog(t *testing.T) {
	f := newSweepFixture(t, Config{BatchSize: 2})
	base := f.now
	for i := 0; i < 3; i++ {
		f.message(t, f.buyer.ID, uuid.New(), "to nobody", base.Add(time.Duration(i)*time.Second))
	}
	due := f.message(t, f.buyer.ID, f.seller.ID, "real", base.Add(10*time.Second))
	f.now = base.Add(time.Hour)

	f.mailer.EXPECT().Send(gomock.Any(), gomock.Any()).Return(nil).Times(1)
	res, err := f.proc.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SweepResult{Candidates: 4, Sent: 1, Skipped: 3}, res)
	assert.True(t, f.get(t, due.ID).EmailNotificationSent)
}

func TestSweepProcessesOldestFirst(t *testing.T) {
	f := newSweepFixture(t, Config{})
	base := f.now
	f.message(t, f.buyer.ID, f.seller.ID, "second", base.Add(time.Minute))
	f.message(t, f.buyer.ID, f.seller.ID, "first", base)
	f.now = base.Add(time.Hour)

	var order []string
	f.mailer.EXPECT().Send(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, msg mailer.Message) error {
		if strings.Contains(msg.Body, "first") {
			order = append(order, "first")
		} else {
			order = append(order, "second")
		}
		return nil
	}).Times(2)

	_, err := f.proc.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second"}, order)
}

func TestSweepSkipsMessageClaimedElsewhere(t *testing.T) {
	ctx := context.Background()
	f := newSweepFixture(t, Config{})
	m := f.message(t, f.buyer.ID, f.seller.ID, "hello", f.now)
	f.now = f.now.Add(11 * time.Minute)

	require.NoError(t, f.store.Messages.ClaimEscalation(ctx, m.ID, f.now, f.now.Add(-DefaultClaimLease)))

	res, err := f.proc.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, SweepResult{Candidates: 1, Skipped: 1}, res)

	// the other sweep died without releasing; its lease runs out
	f.now = f.now.Add(DefaultClaimLease + time.Second)
	f.mailer.EXPECT().Send(gomock.Any(), gomock.Any()).Return(nil).Times(1)
	res, err = f.proc.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, SweepResult{Candidates: 1, Sent: 1}, res)
	assert.True(t, f.get(t, m.ID).EmailNotificationSent)
}

func TestSweepReleasesClaimAfterFailedSend(t *testing.T) {
	f := newSweepFixture(t, Config{})
	m := f.message(t, f.buyer.ID, f.seller.ID, "hello", f.now)
	f.now = f.now.Add(11 * time.Minute)
	f.mailer.EXPECT().Send(gomock.Any(), gomock.Any()).Return(assert.AnError)

	_, err := f.proc.Sweep(context.Background())
	require.NoError(t, err)
	assert.False(t, f.get(t, m.ID).EscalationClaimedAt.Valid)
}

func TestClaimLeaseOutlivesSendTimeout(t *testing.T) {
	assert.Equal(t, DefaultClaimLease, Config{}.withDefaults().ClaimLease)
	cfg := Config{SendTimeout: 10 * time.Minute, ClaimLease: time.Minute}.withDefaults()
	assert.Equal(t, 20*time.Minute, cfg.ClaimLease)
}
