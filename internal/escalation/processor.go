package escalation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"campus-relay/internal/domain/message"
	"campus-relay/internal/domain/user"
	"campus-relay/internal/mailer"
	"campus-relay/internal/repository"
	relay_errors "campus-relay/pkg/errors"
	"campus-relay/pkg/logger"

	"go.uber.org/zap"
)

const (
	DefaultDelay       = 10 * time.Minute
	DefaultInterval    = time.Minute
	DefaultSendTimeout = 15 * time.Second
	DefaultBatchSize   = 100
	DefaultClaimLease  = 5 * time.Minute
)

type Config struct {
	// Delay is how long a message stays unread before it is emailed.
	Delay       time.Duration
	SendTimeout time.Duration
	BatchSize   int
	// ClaimLease is how long a claim blocks other sweeps. It must outlive SendTimeout.
	ClaimLease time.Duration
	// AppURL is linked from the email body.
	AppURL string
}

func (c Config) withDefaults() Config {
	if c.Delay <= 0 {
		c.Delay = DefaultDelay
	}
	if c.SendTimeout <= 0 {
		c.SendTimeout = DefaultSendTimeout
	}
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultBatchSize
	}
	if c.ClaimLease <= c.SendTimeout {
		c.ClaimLease = max(DefaultClaimLease, 2*c.SendTimeout)
	}
	return c
}

type outcome int

const (
	outcomeSent outcome = iota
	outcomeSkipped
	outcomeFailed
)

// SweepResult counts what one sweep did.
type SweepResult struct {
	Candidates int
	Sent       int
	Skipped    int
	Failed     int
}

func (r *SweepResult) add(o outcome) {
	switch o {
	case outcomeSent:
		r.Sent++
	case outcomeSkipped:
		r.Skipped++
	default:
		r.Failed++
	}
}

// Processor emails recipients about messages left unread past the delay.
type Processor struct {
	messages repository.MessageRepository
	users    repository.UserDirectory
	subjects repository.SubjectDirectory
	mailer   mailer.Mailer
	cfg      Config
	log      *logger.Logger
	clock    func() time.Time
}

func NewProcessor(messages repository.MessageRepository, users repository.UserDirectory, subjects repository.SubjectDirectory, m mailer.Mailer, cfg Config, log *logger.Logger) *Processor {
	return &Processor{
		messages: messages,
		users:    users,
		subjects: subjects,
		mailer:   m,
		cfg:      cfg.withDefaults(),
		log:      log.Named("escalation"),
		clock:    time.Now,
	}
}

// Sweep processes every due candidate, oldest first, one at a time. Only a
// failure to list candidates is returned; per-message failures are logged
// and the message stays due for the next sweep.
func (p *Processor) Sweep(ctx context.Context) (SweepResult, error) {
	var res SweepResult
	cutoff := p.clock().UTC().Add(-p.cfg.Delay)

	var after *repository.Cursor
	for {
		batch, err := p.messages.GetEscalationCandidates(ctx, cutoff, after, p.cfg.BatchSize)
		if err != nil {
			return res, fmt.Errorf("load escalation candidates: %w", err)
		}
		for _, m := range batch {
			if ctx.Err() != nil {
				return res, nil
			}
			res.Candidates++
			res.add(p.process(ctx, m))
		}
		if len(batch) < p.cfg.BatchSize {
			return res, nil
		}
		after = repository.CursorAfter(batch[len(batch)-1])
	}
}

func (p *Processor) process(ctx context.Context, m message.Message) (o outcome) {
	log := p.log.With(ctx).With(
		zap.String("message_id", m.ID.String()),
		zap.String("recipient_id", m.ReceiverID.String()),
	)
	defer func() {
		if r := recover(); r != nil {
			log.Error("escalation panicked", zap.Any("panic", r))
			o = outcomeFailed
		}
	}()

	if m.SenderID == m.ReceiverID {
		log.Warn("skipping self-addressed message")
		return outcomeSkipped
	}

	recipient, err := p.users.GetProfile(ctx, m.ReceiverID)
	switch {
	case errors.Is(err, relay_errors.ErrNotFound):
		log.Debug("recipient unknown, skipping")
		return outcomeSkipped
	case err != nil:
		log.Warn("recipient lookup failed", zap.Error(err))
		return outcomeFailed
	case !recipient.HasEmail():
		log.Debug("recipient has no email, skipping")
		return outcomeSkipped
	}

	sender, err := p.users.GetProfile(ctx, m.SenderID)
	if err != nil {
		if !errors.Is(err, relay_errors.ErrNotFound) {
			log.Warn("sender lookup failed", zap.Error(err))
		}
		sender = user.Profile{ID: m.SenderID}
	}

	title, err := p.subjects.GetSubjectTitle(ctx, m.Context)
	if err != nil {
		if !errors.Is(err, relay_errors.ErrNotFound) {
			log.Warn("subject lookup failed", zap.String("context", m.Context.String()), zap.Error(err))
		}
		title = ""
	}

	claimedAt := p.clock().UTC().Truncate(time.Microsecond)
	if err := p.messages.ClaimEscalation(ctx, m.ID, claimedAt, claimedAt.Add(-p.cfg.ClaimLease)); err != nil {
		if errors.Is(err, relay_errors.ErrConflict) {
			log.Debug("message claimed by another sweep")
			return outcomeSkipped
		}
		log.Warn("escalation claim failed", zap.Error(err))
		return outcomeFailed
	}
	sent := false
	defer func() {
		if sent {
			return
		}
		if err := p.messages.ReleaseEscalation(context.WithoutCancel(ctx), m.ID, claimedAt); err != nil {
			log.Warn("escalation claim release failed", zap.Error(err))
		}
	}()

	email := composeEmail(m, sender, recipient, title, p.cfg.AppURL)
	sendCtx, cancel := context.WithTimeout(ctx, p.cfg.SendTimeout)
	err = p.mailer.Send(sendCtx, email)
	cancel()
	if err != nil {
		log.Warn("escalation email failed", zap.Error(err))
		return outcomeFailed
	}
	// from here the claim stays: the email is out even if the flag write fails
	sent = true

	if err := p.messages.MarkEmailNotificationSent(ctx, m.ID, p.clock().UTC()); err != nil {
		if errors.Is(err, relay_errors.ErrConflict) {
			log.Info("message already escalated elsewhere")
			return outcomeSent
		}
		log.Error("email sent but flag not persisted", zap.Error(err))
		return outcomeFailed
	}
	log.Info("escalation email sent")
	return outcomeSent
}
