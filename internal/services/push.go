package services

import (
	"context"
	"time"

	"campus-relay/internal/events"
	"campus-relay/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const defaultPushTimeout = 2 * time.Second

// pusher delivers envelopes to a user's live connections. Every failure is
// logged and swallowed: realtime push never fails the caller.
type pusher struct {
	registry events.Registry
	log      *logger.Logger
	timeout  time.Duration
}

func newPusher(registry events.Registry, log *logger.Logger) pusher {
	return pusher{registry: registry, log: log, timeout: defaultPushTimeout}
}

// push sends each envelope to every handle the registry knows for userID and
// to the user's broadcast channel. Handles drop envelope IDs they have
// already seen, so the two paths do not double-deliver.
func (p pusher) push(ctx context.Context, userID uuid.UUID, envs ...events.Envelope) {
	if p.registry == nil || len(envs) == 0 {
		return
	}
	log := p.log.With(ctx).With(zap.String("recipient_id", userID.String()))
	defer func() {
		if r := recover(); r != nil {
			log.Error("realtime push panicked", zap.Any("panic", r))
		}
	}()

	// the request may already be finishing; the push gets its own budget
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.timeout)
	defer cancel()

	for _, handle := range p.registry.Lookup(userID) {
		for _, env := range envs {
			if err := handle.Deliver(env); err != nil {
				log.Warn("direct push failed",
					zap.String("event", env.Event),
					zap.String("client_id", handle.ID()),
					zap.Error(err),
				)
			}
		}
	}
	for _, env := range envs {
		if err := p.registry.BroadcastToUser(ctx, userID, env); err != nil {
			log.Warn("channel push failed", zap.String("event", env.Event), zap.Error(err))
		}
	}
}

// envelope builds an envelope and logs instead of failing.
func (p pusher) envelope(ctx context.Context, event string, data any) (events.Envelope, bool) {
	env, err := events.NewEnvelope(event, data)
	if err != nil {
		p.log.With(ctx).Error("failed to build envelope", zap.String("event", event), zap.Error(err))
		return events.Envelope{}, false
	}
	return env, true
}
