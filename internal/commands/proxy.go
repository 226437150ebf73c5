package commands

import (
	"context"

	relay_errors "campus-relay/pkg/errors"

	"github.com/google/uuid"
)

type Proxy interface {
	Authorize(ctx context.Context, cmd Command) error
}

type ProxyChain struct {
	proxies []Proxy
}

func NewProxyChain(proxies ...Proxy) *ProxyChain {
	items := make([]Proxy, 0, len(proxies))
	for _, proxy := range proxies {
		if proxy != nil {
			items = append(items, proxy)
		}
	}
	return &ProxyChain{proxies: items}
}

func (p *ProxyChain) Authorize(ctx context.Context, cmd Command) error {
	for _, proxy := range p.proxies {
		if err := proxy.Authorize(ctx, cmd); err != nil {
			return err
		}
	}
	return nil
}

// SendLimiter reports whether userID may send another message now.
type SendLimiter interface {
	AllowSend(ctx context.Context, userID uuid.UUID) (bool, error)
}

// RateLimitProxy applies the per-sender message quota to socket sends.
// HTTP sends go through the equivalent gin middleware.
type RateLimitProxy struct {
	limiter SendLimiter
}

func NewRateLimitProxy(limiter SendLimiter) *RateLimitProxy {
	return &RateLimitProxy{limiter: limiter}
}

func (p *RateLimitProxy) Authorize(ctx context.Context, cmd Command) error {
	send, ok := cmd.(SendMessageCommand)
	if !ok || p.limiter == nil {
		return nil
	}
	allowed, err := p.limiter.AllowSend(ctx, send.SenderID)
	if err != nil {
		// limiter outage should not block messaging
		return nil
	}
	if !allowed {
		return relay_errors.ErrRateLimited
	}
	return nil
}
