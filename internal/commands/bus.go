package commands

import (
	"context"
	"sync"
)

// Bus routes inbound live-connection commands to the services that own them.
type Bus struct {
	mu       sync.RWMutex
	handlers map[string]Handler
	proxy    *ProxyChain
}

func NewBus(proxies ...Proxy) *Bus {
	return &Bus{
		handlers: make(map[string]Handler),
		proxy:    NewProxyChain(proxies...),
	}
}

func (b *Bus) Register(commandType string, handler Handler) {
	b.mu.Lock()
	b.handlers[commandType] = handler
	b.mu.Unlock()
}

// Execute validates, authorizes and handles cmd, in that order.
func (b *Bus) Execute(ctx context.Context, cmd Command) (Result, error) {
	b.mu.RLock()
	h, ok := b.handlers[cmd.CommandType()]
	b.mu.RUnlock()
	if !ok {
		return Result{}, ErrHandlerNotFound
	}
	if err := cmd.Validate(); err != nil {
		return Result{}, err
	}
	if err := b.proxy.Authorize(ctx, cmd); err != nil {
		return Result{}, err
	}
	return h.Handle(ctx, cmd)
}
