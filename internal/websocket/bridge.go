package websocket

import (
	"context"

	"campus-relay/internal/events"
)

// Bridge feeds per-user channel traffic from the broker into the hub's rooms.
type Bridge struct {
	subscriber events.Subscriber
	hub        *Hub
}

func NewBridge(subscriber events.Subscriber, hub *Hub) *Bridge {
	return &Bridge{subscriber: subscriber, hub: hub}
}

// Run blocks until ctx is done or the subscription fails.
func (b *Bridge) Run(ctx context.Context) error {
	return b.subscriber.Subscribe(ctx, events.UserChannelPattern, b.hub.DeliverChannelPayload)
}
