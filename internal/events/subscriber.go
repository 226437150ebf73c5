package events

import (
	"context"

	"github.com/google/uuid"
)

// Publisher fans a payload out to every process subscribed to channel.
type Publisher interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

// Subscriber blocks delivering messages on channels matching pattern until ctx is done.
type Subscriber interface {
	Subscribe(ctx context.Context, pattern string, handler func(channel string, payload []byte)) error
}

// Broker is a pub/sub transport: redis or nats.
type Broker interface {
	Publisher
	Subscriber
}

// Handle is one live connection.
type Handle interface {
	ID() string
	UserID() uuid.UUID
	// Deliver enqueues env without blocking on the peer.
	Deliver(env Envelope) error
}

// Registry tracks live handles per user.
type Registry interface {
	Lookup(userID uuid.UUID) []Handle
	BroadcastToUser(ctx context.Context, userID uuid.UUID, env Envelope) error
}
