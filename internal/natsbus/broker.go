package natsbus

import (
	"context"
	"fmt"
	"strings"

	"github.com/nats-io/nats.go"
)

// Broker carries per-user envelopes over core NATS subjects. Live push is
// ephemeral, so no JetStream stream is configured.
type Broker struct {
	nc *nats.Conn
}

// Connect dials url and returns a Broker that owns the connection.
func Connect(url string, opts ...nats.Option) (*Broker, error) {
	opts = append([]nats.Option{nats.Name("campus-relay"), nats.MaxReconnects(-1)}, opts...)
	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return &Broker{nc: nc}, nil
}

func NewBroker(nc *nats.Conn) *Broker {
	return &Broker{nc: nc}
}

// subject maps "channel:user:<id>" to "channel.user.<id>". The pattern
// wildcard "*" has the same meaning for a single token in both systems.
func subject(channel string) string {
	return strings.ReplaceAll(channel, ":", ".")
}

func channel(subject string) string {
	return strings.ReplaceAll(subject, ".", ":")
}

func (b *Broker) Publish(_ context.Context, ch string, payload []byte) error {
	if err := b.nc.Publish(subject(ch), payload); err != nil {
		return fmt.Errorf("failed to publish to subject '%s': %w", subject(ch), err)
	}
	return nil
}

// Subscribe blocks until ctx is done, translating subjects back to channel names.
func (b *Broker) Subscribe(ctx context.Context, pattern string, handler func(channel string, payload []byte)) error {
	sub, err := b.nc.Subscribe(subject(pattern), func(msg *nats.Msg) {
		handler(channel(msg.Subject), msg.Data)
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to '%s': %w", subject(pattern), err)
	}
	// ensure the server has registered interest before callers publish
	if err := b.nc.Flush(); err != nil {
		_ = sub.Unsubscribe()
		return err
	}
	<-ctx.Done()
	return sub.Unsubscribe()
}

func (b *Broker) Close() {
	if b.nc != nil {
		b.nc.Close()
	}
}
