package redis

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
)

type Subscriber struct {
	client *redis.Client
}

func NewSubscriber(client *redis.Client) *Subscriber {
	return &Subscriber{client: client}
}

// Subscribe pattern-subscribes and calls handler for every message until ctx
// is cancelled. Cancellation is not reported as an error.
func (s *Subscriber) Subscribe(ctx context.Context, pattern string, handler func(channel string, payload []byte)) error {
	sub := s.client.PSubscribe(ctx, pattern)
	defer sub.Close()

	// wait for the subscription to be acknowledged so publishes issued after
	// Subscribe returns its first message are not lost
	if _, err := sub.Receive(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return errors.New("redis subscription closed")
			}
			handler(msg.Channel, []byte(msg.Payload))
		}
	}
}

// Broker pairs a Publisher and Subscriber on one client.
type Broker struct {
	*Publisher
	*Subscriber
}

func NewBroker(client *redis.Client) *Broker {
	return &Broker{Publisher: NewPublisher(client), Subscriber: NewSubscriber(client)}
}
