package websocket

import (
	"context"
	"sync"

	"campus-relay/internal/events"
	"campus-relay/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const maxConnectionsPerUser = 10

// Hub is the connection registry: user id to the set of that user's live
// clients, plus the per-user channel rooms the broker bridge delivers into.
// It satisfies events.Registry.
type Hub struct {
	mu sync.RWMutex

	// users maps user ID to that user's clients keyed by client ID
	users map[uuid.UUID]map[string]*Client

	// channels maps channel name to the clients that joined it
	channels map[string]map[*Client]struct{}

	// publisher carries BroadcastToUser to every process; nil means this
	// process is the only one and rooms are served directly
	publisher events.Publisher
	logger    *WebSocketLogger
}

var _ events.Registry = (*Hub)(nil)

func NewHub(publisher events.Publisher, log *logger.Logger) *Hub {
	return &Hub{
		users:     make(map[uuid.UUID]map[string]*Client),
		channels:  make(map[string]map[*Client]struct{}),
		publisher: publisher,
		logger:    NewWebSocketLogger(log),
	}
}

// Register adds client to its user's set and joins it to the user's channel.
// When the user is at the connection cap the oldest client is dropped.
func (h *Hub) Register(client *Client) {
	var evicted *Client

	h.mu.Lock()
	set := h.users[client.userID]
	if set == nil {
		set = make(map[string]*Client)
		h.users[client.userID] = set
	}
	if len(set) >= maxConnectionsPerUser {
		for _, c := range set {
			if evicted == nil || c.connectedAt.Before(evicted.connectedAt) {
				evicted = c
			}
		}
		h.removeLocked(evicted)
	}
	set[client.id] = client
	h.joinLocked(client, events.UserChannel(client.userID))
	h.mu.Unlock()

	if evicted != nil {
		h.logger.Warn("max connections per user reached", evicted.userID, evicted.id)
		evicted.close()
	}
	h.logger.Info("connected", client.userID, client.id)
}

// Unregister removes client from the registry and closes its send queue.
// It is safe to call more than once.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	removed := h.removeLocked(client)
	h.mu.Unlock()

	if removed {
		h.logger.Info("disconnected", client.userID, client.id)
	}
	client.close()
}

// Lookup returns every live client of userID.
func (h *Hub) Lookup(userID uuid.UUID) []events.Handle {
	h.mu.RLock()
	defer h.mu.RUnlock()
	set := h.users[userID]
	handles := make([]events.Handle, 0, len(set))
	for _, c := range set {
		handles = append(handles, c)
	}
	return handles
}

// BroadcastToUser delivers env through the user's channel. With a publisher
// the broker fans it out to every process, this one included.
func (h *Hub) BroadcastToUser(ctx context.Context, userID uuid.UUID, env events.Envelope) error {
	channel := events.UserChannel(userID)
	if h.publisher == nil {
		h.Broadcast(channel, env)
		return nil
	}
	payload, err := env.Encode()
	if err != nil {
		return err
	}
	return h.publisher.Publish(ctx, channel, payload)
}

// Broadcast delivers env to every client in channel.
func (h *Hub) Broadcast(channel string, env events.Envelope) {
	h.mu.RLock()
	members := make([]*Client, 0, len(h.channels[channel]))
	for c := range h.channels[channel] {
		members = append(members, c)
	}
	h.mu.RUnlock()

	for _, c := range members {
		if err := c.Deliver(env); err != nil {
			h.logger.Warn("channel delivery dropped", c.userID, c.id, zap.String("channel", channel), zap.Error(err))
		}
	}
}

// DeliverChannelPayload decodes a broker payload and serves it to the room.
// Traffic for users with no client on this process is dropped undecoded.
func (h *Hub) DeliverChannelPayload(channel string, payload []byte) {
	userID, ok := events.ParseUserChannel(channel)
	if !ok {
		h.logger.logger.Warn("dropping broker payload for unknown channel", zap.String("channel", channel))
		return
	}
	if h.UserConnectionCount(userID) == 0 {
		return
	}
	env, err := events.Decode(payload)
	if err != nil {
		h.logger.logger.Warn("dropping undecodable broker payload", zap.String("channel", channel), zap.Error(err))
		return
	}
	h.Broadcast(channel, env)
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, set := range h.users {
		n += len(set)
	}
	return n
}

func (h *Hub) UserConnectionCount(userID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.users[userID])
}

func (h *Hub) ChannelSubscriberCount(channel string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.channels[channel])
}

func (h *Hub) joinLocked(client *Client, channel string) {
	if _, ok := h.channels[channel]; !ok {
		h.channels[channel] = make(map[*Client]struct{})
	}
	h.channels[channel][client] = struct{}{}
	client.joined = append(client.joined, channel)
}

// removeLocked reports whether client was still registered.
func (h *Hub) removeLocked(client *Client) bool {
	set, ok := h.users[client.userID]
	if !ok {
		return false
	}
	if cur, ok := set[client.id]; !ok || cur != client {
		return false
	}
	delete(set, client.id)
	if len(set) == 0 {
		delete(h.users, client.userID)
	}
	for _, channel := range client.joined {
		if members, ok := h.channels[channel]; ok {
			delete(members, client)
			if len(members) == 0 {
				delete(h.channels, channel)
			}
		}
	}
	client.joined = nil
	return true
}
