package websocket

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"campus-relay/internal/commands"
	"campus-relay/internal/events"
	"campus-relay/internal/services"
	relay_errors "campus-relay/pkg/errors"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
	sendBuffer     = 256
	seenCapacity   = 256
)

var (
	ErrClientClosed   = errors.New("websocket client closed")
	ErrSendBufferFull = errors.New("websocket send buffer full")
)

// Client is one live connection. It implements events.Handle.
type Client struct {
	id          string
	userID      uuid.UUID
	conn        *websocket.Conn
	bus         *commands.Bus
	logger      *WebSocketLogger
	connectedAt time.Time

	lastActivity atomic.Int64

	mu     sync.Mutex
	send   chan []byte
	closed bool
	seen   *seenSet

	// joined is owned by the Hub and guarded by its lock
	joined []string
}

var _ events.Handle = (*Client)(nil)

func NewClient(conn *websocket.Conn, userID uuid.UUID, bus *commands.Bus, logger *WebSocketLogger) *Client {
	now := time.Now()
	c := &Client{
		id:          uuid.NewString(),
		userID:      userID,
		conn:        conn,
		bus:         bus,
		logger:      logger,
		connectedAt: now,
		send:        make(chan []byte, sendBuffer),
		seen:        newSeenSet(seenCapacity),
	}
	c.lastActivity.Store(now.UnixNano())
	return c
}

func (c *Client) ID() string        { return c.id }
func (c *Client) UserID() uuid.UUID { return c.userID }

// Deliver queues env for the write pump. The same envelope ID is only
// written once, whether it arrives directly or through the user's channel.
// A full queue drops the envelope rather than block the caller.
func (c *Client) Deliver(env events.Envelope) error {
	payload, err := env.Encode()
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClientClosed
	}
	if env.ID != "" && !c.seen.add(env.ID) {
		return nil
	}
	select {
	case c.send <- payload:
		return nil
	default:
		return ErrSendBufferFull
	}
}

func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// inboundFrame is what a client writes: an event name, its data and an
// optional correlation ref echoed on the reply.
type inboundFrame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
	Ref   string          `json:"ref,omitempty"`
}

func (c *Client) readPump(ctx context.Context) {
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.lastActivity.Store(time.Now().UnixNano())
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Error("unexpected close", c.userID, c.id, err)
			}
			return
		}
		c.lastActivity.Store(time.Now().UnixNano())
		c.handleFrame(ctx, bytes.TrimSpace(raw))
	}
}

func (c *Client) handleFrame(ctx context.Context, raw []byte) {
	var frame inboundFrame
	if err := json.Unmarshal(raw, &frame); err != nil || frame.Event == "" {
		c.replyError("", errMalformedFrame)
		return
	}

	switch frame.Event {
	case events.EventPing:
		c.reply(events.EventPong, map[string]string{"ref": frame.Ref})
	case events.EventMessageSend:
		var cmd commands.SendMessageCommand
		if err := decodeData(frame.Data, &cmd); err != nil {
			c.replyError(frame.Ref, err)
			return
		}
		cmd.SenderID = c.userID
		if cmd.Ref == "" {
			cmd.Ref = frame.Ref
		}
		res, err := c.bus.Execute(ctx, cmd)
		if err != nil {
			c.replyError(cmd.Ref, err)
			return
		}
		c.reply(events.EventMessageSent, res.Payload)
	case events.EventMessageRead:
		var cmd commands.MarkReadCommand
		if err := decodeData(frame.Data, &cmd); err != nil {
			c.replyError(frame.Ref, err)
			return
		}
		cmd.ReaderID = c.userID
		if cmd.Ref == "" {
			cmd.Ref = frame.Ref
		}
		res, err := c.bus.Execute(ctx, cmd)
		if err != nil {
			c.replyError(cmd.Ref, err)
			return
		}
		c.reply(events.EventMessageReadAck, res.Payload)
	default:
		c.logger.Warn("unknown event", c.userID, c.id, zap.String("frame_event", frame.Event))
		c.replyError(frame.Ref, errUnknownEvent)
	}
}

var (
	errMalformedFrame = relay_errors.Invalidf("malformed frame")
	errUnknownEvent   = relay_errors.Invalidf("unknown event")
)

func decodeData(data json.RawMessage, v any) error {
	if len(data) == 0 {
		return errMalformedFrame
	}
	if err := json.Unmarshal(data, v); err != nil {
		return errMalformedFrame
	}
	return nil
}

func (c *Client) reply(event string, data any) {
	env, err := events.NewEnvelope(event, data)
	if err != nil {
		c.logger.Error("reply encode failed", c.userID, c.id, err, zap.String("reply_event", event))
		return
	}
	if err := c.Deliver(env); err != nil {
		c.logger.Warn("reply dropped", c.userID, c.id, zap.String("reply_event", event), zap.Error(err))
	}
}

func (c *Client) replyError(ref string, err error) {
	c.reply(events.EventError, events.ErrorPayload{
		Code:    services.HTTPStatus(err),
		Message: err.Error(),
		Ref:     ref,
	})
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
			if time.Since(time.Unix(0, c.lastActivity.Load())) > pongWait*2 {
				c.logger.Info("idle timeout", c.userID, c.id)
				return
			}
		}
	}
}

// seenSet remembers the last n envelope IDs.
type seenSet struct {
	ids  map[string]struct{}
	ring []string
	next int
}

func newSeenSet(n int) *seenSet {
	return &seenSet{ids: make(map[string]struct{}, n), ring: make([]string, n)}
}

// add reports false if id was already present.
func (s *seenSet) add(id string) bool {
	if _, ok := s.ids[id]; ok {
		return false
	}
	if old := s.ring[s.next]; old != "" {
		delete(s.ids, old)
	}
	s.ring[s.next] = id
	s.ids[id] = struct{}{}
	s.next = (s.next + 1) % len(s.ring)
	return true
}
