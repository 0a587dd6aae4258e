/*
Package gateway adapts WebSocket connections to the hub.

This file defines the Client struct, representing one active WebSocket
connection. It runs the read and write loops, dispatches inbound events to
the hub, and implements the hub's Sink interface for outbound delivery. The
hub never blocks on a connection: frames are queued on a buffered channel,
and a connection whose queue overflows is torn down.
*/
package gateway

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"parley/internal/app/hub"
	"parley/internal/configs"
	"parley/internal/pkg/errs"
	"parley/internal/pkg/logx"
)

const (
	// timeout duration for writing to the WebSocket connection.
	writeWait = 10 * time.Second

	// maximum time allowed for the server to wait for a Pong message from the client.
	pongWait = 60 * time.Second

	// frequency at which the server sends a Ping message.
	pingPeriod = (pongWait * 9) / 10

	// maximum allowed size (in bytes) of a frame sent by the client.
	maxMessageSize = 8192

	// sendQueueSize is the per-connection outbound frame buffer.
	sendQueueSize = 256

	// WsCloseCodeOverflow is a custom WebSocket Close Code (4000-4999 range)
	// signaling that the server dropped the connection because the client
	// could not keep up with delivery.
	WsCloseCodeOverflow = 4002
)

// Client represents an active WebSocket connection bound to the hub.
type Client struct {
	// hub receives this connection's inbound events.
	hub *hub.Hub

	// underlying WebSocket connection object.
	conn *websocket.Conn

	// connectionID is the opaque ID this connection is known to the hub by.
	connectionID string

	// a buffered channel queuing frames waiting to be written out.
	send chan []byte

	// dead signals the write loop to abandon the connection after a queue
	// overflow. Closed at most once.
	dead     chan struct{}
	deadOnce sync.Once

	// posts budgets chat and private messages. Typing signals are free.
	posts *rate.Limiter

	// structured logger with connection context.
	logger zerolog.Logger
}

// NewClient constructs a Client for an upgraded connection.
func NewClient(h *hub.Hub, conn *websocket.Conn, connectionID string, cfg *configs.AppConfig) *Client {
	clientLogger := logx.Logger().With().
		Str("connection_id", connectionID).
		Logger()

	return &Client{
		hub:          h,
		conn:         conn,
		connectionID: connectionID,
		send:         make(chan []byte, sendQueueSize),
		dead:         make(chan struct{}),
		posts:        rate.NewLimiter(rate.Limit(cfg.MessageRate), cfg.MessageBurst),
		logger:       clientLogger,
	}
}

// Deliver implements hub.Sink. It enqueues a frame without blocking; on a
// full queue it refuses the frame and schedules the connection's teardown,
// since a client this far behind will not recover.
func (c *Client) Deliver(frame []byte) bool {
	select {
	case c.send <- frame:
		return true
	default:
		c.abandon()
		return false
	}
}

// abandon signals the write loop to drop the connection. Safe to call any
// number of times, from any goroutine.
func (c *Client) abandon() {
	c.deadOnce.Do(func() {
		close(c.dead)
	})
}

// ReadPump reads frames from the WebSocket connection, maintains the pong
// deadline, and dispatches events to the hub. It performs session cleanup
// when the connection ends, however it ends.
func (c *Client) ReadPump() {
	defer c.cleanupOnDisconnect()

	c.conn.SetReadLimit(maxMessageSize)

	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set read deadline")
		return
	}

	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, frame, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Info().Err(err).Msg("Error reading frame (client close/going away)")
			}
			break
		}

		c.processInboundEvent(frame)
	}
}

// cleanupOnDisconnect runs when ReadPump terminates. The hub removal is
// idempotent; once it returns, no further delivery can reach this sink, so
// closing the send channel is safe.
func (c *Client) cleanupOnDisconnect() {
	c.logger.Info().Msg("Connection cleanup starting.")

	c.hub.Disconnect(c.connectionID)
	close(c.send)

	if err := c.conn.Close(); err != nil {
		c.logger.Debug().Err(err).Msg("Connection close error during cleanup")
	}
}

// processInboundEvent parses one inbound frame and routes it by type.
func (c *Client) processInboundEvent(frame []byte) {
	var event hub.Event
	if err := json.Unmarshal(frame, &event); err != nil {
		c.logger.Warn().Err(err).Msg("Client sent invalid JSON")
		c.sendError(errs.New(errs.ErrInvalidJSONFormat))
		return
	}

	switch event.Type {
	case hub.EventJoin:
		c.handleJoin(event.Payload)

	case hub.EventChatMessage:
		c.handleChat(event.Payload)

	case hub.EventTyping:
		c.forwardResult(c.hub.StartTyping(c.connectionID))

	case hub.EventStopTyping:
		c.forwardResult(c.hub.StopTyping(c.connectionID))

	case hub.EventPrivateMessage:
		c.handlePrivate(event.Payload)

	default:
		c.logger.Warn().Str("event_type", event.Type).Msg("Client sent unsupported event type")
	}
}

// handleJoin processes an inbound JOIN event, either a first join or a room
// switch.
func (c *Client) handleJoin(payload json.RawMessage) {
	var join hub.JoinPayload
	if err := json.Unmarshal(payload, &join); err != nil {
		c.logger.Warn().Err(err).Msg("Client sent invalid JOIN payload")
		c.sendError(errs.New(errs.ErrInvalidJSONFormat))
		return
	}

	c.forwardResult(c.hub.Join(context.Background(), c.connectionID, c, join.DisplayName, join.Room))
}

// handleChat processes an inbound room message.
func (c *Client) handleChat(payload json.RawMessage) {
	var chat hub.ChatPayload
	if err := json.Unmarshal(payload, &chat); err != nil {
		c.logger.Warn().Err(err).Msg("Client sent invalid CHAT_MESSAGE payload")
		c.sendError(errs.New(errs.ErrInvalidJSONFormat))
		return
	}

	if !c.posts.Allow() {
		c.sendError(errs.New(errs.ErrRateLimitExceeded))
		return
	}

	c.forwardResult(c.hub.PostRoomMessage(context.Background(), c.connectionID, chat.Body))
}

// handlePrivate processes an inbound private message.
func (c *Client) handlePrivate(payload json.RawMessage) {
	var private hub.PrivatePayload
	if err := json.Unmarshal(payload, &private); err != nil {
		c.logger.Warn().Err(err).Msg("Client sent invalid PRIVATE_MESSAGE payload")
		c.sendError(errs.New(errs.ErrInvalidJSONFormat))
		return
	}

	if !c.posts.Allow() {
		c.sendError(errs.New(errs.ErrRateLimitExceeded))
		return
	}

	c.forwardResult(c.hub.PostPrivateMessage(context.Background(), c.connectionID, private.TargetUserID, private.Body))
}

// forwardResult reports a rejected event back to this connection. Accepted
// events produce their own outbound frames through the hub.
func (c *Client) forwardResult(customErr *errs.CustomError) {
	if customErr != nil {
		c.sendError(customErr)
	}
}

// sendError queues an ERROR event for this connection only.
func (c *Client) sendError(customErr *errs.CustomError) {
	frame := hub.ErrorFrame(customErr)
	if frame == nil {
		return
	}

	if !c.Deliver(frame) {
		c.logger.Warn().Int("code", customErr.Code).Msg("Failed to queue ERROR event.")
	}
}

// WritePump writes queued frames to the WebSocket connection and keeps the
// heartbeat alive with periodic pings.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()

		if err := c.conn.Close(); err != nil {
			c.logger.Debug().Err(err).Msg("Connection close error in WritePump")
		}
	}()

	for {
		select {
		case frame, ok := <-c.send:
			if !c.writeQueuedFrame(frame, ok) {
				return
			}

		case <-ticker.C:
			if !c.writePing() {
				return
			}

		case <-c.dead:
			c.logger.Warn().Msg("Send queue overflowed. Dropping connection.")

			closeMessage := websocket.FormatCloseMessage(WsCloseCodeOverflow, "delivery backlog")
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.CloseMessage, closeMessage); err != nil {
				c.logger.Debug().Err(err).Msg("Failed to write overflow close message")
			}
			return
		}
	}
}

// writeQueuedFrame writes one frame pulled from the send channel. Returns
// false when the write loop should terminate.
func (c *Client) writeQueuedFrame(frame []byte, ok bool) bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set write deadline")
		return false
	}

	if !ok {
		if err := c.conn.WriteMessage(websocket.CloseMessage, []byte{}); err != nil {
			c.logger.Debug().Err(err).Msg("Error writing close message")
		}
		return false
	}

	if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		c.logger.Error().Err(err).Msg("Error writing frame")
		return false
	}

	return true
}

// writePing sends the periodic heartbeat ping. Returns false when the write
// loop should terminate.
func (c *Client) writePing() bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set write deadline on ping")
		return false
	}

	if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
		c.logger.Error().Err(err).Msg("Error writing ping")
		return false
	}

	return true
}
