// Package ws owns the live websocket sessions: the per-connection client
// with its read/write pumps and the room-keyed hub that fans frames out to
// locally connected sessions.
package ws

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/unisonmedia/unison-backend/internal/auth"
	"github.com/unisonmedia/unison-backend/internal/logger"
)

const (
	maxMessageSize = 4096
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingInterval   = 30 * time.Second
	sendBuffer     = 256
)

// Envelope is the wire frame for every event in either direction. Data is
// decoded a second time by whichever handler the event name selects.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Marshal builds a wire frame for the given event.
func Marshal(event string, data any) ([]byte, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Event: event, Data: payload})
}

// Client is one live connection. RoomID stays empty until the session joins
// a room; events that arrive before then are dropped by the dispatcher.
type Client struct {
	SessionID string
	RoomID    string
	Identity  auth.Identity

	hub  *Hub
	conn *websocket.Conn
	send chan []byte
	done chan struct{}

	route   func(*Client, Envelope)
	onClose func(*Client)

	closeOnce sync.Once
}

// NewClient wraps an upgraded connection. route receives every decoded
// inbound frame on the read goroutine, so per-session handling is serial.
// onClose runs exactly once, after the connection leaves the hub.
func NewClient(hub *Hub, conn *websocket.Conn, identity auth.Identity, route func(*Client, Envelope), onClose func(*Client)) *Client {
	return &Client{
		SessionID: uuid.NewString(),
		Identity:  identity,

		hub:  hub,
		conn: conn,
		send: make(chan []byte, sendBuffer),
		done: make(chan struct{}),

		route:   route,
		onClose: onClose,
	}
}

func (c *Client) Start() {
	go c.writePump()
	go c.readPump()
}

// Close tears the session down: once only, no matter how many disconnect
// signals race in.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.conn.Close()
		c.hub.Unregister <- c
		if c.onClose != nil {
			c.onClose(c)
		}
	})
}

// Emit queues an event frame for this session. Frames for a full or closing
// session are dropped; the hub evicts persistently slow clients.
func (c *Client) Emit(event string, data any) {
	frame, err := Marshal(event, data)
	if err != nil {
		logger.Log.Error("[WS] failed to encode frame", "event", event, "error", err)
		return
	}
	c.enqueue(frame)
}

func (c *Client) enqueue(frame []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

func (c *Client) readPump() {
	defer c.Close()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, frame, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		var env Envelope
		if err := json.Unmarshal(frame, &env); err != nil {
			logger.Log.Debug("[WS] dropping malformed frame", "session", c.SessionID)
			continue
		}

		c.route(c, env)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case frame := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}
