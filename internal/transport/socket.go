package transport

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"
)

// Inbound event names.
const (
	EventConnected    = "connected"
	EventDisconnect   = "disconnect"
	EventConnectError = "connect_error"
	EventError        = "error"
	EventNew          = "notification:new"
	EventUpdated      = "notification:updated"
	EventRead         = "notification:read"
	EventImportant    = "notification:important"
	EventDeleted      = "notification:deleted"
)

// Outbound intents. Delivery is fire-and-forget; the REST path stays the
// source of truth when the socket is down.
const (
	IntentMarkRead      = "notification:markRead"
	IntentMarkImportant = "notification:markImportant"
	IntentDelete        = "notification:delete"
)

// Frame is the wire format on the notification channel.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Handler receives the raw data payload of a dispatched event.
type Handler func(data json.RawMessage)

// TokenSource supplies the bearer credential carried on the connection.
type TokenSource func() string

type subscription struct {
	id int
	fn Handler
}

// Client maintains a single authenticated websocket connection and a local
// pub/sub layer so consumers never touch the raw connection. Reconnection is
// manual: Reconnect tears down and redials after a fixed delay; there is no
// backoff loop.
type Client struct {
	url            string
	token          TokenSource
	dialer         *websocket.Dialer
	reconnectDelay time.Duration

	mu   sync.Mutex // guards conn
	conn *websocket.Conn

	subMu  sync.Mutex
	subs   map[string][]subscription
	nextID int

	writeMu sync.Mutex
}

func NewClient(socketURL string, token TokenSource, reconnectDelay time.Duration) *Client {
	if reconnectDelay <= 0 {
		reconnectDelay = time.Second
	}
	return &Client{
		url:            socketURL,
		token:          token,
		dialer:         websocket.DefaultDialer,
		reconnectDelay: reconnectDelay,
		subs:           make(map[string][]subscription),
	}
}

// Connect establishes the connection. It is idempotent: a missing or expired
// credential and an already-live connection are both no-ops.
func (c *Client) Connect() error {
	tok := c.token()
	if tok == "" || tokenExpired(tok) {
		return nil
	}

	c.mu.Lock()
	if c.conn != nil {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	header := http.Header{}
	header.Set("Authorization", "Bearer "+tok)
	conn, resp, err := c.dialer.Dial(c.url, header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		c.dispatch(EventConnectError, errorPayload(err))
		c.dispatch(EventError, errorPayload(err))
		return err
	}

	c.mu.Lock()
	if c.conn != nil {
		// Lost the race against a concurrent Connect.
		c.mu.Unlock()
		conn.Close()
		return nil
	}
	c.conn = conn
	c.mu.Unlock()

	go c.readLoop(conn)
	c.dispatch(EventConnected, nil)
	return nil
}

// Disconnect tears the connection down. Safe when already disconnected.
func (c *Client) Disconnect() {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()
	if conn != nil {
		conn.Close()
	}
}

// Reconnect tears down and redials after a fixed short delay.
func (c *Client) Reconnect() {
	c.Disconnect()
	time.Sleep(c.reconnectDelay)
	if err := c.Connect(); err != nil {
		log.Printf("socket reconnect failed: %v", err)
	}
}

// Connected reports whether a live connection is held.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// On subscribes a handler to an event and returns the id for Off.
func (c *Client) On(event string, fn Handler) int {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	c.nextID++
	c.subs[event] = append(c.subs[event], subscription{id: c.nextID, fn: fn})
	return c.nextID
}

func (c *Client) Off(event string, id int) {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	subs := c.subs[event]
	for i, sub := range subs {
		if sub.id == id {
			c.subs[event] = append(subs[:i], subs[i+1:]...)
			return
		}
	}
}

// Emit sends an outbound intent. Silently dropped when not connected.
func (c *Client) Emit(event string, payload interface{}) {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return
	}

	frame := Frame{Event: event}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			log.Printf("socket emit %s: encode payload: %v", event, err)
			return
		}
		frame.Data = data
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := conn.WriteJSON(frame); err != nil {
		log.Printf("socket emit %s: %v", event, err)
	}
}

func (c *Client) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.mu.Lock()
			stillCurrent := c.conn == conn
			if stillCurrent {
				c.conn = nil
			}
			c.mu.Unlock()
			if stillCurrent {
				c.dispatch(EventDisconnect, errorPayload(err))
			}
			return
		}

		var frame Frame
		if err := json.Unmarshal(data, &frame); err != nil {
			c.dispatch(EventError, errorPayload(err))
			continue
		}
		c.dispatch(frame.Event, frame.Data)
	}
}

func (c *Client) dispatch(event string, data json.RawMessage) {
	c.subMu.Lock()
	subs := make([]subscription, len(c.subs[event]))
	copy(subs, c.subs[event])
	c.subMu.Unlock()
	for _, sub := range subs {
		sub.fn(data)
	}
}

func errorPayload(err error) json.RawMessage {
	data, _ := json.Marshal(map[string]string{"message": err.Error()})
	return data
}

// tokenExpired inspects the credential's exp claim without verifying the
// signature; verification is the server's job.
func tokenExpired(tok string) bool {
	claims := jwt.RegisteredClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(tok, &claims); err != nil {
		return false
	}
	return claims.ExpiresAt != nil && claims.ExpiresAt.Before(time.Now())
}
