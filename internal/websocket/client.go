package websocket

import (
	"encoding/json"
	"errors"
	"log"
	"sync"
	"time"

	"mealtrail-backend/internal/models"
	"mealtrail-backend/internal/tracking"

	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 1024
)

var (
	errSendBufferFull = errors.New("client send buffer full")
	errSinkClosed     = errors.New("client sink closed")
)

// Client is one live subscriber connection. It implements tracking.Sink, so
// the broadcaster pushes events into the send buffer without knowing anything
// about WebSockets.
type Client struct {
	UserID string

	conn  *websocket.Conn
	store *tracking.Store
	sub   *tracking.Subscription

	// mu guards closed and the close of send, so a concurrent enqueue can
	// never hit a closed channel.
	mu     sync.Mutex
	closed bool
	send   chan []byte
}

// NewClient creates a new WebSocket client
func NewClient(userID string, conn *websocket.Conn, store *tracking.Store) *Client {
	return &Client{
		UserID: userID,
		conn:   conn,
		store:  store,
		send:   make(chan []byte, 256),
	}
}

// Send implements tracking.Sink. It never blocks: when the buffer is full the
// error tells the broadcaster to drop this subscriber.
func (c *Client) Send(event models.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return c.enqueue(data)
}

// Close implements tracking.Sink. Closing the send channel makes WritePump
// send a close frame and tear the connection down. Idempotent.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

func (c *Client) enqueue(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errSinkClosed
	}
	select {
	case c.send <- data:
		return nil
	default:
		return errSendBufferFull
	}
}

// ReadPump consumes client frames until the connection dies, then
// deregisters the subscription.
func (c *Client) ReadPump() {
	defer func() {
		c.store.Unsubscribe(c.sub)
		c.conn.Close()
		log.Printf("🔴 Tracking subscriber disconnected: %s", c.UserID)
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			break
		}

		var msg struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(message, &msg); err != nil {
			continue
		}

		// Subscribers only ever send keepalives; position reports come in
		// over the REST partner endpoints.
		if msg.Type == "ping" {
			response, _ := json.Marshal(map[string]interface{}{
				"type":      "pong",
				"timestamp": time.Now().Format(time.RFC3339),
			})
			// Best effort; the broadcaster may have closed this sink already.
			c.enqueue(response)
		}
	}
}

// WritePump pumps buffered events to the WebSocket connection
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Broadcaster closed the sink
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			// Add queued messages to the current WebSocket message
			n := len(c.send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-c.send)
			}

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
