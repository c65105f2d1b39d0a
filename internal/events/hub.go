// Package events streams session state to browser clients over WebSocket
// and feeds scene edits from the browser back into the canvas.
package events

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/ziadkadry99/draw2ui/internal/state"
	"github.com/ziadkadry99/draw2ui/internal/whiteboard"
)

const (
	sendBuffer   = 64
	writeTimeout = 10 * time.Second
)

// Option configures a Hub.
type Option func(*Hub)

// WithOriginCheck sets the handshake origin policy. Without it only
// same-origin pages and non-browser clients may connect.
func WithOriginCheck(check func(r *http.Request) bool) Option {
	return func(h *Hub) { h.upgrader.CheckOrigin = check }
}

// Message is the wire format in both directions.
type Message struct {
	Type     string            `json:"type"`
	ClientID string            `json:"clientId,omitempty"`
	Cell     string            `json:"cell,omitempty"`
	Value    any               `json:"value,omitempty"`
	Scene    *whiteboard.Scene `json:"scene,omitempty"`
	Origin   string            `json:"origin,omitempty"`
	Error    string            `json:"error,omitempty"`
}

// Message types.
const (
	TypeHello    = "hello"
	TypeSnapshot = "snapshot"
	TypeState    = "state"
	TypeScene    = "scene"
	TypeError    = "error"
)

// SceneSink receives scenes edited in the browser.
type SceneSink interface {
	Apply(whiteboard.Scene)
}

type client struct {
	id   string
	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

func (c *client) close() {
	c.once.Do(func() { close(c.send) })
}

// Hub fans state and scene changes out to every connected client.
type Hub struct {
	state    *state.State
	sink     SceneSink
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*client]struct{}
	nextID  int
	unwatch []func()
	closed  sync.Once

	// origin is the id of the client whose scene is being applied, so the
	// echo can be labelled and ignored by that client.
	origin atomic.Pointer[string]
}

// NewHub subscribes to every cell of st and, when canvas is non-nil, to its
// scene changes.
func NewHub(st *state.State, canvas whiteboard.Canvas, sink SceneSink, opts ...Option) *Hub {
	h := &Hub{
		state:   st,
		sink:    sink,
		clients: make(map[*client]struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.unwatch = append(h.unwatch, st.Watch(func(cell string, value any) {
		h.broadcast(Message{Type: TypeState, Cell: cell, Value: value})
	}))
	if canvas != nil {
		h.unwatch = append(h.unwatch, canvas.OnChange(func(s whiteboard.Scene) {
			var origin string
			if p := h.origin.Load(); p != nil {
				origin = *p
			}
			h.broadcast(Message{Type: TypeScene, Scene: &s, Origin: origin})
		}))
	}
	return h
}

// RegisterRoutes mounts the WebSocket endpoint at /ws.
func (h *Hub) RegisterRoutes(r chi.Router) {
	r.Get("/ws", h.ServeWS)
}

// ServeWS upgrades the request and serves one client until it disconnects.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("events: websocket upgrade: %v", err)
		return
	}

	c := h.add(conn)
	defer h.remove(c)
	go h.writeLoop(c)

	h.sendTo(c, Message{Type: TypeHello, ClientID: c.id})
	h.sendTo(c, Message{Type: TypeSnapshot, Value: h.state.Snapshot()})

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("events: websocket read: %v", err)
			}
			return
		}

		var msg Message
		if err := json.Unmarshal(raw, &msg); err != nil {
			h.sendTo(c, Message{Type: TypeError, Error: "invalid message format"})
			continue
		}

		switch msg.Type {
		case TypeScene:
			if msg.Scene == nil || h.sink == nil {
				h.sendTo(c, Message{Type: TypeError, Error: "scene is required"})
				continue
			}
			h.applyScene(c.id, *msg.Scene)
		default:
			h.sendTo(c, Message{Type: TypeError, Error: "unknown message type: " + msg.Type})
		}
	}
}

func (h *Hub) applyScene(origin string, s whiteboard.Scene) {
	h.origin.Store(&origin)
	defer h.origin.Store(nil)
	h.sink.Apply(s)
}

func (h *Hub) add(conn *websocket.Conn) *client {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextID++
	c := &client{
		id:   "c" + strconv.Itoa(h.nextID),
		conn: conn,
		send: make(chan []byte, sendBuffer),
	}
	h.clients[c] = struct{}{}
	return c
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
	c.close()
}

// writeLoop is the only writer on the connection.
func (h *Hub) writeLoop(c *client) {
	defer c.conn.Close()
	for data := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			log.Printf("events: websocket write to %s: %v", c.id, err)
			return
		}
	}
	c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

func (h *Hub) sendTo(c *client, msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("events: encoding %s message: %v", msg.Type, err)
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		h.enqueue(c, data)
	}
}

func (h *Hub) broadcast(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("events: encoding %s message: %v", msg.Type, err)
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		h.enqueue(c, data)
	}
}

// enqueue drops clients that cannot keep up. h.mu must be held.
func (h *Hub) enqueue(c *client, data []byte) {
	select {
	case c.send <- data:
	default:
		log.Printf("events: client %s too slow, disconnecting", c.id)
		delete(h.clients, c)
		c.close()
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close unsubscribes from state and disconnects every client.
func (h *Hub) Close() {
	h.closed.Do(func() {
		for _, u := range h.unwatch {
			u()
		}
	})
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		delete(h.clients, c)
		c.close()
	}
}
