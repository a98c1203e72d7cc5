// internal/broadcast/hub.go
package broadcast

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// Envelope is the wire shape of every outbound event.
type Envelope struct {
	Event   string      `json:"event"`
	Payload interface{} `json:"payload,omitempty"`
}

// Gateway delivers events to connections subscribed to a room, or to a single
// connection. Delivery is at-most-once; there is no replay.
type Gateway interface {
	Subscribe(roomID, socketID string)
	Unsubscribe(roomID, socketID string)
	EmitToRoom(roomID, event string, payload interface{})
	EmitToConn(socketID, event string, payload interface{})
}

// Conn is a single connection's presence in the hub. The websocket write pump
// drains Out.
type Conn struct {
	SocketID string
	Out      chan Envelope

	mu     sync.Mutex
	closed bool
	log    *logrus.Logger
}

// Write pushes an envelope onto the connection's outbound channel without
// blocking. A full or closed channel drops the message.
func (c *Conn) Write(ev Envelope) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.Out <- ev:
	default:
		c.log.WithFields(logrus.Fields{
			"socketId": c.SocketID,
			"event":    ev.Event,
		}).Warn("outbound channel full, dropping event")
	}
}

func (c *Conn) closeOut() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.Out)
}

// Hub is the in-process broadcast gateway: connections keyed by socket id,
// room subscription sets on top.
type Hub struct {
	mu    sync.Mutex
	conns map[string]*Conn
	rooms map[string]map[string]struct{}
	log   *logrus.Logger
}

func NewHub(log *logrus.Logger) *Hub {
	return &Hub{
		conns: make(map[string]*Conn),
		rooms: make(map[string]map[string]struct{}),
		log:   log,
	}
}

// Register creates the hub-side connection for socketID. A previous
// registration under the same id is replaced; its channel is closed so the
// stale write pump exits.
func (h *Hub) Register(socketID string) *Conn {
	conn := &Conn{
		SocketID: socketID,
		Out:      make(chan Envelope, 32),
		log:      h.log,
	}
	h.mu.Lock()
	if old, ok := h.conns[socketID]; ok {
		old.closeOut()
	}
	h.conns[socketID] = conn
	h.mu.Unlock()
	return conn
}

// Deregister drops the connection and all its room subscriptions.
func (h *Hub) Deregister(socketID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if conn, ok := h.conns[socketID]; ok {
		conn.closeOut()
		delete(h.conns, socketID)
	}
	for roomID, members := range h.rooms {
		delete(members, socketID)
		if len(members) == 0 {
			delete(h.rooms, roomID)
		}
	}
}

func (h *Hub) Subscribe(roomID, socketID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	members, ok := h.rooms[roomID]
	if !ok {
		members = make(map[string]struct{})
		h.rooms[roomID] = members
	}
	members[socketID] = struct{}{}
}

func (h *Hub) Unsubscribe(roomID, socketID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if members, ok := h.rooms[roomID]; ok {
		delete(members, socketID)
		if len(members) == 0 {
			delete(h.rooms, roomID)
		}
	}
}

func (h *Hub) EmitToRoom(roomID, event string, payload interface{}) {
	h.mu.Lock()
	targets := make([]*Conn, 0, len(h.rooms[roomID]))
	for socketID := range h.rooms[roomID] {
		if conn, ok := h.conns[socketID]; ok {
			targets = append(targets, conn)
		}
	}
	h.mu.Unlock()

	ev := Envelope{Event: event, Payload: payload}
	for _, conn := range targets {
		conn.Write(ev)
	}
}

func (h *Hub) EmitToConn(socketID, event string, payload interface{}) {
	h.mu.Lock()
	conn, ok := h.conns[socketID]
	h.mu.Unlock()
	if !ok {
		return
	}
	conn.Write(Envelope{Event: event, Payload: payload})
}
