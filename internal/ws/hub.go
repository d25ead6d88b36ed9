package ws

import (
	"sync"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

// Client represents one WebSocket connection. A client may be a member of
// any number of session groups at once; membership is tracked explicitly so
// a disconnect can detach it from every group it joined.
type Client struct {
	conn    *websocket.Conn
	send    chan []byte
	limiter *rate.Limiter

	mu       sync.Mutex
	closed   bool
	sessions map[string]bool
}

// NewClient creates a client for an upgraded connection.
func NewClient(conn *websocket.Conn) *Client {
	return &Client{
		conn:     conn,
		send:     make(chan []byte, 256),
		limiter:  rate.NewLimiter(mutationRate, mutationBurst),
		sessions: make(map[string]bool),
	}
}

// Send queues data for delivery to the client. A client that cannot drain
// its send buffer is closed rather than allowed to block the broadcaster.
func (c *Client) Send(data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}

	select {
	case c.send <- data:
	default:
		c.closeLocked()
	}
}

// Close closes the client's send channel.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeLocked()
}

func (c *Client) closeLocked() {
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// IsClosed returns true if the client has been closed.
func (c *Client) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Conn returns the underlying WebSocket connection.
func (c *Client) Conn() *websocket.Conn {
	return c.conn
}

// SendChan returns the client's outbound channel, drained by the write pump.
func (c *Client) SendChan() <-chan []byte {
	return c.send
}

// joinSession records group membership. Re-joining is a no-op.
func (c *Client) joinSession(sessionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sessions[sessionID] = true
}

// leaveSession removes group membership, reporting whether the client was
// a member.
func (c *Client) leaveSession(sessionID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.sessions[sessionID] {
		return false
	}
	delete(c.sessions, sessionID)
	return true
}

// sessionIDs returns the ids of every group the client has joined.
func (c *Client) sessionIDs() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	ids := make([]string, 0, len(c.sessions))
	for id := range c.sessions {
		ids = append(ids, id)
	}
	return ids
}

// allowMutation applies the per-connection mutation rate limit.
func (c *Client) allowMutation() bool {
	return c.limiter.Allow()
}

// Hub is the group of clients joined to one session id, used for event
// fan-out. It holds no session state of its own; the registry owns that.
type Hub struct {
	sessionID string

	mu      sync.RWMutex
	clients map[*Client]bool
}

// NewHub creates an empty hub for the given session.
func NewHub(sessionID string) *Hub {
	return &Hub{
		sessionID: sessionID,
		clients:   make(map[*Client]bool),
	}
}

// SessionID returns the session id this hub fans out for.
func (h *Hub) SessionID() string {
	return h.sessionID
}

// Register adds a client to the group. Adding an existing member is a no-op.
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[client] = true
}

// Unregister removes a client from the group. It does not close the client;
// the connection may still be a member of other groups.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, client)
}

// Broadcast sends data to every client in the group.
func (h *Hub) Broadcast(data []byte) {
	h.BroadcastExcept(nil, data)
}

// BroadcastExcept sends data to every client in the group except sender.
func (h *Hub) BroadcastExcept(sender *Client, data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients {
		if client == sender {
			continue
		}
		client.Send(data)
	}
}

// ClientCount returns the number of clients in the group.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// HubManager maps session ids to hubs, creating them lazily on first join.
type HubManager struct {
	mu   sync.RWMutex
	hubs map[string]*Hub
}

// NewHubManager creates an empty HubManager.
func NewHubManager() *HubManager {
	return &HubManager{
		hubs: make(map[string]*Hub),
	}
}

// GetOrCreate returns the hub for the session, creating it if needed.
func (m *HubManager) GetOrCreate(sessionID string) *Hub {
	m.mu.Lock()
	defer m.mu.Unlock()

	if hub, ok := m.hubs[sessionID]; ok {
		return hub
	}

	hub := NewHub(sessionID)
	m.hubs[sessionID] = hub
	return hub
}

// Get returns the hub for the session, or nil if no client ever joined it.
func (m *HubManager) Get(sessionID string) *Hub {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.hubs[sessionID]
}

// Close closes every client of every hub and resets the manager.
func (m *HubManager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, hub := range m.hubs {
		hub.mu.Lock()
		for client := range hub.clients {
			client.Close()
		}
		hub.clients = make(map[*Client]bool)
		hub.mu.Unlock()
	}
	m.hubs = make(map[string]*Hub)
}
