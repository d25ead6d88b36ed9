package ws

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/pairpad/backend/internal/registry"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 1 << 20

	// Per-connection mutation budget. Editors send a mutation per
	// keystroke, so the limit is generous; it only cuts off floods.
	mutationRate  = rate.Limit(100)
	mutationBurst = 200
)

// EventType names a protocol event.
type EventType string

const (
	// Client -> Server events
	EventJoinSession    EventType = "join-session"
	EventLeaveSession   EventType = "leave-session"
	EventCodeChange     EventType = "code-change"
	EventLanguageChange EventType = "language-change"

	// Server -> Client events
	EventSessionData EventType = "session-data"
	EventRejected    EventType = "rejected"
)

// Rejection reasons sent back to a client whose mutation was refused.
const (
	ReasonMissingSession = "missing session id"
	ReasonUnknownSession = "unknown session"
)

// Message is the wire envelope for every protocol event, one JSON object
// per text frame. Code and Language are pointers so an explicitly empty
// string still round-trips.
type Message struct {
	Type      EventType `json:"type"`
	SessionID string    `json:"sessionId,omitempty"`
	Code      *string   `json:"code,omitempty"`
	Language  *string   `json:"language,omitempty"`
	CreatedAt int64     `json:"createdAt,omitempty"`
	Reason    string    `json:"reason,omitempty"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// TODO: Implement proper origin checking in production
		return true
	},
}

// Handler is the realtime relay. It attaches connections to session groups,
// applies mutation events to the session store, and fans them out to every
// other member of the group.
type Handler struct {
	hubs  *HubManager
	store registry.Store
}

// NewHandler creates a relay handler on top of the given session store.
func NewHandler(store registry.Store) *Handler {
	return &Handler{
		hubs:  NewHubManager(),
		store: store,
	}
}

// Hubs returns the hub manager, exposed for shutdown and tests.
func (h *Handler) Hubs() *HubManager {
	return h.hubs
}

// HandleConnection upgrades the HTTP request to a WebSocket connection and
// runs its read and write pumps.
func (h *Handler) HandleConnection(w http.ResponseWriter, r *http.Request) error {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	client := NewClient(conn)

	go h.writePump(client)
	go h.readPump(client)

	return nil
}

// readPump pumps messages from the WebSocket connection into the relay.
func (h *Handler) readPump(client *Client) {
	defer func() {
		h.disconnect(client)
		client.Conn().Close()
	}()

	client.Conn().SetReadLimit(maxMessageSize)
	client.Conn().SetReadDeadline(time.Now().Add(pongWait))
	client.Conn().SetPongHandler(func(string) error {
		client.Conn().SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := client.Conn().ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			break
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			log.Printf("Failed to unmarshal message: %v", err)
			continue
		}

		h.handleMessage(client, &msg)
	}
}

// writePump pumps queued messages to the WebSocket connection and keeps the
// connection alive with periodic pings.
func (h *Handler) writePump(client *Client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		client.Conn().Close()
	}()

	for {
		select {
		case data, ok := <-client.SendChan():
			client.Conn().SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				client.Conn().WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			// One message per frame so the frontend can JSON.parse each
			// frame on its own.
			if err := client.Conn().WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			client.Conn().SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.Conn().WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage dispatches one protocol event from a client.
func (h *Handler) handleMessage(client *Client, msg *Message) {
	switch msg.Type {
	case EventJoinSession:
		h.handleJoin(client, msg)
	case EventLeaveSession:
		h.handleLeave(client, msg)
	case EventCodeChange:
		h.handleCodeChange(client, msg)
	case EventLanguageChange:
		h.handleLanguageChange(client, msg)
	}
}

// handleJoin vivifies the session, attaches the client to its group and
// replies with a full snapshot. An empty session id is ignored. Joining
// again re-sends a fresh snapshot.
func (h *Handler) handleJoin(client *Client, msg *Message) {
	if msg.SessionID == "" {
		return
	}

	session, err := h.store.GetOrCreate(context.Background(), msg.SessionID)
	if err != nil {
		log.Printf("Failed to vivify session %s: %v", msg.SessionID, err)
		return
	}

	hub := h.hubs.GetOrCreate(msg.SessionID)
	hub.Register(client)
	client.joinSession(msg.SessionID)

	h.send(client, &Message{
		Type:      EventSessionData,
		Code:      &session.Code,
		Language:  &session.Language,
		CreatedAt: session.CreatedAt,
	})
}

// handleLeave detaches the client from one group without touching its other
// memberships or the connection itself.
func (h *Handler) handleLeave(client *Client, msg *Message) {
	if msg.SessionID == "" {
		return
	}

	if !client.leaveSession(msg.SessionID) {
		return
	}
	if hub := h.hubs.Get(msg.SessionID); hub != nil {
		hub.Unregister(client)
	}
}

// handleCodeChange applies a code mutation and fans it out to the rest of
// the group. Mutation requires the session to already exist: unlike join,
// it never vivifies.
func (h *Handler) handleCodeChange(client *Client, msg *Message) {
	code := ""
	if msg.Code != nil {
		code = *msg.Code
	}

	if !h.guardMutation(client, msg.SessionID) {
		return
	}

	if err := h.store.SetCode(context.Background(), msg.SessionID, code); err != nil {
		log.Printf("Failed to set code for session %s: %v", msg.SessionID, err)
		return
	}

	h.fanOut(client, msg.SessionID, &Message{
		Type: EventCodeChange,
		Code: &code,
	})
}

// handleLanguageChange is symmetric to handleCodeChange for the language tag.
func (h *Handler) handleLanguageChange(client *Client, msg *Message) {
	language := ""
	if msg.Language != nil {
		language = *msg.Language
	}

	if !h.guardMutation(client, msg.SessionID) {
		return
	}

	if err := h.store.SetLanguage(context.Background(), msg.SessionID, language); err != nil {
		log.Printf("Failed to set language for session %s: %v", msg.SessionID, err)
		return
	}

	h.fanOut(client, msg.SessionID, &Message{
		Type:     EventLanguageChange,
		Language: &language,
	})
}

// guardMutation runs the checks shared by both mutation events: the rate
// limit, a present session id, and prior existence of the session. Refused
// mutations answer the sender with a rejection event and never reach the
// store or the group.
func (h *Handler) guardMutation(client *Client, sessionID string) bool {
	if !client.allowMutation() {
		return false
	}

	if sessionID == "" {
		h.reject(client, ReasonMissingSession)
		return false
	}

	exists, err := h.store.Exists(context.Background(), sessionID)
	if err != nil {
		log.Printf("Failed to check session %s: %v", sessionID, err)
		return false
	}
	if !exists {
		h.reject(client, ReasonUnknownSession)
		return false
	}

	return true
}

// fanOut broadcasts an event to every member of the group except the sender.
func (h *Handler) fanOut(sender *Client, sessionID string, msg *Message) {
	hub := h.hubs.Get(sessionID)
	if hub == nil {
		return
	}

	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("Failed to marshal %s event: %v", msg.Type, err)
		return
	}
	hub.BroadcastExcept(sender, data)
}

// reject notifies the sender that its event was refused. The connection
// stays up; nothing is broadcast.
func (h *Handler) reject(client *Client, reason string) {
	h.send(client, &Message{
		Type:   EventRejected,
		Reason: reason,
	})
}

// send marshals and queues a message for one client.
func (h *Handler) send(client *Client, msg *Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("Failed to marshal %s event: %v", msg.Type, err)
		return
	}
	client.Send(data)
}

// disconnect detaches a closing client from every group it joined.
func (h *Handler) disconnect(client *Client) {
	for _, sessionID := range client.sessionIDs() {
		if hub := h.hubs.Get(sessionID); hub != nil {
			hub.Unregister(client)
		}
	}
	client.Close()
}

// Close closes every connected client.
func (h *Handler) Close() {
	h.hubs.Close()
}

// SetCheckOrigin sets a custom origin checker for the WebSocket upgrader.
func SetCheckOrigin(fn func(r *http.Request) bool) {
	upgrader.CheckOrigin = fn
}
