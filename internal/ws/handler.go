package ws

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 8192
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// TODO: Implement proper origin checking in production
		return true
	},
}

// Handler accepts observer WebSocket connections. Observers only watch:
// the telnet operator keeps exclusive control of the session, so anything
// an observer sends besides ping is answered with an error.
type Handler struct {
	hubManager *HubManager
}

// NewHandler creates a new WebSocket handler.
func NewHandler(hubManager *HubManager) *Handler {
	return &Handler{hubManager: hubManager}
}

// HandleConnection upgrades the HTTP connection and attaches the observer
// to the session's hub.
func (h *Handler) HandleConnection(w http.ResponseWriter, r *http.Request, sessionID string) error {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	hub := h.hubManager.GetOrCreate(sessionID)
	client := NewClient(hub, conn, sessionID)
	hub.Register(client)

	go h.writePump(client)
	go h.readPump(client, hub)

	return nil
}

// readPump drains incoming messages. Pings get a pong; everything else is
// rejected, since observers have no input path into the session.
func (h *Handler) readPump(client *Client, hub *Hub) {
	defer func() {
		hub.Unregister(client)
		client.Conn().Close()
	}()

	client.Conn().SetReadLimit(maxMessageSize)
	client.Conn().SetReadDeadline(time.Now().Add(pongWait))
	client.Conn().SetPongHandler(func(string) error {
		client.Conn().SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := client.Conn().ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			break
		}

		var msg Message
		if err := json.Unmarshal(message, &msg); err != nil {
			log.Printf("Failed to unmarshal message: %v", err)
			continue
		}

		switch msg.Type {
		case MessageTypePing:
			h.reply(client, &Message{Type: MessageTypePong})
		default:
			h.reply(client, &Message{
				Type:  MessageTypeError,
				Error: "observer connections are read-only",
			})
		}
	}
}

func (h *Handler) reply(client *Client, msg *Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	client.Send(data)
}

// writePump pumps messages from the hub to the WebSocket connection.
func (h *Handler) writePump(client *Client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		client.Conn().Close()
	}()

	for {
		select {
		case message, ok := <-client.SendChan():
			client.Conn().SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel
				client.Conn().WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			// One message per frame so JSON.parse works on the frontend
			if err := client.Conn().WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

			n := len(client.SendChan())
			for i := 0; i < n; i++ {
				queuedMsg := <-client.SendChan()
				client.Conn().SetWriteDeadline(time.Now().Add(writeWait))
				if err := client.Conn().WriteMessage(websocket.TextMessage, queuedMsg); err != nil {
					return
				}
			}
		case <-ticker.C:
			client.Conn().SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.Conn().WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// BroadcastOutput forwards session output to every observer of the session.
// The server's per-session output tap calls this.
func (h *Handler) BroadcastOutput(sessionID string, data []byte) {
	hub := h.hubManager.Get(sessionID)
	if hub == nil {
		return
	}

	msg := &Message{
		Type: MessageTypeOutput,
		Data: string(data),
	}
	hub.BroadcastMessage(msg)
}

// BroadcastStatus notifies observers of a session lifecycle change.
func (h *Handler) BroadcastStatus(sessionID string, state string) {
	hub := h.hubManager.Get(sessionID)
	if hub == nil {
		return
	}

	msg := &Message{
		Type:  MessageTypeStatus,
		State: state,
	}
	hub.BroadcastMessage(msg)
}

// SetCheckOrigin sets a custom origin checker for the WebSocket upgrader.
func SetCheckOrigin(fn func(r *http.Request) bool) {
	upgrader.CheckOrigin = fn
}
