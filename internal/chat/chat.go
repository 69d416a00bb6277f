// Package chat runs the global player chat: a websocket hub that filters,
// persists, and fans out messages to every connected client.
package chat

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"mercado/internal/metrics"
	"mercado/internal/store"
)

const maxMessageLen = 200

// System announcer identity and the line seeded into an empty chat history.
const (
	systemUser  = "SYSTEM"
	systemColor = "#dc2626"
	welcomeBody = "Bem-vindo ao Chat Global! Respeite as regras."
)

// Message is the wire shape fanned out to clients.
type Message struct {
	Username string    `json:"username"`
	Color    string    `json:"color"`
	Body     string    `json:"body"`
	SentAt   time.Time `json:"sent_at"`
}

// inbound is what clients send: just the text.
type inbound struct {
	Body string `json:"body"`
}

type client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	username string
	color    string
}

// Hub maintains the set of connected clients and broadcasts messages. All
// client-set mutation happens on the Run goroutine.
type Hub struct {
	store *store.Store
	log   *slog.Logger

	clients    map[*client]bool
	broadcast  chan []byte
	register   chan *client
	unregister chan *client
	done       chan struct{}
}

func NewHub(db *store.Store, log *slog.Logger) *Hub {
	if log == nil {
		log = slog.Default()
	}
	return &Hub{
		store:      db,
		log:        log,
		clients:    make(map[*client]bool),
		broadcast:  make(chan []byte),
		register:   make(chan *client),
		unregister: make(chan *client),
		done:       make(chan struct{}),
	}
}

// Run pumps the hub until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	h.seedWelcome(ctx)
	for {
		select {
		case <-ctx.Done():
			for c := range h.clients {
				close(c.send)
				delete(h.clients, c)
			}
			close(h.done)
			return
		case c := <-h.register:
			h.clients[c] = true
		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
		case msg := <-h.broadcast:
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					// Slow reader; drop it rather than stall the room.
					close(c.send)
					delete(h.clients, c)
				}
			}
		}
	}
}

// Post filters, persists, and broadcasts one message. It is also the entry
// point for server announcements.
func (h *Hub) Post(ctx context.Context, username, color, body string) {
	body = strings.TrimSpace(body)
	if body == "" {
		return
	}
	if len(body) > maxMessageLen {
		body = body[:maxMessageLen]
	}
	body = FilterProfanity(body)

	m := Message{Username: username, Color: color, Body: body, SentAt: time.Now()}
	if _, err := h.store.AppendMessage(ctx, store.Message{Username: username, Color: color, Body: body}); err != nil {
		h.log.Error("persist chat message", "err", err)
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return
	}
	metrics.ChatMessages.Inc()
	select {
	case h.broadcast <- raw:
	case <-h.done:
	}
}

// seedWelcome posts the system welcome line into an empty history so new
// servers greet their first player.
func (h *Hub) seedWelcome(ctx context.Context) {
	msgs, err := h.store.RecentMessages(ctx, 1)
	if err != nil {
		h.log.Error("read chat history", "err", err)
		return
	}
	if len(msgs) > 0 {
		return
	}
	m := store.Message{Username: systemUser, Color: systemColor, Body: welcomeBody}
	if _, err := h.store.AppendMessage(ctx, m); err != nil {
		h.log.Error("seed chat welcome", "err", err)
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// ServeWS upgrades the connection and attaches it to the hub under the
// player's chat identity.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, username, color string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade", "err", err)
		return
	}
	c := &client{
		hub:      h,
		conn:     conn,
		send:     make(chan []byte, 256),
		username: username,
		color:    color,
	}
	h.register <- c

	go c.writePump()
	go c.readPump()
}

func (c *client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var in inbound
		if err := json.Unmarshal(raw, &in); err != nil {
			continue
		}
		c.hub.Post(context.Background(), c.username, c.color, in.Body)
	}
}

func (c *client) writePump() {
	defer c.conn.Close()
	for msg := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
}
