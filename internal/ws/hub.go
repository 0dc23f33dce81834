package ws

import (
	"context"
	"sync"

	"go-material-store/pkg/logger"

	"github.com/gofiber/contrib/websocket"
)

// Conn is the part of *websocket.Conn the hub writes to.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Client is one websocket connection of one signed-in user.
type Client struct {
	Conn   Conn
	UserID string
}

// Message targets one user's connections, or everyone when UserID is empty.
type Message struct {
	UserID string
	Data   []byte
}

type Hub struct {
	clients    map[*Client]bool
	Register   chan *Client
	Unregister chan *Client
	outbox     chan Message
	mutex      sync.Mutex
	logg       *logger.Logger
}

func NewHub(logg *logger.Logger) *Hub {
	if logg == nil {
		logg = logger.Nop()
	}
	return &Hub{
		clients:    make(map[*Client]bool),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		outbox:     make(chan Message, 256),
		logg:       logg,
	}
}

func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.mutex.Lock()
			for c := range h.clients {
				_ = c.Conn.Close()
				delete(h.clients, c)
			}
			h.mutex.Unlock()
			return

		case c := <-h.Register:
			h.mutex.Lock()
			h.clients[c] = true
			h.mutex.Unlock()
			h.logg.Info(h.logg.WithUserID(ctx, c.UserID), "ws client connected")

		case c := <-h.Unregister:
			h.mutex.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				_ = c.Conn.Close()
			}
			h.mutex.Unlock()

		case msg := <-h.outbox:
			h.mutex.Lock()
			for c := range h.clients {
				if msg.UserID != "" && c.UserID != msg.UserID {
					continue
				}
				if err := c.Conn.WriteMessage(websocket.TextMessage, msg.Data); err != nil {
					_ = c.Conn.Close()
					delete(h.clients, c)
				}
			}
			h.mutex.Unlock()
		}
	}
}

// SendToUser queues data for every connection of userID. It never blocks; a full queue drops the message.
func (h *Hub) SendToUser(userID string, data []byte) bool {
	select {
	case h.outbox <- Message{UserID: userID, Data: data}:
		return true
	default:
		return false
	}
}

// Connected reports how many connections userID has open.
func (h *Hub) Connected(userID string) int {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	n := 0
	for c := range h.clients {
		if c.UserID == userID {
			n++
		}
	}
	return n
}
