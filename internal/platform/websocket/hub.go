// Package websocket streams clinic events to waiting-room boards and
// chair-side tablets. Each connection belongs to one clinic branch and only
// sees that branch's events.
package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/google/uuid"
	gorillawebsocket "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/dentaldesk/clinic/internal/platform/auth"
	"github.com/dentaldesk/clinic/internal/platform/db"
	"github.com/dentaldesk/clinic/internal/platform/events"
)

const sendBuffer = 64

// ClientMessage narrows or widens the event types a board receives.
// "filter" with no types restores the full feed.
type ClientMessage struct {
	Action string   `json:"action"`
	Types  []string `json:"types"`
}

// Client is one connected board.
type Client struct {
	ID     string
	Branch string
	Send   chan []byte

	mu    sync.Mutex
	types map[string]bool // empty means every type
}

func NewClient(branch string) *Client {
	return &Client{
		ID:     uuid.NewString(),
		Branch: branch,
		Send:   make(chan []byte, sendBuffer),
		types:  map[string]bool{},
	}
}

func (c *Client) wants(eventType string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.types) == 0 || c.types[eventType]
}

func (c *Client) apply(msg ClientMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch msg.Action {
	case "filter":
		c.types = make(map[string]bool, len(msg.Types))
		for _, t := range msg.Types {
			c.types[t] = true
		}
	case "unfilter":
		for _, t := range msg.Types {
			delete(c.types, t)
		}
	}
}

// Hub tracks connected boards per branch. It satisfies events.Publisher.
type Hub struct {
	mu       sync.RWMutex
	branches map[string]map[*Client]struct{}
	logger   zerolog.Logger
}

func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		branches: make(map[string]map[*Client]struct{}),
		logger:   logger,
	}
}

func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.branches[client.Branch] == nil {
		h.branches[client.Branch] = make(map[*Client]struct{})
	}
	h.branches[client.Branch][client] = struct{}{}
}

// Unregister removes client and closes its Send channel. Calling it twice is
// harmless.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	clients, ok := h.branches[client.Branch]
	if !ok {
		return
	}
	if _, ok := clients[client]; !ok {
		return
	}
	delete(clients, client)
	if len(clients) == 0 {
		delete(h.branches, client.Branch)
	}
	close(client.Send)
}

// Publish fans evt out to the boards of evt.Branch. Boards whose buffer is
// full miss the event rather than stall the request that raised it.
func (h *Hub) Publish(_ context.Context, evt events.Event) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return err
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.branches[evt.Branch] {
		if !client.wants(evt.Type) {
			continue
		}
		select {
		case client.Send <- data:
		default:
			h.logger.Debug().Str("client", client.ID).Str("event", evt.Type).Msg("board buffer full, event dropped")
		}
	}
	return nil
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, clients := range h.branches {
		n += len(clients)
	}
	return n
}

func (h *Hub) BranchCount(branch string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.branches[branch])
}

// -- HTTP --

// Handler upgrades board connections.
type Handler struct {
	hub      *Hub
	upgrader gorillawebsocket.Upgrader
}

// NewHandler accepts browser connections from origins only. An empty list or
// "*" accepts any origin.
func NewHandler(hub *Hub, origins []string) *Handler {
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		allowed[o] = true
	}
	return &Handler{
		hub: hub,
		upgrader: gorillawebsocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || len(allowed) == 0 || allowed["*"] || allowed[origin]
			},
		},
	}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/board/ws", h.Connect, auth.RequireRole(auth.RoleDentist, auth.RoleReceptionist, auth.RoleAssistant))
}

// Connect upgrades the request and subscribes the connection to its branch.
func (h *Handler) Connect(c echo.Context) error {
	branch := db.TenantFromContext(c.Request().Context())
	ws, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}

	client := NewClient(branch)
	h.hub.Register(client)

	go writePump(client, ws)
	go h.readPump(client, ws)
	return nil
}

func (h *Handler) readPump(client *Client, ws *gorillawebsocket.Conn) {
	defer func() {
		h.hub.Unregister(client)
		ws.Close()
	}()

	for {
		_, message, err := ws.ReadMessage()
		if err != nil {
			return
		}
		var msg ClientMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			continue
		}
		client.apply(msg)
	}
}

func writePump(client *Client, ws *gorillawebsocket.Conn) {
	defer ws.Close()
	for message := range client.Send {
		if err := ws.WriteMessage(gorillawebsocket.TextMessage, message); err != nil {
			return
		}
	}
}
