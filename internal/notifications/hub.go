package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sync"

	"github.com/gofiber/websocket/v2"
)

const (
	// Max connections per signed-in viewer. Anonymous connections only count
	// towards the total.
	maxConnsPerViewer = 8
	maxTotalConns     = 10000
)

var (
	ErrHubFull     = errors.New("server connection limit reached")
	ErrViewerLimit = errors.New("viewer connection limit reached")
	ErrHubShutDown = errors.New("hub is shut down")
)

// Hub fans events out to every connected feed client.
type Hub struct {
	mu        sync.RWMutex
	clients   map[*Client]struct{}
	perViewer map[uint]int
	closed    bool
}

func NewHub() *Hub {
	return &Hub{
		clients:   make(map[*Client]struct{}),
		perViewer: make(map[uint]int),
	}
}

// Register adds a connection for viewerID, or returns an error if limits are exceeded.
func (h *Hub) Register(viewerID uint, conn *websocket.Conn) (*Client, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	switch {
	case h.closed:
		return nil, ErrHubShutDown
	case len(h.clients) >= maxTotalConns:
		return nil, ErrHubFull
	case viewerID != 0 && h.perViewer[viewerID] >= maxConnsPerViewer:
		return nil, ErrViewerLimit
	}

	client := newClient(h, conn, viewerID)
	h.clients[client] = struct{}{}
	if viewerID != 0 {
		h.perViewer[viewerID]++
	}
	return client, nil
}

// Unregister removes client and closes its Send channel. It is safe to call more than once.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(client)
}

func (h *Hub) removeLocked(client *Client) {
	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)
	if client.ViewerID != 0 {
		if h.perViewer[client.ViewerID]--; h.perViewer[client.ViewerID] <= 0 {
			delete(h.perViewer, client.ViewerID)
		}
	}
	close(client.Send)
}

// Len returns the number of registered clients.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// BroadcastAll queues message for every client.
func (h *Hub) BroadcastAll(message []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		c.TrySend(message)
	}
}

// BroadcastEvent sends ev to every client as its JSON envelope.
func (h *Hub) BroadcastEvent(ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		log.Printf("notifications: cannot encode %s event: %v", ev.Type, err)
		return
	}
	h.BroadcastAll(data)
}

// StartWiring subscribes the hub to n so published events reach connected clients.
// onEvent, when set, sees each event before it is broadcast.
func (h *Hub) StartWiring(ctx context.Context, n *Notifier, onEvent func(Event)) error {
	return n.Subscribe(ctx, func(ev Event) {
		if onEvent != nil {
			onEvent(ev)
		}
		h.BroadcastEvent(ev)
	})
}

// Shutdown unregisters every client. Their write pumps send a close frame and exit.
func (h *Hub) Shutdown(_ context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		h.removeLocked(c)
	}
	return nil
}
