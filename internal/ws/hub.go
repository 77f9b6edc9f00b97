package ws

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"skill-exchange/internal/observability"
)

const writeWait = 10 * time.Second

// Publisher receives websocket lifecycle events.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, event any, headers map[string]string) error
}

// Client is one websocket connection serving a live view. Writes are
// serialized; gorilla connections allow a single concurrent writer.
type Client struct {
	conn   *websocket.Conn
	info   ConnInfo
	cancel context.CancelFunc

	mu     sync.Mutex
	closed bool
}

func newClient(conn *websocket.Conn, info ConnInfo, cancel context.CancelFunc) *Client {
	return &Client{conn: conn, info: info, cancel: cancel}
}

// WriteJSON sends v unless the client has been closed.
func (c *Client) WriteJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.conn == nil {
		return websocket.ErrCloseSent
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(v)
}

// Close stops the client's live view and closes the socket with code.
func (c *Client) Close(code int, reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	if c.cancel != nil {
		c.cancel()
	}
	if c.conn != nil {
		_ = c.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), time.Now().Add(time.Second))
		_ = c.conn.Close()
	}
}

type room struct {
	kind       string
	resourceID string
}

// Hub tracks open live-view connections by kind and resource.
type Hub struct {
	rooms     map[room]map[*Client]struct{}
	mu        sync.RWMutex
	publisher Publisher
	logger    *zap.Logger
}

// NewHub creates an empty hub. publisher may be nil.
func NewHub(publisher Publisher, logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		rooms:     make(map[room]map[*Client]struct{}),
		publisher: publisher,
		logger:    logger,
	}
}

// Add registers a client.
func (h *Hub) Add(kind, resourceID string, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	key := room{kind: kind, resourceID: resourceID}
	if _, ok := h.rooms[key]; !ok {
		h.rooms[key] = make(map[*Client]struct{})
	}
	h.rooms[key][c] = struct{}{}
}

// Remove unregisters a client.
func (h *Hub) Remove(kind, resourceID string, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	key := room{kind: kind, resourceID: resourceID}
	if clients, ok := h.rooms[key]; ok {
		delete(clients, c)
		if len(clients) == 0 {
			delete(h.rooms, key)
		}
	}
}

// Count reports the clients registered for a resource.
func (h *Hub) Count(kind, resourceID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room{kind: kind, resourceID: resourceID}])
}

// CloseAll closes every connection, used on shutdown.
func (h *Hub) CloseAll() {
	h.mu.RLock()
	clients := make([]*Client, 0)
	for _, set := range h.rooms {
		for c := range set {
			clients = append(clients, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range clients {
		c.Close(websocket.CloseGoingAway, "server shutting down")
	}
}

func (h *Hub) publishWSEvent(ctx context.Context, kind, resourceID string, info ConnInfo, event, reason string) {
	observability.IncWSEvent(kind, event)
	if h.publisher == nil {
		return
	}

	payload := map[string]interface{}{
		"ws": map[string]interface{}{
			"kind":        kind,
			"resource_id": resourceID,
			"event":       event,
			"conn_id":     info.ConnID,
			"duration_ms": time.Since(info.ConnectedAt).Milliseconds(),
			"reason":      reason,
		},
		"identity": map[string]interface{}{
			"user_id":   info.UserID,
			"device_id": info.DeviceID,
			"ip":        info.IP,
		},
	}
	envelope := observability.EventEnvelope{
		EventType: "ws_events",
		EventName: event,
		Payload:   payload,
	}
	if err := h.publisher.Publish(ctx, wsRoutingKey(kind), envelope, observability.BuildHeaders(info.RequestID, info.TraceID)); err != nil {
		h.logger.Debug("ws event publish failed", zap.String("event", event), zap.Error(err))
	}
}

func wsRoutingKey(kind string) string {
	return "ws_events." + kind
}
