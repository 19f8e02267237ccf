package notification

import (
	"context"
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"restaurant-system/internal/auth"
	"restaurant-system/internal/httputil"
	"restaurant-system/internal/logger"
	"restaurant-system/internal/messaging"
	"restaurant-system/internal/models"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBuffer     = 16
)

// client is one WebSocket connection and the actor behind it
type client struct {
	conn  *websocket.Conn
	actor auth.Actor
	send  chan []byte
}

// sees reports whether the client may receive updates about update's order
func (c *client) sees(update *models.StatusUpdateMessage) bool {
	return c.actor.Role.CanManageOrders() || update.CustomerID == c.actor.UserID
}

// Hub fans order status updates out to connected WebSocket clients. Staff
// and admins receive every update, customers only those for their orders.
type Hub struct {
	logger     *logger.Logger
	upgrader   websocket.Upgrader
	clients    map[*client]struct{}
	register   chan *client
	unregister chan *client
	broadcast  chan *models.StatusUpdateMessage
	done       chan struct{}
	count      atomic.Int32
}

func NewHub(log *logger.Logger) *Hub {
	return &Hub{
		logger: log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Clients authenticate with a bearer token, not cookies.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients:    make(map[*client]struct{}),
		register:   make(chan *client),
		unregister: make(chan *client),
		broadcast:  make(chan *models.StatusUpdateMessage),
		done:       make(chan struct{}),
	}
}

// Run owns the client set until ctx is cancelled
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for c := range h.clients {
				h.drop(c)
			}
			return

		case c := <-h.register:
			h.clients[c] = struct{}{}
			h.count.Add(1)

		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				h.drop(c)
			}

		case update := <-h.broadcast:
			data, err := json.Marshal(update)
			if err != nil {
				h.logger.Error("ws_encode_failed", "Failed to encode status update", "", err, nil)
				continue
			}
			for c := range h.clients {
				if !c.sees(update) {
					continue
				}
				select {
				case c.send <- data:
				default:
					h.logger.Error("ws_client_dropped", "Client too slow, disconnecting", "", nil, map[string]interface{}{
						"user_id": c.actor.UserID,
					})
					h.drop(c)
				}
			}
		}
	}
}

func (h *Hub) drop(c *client) {
	delete(h.clients, c)
	close(c.send)
	h.count.Add(-1)
}

// Clients returns the number of connected clients
func (h *Hub) Clients() int {
	return int(h.count.Load())
}

// Handle is a messaging.Handler feeding deliveries into the hub
func (h *Hub) Handle(ctx context.Context, body []byte) error {
	var update models.StatusUpdateMessage
	if err := messaging.Decode(body, &update); err != nil {
		return err
	}
	select {
	case h.broadcast <- &update:
		return nil
	case <-h.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ServeWS handles GET /ws/orders. The router must already authenticate the
// caller.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	requestID := logger.RequestIDFromContext(r.Context())
	actor, err := auth.RequireActor(r.Context())
	if err != nil {
		httputil.WriteError(w, r, h.logger, err)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the error response.
		h.logger.Error("ws_upgrade_failed", "WebSocket upgrade failed", requestID, err, nil)
		return
	}

	c := &client{conn: conn, actor: actor, send: make(chan []byte, sendBuffer)}
	select {
	case h.register <- c:
	case <-h.done:
		conn.Close()
		return
	}

	h.logger.Debug("ws_connected", "WebSocket client connected", requestID, map[string]interface{}{
		"user_id": actor.UserID,
		"role":    actor.Role,
	})

	go h.writePump(c)
	go h.readPump(c)
}

// readPump only watches for the peer going away and answers pongs
func (h *Hub) readPump(c *client) {
	defer func() {
		select {
		case h.unregister <- c:
		case <-h.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Error("ws_read_failed", "WebSocket read failed", "", err, map[string]interface{}{
					"user_id": c.actor.UserID,
				})
			}
			return
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
