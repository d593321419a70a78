package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"canvas-backend/pkg/observability"
)

// Hub maintains active WebSocket connections and broadcasts messages to
// everyone viewing a project. One project can have multiple open canvases.
type Hub struct {
	connections map[string]map[*Client]bool // projectID -> set of clients
	mu          sync.RWMutex

	// Channels for client management
	register   chan *Client
	unregister chan *Client

	// Message broadcasting
	broadcast chan *BroadcastMessage

	// Lifecycle
	ctx    context.Context
	cancel context.CancelFunc
	logger *zap.Logger

	metrics *observability.Metrics
}

// BroadcastMessage represents a message to be sent to a project's viewers
type BroadcastMessage struct {
	ProjectID string          `json:"-"`
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"`
}

// NewHub creates a new WebSocket hub
func NewHub(metrics *observability.Metrics, logger *zap.Logger) *Hub {
	ctx, cancel := context.WithCancel(context.Background())

	return &Hub{
		connections: make(map[string]map[*Client]bool),
		register:    make(chan *Client, 100),
		unregister:  make(chan *Client, 100),
		broadcast:   make(chan *BroadcastMessage, 1000),
		ctx:         ctx,
		cancel:      cancel,
		logger:      logger,
		metrics:     metrics,
	}
}

// Run starts the hub's main event loop
func (h *Hub) Run() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-h.ctx.Done():
			h.logger.Info("Hub shutting down")
			h.closeAllConnections()
			return

		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case message := <-h.broadcast:
			h.broadcastToProject(message)

		case <-ticker.C:
			h.performHealthCheck()
		}
	}
}

// Stop gracefully shuts down the hub
func (h *Hub) Stop() {
	h.logger.Info("Stopping WebSocket hub")
	h.cancel()
}

// SendToProject sends a message to all connections viewing a project
func (h *Hub) SendToProject(projectID string, messageType string, data interface{}) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal data: %w", err)
	}

	message := &BroadcastMessage{
		ProjectID: projectID,
		Type:      messageType,
		Data:      jsonData,
		Timestamp: time.Now().Unix(),
	}

	select {
	case h.broadcast <- message:
		return nil
	case <-time.After(5 * time.Second):
		return fmt.Errorf("broadcast channel full, message dropped")
	}
}

// registerClient adds a new client connection
func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.connections[client.projectID] == nil {
		h.connections[client.projectID] = make(map[*Client]bool)
	}
	h.connections[client.projectID][client] = true

	h.metrics.WebsocketClients.Inc()

	h.logger.Info("Client registered",
		zap.String("projectId", client.projectID),
		zap.String("connectionId", client.id),
		zap.Int("projectConnections", len(h.connections[client.projectID])),
	)
}

// unregisterClient removes a client connection
func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if clients, ok := h.connections[client.projectID]; ok {
		if _, ok := clients[client]; ok {
			delete(clients, client)
			close(client.send)

			// Remove project entry if no more connections
			if len(clients) == 0 {
				delete(h.connections, client.projectID)
			}

			h.metrics.WebsocketClients.Dec()

			h.logger.Info("Client unregistered",
				zap.String("projectId", client.projectID),
				zap.String("connectionId", client.id),
				zap.Int("remainingConnections", len(clients)),
			)
		}
	}
}

// broadcastToProject sends a message to all connections viewing a project
func (h *Hub) broadcastToProject(message *BroadcastMessage) {
	h.mu.RLock()
	clients := h.connections[message.ProjectID]
	h.mu.RUnlock()

	if len(clients) == 0 {
		return
	}

	// Marshal once for all clients
	data, err := json.Marshal(message)
	if err != nil {
		h.logger.Error("Failed to marshal broadcast message",
			zap.Error(err),
			zap.String("messageType", message.Type),
		)
		return
	}

	for client := range clients {
		select {
		case client.send <- data:
		default:
			// Client's send channel is full, close it
			h.logger.Warn("Closing slow client",
				zap.String("projectId", client.projectID),
				zap.String("connectionId", client.id),
			)

			go func(c *Client) {
				c.hub.unregister <- c
				c.conn.Close()
			}(client)
		}
	}
}

// performHealthCheck pings all connections to check if they're alive
func (h *Hub) performHealthCheck() {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for projectID, clients := range h.connections {
		for client := range clients {
			select {
			case client.send <- []byte(`{"type":"ping"}`):
			default:
				h.logger.Warn("Failed to ping client",
					zap.String("projectId", projectID),
					zap.String("connectionId", client.id),
				)
			}
		}
	}
}

// closeAllConnections closes all active connections during shutdown
func (h *Hub) closeAllConnections() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for projectID, clients := range h.connections {
		for client := range clients {
			close(client.send)
			client.conn.Close()
			h.metrics.WebsocketClients.Dec()
		}
		delete(h.connections, projectID)
	}

	h.logger.Info("All connections closed")
}

// GetConnectionCount returns the number of active connections for a project
func (h *Hub) GetConnectionCount(projectID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections[projectID])
}
