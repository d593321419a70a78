package websocket

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	// Clients only send pings and acks, so a small limit is enough.
	maxInboundSize = 4 * 1024

	sendBufferSize = 256
)

// Client is one browser session viewing a project's canvas. Clients are
// receive-only: canvas mutations arrive over REST, the socket carries
// events outward.
type Client struct {
	id        string
	projectID string
	hub       *Hub
	conn      *websocket.Conn
	send      chan []byte
	logger    *zap.Logger
}

// NewClient wraps an upgraded connection for the given project.
func NewClient(projectID string, hub *Hub, conn *websocket.Conn, logger *zap.Logger) *Client {
	id := uuid.New().String()
	return &Client{
		id:        id,
		projectID: projectID,
		hub:       hub,
		conn:      conn,
		send:      make(chan []byte, sendBufferSize),
		logger: logger.With(
			zap.String("projectId", projectID),
			zap.String("connectionId", id),
		),
	}
}

// Start registers the client with the hub and spins up both pumps.
func (c *Client) Start() {
	c.hub.register <- c
	go c.writePump()
	go c.readPump()
	c.sendWelcome()
}

// readPump drains inbound frames so control messages are processed and a
// dead peer is detected via the pong deadline.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxInboundSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Warn("Unexpected socket close", zap.Error(err))
			}
			return
		}
		c.logger.Debug("Inbound frame ignored", zap.Int("bytes", len(msg)))
	}
}

// writePump serializes all writes to the connection. Only this goroutine
// touches conn after Start.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.logger.Warn("Socket write failed", zap.Error(err))
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// sendWelcome confirms the subscription so the UI can flip to live mode.
func (c *Client) sendWelcome() {
	msg, err := json.Marshal(map[string]any{
		"type":      "connection_established",
		"timestamp": time.Now().Unix(),
		"data": map[string]string{
			"connectionId": c.id,
			"projectId":    c.projectID,
		},
	})
	if err != nil {
		return
	}
	select {
	case c.send <- msg:
	default:
		c.logger.Warn("Welcome message dropped, send buffer full")
	}
}

// GetID returns the client's connection ID
func (c *Client) GetID() string {
	return c.id
}

// GetProjectID returns the project this client is viewing
func (c *Client) GetProjectID() string {
	return c.projectID
}
