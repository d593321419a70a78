package websocket

import (
	"net/http"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// maxConnectionsPerProject bounds open canvases per project.
const maxConnectionsPerProject = 10

// Server handles WebSocket upgrade requests. It is mounted into the REST
// router rather than running its own listener.
type Server struct {
	hub      *Hub
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

// ServerConfig holds WebSocket server configuration
type ServerConfig struct {
	ReadBufferSize  int
	WriteBufferSize int
	CheckOrigin     func(r *http.Request) bool
}

// DefaultServerConfig returns default WebSocket server configuration
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			// The canvas is same-origin in production; tighten here when the
			// frontend moves to its own domain.
			return true
		},
	}
}

// NewServer creates a new WebSocket server
func NewServer(hub *Hub, config *ServerConfig, logger *zap.Logger) *Server {
	if config == nil {
		config = DefaultServerConfig()
	}

	return &Server{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		logger: logger,
	}
}

// HandleWebSocket handles WebSocket upgrade requests
func (s *Server) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	projectID := r.URL.Query().Get("project")
	if projectID == "" {
		http.Error(w, "project query parameter is required", http.StatusBadRequest)
		return
	}

	if s.hub.GetConnectionCount(projectID) >= maxConnectionsPerProject {
		s.logger.Warn("Connection limit exceeded for project",
			zap.String("projectId", projectID),
			zap.Int("currentConnections", s.hub.GetConnectionCount(projectID)),
		)
		http.Error(w, "Connection limit exceeded", http.StatusTooManyRequests)
		return
	}

	// Upgrade HTTP connection to WebSocket
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("Failed to upgrade connection",
			zap.Error(err),
			zap.String("remoteAddr", r.RemoteAddr),
		)
		return
	}

	client := NewClient(projectID, s.hub, conn, s.logger)
	client.Start()

	s.logger.Info("New WebSocket connection established",
		zap.String("projectId", projectID),
		zap.String("connectionId", client.GetID()),
		zap.String("remoteAddr", r.RemoteAddr),
	)
}

// GetHub returns the WebSocket hub
func (s *Server) GetHub() *Hub {
	return s.hub
}
