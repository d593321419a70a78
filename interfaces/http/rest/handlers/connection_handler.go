package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"canvas-backend/application/services"
	"canvas-backend/domain/core/valueobjects"
	"canvas-backend/pkg/api"
)

// ConnectionHandler handles edge HTTP requests
type ConnectionHandler struct {
	connections *services.ConnectionService
	logger      *zap.Logger
}

// NewConnectionHandler creates a new connection handler
func NewConnectionHandler(connections *services.ConnectionService, logger *zap.Logger) *ConnectionHandler {
	return &ConnectionHandler{connections: connections, logger: logger}
}

// CreateConnectionRequest represents the request body for connecting two nodes
type CreateConnectionRequest struct {
	SourceID     string `json:"sourceId" validate:"required"`
	TargetID     string `json:"targetId" validate:"required"`
	SourceHandle string `json:"sourceHandle,omitempty"`
	TargetHandle string `json:"targetHandle,omitempty"`
}

// CreateConnection handles POST /connections
func (h *ConnectionHandler) CreateConnection(w http.ResponseWriter, r *http.Request) {
	var req CreateConnectionRequest
	if err := api.ParseJSONBody(r, &req, 1<<16); err != nil {
		api.Error(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if err := ValidateStruct(req); err != nil {
		api.Error(w, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	edge, err := h.connections.Connect(
		r.Context(),
		valueobjects.NodeID(req.SourceID),
		valueobjects.NodeID(req.TargetID),
		req.SourceHandle,
		req.TargetHandle,
	)
	if err != nil {
		api.FromError(w, err)
		return
	}

	api.Success(w, http.StatusCreated, toEdgeDTO(edge))
}

// DeleteConnectionsRequest represents the request body for removing edges
type DeleteConnectionsRequest struct {
	EdgeIDs []string `json:"edgeIds" validate:"required,min=1,max=100"`
}

// DeleteConnections handles POST /connections/delete
func (h *ConnectionHandler) DeleteConnections(w http.ResponseWriter, r *http.Request) {
	var req DeleteConnectionsRequest
	if err := api.ParseJSONBody(r, &req, 1<<16); err != nil {
		api.Error(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if err := ValidateStruct(req); err != nil {
		api.Error(w, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	if err := h.connections.Disconnect(r.Context(), req.EdgeIDs); err != nil {
		api.FromError(w, err)
		return
	}

	api.Success(w, http.StatusOK, map[string]interface{}{"removed": len(req.EdgeIDs)})
}
