package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"canvas-backend/application/services"
	"canvas-backend/domain/core/aggregates"
	"canvas-backend/domain/core/valueobjects"
	"canvas-backend/pkg/api"
)

// CanvasHandler serves the full canvas state and viewport updates.
type CanvasHandler struct {
	canvas        *aggregates.Canvas
	canvasService *services.CanvasService
	sync          *services.PersistenceSync
	logger        *zap.Logger
}

// NewCanvasHandler creates a new canvas handler
func NewCanvasHandler(
	canvas *aggregates.Canvas,
	canvasService *services.CanvasService,
	sync *services.PersistenceSync,
	logger *zap.Logger,
) *CanvasHandler {
	return &CanvasHandler{
		canvas:        canvas,
		canvasService: canvasService,
		sync:          sync,
		logger:        logger,
	}
}

// GetCanvas handles GET /canvas. The first call hydrates the canvas from
// storage; subsequent calls serve in-memory state.
func (h *CanvasHandler) GetCanvas(w http.ResponseWriter, r *http.Request) {
	if !h.canvas.IsLoaded() {
		if err := h.sync.Load(r.Context()); err != nil {
			h.logger.Error("Canvas load failed", zap.Error(err))
			api.FromError(w, err)
			return
		}
	}

	api.Success(w, http.StatusOK, h.buildState())
}

// UpdateViewportRequest represents the request body for a viewport change
type UpdateViewportRequest struct {
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	Zoom float64 `json:"zoom" validate:"gt=0"`
}

// UpdateViewport handles PUT /canvas/viewport
func (h *CanvasHandler) UpdateViewport(w http.ResponseWriter, r *http.Request) {
	var req UpdateViewportRequest
	if err := api.ParseJSONBody(r, &req, 1<<16); err != nil {
		api.Error(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if err := ValidateStruct(req); err != nil {
		api.Error(w, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	viewport := valueobjects.Viewport{X: req.X, Y: req.Y, Zoom: req.Zoom}
	if err := h.canvasService.SetViewport(r.Context(), viewport); err != nil {
		api.FromError(w, err)
		return
	}

	api.Success(w, http.StatusOK, ViewportDTO(viewport))
}

func (h *CanvasHandler) buildState() CanvasStateResponse {
	nodes := h.canvas.Nodes()
	nodeDTOs := make([]NodeDTO, len(nodes))
	for i, node := range nodes {
		nodeDTOs[i] = toNodeDTO(node)
	}

	edges := h.canvas.Edges()
	edgeDTOs := make([]EdgeDTO, len(edges))
	for i, edge := range edges {
		edgeDTOs[i] = toEdgeDTO(edge)
	}

	state := CanvasStateResponse{
		ProjectID: h.canvas.ProjectID().String(),
		Nodes:     nodeDTOs,
		Edges:     edgeDTOs,
		ChatLog:   toChatDTOs(h.canvas.ChatLog()),
		Version:   h.canvas.Version(),
	}
	if viewport, ok := h.canvas.Viewport(); ok {
		dto := ViewportDTO(viewport)
		state.Viewport = &dto
	}
	return state
}
