package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"canvas-backend/application/ports"
	"canvas-backend/application/services"
	"canvas-backend/domain/core/aggregates"
	"canvas-backend/domain/core/entities"
	"canvas-backend/domain/core/valueobjects"
	"canvas-backend/pkg/api"
)

// NodeHandler handles node lifecycle HTTP requests
type NodeHandler struct {
	canvas        *aggregates.Canvas
	canvasService *services.CanvasService
	deletion      *services.DeletionCoordinator
	videoRepo     ports.VideoRepository
	logger        *zap.Logger
}

// NewNodeHandler creates a new node handler
func NewNodeHandler(
	canvas *aggregates.Canvas,
	canvasService *services.CanvasService,
	deletion *services.DeletionCoordinator,
	videoRepo ports.VideoRepository,
	logger *zap.Logger,
) *NodeHandler {
	return &NodeHandler{
		canvas:        canvas,
		canvasService: canvasService,
		deletion:      deletion,
		videoRepo:     videoRepo,
		logger:        logger,
	}
}

// CreateNodeRequest represents the request body for creating a node
type CreateNodeRequest struct {
	Kind string  `json:"kind" validate:"required,oneof=video moodboard agent"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`

	// Video nodes: either reference an existing video record or create one.
	VideoID  string `json:"videoId,omitempty"`
	Title    string `json:"title,omitempty" validate:"omitempty,max=200"`
	MediaURL string `json:"mediaUrl,omitempty" validate:"omitempty,url"`

	// Agent nodes
	AgentType string `json:"agentType,omitempty" validate:"omitempty,oneof=title description thumbnail tweets"`
}

// CreateNode handles POST /nodes
func (h *NodeHandler) CreateNode(w http.ResponseWriter, r *http.Request) {
	var req CreateNodeRequest
	if err := api.ParseJSONBody(r, &req, 1<<20); err != nil {
		api.Error(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if err := ValidateStruct(req); err != nil {
		api.Error(w, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	desired, err := valueobjects.NewPosition(req.X, req.Y)
	if err != nil {
		api.FromError(w, err)
		return
	}

	var node *entities.Node
	switch valueobjects.NodeKind(req.Kind) {
	case valueobjects.KindVideo:
		node, err = h.createVideoNode(r, req, desired)
	case valueobjects.KindMoodBoard:
		node, err = h.canvasService.AddMoodBoardNode(r.Context(), desired)
	case valueobjects.KindAgent:
		node, err = h.canvasService.AddAgentNode(r.Context(), entities.AgentType(req.AgentType), desired)
	default:
		api.Error(w, http.StatusBadRequest, "transcription nodes are created by uploading a file")
		return
	}
	if err != nil {
		api.FromError(w, err)
		return
	}

	api.Success(w, http.StatusCreated, toNodeDTO(node))
}

// createVideoNode resolves or creates the backing video record and places it.
func (h *NodeHandler) createVideoNode(r *http.Request, req CreateNodeRequest, desired valueobjects.Position) (*entities.Node, error) {
	var record ports.VideoRecord

	if req.VideoID != "" {
		found, err := h.videoRepo.FindByID(r.Context(), h.canvas.ProjectID(), valueobjects.VideoID(req.VideoID))
		if err != nil {
			return nil, err
		}
		record = *found
	} else {
		now := time.Now()
		record = ports.VideoRecord{
			ID:                 valueobjects.NewVideoID(),
			ProjectID:          h.canvas.ProjectID(),
			Title:              req.Title,
			MediaURL:           req.MediaURL,
			TranscriptionState: entities.TranscriptionPending,
			CreatedAt:          now,
			UpdatedAt:          now,
		}
		if err := h.videoRepo.Save(r.Context(), record); err != nil {
			return nil, err
		}
	}

	return h.canvasService.AddVideoNode(r.Context(), record, desired)
}

// MoveNodeRequest represents the request body for moving a node
type MoveNodeRequest struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// MoveNode handles POST /nodes/{nodeID}/move
func (h *NodeHandler) MoveNode(w http.ResponseWriter, r *http.Request) {
	nodeID := valueobjects.NodeID(chi.URLParam(r, "nodeID"))

	var req MoveNodeRequest
	if err := api.ParseJSONBody(r, &req, 1<<16); err != nil {
		api.Error(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	position, err := valueobjects.NewPosition(req.X, req.Y)
	if err != nil {
		api.FromError(w, err)
		return
	}

	if err := h.canvasService.MoveNode(r.Context(), nodeID, position); err != nil {
		api.FromError(w, err)
		return
	}

	api.Success(w, http.StatusOK, PositionDTO{X: position.X(), Y: position.Y()})
}

// UpdateMoodBoardRequest represents the request body for replacing mood board items
type UpdateMoodBoardRequest struct {
	Items []entities.MoodItem `json:"items" validate:"required,max=50,dive"`
}

// UpdateMoodBoard handles PUT /nodes/{nodeID}/moodboard
func (h *NodeHandler) UpdateMoodBoard(w http.ResponseWriter, r *http.Request) {
	nodeID := valueobjects.NodeID(chi.URLParam(r, "nodeID"))

	var req UpdateMoodBoardRequest
	if err := api.ParseJSONBody(r, &req, 1<<20); err != nil {
		api.Error(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if err := ValidateStruct(req); err != nil {
		api.Error(w, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	for i := range req.Items {
		if req.Items[i].Type == "" {
			req.Items[i].Type = entities.DetectMoodItemType(req.Items[i].URL)
		}
	}

	if err := h.canvasService.UpdateMoodBoard(r.Context(), nodeID, req.Items); err != nil {
		api.FromError(w, err)
		return
	}

	node, err := h.canvas.FindNode(nodeID)
	if err != nil {
		api.FromError(w, err)
		return
	}
	api.Success(w, http.StatusOK, toNodeDTO(node))
}

// DeleteNodesRequest represents the request body for deleting nodes
type DeleteNodesRequest struct {
	NodeIDs []string `json:"nodeIds" validate:"required,min=1,max=100"`
}

// DeleteNodesResponse reports whether the deletion needs confirmation
type DeleteNodesResponse struct {
	RequiresConfirmation bool   `json:"requiresConfirmation"`
	Message              string `json:"message,omitempty"`
}

// RequestDelete handles POST /nodes/delete. Deletions touching persisted
// content come back with requiresConfirmation=true and wait for a follow-up
// confirm or cancel.
func (h *NodeHandler) RequestDelete(w http.ResponseWriter, r *http.Request) {
	var req DeleteNodesRequest
	if err := api.ParseJSONBody(r, &req, 1<<20); err != nil {
		api.Error(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if err := ValidateStruct(req); err != nil {
		api.Error(w, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	ids := make([]valueobjects.NodeID, len(req.NodeIDs))
	for i, id := range req.NodeIDs {
		ids[i] = valueobjects.NodeID(id)
	}

	requiresConfirmation, err := h.deletion.Request(r.Context(), ids)
	if err != nil {
		api.FromError(w, err)
		return
	}

	resp := DeleteNodesResponse{RequiresConfirmation: requiresConfirmation}
	if requiresConfirmation {
		resp.Message = "Deletion affects saved content and must be confirmed."
	}
	api.Success(w, http.StatusOK, resp)
}

// ConfirmDelete handles POST /nodes/delete/confirm
func (h *NodeHandler) ConfirmDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.deletion.Confirm(r.Context()); err != nil {
		api.FromError(w, err)
		return
	}
	api.Success(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// CancelDelete handles POST /nodes/delete/cancel
func (h *NodeHandler) CancelDelete(w http.ResponseWriter, r *http.Request) {
	h.deletion.Cancel()
	api.Success(w, http.StatusOK, map[string]string{"status": "cancelled"})
}
