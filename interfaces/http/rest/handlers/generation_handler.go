package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"canvas-backend/application/services"
	"canvas-backend/domain/core/aggregates"
	"canvas-backend/domain/core/valueobjects"
	"canvas-backend/pkg/api"
)

// GenerationHandler handles agent generation and chat HTTP requests
type GenerationHandler struct {
	canvas       *aggregates.Canvas
	orchestrator *services.GenerationOrchestrator
	logger       *zap.Logger
}

// NewGenerationHandler creates a new generation handler
func NewGenerationHandler(
	canvas *aggregates.Canvas,
	orchestrator *services.GenerationOrchestrator,
	logger *zap.Logger,
) *GenerationHandler {
	return &GenerationHandler{
		canvas:       canvas,
		orchestrator: orchestrator,
		logger:       logger,
	}
}

// GenerateResponse reports the outcome of a generation request
type GenerateResponse struct {
	Status  string  `json:"status"`
	Node    NodeDTO `json:"node"`
	Message string  `json:"message,omitempty"`
}

// Generate handles POST /agents/{nodeID}/generate
func (h *GenerationHandler) Generate(w http.ResponseWriter, r *http.Request) {
	h.runGeneration(w, r, h.orchestrator.Generate)
}

// Regenerate handles POST /agents/{nodeID}/regenerate
func (h *GenerationHandler) Regenerate(w http.ResponseWriter, r *http.Request) {
	h.runGeneration(w, r, h.orchestrator.Regenerate)
}

func (h *GenerationHandler) runGeneration(
	w http.ResponseWriter,
	r *http.Request,
	run func(ctx context.Context, nodeID valueobjects.NodeID) error,
) {
	nodeID := valueobjects.NodeID(chi.URLParam(r, "nodeID"))

	err := run(r.Context(), nodeID)
	if errors.Is(err, services.ErrAwaitingImages) {
		// Thumbnail agents without a connected image wait for an upload.
		h.respondWithNode(w, r, nodeID, "awaiting_images",
			"Upload or connect an image to generate the thumbnail.")
		return
	}
	if err != nil {
		api.FromError(w, err)
		return
	}

	h.respondWithNode(w, r, nodeID, "done", "")
}

// SubmitImageRequest represents the request body for supplying a thumbnail image
type SubmitImageRequest struct {
	ImageURL string `json:"imageUrl" validate:"required,url"`
}

// SubmitThumbnailImage handles POST /agents/{nodeID}/thumbnail-image
func (h *GenerationHandler) SubmitThumbnailImage(w http.ResponseWriter, r *http.Request) {
	nodeID := valueobjects.NodeID(chi.URLParam(r, "nodeID"))

	var req SubmitImageRequest
	if err := api.ParseJSONBody(r, &req, 1<<16); err != nil {
		api.Error(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if err := ValidateStruct(req); err != nil {
		api.Error(w, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	if err := h.orchestrator.SubmitThumbnailImage(r.Context(), nodeID, req.ImageURL); err != nil {
		api.FromError(w, err)
		return
	}

	h.respondWithNode(w, r, nodeID, "done", "")
}

// GenerateAll handles POST /agents/generate-all
func (h *GenerationHandler) GenerateAll(w http.ResponseWriter, r *http.Request) {
	if err := h.orchestrator.GenerateAll(r.Context()); err != nil {
		api.FromError(w, err)
		return
	}
	api.Success(w, http.StatusOK, map[string]string{"status": "done"})
}

// ChatRequest represents the request body for a chat message
type ChatRequest struct {
	Text string `json:"text" validate:"required,max=4000"`
}

// Chat handles POST /chat. Messages mentioning an agent (@title, @thumbnail,
// ...) are routed to that agent; others land in the flat chat log.
func (h *GenerationHandler) Chat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := api.ParseJSONBody(r, &req, 1<<20); err != nil {
		api.Error(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if err := ValidateStruct(req); err != nil {
		api.Error(w, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	if err := h.orchestrator.HandleChatMessage(r.Context(), req.Text); err != nil {
		api.FromError(w, err)
		return
	}

	api.Success(w, http.StatusOK, map[string]interface{}{
		"chatLog": toChatDTOs(h.canvas.ChatLog()),
	})
}

func (h *GenerationHandler) respondWithNode(w http.ResponseWriter, r *http.Request, nodeID valueobjects.NodeID, status, message string) {
	node, err := h.canvas.FindNode(nodeID)
	if err != nil {
		api.FromError(w, err)
		return
	}
	api.Success(w, http.StatusOK, GenerateResponse{
		Status:  status,
		Node:    toNodeDTO(node),
		Message: message,
	})
}
