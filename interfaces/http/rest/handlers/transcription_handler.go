package handlers

import (
	"io"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"canvas-backend/application/services"
	"canvas-backend/domain/core/valueobjects"
	"canvas-backend/pkg/api"
)

// maxTranscriptUpload bounds transcript file size (5MB).
const maxTranscriptUpload = 5 << 20

// TranscriptionHandler handles transcript upload HTTP requests
type TranscriptionHandler struct {
	ingest *services.TranscriptionIngestService
	logger *zap.Logger
}

// NewTranscriptionHandler creates a new transcription handler
func NewTranscriptionHandler(ingest *services.TranscriptionIngestService, logger *zap.Logger) *TranscriptionHandler {
	return &TranscriptionHandler{ingest: ingest, logger: logger}
}

// Upload handles POST /transcriptions. The body is multipart form data with a
// "file" part plus optional "videoId", "x" and "y" fields.
func (h *TranscriptionHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxTranscriptUpload); err != nil {
		api.Error(w, http.StatusBadRequest, "Invalid multipart body: "+err.Error())
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		api.Error(w, http.StatusBadRequest, "Missing file part: "+err.Error())
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxTranscriptUpload))
	if err != nil {
		api.Error(w, http.StatusBadRequest, "Failed to read file: "+err.Error())
		return
	}

	desired, err := valueobjects.NewPosition(
		parseFormFloat(r, "x"),
		parseFormFloat(r, "y"),
	)
	if err != nil {
		api.FromError(w, err)
		return
	}

	videoID := valueobjects.VideoID(r.FormValue("videoId"))

	node, err := h.ingest.Ingest(r.Context(), header.Filename, data, videoID, desired)
	if err != nil {
		api.FromError(w, err)
		return
	}

	api.Success(w, http.StatusCreated, toNodeDTO(node))
}

func parseFormFloat(r *http.Request, field string) float64 {
	value, err := strconv.ParseFloat(r.FormValue(field), 64)
	if err != nil {
		return 0
	}
	return value
}
