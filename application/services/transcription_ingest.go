package services

import (
	"context"
	"time"

	"go.uber.org/zap"

	"canvas-backend/application/ports"
	"canvas-backend/domain/core/aggregates"
	"canvas-backend/domain/core/entities"
	"canvas-backend/domain/core/valueobjects"
	pkgerrors "canvas-backend/pkg/errors"
)

// TranscriptionIngestService turns an uploaded transcript file into a
// persisted record plus a canvas node.
type TranscriptionIngestService struct {
	canvas            *aggregates.Canvas
	canvasService     *CanvasService
	transcriptionRepo ports.TranscriptionRepository
	parser            ports.TranscriptParser
	logger            *zap.Logger
}

// NewTranscriptionIngestService creates an ingest service.
func NewTranscriptionIngestService(
	canvas *aggregates.Canvas,
	canvasService *CanvasService,
	transcriptionRepo ports.TranscriptionRepository,
	parser ports.TranscriptParser,
	logger *zap.Logger,
) *TranscriptionIngestService {
	return &TranscriptionIngestService{
		canvas:            canvas,
		canvasService:     canvasService,
		transcriptionRepo: transcriptionRepo,
		parser:            parser,
		logger:            logger,
	}
}

// Ingest parses the uploaded file, persists the record, and places a node.
// videoID is the owning video, zero for a standalone transcript.
func (s *TranscriptionIngestService) Ingest(
	ctx context.Context,
	fileName string,
	data []byte,
	videoID valueobjects.VideoID,
	desired valueobjects.Position,
) (*entities.Node, error) {
	if len(data) == 0 {
		return nil, pkgerrors.NewValidation("uploaded file is empty")
	}

	parsed, err := s.parser.Parse(fileName, data)
	if err != nil {
		return nil, pkgerrors.NewValidation("could not parse transcript: " + err.Error())
	}

	record := ports.TranscriptionRecord{
		ID:        valueobjects.NewTranscriptionID(),
		ProjectID: s.canvas.ProjectID(),
		VideoID:   videoID,
		FileName:  fileName,
		Format:    parsed.Format,
		FullText:  parsed.FullText,
		Segments:  parsed.Segments,
		WordCount: parsed.WordCount,
		Duration:  parsed.Duration,
		CreatedAt: time.Now(),
	}
	if err := s.transcriptionRepo.Save(ctx, record); err != nil {
		return nil, pkgerrors.Wrap(err, "failed to persist transcription")
	}

	node, err := s.canvasService.AddTranscriptionNode(ctx, record, desired)
	if err != nil {
		return nil, err
	}

	// Link the transcript to its owning video when both are on the canvas.
	if !videoID.IsZero() {
		if videoNodeID, ok := s.canvas.Identities().NodeFor(videoID.Foreign()); ok {
			edge := aggregates.NewEdge(videoNodeID, node.ID(), "transcriptions", "video")
			if err := s.canvas.LoadEdge(edge); err != nil {
				s.logger.Debug("Failed to link transcript to video", zap.Error(err))
			}
		}
	}

	s.logger.Info("Transcription ingested",
		zap.String("transcriptionID", record.ID.String()),
		zap.String("format", parsed.Format),
		zap.Int("segments", len(parsed.Segments)),
	)
	return node, nil
}
