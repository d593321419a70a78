package services

import (
	"context"

	"go.uber.org/zap"

	"canvas-backend/application/events"
	"canvas-backend/application/ports"
	"canvas-backend/domain/core/aggregates"
	"canvas-backend/domain/core/entities"
	"canvas-backend/domain/core/valueobjects"
	domainservices "canvas-backend/domain/services"
	pkgerrors "canvas-backend/pkg/errors"
	"canvas-backend/pkg/observability"
)

// CanvasService handles node lifecycle on the canvas: creation with
// collision-free placement, movement, mood board editing and the viewport.
type CanvasService struct {
	canvas    *aggregates.Canvas
	placement *domainservices.PlacementEngine
	agentRepo ports.AgentRepository
	registry  *events.HandlerRegistry
	metrics   *observability.Metrics
	logger    *zap.Logger
}

// NewCanvasService creates a canvas service.
func NewCanvasService(
	canvas *aggregates.Canvas,
	placement *domainservices.PlacementEngine,
	agentRepo ports.AgentRepository,
	registry *events.HandlerRegistry,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *CanvasService {
	return &CanvasService{
		canvas:    canvas,
		placement: placement,
		agentRepo: agentRepo,
		registry:  registry,
		metrics:   metrics,
		logger:    logger,
	}
}

// AddVideoNode places a video node for an existing video record.
func (s *CanvasService) AddVideoNode(ctx context.Context, record ports.VideoRecord, desired valueobjects.Position) (*entities.Node, error) {
	node, err := entities.NewVideoNode(entities.VideoPayload{
		VideoID:            record.ID,
		Title:              record.Title,
		MediaURL:           record.MediaURL,
		Duration:           record.Duration,
		TranscriptionState: record.TranscriptionState,
		TranscriptionText:  record.TranscriptionText,
	}, s.resolvePosition(desired, valueobjects.KindVideo))
	if err != nil {
		return nil, err
	}
	return s.add(ctx, node)
}

// AddTranscriptionNode places a transcription node for an existing record.
func (s *CanvasService) AddTranscriptionNode(ctx context.Context, record ports.TranscriptionRecord, desired valueobjects.Position) (*entities.Node, error) {
	node, err := entities.NewTranscriptionNode(entities.TranscriptionPayload{
		TranscriptionID: record.ID,
		VideoID:         record.VideoID,
		FileName:        record.FileName,
		Format:          record.Format,
		FullText:        record.FullText,
		Segments:        record.Segments,
		WordCount:       record.WordCount,
		Duration:        record.Duration,
	}, s.resolvePosition(desired, valueobjects.KindTranscription))
	if err != nil {
		return nil, err
	}
	return s.add(ctx, node)
}

// AddMoodBoardNode places a new, empty mood board node. Mood boards live
// entirely in the canvas snapshot; no backing record is created.
func (s *CanvasService) AddMoodBoardNode(ctx context.Context, desired valueobjects.Position) (*entities.Node, error) {
	node := entities.NewMoodBoardNode(entities.MoodBoardPayload{}, s.resolvePosition(desired, valueobjects.KindMoodBoard))
	return s.add(ctx, node)
}

// AddAgentNode creates a persisted agent record and places its node.
func (s *CanvasService) AddAgentNode(ctx context.Context, agentType entities.AgentType, desired valueobjects.Position) (*entities.Node, error) {
	if !agentType.IsValid() {
		return nil, pkgerrors.NewValidation("unknown agent type: " + string(agentType))
	}

	record := ports.AgentRecord{
		ID:        valueobjects.NewAgentID(),
		ProjectID: s.canvas.ProjectID(),
		Type:      agentType,
		Status:    entities.AgentIdle,
	}
	if err := s.agentRepo.Save(ctx, record); err != nil {
		return nil, pkgerrors.Wrap(err, "failed to create agent record")
	}

	node, err := entities.NewAgentNode(entities.AgentPayload{
		AgentID: record.ID,
		Type:    agentType,
	}, s.resolvePosition(desired, valueobjects.KindAgent))
	if err != nil {
		return nil, err
	}
	return s.add(ctx, node)
}

// MoveNode updates a node's position from a drag.
func (s *CanvasService) MoveNode(ctx context.Context, id valueobjects.NodeID, position valueobjects.Position) error {
	err := s.canvas.UpdateNode(id, entities.NodePatch{Position: &position})
	if err != nil {
		return err
	}
	s.dispatchEvents(ctx)
	return nil
}

// UpdateMoodBoard replaces a mood board's item list.
func (s *CanvasService) UpdateMoodBoard(ctx context.Context, id valueobjects.NodeID, items []entities.MoodItem) error {
	err := s.canvas.UpdateNode(id, entities.NodePatch{
		MoodBoard: &entities.MoodBoardPatch{Items: &items},
	})
	if err != nil {
		return err
	}
	s.dispatchEvents(ctx)
	return nil
}

// SetViewport records a pan/zoom change.
func (s *CanvasService) SetViewport(ctx context.Context, viewport valueobjects.Viewport) error {
	if err := s.canvas.SetViewport(viewport); err != nil {
		return err
	}
	s.dispatchEvents(ctx)
	return nil
}

func (s *CanvasService) resolvePosition(desired valueobjects.Position, kind valueobjects.NodeKind) valueobjects.Position {
	existing := make([]domainservices.PlacedNode, 0)
	for _, node := range s.canvas.Nodes() {
		existing = append(existing, domainservices.PlacedNode{
			Position: node.Position(),
			Kind:     node.Kind(),
		})
	}

	placed, fellBack := s.placement.PlaceTracked(desired, kind, existing)
	if fellBack {
		s.metrics.PlacementFallbacks.Inc()
		s.logger.Debug("Placement ring search exhausted, using fallback offset",
			zap.Float64("desiredX", desired.X()),
			zap.Float64("desiredY", desired.Y()),
		)
	}
	return placed
}

func (s *CanvasService) add(ctx context.Context, node *entities.Node) (*entities.Node, error) {
	if err := s.canvas.AddNode(node); err != nil {
		return nil, err
	}

	s.metrics.NodesOnCanvas.Set(float64(len(s.canvas.Nodes())))
	s.logger.Info("Node added to canvas",
		zap.String("nodeID", node.ID().String()),
		zap.String("kind", string(node.Kind())),
	)
	s.dispatchEvents(ctx)
	return node, nil
}

func (s *CanvasService) dispatchEvents(ctx context.Context) {
	if s.registry == nil {
		return
	}
	if err := s.registry.DispatchBatch(ctx, s.canvas.DrainEvents()); err != nil {
		s.logger.Warn("Event dispatch reported failures", zap.Error(err))
	}
}
