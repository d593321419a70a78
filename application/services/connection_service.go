package services

import (
	"context"

	"go.uber.org/zap"

	"canvas-backend/application/events"
	"canvas-backend/application/ports"
	"canvas-backend/domain/core/aggregates"
	"canvas-backend/domain/core/entities"
	"canvas-backend/domain/core/valueobjects"
	"canvas-backend/domain/specifications"
	pkgerrors "canvas-backend/pkg/errors"
)

// ConnectionService manages edges and keeps each agent's persisted
// connections list mirroring the edges that point into it.
type ConnectionService struct {
	canvas    *aggregates.Canvas
	agentRepo ports.AgentRepository
	registry  *events.HandlerRegistry
	logger    *zap.Logger
}

// NewConnectionService creates a connection service.
func NewConnectionService(
	canvas *aggregates.Canvas,
	agentRepo ports.AgentRepository,
	registry *events.HandlerRegistry,
	logger *zap.Logger,
) *ConnectionService {
	return &ConnectionService{
		canvas:    canvas,
		agentRepo: agentRepo,
		registry:  registry,
		logger:    logger,
	}
}

// Connect validates and adds an edge, then mirrors the source's persisted id
// into the target agent's connections list. The append is unconditional: a
// reconnect after a disconnect produces a duplicate entry, and the generation
// side deduplicates at read time.
func (s *ConnectionService) Connect(ctx context.Context, sourceID, targetID valueobjects.NodeID, sourceHandle, targetHandle string) (*aggregates.Edge, error) {
	source, err := s.canvas.FindNode(sourceID)
	if err != nil {
		return nil, pkgerrors.NewValidation("source node does not exist")
	}
	target, err := s.canvas.FindNode(targetID)
	if err != nil {
		return nil, pkgerrors.NewValidation("target node does not exist")
	}

	candidate := specifications.ConnectionCandidate{
		SourceID:   sourceID,
		TargetID:   targetID,
		SourceKind: source.Kind(),
		TargetKind: target.Kind(),
	}
	if !specifications.ValidConnection().IsSatisfiedBy(candidate) {
		return nil, pkgerrors.NewValidation("connection is not allowed between these nodes")
	}

	edge := aggregates.NewEdge(sourceID, targetID, sourceHandle, targetHandle)
	if err := s.canvas.AddEdge(edge); err != nil {
		return nil, err
	}

	if err := s.mirrorConnection(ctx, source, target); err != nil {
		// The edge stays on the canvas; the mirror is retried on the next
		// reconcile. Persisted state lags graph truth, it never leads it.
		s.logger.Warn("Failed to mirror connection to agent record",
			zap.String("sourceID", sourceID.String()),
			zap.String("targetID", targetID.String()),
			zap.Error(err),
		)
	}

	s.dispatchEvents(ctx)
	return edge, nil
}

// Disconnect removes edges and reconciles the affected agents' connections
// lists from graph truth.
func (s *ConnectionService) Disconnect(ctx context.Context, edgeIDs []string) error {
	affected := make(map[valueobjects.NodeID]struct{})
	for _, edgeID := range edgeIDs {
		for _, edge := range s.canvas.Edges() {
			if edge.ID == edgeID {
				affected[edge.TargetID] = struct{}{}
			}
		}
	}

	s.canvas.RemoveEdges(edgeIDs)

	for agentNodeID := range affected {
		if err := s.Reconcile(ctx, agentNodeID); err != nil {
			s.logger.Warn("Failed to reconcile agent connections after disconnect",
				zap.String("agentNodeID", agentNodeID.String()),
				zap.Error(err),
			)
		}
	}

	s.dispatchEvents(ctx)
	return nil
}

// Reconcile recomputes an agent's connections list from the edges currently
// pointing into it and persists the result. Used after disconnects and node
// deletions, where "mirror by append" would drift.
func (s *ConnectionService) Reconcile(ctx context.Context, agentNodeID valueobjects.NodeID) error {
	node, err := s.canvas.FindNode(agentNodeID)
	if err != nil {
		// Node already gone; nothing to reconcile.
		return nil
	}
	agent, ok := node.Agent()
	if !ok {
		return pkgerrors.NewValidation("cannot reconcile connections of a non-agent node")
	}

	connections := s.canvas.ConnectionsFor(agentNodeID)

	patch := entities.NodePatch{Agent: &entities.AgentPatch{Connections: &connections}}
	if err := s.canvas.UpdateNode(agentNodeID, patch); err != nil {
		return err
	}

	return s.agentRepo.UpdateConnections(ctx, s.canvas.ProjectID(), agent.AgentID, connections)
}

// ReconcileAll reconciles every agent node, used after bulk deletions.
func (s *ConnectionService) ReconcileAll(ctx context.Context) {
	for _, node := range s.canvas.Nodes() {
		if node.Kind() != valueobjects.KindAgent {
			continue
		}
		if err := s.Reconcile(ctx, node.ID()); err != nil {
			s.logger.Warn("Failed to reconcile agent connections",
				zap.String("agentNodeID", node.ID().String()),
				zap.Error(err),
			)
		}
	}
}

func (s *ConnectionService) mirrorConnection(ctx context.Context, source, target *entities.Node) error {
	foreign, ok := source.ForeignID()
	if !ok {
		// Mood boards have no persisted record; the edge exists only in the
		// snapshot and their content is gathered by edge at generation time.
		return nil
	}

	agent, _ := target.Agent()
	connections := append(agent.Connections, foreign)

	patch := entities.NodePatch{Agent: &entities.AgentPatch{Connections: &connections}}
	if err := s.canvas.UpdateNode(target.ID(), patch); err != nil {
		return err
	}

	return s.agentRepo.UpdateConnections(ctx, s.canvas.ProjectID(), agent.AgentID, connections)
}

func (s *ConnectionService) dispatchEvents(ctx context.Context) {
	if s.registry == nil {
		return
	}
	if err := s.registry.DispatchBatch(ctx, s.canvas.DrainEvents()); err != nil {
		s.logger.Warn("Event dispatch reported failures", zap.Error(err))
	}
}
