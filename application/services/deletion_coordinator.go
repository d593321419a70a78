package services

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"canvas-backend/application/events"
	"canvas-backend/application/ports"
	"canvas-backend/domain/core/aggregates"
	"canvas-backend/domain/core/valueobjects"
	pkgerrors "canvas-backend/pkg/errors"
)

// DeletionState is the coordinator's position in the two-stage flow.
type DeletionState string

const (
	DeletionIdle    DeletionState = "idle"
	DeletionPending DeletionState = "pending_confirmation"
)

// DeletionCoordinator runs node deletion as a two-stage flow: requests that
// would destroy meaningful content park in a pending state until confirmed,
// everything else deletes immediately. A persisted delete that fails rolls
// that node (and its edges) back onto the canvas.
type DeletionCoordinator struct {
	canvas            *aggregates.Canvas
	videoRepo         ports.VideoRepository
	agentRepo         ports.AgentRepository
	transcriptionRepo ports.TranscriptionRepository
	connections       *ConnectionService
	registry          *events.HandlerRegistry
	logger            *zap.Logger

	mu      sync.Mutex
	state   DeletionState
	pending []valueobjects.NodeID
}

// NewDeletionCoordinator creates a deletion coordinator.
func NewDeletionCoordinator(
	canvas *aggregates.Canvas,
	videoRepo ports.VideoRepository,
	agentRepo ports.AgentRepository,
	transcriptionRepo ports.TranscriptionRepository,
	connections *ConnectionService,
	registry *events.HandlerRegistry,
	logger *zap.Logger,
) *DeletionCoordinator {
	return &DeletionCoordinator{
		canvas:            canvas,
		videoRepo:         videoRepo,
		agentRepo:         agentRepo,
		transcriptionRepo: transcriptionRepo,
		connections:       connections,
		registry:          registry,
		logger:            logger,
		state:             DeletionIdle,
	}
}

// State returns the coordinator's current state.
func (d *DeletionCoordinator) State() DeletionState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Pending returns the node ids awaiting confirmation.
func (d *DeletionCoordinator) Pending() []valueobjects.NodeID {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]valueobjects.NodeID, len(d.pending))
	copy(out, d.pending)
	return out
}

// Request starts a deletion. If any targeted node carries content worth
// protecting, the whole request parks until Confirm or Cancel and the method
// reports true. Otherwise deletion happens immediately.
func (d *DeletionCoordinator) Request(ctx context.Context, ids []valueobjects.NodeID) (bool, error) {
	if len(ids) == 0 {
		return false, pkgerrors.NewValidation("no nodes to delete")
	}

	d.mu.Lock()
	if d.state == DeletionPending {
		d.mu.Unlock()
		return false, pkgerrors.NewConflict("a deletion is already awaiting confirmation")
	}

	if d.requiresConfirmation(ids) {
		d.state = DeletionPending
		d.pending = append([]valueobjects.NodeID(nil), ids...)
		d.mu.Unlock()
		return true, nil
	}
	d.mu.Unlock()

	return false, d.perform(ctx, ids)
}

// Confirm executes the pending deletion.
func (d *DeletionCoordinator) Confirm(ctx context.Context) error {
	d.mu.Lock()
	if d.state != DeletionPending {
		d.mu.Unlock()
		return pkgerrors.NewConflict("no deletion awaiting confirmation")
	}
	ids := d.pending
	d.state = DeletionIdle
	d.pending = nil
	d.mu.Unlock()

	return d.perform(ctx, ids)
}

// Cancel abandons the pending deletion.
func (d *DeletionCoordinator) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.state = DeletionIdle
	d.pending = nil
}

// requiresConfirmation is called with d.mu held.
func (d *DeletionCoordinator) requiresConfirmation(ids []valueobjects.NodeID) bool {
	for _, id := range ids {
		node, err := d.canvas.FindNode(id)
		if err != nil {
			continue
		}
		switch node.Kind() {
		case valueobjects.KindVideo, valueobjects.KindTranscription:
			return true
		case valueobjects.KindAgent:
			if agent, ok := node.Agent(); ok && (agent.Draft != "" || agent.ThumbnailURL != "") {
				return true
			}
		}
	}
	return false
}

func (d *DeletionCoordinator) perform(ctx context.Context, ids []valueobjects.NodeID) error {
	started := time.Now()
	removed := d.canvas.RemoveNodes(ids)

	var firstErr error
	for _, r := range removed {
		if err := d.deleteRecord(ctx, r); err != nil {
			// Per-node rollback: this node and its edges return, the rest of
			// the batch stays deleted.
			if restoreErr := d.canvas.RestoreNode(r); restoreErr != nil {
				d.logger.Error("Rollback after failed delete also failed",
					zap.String("nodeID", r.Node.ID().String()),
					zap.Error(restoreErr),
				)
			}
			d.logger.Warn("Persisted delete failed, node restored",
				zap.String("nodeID", r.Node.ID().String()),
				zap.Error(err),
			)
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	d.connections.ReconcileAll(ctx)
	d.dispatchEvents(ctx)

	d.logger.Info("Deletion completed",
		zap.Int("requested", len(ids)),
		zap.Int("removed", len(removed)),
		zap.Duration("duration", time.Since(started)),
	)
	return firstErr
}

func (d *DeletionCoordinator) deleteRecord(ctx context.Context, r aggregates.RemovedNode) error {
	projectID := d.canvas.ProjectID()

	switch r.Node.Kind() {
	case valueobjects.KindVideo:
		payload, _ := r.Node.Video()
		return d.videoRepo.Delete(ctx, projectID, payload.VideoID)
	case valueobjects.KindAgent:
		payload, _ := r.Node.Agent()
		return d.agentRepo.Delete(ctx, projectID, payload.AgentID)
	case valueobjects.KindTranscription:
		payload, _ := r.Node.Transcription()
		return d.transcriptionRepo.Delete(ctx, projectID, payload.TranscriptionID)
	default:
		// Mood boards only live in the snapshot; removing the node is enough.
		return nil
	}
}

func (d *DeletionCoordinator) dispatchEvents(ctx context.Context) {
	if d.registry == nil {
		return
	}
	if err := d.registry.DispatchBatch(ctx, d.canvas.DrainEvents()); err != nil {
		d.logger.Warn("Event dispatch reported failures", zap.Error(err))
	}
}
