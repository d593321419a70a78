package services

import (
	"context"
	"time"

	"go.uber.org/zap"

	appevents "canvas-backend/application/events"
	"canvas-backend/application/ports"
	"canvas-backend/domain/core/aggregates"
	"canvas-backend/domain/core/entities"
)

// TranscriptionPoller re-reads video records on a fixed interval and folds
// transcription state changes into the canvas. Automatic transcription runs
// server-side; polling is how its completion reaches an open session.
type TranscriptionPoller struct {
	canvas    *aggregates.Canvas
	videoRepo ports.VideoRepository
	registry  *appevents.HandlerRegistry
	interval  time.Duration
	logger    *zap.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

// NewTranscriptionPoller creates a poller.
func NewTranscriptionPoller(
	canvas *aggregates.Canvas,
	videoRepo ports.VideoRepository,
	registry *appevents.HandlerRegistry,
	interval time.Duration,
	logger *zap.Logger,
) *TranscriptionPoller {
	return &TranscriptionPoller{
		canvas:    canvas,
		videoRepo: videoRepo,
		registry:  registry,
		interval:  interval,
		logger:    logger,
	}
}

// Start launches the polling loop. Stop or cancelling the parent context
// ends it.
func (p *TranscriptionPoller) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)
	p.done = make(chan struct{})

	go func() {
		defer close(p.done)
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				p.PollOnce(ctx)
			}
		}
	}()
}

// Stop ends the polling loop and waits for it to exit.
func (p *TranscriptionPoller) Stop() {
	if p.cancel == nil {
		return
	}
	p.cancel()
	<-p.done
}

// PollOnce fetches the video records and merges any transcription changes.
// Remote state wins over whatever the canvas currently shows.
func (p *TranscriptionPoller) PollOnce(ctx context.Context) {
	if !p.canvas.IsLoaded() {
		return
	}

	records, err := p.videoRepo.ListByProject(ctx, p.canvas.ProjectID())
	if err != nil {
		p.logger.Debug("Transcription poll failed", zap.Error(err))
		return
	}

	identities := p.canvas.Identities()
	changed := false

	for _, record := range records {
		nodeID, ok := identities.NodeFor(record.ID.Foreign())
		if !ok {
			continue
		}
		node, err := p.canvas.FindNode(nodeID)
		if err != nil {
			continue
		}
		current, ok := node.Video()
		if !ok {
			continue
		}

		patch := videoPatchFromRecord(current, record)
		if patch == nil {
			continue
		}
		if err := p.canvas.UpdateNode(nodeID, entities.NodePatch{Video: patch}); err != nil {
			p.logger.Warn("Failed to apply transcription update",
				zap.String("nodeID", nodeID.String()),
				zap.Error(err),
			)
			continue
		}
		changed = true
		p.logger.Info("Transcription state updated from backend",
			zap.String("videoID", record.ID.String()),
			zap.String("state", string(record.TranscriptionState)),
		)
	}

	if changed && p.registry != nil {
		if err := p.registry.DispatchBatch(ctx, p.canvas.DrainEvents()); err != nil {
			p.logger.Warn("Event dispatch reported failures", zap.Error(err))
		}
	}
}

// videoPatchFromRecord is the shared reducer for applying an externally
// updated video record to its canvas node. Nil means nothing changed.
func videoPatchFromRecord(current entities.VideoPayload, record ports.VideoRecord) *entities.VideoPatch {
	patch := &entities.VideoPatch{}
	changed := false

	if record.TranscriptionState != current.TranscriptionState {
		state := record.TranscriptionState
		patch.TranscriptionState = &state
		changed = true
	}
	if record.TranscriptionText != current.TranscriptionText {
		text := record.TranscriptionText
		patch.TranscriptionText = &text
		changed = true
	}
	if record.Title != current.Title {
		title := record.Title
		patch.Title = &title
		changed = true
	}
	if record.Duration != current.Duration {
		duration := record.Duration
		patch.Duration = &duration
		changed = true
	}

	if !changed {
		return nil
	}
	return patch
}
