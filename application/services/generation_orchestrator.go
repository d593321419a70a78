package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	appevents "canvas-backend/application/events"
	"canvas-backend/application/ports"
	"canvas-backend/domain/core/aggregates"
	"canvas-backend/domain/core/entities"
	"canvas-backend/domain/core/valueobjects"
	"canvas-backend/domain/events"
	pkgerrors "canvas-backend/pkg/errors"
	"canvas-backend/pkg/observability"
)

// ErrAwaitingImages signals that a thumbnail generation cannot start because
// no image is connected; the agent's state is left untouched.
var ErrAwaitingImages = errors.New("thumbnail generation is awaiting images")

// GenerationOrchestrator drives the agent state machine: it gathers context
// from the nodes wired into an agent, calls the AI provider, and writes the
// result back to both the canvas and the agent record.
type GenerationOrchestrator struct {
	canvas    *aggregates.Canvas
	agentRepo ports.AgentRepository
	generator ports.ContentGenerator
	profiles  ports.ProfileProvider
	registry  *appevents.HandlerRegistry
	metrics   *observability.Metrics
	logger    *zap.Logger

	mu sync.Mutex
	// pendingThumbnailContext holds cleaned refinement text for thumbnail
	// agents that are waiting for the user to supply an image.
	pendingThumbnailContext map[valueobjects.NodeID]string
}

// NewGenerationOrchestrator creates an orchestrator.
func NewGenerationOrchestrator(
	canvas *aggregates.Canvas,
	agentRepo ports.AgentRepository,
	generator ports.ContentGenerator,
	profiles ports.ProfileProvider,
	registry *appevents.HandlerRegistry,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *GenerationOrchestrator {
	return &GenerationOrchestrator{
		canvas:                  canvas,
		agentRepo:               agentRepo,
		generator:               generator,
		profiles:                profiles,
		registry:                registry,
		metrics:                 metrics,
		logger:                  logger,
		pendingThumbnailContext: make(map[valueobjects.NodeID]string),
	}
}

// gatheredContext is the orchestrator's working view of an agent's inputs.
type gatheredContext struct {
	ports.GenerationContext
	// sourceIDs are the transcription and mood board nodes marked in-use for
	// the duration of the run.
	sourceIDs   []valueobjects.NodeID
	imageURLs   []string
	agentDrafts map[entities.AgentType]string
}

// Generate runs a fresh generation for the given agent node.
func (o *GenerationOrchestrator) Generate(ctx context.Context, nodeID valueobjects.NodeID) error {
	node, err := o.canvas.FindNode(nodeID)
	if err != nil {
		return err
	}
	agent, ok := node.Agent()
	if !ok {
		return pkgerrors.NewValidation("node is not an agent")
	}

	// Thumbnail precondition is checked before any state change.
	if agent.Type == entities.AgentThumbnail {
		gc := o.gatherContext(ctx, nodeID, false)
		if len(gc.imageURLs) == 0 {
			return ErrAwaitingImages
		}
	}

	return o.run(ctx, nodeID, agent, func(runCtx context.Context, gc gatheredContext) (resultPatch, error) {
		if agent.Type == entities.AgentThumbnail {
			return o.callThumbnail(runCtx, nodeID, gc, o.buildThumbnailPrompt(gc))
		}
		result, err := o.generator.GenerateText(runCtx, ports.TextRequest{
			AgentType: agent.Type,
			Context:   gc.GenerationContext,
		})
		if err != nil {
			return resultPatch{}, err
		}
		return resultPatch{draft: &result.Draft}, nil
	})
}

// Regenerate discards the current draft and produces a new one. Thumbnail
// agents go back through the image-supply flow instead.
func (o *GenerationOrchestrator) Regenerate(ctx context.Context, nodeID valueobjects.NodeID) error {
	node, err := o.canvas.FindNode(nodeID)
	if err != nil {
		return err
	}
	agent, ok := node.Agent()
	if !ok {
		return pkgerrors.NewValidation("node is not an agent")
	}

	if agent.Type == entities.AgentThumbnail {
		o.mu.Lock()
		o.pendingThumbnailContext[nodeID] = agent.LastPrompt
		o.mu.Unlock()
		return ErrAwaitingImages
	}
	return o.Generate(ctx, nodeID)
}

// SubmitThumbnailImage completes a pending thumbnail flow with a
// user-supplied image URL.
func (o *GenerationOrchestrator) SubmitThumbnailImage(ctx context.Context, nodeID valueobjects.NodeID, imageURL string) error {
	node, err := o.canvas.FindNode(nodeID)
	if err != nil {
		return err
	}
	agent, ok := node.Agent()
	if !ok || agent.Type != entities.AgentThumbnail {
		return pkgerrors.NewValidation("node is not a thumbnail agent")
	}

	o.mu.Lock()
	pendingText := o.pendingThumbnailContext[nodeID]
	delete(o.pendingThumbnailContext, nodeID)
	o.mu.Unlock()

	return o.run(ctx, nodeID, agent, func(runCtx context.Context, gc gatheredContext) (resultPatch, error) {
		gc.imageURLs = append([]string{imageURL}, gc.imageURLs...)
		prompt := pendingText
		if prompt == "" {
			prompt = o.buildThumbnailPrompt(gc)
		}
		return o.callThumbnail(runCtx, nodeID, gc, prompt)
	})
}

// GenerateAll runs every non-thumbnail agent sequentially. Failures are
// surfaced per agent on the canvas and do not stop the pass.
func (o *GenerationOrchestrator) GenerateAll(ctx context.Context) error {
	var firstErr error
	nodes := o.canvas.Nodes()
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].ID() < nodes[j].ID() })

	for _, node := range nodes {
		agent, ok := node.Agent()
		if !ok || agent.Type == entities.AgentThumbnail {
			continue
		}
		if err := o.Generate(ctx, node.ID()); err != nil {
			o.logger.Warn("Generate-all pass: agent failed",
				zap.String("nodeID", node.ID().String()),
				zap.Error(err),
			)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// resultPatch is what a provider call contributes to the agent payload.
type resultPatch struct {
	draft        *string
	thumbnailURL *string
	storageID    *string
	lastPrompt   *string
	warning      string
	chatReply    string
}

// run executes the shared generation pipeline around a provider call.
func (o *GenerationOrchestrator) run(
	ctx context.Context,
	nodeID valueobjects.NodeID,
	agent entities.AgentPayload,
	call func(context.Context, gatheredContext) (resultPatch, error),
) error {
	started := time.Now()
	o.metrics.GenerationsInFlight.Inc()
	defer o.metrics.GenerationsInFlight.Dec()

	o.setProgress(ctx, nodeID, "Preparing...", 0)

	o.setProgress(ctx, nodeID, "Gathering context", 20)
	gc := o.gatherContext(ctx, nodeID, true)

	if n := len(gc.ManualTranscripts); n > 0 {
		o.setProgress(ctx, nodeID, fmt.Sprintf("Analyzing %d manual transcription(s)", n), 40)
	} else {
		o.setProgress(ctx, nodeID, "Analyzing content", 40)
	}

	o.setProgress(ctx, nodeID, generatingStage(agent.Type), 60)

	patch, err := call(ctx, gc)

	o.setProgress(ctx, nodeID, "Finalizing", 90)
	o.clearInUse(ctx, gc.sourceIDs)

	// The node may have been deleted while the provider was working; a late
	// result is dropped rather than resurrected.
	if _, findErr := o.canvas.FindNode(nodeID); findErr != nil {
		o.logger.Debug("Dropping generation result for deleted node",
			zap.String("nodeID", nodeID.String()),
		)
		o.metrics.GenerationsTotal.WithLabelValues(string(agent.Type), "dropped").Inc()
		return nil
	}

	if err != nil {
		o.finishWithError(ctx, nodeID, agent, err)
		o.metrics.GenerationsTotal.WithLabelValues(string(agent.Type), "failure").Inc()
		return pkgerrors.NewGeneration("generation failed", err)
	}

	o.finishWithSuccess(ctx, nodeID, agent, patch)
	o.metrics.GenerationsTotal.WithLabelValues(string(agent.Type), "success").Inc()
	o.metrics.GenerationDuration.WithLabelValues(string(agent.Type)).Observe(time.Since(started).Seconds())
	return nil
}

func (o *GenerationOrchestrator) callThumbnail(ctx context.Context, nodeID valueobjects.NodeID, gc gatheredContext, prompt string) (resultPatch, error) {
	result, err := o.generator.GenerateThumbnail(ctx, ports.ThumbnailRequest{
		Context: gc.GenerationContext,
		Prompt:  prompt,
	})
	if err != nil {
		return resultPatch{}, err
	}
	if result.ImageURL == "" {
		// Safety filter blocked the image: surfaced as a warning, the agent
		// still lands in ready with its previous thumbnail intact.
		return resultPatch{
			lastPrompt: &result.Prompt,
			warning:    "The image was blocked by the provider's safety filter. Try different source images.",
		}, nil
	}
	return resultPatch{
		thumbnailURL: &result.ImageURL,
		storageID:    &result.StorageID,
		lastPrompt:   &result.Prompt,
	}, nil
}

// gatherContext walks the edges into the agent and collects generation
// inputs. When markInUse is set, transcription and mood board sources get
// their in-use highlight for the duration of the run.
func (o *GenerationOrchestrator) gatherContext(ctx context.Context, nodeID valueobjects.NodeID, markInUse bool) gatheredContext {
	gc := gatheredContext{agentDrafts: make(map[entities.AgentType]string)}

	if o.profiles != nil {
		profile, err := o.profiles.Profile(ctx, o.canvas.ProjectID())
		if err != nil {
			o.logger.Debug("Creator profile unavailable", zap.Error(err))
		} else {
			gc.Profile = profile
		}
	}

	inUse := true
	for _, edge := range o.canvas.EdgesInto(nodeID) {
		source, err := o.canvas.FindNode(edge.SourceID)
		if err != nil {
			continue
		}

		switch source.Kind() {
		case valueobjects.KindVideo:
			payload, _ := source.Video()
			gc.VideoTitle = payload.Title
			if payload.TranscriptionState == entities.TranscriptionReady {
				gc.AutoTranscript = payload.TranscriptionText
			}
		case valueobjects.KindTranscription:
			payload, _ := source.Transcription()
			gc.ManualTranscripts = append(gc.ManualTranscripts,
				fmt.Sprintf("[%s, %s] %s", payload.FileName, payload.Format, payload.FullText))
			if markInUse {
				o.markNode(ctx, source.ID(), entities.NodePatch{
					Transcription: &entities.TranscriptionPatch{InUse: &inUse},
				})
				gc.sourceIDs = append(gc.sourceIDs, source.ID())
			}
		case valueobjects.KindMoodBoard:
			payload, _ := source.MoodBoard()
			for _, item := range payload.Items {
				gc.MoodURLs = append(gc.MoodURLs, item.URL)
				if item.Type == entities.MoodImage {
					gc.imageURLs = append(gc.imageURLs, item.URL)
				}
			}
			if markInUse {
				o.markNode(ctx, source.ID(), entities.NodePatch{
					MoodBoard: &entities.MoodBoardPatch{InUse: &inUse},
				})
				gc.sourceIDs = append(gc.sourceIDs, source.ID())
			}
		case valueobjects.KindAgent:
			payload, _ := source.Agent()
			if payload.Draft != "" {
				gc.agentDrafts[payload.Type] = payload.Draft
			}
		}
	}
	return gc
}

func (o *GenerationOrchestrator) buildThumbnailPrompt(gc gatheredContext) string {
	prompt := "YouTube thumbnail"
	if gc.VideoTitle != "" {
		prompt += " for a video titled \"" + gc.VideoTitle + "\""
	}
	if title, ok := gc.agentDrafts[entities.AgentTitle]; ok {
		prompt += ", working title: " + title
	}
	return prompt
}

func (o *GenerationOrchestrator) finishWithSuccess(ctx context.Context, nodeID valueobjects.NodeID, agent entities.AgentPayload, patch resultPatch) {
	status := entities.AgentReady
	agentPatch := &entities.AgentPatch{
		Status:        &status,
		ClearProgress: true,
		Draft:         patch.draft,
		ThumbnailURL:  patch.thumbnailURL,
		StorageID:     patch.storageID,
		LastPrompt:    patch.lastPrompt,
	}
	if patch.chatReply != "" {
		agentPatch.AppendChat = []entities.ChatMessage{o.newChatMessage(agent.AgentID, entities.ChatRoleAssistant, patch.chatReply)}
	}

	if err := o.canvas.UpdateNode(nodeID, entities.NodePatch{Agent: agentPatch}); err != nil {
		o.logger.Warn("Failed to apply generation result", zap.String("nodeID", nodeID.String()), zap.Error(err))
		return
	}
	for _, msg := range agentPatch.AppendChat {
		o.canvas.AppendChat(msg)
	}

	if patch.warning != "" {
		o.publish(ctx, events.NewGenerationWarning(o.canvas.ProjectID(), nodeID, patch.warning))
	}

	o.persistAgent(ctx, nodeID)
	o.dispatchEvents(ctx)
}

func (o *GenerationOrchestrator) finishWithError(ctx context.Context, nodeID valueobjects.NodeID, agent entities.AgentPayload, genErr error) {
	o.logger.Error("Generation failed",
		zap.String("nodeID", nodeID.String()),
		zap.String("agentType", string(agent.Type)),
		zap.Error(genErr),
	)

	status := entities.AgentError
	errMsg := o.newChatMessage(agent.AgentID, entities.ChatRoleAssistant, "Generation failed: "+genErr.Error())
	if err := o.canvas.UpdateNode(nodeID, entities.NodePatch{Agent: &entities.AgentPatch{
		Status:        &status,
		ClearProgress: true,
		AppendChat:    []entities.ChatMessage{errMsg},
	}}); err != nil {
		o.logger.Warn("Failed to record generation error", zap.String("nodeID", nodeID.String()), zap.Error(err))
		return
	}
	o.canvas.AppendChat(errMsg)

	o.persistAgent(ctx, nodeID)
	o.dispatchEvents(ctx)
}

// persistAgent writes the node's current agent payload back to its record.
func (o *GenerationOrchestrator) persistAgent(ctx context.Context, nodeID valueobjects.NodeID) {
	node, err := o.canvas.FindNode(nodeID)
	if err != nil {
		return
	}
	agent, ok := node.Agent()
	if !ok {
		return
	}

	record := ports.AgentRecord{
		ID:           agent.AgentID,
		ProjectID:    o.canvas.ProjectID(),
		Type:         agent.Type,
		Status:       agent.Status,
		Draft:        agent.Draft,
		ThumbnailURL: agent.ThumbnailURL,
		StorageID:    agent.StorageID,
		Connections:  agent.Connections,
		LastPrompt:   agent.LastPrompt,
		ChatHistory:  agent.ChatHistory,
		UpdatedAt:    time.Now(),
	}
	if err := o.agentRepo.Save(ctx, record); err != nil {
		o.logger.Warn("Failed to persist agent record",
			zap.String("agentID", agent.AgentID.String()),
			zap.Error(err),
		)
	}
}

func (o *GenerationOrchestrator) setProgress(ctx context.Context, nodeID valueobjects.NodeID, stage string, percent int) {
	progress := entities.GenerationProgress{Stage: stage, Percent: percent}
	status := entities.AgentGenerating
	err := o.canvas.UpdateNode(nodeID, entities.NodePatch{Agent: &entities.AgentPatch{
		Status:   &status,
		Progress: &progress,
	}})
	if err != nil {
		// Node deleted mid-run: progress updates become no-ops.
		return
	}
	o.dispatchEvents(ctx)
}

func (o *GenerationOrchestrator) clearInUse(ctx context.Context, sourceIDs []valueobjects.NodeID) {
	notInUse := false
	for _, id := range sourceIDs {
		node, err := o.canvas.FindNode(id)
		if err != nil {
			continue
		}
		var patch entities.NodePatch
		switch node.Kind() {
		case valueobjects.KindTranscription:
			patch.Transcription = &entities.TranscriptionPatch{InUse: &notInUse}
		case valueobjects.KindMoodBoard:
			patch.MoodBoard = &entities.MoodBoardPatch{InUse: &notInUse}
		default:
			continue
		}
		if err := o.canvas.UpdateNode(id, patch); err != nil {
			o.logger.Debug("Failed to clear in-use flag", zap.String("nodeID", id.String()), zap.Error(err))
		}
	}
	o.dispatchEvents(ctx)
}

func (o *GenerationOrchestrator) markNode(ctx context.Context, id valueobjects.NodeID, patch entities.NodePatch) {
	if err := o.canvas.UpdateNode(id, patch); err != nil {
		o.logger.Debug("Failed to mark source node", zap.String("nodeID", id.String()), zap.Error(err))
	}
}

func (o *GenerationOrchestrator) newChatMessage(agentID valueobjects.AgentID, role entities.ChatRole, text string) entities.ChatMessage {
	return entities.ChatMessage{
		ID:        uuid.New().String(),
		AgentID:   agentID,
		Role:      role,
		Text:      text,
		Timestamp: time.Now(),
	}
}

func (o *GenerationOrchestrator) publish(ctx context.Context, event events.DomainEvent) {
	if o.registry == nil {
		return
	}
	if err := o.registry.Dispatch(ctx, event); err != nil {
		o.logger.Warn("Event dispatch reported failures", zap.Error(err))
	}
}

func (o *GenerationOrchestrator) dispatchEvents(ctx context.Context) {
	if o.registry == nil {
		o.canvas.MarkEventsAsCommitted()
		return
	}
	if err := o.registry.DispatchBatch(ctx, o.canvas.DrainEvents()); err != nil {
		o.logger.Warn("Event dispatch reported failures", zap.Error(err))
	}
}

func generatingStage(agentType entities.AgentType) string {
	switch agentType {
	case entities.AgentTitle:
		return "Generating title options"
	case entities.AgentDescription:
		return "Generating description"
	case entities.AgentThumbnail:
		return "Generating thumbnail"
	case entities.AgentTweets:
		return "Generating tweets"
	default:
		return "Generating"
	}
}
