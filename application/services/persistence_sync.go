package services

import (
	"context"
	"time"

	"go.uber.org/zap"

	appevents "canvas-backend/application/events"
	"canvas-backend/application/ports"
	"canvas-backend/domain/config"
	"canvas-backend/domain/core/aggregates"
	"canvas-backend/domain/core/entities"
	"canvas-backend/domain/core/valueobjects"
	"canvas-backend/domain/events"
	domainservices "canvas-backend/domain/services"
	pkgerrors "canvas-backend/pkg/errors"
	"canvas-backend/pkg/observability"
)

// saveTimeout bounds a debounced background write.
const saveTimeout = 10 * time.Second

// PersistenceSync owns the boundary between the in-memory canvas and the
// backing store: one full load per session, then debounced snapshot and
// viewport writes armed by mutation events.
type PersistenceSync struct {
	appevents.BaseEventHandler

	canvas            *aggregates.Canvas
	videoRepo         ports.VideoRepository
	agentRepo         ports.AgentRepository
	transcriptionRepo ports.TranscriptionRepository
	snapshotRepo      ports.SnapshotRepository
	placement         *domainservices.PlacementEngine

	snapshotDeb Debouncer
	viewportDeb Debouncer

	metrics *observability.Metrics
	logger  *zap.Logger
}

// mutationEventTypes are the events that arm a snapshot save.
var mutationEventTypes = []string{
	events.TypeNodeAdded,
	events.TypeNodeUpdated,
	events.TypeNodeMoved,
	events.TypeNodesRemoved,
	events.TypeNodeRestored,
	events.TypeEdgeAdded,
	events.TypeEdgesRemoved,
	events.TypeViewportChanged,
}

// NewPersistenceSync creates the sync service. The debouncer factory is
// injectable so tests can drive debounced work synchronously.
func NewPersistenceSync(
	canvas *aggregates.Canvas,
	videoRepo ports.VideoRepository,
	agentRepo ports.AgentRepository,
	transcriptionRepo ports.TranscriptionRepository,
	snapshotRepo ports.SnapshotRepository,
	placement *domainservices.PlacementEngine,
	cfg *config.CanvasConfig,
	debouncers DebouncerFactory,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *PersistenceSync {
	if cfg == nil {
		cfg = config.DefaultCanvasConfig()
	}
	if debouncers == nil {
		debouncers = NewDebouncer
	}
	return &PersistenceSync{
		BaseEventHandler:  appevents.NewBaseEventHandler("persistence-sync", 10, mutationEventTypes),
		canvas:            canvas,
		videoRepo:         videoRepo,
		agentRepo:         agentRepo,
		transcriptionRepo: transcriptionRepo,
		snapshotRepo:      snapshotRepo,
		placement:         placement,
		snapshotDeb:       debouncers(cfg.SnapshotDebounce),
		viewportDeb:       debouncers(cfg.ViewportDebounce),
		metrics:           metrics,
		logger:            logger,
	}
}

// RegisterWith subscribes the sync service to the mutation events.
func (s *PersistenceSync) RegisterWith(registry *appevents.HandlerRegistry) error {
	return registry.Register(mutationEventTypes, s)
}

// Load rebuilds the canvas from the three record collections plus the layout
// snapshot. It runs at most once per session; later calls are no-ops.
func (s *PersistenceSync) Load(ctx context.Context) error {
	if s.canvas.IsLoaded() {
		return nil
	}

	projectID := s.canvas.ProjectID()
	started := time.Now()

	// All three collections must arrive before anything is built; a partial
	// canvas would derive wrong edges and then overwrite the good snapshot.
	videos, err := s.videoRepo.ListByProject(ctx, projectID)
	if err != nil {
		return pkgerrors.Wrap(err, "failed to load videos")
	}
	agents, err := s.agentRepo.ListByProject(ctx, projectID)
	if err != nil {
		return pkgerrors.Wrap(err, "failed to load agents")
	}
	transcriptions, err := s.transcriptionRepo.ListByProject(ctx, projectID)
	if err != nil {
		return pkgerrors.Wrap(err, "failed to load transcriptions")
	}

	snapshot, err := s.snapshotRepo.Load(ctx, projectID)
	if err != nil {
		return pkgerrors.Wrap(err, "failed to load canvas snapshot")
	}

	layout := make(map[valueobjects.NodeID]valueobjects.Position)
	if snapshot != nil {
		for _, n := range snapshot.Nodes {
			layout[n.ID] = n.Position
		}
		if snapshot.Viewport != nil {
			s.canvas.LoadViewport(*snapshot.Viewport)
		}
	}

	s.loadVideoNodes(videos, layout)
	s.loadAgentNodes(agents, layout)
	s.loadTranscriptionNodes(transcriptions, layout)
	s.loadMoodBoardNodes(snapshot)
	s.deriveConnectionEdges(agents)
	s.deriveOwnershipEdges(transcriptions)
	s.loadChatLog(agents)

	s.canvas.MarkLoaded()

	s.metrics.NodesOnCanvas.Set(float64(len(s.canvas.Nodes())))
	s.metrics.EdgesOnCanvas.Set(float64(len(s.canvas.Edges())))
	s.logger.Info("Canvas loaded",
		zap.String("projectID", projectID.String()),
		zap.Int("videos", len(videos)),
		zap.Int("agents", len(agents)),
		zap.Int("transcriptions", len(transcriptions)),
		zap.Int("edges", len(s.canvas.Edges())),
		zap.Duration("duration", time.Since(started)),
	)
	return nil
}

func (s *PersistenceSync) loadVideoNodes(records []ports.VideoRecord, layout map[valueobjects.NodeID]valueobjects.Position) {
	for _, record := range records {
		id := valueobjects.DeriveNodeID(valueobjects.KindVideo, record.ID.Foreign())
		node, err := entities.NewVideoNode(entities.VideoPayload{
			VideoID:            record.ID,
			Title:              record.Title,
			MediaURL:           record.MediaURL,
			Duration:           record.Duration,
			TranscriptionState: record.TranscriptionState,
			TranscriptionText:  record.TranscriptionText,
		}, s.positionFor(id, valueobjects.KindVideo, layout))
		if err != nil {
			s.logger.Warn("Skipping invalid video record", zap.String("videoID", record.ID.String()), zap.Error(err))
			continue
		}
		if err := s.canvas.LoadNode(node); err != nil {
			s.logger.Warn("Failed to load video node", zap.String("videoID", record.ID.String()), zap.Error(err))
		}
	}
}

func (s *PersistenceSync) loadAgentNodes(records []ports.AgentRecord, layout map[valueobjects.NodeID]valueobjects.Position) {
	for _, record := range records {
		id := valueobjects.DeriveNodeID(valueobjects.KindAgent, record.ID.Foreign())
		node, err := entities.NewAgentNode(entities.AgentPayload{
			AgentID:      record.ID,
			Type:         record.Type,
			Status:       restoredAgentStatus(record),
			Draft:        record.Draft,
			ThumbnailURL: record.ThumbnailURL,
			StorageID:    record.StorageID,
			Connections:  record.Connections,
			LastPrompt:   record.LastPrompt,
			ChatHistory:  record.ChatHistory,
		}, s.positionFor(id, valueobjects.KindAgent, layout))
		if err != nil {
			s.logger.Warn("Skipping invalid agent record", zap.String("agentID", record.ID.String()), zap.Error(err))
			continue
		}
		if err := s.canvas.LoadNode(node); err != nil {
			s.logger.Warn("Failed to load agent node", zap.String("agentID", record.ID.String()), zap.Error(err))
		}
	}
}

// restoredAgentStatus maps a persisted status back onto the canvas. A record
// stuck in generating means the process died mid-run; the run is gone, so the
// agent comes back settled on whatever output it already has.
func restoredAgentStatus(record ports.AgentRecord) entities.AgentStatus {
	if record.Status == entities.AgentGenerating || record.Status == "" {
		if record.Draft != "" || record.ThumbnailURL != "" {
			return entities.AgentReady
		}
		return entities.AgentIdle
	}
	return record.Status
}

func (s *PersistenceSync) loadTranscriptionNodes(records []ports.TranscriptionRecord, layout map[valueobjects.NodeID]valueobjects.Position) {
	for _, record := range records {
		id := valueobjects.DeriveNodeID(valueobjects.KindTranscription, record.ID.Foreign())
		node, err := entities.NewTranscriptionNode(entities.TranscriptionPayload{
			TranscriptionID: record.ID,
			VideoID:         record.VideoID,
			FileName:        record.FileName,
			Format:          record.Format,
			FullText:        record.FullText,
			Segments:        record.Segments,
			WordCount:       record.WordCount,
			Duration:        record.Duration,
		}, s.positionFor(id, valueobjects.KindTranscription, layout))
		if err != nil {
			s.logger.Warn("Skipping invalid transcription record", zap.String("transcriptionID", record.ID.String()), zap.Error(err))
			continue
		}
		if err := s.canvas.LoadNode(node); err != nil {
			s.logger.Warn("Failed to load transcription node", zap.String("transcriptionID", record.ID.String()), zap.Error(err))
		}
	}
}

func (s *PersistenceSync) loadMoodBoardNodes(snapshot *ports.CanvasSnapshot) {
	if snapshot == nil {
		return
	}
	for _, n := range snapshot.Nodes {
		if n.Kind != valueobjects.KindMoodBoard || n.MoodBoard == nil {
			continue
		}
		node, err := entities.ReconstructMoodBoardNode(n.ID, *n.MoodBoard, n.Position)
		if err != nil {
			s.logger.Warn("Skipping invalid mood board snapshot entry", zap.String("nodeID", n.ID.String()), zap.Error(err))
			continue
		}
		if err := s.canvas.LoadNode(node); err != nil {
			s.logger.Warn("Failed to load mood board node", zap.String("nodeID", n.ID.String()), zap.Error(err))
		}
	}
}

// deriveConnectionEdges rebuilds source→agent edges from each agent's
// persisted connections list. Ids that resolve to no live node are dropped
// silently; the count is observable but the user is not interrupted.
func (s *PersistenceSync) deriveConnectionEdges(agents []ports.AgentRecord) {
	identities := s.canvas.Identities()

	for _, record := range agents {
		agentNodeID, ok := identities.NodeFor(record.ID.Foreign())
		if !ok {
			continue
		}

		seen := make(map[valueobjects.NodeID]struct{})
		for _, foreign := range record.Connections {
			sourceID, ok := identities.NodeFor(foreign)
			if !ok {
				s.metrics.DroppedConnectionIDs.Inc()
				s.logger.Debug("Dropping unresolvable connection id",
					zap.String("agentID", record.ID.String()),
					zap.String("connectionID", foreign.String()),
				)
				continue
			}
			// The persisted list may hold duplicates from repeated
			// reconnects; one edge per source is enough.
			if _, dup := seen[sourceID]; dup {
				continue
			}
			seen[sourceID] = struct{}{}

			edge := aggregates.NewEdge(sourceID, agentNodeID, "output", "input")
			if err := s.canvas.LoadEdge(edge); err != nil {
				s.logger.Warn("Failed to derive connection edge",
					zap.String("agentID", record.ID.String()),
					zap.Error(err),
				)
			}
		}
	}
}

// deriveOwnershipEdges links each video to the manual transcriptions uploaded
// for it.
func (s *PersistenceSync) deriveOwnershipEdges(transcriptions []ports.TranscriptionRecord) {
	identities := s.canvas.Identities()

	for _, record := range transcriptions {
		if record.VideoID.IsZero() {
			continue
		}
		videoNodeID, ok := identities.NodeFor(record.VideoID.Foreign())
		if !ok {
			continue
		}
		transcriptionNodeID, ok := identities.NodeFor(record.ID.Foreign())
		if !ok {
			continue
		}

		edge := aggregates.NewEdge(videoNodeID, transcriptionNodeID, "transcriptions", "video")
		if err := s.canvas.LoadEdge(edge); err != nil {
			s.logger.Warn("Failed to derive ownership edge",
				zap.String("transcriptionID", record.ID.String()),
				zap.Error(err),
			)
		}
	}
}

func (s *PersistenceSync) loadChatLog(agents []ports.AgentRecord) {
	var all []entities.ChatMessage
	for _, record := range agents {
		all = append(all, record.ChatHistory...)
	}
	s.canvas.LoadChatLog(all)
}

func (s *PersistenceSync) positionFor(id valueobjects.NodeID, kind valueobjects.NodeKind, layout map[valueobjects.NodeID]valueobjects.Position) valueobjects.Position {
	if pos, ok := layout[id]; ok {
		return pos
	}

	// Record without a layout entry: place it collision-free near the origin.
	existing := make([]domainservices.PlacedNode, 0)
	for _, node := range s.canvas.Nodes() {
		existing = append(existing, domainservices.PlacedNode{Position: node.Position(), Kind: node.Kind()})
	}
	desired, _ := valueobjects.NewPosition(100, 100)
	return s.placement.Place(desired, kind, existing)
}

// Handle implements the event handler: mutation events arm the snapshot
// debounce, viewport changes additionally arm the cheaper viewport-only write.
func (s *PersistenceSync) Handle(ctx context.Context, event events.DomainEvent) error {
	if !s.canvas.IsLoaded() {
		// Events raised before the first load must not trigger a save that
		// would clobber the stored snapshot with a half-built canvas.
		return nil
	}

	if event.GetEventType() == events.TypeViewportChanged {
		s.viewportDeb.Trigger(s.saveViewport)
		return nil
	}

	if _, set := s.canvas.Viewport(); !set {
		return nil
	}
	s.snapshotDeb.Trigger(s.saveSnapshot)
	return nil
}

// SaveNow flushes any pending debounced writes, used at shutdown.
func (s *PersistenceSync) SaveNow() {
	s.snapshotDeb.Flush()
	s.viewportDeb.Flush()
}

// Stop cancels pending writes without executing them.
func (s *PersistenceSync) Stop() {
	s.snapshotDeb.Stop()
	s.viewportDeb.Stop()
}

func (s *PersistenceSync) saveSnapshot() {
	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()

	snapshot := s.BuildSnapshot()
	started := time.Now()

	if err := s.snapshotRepo.Save(ctx, snapshot); err != nil {
		s.metrics.SnapshotSaves.WithLabelValues("failure").Inc()
		// No retry: the next mutation arms the debounce again.
		s.logger.Warn("Snapshot save failed", zap.Error(err))
		return
	}

	s.metrics.SnapshotSaves.WithLabelValues("success").Inc()
	s.metrics.SnapshotSaveDuration.Observe(time.Since(started).Seconds())
	s.metrics.NodesOnCanvas.Set(float64(len(snapshot.Nodes)))
	s.metrics.EdgesOnCanvas.Set(float64(len(snapshot.Edges)))
	s.logger.Debug("Snapshot saved",
		zap.Int("nodes", len(snapshot.Nodes)),
		zap.Int("edges", len(snapshot.Edges)),
	)
}

func (s *PersistenceSync) saveViewport() {
	viewport, set := s.canvas.Viewport()
	if !set {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()

	if err := s.snapshotRepo.SaveViewport(ctx, s.canvas.ProjectID(), viewport); err != nil {
		s.logger.Warn("Viewport save failed", zap.Error(err))
		return
	}
	s.metrics.ViewportSaves.Inc()
}

// BuildSnapshot captures the canvas's current layout as a snapshot document.
func (s *PersistenceSync) BuildSnapshot() ports.CanvasSnapshot {
	snapshot := ports.CanvasSnapshot{
		ProjectID: s.canvas.ProjectID(),
		UpdatedAt: time.Now(),
	}

	for _, node := range s.canvas.Nodes() {
		entry := ports.SnapshotNode{
			ID:       node.ID(),
			Kind:     node.Kind(),
			Position: node.Position(),
		}
		if payload, ok := node.MoodBoard(); ok {
			payload.InUse = false
			entry.MoodBoard = &payload
		}
		snapshot.Nodes = append(snapshot.Nodes, entry)
	}

	for _, edge := range s.canvas.Edges() {
		snapshot.Edges = append(snapshot.Edges, ports.SnapshotEdge{
			ID:           edge.ID,
			SourceID:     edge.SourceID,
			TargetID:     edge.TargetID,
			SourceHandle: edge.SourceHandle,
			TargetHandle: edge.TargetHandle,
		})
	}

	if viewport, set := s.canvas.Viewport(); set {
		v := viewport
		snapshot.Viewport = &v
	}
	return snapshot
}
