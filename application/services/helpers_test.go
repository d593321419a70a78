package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	appevents "canvas-backend/application/events"
	"canvas-backend/application/ports"
	"canvas-backend/domain/core/aggregates"
	"canvas-backend/domain/core/entities"
	"canvas-backend/domain/core/valueobjects"
	domainevents "canvas-backend/domain/events"
	domainservices "canvas-backend/domain/services"
	"canvas-backend/infrastructure/persistence/memory"
	"canvas-backend/pkg/observability"
)

// syncDebouncer holds triggered work until Flush, so debounced writes can be
// asserted deterministically.
type syncDebouncer struct {
	mu      sync.Mutex
	pending func()
}

func newSyncDebouncer(time.Duration) Debouncer { return &syncDebouncer{} }

func (d *syncDebouncer) Trigger(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pending = fn
}

func (d *syncDebouncer) Flush() {
	d.mu.Lock()
	fn := d.pending
	d.pending = nil
	d.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func (d *syncDebouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pending = nil
}

// fakeGenerator is a scriptable ports.ContentGenerator.
type fakeGenerator struct {
	textResult   ports.TextResult
	textErr      error
	refineResult ports.TextResult
	refineErr    error
	thumbResult  ports.ThumbnailResult
	thumbErr     error

	textRequests   []ports.TextRequest
	refineRequests []ports.RefineTextRequest
	thumbRequests  []ports.ThumbnailRequest

	// beforeReturn runs inside each call, after the request is recorded.
	// Tests use it to mutate the canvas mid-generation.
	beforeReturn func()
}

func (g *fakeGenerator) GenerateText(ctx context.Context, req ports.TextRequest) (ports.TextResult, error) {
	g.textRequests = append(g.textRequests, req)
	if g.beforeReturn != nil {
		g.beforeReturn()
	}
	return g.textResult, g.textErr
}

func (g *fakeGenerator) RefineText(ctx context.Context, req ports.RefineTextRequest) (ports.TextResult, error) {
	g.refineRequests = append(g.refineRequests, req)
	if g.beforeReturn != nil {
		g.beforeReturn()
	}
	return g.refineResult, g.refineErr
}

func (g *fakeGenerator) GenerateThumbnail(ctx context.Context, req ports.ThumbnailRequest) (ports.ThumbnailResult, error) {
	g.thumbRequests = append(g.thumbRequests, req)
	if g.beforeReturn != nil {
		g.beforeReturn()
	}
	return g.thumbResult, g.thumbErr
}

// fakeProfiles returns a fixed creator profile.
type fakeProfiles struct {
	profile ports.CreatorProfile
}

func (p *fakeProfiles) Profile(ctx context.Context, projectID valueobjects.ProjectID) (ports.CreatorProfile, error) {
	return p.profile, nil
}

// recordingHandler captures dispatched events for assertions.
type recordingHandler struct {
	appevents.BaseEventHandler
	mu     sync.Mutex
	events []domainevents.DomainEvent
}

func newRecordingHandler(eventTypes ...string) *recordingHandler {
	return &recordingHandler{
		BaseEventHandler: appevents.NewBaseEventHandler("recording", 100, eventTypes),
	}
}

func (h *recordingHandler) Handle(ctx context.Context, event domainevents.DomainEvent) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, event)
	return nil
}

func (h *recordingHandler) ofType(eventType string) []domainevents.DomainEvent {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []domainevents.DomainEvent
	for _, e := range h.events {
		if e.GetEventType() == eventType {
			out = append(out, e)
		}
	}
	return out
}

// fixture wires the services over in-memory repositories.
type fixture struct {
	t *testing.T

	canvas         *aggregates.Canvas
	videos         *memory.VideoRepository
	agents         *memory.AgentRepository
	transcriptions *memory.TranscriptionRepository
	snapshots      *memory.SnapshotRepository
	registry       *appevents.HandlerRegistry
	metrics        *observability.Metrics
	placement      *domainservices.PlacementEngine
	generator      *fakeGenerator

	canvasService *CanvasService
	connections   *ConnectionService
	deletion      *DeletionCoordinator
	sync          *PersistenceSync
	orchestrator  *GenerationOrchestrator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := zap.NewNop()

	canvas, err := aggregates.NewCanvas(valueobjects.NewProjectID(), nil)
	require.NoError(t, err)

	f := &fixture{
		t:              t,
		canvas:         canvas,
		videos:         memory.NewVideoRepository(),
		agents:         memory.NewAgentRepository(),
		transcriptions: memory.NewTranscriptionRepository(),
		snapshots:      memory.NewSnapshotRepository(),
		registry:       appevents.NewHandlerRegistry(logger),
		metrics:        observability.NewNopMetrics(),
		placement:      domainservices.NewPlacementEngine(nil),
		generator:      &fakeGenerator{},
	}

	f.canvasService = NewCanvasService(canvas, f.placement, f.agents, f.registry, f.metrics, logger)
	f.connections = NewConnectionService(canvas, f.agents, f.registry, logger)
	f.deletion = NewDeletionCoordinator(canvas, f.videos, f.agents, f.transcriptions, f.connections, f.registry, logger)
	f.sync = NewPersistenceSync(
		canvas, f.videos, f.agents, f.transcriptions, f.snapshots,
		f.placement, nil, newSyncDebouncer, f.metrics, logger,
	)
	require.NoError(t, f.sync.RegisterWith(f.registry))
	f.orchestrator = NewGenerationOrchestrator(
		canvas, f.agents, f.generator, &fakeProfiles{}, f.registry, f.metrics, logger,
	)
	return f
}

func (f *fixture) pos(x, y float64) valueobjects.Position {
	f.t.Helper()
	p, err := valueobjects.NewPosition(x, y)
	require.NoError(f.t, err)
	return p
}

// addVideo persists a video record and places its node.
func (f *fixture) addVideo(title string) *entities.Node {
	f.t.Helper()
	record := ports.VideoRecord{
		ID:                 valueobjects.NewVideoID(),
		ProjectID:          f.canvas.ProjectID(),
		Title:              title,
		TranscriptionState: entities.TranscriptionNone,
	}
	require.NoError(f.t, f.videos.Save(context.Background(), record))
	node, err := f.canvasService.AddVideoNode(context.Background(), record, f.pos(100, 100))
	require.NoError(f.t, err)
	return node
}

func (f *fixture) addAgent(agentType entities.AgentType) *entities.Node {
	f.t.Helper()
	node, err := f.canvasService.AddAgentNode(context.Background(), agentType, f.pos(500, 100))
	require.NoError(f.t, err)
	return node
}

func (f *fixture) addTranscription(fileName string, videoID valueobjects.VideoID) *entities.Node {
	f.t.Helper()
	record := ports.TranscriptionRecord{
		ID:        valueobjects.NewTranscriptionID(),
		ProjectID: f.canvas.ProjectID(),
		VideoID:   videoID,
		FileName:  fileName,
		Format:    "srt",
		FullText:  "hello from the transcript",
		WordCount: 4,
	}
	require.NoError(f.t, f.transcriptions.Save(context.Background(), record))
	node, err := f.canvasService.AddTranscriptionNode(context.Background(), record, f.pos(100, 400))
	require.NoError(f.t, err)
	return node
}

func (f *fixture) addMoodBoard(items ...entities.MoodItem) *entities.Node {
	f.t.Helper()
	node, err := f.canvasService.AddMoodBoardNode(context.Background(), f.pos(300, 400))
	require.NoError(f.t, err)
	if len(items) > 0 {
		require.NoError(f.t, f.canvasService.UpdateMoodBoard(context.Background(), node.ID(), items))
	}
	return node
}

func (f *fixture) connect(source, target *entities.Node) *aggregates.Edge {
	f.t.Helper()
	edge, err := f.connections.Connect(context.Background(), source.ID(), target.ID(), "output", "input")
	require.NoError(f.t, err)
	return edge
}

// setDraft puts an existing draft onto an agent node, as a completed
// generation would.
func (f *fixture) setDraft(nodeID valueobjects.NodeID, draft string) {
	f.t.Helper()
	status := entities.AgentReady
	err := f.canvas.UpdateNode(nodeID, entities.NodePatch{Agent: &entities.AgentPatch{
		Draft:  &draft,
		Status: &status,
	}})
	require.NoError(f.t, err)
	f.canvas.MarkEventsAsCommitted()
}

func (f *fixture) agentPayload(nodeID valueobjects.NodeID) entities.AgentPayload {
	f.t.Helper()
	node, err := f.canvas.FindNode(nodeID)
	require.NoError(f.t, err)
	payload, ok := node.Agent()
	require.True(f.t, ok)
	return payload
}
