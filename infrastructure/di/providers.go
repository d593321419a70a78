// Package di wires the application together. Providers are plain functions
// consumed both by Wire and by the checked-in initializer.
package di

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	appevents "canvas-backend/application/events"
	"canvas-backend/application/ports"
	"canvas-backend/application/services"
	domainconfig "canvas-backend/domain/config"
	"canvas-backend/domain/core/aggregates"
	"canvas-backend/domain/core/valueobjects"
	domainservices "canvas-backend/domain/services"
	"canvas-backend/infrastructure/config"
	"canvas-backend/infrastructure/generation"
	dynamopersistence "canvas-backend/infrastructure/persistence/dynamodb"
	"canvas-backend/infrastructure/persistence/memory"
	"canvas-backend/infrastructure/transcription"
	"canvas-backend/interfaces/http/rest"
	"canvas-backend/interfaces/websocket"
	"canvas-backend/pkg/observability"
)

// Repositories groups the four persistence ports.
type Repositories struct {
	Videos         ports.VideoRepository
	Agents         ports.AgentRepository
	Transcriptions ports.TranscriptionRepository
	Snapshots      ports.SnapshotRepository
}

// Container holds all application dependencies
type Container struct {
	Config         *config.Config
	DynamicConfig  *config.DynamicConfigManager
	Logger         *zap.Logger
	MetricRegistry *prometheus.Registry
	Metrics        *observability.Metrics

	Canvas               *aggregates.Canvas
	EventHandlerRegistry *appevents.HandlerRegistry
	Repositories         Repositories

	CanvasService       *services.CanvasService
	ConnectionService   *services.ConnectionService
	DeletionCoordinator *services.DeletionCoordinator
	PersistenceSync     *services.PersistenceSync
	Orchestrator        *services.GenerationOrchestrator
	TranscriptionIngest *services.TranscriptionIngestService
	TranscriptionPoller *services.TranscriptionPoller

	Hub         *websocket.Hub
	Broadcaster *websocket.Broadcaster

	Handler http.Handler
}

// ProvideLogger creates the application logger
func ProvideLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.IsDevelopment() {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// ProvideDynamicConfigManager creates the hot-reload config manager
func ProvideDynamicConfigManager(cfg *config.Config, logger *zap.Logger) (*config.DynamicConfigManager, error) {
	return config.NewDynamicConfigManager(cfg, logger)
}

// ProvideCanvasConfig merges dynamic overrides into the canvas rules
func ProvideCanvasConfig(manager *config.DynamicConfigManager) *domainconfig.CanvasConfig {
	return manager.CanvasConfig()
}

// ProvideMetricsRegistry creates the Prometheus registry
func ProvideMetricsRegistry() *prometheus.Registry {
	return prometheus.NewRegistry()
}

// ProvideMetrics creates the application metrics
func ProvideMetrics(registry *prometheus.Registry) *observability.Metrics {
	return observability.NewMetrics(registry)
}

// ProvideCanvas creates the canvas aggregate for the configured project
func ProvideCanvas(cfg *config.Config, canvasCfg *domainconfig.CanvasConfig) (*aggregates.Canvas, error) {
	return aggregates.NewCanvas(valueobjects.ProjectID(cfg.ProjectID), canvasCfg)
}

// ProvidePlacementEngine creates the overlap-avoiding placement engine
func ProvidePlacementEngine(canvasCfg *domainconfig.CanvasConfig) *domainservices.PlacementEngine {
	return domainservices.NewPlacementEngine(canvasCfg)
}

// ProvideRepositories selects the persistence backend. Development runs
// against in-memory stores; everything else talks to DynamoDB.
func ProvideRepositories(ctx context.Context, cfg *config.Config, logger *zap.Logger) (Repositories, error) {
	if cfg.IsDevelopment() {
		logger.Info("Using in-memory persistence")
		return Repositories{
			Videos:         memory.NewVideoRepository(),
			Agents:         memory.NewAgentRepository(),
			Transcriptions: memory.NewTranscriptionRepository(),
			Snapshots:      memory.NewSnapshotRepository(),
		}, nil
	}

	client, err := dynamopersistence.NewClientFromEnv(ctx, cfg.DynamoDBTable)
	if err != nil {
		return Repositories{}, err
	}
	logger.Info("Using DynamoDB persistence", zap.String("table", cfg.DynamoDBTable))
	return Repositories{
		Videos:         dynamopersistence.NewVideoRepository(client, logger),
		Agents:         dynamopersistence.NewAgentRepository(client, logger),
		Transcriptions: dynamopersistence.NewTranscriptionRepository(client, logger),
		Snapshots:      dynamopersistence.NewSnapshotRepository(client, logger),
	}, nil
}

// ProvideEventHandlerRegistry creates the event handler registry
func ProvideEventHandlerRegistry(logger *zap.Logger) *appevents.HandlerRegistry {
	return appevents.NewHandlerRegistry(logger)
}

// ProvideContentGenerator creates the OpenAI generator behind a circuit breaker
func ProvideContentGenerator(cfg *config.Config, logger *zap.Logger) ports.ContentGenerator {
	base := generation.NewOpenAIGenerator(
		cfg.Generation.OpenAIAPIKey,
		cfg.Generation.ChatModel,
		cfg.Generation.ImageModel,
		logger,
	)
	return generation.NewBreakerGenerator(base, generation.DefaultBreakerConfig(), logger)
}

// ProvideProfileProvider creates the creator profile source
func ProvideProfileProvider(cfg *config.Config) ports.ProfileProvider {
	return generation.NewStaticProfileProvider(ports.CreatorProfile{
		ChannelName: cfg.Profile.ChannelName,
		Tone:        cfg.Profile.Tone,
		Audience:    cfg.Profile.Audience,
		Keywords:    cfg.Profile.Keywords,
	})
}

// ProvideTranscriptParser creates the SRT/VTT/plain text parser
func ProvideTranscriptParser() ports.TranscriptParser {
	return transcription.NewParser()
}

// ProvideCanvasService creates the node lifecycle service
func ProvideCanvasService(
	canvas *aggregates.Canvas,
	placement *domainservices.PlacementEngine,
	repos Repositories,
	registry *appevents.HandlerRegistry,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *services.CanvasService {
	return services.NewCanvasService(canvas, placement, repos.Agents, registry, metrics, logger)
}

// ProvideConnectionService creates the edge service
func ProvideConnectionService(
	canvas *aggregates.Canvas,
	repos Repositories,
	registry *appevents.HandlerRegistry,
	logger *zap.Logger,
) *services.ConnectionService {
	return services.NewConnectionService(canvas, repos.Agents, registry, logger)
}

// ProvideDeletionCoordinator creates the two-phase deletion coordinator
func ProvideDeletionCoordinator(
	canvas *aggregates.Canvas,
	repos Repositories,
	connections *services.ConnectionService,
	registry *appevents.HandlerRegistry,
	logger *zap.Logger,
) *services.DeletionCoordinator {
	return services.NewDeletionCoordinator(
		canvas, repos.Videos, repos.Agents, repos.Transcriptions,
		connections, registry, logger,
	)
}

// ProvidePersistenceSync creates and registers the persistence sync service
func ProvidePersistenceSync(
	canvas *aggregates.Canvas,
	repos Repositories,
	placement *domainservices.PlacementEngine,
	canvasCfg *domainconfig.CanvasConfig,
	registry *appevents.HandlerRegistry,
	metrics *observability.Metrics,
	logger *zap.Logger,
) (*services.PersistenceSync, error) {
	sync := services.NewPersistenceSync(
		canvas, repos.Videos, repos.Agents, repos.Transcriptions, repos.Snapshots,
		placement, canvasCfg, nil, metrics, logger,
	)
	if err := sync.RegisterWith(registry); err != nil {
		return nil, err
	}
	return sync, nil
}

// ProvideGenerationOrchestrator creates the generation pipeline
func ProvideGenerationOrchestrator(
	canvas *aggregates.Canvas,
	repos Repositories,
	generator ports.ContentGenerator,
	profiles ports.ProfileProvider,
	registry *appevents.HandlerRegistry,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *services.GenerationOrchestrator {
	return services.NewGenerationOrchestrator(canvas, repos.Agents, generator, profiles, registry, metrics, logger)
}

// ProvideTranscriptionIngestService creates the upload ingest service
func ProvideTranscriptionIngestService(
	canvas *aggregates.Canvas,
	canvasService *services.CanvasService,
	repos Repositories,
	parser ports.TranscriptParser,
	logger *zap.Logger,
) *services.TranscriptionIngestService {
	return services.NewTranscriptionIngestService(canvas, canvasService, repos.Transcriptions, parser, logger)
}

// ProvideTranscriptionPoller creates the auto-transcription poller
func ProvideTranscriptionPoller(
	canvas *aggregates.Canvas,
	repos Repositories,
	registry *appevents.HandlerRegistry,
	canvasCfg *domainconfig.CanvasConfig,
	logger *zap.Logger,
) *services.TranscriptionPoller {
	return services.NewTranscriptionPoller(canvas, repos.Videos, registry, canvasCfg.PollInterval, logger)
}

// ProvideWebSocketHub creates the broadcast hub
func ProvideWebSocketHub(metrics *observability.Metrics, logger *zap.Logger) *websocket.Hub {
	return websocket.NewHub(metrics, logger)
}

// ProvideWebSocketServer creates the upgrade handler
func ProvideWebSocketServer(hub *websocket.Hub, logger *zap.Logger) *websocket.Server {
	return websocket.NewServer(hub, nil, logger)
}

// ProvideBroadcaster creates and registers the event broadcaster
func ProvideBroadcaster(hub *websocket.Hub, registry *appevents.HandlerRegistry, logger *zap.Logger) (*websocket.Broadcaster, error) {
	broadcaster := websocket.NewBroadcaster(hub, logger)
	if err := broadcaster.RegisterWith(registry); err != nil {
		return nil, err
	}
	return broadcaster, nil
}

// ProvideRouter creates the HTTP handler
func ProvideRouter(
	cfg *config.Config,
	canvas *aggregates.Canvas,
	canvasService *services.CanvasService,
	connections *services.ConnectionService,
	deletion *services.DeletionCoordinator,
	orchestrator *services.GenerationOrchestrator,
	ingest *services.TranscriptionIngestService,
	sync *services.PersistenceSync,
	repos Repositories,
	wsServer *websocket.Server,
	registry *prometheus.Registry,
	logger *zap.Logger,
) http.Handler {
	var ws *websocket.Server
	if cfg.EnableWebSocket {
		ws = wsServer
	}
	router := rest.NewRouter(
		canvas, canvasService, connections, deletion, orchestrator, ingest, sync,
		repos.Videos, ws, registry, cfg.EnableCORS, logger,
	)
	return router.Setup()
}
