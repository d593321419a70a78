//go:build !wireinject
// +build !wireinject

package di

import (
	"context"

	"canvas-backend/infrastructure/config"
)

// InitializeContainer creates a fully wired container. Mirrors the Wire
// provider set; kept in sync by hand so builds never depend on codegen.
func InitializeContainer(ctx context.Context, cfg *config.Config) (*Container, error) {
	logger, err := ProvideLogger(cfg)
	if err != nil {
		return nil, err
	}

	dynamicConfig, err := ProvideDynamicConfigManager(cfg, logger)
	if err != nil {
		return nil, err
	}
	canvasCfg := ProvideCanvasConfig(dynamicConfig)

	metricRegistry := ProvideMetricsRegistry()
	metrics := ProvideMetrics(metricRegistry)

	canvas, err := ProvideCanvas(cfg, canvasCfg)
	if err != nil {
		return nil, err
	}
	placement := ProvidePlacementEngine(canvasCfg)

	repos, err := ProvideRepositories(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	registry := ProvideEventHandlerRegistry(logger)
	generator := ProvideContentGenerator(cfg, logger)
	profiles := ProvideProfileProvider(cfg)
	parser := ProvideTranscriptParser()

	canvasService := ProvideCanvasService(canvas, placement, repos, registry, metrics, logger)
	connections := ProvideConnectionService(canvas, repos, registry, logger)
	deletion := ProvideDeletionCoordinator(canvas, repos, connections, registry, logger)

	sync, err := ProvidePersistenceSync(canvas, repos, placement, canvasCfg, registry, metrics, logger)
	if err != nil {
		return nil, err
	}

	orchestrator := ProvideGenerationOrchestrator(canvas, repos, generator, profiles, registry, metrics, logger)
	ingest := ProvideTranscriptionIngestService(canvas, canvasService, repos, parser, logger)
	poller := ProvideTranscriptionPoller(canvas, repos, registry, canvasCfg, logger)

	hub := ProvideWebSocketHub(metrics, logger)
	wsServer := ProvideWebSocketServer(hub, logger)
	broadcaster, err := ProvideBroadcaster(hub, registry, logger)
	if err != nil {
		return nil, err
	}

	handler := ProvideRouter(
		cfg, canvas, canvasService, connections, deletion, orchestrator, ingest, sync,
		repos, wsServer, metricRegistry, logger,
	)

	return &Container{
		Config:               cfg,
		DynamicConfig:        dynamicConfig,
		Logger:               logger,
		MetricRegistry:       metricRegistry,
		Metrics:              metrics,
		Canvas:               canvas,
		EventHandlerRegistry: registry,
		Repositories:         repos,
		CanvasService:        canvasService,
		ConnectionService:    connections,
		DeletionCoordinator:  deletion,
		PersistenceSync:      sync,
		Orchestrator:         orchestrator,
		TranscriptionIngest:  ingest,
		TranscriptionPoller:  poller,
		Hub:                  hub,
		Broadcaster:          broadcaster,
		Handler:              handler,
	}, nil
}
