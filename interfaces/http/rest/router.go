package rest

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"canvas-backend/application/ports"
	"canvas-backend/application/services"
	"canvas-backend/domain/core/aggregates"
	"canvas-backend/interfaces/http/rest/handlers"
	"canvas-backend/interfaces/http/rest/middleware"
	"canvas-backend/interfaces/websocket"
)

// Router creates and configures the HTTP router
type Router struct {
	canvas        *aggregates.Canvas
	canvasService *services.CanvasService
	connections   *services.ConnectionService
	deletion      *services.DeletionCoordinator
	orchestrator  *services.GenerationOrchestrator
	ingest        *services.TranscriptionIngestService
	sync          *services.PersistenceSync
	videoRepo     ports.VideoRepository
	wsServer      *websocket.Server
	registry      prometheus.Gatherer
	enableCORS    bool
	logger        *zap.Logger
}

// NewRouter creates a new router instance
func NewRouter(
	canvas *aggregates.Canvas,
	canvasService *services.CanvasService,
	connections *services.ConnectionService,
	deletion *services.DeletionCoordinator,
	orchestrator *services.GenerationOrchestrator,
	ingest *services.TranscriptionIngestService,
	sync *services.PersistenceSync,
	videoRepo ports.VideoRepository,
	wsServer *websocket.Server,
	registry prometheus.Gatherer,
	enableCORS bool,
	logger *zap.Logger,
) *Router {
	return &Router{
		canvas:        canvas,
		canvasService: canvasService,
		connections:   connections,
		deletion:      deletion,
		orchestrator:  orchestrator,
		ingest:        ingest,
		sync:          sync,
		videoRepo:     videoRepo,
		wsServer:      wsServer,
		registry:      registry,
		enableCORS:    enableCORS,
		logger:        logger,
	}
}

// Setup configures all routes and middleware
func (rt *Router) Setup() http.Handler {
	router := chi.NewRouter()

	// Global middleware
	router.Use(chimiddleware.RealIP)
	router.Use(chimiddleware.Recoverer)
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(rt.logger))

	// CORS configuration
	if rt.enableCORS {
		router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   []string{"http://localhost:3000", "https://*.creator-canvas.app"},
			AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
			ExposedHeaders:   []string{"X-Request-ID"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	// Health check
	router.Get("/health", rt.healthCheck)
	router.Get("/ready", rt.readinessCheck)

	// Prometheus metrics
	router.Handle("/metrics", promhttp.HandlerFor(rt.registry, promhttp.HandlerOpts{}))

	// WebSocket upgrade
	if rt.wsServer != nil {
		router.Get("/ws", rt.wsServer.HandleWebSocket)
	}

	// API v1 routes
	router.Route("/api/v1", func(r chi.Router) {
		canvasHandler := handlers.NewCanvasHandler(rt.canvas, rt.canvasService, rt.sync, rt.logger)
		r.Route("/canvas", func(r chi.Router) {
			r.Get("/", canvasHandler.GetCanvas)
			r.Put("/viewport", canvasHandler.UpdateViewport)
		})

		// Node endpoints
		r.Route("/nodes", func(r chi.Router) {
			nodeHandler := handlers.NewNodeHandler(rt.canvas, rt.canvasService, rt.deletion, rt.videoRepo, rt.logger)
			r.Post("/", nodeHandler.CreateNode)
			r.Post("/{nodeID}/move", nodeHandler.MoveNode)
			r.Put("/{nodeID}/moodboard", nodeHandler.UpdateMoodBoard)
			r.Post("/delete", nodeHandler.RequestDelete)
			r.Post("/delete/confirm", nodeHandler.ConfirmDelete)
			r.Post("/delete/cancel", nodeHandler.CancelDelete)
		})

		// Edge endpoints
		r.Route("/connections", func(r chi.Router) {
			connectionHandler := handlers.NewConnectionHandler(rt.connections, rt.logger)
			r.Post("/", connectionHandler.CreateConnection)
			r.Post("/delete", connectionHandler.DeleteConnections)
		})

		// Agent generation endpoints
		r.Route("/agents", func(r chi.Router) {
			generationHandler := handlers.NewGenerationHandler(rt.canvas, rt.orchestrator, rt.logger)
			r.Post("/generate-all", generationHandler.GenerateAll)
			r.Post("/{nodeID}/generate", generationHandler.Generate)
			r.Post("/{nodeID}/regenerate", generationHandler.Regenerate)
			r.Post("/{nodeID}/thumbnail-image", generationHandler.SubmitThumbnailImage)
		})

		// Chat endpoint
		r.Post("/chat", handlers.NewGenerationHandler(rt.canvas, rt.orchestrator, rt.logger).Chat)

		// Transcript upload
		r.Post("/transcriptions", handlers.NewTranscriptionHandler(rt.ingest, rt.logger).Upload)
	})

	return router
}

// healthCheck handles health check requests
func (rt *Router) healthCheck(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"healthy"}`))
}

// readinessCheck handles readiness check requests
func (rt *Router) readinessCheck(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if !rt.canvas.IsLoaded() {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"status":"loading"}`))
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ready"}`))
}
