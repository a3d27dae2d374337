package api

import (
	"encoding/json"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lowvale/hearth/internal/api/handlers"
	mw "github.com/lowvale/hearth/internal/api/middleware"
	"github.com/lowvale/hearth/internal/config"
	"github.com/lowvale/hearth/internal/domain"
	"github.com/lowvale/hearth/internal/embedding"
	"github.com/lowvale/hearth/internal/llm"
	"github.com/lowvale/hearth/internal/service"
	"github.com/lowvale/hearth/internal/sim"
	"github.com/lowvale/hearth/internal/sim/tuning"
	"github.com/lowvale/hearth/internal/store"
	"go.uber.org/zap"
)

// App holds the router, the world loop, and background services for
// lifecycle management.
type App struct {
	Router *chi.Mux
	World  *sim.World
	Decay  *service.DecayService

	startTime    time.Time
	requestCount atomic.Int64
	errorCount   atomic.Int64
}

func NewApp(db *pgxpool.Pool, logger *zap.Logger) *App {
	// Stores
	agentStore := store.NewAgentStore(db)
	memoryStore := store.NewMemoryStore(db)
	beliefStore := store.NewBeliefStore(db)
	relationshipStore := store.NewRelationshipStore(db)
	spiritStore := store.NewSpiritStore(db)

	// External clients via provider factory
	var embeddingClient domain.EmbeddingClient
	var llmClient domain.LLMClient

	llmProvider := config.LLMProvider()
	embeddingProvider := config.EmbeddingProvider()

	var err error
	llmClient, err = llm.NewClient(llmProvider, config.LLMAPIKey())
	if err != nil {
		logger.Warn("LLM client initialization failed", zap.String("provider", llmProvider), zap.Error(err))
	} else {
		logger.Info("LLM client initialized", zap.String("provider", llmProvider))
	}

	embeddingClient, err = embedding.NewClient(embeddingProvider, config.EmbeddingAPIKey())
	if err != nil {
		logger.Warn("embedding client initialization failed", zap.String("provider", embeddingProvider), zap.Error(err))
	} else {
		logger.Info("embedding client initialized", zap.String("provider", embeddingProvider))
	}

	// Services
	memorySvc := service.NewMemoryService(memoryStore, agentStore, embeddingClient, logger)
	beliefSvc := service.NewBeliefService(beliefStore, memoryStore, agentStore, logger)
	trustSvc := service.NewTrustService(relationshipStore, memorySvc, beliefSvc, agentStore, logger)
	decisionSvc := service.NewDecisionService(agentStore, memorySvc, beliefStore, relationshipStore, llmClient, config.LLMRPS(), logger)
	decaySvc := service.NewDecayService(beliefStore, beliefSvc, logger)

	// World loop
	tun, err := tuning.Load(config.TuningPath())
	if err != nil {
		logger.Warn("tuning file not loaded, using defaults", zap.String("path", config.TuningPath()), zap.Error(err))
	}
	world := sim.New(tun, memorySvc, trustSvc, decisionSvc, beliefSvc, spiritStore, logger)

	// Handlers
	agentHandler := handlers.NewAgentHandler(agentStore, world)
	memoryHandler := handlers.NewMemoryHandler(memorySvc)
	beliefHandler := handlers.NewBeliefHandler(beliefSvc)
	trustHandler := handlers.NewTrustHandler(trustSvc, world)
	worldHandler := handlers.NewWorldHandler(world, decisionSvc, spiritStore, logger)

	r := chi.NewRouter()

	app := &App{
		Router:    r,
		World:     world,
		Decay:     decaySvc,
		startTime: time.Now(),
	}

	// Global middleware (order matters; metrics sits outside Recoverer so
	// recovered panics still count as errors)
	r.Use(mw.RequestID)
	r.Use(middleware.RealIP)
	r.Use(mw.Logging(logger))
	r.Use(mw.NewMetricsCollector(&app.requestCount, &app.errorCount).Middleware)
	r.Use(middleware.Recoverer)
	r.Use(mw.RateLimit(config.RateLimitRPS(), config.RateLimitBurst()))

	// Health and metrics (no rate-limited payloads worth protecting)
	r.Get("/health", healthHandler(db))
	r.Get("/metrics", app.metricsHandler())

	r.Route("/v1", func(r chi.Router) {
		r.Route("/agents", func(r chi.Router) {
			r.Post("/", agentHandler.Create)
			r.Get("/", agentHandler.List)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", agentHandler.GetByID)
				r.Get("/memories", memoryHandler.GetRecent)
				r.Get("/memories/recall", memoryHandler.Recall)
				r.Get("/beliefs", beliefHandler.GetByAgent)
				r.Post("/beliefs/detect", beliefHandler.Detect)
				r.Get("/relationships", trustHandler.ListRelationships)
				r.Get("/relationships/{subjectID}", trustHandler.GetRelationship)
				r.Post("/decide", worldHandler.Decide)
			})
		})

		r.Post("/memories", memoryHandler.Create)
		r.Post("/beliefs/{id}/counter", beliefHandler.AddCounterEvidence)
		r.Post("/trust/events", trustHandler.ReportEvent)

		r.Route("/world", func(r chi.Router) {
			r.Get("/status", worldHandler.Status)
			r.Get("/spirits", worldHandler.ListSpirits)
			r.Post("/conversations", worldHandler.Converse)
			r.Get("/stream", worldHandler.Stream)
		})
	})

	return app
}

func healthHandler(db *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := db.Ping(r.Context()); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]string{"status": "error", "error": err.Error()})
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}
}

func (app *App) metricsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var memStats runtime.MemStats
		runtime.ReadMemStats(&memStats)

		uptime := time.Since(app.startTime)

		response := map[string]any{
			"uptime_seconds": uptime.Seconds(),
			"uptime_human":   uptime.Round(time.Second).String(),
			"request_count":  app.requestCount.Load(),
			"error_count":    app.errorCount.Load(),
			"tick":           app.World.Tick(),
			"goroutines":     runtime.NumGoroutine(),
			"memory": map[string]any{
				"alloc_mb":       float64(memStats.Alloc) / 1024 / 1024,
				"total_alloc_mb": float64(memStats.TotalAlloc) / 1024 / 1024,
				"sys_mb":         float64(memStats.Sys) / 1024 / 1024,
				"num_gc":         memStats.NumGC,
			},
			"go_version": runtime.Version(),
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(response)
	}
}

// Ensure stores and clients satisfy interfaces at compile time.
var (
	_ domain.AgentStore        = (*store.AgentStore)(nil)
	_ domain.MemoryStore       = (*store.MemoryStore)(nil)
	_ domain.BeliefStore       = (*store.BeliefStore)(nil)
	_ domain.RelationshipStore = (*store.RelationshipStore)(nil)
	_ domain.SpiritStore       = (*store.SpiritStore)(nil)
	_ domain.EmbeddingClient   = (*embedding.OpenAIClient)(nil)
	_ domain.EmbeddingClient   = (*embedding.MockClient)(nil)
	_ domain.LLMClient         = (*llm.OpenAIClient)(nil)
	_ domain.LLMClient         = (*llm.AnthropicClient)(nil)
	_ domain.LLMClient         = (*llm.GeminiClient)(nil)
	_ domain.LLMClient         = (*llm.MockClient)(nil)

	_ sim.Recorder        = (*service.MemoryService)(nil)
	_ sim.TrustApplier    = (*service.TrustService)(nil)
	_ sim.Decider         = (*service.DecisionService)(nil)
	_ sim.PatternDetector = (*service.BeliefService)(nil)
)
