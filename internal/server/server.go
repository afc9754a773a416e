// Package server wires all services together behind one HTTP server.
package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/raglab/raglab/internal/analyst"
	"github.com/raglab/raglab/internal/bus"
	"github.com/raglab/raglab/internal/comparison"
	"github.com/raglab/raglab/internal/config"
	"github.com/raglab/raglab/internal/evaluation"
	"github.com/raglab/raglab/internal/ingest"
	"github.com/raglab/raglab/internal/llm"
	"github.com/raglab/raglab/internal/pkg/logger"
	"github.com/raglab/raglab/internal/pkg/middleware"
	"github.com/raglab/raglab/internal/qdrant"
	"github.com/raglab/raglab/internal/recorder"
	"github.com/raglab/raglab/internal/rerank"
	"github.com/raglab/raglab/internal/technique"
	"github.com/raglab/raglab/internal/web"
)

// Server hosts the API, the dashboard, and the background snapshot
// refresher.
type Server struct {
	cfg     *config.Config
	version string
	log     *logger.Logger

	httpServer *http.Server

	// Services
	bus       bus.Bus
	qdrant    *qdrant.Client
	provider  llm.Provider
	storage   recorder.Storage
	recorder  *recorder.Service
	comparer  *comparison.Service
	cache     comparison.Cache
	refresher *comparison.Refresher
	runner    *technique.Runner
	evaluator *evaluation.Evaluator
	ingester  *ingest.Service

	analystStore analyst.Storage
	analyst      *analyst.Service

	limiter *middleware.RateLimiter

	// Handlers
	api *API
	web *web.Handler

	mu      sync.Mutex
	started bool

	// draining flips at shutdown so readiness probes stop routing
	// traffic here while in-flight requests finish.
	draining atomic.Bool
}

// New creates a server with all dependencies wired from configuration.
func New(ctx context.Context, cfg *config.Config, version string, log *logger.Logger) (*Server, error) {
	if log == nil {
		log = logger.Default()
	}

	s := &Server{
		cfg:     cfg,
		version: version,
		log:     log,
	}

	events, err := bus.NewBus(cfg.Bus)
	if err != nil {
		return nil, fmt.Errorf("creating event bus: %w", err)
	}
	if cfg.Bus.EventLog != "" {
		eventLogger, err := bus.NewEventLogger(cfg.Bus.EventLog, true)
		if err != nil {
			return nil, fmt.Errorf("creating event log: %w", err)
		}
		events = bus.NewLoggedBus(events, eventLogger, log)
	}
	s.bus = events

	qc, err := qdrant.NewClient(qdrant.ClientConfig{
		Host:   cfg.Qdrant.Host,
		Port:   cfg.Qdrant.Port,
		APIKey: cfg.Qdrant.APIKey,
		UseTLS: cfg.Qdrant.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("creating qdrant client: %w", err)
	}
	s.qdrant = qc

	provider, err := llm.NewGeminiClient(ctx, llm.GeminiConfig{
		APIKey:          cfg.Gemini.APIKey,
		GenerationModel: cfg.Gemini.GenerationModel,
		EmbeddingModel:  cfg.Gemini.EmbeddingModel,
		Temperature:     float32(cfg.Gemini.Temperature),
		MaxOutputTokens: int32(cfg.Gemini.MaxOutputTokens),
		MaxRetries:      cfg.Gemini.MaxRetries,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("creating llm provider: %w", err)
	}
	s.provider = provider

	storage, err := newStorage(cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("creating execution storage: %w", err)
	}
	s.storage = storage
	s.recorder = recorder.NewService(storage, s.bus, technique.Names(), log)

	cache, err := newCache(cfg.Cache)
	if err != nil {
		return nil, fmt.Errorf("creating comparison cache: %w", err)
	}
	s.cache = cache
	s.comparer = comparison.NewService(s.recorder)
	s.refresher = comparison.NewRefresher(s.comparer, cache, cfg.Dashboard.RefreshInterval, log)

	searcher := technique.NewQdrantSearcher(qc, cfg.Qdrant.Collection)
	reranker := rerank.NewLLMReranker(provider)
	s.runner = technique.NewRunner(provider, searcher, reranker, cfg.RAG, cfg.Gemini.GenerationModel, log)
	s.evaluator = evaluation.NewEvaluator(provider, log)
	s.ingester = ingest.NewService(provider, qc, cfg.Qdrant.Collection, s.bus, cfg.Ingest, log)

	analystStore, err := newAnalystStorage(cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("creating analysis storage: %w", err)
	}
	s.analystStore = analystStore
	s.analyst = analyst.NewService(provider, s.comparer, analystStore, log)

	s.api = NewAPI(Deps{
		Runner:            s.runner,
		Evaluator:         s.evaluator,
		Recorder:          s.recorder,
		Comparer:          s.comparer,
		Cache:             cache,
		Refresher:         s.refresher,
		Ingester:          s.ingester,
		Analyst:           s.analyst,
		Ready:             s.ready,
		Version:           version,
		EvaluateByDefault: cfg.RAG.EnableEvaluation,
		Log:               log,
	})

	if cfg.EnableWeb {
		s.web = web.NewHandler(cache, s.bus, cfg.Dashboard.RefreshInterval, log)
	}

	return s, nil
}

// ready reports whether the server should receive traffic: not
// draining and the vector store is reachable.
func (s *Server) ready(ctx context.Context) error {
	if s.draining.Load() {
		return fmt.Errorf("server is draining")
	}
	return s.qdrant.HealthCheck(ctx)
}

// newStorage builds the execution store from configuration.
func newStorage(cfg config.StoreConfig) (recorder.Storage, error) {
	switch cfg.Type {
	case "memory":
		return recorder.NewMemoryStorage(), nil
	default:
		return recorder.NewSQLiteStorage(cfg.Path)
	}
}

// newAnalystStorage builds the analysis store from configuration. It
// follows the execution store: same backend type, same SQLite file.
func newAnalystStorage(cfg config.StoreConfig) (analyst.Storage, error) {
	switch cfg.Type {
	case "memory":
		return analyst.NewMemoryStorage(), nil
	default:
		return analyst.NewSQLiteStorage(cfg.Path)
	}
}

// newCache builds the snapshot cache from configuration.
func newCache(cfg config.CacheConfig) (comparison.Cache, error) {
	switch cfg.Type {
	case "redis":
		return comparison.NewRedisCache(cfg.RedisURL, time.Duration(cfg.TTL)*time.Second)
	default:
		return comparison.NewMemoryCache(), nil
	}
}

// Start starts the refresher and the HTTP server. Blocks until the
// server stops.
func (s *Server) Start() error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return fmt.Errorf("server already started")
	}
	s.started = true
	s.draining.Store(false)
	s.mu.Unlock()

	s.ensureCollection()
	s.refresher.Start()

	s.httpServer = &http.Server{
		Addr:         s.cfg.Address(),
		Handler:      s.buildHandler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
	}

	s.log.Info("starting HTTP server", "addr", s.cfg.Address(), "version", s.version)
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// ensureCollection creates the chunk collection when missing. Failure
// is logged, not fatal: queries degrade until Qdrant is reachable.
func (s *Server) ensureCollection() {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	exists, err := s.qdrant.CollectionExists(ctx, s.cfg.Qdrant.Collection)
	if err != nil {
		s.log.Warn("could not check collection", "collection", s.cfg.Qdrant.Collection, "error", err)
		return
	}
	if exists {
		return
	}

	collectionCfg := qdrant.DefaultCollectionConfig(s.cfg.Qdrant.Collection)
	collectionCfg.VectorSize = uint64(s.cfg.Gemini.EmbedDim)
	if err := s.qdrant.CreateCollection(ctx, collectionCfg); err != nil {
		s.log.Warn("could not create collection", "collection", s.cfg.Qdrant.Collection, "error", err)
		return
	}
	s.log.Info("created collection", "collection", s.cfg.Qdrant.Collection, "dim", s.cfg.Gemini.EmbedDim)
}

// buildHandler assembles the route mux and the middleware chain.
func (s *Server) buildHandler() http.Handler {
	mux := http.NewServeMux()
	s.api.RegisterRoutes(mux)
	if s.web != nil {
		s.web.RegisterRoutes(mux)
	}

	var handler http.Handler = mux
	handler = corsMiddleware(s.cfg.Security.CORSOrigins, handler)
	if s.cfg.Security.RateLimit > 0 {
		s.limiter = middleware.NewRateLimiter(middleware.RateLimiterConfig{
			RequestsPerSecond: float64(s.cfg.Security.RateLimit),
			Burst:             s.cfg.Security.RateLimit * 2,
			CleanupInterval:   time.Minute,
		})
		handler = s.limiter.Middleware(handler)
	}
	handler = recoveryMiddleware(s.log, handler)
	handler = loggingMiddleware(s.log, handler)
	return requestIDMiddleware(handler)
}

// Stop gracefully stops the server and releases all resources.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}

	s.log.Info("shutting down server")
	s.draining.Store(true)

	if s.httpServer != nil {
		shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.log.Error("HTTP shutdown error", "error", err)
		}
	}

	s.refresher.Stop()
	if s.limiter != nil {
		s.limiter.Stop()
	}
	if s.web != nil {
		s.web.Close()
	}
	if err := s.cache.Close(); err != nil {
		s.log.Warn("cache close error", "error", err)
	}
	if err := s.storage.Close(); err != nil {
		s.log.Warn("storage close error", "error", err)
	}
	if err := s.analystStore.Close(); err != nil {
		s.log.Warn("analysis storage close error", "error", err)
	}
	if err := s.qdrant.Close(); err != nil {
		s.log.Warn("qdrant close error", "error", err)
	}
	if err := s.bus.Close(); err != nil {
		s.log.Warn("bus close error", "error", err)
	}

	s.started = false
	s.log.Info("server stopped")
	return nil
}
