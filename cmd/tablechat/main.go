package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/tablechat/tablechat/internal/chunker"
	"github.com/tablechat/tablechat/internal/config"
	"github.com/tablechat/tablechat/internal/db"
	dbRedis "github.com/tablechat/tablechat/internal/db/redis"
	"github.com/tablechat/tablechat/internal/domain"
	"github.com/tablechat/tablechat/internal/index"
	"github.com/tablechat/tablechat/internal/ingest"
	logpkg "github.com/tablechat/tablechat/internal/logger"
	"github.com/tablechat/tablechat/internal/metrics"
	"github.com/tablechat/tablechat/internal/repository/embcache"
	sessionrepo "github.com/tablechat/tablechat/internal/repository/session"
	chiTransport "github.com/tablechat/tablechat/internal/transport/chi"
	openaiTransport "github.com/tablechat/tablechat/internal/transport/openai"
	embeddinguc "github.com/tablechat/tablechat/internal/usecase/embedding"
	healthuc "github.com/tablechat/tablechat/internal/usecase/health"
	queryuc "github.com/tablechat/tablechat/internal/usecase/query"
	uploaduc "github.com/tablechat/tablechat/internal/usecase/upload"
	"github.com/tablechat/tablechat/internal/version"
)

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting tablechat API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("embedding_model", cfg.Provider.EmbeddingModel),
		zap.String("chat_model", cfg.Provider.ChatModel),
		zap.Bool("embedding_cache", len(cfg.Cache.Addrs) > 0),
	)

	// Register metrics explicitly (no init())
	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterRAGMetrics()

	// Optional Redis-backed embedding cache
	var store db.Store
	if len(cfg.Cache.Addrs) > 0 {
		store, err = dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.Cache.Addrs,
			Password: cfg.Cache.Password,
		})
		if err != nil {
			logger.Fatal("Failed to create cache store", zap.Error(err))
		}
		defer store.Close()

		ctx := context.Background()
		readiness := time.Duration(cfg.Cache.ReadinessTimeoutSec) * time.Second
		if err := store.WaitForReady(ctx, readiness); err != nil {
			logger.Fatal("Embedding cache not ready", zap.Error(err))
		}
		logger.Info("Connected to embedding cache")
	}

	providerCfg := &openaiTransport.Config{
		APIKey:         cfg.Provider.APIKey,
		BaseURL:        cfg.Provider.BaseURL,
		EmbeddingModel: cfg.Provider.EmbeddingModel,
		ChatModel:      cfg.Provider.ChatModel,
		Dimensions:     cfg.Provider.Dimensions,
		Timeout:        time.Duration(cfg.Provider.TimeoutSec) * time.Second,
		Logger:         logger,
	}

	// Build embedder chain — composition root.
	// Base provider -> cached (optional) -> bounded retries.
	baseEmbedder := openaiTransport.NewEmbedder(providerCfg)
	var embedder domain.Embedder = baseEmbedder
	if store != nil {
		embedder = embcache.New(
			baseEmbedder, store,
			time.Duration(cfg.Cache.TTLSec)*time.Second,
			metrics.EmbeddingCacheTotal, logger,
		)
	}
	retryingEmbedder := embeddinguc.NewRetryingEmbedder(embedder, cfg.Provider.MaxRetries, logger)

	chatClient := openaiTransport.NewChatClient(providerCfg)

	// Pipeline components
	ingestor := ingest.New(ingest.Options{
		MaxFileBytes:      cfg.Upload.MaxFileBytes,
		AllowedExtensions: cfg.Upload.AllowedExtensions,
		SpoolDir:          cfg.Upload.SpoolDir,
	})
	chunk := chunker.New(cfg.RAG.ChunkSize, cfg.RAG.ChunkOverlap)

	registry := sessionrepo.NewRegistry(
		cfg.Sessions.MaxSessions,
		time.Duration(cfg.Sessions.TTLSec)*time.Second,
		logger,
	)
	registry.StartJanitor(time.Duration(cfg.Sessions.JanitorIntervalSec) * time.Second)
	defer registry.Close()

	newIndex := func() (domain.Index, error) { return index.New() }

	uploadSvc := uploaduc.New(ingestor, chunk, retryingEmbedder, newIndex, registry)
	querySvc := queryuc.New(registry, retryingEmbedder, chatClient, cfg.RAG.TopK, cfg.RAG.Temperature).
		WithPromptTemplate(cfg.RAG.PromptTemplate)

	var cachePinger healthuc.CachePinger
	if store != nil {
		cachePinger = store
	}
	healthSvc := healthuc.New(baseEmbedder, cachePinger)

	server := chiTransport.NewServer(
		uploadSvc, querySvc, healthSvc,
		cfg.Upload.MaxFileBytes, cfg.Upload.AllowedExtensions,
		logger,
	)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"*"},
	}))
	r.Use(metrics.Middleware())
	server.Routes(r)
	r.Handle("/metrics", promhttp.Handler())

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// jsonRecoverer is a recovery middleware that returns JSON instead of a plain text stacktrace.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.Stack("stacktrace"),
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(map[string]string{"error": "internal error"})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// wideEventMiddleware emits a canonical log line per request and propagates X-Request-ID.
func wideEventMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// chi.middleware.RequestID already placed request_id in context
			requestID := chiMiddleware.GetReqID(r.Context())

			// Set X-Request-ID in response header
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			// Per-request logger with request_id
			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			// Canonical log line — one line per request
			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.Int64("content_length", r.ContentLength),
				zap.String("user_agent", r.UserAgent()),
				zap.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}
