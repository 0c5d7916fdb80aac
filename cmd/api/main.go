// Package main is the entry point for the ExpertRank API server.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/provenhq/expertrank/internal/api"
	"github.com/provenhq/expertrank/internal/attribute"
	"github.com/provenhq/expertrank/internal/config"
	"github.com/provenhq/expertrank/internal/db"
	"github.com/provenhq/expertrank/internal/expert"
	"github.com/provenhq/expertrank/internal/extraction"
	"github.com/provenhq/expertrank/internal/health"
	"github.com/provenhq/expertrank/internal/idempotency"
	"github.com/provenhq/expertrank/internal/middleware"
	"github.com/provenhq/expertrank/internal/ranking"
	"github.com/provenhq/expertrank/internal/search"
	"github.com/provenhq/expertrank/internal/tracing"
)

func main() {
	help := flag.Bool("help", false, "display help message")
	configPath := flag.String("config", "", "path to optional YAML config file")
	flag.Parse()

	if *help {
		fmt.Println("ExpertRank API Server")
		fmt.Println()
		fmt.Println("Usage: api [options]")
		fmt.Println()
		fmt.Println("Options:")
		flag.PrintDefaults()
		os.Exit(0)
	}

	cfg, errs := config.Load(*configPath)
	if len(errs) > 0 {
		for _, err := range errs {
			fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		}
		os.Exit(1)
	}

	logger := middleware.NewLogger(cfg.Env)
	slog.SetDefault(logger)
	logger.Info("configuration loaded", "config", cfg.LogSummary())

	tracingProvider, err := tracing.NewProvider(tracing.Config{
		ServiceName:  "expertrank-api",
		Enabled:      cfg.TracingEnabled,
		Environment:  cfg.Env,
		ExporterType: cfg.TracingExporterType,
		OTLPEndpoint: cfg.TracingOTLPEndpoint,
		SamplingRate: cfg.TracingSamplingRate,
		InsecureMode: cfg.TracingInsecure,
	})
	if err != nil {
		logger.Error("failed to initialize tracing", "error", err)
		os.Exit(1)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracingProvider.Shutdown(ctx); err != nil {
			logger.Error("tracing shutdown failed", "error", err)
		}
	}()

	// data stores: Postgres when configured, in-memory otherwise
	var (
		attrRepo   attribute.Repository
		expertRepo expert.Repository
		dbChecker  api.HealthChecker
	)
	if cfg.DatabaseURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		sqlDB, err := db.Open(ctx, cfg.DatabaseURL)
		cancel()
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer func() {
			if err := sqlDB.Close(); err != nil {
				logger.Error("database close failed", "error", err)
			}
		}()
		attrRepo = attribute.NewPostgresRepository(sqlDB, logger)
		expertRepo = expert.NewPostgresRepository(sqlDB, logger)
		dbChecker = health.NewDBChecker(sqlDB)
		logger.Info("using postgres stores")
	} else {
		memAttrs := attribute.NewInMemoryRepository()
		attrRepo = memAttrs
		expertRepo = expert.NewInMemoryRepository(memAttrs)
		logger.Warn("DATABASE_URL not set, using in-memory stores")
	}

	// Redis: extraction cache plus shared rate limit state. Optional; both
	// consumers degrade gracefully without it.
	var (
		redisClient    *redis.Client
		redisChecker   api.HealthChecker
		extractorCache extraction.Cache
	)
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Error("invalid REDIS_URL", "error", err)
			os.Exit(1)
		}
		redisClient = redis.NewClient(opts)
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Error("redis close failed", "error", err)
			}
		}()
		redisChecker = health.NewRedisChecker(redisClient)
		extractorCache = extraction.NewRedisCache(redisClient, extraction.DefaultCacheTTL, logger)
		logger.Info("redis connected")
	}

	tuning, err := ranking.LoadCalibration(cfg.CalibrationPath)
	if err != nil {
		// LoadCalibration falls back to defaults on error.
		logger.Warn("calibration load failed, using defaults", "error", err)
	}

	llm, err := extraction.NewLLM(extraction.LLMConfig{
		BaseURL: cfg.LLMBaseURL,
		Model:   cfg.LLMModel,
		APIKey:  cfg.LLMAPIKey,
	})
	if err != nil {
		logger.Error("failed to create completion client", "error", err)
		os.Exit(1)
	}

	var extractor extraction.TextExtractor = extraction.New(
		llm,
		extraction.NewStoreResolver(attrRepo),
		extraction.Config{
			Types:      cfg.AttributeTypes,
			MaxPerType: tuning.MaxAttributesPerType,
		},
		logger,
	)
	if extractorCache != nil {
		extractor = extraction.NewCachedExtractor(extractor, extractorCache)
	}

	// metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	searchMetrics := search.NewMetrics()
	if err := searchMetrics.Register(registry); err != nil {
		logger.Error("failed to register search metrics", "error", err)
		os.Exit(1)
	}
	httpMetrics := middleware.NewMetrics()
	if err := httpMetrics.Register(registry); err != nil {
		logger.Error("failed to register http metrics", "error", err)
		os.Exit(1)
	}

	searchService := search.NewService(extractor, expertRepo, tuning.Scoring, searchMetrics, logger)

	// handlers
	searchHandlers := api.NewSearchHandlers(searchService)
	expertHandlers := api.NewExpertHandlers(expertRepo)
	experienceHandlers := api.NewExperienceHandlers(expertRepo)
	attributeHandlers := api.NewAttributeHandlers(attrRepo, cfg.AttributeTypes)
	var llmChecker api.HealthChecker
	if cfg.LLMBaseURL != "" {
		llmChecker = health.NewHTTPChecker(cfg.LLMBaseURL)
	}
	healthHandlers := api.NewHealthHandlers(api.HealthHandlersConfig{
		DBChecker:    dbChecker,
		RedisChecker: redisChecker,
		LLMChecker:   llmChecker,
	})

	var rateLimitStore middleware.RateLimitStore
	if cfg.RateLimitEnabled {
		if redisClient != nil {
			rateLimitStore = middleware.NewRedisRateLimitStore(redisClient).WithMetrics(httpMetrics)
		} else {
			rateLimitStore = middleware.NewInMemoryRateLimitStore()
		}
	}

	// The search endpoint fans out to the completion service, so it gets a
	// tighter limit on top of the global one.
	var searchHandler http.Handler = http.HandlerFunc(searchHandlers.SearchExperts)
	if rateLimitStore != nil {
		searchLimit := middleware.RateLimitConfig{
			RequestsPerWindow: cfg.SearchRateLimit,
			WindowDuration:    time.Minute,
		}
		searchHandler = middleware.RateLimiter(rateLimitStore, searchLimit,
			middleware.RouteKeyFunc("search", middleware.IPKeyFunc()), httpMetrics)(searchHandler)
	}

	mux := http.NewServeMux()
	mux.Handle("/search/experts", searchHandler)
	mux.HandleFunc("/experts", expertHandlers.HandleExperts)
	mux.HandleFunc("/experts/", expertHandlers.HandleExpertByID)
	mux.HandleFunc("/experiences/", experienceHandlers.HandleExperienceByID)
	mux.HandleFunc("/attributes", attributeHandlers.HandleAttributes)
	mux.HandleFunc("/attributes/", attributeHandlers.HandleAttributeByID)
	mux.HandleFunc("/health", healthHandlers.Health)
	mux.HandleFunc("/ready", healthHandlers.Ready)
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		// Only handle exact root path, everything else returns 404
		if r.URL.Path != "/" {
			ctx := middleware.SetErrorCode(r.Context(), api.ErrCodeNotFound)
			api.WriteError(w, ctx, http.StatusNotFound, api.ErrCodeNotFound, "The requested resource was not found")
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte(`{"service":"expertrank-api","version":"0.1.0"}`)); err != nil {
			slog.Error("failed to write response", "error", err)
		}
	})

	// Idempotency for expert creation: duplicate POSTs with the same key
	// replay the stored response instead of creating twice.
	idemRepo := idempotency.NewInMemoryRepository()
	cleanupStop := make(chan struct{})
	go idempotency.RunPeriodicCleanup(idemRepo, time.Hour, 24*time.Hour, cleanupStop)
	defer close(cleanupStop)

	var handler http.Handler = mux
	handler = middleware.IdempotencyMiddleware(idemRepo, map[string]bool{"/experts": true})(handler)

	if rateLimitStore != nil {
		globalLimit := middleware.RateLimitConfig{
			RequestsPerWindow: cfg.GlobalRateLimit,
			WindowDuration:    time.Minute,
		}
		handler = middleware.RateLimiter(rateLimitStore, globalLimit, middleware.IPKeyFunc(), httpMetrics)(handler)
	}

	handler = middleware.HTTPMetrics(httpMetrics)(handler)
	handler = middleware.CORS(middleware.CORSConfig{
		AllowedOrigins: cfg.CORSAllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", middleware.IdempotencyKeyHeader, middleware.RequestIDHeader},
		MaxAge:         600,
	})(handler)
	handler = middleware.Profiling(middleware.ProfilingConfig{
		Enabled:     cfg.ProfilingEnabled,
		Environment: cfg.Env,
	})(handler)
	handler = middleware.Logging(logger)(handler)
	if cfg.TracingEnabled {
		handler = middleware.Tracing("expertrank-api")(handler)
	}
	handler = middleware.RequestID(handler)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info("starting server", "port", cfg.Port, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
