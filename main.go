package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // database/sql driver for migrations
	"go.uber.org/zap"

	"github.com/loopreach-ai/loopreach-engine/pkg/auth"
	"github.com/loopreach-ai/loopreach-engine/pkg/channels"
	"github.com/loopreach-ai/loopreach-engine/pkg/config"
	"github.com/loopreach-ai/loopreach-engine/pkg/database"
	"github.com/loopreach-ai/loopreach-engine/pkg/handlers"
	"github.com/loopreach-ai/loopreach-engine/pkg/llm"
	"github.com/loopreach-ai/loopreach-engine/pkg/middleware"
	"github.com/loopreach-ai/loopreach-engine/pkg/queue"
	"github.com/loopreach-ai/loopreach-engine/pkg/repositories"
	agentruntime "github.com/loopreach-ai/loopreach-engine/pkg/runtime"
	"github.com/loopreach-ai/loopreach-engine/pkg/services"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	cfg, err := loadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := newLogger(cfg.Env)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Configuration loaded",
		zap.String("environment", cfg.Env),
		zap.String("version", cfg.Version),
		zap.Bool("auth_verification", cfg.Auth.EnableVerification),
		zap.String("database", cfg.Database.Host),
		zap.Strings("queue_brokers", cfg.Queue.Brokers()),
		zap.Bool("scheduler_enabled", cfg.Scheduler.Enabled))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := runMigrations(cfg, logger); err != nil {
		logger.Fatal("Failed to run migrations", zap.Error(err))
	}

	db, err := database.NewConnection(ctx, &database.Config{
		URL:            cfg.Database.URL(),
		MaxConnections: cfg.Database.MaxConnections,
	})
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	redisClient, err := database.NewRedisClient(&cfg.Redis)
	if err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	if redisClient == nil {
		logger.Info("Redis not configured, idempotency-key dedup disabled")
	} else {
		defer func() { _ = redisClient.Close() }()
	}

	// Repositories
	creatorRepo := repositories.NewCreatorRepository(db)
	consumerRepo := repositories.NewConsumerRepository(db)
	eventRepo := repositories.NewEventRepository(db)
	contextRepo := repositories.NewContextRepository(db)
	agentRepo := repositories.NewAgentRepository(db)
	invocationRepo := repositories.NewInvocationRepository(db)
	actionRepo := repositories.NewActionRepository(db)
	policyRepo := repositories.NewPolicyRepository(db)

	// Auth
	authService := auth.NewService(&cfg.Auth)
	authMiddleware := auth.NewMiddleware(authService, logger.Named("auth"))

	// Queue publisher feeds evaluation jobs to the worker pool.
	publisher := queue.NewPublisher(&cfg.Queue, logger.Named("publisher"))
	defer func() { _ = publisher.Close() }()

	// Services
	contextService := services.NewContextService(contextRepo, &cfg.Stages, logger.Named("contexts"))
	eventService := services.NewEventService(db, eventRepo, consumerRepo, contextService,
		redisClient, publisher, logger.Named("events"))
	creatorService := services.NewCreatorService(creatorRepo, authService, logger.Named("creators"))
	consumerService := services.NewConsumerService(consumerRepo, logger.Named("consumers"))
	agentService := services.NewAgentService(agentRepo, logger.Named("agents"))
	actionService := services.NewActionService(actionRepo, logger.Named("actions"))
	policyService := services.NewPolicyService(policyRepo, consumerRepo, actionRepo, logger.Named("policy"))

	// Agent runtimes. The graph runtime needs an LLM client; without an
	// API key those agents stay unavailable and fail with a
	// configuration error at execution time.
	factory := buildRuntimeFactory(cfg, logger)

	orchestrator := services.NewOrchestrator(eventRepo, contextRepo, invocationRepo, actionRepo,
		agentService, policyService, factory, logger.Named("orchestrator"))

	// Worker pool consumes evaluation jobs from Kafka.
	workerPool := queue.NewWorkerPool(&cfg.Queue, orchestrator, logger.Named("workers"))
	go workerPool.Run(ctx)
	defer func() { _ = workerPool.Close() }()

	// Scheduler sweeps due actions and dispatches them.
	registry := channels.NewRegistryFromConfig(&cfg.Channels, logger.Named("channels"))
	if cfg.Scheduler.Enabled {
		scheduler := services.NewScheduler(actionRepo, registry, eventService,
			&cfg.Scheduler, logger.Named("scheduler"))
		go scheduler.Run(ctx)
	}

	mux := http.NewServeMux()
	handlers.NewHealthHandler(cfg, logger.Named("health")).RegisterRoutes(mux)
	handlers.NewCreatorsHandler(creatorService, logger.Named("creators")).RegisterRoutes(mux, authMiddleware)
	handlers.NewConsumersHandler(consumerService, contextService, logger.Named("consumers")).RegisterRoutes(mux, authMiddleware)
	handlers.NewEventsHandler(eventService, logger.Named("events")).RegisterRoutes(mux, authMiddleware)
	handlers.NewAgentsHandler(agentService, logger.Named("agents")).RegisterRoutes(mux, authMiddleware)
	handlers.NewActionsHandler(actionService, logger.Named("actions")).RegisterRoutes(mux, authMiddleware)
	handlers.NewPoliciesHandler(policyService, logger.Named("policies")).RegisterRoutes(mux, authMiddleware)
	handlers.NewInvocationsHandler(invocationRepo, logger.Named("invocations")).RegisterRoutes(mux, authMiddleware)

	server := &http.Server{
		Addr:              net.JoinHostPort(cfg.BindAddr, cfg.Port),
		Handler:           middleware.RequestLogger(logger.Named("http"))(mux),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("Starting loopreach-engine",
			zap.String("addr", server.Addr),
			zap.String("version", cfg.Version))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", zap.Error(err))
	}
}

// loadConfig reads config.yaml when present, falling back to
// environment-only configuration for containerized deployments.
func loadConfig() (*config.Config, error) {
	if _, err := os.Stat("config.yaml"); err == nil {
		return config.Load(Version)
	}
	return config.LoadFromEnv(Version)
}

func newLogger(env string) (*zap.Logger, error) {
	if env == "local" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// runMigrations applies pending migrations through database/sql, which
// golang-migrate requires.
func runMigrations(cfg *config.Config, logger *zap.Logger) error {
	sqlDB, err := sql.Open("pgx", cfg.Database.URL())
	if err != nil {
		return err
	}
	defer sqlDB.Close()
	return database.RunMigrations(sqlDB, cfg.Database.MigrationsPath, logger)
}

func buildRuntimeFactory(cfg *config.Config, logger *zap.Logger) *agentruntime.Factory {
	simple := agentruntime.NewSimpleRuntime(agentruntime.NewUnitRegistry(), logger.Named("runtime"))
	external := agentruntime.NewExternalHTTPRuntime(cfg.Channels.Timeout, logger.Named("runtime"))

	var graph agentruntime.Runtime
	if cfg.LLM.APIKey != "" {
		client, err := llm.NewFromConfig(&cfg.LLM, logger)
		if err != nil {
			logger.Warn("LLM client unavailable, graph agents disabled", zap.Error(err))
		} else {
			graph = agentruntime.NewGraphRuntime(client, cfg.LLM.Timeout, logger.Named("runtime"))
		}
	} else {
		logger.Info("No LLM API key configured, graph agents disabled")
	}

	return agentruntime.NewFactory(simple, external, graph)
}
