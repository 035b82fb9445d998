package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	sentryecho "github.com/getsentry/sentry-go/echo"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mehdierdemdede/leadflow/config"
	"github.com/mehdierdemdede/leadflow/pkg/api/handlers"
	"github.com/mehdierdemdede/leadflow/pkg/assignment"
	"github.com/mehdierdemdede/leadflow/pkg/audit"
	"github.com/mehdierdemdede/leadflow/pkg/cache"
	"github.com/mehdierdemdede/leadflow/pkg/database"
	"github.com/mehdierdemdede/leadflow/pkg/jobs"
	"github.com/mehdierdemdede/leadflow/pkg/leads"
	"github.com/mehdierdemdede/leadflow/pkg/ledger"
	"github.com/mehdierdemdede/leadflow/pkg/logger"
	"github.com/mehdierdemdede/leadflow/pkg/metrics"
	custommiddleware "github.com/mehdierdemdede/leadflow/pkg/middleware"
	"github.com/mehdierdemdede/leadflow/pkg/queue"
	"github.com/mehdierdemdede/leadflow/pkg/roster"
	"github.com/mehdierdemdede/leadflow/pkg/testdata"
)

func main() {
	// Load .env in development; ignore when absent.
	_ = godotenv.Load()

	cfg := config.Load()
	appLog := logger.New(cfg.LogLevel, cfg.LogFormat)
	appLog.Info("configuration loaded", "environment", cfg.APIEnvironment)

	// Sentry error tracking (if configured)
	if cfg.SentryDSN != "" {
		err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.SentryDSN,
			Environment:      cfg.SentryEnvironment,
			TracesSampleRate: 1.0,
			AttachStacktrace: true,
		})
		if err != nil {
			appLog.Warn("failed to initialize Sentry", "error", err)
		} else {
			appLog.Info("Sentry initialized", "environment", cfg.SentryEnvironment)
			defer sentry.Flush(2 * time.Second)
		}
	}

	// Event log database
	db, err := database.Open(cfg.DatabaseURL, database.DefaultPoolConfig())
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer db.Close()

	eventLog, err := audit.NewService(context.Background(), db, appLog)
	if err != nil {
		log.Fatalf("failed to initialize event log: %v", err)
	}

	// Redis: read-side cache, and the ledger backend when configured.
	redisClient, err := cache.NewClient(cfg.RedisURL)
	if err != nil {
		log.Fatalf("failed to connect to Redis: %v", err)
	}
	defer redisClient.Close()

	// Capacity ledger
	var capacityLedger ledger.Ledger
	switch cfg.LedgerBackend {
	case "redis":
		retention := time.Duration(cfg.LedgerRetentionDays) * 24 * time.Hour
		capacityLedger = ledger.NewRedisLedger(redisClient.Redis, retention)
		appLog.Info("capacity ledger backend: redis", "retention_days", cfg.LedgerRetentionDays)
	default:
		capacityLedger = ledger.NewMemoryLedger()
		appLog.Info("capacity ledger backend: memory")
	}

	// Stores and services
	agentStore := roster.NewMemoryStore()
	leadStore := leads.NewMemoryStore()
	leadService := leads.NewService(leadStore, appLog)

	// Dev-only demo data so the API is explorable out of the box.
	if cfg.SeedDemoData {
		if cfg.APIEnvironment == "production" {
			appLog.Warn("SEED_DEMO_DATA ignored in production")
		} else {
			seedCtx := context.Background()
			agents, err := testdata.GenerateAgents(seedCtx, agentStore, testdata.DefaultAgentConfig(cfg.SeedAgentCount))
			if err != nil {
				log.Fatalf("failed to seed agents: %v", err)
			}
			seeded, err := testdata.GenerateLeads(seedCtx, leadService, testdata.DefaultLeadConfig(cfg.SeedLeadCount))
			if err != nil {
				log.Fatalf("failed to seed leads: %v", err)
			}
			appLog.Info("demo data seeded", "agents", len(agents), "leads", len(seeded))
		}
	}

	// Assignment event fan-out: the durable log always records; RabbitMQ is
	// optional.
	recorders := assignment.MultiRecorder{eventLog}
	if cfg.RabbitMQURL != "" {
		publisher, err := queue.NewPublisher(cfg.RabbitMQURL, cfg.RabbitMQExchange, appLog)
		if err != nil {
			appLog.Warn("failed to connect to RabbitMQ, event publishing disabled", "error", err)
		} else {
			defer publisher.Close()
			recorders = append(recorders, publisher)
			appLog.Info("RabbitMQ event publishing enabled", "exchange", cfg.RabbitMQExchange)
		}
	}

	engine := assignment.NewEngine(agentStore, leadStore, capacityLedger,
		assignment.WithRecorder(recorders),
		assignment.WithLogger(appLog),
		assignment.WithRetryLimit(cfg.AssignRetryLimit),
	)

	// Prometheus metrics
	prometheusMetrics := metrics.New()

	// Echo
	e := echo.New()
	e.HideBanner = true

	globalRateLimiter := custommiddleware.NewRateLimiter(cfg.RateLimitRequestsPerMinute, cfg.RateLimitBurst)

	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus: true,
		LogURI:    true,
		LogError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			appLog.Info("request", "method", c.Request().Method, "uri", v.URI, "status", v.Status)
			return nil
		},
	}))
	e.Use(middleware.Recover())

	if cfg.SentryDSN != "" {
		e.Use(sentryecho.New(sentryecho.Options{
			Repanic: true,
		}))
	}

	e.Use(prometheusMetrics.Middleware())
	e.Use(middleware.CORSWithConfig(custommiddleware.CORSConfig(cfg.CORSAllowedOrigins)))
	e.Use(middleware.Gzip())
	e.Use(custommiddleware.SecurityHeaders(custommiddleware.SecurityHeadersConfig{}))
	e.Use(globalRateLimiter.RateLimitMiddleware())

	// Health and ops endpoints (public)
	e.GET("/", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]any{
			"name":        "Leadflow API",
			"version":     "1.0.0",
			"status":      "running",
			"environment": cfg.APIEnvironment,
			"timestamp":   time.Now().Unix(),
		})
	})

	e.GET("/health", func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
		defer cancel()

		if err := db.PingContext(ctx); err != nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]any{
				"status":   "unhealthy",
				"database": "down",
			})
		}
		if err := redisClient.Redis.Ping(ctx).Err(); err != nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]any{
				"status": "unhealthy",
				"cache":  "down",
			})
		}
		return c.JSON(http.StatusOK, map[string]any{
			"status":   "healthy",
			"database": "up",
			"cache":    "up",
			"pool":     database.Stats(db),
		})
	})

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// Handlers
	assignmentHandler := handlers.NewAssignmentHandler(engine, eventLog, prometheusMetrics, cfg.BulkAssignMaxLeads)
	leadHandler := handlers.NewLeadHandler(leadService, leadStore, prometheusMetrics)
	agentHandler := handlers.NewAgentHandler(agentStore, leadStore)

	v1 := e.Group("/api/v1")

	v1.GET("/ping", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"message": "pong"})
	})

	// Leads
	v1.POST("/leads", leadHandler.CreateLead)
	v1.GET("/leads", leadHandler.ListLeads)
	v1.GET("/leads/:id", leadHandler.GetLead)
	v1.PATCH("/leads/:id/status", leadHandler.UpdateLeadStatus)

	// Assignment
	v1.POST("/leads/:id/auto-assign", assignmentHandler.AutoAssign)
	v1.POST("/leads/:id/assign", assignmentHandler.ManualAssign)
	v1.POST("/leads/:id/unassign", assignmentHandler.Unassign)
	v1.POST("/leads/bulk-assign", assignmentHandler.BulkAssign)
	v1.GET("/leads/:id/assignment-history", assignmentHandler.GetAssignmentHistory)

	// Agents
	v1.POST("/agents", agentHandler.CreateAgent)
	v1.GET("/agents", agentHandler.ListAgents)
	v1.GET("/agents/:id", agentHandler.GetAgent)
	v1.PATCH("/agents/:id", agentHandler.UpdateAgent)
	v1.GET("/agents/:id/leads", agentHandler.GetAgentLeads)
	v1.GET("/agents/:id/capacity", assignmentHandler.GetAgentCapacity)

	// Ledger maintenance jobs
	cronManager := jobs.NewCronManager(capacityLedger, eventLog, nil, cfg.LedgerRetentionDays, appLog)
	if err := cronManager.SetupJobs(); err != nil {
		log.Fatalf("failed to setup cron jobs: %v", err)
	}
	cronManager.Start()

	address := fmt.Sprintf("%s:%s", cfg.APIHost, cfg.APIPort)
	appLog.Info("leadflow API starting", "address", address, "ledger_backend", cfg.LedgerBackend)

	// Graceful shutdown
	go func() {
		if err := e.Start(address); err != nil && err != http.ErrServerClosed {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLog.Info("shutting down server")
	cronManager.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(ctx); err != nil {
		log.Fatalf("server forced to shutdown: %v", err)
	}

	appLog.Info("server gracefully stopped")
}
