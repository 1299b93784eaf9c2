package main

import (
	"fmt"
	"os"

	"lifecycle-service/internal/checklist"
	"lifecycle-service/internal/dormancy"
	"lifecycle-service/internal/handler"
	"lifecycle-service/internal/lifecycle"
	"lifecycle-service/internal/middleware"
	"lifecycle-service/internal/model"
	"lifecycle-service/internal/retention"
	"lifecycle-service/internal/store"
	"lifecycle-service/pkg/activity"
	"lifecycle-service/pkg/cache"
	"lifecycle-service/pkg/config"
	"lifecycle-service/pkg/database"
	"lifecycle-service/pkg/jwtutil"
	"lifecycle-service/pkg/logger"
	"lifecycle-service/prometheus"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		fmt.Printf("Warning: .env file not found or error loading: %v\n", err)
	}

	// Load configuration
	conf, err := config.Load("lifecycle")
	if err != nil {
		fmt.Printf("Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	err = logger.InitLogger(&logger.LogConfig{
		Level:       conf.Log.Level,
		Environment: conf.Server.Env,
		ServiceName: conf.ServiceName,
	})
	if err != nil {
		fmt.Printf("Error initializing logger: %v\n", err)
		os.Exit(1)
	}
	log := logger.GetLogger()

	// Initialize database connection
	db, err := database.InitDB(&conf.DB)
	if err != nil {
		log.Fatal("Failed to initialize database", zap.Error(err))
	}

	// Run migrations for the engine's models
	if err := database.MigrateModels(
		&model.Customer{},
		&model.Document{},
		&model.LifecycleTransition{},
		&model.ChecklistTemplate{},
		&model.ChecklistTemplateItem{},
		&model.ChecklistInstance{},
		&model.ChecklistInstanceItem{},
		&model.RetentionPolicy{},
		&model.RetentionExecutionLog{},
	); err != nil {
		log.Fatal("Failed to migrate database models", zap.Error(err))
	}

	// Initialize JWT utility
	jwt := jwtutil.NewJWTUtil(&jwtutil.JWTConfig{
		SigningKey:      conf.JWT.SigningKey,
		ExpirationHours: conf.JWT.ExpirationHours,
	})

	// Stores
	customerStore := store.NewCustomerStore(db)
	transitionStore := store.NewTransitionStore(db)
	checklistStore := store.NewChecklistStore(db)
	templateStore := store.NewTemplateStore(db)
	policyStore := store.NewPolicyStore(db)
	recordStore := store.NewRecordStore(db)
	executionLogStore := store.NewExecutionLogStore(db)

	// The template and policy sets are read-mostly; front them with redis
	// when it is available.
	var templates checklist.TemplateStore = templateStore
	var policies retention.PolicyStore = policyStore
	if conf.Redis.Enabled {
		kv, err := cache.NewRedisKV(conf.Redis.Addr, conf.Redis.Password, conf.Redis.DB)
		if err != nil {
			log.Warn("Redis unavailable, template and policy caching disabled", zap.Error(err))
		} else {
			templates = store.NewCachedTemplateStore(templateStore, kv, conf.Redis.TemplateTTL, log)
			policies = store.NewCachedPolicyStore(policyStore, kv, conf.Redis.PolicyTTL, log)
		}
	}

	// External activity aggregation source, optional.
	var activitySource dormancy.ActivitySource
	if conf.Activity.BaseURL != "" {
		activitySource = activity.NewClient(conf.Activity.BaseURL, conf.Activity.Timeout, log)
	}

	// Engines
	checklistEngine := checklist.NewEngine(checklistStore, templates, log)
	orchestrator := lifecycle.NewOrchestrator(customerStore, transitionStore, checklistEngine, log)
	detector := dormancy.NewDetector(customerStore, activitySource, log)
	retentionEngine := retention.NewEngine(policies, recordStore, transitionStore, executionLogStore, conf.Retention.BatchSize, log)

	// Handlers
	lifecycleHandler := handler.NewLifecycleHandler(orchestrator)
	checklistHandler := handler.NewChecklistHandler(checklistEngine)
	dormancyHandler := handler.NewDormancyHandler(detector, conf.Dormancy.DefaultThresholdDays)
	retentionHandler := handler.NewRetentionHandler(retentionEngine)

	// Initialize Echo framework
	e := echo.New()

	// Apply middleware
	e.Use(middleware.RequestIDMiddleware())
	e.Use(logger.Middleware())
	e.Use(prometheus.MetricsMiddleware())

	// Public routes
	e.GET("/health", handler.HealthCheck)
	e.GET("/metrics", echo.WrapHandler(prometheus.GetPrometheusHandler()))

	// Secured routes - require authentication
	api := e.Group("")
	api.Use(middleware.JWTAuthMiddleware(jwt))

	api.POST("/customers/:id/lifecycle/transition", lifecycleHandler.Transition)
	api.GET("/customers/:id/lifecycle/transitions", lifecycleHandler.Trail)
	api.GET("/lifecycle/transitions/available", lifecycleHandler.AvailableTransitions)

	api.POST("/customers/:id/checklists", checklistHandler.Instantiate)
	api.GET("/customers/:id/checklists/active", checklistHandler.ActiveInstance)
	api.POST("/checklist-items/:id/complete", checklistHandler.CompleteItem)
	api.POST("/checklist-items/:id/skip", checklistHandler.SkipItem)
	api.POST("/checklist-items/:id/reopen", checklistHandler.ReopenItem)
	api.POST("/checklist-instances/:id/cancel", checklistHandler.CancelInstance)

	api.GET("/dormancy/candidates", dormancyHandler.Candidates)

	api.POST("/retention/check", retentionHandler.RunCheck)
	api.POST("/retention/execute", retentionHandler.Execute)

	// Start server
	log.Info("Starting lifecycle-service on port " + conf.Server.Port)
	e.Logger.Fatal(e.Start(":" + conf.Server.Port))
}
