package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	creditapp "github.com/procwatch/backend/internal/application/credit"
	procurementapp "github.com/procwatch/backend/internal/application/procurement"
	"github.com/procwatch/backend/internal/infrastructure/cache"
	"github.com/procwatch/backend/internal/infrastructure/config"
	"github.com/procwatch/backend/internal/infrastructure/erp"
	"github.com/procwatch/backend/internal/infrastructure/logger"
	"github.com/procwatch/backend/internal/infrastructure/rates"
	"github.com/procwatch/backend/internal/interfaces/http/handler"
	"github.com/procwatch/backend/internal/interfaces/http/middleware"
	"github.com/procwatch/backend/internal/interfaces/http/router"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	log.Info("Starting application",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	// ERP batch reader
	erpClient := erp.NewClient(erp.Config{
		BaseURL:  cfg.ERP.BaseURL,
		Database: cfg.ERP.Database,
		UID:      cfg.ERP.UID,
		APIKey:   cfg.ERP.APIKey,
		Timeout:  cfg.ERP.Timeout,
	}, log)

	// Exchange-rate provider
	rateProvider := rates.NewProvider(rates.Config{
		SeriesURL:    cfg.Rates.SeriesURL,
		TTL:          cfg.Rates.TTL,
		FallbackRate: cfg.Rates.FallbackRate,
		UTCOffset:    cfg.Rates.UTCOffset,
		Timeout:      cfg.Rates.Timeout,
	}, log)

	// Result cache for overview computations
	resultCache := cache.NewResultCache(log)
	defer func() {
		if err := resultCache.Close(); err != nil {
			log.Error("Error closing result cache", zap.Error(err))
		}
	}()

	// Application services
	orderService := procurementapp.NewOrderService(
		erpClient,
		rateProvider,
		resultCache,
		cfg.Cache.OverviewTTL,
		cfg.ERP.BatchLimit,
		log,
	)
	usageEngine := creditapp.NewUsageEngine(erpClient, rateProvider, log)

	// Gin engine and middleware chain
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(middleware.RequestID())
	engine.Use(logger.GinMiddleware(log))
	engine.Use(logger.Recovery(log))

	corsConfig := middleware.DefaultCORSConfig()
	corsConfig.AllowOrigins = cfg.HTTP.CORSAllowOrigins
	engine.Use(middleware.CORSWithConfig(corsConfig))

	// Handlers and routes
	systemHandler := handler.NewSystemHandler(cfg.App.Name)
	engine.GET("/health", systemHandler.Health)

	r := router.NewRouter(engine, router.WithAPIVersion("v1"))
	r.Register(handler.NewPurchaseOrderHandler(orderService)).
		Register(handler.NewCreditLineHandler(usageEngine)).
		Register(systemHandler)
	r.Setup()

	// Create HTTP server with config
	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	// Start server in goroutine
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}
