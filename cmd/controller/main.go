// Package main is the entry point for the taskplane controller.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"taskplane/internal/cache"
	"taskplane/internal/config"
	"taskplane/internal/controller"
	"taskplane/internal/executor"
	"taskplane/internal/goalstate"
	"taskplane/internal/logger"
	"taskplane/internal/observability"
	"taskplane/internal/store/postgres"
)

func main() {
	migrateFlag := flag.Bool("migrate", false, "Run database migrations before starting")
	flag.Parse()

	// Load Config
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	slogger := logger.New()

	// Setup Database
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := postgres.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to DB: %v", err)
	}
	defer store.Close()

	// Run migrations if requested
	if *migrateFlag {
		log.Println("Running database migrations...")
		if err := postgres.Migrate(store.DB()); err != nil {
			log.Fatalf("Migration failed: %v", err)
		}
		log.Println("Migrations completed successfully")
	}

	// Tracing
	shutdownTracer, err := observability.Init(ctx, "taskplane-controller", cfg.OTELEndpoint)
	if err != nil {
		log.Fatalf("Failed to init tracing: %v", err)
	}
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			log.Printf("Failed to shutdown tracer: %v", err)
		}
	}()

	// Metrics
	metricsHandler, shutdownMetrics, err := observability.InitMetrics()
	if err != nil {
		log.Fatalf("Failed to init metrics: %v", err)
	}
	defer func() {
		if err := shutdownMetrics(context.Background()); err != nil {
			log.Printf("Failed to shutdown metrics: %v", err)
		}
	}()

	// Execution layer
	exec, err := buildExecutor(cfg, slogger)
	if err != nil {
		log.Fatalf("Failed to build execution layer: %v", err)
	}

	taskCache := cache.New()
	if err := observability.RegisterCacheGauge(taskCache.Len); err != nil {
		log.Printf("Failed to register cache gauge: %v", err)
	}

	// Reconciliation driver
	driver := goalstate.New(store, taskCache, exec, slogger, goalstate.Config{
		SweepInterval: cfg.SweepInterval,
		ActionTimeout: cfg.ActionTimeout,
	})
	if err := driver.Recover(ctx); err != nil {
		log.Fatalf("Failed to recover instance registry: %v", err)
	}
	go func() {
		if err := driver.Run(ctx); err != nil && err != context.Canceled {
			log.Printf("Driver stopped: %v", err)
		}
	}()

	// Start Server
	addr := fmt.Sprintf(":%d", cfg.HTTPPort)
	srv := controller.New(addr, store, driver, taskCache, exec, slogger, controller.Options{
		RateLimitRPS:   cfg.RateLimitRPS,
		RateLimitBurst: cfg.RateLimitBurst,
		Metrics:        metricsHandler,
	})

	go func() {
		log.Printf("Taskplane Controller starting on %s", addr)
		if err := srv.Run(ctx); err != nil {
			log.Printf("Server stopped: %v", err)
		}
	}()

	// Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down controller...")
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}
	log.Println("Server exited properly")
}

func buildExecutor(cfg *config.Config, slogger *slog.Logger) (executor.ExecutionLayer, error) {
	switch cfg.Executor {
	case "local":
		return executor.NewLocalExecutor(cfg.SandboxRoot), nil
	case "docker":
		return executor.NewDockerExecutor()
	case "kubernetes":
		return executor.NewKubernetesExecutor(executor.KubernetesConfig{}, slogger)
	default:
		return nil, fmt.Errorf("unknown executor %q", cfg.Executor)
	}
}
