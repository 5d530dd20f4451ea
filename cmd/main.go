package main

import (
	"context"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/celestiaorg/cloudjob/internal/app"
	"github.com/celestiaorg/cloudjob/internal/config"
	"github.com/celestiaorg/cloudjob/internal/db"
	"github.com/celestiaorg/cloudjob/internal/db/repos"
	"github.com/celestiaorg/cloudjob/internal/logger"
	"github.com/celestiaorg/cloudjob/internal/services"
	"github.com/celestiaorg/cloudjob/pkg/api/v1/handlers"
)

const shutdownTimeout = 30 * time.Second

func main() {
	// A missing .env is fine, the environment may already be set
	_ = godotenv.Load()
	logger.InitializeAndConfigure()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}
	logger.SetLevel(cfg.LogLevel)

	database, err := db.New(db.OptionsFromConfig(cfg.DB))
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}

	jobRepo := repos.NewJobRepository(database)
	jobHandler := handlers.NewJobHandler(jobRepo, handlers.ProviderCompleters(cfg, jobRepo))
	server := app.NewApp(jobHandler)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup
	if cfg.DB.Retention > 0 {
		wg.Add(1)
		go services.LaunchPurgeWorker(ctx, &wg, jobRepo, cfg.DB.Retention, cfg.DB.PurgeInterval)
	}

	go func() {
		logger.Infof("Listening on :%s", cfg.Port)
		if err := server.Listen(":" + cfg.Port); err != nil {
			logger.Errorf("Server stopped: %v", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down...")
	if err := server.ShutdownWithTimeout(shutdownTimeout); err != nil {
		logger.Errorf("Server shutdown failed: %v", err)
	}
	wg.Wait()

	if sqlDB, err := database.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
