// This file is used to create or update the job ledger schema without
// starting the API server
// How to run:
// go run cmd/migrate/main.go
package main

import (
	"github.com/joho/godotenv"

	"github.com/celestiaorg/cloudjob/internal/config"
	"github.com/celestiaorg/cloudjob/internal/db"
	"github.com/celestiaorg/cloudjob/internal/logger"
)

func main() {
	// A missing .env is fine, the environment may already be set
	_ = godotenv.Load()
	logger.InitializeAndConfigure()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}

	// New migrates the schema before returning
	database, err := db.New(db.OptionsFromConfig(cfg.DB))
	if err != nil {
		logger.Fatalf("Failed to migrate database: %v", err)
	}
	if sqlDB, err := database.DB(); err == nil {
		_ = sqlDB.Close()
	}

	logger.Infof("Job ledger schema is up to date (%s)", cfg.DB.Driver)
}
