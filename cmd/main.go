package main

import (
	"log"
	"os"

	"github.com/joho/godotenv"

	"github.com/kritiqo/core/internal/api"
	"github.com/kritiqo/core/internal/cli"
	"github.com/kritiqo/core/internal/config"
	"github.com/kritiqo/core/internal/database"
	"github.com/kritiqo/core/internal/logging"
)

func main() {
	// .env is optional, real deployments use environment variables
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		log.Fatalf("Failed to create data directory: %v", err)
	}

	db, err := database.Initialize(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	// CLI mode when invoked with a subcommand
	if len(os.Args) > 1 {
		cli.Execute(db, cfg)
		return
	}

	logger := logging.New(cfg.LogLevel)

	router, authManager, err := api.SetupRouter(db, cfg, logger)
	if err != nil {
		log.Fatalf("Failed to setup router: %v", err)
	}

	logger.Infof("Starting Kritiqo server on port %s", cfg.APIPort)
	logger.Infof("Data directory: %s", cfg.DataDir)
	if cfg.DatabaseDriver == "sqlite" {
		logger.Infof("Database path: %s", cfg.DatabasePath)
	}
	logger.Infof("API Key: %s", authManager.APIKeyManager.GetCurrentKey())
	if err := router.Run(":" + cfg.APIPort); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
