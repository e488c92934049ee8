package main

import (
	"context"
	"log"
	"os"

	"github.com/mailhaven/core/internal/api"
	"github.com/mailhaven/core/internal/cli"
	"github.com/mailhaven/core/internal/config"
	"github.com/mailhaven/core/internal/database"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		log.Fatalf("Failed to create data directory: %v", err)
	}

	db, err := database.Initialize(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	// CLI mode when invoked with a subcommand
	if len(os.Args) > 1 {
		cli.Execute(db, cfg)
		return
	}

	router, authManager, scheduler, err := api.SetupRouter(db, cfg)
	if err != nil {
		log.Fatalf("Failed to setup router: %v", err)
	}

	scheduler.Start(context.Background())
	defer scheduler.Stop()

	log.Printf("Starting MailHaven server on port %s", cfg.APIPort)
	log.Printf("Data directory: %s", cfg.DataDir)
	log.Printf("Database path: %s", cfg.DatabasePath)
	log.Printf("API Key: %s", authManager.APIKeyManager.GetCurrentKey())
	if err := router.Run(":" + cfg.APIPort); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
