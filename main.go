package main

import (
	"context"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"goveg/internal/config"
	"goveg/internal/container"
	"goveg/internal/log"
)

func main() {
	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil {
		log.Info("No .env file found, using system environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if err := log.Init(cfg.Debug); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer log.Sync()

	appContainer, err := container.New(cfg)
	if err != nil {
		log.Fatalf("Failed to create application container: %v", err)
	}
	defer appContainer.Shutdown(context.Background())

	// The server process never opens an image archive; surveys run
	// through the CLI and land in the shared ledger.
	cfg.Paths.ArchivePath = ""

	if err := appContainer.Init(context.Background()); err != nil {
		log.Fatalf("Failed to initialize container: %v", err)
	}

	log.Infof("Starting goveg results API on port %s", cfg.Server.Port)
	log.Fatal(appContainer.APIServer.Start(":" + cfg.Server.Port))
}
