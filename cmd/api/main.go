package main

import (
	"log"

	"github.com/joho/godotenv"

	"transcssr/adapters/api"
	"transcssr/adapters/postgres"
	"transcssr/adapters/registry"
	"transcssr/internal/config"
	"transcssr/ports"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	params, err := cfg.Params()
	if err != nil {
		log.Fatalf("Invalid inference parameters: %v", err)
	}

	var store ports.MachineStore
	if cfg.Database.URL != "" {
		db, err := postgres.Connect(cfg.Database.URL)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer db.Close()
		if err := postgres.Migrate(db); err != nil {
			log.Fatalf("Failed to migrate database: %v", err)
		}
		store = postgres.NewMachineRepository(db)
		log.Println("Using postgres machine registry")
	} else {
		store = registry.NewMemoryStore()
		log.Println("DATABASE_URL not set, using in-memory machine registry")
	}

	server := api.NewServer(api.Config{Port: cfg.Server.Port, Params: params}, store)
	if err := server.Start(cfg.Server.Port); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
