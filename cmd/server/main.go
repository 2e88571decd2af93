package main

import (
	"context"
	"log"
	"os"

	"github.com/david/tender-finder/internal/api"
	"github.com/david/tender-finder/internal/db"
	"github.com/david/tender-finder/internal/scrape"
)

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8081"
	}

	ctx := context.Background()
	pool, err := db.Connect(ctx)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()

	if err := db.ApplyMigrations(ctx, pool); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}

	registry, err := scrape.LoadRegistry("internal/scrape/config/portals.yaml")
	if err != nil {
		log.Fatalf("Failed to load portal registry: %v", err)
	}

	srv := api.NewServer(pool, registry)
	log.Printf("Server starting on port %s...", port)
	if err := srv.Start(port); err != nil {
		log.Fatal(err)
	}
}
