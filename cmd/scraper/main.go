package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/david/tender-finder/internal/db"
	"github.com/david/tender-finder/internal/models"
	"github.com/david/tender-finder/internal/scrape"
	"github.com/google/uuid"
)

func main() {
	var (
		source        = flag.String("source", "", "portal key to scrape, or \"all\"")
		maxItems      = flag.Int("max-items", 80, "global item cap (0 = unlimited)")
		webhookURL    = flag.String("webhook-url", os.Getenv("WEBHOOK_URL"), "webhook sink URL (empty = dataset-only run)")
		webhookSecret = flag.String("webhook-secret", os.Getenv("WEBHOOK_SECRET"), "shared secret sent on each batch")
		headless      = flag.Bool("headless", true, "run the browser headless")
		debug         = flag.Bool("debug", false, "slower, observable navigation pacing")
		outputDir     = flag.String("output-dir", "./output", "directory for run output files")
		sourcesFile   = flag.String("sources-file", "", "JSON file of {name,url} descriptors for tenant derivation")
		useDB         = flag.Bool("db", false, "persist results to Postgres (DATABASE_URL)")
	)
	flag.Parse()

	if *source == "" {
		log.Fatal("the -source flag is required")
	}

	reg, err := scrape.LoadRegistry("internal/scrape/config/portals.yaml")
	if err != nil {
		log.Fatalf("failed to load portal registry: %v", err)
	}

	opts := scrape.Options{
		Source:        *source,
		MaxItems:      *maxItems,
		WebhookURL:    *webhookURL,
		WebhookSecret: *webhookSecret,
		Headless:      *headless,
		Debug:         *debug,
	}

	if *sourcesFile != "" {
		descriptors, err := loadSources(*sourcesFile)
		if err != nil {
			log.Fatalf("failed to read sources file: %v", err)
		}
		opts.Sources = descriptors
		log.Printf("loaded %d source descriptors from %s", len(descriptors), *sourcesFile)
	}

	ctx := context.Background()
	runID := uuid.New().String()

	var store *db.Store
	if *useDB {
		pool, err := db.Connect(ctx)
		if err != nil {
			log.Fatalf("db connect failed: %v", err)
		}
		defer pool.Close()
		if err := db.ApplyMigrations(ctx, pool); err != nil {
			log.Fatalf("migrations failed: %v", err)
		}
		store = db.NewStore(pool)
		if err := store.StartRun(ctx, runID, *source, *webhookURL); err != nil {
			log.Printf("could not record run start: %v", err)
		}
	}

	var saver scrape.Saver
	if store != nil {
		saver = store
	}

	result, err := scrape.RunJob(ctx, reg, opts, saver)
	if err != nil {
		if store != nil {
			_ = store.CompleteRun(ctx, runID, "failed", models.RunSummary{Source: *source})
		}
		log.Fatalf("run failed: %v", err)
	}

	if store != nil {
		if err := store.CompleteRun(ctx, runID, "completed", result.Summary); err != nil {
			log.Printf("could not record run completion: %v", err)
		}
	}

	dir := filepath.Join(*outputDir, runID)
	if err := writeJSON(filepath.Join(dir, "opportunities.json"), result.Items); err != nil {
		log.Fatalf("failed to write dataset: %v", err)
	}
	if err := writeJSON(filepath.Join(dir, "summary.json"), result.Summary); err != nil {
		log.Fatalf("failed to write summary: %v", err)
	}

	log.Printf("run %s complete: %d items, %d/%d batches delivered, %d targets failed",
		runID, result.Summary.ItemsFound, result.Summary.SuccessfulBatches,
		result.Summary.TotalBatches, result.Stats.TargetsFailed)
	fmt.Println(dir)
}

func loadSources(path string) ([]scrape.SourceDescriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var out []scrape.SourceDescriptor
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
