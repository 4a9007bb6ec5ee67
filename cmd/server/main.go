package main

import (
	"context"
	"log"
	"os"

	"github.com/theodi/contract-radar/internal/api"
	"github.com/theodi/contract-radar/internal/config"
	"github.com/theodi/contract-radar/internal/db"
	"github.com/theodi/contract-radar/internal/feed"
	"github.com/theodi/contract-radar/internal/hubspot"
	"github.com/theodi/contract-radar/internal/ingest"
	"github.com/theodi/contract-radar/internal/rating"
	"github.com/theodi/contract-radar/internal/scheduler"
)

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8081"
	}

	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
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

	store := db.NewStore(pool)
	feedClient := feed.NewClient(cfg.Feed.BaseURL)
	pipeline := ingest.NewPipeline(store, feedClient, cfg.Keywords.InitialImport)

	generator, err := rating.NewAnthropicClient(cfg.Rating.AnthropicModel)
	if err != nil {
		log.Fatalf("Failed to create Anthropic client: %v", err)
	}
	engine := rating.NewEngine(store, generator)

	policy := rating.BatchPolicy{
		BatchSize:             cfg.Rating.BatchSize,
		DelayBetweenContracts: cfg.Rating.DelayBetweenContracts(),
		DelayBetweenBatches:   cfg.Rating.DelayBetweenBatches(),
	}
	coordinator := rating.NewCoordinator(store, engine, policy)

	// HubSpot is optional; the deal endpoints report unavailable when
	// the key is missing.
	var hubspotClient *hubspot.Client
	if os.Getenv("HUBSPOT_API_KEY") != "" {
		hubspotClient, err = hubspot.NewClient(cfg.HubSpot.Pipeline, cfg.HubSpot.DealStage)
		if err != nil {
			log.Fatalf("Failed to create HubSpot client: %v", err)
		}
	} else {
		log.Print("HUBSPOT_API_KEY is not set; HubSpot deal endpoints disabled")
	}

	if result, err := pipeline.CheckAndRunInitialImport(ctx); err != nil {
		log.Printf("Initial import failed: %v", err)
	} else if !result.Skipped {
		log.Printf("Initial import: %d processed, %d new", result.Stats.Processed, result.Stats.New)
	}

	sched, err := scheduler.New(pipeline, coordinator, store,
		cfg.Schedule.Timezone, cfg.Schedule.Ingest, cfg.Schedule.Rating, cfg.Keywords.Default)
	if err != nil {
		log.Fatalf("Failed to create scheduler: %v", err)
	}
	if err := sched.Start(); err != nil {
		log.Fatalf("Failed to start scheduler: %v", err)
	}
	defer sched.Stop()

	srv := api.NewServer(pool, pipeline, engine, coordinator, hubspotClient, cfg.Keywords.Default)
	log.Printf("Server starting on port %s...", port)
	if err := srv.Start(port); err != nil {
		log.Fatal(err)
	}
}
