package scheduler

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/theodi/contract-radar/internal/ingest"
	"github.com/theodi/contract-radar/internal/models"
	"github.com/theodi/contract-radar/internal/rating"
)

// Ingester runs a full keyword ingestion pass.
type Ingester interface {
	Ingest(ctx context.Context, keywords []string) (ingest.Stats, error)
}

// BatchRater rates every unrated contract.
type BatchRater interface {
	RateAll(ctx context.Context) (*rating.BatchResult, error)
}

// ProfileSource supplies the organisation profile whose search keywords
// drive scheduled ingestion.
type ProfileSource interface {
	GetOrganisation(ctx context.Context) (*models.Organisation, error)
}

// Scheduler owns the recurring ingestion and rating jobs. Job failures
// are logged, never fatal; the next tick runs regardless.
type Scheduler struct {
	ingester Ingester
	rater    BatchRater
	profiles ProfileSource

	defaultKeywords []string
	ingestSpec      string
	ratingSpec      string

	cron *cron.Cron
}

// New builds a scheduler in the given timezone with standard 5-field
// cron specs for the ingestion and rating jobs.
func New(ingester Ingester, rater BatchRater, profiles ProfileSource, timezone, ingestSpec, ratingSpec string, defaultKeywords []string) (*Scheduler, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("loading timezone %q: %w", timezone, err)
	}

	return &Scheduler{
		ingester:        ingester,
		rater:           rater,
		profiles:        profiles,
		defaultKeywords: defaultKeywords,
		ingestSpec:      ingestSpec,
		ratingSpec:      ratingSpec,
		cron:            cron.New(cron.WithLocation(loc)),
	}, nil
}

// Start registers both jobs and starts the cron loop in its own
// goroutine.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.ingestSpec, s.runIngest); err != nil {
		return fmt.Errorf("scheduling ingest job: %w", err)
	}
	if _, err := s.cron.AddFunc(s.ratingSpec, s.runRating); err != nil {
		return fmt.Errorf("scheduling rating job: %w", err)
	}

	s.cron.Start()
	log.Printf("[Scheduler] Started (ingest: %s, rating: %s)", s.ingestSpec, s.ratingSpec)
	return nil
}

// Stop halts the cron loop and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

func (s *Scheduler) runIngest() {
	ctx := context.Background()

	keywords := s.searchKeywords(ctx)
	log.Printf("[Scheduler] Daily ingestion starting with keywords %v", keywords)

	stats, err := s.ingester.Ingest(ctx, keywords)
	if err != nil {
		log.Printf("[Scheduler] Ingestion failed: %v", err)
		return
	}
	log.Printf("[Scheduler] Ingestion done: %d processed, %d new, %d updated",
		stats.Processed, stats.New, stats.Updated)
}

func (s *Scheduler) runRating() {
	ctx := context.Background()

	log.Printf("[Scheduler] Scheduled rating run starting")
	result, err := s.rater.RateAll(ctx)
	if err != nil {
		log.Printf("[Scheduler] Rating run failed: %v", err)
		return
	}
	if result.Skipped {
		log.Printf("[Scheduler] Rating run skipped: %s", result.Reason)
	}
}

// TriggerManualSearch runs one ingestion pass for a single keyword,
// falling back to the profile's keywords when none is given.
func (s *Scheduler) TriggerManualSearch(ctx context.Context, keyword string) (ingest.Stats, error) {
	keywords := []string{keyword}
	if keyword == "" {
		keywords = s.searchKeywords(ctx)
	}
	return s.ingester.Ingest(ctx, keywords)
}

// searchKeywords resolves the active keyword set: the organisation
// profile's keywords when present, otherwise the configured defaults.
func (s *Scheduler) searchKeywords(ctx context.Context) []string {
	org, err := s.profiles.GetOrganisation(ctx)
	if err == nil && len(org.SearchKeywords) > 0 {
		return org.SearchKeywords
	}
	return s.defaultKeywords
}
