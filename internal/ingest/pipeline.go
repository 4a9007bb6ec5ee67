package ingest

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/theodi/contract-radar/internal/feed"
	"github.com/theodi/contract-radar/internal/models"
)

// Searcher queries the external notice feed for one keyword.
type Searcher interface {
	Search(ctx context.Context, keyword string) (*feed.SearchResult, error)
}

// ContractStore is the slice of the store the pipeline needs.
type ContractStore interface {
	UpsertContract(ctx context.Context, c models.ContractRecord) (created bool, err error)
	CountContracts(ctx context.Context) (int, error)
	GetOrganisation(ctx context.Context) (*models.Organisation, error)
}

// Stats aggregates an ingestion run across keywords.
type Stats struct {
	Processed int `json:"processed"`
	New       int `json:"new"`
	Updated   int `json:"updated"`
}

type Pipeline struct {
	Store ContractStore
	Feed  Searcher

	// InitialKeywords seed the first import when the store is empty.
	InitialKeywords []string
}

func NewPipeline(store ContractStore, searcher Searcher, initialKeywords []string) *Pipeline {
	return &Pipeline{
		Store:           store,
		Feed:            searcher,
		InitialKeywords: initialKeywords,
	}
}

// Ingest searches the feed for each keyword in order and upserts every
// returned notice. A keyword with zero hits is skipped; a failed upsert
// for one notice is logged and does not stall the rest of the batch.
// A feed failure aborts the whole call including later keywords: a
// failing query is a caller or transport problem, not a data anomaly,
// so it is the one place failure is not isolated.
func (p *Pipeline) Ingest(ctx context.Context, keywords []string) (Stats, error) {
	stats := Stats{}

	for _, keyword := range keywords {
		log.Printf("[Ingest] Searching for keyword: %s", keyword)
		result, err := p.Feed.Search(ctx, keyword)
		if err != nil {
			return stats, fmt.Errorf("search for keyword %q: %w", keyword, err)
		}

		if len(result.Notices) == 0 {
			log.Printf("[Ingest] No contracts found for keyword: %s", keyword)
			continue
		}

		processed := 0
		newContracts := 0
		updated := 0

		for _, notice := range result.Notices {
			record := FromNotice(notice)
			created, err := p.Store.UpsertContract(ctx, record)
			if err != nil {
				log.Printf("[Ingest] Error processing contract %s: %v", notice.ID, err)
				continue
			}
			if created {
				newContracts++
			} else {
				updated++
			}
			processed++
		}

		stats.Processed += processed
		stats.New += newContracts
		stats.Updated += updated

		log.Printf("[Ingest] Processed %d contracts for keyword %q. New: %d, Updated: %d",
			processed, keyword, newContracts, updated)
	}

	log.Printf("[Ingest] Total processed: %d. Total new: %d, Total updated: %d",
		stats.Processed, stats.New, stats.Updated)
	return stats, nil
}

// InitialImportResult reports what the startup import decided.
type InitialImportResult struct {
	Skipped       bool  `json:"skipped,omitempty"`
	ExistingCount int   `json:"existingCount,omitempty"`
	Stats         Stats `json:"stats"`
}

// CheckAndRunInitialImport runs a first ingestion pass when the store
// is empty, using the organisation's keywords or the configured seed
// set. A populated store makes this a no-op.
func (p *Pipeline) CheckAndRunInitialImport(ctx context.Context) (InitialImportResult, error) {
	count, err := p.Store.CountContracts(ctx)
	if err != nil {
		return InitialImportResult{}, fmt.Errorf("counting contracts: %w", err)
	}

	if count > 0 {
		log.Printf("[Ingest] Database already has %d contracts. Skipping initial import.", count)
		return InitialImportResult{Skipped: true, ExistingCount: count}, nil
	}

	keywords := p.InitialKeywords
	if org, err := p.Store.GetOrganisation(ctx); err == nil && len(org.SearchKeywords) > 0 {
		keywords = org.SearchKeywords
	}

	log.Printf("[Ingest] Database is empty. Running initial import with keywords: %s", strings.Join(keywords, ", "))
	stats, err := p.Ingest(ctx, keywords)
	if err != nil {
		return InitialImportResult{Stats: stats}, err
	}

	log.Printf("[Ingest] Initial import completed. Processed: %d, New: %d, Updated: %d",
		stats.Processed, stats.New, stats.Updated)
	return InitialImportResult{Stats: stats}, nil
}
