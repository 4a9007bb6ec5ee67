package rating

import (
	"context"
	"errors"
	"log"
	"sync/atomic"
	"time"

	"github.com/theodi/contract-radar/internal/db"
	"github.com/theodi/contract-radar/internal/models"
)

// BatchPolicy controls batch sizing and the pauses that keep the model
// API under its rate limits.
type BatchPolicy struct {
	BatchSize             int
	DelayBetweenContracts time.Duration
	DelayBetweenBatches   time.Duration
}

func DefaultBatchPolicy() BatchPolicy {
	return BatchPolicy{
		BatchSize:             5,
		DelayBetweenContracts: 2 * time.Second,
		DelayBetweenBatches:   5 * time.Second,
	}
}

// Rater rates one contract by item id.
type Rater interface {
	Rate(ctx context.Context, itemID string) (*models.AIRating, error)
}

// BatchStore is the persistence surface the coordinator needs.
type BatchStore interface {
	GetOrganisation(ctx context.Context) (*models.Organisation, error)
	FindUnrated(ctx context.Context, limit int) ([]models.ContractRecord, error)
	CountUnrated(ctx context.Context) (int, error)
}

// BatchResult summarises one RateAll run.
type BatchResult struct {
	Processed int    `json:"processed"`
	Rated     int    `json:"rated"`
	Errors    int    `json:"errors"`
	Skipped   bool   `json:"skipped"`
	Reason    string `json:"reason,omitempty"`
}

// Coordinator walks all unrated contracts in batches. At most one run
// is active at a time; overlapping calls return a skipped result
// instead of queueing.
type Coordinator struct {
	store  BatchStore
	rater  Rater
	policy BatchPolicy

	running atomic.Bool

	// sleep is injectable for tests; defaults to time.Sleep.
	sleep func(time.Duration)
}

func NewCoordinator(store BatchStore, rater Rater, policy BatchPolicy) *Coordinator {
	return &Coordinator{
		store:  store,
		rater:  rater,
		policy: policy,
		sleep:  time.Sleep,
	}
}

// RateAll rates every unrated contract, one batch at a time. Per-item
// failures are counted and the run continues; the guard is always
// released, including on error paths.
func (c *Coordinator) RateAll(ctx context.Context) (*BatchResult, error) {
	if !c.running.CompareAndSwap(false, true) {
		log.Printf("[Batch] Rating run already in progress, skipping")
		return &BatchResult{Skipped: true, Reason: "rating already in progress"}, nil
	}
	defer c.running.Store(false)

	if _, err := c.store.GetOrganisation(ctx); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			log.Printf("[Batch] No organisation profile, nothing to rate against")
			return &BatchResult{Skipped: true, Reason: "no organisation profile configured"}, nil
		}
		return nil, err
	}

	result := &BatchResult{}
	for {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		batch, err := c.store.FindUnrated(ctx, c.policy.BatchSize)
		if err != nil {
			return result, err
		}
		if len(batch) == 0 {
			break
		}

		log.Printf("[Batch] Rating batch of %d contracts", len(batch))
		for _, contract := range batch {
			result.Processed++
			if _, err := c.rater.Rate(ctx, contract.ItemID); err != nil {
				result.Errors++
				log.Printf("[Batch] Failed to rate %s: %v", contract.ItemID, err)
			} else {
				result.Rated++
			}
			c.sleep(c.policy.DelayBetweenContracts)
		}

		remaining, err := c.store.CountUnrated(ctx)
		if err != nil {
			return result, err
		}
		if remaining == 0 {
			break
		}
		c.sleep(c.policy.DelayBetweenBatches)
	}

	log.Printf("[Batch] Rating run complete: %d processed, %d rated, %d errors",
		result.Processed, result.Rated, result.Errors)
	return result, nil
}
