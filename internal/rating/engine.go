package rating

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/theodi/contract-radar/internal/db"
	"github.com/theodi/contract-radar/internal/models"
)

var (
	// ErrContractNotFound means the item id resolves to no stored contract.
	ErrContractNotFound = errors.New("contract not found")
	// ErrNoOrganisation means no organisation profile has been configured,
	// so there is nothing to rate against.
	ErrNoOrganisation = errors.New("no organisation profile configured")
)

// Generator produces a raw model response for a rating prompt.
type Generator interface {
	GenerateRating(ctx context.Context, prompt string) (string, error)
}

// Store is the persistence surface the engine needs.
type Store interface {
	GetContract(ctx context.Context, itemID string) (*models.ContractRecord, error)
	GetOrganisation(ctx context.Context) (*models.Organisation, error)
	ApplyRating(ctx context.Context, itemID string, rating models.RatingResult, ratedBy string, ratedAt time.Time) error
}

// Engine rates a single contract against the organisation profile.
type Engine struct {
	store     Store
	generator Generator

	// Now is injectable for tests; defaults to time.Now.
	Now func() time.Time
}

func NewEngine(store Store, generator Generator) *Engine {
	return &Engine{
		store:     store,
		generator: generator,
		Now:       time.Now,
	}
}

// Rate loads the contract and organisation profile, asks the model for
// a rating and persists the outcome. A model reply that cannot be
// parsed still persists the degraded default rating rather than
// failing, so a flaky model never leaves a contract permanently
// unratable.
func (e *Engine) Rate(ctx context.Context, itemID string) (*models.AIRating, error) {
	contract, err := e.store.GetContract(ctx, itemID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrContractNotFound, itemID)
		}
		return nil, fmt.Errorf("loading contract %s: %w", itemID, err)
	}

	org, err := e.store.GetOrganisation(ctx)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, ErrNoOrganisation
		}
		return nil, fmt.Errorf("loading organisation profile: %w", err)
	}

	prompt := buildRatingPrompt(contract, org)

	raw, err := e.generator.GenerateRating(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("generating rating for %s: %w", itemID, err)
	}

	result, ok := parseRatingResponse(raw)
	if !ok {
		log.Printf("[Rating] Could not parse model response for %s, storing default rating", itemID)
	}

	ratedAt := e.Now()
	if err := e.store.ApplyRating(ctx, itemID, result, "AI", ratedAt); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrContractNotFound, itemID)
		}
		return nil, fmt.Errorf("saving rating for %s: %w", itemID, err)
	}

	log.Printf("[Rating] Rated %s: score %.0f (%s)", itemID, result.Score, result.Relevance)

	return &models.AIRating{
		Score:                  result.Score,
		Relevance:              result.Relevance,
		Explanation:            result.Explanation,
		OpportunityDescription: result.OpportunityDescription,
		MatchReasons:           result.MatchReasons,
		RatedAt:                ratedAt,
		RatedBy:                "AI",
	}, nil
}
