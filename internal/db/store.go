package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/theodi/contract-radar/internal/models"
)

// ErrNotFound is returned when a contract or organisation row does not
// exist. Callers branch on it; it is never wrapped with row details.
var ErrNotFound = errors.New("not found")

type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// unratedPredicate selects contracts the rating pass still has to
// visit. ApplyRating always writes ai_score, so NULL means unrated.
const unratedPredicate = "ai_score IS NULL"

// matchesPredicate selects contracts worth a human look.
const matchesPredicate = "ai_relevance IN ('high', 'excellent')"

// selectCols is the comprehensive column list for all contract queries.
const selectCols = `item_id, COALESCE(parent_id,''), COALESCE(notice_identifier,''), title,
	COALESCE(description,''), COALESCE(cpv_description,''), organisation_name, COALESCE(sector,''),
	COALESCE(cpv_codes,''), COALESCE(region,''), COALESCE(region_text,''), COALESCE(postcode,''),
	COALESCE(coordinates,''), value_low, value_high, awarded_value, COALESCE(awarded_supplier,''),
	published_date, deadline_date, awarded_date, approach_market_date, start_date, end_date,
	COALESCE(notice_type,''), COALESCE(notice_status,''), is_sub_notice, is_suitable_for_sme,
	is_suitable_for_vco, created_at, updated_at,
	ai_score, COALESCE(ai_relevance,''), COALESCE(ai_explanation,''),
	COALESCE(ai_opportunity_description,''), ai_match_reasons, ai_rated_at, COALESCE(ai_rated_by,''),
	reviewer_score, COALESCE(reviewer_relevance,''), COALESCE(reviewer_comments,''),
	reviewer_rated_at, COALESCE(reviewer_rated_by,''), COALESCE(reviewer_name,''),
	hubspot_deal_id, COALESCE(hubspot_deal_url,''), COALESCE(hubspot_deal_name,''),
	COALESCE(hubspot_deal_amount, 0), COALESCE(hubspot_deal_stage,''), hubspot_created_at,
	COALESCE(hubspot_created_by,''), hubspot_last_synced`

func scanContract(scan func(dest ...interface{}) error) (models.ContractRecord, error) {
	var c models.ContractRecord
	var aiScore *float64
	var aiRelevance, aiExplanation, aiOpportunity, aiRatedBy string
	var aiMatchReasons []string
	var aiRatedAt *time.Time
	var reviewerScore *int
	var reviewerRelevance, reviewerComments, reviewerRatedBy, reviewerName string
	var reviewerRatedAt *time.Time
	var dealID *string
	var dealURL, dealName, dealStage, dealCreatedBy string
	var dealAmount float64
	var dealCreatedAt, dealLastSynced *time.Time

	err := scan(
		&c.ItemID, &c.ParentID, &c.NoticeIdentifier, &c.Title,
		&c.Description, &c.CpvDescription, &c.OrganisationName, &c.Sector,
		&c.CpvCodes, &c.Region, &c.RegionText, &c.Postcode,
		&c.Coordinates, &c.ValueLow, &c.ValueHigh, &c.AwardedValue, &c.AwardedSupplier,
		&c.PublishedDate, &c.DeadlineDate, &c.AwardedDate, &c.ApproachMarketDate, &c.StartDate, &c.EndDate,
		&c.NoticeType, &c.NoticeStatus, &c.IsSubNotice, &c.IsSuitableForSme,
		&c.IsSuitableForVco, &c.CreatedAt, &c.UpdatedAt,
		&aiScore, &aiRelevance, &aiExplanation,
		&aiOpportunity, &aiMatchReasons, &aiRatedAt, &aiRatedBy,
		&reviewerScore, &reviewerRelevance, &reviewerComments,
		&reviewerRatedAt, &reviewerRatedBy, &reviewerName,
		&dealID, &dealURL, &dealName,
		&dealAmount, &dealStage, &dealCreatedAt,
		&dealCreatedBy, &dealLastSynced,
	)
	if err != nil {
		return c, err
	}

	if aiScore != nil {
		rating := models.AIRating{
			Score:                  *aiScore,
			Relevance:              aiRelevance,
			Explanation:            aiExplanation,
			OpportunityDescription: aiOpportunity,
			MatchReasons:           aiMatchReasons,
			RatedBy:                aiRatedBy,
		}
		if aiRatedAt != nil {
			rating.RatedAt = *aiRatedAt
		}
		c.AIRating = &rating
	}

	if reviewerScore != nil {
		rating := models.ReviewerRating{
			Score:        *reviewerScore,
			Relevance:    reviewerRelevance,
			Comments:     reviewerComments,
			RatedBy:      reviewerRatedBy,
			ReviewerName: reviewerName,
		}
		if reviewerRatedAt != nil {
			rating.RatedAt = *reviewerRatedAt
		}
		c.ReviewerRating = &rating
	}

	if dealID != nil {
		deal := models.HubSpotDeal{
			DealID:     *dealID,
			DealURL:    dealURL,
			DealName:   dealName,
			DealAmount: dealAmount,
			DealStage:  dealStage,
			CreatedBy:  dealCreatedBy,
		}
		if dealCreatedAt != nil {
			deal.CreatedAt = *dealCreatedAt
		}
		if dealLastSynced != nil {
			deal.LastSynced = *dealLastSynced
		}
		c.HubSpotDeal = &deal
	}

	return c, nil
}

// UpsertContract inserts or fully overwrites the descriptive fields of
// a contract keyed by its external item id, and reports whether the row
// was created. The created flag comes from the same atomic statement as
// the write (xmax = 0 only for freshly inserted rows), so concurrent
// upserts for one item id cannot produce duplicates or double-count a
// create. Rating and deal columns are left untouched.
func (s *Store) UpsertContract(ctx context.Context, c models.ContractRecord) (bool, error) {
	query := `
		INSERT INTO contracts (
			item_id, parent_id, notice_identifier, title, description,
			cpv_description, organisation_name, sector, cpv_codes, region,
			region_text, postcode, coordinates, value_low, value_high,
			awarded_value, awarded_supplier, published_date, deadline_date, awarded_date,
			approach_market_date, start_date, end_date, notice_type, notice_status,
			is_sub_notice, is_suitable_for_sme, is_suitable_for_vco
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9, $10,
			$11, $12, $13, $14, $15,
			$16, $17, $18, $19, $20,
			$21, $22, $23, $24, $25,
			$26, $27, $28
		)
		ON CONFLICT (item_id) DO UPDATE SET
			updated_at = NOW(),
			parent_id = EXCLUDED.parent_id,
			notice_identifier = EXCLUDED.notice_identifier,
			title = EXCLUDED.title,
			description = EXCLUDED.description,
			cpv_description = EXCLUDED.cpv_description,
			organisation_name = EXCLUDED.organisation_name,
			sector = EXCLUDED.sector,
			cpv_codes = EXCLUDED.cpv_codes,
			region = EXCLUDED.region,
			region_text = EXCLUDED.region_text,
			postcode = EXCLUDED.postcode,
			coordinates = EXCLUDED.coordinates,
			value_low = EXCLUDED.value_low,
			value_high = EXCLUDED.value_high,
			awarded_value = EXCLUDED.awarded_value,
			awarded_supplier = EXCLUDED.awarded_supplier,
			published_date = EXCLUDED.published_date,
			deadline_date = EXCLUDED.deadline_date,
			awarded_date = EXCLUDED.awarded_date,
			approach_market_date = EXCLUDED.approach_market_date,
			start_date = EXCLUDED.start_date,
			end_date = EXCLUDED.end_date,
			notice_type = EXCLUDED.notice_type,
			notice_status = EXCLUDED.notice_status,
			is_sub_notice = EXCLUDED.is_sub_notice,
			is_suitable_for_sme = EXCLUDED.is_suitable_for_sme,
			is_suitable_for_vco = EXCLUDED.is_suitable_for_vco
		RETURNING (xmax = 0) AS created
	`

	var created bool
	err := s.pool.QueryRow(ctx, query,
		c.ItemID,                      // $1
		nilIfEmpty(c.ParentID),        // $2
		nilIfEmpty(c.NoticeIdentifier), // $3
		c.Title,                       // $4
		nilIfEmpty(c.Description),     // $5
		nilIfEmpty(c.CpvDescription),  // $6
		c.OrganisationName,            // $7
		nilIfEmpty(c.Sector),          // $8
		nilIfEmpty(c.CpvCodes),        // $9
		nilIfEmpty(c.Region),          // $10
		nilIfEmpty(c.RegionText),      // $11
		nilIfEmpty(c.Postcode),        // $12
		nilIfEmpty(c.Coordinates),     // $13
		c.ValueLow,                    // $14
		c.ValueHigh,                   // $15
		c.AwardedValue,                // $16
		nilIfEmpty(c.AwardedSupplier), // $17
		c.PublishedDate,               // $18
		c.DeadlineDate,                // $19
		c.AwardedDate,                 // $20
		c.ApproachMarketDate,          // $21
		c.StartDate,                   // $22
		c.EndDate,                     // $23
		nilIfEmpty(c.NoticeType),      // $24
		nilIfEmpty(c.NoticeStatus),    // $25
		c.IsSubNotice,                 // $26
		c.IsSuitableForSme,            // $27
		c.IsSuitableForVco,            // $28
	).Scan(&created)
	if err != nil {
		return false, fmt.Errorf("upsert contract %s failed: %w", c.ItemID, err)
	}

	return created, nil
}

func (s *Store) GetContract(ctx context.Context, itemID string) (*models.ContractRecord, error) {
	sql := fmt.Sprintf("SELECT %s FROM contracts WHERE item_id = $1", selectCols)
	row := s.pool.QueryRow(ctx, sql, itemID)

	c, err := scanContract(row.Scan)
	if err == pgx.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get contract failed: %w", err)
	}

	return &c, nil
}

type ListParams struct {
	MatchesOnly bool // only contracts rated high or excellent
	Limit       int
	Offset      int
}

func (s *Store) ListContracts(ctx context.Context, params ListParams) ([]models.ContractRecord, error) {
	where := ""
	if params.MatchesOnly {
		where = " WHERE " + matchesPredicate
	}
	if params.Limit <= 0 {
		params.Limit = 100
	}

	sql := fmt.Sprintf(
		"SELECT %s FROM contracts%s ORDER BY published_date DESC NULLS LAST, created_at DESC LIMIT $1 OFFSET $2",
		selectCols, where)

	rows, err := s.pool.Query(ctx, sql, params.Limit, params.Offset)
	if err != nil {
		return nil, fmt.Errorf("list contracts failed: %w", err)
	}
	defer rows.Close()

	contracts := []models.ContractRecord{}
	for rows.Next() {
		c, err := scanContract(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan contract failed: %w", err)
		}
		contracts = append(contracts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration failed: %w", err)
	}

	return contracts, nil
}

func (s *Store) CountContracts(ctx context.Context) (int, error) {
	var count int
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM contracts").Scan(&count); err != nil {
		return 0, fmt.Errorf("count contracts failed: %w", err)
	}
	return count, nil
}

// FindUnrated returns up to limit contracts that have no AI rating yet,
// in insertion order.
func (s *Store) FindUnrated(ctx context.Context, limit int) ([]models.ContractRecord, error) {
	sql := fmt.Sprintf("SELECT %s FROM contracts WHERE %s ORDER BY id LIMIT $1", selectCols, unratedPredicate)

	rows, err := s.pool.Query(ctx, sql, limit)
	if err != nil {
		return nil, fmt.Errorf("find unrated failed: %w", err)
	}
	defer rows.Close()

	var contracts []models.ContractRecord
	for rows.Next() {
		c, err := scanContract(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan unrated contract failed: %w", err)
		}
		contracts = append(contracts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration failed: %w", err)
	}

	return contracts, nil
}

func (s *Store) CountUnrated(ctx context.Context) (int, error) {
	var count int
	sql := fmt.Sprintf("SELECT COUNT(*) FROM contracts WHERE %s", unratedPredicate)
	if err := s.pool.QueryRow(ctx, sql).Scan(&count); err != nil {
		return 0, fmt.Errorf("count unrated failed: %w", err)
	}
	return count, nil
}

// ApplyRating writes the AI rating onto a contract. Returns ErrNotFound
// if the contract vanished between selection and write; callers treat
// that as a per-item condition, not a fatal one.
func (s *Store) ApplyRating(ctx context.Context, itemID string, rating models.RatingResult, ratedBy string, ratedAt time.Time) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE contracts
		SET ai_score = $1,
		    ai_relevance = $2,
		    ai_explanation = $3,
		    ai_opportunity_description = $4,
		    ai_match_reasons = $5,
		    ai_rated_at = $6,
		    ai_rated_by = $7,
		    updated_at = NOW()
		WHERE item_id = $8
	`, rating.Score, rating.Relevance, rating.Explanation, rating.OpportunityDescription,
		rating.MatchReasons, ratedAt, ratedBy, itemID)
	if err != nil {
		return fmt.Errorf("apply rating failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ApplyReviewerRating writes the human rating onto a contract.
func (s *Store) ApplyReviewerRating(ctx context.Context, itemID string, rating models.ReviewerRating) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE contracts
		SET reviewer_score = $1,
		    reviewer_relevance = $2,
		    reviewer_comments = $3,
		    reviewer_rated_at = $4,
		    reviewer_rated_by = $5,
		    reviewer_name = $6,
		    updated_at = NOW()
		WHERE item_id = $7
	`, rating.Score, rating.Relevance, rating.Comments, rating.RatedAt, rating.RatedBy, rating.ReviewerName, itemID)
	if err != nil {
		return fmt.Errorf("apply reviewer rating failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetHubSpotDeal links a CRM deal to a contract.
func (s *Store) SetHubSpotDeal(ctx context.Context, itemID string, deal models.HubSpotDeal) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE contracts
		SET hubspot_deal_id = $1,
		    hubspot_deal_url = $2,
		    hubspot_deal_name = $3,
		    hubspot_deal_amount = $4,
		    hubspot_deal_stage = $5,
		    hubspot_created_at = $6,
		    hubspot_created_by = $7,
		    hubspot_last_synced = $8,
		    updated_at = NOW()
		WHERE item_id = $9
	`, deal.DealID, deal.DealURL, deal.DealName, deal.DealAmount, deal.DealStage,
		deal.CreatedAt, deal.CreatedBy, deal.LastSynced, itemID)
	if err != nil {
		return fmt.Errorf("set hubspot deal failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// GetOrganisation returns the single organisation profile, or
// ErrNotFound when no profile has been set up yet.
func (s *Store) GetOrganisation(ctx context.Context) (*models.Organisation, error) {
	var o models.Organisation
	var location, website, contactEmail *string

	err := s.pool.QueryRow(ctx, `
		SELECT name, description, industry, size, capabilities, interests,
		       exclusions, search_keywords, location, website, contact_email,
		       created_at, updated_at
		FROM organisations
		ORDER BY id
		LIMIT 1
	`).Scan(
		&o.Name, &o.Description, &o.Industry, &o.Size, &o.Capabilities, &o.Interests,
		&o.Exclusions, &o.SearchKeywords, &location, &website, &contactEmail,
		&o.CreatedAt, &o.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get organisation failed: %w", err)
	}

	if location != nil {
		o.Location = *location
	}
	if website != nil {
		o.Website = *website
	}
	if contactEmail != nil {
		o.ContactEmail = *contactEmail
	}

	return &o, nil
}

// UpsertOrganisation creates or replaces the profile keyed by name.
func (s *Store) UpsertOrganisation(ctx context.Context, o models.Organisation) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO organisations (
			name, description, industry, size, capabilities, interests,
			exclusions, search_keywords, location, website, contact_email
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (name) DO UPDATE SET
			description = EXCLUDED.description,
			industry = EXCLUDED.industry,
			size = EXCLUDED.size,
			capabilities = EXCLUDED.capabilities,
			interests = EXCLUDED.interests,
			exclusions = EXCLUDED.exclusions,
			search_keywords = EXCLUDED.search_keywords,
			location = EXCLUDED.location,
			website = EXCLUDED.website,
			contact_email = EXCLUDED.contact_email,
			updated_at = NOW()
	`, o.Name, o.Description, o.Industry, o.Size, emptyIfNil(o.Capabilities), emptyIfNil(o.Interests),
		emptyIfNil(o.Exclusions), emptyIfNil(o.SearchKeywords), nilIfEmpty(o.Location), nilIfEmpty(o.Website), nilIfEmpty(o.ContactEmail))
	if err != nil {
		return fmt.Errorf("upsert organisation failed: %w", err)
	}
	return nil
}

// nilIfEmpty returns nil for empty strings so NULL is stored in DB.
func nilIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// emptyIfNil keeps NOT NULL array columns satisfied when the caller
// never set the slice.
func emptyIfNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
