package models

import "time"

// ContractRecord is one notice from the Contracts Finder feed.
// Descriptive fields mirror the feed payload verbatim; the rating and
// deal sub-records are written by their own workflows and are never
// touched by a feed upsert.
type ContractRecord struct {
	ItemID             string     `json:"itemId"`
	ParentID           string     `json:"parentId,omitempty"`
	NoticeIdentifier   string     `json:"noticeIdentifier,omitempty"`
	Title              string     `json:"title"`
	Description        string     `json:"description,omitempty"`
	CpvDescription     string     `json:"cpvDescription,omitempty"`
	OrganisationName   string     `json:"organisationName"`
	Sector             string     `json:"sector,omitempty"`
	CpvCodes           string     `json:"cpvCodes,omitempty"`
	Region             string     `json:"region,omitempty"`
	RegionText         string     `json:"regionText,omitempty"`
	Postcode           string     `json:"postcode,omitempty"`
	Coordinates        string     `json:"coordinates,omitempty"`
	ValueLow           *float64   `json:"valueLow,omitempty"`
	ValueHigh          *float64   `json:"valueHigh,omitempty"`
	AwardedValue       *float64   `json:"awardedValue,omitempty"`
	AwardedSupplier    string     `json:"awardedSupplier,omitempty"`
	PublishedDate      *time.Time `json:"publishedDate,omitempty"`
	DeadlineDate       *time.Time `json:"deadlineDate,omitempty"`
	AwardedDate        *time.Time `json:"awardedDate,omitempty"`
	ApproachMarketDate *time.Time `json:"approachMarketDate,omitempty"`
	StartDate          *time.Time `json:"start,omitempty"`
	EndDate            *time.Time `json:"end,omitempty"`
	NoticeType         string     `json:"noticeType,omitempty"`
	NoticeStatus       string     `json:"noticeStatus,omitempty"`
	IsSubNotice        bool       `json:"isSubNotice"`
	IsSuitableForSme   bool       `json:"isSuitableForSme"`
	IsSuitableForVco   bool       `json:"isSuitableForVco"`
	CreatedAt          time.Time  `json:"createdAt"`
	UpdatedAt          time.Time  `json:"updatedAt"`

	AIRating       *AIRating       `json:"aiRating,omitempty"`
	ReviewerRating *ReviewerRating `json:"reviewerRating,omitempty"`
	HubSpotDeal    *HubSpotDeal    `json:"hubspotDeal,omitempty"`
}

// AIRating is the machine rating written by the rating engine.
type AIRating struct {
	Score                  float64   `json:"score"`
	Relevance              string    `json:"relevance"` // low, medium, high, excellent
	Explanation            string    `json:"explanation"`
	OpportunityDescription string    `json:"opportunityDescription"`
	MatchReasons           []string  `json:"matchReasons"`
	RatedAt                time.Time `json:"ratedAt"`
	RatedBy                string    `json:"ratedBy"`
}

// ReviewerRating is the human counterpart of AIRating, entered through
// the review interface.
type ReviewerRating struct {
	Score        int       `json:"score"`
	Relevance    string    `json:"relevance"`
	Comments     string    `json:"comments,omitempty"`
	RatedAt      time.Time `json:"ratedAt"`
	RatedBy      string    `json:"ratedBy"`
	ReviewerName string    `json:"reviewerName"`
}

// HubSpotDeal tracks the CRM deal linked to a contract.
type HubSpotDeal struct {
	DealID     string    `json:"dealId"`
	DealURL    string    `json:"dealUrl"`
	DealName   string    `json:"dealName"`
	DealAmount float64   `json:"dealAmount"`
	DealStage  string    `json:"dealStage"`
	CreatedAt  time.Time `json:"createdAt"`
	CreatedBy  string    `json:"createdBy"`
	LastSynced time.Time `json:"lastSynced"`
}

// Organisation is the single profile describing the consuming
// organisation. Its search keywords drive scheduled ingestion and the
// whole profile feeds the rating prompt.
type Organisation struct {
	Name           string    `json:"name"`
	Description    string    `json:"description"`
	Industry       string    `json:"industry"`
	Size           string    `json:"size"` // startup, small, medium, large
	Capabilities   []string  `json:"capabilities"`
	Interests      []string  `json:"interests"`
	Exclusions     []string  `json:"exclusions"`
	SearchKeywords []string  `json:"searchKeywords"`
	Location       string    `json:"location,omitempty"`
	Website        string    `json:"website,omitempty"`
	ContactEmail   string    `json:"contactEmail,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// RatingResult is the ephemeral outcome of one rating invocation. It is
// folded into ContractRecord.AIRating when persisted.
type RatingResult struct {
	Score                  float64  `json:"score"`
	Relevance              string   `json:"relevance"`
	Explanation            string   `json:"explanation"`
	OpportunityDescription string   `json:"opportunityDescription"`
	MatchReasons           []string `json:"matchReasons"`
}

// RelevanceBands are the valid ordinal relevance classifications.
var RelevanceBands = []string{"low", "medium", "high", "excellent"}

// ValidRelevance reports whether band is one of the known relevance
// classifications.
func ValidRelevance(band string) bool {
	for _, b := range RelevanceBands {
		if b == band {
			return true
		}
	}
	return false
}
