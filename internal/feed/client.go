package feed

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"
)

// DefaultBaseURL is the Contracts Finder notice-search endpoint.
const DefaultBaseURL = "https://www.contractsfinder.service.gov.uk/api/rest/2/search_notices/JSON"

// maxPageSize caps a single search request. The client issues exactly
// one request per Search call and does not paginate: keywords whose hit
// count exceeds the cap have the tail silently truncated by the feed.
// This is a documented scope limit, not an oversight.
const maxPageSize = 1000

// ErrFeedUnavailable marks transport failures and non-2xx responses
// from the feed. Retry policy belongs to the caller.
var ErrFeedUnavailable = errors.New("contracts feed unavailable")

// Client queries the Contracts Finder search API.
type Client struct {
	HTTPClient *http.Client
	BaseURL    string
}

func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		HTTPClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		BaseURL: baseURL,
	}
}

// searchCriteria matches the Contracts Finder search_notices schema.
// Pointer fields serialize as JSON null, which the API expects for
// unused filters.
type searchCriteria struct {
	Types             []string `json:"types"`
	Statuses          []string `json:"statuses"`
	Keyword           string   `json:"keyword"`
	QueryString       *string  `json:"queryString"`
	Regions           *string  `json:"regions"`
	Postcode          *string  `json:"postcode"`
	Radius            float64  `json:"radius"`
	ValueFrom         *float64 `json:"valueFrom"`
	ValueTo           *float64 `json:"valueTo"`
	PublishedFrom     *string  `json:"publishedFrom"`
	PublishedTo       *string  `json:"publishedTo"`
	DeadlineFrom       *string  `json:"deadlineFrom"`
	DeadlineTo         *string  `json:"deadlineTo"`
	ApproachMarketFrom *string  `json:"approachMarketFrom"`
	ApproachMarketTo   *string  `json:"approachMarketTo"`
	AwardedFrom        *string  `json:"awardedFrom"`
	AwardedTo          *string  `json:"awardedTo"`
	IsSubcontract      *bool    `json:"isSubcontract"`
	SuitableForSme     bool     `json:"suitableForSme"`
	SuitableForVco     bool     `json:"suitableForVco"`
	CpvCodes           *string  `json:"cpvCodes"`
}

type searchRequest struct {
	SearchCriteria searchCriteria `json:"searchCriteria"`
	Size           int            `json:"size"`
}

// Notice is one raw contract notice as returned by the feed.
type Notice struct {
	ID                     string     `json:"id"`
	ParentID               string     `json:"parentId"`
	NoticeIdentifier       string     `json:"noticeIdentifier"`
	Title                  string     `json:"title"`
	Description            string     `json:"description"`
	CpvDescription         string     `json:"cpvDescription"`
	CpvDescriptionExpanded string     `json:"cpvDescriptionExpanded"`
	PublishedDate          *time.Time `json:"publishedDate"`
	DeadlineDate           *time.Time `json:"deadlineDate"`
	AwardedDate            *time.Time `json:"awardedDate"`
	AwardedValue           *float64   `json:"awardedValue"`
	AwardedSupplier        string     `json:"awardedSupplier"`
	ApproachMarketDate     *time.Time `json:"approachMarketDate"`
	ValueLow               *float64   `json:"valueLow"`
	ValueHigh              *float64   `json:"valueHigh"`
	Postcode               string     `json:"postcode"`
	Coordinates            string     `json:"coordinates"`
	IsSubNotice            bool       `json:"isSubNotice"`
	NoticeType             string     `json:"noticeType"`
	NoticeStatus           string     `json:"noticeStatus"`
	IsSuitableForSme       bool       `json:"isSuitableForSme"`
	IsSuitableForVco       bool       `json:"isSuitableForVco"`
	OrganisationName       string     `json:"organisationName"`
	Sector                 string     `json:"sector"`
	CpvCodes               string     `json:"cpvCodes"`
	CpvCodesExtended       string     `json:"cpvCodesExtended"`
	Region                 string     `json:"region"`
	RegionText             string     `json:"regionText"`
	Start                  *time.Time `json:"start"`
	End                    *time.Time `json:"end"`
}

type noticeEnvelope struct {
	Item Notice `json:"item"`
}

// SearchResult is one raw result page from the feed.
type SearchResult struct {
	HitCount int
	Notices  []Notice
}

type searchResponse struct {
	HitCount   int              `json:"hitCount"`
	NoticeList []noticeEnvelope `json:"noticeList"`
}

// Search issues one synchronous search for open, SME-suitable contract
// notices matching the keyword. No retries at this layer.
func (c *Client) Search(ctx context.Context, keyword string) (*SearchResult, error) {
	body := searchRequest{
		SearchCriteria: searchCriteria{
			Types:          []string{"Contract"},
			Statuses:       []string{"Open"},
			Keyword:        keyword,
			SuitableForSme: true,
			SuitableForVco: false,
		},
		Size: maxPageSize,
	}

	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshaling search request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.BaseURL, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("creating search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFeedUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: status %d: %s", ErrFeedUnavailable, resp.StatusCode, string(snippet))
	}

	var parsed searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("%w: decoding response: %v", ErrFeedUnavailable, err)
	}

	log.Printf("[Feed] Found %d contracts for keyword %q", parsed.HitCount, keyword)

	result := &SearchResult{HitCount: parsed.HitCount}
	for _, env := range parsed.NoticeList {
		result.Notices = append(result.Notices, env.Item)
	}

	return result, nil
}
