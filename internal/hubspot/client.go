package hubspot

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/theodi/contract-radar/internal/models"
)

const defaultBaseURL = "https://api.hubapi.com"

// Client talks to the HubSpot CRM v3 deals API.
type Client struct {
	HTTPClient *http.Client
	BaseURL    string

	apiKey   string
	portalID string
	pipeline string
	stage    string
}

// NewClient builds a client from HUBSPOT_API_KEY and HUBSPOT_PORTAL_ID.
func NewClient(pipeline, stage string) (*Client, error) {
	apiKey := os.Getenv("HUBSPOT_API_KEY")
	if apiKey == "" {
		return nil, errors.New("HUBSPOT_API_KEY is not set")
	}

	return &Client{
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
		BaseURL:    defaultBaseURL,
		apiKey:     apiKey,
		portalID:   os.Getenv("HUBSPOT_PORTAL_ID"),
		pipeline:   pipeline,
		stage:      stage,
	}, nil
}

// Deal is the subset of HubSpot deal properties this service reads.
type Deal struct {
	ID         string
	Name       string
	Amount     float64
	Stage      string
	ContractID string
}

type dealObject struct {
	ID         string            `json:"id"`
	Properties map[string]string `json:"properties"`
}

type searchRequest struct {
	FilterGroups []filterGroup `json:"filterGroups"`
	Properties   []string      `json:"properties"`
	Limit        int           `json:"limit"`
}

type filterGroup struct {
	Filters []filter `json:"filters"`
}

type filter struct {
	PropertyName string `json:"propertyName"`
	Operator     string `json:"operator"`
	Value        string `json:"value"`
}

type searchResponse struct {
	Results []dealObject `json:"results"`
}

var dealProperties = []string{"dealname", "amount", "dealstage", "contract_id", "hs_object_id"}

// FindExistingDeal looks up a deal by the contract_id custom property.
// Returns nil when no deal is linked to the contract.
func (c *Client) FindExistingDeal(ctx context.Context, contractID string) (*Deal, error) {
	body := searchRequest{
		FilterGroups: []filterGroup{{
			Filters: []filter{{
				PropertyName: "contract_id",
				Operator:     "EQ",
				Value:        contractID,
			}},
		}},
		Properties: dealProperties,
		Limit:      1,
	}

	var parsed searchResponse
	if err := c.do(ctx, "POST", "/crm/v3/objects/deals/search", body, &parsed); err != nil {
		return nil, err
	}
	if len(parsed.Results) == 0 {
		return nil, nil
	}

	deal := fromDealObject(parsed.Results[0])
	return &deal, nil
}

// GetDeal fetches a deal by its HubSpot id.
func (c *Client) GetDeal(ctx context.Context, dealID string) (*Deal, error) {
	path := "/crm/v3/objects/deals/" + dealID + "?properties=dealname,amount,dealstage,contract_id"

	var parsed dealObject
	if err := c.do(ctx, "GET", path, nil, &parsed); err != nil {
		return nil, err
	}

	deal := fromDealObject(parsed)
	return &deal, nil
}

// CreateDeal creates a new deal for the contract. The caller is
// responsible for checking FindExistingDeal first; HubSpot itself does
// not enforce uniqueness on contract_id.
func (c *Client) CreateDeal(ctx context.Context, contract *models.ContractRecord, createdBy string) (*models.HubSpotDeal, error) {
	amount := DealAmount(contract)

	props := map[string]string{
		"dealname":    contract.Title,
		"amount":      strconv.FormatFloat(amount, 'f', -1, 64),
		"dealstage":   c.stage,
		"pipeline":    c.pipeline,
		"description": buildDealDescription(contract),
		"closedate":   closeDate(contract),
		"contract_id": contract.ItemID,
	}

	var created dealObject
	if err := c.do(ctx, "POST", "/crm/v3/objects/deals", map[string]interface{}{"properties": props}, &created); err != nil {
		return nil, err
	}

	now := time.Now()
	return &models.HubSpotDeal{
		DealID:     created.ID,
		DealURL:    c.dealURL(created.ID),
		DealName:   contract.Title,
		DealAmount: amount,
		DealStage:  c.stage,
		CreatedAt:  now,
		CreatedBy:  createdBy,
		LastSynced: now,
	}, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("hubspot request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("hubspot returned status %d: %s", resp.StatusCode, string(snippet))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

func (c *Client) dealURL(dealID string) string {
	return fmt.Sprintf("https://app.hubspot.com/contacts/%s/deal/%s", c.portalID, dealID)
}

func fromDealObject(obj dealObject) Deal {
	amount, _ := strconv.ParseFloat(obj.Properties["amount"], 64)
	return Deal{
		ID:         obj.ID,
		Name:       obj.Properties["dealname"],
		Amount:     amount,
		Stage:      obj.Properties["dealstage"],
		ContractID: obj.Properties["contract_id"],
	}
}

// DealAmount picks the deal amount from the contract's values: the
// awarded value when known, otherwise the midpoint of the value range,
// otherwise whichever bound exists.
func DealAmount(contract *models.ContractRecord) float64 {
	switch {
	case contract.AwardedValue != nil:
		return *contract.AwardedValue
	case contract.ValueLow != nil && contract.ValueHigh != nil:
		return (*contract.ValueLow + *contract.ValueHigh) / 2
	case contract.ValueLow != nil:
		return *contract.ValueLow
	case contract.ValueHigh != nil:
		return *contract.ValueHigh
	}
	return 0
}

// closeDate is the contract deadline, or 30 days out when none is set.
func closeDate(contract *models.ContractRecord) string {
	if contract.DeadlineDate != nil {
		return contract.DeadlineDate.Format("2006-01-02")
	}
	return time.Now().AddDate(0, 0, 30).Format("2006-01-02")
}

func buildDealDescription(contract *models.ContractRecord) string {
	var b bytes.Buffer

	fmt.Fprintf(&b, "Contract: %s\n\n", contract.Title)
	if contract.Description != "" {
		fmt.Fprintf(&b, "Description: %s\n\n", contract.Description)
	}
	fmt.Fprintf(&b, "Organisation: %s\n", contract.OrganisationName)
	fmt.Fprintf(&b, "Status: %s\n", contract.NoticeStatus)
	fmt.Fprintf(&b, "Type: %s\n", contract.NoticeType)

	switch {
	case contract.ValueLow != nil && contract.ValueHigh != nil:
		fmt.Fprintf(&b, "Value: £%.0f - £%.0f\n", *contract.ValueLow, *contract.ValueHigh)
	case contract.ValueLow != nil:
		fmt.Fprintf(&b, "Value: From £%.0f\n", *contract.ValueLow)
	case contract.ValueHigh != nil:
		fmt.Fprintf(&b, "Value: Up to £%.0f\n", *contract.ValueHigh)
	}

	if contract.DeadlineDate != nil {
		fmt.Fprintf(&b, "Deadline: %s\n", contract.DeadlineDate.Format("2006-01-02"))
	}
	if contract.Postcode != "" {
		fmt.Fprintf(&b, "Location: %s\n", contract.Postcode)
	}
	if contract.AIRating != nil && contract.AIRating.Explanation != "" {
		fmt.Fprintf(&b, "\nAI Analysis: %s\n", contract.AIRating.Explanation)
	}
	if contract.ReviewerRating != nil && contract.ReviewerRating.Comments != "" {
		fmt.Fprintf(&b, "\nReviewer Comments: %s\n", contract.ReviewerRating.Comments)
	}

	return b.String()
}
