package hubspot

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/theodi/contract-radar/internal/models"
)

func testClient(baseURL string) *Client {
	return &Client{
		HTTPClient: &http.Client{Timeout: 5 * time.Second},
		BaseURL:    baseURL,
		apiKey:     "test-key",
		portalID:   "12345",
		pipeline:   "default",
		stage:      "appointmentscheduled",
	}
}

func f64(v float64) *float64 { return &v }

func TestDealAmount(t *testing.T) {
	tests := []struct {
		name     string
		contract models.ContractRecord
		want     float64
	}{
		{"awarded value wins", models.ContractRecord{AwardedValue: f64(90000), ValueLow: f64(10000), ValueHigh: f64(50000)}, 90000},
		{"midpoint of range", models.ContractRecord{ValueLow: f64(100000), ValueHigh: f64(200000)}, 150000},
		{"low bound only", models.ContractRecord{ValueLow: f64(25000)}, 25000},
		{"high bound only", models.ContractRecord{ValueHigh: f64(75000)}, 75000},
		{"no values", models.ContractRecord{}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DealAmount(&tt.contract); got != tt.want {
				t.Errorf("DealAmount = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCloseDateUsesDeadline(t *testing.T) {
	deadline := time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)
	c := models.ContractRecord{DeadlineDate: &deadline}
	if got := closeDate(&c); got != "2026-06-15" {
		t.Errorf("closeDate = %q, want 2026-06-15", got)
	}
}

func TestCloseDateDefaultsThirtyDaysOut(t *testing.T) {
	got := closeDate(&models.ContractRecord{})
	want := time.Now().AddDate(0, 0, 30).Format("2006-01-02")
	if got != want {
		t.Errorf("closeDate = %q, want %q", got, want)
	}
}

func TestBuildDealDescription(t *testing.T) {
	deadline := time.Date(2026, 6, 15, 0, 0, 0, 0, time.UTC)
	c := models.ContractRecord{
		ItemID:           "abc-1",
		Title:            "Data platform services",
		Description:      "A platform build.",
		OrganisationName: "Cabinet Office",
		NoticeStatus:     "Open",
		NoticeType:       "Contract",
		ValueLow:         f64(100000),
		ValueHigh:        f64(250000),
		DeadlineDate:     &deadline,
		Postcode:         "SW1A 1AA",
		AIRating:         &models.AIRating{Explanation: "Strong fit"},
	}

	desc := buildDealDescription(&c)

	for _, want := range []string{
		"Contract: Data platform services",
		"Organisation: Cabinet Office",
		"Value: £100000 - £250000",
		"Deadline: 2026-06-15",
		"Location: SW1A 1AA",
		"AI Analysis: Strong fit",
	} {
		if !strings.Contains(desc, want) {
			t.Errorf("description missing %q", want)
		}
	}
}

func TestFindExistingDeal(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/crm/v3/objects/deals/search" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Authorization = %q", got)
		}

		var req searchRequest
		json.NewDecoder(r.Body).Decode(&req)
		if len(req.FilterGroups) != 1 || req.FilterGroups[0].Filters[0].Value != "abc-1" {
			t.Errorf("filter = %+v, want contract_id EQ abc-1", req.FilterGroups)
		}

		json.NewEncoder(w).Encode(searchResponse{Results: []dealObject{{
			ID: "deal-9",
			Properties: map[string]string{
				"dealname":    "Data platform services",
				"amount":      "150000",
				"dealstage":   "appointmentscheduled",
				"contract_id": "abc-1",
			},
		}}})
	}))
	defer server.Close()

	deal, err := testClient(server.URL).FindExistingDeal(context.Background(), "abc-1")
	if err != nil {
		t.Fatalf("FindExistingDeal returned error: %v", err)
	}
	if deal == nil || deal.ID != "deal-9" || deal.Amount != 150000 {
		t.Errorf("deal = %+v, want deal-9 at 150000", deal)
	}
}

func TestFindExistingDealNoMatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(searchResponse{})
	}))
	defer server.Close()

	deal, err := testClient(server.URL).FindExistingDeal(context.Background(), "abc-1")
	if err != nil {
		t.Fatalf("FindExistingDeal returned error: %v", err)
	}
	if deal != nil {
		t.Errorf("deal = %+v, want nil", deal)
	}
}

func TestCreateDeal(t *testing.T) {
	var props map[string]string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/crm/v3/objects/deals" {
			t.Errorf("path = %s", r.URL.Path)
		}
		var body struct {
			Properties map[string]string `json:"properties"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		props = body.Properties

		json.NewEncoder(w).Encode(dealObject{ID: "deal-7", Properties: body.Properties})
	}))
	defer server.Close()

	contract := &models.ContractRecord{
		ItemID:           "abc-1",
		Title:            "Data platform services",
		OrganisationName: "Cabinet Office",
		ValueLow:         f64(100000),
		ValueHigh:        f64(200000),
	}

	deal, err := testClient(server.URL).CreateDeal(context.Background(), contract, "Alex")
	if err != nil {
		t.Fatalf("CreateDeal returned error: %v", err)
	}

	if deal.DealID != "deal-7" {
		t.Errorf("DealID = %q, want deal-7", deal.DealID)
	}
	if deal.DealAmount != 150000 {
		t.Errorf("DealAmount = %v, want 150000", deal.DealAmount)
	}
	if deal.DealURL != "https://app.hubspot.com/contacts/12345/deal/deal-7" {
		t.Errorf("DealURL = %q", deal.DealURL)
	}
	if deal.CreatedBy != "Alex" {
		t.Errorf("CreatedBy = %q, want Alex", deal.CreatedBy)
	}

	if props["contract_id"] != "abc-1" {
		t.Errorf("contract_id property = %q, want abc-1", props["contract_id"])
	}
	if props["pipeline"] != "default" || props["dealstage"] != "appointmentscheduled" {
		t.Errorf("pipeline/stage = %q/%q", props["pipeline"], props["dealstage"])
	}
}

func TestCreateDealAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"invalid pipeline"}`, http.StatusBadRequest)
	}))
	defer server.Close()

	_, err := testClient(server.URL).CreateDeal(context.Background(), &models.ContractRecord{ItemID: "abc-1", Title: "x"}, "Alex")
	if err == nil {
		t.Fatal("expected error from 400 response")
	}
	if !strings.Contains(err.Error(), "400") {
		t.Errorf("error %q should carry the status code", err)
	}
}
