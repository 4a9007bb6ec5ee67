package feed

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestSearchSendsExpectedCriteria(t *testing.T) {
	var captured searchRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decoding request body: %v", err)
		}

		json.NewEncoder(w).Encode(map[string]interface{}{
			"hitCount": 1,
			"noticeList": []map[string]interface{}{
				{"item": map[string]interface{}{
					"id":               "n1",
					"title":            "Data services",
					"organisationName": "Cabinet Office",
				}},
			},
		})
	}))
	defer server.Close()

	client := NewClient(server.URL)
	result, err := client.Search(context.Background(), "data")
	if err != nil {
		t.Fatalf("Search returned error: %v", err)
	}

	if captured.Size != maxPageSize {
		t.Errorf("size = %d, want %d", captured.Size, maxPageSize)
	}
	c := captured.SearchCriteria
	if len(c.Types) != 1 || c.Types[0] != "Contract" {
		t.Errorf("types = %v, want [Contract]", c.Types)
	}
	if len(c.Statuses) != 1 || c.Statuses[0] != "Open" {
		t.Errorf("statuses = %v, want [Open]", c.Statuses)
	}
	if c.Keyword != "data" {
		t.Errorf("keyword = %q, want data", c.Keyword)
	}
	if !c.SuitableForSme {
		t.Error("suitableForSme must be true")
	}
	if c.SuitableForVco {
		t.Error("suitableForVco must be false")
	}

	if result.HitCount != 1 || len(result.Notices) != 1 {
		t.Fatalf("result = %+v, want 1 hit", result)
	}
	if result.Notices[0].ID != "n1" {
		t.Errorf("notice ID = %q, want n1", result.Notices[0].ID)
	}
}

func TestSearchNon200WrapsErrFeedUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream maintenance", http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewClient(server.URL)
	_, err := client.Search(context.Background(), "data")
	if !errors.Is(err, ErrFeedUnavailable) {
		t.Fatalf("err = %v, want ErrFeedUnavailable", err)
	}
}

func TestSearchTransportFailureWrapsErrFeedUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // connection refused

	client := NewClient(server.URL)
	_, err := client.Search(context.Background(), "data")
	if !errors.Is(err, ErrFeedUnavailable) {
		t.Fatalf("err = %v, want ErrFeedUnavailable", err)
	}
}

func TestSearchMalformedResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer server.Close()

	client := NewClient(server.URL)
	_, err := client.Search(context.Background(), "data")
	if !errors.Is(err, ErrFeedUnavailable) {
		t.Fatalf("err = %v, want ErrFeedUnavailable", err)
	}
}
