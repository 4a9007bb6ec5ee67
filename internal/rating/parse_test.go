package rating

import (
	"reflect"
	"testing"
)

func TestParseRatingResponse(t *testing.T) {
	tests := []struct {
		name      string
		raw       string
		wantOK    bool
		wantScore float64
		wantBand  string
	}{
		{
			name:      "bare JSON object",
			raw:       `{"score": 8, "relevance": "high", "explanation": "Strong capability match", "opportunityDescription": "Data platform build", "matchReasons": ["data expertise"]}`,
			wantOK:    true,
			wantScore: 8,
			wantBand:  "high",
		},
		{
			name:      "fenced JSON",
			raw:       "```json\n{\"score\": 3, \"relevance\": \"low\", \"explanation\": \"Out of scope\"}\n```",
			wantOK:    true,
			wantScore: 3,
			wantBand:  "low",
		},
		{
			name:      "JSON embedded in prose",
			raw:       "Here is my assessment:\n{\"score\": 9, \"relevance\": \"excellent\", \"explanation\": \"Near perfect fit\"}\nLet me know if you need more.",
			wantOK:    true,
			wantScore: 9,
			wantBand:  "excellent",
		},
		{
			name:   "no JSON at all",
			raw:    "I cannot rate this contract.",
			wantOK: false,
		},
		{
			name:   "unbalanced braces",
			raw:    `{"score": 7, "relevance": "high"`,
			wantOK: false,
		},
		{
			name:   "valid JSON missing required fields",
			raw:    `{"score": 7}`,
			wantOK: false,
		},
		{
			name:   "empty response",
			raw:    "",
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, ok := parseRatingResponse(tt.raw)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if tt.wantOK {
				if result.Score != tt.wantScore {
					t.Errorf("Score = %v, want %v", result.Score, tt.wantScore)
				}
				if result.Relevance != tt.wantBand {
					t.Errorf("Relevance = %q, want %q", result.Relevance, tt.wantBand)
				}
				return
			}

			// Unparseable responses always yield the manual-review default.
			want := degradedDefaultRating()
			if !reflect.DeepEqual(result, want) {
				t.Errorf("degraded result = %+v, want %+v", result, want)
			}
		})
	}
}

func TestDegradedDefaultRatingIsValid(t *testing.T) {
	d := degradedDefaultRating()
	if d.Score != 5 {
		t.Errorf("Score = %v, want 5", d.Score)
	}
	if d.Relevance != "medium" {
		t.Errorf("Relevance = %q, want medium", d.Relevance)
	}
	if d.Explanation == "" || d.OpportunityDescription == "" {
		t.Error("default rating must carry explanation text")
	}
	if len(d.MatchReasons) == 0 {
		t.Error("default rating must carry at least one match reason")
	}
}

func TestExtractFirstJSONObject(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		want   string
		wantOK bool
	}{
		{"simple", `{"a": 1}`, `{"a": 1}`, true},
		{"nested", `{"a": {"b": 2}}`, `{"a": {"b": 2}}`, true},
		{"brace inside string", `{"a": "}"}`, `{"a": "}"}`, true},
		{"escaped quote inside string", `{"a": "say \"}\" loud"}`, `{"a": "say \"}\" loud"}`, true},
		{"leading prose", `result: {"a": 1} done`, `{"a": 1}`, true},
		{"only first object", `{"a": 1}{"b": 2}`, `{"a": 1}`, true},
		{"no object", "plain text", "", false},
		{"never closed", `{"a": 1`, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := extractFirstJSONObject(tt.input)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}
