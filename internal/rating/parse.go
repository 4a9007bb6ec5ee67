package rating

import (
	"encoding/json"
	"strings"

	"github.com/theodi/contract-radar/internal/models"
)

// parseRatingResponse extracts the rating JSON from a raw model
// response. The second return value is false when the response held no
// usable rating, in which case the degraded default is returned so one
// malformed model reply never surfaces as an error.
func parseRatingResponse(raw string) (models.RatingResult, bool) {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")

	jsonStr, ok := extractFirstJSONObject(cleaned)
	if !ok {
		return degradedDefaultRating(), false
	}

	var result models.RatingResult
	if err := json.Unmarshal([]byte(jsonStr), &result); err != nil {
		return degradedDefaultRating(), false
	}

	// Score, relevance and explanation are the minimum usable shape.
	if result.Score == 0 || result.Relevance == "" || result.Explanation == "" {
		return degradedDefaultRating(), false
	}

	return result, true
}

// degradedDefaultRating is the valid-but-low-confidence fallback used
// when the model replied but its output could not be parsed.
func degradedDefaultRating() models.RatingResult {
	return models.RatingResult{
		Score:                  5,
		Relevance:              "medium",
		Explanation:            "Unable to parse AI response. Manual review recommended.",
		OpportunityDescription: "Please review this opportunity manually.",
		MatchReasons:           []string{"Manual review required"},
	}
}

// extractFirstJSONObject finds the first outermost balanced {...}
func extractFirstJSONObject(s string) (string, bool) {
	start := strings.Index(s, "{")
	if start == -1 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false

	for i := start; i < len(s); i++ {
		char := s[i]

		if escaped {
			escaped = false
			continue
		}

		if char == '\\' {
			escaped = true
			continue
		}

		if char == '"' {
			inString = !inString
			continue
		}

		if !inString {
			if char == '{' {
				depth++
			} else if char == '}' {
				depth--
				if depth == 0 {
					return s[start : i+1], true
				}
			}
		}
	}

	return "", false
}
