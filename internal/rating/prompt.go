package rating

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/theodi/contract-radar/internal/models"
)

// buildRatingPrompt renders the deterministic rating prompt from the
// contract's and organisation's current field values. The requested
// output shape must stay in sync with parseRatingResponse.
func buildRatingPrompt(contract *models.ContractRecord, org *models.Organisation) string {
	var b strings.Builder

	b.WriteString("You are an expert business development consultant. Your task is to rate how well a government contract opportunity matches an organisation's profile.\n\n")

	b.WriteString("ORGANISATION PROFILE:\n")
	fmt.Fprintf(&b, "Name: %s\n", org.Name)
	fmt.Fprintf(&b, "Description: %s\n", org.Description)
	fmt.Fprintf(&b, "Industry: %s\n", org.Industry)
	fmt.Fprintf(&b, "Size: %s\n", org.Size)
	fmt.Fprintf(&b, "Capabilities: %s\n", strings.Join(org.Capabilities, ", "))
	fmt.Fprintf(&b, "Interests: %s\n", strings.Join(org.Interests, ", "))
	fmt.Fprintf(&b, "Exclusions: %s\n", listOrNone(org.Exclusions))
	fmt.Fprintf(&b, "Location: %s\n\n", org.Location)

	b.WriteString("CONTRACT OPPORTUNITY:\n")
	fmt.Fprintf(&b, "Title: %s\n", contract.Title)
	fmt.Fprintf(&b, "Organisation: %s\n", contract.OrganisationName)
	fmt.Fprintf(&b, "Description: %s\n", contract.Description)
	fmt.Fprintf(&b, "Value Range: £%s - £%s\n", amountOrUnspecified(contract.ValueLow), amountOrUnspecified(contract.ValueHigh))
	fmt.Fprintf(&b, "Location: %s\n", stringOrUnspecified(contract.Postcode))
	fmt.Fprintf(&b, "SME Suitable: %s\n", yesNo(contract.IsSuitableForSme))
	fmt.Fprintf(&b, "CPV Codes: %s\n", stringOrUnspecified(contract.CpvCodes))
	fmt.Fprintf(&b, "Published Date: %s\n", dateOrUnspecified(contract.PublishedDate))
	fmt.Fprintf(&b, "Deadline: %s\n\n", dateOrUnspecified(contract.DeadlineDate))

	b.WriteString(`Please provide a comprehensive rating in the following JSON format:

{
  "score": <number between 0-10>,
  "relevance": "<low|medium|high|excellent>",
  "explanation": "<brief explanation of the rating>",
  "opportunityDescription": "<detailed description of what this opportunity involves and why it might be interesting>",
  "matchReasons": [
    "<reason 1 why this matches the organisation>",
    "<reason 2 why this matches the organisation>",
    "<reason 3 why this matches the organisation>"
  ]
}

Consider:
- How well the contract aligns with the organisation's capabilities and interests
- Whether the contract involves any work that the organisation explicitly excludes
- The organisation's size and whether it can handle this type of contract
- Value range and whether it's appropriate for the organisation's size
- Technical requirements and whether the organisation has the necessary expertise
- If the contract involves excluded work, this should significantly lower the rating

Only return valid JSON, no additional text.`)

	return b.String()
}

func listOrNone(items []string) string {
	if len(items) == 0 {
		return "None specified"
	}
	return strings.Join(items, ", ")
}

func stringOrUnspecified(s string) string {
	if s == "" {
		return "Not specified"
	}
	return s
}

func yesNo(v bool) string {
	if v {
		return "Yes"
	}
	return "No"
}

func dateOrUnspecified(t *time.Time) string {
	if t == nil {
		return "Not specified"
	}
	return t.Format("02/01/2006")
}

// amountOrUnspecified formats a monetary value with thousands
// separators, matching the feed's GBP amounts.
func amountOrUnspecified(v *float64) string {
	if v == nil {
		return "Not specified"
	}
	return groupThousands(*v)
}

func groupThousands(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	intPart := s
	fracPart := ""
	if idx := strings.Index(s, "."); idx >= 0 {
		intPart, fracPart = s[:idx], s[idx:]
	}

	neg := strings.HasPrefix(intPart, "-")
	if neg {
		intPart = intPart[1:]
	}

	var out []byte
	for i, digit := range []byte(intPart) {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			out = append(out, ',')
		}
		out = append(out, digit)
	}

	result := string(out) + fracPart
	if neg {
		result = "-" + result
	}
	return result
}
