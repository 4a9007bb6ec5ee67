package ingest

import (
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"

	"github.com/theodi/contract-radar/internal/feed"
	"github.com/theodi/contract-radar/internal/models"
)

// FromNotice maps a raw feed notice onto the store's record shape.
// Every descriptive field is taken verbatim from the feed payload;
// titles are flattened to plain text and descriptions sanitized so
// feed-supplied HTML cannot carry scripts into the store.
func FromNotice(n feed.Notice) models.ContractRecord {
	return models.ContractRecord{
		ItemID:             n.ID,
		ParentID:           n.ParentID,
		NoticeIdentifier:   n.NoticeIdentifier,
		Title:              sanitizeUTF8(HTMLToText(n.Title)),
		Description:        sanitizeHTML(sanitizeUTF8(n.Description)),
		CpvDescription:     n.CpvDescription,
		OrganisationName:   sanitizeUTF8(normalizeSpace(n.OrganisationName)),
		Sector:             n.Sector,
		CpvCodes:           n.CpvCodes,
		Region:             n.Region,
		RegionText:         n.RegionText,
		Postcode:           n.Postcode,
		Coordinates:        n.Coordinates,
		ValueLow:           n.ValueLow,
		ValueHigh:          n.ValueHigh,
		AwardedValue:       n.AwardedValue,
		AwardedSupplier:    n.AwardedSupplier,
		PublishedDate:      n.PublishedDate,
		DeadlineDate:       n.DeadlineDate,
		AwardedDate:        n.AwardedDate,
		ApproachMarketDate: n.ApproachMarketDate,
		StartDate:          n.Start,
		EndDate:            n.End,
		NoticeType:         n.NoticeType,
		NoticeStatus:       n.NoticeStatus,
		IsSubNotice:        n.IsSubNotice,
		IsSuitableForSme:   n.IsSuitableForSme,
		IsSuitableForVco:   n.IsSuitableForVco,
	}
}

// normalizeSpace collapses multiple spaces into one and trims the string.
func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// HTMLToText converts HTML to plain text, collapsing whitespace.
func HTMLToText(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return html // Fallback to original if parsing fails
	}
	return normalizeSpace(doc.Text())
}

// sanitizeUTF8 removes invalid UTF-8 byte sequences that cause
// PostgreSQL errors.
func sanitizeUTF8(s string) string {
	if utf8.ValidString(s) {
		return s
	}
	return strings.ToValidUTF8(s, "")
}

// sanitizeHTML uses bluemonday to strip unsafe tags and attributes.
func sanitizeHTML(s string) string {
	p := bluemonday.UGCPolicy()
	return p.Sanitize(s)
}
