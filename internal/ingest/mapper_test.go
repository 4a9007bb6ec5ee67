package ingest

import (
	"strings"
	"testing"

	"github.com/theodi/contract-radar/internal/feed"
)

func TestFromNoticeFlattensTitleHTML(t *testing.T) {
	n := feed.Notice{
		ID:               "n1",
		Title:            "<p>Data   Platform <b>Services</b></p>",
		OrganisationName: "  Cabinet   Office ",
	}

	record := FromNotice(n)

	if record.Title != "Data Platform Services" {
		t.Errorf("Title = %q, want flattened plain text", record.Title)
	}
	if record.OrganisationName != "Cabinet Office" {
		t.Errorf("OrganisationName = %q, want normalized spacing", record.OrganisationName)
	}
}

func TestFromNoticeSanitizesDescription(t *testing.T) {
	n := feed.Notice{
		ID:          "n1",
		Title:       "Title",
		Description: `<p>Safe content</p><script>alert("x")</script>`,
	}

	record := FromNotice(n)

	if strings.Contains(record.Description, "script") {
		t.Errorf("Description still contains script tag: %q", record.Description)
	}
	if !strings.Contains(record.Description, "Safe content") {
		t.Errorf("Description lost safe content: %q", record.Description)
	}
}

func TestSanitizeUTF8(t *testing.T) {
	in := "valid \xff\xfe text"
	out := sanitizeUTF8(in)
	if strings.ContainsRune(out, '�') {
		t.Errorf("replacement runes remain: %q", out)
	}
	if !strings.Contains(out, "valid") || !strings.Contains(out, "text") {
		t.Errorf("valid content lost: %q", out)
	}
}

func TestHTMLToTextFallsBackOnRawInput(t *testing.T) {
	plain := "no markup here"
	if got := HTMLToText(plain); got != plain {
		t.Errorf("HTMLToText(%q) = %q", plain, got)
	}
}
