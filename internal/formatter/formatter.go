// Package formatter renders classified pages as llms.txt and llms-full.txt
// documents. It does no I/O; output depends only on its inputs.
package formatter

import (
	"strings"
	"time"

	"llmstxt-crawler/internal/classifier"
	"llmstxt-crawler/internal/models"
	"llmstxt-crawler/internal/parser"
)

const separator = "---"

// FormatLlmTxt renders the summary document.
func FormatLlmTxt(pages []models.PageRecord, site models.SiteInfo, now time.Time) string {
	var b strings.Builder
	writeSummary(&b, pages, site, now)
	return strings.TrimRight(b.String(), "\n") + "\n"
}

// FormatLlmFullTxt renders the summary followed by the extracted content of
// every page that has any.
func FormatLlmFullTxt(pages []models.PageRecord, site models.SiteInfo, now time.Time) string {
	var b strings.Builder
	b.WriteString(FormatLlmTxt(pages, site, now))
	b.WriteString("\n" + separator + "\n\n")
	for _, p := range pages {
		if p.Content == "" {
			continue
		}
		b.WriteString("## " + classifier.CleanTitle(parser.PageTitle(p), site.Name) + "\n\n")
		b.WriteString("URL: " + p.URL + "\n\n")
		b.WriteString(p.Content + "\n\n")
		b.WriteString(separator + "\n\n")
	}
	return strings.TrimRight(b.String(), "\n") + "\n"
}

func writeSummary(b *strings.Builder, pages []models.PageRecord, site models.SiteInfo, now time.Time) {
	b.WriteString("# " + site.Name + "\n\n")
	b.WriteString(strings.TrimRight("> "+site.Description, " ") + "\n\n")
	b.WriteString("_Generated: " + now.Format("2006-01-02") + "_\n")

	for _, sec := range classifier.Classify(pages, site.Name) {
		if sec.Label == classifier.KeyPagesLabel && len(sec.Entries) == 0 && len(pages) > 0 {
			continue
		}
		b.WriteString("\n## " + sec.Label + "\n\n")
		for _, e := range sec.Entries {
			b.WriteString("- [" + e.Title + "](" + e.URL + "): " + e.Description + "\n")
		}
	}

	if lines := classifier.Guidelines(pages); lines != nil {
		b.WriteString("\n## " + classifier.GuidelinesLabel + "\n\n")
		for _, l := range lines {
			b.WriteString("- " + l + "\n")
		}
	}
}
