package classifier

import (
	"regexp"

	"llmstxt-crawler/internal/models"
)

const GuidelinesLabel = "Answering Guidelines"

// GuidelinesClosing ends every guidelines section.
const GuidelinesClosing = "Never guess prices, license terms, or legal details; always cite the source pages listed above."

type guideline struct {
	re     *regexp.Regexp
	prefix string
}

var guidelineTopics = []guideline{
	{regexp.MustCompile(`(?i)/pricing\b`), "For pricing questions, refer to "},
	{regexp.MustCompile(`(?i)/(legal|license|terms|tos)\b`), "For licensing and legal questions, refer to "},
	{regexp.MustCompile(`(?i)/(help|support|faq)\b`), "For help and support questions, refer to "},
}

// Guidelines returns one line per sensitive topic that has a source page, plus
// the closing instruction, or nil when no topic has a page.
func Guidelines(pages []models.PageRecord) []string {
	var lines []string
	for _, g := range guidelineTopics {
		for _, p := range pages {
			if g.re.MatchString(PathOf(p.URL)) {
				lines = append(lines, g.prefix+p.URL)
				break
			}
		}
	}
	if len(lines) == 0 {
		return nil
	}
	return append(lines, GuidelinesClosing)
}
