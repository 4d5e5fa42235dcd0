
package classifier

import (
	"net/url"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"llmstxt-crawler/internal/models"
	"llmstxt-crawler/internal/parser"
)

// KeyPagesLabel is the section that collects home, pricing, legal, support
// and about pages.
const KeyPagesLabel = "Key Pages"

// Pattern maps a path regexp to a section label.
type Pattern struct {
	Label string
	Re    *regexp.Regexp
}

var rootPathRe = regexp.MustCompile(`^/?$`)

// KeyPatterns promote a page into Key Pages.
var KeyPatterns = []Pattern{
	{"Home", rootPathRe},
	{"Pricing", regexp.MustCompile(`(?i)/pricing\b`)},
	{"Legal", regexp.MustCompile(`(?i)/(license|legal|terms|tos)\b`)},
	{"Help & Support", regexp.MustCompile(`(?i)/(help|support|faq|contact)\b`)},
	{"About", regexp.MustCompile(`(?i)/about\b`)},
}

// TopicPatterns label the remaining pages; the first match wins.
var TopicPatterns = []Pattern{
	{"Documentation", regexp.MustCompile(`(?i)/(docs|documentation|guides|tutorials|reference)\b`)},
	{"Blog", regexp.MustCompile(`(?i)/(blog|posts|articles|news|insights)\b`)},
	{"Pricing", regexp.MustCompile(`(?i)/pricing\b`)},
	{"Help & Support", regexp.MustCompile(`(?i)/(help|support|faq|contact)\b`)},
	{"Legal", regexp.MustCompile(`(?i)/(legal|license|terms|tos|privacy)\b`)},
	{"About", regexp.MustCompile(`(?i)/(about|company|team)\b`)},
	{"API & Reference", regexp.MustCompile(`(?i)/(api|sdk)\b`)},
}

var (
	leadingBoilerplateRe = regexp.MustCompile(`(?i)^\s*(explore|browse|download|find|discover)\s+\d{1,3}(,\d{3})*\+?\s+[^.]*?royalty-free\b[^.]*\.?\s*`)
	trailingClauseRe     = regexp.MustCompile(`\s*[–—]([^–—]{1,80})$`)
	availableRe          = regexp.MustCompile(`(?i)\bavailable\b`)
)

// PathOf returns the URL path, or the raw string when it does not parse.
func PathOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	return u.Path
}

// IsKeyPage reports whether a page belongs in Key Pages.
func IsKeyPage(rawURL string) bool {
	p := PathOf(rawURL)
	for _, kp := range KeyPatterns {
		if kp.Re.MatchString(p) {
			return true
		}
	}
	return false
}

// SectionLabel picks the topic section for a non-key page: the first matching
// topic pattern, else the first path segment in title case, else Key Pages.
func SectionLabel(rawURL string) string {
	p := PathOf(rawURL)
	for _, tp := range TopicPatterns {
		if tp.Re.MatchString(p) {
			return tp.Label
		}
	}
	for _, seg := range strings.Split(p, "/") {
		if seg != "" {
			return titleCase(strings.ReplaceAll(seg, "-", " "))
		}
	}
	return KeyPagesLabel
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		r, size := utf8.DecodeRuneInString(w)
		words[i] = string(unicode.ToUpper(r)) + w[size:]
	}
	return strings.Join(words, " ")
}

// Classify partitions pages into sections. Key Pages comes first (present even
// when empty); topic sections follow in first-seen order. Each page lands in
// exactly one section and keeps its relative order.
func Classify(pages []models.PageRecord, siteName string) []models.Section {
	key := models.Section{Label: KeyPagesLabel}
	var topics []*models.Section
	byLabel := map[string]*models.Section{}

	for _, p := range pages {
		entry := models.Entry{
			Title:       CleanTitle(parser.PageTitle(p), siteName),
			URL:         p.URL,
			Description: CleanDescription(parser.PageDescription(p)),
		}
		if IsKeyPage(p.URL) {
			key.Entries = append(key.Entries, entry)
			continue
		}
		label := SectionLabel(p.URL)
		if label == KeyPagesLabel {
			key.Entries = append(key.Entries, entry)
			continue
		}
		sec, ok := byLabel[label]
		if !ok {
			sec = &models.Section{Label: label}
			byLabel[label] = sec
			topics = append(topics, sec)
		}
		sec.Entries = append(sec.Entries, entry)
	}

	out := make([]models.Section, 0, len(topics)+1)
	out = append(out, key)
	for _, s := range topics {
		out = append(out, *s)
	}
	return out
}

// CleanTitle drops a trailing site-name suffix separated by a pipe, hyphen,
// en dash or em dash. The name is matched case-insensitively.
func CleanTitle(title, siteName string) string {
	if title == "" || siteName == "" {
		return title
	}
	re, err := regexp.Compile(`(?i)\s*[|\-–—]\s*` + regexp.QuoteMeta(siteName) + `\s*$`)
	if err != nil {
		return title
	}
	loc := re.FindStringIndex(title)
	if loc == nil {
		return title
	}
	cleaned := strings.TrimSpace(title[:loc[0]])
	if cleaned == "" {
		return title
	}
	return cleaned
}

// CleanDescription strips stock-site boilerplate: a leading "Browse 12,345
// royalty-free ..." sentence and a trailing dash clause mentioning
// availability. It never returns an empty string for a non-empty input.
func CleanDescription(desc string) string {
	cleaned := leadingBoilerplateRe.ReplaceAllString(desc, "")
	if m := trailingClauseRe.FindStringSubmatchIndex(cleaned); m != nil {
		if availableRe.MatchString(cleaned[m[2]:m[3]]) {
			cleaned = cleaned[:m[0]]
		}
	}
	cleaned = strings.TrimSpace(cleaned)
	if cleaned == "" {
		return desc
	}
	return cleaned
}
