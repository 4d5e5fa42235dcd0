
package parser

import (
	"bytes"
	"io"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html/charset"

	"llmstxt-crawler/internal/models"
)

// MaxContentLength caps PageRecord.Content, counted in characters after
// whitespace collapsing.
const MaxContentLength = 3000

const boilerplateSelector = `script,style,noscript,nav,footer,aside,.sidebar,#sidebar,` +
	`[role="navigation"],[role="banner"],[role="contentinfo"]`

// contentContainers keep their own <header>: an article header holds the
// page heading, not site chrome.
const contentContainers = `article,main,[role="main"]`

// mainContentSelectors are tried in order; the first one that matches wins.
var mainContentSelectors = []string{
	"main",
	"article",
	`[role="main"]`,
	".main-content",
	"#main-content",
	".content",
	"#content",
	"#main",
	".post-content",
	".entry-content",
}

type Parser struct{}

func New() *Parser { return &Parser{} }

var whitespaceRe = regexp.MustCompile(`[\s\p{Zs}\x{FEFF}]+`)

// Extract decodes r to UTF-8 using the content type and any in-document
// charset declaration, then extracts a PageRecord for pageURL.
func (p *Parser) Extract(pageURL string, r io.Reader, contentType string) (models.PageRecord, error) {
	buf := new(bytes.Buffer)
	if _, err := io.Copy(buf, r); err != nil {
		return models.PageRecord{}, err
	}
	data := buf.Bytes()

	enc, _, _ := charset.DetermineEncoding(data, contentType)
	utf8data, err := enc.NewDecoder().Bytes(data)
	if err != nil {
		// fallback: if already utf-8, continue
		if !utf8.Valid(data) {
			return models.PageRecord{}, err
		}
		utf8data = data
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(utf8data))
	if err != nil {
		return models.PageRecord{}, err
	}
	return extract(pageURL, doc), nil
}

// ExtractPageData extracts a PageRecord from already-decoded markup, as
// handed back by the cloud and browser renderers.
func ExtractPageData(pageURL, markup string) (models.PageRecord, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return models.PageRecord{}, err
	}
	return extract(pageURL, doc), nil
}

func extract(pageURL string, doc *goquery.Document) models.PageRecord {
	doc.Find(boilerplateSelector).Remove()
	doc.Find("header").Each(func(_ int, h *goquery.Selection) {
		if h.ParentsFiltered(contentContainers).Length() == 0 {
			h.Remove()
		}
	})

	title := strings.TrimSpace(doc.Find("title").First().Text())
	desc := strings.TrimSpace(doc.Find(`meta[name="description"]`).AttrOr("content", ""))
	if desc == "" {
		desc = strings.TrimSpace(doc.Find(`meta[property="og:description"]`).AttrOr("content", ""))
	}
	h1 := strings.TrimSpace(doc.Find("h1").First().Text())

	return models.PageRecord{
		URL:         pageURL,
		Title:       title,
		Description: desc,
		H1:          h1,
		Content:     NormalizeContent(mainText(doc)),
	}
}

func mainText(doc *goquery.Document) string {
	for _, sel := range mainContentSelectors {
		if m := doc.Find(sel).First(); m.Length() > 0 {
			return m.Text()
		}
	}
	if body := doc.Find("body"); body.Length() > 0 {
		return body.Text()
	}
	return doc.Text()
}

// NormalizeContent collapses whitespace runs to single spaces, trims, and
// hard-truncates to MaxContentLength characters.
func NormalizeContent(s string) string {
	s = strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
	if utf8.RuneCountInString(s) <= MaxContentLength {
		return s
	}
	runes := []rune(s)
	return string(runes[:MaxContentLength])
}

// PageTitle is the best human-readable label for a page.
func PageTitle(p models.PageRecord) string {
	return firstNonEmpty(p.Title, p.H1, p.URL)
}

// PageDescription is the best available one-line summary of a page.
func PageDescription(p models.PageRecord) string {
	return firstNonEmpty(p.Description, p.H1, p.Title, p.URL)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
