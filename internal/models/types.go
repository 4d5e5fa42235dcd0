
package models

// SitemapEntry is one discovered page URL with its ranking hints.
type SitemapEntry struct {
	URL      string  `json:"url"`
	Priority float64 `json:"priority"`
	LastMod  string  `json:"lastmod,omitempty"`
}

// PageRecord is the normalized result of fetching and extracting one page.
// Every renderer produces this same shape.
type PageRecord struct {
	URL         string `json:"url"`
	Title       string `json:"title"`
	Description string `json:"description"`
	H1          string `json:"h1"`
	Content     string `json:"content"`
}

type Entry struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	Description string `json:"description"`
}

type Section struct {
	Label   string  `json:"label"`
	Entries []Entry `json:"entries"`
}

// SiteInfo is the header metadata of a generated document.
type SiteInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}
