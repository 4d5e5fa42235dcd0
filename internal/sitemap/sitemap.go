// Package sitemap finds a site's sitemap and expands it, including nested
// sitemap indexes, into ranked page entries.
package sitemap

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"llmstxt-crawler/internal/models"
	"llmstxt-crawler/pkg/logger"
)

const (
	robotsTimeout   = 5 * time.Second
	probeTimeout    = 10 * time.Second
	defaultPriority = 0.5
	maxIndexDepth   = 3
)

// ErrUnknownFormat is returned for XML that is neither a urlset nor a
// sitemapindex.
var ErrUnknownFormat = errors.New("not a sitemap document")

// wellKnownPaths are probed after any robots.txt declaration, in this order.
var wellKnownPaths = []string{
	"/sitemap.xml",
	"/sitemap_index.xml",
	"/sitemap/sitemap.xml",
}

var robotsSitemapRe = regexp.MustCompile(`(?im)^\s*sitemap:\s*(\S+)`)

// Fetcher is satisfied by *crawler.HTTPClient.
type Fetcher interface {
	FetchBytes(ctx context.Context, rawURL string) ([]byte, error)
}

type Resolver struct {
	fetcher Fetcher
	logger  *slog.Logger
}

type Option func(*Resolver)

func WithLogger(l *slog.Logger) Option {
	return func(r *Resolver) { r.logger = l }
}

func NewResolver(f Fetcher, opts ...Option) *Resolver {
	r := &Resolver{fetcher: f, logger: logger.Nop()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Discover looks for a usable sitemap for the site at siteURL. A robots.txt
// Sitemap directive is tried first, then the well-known paths. Network
// failures only move on to the next candidate; ok is false when nothing
// answered with sitemap XML.
func (r *Resolver) Discover(ctx context.Context, siteURL string) (sitemapURL string, ok bool) {
	origin, err := originOf(siteURL)
	if err != nil {
		r.logger.Debug("sitemap discovery skipped", "url", siteURL, "error", err)
		return "", false
	}

	var candidates []string
	if declared := r.robotsSitemap(ctx, origin); declared != "" {
		candidates = append(candidates, declared)
	}
	for _, p := range wellKnownPaths {
		candidates = append(candidates, origin+p)
	}

	tried := map[string]bool{}
	for _, c := range candidates {
		if tried[c] {
			continue
		}
		tried[c] = true
		if r.looksLikeSitemap(ctx, c) {
			r.logger.Debug("sitemap found", "url", c)
			return c, true
		}
	}
	return "", false
}

func (r *Resolver) robotsSitemap(ctx context.Context, origin string) string {
	ctx, cancel := context.WithTimeout(ctx, robotsTimeout)
	defer cancel()
	body, err := r.fetcher.FetchBytes(ctx, origin+"/robots.txt")
	if err != nil {
		r.logger.Debug("robots.txt unavailable", "origin", origin, "error", err)
		return ""
	}
	m := robotsSitemapRe.FindSubmatch(body)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(string(m[1]))
}

func (r *Resolver) looksLikeSitemap(ctx context.Context, candidate string) bool {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	body, err := r.fetcher.FetchBytes(ctx, candidate)
	if err != nil {
		r.logger.Debug("sitemap candidate failed", "url", candidate, "error", err)
		return false
	}
	body = maybeGunzip(body)
	return bytes.Contains(body, []byte("<urlset")) || bytes.Contains(body, []byte("<sitemapindex"))
}

// Fetch downloads and parses the sitemap at sitemapURL. Unlike discovery,
// a failed fetch is returned to the caller; a non-2xx response surfaces as
// *crawler.StatusError.
func (r *Resolver) Fetch(ctx context.Context, sitemapURL string, limit int) ([]models.SitemapEntry, error) {
	return r.fetch(ctx, sitemapURL, limit, 0)
}

func (r *Resolver) fetch(ctx context.Context, sitemapURL string, limit, depth int) ([]models.SitemapEntry, error) {
	base, err := url.Parse(sitemapURL)
	if err != nil {
		return nil, fmt.Errorf("parse sitemap url: %w", err)
	}
	data, err := r.fetcher.FetchBytes(ctx, sitemapURL)
	if err != nil {
		return nil, fmt.Errorf("fetch sitemap %s: %w", sitemapURL, err)
	}
	entries, err := r.parse(ctx, maybeGunzip(data), base, limit, depth)
	if err != nil {
		return nil, fmt.Errorf("parse sitemap %s: %w", sitemapURL, err)
	}
	return entries, nil
}

// Parse turns sitemap XML into entries. A sitemapindex is expanded by fetching
// each child in turn while the shared limit has room; children that fail are
// skipped. A urlset is truncated to limit in document order and then sorted by
// priority, highest first, keeping document order for ties. limit <= 0 means
// no cap. Relative locations resolve against base, which may be nil.
func (r *Resolver) Parse(ctx context.Context, data []byte, base *url.URL, limit int) ([]models.SitemapEntry, error) {
	return r.parse(ctx, data, base, limit, 0)
}

func (r *Resolver) parse(ctx context.Context, data []byte, base *url.URL, limit, depth int) ([]models.SitemapEntry, error) {
	root, err := rootElement(data)
	if err != nil {
		return nil, err
	}
	switch root {
	case "sitemapindex":
		return r.expandIndex(ctx, data, base, limit, depth)
	case "urlset":
		return parseURLSet(data, base, limit)
	default:
		return nil, fmt.Errorf("%w: root element <%s>", ErrUnknownFormat, root)
	}
}

func (r *Resolver) expandIndex(ctx context.Context, data []byte, base *url.URL, limit, depth int) ([]models.SitemapEntry, error) {
	var refs []sitemapRef
	if err := eachElement(data, "sitemap", func(ref sitemapRef) bool {
		refs = append(refs, ref)
		return true
	}); err != nil {
		return nil, err
	}
	if depth >= maxIndexDepth {
		r.logger.Warn("sitemap index nesting too deep, ignoring children", "depth", depth)
		return nil, nil
	}

	var entries []models.SitemapEntry
	for _, sm := range refs {
		remaining := 0
		if limit > 0 {
			remaining = limit - len(entries)
			if remaining <= 0 {
				break
			}
		}
		loc, ok := resolveLoc(base, sm.Location)
		if !ok {
			continue
		}
		child, err := r.fetch(ctx, loc, remaining, depth+1)
		if err != nil {
			r.logger.Warn("child sitemap skipped", "url", loc, "error", err)
			continue
		}
		entries = append(entries, child...)
	}
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

func parseURLSet(data []byte, base *url.URL, limit int) ([]models.SitemapEntry, error) {
	var entries []models.SitemapEntry
	err := eachElement(data, "url", func(u urlEntry) bool {
		if loc, ok := resolveLoc(base, u.Location); ok {
			entries = append(entries, models.SitemapEntry{
				URL:      loc,
				Priority: parsePriority(u.Priority),
				LastMod:  strings.TrimSpace(u.LastMod),
			})
		}
		return limit <= 0 || len(entries) < limit
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Priority > entries[j].Priority
	})
	return entries, nil
}

// eachElement streams data and decodes every <name> element into a T,
// stopping as soon as fn returns false. Nothing after that point is read.
// A document that breaks off after at least one element keeps what was
// decoded; one that breaks before any element is an error.
func eachElement[T any](data []byte, name string, fn func(T) bool) error {
	dec := xml.NewDecoder(bytes.NewReader(data))
	decoded := 0
	for {
		tok, err := dec.Token()
		if err != nil {
			if errors.Is(err, io.EOF) || decoded > 0 {
				return nil
			}
			return err
		}
		se, ok := tok.(xml.StartElement)
		if !ok || se.Name.Local != name {
			continue
		}
		var v T
		if err := dec.DecodeElement(&v, &se); err != nil {
			if decoded > 0 {
				return nil
			}
			return err
		}
		decoded++
		if !fn(v) {
			return nil
		}
	}
}

// parsePriority falls back to 0.5 for missing, malformed or out-of-range values.
func parsePriority(s string) float64 {
	p, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || p < 0 || p > 1 {
		return defaultPriority
	}
	return p
}

func resolveLoc(base *url.URL, loc string) (string, bool) {
	loc = strings.TrimSpace(loc)
	if loc == "" {
		return "", false
	}
	u, err := url.Parse(loc)
	if err != nil {
		return "", false
	}
	if base != nil {
		u = base.ResolveReference(u)
	}
	u.Fragment = ""
	u.RawFragment = ""
	return u.String(), true
}

func rootElement(data []byte) (string, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	for {
		tok, err := dec.Token()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return "", ErrUnknownFormat
			}
			return "", err
		}
		if se, ok := tok.(xml.StartElement); ok {
			return se.Name.Local, nil
		}
	}
}

func maybeGunzip(data []byte) []byte {
	if len(data) < 2 || data[0] != 0x1f || data[1] != 0x8b {
		return data
	}
	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return data
	}
	defer zr.Close()
	out, err := io.ReadAll(zr)
	if err != nil {
		return data
	}
	return out
}

func originOf(rawURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", err
	}
	if u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return "", fmt.Errorf("not an absolute http(s) url: %q", rawURL)
	}
	return u.Scheme + "://" + u.Host, nil
}

type sitemapRef struct {
	Location string `xml:"loc"`
}

type urlEntry struct {
	Location string `xml:"loc"`
	LastMod  string `xml:"lastmod"`
	Priority string `xml:"priority"`
}
