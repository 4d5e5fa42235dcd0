package crawler

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"llmstxt-crawler/internal/models"
	"llmstxt-crawler/pkg/logger"
)

// PageFetcher is satisfied by *HTTPClient.
type PageFetcher interface {
	Fetch(ctx context.Context, rawURL string) (io.ReadCloser, string, string, time.Duration, error)
}

var staticAssetRe = regexp.MustCompile(`(?i)\.(pdf|png|jpe?g|gif|svg|webp|avif|bmp|tiff?|ico|woff2?|ttf|otf|eot|css|js|mjs|zip|tar|gz|tgz|bz2|rar|7z|xml|json)$`)

// Spider is the link-following fallback used when a site has no sitemap.
type Spider struct {
	fetcher PageFetcher
	logger  *slog.Logger
}

type SpiderOption func(*Spider)

func WithLogger(l *slog.Logger) SpiderOption {
	return func(s *Spider) { s.logger = l }
}

func NewSpider(f PageFetcher, opts ...SpiderOption) *Spider {
	s := &Spider{fetcher: f, logger: logger.Nop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Crawl walks same-origin links breadth first from baseURL, one fetch at a
// time, and returns at most limit entries in discovery order. Pages that fail
// to fetch are dropped. The only error is an unusable baseURL.
func (s *Spider) Crawl(ctx context.Context, baseURL string, limit int) ([]models.SitemapEntry, error) {
	seed := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	origin, err := url.Parse(seed)
	if err != nil || origin.Host == "" || (origin.Scheme != "http" && origin.Scheme != "https") {
		return nil, fmt.Errorf("invalid base url %q", baseURL)
	}
	origin.Fragment = ""
	seed = origin.String()

	queue := []string{seed}
	visited := map[string]bool{}
	queued := map[string]bool{visitKey(origin): true}
	var entries []models.SitemapEntry

	for len(queue) > 0 && (limit <= 0 || len(entries) < limit) {
		if ctx.Err() != nil {
			break
		}
		current := queue[0]
		queue = queue[1:]

		u, err := url.Parse(current)
		if err != nil {
			continue
		}
		key := visitKey(u)
		if visited[key] {
			continue
		}
		visited[key] = true

		body, _, _, _, err := s.fetcher.Fetch(ctx, current)
		if err != nil {
			s.logger.Debug("crawl fetch failed", "url", current, "error", err)
			continue
		}
		doc, err := goquery.NewDocumentFromReader(body)
		body.Close()
		if err != nil {
			s.logger.Debug("crawl parse failed", "url", current, "error", err)
			continue
		}

		priority := 0.5
		if u.Path == "" || u.Path == "/" {
			priority = 1.0
		}
		entries = append(entries, models.SitemapEntry{URL: current, Priority: priority})

		doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
			href, _ := sel.Attr("href")
			link, ok := resolveLink(u, href)
			if !ok || link.Scheme != origin.Scheme || link.Host != origin.Host {
				return
			}
			if staticAssetRe.MatchString(link.Path) {
				return
			}
			k := visitKey(link)
			if visited[k] || queued[k] {
				return
			}
			queued[k] = true
			queue = append(queue, link.String())
		})
	}

	s.logger.Info("crawl finished", "base", seed, "pages", len(entries), "visited", len(visited))
	return entries, nil
}

func resolveLink(base *url.URL, href string) (*url.URL, bool) {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return nil, false
	}
	ref, err := url.Parse(href)
	if err != nil {
		return nil, false
	}
	abs := base.ResolveReference(ref)
	if abs.Scheme != "http" && abs.Scheme != "https" {
		return nil, false
	}
	abs.Fragment = ""
	abs.RawFragment = ""
	return abs, true
}

// visitKey identifies a page for dedup: no fragment, and an empty path is
// the same page as "/".
func visitKey(u *url.URL) string {
	c := *u
	c.Fragment = ""
	c.RawFragment = ""
	if c.Path == "" {
		c.Path = "/"
	}
	return c.String()
}
