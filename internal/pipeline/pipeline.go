// Package pipeline runs a full generation: URL discovery, page rendering,
// optional AI descriptions, overrides and formatting.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"llmstxt-crawler/internal/classifier"
	"llmstxt-crawler/internal/config"
	"llmstxt-crawler/internal/crawler"
	"llmstxt-crawler/internal/enrich"
	"llmstxt-crawler/internal/formatter"
	"llmstxt-crawler/internal/models"
	"llmstxt-crawler/internal/render"
	"llmstxt-crawler/internal/sitemap"
	"llmstxt-crawler/pkg/logger"
)

const (
	SourceList     = "list"
	SourceExplicit = "explicit"
	SourceSitemap  = "sitemap"
	SourceCrawl    = "crawl"
)

type Generator struct {
	resolver  *sitemap.Resolver
	spider    *crawler.Spider
	renderer  render.Renderer
	describer enrich.Describer
	logger    *slog.Logger
	now       func() time.Time
}

type Option func(*Generator)

func WithLogger(l *slog.Logger) Option {
	return func(g *Generator) { g.logger = l }
}

// WithDescriber enables AI descriptions for requests that ask for them.
func WithDescriber(d enrich.Describer) Option {
	return func(g *Generator) { g.describer = d }
}

func WithClock(now func() time.Time) Option {
	return func(g *Generator) { g.now = now }
}

// New wires a generator. client is used for robots.txt, sitemaps and the
// crawl fallback; renderer fetches the pages that end up in the document.
func New(client *crawler.HTTPClient, renderer render.Renderer, opts ...Option) *Generator {
	g := &Generator{renderer: renderer, logger: logger.Nop(), now: time.Now}
	for _, opt := range opts {
		opt(g)
	}
	g.resolver = sitemap.NewResolver(client, sitemap.WithLogger(g.logger))
	g.spider = crawler.NewSpider(client, crawler.WithLogger(g.logger))
	return g
}

// Build wires a generator from cfg: an HTTP client sized by its timeout,
// the configured renderer and, when aiDescriptions is on, an OpenAI
// describer. Close the generator to release the renderer.
func Build(cfg config.Config, l *slog.Logger) (*Generator, error) {
	cfg.ApplyDefaults()
	client := crawler.NewHTTPClient(cfg.Timeout(), 5*time.Second, 5*1024*1024)
	r, err := render.New(render.Settings{
		Backend:     cfg.Renderer,
		Timeout:     cfg.Timeout(),
		CloudAPIKey: cfg.Env.CloudKey,
		CloudURL:    cfg.Env.CloudURL,
	}, client)
	if err != nil {
		return nil, err
	}
	opts := []Option{WithLogger(l)}
	if cfg.AIDescriptions {
		var dopts []enrich.Option
		if cfg.Env.OpenAIModel != "" {
			dopts = append(dopts, enrich.WithModel(cfg.Env.OpenAIModel))
		}
		if cfg.Env.OpenAIBaseURL != "" {
			dopts = append(dopts, enrich.WithBaseURL(cfg.Env.OpenAIBaseURL))
		}
		d, err := enrich.NewOpenAIDescriber(cfg.Env.OpenAIKey, dopts...)
		if err != nil {
			_ = r.Close()
			return nil, err
		}
		opts = append(opts, WithDescriber(d))
	}
	return New(client, r, opts...), nil
}

func (g *Generator) Close() error {
	return g.renderer.Close()
}

type Request struct {
	SiteURL string
	// URLs, when set, replaces discovery entirely.
	URLs   []string
	Config config.Config
}

type Result struct {
	Summary string
	Full    string
	Records []models.PageRecord
	Site    models.SiteInfo
	Source  string
}

// Generate never fails because individual pages fail; it returns an error
// only for non-positive limits, a bad site URL, a bad exclude pattern, or an
// explicitly configured sitemap that cannot be fetched.
func (g *Generator) Generate(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()
	defer func() { generateDuration.Observe(time.Since(start).Seconds()) }()

	cfg := req.Config
	cfg.ApplyDefaults()
	if err := cfg.CheckLimits(); err != nil {
		return nil, err
	}
	site, err := parseSiteURL(req.SiteURL)
	if err != nil {
		return nil, err
	}
	excluder, err := config.NewExcluder(cfg.Exclude)
	if err != nil {
		return nil, err
	}

	urls, source, err := g.collect(ctx, site.String(), req.URLs, cfg)
	if err != nil {
		return nil, err
	}
	discoveryTotal.WithLabelValues(source).Inc()

	urls = excluder.Filter(dedupe(urls))
	if len(urls) > cfg.MaxPages {
		urls = urls[:cfg.MaxPages]
	}
	g.logger.Info("fetching pages", "site", site.Host, "source", source, "pages", len(urls),
		"renderer", g.renderer.Name(), "concurrency", cfg.Concurrency)

	records := g.fetchAll(ctx, urls, cfg.Concurrency)
	if cfg.AIDescriptions && g.describer != nil {
		g.enrichAll(ctx, records, cfg.Concurrency)
	}
	config.ApplyOverrides(records, cfg.Overrides)

	info := siteInfo(site, records, cfg)
	now := g.now()
	res := &Result{
		Summary: formatter.FormatLlmTxt(records, info, now),
		Records: records,
		Site:    info,
		Source:  source,
	}
	if cfg.Full {
		res.Full = formatter.FormatLlmFullTxt(records, info, now)
	}
	g.logger.Info("generation finished", "site", site.Host, "requested", len(urls), "records", len(records),
		"elapsed", time.Since(start).Round(time.Millisecond))
	return res, nil
}

// collect decides where page URLs come from: an explicit list, an explicit
// sitemap (errors are returned), a discovered sitemap, or the crawl fallback.
func (g *Generator) collect(ctx context.Context, siteURL string, list []string, cfg config.Config) ([]string, string, error) {
	if len(list) > 0 {
		return list, SourceList, nil
	}
	if cfg.Sitemap != "" {
		entries, err := g.resolver.Fetch(ctx, cfg.Sitemap, cfg.MaxPages)
		if err != nil {
			return nil, "", err
		}
		return entryURLs(entries), SourceExplicit, nil
	}
	if sm, ok := g.resolver.Discover(ctx, siteURL); ok {
		entries, err := g.resolver.Fetch(ctx, sm, cfg.MaxPages)
		switch {
		case err != nil:
			g.logger.Warn("discovered sitemap unusable, crawling instead", "sitemap", sm, "error", err)
		case len(entries) == 0:
			g.logger.Warn("discovered sitemap is empty, crawling instead", "sitemap", sm)
		default:
			return entryURLs(entries), SourceSitemap, nil
		}
	}
	entries, err := g.spider.Crawl(ctx, siteURL, cfg.MaxPages)
	if err != nil {
		return nil, "", err
	}
	return entryURLs(entries), SourceCrawl, nil
}

// fetchAll renders urls in batches of size concurrency; each batch finishes
// completely before the next starts. Failed pages are dropped and the
// surviving records keep URL order.
func (g *Generator) fetchAll(ctx context.Context, urls []string, concurrency int) []models.PageRecord {
	concurrency = max(concurrency, 1)
	slots := make([]*models.PageRecord, len(urls))
	for start := 0; start < len(urls); start += concurrency {
		end := min(start+concurrency, len(urls))
		var eg errgroup.Group
		for i := start; i < end; i++ {
			eg.Go(func() error {
				rec, err := g.renderer.Render(ctx, urls[i])
				if err != nil {
					pagesTotal.WithLabelValues(g.renderer.Name(), "failed").Inc()
					g.logger.Warn("page dropped", "url", urls[i], "error", err)
					return nil
				}
				pagesTotal.WithLabelValues(g.renderer.Name(), "ok").Inc()
				rec.URL = urls[i]
				slots[i] = &rec
				return nil
			})
		}
		_ = eg.Wait()
	}

	records := make([]models.PageRecord, 0, len(urls))
	for _, r := range slots {
		if r != nil {
			records = append(records, *r)
		}
	}
	return records
}

// enrichAll replaces descriptions in place, keeping the original on failure.
func (g *Generator) enrichAll(ctx context.Context, records []models.PageRecord, concurrency int) {
	concurrency = max(concurrency, 1)
	for start := 0; start < len(records); start += concurrency {
		end := min(start+concurrency, len(records))
		var eg errgroup.Group
		for i := start; i < end; i++ {
			eg.Go(func() error {
				desc, err := g.describer.Describe(ctx, records[i])
				if err != nil || strings.TrimSpace(desc) == "" {
					enrichTotal.WithLabelValues("failed").Inc()
					g.logger.Debug("description kept", "url", records[i].URL, "error", err)
					return nil
				}
				enrichTotal.WithLabelValues("ok").Inc()
				records[i].Description = strings.TrimSpace(desc)
				return nil
			})
		}
		_ = eg.Wait()
	}
}

func siteInfo(site *url.URL, records []models.PageRecord, cfg config.Config) models.SiteInfo {
	info := models.SiteInfo{Name: cfg.SiteName, Description: cfg.SiteDescription}
	var home *models.PageRecord
	for i := range records {
		p := classifier.PathOf(records[i].URL)
		if p == "" || p == "/" {
			home = &records[i]
			break
		}
	}
	if info.Name == "" && home != nil {
		info.Name = firstNonEmpty(home.Title, home.H1)
	}
	if info.Name == "" {
		info.Name = strings.TrimPrefix(site.Hostname(), "www.")
	}
	if info.Description == "" && home != nil {
		info.Description = home.Description
	}
	return info
}

func parseSiteURL(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw != "" && !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, fmt.Errorf("invalid site url %q", raw)
	}
	u.Fragment = ""
	return u, nil
}

func entryURLs(entries []models.SitemapEntry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.URL
	}
	return out
}

// dedupe drops repeats, comparing URLs without their fragment.
func dedupe(urls []string) []string {
	seen := make(map[string]bool, len(urls))
	out := make([]string, 0, len(urls))
	for _, raw := range urls {
		u := strings.TrimSpace(raw)
		if i := strings.IndexByte(u, '#'); i >= 0 {
			u = u[:i]
		}
		if u == "" || seen[u] {
			continue
		}
		seen[u] = true
		out = append(out, u)
	}
	return out
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
