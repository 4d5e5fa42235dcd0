// Package render turns a URL into a PageRecord. Every backend produces the
// same record shape, so the rest of the pipeline does not care which one ran.
package render

import (
	"context"
	"fmt"
	"time"

	"llmstxt-crawler/internal/crawler"
	"llmstxt-crawler/internal/models"
	"llmstxt-crawler/internal/parser"
)

const (
	Fetch   = "fetch"
	Cloud   = "cloud"
	Browser = "browser"
)

// Renderer fetches one page. An error means only that page is lost.
type Renderer interface {
	Render(ctx context.Context, pageURL string) (models.PageRecord, error)
	Name() string
	Close() error
}

// HTTPRenderer fetches raw HTML without running scripts.
type HTTPRenderer struct {
	client *crawler.HTTPClient
	parser *parser.Parser
}

var _ Renderer = (*HTTPRenderer)(nil)

func NewHTTPRenderer(client *crawler.HTTPClient) *HTTPRenderer {
	return &HTTPRenderer{client: client, parser: parser.New()}
}

func (r *HTTPRenderer) Render(ctx context.Context, pageURL string) (models.PageRecord, error) {
	body, _, ct, _, err := r.client.Fetch(ctx, pageURL)
	if err != nil {
		return models.PageRecord{}, err
	}
	defer body.Close()
	rec, err := r.parser.Extract(pageURL, body, ct)
	if err != nil {
		return models.PageRecord{}, fmt.Errorf("extract %s: %w", pageURL, err)
	}
	return rec, nil
}

func (r *HTTPRenderer) Name() string { return Fetch }

func (r *HTTPRenderer) Close() error { return nil }

// Settings selects and configures a backend for New.
type Settings struct {
	Backend     string
	Timeout     time.Duration
	CloudAPIKey string
	CloudURL    string
}

// New builds the renderer named by s.Backend, defaulting to plain fetch.
func New(s Settings, client *crawler.HTTPClient) (Renderer, error) {
	switch s.Backend {
	case "", Fetch:
		return NewHTTPRenderer(client), nil
	case Cloud:
		opts := []CloudOption{WithTimeout(s.Timeout)}
		if s.CloudURL != "" {
			opts = append(opts, WithBaseURL(s.CloudURL))
		}
		return NewCloudRenderer(s.CloudAPIKey, opts...)
	case Browser:
		return NewBrowserRenderer(s.Timeout)
	default:
		return nil, fmt.Errorf("unknown renderer %q", s.Backend)
	}
}
