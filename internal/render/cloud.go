package render

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"llmstxt-crawler/internal/crawler"
	"llmstxt-crawler/internal/models"
	"llmstxt-crawler/internal/parser"
)

const defaultCloudURL = "https://api.firecrawl.dev/v1"

type CloudOption func(*CloudRenderer)

func WithBaseURL(baseURL string) CloudOption {
	return func(c *CloudRenderer) { c.baseURL = strings.TrimRight(baseURL, "/") }
}

func WithHTTPClient(hc *http.Client) CloudOption {
	return func(c *CloudRenderer) { c.httpClient = hc }
}

// WithTimeout is ignored when a custom HTTP client is supplied.
func WithTimeout(d time.Duration) CloudOption {
	return func(c *CloudRenderer) {
		if d > 0 && c.httpClient == defaultCloudHTTPClient {
			c.httpClient = &http.Client{Timeout: d}
		}
	}
}

var defaultCloudHTTPClient = &http.Client{Timeout: 60 * time.Second}

// CloudRenderer asks a hosted scraping API to render the page in a real
// browser and return the HTML.
type CloudRenderer struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

var _ Renderer = (*CloudRenderer)(nil)

func NewCloudRenderer(apiKey string, opts ...CloudOption) (*CloudRenderer, error) {
	c := &CloudRenderer{
		apiKey:     apiKey,
		baseURL:    defaultCloudURL,
		httpClient: defaultCloudHTTPClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.apiKey == "" {
		return nil, errors.New("cloud renderer: no api key provided")
	}
	return c, nil
}

type scrapeRequest struct {
	URL             string   `json:"url"`
	Formats         []string `json:"formats"`
	OnlyMainContent bool     `json:"onlyMainContent"`
}

type scrapeResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	Data    struct {
		HTML     string `json:"html"`
		Metadata struct {
			Title       string `json:"title"`
			Description string `json:"description"`
		} `json:"metadata"`
	} `json:"data"`
}

func (c *CloudRenderer) Render(ctx context.Context, pageURL string) (models.PageRecord, error) {
	payload, err := json.Marshal(scrapeRequest{URL: pageURL, Formats: []string{"html"}})
	if err != nil {
		return models.PageRecord{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/scrape", bytes.NewReader(payload))
	if err != nil {
		return models.PageRecord{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return models.PageRecord{}, fmt.Errorf("scrape request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))
		return models.PageRecord{}, &crawler.StatusError{URL: pageURL, Code: resp.StatusCode}
	}

	var out scrapeResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return models.PageRecord{}, fmt.Errorf("decode scrape response: %w", err)
	}
	if !out.Success {
		return models.PageRecord{}, fmt.Errorf("scrape of %s failed: %s", pageURL, out.Error)
	}

	rec, err := parser.ExtractPageData(pageURL, out.Data.HTML)
	if err != nil {
		return models.PageRecord{}, err
	}
	if rec.Title == "" {
		rec.Title = strings.TrimSpace(out.Data.Metadata.Title)
	}
	if rec.Description == "" {
		rec.Description = strings.TrimSpace(out.Data.Metadata.Description)
	}
	return rec, nil
}

func (c *CloudRenderer) Name() string { return Cloud }

func (c *CloudRenderer) Close() error { return nil }
