package render

import (
	"context"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"llmstxt-crawler/internal/models"
	"llmstxt-crawler/internal/parser"
)

const (
	defaultRenderTimeout = 30 * time.Second
	renderStableDur      = 500 * time.Millisecond
	maxConcurrentTabs    = 4
)

// Images, fonts, styles and media never change the extracted text.
var blockedResourceTypes = []proto.NetworkResourceType{
	proto.NetworkResourceTypeImage,
	proto.NetworkResourceTypeFont,
	proto.NetworkResourceTypeStylesheet,
	proto.NetworkResourceTypeMedia,
}

// BrowserRenderer drives a local headless Chromium so client-rendered pages
// have their final DOM extracted.
type BrowserRenderer struct {
	browser *rod.Browser
	timeout time.Duration
	tabSem  chan struct{}
}

var _ Renderer = (*BrowserRenderer)(nil)

// NewBrowserRenderer launches Chromium; it fails when no browser can be
// started or downloaded.
func NewBrowserRenderer(timeout time.Duration) (*BrowserRenderer, error) {
	if timeout <= 0 {
		timeout = defaultRenderTimeout
	}
	u, err := launcher.New().
		Headless(true).
		Set("disable-gpu").
		Set("no-sandbox").
		Set("disable-dev-shm-usage").
		Launch()
	if err != nil {
		return nil, fmt.Errorf("launch headless browser: %w", err)
	}

	browser := rod.New().ControlURL(u)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("connect to headless browser: %w", err)
	}
	return &BrowserRenderer{
		browser: browser,
		timeout: timeout,
		tabSem:  make(chan struct{}, maxConcurrentTabs),
	}, nil
}

func (b *BrowserRenderer) Render(ctx context.Context, pageURL string) (models.PageRecord, error) {
	select {
	case b.tabSem <- struct{}{}:
		defer func() { <-b.tabSem }()
	case <-ctx.Done():
		return models.PageRecord{}, ctx.Err()
	}

	page, err := stealth.Page(b.browser)
	if err != nil {
		return models.PageRecord{}, fmt.Errorf("create tab: %w", err)
	}
	defer page.Close()

	renderCtx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()
	page = page.Context(renderCtx)

	router := page.HijackRequests()
	for _, rt := range blockedResourceTypes {
		_ = router.Add("*", rt, func(h *rod.Hijack) {
			h.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
		})
	}
	go router.Run()
	defer func() { _ = router.Stop() }()

	if err := page.Navigate(pageURL); err != nil {
		return models.PageRecord{}, fmt.Errorf("navigate to %s: %w", pageURL, err)
	}
	_ = page.WaitStable(renderStableDur)

	html, err := page.HTML()
	if err != nil {
		return models.PageRecord{}, fmt.Errorf("get html from %s: %w", pageURL, err)
	}
	return parser.ExtractPageData(pageURL, html)
}

func (b *BrowserRenderer) Name() string { return Browser }

func (b *BrowserRenderer) Close() error {
	return b.browser.Close()
}
