
package crawler

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultUserAgent = "llmstxt-crawler/1.0 (+https://llmstxt.org)"

// StatusError reports a non-2xx HTTP response.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("http status %d for %s", e.Code, e.URL)
}

// ErrNonHTML is returned by Fetch when the response is not an HTML document.
var ErrNonHTML = errors.New("non-html content")

// DocumentCap bounds FetchBytes reads. Sitemaps may be 50 MB uncompressed,
// far above what a single HTML page needs.
const DocumentCap = 50 << 20

type HTTPClient struct {
	client    *http.Client
	sizeCap   int64
	docCap    int64
	userAgent string
}

func NewHTTPClient(timeout, dialTimeout time.Duration, sizeCap int64) *HTTPClient {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   dialTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        100,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}
	return &HTTPClient{
		client: &http.Client{
			Transport: transport,
			Timeout:   timeout,
		},
		sizeCap:   sizeCap,
		docCap:    max(sizeCap, DocumentCap),
		userAgent: defaultUserAgent,
	}
}

// Fetch retrieves an HTML page. The returned body is size-capped and already
// gunzipped; non-HTML responses are rejected with ErrNonHTML.
func (h *HTTPClient) Fetch(ctx context.Context, rawURL string) (io.ReadCloser, string, string, time.Duration, error) {
	start := time.Now()
	resp, body, err := h.do(ctx, rawURL, "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	if err != nil {
		return nil, "", "", 0, err
	}

	contentType := resp.Header.Get("Content-Type")
	mediaType, _, _ := mime.ParseMediaType(contentType)
	if !strings.Contains(mediaType, "text/html") && !strings.Contains(mediaType, "application/xhtml+xml") && mediaType != "" {
		// still allow if empty (some servers omit), otherwise reject non-html
		body.Close()
		return nil, "", "", 0, ErrNonHTML
	}

	finalURL := resp.Request.URL.String()
	elapsed := time.Since(start)
	return readCloser{Reader: io.LimitReader(body, h.sizeCap), Closer: body}, finalURL, contentType, elapsed, nil
}

// FetchBytes retrieves any document (robots.txt, sitemap XML) regardless of
// content type and returns at most DocumentCap bytes of it. The page size cap
// does not apply.
func (h *HTTPClient) FetchBytes(ctx context.Context, rawURL string) ([]byte, error) {
	_, body, err := h.do(ctx, rawURL, "application/xml,text/xml,text/plain;q=0.9,*/*;q=0.8")
	if err != nil {
		return nil, err
	}
	defer body.Close()
	return io.ReadAll(io.LimitReader(body, h.docCap))
}

func (h *HTTPClient) do(ctx context.Context, rawURL, accept string) (*http.Response, io.ReadCloser, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, nil, fmt.Errorf("invalid url %q", rawURL)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Accept", accept)
	req.Header.Set("Accept-Encoding", "gzip")
	req.Header.Set("User-Agent", h.userAgent)

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		return nil, nil, &StatusError{URL: rawURL, Code: resp.StatusCode}
	}

	var body io.ReadCloser = resp.Body
	if strings.EqualFold(resp.Header.Get("Content-Encoding"), "gzip") {
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			resp.Body.Close()
			return nil, nil, err
		}
		body = multiCloser{ReadCloser: gz, under: resp.Body}
	}
	return resp, body, nil
}

type readCloser struct {
	io.Reader
	io.Closer
}

type multiCloser struct {
	io.ReadCloser
	under io.Closer
}

func (m multiCloser) Close() error {
	err := m.ReadCloser.Close()
	if cerr := m.under.Close(); err == nil {
		err = cerr
	}
	return err
}
