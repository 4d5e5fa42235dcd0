package sitemap

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"llmstxt-crawler/internal/crawler"
	"llmstxt-crawler/internal/models"
)

// mapFetcher serves canned bodies keyed by URL; anything else is a 404.
type mapFetcher struct {
	bodies map[string]string
	calls  []string
	err    error
}

func (m *mapFetcher) FetchBytes(_ context.Context, rawURL string) ([]byte, error) {
	m.calls = append(m.calls, rawURL)
	if m.err != nil {
		return nil, m.err
	}
	body, ok := m.bodies[rawURL]
	if !ok {
		return nil, &crawler.StatusError{URL: rawURL, Code: http.StatusNotFound}
	}
	return []byte(body), nil
}

func urlsOf(entries []models.SitemapEntry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.URL
	}
	return out
}

const urlsetXML = `<?xml version="1.0" encoding="UTF-8"?>
<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
  <url><loc>https://example.com/a</loc><priority>0.3</priority></url>
  <url><loc> https://example.com/b </loc></url>
  <url><priority>1.0</priority></url>
  <url><loc>https://example.com/c</loc><priority>0.9</priority><lastmod>2024-05-01</lastmod></url>
  <url><loc>https://example.com/d</loc><priority>abc</priority></url>
  <url><loc>https://example.com/e#frag</loc><priority>0.9</priority></url>
</urlset>`

func TestParseURLSetSortsByPriority(t *testing.T) {
	r := NewResolver(&mapFetcher{})
	entries, err := r.Parse(context.Background(), []byte(urlsetXML), nil, 0)
	require.NoError(t, err)

	require.Equal(t, []string{
		"https://example.com/c",
		"https://example.com/e",
		"https://example.com/b",
		"https://example.com/d",
		"https://example.com/a",
	}, urlsOf(entries))
	assert.Equal(t, 0.9, entries[0].Priority)
	assert.Equal(t, "2024-05-01", entries[0].LastMod)
	assert.Empty(t, entries[1].LastMod)
	assert.Equal(t, 0.5, entries[2].Priority)
	assert.Equal(t, 0.5, entries[3].Priority)
}

func TestParseURLSetLimitAppliesInDocumentOrder(t *testing.T) {
	r := NewResolver(&mapFetcher{})
	entries, err := r.Parse(context.Background(), []byte(urlsetXML), nil, 2)
	require.NoError(t, err)
	require.Equal(t, []string{"https://example.com/b", "https://example.com/a"}, urlsOf(entries))
}

func TestParseResolvesRelativeLocations(t *testing.T) {
	base, _ := url.Parse("https://example.com/sitemaps/main.xml")
	r := NewResolver(&mapFetcher{})
	entries, err := r.Parse(context.Background(), []byte(`<urlset><url><loc>/docs</loc></url></urlset>`), base, 0)
	require.NoError(t, err)
	require.Equal(t, []string{"https://example.com/docs"}, urlsOf(entries))
}

func TestParseUnknownRoot(t *testing.T) {
	r := NewResolver(&mapFetcher{})
	_, err := r.Parse(context.Background(), []byte(`<rss><channel/></rss>`), nil, 0)
	require.ErrorIs(t, err, ErrUnknownFormat)

	_, err = r.Parse(context.Background(), []byte(``), nil, 0)
	require.ErrorIs(t, err, ErrUnknownFormat)
}

func TestSitemapIndexSharesLimit(t *testing.T) {
	child := func(prefix string, n int) string {
		var b strings.Builder
		b.WriteString("<urlset>")
		for i := 0; i < n; i++ {
			fmt.Fprintf(&b, "<url><loc>https://example.com/%s/%d</loc></url>", prefix, i)
		}
		b.WriteString("</urlset>")
		return b.String()
	}
	f := &mapFetcher{bodies: map[string]string{
		"https://example.com/index.xml": `<sitemapindex>
  <sitemap><loc>https://example.com/one.xml</loc></sitemap>
  <sitemap><loc>https://example.com/broken.xml</loc></sitemap>
  <sitemap><loc>https://example.com/two.xml</loc></sitemap>
  <sitemap><loc>https://example.com/three.xml</loc></sitemap>
</sitemapindex>`,
		"https://example.com/one.xml":    child("one", 3),
		"https://example.com/broken.xml": `<urlset><url><loc>oops`,
		"https://example.com/two.xml":    child("two", 3),
		"https://example.com/three.xml":  child("three", 3),
	}}
	r := NewResolver(f)
	entries, err := r.Fetch(context.Background(), "https://example.com/index.xml", 5)
	require.NoError(t, err)
	require.Equal(t, []string{
		"https://example.com/one/0",
		"https://example.com/one/1",
		"https://example.com/one/2",
		"https://example.com/two/0",
		"https://example.com/two/1",
	}, urlsOf(entries))
	assert.NotContains(t, f.calls, "https://example.com/three.xml")
}

func TestSitemapIndexChildFailureYieldsEmpty(t *testing.T) {
	f := &mapFetcher{bodies: map[string]string{
		"https://example.com/index.xml": `<sitemapindex><sitemap><loc>https://example.com/gone.xml</loc></sitemap></sitemapindex>`,
	}}
	entries, err := NewResolver(f).Fetch(context.Background(), "https://example.com/index.xml", 10)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestSitemapIndexSelfReferenceTerminates(t *testing.T) {
	f := &mapFetcher{bodies: map[string]string{
		"https://example.com/loop.xml": `<sitemapindex><sitemap><loc>https://example.com/loop.xml</loc></sitemap></sitemapindex>`,
	}}
	entries, err := NewResolver(f).Fetch(context.Background(), "https://example.com/loop.xml", 10)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestFetchSurfacesStatus(t *testing.T) {
	_, err := NewResolver(&mapFetcher{}).Fetch(context.Background(), "https://example.com/sitemap.xml", 10)
	var se *crawler.StatusError
	require.True(t, errors.As(err, &se))
	require.Equal(t, http.StatusNotFound, se.Code)
}

func TestFetchGzippedSitemap(t *testing.T) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, _ = zw.Write([]byte(`<urlset><url><loc>https://example.com/z</loc></url></urlset>`))
	_ = zw.Close()
	f := &mapFetcher{bodies: map[string]string{"https://example.com/sitemap.xml.gz": buf.String()}}
	entries, err := NewResolver(f).Fetch(context.Background(), "https://example.com/sitemap.xml.gz", 0)
	require.NoError(t, err)
	require.Equal(t, []string{"https://example.com/z"}, urlsOf(entries))
}

func newSite(t *testing.T, handler func(w http.ResponseWriter, r *http.Request)) (*Resolver, string) {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(handler))
	t.Cleanup(ts.Close)
	client := crawler.NewHTTPClient(5*time.Second, 2*time.Second, 1<<20)
	return NewResolver(client), ts.URL
}

func TestDiscoverPrefersRobotsDirective(t *testing.T) {
	var origin string
	r, origin := newSite(t, func(w http.ResponseWriter, req *http.Request) {
		switch req.URL.Path {
		case "/robots.txt":
			fmt.Fprintf(w, "User-agent: *\nDisallow:\nSITEMAP: %s/custom-map.xml\r\n", origin)
		case "/custom-map.xml", "/sitemap.xml":
			_, _ = w.Write([]byte(`<urlset></urlset>`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
	got, ok := r.Discover(context.Background(), origin+"/some/page")
	require.True(t, ok)
	require.Equal(t, origin+"/custom-map.xml", got)
}

func TestDiscoverFallsBackToWellKnownPaths(t *testing.T) {
	r, origin := newSite(t, func(w http.ResponseWriter, req *http.Request) {
		switch req.URL.Path {
		case "/robots.txt":
			_, _ = w.Write([]byte("User-agent: *\nDisallow: /private\n"))
		case "/sitemap.xml":
			_, _ = w.Write([]byte(`<html>not a sitemap</html>`))
		case "/sitemap_index.xml":
			_, _ = w.Write([]byte(`<sitemapindex></sitemapindex>`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
	got, ok := r.Discover(context.Background(), origin)
	require.True(t, ok)
	require.Equal(t, origin+"/sitemap_index.xml", got)
}

func TestDiscoverUsesSitemapXMLWithoutRobots(t *testing.T) {
	r, origin := newSite(t, func(w http.ResponseWriter, req *http.Request) {
		if req.URL.Path == "/sitemap.xml" {
			_, _ = w.Write([]byte(`<urlset></urlset>`))
			return
		}
		w.WriteHeader(http.StatusNotFound)
	})
	got, ok := r.Discover(context.Background(), origin)
	require.True(t, ok)
	require.Equal(t, origin+"/sitemap.xml", got)
}

func TestDiscoverNotFound(t *testing.T) {
	r, origin := newSite(t, func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	_, ok := r.Discover(context.Background(), origin)
	require.False(t, ok)
}

func TestDiscoverSurvivesNetworkFailure(t *testing.T) {
	f := &mapFetcher{err: errors.New("connection refused")}
	got, ok := NewResolver(f).Discover(context.Background(), "https://example.com")
	require.False(t, ok)
	require.Empty(t, got)
	require.Equal(t, []string{
		"https://example.com/robots.txt",
		"https://example.com/sitemap.xml",
		"https://example.com/sitemap_index.xml",
		"https://example.com/sitemap/sitemap.xml",
	}, f.calls)

	_, ok = NewResolver(f).Discover(context.Background(), "::not a url")
	require.False(t, ok)
}

func bigURLSet(host string, n int) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?><urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">`)
	for i := range n {
		fmt.Fprintf(&b, "<url><loc>%s/p/%d</loc><lastmod>2024-01-01</lastmod></url>\n", host, i)
	}
	b.WriteString(`</urlset>`)
	return b.String()
}

func TestFetchSitemapLargerThanPageCap(t *testing.T) {
	var body string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/xml")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(ts.Close)
	body = bigURLSet(ts.URL, 20000)

	client := crawler.NewHTTPClient(5*time.Second, 2*time.Second, 64<<10)
	require.Greater(t, len(body), 64<<10)

	entries, err := NewResolver(client).Fetch(context.Background(), ts.URL+"/sitemap.xml", 100)
	require.NoError(t, err)
	require.Len(t, entries, 100)
	assert.Equal(t, ts.URL+"/p/0", entries[0].URL)
	assert.Equal(t, ts.URL+"/p/99", entries[99].URL)
}

func TestParseStopsAtLimitBeforeBrokenTail(t *testing.T) {
	doc := bigURLSet("https://example.com", 50)
	cut := doc[:strings.Index(doc, "/p/30<")]

	r := NewResolver(&mapFetcher{})
	entries, err := r.Parse(context.Background(), []byte(cut), nil, 10)
	require.NoError(t, err)
	assert.Len(t, entries, 10)

	entries, err = r.Parse(context.Background(), []byte(cut), nil, 0)
	require.NoError(t, err)
	assert.Len(t, entries, 30)

	_, err = r.Parse(context.Background(), []byte(`<urlset><url><loc>https://example.com/a`), nil, 0)
	require.Error(t, err)
}

func TestDiscoverIgnoresCommentedSitemapLine(t *testing.T) {
	f := &mapFetcher{bodies: map[string]string{
		"https://example.com/robots.txt": "# old sitemap: https://example.com/old.xml\n" +
			"User-agent: *\n  Sitemap: https://example.com/new.xml  \n",
		"https://example.com/old.xml": `<urlset></urlset>`,
		"https://example.com/new.xml": `<urlset></urlset>`,
	}}
	got, ok := NewResolver(f).Discover(context.Background(), "https://example.com")
	require.True(t, ok)
	assert.Equal(t, "https://example.com/new.xml", got)
}
