package main

import (
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSite(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/":
			w.Header().Set("Content-Type", "text/html")
			fmt.Fprint(w, `<html><head><title>Shop</title><meta name="description" content="We sell things"></head>
<body><main>Front page <a href="/pricing">Pricing</a></main></body></html>`)
		case "/pricing":
			w.Header().Set("Content-Type", "text/html")
			fmt.Fprint(w, `<html><head><title>Pricing - Shop</title><meta name="description" content="Plans"></head><body><main>Ten dollars</main></body></html>`)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestRootWritesFiles(t *testing.T) {
	t.Chdir(t.TempDir())
	srv := testSite(t)
	dir := filepath.Join(t.TempDir(), "out")
	records := filepath.Join(t.TempDir(), "records.ndjson")

	_, err := execute(t, srv.URL, "--output", dir, "--full", "--records", records, "--log-level", "error")
	require.NoError(t, err)

	summary, err := os.ReadFile(filepath.Join(dir, "llms.txt"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(summary), "# Shop\n\n> We sell things\n"))
	assert.Contains(t, string(summary), "- [Pricing]("+srv.URL+"/pricing): Plans\n")

	full, err := os.ReadFile(filepath.Join(dir, "llms-full.txt"))
	require.NoError(t, err)
	assert.Contains(t, string(full), "Ten dollars")

	recs, err := os.ReadFile(records)
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(string(recs), "\n"))
}

func TestRootStdoutWithURLList(t *testing.T) {
	t.Chdir(t.TempDir())
	srv := testSite(t)
	list := filepath.Join(t.TempDir(), "urls.txt")
	require.NoError(t, os.WriteFile(list, []byte(srv.URL+"/pricing\n"), 0o644))

	out, err := execute(t, srv.URL, "-o", "-", "--urls", list, "--site-name", "Shop Inc", "--log-level", "error")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "# Shop Inc\n\n>\n"))
	assert.Contains(t, out, "Pricing")
	_, statErr := os.Stat("llms.txt")
	assert.True(t, os.IsNotExist(statErr))
}

func TestRootRejectsBadConfig(t *testing.T) {
	t.Chdir(t.TempDir())
	_, err := execute(t, "https://example.com", "--renderer", "lynx")
	require.ErrorContains(t, err, "renderer")

	_, err = execute(t)
	require.Error(t, err)
}
