package enrich

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"llmstxt-crawler/internal/models"
)

func chatServer(t *testing.T, status int, content string) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.True(t, strings.HasSuffix(r.URL.Path, "/chat/completions"), r.URL.Path)
		require.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "test-model", body["model"])

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status != http.StatusOK {
			_, _ = w.Write([]byte(`{"error":{"message":"boom","type":"server_error"}}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"created": 1700000000,
			"model":   "test-model",
			"choices": []map[string]any{{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]any{"role": "assistant", "content": content},
			}},
		})
	}))
	t.Cleanup(ts.Close)
	return ts
}

func TestDescribe(t *testing.T) {
	ts := chatServer(t, http.StatusOK, ` "Pricing plans for teams and enterprises." `)
	d, err := NewOpenAIDescriber("test-key", WithBaseURL(ts.URL+"/"), WithModel("test-model"))
	require.NoError(t, err)

	got, err := d.Describe(context.Background(), models.PageRecord{URL: "https://example.com/pricing", Title: "Pricing"})
	require.NoError(t, err)
	assert.Equal(t, "Pricing plans for teams and enterprises.", got)
}

func TestDescribeEmptyIsError(t *testing.T) {
	ts := chatServer(t, http.StatusOK, "   ")
	d, err := NewOpenAIDescriber("test-key", WithBaseURL(ts.URL+"/"), WithModel("test-model"))
	require.NoError(t, err)

	_, err = d.Describe(context.Background(), models.PageRecord{URL: "https://example.com/"})
	require.Error(t, err)
}

func TestDescribeServerError(t *testing.T) {
	ts := chatServer(t, http.StatusInternalServerError, "")
	d, err := NewOpenAIDescriber("test-key", WithBaseURL(ts.URL+"/"), WithModel("test-model"))
	require.NoError(t, err)

	_, err = d.Describe(context.Background(), models.PageRecord{URL: "https://example.com/"})
	require.Error(t, err)
}

func TestNewOpenAIDescriberNeedsKey(t *testing.T) {
	_, err := NewOpenAIDescriber("")
	require.Error(t, err)
}

func TestUserPromptTruncatesContent(t *testing.T) {
	p := userPrompt(models.PageRecord{URL: "u", Title: "T", Content: strings.Repeat("x", maxPromptChars+500)})
	assert.Contains(t, p, "URL: u\nTitle: T\n")
	assert.NotContains(t, p, "Heading:")
	assert.True(t, strings.HasSuffix(p, "Page text:\n"+strings.Repeat("x", maxPromptChars)))
}
