// Package enrich writes better page descriptions with a language model.
package enrich

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"llmstxt-crawler/internal/models"
)

const (
	defaultModel   = openai.ChatModelGPT4oMini
	maxPromptChars = 2000
	maxDescTokens  = 120
	systemPrompt   = "You write one-sentence descriptions of web pages for an llms.txt index. " +
		"Be factual and specific, at most 160 characters, no marketing language, no quotes."
)

// Describer produces a replacement description for a page.
type Describer interface {
	Describe(ctx context.Context, page models.PageRecord) (string, error)
}

type Option func(*OpenAIDescriber)

func WithModel(model string) Option {
	return func(d *OpenAIDescriber) {
		if model != "" {
			d.model = openai.ChatModel(model)
		}
	}
}

func WithBaseURL(baseURL string) Option {
	return func(d *OpenAIDescriber) {
		if baseURL != "" {
			d.opts = append(d.opts, option.WithBaseURL(baseURL))
		}
	}
}

func WithHTTPClient(hc *http.Client) Option {
	return func(d *OpenAIDescriber) {
		d.opts = append(d.opts, option.WithHTTPClient(hc))
	}
}

// OpenAIDescriber calls an OpenAI-compatible chat completions endpoint.
type OpenAIDescriber struct {
	client openai.Client
	model  openai.ChatModel
	opts   []option.RequestOption
}

var _ Describer = (*OpenAIDescriber)(nil)

func NewOpenAIDescriber(apiKey string, opts ...Option) (*OpenAIDescriber, error) {
	if apiKey == "" {
		return nil, errors.New("openai describer: no api key provided")
	}
	d := &OpenAIDescriber{
		model: defaultModel,
		opts:  []option.RequestOption{option.WithAPIKey(apiKey), option.WithMaxRetries(0)},
	}
	for _, opt := range opts {
		opt(d)
	}
	d.client = openai.NewClient(d.opts...)
	return d, nil
}

func (d *OpenAIDescriber) Describe(ctx context.Context, page models.PageRecord) (string, error) {
	resp, err := d.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: d.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(userPrompt(page)),
		},
		MaxTokens:   openai.Int(maxDescTokens),
		Temperature: openai.Float(0.2),
	})
	if err != nil {
		return "", fmt.Errorf("describe %s: %w", page.URL, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("describe %s: empty response", page.URL)
	}
	desc := strings.Trim(strings.TrimSpace(resp.Choices[0].Message.Content), `"`)
	if desc == "" {
		return "", fmt.Errorf("describe %s: empty description", page.URL)
	}
	return desc, nil
}

func userPrompt(p models.PageRecord) string {
	content := p.Content
	if utf8.RuneCountInString(content) > maxPromptChars {
		content = string([]rune(content)[:maxPromptChars])
	}
	var b strings.Builder
	fmt.Fprintf(&b, "URL: %s\n", p.URL)
	if p.Title != "" {
		fmt.Fprintf(&b, "Title: %s\n", p.Title)
	}
	if p.H1 != "" {
		fmt.Fprintf(&b, "Heading: %s\n", p.H1)
	}
	if p.Description != "" {
		fmt.Fprintf(&b, "Current description: %s\n", p.Description)
	}
	fmt.Fprintf(&b, "\nPage text:\n%s", content)
	return b.String()
}
