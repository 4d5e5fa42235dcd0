// Package config loads generator settings from a YAML or JSON file and the
// environment.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/joho/godotenv"
)

const (
	DefaultMaxPages    = 100
	DefaultConcurrency = 5
	DefaultTimeout     = 15
	DefaultRenderer    = "fetch"
)

// DefaultFiles are looked up in the working directory when no file is given.
var DefaultFiles = []string{"llmstxt.config.yaml", "llmstxt.config.yml", "llmstxt.config.json"}

// Override replaces extracted page fields; empty fields are left alone.
type Override struct {
	Title       string `json:"title,omitempty" yaml:"title,omitempty"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

type Config struct {
	SiteName        string              `json:"siteName,omitempty" yaml:"siteName,omitempty"`
	SiteDescription string              `json:"siteDescription,omitempty" yaml:"siteDescription,omitempty"`
	Exclude         []string            `json:"exclude,omitempty" yaml:"exclude,omitempty"`
	Overrides       map[string]Override `json:"overrides,omitempty" yaml:"overrides,omitempty"`

	Sitemap        string `json:"sitemap,omitempty" yaml:"sitemap,omitempty"`
	MaxPages       int    `json:"maxPages,omitempty" yaml:"maxPages,omitempty"`
	Concurrency    int    `json:"concurrency,omitempty" yaml:"concurrency,omitempty"`
	Renderer       string `json:"renderer,omitempty" yaml:"renderer,omitempty"`
	Full           bool   `json:"full,omitempty" yaml:"full,omitempty"`
	AIDescriptions bool   `json:"aiDescriptions,omitempty" yaml:"aiDescriptions,omitempty"`
	TimeoutSeconds int    `json:"timeoutSeconds,omitempty" yaml:"timeoutSeconds,omitempty"`

	Env Env `json:"-" yaml:"-"`
}

// Env holds secrets and endpoints that only come from the environment.
type Env struct {
	OpenAIKey     string
	OpenAIBaseURL string
	OpenAIModel   string
	CloudKey      string
	CloudURL      string
}

// Load reads path, or the first default file that exists when path is empty.
// A missing default file is not an error.
func Load(path string) (*Config, error) {
	if path == "" {
		for _, f := range DefaultFiles {
			if _, err := os.Stat(f); err == nil {
				path = f
				break
			}
		}
		if path == "" {
			cfg := &Config{}
			cfg.ApplyDefaults()
			return cfg, nil
		}
	}
	cfg, err := ParseFile(path)
	if err != nil {
		return nil, err
	}
	cfg.ApplyDefaults()
	return cfg, nil
}

// ParseFile picks the format from the file extension.
func ParseFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return ParseJSON(data)
	case ".yml", ".yaml":
		return ParseYAML(data)
	default:
		return nil, fmt.Errorf("unsupported config extension: %s", filepath.Ext(path))
	}
}

func ParseYAML(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.UnmarshalWithOptions(data, &cfg, yaml.Strict()); err != nil {
		return nil, fmt.Errorf("parse yaml config: %w", err)
	}
	return &cfg, nil
}

func ParseJSON(data []byte) (*Config, error) {
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse json config: %w", err)
	}
	return &cfg, nil
}

// LoadEnv reads .env when present, then the process environment.
func (c *Config) LoadEnv() {
	_ = godotenv.Load()
	c.Env = Env{
		OpenAIKey:     os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL: os.Getenv("OPENAI_BASE_URL"),
		OpenAIModel:   os.Getenv("OPENAI_MODEL"),
		CloudKey:      os.Getenv("CLOUD_RENDER_API_KEY"),
		CloudURL:      os.Getenv("CLOUD_RENDER_URL"),
	}
}

func (c *Config) ApplyDefaults() {
	if c.MaxPages == 0 {
		c.MaxPages = DefaultMaxPages
	}
	if c.Concurrency == 0 {
		c.Concurrency = DefaultConcurrency
	}
	if c.TimeoutSeconds == 0 {
		c.TimeoutSeconds = DefaultTimeout
	}
	if c.Renderer == "" {
		c.Renderer = DefaultRenderer
	}
}

// Merge copies every non-zero field of o over c. Flags are merged this way on
// top of the file.
func (c *Config) Merge(o Config) {
	if o.SiteName != "" {
		c.SiteName = o.SiteName
	}
	if o.SiteDescription != "" {
		c.SiteDescription = o.SiteDescription
	}
	c.Exclude = append(c.Exclude, o.Exclude...)
	for u, ov := range o.Overrides {
		if c.Overrides == nil {
			c.Overrides = map[string]Override{}
		}
		c.Overrides[u] = ov
	}
	if o.Sitemap != "" {
		c.Sitemap = o.Sitemap
	}
	if o.MaxPages != 0 {
		c.MaxPages = o.MaxPages
	}
	if o.Concurrency != 0 {
		c.Concurrency = o.Concurrency
	}
	if o.Renderer != "" {
		c.Renderer = o.Renderer
	}
	if o.TimeoutSeconds != 0 {
		c.TimeoutSeconds = o.TimeoutSeconds
	}
	c.Full = c.Full || o.Full
	c.AIDescriptions = c.AIDescriptions || o.AIDescriptions
}

func (c *Config) Validate() error {
	var errs []error
	switch c.Renderer {
	case "fetch", "cloud", "browser":
	default:
		errs = append(errs, fmt.Errorf("renderer must be fetch, cloud or browser, got %q", c.Renderer))
	}
	errs = append(errs, c.limitErrors()...)
	if c.Renderer == "cloud" && c.Env.CloudKey == "" {
		errs = append(errs, errors.New("renderer cloud needs CLOUD_RENDER_API_KEY"))
	}
	if c.AIDescriptions && c.Env.OpenAIKey == "" {
		errs = append(errs, errors.New("aiDescriptions needs OPENAI_API_KEY"))
	}
	if _, err := NewExcluder(c.Exclude); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// CheckLimits reports non-positive maxPages, concurrency or timeoutSeconds.
// Unlike Validate it ignores renderer names and credentials.
func (c *Config) CheckLimits() error {
	return errors.Join(c.limitErrors()...)
}

func (c *Config) limitErrors() []error {
	var errs []error
	if c.Concurrency < 1 {
		errs = append(errs, fmt.Errorf("concurrency must be positive, got %d", c.Concurrency))
	}
	if c.MaxPages < 1 {
		errs = append(errs, fmt.Errorf("maxPages must be positive, got %d", c.MaxPages))
	}
	if c.TimeoutSeconds < 1 {
		errs = append(errs, fmt.Errorf("timeoutSeconds must be positive, got %d", c.TimeoutSeconds))
	}
	return errs
}

func (c *Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}
