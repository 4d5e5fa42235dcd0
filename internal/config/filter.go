package config

import (
	"fmt"
	"strings"

	"github.com/gobwas/glob"

	"llmstxt-crawler/internal/models"
)

// Excluder drops URLs matching any configured pattern. A pattern is a glob
// where * stays within a path segment and ** crosses segments; a plain URL
// matches only itself (trailing slash ignored).
type Excluder struct {
	globs []glob.Glob
}

func NewExcluder(patterns []string) (*Excluder, error) {
	e := &Excluder{}
	for _, p := range patterns {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		g, err := glob.Compile(strings.TrimRight(p, "/"), '/')
		if err != nil {
			return nil, fmt.Errorf("bad exclude pattern %q: %w", p, err)
		}
		e.globs = append(e.globs, g)
	}
	return e, nil
}

func (e *Excluder) Excluded(rawURL string) bool {
	u := strings.TrimRight(rawURL, "/")
	for _, g := range e.globs {
		if g.Match(u) {
			return true
		}
	}
	return false
}

// Filter keeps urls that are not excluded, preserving order.
func (e *Excluder) Filter(urls []string) []string {
	out := make([]string, 0, len(urls))
	for _, u := range urls {
		if !e.Excluded(u) {
			out = append(out, u)
		}
	}
	return out
}

// ApplyOverrides overwrites title and description of records whose URL has an
// override entry. Lookup ignores a trailing slash.
func ApplyOverrides(records []models.PageRecord, overrides map[string]Override) {
	if len(overrides) == 0 {
		return
	}
	norm := make(map[string]Override, len(overrides))
	for u, ov := range overrides {
		norm[strings.TrimRight(u, "/")] = ov
	}
	for i := range records {
		ov, ok := norm[strings.TrimRight(records[i].URL, "/")]
		if !ok {
			continue
		}
		if ov.Title != "" {
			records[i].Title = ov.Title
		}
		if ov.Description != "" {
			records[i].Description = ov.Description
		}
	}
}
