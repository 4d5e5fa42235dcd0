package main

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"llmstxt-crawler/internal/config"
	"llmstxt-crawler/internal/crawler"
	"llmstxt-crawler/internal/pipeline"
)

// generateReq overrides the server's base config for one run.
type generateReq struct {
	URL             string   `json:"url"`
	URLs            []string `json:"urls,omitempty"`
	Sitemap         string   `json:"sitemap,omitempty"`
	Full            bool     `json:"full,omitempty"`
	MaxPages        int      `json:"maxPages,omitempty"`
	Concurrency     int      `json:"concurrency,omitempty"`
	Renderer        string   `json:"renderer,omitempty"`
	SiteName        string   `json:"siteName,omitempty"`
	SiteDescription string   `json:"siteDescription,omitempty"`
	Exclude         []string `json:"exclude,omitempty"`
	AIDescriptions  bool     `json:"aiDescriptions,omitempty"`
}

type generateResp struct {
	Site    string `json:"site"`
	Source  string `json:"source"`
	Pages   int    `json:"pages"`
	Summary string `json:"llmsTxt"`
	Full    string `json:"llmsFullTxt,omitempty"`
}

func newRouter(base config.Config, l *slog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	// POST /generate  { "url": "https://...", "full": true }
	// Answers text/plain llms.txt (llms-full.txt when full is set) unless the
	// client asks for application/json.
	r.Post("/generate", func(w http.ResponseWriter, r *http.Request) {
		var req generateReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.URL == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
			return
		}

		cfg := base
		cfg.Exclude = append([]string(nil), base.Exclude...)
		cfg.Merge(config.Config{
			Sitemap:         req.Sitemap,
			Full:            req.Full,
			MaxPages:        req.MaxPages,
			Concurrency:     req.Concurrency,
			Renderer:        req.Renderer,
			SiteName:        req.SiteName,
			SiteDescription: req.SiteDescription,
			Exclude:         req.Exclude,
			AIDescriptions:  req.AIDescriptions,
		})
		cfg.ApplyDefaults()
		if err := cfg.Validate(); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}

		gen, err := pipeline.Build(cfg, l)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
		defer gen.Close()

		res, err := gen.Generate(r.Context(), pipeline.Request{SiteURL: req.URL, URLs: req.URLs, Config: cfg})
		if err != nil {
			code := http.StatusUnprocessableEntity
			var se *crawler.StatusError
			if errors.As(err, &se) {
				code = http.StatusBadGateway
			}
			writeJSON(w, code, map[string]string{"error": err.Error()})
			return
		}

		if strings.Contains(r.Header.Get("Accept"), "application/json") {
			writeJSON(w, http.StatusOK, generateResp{
				Site:    res.Site.Name,
				Source:  res.Source,
				Pages:   len(res.Records),
				Summary: res.Summary,
				Full:    res.Full,
			})
			return
		}
		body := res.Summary
		if cfg.Full {
			body = res.Full
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte(body))
	})

	return logRequest(l, r)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
