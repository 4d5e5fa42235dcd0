package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"llmstxt-crawler/internal/config"
	"llmstxt-crawler/internal/ioformats"
	"llmstxt-crawler/internal/pipeline"
	"llmstxt-crawler/pkg/logger"
)

const (
	summaryFile = "llms.txt"
	fullFile    = "llms-full.txt"
)

type cliFlags struct {
	configPath string
	outDir     string
	urlsFile   string
	records    string
	logLevel   string
	overrides  config.Config
}

func newRootCmd() *cobra.Command {
	var f cliFlags

	cmd := &cobra.Command{
		Use:   "llmstxt <site-url>",
		Short: "Generate llms.txt for a website",
		Long: "Discover a site's pages from its sitemap (or by crawling), extract titles and\n" +
			"descriptions, and write llms.txt and optionally llms-full.txt.",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, args[0], f)
		},
	}

	fl := cmd.Flags()
	fl.StringVarP(&f.configPath, "config", "c", "", "config file (default: llmstxt.config.{yaml,yml,json} in the working directory)")
	fl.StringVarP(&f.outDir, "output", "o", ".", "directory for llms.txt and llms-full.txt; - prints llms.txt to stdout")
	fl.StringVar(&f.urlsFile, "urls", "", "read page URLs from a csv, ndjson or text file instead of discovering them")
	fl.StringVar(&f.records, "records", "", "also write extracted page records as NDJSON to this file")
	fl.StringVar(&f.logLevel, "log-level", "info", "log level: debug|info|warn|error")

	o := &f.overrides
	fl.BoolVar(&o.Full, "full", false, "also write llms-full.txt with page content")
	fl.BoolVar(&o.AIDescriptions, "ai", false, "rewrite descriptions with an OpenAI model (needs OPENAI_API_KEY)")
	fl.IntVar(&o.MaxPages, "max-pages", 0, "maximum number of pages (default 100)")
	fl.IntVar(&o.Concurrency, "concurrency", 0, "pages fetched per batch (default 5)")
	fl.IntVar(&o.TimeoutSeconds, "timeout", 0, "per-request timeout in seconds (default 15)")
	fl.StringVar(&o.Renderer, "renderer", "", "page renderer: fetch|cloud|browser (default fetch)")
	fl.StringVar(&o.Sitemap, "sitemap", "", "use this sitemap URL instead of discovering one")
	fl.StringVar(&o.SiteName, "site-name", "", "site name for the document header")
	fl.StringVar(&o.SiteDescription, "site-description", "", "site description for the document header")
	fl.StringSliceVar(&o.Exclude, "exclude", nil, "glob of URLs to skip (repeatable)")

	return cmd
}

func run(cmd *cobra.Command, siteURL string, f cliFlags) error {
	l := logger.NewWriter(cmd.ErrOrStderr(), logger.ParseLevel(f.logLevel))

	cfg, err := config.Load(f.configPath)
	if err != nil {
		return err
	}
	cfg.Merge(f.overrides)
	cfg.LoadEnv()
	if err := cfg.Validate(); err != nil {
		return err
	}

	var urls []string
	if f.urlsFile != "" {
		if urls, err = ioformats.ReadURLs(f.urlsFile); err != nil {
			return fmt.Errorf("read urls: %w", err)
		}
	}

	gen, err := pipeline.Build(*cfg, l)
	if err != nil {
		return err
	}
	defer gen.Close()

	res, err := gen.Generate(cmd.Context(), pipeline.Request{SiteURL: siteURL, URLs: urls, Config: *cfg})
	if err != nil {
		return err
	}

	if f.records != "" {
		if err := writeRecords(f.records, res); err != nil {
			return err
		}
	}

	if f.outDir == "-" {
		_, err := fmt.Fprint(cmd.OutOrStdout(), res.Summary)
		return err
	}
	if err := os.MkdirAll(f.outDir, 0o755); err != nil {
		return err
	}
	written := []string{filepath.Join(f.outDir, summaryFile)}
	if err := os.WriteFile(written[0], []byte(res.Summary), 0o644); err != nil {
		return err
	}
	if cfg.Full {
		p := filepath.Join(f.outDir, fullFile)
		if err := os.WriteFile(p, []byte(res.Full), 0o644); err != nil {
			return err
		}
		written = append(written, p)
	}
	l.Info("done", "pages", len(res.Records), "source", res.Source, "files", written)
	return nil
}

func writeRecords(path string, res *pipeline.Result) error {
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := ioformats.WriteRecords(out, res.Records); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
