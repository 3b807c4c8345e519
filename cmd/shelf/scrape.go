package main

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/use-agent/shelf/config"
	"github.com/use-agent/shelf/extract"
	"github.com/use-agent/shelf/models"
	"github.com/use-agent/shelf/scraper"
)

type scrapeFlags struct {
	fetchMode string
	pretty    bool
}

func newScrapeCmd() *cobra.Command {
	var f scrapeFlags
	cmd := &cobra.Command{
		Use:   "scrape <url>",
		Short: "Scrape one page and print its products as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			// stdout carries the JSON result only.
			initLogger(cfg.Log, cmd.ErrOrStderr())
			return runScrape(cmd.Context(), cfg, args[0], f, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&f.fetchMode, "fetch-mode", "", `"browser" or "http" (default from SHELF_FETCH_MODE)`)
	cmd.Flags().BoolVar(&f.pretty, "pretty", false, "indent the JSON output")
	return cmd
}

func runScrape(ctx context.Context, cfg *config.Config, rawURL string, f scrapeFlags, out io.Writer) error {
	req := &models.ScrapeRequest{URL: rawURL, FetchMode: f.fetchMode}
	req.Defaults(cfg.Scraper.FetchMode)
	if err := req.Validate(); err != nil {
		return err
	}

	chain, err := buildChain(cfg.Scraper)
	if err != nil {
		return err
	}

	var renderer scraper.Renderer
	if req.FetchMode == models.FetchModeHTTP {
		renderer = scraper.NewHTTPScraper(cfg.Browser, cfg.Scraper)
	} else {
		sc, err := scraper.NewScraper(cfg.Browser, cfg.Scraper)
		if err != nil {
			return err
		}
		defer sc.Close()
		renderer = sc
	}

	res, err := scrapeOnce(ctx, renderer, chain, req)
	if err != nil {
		return err
	}
	slog.Info("scrape complete", "url", req.URL, "strategy", res.Strategy, "products", len(res.Products))

	enc := json.NewEncoder(out)
	if f.pretty {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(res.Products)
}

func scrapeOnce(ctx context.Context, r scraper.Renderer, chain *extract.Chain, req *models.ScrapeRequest) (*extract.Result, error) {
	sess, err := r.Open(ctx, req)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := sess.Close(); cerr != nil {
			slog.Warn("session close failed", "error", cerr)
		}
	}()
	return chain.Run(ctx, sess)
}
