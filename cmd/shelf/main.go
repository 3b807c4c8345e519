// Command shelf serves the product scraping API and scrapes single pages
// from the command line.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/use-agent/shelf/api/handler"
	"github.com/use-agent/shelf/config"
	"github.com/use-agent/shelf/extract"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	serve := newServeCmd()
	root := &cobra.Command{
		Use:          "shelf",
		Short:        "Render product listing pages and return their products as JSON",
		Version:      handler.Version,
		SilenceUsage: true,
		// Bare "shelf" starts the server.
		RunE: serve.RunE,
	}
	root.SetVersionTemplate("{{printf \"%s\\n\" .Version}}")
	root.AddCommand(serve, newScrapeCmd())
	return root
}

// loadConfig reads the environment and rejects unusable values.
func loadConfig() (*config.Config, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// buildChain returns the built-in layouts followed by any from the layouts
// file.
func buildChain(cfg config.ScraperConfig) (*extract.Chain, error) {
	var extra []extract.Layout
	if cfg.LayoutsFile != "" {
		var err error
		if extra, err = extract.LoadLayouts(cfg.LayoutsFile); err != nil {
			return nil, err
		}
	}
	strategies, err := extract.BuildStrategies(extra)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(strategies))
	for _, s := range strategies {
		names = append(names, s.Name())
	}
	slog.Info("extraction chain ready", "strategies", names, "selectorTimeout", cfg.SelectorTimeout)

	return extract.NewChain(cfg.SelectorTimeout, strategies...), nil
}

// initLogger configures slog based on the LogConfig.
func initLogger(cfg config.LogConfig, w io.Writer) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var h slog.Handler
	if cfg.Format == "text" {
		h = slog.NewTextHandler(w, opts)
	} else {
		h = slog.NewJSONHandler(w, opts)
	}

	slog.SetDefault(slog.New(h))
}
