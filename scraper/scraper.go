package scraper

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/use-agent/shelf/config"
	"github.com/use-agent/shelf/models"
	"golang.org/x/sync/semaphore"
)

// Scraper owns the shared browser process and hands out one isolated
// session per request. It is safe for concurrent use.
type Scraper struct {
	browser    *rod.Browser
	launcher   *launcher.Launcher
	browserCfg config.BrowserConfig
	scraperCfg config.ScraperConfig
	fetcher    *httpFetcher
	slots      *semaphore.Weighted
	active     atomic.Int32
}

var _ Renderer = (*Scraper)(nil)

// NewScraper launches a browser and returns a Scraper serving both fetch
// modes.
func NewScraper(browserCfg config.BrowserConfig, scraperCfg config.ScraperConfig) (*Scraper, error) {
	l := launcher.New().
		Headless(browserCfg.Headless).
		NoSandbox(browserCfg.NoSandbox)

	if browserCfg.BrowserBin != "" {
		l = l.Bin(browserCfg.BrowserBin)
	}
	if browserCfg.DefaultProxy != "" {
		l = l.Proxy(browserCfg.DefaultProxy)
	}

	l.Set(flags.Flag("disable-blink-features"), "AutomationControlled")
	l.Delete(flags.Flag("enable-automation"))
	l.Set(flags.Flag("disable-features"), "AudioServiceOutOfProcess,TranslateUI")
	l.Set(flags.Flag("disable-popup-blocking"))
	l.Set(flags.Flag("disable-renderer-backgrounding"))
	l.Set(flags.Flag("disable-background-timer-throttling"))
	l.Set(flags.Flag("disable-backgrounding-occluded-windows"))
	l.Set(flags.Flag("disable-component-update"))
	l.Set(flags.Flag("disable-default-apps"))
	l.Set(flags.Flag("disable-dev-shm-usage"))
	l.Set(flags.Flag("disable-extensions"))
	l.Set(flags.Flag("no-first-run"))

	controlURL, err := l.Launch()
	if err != nil {
		return nil, models.NewScrapeError(models.ErrCodeBrowserCrash, "failed to launch browser", err)
	}
	slog.Info("browser launched", "controlURL", controlURL)

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		l.Kill()
		return nil, models.NewScrapeError(models.ErrCodeBrowserCrash, "failed to connect to browser", err)
	}

	s := newScraper(browserCfg, scraperCfg)
	s.browser = browser
	s.launcher = l
	slog.Info("session slots ready", "maxSessions", browserCfg.MaxSessions)
	return s, nil
}

// NewHTTPScraper returns a Scraper without a browser. Only the http fetch
// mode is served; browser requests fail with BROWSER_CRASH.
func NewHTTPScraper(browserCfg config.BrowserConfig, scraperCfg config.ScraperConfig) *Scraper {
	return newScraper(browserCfg, scraperCfg)
}

func newScraper(browserCfg config.BrowserConfig, scraperCfg config.ScraperConfig) *Scraper {
	maxSessions := browserCfg.MaxSessions
	if maxSessions <= 0 {
		maxSessions = 1
	}
	browserCfg.MaxSessions = maxSessions
	return &Scraper{
		browserCfg: browserCfg,
		scraperCfg: scraperCfg,
		fetcher: &httpFetcher{
			proxy:          browserCfg.DefaultProxy,
			userAgent:      browserCfg.UserAgent,
			acceptLanguage: browserCfg.AcceptLanguage,
			maxBodyBytes:   scraperCfg.MaxBodyBytes,
		},
		slots: semaphore.NewWeighted(int64(maxSessions)),
	}
}

// Open acquires a session slot and opens a session for req in the requested
// fetch mode. The returned session must be closed by the caller; closing it
// frees the slot. On error nothing is left open and the slot is already free.
func (s *Scraper) Open(ctx context.Context, req *models.ScrapeRequest) (Session, error) {
	if err := s.slots.Acquire(ctx, 1); err != nil {
		return nil, categorizeError(err, "no session slot became free")
	}
	s.active.Add(1)
	release := func() {
		s.active.Add(-1)
		s.slots.Release(1)
	}

	var (
		sess Session
		err  error
	)
	switch req.FetchMode {
	case models.FetchModeHTTP:
		sess, err = s.openDocument(ctx, req, release)
	case models.FetchModeBrowser, "":
		if s.browser == nil {
			err = models.NewScrapeError(models.ErrCodeBrowserCrash, "browser fetch mode is not available", nil)
			break
		}
		sess, err = s.openBrowser(ctx, req, release)
	default:
		err = models.NewScrapeError(models.ErrCodeInvalidInput, "unknown fetch_mode "+req.FetchMode, nil)
	}
	if err != nil {
		release()
		return nil, err
	}
	return sess, nil
}

// Stats returns a snapshot of session usage.
func (s *Scraper) Stats() models.SessionStat {
	return models.SessionStat{
		Max:    s.browserCfg.MaxSessions,
		Active: int(s.active.Load()),
	}
}

// Close shuts the browser down and removes its profile directory.
// Call this on graceful shutdown to prevent zombie Chrome processes.
func (s *Scraper) Close() {
	if s.browser == nil {
		return
	}
	slog.Info("scraper shutting down: closing browser")
	if err := s.browser.Close(); err != nil {
		slog.Warn("browser close failed", "error", err)
	}
	if s.launcher != nil {
		s.launcher.Kill()
		s.launcher.Cleanup()
	}
	slog.Info("scraper shutdown complete")
}
