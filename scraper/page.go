package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/use-agent/shelf/extract"
	"github.com/use-agent/shelf/models"
	"github.com/ysmood/gson"
)

// browserSession is a page inside its own incognito browser context.
//
// page carries no request context, so teardown works even after the request
// deadline has passed. Request-scoped calls bind ctx with page.Context.
type browserSession struct {
	incognito *rod.Browser
	page      *rod.Page
	router    *rod.HijackRouter
	base      *url.URL
	release   func()

	once     sync.Once
	closeErr error
}

var _ Session = (*browserSession)(nil)

// openBrowser runs the session lifecycle up to a ready page:
//
//  1. New incognito context and page
//  2. Stealth script, identity and headers (before navigation)
//  3. Hijack router for blocked resources (before navigation)
//  4. Navigate, then wait for DOMContentLoaded
//  5. Settle delay, then an optional DOM-stability wait
//  6. Read document.baseURI
//
// On failure everything created so far is torn down before returning.
func (s *Scraper) openBrowser(ctx context.Context, req *models.ScrapeRequest, release func()) (*browserSession, error) {
	incognito, err := s.browser.Incognito()
	if err != nil {
		return nil, models.NewScrapeError(models.ErrCodeBrowserCrash, "failed to create browser context", err)
	}
	page, err := incognito.Page(proto.TargetCreateTarget{})
	if err != nil {
		_ = incognito.Close()
		return nil, models.NewScrapeError(models.ErrCodeBrowserCrash, "failed to open page", err)
	}

	sess := &browserSession{incognito: incognito, page: page}
	if err := s.preparePage(sess, req.URL); err != nil {
		_ = sess.teardown()
		return nil, err
	}
	if err := s.navigate(ctx, sess, req.URL); err != nil {
		_ = sess.teardown()
		return nil, err
	}

	sess.release = release
	return sess, nil
}

func (s *Scraper) preparePage(sess *browserSession, target string) error {
	page := sess.page

	if s.browserCfg.Stealth {
		if _, err := page.EvalOnNewDocument(stealth.JS); err != nil {
			slog.Warn("stealth injection failed, proceeding without stealth", "error", err)
		}
	}

	if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{
		UserAgent:      s.browserCfg.UserAgent,
		AcceptLanguage: s.browserCfg.AcceptLanguage,
	}); err != nil {
		return engineFault(err, "failed to set browser identity")
	}

	if headers := refererHeaders(target); len(headers) > 0 {
		if err := (proto.NetworkSetExtraHTTPHeaders{Headers: toHeadersMap(headers)}).Call(page); err != nil {
			slog.Debug("extra headers not applied", "error", err)
		}
	}

	sess.router = setupHijack(page, s.scraperCfg.BlockedResourceTypes, s.scraperCfg.BlockAds)
	return nil
}

func (s *Scraper) navigate(ctx context.Context, sess *browserSession, target string) error {
	navCtx, cancel := context.WithTimeout(ctx, s.scraperCfg.NavigationTimeout)
	defer cancel()

	p := sess.page.Context(navCtx)

	// Registered before Navigate so the event cannot be missed.
	waitLoaded := p.WaitNavigation(proto.PageLifecycleEventNameDOMContentLoaded)
	if err := p.Navigate(target); err != nil {
		return categorizeError(err, "navigation to target URL failed")
	}
	waitLoaded()
	if err := navCtx.Err(); err != nil {
		return categorizeError(err, "page did not finish loading")
	}

	if err := sleepCtx(ctx, s.scraperCfg.SettleDelay); err != nil {
		return categorizeError(err, "request ended during settle delay")
	}

	if budget := s.scraperCfg.DOMStableBudget; budget > 0 {
		if err := sess.page.Context(ctx).Timeout(budget).WaitDOMStable(300*time.Millisecond, 0.1); err != nil {
			slog.Debug("DOM did not settle within budget, extracting current DOM", "error", err)
		}
	}

	sess.base = evalBaseURL(sess.page.Context(ctx), target)
	return nil
}

// WaitFor polls for selector until it appears or timeout elapses.
func (b *browserSession) WaitFor(ctx context.Context, selector string, timeout time.Duration) error {
	_, err := b.page.Context(ctx).Timeout(timeout).Element(selector)
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
		return fmt.Errorf("%w: %s", extract.ErrSelectorTimeout, selector)
	}
	return engineFault(err, "waiting for "+selector+" failed")
}

// Document snapshots the rendered DOM.
func (b *browserSession) Document(ctx context.Context) (*goquery.Document, error) {
	html, err := b.page.Context(ctx).HTML()
	if err != nil {
		return nil, engineFault(err, "failed to read rendered DOM")
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, engineFault(err, "failed to parse rendered DOM")
	}
	doc.Url = b.base
	return doc, nil
}

// BaseURL is document.baseURI as read after the page settled.
func (b *browserSession) BaseURL() *url.URL {
	return b.base
}

// Close stops interception, closes the page, disposes the browser context
// and frees the session slot, once.
func (b *browserSession) Close() error {
	b.once.Do(func() {
		b.closeErr = b.teardown()
		if b.release != nil {
			b.release()
		}
	})
	return b.closeErr
}

func (b *browserSession) teardown() error {
	var errs []error
	if b.router != nil {
		if err := b.router.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("stop hijack router: %w", err))
		}
	}
	if err := b.page.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close page: %w", err))
	}
	if err := b.incognito.Close(); err != nil {
		errs = append(errs, fmt.Errorf("dispose browser context: %w", err))
	}
	return errors.Join(errs...)
}

func evalBaseURL(p *rod.Page, fallback string) *url.URL {
	if res, err := p.Eval(`() => document.baseURI`); err == nil {
		if u, err := url.Parse(res.Value.Str()); err == nil && u.IsAbs() {
			return u
		}
	}
	u, _ := url.Parse(fallback)
	return u
}

// refererHeaders makes the visit look like it came from a search result.
func refererHeaders(target string) map[string]string {
	u, err := url.Parse(target)
	if err != nil || u.Hostname() == "" {
		return nil
	}
	return map[string]string{
		"Referer": "https://www.google.com/search?q=" + url.QueryEscape(u.Hostname()),
	}
}

// toHeadersMap converts a plain string map to the proto.NetworkHeaders type
// (map[string]gson.JSON) required by NetworkSetExtraHTTPHeaders.
func toHeadersMap(headers map[string]string) proto.NetworkHeaders {
	m := make(proto.NetworkHeaders, len(headers))
	for k, v := range headers {
		m[k] = gson.New(v)
	}
	return m
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// categorizeError wraps navigation errors into typed ScrapeErrors so the API
// layer can map them to status codes.
func categorizeError(err error, msg string) *models.ScrapeError {
	var se *models.ScrapeError
	if errors.As(err, &se) {
		return se
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return models.NewScrapeError(models.ErrCodeNavigationTimeout, msg, err)
	case errors.Is(err, context.Canceled):
		return models.NewScrapeError(models.ErrCodeNavigationTimeout, "request canceled", err)
	default:
		return models.NewScrapeError(models.ErrCodeNavigation, msg, err)
	}
}

// engineFault is categorizeError for failures after navigation succeeded.
func engineFault(err error, msg string) *models.ScrapeError {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return categorizeError(err, msg)
	}
	return models.NewScrapeError(models.ErrCodeEngineFault, msg, err)
}
