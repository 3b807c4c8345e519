package scraper

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"net/url"
	"sync"

	tls2 "github.com/refraction-networking/utls"
	"github.com/use-agent/shelf/extract"
	"github.com/use-agent/shelf/models"
	"golang.org/x/net/proxy"
)

const defaultMaxBodyBytes = 10 << 20

// httpFetcher downloads server-delivered markup with a Chrome TLS
// fingerprint (utls). No scripts run.
type httpFetcher struct {
	proxy          string
	userAgent      string
	acceptLanguage string
	maxBodyBytes   int64
}

// documentSession is a Session over a downloaded snapshot. It holds no
// external resources; Close only frees the session slot.
type documentSession struct {
	*extract.DocumentPage
	release func()
	once    sync.Once
}

var _ Session = (*documentSession)(nil)

func (d *documentSession) Close() error {
	d.once.Do(func() {
		if d.release != nil {
			d.release()
		}
	})
	return nil
}

func (s *Scraper) openDocument(ctx context.Context, req *models.ScrapeRequest, release func()) (*documentSession, error) {
	ctx, cancel := context.WithTimeout(ctx, s.scraperCfg.NavigationTimeout)
	defer cancel()

	page, err := s.fetcher.fetch(ctx, req.URL)
	if err != nil {
		return nil, err
	}
	return &documentSession{DocumentPage: page, release: release}, nil
}

// fetch GETs targetURL and parses the body. The page URL used for link
// resolution is the final URL after redirects.
func (f *httpFetcher) fetch(ctx context.Context, targetURL string) (*extract.DocumentPage, error) {
	client := &http.Client{Transport: f.transport()}
	defer client.CloseIdleConnections()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
	if err != nil {
		return nil, models.NewScrapeError(models.ErrCodeInvalidInput, "url is not a valid URL", err)
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	if f.acceptLanguage != "" {
		req.Header.Set("Accept-Language", f.acceptLanguage)
	}
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := client.Do(req)
	if err != nil {
		return nil, categorizeError(err, "request to target URL failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, models.NewScrapeError(models.ErrCodeNavigation,
			fmt.Sprintf("target responded with HTTP %d", resp.StatusCode), nil)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "" {
		if mt, _, err := mime.ParseMediaType(ct); err == nil && mt != "text/html" && mt != "application/xhtml+xml" {
			return nil, models.NewScrapeError(models.ErrCodeNavigation,
				fmt.Sprintf("target is not an HTML page (%s)", mt), nil)
		}
	}

	limit := f.maxBodyBytes
	if limit <= 0 {
		limit = defaultMaxBodyBytes
	}
	page, err := extract.ParseDocument(io.LimitReader(resp.Body, limit), resp.Request.URL)
	if err != nil {
		return nil, engineFault(err, "failed to read target page")
	}
	return page, nil
}

func (f *httpFetcher) transport() *http.Transport {
	t := &http.Transport{
		DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			return dialRaw(ctx, network, addr, f.proxy)
		},
		DialTLSContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			return dialTLSChrome(ctx, network, addr, f.proxy)
		},
		ForceAttemptHTTP2: false,
	}
	if f.proxy != "" {
		if proxyURL, err := url.Parse(f.proxy); err == nil && (proxyURL.Scheme == "http" || proxyURL.Scheme == "https") {
			t.Proxy = http.ProxyURL(proxyURL)
		}
	}
	return t
}

// chromeH1Spec returns a Chrome ClientHello with ALPN narrowed to http/1.1,
// since http.Transport cannot speak h2 over a utls connection. A fresh spec
// is built per connection; ApplyPreset takes ownership of its extensions.
func chromeH1Spec() (*tls2.ClientHelloSpec, error) {
	spec, err := tls2.UTLSIdToSpec(tls2.HelloChrome_Auto)
	if err != nil {
		return nil, err
	}
	for _, ext := range spec.Extensions {
		if alpn, ok := ext.(*tls2.ALPNExtension); ok {
			alpn.AlpnProtocols = []string{"http/1.1"}
			break
		}
	}
	return &spec, nil
}

// dialTLSChrome establishes a TLS connection using a Chrome fingerprint via
// utls, through a SOCKS5 proxy when one is configured.
func dialTLSChrome(ctx context.Context, network, addr, proxyAddr string) (net.Conn, error) {
	spec, err := chromeH1Spec()
	if err != nil {
		return nil, fmt.Errorf("build tls spec: %w", err)
	}

	rawConn, err := dialRaw(ctx, network, addr, proxyAddr)
	if err != nil {
		return nil, err
	}

	host, _, _ := net.SplitHostPort(addr)
	tlsConn := tls2.UClient(rawConn, &tls2.Config{ServerName: host}, tls2.HelloCustom)
	if err := tlsConn.ApplyPreset(spec); err != nil {
		rawConn.Close()
		return nil, fmt.Errorf("apply tls spec: %w", err)
	}
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		rawConn.Close()
		return nil, err
	}
	return tlsConn, nil
}

func dialRaw(ctx context.Context, network, addr, proxyAddr string) (net.Conn, error) {
	dialer := &net.Dialer{}
	if proxyAddr == "" {
		return dialer.DialContext(ctx, network, addr)
	}
	proxyURL, err := url.Parse(proxyAddr)
	if err != nil || (proxyURL.Scheme != "socks5" && proxyURL.Scheme != "socks5h") {
		return dialer.DialContext(ctx, network, addr)
	}

	d, err := proxy.FromURL(proxyURL, dialer)
	if err != nil {
		return nil, fmt.Errorf("socks5 proxy: %w", err)
	}
	if cd, ok := d.(proxy.ContextDialer); ok {
		return cd.DialContext(ctx, network, addr)
	}
	return d.Dial(network, addr)
}
