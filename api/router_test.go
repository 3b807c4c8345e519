package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/use-agent/shelf/api"
	"github.com/use-agent/shelf/api/middleware"
	"github.com/use-agent/shelf/config"
	"github.com/use-agent/shelf/extract"
	"github.com/use-agent/shelf/models"
	"github.com/use-agent/shelf/scraper"
)

const dealsPage = `<html><body>
<div class="Grid-module__gridItem_3XqP6q1nG7pGxi4Lph4T">
  <a href="/deal/123"><img src="https://img.example/d.jpg"></a>
  <span class="DealContent-module__truncate_2F5ZBA1CDGfSax9Y8g5h">Headphones</span>
  <span class="DealPrice-module__priceDisplay_1p8KnWJozc3nM6-keVVA">$99.00</span>
</div></body></html>`

// countingSession counts Close calls on a static page.
type countingSession struct {
	*extract.DocumentPage
	closes *atomic.Int32
}

func (s countingSession) Close() error {
	s.closes.Add(1)
	return nil
}

type stubRenderer struct {
	html    string
	openErr error
	opens   atomic.Int32
	closes  atomic.Int32
}

func (r *stubRenderer) Open(_ context.Context, req *models.ScrapeRequest) (scraper.Session, error) {
	r.opens.Add(1)
	if r.openErr != nil {
		return nil, r.openErr
	}
	u, err := url.Parse(req.URL)
	if err != nil {
		return nil, err
	}
	page, err := extract.ParseDocument(strings.NewReader(r.html), u)
	if err != nil {
		return nil, err
	}
	return countingSession{DocumentPage: page, closes: &r.closes}, nil
}

func (r *stubRenderer) Stats() models.SessionStat {
	return models.SessionStat{Max: 4, Active: int(r.opens.Load() - r.closes.Load())}
}

func newRouter(t *testing.T, r *stubRenderer) *gin.Engine {
	t.Helper()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<h1>shelf</h1>"), 0o600))

	cfg := &config.Config{
		Server:  config.ServerConfig{Mode: gin.TestMode, PublicDir: dir},
		Scraper: config.ScraperConfig{FetchMode: models.FetchModeBrowser},
	}
	chain := extract.NewChain(time.Second, extract.DefaultStrategies()...)
	return api.NewRouter(r, chain, r, cfg, time.Now())
}

func do(e *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	e.ServeHTTP(w, req)
	return w
}

func TestRouter_ScrapeDeals(t *testing.T) {
	t.Parallel()

	r := &stubRenderer{html: dealsPage}
	w := do(newRouter(t, r), http.MethodPost, "/scrape", `{"url":"https://example.com/"}`)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "deals-grid", w.Header().Get("X-Shelf-Strategy"))
	assert.NotEmpty(t, w.Header().Get(middleware.RequestIDHeader))
	assert.JSONEq(t, `[{"title":"Headphones","image":"https://img.example/d.jpg","price":"$99.00","link":"https://example.com/deal/123"}]`, w.Body.String())
	assert.EqualValues(t, 1, r.closes.Load())
}

func TestRouter_MissingURL(t *testing.T) {
	t.Parallel()

	r := &stubRenderer{html: dealsPage}
	w := do(newRouter(t, r), http.MethodPost, "/scrape", `{}`)

	require.Equal(t, http.StatusBadRequest, w.Code)
	var resp models.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "url is required", resp.Error)
	assert.Zero(t, r.opens.Load())
}

func TestRouter_NavigationFailure(t *testing.T) {
	t.Parallel()

	r := &stubRenderer{openErr: models.NewScrapeError(models.ErrCodeNavigation,
		"navigation to target URL failed", errors.New("net::ERR_NAME_NOT_RESOLVED"))}
	w := do(newRouter(t, r), http.MethodPost, "/scrape", `{"url":"https://nope.invalid/"}`)

	require.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "ERR_NAME_NOT_RESOLVED")
	assert.Zero(t, r.closes.Load())
}

func TestRouter_StaticAndFallback(t *testing.T) {
	t.Parallel()

	e := newRouter(t, &stubRenderer{html: dealsPage})

	w := do(e, http.MethodGet, "/", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "<h1>shelf</h1>", w.Body.String())
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")

	// styles.css was never written.
	assert.Equal(t, http.StatusInternalServerError, do(e, http.MethodGet, "/styles.css", "").Code)

	assert.Equal(t, http.StatusNotFound, do(e, http.MethodGet, "/nope", "").Code)
	assert.Equal(t, http.StatusNotFound, do(e, http.MethodGet, "/scrape", "").Code)
	assert.Equal(t, http.StatusNotFound, do(e, http.MethodDelete, "/", "").Code)
}

func TestRouter_Health(t *testing.T) {
	t.Parallel()

	w := do(newRouter(t, &stubRenderer{html: dealsPage}), http.MethodGet, "/health", "")

	require.Equal(t, http.StatusOK, w.Code)
	var resp models.HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, 4, resp.SessionStat.Max)
}

func TestRouter_EchoesRequestID(t *testing.T) {
	t.Parallel()

	e := newRouter(t, &stubRenderer{html: dealsPage})
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(middleware.RequestIDHeader, "abc-123")
	w := httptest.NewRecorder()
	e.ServeHTTP(w, req)

	assert.Equal(t, "abc-123", w.Header().Get(middleware.RequestIDHeader))
}
