package models

import (
	"net/url"
	"strings"
)

// Fetch modes accepted in ScrapeRequest.FetchMode.
const (
	// FetchModeBrowser renders the page in headless Chrome (scripts run).
	FetchModeBrowser = "browser"
	// FetchModeHTTP downloads the server-delivered markup only.
	FetchModeHTTP = "http"
)

// ScrapeRequest is the payload for POST /scrape.
type ScrapeRequest struct {
	// URL is the absolute http(s) URL of the page to scrape. Required.
	URL string `json:"url"`

	// FetchMode selects how the page is obtained: "browser" or "http".
	// Empty means the server default.
	FetchMode string `json:"fetch_mode,omitempty"`
}

// Defaults applies default values to unset fields.
func (r *ScrapeRequest) Defaults(fetchMode string) {
	r.URL = strings.TrimSpace(r.URL)
	if r.FetchMode == "" {
		r.FetchMode = fetchMode
	}
	if r.FetchMode == "" {
		r.FetchMode = FetchModeBrowser
	}
}

// Validate checks the request before any rendering work starts.
func (r *ScrapeRequest) Validate() error {
	if r.URL == "" {
		return NewScrapeError(ErrCodeInvalidInput, "url is required", nil)
	}
	u, err := url.Parse(r.URL)
	if err != nil {
		return NewScrapeError(ErrCodeInvalidInput, "url is not a valid URL", err)
	}
	if !u.IsAbs() || u.Host == "" {
		return NewScrapeError(ErrCodeInvalidInput, "url must be absolute", nil)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return NewScrapeError(ErrCodeInvalidInput, "url scheme must be http or https", nil)
	}
	if !ValidFetchMode(r.FetchMode) {
		return NewScrapeError(ErrCodeInvalidInput, "fetch_mode must be one of: browser, http", nil)
	}
	return nil
}

// ValidFetchMode reports whether mode names a supported fetch mode.
func ValidFetchMode(mode string) bool {
	return mode == FetchModeBrowser || mode == FetchModeHTTP
}
