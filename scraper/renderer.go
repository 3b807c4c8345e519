// Package scraper opens render sessions: an isolated browser context per
// request, or a plain HTTP download with a Chrome TLS fingerprint.
package scraper

import (
	"context"

	"github.com/use-agent/shelf/extract"
	"github.com/use-agent/shelf/models"
)

// Session is one request's exclusive view of a loaded page.
type Session interface {
	extract.Page

	// Close releases everything the session holds. It is safe to call more
	// than once; only the first call does any work.
	Close() error
}

// Renderer opens sessions.
type Renderer interface {
	Open(ctx context.Context, req *models.ScrapeRequest) (Session, error)
}
