// Package extract turns a rendered page into product records by running an
// ordered chain of layout strategies against it.
package extract

import (
	"context"
	"errors"
	"net/url"
	"time"

	"github.com/PuerkitoBio/goquery"
)

var (
	// ErrSelectorTimeout is returned by Page.WaitFor when the selector did not
	// appear within the wait budget.
	ErrSelectorTimeout = errors.New("selector wait timed out")

	// ErrSelectorNotFound is returned by pages that cannot change after load
	// (static snapshots) when the selector is absent.
	ErrSelectorNotFound = errors.New("selector not found")
)

// Page is a rendered document the strategies can wait on and query.
//
// Implementations are used by one request at a time.
type Page interface {
	// WaitFor blocks until an element matching selector exists or timeout
	// elapses. A miss returns an error wrapping ErrSelectorTimeout or
	// ErrSelectorNotFound; anything else is an engine failure.
	WaitFor(ctx context.Context, selector string, timeout time.Duration) error

	// Document returns a snapshot of the current DOM.
	Document(ctx context.Context) (*goquery.Document, error)

	// BaseURL is the URL relative links on the page resolve against.
	BaseURL() *url.URL
}

// IsMiss reports whether err means "this layout is not on the page" rather
// than a failure of the page itself.
func IsMiss(err error) bool {
	return errors.Is(err, ErrSelectorTimeout) || errors.Is(err, ErrSelectorNotFound)
}
