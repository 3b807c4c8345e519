package extract

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// DocumentPage is a Page over a fixed HTML snapshot. Nothing on it changes
// after parsing, so WaitFor never waits.
type DocumentPage struct {
	doc  *goquery.Document
	base *url.URL
}

var _ Page = (*DocumentPage)(nil)

// ParseDocument parses markup served from pageURL. The base URL honours a
// <base href> element when the document has one.
func ParseDocument(r io.Reader, pageURL *url.URL) (*DocumentPage, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	doc := goquery.NewDocumentFromNode(root)
	doc.Url = pageURL
	return NewDocumentPage(doc, pageURL), nil
}

// NewDocumentPage wraps an already parsed document.
func NewDocumentPage(doc *goquery.Document, pageURL *url.URL) *DocumentPage {
	return &DocumentPage{doc: doc, base: baseURL(doc, pageURL)}
}

// WaitFor reports whether selector matches; the timeout is ignored.
func (p *DocumentPage) WaitFor(ctx context.Context, selector string, _ time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if p.doc.Find(selector).Length() == 0 {
		return fmt.Errorf("%w: %s", ErrSelectorNotFound, selector)
	}
	return nil
}

// Document returns the parsed snapshot.
func (p *DocumentPage) Document(ctx context.Context) (*goquery.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return p.doc, nil
}

// BaseURL returns the URL relative links resolve against.
func (p *DocumentPage) BaseURL() *url.URL {
	return p.base
}

func baseURL(doc *goquery.Document, pageURL *url.URL) *url.URL {
	href, ok := doc.Find("base[href]").First().Attr("href")
	if !ok {
		return pageURL
	}
	ref, err := url.Parse(href)
	if err != nil {
		return pageURL
	}
	if pageURL != nil {
		return pageURL.ResolveReference(ref)
	}
	if ref.IsAbs() {
		return ref
	}
	return nil
}
