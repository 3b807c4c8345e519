package extract

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"github.com/use-agent/shelf/models"
)

// Layout describes one known page layout as plain data: the selector that
// proves the layout is present, the selector for each product container and
// the sub-selectors the record fields are read from.
type Layout struct {
	Name      string
	Signature string
	Container string

	// Title is required; containers without a non-blank title are dropped.
	Title string

	// Image, Price and Link are optional. Empty selectors leave the field unset.
	Image string
	Price string
	Link  string

	// ImageAttr is the attribute the image URL is read from. Default "src".
	ImageAttr string

	// Timeout overrides the chain's signature wait for this layout.
	Timeout time.Duration
}

// Strategy is a compiled Layout.
type Strategy struct {
	layout    Layout
	container cascadia.Selector
	title     cascadia.Selector
	image     cascadia.Selector
	price     cascadia.Selector
	link      cascadia.Selector
}

// NewStrategy validates the layout and compiles its selectors.
func NewStrategy(l Layout) (*Strategy, error) {
	if l.Name == "" {
		return nil, fmt.Errorf("layout: name is required")
	}
	if l.Signature == "" || l.Container == "" || l.Title == "" {
		return nil, fmt.Errorf("layout %s: signature, container and title selectors are required", l.Name)
	}
	if l.ImageAttr == "" {
		l.ImageAttr = "src"
	}
	if _, err := cascadia.Compile(l.Signature); err != nil {
		return nil, fmt.Errorf("layout %s: signature selector: %w", l.Name, err)
	}

	s := &Strategy{layout: l}
	var err error
	if s.container, err = compileOptional(l.Container); err != nil {
		return nil, fmt.Errorf("layout %s: container selector: %w", l.Name, err)
	}
	if s.title, err = compileOptional(l.Title); err != nil {
		return nil, fmt.Errorf("layout %s: title selector: %w", l.Name, err)
	}
	if s.image, err = compileOptional(l.Image); err != nil {
		return nil, fmt.Errorf("layout %s: image selector: %w", l.Name, err)
	}
	if s.price, err = compileOptional(l.Price); err != nil {
		return nil, fmt.Errorf("layout %s: price selector: %w", l.Name, err)
	}
	if s.link, err = compileOptional(l.Link); err != nil {
		return nil, fmt.Errorf("layout %s: link selector: %w", l.Name, err)
	}
	return s, nil
}

// MustStrategy is like NewStrategy but panics on an invalid layout.
// It is meant for the built-in layouts.
func MustStrategy(l Layout) *Strategy {
	s, err := NewStrategy(l)
	if err != nil {
		panic(err)
	}
	return s
}

func compileOptional(sel string) (cascadia.Selector, error) {
	if sel == "" {
		return nil, nil
	}
	return cascadia.Compile(sel)
}

// Name returns the layout name.
func (s *Strategy) Name() string { return s.layout.Name }

// Layout returns a copy of the layout the strategy was built from.
func (s *Strategy) Layout() Layout { return s.layout }

// Extract waits up to timeout for the signature selector and then maps every
// container on the page into a product. A signature miss is returned as is
// (see IsMiss); an empty slice with a nil error means the layout is present
// but no container produced a title.
func (s *Strategy) Extract(ctx context.Context, page Page, timeout time.Duration) ([]models.Product, error) {
	if s.layout.Timeout > 0 {
		timeout = s.layout.Timeout
	}
	if err := page.WaitFor(ctx, s.layout.Signature, timeout); err != nil {
		return nil, err
	}

	doc, err := page.Document(ctx)
	if err != nil {
		return nil, err
	}
	return s.ExtractDocument(doc, page.BaseURL()), nil
}

// ExtractDocument maps the containers of doc without waiting. Results are in
// document order.
func (s *Strategy) ExtractDocument(doc *goquery.Document, base *url.URL) []models.Product {
	products := make([]models.Product, 0)
	doc.FindMatcher(s.container).Each(func(_ int, el *goquery.Selection) {
		if p, ok := s.mapContainer(el, base); ok {
			products = append(products, p)
		}
	})
	return products
}

func (s *Strategy) mapContainer(el *goquery.Selection, base *url.URL) (models.Product, bool) {
	title := normalizeText(first(el, s.title).Text())
	if title == "" {
		return models.Product{}, false
	}

	p := models.Product{Title: title}
	if s.image != nil {
		p.Image = strings.TrimSpace(first(el, s.image).AttrOr(s.layout.ImageAttr, ""))
	}
	if s.price != nil {
		p.Price = normalizeText(first(el, s.price).Text())
	}
	if s.link != nil {
		if href, ok := first(el, s.link).Attr("href"); ok {
			p.Link = resolveURL(base, href)
		}
	}
	return p, true
}

// first returns the first descendant of el matching sel.
func first(el *goquery.Selection, sel cascadia.Selector) *goquery.Selection {
	return el.FindMatcher(sel).First()
}

// normalizeText collapses runs of whitespace the way rendered text reads.
func normalizeText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// resolveURL resolves href against base. It returns "" when the result would
// not be absolute.
func resolveURL(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if base != nil {
		ref = base.ResolveReference(ref)
	}
	if !ref.IsAbs() || ref.Host == "" {
		return ""
	}
	return ref.String()
}
