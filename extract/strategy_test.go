package extract_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/use-agent/shelf/extract"
	"github.com/use-agent/shelf/models"
)

func TestNewStrategy_Validation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		layout extract.Layout
		want   string
	}{
		{"missing name", extract.Layout{Signature: "a", Container: "a", Title: "a"}, "name is required"},
		{"missing title", extract.Layout{Name: "x", Signature: "a", Container: "a"}, "required"},
		{"bad signature", extract.Layout{Name: "x", Signature: "a[", Container: "a", Title: "h2"}, "signature selector"},
		{"bad price", extract.Layout{Name: "x", Signature: "a", Container: "a", Title: "h2", Price: "span[price"}, "price selector"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := extract.NewStrategy(tt.layout)

			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestStrategy_SearchResults(t *testing.T) {
	t.Parallel()

	page := newFakePage(t, searchHTML)
	s := extract.MustStrategy(extract.SearchResults)

	products, err := s.Extract(context.Background(), page, time.Second)

	require.NoError(t, err)
	assert.Equal(t, []models.Product{
		{
			Title: "Blue Kettle",
			Image: "https://img.example/1.jpg",
			Price: "$19.99",
			Link:  "https://shop.example/dp/1?ref=sr_1",
		},
		{
			Title: "Red Toaster",
			Image: "https://img.example/2.jpg",
			Price: "$34.50",
			Link:  "https://shop.example/dp/2",
		},
		{
			Title: "Green Mug",
			Image: "https://img.example/3.jpg",
			Price: "$7.00",
			Link:  "https://shop.example/dp/3",
		},
	}, products)
	assert.Equal(t, []string{".s-card-container"}, page.waited)
}

func TestStrategy_DealsGrid(t *testing.T) {
	t.Parallel()

	page := parsePage(t, dealsHTML, "https://example.com/")
	s := extract.MustStrategy(extract.DealsGrid)

	products, err := s.Extract(context.Background(), page, time.Second)

	require.NoError(t, err)
	require.Len(t, products, 1, "container with a blank title is dropped")
	assert.Equal(t, models.Product{
		Title: "Noise Cancelling Headphones",
		Image: "https://img.example/d1.jpg",
		Price: "$99.00",
		Link:  "https://example.com/deal/123",
	}, products[0])
}

func TestStrategy_Extract_SignatureMiss(t *testing.T) {
	t.Parallel()

	page := parsePage(t, plainHTML, "https://example.com/")
	s := extract.MustStrategy(extract.SearchResults)

	products, err := s.Extract(context.Background(), page, time.Second)

	require.Error(t, err)
	assert.True(t, extract.IsMiss(err))
	assert.ErrorIs(t, err, extract.ErrSelectorNotFound)
	assert.Nil(t, products)
}

func TestStrategy_Extract_LayoutTimeoutOverridesChain(t *testing.T) {
	t.Parallel()

	page := newFakePage(t, searchHTML)
	l := extract.SearchResults
	l.Timeout = 250 * time.Millisecond
	s := extract.MustStrategy(l)

	_, err := s.Extract(context.Background(), page, 10*time.Second)

	require.NoError(t, err)
	assert.Equal(t, []time.Duration{250 * time.Millisecond}, page.timeouts)
}

func TestStrategy_OptionalFieldsAbsent(t *testing.T) {
	t.Parallel()

	html := `<html><body>
<div class="tile"><h3>Only a title</h3></div>
<div class="tile"><h3>With empty href</h3><a href="">x</a><img src=""></div>
<div class="tile"><h3>Lazy image</h3><img data-src="/img/lazy.jpg" src="data:,"></div>
</body></html>`
	page := parsePage(t, html, "https://example.com/c/")

	s := extract.MustStrategy(extract.Layout{
		Name:      "tiles",
		Signature: ".tile",
		Container: ".tile",
		Title:     "h3",
		Image:     "img",
		ImageAttr: "data-src",
		Link:      "a",
	})

	products, err := s.Extract(context.Background(), page, time.Second)

	require.NoError(t, err)
	require.Len(t, products, 3)
	assert.Equal(t, models.Product{Title: "Only a title"}, products[0])
	assert.Equal(t, models.Product{Title: "With empty href"}, products[1])
	assert.Equal(t, "/img/lazy.jpg", products[2].Image)
	for _, p := range products {
		assert.NotEmpty(t, p.Title)
	}
}

func TestStrategy_LinksAreAbsolute(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		page string
		href string
		want string
	}{
		{"root relative", "https://example.com/", "/deal/123", "https://example.com/deal/123"},
		{"path relative", "https://example.com/deals/today", "123", "https://example.com/deals/123"},
		{"protocol relative", "https://example.com/", "//cdn.example.com/x", "https://cdn.example.com/x"},
		{"dot segments", "https://example.com/a/b/", "../c", "https://example.com/a/c"},
		{"already absolute", "https://example.com/", "https://other.example/p", "https://other.example/p"},
		{"query only", "https://example.com/s?q=1", "?q=2", "https://example.com/s?q=2"},
		{"no host after resolve", "https://example.com/", "mailto:sales@example.com", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			html := `<html><body><div class="c"><b>Thing</b><a href="` + tt.href + `">x</a></div></body></html>`
			page := parsePage(t, html, tt.page)
			s := extract.MustStrategy(extract.Layout{
				Name: "c", Signature: ".c", Container: ".c", Title: "b", Link: "a",
			})

			products, err := s.Extract(context.Background(), page, time.Second)

			require.NoError(t, err)
			require.Len(t, products, 1)
			assert.Equal(t, tt.want, products[0].Link)
		})
	}
}

func TestStrategy_HonoursBaseElement(t *testing.T) {
	t.Parallel()

	html := `<html><head><base href="https://static.example/store/"></head>
<body><div class="c"><b>Thing</b><a href="item/9">x</a></div></body></html>`
	page := parsePage(t, html, "https://example.com/listing")
	s := extract.MustStrategy(extract.Layout{
		Name: "c", Signature: ".c", Container: ".c", Title: "b", Link: "a",
	})

	products, err := s.Extract(context.Background(), page, time.Second)

	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, "https://static.example/store/item/9", products[0].Link)
}

func TestStrategy_DocumentOrderWithoutDedup(t *testing.T) {
	t.Parallel()

	html := `<html><body>
<div class="c"><b>Same</b></div>
<div class="c"><b>Same</b></div>
<div class="c"><b>Other</b></div>
</body></html>`
	page := parsePage(t, html, "https://example.com/")
	s := extract.MustStrategy(extract.Layout{Name: "c", Signature: ".c", Container: ".c", Title: "b"})

	products, err := s.Extract(context.Background(), page, time.Second)

	require.NoError(t, err)
	require.Len(t, products, 3)
	assert.Equal(t, "Same", products[0].Title)
	assert.Equal(t, "Same", products[1].Title)
	assert.Equal(t, "Other", products[2].Title)
}
