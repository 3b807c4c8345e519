package models

// Product is one record extracted from a listing page.
//
// Title is always non-empty. Link, when set, is an absolute URL.
type Product struct {
	Title string `json:"title"`
	Image string `json:"image,omitempty"`
	Price string `json:"price,omitempty"`
	Link  string `json:"link,omitempty"`
}
