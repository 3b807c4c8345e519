package extract

// Built-in layouts, in chain order.
var (
	// SearchResults is the general search-results grid.
	SearchResults = Layout{
		Name:      "search-results",
		Signature: ".s-card-container",
		Container: ".s-card-container",
		Title:     "h2",
		Image:     "img[src]",
		Price:     ".a-price .a-offscreen",
		Link:      ".a-link-normal",
	}

	// DealsGrid is the deals/listing grid.
	DealsGrid = Layout{
		Name:      "deals-grid",
		Signature: ".Grid-module__gridItem_3XqP6q1nG7pGxi4Lph4T",
		Container: ".Grid-module__gridItem_3XqP6q1nG7pGxi4Lph4T",
		Title:     ".DealContent-module__truncate_2F5ZBA1CDGfSax9Y8g5h",
		Image:     "img",
		Price:     ".DealPrice-module__priceDisplay_1p8KnWJozc3nM6-keVVA",
		Link:      "a",
	}
)

// DefaultLayouts returns the built-in layouts in the order they are tried.
func DefaultLayouts() []Layout {
	return []Layout{SearchResults, DealsGrid}
}

// DefaultStrategies compiles DefaultLayouts.
func DefaultStrategies() []*Strategy {
	layouts := DefaultLayouts()
	strategies := make([]*Strategy, 0, len(layouts))
	for _, l := range layouts {
		strategies = append(strategies, MustStrategy(l))
	}
	return strategies
}
