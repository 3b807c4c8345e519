package extract_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/use-agent/shelf/extract"
)

func TestChain_FirstNonEmptyWins(t *testing.T) {
	t.Parallel()

	page := newFakePage(t, searchHTML+dealsHTML)
	chain := extract.NewChain(time.Second, extract.DefaultStrategies()...)

	res, err := chain.Run(context.Background(), page)

	require.NoError(t, err)
	assert.Equal(t, "search-results", res.Strategy)
	require.Len(t, res.Products, 3)
	assert.Equal(t, "Blue Kettle", res.Products[0].Title)
	assert.Equal(t, []string{".s-card-container"}, page.waited, "later strategies are not attempted")
	require.Len(t, res.Attempts, 1)
	assert.NoError(t, res.Attempts[0].Err)
	assert.Equal(t, 3, res.Attempts[0].Records)
}

func TestChain_LeftBiasedOnAmbiguousPage(t *testing.T) {
	t.Parallel()

	page := newFakePage(t, searchHTML+dealsHTML)
	searchOnly, err := extract.NewChain(time.Second, extract.MustStrategy(extract.SearchResults)).
		Run(context.Background(), newFakePage(t, searchHTML+dealsHTML))
	require.NoError(t, err)

	res, err := extract.NewChain(time.Second, extract.DefaultStrategies()...).Run(context.Background(), page)

	require.NoError(t, err)
	assert.Equal(t, searchOnly.Products, res.Products)
}

func TestChain_FallsThroughOnTimeout(t *testing.T) {
	t.Parallel()

	page := newFakePage(t, dealsHTML)
	page.waitErrs[".s-card-container"] = fmt.Errorf("%w: .s-card-container", extract.ErrSelectorTimeout)
	chain := extract.NewChain(3*time.Second, extract.DefaultStrategies()...)

	res, err := chain.Run(context.Background(), page)

	require.NoError(t, err)
	assert.Equal(t, "deals-grid", res.Strategy)
	require.Len(t, res.Products, 1)
	assert.Equal(t, "https://shop.example/deal/123", res.Products[0].Link)

	require.Len(t, res.Attempts, 2)
	assert.Equal(t, "search-results", res.Attempts[0].Strategy)
	assert.ErrorIs(t, res.Attempts[0].Err, extract.ErrSelectorTimeout)
	assert.Equal(t, []time.Duration{3 * time.Second, 3 * time.Second}, page.timeouts)
}

func TestChain_FallsThroughOnEmptyMatch(t *testing.T) {
	t.Parallel()

	// Search signature present but no container carries a title.
	html := `<html><body><div class="s-card-container"><span>ad</span></div></body></html>` + dealsHTML
	page := newFakePage(t, html)

	res, err := extract.NewChain(time.Second, extract.DefaultStrategies()...).Run(context.Background(), page)

	require.NoError(t, err)
	assert.Equal(t, "deals-grid", res.Strategy)
	require.Len(t, res.Attempts, 2)
	assert.Equal(t, 0, res.Attempts[0].Records)
	assert.Error(t, res.Attempts[0].Err)
	assert.False(t, extract.IsMiss(res.Attempts[0].Err))
}

func TestChain_NoLayoutIsEmptyNotError(t *testing.T) {
	t.Parallel()

	page := newFakePage(t, plainHTML)

	res, err := extract.NewChain(time.Second, extract.DefaultStrategies()...).Run(context.Background(), page)

	require.NoError(t, err)
	require.NotNil(t, res.Products)
	assert.Empty(t, res.Products)
	assert.Empty(t, res.Strategy)
	require.Len(t, res.Attempts, 2)
	for _, a := range res.Attempts {
		assert.True(t, extract.IsMiss(a.Err), a.Strategy)
	}
}

func TestChain_EngineFaultAborts(t *testing.T) {
	t.Parallel()

	boom := errors.New("target crashed")
	page := newFakePage(t, searchHTML+dealsHTML)
	page.waitErrs[".s-card-container"] = boom

	res, err := extract.NewChain(time.Second, extract.DefaultStrategies()...).Run(context.Background(), page)

	require.ErrorIs(t, err, boom)
	require.NotNil(t, res)
	assert.Len(t, res.Attempts, 1)
	assert.Equal(t, []string{".s-card-container"}, page.waited)
}

func TestChain_DocumentFailureAborts(t *testing.T) {
	t.Parallel()

	boom := errors.New("snapshot failed")
	page := newFakePage(t, searchHTML)
	page.docErr = boom

	_, err := extract.NewChain(time.Second, extract.DefaultStrategies()...).Run(context.Background(), page)

	require.ErrorIs(t, err, boom)
}

func TestChain_CanceledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := extract.NewChain(time.Second, extract.DefaultStrategies()...).Run(ctx, newFakePage(t, searchHTML))

	require.ErrorIs(t, err, context.Canceled)
}

func TestNewChain_DefaultTimeoutAndCopy(t *testing.T) {
	t.Parallel()

	strategies := extract.DefaultStrategies()
	chain := extract.NewChain(0, strategies...)
	strategies[0] = nil

	got := chain.Strategies()
	require.Len(t, got, 2)
	assert.Equal(t, "search-results", got[0].Name())
	assert.Equal(t, "deals-grid", got[1].Name())

	page := newFakePage(t, plainHTML)
	_, err := chain.Run(context.Background(), page)
	require.NoError(t, err)
	assert.Equal(t, []time.Duration{extract.DefaultSelectorTimeout, extract.DefaultSelectorTimeout}, page.timeouts)
}
