package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/shelf/api/middleware"
	"github.com/use-agent/shelf/extract"
	"github.com/use-agent/shelf/models"
	"github.com/use-agent/shelf/scraper"
)

// StrategyHeader names the layout that produced the products.
const StrategyHeader = "X-Shelf-Strategy"

// ScrapeOptions tunes the scrape handler.
type ScrapeOptions struct {
	// DefaultFetchMode applies when the request names none.
	DefaultFetchMode string

	// LegacyErrorStatus answers every failure with 500.
	LegacyErrorStatus bool
}

// Scrape returns a handler for POST /scrape.
//
// Orchestration flow:
//  1. Parse and validate the request. No session is opened for bad input.
//  2. Renderer.Open: navigate and settle.
//  3. Chain.Run: first layout yielding products wins.
//  4. Session.Close, on every path, before the response is written.
//  5. 200 with the product array, [] when nothing matched.
func Scrape(r scraper.Renderer, chain *extract.Chain, opts ScrapeOptions) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.ScrapeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, models.NewScrapeError(models.ErrCodeInvalidInput,
				"request body must be a JSON object with a url field", err), opts.LegacyErrorStatus)
			return
		}
		req.Defaults(opts.DefaultFetchMode)
		if err := req.Validate(); err != nil {
			respondError(c, err, opts.LegacyErrorStatus)
			return
		}

		log := slog.With("request_id", middleware.GetRequestID(c), "url", req.URL, "fetch_mode", req.FetchMode)

		res, err := scrape(c.Request.Context(), r, chain, &req, log)
		if err != nil {
			respondError(c, err, opts.LegacyErrorStatus)
			return
		}

		for _, a := range res.Attempts {
			log.Debug("strategy attempt",
				"strategy", a.Strategy,
				"records", a.Records,
				"elapsed_ms", a.Elapsed.Milliseconds(),
				"reason", a.Err,
			)
		}
		log.Info("scrape complete", "strategy", res.Strategy, "products", len(res.Products))

		if res.Strategy != "" {
			c.Header(StrategyHeader, res.Strategy)
		}
		c.JSON(http.StatusOK, res.Products)
	}
}

// scrape opens a session, runs the chain and closes the session exactly once
// whatever happens in between, panics included.
func scrape(ctx context.Context, r scraper.Renderer, chain *extract.Chain, req *models.ScrapeRequest, log *slog.Logger) (res *extract.Result, err error) {
	sess, err := r.Open(ctx, req)
	if err != nil {
		return nil, err
	}

	defer func() {
		if p := recover(); p != nil {
			log.Error("extraction panicked", "panic", p)
			res = nil
			err = models.NewScrapeError(models.ErrCodeEngineFault, "extraction failed unexpectedly", fmt.Errorf("panic: %v", p))
		}
		if cerr := sess.Close(); cerr != nil {
			log.Warn("session close failed", "error", cerr)
		}
	}()

	res, err = chain.Run(ctx, sess)
	if err != nil {
		return nil, asScrapeError(err, models.ErrCodeEngineFault, "extraction failed")
	}
	return res, nil
}

// asScrapeError returns err as a ScrapeError, wrapping it with code when it
// is not one already.
func asScrapeError(err error, code, msg string) *models.ScrapeError {
	var se *models.ScrapeError
	if errors.As(err, &se) {
		return se
	}
	return models.NewScrapeError(code, msg, err)
}

// respondError maps an error to its HTTP status and writes the JSON error
// body.
func respondError(c *gin.Context, err error, legacy bool) {
	se := asScrapeError(err, models.ErrCodeInternal, "internal error")
	_ = c.Error(se)
	c.JSON(mapErrorToStatus(se, legacy), se.ToResponse())
}

// mapErrorToStatus translates error codes to HTTP status codes. In legacy
// mode every failure is a 500.
func mapErrorToStatus(e *models.ScrapeError, legacy bool) int {
	if legacy {
		return http.StatusInternalServerError
	}
	switch e.Code {
	case models.ErrCodeInvalidInput:
		return http.StatusBadRequest // 400
	default:
		return http.StatusInternalServerError // 500
	}
}
