package api

import (
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/shelf/api/handler"
	"github.com/use-agent/shelf/api/middleware"
	"github.com/use-agent/shelf/config"
	"github.com/use-agent/shelf/extract"
	"github.com/use-agent/shelf/scraper"
)

// NewRouter creates a configured Gin engine with all routes and middleware.
//
// Middleware chain: Recovery → RequestID (access log).
func NewRouter(r scraper.Renderer, chain *extract.Chain, stats handler.StatsProvider, cfg *config.Config, startTime time.Time) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)

	e := gin.New()
	e.Use(gin.Recovery())
	e.Use(middleware.RequestID())

	// Unrouted methods on known paths are 404 too.
	e.HandleMethodNotAllowed = false

	public := cfg.Server.PublicDir
	e.GET("/", handler.StaticFile(filepath.Join(public, "index.html"), "text/html; charset=utf-8"))
	e.GET("/styles.css", handler.StaticFile(filepath.Join(public, "styles.css"), "text/css; charset=utf-8"))

	e.POST("/scrape", handler.Scrape(r, chain, handler.ScrapeOptions{
		DefaultFetchMode:  cfg.Scraper.FetchMode,
		LegacyErrorStatus: cfg.Server.LegacyErrorStatus,
	}))

	e.GET("/health", handler.Health(stats, startTime))

	e.NoRoute(handler.NotFound)

	return e
}
