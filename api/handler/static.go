package handler

import (
	"log/slog"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
)

// StaticFile serves one file from disk, read on every request so the UI
// shell can be edited without a restart. A read failure is a 500.
func StaticFile(path, contentType string) gin.HandlerFunc {
	return func(c *gin.Context) {
		data, err := os.ReadFile(path)
		if err != nil {
			slog.Error("failed to read static file", "path", path, "error", err)
			c.String(http.StatusInternalServerError, "internal server error")
			return
		}
		c.Data(http.StatusOK, contentType, data)
	}
}

// NotFound answers every unrouted path and method.
func NotFound(c *gin.Context) {
	c.String(http.StatusNotFound, "not found")
}
