// Command shelf-mcp exposes the shelf API as an MCP tool over stdio.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// scrapeRequest mirrors the shelf API request model.
type scrapeRequest struct {
	URL       string `json:"url"`
	FetchMode string `json:"fetch_mode,omitempty"`
}

// product mirrors one element of the shelf API response.
type product struct {
	Title string `json:"title"`
	Image string `json:"image,omitempty"`
	Price string `json:"price,omitempty"`
	Link  string `json:"link,omitempty"`
}

// errorResponse mirrors the shelf API error body.
type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func main() {
	apiURL := os.Getenv("SHELF_API_URL")
	if apiURL == "" {
		apiURL = "http://127.0.0.1:3000"
	}

	s := newServer(strings.TrimRight(apiURL, "/"))
	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

func newServer(apiURL string) *server.MCPServer {
	s := server.NewMCPServer(
		"shelf",
		"0.1.0",
		server.WithToolCapabilities(false),
	)

	tool := mcp.NewTool("scrape_products",
		mcp.WithDescription("Render a product listing page (search results or deals grid) and return its products: title, image, price and absolute link."),
		mcp.WithString("url",
			mcp.Required(),
			mcp.Description("Absolute http(s) URL of the listing page"),
		),
		mcp.WithString("fetch_mode",
			mcp.Description("'browser' (default, runs page scripts) or 'http' (server markup only, faster)"),
			mcp.Enum("browser", "http"),
		),
	)
	s.AddTool(tool, handleScrapeProducts(apiURL))
	return s
}

func handleScrapeProducts(apiURL string) server.ToolHandlerFunc {
	client := &http.Client{Timeout: 120 * time.Second}

	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		url, err := request.RequireString("url")
		if err != nil {
			return mcp.NewToolResultError("url is required"), nil
		}

		body, err := json.Marshal(scrapeRequest{
			URL:       url,
			FetchMode: request.GetString("fetch_mode", ""),
		})
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to marshal request: %v", err)), nil
		}

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL+"/scrape", bytes.NewReader(body))
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to create request: %v", err)), nil
		}
		httpReq.Header.Set("Content-Type", "application/json")

		resp, err := client.Do(httpReq)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("API request failed: %v", err)), nil
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to read response: %v", err)), nil
		}

		if resp.StatusCode != http.StatusOK {
			var e errorResponse
			if json.Unmarshal(respBody, &e) == nil && e.Error != "" {
				return mcp.NewToolResultError(fmt.Sprintf("[%s] %s", e.Code, e.Error)), nil
			}
			return mcp.NewToolResultError(fmt.Sprintf("scrape failed with HTTP %d", resp.StatusCode)), nil
		}

		var products []product
		if err := json.Unmarshal(respBody, &products); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to parse response: %v", err)), nil
		}

		return mcp.NewToolResultText(formatProducts(url, resp.Header.Get("X-Shelf-Strategy"), products)), nil
	}
}

// formatProducts renders products as a numbered list for the model to read.
func formatProducts(source, strategy string, products []product) string {
	var sb strings.Builder
	if len(products) == 0 {
		fmt.Fprintf(&sb, "No products found on %s (no known listing layout matched).", source)
		return sb.String()
	}

	fmt.Fprintf(&sb, "%d products from %s", len(products), source)
	if strategy != "" {
		fmt.Fprintf(&sb, " (layout: %s)", strategy)
	}
	sb.WriteString("\n")
	for i, p := range products {
		fmt.Fprintf(&sb, "\n%d. %s\n", i+1, p.Title)
		if p.Price != "" {
			fmt.Fprintf(&sb, "   Price: %s\n", p.Price)
		}
		if p.Link != "" {
			fmt.Fprintf(&sb, "   Link: %s\n", p.Link)
		}
		if p.Image != "" {
			fmt.Fprintf(&sb, "   Image: %s\n", p.Image)
		}
	}
	return sb.String()
}
