package models

// HealthResponse is the response for GET /health.
type HealthResponse struct {
	Status      string      `json:"status"` // "healthy" or "degraded"
	Uptime      string      `json:"uptime"`
	SessionStat SessionStat `json:"sessions"`
	Version     string      `json:"version"`
}

// SessionStat reports how many browsing contexts are open.
type SessionStat struct {
	Max    int `json:"max"`
	Active int `json:"active"`
}
