package models

// HealthResponse is the response for GET /health.
type HealthResponse struct {
	Status  string `json:"status"` // "healthy" or "degraded"
	State   string `json:"state"`
	Uptime  string `json:"uptime"`
	Version string `json:"version"`

	// ConsecutiveFailures is the governor's current failure streak.
	ConsecutiveFailures int `json:"consecutive_failures"`
}

// ErrorResponse wraps an error returned by the status server.
type ErrorResponse struct {
	Error *ErrorDetail `json:"error"`
}
