// status_response.go - JSON response structs for status/health endpoints
package server

import "github.com/Tripp808/iyacare-app-sub001/core/vault"

// StatusResponse represents the JSON structure for /status endpoint
type StatusResponse struct {
	Status     string       `json:"status"`
	Uptime     int64        `json:"uptime_seconds"`
	Vault      vault.Status `json:"vault"`
	Version    string       `json:"version"`
	APIVersion string       `json:"api_version"`
	Metrics    NodeMetrics  `json:"metrics"`
}

// LivenessResponse for /health/liveness
type LivenessResponse struct {
	Alive bool `json:"alive"`
}

// ReadinessResponse for /health/readiness
type ReadinessResponse struct {
	Ready bool `json:"ready"`
}
