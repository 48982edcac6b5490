// health_handler.go - HTTP handlers for /health/liveness, /health/readiness, /nodehealth
package server

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// HandleLiveness responds to /health/liveness
func (s *Server) HandleLiveness(c echo.Context) error {
	return c.JSON(http.StatusOK, LivenessResponse{Alive: s.NodeLiveness()})
}

// HandleReadiness responds to /health/readiness
func (s *Server) HandleReadiness(c echo.Context) error {
	ready := s.NodeReadiness()
	code := http.StatusOK
	if !ready {
		code = http.StatusServiceUnavailable
	}
	return c.JSON(code, ReadinessResponse{Ready: ready})
}

// NodeHealthResponse is the response type for the /nodehealth endpoint
type NodeHealthResponse struct {
	Status  string      `json:"status"`
	Metrics NodeMetrics `json:"metrics"`
}

// HandleNodeHealth responds to /nodehealth (summary health)
func (s *Server) HandleNodeHealth(c echo.Context) error {
	metrics := s.GetNodeMetrics()
	return c.JSON(http.StatusOK, NodeHealthResponse{
		Status:  s.nodeStatus(metrics),
		Metrics: metrics,
	})
}
