// status_handler.go - HTTP handler for /status
package server

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// HandleStatus responds to /status with the vault's operator view.
func (s *Server) HandleStatus(c echo.Context) error {
	st := s.vault.Status()
	metrics := s.GetNodeMetrics()

	resp := StatusResponse{
		Status:     s.nodeStatus(metrics),
		Uptime:     metrics.UptimeSeconds,
		Vault:      st,
		Version:    NodeVersion(),
		APIVersion: APIVersion(),
		Metrics:    metrics,
	}
	return c.JSON(http.StatusOK, resp)
}
