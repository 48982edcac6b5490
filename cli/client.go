package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Tripp808/iyacare-app-sub001/api/server"
)

const defaultNodeAddr = "http://localhost:8088"

// nodeClient reads the health endpoints of a running node.
type nodeClient struct {
	base string
	http *http.Client
}

func newNodeClient(addr string) *nodeClient {
	return &nodeClient{
		base: strings.TrimRight(addr, "/"),
		http: &http.Client{Timeout: 5 * time.Second},
	}
}

// getJSON decodes the body whatever the status code, since readiness
// answers 503 with a meaningful body.
func (c *nodeClient) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%s: unexpected response (HTTP %d): %w", path, resp.StatusCode, err)
	}
	return nil
}

func (c *nodeClient) Health(ctx context.Context) (server.NodeHealthResponse, error) {
	var h server.NodeHealthResponse
	err := c.getJSON(ctx, "/nodehealth", &h)
	return h, err
}

func (c *nodeClient) Liveness(ctx context.Context) (bool, error) {
	var l server.LivenessResponse
	err := c.getJSON(ctx, "/health/liveness", &l)
	return l.Alive, err
}

func (c *nodeClient) Readiness(ctx context.Context) (bool, error) {
	var r server.ReadinessResponse
	err := c.getJSON(ctx, "/health/readiness", &r)
	return r.Ready, err
}
