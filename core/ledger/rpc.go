package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"
)

// JSON-RPC methods spoken by ledger nodes.
const (
	MethodStatus       = "ledger_status"
	MethodSubmitRecord = "ledger_submitRecord"
	MethodGetRecord    = "ledger_getRecord"
)

const maxResponseBytes = 1 << 20

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      string `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      string          `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// RPCError is an error object returned by a node.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// transportError marks failures that say nothing about the request itself,
// only that the endpoint could not serve it.
type transportError struct {
	endpoint string
	err      error
}

func (e *transportError) Error() string { return e.endpoint + ": " + e.err.Error() }
func (e *transportError) Unwrap() error { return e.err }

// call posts one JSON-RPC request to endpoint and decodes the result into
// out. A null result leaves out untouched and reports found=false.
func (g *Gateway) call(ctx context.Context, endpoint, method string, params any, token string, out any) (found bool, err error) {
	body, err := json.Marshal(rpcRequest{JSONRPC: "2.0", ID: uuid.NewString(), Method: method, Params: params})
	if err != nil {
		return false, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return false, &transportError{endpoint, err}
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return false, &transportError{endpoint, err}
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return false, &transportError{endpoint, err}
	}
	if resp.StatusCode >= 500 {
		return false, &transportError{endpoint, fmt.Errorf("http status %d", resp.StatusCode)}
	}
	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("%s: http status %d", endpoint, resp.StatusCode)
	}

	var rr rpcResponse
	if err := json.Unmarshal(raw, &rr); err != nil {
		return false, &transportError{endpoint, fmt.Errorf("decode response: %w", err)}
	}
	if rr.Error != nil {
		return false, rr.Error
	}
	if len(rr.Result) == 0 || string(rr.Result) == "null" {
		return false, nil
	}
	if out != nil {
		if err := json.Unmarshal(rr.Result, out); err != nil {
			return false, fmt.Errorf("%s: decode result: %w", endpoint, err)
		}
	}
	return true, nil
}
