package vault

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/Tripp808/iyacare-app-sub001/core/ledger"
	"github.com/Tripp808/iyacare-app-sub001/types/ids"
)

// ledgerNode answers the three JSON-RPC methods the gateway uses.
type ledgerNode struct {
	srv     *httptest.Server
	mu      sync.Mutex
	anchors map[string]ledger.Anchor
	writes  int
}

func newLedgerNode(t *testing.T) *ledgerNode {
	t.Helper()
	n := &ledgerNode{anchors: map[string]ledger.Anchor{}}
	n.srv = httptest.NewServer(http.HandlerFunc(n.serve))
	t.Cleanup(n.srv.Close)
	return n
}

func (n *ledgerNode) URL() string { return n.srv.URL }

func (n *ledgerNode) submits() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.writes
}

func (n *ledgerNode) hashFor(contract, patientID string) string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.anchors[ids.RecordKey(contract, patientID).String()].ContentHash
}

func (n *ledgerNode) serve(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID     string `json:"id"`
		Method string `json:"method"`
		Params struct {
			RecordKey   string `json:"recordKey"`
			ContentHash string `json:"contentHash"`
			Tier        string `json:"tier"`
		} `json:"params"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	resp := map[string]any{"jsonrpc": "2.0", "id": req.ID}
	n.mu.Lock()
	switch req.Method {
	case ledger.MethodStatus:
		resp["result"] = map[string]any{"ok": true}
	case ledger.MethodSubmitRecord:
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if _, err := ledger.ParseWriteToken(token, "secret"); err != nil {
			resp["error"] = map[string]any{"code": -32001, "message": "unauthorized"}
			break
		}
		if _, err := ids.FromString(req.Params.RecordKey); err != nil {
			resp["error"] = map[string]any{"code": -32602, "message": "bad record key"}
			break
		}
		n.writes++
		n.anchors[req.Params.RecordKey] = ledger.Anchor{ContentHash: req.Params.ContentHash, Tier: req.Params.Tier, TxID: "0x01"}
		resp["result"] = map[string]any{"txId": "0x01"}
	case ledger.MethodGetRecord:
		if a, ok := n.anchors[req.Params.RecordKey]; ok {
			resp["result"] = a
		} else {
			resp["result"] = nil
		}
	}
	n.mu.Unlock()
	_ = json.NewEncoder(w).Encode(resp)
}
