package ledger

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tripp808/iyacare-app-sub001/core/record"
	"github.com/Tripp808/iyacare-app-sub001/types/ids"
)

const (
	testSecret   = "ledger-write-secret"
	testContract = "0xC0FFEE"
)

// fakeNode is an in-process ledger node.
type fakeNode struct {
	srv     *httptest.Server
	mu      sync.Mutex
	anchors map[string]Anchor
	calls   atomic.Int32
	down    atomic.Bool
	denied  atomic.Int32
}

func newFakeNode(t *testing.T) *fakeNode {
	t.Helper()
	n := &fakeNode{anchors: map[string]Anchor{}}
	n.srv = httptest.NewServer(http.HandlerFunc(n.handle))
	t.Cleanup(n.srv.Close)
	return n
}

func (n *fakeNode) URL() string { return n.srv.URL }

func (n *fakeNode) handle(w http.ResponseWriter, r *http.Request) {
	n.calls.Add(1)
	if n.down.Load() {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
		return
	}
	var req struct {
		ID     string          `json:"id"`
		Method string          `json:"method"`
		Params json.RawMessage `json:"params"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	resp := map[string]any{"jsonrpc": "2.0", "id": req.ID}
	switch req.Method {
	case MethodStatus:
		resp["result"] = map[string]any{"height": 42}
	case MethodSubmitRecord:
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if contract, err := ParseWriteToken(token, testSecret); err != nil || contract != testContract {
			n.denied.Add(1)
			resp["error"] = map[string]any{"code": -32001, "message": "unauthorized"}
			break
		}
		var p submitParams
		_ = json.Unmarshal(req.Params, &p)
		n.mu.Lock()
		n.anchors[p.RecordKey] = Anchor{ContentHash: p.ContentHash, Tier: p.Tier, TxID: "tx-" + p.RecordKey[:8], AnchoredAt: time.Now().UTC()}
		n.mu.Unlock()
		resp["result"] = map[string]any{"txId": "tx-" + p.RecordKey[:8]}
	case MethodGetRecord:
		var p getParams
		_ = json.Unmarshal(req.Params, &p)
		n.mu.Lock()
		a, ok := n.anchors[p.RecordKey]
		n.mu.Unlock()
		if ok {
			resp["result"] = a
		} else {
			resp["result"] = nil
		}
	default:
		resp["error"] = map[string]any{"code": -32601, "message": "method not found"}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

// deadEndpoint returns a URL nothing listens on.
func deadEndpoint(t *testing.T) string {
	t.Helper()
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()
	return url
}

func newGateway(endpoints ...string) *Gateway {
	return New(Config{
		Network:         "iyacare-test",
		Endpoints:       endpoints,
		ContractAddress: testContract,
		WriteCredential: testSecret,
		ProbeTimeout:    500 * time.Millisecond,
		RequestTimeout:  time.Second,
	})
}

func TestConnectEmptyPool(t *testing.T) {
	g := newGateway()
	require.ErrorIs(t, g.Connect(context.Background()), ErrConfiguration)
}

func TestConnectFailsOverToThirdEndpoint(t *testing.T) {
	node := newFakeNode(t)
	g := newGateway(deadEndpoint(t), deadEndpoint(t), node.URL())

	require.NoError(t, g.Connect(context.Background()))
	info := g.Info()
	assert.True(t, info.Connected)
	assert.Equal(t, node.URL(), info.Endpoint)
	assert.Equal(t, "iyacare-test", info.Network)
	assert.Equal(t, ClassTest, info.Class)
}

func TestConnectAllUnreachable(t *testing.T) {
	g := newGateway(deadEndpoint(t), deadEndpoint(t))
	err := g.Connect(context.Background())
	require.ErrorIs(t, err, ErrConnection)
	assert.False(t, g.Info().Connected)

	_, err = g.WriteRecord(context.Background(), "p1", "hash", record.Restricted)
	require.ErrorIs(t, err, ErrRemoteWrite)
}

func TestWriteThenReadAnchor(t *testing.T) {
	node := newFakeNode(t)
	g := newGateway(node.URL())
	require.NoError(t, g.Connect(context.Background()))

	txID, err := g.WriteRecord(context.Background(), "p1", "deadbeef", record.Restricted)
	require.NoError(t, err)
	assert.NotEmpty(t, txID)

	a, err := g.ReadRecord(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, "deadbeef", a.ContentHash)
	assert.Equal(t, "restricted", a.Tier)

	// The node only ever sees the pseudonymous key.
	node.mu.Lock()
	_, ok := node.anchors[ids.RecordKey(testContract, "p1").String()]
	node.mu.Unlock()
	assert.True(t, ok)

	_, err = g.ReadRecord(context.Background(), "unknown")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestWriteWithoutCredentialsIsNoop(t *testing.T) {
	node := newFakeNode(t)
	g := New(Config{Endpoints: []string{node.URL()}, ContractAddress: testContract})
	require.NoError(t, g.Connect(context.Background()))
	before := node.calls.Load()

	txID, err := g.WriteRecord(context.Background(), "p1", "hash", record.Public)
	require.NoError(t, err)
	assert.Empty(t, txID)
	assert.Equal(t, before, node.calls.Load())
}

func TestWriteWithWrongCredentialFails(t *testing.T) {
	node := newFakeNode(t)
	g := New(Config{Endpoints: []string{node.URL()}, ContractAddress: testContract, WriteCredential: "wrong"})
	require.NoError(t, g.Connect(context.Background()))

	_, err := g.WriteRecord(context.Background(), "p1", "hash", record.Public)
	require.ErrorIs(t, err, ErrRemoteWrite)
	assert.EqualValues(t, 1, node.denied.Load())
	// An RPC-level rejection does not drop a healthy endpoint.
	assert.True(t, g.Info().Connected)
}

func TestReadWithoutContract(t *testing.T) {
	g := New(Config{Endpoints: []string{"http://127.0.0.1:1"}})
	_, err := g.ReadRecord(context.Background(), "p1")
	require.ErrorIs(t, err, ErrConfiguration)
}

func TestTransportFailureDropsEndpointAndReprobes(t *testing.T) {
	primary := newFakeNode(t)
	backup := newFakeNode(t)
	g := newGateway(primary.URL(), backup.URL())
	clock := time.Now()
	g.now = func() time.Time { return clock }
	require.NoError(t, g.Connect(context.Background()))
	require.Equal(t, primary.URL(), g.Info().Endpoint)

	primary.down.Store(true)
	_, err := g.WriteRecord(context.Background(), "p1", "h1", record.Public)
	require.ErrorIs(t, err, ErrRemoteWrite)
	assert.False(t, g.Info().Connected)

	// Inside the re-probe interval the gateway stays disconnected.
	_, err = g.WriteRecord(context.Background(), "p1", "h1", record.Public)
	require.ErrorIs(t, err, ErrNotConnected)

	clock = clock.Add(DefaultReprobeInterval + time.Second)
	_, err = g.WriteRecord(context.Background(), "p1", "h1", record.Public)
	require.NoError(t, err)
	assert.Equal(t, backup.URL(), g.Info().Endpoint)
}

func TestBreakerOpensAfterRepeatedFailures(t *testing.T) {
	g := New(Config{
		Endpoints:       []string{deadEndpoint(t)},
		ContractAddress: testContract,
		WriteCredential: testSecret,
		ProbeTimeout:    200 * time.Millisecond,
		ReprobeInterval: time.Nanosecond,
		BreakerFailures: 2,
		BreakerTimeout:  time.Hour,
	})
	for i := 0; i < 2; i++ {
		_, err := g.WriteRecord(context.Background(), "p1", "h", record.Public)
		require.ErrorIs(t, err, ErrRemoteWrite)
	}
	assert.Equal(t, gobreaker.StateOpen.String(), g.Info().Breaker)

	_, err := g.WriteRecord(context.Background(), "p1", "h", record.Public)
	require.ErrorIs(t, err, gobreaker.ErrOpenState)
	require.ErrorIs(t, err, ErrRemoteWrite)
}

func TestWriteRateLimit(t *testing.T) {
	node := newFakeNode(t)
	g := New(Config{
		Endpoints:       []string{node.URL()},
		ContractAddress: testContract,
		WriteCredential: testSecret,
		WriteRate:       0.001,
		WriteBurst:      1,
	})
	require.NoError(t, g.Connect(context.Background()))
	_, err := g.WriteRecord(context.Background(), "p1", "h", record.Public)
	require.NoError(t, err)
	_, err = g.WriteRecord(context.Background(), "p1", "h", record.Public)
	require.ErrorIs(t, err, ErrRateLimited)
}

func TestParseNetworkClass(t *testing.T) {
	c, err := ParseNetworkClass(" Production ")
	require.NoError(t, err)
	assert.Equal(t, ClassProduction, c)
	c, err = ParseNetworkClass("")
	require.NoError(t, err)
	assert.Equal(t, ClassTest, c)
	_, err = ParseNetworkClass("mainnet")
	require.ErrorIs(t, err, ErrConfiguration)
}

func TestWriteTokenRoundTrip(t *testing.T) {
	tok, err := signWriteToken(testSecret, testContract, time.Now())
	require.NoError(t, err)
	contract, err := ParseWriteToken(tok, testSecret)
	require.NoError(t, err)
	assert.Equal(t, testContract, contract)

	_, err = ParseWriteToken(tok, "other")
	require.Error(t, err)

	expired, err := signWriteToken(testSecret, testContract, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	_, err = ParseWriteToken(expired, testSecret)
	require.Error(t, err)
}
