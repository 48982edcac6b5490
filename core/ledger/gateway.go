// Package ledger mirrors record content hashes to an external ledger
// network over JSON-RPC. The network is optional: every failure here is
// reported to the caller, who decides whether it matters.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/Tripp808/iyacare-app-sub001/core/record"
	"github.com/Tripp808/iyacare-app-sub001/types/ids"
)

// NetworkClass selects which endpoint pool a deployment talks to.
type NetworkClass string

const (
	ClassTest       NetworkClass = "test"
	ClassProduction NetworkClass = "production"
)

func ParseNetworkClass(s string) (NetworkClass, error) {
	switch NetworkClass(strings.ToLower(strings.TrimSpace(s))) {
	case ClassTest, "":
		return ClassTest, nil
	case ClassProduction:
		return ClassProduction, nil
	}
	return "", fmt.Errorf("%w: unknown network class %q", ErrConfiguration, s)
}

const (
	DefaultProbeTimeout    = 3 * time.Second
	DefaultRequestTimeout  = 5 * time.Second
	DefaultReprobeInterval = 30 * time.Second
	DefaultWriteRate       = 20
	DefaultWriteBurst      = 40

	defaultBreakerFailures uint32 = 5
	defaultBreakerTimeout         = 30 * time.Second
)

type Config struct {
	Network         string
	Class           NetworkClass
	Endpoints       []string
	ContractAddress string
	WriteCredential string

	ProbeTimeout    time.Duration
	RequestTimeout  time.Duration
	ReprobeInterval time.Duration

	// WriteRate is in writes per second.
	WriteRate  float64
	WriteBurst int

	BreakerFailures uint32
	BreakerTimeout  time.Duration

	HTTPClient *http.Client
	Logger     zerolog.Logger
}

// Anchor is what the contract holds for one record.
type Anchor struct {
	ContentHash string    `json:"contentHash"`
	Tier        string    `json:"tier"`
	TxID        string    `json:"txId,omitempty"`
	AnchoredAt  time.Time `json:"anchoredAt"`
}

// Info describes the gateway's view of the network.
type Info struct {
	Network   string       `json:"network"`
	Class     NetworkClass `json:"class"`
	Connected bool         `json:"connected"`
	Endpoint  string       `json:"endpoint,omitempty"`
	// Breaker is the write circuit breaker state: closed, half-open or open.
	Breaker string `json:"breaker,omitempty"`
}

type submitParams struct {
	Contract    string `json:"contract"`
	RecordKey   string `json:"recordKey"`
	ContentHash string `json:"contentHash"`
	Tier        string `json:"tier"`
}

type getParams struct {
	Contract  string `json:"contract"`
	RecordKey string `json:"recordKey"`
}

type submitResult struct {
	TxID string `json:"txId"`
}

// Gateway holds the connection to one ledger network.
type Gateway struct {
	cfg     Config
	client  *http.Client
	logger  zerolog.Logger
	breaker *gobreaker.CircuitBreaker[string]
	limiter *rate.Limiter
	now     func() time.Time

	mu        sync.Mutex
	active    string
	lastProbe time.Time
}

func New(cfg Config) *Gateway {
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = DefaultProbeTimeout
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}
	if cfg.ReprobeInterval <= 0 {
		cfg.ReprobeInterval = DefaultReprobeInterval
	}
	if cfg.WriteRate <= 0 {
		cfg.WriteRate = DefaultWriteRate
	}
	if cfg.WriteBurst <= 0 {
		cfg.WriteBurst = DefaultWriteBurst
	}
	if cfg.BreakerFailures == 0 {
		cfg.BreakerFailures = defaultBreakerFailures
	}
	if cfg.BreakerTimeout <= 0 {
		cfg.BreakerTimeout = defaultBreakerTimeout
	}
	if cfg.Class == "" {
		cfg.Class = ClassTest
	}
	if cfg.Network == "" {
		cfg.Network = string(cfg.Class)
	}
	cfg.Endpoints = cleanEndpoints(cfg.Endpoints)

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Transport: http.DefaultTransport.(*http.Transport).Clone()}
	}
	logger := cfg.Logger.With().Str("component", "ledger").Str("network", cfg.Network).Logger()

	g := &Gateway{
		cfg:     cfg,
		client:  client,
		logger:  logger,
		limiter: rate.NewLimiter(rate.Limit(cfg.WriteRate), cfg.WriteBurst),
		now:     time.Now,
	}
	g.breaker = gobreaker.NewCircuitBreaker[string](gobreaker.Settings{
		Name:        "ledger:" + cfg.Network,
		MaxRequests: 1,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).
				Msg("circuit breaker state change")
		},
	})
	return g
}

func cleanEndpoints(in []string) []string {
	var out []string
	for _, ep := range in {
		if ep = strings.TrimSpace(ep); ep != "" {
			out = append(out, ep)
		}
	}
	return out
}

// WritesEnabled reports whether WriteRecord will contact the network.
func (g *Gateway) WritesEnabled() bool {
	return g.cfg.WriteCredential != "" && g.cfg.ContractAddress != ""
}

// Connect probes the pool in order and keeps the first endpoint that
// answers. Each probe gets ProbeTimeout.
func (g *Gateway) Connect(ctx context.Context) error {
	if len(g.cfg.Endpoints) == 0 {
		return fmt.Errorf("%w: empty endpoint pool", ErrConfiguration)
	}
	g.mu.Lock()
	g.lastProbe = g.now()
	g.mu.Unlock()

	ep, err := g.probe(ctx)
	g.mu.Lock()
	g.active = ep
	g.mu.Unlock()
	if err != nil {
		g.logger.Warn().Err(err).Msg("ledger unreachable, running local-only")
		return err
	}
	g.logger.Info().Str("endpoint", ep).Msg("ledger connected")
	return nil
}

func (g *Gateway) probe(ctx context.Context) (string, error) {
	var causes []error
	for _, ep := range g.cfg.Endpoints {
		if err := ctx.Err(); err != nil {
			causes = append(causes, err)
			break
		}
		pctx, cancel := context.WithTimeout(ctx, g.cfg.ProbeTimeout)
		_, err := g.call(pctx, ep, MethodStatus, nil, "", nil)
		cancel()
		if err == nil {
			return ep, nil
		}
		g.logger.Debug().Err(err).Str("endpoint", ep).Msg("probe failed")
		causes = append(causes, fmt.Errorf("%s: %w", ep, err))
	}
	return "", fmt.Errorf("%w: %w", ErrConnection, errors.Join(causes...))
}

// endpoint returns the active endpoint, re-probing the pool when there is
// none and the last probe is older than ReprobeInterval.
func (g *Gateway) endpoint(ctx context.Context) (string, error) {
	g.mu.Lock()
	if g.active != "" {
		ep := g.active
		g.mu.Unlock()
		return ep, nil
	}
	if len(g.cfg.Endpoints) == 0 || g.now().Sub(g.lastProbe) < g.cfg.ReprobeInterval {
		g.mu.Unlock()
		return "", ErrNotConnected
	}
	g.lastProbe = g.now()
	g.mu.Unlock()

	ep, err := g.probe(ctx)
	if err != nil {
		return "", err
	}
	g.mu.Lock()
	g.active = ep
	g.mu.Unlock()
	g.logger.Info().Str("endpoint", ep).Msg("ledger reconnected")
	return ep, nil
}

// drop forgets ep after a transport failure so the next call re-probes.
func (g *Gateway) drop(ep string, cause error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.active == ep {
		g.active = ""
		g.logger.Warn().Err(cause).Str("endpoint", ep).Msg("ledger endpoint dropped")
	}
}

func (g *Gateway) do(ctx context.Context, method string, params any, token string, out any) (bool, error) {
	ep, err := g.endpoint(ctx)
	if err != nil {
		return false, err
	}
	cctx, cancel := context.WithTimeout(ctx, g.cfg.RequestTimeout)
	defer cancel()
	found, err := g.call(cctx, ep, method, params, token, out)
	var te *transportError
	if errors.As(err, &te) {
		g.drop(ep, err)
	}
	return found, err
}

// WriteRecord anchors contentHash for patientID on the contract and returns
// the transaction id. Without a write credential or contract it does nothing
// and succeeds.
func (g *Gateway) WriteRecord(ctx context.Context, patientID, contentHash string, tier record.Tier) (string, error) {
	if !g.WritesEnabled() {
		g.logger.Debug().Str("patient_id", patientID).Msg("ledger writes disabled, skipping")
		return "", nil
	}
	if !g.limiter.Allow() {
		return "", fmt.Errorf("%w: %w", ErrRemoteWrite, ErrRateLimited)
	}
	params := submitParams{
		Contract:    g.cfg.ContractAddress,
		RecordKey:   ids.RecordKey(g.cfg.ContractAddress, patientID).String(),
		ContentHash: contentHash,
		Tier:        tier.String(),
	}
	txID, err := g.breaker.Execute(func() (string, error) {
		token, err := signWriteToken(g.cfg.WriteCredential, g.cfg.ContractAddress, g.now())
		if err != nil {
			return "", err
		}
		var res submitResult
		if _, err := g.do(ctx, MethodSubmitRecord, params, token, &res); err != nil {
			return "", err
		}
		return res.TxID, nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrRemoteWrite, err)
	}
	return txID, nil
}

// ReadRecord fetches the anchor for patientID.
func (g *Gateway) ReadRecord(ctx context.Context, patientID string) (Anchor, error) {
	if g.cfg.ContractAddress == "" {
		return Anchor{}, fmt.Errorf("%w: no contract address", ErrConfiguration)
	}
	params := getParams{
		Contract:  g.cfg.ContractAddress,
		RecordKey: ids.RecordKey(g.cfg.ContractAddress, patientID).String(),
	}
	var a Anchor
	found, err := g.do(ctx, MethodGetRecord, params, "", &a)
	if err != nil {
		return Anchor{}, fmt.Errorf("%w: %w", ErrRemoteRead, err)
	}
	if !found {
		return Anchor{}, ErrNotFound
	}
	return a, nil
}

func (g *Gateway) Info() Info {
	g.mu.Lock()
	defer g.mu.Unlock()
	return Info{
		Network:   g.cfg.Network,
		Class:     g.cfg.Class,
		Connected: g.active != "",
		Endpoint:  g.active,
		Breaker:   g.breaker.State().String(),
	}
}

func (g *Gateway) Close() {
	g.client.CloseIdleConnections()
}
