// Package blockchain manages the RPC endpoint pool the contract readers run
// on: weighted rotation across endpoints, health tracking, and failover.
package blockchain

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/alphagrowth/euler-oracle-adapter-yearn/internal/platform/observability"
	"github.com/alphagrowth/euler-oracle-adapter-yearn/internal/platform/resilience"
)

// RPCEndpoint is a single Ethereum RPC endpoint. The client is swapped by
// the health loop while callers read it, so access goes through the
// mutex-guarded accessors.
type RPCEndpoint struct {
	URL     string
	Weight  int
	healthy atomic.Bool

	mu     sync.Mutex
	client *ethclient.Client
}

func (e *RPCEndpoint) getClient() *ethclient.Client {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.client
}

func (e *RPCEndpoint) setClient(c *ethclient.Client) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.client = c
}

// EndpointConfig describes one endpoint to dial
type EndpointConfig struct {
	URL    string
	Weight int
}

// ClientPoolConfig holds client pool configuration
type ClientPoolConfig struct {
	Endpoints      []EndpointConfig
	Logger         *observability.Logger
	Metrics        *observability.Metrics
	HealthCheckTTL time.Duration

	// RequestsPerSecond caps the aggregate RPC request rate across all
	// endpoints. Zero means unlimited.
	RequestsPerSecond float64
	Burst             int
}

// ClientPool rotates across RPC endpoints, weighting healthy ones
// proportionally and reconnecting failed ones in the background. It
// implements bind.ContractCaller so contract readers can be bound straight
// to the pool and inherit failover.
type ClientPool struct {
	endpoints      []*RPCEndpoint
	rotation       []int // endpoint indices repeated by weight
	logger         *observability.Logger
	metrics        *observability.Metrics
	healthCheckTTL time.Duration
	limiter        *resilience.RateLimiter

	mu      sync.Mutex
	current int

	cancel context.CancelFunc
}

// NewClientPool dials all endpoints and starts background health checks.
// An endpoint that fails to dial joins the pool unhealthy and is retried by
// the health loop; only a pool with zero healthy endpoints is an error.
func NewClientPool(cfg ClientPoolConfig) (*ClientPool, error) {
	if len(cfg.Endpoints) == 0 {
		return nil, fmt.Errorf("at least one RPC endpoint is required")
	}
	if cfg.HealthCheckTTL == 0 {
		cfg.HealthCheckTTL = 30 * time.Second
	}

	endpoints := make([]*RPCEndpoint, 0, len(cfg.Endpoints))
	for _, epCfg := range cfg.Endpoints {
		weight := epCfg.Weight
		if weight <= 0 {
			weight = 1
		}
		endpoint := &RPCEndpoint{URL: epCfg.URL, Weight: weight}

		client, err := ethclient.Dial(epCfg.URL)
		if err != nil {
			if cfg.Logger != nil {
				cfg.Logger.LogError(context.Background(), "failed to connect to RPC endpoint", err,
					"url", epCfg.URL,
				)
			}
			endpoint.healthy.Store(false)
		} else {
			endpoint.setClient(client)
			endpoint.healthy.Store(true)
			if cfg.Logger != nil {
				cfg.Logger.Info("connected to RPC endpoint",
					"url", epCfg.URL,
					"weight", weight,
				)
			}
		}
		endpoints = append(endpoints, endpoint)
	}

	healthy := false
	for _, ep := range endpoints {
		if ep.healthy.Load() {
			healthy = true
			break
		}
	}
	if !healthy {
		return nil, fmt.Errorf("no healthy RPC endpoints available")
	}

	var rotation []int
	for i, ep := range endpoints {
		for n := 0; n < ep.Weight; n++ {
			rotation = append(rotation, i)
		}
	}

	var limiter *resilience.RateLimiter
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = int(cfg.RequestsPerSecond)
			if burst < 1 {
				burst = 1
			}
		}
		limiter = resilience.NewRateLimiter(cfg.RequestsPerSecond, burst)
	}

	healthCtx, cancel := context.WithCancel(context.Background())
	pool := &ClientPool{
		endpoints:      endpoints,
		rotation:       rotation,
		logger:         cfg.Logger,
		metrics:        cfg.Metrics,
		healthCheckTTL: cfg.HealthCheckTTL,
		limiter:        limiter,
		cancel:         cancel,
	}

	go pool.healthLoop(healthCtx)

	return pool, nil
}

// GetClient returns the next healthy client from the weighted rotation
func (cp *ClientPool) GetClient() (*ethclient.Client, error) {
	cp.mu.Lock()
	defer cp.mu.Unlock()

	for attempts := 0; attempts < len(cp.rotation); attempts++ {
		endpoint := cp.endpoints[cp.rotation[cp.current]]
		cp.current = (cp.current + 1) % len(cp.rotation)

		if !endpoint.healthy.Load() {
			continue
		}
		if client := endpoint.getClient(); client != nil {
			return client, nil
		}
	}

	return nil, fmt.Errorf("no healthy RPC endpoints available")
}

// MarkUnhealthy takes an endpoint out of rotation until a health check
// passes again
func (cp *ClientPool) MarkUnhealthy(url string) {
	for _, endpoint := range cp.endpoints {
		if endpoint.URL != url {
			continue
		}
		if endpoint.healthy.Swap(false) {
			if cp.logger != nil {
				cp.logger.Warn("marking RPC endpoint as unhealthy", "url", url)
			}
			if cp.metrics != nil {
				cp.metrics.SetRPCEndpointHealth(context.Background(), url, false)
			}
		}
		return
	}
}

// CodeAt implements bind.ContractCaller with endpoint failover
func (cp *ClientPool) CodeAt(ctx context.Context, contract common.Address, blockNumber *big.Int) ([]byte, error) {
	return failover(cp, ctx, func(ctx context.Context, client *ethclient.Client) ([]byte, error) {
		return client.CodeAt(ctx, contract, blockNumber)
	})
}

// CallContract implements bind.ContractCaller with endpoint failover
func (cp *ClientPool) CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	return failover(cp, ctx, func(ctx context.Context, client *ethclient.Client) ([]byte, error) {
		return client.CallContract(ctx, call, blockNumber)
	})
}

// failover runs fn against healthy clients, rotating to the next endpoint on
// retryable transport errors. Deterministic errors (reverts, bad arguments)
// surface immediately.
func failover[T any](cp *ClientPool, ctx context.Context, fn func(context.Context, *ethclient.Client) (T, error)) (T, error) {
	var zero T
	var lastErr error

	if cp.limiter != nil {
		if err := cp.limiter.Wait(ctx); err != nil {
			return zero, err
		}
	}

	for attempts := 0; attempts < len(cp.endpoints); attempts++ {
		client, err := cp.GetClient()
		if err != nil {
			if lastErr != nil {
				return zero, fmt.Errorf("%w (last endpoint error: %v)", err, lastErr)
			}
			return zero, err
		}

		res, err := fn(ctx, client)
		if err == nil {
			return res, nil
		}
		if !resilience.IsRetryable(err) || ctx.Err() != nil {
			return zero, err
		}
		lastErr = err
	}

	return zero, fmt.Errorf("all RPC endpoints failed: %w", lastErr)
}

// healthLoop runs periodic health checks on all endpoints
func (cp *ClientPool) healthLoop(ctx context.Context) {
	ticker := time.NewTicker(cp.healthCheckTTL)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cp.checkAllEndpoints(ctx)
		}
	}
}

// checkAllEndpoints probes every endpoint concurrently within one timeout
// window
func (cp *ClientPool) checkAllEndpoints(ctx context.Context) {
	checkCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	var wg sync.WaitGroup
	for _, endpoint := range cp.endpoints {
		wg.Add(1)
		go func(ep *RPCEndpoint) {
			defer wg.Done()
			cp.checkEndpoint(checkCtx, ep)
		}(endpoint)
	}
	wg.Wait()
}

// checkEndpoint probes one endpoint with eth_blockNumber, reconnecting a
// dropped client first
func (cp *ClientPool) checkEndpoint(ctx context.Context, endpoint *RPCEndpoint) {
	client := endpoint.getClient()
	if client == nil {
		dialed, err := ethclient.Dial(endpoint.URL)
		if err != nil {
			endpoint.healthy.Store(false)
			if cp.metrics != nil {
				cp.metrics.SetRPCEndpointHealth(ctx, endpoint.URL, false)
			}
			return
		}
		client = dialed
		endpoint.setClient(client)
		if cp.logger != nil {
			cp.logger.Info("reconnected to RPC endpoint", "url", endpoint.URL)
		}
	}

	if _, err := client.BlockNumber(ctx); err != nil {
		// Cancellation says nothing about the endpoint
		if ctx.Err() != nil {
			return
		}

		if endpoint.healthy.Swap(false) && cp.logger != nil {
			cp.logger.LogError(ctx, "RPC endpoint health check failed", err,
				"url", endpoint.URL,
			)
		}
		if cp.metrics != nil {
			cp.metrics.SetRPCEndpointHealth(ctx, endpoint.URL, false)
		}

		endpoint.setClient(nil)
		client.Close()
		return
	}

	if !endpoint.healthy.Swap(true) && cp.logger != nil {
		cp.logger.Info("RPC endpoint is now healthy", "url", endpoint.URL)
	}
	if cp.metrics != nil {
		cp.metrics.SetRPCEndpointHealth(ctx, endpoint.URL, true)
	}
}

// HealthyEndpointCount returns the number of healthy endpoints
func (cp *ClientPool) HealthyEndpointCount() int {
	count := 0
	for _, endpoint := range cp.endpoints {
		if endpoint.healthy.Load() {
			count++
		}
	}
	return count
}

// EndpointStatus returns health by endpoint URL
func (cp *ClientPool) EndpointStatus() map[string]bool {
	status := make(map[string]bool, len(cp.endpoints))
	for _, endpoint := range cp.endpoints {
		status[endpoint.URL] = endpoint.healthy.Load()
	}
	return status
}

// Close stops health checks and closes all client connections
func (cp *ClientPool) Close() {
	cp.cancel()

	for _, endpoint := range cp.endpoints {
		if client := endpoint.getClient(); client != nil {
			client.Close()
		}
	}

	if cp.logger != nil {
		cp.logger.Info("closed all RPC client connections")
	}
}
