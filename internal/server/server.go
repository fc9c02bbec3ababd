// Package server exposes the read-only HTTP API: quote and bid/ask
// conversions, the adapter catalog, and the health and metrics endpoints.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/alphagrowth/euler-oracle-adapter-yearn/internal/adapter"
	"github.com/alphagrowth/euler-oracle-adapter-yearn/internal/blockchain"
	"github.com/alphagrowth/euler-oracle-adapter-yearn/internal/platform/cache"
	"github.com/alphagrowth/euler-oracle-adapter-yearn/internal/platform/observability"
)

// descriptionTTL bounds how long a vault's display description is served
// from cache. Descriptions are cosmetic and effectively immutable.
const descriptionTTL = time.Hour

// Server is the HTTP front end.
type Server struct {
	registry *adapter.Registry
	pool     *blockchain.ClientPool
	cache    cache.Cache
	logger   *observability.Logger
	metrics  *observability.Metrics

	// describeGroup collapses concurrent description lookups for the same
	// adapter into one vault probe.
	describeGroup singleflight.Group

	httpServer *http.Server
}

// Config holds server construction inputs.
type Config struct {
	Port     int
	Registry *adapter.Registry
	Pool     *blockchain.ClientPool
	Cache    cache.Cache
	Logger   *observability.Logger
	Metrics  *observability.Metrics
}

// New builds the server and its route table.
func New(cfg Config) (*Server, error) {
	if cfg.Registry == nil {
		return nil, fmt.Errorf("adapter registry is required")
	}

	s := &Server{
		registry: cfg.Registry,
		pool:     cfg.Pool,
		cache:    cfg.Cache,
		logger:   cfg.Logger,
		metrics:  cfg.Metrics,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /ready", s.handleReady)
	mux.HandleFunc("GET /v1/quote", s.handleQuote)
	mux.HandleFunc("GET /v1/bidask", s.handleBidAsk)
	mux.HandleFunc("GET /v1/adapters", s.handleAdapters)
	if cfg.Metrics != nil {
		mux.Handle("GET /metrics", cfg.Metrics.Handler())
	}

	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return s, nil
}

// Start serves until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	if s.logger != nil {
		s.logger.Info("HTTP server listening", "addr", s.httpServer.Addr)
	}
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// Handler returns the route table, for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// describe returns an adapter's description, serving from cache when warm.
func (s *Server) describe(ctx context.Context, a *adapter.Adapter) string {
	key := cache.DescriptionKey(a.Name())
	if s.cache != nil {
		if v, err := s.cache.Get(ctx, key); err == nil {
			if desc, ok := v.(string); ok {
				return desc
			}
		}
	}

	v, _, _ := s.describeGroup.Do(key, func() (any, error) {
		desc := a.Description(ctx)
		if s.cache != nil {
			_ = s.cache.Set(ctx, key, desc, descriptionTTL)
		}
		return desc, nil
	})
	return v.(string)
}

// DescriptionWarmer pre-reads every adapter's description into the cache.
// Implements cache.WarmupProvider.
type DescriptionWarmer struct {
	server *Server
}

// NewDescriptionWarmer creates a warmup provider for the server's catalog.
func NewDescriptionWarmer(s *Server) *DescriptionWarmer {
	return &DescriptionWarmer{server: s}
}

// Name identifies the provider in warmup logs.
func (w *DescriptionWarmer) Name() string {
	return "adapter-descriptions"
}

// Warmup reads each description once, populating the cache.
func (w *DescriptionWarmer) Warmup(ctx context.Context) error {
	for _, a := range w.server.registry.List() {
		w.server.describe(ctx, a)
	}
	return nil
}
