package cache

import (
	"context"
	"sync"
	"time"

	"github.com/alphagrowth/euler-oracle-adapter-yearn/internal/platform/observability"
)

// WarmupProvider pre-populates the cache with the data it owns. The adapter
// registry implements this to pre-read each vault's description so the first
// client request never waits on a symbol probe.
type WarmupProvider interface {
	// Name returns a human-readable name for logging purposes
	Name() string

	// Warmup pre-populates the cache. Must be idempotent.
	Warmup(ctx context.Context) error
}

// WarmupConfig configures the cache warming behavior.
type WarmupConfig struct {
	// Timeout bounds the whole warmup run
	Timeout time.Duration

	// ContinueOnError keeps warming after a provider fails
	ContinueOnError bool

	// Parallel warms providers concurrently
	Parallel bool
}

// DefaultWarmupConfig returns sensible defaults for cache warming.
func DefaultWarmupConfig() WarmupConfig {
	return WarmupConfig{
		Timeout:         30 * time.Second,
		ContinueOnError: true,
		Parallel:        true,
	}
}

// WarmupResult is the outcome for a single provider.
type WarmupResult struct {
	Provider string
	Duration time.Duration
	Err      error
}

// WarmupResults aggregates a warmup run.
type WarmupResults struct {
	Results   []WarmupResult
	TotalTime time.Duration
	Errors    int
}

// HasErrors reports whether any provider failed.
func (wr *WarmupResults) HasErrors() bool {
	return wr.Errors > 0
}

// Warmer runs registered warmup providers. Warmup failures are logged, never
// fatal: a cold cache only costs latency.
type Warmer struct {
	providers []WarmupProvider
	logger    *observability.Logger
	config    WarmupConfig
}

// NewWarmer creates a cache warmer.
func NewWarmer(logger *observability.Logger, config WarmupConfig) *Warmer {
	return &Warmer{
		logger: logger,
		config: config,
	}
}

// RegisterProvider adds a warmup provider.
func (w *Warmer) RegisterProvider(provider WarmupProvider) {
	w.providers = append(w.providers, provider)
}

// Warmup executes all registered providers and returns aggregate results.
func (w *Warmer) Warmup(ctx context.Context) *WarmupResults {
	start := time.Now()
	results := &WarmupResults{}

	if len(w.providers) == 0 {
		results.TotalTime = time.Since(start)
		return results
	}

	warmupCtx, cancel := context.WithTimeout(ctx, w.config.Timeout)
	defer cancel()

	if w.config.Parallel {
		results.Results = w.runParallel(warmupCtx)
	} else {
		results.Results = w.runSequential(warmupCtx)
	}

	for _, r := range results.Results {
		if r.Err != nil {
			results.Errors++
		}
	}
	results.TotalTime = time.Since(start)

	if results.Errors > 0 {
		w.logger.LogWarn(ctx, "cache warmup finished with errors",
			"errors", results.Errors,
			"providers", len(w.providers),
			"duration", results.TotalTime.String(),
		)
	} else {
		w.logger.LogInfo(ctx, "cache warmup finished",
			"providers", len(w.providers),
			"duration", results.TotalTime.String(),
		)
	}

	return results
}

func (w *Warmer) runParallel(ctx context.Context) []WarmupResult {
	var wg sync.WaitGroup
	resultsCh := make(chan WarmupResult, len(w.providers))

	for _, provider := range w.providers {
		wg.Add(1)
		go func(p WarmupProvider) {
			defer wg.Done()
			resultsCh <- w.runOne(ctx, p)
		}(provider)
	}

	wg.Wait()
	close(resultsCh)

	results := make([]WarmupResult, 0, len(w.providers))
	for r := range resultsCh {
		results = append(results, r)
	}
	return results
}

func (w *Warmer) runSequential(ctx context.Context) []WarmupResult {
	results := make([]WarmupResult, 0, len(w.providers))

	for _, provider := range w.providers {
		result := w.runOne(ctx, provider)
		results = append(results, result)

		if result.Err != nil && !w.config.ContinueOnError {
			break
		}
	}
	return results
}

func (w *Warmer) runOne(ctx context.Context, provider WarmupProvider) WarmupResult {
	start := time.Now()
	name := provider.Name()

	err := provider.Warmup(ctx)
	duration := time.Since(start)

	if err != nil {
		w.logger.LogWarn(ctx, "cache warmup provider failed",
			"provider", name, "error", err, "duration", duration.String())
	} else {
		w.logger.LogDebug(ctx, "cache warmup provider finished",
			"provider", name, "duration", duration.String())
	}

	return WarmupResult{Provider: name, Duration: duration, Err: err}
}
