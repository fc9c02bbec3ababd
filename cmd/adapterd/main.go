package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alphagrowth/euler-oracle-adapter-yearn/internal/adapter"
	"github.com/alphagrowth/euler-oracle-adapter-yearn/internal/blockchain"
	"github.com/alphagrowth/euler-oracle-adapter-yearn/internal/money"
	"github.com/alphagrowth/euler-oracle-adapter-yearn/internal/monitor"
	"github.com/alphagrowth/euler-oracle-adapter-yearn/internal/notification"
	"github.com/alphagrowth/euler-oracle-adapter-yearn/internal/platform/aws"
	"github.com/alphagrowth/euler-oracle-adapter-yearn/internal/platform/cache"
	"github.com/alphagrowth/euler-oracle-adapter-yearn/internal/platform/config"
	"github.com/alphagrowth/euler-oracle-adapter-yearn/internal/platform/observability"
	"github.com/alphagrowth/euler-oracle-adapter-yearn/internal/server"
	"github.com/alphagrowth/euler-oracle-adapter-yearn/internal/vault"
)

func main() {
	// Create root context
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Load configuration
	log.Println("Loading configuration...")
	cfg := config.MustLoad("config.yaml")

	// Setup observability (foundational - must be first)
	log.Println("Setting up observability...")
	logger := observability.NewLogger(cfg.Observability.Logging.Level, cfg.Observability.Logging.Format)

	metrics, err := observability.NewMetrics("oracle-adapter", cfg.Observability.Metrics.Enabled)
	if err != nil {
		log.Fatalf("Failed to create metrics: %v", err)
	}

	tracer, err := observability.NewTracerProvider(ctx, "oracle-adapter", cfg.Observability.Tracing.Endpoint, cfg.Observability.Tracing.Enabled)
	if err != nil {
		log.Fatalf("Failed to create tracer: %v", err)
	}
	defer tracer.Shutdown(ctx)

	logger.Info("observability setup complete")

	// Setup infrastructure
	logger.Info("setting up infrastructure...")

	// Memory cache, optionally backed by Redis
	memCache := cache.NewMemoryCache(cfg.Cache.L1MaxSize)
	defer memCache.Close()

	var metadataCache cache.Cache = memCache
	if cfg.Redis.Address != "" {
		redisCache, err := cache.NewRedisCache(cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			logger.LogError(ctx, "failed to create Redis cache", err)
			log.Fatalf("Failed to create Redis cache: %v", err)
		}
		defer redisCache.Close()
		metadataCache = cache.NewLayeredCache(memCache, redisCache, metrics)
	}

	// Create Ethereum client pool
	logger.Info("connecting to Ethereum...")
	endpoints := make([]blockchain.EndpointConfig, len(cfg.Ethereum.RPCEndpoints))
	for i, ep := range cfg.Ethereum.RPCEndpoints {
		endpoints[i] = blockchain.EndpointConfig{
			URL:    ep.URL,
			Weight: ep.Weight,
		}
	}

	clientPool, err := blockchain.NewClientPool(blockchain.ClientPoolConfig{
		Endpoints:         endpoints,
		Logger:            logger,
		Metrics:           metrics,
		RequestsPerSecond: cfg.Ethereum.RequestsPerSecond,
		Burst:             cfg.Ethereum.Burst,
	})
	if err != nil {
		logger.LogError(ctx, "failed to create client pool", err)
		log.Fatalf("Failed to create client pool: %v", err)
	}
	defer clientPool.Close()

	// Build adapters from configuration
	logger.Info("building adapters...", "count", len(cfg.Adapters))
	registry := adapter.NewRegistry()
	targets := make([]monitor.Target, 0, len(cfg.Adapters))

	for i := range cfg.Adapters {
		ac := &cfg.Adapters[i]

		reader, err := vault.NewContractReader(ac.Vault(), clientPool)
		if err != nil {
			logger.LogError(ctx, "failed to create vault reader", err, "adapter", ac.Name)
			log.Fatalf("Failed to create vault reader for %s: %v", ac.Name, err)
		}
		reader.SetFallbackRecorder(metrics)

		assetReader, err := vault.NewERC20Reader(ac.Asset(), clientPool)
		if err != nil {
			logger.LogError(ctx, "failed to create asset reader", err, "adapter", ac.Name)
			log.Fatalf("Failed to create asset reader for %s: %v", ac.Name, err)
		}
		assetReader.SetFallbackRecorder(metrics)

		initCtx := ctx
		if cfg.Ethereum.CallTimeout > 0 {
			var initCancel context.CancelFunc
			initCtx, initCancel = context.WithTimeout(ctx, cfg.Ethereum.CallTimeout)
			defer initCancel()
		}

		a, err := adapter.New(initCtx, adapter.Config{
			Name:          ac.Name,
			VaultToken:    ac.Vault(),
			Asset:         ac.Asset(),
			QuoteUnit:     ac.Quote(),
			Reader:        reader,
			AssetReader:   assetReader,
			QuoteDecimals: ac.QuoteDecimals,
			Logger:        logger,
			Metrics:       metrics,
			Tracer:        observability.NewTracer("oracle-adapter"),
		})
		if err != nil {
			logger.LogError(ctx, "failed to create adapter", err, "adapter", ac.Name)
			log.Fatalf("Failed to create adapter %s: %v", ac.Name, err)
		}

		if err := registry.Register(a); err != nil {
			logger.LogError(ctx, "failed to register adapter", err, "adapter", ac.Name)
			log.Fatalf("Failed to register adapter %s: %v", ac.Name, err)
		}

		targets = append(targets, monitor.Target{
			Name:   ac.Name,
			Vault:  ac.Vault(),
			Reader: reader,
		})

		logger.Info("adapter registered",
			"name", a.Name(),
			"vault", ac.Vault().Hex(),
			"feed_decimals", a.FeedDecimals(),
		)
	}

	// Create alert publisher: SNS when a topic is configured, no-op otherwise
	var publisher monitor.AlertPublisher
	if cfg.AWS.SNSTopicARN != "" {
		logger.Info("creating SNS alert publisher...")
		awsCfg, err := aws.LoadAWSConfig(ctx, aws.Config{
			Region:   cfg.AWS.Region,
			Endpoint: cfg.AWS.Endpoint,
		})
		if err != nil {
			logger.LogError(ctx, "failed to load AWS config", err)
			log.Fatalf("Failed to load AWS config: %v", err)
		}

		snsClient := aws.NewSNSClient(aws.SNSClientConfig{
			AWSConfig: awsCfg,
			Logger:    logger,
			Metrics:   metrics,
		})

		publisher, err = notification.NewPublisher(notification.PublisherConfig{
			SNSClient: snsClient,
			TopicARN:  cfg.AWS.SNSTopicARN,
			Logger:    logger,
			Metrics:   metrics,
		})
		if err != nil {
			logger.LogError(ctx, "failed to create publisher", err)
			log.Fatalf("Failed to create publisher: %v", err)
		}
	} else {
		logger.Warn("no SNS topic configured, alerts will only be logged")
		publisher = notification.NewNoOpPublisher(logger)
	}

	// Create HTTP server
	logger.Info("creating HTTP server...")
	srv, err := server.New(server.Config{
		Port:     cfg.HTTP.Port,
		Registry: registry,
		Pool:     clientPool,
		Cache:    metadataCache,
		Logger:   logger,
		Metrics:  metrics,
	})
	if err != nil {
		logger.LogError(ctx, "failed to create server", err)
		log.Fatalf("Failed to create server: %v", err)
	}

	// Warm the metadata cache before taking traffic
	warmer := cache.NewWarmer(logger, cache.DefaultWarmupConfig())
	warmer.RegisterProvider(server.NewDescriptionWarmer(srv))
	warmer.Warmup(ctx)

	// Start rate monitor
	if cfg.Monitor.Enabled {
		logger.Info("starting rate monitor...",
			"interval", cfg.Monitor.Interval.String(),
			"threshold_bps", cfg.Monitor.DeviationThresholdBPS,
		)
		mon, err := monitor.New(monitor.Config{
			Targets:            targets,
			Publisher:          publisher,
			Interval:           cfg.Monitor.Interval,
			DeviationThreshold: money.NewBPSFromInt(cfg.Monitor.DeviationThresholdBPS),
			Workers:            cfg.Monitor.Workers,
			Logger:             logger,
			Metrics:            metrics,
		})
		if err != nil {
			logger.LogError(ctx, "failed to create monitor", err)
			log.Fatalf("Failed to create monitor: %v", err)
		}

		go func() {
			if err := mon.Run(ctx); err != nil {
				logger.LogError(ctx, "monitor stopped", err)
			}
		}()
	}

	// Start HTTP server
	logger.Info("starting HTTP server...", "port", cfg.HTTP.Port)
	go func() {
		if err := srv.Start(); err != nil {
			logger.LogError(ctx, "HTTP server error", err)
			cancel()
		}
	}()

	// Setup signal handling
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// Wait for shutdown signal or server failure
	select {
	case <-sigCh:
		logger.Info("shutdown signal received, gracefully stopping...")
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.LogError(shutdownCtx, "server shutdown error", err)
	}

	logger.Info("application stopped")
}
