package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"priceatlas/cpiworker/config"
	"priceatlas/cpiworker/internal/scraper"
	"priceatlas/cpiworker/logger"
	"priceatlas/cpiworker/services/cache"
	"priceatlas/cpiworker/services/ledger"
	"priceatlas/cpiworker/services/proxy"
	"priceatlas/cpiworker/services/publisher"
	"priceatlas/cpiworker/services/worker"
)

func main() {
	_ = godotenv.Load()
	logger.Init()

	productID := flag.String("product", "", "scrape a single product by id")
	all := flag.Bool("all", false, "scrape the full catalog instead of one batch")
	flag.Parse()

	cfg := config.LoadConfig()
	if err := cfg.Validate(); err != nil {
		logger.Default.Fatal().Err(err).Msg("Invalid configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	connectCtx, cancelConnect := context.WithTimeout(ctx, 15*time.Second)
	client, err := ledger.Connect(connectCtx, cfg.MongoURI)
	cancelConnect()
	if err != nil {
		logger.Default.Fatal().Err(err).Msg("Failed to connect to ledger store")
	}
	defer func() {
		disconnectCtx, cancelDisconnect := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancelDisconnect()
		_ = client.Disconnect(disconnectCtx)
	}()

	db := client.Database(cfg.MongoDatabase)
	priceLedger := ledger.NewMongoLedger(db)
	pool := proxy.NewPool(proxy.NewMongoStore(db))

	var cooldowns cache.CacheService
	if cfg.MemcacheAddr != "" {
		cooldowns = cache.NewMemcacheService(cfg.MemcacheAddr)
		logger.Info("Retailer cooldowns enabled via memcache at %s", cfg.MemcacheAddr)
	}

	var pub publisher.Publisher
	if cfg.RedisAddr != "" {
		redisPub := publisher.NewRedisPublisher(ctx, cfg.RedisAddr, cfg.RedisDB, cfg.RedisStream, cfg.RedisStreamCount, cfg.RedisStreamMaxLength)
		defer redisPub.Close()
		pub = redisPub
		logger.Info("Observation events enabled via redis at %s", cfg.RedisAddr)
	}

	metrics := scraper.NewMetrics()
	if cfg.MetricsAddr != "" {
		go serveMetrics(cfg.MetricsAddr, metrics)
	}

	registry := scraper.NewRegistry(cfg)
	controller := scraper.NewController(pool, cooldowns, metrics, cfg.MaxAttempts, cfg.AttemptTimeout, cfg.CooldownTime)
	selector := worker.NewSelector(priceLedger, registry)
	w := worker.NewWorker(selector, priceLedger, controller, pub, metrics, cfg.ProductConcurrency)

	scope := ledger.Scope{
		ProductID: *productID,
		Limit:     cfg.BatchSize,
		All:       *all,
	}

	if _, _, err := w.Run(ctx, scope); err != nil {
		logger.Default.Error().Err(err).Msg("Scrape run aborted")
		if pub != nil {
			_ = pub.TrimStreams()
		}
		os.Exit(1)
	}

	if pub != nil {
		if err := pub.TrimStreams(); err != nil {
			logger.Warn("Failed to trim observation streams: %v", err)
		}
	}
}

// serveMetrics exposes the run's Prometheus registry. The listener lives
// for the process lifetime and dies with it.
func serveMetrics(addr string, metrics *scraper.Metrics) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	logger.Info("Metrics listening on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Warn("Metrics listener stopped: %v", err)
	}
}
