package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"tokenpulse/internal/bus"
	"tokenpulse/internal/cache"
	"tokenpulse/internal/collector"
	"tokenpulse/internal/logging"
	"tokenpulse/internal/observability"
	"tokenpulse/internal/provider"
	"tokenpulse/internal/ratelimit"
	"tokenpulse/internal/sink"
	"tokenpulse/internal/storage"
	chstore "tokenpulse/internal/storage/clickhouse"
	"tokenpulse/internal/storage/memory"
	"tokenpulse/internal/storage/migrations"
	pgstore "tokenpulse/internal/storage/postgres"
	"tokenpulse/internal/stream"
)

func main() {
	// .env values become defaults; real environment wins.
	_ = godotenv.Load()

	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string (enables the analytics tick sink)")
	redisAddr := flag.String("redis-addr", os.Getenv("REDIS_ADDR"), "Redis address for rate counters and the price cache")
	wsEndpoint := flag.String("ws-endpoint", os.Getenv("STREAM_WS_ENDPOINT"), "WebSocket ticker endpoint (enables the streaming source)")
	providerList := flag.String("providers", envOr("PROVIDERS", "dexscreener,geckoterminal"), "Comma-separated providers in priority order")
	network := flag.String("network", envOr("NETWORK", "ethereum"), "Default network for providers")
	watchlist := flag.String("watchlist", os.Getenv("WATCHLIST"), "Comma-separated token addresses to seed the watchlist")
	pollInterval := flag.Duration("poll-interval", 30*time.Second, "Collection cycle interval")
	rateCeiling := flag.Int64("rate-ceiling", 100, "Per-provider request ceiling per rate window")
	rateWindow := flag.Duration("rate-window", ratelimit.DefaultWindow, "Rolling rate window length")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL")
	metricsAddr := flag.String("metrics-addr", ":9090", "Prometheus metrics HTTP address (empty to disable)")
	logLevel := flag.String("log-level", envOr("LOG_LEVEL", "info"), "Log level: debug, info, warn, error")
	logFile := flag.String("log-file", os.Getenv("LOG_FILE"), "Log file path (stdout if empty)")

	flag.Parse()

	logger := logging.New(*logLevel, *logFile)

	if *metricsAddr != "" {
		go serveMetrics(logger, *metricsAddr)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := runAgent(ctx, cancel, logger, agentConfig{
		postgresDSN:   *postgresDSN,
		clickhouseDSN: *clickhouseDSN,
		redisAddr:     *redisAddr,
		wsEndpoint:    *wsEndpoint,
		providers:     *providerList,
		network:       *network,
		watchlist:     *watchlist,
		pollInterval:  *pollInterval,
		rateCeiling:   *rateCeiling,
		rateWindow:    *rateWindow,
		useMemory:     *useMemory,
	}); err != nil {
		logger.WithError(err).Fatal("agent failed")
	}

	logger.Info("shutdown complete")
}

type agentConfig struct {
	postgresDSN   string
	clickhouseDSN string
	redisAddr     string
	wsEndpoint    string
	providers     string
	network       string
	watchlist     string
	pollInterval  time.Duration
	rateCeiling   int64
	rateWindow    time.Duration
	useMemory     bool
}

func runAgent(ctx context.Context, cancel context.CancelFunc, logger *logrus.Logger, cfg agentConfig) error {
	// Storage: postgres by default, memory for local runs.
	var (
		priceStore storage.PriceStore
		tokenStore storage.TokenStore
	)
	if cfg.useMemory {
		priceStore = memory.NewPriceStore()
		tokenStore = memory.NewTokenStore()
		logger.Info("using in-memory storage")
	} else {
		if cfg.postgresDSN == "" {
			return fmt.Errorf("postgres-dsn required (or pass -use-memory)")
		}
		pool, err := pgstore.NewPool(ctx, cfg.postgresDSN)
		if err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
		defer pool.Close()
		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			return fmt.Errorf("postgres migrations: %w", err)
		}
		priceStore = pgstore.NewPriceStore(pool)
		tokenStore = pgstore.NewTokenStore(pool)
		logger.Info("connected to postgres")
	}

	// Redis backs the rate counters and the price cache when available.
	var (
		counter    ratelimit.Counter = ratelimit.NewMemoryCounter()
		priceCache *cache.PriceCache
	)
	if cfg.redisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.redisAddr})
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis ping: %w", err)
		}
		defer rdb.Close()
		counter = ratelimit.NewRedisCounter(rdb)
		priceCache = cache.NewPriceCache(rdb, cache.DefaultPriceTTL)
		logger.WithField("addr", cfg.redisAddr).Info("connected to redis")
	}

	providers, err := buildProviders(cfg.providers, cfg.network)
	if err != nil {
		return err
	}

	window := ratelimit.NewWindow(counter, cfg.rateCeiling, cfg.rateWindow, logger)
	b := bus.New(bus.Options{Logger: logger})

	coll := collector.New(collector.Options{
		Bus:       b,
		Providers: providers,
		Store:     priceStore,
		Window:    window,
		Tokens:    tokenStore,
		Cache:     priceCache,
		Interval:  cfg.pollInterval,
		Logger:    logger,
	})

	if err := coll.SeedWatchlist(ctx); err != nil {
		logger.WithError(err).Warn("watchlist seed failed")
	}
	for _, addr := range splitList(cfg.watchlist) {
		coll.AddToken(ctx, addr)
	}
	logger.WithField("watchlist", len(coll.Watchlist())).Info("watchlist ready")

	// Optional ClickHouse analytics sink, fed from the bus.
	if cfg.clickhouseDSN != "" {
		conn, err := migrations.RunClickhouseMigrations(ctx, cfg.clickhouseDSN)
		if err != nil {
			return fmt.Errorf("clickhouse: %w", err)
		}
		defer conn.Close()
		tickSink := sink.NewTickSink(chstore.NewPriceStore(conn), logger)
		tickSink.Attach(b)
		logger.Info("clickhouse tick sink attached")
	}

	// Optional push-based price source sharing the bus.
	var wsStream *stream.Stream
	if cfg.wsEndpoint != "" {
		wsStream = stream.New(cfg.wsEndpoint, "stream", b, stream.DefaultConfig(), logger)
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		b.Run(ctx)
	}()
	wg.Add(1)
	go func() {
		defer wg.Done()
		coll.Run(ctx)
	}()
	if wsStream != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			wsStream.Run(ctx)
		}()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.WithField("signal", sig.String()).Info("shutting down")

	// Producers stop before the bus so nothing publishes into a dead loop.
	coll.Stop()
	if wsStream != nil {
		wsStream.Stop()
	}
	b.Stop()
	cancel()
	wg.Wait()

	return nil
}

// buildProviders resolves the configured priority list.
func buildProviders(list, network string) ([]provider.Provider, error) {
	var providers []provider.Provider
	for _, name := range splitList(list) {
		switch strings.ToLower(name) {
		case "dexscreener":
			providers = append(providers, provider.NewDexScreener("", nil))
		case "geckoterminal":
			providers = append(providers, provider.NewGeckoTerminal("", network, nil))
		default:
			return nil, fmt.Errorf("unknown provider %q", name)
		}
	}
	if len(providers) == 0 {
		return nil, fmt.Errorf("no providers configured")
	}
	return providers, nil
}

func serveMetrics(logger *logrus.Logger, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", observability.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	logger.WithField("addr", addr).Info("metrics server started")
	if err := http.ListenAndServe(addr, mux); err != nil && err != http.ErrServerClosed {
		logger.WithError(err).Error("metrics server failed")
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
