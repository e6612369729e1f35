// Command querysvc serves the advanced search query compiler over HTTP.
//
// It parses and validates monitoring queries, compiles them into bool
// queries for the search cluster, caches compiled responses in Redis,
// publishes query analytics to Kafka and stores saved searches and
// analytics snapshots in PostgreSQL. Parse and Validate are also served to
// other services over the JSON-over-TCP RPC port. With auth enabled,
// saved-search writes and cache invalidation require an API key. Redis and
// Kafka are optional; the service keeps answering without them.
//
// Usage:
//
//	go run ./cmd/querysvc [-config configs/development.yaml]
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Intel-Monitoring-Platform/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/Intel-Monitoring-Platform/internal/analytics/snapshot"
	"github.com/Adithya-Monish-Kumar-K/Intel-Monitoring-Platform/internal/auth/apikey"
	"github.com/Adithya-Monish-Kumar-K/Intel-Monitoring-Platform/internal/savedsearch"
	"github.com/Adithya-Monish-Kumar-K/Intel-Monitoring-Platform/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/Intel-Monitoring-Platform/internal/searcher/compiler"
	"github.com/Adithya-Monish-Kumar-K/Intel-Monitoring-Platform/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/Intel-Monitoring-Platform/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Intel-Monitoring-Platform/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/Intel-Monitoring-Platform/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/Intel-Monitoring-Platform/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Intel-Monitoring-Platform/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Intel-Monitoring-Platform/pkg/postgres"
	"github.com/Adithya-Monish-Kumar-K/Intel-Monitoring-Platform/pkg/ratelimit"
	pkgredis "github.com/Adithya-Monish-Kumar-K/Intel-Monitoring-Platform/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/Intel-Monitoring-Platform/pkg/resilience"
	"github.com/Adithya-Monish-Kumar-K/Intel-Monitoring-Platform/pkg/rpc"
)

const (
	collectorBuffer   = 10000
	collectorBatch    = 100
	collectorInterval = 2 * time.Second
	snapshotInterval  = 5 * time.Minute
)

func main() {
	os.Exit(run())
}

// run wires and serves the service and returns the exit code. Deferred
// cleanup runs before the process exits.
func run() int {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		return 1
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting query service",
		"port", cfg.Server.Port,
		"default_fields", cfg.Search.DefaultFields,
		"max_query_length", cfg.Search.MaxQueryLength,
		"max_nesting_depth", cfg.Search.MaxNestingDepth,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	checker := health.NewChecker()
	if cfg.Metrics.Enabled {
		shutdownMetrics := metrics.StartServer(cfg.Metrics.Port, checker.ReadyHandler())
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = shutdownMetrics(shutdownCtx)
		}()
	}

	opts := []compiler.Option{compiler.WithMetrics(m)}

	var queryCache *cache.QueryCache
	if cfg.Search.CacheEnabled {
		redisClient, err := pkgredis.NewClient(ctx, cfg.Redis)
		if err != nil {
			slog.Warn("redis unavailable, query caching disabled", "error", err)
		} else {
			defer redisClient.Close()
			breaker := resilience.NewCircuitBreaker("redis-cache", resilience.CircuitBreakerConfig{
				OnStateChange: func(name string, to resilience.State) {
					m.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
				},
			})
			queryCache = cache.New(redisClient, cfg.Redis.CacheTTL, breaker, m)
			opts = append(opts, compiler.WithCache(queryCache))
			checker.Register("redis", health.Optional(redisClient.Ping))
			slog.Info("query cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
		}
	}

	aggregator := analytics.NewAggregator()
	if cfg.Kafka.Enabled {
		topic := cfg.Kafka.Topics.QueryEvents
		producer := kafka.NewProducer(cfg.Kafka, topic)
		defer producer.Close()

		collector := analytics.NewCollector(producer, collectorBuffer, collectorBatch, collectorInterval, m)
		collector.Start(ctx)
		defer collector.Close()
		opts = append(opts, compiler.WithTracker(collector))

		consumer := kafka.NewConsumer(cfg.Kafka, topic, analytics.HandleEvent(aggregator))
		go func() {
			if err := consumer.Start(ctx); err != nil {
				slog.Error("analytics consumer error", "error", err)
			}
		}()
		checker.Register("kafka", func(context.Context) health.ComponentHealth {
			if dropped := collector.Dropped(); dropped > 0 {
				return health.ComponentHealth{Status: health.StatusDegraded, Message: fmt.Sprintf("%d events dropped", dropped)}
			}
			return health.ComponentHealth{Status: health.StatusUp, Message: "publishing to " + topic}
		})
		slog.Info("query analytics publishing to kafka", "topic", topic, "brokers", cfg.Kafka.Brokers)
	} else {
		opts = append(opts, compiler.WithTracker(aggregator))
		slog.Info("kafka disabled, query analytics aggregated in-process")
	}

	svc := compiler.New(cfg.Search, opts...)
	rt := routes{
		analyzer:     svc,
		cache:        cacheAdmin(queryCache),
		stats:        aggregator,
		checker:      checker,
		metrics:      m,
		logSpans:     cfg.Tracing.Enabled,
		writeTimeout: cfg.Server.WriteTimeout,
	}

	if cfg.Postgres.Enabled {
		db, err := postgres.New(ctx, cfg.Postgres)
		if err != nil {
			slog.Error("failed to connect to postgres", "error", err)
			return 1
		}
		defer db.Close()

		searches := savedsearch.NewStore(db.DB)
		snapshots := snapshot.NewStore(db.DB)
		schemas := []func(context.Context) error{searches.EnsureSchema, snapshots.EnsureSchema}
		var keys *apikey.Validator
		if cfg.Auth.Enabled {
			keys = apikey.NewValidator(db.DB)
			schemas = append(schemas, keys.EnsureSchema)
		}
		for _, ensure := range schemas {
			if err := ensure(ctx); err != nil {
				slog.Error("failed to prepare schema", "error", err)
				return 1
			}
		}
		waitSnapshots := snapshots.StartPeriodicSave(ctx, aggregator, snapshotInterval)
		defer func() {
			stop()
			waitSnapshots()
		}()

		rt.savedSearches = savedsearch.NewService(searches, svc, m)
		rt.history = snapshots
		if keys != nil {
			rt.keys = keys
			slog.Info("api key authentication enabled for write endpoints")
		}
		checker.Register("postgres", health.Required(db.Ping))
		slog.Info("saved searches enabled", "host", cfg.Postgres.Host, "database", cfg.Postgres.Database)
	} else {
		slog.Info("postgres disabled, saved searches and stats history unavailable")
	}

	if cfg.RateLimit.Enabled {
		rt.limiter = ratelimit.New(cfg.RateLimit.RequestsPerWindow, cfg.RateLimit.Window)
		defer rt.limiter.Stop()
	}

	if cfg.Server.RPCPort > 0 {
		rpcServer := rpc.NewServer(cfg.Server.WriteTimeout)
		handler.New(svc, nil).RegisterRPC(rpcServer)
		go func() {
			if err := rpcServer.Serve(fmt.Sprintf(":%d", cfg.Server.RPCPort)); err != nil {
				slog.Error("rpc server error", "error", err)
			}
		}()
		defer rpcServer.Stop()
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      rt.handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	ln, err := net.Listen("tcp", server.Addr)
	if err != nil {
		slog.Error("failed to listen", "addr", server.Addr, "error", err)
		return 1
	}

	// Deferred closes above (collector, database) run only after serve has
	// drained in-flight requests.
	slog.Info("query service listening", "addr", server.Addr)
	code := 0
	if err := serve(ctx, server, ln, cfg.Server.ShutdownTimeout); err != nil {
		slog.Error("server error", "error", err)
		code = 1
	}
	// The background loops (collector, snapshots) finish on cancellation.
	stop()

	slog.Info("query service stopped")
	return code
}
