package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/facetsearch/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/facetsearch/internal/indexer/consumer"
	"github.com/Adithya-Monish-Kumar-K/facetsearch/internal/indexer/store"
	"github.com/Adithya-Monish-Kumar-K/facetsearch/internal/ingestion"
	ingesthandler "github.com/Adithya-Monish-Kumar-K/facetsearch/internal/ingestion/handler"
	"github.com/Adithya-Monish-Kumar-K/facetsearch/internal/ingestion/publisher"
	"github.com/Adithya-Monish-Kumar-K/facetsearch/internal/schema"
	"github.com/Adithya-Monish-Kumar-K/facetsearch/internal/searcher/cache"
	searchhandler "github.com/Adithya-Monish-Kumar-K/facetsearch/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/facetsearch/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/facetsearch/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/facetsearch/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/facetsearch/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/facetsearch/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/facetsearch/pkg/middleware"
	pkgredis "github.com/Adithya-Monish-Kumar-K/facetsearch/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/facetsearch/pkg/resilience"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, cfg); err != nil {
		slog.Error("searchd failed", "error", err)
		os.Exit(1)
	}
	slog.Info("searchd stopped")
}

func run(ctx context.Context, cfg *config.Config) (err error) {
	var closers []func() error
	defer func() {
		var result *multierror.Error
		for i := len(closers) - 1; i >= 0; i-- {
			if cerr := closers[i](); cerr != nil {
				result = multierror.Append(result, cerr)
			}
		}
		if cerr := result.ErrorOrNil(); cerr != nil {
			slog.Error("shutdown cleanup failed", "error", cerr)
			if err == nil {
				err = cerr
			}
		}
	}()

	s, err := schema.Load(cfg.Schema.Path)
	if err != nil {
		return err
	}
	m := metrics.New()

	st, err := store.Open(ctx, cfg)
	if err != nil {
		return fmt.Errorf("opening %s store: %w", cfg.Indexer.Store, err)
	}
	ix, err := indexer.Open(ctx, s, st,
		indexer.WithMetrics(m),
		indexer.WithLogger(slog.Default().With("component", "indexer", "store", st.Name())),
	)
	if err != nil {
		st.Close()
		return err
	}
	closers = append(closers, ix.Close)
	slog.Info("index ready",
		"schema", s.String(),
		"store", st.Name(),
		"generation", ix.Generation(),
		"docs", ix.Searcher().NumDocs(),
	)

	var notifier ingestion.Notifier
	if cfg.Kafka.Enabled {
		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.IndexComplete)
		closers = append(closers, producer.Close)
		notifier = publisher.New(producer, resilience.RetryConfig{MaxAttempts: 5})
	}
	pipeline, err := ingestion.New(ix, cfg.Indexer, ingestion.WithNotifier(notifier))
	if err != nil {
		return err
	}

	checker := health.NewChecker()
	checker.Register("index", health.GenerationCheck(
		ix.Generation,
		ix.CommittedGeneration,
		func() uint32 { return ix.Searcher().NumDocs() },
	))

	var queryCache *cache.QueryCache
	if cfg.Redis.Enabled {
		redisClient, err := pkgredis.NewClient(ctx, cfg.Redis)
		if err != nil {
			slog.Warn("redis unavailable, search caching disabled", "error", err)
		} else {
			closers = append(closers, redisClient.Close)
			queryCache = cache.New(redisClient, cfg.Redis.CacheTTL, m)
			checker.Register("redis", health.PingCheck(redisClient.Ping, false))
			slog.Info("search cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
		}
	}

	mux := http.NewServeMux()
	searchhandler.New(ix, queryCache, m, searchhandler.Options{
		DefaultLimit: cfg.Search.DefaultLimit,
		MaxResults:   cfg.Search.MaxResults,
		Timeout:      cfg.Search.Timeout,
	}).Register(mux)
	ingesthandler.New(pipeline, s).Register(mux)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())
	mux.Handle("GET /metrics", m.Handler())

	chain := []func(http.Handler) http.Handler{middleware.RequestID, middleware.Metrics(m)}
	if len(cfg.Server.CORSOrigins) > 0 {
		chain = append(chain, middleware.CORS(cfg.Server.CORSOrigins))
	}
	var limiter *middleware.Limiter
	if cfg.Server.RateLimit > 0 {
		limiter = middleware.NewLimiter(cfg.Server.RateLimit, time.Second, nil)
		chain = append(chain, middleware.RateLimit(limiter))
	}
	chain = append(chain, middleware.Timeout(cfg.Server.WriteTimeout))

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      middleware.Chain(mux, chain...),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return pipeline.Run(gctx) })
	if limiter != nil {
		g.Go(func() error { return limiter.Run(gctx) })
	}
	if cfg.Kafka.Enabled {
		ic := consumer.New(kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.DocumentIngest, consumer.HandleMessage(pipeline, s)))
		closers = append(closers, ic.Close)
		g.Go(func() error { return ic.Start(gctx) })
		slog.Info("consuming documents from kafka",
			"topic", cfg.Kafka.Topics.DocumentIngest,
			"group", cfg.Kafka.ConsumerGroup,
		)
	}
	if cfg.Metrics.Enabled && cfg.Metrics.Port != cfg.Server.Port {
		shutdown := metrics.StartServer(cfg.Metrics.Port, m)
		closers = append(closers, func() error { return shutdown(context.Background()) })
	}
	g.Go(func() error {
		slog.Info("searchd listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
