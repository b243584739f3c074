package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"marketgateway/config"
	"marketgateway/internal/auth"
	"marketgateway/internal/httpapi"
	"marketgateway/internal/market"
	"marketgateway/internal/scheduler"
	"marketgateway/internal/stream"
	"marketgateway/pkg/cache"
	"marketgateway/pkg/provider/alphavantage"
	"marketgateway/pkg/provider/yahoo"
	"marketgateway/pkg/storage/postgres"

	"go.uber.org/zap"
)

const (
	rateLimitPrefix = "ratelimit:auth:"
	shutdownTimeout = 30 * time.Second
)

// Gateway owns every long-lived component of the service.
type Gateway struct {
	cfg       *config.Config
	logger    *zap.Logger
	db        *postgres.PostgresClient
	cache     cache.Store
	market    *market.Service
	stream    *stream.Handler
	scheduler *scheduler.Scheduler
	server    *http.Server
}

// New connects to the database and cache and wires the services together.
// Nothing is served until Run is called.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Gateway, error) {
	g := &Gateway{cfg: cfg, logger: logger}

	// Initialize PostgreSQL client
	db, err := postgres.Initialize(ctx, cfg.Postgres, cfg.Server.Environment)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to DB: %w", err)
	}
	g.db = db

	// Shared cache: redis when enabled, otherwise in-process
	var sweeper scheduler.Sweeper
	if cfg.Redis.Enabled {
		rs, err := cache.NewRedisStore(ctx, cfg.Redis)
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		g.cache = rs
	} else {
		logger.Warn("redis disabled, using in-process cache; sessions and rate limits are per instance")
		mem := cache.NewMemoryStore()
		g.cache = mem
		sweeper = mem
	}

	// Upstream providers
	yahooClient := yahoo.NewClient(cfg.Provider.Yahoo.ChartURL, cfg.Provider.Yahoo.SummaryURL, cfg.Provider.Yahoo.Timeout)
	treasury := alphavantage.NewClient(cfg.Provider.AlphaVantage.BaseURL, cfg.Provider.AlphaVantage.APIKey, cfg.Provider.AlphaVantage.Timeout)
	if !treasury.Enabled() {
		logger.Info("alphavantage api key not set, treasury yields disabled")
	}

	g.market = market.NewService(market.Options{
		Cache:          g.cache,
		Provider:       yahooClient,
		Treasury:       treasury,
		Store:          db,
		TTL:            cfg.Cache,
		Persist:        cfg.Persist,
		MaxConcurrency: cfg.Provider.MaxConcurrency,
		Logger:         logger,
	})

	authSvc, err := auth.NewService(db, g.cache, cfg.Auth, logger)
	if err != nil {
		g.closeStores()
		return nil, fmt.Errorf("failed to create auth service: %w", err)
	}
	limiter := auth.NewRateLimiter(g.cache, rateLimitPrefix, cfg.Auth.RateLimitWindow, cfg.Auth.RateLimitMax, logger)

	clock := market.NewClock()
	g.stream = stream.NewHandler(g.market, cfg.Stream, cfg.Server.CORSOrigins, logger)

	router, err := httpapi.NewRouter(httpapi.Deps{
		Market:      g.market,
		Auth:        authSvc,
		Clock:       clock,
		Limiter:     limiter,
		Stream:      g.stream,
		Checks:      map[string]httpapi.Pinger{"postgres": db, "cache": g.cache},
		Production:  cfg.Server.IsProduction(),
		CORSOrigins: cfg.Server.CORSOrigins,
		Proxies:     cfg.Server.TrustedProxies,
		Logger:      logger,
	})
	if err != nil {
		g.closeStores()
		return nil, fmt.Errorf("failed to build router: %w", err)
	}

	if cfg.Scheduler.Enabled {
		g.scheduler = scheduler.New(cfg.Scheduler, scheduler.Deps{
			Warmer:  g.market,
			Clock:   clock,
			Purger:  db,
			Sweeper: sweeper,
			Logger:  logger,
		})
	}

	g.server = &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
	}
	return g, nil
}

// Run serves HTTP until ctx is cancelled, then shuts everything down.
func (g *Gateway) Run(ctx context.Context) error {
	g.market.Start()
	if g.scheduler != nil {
		if err := g.scheduler.Start(); err != nil {
			g.shutdown()
			return err
		}
	}

	errCh := make(chan error, 1)
	go func() {
		g.logger.Info("http server listening", zap.String("addr", g.server.Addr),
			zap.String("environment", g.cfg.Server.Environment))
		if err := g.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		g.logger.Info("shutdown signal received")
	case err, ok := <-errCh:
		if ok && err != nil {
			g.shutdown()
			return fmt.Errorf("http server failed: %w", err)
		}
	}

	g.shutdown()
	return nil
}

// shutdown stops HTTP intake before draining background work.
func (g *Gateway) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := g.server.Shutdown(ctx); err != nil {
		g.logger.Warn("http server shutdown", zap.Error(err))
	}
	g.stream.Close()
	if g.scheduler != nil {
		g.scheduler.Stop()
	}
	if err := g.market.Close(ctx); err != nil {
		g.logger.Warn("persistence queue not drained", zap.Error(err))
	}
	g.closeStores()
	g.logger.Info("shutdown complete")
}

func (g *Gateway) closeStores() {
	if g.cache != nil {
		if err := g.cache.Close(); err != nil {
			g.logger.Warn("failed to close cache", zap.Error(err))
		}
	}
	if g.db != nil {
		if err := g.db.Close(); err != nil {
			g.logger.Warn("failed to close database", zap.Error(err))
		}
	}
}
