package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"basecamp/internal/cache"
	"basecamp/internal/config"
	"basecamp/internal/gateway"
	"basecamp/internal/http/handlers"
	applog "basecamp/internal/log"
	"basecamp/internal/metrics"
	"basecamp/internal/repos"
)

func main() {
	cfg := config.Load()

	logger, err := applog.New(cfg.ServiceName, cfg.Env)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()
	applog.Set(logger)

	if err := cfg.Validate(); err != nil {
		logger.Fatal("config_invalid", zap.Error(err))
	}

	db, err := repos.OpenDB(cfg.DBDSN)
	if err != nil {
		logger.Fatal("db_open_failed", zap.String("dsn", cfg.DBDSN), zap.Error(err))
	}
	defer db.Close()

	cartCache := newCartCache(cfg, logger)
	gw := newGateway(cfg, logger)
	m := metrics.New(prometheus.DefaultRegisterer)

	deps := handlers.NewDeps(db, cfg, gw, cartCache, m)
	app := handlers.NewApp(deps, handlers.Options{
		Env:          cfg.Env,
		CookieSecure: cfg.CookieSecure,
		AccessLog:    true,
		Gatherer:     prometheus.DefaultGatherer,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go deps.Sweeper.Run(ctx)

	go func() {
		logger.Info("http_server_start", zap.String("addr", ":"+cfg.Port), zap.String("gateway", gw.Name()))
		if err := app.Listen(":" + cfg.Port); err != nil {
			logger.Error("http_server_error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Error("http_server_shutdown_error", zap.Error(err))
	} else {
		logger.Info("http_server_stopped")
	}
}

// newCartCache connects to Redis when configured; the cart works uncached otherwise.
func newCartCache(cfg config.Config, logger *zap.Logger) cache.CartCache {
	if cfg.RedisAddr == "" {
		return cache.Nop{}
	}
	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis_unavailable", zap.String("addr", cfg.RedisAddr), zap.Error(err))
		_ = client.Close()
		return cache.Nop{}
	}
	return cache.NewRedisCache(client, cfg.CartCacheTTL)
}

func newGateway(cfg config.Config, logger *zap.Logger) gateway.Client {
	if cfg.UsesSandbox() {
		if cfg.Env == "prod" {
			logger.Warn("gateway_sandbox_in_prod")
		}
		return gateway.NewSandbox(gateway.NewSigner(cfg.GatewayKeySecret))
	}
	return gateway.WithBreaker(gateway.NewHTTPClient(cfg.GatewayBaseURL, cfg.GatewayKeyID, cfg.GatewayKeySecret, cfg.GatewayTimeout))
}
