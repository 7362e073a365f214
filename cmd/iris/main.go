package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"

	"github.com/irislabs/iris/browser"
	"github.com/irislabs/iris/cache"
	"github.com/irislabs/iris/client"
	"github.com/irislabs/iris/config"
	"github.com/irislabs/iris/logger"
	"github.com/irislabs/iris/ratelimit"
	"github.com/irislabs/iris/robots"
	"github.com/irislabs/iris/sentinel"
	"github.com/irislabs/iris/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.New("info").Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	log := logger.New(cfg.LogLevel)
	log.Info("starting iris", "addr", cfg.Addr(), "testing_mode", cfg.TestingMode)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Redis backs the response cache, the per-origin limiter, the robots
	// mirror, and inbound rate limiting. The service runs degraded without it.
	var redisClient *redis.Client
	if opts, err := redis.ParseURL(cfg.RedisURL); err != nil {
		log.Warn("invalid redis URL, running without redis", "error", err)
	} else {
		redisClient = redis.NewClient(opts)
		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.Warn("redis unreachable, running degraded", "error", err)
		} else {
			log.Info("redis connected", "url", cfg.RedisURL)
		}
		defer redisClient.Close()
	}

	pool := browser.New(cfg, log)
	if err := pool.Start(ctx); err != nil {
		// Fetches fail fast until the browser comes up; /health reports it.
		log.Error("browser failed to start", "error", err)
	}
	defer pool.Close()

	var sentinelClient *sentinel.Client
	if cfg.SentinelURL != "" {
		sentinelClient, err = sentinel.New(cfg, log)
		if err != nil {
			log.Warn("sentinel client unavailable", "error", err)
		} else {
			defer sentinelClient.Close()
		}
	}

	var store cache.Store
	if cfg.CacheEnabled && redisClient != nil {
		store = cache.NewRedisStore(redisClient)
	}

	c := client.New(cfg, log,
		client.WithPool(pool),
		client.WithRateLimiter(ratelimit.New(redisClient, cfg.MinDelayBetweenRequestsMS, 3, log)),
		client.WithRobots(robots.New(cfg.UserAgent, redisClient, cfg.RespectRobotsTxt, log)),
		client.WithCache(cache.New(store, cfg.CacheTTL(), log)),
	)

	srv := server.New(cfg, log, server.Deps{
		Client:   c,
		Pool:     pool,
		Sentinel: sentinelClient,
		Redis:    redisClient,
	})

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Info("received shutdown signal", "signal", sig.String())
		cancel()
	}()

	if err := srv.Run(ctx); err != nil {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
	log.Info("shutdown complete")
}
