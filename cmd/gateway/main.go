package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"memoright-gateway/middleware/cache"
	cacheapp "memoright-gateway/middleware/cache/application"
	cacheinfra "memoright-gateway/middleware/cache/infra"
	"memoright-gateway/middleware/ratelimit"
	"memoright-gateway/middleware/ratelimit/application"
	"memoright-gateway/middleware/ratelimit/domain"
	"memoright-gateway/middleware/ratelimit/infra"

	"github.com/redis/go-redis/v9"
)

func main() {
	cfg, err := readConfig()
	if err != nil {
		slog.Error("config error", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.logLevel}))
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("gateway stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg config, logger *slog.Logger) error {
	target, err := url.Parse(cfg.upstreamURL)
	if err != nil {
		return err
	}

	proxy := httputil.NewSingleHostReverseProxy(target)
	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		logger.Warn("proxy error", "path", r.URL.Path, "error", err)
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}

	// um único cliente, injetado em todos os serviços
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.redisAddr,
		Password:     cfg.redisPassword,
		DB:           cfg.redisDB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  cfg.storeTimeout,
		WriteTimeout: cfg.storeTimeout,
	})
	defer func() { _ = rdb.Close() }()

	pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	err = rdb.Ping(pingCtx).Err()
	cancel()
	if err != nil {
		// não derruba: a política de falha de cada serviço decide
		logger.Warn("redis ping failed", "addr", cfg.redisAddr, "error", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var windows domain.WindowStore = infra.NewRedisWindowStore(rdb)
	if cfg.rateStrict {
		windows = infra.NewRedisAtomicWindowStore(rdb)
	}

	apiLimiter, err := newLimiter(ctx, windows, cfg, cfg.rateNamespace, cfg.rateMax, cfg.rateWindow, logger)
	if err != nil {
		return err
	}
	loginLimiter, err := newLimiter(ctx, windows, cfg, "login", cfg.loginRateMax, cfg.loginRateWindow, logger)
	if err != nil {
		return err
	}

	var statsStore domain.StatsStore
	if cfg.rateStatsEnabled {
		statsStore = infra.NewRedisStatsStore(
			rdb,
			infra.WithStatsPrefix(cfg.rateStatsPrefix),
			infra.WithStatsTTL(cfg.rateStatsTTL),
			infra.WithStatsBucket(cfg.rateStatsBucket),
			infra.WithStatsTrackKeys(cfg.rateStatsTrackKeys),
		)
	}

	cacheSvc := cacheapp.NewService(cacheinfra.NewRedisStore(rdb), cacheapp.Config{
		Prefix:       cfg.cachePrefix,
		DefaultTTL:   cfg.cacheTTL,
		Timeout:      cfg.storeTimeout,
		SingleFlight: cfg.cacheSingleFlight,
		Logger:       logger,
	})

	h := http.Handler(proxy)
	if cfg.cacheEnabled {
		h = cache.Middleware(cache.Options{
			Cache:        cacheSvc,
			Paths:        cfg.cachePaths,
			ScopeHeaders: cfg.cacheScopeHeaders,
			TTL:          cfg.cacheTTL,
		})(h)
	}
	h = ratelimit.ConcurrencyMiddleware(ratelimit.ConcurrencyOptions{
		Max:            cfg.concurrencyMax,
		RejectStatus:   http.StatusServiceUnavailable,
		AcquireTimeout: cfg.concurrencyTimeout,
	})(h)
	if cfg.rateEnabled {
		keyOpts := func(lim ratelimit.Decider, match func(*http.Request) bool) ratelimit.Options {
			return ratelimit.Options{
				Limiter:             lim,
				Stats:               statsStore,
				Match:               match,
				KeyHeader:           cfg.rateKeyHeader,
				TrustXForwardedFor:  cfg.trustXFF,
				AddRateLimitHeaders: cfg.addHeaders,
			}
		}
		h = ratelimit.Middleware(keyOpts(apiLimiter, nil))(h)
		h = ratelimit.Middleware(keyOpts(loginLimiter, ratelimit.PathPrefix(cfg.loginRatePath)))(h)
	}

	root := http.NewServeMux()
	root.Handle("/", h)
	if cfg.adminToken != "" {
		admin := http.NewServeMux()
		ratelimit.RegisterAdmin(admin, "/_gov", apiLimiter, loginLimiter)
		cache.RegisterAdmin(admin, "/_gov", cacheSvc)
		root.Handle("/_gov/", ratelimit.RequireToken(cfg.adminToken)(admin))
	}

	srv := &http.Server{
		Addr:              cfg.listenAddr,
		Handler:           root,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       90 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("gateway listening", "addr", cfg.listenAddr, "upstream", target.String(), "redis", cfg.redisAddr)
	logger.Info("rate",
		"enabled", cfg.rateEnabled, "namespace", cfg.rateNamespace, "max", cfg.rateMax, "window", cfg.rateWindow.String(),
		"login_path", cfg.loginRatePath, "login_max", cfg.loginRateMax, "login_window", cfg.loginRateWindow.String(),
		"policy", cfg.ratePolicy.String(), "strict", cfg.rateStrict, "key_header", cfg.rateKeyHeader, "trust_xff", cfg.trustXFF)
	logger.Info("cache", "enabled", cfg.cacheEnabled, "prefix", cfg.cachePrefix, "ttl", cfg.cacheTTL.String(), "paths", cfg.cachePaths, "singleflight", cfg.cacheSingleFlight)
	logger.Info("concurrency", "max", cfg.concurrencyMax, "acquire_timeout", cfg.concurrencyTimeout.String())

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func newLimiter(ctx context.Context, windows domain.WindowStore, cfg config, ns string, max int, window time.Duration, logger *slog.Logger) (*application.Limiter, error) {
	lc := application.Config{
		Namespace:   ns,
		MaxRequests: max,
		Window:      window,
		Policy:      cfg.ratePolicy,
		Timeout:     cfg.storeTimeout,
		Logger:      logger,
	}
	if cfg.ratePolicy == domain.FailLocal {
		local := infra.NewLocalStore(max, window)
		local.StartJanitor(ctx)
		lc.Fallback = local
	}
	return application.NewLimiter(windows, lc)
}
