package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	cacheapp "memoright-gateway/middleware/cache/application"
	cachedomain "memoright-gateway/middleware/cache/domain"
	cacheinfra "memoright-gateway/middleware/cache/infra"
	"memoright-gateway/middleware/ratelimit"
	"memoright-gateway/middleware/ratelimit/application"
	"memoright-gateway/middleware/ratelimit/domain"
	"memoright-gateway/middleware/ratelimit/infra"

	"github.com/redis/go-redis/v9"
)

// Exemplo: usando os serviços direto nos handlers (sem proxy), como as rotas
// de API do Memoright fazem. Sem REDIS_ADDR tudo roda em memória.
func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	var (
		windows domain.WindowStore
		kv      cachedomain.Store
	)
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: addr})
		defer func() { _ = rdb.Close() }()
		windows = infra.NewRedisWindowStore(rdb)
		kv = cacheinfra.NewRedisStore(rdb)
	} else {
		windows = infra.NewMemoryWindowStore()
		kv = cacheinfra.NewMemoryStore()
	}

	login, err := application.NewLimiter(windows, application.Config{
		Namespace:   "login",
		MaxRequests: 5,
		Window:      300 * time.Second,
		Logger:      logger,
	})
	if err != nil {
		logger.Error("limiter config", "error", err)
		os.Exit(1)
	}
	assessments := cacheapp.NewService(kv, cacheapp.Config{Prefix: "cache:", DefaultTTL: 10 * time.Minute, Logger: logger})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	mux := http.NewServeMux()
	mux.Handle("POST /api/auth/login", loginHandler(login, ratelimit.DefaultKeyFunc("", false)))
	mux.Handle("GET /api/assessments/{patientID}", assessmentHandler(assessments))

	h := ratelimit.ConcurrencyMiddleware(ratelimit.ConcurrencyOptions{Max: 50})(mux)

	addr := ":8081"
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		addr = v
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       90 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("example server listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server error", "error", err)
	}
}

type loginLimiter interface {
	IsRateLimited(ctx context.Context, identifier string) bool
	GetRemainingRequests(ctx context.Context, identifier string) int
}

func loginHandler(lim loginLimiter, keyFn ratelimit.KeyFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := keyFn(r)
		if lim.IsRateLimited(r.Context(), ip) {
			writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "too many login attempts"})
			return
		}
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(lim.GetRemainingRequests(r.Context(), ip)))
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
}

type assessmentSummary struct {
	PatientID  string    `json:"patient_id"`
	MMSE       int       `json:"mmse"`
	ComputedAt time.Time `json:"computed_at"`
}

func assessmentHandler(c *cacheapp.Service) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("patientID")
		var out assessmentSummary
		err := c.GetOrSet(r.Context(), "assessment:"+id, &out, func(ctx context.Context) (any, error) {
			// consulta lenta simulada
			select {
			case <-time.After(200 * time.Millisecond):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			return assessmentSummary{PatientID: id, MMSE: 27, ComputedAt: time.Now().UTC()}, nil
		}, 0)
		if err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "assessment unavailable"})
			return
		}
		writeJSON(w, http.StatusOK, out)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
