package main

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"memoright-gateway/middleware/ratelimit/domain"

	"github.com/pkg/errors"
)

type config struct {
	listenAddr  string
	upstreamURL string
	logLevel    slog.Level

	redisAddr     string
	redisPassword string
	redisDB       int
	storeTimeout  time.Duration

	rateEnabled     bool
	rateNamespace   string
	rateMax         int
	rateWindow      time.Duration
	ratePolicy      domain.FailurePolicy
	rateStrict      bool
	rateKeyHeader   string
	trustXFF        bool
	addHeaders      bool
	loginRatePath   string
	loginRateMax    int
	loginRateWindow time.Duration

	cacheEnabled      bool
	cachePrefix       string
	cacheTTL          time.Duration
	cachePaths        []string
	cacheScopeHeaders []string
	cacheSingleFlight bool

	concurrencyMax     int
	concurrencyTimeout time.Duration

	rateStatsEnabled   bool
	rateStatsPrefix    string
	rateStatsTTL       time.Duration
	rateStatsBucket    string
	rateStatsTrackKeys bool

	adminToken string
}

func readConfig() (config, error) {
	cfg := config{}
	env := &envReader{}
	cfg.listenAddr = getenvDefault("LISTEN_ADDR", ":8080")
	cfg.upstreamURL = os.Getenv("UPSTREAM_URL")
	if err := cfg.logLevel.UnmarshalText([]byte(getenvDefault("LOG_LEVEL", "info"))); err != nil {
		return config{}, errors.Wrap(err, "LOG_LEVEL")
	}

	cfg.redisAddr = getenvDefault("REDIS_ADDR", "localhost:6379")
	cfg.redisPassword = os.Getenv("REDIS_PASSWORD")
	cfg.redisDB = env.int("REDIS_DB", 0)
	cfg.storeTimeout = env.duration("STORE_TIMEOUT", 250*time.Millisecond)

	cfg.rateEnabled = env.bool("RATE_ENABLED", true)
	cfg.rateNamespace = getenvDefault("RATE_NAMESPACE", "api")
	cfg.rateMax = env.int("RATE_MAX_REQUESTS", 100)
	cfg.rateWindow = env.seconds("RATE_WINDOW", 60*time.Second)
	policy, err := domain.ParseFailurePolicy(os.Getenv("RATE_POLICY"))
	if err != nil {
		return config{}, errors.Wrap(err, "RATE_POLICY must be open, closed or local")
	}
	cfg.ratePolicy = policy
	cfg.rateStrict = env.bool("RATE_STRICT", false)
	cfg.rateKeyHeader = os.Getenv("RATE_KEY_HEADER")
	cfg.trustXFF = env.bool("TRUST_XFF", false)
	cfg.addHeaders = env.bool("ADD_RATELIMIT_HEADERS", false)
	cfg.loginRatePath = getenvDefault("LOGIN_RATE_PATH", "/api/auth/login")
	cfg.loginRateMax = env.int("LOGIN_RATE_MAX_REQUESTS", 5)
	cfg.loginRateWindow = env.seconds("LOGIN_RATE_WINDOW", 300*time.Second)

	cfg.cacheEnabled = env.bool("CACHE_ENABLED", false)
	cfg.cachePrefix = getenvDefault("CACHE_PREFIX", "cache:")
	cfg.cacheTTL = env.seconds("CACHE_TTL", time.Hour)
	cfg.cachePaths = getenvList("CACHE_PATHS")
	cfg.cacheScopeHeaders = getenvList("CACHE_SCOPE_HEADERS")
	if len(cfg.cacheScopeHeaders) == 0 {
		cfg.cacheScopeHeaders = []string{"Authorization", "Cookie"}
	}
	cfg.cacheSingleFlight = env.bool("CACHE_SINGLEFLIGHT", false)

	cfg.concurrencyMax = env.int("CONCURRENCY_MAX", 100)
	cfg.concurrencyTimeout = env.duration("CONCURRENCY_TIMEOUT", 0)

	cfg.rateStatsEnabled = env.bool("RATE_STATS_ENABLED", false)
	cfg.rateStatsPrefix = getenvDefault("RATE_STATS_PREFIX", "ratelimit:stats")
	cfg.rateStatsTTL = env.duration("RATE_STATS_TTL", 24*time.Hour)
	cfg.rateStatsBucket = getenvDefault("RATE_STATS_BUCKET", "minute")
	cfg.rateStatsTrackKeys = env.bool("RATE_STATS_TRACK_KEYS", false)

	cfg.adminToken = os.Getenv("ADMIN_TOKEN")

	if env.err != nil {
		return config{}, env.err
	}
	if cfg.upstreamURL == "" {
		return config{}, errors.New("UPSTREAM_URL is required")
	}
	if strings.TrimSpace(cfg.redisAddr) == "" {
		return config{}, errors.New("REDIS_ADDR is required")
	}
	if cfg.rateMax <= 0 || cfg.loginRateMax <= 0 {
		return config{}, errors.New("RATE_MAX_REQUESTS and LOGIN_RATE_MAX_REQUESTS must be > 0")
	}
	if cfg.rateWindow <= 0 || cfg.loginRateWindow <= 0 {
		return config{}, errors.New("RATE_WINDOW and LOGIN_RATE_WINDOW must be > 0")
	}
	if cfg.cacheEnabled && len(cfg.cachePaths) == 0 {
		return config{}, errors.New("CACHE_PATHS is required when CACHE_ENABLED=true")
	}
	if cfg.concurrencyMax < 0 {
		return config{}, errors.New("CONCURRENCY_MAX must be >= 0")
	}
	return cfg, nil
}

func getenvDefault(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

// envReader lê variáveis tipadas. Vazio vale o padrão; valor malformado
// fica registrado em err (o primeiro) em vez de virar o padrão em silêncio.
type envReader struct {
	err error
}

func (e *envReader) fail(k, v string, err error) {
	if e.err == nil {
		e.err = errors.Wrapf(err, "%s=%q", k, v)
	}
}

func (e *envReader) int(k string, def int) int {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		e.fail(k, v, err)
		return def
	}
	return i
}

func (e *envReader) bool(k string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.fail(k, v, err)
		return def
	}
	return b
}

func (e *envReader) duration(k string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.fail(k, v, err)
		return def
	}
	return d
}

// seconds aceita "300" (segundos) ou duração Go ("5m").
func (e *envReader) seconds(k string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second
	}
	return e.duration(k, def)
}

// getenvList separa por vírgula, ignorando itens vazios.
func getenvList(k string) []string {
	var out []string
	for _, p := range strings.Split(os.Getenv(k), ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
