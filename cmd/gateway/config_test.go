package main

import (
	"testing"
	"time"

	"memoright-gateway/middleware/ratelimit/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadConfig_Defaults(t *testing.T) {
	t.Setenv("UPSTREAM_URL", "http://memoright:3000")

	cfg, err := readConfig()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.listenAddr)
	assert.Equal(t, "api", cfg.rateNamespace)
	assert.Equal(t, 100, cfg.rateMax)
	assert.Equal(t, time.Minute, cfg.rateWindow)
	assert.Equal(t, 5, cfg.loginRateMax)
	assert.Equal(t, 300*time.Second, cfg.loginRateWindow)
	assert.Equal(t, domain.FailOpen, cfg.ratePolicy)
	assert.Equal(t, "cache:", cfg.cachePrefix)
	assert.Equal(t, time.Hour, cfg.cacheTTL)
	assert.False(t, cfg.cacheEnabled)
	assert.Equal(t, []string{"Authorization", "Cookie"}, cfg.cacheScopeHeaders)
}

func TestReadConfig_Overrides(t *testing.T) {
	t.Setenv("UPSTREAM_URL", "http://memoright:3000")
	t.Setenv("RATE_WINDOW", "5m")
	t.Setenv("LOGIN_RATE_WINDOW", "600")
	t.Setenv("RATE_POLICY", "closed")
	t.Setenv("CACHE_ENABLED", "true")
	t.Setenv("CACHE_PATHS", "/api/dashboard, ,/api/games")
	t.Setenv("CACHE_SCOPE_HEADERS", "Cookie")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := readConfig()
	require.NoError(t, err)

	assert.Equal(t, 5*time.Minute, cfg.rateWindow)
	assert.Equal(t, 600*time.Second, cfg.loginRateWindow)
	assert.Equal(t, domain.FailClosed, cfg.ratePolicy)
	assert.Equal(t, []string{"/api/dashboard", "/api/games"}, cfg.cachePaths)
	assert.Equal(t, []string{"Cookie"}, cfg.cacheScopeHeaders)
	assert.Equal(t, "DEBUG", cfg.logLevel.String())
}

func TestReadConfig_Validation(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "missing upstream", env: map[string]string{}},
		{name: "bad policy", env: map[string]string{"UPSTREAM_URL": "http://x", "RATE_POLICY": "maybe"}},
		{name: "zero max", env: map[string]string{"UPSTREAM_URL": "http://x", "RATE_MAX_REQUESTS": "0"}},
		{name: "cache without paths", env: map[string]string{"UPSTREAM_URL": "http://x", "CACHE_ENABLED": "true"}},
		{name: "negative concurrency", env: map[string]string{"UPSTREAM_URL": "http://x", "CONCURRENCY_MAX": "-1"}},
		{name: "malformed max", env: map[string]string{"UPSTREAM_URL": "http://x", "RATE_MAX_REQUESTS": "abc"}},
		{name: "malformed window", env: map[string]string{"UPSTREAM_URL": "http://x", "RATE_WINDOW": "soon"}},
		{name: "malformed login max", env: map[string]string{"UPSTREAM_URL": "http://x", "LOGIN_RATE_MAX_REQUESTS": "five"}},
		{name: "malformed strict flag", env: map[string]string{"UPSTREAM_URL": "http://x", "RATE_STRICT": "sometimes"}},
		{name: "malformed store timeout", env: map[string]string{"UPSTREAM_URL": "http://x", "STORE_TIMEOUT": "250"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("UPSTREAM_URL", "")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := readConfig()
			assert.Error(t, err)
		})
	}
}

func TestReadConfig_MalformedValueNamesTheVariable(t *testing.T) {
	t.Setenv("UPSTREAM_URL", "http://memoright:3000")
	t.Setenv("RATE_MAX_REQUESTS", "abc")

	_, err := readConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `RATE_MAX_REQUESTS="abc"`)
}
