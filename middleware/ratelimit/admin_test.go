package ratelimit

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"memoright-gateway/middleware/ratelimit/application"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAdminHandler(t *testing.T, token string) (http.Handler, *application.Limiter) {
	t.Helper()
	lim := newLimiter(t, "login", 2, time.Minute)
	mux := http.NewServeMux()
	RegisterAdmin(mux, "/_gov/", lim)
	return RequireToken(token)(mux), lim
}

func adminRequest(h http.Handler, method, target, token string) *httptest.ResponseRecorder {
	r := httptest.NewRequest(method, target, nil)
	if token != "" {
		r.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w
}

func TestAdmin_GetRemaining(t *testing.T) {
	h, lim := newAdminHandler(t, "secret")
	lim.IsRateLimited(context.Background(), "203.0.113.5")

	w := adminRequest(h, http.MethodGet, "/_gov/ratelimit/login/203.0.113.5", "secret")
	require.Equal(t, http.StatusOK, w.Code)

	var body quotaResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, quotaResponse{Namespace: "login", Identifier: "203.0.113.5", Limit: 2, Remaining: 1}, body)
}

func TestAdmin_ResetClearsWindow(t *testing.T) {
	h, lim := newAdminHandler(t, "secret")
	ctx := context.Background()
	lim.IsRateLimited(ctx, "u1")
	lim.IsRateLimited(ctx, "u1")
	require.True(t, lim.IsRateLimited(ctx, "u1"))

	w := adminRequest(h, http.MethodDelete, "/_gov/ratelimit/login/u1", "secret")
	require.Equal(t, http.StatusNoContent, w.Code)
	assert.False(t, lim.IsRateLimited(ctx, "u1"))
}

func TestAdmin_UnknownNamespace(t *testing.T) {
	h, _ := newAdminHandler(t, "secret")
	w := adminRequest(h, http.MethodGet, "/_gov/ratelimit/nope/u1", "secret")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAdmin_RequiresToken(t *testing.T) {
	h, _ := newAdminHandler(t, "secret")

	assert.Equal(t, http.StatusUnauthorized, adminRequest(h, http.MethodGet, "/_gov/ratelimit/login/u1", "").Code)
	assert.Equal(t, http.StatusUnauthorized, adminRequest(h, http.MethodGet, "/_gov/ratelimit/login/u1", "wrong").Code)

	empty, _ := newAdminHandler(t, "")
	assert.Equal(t, http.StatusUnauthorized, adminRequest(empty, http.MethodGet, "/_gov/ratelimit/login/u1", "").Code)
}
