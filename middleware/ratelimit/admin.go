package ratelimit

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"
)

// AdminLimiter é o subconjunto do limiter exposto nos endpoints administrativos.
type AdminLimiter interface {
	Namespace() string
	MaxRequests() int
	GetRemainingRequests(ctx context.Context, identifier string) int
	ResetRateLimit(ctx context.Context, identifier string) error
}

type quotaResponse struct {
	Namespace  string `json:"namespace"`
	Identifier string `json:"identifier"`
	Limit      int    `json:"limit"`
	Remaining  int    `json:"remaining"`
}

// RegisterAdmin registra em mux:
//
//	GET    {prefix}/ratelimit/{namespace}/{id}  cota restante
//	DELETE {prefix}/ratelimit/{namespace}/{id}  zera a janela
func RegisterAdmin(mux *http.ServeMux, prefix string, limiters ...AdminLimiter) {
	byNS := make(map[string]AdminLimiter, len(limiters))
	for _, l := range limiters {
		byNS[l.Namespace()] = l
	}
	pattern := strings.TrimRight(prefix, "/") + "/ratelimit/{namespace}/{id}"

	lookup := func(w http.ResponseWriter, r *http.Request) (AdminLimiter, string, bool) {
		l, ok := byNS[r.PathValue("namespace")]
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown namespace"})
			return nil, "", false
		}
		return l, r.PathValue("id"), true
	}

	mux.HandleFunc("GET "+pattern, func(w http.ResponseWriter, r *http.Request) {
		l, id, ok := lookup(w, r)
		if !ok {
			return
		}
		writeJSON(w, http.StatusOK, quotaResponse{
			Namespace:  l.Namespace(),
			Identifier: id,
			Limit:      l.MaxRequests(),
			Remaining:  l.GetRemainingRequests(r.Context(), id),
		})
	})

	mux.HandleFunc("DELETE "+pattern, func(w http.ResponseWriter, r *http.Request) {
		l, id, ok := lookup(w, r)
		if !ok {
			return
		}
		if err := l.ResetRateLimit(r.Context(), id); err != nil {
			writeJSON(w, http.StatusBadGateway, map[string]string{"error": "reset failed"})
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
}

// RequireToken exige "Authorization: Bearer <token>". Token vazio bloqueia tudo.
func RequireToken(token string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if token == "" || !ok || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
				writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
