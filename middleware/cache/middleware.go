package cache

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"strings"
	"time"

	"memoright-gateway/middleware/cache/domain"
)

// GetOrSetter é o que o middleware precisa do cache (application.Service).
type GetOrSetter interface {
	GetOrSet(ctx context.Context, key string, dst any, produce domain.Producer, ttl time.Duration) error
}

type Options struct {
	Cache GetOrSetter
	// Paths são prefixos de rota cacheáveis (ex: /api/dashboard). Vazio = nenhuma.
	Paths []string
	// ScopeHeaders separam entradas por usuário (ex: Authorization, Cookie).
	// Todos os presentes entram na chave, apenas como hash.
	ScopeHeaders []string
	// TTL das respostas; <= 0 usa o padrão do cache.
	TTL time.Duration
}

// cachedResponse é o que vai para o store.
type cachedResponse struct {
	Status int         `json:"status"`
	Header http.Header `json:"header"`
	Body   []byte      `json:"body"`
}

// notCacheable carrega uma resposta que não deve ir para o cache (status != 200).
type notCacheable struct {
	resp cachedResponse
}

func (notCacheable) Error() string { return "response not cacheable" }

// Middleware serve GETs de rotas configuradas a partir do cache (cache-aside).
// Só respostas 200 são gravadas. "Cache-Control: no-cache" ignora o cache.
func Middleware(opts Options) func(next http.Handler) http.Handler {
	if opts.Cache == nil || len(opts.Paths) == 0 {
		return func(next http.Handler) http.Handler { return next }
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !cacheable(r, opts.Paths) {
				next.ServeHTTP(w, r)
				return
			}

			// fresh é a resposta completa (com cookies) quando este request executou o upstream
			var fresh *cachedResponse
			var resp cachedResponse
			err := opts.Cache.GetOrSet(r.Context(), requestKey(r, opts.ScopeHeaders), &resp, func(ctx context.Context) (any, error) {
				rec := newRecorder()
				next.ServeHTTP(rec, r.WithContext(ctx))
				out := rec.result()
				fresh = &out
				if out.Status != http.StatusOK {
					return nil, notCacheable{resp: storable(out)}
				}
				return storable(out), nil
			}, opts.TTL)

			var nc notCacheable
			switch {
			case fresh != nil:
				w.Header().Set("X-Cache", "MISS")
				writeResponse(w, *fresh)
			case err == nil:
				w.Header().Set("X-Cache", "HIT")
				writeResponse(w, resp)
			case errors.As(err, &nc):
				// miss compartilhado (single-flight) de resposta não cacheável
				w.Header().Set("X-Cache", "MISS")
				writeResponse(w, nc.resp)
			default:
				http.Error(w, http.StatusText(http.StatusBadGateway), http.StatusBadGateway)
			}
		})
	}
}

func cacheable(r *http.Request, paths []string) bool {
	if r.Method != http.MethodGet {
		return false
	}
	if strings.Contains(strings.ToLower(r.Header.Get("Cache-Control")), "no-cache") {
		return false
	}
	for _, p := range paths {
		if strings.HasPrefix(r.URL.Path, p) {
			return true
		}
	}
	return false
}

// requestKey: "http:{method}:{path}?{query}:{escopo}". Sem nenhuma
// credencial o escopo é "anon".
func requestKey(r *http.Request, scopeHeaders []string) string {
	scope := "anon"
	h := sha256.New()
	found := false
	for _, name := range scopeHeaders {
		vs := r.Header.Values(name)
		if len(vs) == 0 {
			continue
		}
		found = true
		h.Write([]byte(http.CanonicalHeaderKey(name)))
		for _, v := range vs {
			h.Write([]byte{0})
			h.Write([]byte(v))
		}
		h.Write([]byte{'\n'})
	}
	if found {
		scope = hex.EncodeToString(h.Sum(nil))[:16]
	}
	return "http:" + r.Method + ":" + r.URL.Path + "?" + r.URL.RawQuery + ":" + scope
}

func writeResponse(w http.ResponseWriter, resp cachedResponse) {
	for k, vs := range resp.Header {
		for _, v := range vs {
			w.Header().Add(k, v)
		}
	}
	w.WriteHeader(resp.Status)
	_, _ = w.Write(resp.Body)
}

// recorder captura a resposta do upstream para poder gravá-la.
type recorder struct {
	header http.Header
	status int
	body   bytes.Buffer
}

func newRecorder() *recorder {
	return &recorder{header: make(http.Header)}
}

func (rec *recorder) Header() http.Header { return rec.header }

func (rec *recorder) WriteHeader(status int) {
	if rec.status == 0 {
		rec.status = status
	}
}

func (rec *recorder) Write(b []byte) (int, error) {
	if rec.status == 0 {
		rec.status = http.StatusOK
	}
	return rec.body.Write(b)
}

func (rec *recorder) result() cachedResponse {
	status := rec.status
	if status == 0 {
		status = http.StatusOK
	}
	return cachedResponse{Status: status, Header: rec.header, Body: rec.body.Bytes()}
}

// storable remove o que nunca pode ser reaproveitado entre requisições.
func storable(resp cachedResponse) cachedResponse {
	h := resp.Header.Clone()
	h.Del("Set-Cookie")
	h.Del("X-Cache")
	resp.Header = h
	return resp
}
