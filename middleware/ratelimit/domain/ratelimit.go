package domain

// Camada de domínio do rate limit.
//
// Regras e contratos (interfaces/tipos) sem dependência de net/http nem de Redis.

import (
	"context"
	"errors"
	"strings"
	"time"
)

type Key string

// ErrInvalidConfig indica configuração inválida de limiter (max/janela <= 0).
var ErrInvalidConfig = errors.New("ratelimit: invalid config")

// WindowKey monta a chave da janela deslizante: "rate-limit:{namespace}:{identifier}".
func WindowKey(namespace, identifier string) string {
	return "rate-limit:" + namespace + ":" + identifier
}

// Limiter representa algo que pode decidir se uma ação é permitida agora.
//
// Usado pelo fallback local (token bucket via golang.org/x/time/rate).
type Limiter interface {
	Allow() bool
}

// LimiterStore obtém um limiter por chave (ex: IP, API key, usuário).
type LimiterStore interface {
	Get(Key) Limiter
}

// WindowStore guarda, por chave, o conjunto ordenado de requisições
// (score = timestamp) que forma a janela deslizante.
//
// Cada método é uma ida ao store. Prune, Count e Add são chamadas separadas,
// então duas requisições concorrentes para a mesma chave podem observar a
// mesma contagem antes de qualquer inserção.
type WindowStore interface {
	// Prune remove entradas com timestamp <= before.
	Prune(ctx context.Context, key string, before time.Time) error
	Count(ctx context.Context, key string) (int, error)
	// Add insere a entrada e renova a expiração da chave para ttl.
	Add(ctx context.Context, key string, at time.Time, member string, ttl time.Duration) error
	// Oldest retorna o timestamp mais antigo na janela (ok=false se vazia).
	Oldest(ctx context.Context, key string) (time.Time, bool, error)
	Delete(ctx context.Context, key string) error
}

// AtomicWindowStore executa prune+count+add numa única operação atômica.
// Retorna (limited, count) onde count é a contagem após a operação.
type AtomicWindowStore interface {
	WindowStore
	Hit(ctx context.Context, key string, now time.Time, windowStart time.Time, max int, member string, ttl time.Duration) (limited bool, count int, err error)
}

// FailurePolicy define o que fazer quando o store não responde.
type FailurePolicy int

const (
	// FailOpen deixa passar (disponibilidade acima de enforcement).
	FailOpen FailurePolicy = iota
	// FailClosed bloqueia.
	FailClosed
	// FailLocal decide com um token bucket em memória do processo.
	FailLocal
)

func (p FailurePolicy) String() string {
	switch p {
	case FailClosed:
		return "closed"
	case FailLocal:
		return "local"
	default:
		return "open"
	}
}

// ParseFailurePolicy aceita "open", "closed" ou "local".
func ParseFailurePolicy(s string) (FailurePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "open":
		return FailOpen, nil
	case "closed":
		return FailClosed, nil
	case "local":
		return FailLocal, nil
	}
	return FailOpen, ErrInvalidConfig
}

type Decision struct {
	Allowed bool
	// Limit é o máximo de requisições na janela.
	Limit int
	// Remaining é a cota restante após esta decisão.
	Remaining int
	// RetryAfter é o valor a ser retornado em Retry-After quando bloquear.
	// Se 0, não há recomendação.
	RetryAfter time.Duration
}
