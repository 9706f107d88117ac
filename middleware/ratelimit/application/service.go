package application

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"memoright-gateway/middleware/ratelimit/domain"

	"github.com/google/uuid"
)

// Config descreve uma instância de limiter (um namespace).
type Config struct {
	Namespace   string
	MaxRequests int
	Window      time.Duration

	// Policy define o comportamento quando o store falha. Padrão: FailOpen.
	Policy domain.FailurePolicy
	// Fallback é usado quando Policy == FailLocal.
	Fallback domain.LimiterStore
	// Timeout por operação no store. 0 = herda o ctx do chamador.
	Timeout time.Duration

	Now    func() time.Time
	Logger *slog.Logger
}

// Limiter implementa a janela deslizante sobre um domain.WindowStore.
//
// Ele não sabe nada sobre HTTP (headers/status), apenas responde se o
// identificador estourou a cota. Não guarda estado local além da configuração.
type Limiter struct {
	store domain.WindowStore
	cfg   Config
	log   *slog.Logger
}

func NewLimiter(store domain.WindowStore, cfg Config) (*Limiter, error) {
	if store == nil || cfg.MaxRequests <= 0 || cfg.Window <= 0 {
		return nil, domain.ErrInvalidConfig
	}
	if cfg.Policy == domain.FailLocal && cfg.Fallback == nil {
		return nil, domain.ErrInvalidConfig
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Limiter{
		store: store,
		cfg:   cfg,
		log:   log.With("namespace", cfg.Namespace),
	}, nil
}

func (l *Limiter) Namespace() string     { return l.cfg.Namespace }
func (l *Limiter) MaxRequests() int      { return l.cfg.MaxRequests }
func (l *Limiter) Window() time.Duration { return l.cfg.Window }

// IsRateLimited poda a janela, conta e, se ainda houver cota, registra esta
// requisição. A requisição que encontra a janela cheia é rejeitada e NÃO é
// registrada.
func (l *Limiter) IsRateLimited(ctx context.Context, identifier string) bool {
	limited, _, err := l.hit(ctx, identifier)
	if err != nil {
		return l.onFailure(identifier, err)
	}
	return limited
}

// GetRemainingRequests retorna max(0, max - contagem atual).
// Em erro do store retorna a cota cheia.
func (l *Limiter) GetRemainingRequests(ctx context.Context, identifier string) int {
	ctx, cancel := l.withTimeout(ctx)
	defer cancel()

	key := domain.WindowKey(l.cfg.Namespace, identifier)
	now := l.cfg.Now()
	if err := l.store.Prune(ctx, key, now.Add(-l.cfg.Window)); err != nil {
		l.log.Warn("rate limit remaining failed", "identifier", identifier, "error", err)
		return l.cfg.MaxRequests
	}
	count, err := l.store.Count(ctx, key)
	if err != nil {
		l.log.Warn("rate limit remaining failed", "identifier", identifier, "error", err)
		return l.cfg.MaxRequests
	}
	return remaining(l.cfg.MaxRequests, count)
}

// ResetRateLimit apaga a janela do identificador (override administrativo).
func (l *Limiter) ResetRateLimit(ctx context.Context, identifier string) error {
	ctx, cancel := l.withTimeout(ctx)
	defer cancel()

	if err := l.store.Delete(ctx, domain.WindowKey(l.cfg.Namespace, identifier)); err != nil {
		l.log.Warn("rate limit reset failed", "identifier", identifier, "error", err)
		return err
	}
	return nil
}

// Decide é a versão "rica" de IsRateLimited usada pelo middleware HTTP:
// além de allow/deny devolve cota restante e Retry-After.
func (l *Limiter) Decide(ctx context.Context, identifier string) domain.Decision {
	limited, count, err := l.hit(ctx, identifier)
	if err != nil {
		limited = l.onFailure(identifier, err)
		dec := domain.Decision{Allowed: !limited, Limit: l.cfg.MaxRequests, Remaining: l.cfg.MaxRequests}
		if limited {
			dec.Remaining = 0
			dec.RetryAfter = l.cfg.Window
		}
		return dec
	}

	dec := domain.Decision{
		Allowed:   !limited,
		Limit:     l.cfg.MaxRequests,
		Remaining: remaining(l.cfg.MaxRequests, count),
	}
	if limited {
		dec.RetryAfter = l.retryAfter(ctx, identifier)
	}
	return dec
}

// hit retorna (limited, contagem após a decisão).
func (l *Limiter) hit(ctx context.Context, identifier string) (bool, int, error) {
	ctx, cancel := l.withTimeout(ctx)
	defer cancel()

	key := domain.WindowKey(l.cfg.Namespace, identifier)
	now := l.cfg.Now()
	windowStart := now.Add(-l.cfg.Window)
	member := newMember(now)
	ttl := 2 * l.cfg.Window

	if as, ok := l.store.(domain.AtomicWindowStore); ok {
		return as.Hit(ctx, key, now, windowStart, l.cfg.MaxRequests, member, ttl)
	}

	if err := l.store.Prune(ctx, key, windowStart); err != nil {
		return false, 0, err
	}
	count, err := l.store.Count(ctx, key)
	if err != nil {
		return false, 0, err
	}
	if count >= l.cfg.MaxRequests {
		return true, count, nil
	}
	if err := l.store.Add(ctx, key, now, member, ttl); err != nil {
		return false, 0, err
	}
	return false, count + 1, nil
}

func (l *Limiter) onFailure(identifier string, err error) bool {
	l.log.Warn("rate limit check failed", "identifier", identifier, "policy", l.cfg.Policy.String(), "error", err)
	switch l.cfg.Policy {
	case domain.FailClosed:
		return true
	case domain.FailLocal:
		lim := l.cfg.Fallback.Get(domain.Key(domain.WindowKey(l.cfg.Namespace, identifier)))
		return lim != nil && !lim.Allow()
	default:
		return false
	}
}

// retryAfter é o tempo até a entrada mais antiga sair da janela (mínimo 1s).
func (l *Limiter) retryAfter(ctx context.Context, identifier string) time.Duration {
	ctx, cancel := l.withTimeout(ctx)
	defer cancel()

	oldest, ok, err := l.store.Oldest(ctx, domain.WindowKey(l.cfg.Namespace, identifier))
	if err != nil || !ok {
		return l.cfg.Window
	}
	d := oldest.Add(l.cfg.Window).Sub(l.cfg.Now())
	if d < time.Second {
		return time.Second
	}
	return d
}

func (l *Limiter) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if l.cfg.Timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, l.cfg.Timeout)
}

func remaining(max, count int) int {
	if count >= max {
		return 0
	}
	return max - count
}

// newMember evita colisão entre requisições no mesmo instante.
func newMember(now time.Time) string {
	return strconv.FormatInt(now.UnixNano(), 10) + "-" + uuid.NewString()
}
