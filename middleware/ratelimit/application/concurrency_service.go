package application

import (
	"context"
	"errors"
	"time"

	"memoright-gateway/middleware/ratelimit/domain"
)

// ErrNoSlot indica que nenhuma vaga foi obtida dentro do prazo.
var ErrNoSlot = errors.New("concurrency: no slot available")

// ConcurrencyService concentra a regra de aquisição/liberação de vagas com timeout,
// sem saber nada sobre HTTP.
type ConcurrencyService struct {
	Pool           domain.SlotPool
	AcquireTimeout time.Duration
}

// Acquire tenta adquirir uma vaga.
//   - Se `AcquireTimeout <= 0`, espera até o ctx do chamador encerrar.
//   - Se `AcquireTimeout > 0`, espera no máximo o timeout.
//
// Em erro nenhuma vaga foi adquirida e release é nil.
func (s ConcurrencyService) Acquire(ctx context.Context) (func(), error) {
	if s.Pool == nil {
		return func() {}, nil
	}

	if s.AcquireTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.AcquireTimeout)
		defer cancel()
	}

	release, ok := s.Pool.Acquire(ctx)
	if !ok {
		return nil, ErrNoSlot
	}
	return release, nil
}
