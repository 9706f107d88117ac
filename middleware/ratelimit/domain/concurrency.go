package domain

import "context"

// SlotPool representa um recurso com capacidade finita (ex: requisições em voo
// para o upstream).
//
// Acquire bloqueia até conseguir uma vaga ou até o ctx encerrar.
// Ao adquirir, retorna uma função de release; chamadas extras são ignoradas.
type SlotPool interface {
	Acquire(ctx context.Context) (release func(), ok bool)
}
