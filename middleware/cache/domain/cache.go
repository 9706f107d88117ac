package domain

import (
	"context"
	"time"
)

// Store são as primitivas de chave-valor que o cache-aside consome.
// Os valores já chegam serializados.
type Store interface {
	// Get retorna ok=false quando a chave não existe (miss não é erro).
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	// Set grava com expiração; ttl <= 0 grava sem expiração.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Delete remove as chaves e retorna quantas existiam.
	Delete(ctx context.Context, keys ...string) (int, error)
	// Keys lista as chaves que casam com o glob pattern (ex: "cache:*").
	Keys(ctx context.Context, pattern string) ([]string, error)
	// TTL retorna o tempo de vida restante; ok=false se a chave não existe
	// ou não expira.
	TTL(ctx context.Context, key string) (ttl time.Duration, ok bool, err error)
}

// Producer calcula o valor de uma chave em caso de miss (consulta ao banco,
// agregação de dashboard, etc). Pode ser lento.
type Producer func(ctx context.Context) (any, error)
