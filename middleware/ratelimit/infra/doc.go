// Package infra contém implementações concretas (infraestrutura) para os contratos
// definidos no pacote domain.
//
// Exemplos:
//   - RedisWindowStore: janela deslizante em sorted set (ZADD/ZREMRANGEBYSCORE/ZCARD)
//   - RedisAtomicWindowStore: a mesma janela via script Lua atômico
//   - MemoryWindowStore: janela em memória para testes/dev
//   - LocalStore: token bucket por chave (golang.org/x/time/rate) usado como fallback
//   - ChanPool: semáforo simples para limite de concorrência
//   - RedisStatsStore / MemoryStatsStore: contadores de decisões
package infra
