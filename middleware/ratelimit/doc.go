// Package ratelimit fornece adapters HTTP (net/http) para rate limit por janela
// deslizante e limite de concorrência das rotas de API do Memoright.
//
// Visão geral (camadas):
//
//   - domain: contratos e tipos do domínio (sem dependência de net/http)
//   - application: casos de uso (janela deslizante, acquire/timeout) sem net/http
//   - infra: implementações concretas (Redis sorted set, script Lua, token bucket, semáforo)
//   - ratelimit (este pacote): middlewares HTTP + extração de chave + tradução para status/headers
//
// Fluxo no gateway:
//
//  1. Extrai o identificador do cliente (header/XFF/IP)
//  2. Pergunta ao Limiter do namespace da rota (ex: "login", "api")
//  3. Se bloqueado, responde 429 com Retry-After (rate limit) ou 503 (concorrência)
//  4. Se permitido, chama o próximo handler (ex: reverse proxy)
//
// Se o Redis falhar, a política do Limiter (open/closed/local) decide; o padrão
// é deixar passar. Uma queda prolongada do Redis desliga a proteção em silêncio,
// exceto pelos logs WARN.
package ratelimit
