// Package application contém os casos de uso (regras de aplicação) para rate limit
// por janela deslizante e limite de concorrência.
//
// Ele depende apenas do pacote domain e não conhece net/http nem Redis.
// Ex.: Limiter.Decide(ctx, id) retorna uma Decision (allow/deny + remaining + retry-after).
package application
