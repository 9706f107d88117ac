// Package cache fornece o cache-aside das rotas de API do Memoright.
//
// Camadas, no mesmo formato de middleware/ratelimit:
//
//   - domain: contrato do store de chave-valor e do producer
//   - application: Service com get/set/delete/clear/getOrSet
//   - infra: store Redis (go-redis) e store em memória
//   - cache (este pacote): middleware HTTP que guarda respostas GET 200 e
//     endpoint administrativo de invalidação
//
// Falhas do Redis viram miss: a rota continua respondendo, só mais devagar.
package cache
