// Package infra contém os stores concretos do cache-aside:
//   - RedisStore: go-redis (GET, SET EX, DEL, SCAN, TTL)
//   - MemoryStore: mapa em memória com expiração, para dev/testes
package infra
