// Package application implementa o cache-aside (get/set/delete/clear/getOrSet)
// com serialização JSON, namespace por prefixo e degradação silenciosa quando o
// store falha.
package application
