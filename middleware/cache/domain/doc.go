// Package domain define os contratos do cache-aside, sem dependência de Redis.
package domain
