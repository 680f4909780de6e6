// Package storage provides the byte-oriented caches behind the feedback
// service: an expiring in-memory LRU and a Redis-backed store shared across
// replicas.
package storage
