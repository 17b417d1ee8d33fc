package testfixtures

import (
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

// RedisHarness provides a Redis client backed by an in-process miniredis
// server for cache and pub/sub tests.
type RedisHarness struct {
	Server *miniredis.Miniredis
	Client *redis.Client
}

// NewRedisHarness starts a miniredis server and a client pointed at it.
// Cleanup is registered with the provided testing.TB.
func NewRedisHarness(tb testing.TB) *RedisHarness {
	tb.Helper()

	server := miniredis.RunT(tb)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	tb.Cleanup(func() {
		_ = client.Close()
	})

	return &RedisHarness{Server: server, Client: client}
}
