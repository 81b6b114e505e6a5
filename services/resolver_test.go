package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"go.uber.org/atomic"
)

func TestShardResolverCachesClients(t *testing.T) {
	var lookups atomic.Int64
	dir := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		lookups.Inc()
		json.NewEncoder(w).Encode(&ShardInfo{ID: "shard-a", Endpoint: "http://shard-a"})
	}))
	t.Cleanup(dir.Close)

	resolver := NewShardResolver(NewDirectoryHTTPClient(dir.URL, nil), nil)
	ctx := context.Background()

	first, err := resolver.Shard(ctx, "shard-a")
	require.NoError(t, err)
	second, err := resolver.Shard(ctx, "shard-a")
	require.NoError(t, err)
	require.Same(t, first, second)
	require.Equal(t, int64(1), lookups.Load())
}

func TestShardResolverUnknownShard(t *testing.T) {
	dir := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no such shard", http.StatusNotFound)
	}))
	t.Cleanup(dir.Close)

	resolver := NewShardResolver(NewDirectoryHTTPClient(dir.URL, nil), nil)
	_, err := resolver.Shard(context.Background(), "shard-x")
	require.Error(t, err)
}

func TestShardResolverDistinctShards(t *testing.T) {
	dirSrv := newDirectoryTestServer(t, NewInMemoryDirectoryStore())
	registerShard(t, dirSrv, "secret", "shard-a", "http://shard-a")
	registerShard(t, dirSrv, "secret", "shard-b", "http://shard-b")

	resolver := NewShardResolver(NewDirectoryHTTPClient(dirSrv.URL, nil), nil)
	ctx := context.Background()

	a, err := resolver.Shard(ctx, "shard-a")
	require.NoError(t, err)
	b, err := resolver.Shard(ctx, "shard-b")
	require.NoError(t, err)
	require.NotSame(t, a, b)
}
