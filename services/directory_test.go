package services

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/NeutronStarPRO/Proton/feed"
)

func newDirectoryTestServer(t *testing.T, store DirectoryStore) *httptest.Server {
	t.Helper()

	dir, err := NewDirectory(&DirectoryConfig{
		AdminToken: "secret",
		Store:      store,
		Log:        slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	require.NoError(t, err)

	router := chi.NewRouter()
	dir.RegisterRoutes(router)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv
}

func registerShard(t *testing.T, srv *httptest.Server, token, id, endpoint string) *http.Response {
	t.Helper()

	var body bytes.Buffer
	require.NoError(t, json.NewEncoder(&body).Encode(&RegisterShardRequest{ID: id, Endpoint: endpoint}))

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/shards", &body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestDirectoryRegisterRequiresToken(t *testing.T) {
	srv := newDirectoryTestServer(t, NewInMemoryDirectoryStore())

	resp := registerShard(t, srv, "", "shard-a", "http://shard-a")
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = registerShard(t, srv, "wrong", "shard-a", "http://shard-a")
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = registerShard(t, srv, "secret", "shard-a", "http://shard-a")
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestDirectoryAvailableRoundRobin(t *testing.T) {
	srv := newDirectoryTestServer(t, NewInMemoryDirectoryStore())
	client := NewDirectoryHTTPClient(srv.URL, nil)
	ctx := context.Background()

	// Empty directory has nothing to hand out.
	_, err := client.AvailableShard(ctx)
	require.ErrorIs(t, err, feed.ErrNoShardAvailable)

	registerShard(t, srv, "secret", "shard-a", "http://shard-a")
	registerShard(t, srv, "secret", "shard-b", "http://shard-b")

	seen := make(map[string]int)
	for i := 0; i < 4; i++ {
		id, err := client.AvailableShard(ctx)
		require.NoError(t, err)
		seen[string(id)]++
	}
	require.Equal(t, map[string]int{"shard-a": 2, "shard-b": 2}, seen)
}

func TestDirectoryLookupAndList(t *testing.T) {
	srv := newDirectoryTestServer(t, NewInMemoryDirectoryStore())
	client := NewDirectoryHTTPClient(srv.URL, nil)

	registerShard(t, srv, "secret", "shard-b", "http://shard-b")
	registerShard(t, srv, "secret", "shard-a", "http://shard-a")

	endpoint, err := client.ShardEndpoint(context.Background(), "shard-a")
	require.NoError(t, err)
	require.Equal(t, "http://shard-a", endpoint)

	var list ShardListResponse
	resp := doJSON(t, http.MethodGet, srv.URL+"/shards", "", nil, &list)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, list.Shards, 2)
	require.Equal(t, "shard-a", list.Shards[0].ID)
	require.Equal(t, "shard-b", list.Shards[1].ID)

	resp = doJSON(t, http.MethodGet, srv.URL+"/shards/shard-x", "", nil, nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestDirectoryUnregister(t *testing.T) {
	srv := newDirectoryTestServer(t, NewInMemoryDirectoryStore())
	registerShard(t, srv, "secret", "shard-a", "http://shard-a")

	req, err := http.NewRequest(http.MethodDelete, srv.URL+"/shards/shard-a", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req, err = http.NewRequest(http.MethodDelete, srv.URL+"/shards/shard-a", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer secret")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	getResp := doJSON(t, http.MethodGet, srv.URL+"/shards/shard-a", "", nil, nil)
	require.Equal(t, http.StatusNotFound, getResp.StatusCode)
}

func TestDirectoryReloadsPersistedShards(t *testing.T) {
	store := NewInMemoryDirectoryStore()

	srv := newDirectoryTestServer(t, store)
	registerShard(t, srv, "secret", "shard-a", "http://shard-a")
	srv.Close()

	// A restart rebuilds the routing table from the store.
	srv2 := newDirectoryTestServer(t, store)
	client := NewDirectoryHTTPClient(srv2.URL, nil)

	endpoint, err := client.ShardEndpoint(context.Background(), "shard-a")
	require.NoError(t, err)
	require.Equal(t, "http://shard-a", endpoint)
}
