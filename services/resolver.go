package services

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/NeutronStarPRO/Proton/feed"
)

// ShardResolver implements feed.ShardConnector: it resolves shard
// identities parsed out of post ids to connected shard clients, looking
// endpoints up in the root directory and caching the resulting clients.
//
// Shard endpoints are assumed stable for the life of an identity; a shard
// that moves re-registers under a fresh identity, so cached clients are
// never invalidated.
type ShardResolver struct {
	directory *DirectoryHTTPClient
	client    *http.Client

	mu      sync.RWMutex
	clients map[feed.Identity]*ShardHTTPClient
}

// NewShardResolver creates a resolver backed by the given directory.
func NewShardResolver(directory *DirectoryHTTPClient, client *http.Client) *ShardResolver {
	return &ShardResolver{
		directory: directory,
		client:    defaultHTTPClient(client),
		clients:   make(map[feed.Identity]*ShardHTTPClient),
	}
}

// Shard returns a client for the shard named by id.
func (r *ShardResolver) Shard(ctx context.Context, id feed.Identity) (feed.ShardClient, error) {
	r.mu.RLock()
	cached, ok := r.clients[id]
	r.mu.RUnlock()
	if ok {
		return cached, nil
	}

	endpoint, err := r.directory.ShardEndpoint(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("resolving shard %s: %w", id, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if cached, ok := r.clients[id]; ok {
		return cached, nil
	}
	shardClient := NewShardHTTPClient(endpoint, r.client)
	r.clients[id] = shardClient
	return shardClient, nil
}
