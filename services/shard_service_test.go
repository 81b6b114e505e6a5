package services

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/NeutronStarPRO/Proton/feed"
	"github.com/NeutronStarPRO/Proton/store"
)

// newShardTestServer serves cfg over httptest, filling in the identity,
// store, logger and the advertised endpoint. A nil cfg gets defaults.
func newShardTestServer(t *testing.T, cfg *ShardServiceConfig) (*ShardService, *ShardHTTPClient) {
	t.Helper()

	router := chi.NewRouter()
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	if cfg == nil {
		cfg = &ShardServiceConfig{}
	}
	if cfg.Self == "" {
		cfg.Self = "shard-a"
	}
	if cfg.Store == nil {
		cfg.Store = store.NewMemoryStore()
	}
	cfg.Endpoint = srv.URL
	cfg.Log = slog.New(slog.NewTextHandler(io.Discard, nil))

	shard, err := NewShardService(cfg)
	require.NoError(t, err)
	shard.RegisterRoutes(router)
	return shard, NewShardHTTPClient(srv.URL, nil)
}

func TestShardStoreAndGet(t *testing.T) {
	_, client := newShardTestServer(t, nil)
	ctx := context.Background()

	post := testPost("shard-a#alice#0", "alice", "hello")
	require.NoError(t, client.StorePost(ctx, post))

	id, err := feed.ParsePostID(post.ID)
	require.NoError(t, err)

	got, err := client.GetPost(ctx, id)
	require.NoError(t, err)
	require.Equal(t, post.ID, got.ID)
	require.Equal(t, "hello", got.Content)
}

func testPost(id string, user feed.Identity, content string) *feed.Post {
	return &feed.Post{
		ID:        id,
		FeedActor: user + "-feed",
		User:      user,
		Content:   content,
		Reposts:   []feed.Repost{},
		Likes:     []feed.Like{},
		Comments:  []feed.Comment{},
		CreatedAt: 1,
	}
}

func TestShardRefusesMisroutedPost(t *testing.T) {
	_, client := newShardTestServer(t, nil)

	post := testPost("shard-b#alice#0", "alice", "misrouted")
	err := client.StorePost(context.Background(), post)
	require.ErrorIs(t, err, feed.ErrShardRejected)
}

func TestShardGetUnknownPost(t *testing.T) {
	_, client := newShardTestServer(t, nil)

	_, err := client.GetPost(context.Background(), feed.PostID{Shard: "shard-a", Author: "alice", Seq: 9})
	require.ErrorIs(t, err, feed.ErrUnknownPost)
}

func TestShardUpdates(t *testing.T) {
	_, client := newShardTestServer(t, nil)
	ctx := context.Background()

	post := testPost("shard-a#alice#0", "alice", "hello")
	require.NoError(t, client.StorePost(ctx, post))

	id, err := feed.ParsePostID(post.ID)
	require.NoError(t, err)

	reposts := []feed.Repost{{User: "bob", CreatedAt: 2}}
	require.NoError(t, client.UpdateRepostSet(ctx, id, reposts))

	comments := []feed.Comment{{User: "carol", Content: "nice", CreatedAt: 3}}
	require.NoError(t, client.UpdateCommentLog(ctx, id, comments))

	likes := []feed.Like{{User: "dave", CreatedAt: 4}}
	require.NoError(t, client.UpdateLikeSet(ctx, id, likes))

	got, err := client.GetPost(ctx, id)
	require.NoError(t, err)
	require.Equal(t, reposts, got.Reposts)
	require.Equal(t, comments, got.Comments)
	require.Equal(t, likes, got.Likes)

	// Updates against an id the shard never stored are 404s.
	missing := feed.PostID{Shard: "shard-a", Author: "alice", Seq: 9}
	err = client.UpdateLikeSet(ctx, missing, likes)
	require.Error(t, err)
}

func TestShardPushesCommentAndLikeNotices(t *testing.T) {
	graph := &feed.MockSocialGraph{FollowerSets: map[feed.Identity][]feed.Identity{
		"alice": {"bob", "carol"},
	}}
	commentNotifier := &feed.MockNotifier{}
	likeNotifier := &feed.MockNotifier{}
	_, client := newShardTestServer(t, &ShardServiceConfig{
		Graph:           graph,
		CommentNotifier: commentNotifier,
		LikeNotifier:    likeNotifier,
	})
	ctx := context.Background()

	post := testPost("shard-a#alice#0", "alice", "hello")
	require.NoError(t, client.StorePost(ctx, post))
	id, err := feed.ParsePostID(post.ID)
	require.NoError(t, err)

	// A committed comment update notifies the author's followers.
	comments := []feed.Comment{{User: "dave", Content: "nice", CreatedAt: 2}}
	require.NoError(t, client.UpdateCommentLog(ctx, id, comments))
	deliveries := commentNotifier.Deliveries()
	require.Len(t, deliveries, 1)
	require.Equal(t, []feed.Identity{"bob", "carol"}, deliveries[0].Audience)
	require.Equal(t, id, deliveries[0].PostID)
	require.Empty(t, likeNotifier.Deliveries())

	// Likes go through the like notifier.
	likes := []feed.Like{{User: "dave", CreatedAt: 3}}
	require.NoError(t, client.UpdateLikeSet(ctx, id, likes))
	require.Len(t, likeNotifier.Deliveries(), 1)

	// Repost replication stays silent: the authoring actor already fans
	// reposts out itself.
	reposts := []feed.Repost{{User: "bob", CreatedAt: 4}}
	require.NoError(t, client.UpdateRepostSet(ctx, id, reposts))
	require.Len(t, commentNotifier.Deliveries(), 1)
	require.Len(t, likeNotifier.Deliveries(), 1)
}

func TestShardNoticeFailureKeepsUpdate(t *testing.T) {
	graph := &feed.MockSocialGraph{FollowerSets: map[feed.Identity][]feed.Identity{
		"alice": {"bob"},
	}}
	commentNotifier := &feed.MockNotifier{
		NotifyFn: func(ctx context.Context, audience []feed.Identity, id feed.PostID) error {
			return errors.New("notifier down")
		},
	}
	_, client := newShardTestServer(t, &ShardServiceConfig{
		Graph:           graph,
		CommentNotifier: commentNotifier,
	})
	ctx := context.Background()

	post := testPost("shard-a#alice#0", "alice", "hello")
	require.NoError(t, client.StorePost(ctx, post))
	id, err := feed.ParsePostID(post.ID)
	require.NoError(t, err)

	// The ack stays positive: the update committed, only the push failed.
	comments := []feed.Comment{{User: "dave", Content: "nice", CreatedAt: 2}}
	require.NoError(t, client.UpdateCommentLog(ctx, id, comments))

	got, err := client.GetPost(ctx, id)
	require.NoError(t, err)
	require.Equal(t, comments, got.Comments)
}

func TestShardSelfRegistration(t *testing.T) {
	dirSrv := newDirectoryTestServer(t, NewInMemoryDirectoryStore())
	dirClient := NewDirectoryHTTPClient(dirSrv.URL, nil)

	shard, _ := newShardTestServer(t, &ShardServiceConfig{
		Directory:  dirClient,
		AdminToken: "secret",
	})
	require.NoError(t, shard.Start(context.Background()))

	id, err := dirClient.AvailableShard(context.Background())
	require.NoError(t, err)
	require.Equal(t, feed.Identity("shard-a"), id)

	// The advertised endpoint made it into the directory.
	endpoint, err := dirClient.ShardEndpoint(context.Background(), "shard-a")
	require.NoError(t, err)
	require.NotEmpty(t, endpoint)
}

func TestShardSelfRegistrationBadToken(t *testing.T) {
	dirSrv := newDirectoryTestServer(t, NewInMemoryDirectoryStore())
	dirClient := NewDirectoryHTTPClient(dirSrv.URL, nil)

	shard, _ := newShardTestServer(t, &ShardServiceConfig{
		Directory:  dirClient,
		AdminToken: "wrong",
	})
	require.Error(t, shard.Start(context.Background()))
}
