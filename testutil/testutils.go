package testutil

import (
	"log/slog"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/NeutronStarPRO/Proton/feed"
	"github.com/NeutronStarPRO/Proton/store"
)

// PostOption customizes a generated test post.
type PostOption func(*feed.Post)

// WithID sets the post's global id.
func WithID(id string) PostOption {
	return func(p *feed.Post) { p.ID = id }
}

// WithUser sets the post's author.
func WithUser(user feed.Identity) PostOption {
	return func(p *feed.Post) { p.User = user }
}

// WithContent sets the post's content.
func WithContent(content string) PostOption {
	return func(p *feed.Post) { p.Content = content }
}

// WithCreatedAt sets the post's creation timestamp.
func WithCreatedAt(ts int64) PostOption {
	return func(p *feed.Post) { p.CreatedAt = ts }
}

// WithReposts sets the post's repost set.
func WithReposts(users ...feed.Identity) PostOption {
	return func(p *feed.Post) {
		p.Reposts = make([]feed.Repost, len(users))
		for i, user := range users {
			p.Reposts[i] = feed.Repost{User: user, CreatedAt: p.CreatedAt}
		}
	}
}

// WithLikes sets the post's like set.
func WithLikes(users ...feed.Identity) PostOption {
	return func(p *feed.Post) {
		p.Likes = make([]feed.Like, len(users))
		for i, user := range users {
			p.Likes[i] = feed.Like{User: user, CreatedAt: p.CreatedAt}
		}
	}
}

// NewTestPost creates a post with sensible defaults, customized by opts.
func NewTestPost(opts ...PostOption) *feed.Post {
	post := &feed.Post{
		ID:        "shard-a#alice#0",
		FeedActor: "alice-feed",
		Index:     0,
		User:      "alice",
		Content:   "hello world",
		Reposts:   []feed.Repost{},
		Likes:     []feed.Like{},
		Comments:  []feed.Comment{},
		CreatedAt: 1,
	}
	for _, opt := range opts {
		opt(post)
	}
	return post
}

// ActorHarness is a feed.Actor wired to an in-memory state store and mock
// collaborators, all exposed for assertions.
type ActorHarness struct {
	Actor *feed.Actor
	State *store.MemoryStore

	Shard     *feed.MockShardClient
	Connector *feed.MockShardConnector
	Directory *feed.MockDirectory
	Graph     *feed.MockSocialGraph

	PostNotifier    *feed.MockNotifier
	CommentNotifier *feed.MockNotifier
	LikeNotifier    *feed.MockNotifier

	clock atomic.Int64
}

// HarnessOption customizes the harness configuration.
type HarnessOption func(*harnessConfig)

type harnessConfig struct {
	self    feed.Identity
	owner   feed.Identity
	shardID feed.Identity
}

// WithSelf sets the actor's own identity.
func WithSelf(self feed.Identity) HarnessOption {
	return func(c *harnessConfig) { c.self = self }
}

// WithOwner sets the administrative owner.
func WithOwner(owner feed.Identity) HarnessOption {
	return func(c *harnessConfig) { c.owner = owner }
}

// WithShardID sets the shard the mock directory hands out.
func WithShardID(id feed.Identity) HarnessOption {
	return func(c *harnessConfig) { c.shardID = id }
}

// NewActorHarness builds a ready actor over mocks. The clock is a
// deterministic counter so creation timestamps are strictly increasing.
func NewActorHarness(t *testing.T, opts ...HarnessOption) *ActorHarness {
	t.Helper()

	cfg := &harnessConfig{
		self:    "alice-feed",
		owner:   "alice",
		shardID: "shard-a",
	}
	for _, opt := range opts {
		opt(cfg)
	}

	h := &ActorHarness{
		State:           store.NewMemoryStore(),
		Shard:           feed.NewMockShardClient(),
		Directory:       &feed.MockDirectory{ShardID: cfg.shardID},
		Graph:           &feed.MockSocialGraph{FollowerSets: make(map[feed.Identity][]feed.Identity)},
		PostNotifier:    &feed.MockNotifier{},
		CommentNotifier: &feed.MockNotifier{},
		LikeNotifier:    &feed.MockNotifier{},
	}
	h.Connector = feed.NewMockShardConnector(h.Shard)

	actor, err := feed.NewActor(&feed.ActorConfig{
		Self:            cfg.self,
		Owner:           cfg.owner,
		Directory:       h.Directory,
		Shards:          h.Connector,
		SocialGraph:     h.Graph,
		PostNotifier:    h.PostNotifier,
		CommentNotifier: h.CommentNotifier,
		LikeNotifier:    h.LikeNotifier,
		Log:             slog.Default(),
		Now:             func() int64 { return h.clock.Add(1) },
	}, h.State)
	require.NoError(t, err)

	h.Actor = actor
	return h
}

// Follow records followers for user in the mock social graph.
func (h *ActorHarness) Follow(user feed.Identity, followers ...feed.Identity) {
	h.Graph.FollowerSets[user] = followers
}
