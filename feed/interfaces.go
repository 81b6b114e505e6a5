package feed

import "context"

// ShardClient is the call surface of a single storage shard. The boolean
// acknowledgements of the wire protocol are folded into errors: a call
// that completes without error was acknowledged.
type ShardClient interface {
	// StorePost replicates a freshly created post to the shard.
	StorePost(ctx context.Context, post *Post) error
	// UpdateRepostSet replaces the post's repost set on the shard.
	UpdateRepostSet(ctx context.Context, id PostID, reposts []Repost) error
	// UpdateCommentLog replaces the post's comment log on the shard.
	UpdateCommentLog(ctx context.Context, id PostID, comments []Comment) error
	// UpdateLikeSet replaces the post's like set on the shard.
	UpdateLikeSet(ctx context.Context, id PostID, likes []Like) error
	// GetPost fetches the durable copy, or ErrUnknownPost.
	GetPost(ctx context.Context, id PostID) (*Post, error)
}

// ShardConnector resolves a shard identity, parsed out of a post id, to a
// client for that shard.
type ShardConnector interface {
	Shard(ctx context.Context, id Identity) (ShardClient, error)
}

// Directory is the root directory service that hands out an available
// storage shard for new content.
type Directory interface {
	AvailableShard(ctx context.Context) (Identity, error)
}

// SocialGraph resolves an identity to its follower set.
type SocialGraph interface {
	Followers(ctx context.Context, user Identity) ([]Identity, error)
}

// Notifier is one of the fan-out collaborators (post, comment or like).
// The audience is an explicit identity set; the post id is an opaque
// reference. Payload is never pushed, so recipients control when and
// whether to pull.
type Notifier interface {
	// Notify delivers a primary notice to the author's own followers.
	Notify(ctx context.Context, audience []Identity, id PostID) error
	// NotifyResharer delivers a secondary notice on behalf of a resharer.
	NotifyResharer(ctx context.Context, audience []Identity, id PostID) error
}

// Meta slot names for the actor's configuration singletons.
const (
	MetaOwner = "owner"
	MetaShard = "shard"
)

// StateStore is the actor's durable state: the authoritative post store
// (ordered by sequence number), the materialized feed cache (keyed by
// global post id), and named singleton slots. Implementations must survive
// process restart; see the store package.
type StateStore interface {
	// ReservePostIndex returns the next sequence index and advances the
	// persisted counter. Indices form a gapless ascending sequence
	// starting at zero.
	ReservePostIndex() (uint64, error)
	// PutPost inserts or replaces the post at its sequence index.
	PutPost(post *Post) error
	// GetPost returns the post at seq, or ErrUnknownPost.
	GetPost(seq uint64) (*Post, error)
	// AllPosts returns every authored post in ascending sequence order.
	AllPosts() ([]*Post, error)
	PostCount() (uint64, error)

	// MarkUnannounced flags a post whose fan-out failed after replication.
	MarkUnannounced(seq uint64) error
	ClearUnannounced(seq uint64) error
	IsUnannounced(seq uint64) (bool, error)

	// InsertFeed inserts a materialized entry if the id is unseen and
	// reports whether it inserted. First writer wins; an existing entry is
	// never updated in place.
	InsertFeed(id string, post *Post) (bool, error)
	ContainsFeed(id string) (bool, error)
	// GetFeed returns the cached entry, or ErrUnknownPost.
	GetFeed(id string) (*Post, error)
	AllFeed() ([]*Post, error)
	FeedCount() (uint64, error)

	// GetMeta reads a named singleton slot; ok is false when unset.
	GetMeta(name string) (value string, ok bool, err error)
	SetMeta(name, value string) error

	Close() error
}
