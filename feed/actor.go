package feed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// ActorConfig wires an Actor to its collaborators. All collaborator fields
// are required; Log and Now default when nil.
type ActorConfig struct {
	// Self is this feed actor's own identity, recorded in authored posts
	// so remote holders can validate provenance.
	Self Identity

	// Owner is the administrative owner used to seed the owner slot on
	// first start. A persisted owner from a previous run takes precedence.
	Owner Identity

	Directory   Directory
	Shards      ShardConnector
	SocialGraph SocialGraph

	PostNotifier    Notifier
	CommentNotifier Notifier
	LikeNotifier    Notifier

	Log *slog.Logger

	// Now returns the current time in Unix nanoseconds. Swappable in
	// tests.
	Now func() int64
}

// Actor is a single logical feed actor: it owns the authoritative store of
// posts authored through it, distributes new content, and materializes a
// local cache of content it has been notified about.
type Actor struct {
	cfg    *ActorConfig
	state  StateStore
	fanout *FanoutDispatcher
	locks  *keyedMutex
	log    *slog.Logger
	now    func() int64

	// createMu serializes sequence-index reservation so indices stay
	// gapless under concurrent creates.
	createMu sync.Mutex
}

// NewActor validates the configuration, seeds the owner slot if this is
// the first start, and returns a ready actor.
func NewActor(cfg *ActorConfig, state StateStore) (*Actor, error) {
	if cfg == nil {
		return nil, errors.New("config cannot be nil")
	}
	if state == nil {
		return nil, errors.New("state store cannot be nil")
	}
	if !cfg.Self.Valid() {
		return nil, fmt.Errorf("self identity: %w", ErrInvalidIdentity)
	}
	if cfg.Directory == nil || cfg.Shards == nil || cfg.SocialGraph == nil {
		return nil, errors.New("directory, shard connector and social graph are required")
	}
	if cfg.PostNotifier == nil || cfg.CommentNotifier == nil || cfg.LikeNotifier == nil {
		return nil, errors.New("all three notifiers are required")
	}

	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}
	now := cfg.Now
	if now == nil {
		now = func() int64 { return time.Now().UnixNano() }
	}

	a := &Actor{
		cfg:   cfg,
		state: state,
		fanout: &FanoutDispatcher{
			Graph:           cfg.SocialGraph,
			PostNotifier:    cfg.PostNotifier,
			CommentNotifier: cfg.CommentNotifier,
			LikeNotifier:    cfg.LikeNotifier,
			Log:             log,
		},
		locks: newKeyedMutex(),
		log:   log,
		now:   now,
	}

	if _, ok, err := state.GetMeta(MetaOwner); err != nil {
		return nil, fmt.Errorf("reading owner slot: %w", err)
	} else if !ok {
		if !cfg.Owner.Valid() {
			return nil, fmt.Errorf("owner identity: %w", ErrInvalidIdentity)
		}
		if err := state.SetMeta(MetaOwner, string(cfg.Owner)); err != nil {
			return nil, fmt.Errorf("seeding owner slot: %w", err)
		}
	}

	return a, nil
}

// Self returns this actor's identity.
func (a *Actor) Self() Identity { return a.cfg.Self }

// Owner returns the administrative owner identity.
func (a *Actor) Owner() (Identity, error) {
	value, ok, err := a.state.GetMeta(MetaOwner)
	if err != nil {
		return "", fmt.Errorf("reading owner slot: %w", err)
	}
	if !ok {
		return "", errors.New("owner slot unset")
	}
	return Identity(value), nil
}

// SetOwner updates the owner. Owner-gated.
func (a *Actor) SetOwner(caller, newOwner Identity) error {
	if err := a.requireOwner(caller); err != nil {
		return err
	}
	if !newOwner.Valid() {
		return fmt.Errorf("new owner: %w", ErrInvalidIdentity)
	}
	return a.state.SetMeta(MetaOwner, string(newOwner))
}

func (a *Actor) requireOwner(caller Identity) error {
	owner, err := a.Owner()
	if err != nil {
		return err
	}
	if caller != owner {
		return ErrNotOwner
	}
	return nil
}

// CachedShard returns the cached active storage shard, if one is set.
func (a *Actor) CachedShard() (Identity, bool) {
	value, ok, err := a.state.GetMeta(MetaShard)
	if err != nil || !ok || value == "" {
		return "", false
	}
	return Identity(value), true
}

// CheckAvailableShard asks the root directory for an available shard and
// caches it, replacing any previous choice.
func (a *Actor) CheckAvailableShard(ctx context.Context) error {
	shard, err := a.cfg.Directory.AvailableShard(ctx)
	if err != nil {
		return fmt.Errorf("root directory: %w", err)
	}
	if !shard.Valid() {
		return ErrNoShardAvailable
	}
	if err := a.state.SetMeta(MetaShard, string(shard)); err != nil {
		return fmt.Errorf("caching shard: %w", err)
	}
	a.log.Info("active shard refreshed", "shard", shard.String())
	return nil
}

// resolveShard returns the cached shard, refreshing lazily from the root
// directory when none is cached yet.
func (a *Actor) resolveShard(ctx context.Context) (Identity, error) {
	if shard, ok := a.CachedShard(); ok {
		return shard, nil
	}
	if err := a.CheckAvailableShard(ctx); err != nil {
		return "", err
	}
	shard, ok := a.CachedShard()
	if !ok {
		return "", ErrNoShardAvailable
	}
	return shard, nil
}

// CreatePost authors a new post: it reserves the next sequence index,
// persists the post locally, replicates it to the active storage shard
// and fans a primary notice out to the author's followers.
//
// Owner-gated. A replication failure aborts the operation with the local
// write retained. A fan-out failure after successful replication returns
// the new id together with a *FanoutError; the post is marked unannounced
// and can be replayed with Renotify.
func (a *Actor) CreatePost(ctx context.Context, caller Identity, content string, mediaRefs []string) (PostID, error) {
	if err := a.requireOwner(caller); err != nil {
		return PostID{}, err
	}

	shard, err := a.resolveShard(ctx)
	if err != nil {
		return PostID{}, err
	}

	a.createMu.Lock()
	seq, err := a.state.ReservePostIndex()
	if err != nil {
		a.createMu.Unlock()
		return PostID{}, fmt.Errorf("reserving post index: %w", err)
	}

	id := PostID{Shard: shard, Author: caller, Seq: seq}
	post := &Post{
		ID:        id.String(),
		FeedActor: a.cfg.Self,
		Index:     seq,
		User:      caller,
		Content:   content,
		MediaRefs: mediaRefs,
		Reposts:   []Repost{},
		Likes:     []Like{},
		Comments:  []Comment{},
		CreatedAt: a.now(),
	}
	if err := a.state.PutPost(post); err != nil {
		a.createMu.Unlock()
		return PostID{}, fmt.Errorf("persisting post: %w", err)
	}

	// Take the per-id lock before releasing createMu so a concurrent
	// mutation of the fresh id cannot interleave with replication.
	unlock := a.locks.lock(post.ID)
	a.createMu.Unlock()
	defer unlock()

	client, err := a.cfg.Shards.Shard(ctx, shard)
	if err != nil {
		return PostID{}, fmt.Errorf("connecting to shard %s: %w", shard, err)
	}
	if err := client.StorePost(ctx, post); err != nil {
		return PostID{}, fmt.Errorf("replicating post %s: %w", post.ID, err)
	}

	if err := a.fanout.NotifyFollowers(ctx, caller, id); err != nil {
		if markErr := a.state.MarkUnannounced(seq); markErr != nil {
			a.log.Error("marking post unannounced failed", "seq", seq, "err", markErr)
		}
		return id, &FanoutError{PostID: id, Replicated: true, Err: err}
	}

	a.log.Info("post created", "post_id", post.ID)
	return id, nil
}

// CreateRepost appends the caller to the post's repost set, replicates the
// updated set to the owning shard and sends a secondary notice to the
// caller's followers (minus the original author, plus the caller itself).
//
// A duplicate repost by the same caller returns AlreadyApplied without any
// remote calls.
func (a *Actor) CreateRepost(ctx context.Context, caller Identity, rawID string) (MutationResult, error) {
	if !caller.Valid() {
		return MutationResult{}, fmt.Errorf("caller: %w", ErrInvalidIdentity)
	}
	id, err := ParsePostID(rawID)
	if err != nil {
		return MutationResult{}, err
	}

	unlock := a.locks.lock(rawID)
	defer unlock()

	post, err := a.localPost(id, rawID)
	if err != nil {
		return MutationResult{}, err
	}
	if post.HasReposted(caller) {
		return alreadyApplied(), nil
	}

	post.Reposts = append(post.Reposts, Repost{User: caller, CreatedAt: a.now()})
	if err := a.state.PutPost(post); err != nil {
		return MutationResult{}, fmt.Errorf("persisting repost: %w", err)
	}

	client, err := a.cfg.Shards.Shard(ctx, id.Shard)
	if err != nil {
		return MutationResult{}, fmt.Errorf("connecting to shard %s: %w", id.Shard, err)
	}
	if err := client.UpdateRepostSet(ctx, id, post.Reposts); err != nil {
		return MutationResult{}, fmt.Errorf("replicating repost set for %s: %w", rawID, err)
	}

	if err := a.fanout.NotifyRepostAudience(ctx, caller, post.User, id); err != nil {
		return MutationResult{}, &FanoutError{PostID: id, Replicated: true, Err: err}
	}

	return applied(), nil
}

// CreateComment appends a comment to the post's comment log and replicates
// the full log to the owning shard. Comments are never deduplicated and
// trigger no fan-out from this side; comment delivery is driven by the
// ingestion side.
func (a *Actor) CreateComment(ctx context.Context, caller Identity, rawID, content string) (MutationResult, error) {
	if !caller.Valid() {
		return MutationResult{}, fmt.Errorf("caller: %w", ErrInvalidIdentity)
	}
	id, err := ParsePostID(rawID)
	if err != nil {
		return MutationResult{}, err
	}

	unlock := a.locks.lock(rawID)
	defer unlock()

	post, err := a.localPost(id, rawID)
	if err != nil {
		return MutationResult{}, err
	}

	post.Comments = append(post.Comments, Comment{User: caller, Content: content, CreatedAt: a.now()})
	if err := a.state.PutPost(post); err != nil {
		return MutationResult{}, fmt.Errorf("persisting comment: %w", err)
	}

	client, err := a.cfg.Shards.Shard(ctx, id.Shard)
	if err != nil {
		return MutationResult{}, fmt.Errorf("connecting to shard %s: %w", id.Shard, err)
	}
	if err := client.UpdateCommentLog(ctx, id, post.Comments); err != nil {
		return MutationResult{}, fmt.Errorf("replicating comment log for %s: %w", rawID, err)
	}

	return applied(), nil
}

// CreateLike appends the caller to the post's like set and replicates the
// full set to the owning shard. A duplicate like returns AlreadyApplied
// without any remote calls.
func (a *Actor) CreateLike(ctx context.Context, caller Identity, rawID string) (MutationResult, error) {
	if !caller.Valid() {
		return MutationResult{}, fmt.Errorf("caller: %w", ErrInvalidIdentity)
	}
	id, err := ParsePostID(rawID)
	if err != nil {
		return MutationResult{}, err
	}

	unlock := a.locks.lock(rawID)
	defer unlock()

	post, err := a.localPost(id, rawID)
	if err != nil {
		return MutationResult{}, err
	}
	if post.HasLiked(caller) {
		return alreadyApplied(), nil
	}

	post.Likes = append(post.Likes, Like{User: caller, CreatedAt: a.now()})
	if err := a.state.PutPost(post); err != nil {
		return MutationResult{}, fmt.Errorf("persisting like: %w", err)
	}

	client, err := a.cfg.Shards.Shard(ctx, id.Shard)
	if err != nil {
		return MutationResult{}, fmt.Errorf("connecting to shard %s: %w", id.Shard, err)
	}
	if err := client.UpdateLikeSet(ctx, id, post.Likes); err != nil {
		return MutationResult{}, fmt.Errorf("replicating like set for %s: %w", rawID, err)
	}

	return applied(), nil
}

// Renotify replays the primary fan-out of a post whose earlier fan-out
// failed after replication. Owner-gated. A post that is not marked
// unannounced is left alone.
func (a *Actor) Renotify(ctx context.Context, caller Identity, seq uint64) error {
	if err := a.requireOwner(caller); err != nil {
		return err
	}

	post, err := a.state.GetPost(seq)
	if err != nil {
		return err
	}
	unannounced, err := a.state.IsUnannounced(seq)
	if err != nil {
		return fmt.Errorf("reading unannounced marker: %w", err)
	}
	if !unannounced {
		return nil
	}

	id, err := ParsePostID(post.ID)
	if err != nil {
		return err
	}
	if err := a.fanout.NotifyFollowers(ctx, post.User, id); err != nil {
		return &FanoutError{PostID: id, Replicated: true, Err: err}
	}
	if err := a.state.ClearUnannounced(seq); err != nil {
		return fmt.Errorf("clearing unannounced marker: %w", err)
	}
	a.log.Info("post renotified", "post_id", post.ID)
	return nil
}

// localPost loads the post at id.Seq from the authoritative store and
// verifies the stored id matches, so ids authored elsewhere cannot alias a
// local sequence index.
func (a *Actor) localPost(id PostID, rawID string) (*Post, error) {
	post, err := a.state.GetPost(id.Seq)
	if err != nil {
		return nil, err
	}
	if post.ID != rawID {
		return nil, fmt.Errorf("%w: %s is not locally authoritative", ErrUnknownPost, rawID)
	}
	return post, nil
}

// Post returns the authored post named by rawID, resolved by its sequence
// index in the local authoritative store.
func (a *Actor) Post(rawID string) (*Post, error) {
	id, err := ParsePostID(rawID)
	if err != nil {
		return nil, err
	}
	return a.state.GetPost(id.Seq)
}

// PostBySeq returns the authored post at the given sequence index.
func (a *Actor) PostBySeq(seq uint64) (*Post, error) {
	return a.state.GetPost(seq)
}

// AllPosts returns every authored post in ascending sequence order.
func (a *Actor) AllPosts() ([]*Post, error) {
	return a.state.AllPosts()
}

// PostCount returns the number of authored posts.
func (a *Actor) PostCount() (uint64, error) {
	return a.state.PostCount()
}

// FeedEntry returns the materialized cache entry for rawID, or
// ErrUnknownPost. The entry may lag the true state at the origin until the
// post is re-fetched; staleness is an accepted property of the cache.
func (a *Actor) FeedEntry(rawID string) (*Post, error) {
	return a.state.GetFeed(rawID)
}

// FeedCount returns the number of materialized cache entries.
func (a *Actor) FeedCount() (uint64, error) {
	return a.state.FeedCount()
}

// LatestFeed returns up to n cache entries sorted strictly by creation
// timestamp descending.
func (a *Actor) LatestFeed(n int) ([]*Post, error) {
	if n <= 0 {
		return []*Post{}, nil
	}
	entries, err := a.state.AllFeed()
	if err != nil {
		return nil, err
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].CreatedAt > entries[j].CreatedAt
	})
	if len(entries) > n {
		entries = entries[:n]
	}
	return entries, nil
}
