package feed

import (
	"context"
	"fmt"
)

// ReceiveFeedNotice ingests a post notice. If the id is already present in
// the materialized cache the call is an idempotent no-op returning false.
// Otherwise the full post is pulled from its owning shard and cached,
// returning true.
func (a *Actor) ReceiveFeedNotice(ctx context.Context, rawID string) (bool, error) {
	return a.receiveNotice(ctx, PostNotice, rawID)
}

// ReceiveCommentNotice ingests a comment notice. Beyond the feed-notice
// semantics, a successful first-time ingestion checks whether the local
// owner appears in the post's repost set; if so this actor is itself a
// resharer and forwards the notice to its own followers through the
// comment notifier.
func (a *Actor) ReceiveCommentNotice(ctx context.Context, rawID string) (bool, error) {
	return a.receiveNotice(ctx, CommentNotice, rawID)
}

// ReceiveLikeNotice is ReceiveCommentNotice for like notices.
func (a *Actor) ReceiveLikeNotice(ctx context.Context, rawID string) (bool, error) {
	return a.receiveNotice(ctx, LikeNotice, rawID)
}

// ReceiveFeedNoticeBatch applies the single-notice logic to each id in
// sequence. Iterations are independent: a failing id is logged and
// skipped, and insertions made before a failure are retained.
func (a *Actor) ReceiveFeedNoticeBatch(ctx context.Context, rawIDs []string) {
	a.receiveNoticeBatch(ctx, PostNotice, rawIDs)
}

// ReceiveCommentNoticeBatch is the batched ReceiveCommentNotice.
func (a *Actor) ReceiveCommentNoticeBatch(ctx context.Context, rawIDs []string) {
	a.receiveNoticeBatch(ctx, CommentNotice, rawIDs)
}

// ReceiveLikeNoticeBatch is the batched ReceiveLikeNotice.
func (a *Actor) ReceiveLikeNoticeBatch(ctx context.Context, rawIDs []string) {
	a.receiveNoticeBatch(ctx, LikeNotice, rawIDs)
}

func (a *Actor) receiveNoticeBatch(ctx context.Context, kind NoticeKind, rawIDs []string) {
	for _, rawID := range rawIDs {
		if _, err := a.receiveNotice(ctx, kind, rawID); err != nil {
			a.log.Warn("batch notice skipped", "kind", string(kind), "post_id", rawID, "err", err)
		}
	}
}

// receiveNotice is the single ingestion path for all notice kinds. The
// cache-membership check is the sole mechanism providing correctness under
// arbitrary delivery order, duplication or reordering: a post id moves
// Absent -> Cached exactly once, and every later notice for it is a no-op.
func (a *Actor) receiveNotice(ctx context.Context, kind NoticeKind, rawID string) (bool, error) {
	id, err := ParsePostID(rawID)
	if err != nil {
		return false, err
	}

	unlock := a.locks.lock(rawID)
	defer unlock()

	cached, err := a.state.ContainsFeed(rawID)
	if err != nil {
		return false, fmt.Errorf("checking cache for %s: %w", rawID, err)
	}
	if cached {
		return false, nil
	}

	client, err := a.cfg.Shards.Shard(ctx, id.Shard)
	if err != nil {
		return false, fmt.Errorf("connecting to shard %s: %w", id.Shard, err)
	}
	post, err := client.GetPost(ctx, id)
	if err != nil {
		return false, fmt.Errorf("pulling %s from shard %s: %w", rawID, id.Shard, err)
	}

	if _, err := a.state.InsertFeed(rawID, post); err != nil {
		return false, fmt.Errorf("caching %s: %w", rawID, err)
	}
	a.log.Debug("notice ingested", "kind", string(kind), "post_id", rawID)

	if kind == PostNotice {
		return true, nil
	}

	// The owner resharing this post makes the actor responsible for
	// keeping its own followers informed. Only fires on first ingestion,
	// which bounds propagation depth to one extra hop through resharers.
	owner, err := a.Owner()
	if err != nil {
		return true, err
	}
	if !post.HasReposted(owner) {
		return true, nil
	}
	if err := a.fanout.Repropagate(ctx, kind, owner, id); err != nil {
		return true, fmt.Errorf("resharer fan-out for %s: %w", rawID, err)
	}
	return true, nil
}
