package feed

import (
	"context"
	"fmt"
	"log/slog"
)

// NoticeKind selects which notifier collaborator a notice goes to.
type NoticeKind string

const (
	PostNotice    NoticeKind = "post"
	CommentNotice NoticeKind = "comment"
	LikeNotice    NoticeKind = "like"
)

// FanoutDispatcher resolves audiences via the social graph and pushes
// content-id-only notices to the notifier collaborators. Failures are not
// retried here; the caller decides whether they abort the triggering
// operation.
type FanoutDispatcher struct {
	Graph           SocialGraph
	PostNotifier    Notifier
	CommentNotifier Notifier
	LikeNotifier    Notifier
	Log             *slog.Logger
}

func (d *FanoutDispatcher) notifier(kind NoticeKind) Notifier {
	switch kind {
	case CommentNotice:
		return d.CommentNotifier
	case LikeNotice:
		return d.LikeNotifier
	default:
		return d.PostNotifier
	}
}

// NotifyFollowers performs primary delivery: the author's followers are
// resolved and, if any exist, receive a notice referencing id. No
// followers means no notifier call at all.
func (d *FanoutDispatcher) NotifyFollowers(ctx context.Context, author Identity, id PostID) error {
	followers, err := d.Graph.Followers(ctx, author)
	if err != nil {
		return fmt.Errorf("resolving followers of %s: %w", author, err)
	}
	if len(followers) == 0 {
		return nil
	}

	if err := d.PostNotifier.Notify(ctx, followers, id); err != nil {
		return fmt.Errorf("post notifier: %w", err)
	}
	d.Log.Debug("primary fan-out delivered", "post_id", id.String(), "audience", len(followers))
	return nil
}

// NotifyRepostAudience performs secondary delivery for a fresh repost: the
// resharer's followers minus the original author, with the resharer itself
// prepended, receive a notice through the post notifier.
func (d *FanoutDispatcher) NotifyRepostAudience(ctx context.Context, resharer, originalAuthor Identity, id PostID) error {
	followers, err := d.Graph.Followers(ctx, resharer)
	if err != nil {
		return fmt.Errorf("resolving followers of %s: %w", resharer, err)
	}

	audience := make([]Identity, 0, len(followers)+1)
	audience = append(audience, resharer)
	for _, follower := range followers {
		if follower == originalAuthor {
			continue
		}
		audience = append(audience, follower)
	}

	if err := d.PostNotifier.NotifyResharer(ctx, audience, id); err != nil {
		return fmt.Errorf("post notifier: %w", err)
	}
	d.Log.Debug("repost fan-out delivered", "post_id", id.String(), "audience", len(audience))
	return nil
}

// Repropagate forwards a comment or like notice to the local owner's own
// followers after the owner's actor ingested a post it had reshared.
func (d *FanoutDispatcher) Repropagate(ctx context.Context, kind NoticeKind, owner Identity, id PostID) error {
	followers, err := d.Graph.Followers(ctx, owner)
	if err != nil {
		return fmt.Errorf("resolving followers of %s: %w", owner, err)
	}

	if err := d.notifier(kind).NotifyResharer(ctx, followers, id); err != nil {
		return fmt.Errorf("%s notifier: %w", kind, err)
	}
	d.Log.Debug("resharer fan-out delivered", "kind", string(kind), "post_id", id.String(), "audience", len(followers))
	return nil
}
