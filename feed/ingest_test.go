package feed_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/NeutronStarPRO/Proton/feed"
	"github.com/NeutronStarPRO/Proton/testutil"
)

func remotePost(id string, opts ...testutil.PostOption) *feed.Post {
	return testutil.NewTestPost(append([]testutil.PostOption{testutil.WithID(id), testutil.WithUser("bob")}, opts...)...)
}

func TestReceiveFeedNoticeIngestsOnce(t *testing.T) {
	ctx := context.Background()
	h := testutil.NewActorHarness(t)
	h.Shard.Put(remotePost("shard-a#bob#0"))

	ingested, err := h.Actor.ReceiveFeedNotice(ctx, "shard-a#bob#0")
	require.NoError(t, err)
	require.True(t, ingested)
	require.Equal(t, 1, h.Shard.Calls("GetPost"))

	entry, err := h.Actor.FeedEntry("shard-a#bob#0")
	require.NoError(t, err)
	require.Equal(t, feed.Identity("bob"), entry.User)

	// A repeated notice is dropped by the cache-membership check without
	// touching the shard again.
	ingested, err = h.Actor.ReceiveFeedNotice(ctx, "shard-a#bob#0")
	require.NoError(t, err)
	require.False(t, ingested)
	require.Equal(t, 1, h.Shard.Calls("GetPost"))

	count, err := h.Actor.FeedCount()
	require.NoError(t, err)
	require.Equal(t, uint64(1), count)
}

func TestReceiveFeedNoticeMalformedID(t *testing.T) {
	ctx := context.Background()
	h := testutil.NewActorHarness(t)

	_, err := h.Actor.ReceiveFeedNotice(ctx, "junk")
	require.ErrorIs(t, err, feed.ErrMalformedPostID)
}

func TestReceiveFeedNoticeFetchFailure(t *testing.T) {
	ctx := context.Background()
	h := testutil.NewActorHarness(t)

	ingested, err := h.Actor.ReceiveFeedNotice(ctx, "shard-a#bob#0")
	require.ErrorIs(t, err, feed.ErrUnknownPost)
	require.False(t, ingested)

	// Nothing was cached, so a later notice retries the pull.
	h.Shard.Put(remotePost("shard-a#bob#0"))
	ingested, err = h.Actor.ReceiveFeedNotice(ctx, "shard-a#bob#0")
	require.NoError(t, err)
	require.True(t, ingested)
}

func TestReceiveFeedNoticeBatchIndependence(t *testing.T) {
	ctx := context.Background()
	h := testutil.NewActorHarness(t)
	h.Shard.Put(remotePost("shard-a#bob#0"))
	h.Shard.Put(remotePost("shard-a#bob#1"))

	// Duplicates and failures inside a batch do not disturb the rest.
	h.Actor.ReceiveFeedNoticeBatch(ctx, []string{
		"shard-a#bob#0",
		"shard-a#bob#0",
		"not-an-id",
		"shard-a#carol#9",
		"shard-a#bob#1",
	})

	count, err := h.Actor.FeedCount()
	require.NoError(t, err)
	require.Equal(t, uint64(2), count)
	require.Equal(t, 3, h.Shard.Calls("GetPost"))
}

func TestCommentNoticeRepropagatesWhenOwnerReshared(t *testing.T) {
	ctx := context.Background()
	h := testutil.NewActorHarness(t)
	h.Follow("alice", "dave", "erin")
	h.Shard.Put(remotePost("shard-a#bob#0", testutil.WithReposts("alice", "carol")))

	ingested, err := h.Actor.ReceiveCommentNotice(ctx, "shard-a#bob#0")
	require.NoError(t, err)
	require.True(t, ingested)

	deliveries := h.CommentNotifier.Deliveries()
	require.Len(t, deliveries, 1)
	require.True(t, deliveries[0].Resharer)
	require.Equal(t, []feed.Identity{"dave", "erin"}, deliveries[0].Audience)
	require.Equal(t, "shard-a#bob#0", deliveries[0].PostID.String())

	// Only the first ingestion forwards; the duplicate is silent.
	_, err = h.Actor.ReceiveCommentNotice(ctx, "shard-a#bob#0")
	require.NoError(t, err)
	require.Len(t, h.CommentNotifier.Deliveries(), 1)
}

func TestCommentNoticeNoRepropagationWithoutReshare(t *testing.T) {
	ctx := context.Background()
	h := testutil.NewActorHarness(t)
	h.Follow("alice", "dave")
	h.Shard.Put(remotePost("shard-a#bob#0", testutil.WithReposts("carol")))

	ingested, err := h.Actor.ReceiveCommentNotice(ctx, "shard-a#bob#0")
	require.NoError(t, err)
	require.True(t, ingested)
	require.Empty(t, h.CommentNotifier.Deliveries())
}

func TestLikeNoticeRepropagatesThroughLikeNotifier(t *testing.T) {
	ctx := context.Background()
	h := testutil.NewActorHarness(t)
	h.Follow("alice", "dave")
	h.Shard.Put(remotePost("shard-a#bob#0", testutil.WithReposts("alice")))

	ingested, err := h.Actor.ReceiveLikeNotice(ctx, "shard-a#bob#0")
	require.NoError(t, err)
	require.True(t, ingested)

	require.Len(t, h.LikeNotifier.Deliveries(), 1)
	require.Empty(t, h.CommentNotifier.Deliveries())
	require.Empty(t, h.PostNotifier.Deliveries())
}

func TestPostNoticeNeverRepropagates(t *testing.T) {
	ctx := context.Background()
	h := testutil.NewActorHarness(t)
	h.Follow("alice", "dave")
	h.Shard.Put(remotePost("shard-a#bob#0", testutil.WithReposts("alice")))

	ingested, err := h.Actor.ReceiveFeedNotice(ctx, "shard-a#bob#0")
	require.NoError(t, err)
	require.True(t, ingested)

	require.Empty(t, h.PostNotifier.Deliveries())
	require.Empty(t, h.CommentNotifier.Deliveries())
	require.Empty(t, h.LikeNotifier.Deliveries())
}

func TestCommentNoticeRepropagationFailureStillIngests(t *testing.T) {
	ctx := context.Background()
	h := testutil.NewActorHarness(t)
	h.Follow("alice", "dave")
	h.Shard.Put(remotePost("shard-a#bob#0", testutil.WithReposts("alice")))

	h.CommentNotifier.NotifyResharerFn = func(ctx context.Context, audience []feed.Identity, id feed.PostID) error {
		return errors.New("notifier down")
	}

	ingested, err := h.Actor.ReceiveCommentNotice(ctx, "shard-a#bob#0")
	require.Error(t, err)
	require.True(t, ingested)

	cached, err := h.Actor.FeedEntry("shard-a#bob#0")
	require.NoError(t, err)
	require.NotNil(t, cached)
}

func TestLatestFeedOrdering(t *testing.T) {
	ctx := context.Background()
	h := testutil.NewActorHarness(t)
	h.Shard.Put(remotePost("shard-a#bob#0", testutil.WithCreatedAt(300)))
	h.Shard.Put(remotePost("shard-a#bob#1", testutil.WithCreatedAt(100)))
	h.Shard.Put(remotePost("shard-a#bob#2", testutil.WithCreatedAt(200)))

	for _, id := range []string{"shard-a#bob#0", "shard-a#bob#1", "shard-a#bob#2"} {
		_, err := h.Actor.ReceiveFeedNotice(ctx, id)
		require.NoError(t, err)
	}

	latest, err := h.Actor.LatestFeed(2)
	require.NoError(t, err)
	require.Len(t, latest, 2)
	require.Equal(t, int64(300), latest[0].CreatedAt)
	require.Equal(t, int64(200), latest[1].CreatedAt)

	// Asking for more than exists returns everything, still ordered.
	all, err := h.Actor.LatestFeed(10)
	require.NoError(t, err)
	require.Len(t, all, 3)
	require.Equal(t, int64(100), all[2].CreatedAt)

	none, err := h.Actor.LatestFeed(0)
	require.NoError(t, err)
	require.Empty(t, none)
}
