package store

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/NeutronStarPRO/Proton/feed"
)

func testPost(id string, seq uint64) *feed.Post {
	return &feed.Post{
		ID:        id,
		FeedActor: "alice-feed",
		Index:     seq,
		User:      "alice",
		Content:   "content",
		Reposts:   []feed.Repost{},
		Likes:     []feed.Like{},
		Comments:  []feed.Comment{},
		CreatedAt: int64(seq) + 1,
	}
}

// both runs fn against each StateStore implementation.
func both(t *testing.T, fn func(t *testing.T, state feed.StateStore)) {
	t.Run("memory", func(t *testing.T) {
		state := NewMemoryStore()
		defer state.Close()
		fn(t, state)
	})
	t.Run("pebble", func(t *testing.T) {
		state, err := OpenPebble(t.TempDir())
		require.NoError(t, err)
		defer state.Close()
		fn(t, state)
	})
}

func TestReservePostIndexGapless(t *testing.T) {
	both(t, func(t *testing.T, state feed.StateStore) {
		for want := uint64(0); want < 5; want++ {
			seq, err := state.ReservePostIndex()
			require.NoError(t, err)
			require.Equal(t, want, seq)
		}
	})
}

func TestPostStoreRoundTrip(t *testing.T) {
	both(t, func(t *testing.T, state feed.StateStore) {
		_, err := state.GetPost(0)
		require.ErrorIs(t, err, feed.ErrUnknownPost)

		require.NoError(t, state.PutPost(testPost("shard-a#alice#0", 0)))
		require.NoError(t, state.PutPost(testPost("shard-a#alice#1", 1)))

		post, err := state.GetPost(1)
		require.NoError(t, err)
		require.Equal(t, "shard-a#alice#1", post.ID)

		count, err := state.PostCount()
		require.NoError(t, err)
		require.Equal(t, uint64(2), count)

		posts, err := state.AllPosts()
		require.NoError(t, err)
		require.Len(t, posts, 2)
		require.Equal(t, uint64(0), posts[0].Index)
		require.Equal(t, uint64(1), posts[1].Index)
	})
}

func TestPutPostReplacesInPlace(t *testing.T) {
	both(t, func(t *testing.T, state feed.StateStore) {
		require.NoError(t, state.PutPost(testPost("shard-a#alice#0", 0)))

		updated := testPost("shard-a#alice#0", 0)
		updated.Likes = []feed.Like{{User: "bob", CreatedAt: 9}}
		require.NoError(t, state.PutPost(updated))

		post, err := state.GetPost(0)
		require.NoError(t, err)
		require.Len(t, post.Likes, 1)

		count, err := state.PostCount()
		require.NoError(t, err)
		require.Equal(t, uint64(1), count)
	})
}

func TestFeedCacheFirstWriterWins(t *testing.T) {
	both(t, func(t *testing.T, state feed.StateStore) {
		first := testPost("shard-a#bob#0", 0)
		first.Content = "first"

		inserted, err := state.InsertFeed(first.ID, first)
		require.NoError(t, err)
		require.True(t, inserted)

		second := testPost("shard-a#bob#0", 0)
		second.Content = "second"
		inserted, err = state.InsertFeed(second.ID, second)
		require.NoError(t, err)
		require.False(t, inserted)

		cached, err := state.GetFeed(first.ID)
		require.NoError(t, err)
		require.Equal(t, "first", cached.Content)

		contains, err := state.ContainsFeed(first.ID)
		require.NoError(t, err)
		require.True(t, contains)

		contains, err = state.ContainsFeed("shard-a#bob#1")
		require.NoError(t, err)
		require.False(t, contains)

		count, err := state.FeedCount()
		require.NoError(t, err)
		require.Equal(t, uint64(1), count)
	})
}

// feedUpserter is the upsert surface the storage-shard service relies on.
type feedUpserter interface {
	feed.StateStore
	PutFeed(id string, post *feed.Post) error
}

func TestPutFeedUpserts(t *testing.T) {
	both(t, func(t *testing.T, state feed.StateStore) {
		upserter := state.(feedUpserter)

		first := testPost("shard-a#bob#0", 0)
		first.Content = "first"
		require.NoError(t, upserter.PutFeed(first.ID, first))

		second := testPost("shard-a#bob#0", 0)
		second.Content = "second"
		require.NoError(t, upserter.PutFeed(second.ID, second))

		cached, err := state.GetFeed(first.ID)
		require.NoError(t, err)
		require.Equal(t, "second", cached.Content)
	})
}

func TestUnannouncedMarker(t *testing.T) {
	both(t, func(t *testing.T, state feed.StateStore) {
		marked, err := state.IsUnannounced(3)
		require.NoError(t, err)
		require.False(t, marked)

		require.NoError(t, state.MarkUnannounced(3))
		marked, err = state.IsUnannounced(3)
		require.NoError(t, err)
		require.True(t, marked)

		require.NoError(t, state.ClearUnannounced(3))
		marked, err = state.IsUnannounced(3)
		require.NoError(t, err)
		require.False(t, marked)
	})
}

func TestMetaSlots(t *testing.T) {
	both(t, func(t *testing.T, state feed.StateStore) {
		_, ok, err := state.GetMeta(feed.MetaOwner)
		require.NoError(t, err)
		require.False(t, ok)

		require.NoError(t, state.SetMeta(feed.MetaOwner, "alice"))
		require.NoError(t, state.SetMeta(feed.MetaShard, "shard-a"))

		value, ok, err := state.GetMeta(feed.MetaOwner)
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, "alice", value)

		require.NoError(t, state.SetMeta(feed.MetaOwner, "bob"))
		value, _, err = state.GetMeta(feed.MetaOwner)
		require.NoError(t, err)
		require.Equal(t, "bob", value)
	})
}

func TestMemoryStoreHandsOutClones(t *testing.T) {
	state := NewMemoryStore()
	require.NoError(t, state.PutPost(testPost("shard-a#alice#0", 0)))

	post, err := state.GetPost(0)
	require.NoError(t, err)
	post.Content = "mutated"

	fresh, err := state.GetPost(0)
	require.NoError(t, err)
	require.Equal(t, "content", fresh.Content)
}

func TestPebbleStateSurvivesReopen(t *testing.T) {
	dir := t.TempDir()

	state, err := OpenPebble(dir)
	require.NoError(t, err)

	seq, err := state.ReservePostIndex()
	require.NoError(t, err)
	require.Equal(t, uint64(0), seq)

	require.NoError(t, state.PutPost(testPost("shard-a#alice#0", 0)))
	_, err = state.InsertFeed("shard-a#bob#7", testPost("shard-a#bob#7", 7))
	require.NoError(t, err)
	require.NoError(t, state.SetMeta(feed.MetaOwner, "alice"))
	require.NoError(t, state.MarkUnannounced(0))
	require.NoError(t, state.Close())

	reopened, err := OpenPebble(dir)
	require.NoError(t, err)
	defer reopened.Close()

	// The index counter continues where it left off.
	seq, err = reopened.ReservePostIndex()
	require.NoError(t, err)
	require.Equal(t, uint64(1), seq)

	post, err := reopened.GetPost(0)
	require.NoError(t, err)
	require.Equal(t, "shard-a#alice#0", post.ID)

	contains, err := reopened.ContainsFeed("shard-a#bob#7")
	require.NoError(t, err)
	require.True(t, contains)

	owner, ok, err := reopened.GetMeta(feed.MetaOwner)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "alice", owner)

	marked, err := reopened.IsUnannounced(0)
	require.NoError(t, err)
	require.True(t, marked)
}

func TestPebblePostOrderAtScale(t *testing.T) {
	state, err := OpenPebble(t.TempDir())
	require.NoError(t, err)
	defer state.Close()

	// Past 10 posts the zero padding is what keeps byte order numeric.
	for seq := uint64(0); seq < 15; seq++ {
		require.NoError(t, state.PutPost(testPost("x", seq)))
	}

	posts, err := state.AllPosts()
	require.NoError(t, err)
	require.Len(t, posts, 15)
	for i, post := range posts {
		require.Equal(t, uint64(i), post.Index)
	}
}
