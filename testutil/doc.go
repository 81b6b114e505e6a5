/*
Package testutil provides testing utilities for the Proton feed system.

It contains fixture generators and a pre-wired actor harness so test
writers can focus on test logic rather than setup.

# Post Fixtures

Posts are generated with option functions:

	post := testutil.NewTestPost()

	custom := testutil.NewTestPost(
	    testutil.WithID("shard-a#alice#3"),
	    testutil.WithUser("alice"),
	    testutil.WithCreatedAt(42),
	)

# Actor Harness

The harness wires a feed.Actor to an in-memory state store and mock
collaborators, all reachable as fields for assertions:

	h := testutil.NewActorHarness(t, testutil.WithOwner("alice"))
	h.Follow("alice", "bob", "carol")

	id, err := h.Actor.CreatePost(ctx, "alice", "hello", nil)
	require.NoError(t, err)
	require.Equal(t, 1, h.Shard.Calls("StorePost"))
*/
package testutil
