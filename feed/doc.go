// Package feed implements the authoring and distribution core of a Proton
// feed actor: a single logical actor that owns a user's posts, fans new
// content out to followers, and materializes a local read cache of content
// it has been notified about.
//
// # Architecture
//
// The package is transport-agnostic. The Actor type holds the actor's
// durable state behind the StateStore interface and talks to its
// collaborators (storage shards, the social graph, the fan-out notifiers
// and the root directory) through the interfaces defined in interfaces.go.
// The HTTP wiring for all of these lives in the services package.
//
// # Distribution protocol
//
// Content is authored on one actor, durably replicated to an external,
// dynamically chosen storage shard, and then pushed by reference only to a
// chain of notifier actors, which cause remote peers to pull and locally
// materialize the content:
//
//  1. A mutation (post, repost, comment, like) updates the local
//     authoritative store.
//  2. The updated record is replicated to the storage shard that the post
//     id names. A replication failure aborts the operation; the local
//     write is retained.
//  3. For posts and reposts the relevant audience is resolved through the
//     social graph and a content-id-only notice is pushed to the post
//     notifier. Comment and like delivery is driven by the shard and the
//     ingestion side.
//
// On the receiving side, notices are deduplicated against the materialized
// cache keyed by global post id. The full post is pulled from its owning
// shard on first sight only; re-notification of a cached id is a no-op.
// When a comment or like notice references a post that the local owner has
// reshared, the actor re-propagates the notice to its own followers, which
// bounds propagation to one extra hop through resharers.
//
// # Addressing
//
// A post id is "shard#author#seq". The shard segment lets any actor
// resolve which shard holds the post without consulting a directory; the
// cost is that shard choice is baked into the id permanently.
//
// # Concurrency
//
// Every mutation and ingestion operation is a sequence of independently
// blocking remote calls. The Actor serializes operations per post id so
// that the at-most-once-per-identity invariants on likes and reposts hold
// under concurrent calls.
package feed
