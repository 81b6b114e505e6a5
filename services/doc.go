// Package services provides the HTTP layer of the Proton feed system.
//
// Three services live here, all built on api/httpserver.BaseServer:
//
//   - FeedService: the public surface of a single feed actor. Authoring
//     and mutation endpoints, notice ingestion endpoints, and read
//     accessors over the authored store and the materialized feed cache.
//   - Directory: the root directory. Storage shards register here and
//     feed actors ask it for an available shard. Registrations persist
//     through a DirectoryStore (PostgreSQL or in-memory).
//   - ShardService: a reference storage shard holding durable post
//     copies, exercised by the feed actor's replication calls. After a
//     comment or like update commits, the shard pushes a notice for the
//     post to the author's followers; feed actors only fan out posts and
//     reposts themselves.
//
// The package also contains the HTTP clients the feed actor uses to talk
// to its collaborators (shards, the social graph, the notifier services
// and the directory) and the ShardResolver that turns shard identities
// parsed out of post ids into connected clients.
//
// Caller identity on feed endpoints is carried in the X-Caller-Identity
// header. Authenticating that header is a deployment concern (gateway,
// mTLS) and out of scope here.
package services
