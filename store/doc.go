// Package store provides the durable state backends for a feed actor: the
// authoritative post store (ordered by sequence number), the materialized
// feed cache (keyed by global post id) and the named singleton slots, all
// behind the feed.StateStore interface.
//
// PebbleStore persists everything in a single Pebble database using
// key-prefix namespaces and survives process restart. MemoryStore is the
// in-memory twin for tests and throwaway deployments.
package store
