package feed

import (
	"errors"
	"fmt"
)

var (
	// ErrNotOwner is returned when a non-owner invokes an owner-gated
	// operation. Rejected before any mutation occurs.
	ErrNotOwner = errors.New("caller is not the owner")

	// ErrUnknownPost is returned when a post id does not resolve in the
	// store being consulted.
	ErrUnknownPost = errors.New("unknown post")

	// ErrNoShardAvailable is returned when the root directory has no
	// storage shard to hand out.
	ErrNoShardAvailable = errors.New("no storage shard available")

	// ErrShardRejected is returned when a storage shard does not
	// acknowledge a replication call.
	ErrShardRejected = errors.New("shard did not acknowledge")
)

// FanoutError reports a fan-out failure after earlier steps of the
// operation committed. Replicated records whether the shard replication
// had already succeeded, so callers can tell "stored but never announced"
// apart from a clean failure.
type FanoutError struct {
	PostID     PostID
	Replicated bool
	Err        error
}

func (e *FanoutError) Error() string {
	return fmt.Sprintf("fan-out for %s failed (replicated=%v): %v", e.PostID, e.Replicated, e.Err)
}

func (e *FanoutError) Unwrap() error { return e.Err }
