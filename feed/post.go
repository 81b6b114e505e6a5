package feed

// Repost records a single reshare of a post. Each identity appears at most
// once in a post's repost set.
type Repost struct {
	User      Identity `json:"user"`
	CreatedAt int64    `json:"created_at"`
}

// Like records a single like. Each identity appears at most once in a
// post's like set.
type Like struct {
	User      Identity `json:"user"`
	CreatedAt int64    `json:"created_at"`
}

// Comment is one entry of a post's append-only comment log. The same user
// may comment repeatedly.
type Comment struct {
	User      Identity `json:"user"`
	Content   string   `json:"content"`
	CreatedAt int64    `json:"created_at"`
}

// Post is the authoritative record of a single piece of content. It is
// owned exclusively by the authoring actor until the durable copy is
// accepted by a storage shard; after that the shard is the system of
// record for reads originating elsewhere, and the authoring actor's copy
// is used for authorization and local mutation.
type Post struct {
	// ID is the composite global id, re-derivable by parsing. See PostID.
	ID string `json:"post_id"`

	// FeedActor is the identity of the feed actor that authored the post,
	// included so remote holders can validate provenance.
	FeedActor Identity `json:"feed_actor"`

	// Index is the per-author sequence number, gapless and ascending from
	// zero, never reused.
	Index uint64 `json:"index"`

	// User is the identity of the caller who created the post.
	User Identity `json:"user"`

	Content   string   `json:"content"`
	MediaRefs []string `json:"media_refs,omitempty"`

	Reposts  []Repost  `json:"reposts"`
	Likes    []Like    `json:"likes"`
	Comments []Comment `json:"comments"`

	// CreatedAt is assigned at creation in Unix nanoseconds, immutable.
	CreatedAt int64 `json:"created_at"`
}

// HasReposted reports whether user appears in the repost set.
func (p *Post) HasReposted(user Identity) bool {
	for _, r := range p.Reposts {
		if r.User == user {
			return true
		}
	}
	return false
}

// HasLiked reports whether user appears in the like set.
func (p *Post) HasLiked(user Identity) bool {
	for _, l := range p.Likes {
		if l.User == user {
			return true
		}
	}
	return false
}

// Clone returns a deep copy. Stores hand out clones so that callers can
// never mutate cached state in place.
func (p *Post) Clone() *Post {
	clone := *p
	clone.MediaRefs = append([]string(nil), p.MediaRefs...)
	clone.Reposts = append([]Repost(nil), p.Reposts...)
	clone.Likes = append([]Like(nil), p.Likes...)
	clone.Comments = append([]Comment(nil), p.Comments...)
	return &clone
}
