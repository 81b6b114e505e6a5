package services

import (
	"github.com/NeutronStarPRO/Proton/feed"
)

// CallerHeader carries the caller identity on feed endpoints.
const CallerHeader = "X-Caller-Identity"

// CreatePostRequest is the body of POST /posts.
type CreatePostRequest struct {
	Content   string   `json:"content"`
	MediaRefs []string `json:"media_refs,omitempty"`
}

// CreatePostResponse carries the new post's global id. Warning is set when
// the post was stored and replicated but its fan-out failed.
type CreatePostResponse struct {
	PostID  string `json:"post_id"`
	Warning string `json:"warning,omitempty"`
}

// MutationRequest is the body of the repost, comment and like endpoints.
// Content is only meaningful for comments.
type MutationRequest struct {
	PostID  string `json:"post_id"`
	Content string `json:"content,omitempty"`
}

// MutationResponse reports the outcome of a repost, comment or like.
type MutationResponse struct {
	Applied bool   `json:"applied"`
	Status  string `json:"status"`
	Reason  string `json:"reason,omitempty"`
	Warning string `json:"warning,omitempty"`
}

// NoticeRequest is the body of the single-notice ingestion endpoints.
type NoticeRequest struct {
	PostID string `json:"post_id"`
}

// NoticeBatchRequest is the body of the batch ingestion endpoints.
type NoticeBatchRequest struct {
	PostIDs []string `json:"post_ids"`
}

// NoticeResponse reports whether a notice was ingested (false means the id
// was already cached and the call was a no-op).
type NoticeResponse struct {
	Ingested bool   `json:"ingested"`
	Warning  string `json:"warning,omitempty"`
}

// NotifyRequest is what a feed actor posts to a notifier service: an
// explicit audience and an opaque post reference, never the payload.
type NotifyRequest struct {
	Audience []string `json:"audience"`
	PostID   string   `json:"post_id"`
}

// FollowersResponse is the social graph's answer to GET /followers/{identity}.
type FollowersResponse struct {
	Followers []string `json:"followers"`
}

// StorePostRequest replicates a freshly authored post to a shard.
type StorePostRequest struct {
	Post *feed.Post `json:"post"`
}

// UpdateRepostsRequest replaces a post's repost set on a shard.
type UpdateRepostsRequest struct {
	Reposts []feed.Repost `json:"reposts"`
}

// UpdateCommentsRequest replaces a post's comment log on a shard.
type UpdateCommentsRequest struct {
	Comments []feed.Comment `json:"comments"`
}

// UpdateLikesRequest replaces a post's like set on a shard.
type UpdateLikesRequest struct {
	Likes []feed.Like `json:"likes"`
}

// AckResponse is the shard's acknowledgement of a replication call.
type AckResponse struct {
	OK bool `json:"ok"`
}

// PostListResponse wraps a list of posts.
type PostListResponse struct {
	Posts []*feed.Post `json:"posts"`
}

// CountResponse wraps a single count.
type CountResponse struct {
	Count uint64 `json:"count"`
}

// ShardResponse reports the feed actor's cached active shard.
type ShardResponse struct {
	Shard  string `json:"shard,omitempty"`
	Cached bool   `json:"cached"`
}

// OwnerResponse reports the feed actor's administrative owner.
type OwnerResponse struct {
	Owner string `json:"owner"`
}

// SetOwnerRequest is the body of PUT /owner.
type SetOwnerRequest struct {
	Owner string `json:"owner"`
}

// StatusResponse is the feed actor's one-shot status report.
type StatusResponse struct {
	Self      string `json:"self"`
	Owner     string `json:"owner"`
	Shard     string `json:"shard,omitempty"`
	PostCount uint64 `json:"post_count"`
	FeedCount uint64 `json:"feed_count"`
}

// ShardInfo describes a storage shard registered with the directory.
type ShardInfo struct {
	ID       string `json:"id"`
	Endpoint string `json:"endpoint"`
}

// RegisterShardRequest is a shard's registration with the directory.
type RegisterShardRequest struct {
	ID       string `json:"id"`
	Endpoint string `json:"endpoint"`
}

// RegisterShardResponse confirms a shard registration.
type RegisterShardResponse struct {
	Success bool   `json:"success"`
	ID      string `json:"id"`
}

// ShardListResponse lists registered shards.
type ShardListResponse struct {
	Shards []*ShardInfo `json:"shards"`
}
