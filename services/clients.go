package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/NeutronStarPRO/Proton/feed"
)

func defaultHTTPClient(client *http.Client) *http.Client {
	if client != nil {
		return client
	}
	return &http.Client{Timeout: 10 * time.Second}
}

func postJSON(ctx context.Context, client *http.Client, endpoint string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s returned status %d: %s", endpoint, resp.StatusCode, bytes.TrimSpace(msg))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func getJSON(ctx context.Context, client *http.Client, endpoint string, out any) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, err
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return resp.StatusCode, fmt.Errorf("%s returned status %d: %s", endpoint, resp.StatusCode, bytes.TrimSpace(msg))
	}
	return resp.StatusCode, json.NewDecoder(resp.Body).Decode(out)
}

// ShardHTTPClient implements feed.ShardClient against a storage shard
// service endpoint.
type ShardHTTPClient struct {
	endpoint string
	client   *http.Client
}

// NewShardHTTPClient creates a client for the shard at endpoint. A nil
// http client gets a default with a 10s timeout.
func NewShardHTTPClient(endpoint string, client *http.Client) *ShardHTTPClient {
	return &ShardHTTPClient{endpoint: endpoint, client: defaultHTTPClient(client)}
}

func (c *ShardHTTPClient) ack(ctx context.Context, endpoint string, in any) error {
	var ack AckResponse
	if err := postJSON(ctx, c.client, endpoint, in, &ack); err != nil {
		return err
	}
	if !ack.OK {
		return feed.ErrShardRejected
	}
	return nil
}

func (c *ShardHTTPClient) postURL(id feed.PostID, suffix string) string {
	return c.endpoint + "/posts/" + url.PathEscape(id.String()) + suffix
}

// StorePost replicates a freshly authored post to the shard.
func (c *ShardHTTPClient) StorePost(ctx context.Context, post *feed.Post) error {
	return c.ack(ctx, c.endpoint+"/store", &StorePostRequest{Post: post})
}

// UpdateRepostSet replaces the post's repost set on the shard.
func (c *ShardHTTPClient) UpdateRepostSet(ctx context.Context, id feed.PostID, reposts []feed.Repost) error {
	return c.ack(ctx, c.postURL(id, "/reposts"), &UpdateRepostsRequest{Reposts: reposts})
}

// UpdateCommentLog replaces the post's comment log on the shard.
func (c *ShardHTTPClient) UpdateCommentLog(ctx context.Context, id feed.PostID, comments []feed.Comment) error {
	return c.ack(ctx, c.postURL(id, "/comments"), &UpdateCommentsRequest{Comments: comments})
}

// UpdateLikeSet replaces the post's like set on the shard.
func (c *ShardHTTPClient) UpdateLikeSet(ctx context.Context, id feed.PostID, likes []feed.Like) error {
	return c.ack(ctx, c.postURL(id, "/likes"), &UpdateLikesRequest{Likes: likes})
}

// GetPost fetches the durable copy held by the shard.
func (c *ShardHTTPClient) GetPost(ctx context.Context, id feed.PostID) (*feed.Post, error) {
	var post feed.Post
	status, err := getJSON(ctx, c.client, c.postURL(id, ""), &post)
	if err != nil {
		if status == http.StatusNotFound {
			return nil, fmt.Errorf("%w: %s", feed.ErrUnknownPost, id)
		}
		return nil, err
	}
	return &post, nil
}

// SocialGraphHTTPClient implements feed.SocialGraph against a social graph
// service endpoint.
type SocialGraphHTTPClient struct {
	endpoint string
	client   *http.Client
}

// NewSocialGraphHTTPClient creates a social graph client.
func NewSocialGraphHTTPClient(endpoint string, client *http.Client) *SocialGraphHTTPClient {
	return &SocialGraphHTTPClient{endpoint: endpoint, client: defaultHTTPClient(client)}
}

// Followers resolves the follower set of user.
func (c *SocialGraphHTTPClient) Followers(ctx context.Context, user feed.Identity) ([]feed.Identity, error) {
	var resp FollowersResponse
	if _, err := getJSON(ctx, c.client, c.endpoint+"/followers/"+user.String(), &resp); err != nil {
		return nil, err
	}

	followers := make([]feed.Identity, 0, len(resp.Followers))
	for _, raw := range resp.Followers {
		id, err := feed.ParseIdentity(raw)
		if err != nil {
			return nil, fmt.Errorf("follower of %s: %w", user, err)
		}
		followers = append(followers, id)
	}
	return followers, nil
}

// NotifierHTTPClient implements feed.Notifier against a notifier service
// endpoint.
type NotifierHTTPClient struct {
	endpoint string
	client   *http.Client
}

// NewNotifierHTTPClient creates a notifier client.
func NewNotifierHTTPClient(endpoint string, client *http.Client) *NotifierHTTPClient {
	return &NotifierHTTPClient{endpoint: endpoint, client: defaultHTTPClient(client)}
}

func (c *NotifierHTTPClient) deliver(ctx context.Context, path string, audience []feed.Identity, id feed.PostID) error {
	raw := make([]string, len(audience))
	for i, member := range audience {
		raw[i] = member.String()
	}
	return postJSON(ctx, c.client, c.endpoint+path, &NotifyRequest{Audience: raw, PostID: id.String()}, nil)
}

// Notify delivers a primary notice.
func (c *NotifierHTTPClient) Notify(ctx context.Context, audience []feed.Identity, id feed.PostID) error {
	return c.deliver(ctx, "/notify", audience, id)
}

// NotifyResharer delivers a secondary notice on behalf of a resharer.
func (c *NotifierHTTPClient) NotifyResharer(ctx context.Context, audience []feed.Identity, id feed.PostID) error {
	return c.deliver(ctx, "/notify/resharer", audience, id)
}

// DirectoryHTTPClient talks to the root directory service. It implements
// feed.Directory.
type DirectoryHTTPClient struct {
	endpoint string
	client   *http.Client
}

// NewDirectoryHTTPClient creates a directory client.
func NewDirectoryHTTPClient(endpoint string, client *http.Client) *DirectoryHTTPClient {
	return &DirectoryHTTPClient{endpoint: endpoint, client: defaultHTTPClient(client)}
}

// AvailableShard asks the directory for a shard accepting new content.
func (c *DirectoryHTTPClient) AvailableShard(ctx context.Context) (feed.Identity, error) {
	var info ShardInfo
	status, err := getJSON(ctx, c.client, c.endpoint+"/shards/available", &info)
	if err != nil {
		if status == http.StatusNotFound {
			return "", feed.ErrNoShardAvailable
		}
		return "", err
	}
	return feed.ParseIdentity(info.ID)
}

// ShardEndpoint resolves a shard identity to its HTTP endpoint.
func (c *DirectoryHTTPClient) ShardEndpoint(ctx context.Context, id feed.Identity) (string, error) {
	var info ShardInfo
	status, err := getJSON(ctx, c.client, c.endpoint+"/shards/"+id.String(), &info)
	if err != nil {
		if status == http.StatusNotFound {
			return "", fmt.Errorf("shard %s not registered", id)
		}
		return "", err
	}
	return info.Endpoint, nil
}

// RegisterShard registers a shard with the directory using the admin
// token.
func (c *DirectoryHTTPClient) RegisterShard(ctx context.Context, token string, info *ShardInfo) error {
	body, err := json.Marshal(&RegisterShardRequest{ID: info.ID, Endpoint: info.Endpoint})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/shards", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("directory returned status %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}
	return nil
}
