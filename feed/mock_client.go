package feed

import (
	"context"
	"sync"
)

// MockShardClient implements ShardClient for testing. Behavior is
// customized by setting function fields; every call is counted so tests
// can assert that idempotent rejections make no remote calls.
type MockShardClient struct {
	mu    sync.Mutex
	calls map[string]int

	StorePostFunc        func(ctx context.Context, post *Post) error
	UpdateRepostSetFunc  func(ctx context.Context, id PostID, reposts []Repost) error
	UpdateCommentLogFunc func(ctx context.Context, id PostID, comments []Comment) error
	UpdateLikeSetFunc    func(ctx context.Context, id PostID, likes []Like) error
	GetPostFunc          func(ctx context.Context, id PostID) (*Post, error)

	// Stored collects posts and updates when the default funcs run.
	Stored map[string]*Post
}

// NewMockShardClient creates a mock shard that stores posts in memory and
// acknowledges every call.
func NewMockShardClient() *MockShardClient {
	return &MockShardClient{
		calls:  make(map[string]int),
		Stored: make(map[string]*Post),
	}
}

// Calls returns how many times the named method ran.
func (m *MockShardClient) Calls(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[method]
}

func (m *MockShardClient) record(method string) {
	m.mu.Lock()
	m.calls[method]++
	m.mu.Unlock()
}

func (m *MockShardClient) StorePost(ctx context.Context, post *Post) error {
	m.record("StorePost")
	if m.StorePostFunc != nil {
		return m.StorePostFunc(ctx, post)
	}
	m.mu.Lock()
	m.Stored[post.ID] = post.Clone()
	m.mu.Unlock()
	return nil
}

func (m *MockShardClient) UpdateRepostSet(ctx context.Context, id PostID, reposts []Repost) error {
	m.record("UpdateRepostSet")
	if m.UpdateRepostSetFunc != nil {
		return m.UpdateRepostSetFunc(ctx, id, reposts)
	}
	m.mu.Lock()
	if post, ok := m.Stored[id.String()]; ok {
		post.Reposts = append([]Repost(nil), reposts...)
	}
	m.mu.Unlock()
	return nil
}

func (m *MockShardClient) UpdateCommentLog(ctx context.Context, id PostID, comments []Comment) error {
	m.record("UpdateCommentLog")
	if m.UpdateCommentLogFunc != nil {
		return m.UpdateCommentLogFunc(ctx, id, comments)
	}
	m.mu.Lock()
	if post, ok := m.Stored[id.String()]; ok {
		post.Comments = append([]Comment(nil), comments...)
	}
	m.mu.Unlock()
	return nil
}

func (m *MockShardClient) UpdateLikeSet(ctx context.Context, id PostID, likes []Like) error {
	m.record("UpdateLikeSet")
	if m.UpdateLikeSetFunc != nil {
		return m.UpdateLikeSetFunc(ctx, id, likes)
	}
	m.mu.Lock()
	if post, ok := m.Stored[id.String()]; ok {
		post.Likes = append([]Like(nil), likes...)
	}
	m.mu.Unlock()
	return nil
}

func (m *MockShardClient) GetPost(ctx context.Context, id PostID) (*Post, error) {
	m.record("GetPost")
	if m.GetPostFunc != nil {
		return m.GetPostFunc(ctx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	post, ok := m.Stored[id.String()]
	if !ok {
		return nil, ErrUnknownPost
	}
	return post.Clone(), nil
}

// Put seeds the mock's durable copy directly.
func (m *MockShardClient) Put(post *Post) {
	m.mu.Lock()
	m.Stored[post.ID] = post.Clone()
	m.mu.Unlock()
}

// MockShardConnector hands out the same MockShardClient for every shard
// identity unless a per-identity client was registered.
type MockShardConnector struct {
	Default *MockShardClient

	mu      sync.Mutex
	clients map[Identity]ShardClient
	ShardFn func(ctx context.Context, id Identity) (ShardClient, error)
}

func NewMockShardConnector(defaultClient *MockShardClient) *MockShardConnector {
	return &MockShardConnector{
		Default: defaultClient,
		clients: make(map[Identity]ShardClient),
	}
}

// Register binds a shard identity to a specific client.
func (m *MockShardConnector) Register(id Identity, client ShardClient) {
	m.mu.Lock()
	m.clients[id] = client
	m.mu.Unlock()
}

func (m *MockShardConnector) Shard(ctx context.Context, id Identity) (ShardClient, error) {
	if m.ShardFn != nil {
		return m.ShardFn(ctx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if client, ok := m.clients[id]; ok {
		return client, nil
	}
	return m.Default, nil
}

// MockDirectory implements Directory with a fixed shard.
type MockDirectory struct {
	ShardID          Identity
	Err              error
	AvailableShardFn func(ctx context.Context) (Identity, error)

	mu    sync.Mutex
	calls int
}

func (m *MockDirectory) AvailableShard(ctx context.Context) (Identity, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.AvailableShardFn != nil {
		return m.AvailableShardFn(ctx)
	}
	return m.ShardID, m.Err
}

// Calls returns how many directory lookups were made.
func (m *MockDirectory) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// MockSocialGraph implements SocialGraph from a static follower map.
type MockSocialGraph struct {
	FollowerSets map[Identity][]Identity
	FollowersFn  func(ctx context.Context, user Identity) ([]Identity, error)
}

func (m *MockSocialGraph) Followers(ctx context.Context, user Identity) ([]Identity, error) {
	if m.FollowersFn != nil {
		return m.FollowersFn(ctx, user)
	}
	return append([]Identity(nil), m.FollowerSets[user]...), nil
}

// NoticeCall records one notifier delivery.
type NoticeCall struct {
	Audience []Identity
	PostID   PostID
	Resharer bool
}

// MockNotifier implements Notifier and records every delivery.
type MockNotifier struct {
	mu      sync.Mutex
	Deliver []NoticeCall

	NotifyFn         func(ctx context.Context, audience []Identity, id PostID) error
	NotifyResharerFn func(ctx context.Context, audience []Identity, id PostID) error
}

func (m *MockNotifier) Notify(ctx context.Context, audience []Identity, id PostID) error {
	if m.NotifyFn != nil {
		return m.NotifyFn(ctx, audience, id)
	}
	m.mu.Lock()
	m.Deliver = append(m.Deliver, NoticeCall{Audience: append([]Identity(nil), audience...), PostID: id})
	m.mu.Unlock()
	return nil
}

func (m *MockNotifier) NotifyResharer(ctx context.Context, audience []Identity, id PostID) error {
	if m.NotifyResharerFn != nil {
		return m.NotifyResharerFn(ctx, audience, id)
	}
	m.mu.Lock()
	m.Deliver = append(m.Deliver, NoticeCall{Audience: append([]Identity(nil), audience...), PostID: id, Resharer: true})
	m.mu.Unlock()
	return nil
}

// Deliveries returns a snapshot of recorded calls.
func (m *MockNotifier) Deliveries() []NoticeCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]NoticeCall(nil), m.Deliver...)
}
