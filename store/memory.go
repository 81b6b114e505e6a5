package store

import (
	"sort"
	"sync"

	"github.com/NeutronStarPRO/Proton/feed"
)

// MemoryStore is the in-memory feed.StateStore twin, for tests and
// throwaway deployments. Contents do not survive restart.
type MemoryStore struct {
	mu          sync.RWMutex
	nextIndex   uint64
	posts       map[uint64]*feed.Post
	entries     map[string]*feed.Post
	meta        map[string]string
	unannounced map[uint64]bool
}

var _ feed.StateStore = (*MemoryStore)(nil)

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		posts:       make(map[uint64]*feed.Post),
		entries:     make(map[string]*feed.Post),
		meta:        make(map[string]string),
		unannounced: make(map[uint64]bool),
	}
}

func (s *MemoryStore) ReservePostIndex() (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seq := s.nextIndex
	s.nextIndex++
	return seq, nil
}

func (s *MemoryStore) PutPost(post *feed.Post) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.posts[post.Index] = post.Clone()
	return nil
}

func (s *MemoryStore) GetPost(seq uint64) (*feed.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	post, ok := s.posts[seq]
	if !ok {
		return nil, feed.ErrUnknownPost
	}
	return post.Clone(), nil
}

func (s *MemoryStore) AllPosts() ([]*feed.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	posts := make([]*feed.Post, 0, len(s.posts))
	for _, post := range s.posts {
		posts = append(posts, post.Clone())
	}
	sort.Slice(posts, func(i, j int) bool { return posts[i].Index < posts[j].Index })
	return posts, nil
}

func (s *MemoryStore) PostCount() (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return uint64(len(s.posts)), nil
}

func (s *MemoryStore) MarkUnannounced(seq uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unannounced[seq] = true
	return nil
}

func (s *MemoryStore) ClearUnannounced(seq uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.unannounced, seq)
	return nil
}

func (s *MemoryStore) IsUnannounced(seq uint64) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.unannounced[seq], nil
}

func (s *MemoryStore) InsertFeed(id string, post *feed.Post) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[id]; ok {
		return false, nil
	}
	s.entries[id] = post.Clone()
	return true, nil
}

// PutFeed unconditionally upserts, mirroring PebbleStore.PutFeed.
func (s *MemoryStore) PutFeed(id string, post *feed.Post) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[id] = post.Clone()
	return nil
}

func (s *MemoryStore) ContainsFeed(id string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.entries[id]
	return ok, nil
}

func (s *MemoryStore) GetFeed(id string) (*feed.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	post, ok := s.entries[id]
	if !ok {
		return nil, feed.ErrUnknownPost
	}
	return post.Clone(), nil
}

func (s *MemoryStore) AllFeed() ([]*feed.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries := make([]*feed.Post, 0, len(s.entries))
	for _, post := range s.entries {
		entries = append(entries, post.Clone())
	}
	return entries, nil
}

func (s *MemoryStore) FeedCount() (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return uint64(len(s.entries)), nil
}

func (s *MemoryStore) GetMeta(name string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	value, ok := s.meta[name]
	return value, ok, nil
}

func (s *MemoryStore) SetMeta(name, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.meta[name] = value
	return nil
}

func (s *MemoryStore) Close() error { return nil }
