package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/cockroachdb/pebble"

	"github.com/NeutronStarPRO/Proton/feed"
)

// Key namespaces. Posts are keyed by zero-padded sequence number so that
// Pebble's byte order matches sequence order.
const (
	postPrefix        = "post:"
	feedPrefix        = "feed:"
	metaPrefix        = "meta:"
	unannouncedPrefix = "unannounced:"

	postIndexKey = metaPrefix + "post_index"
)

// PebbleStore implements feed.StateStore on a Pebble database. All writes
// are synced; state survives process restart.
type PebbleStore struct {
	db *pebble.DB
}

var _ feed.StateStore = (*PebbleStore)(nil)

// OpenPebble opens (or creates) the database at path.
func OpenPebble(path string) (*PebbleStore, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("opening pebble at %s: %w", path, err)
	}
	return &PebbleStore{db: db}, nil
}

// Close closes the database.
func (s *PebbleStore) Close() error {
	return s.db.Close()
}

func postKey(seq uint64) []byte {
	return []byte(fmt.Sprintf("%s%020d", postPrefix, seq))
}

func unannouncedKey(seq uint64) []byte {
	return []byte(fmt.Sprintf("%s%020d", unannouncedPrefix, seq))
}

// get reads a key and reports whether it was present.
func (s *PebbleStore) get(key []byte) ([]byte, bool, error) {
	value, closer, err := s.db.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	out := append([]byte(nil), value...)
	if err := closer.Close(); err != nil {
		return nil, false, err
	}
	return out, true, nil
}

// ReservePostIndex returns the next sequence index and advances the
// persisted counter. Callers serialize; the store does not.
func (s *PebbleStore) ReservePostIndex() (uint64, error) {
	raw, ok, err := s.get([]byte(postIndexKey))
	if err != nil {
		return 0, err
	}
	var next uint64
	if ok {
		next, err = strconv.ParseUint(string(raw), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("corrupt post index %q: %w", raw, err)
		}
	}
	if err := s.db.Set([]byte(postIndexKey), []byte(strconv.FormatUint(next+1, 10)), pebble.Sync); err != nil {
		return 0, err
	}
	return next, nil
}

func (s *PebbleStore) PutPost(post *feed.Post) error {
	data, err := json.Marshal(post)
	if err != nil {
		return fmt.Errorf("encoding post %d: %w", post.Index, err)
	}
	return s.db.Set(postKey(post.Index), data, pebble.Sync)
}

func (s *PebbleStore) GetPost(seq uint64) (*feed.Post, error) {
	raw, ok, err := s.get(postKey(seq))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, feed.ErrUnknownPost
	}
	var post feed.Post
	if err := json.Unmarshal(raw, &post); err != nil {
		return nil, fmt.Errorf("decoding post %d: %w", seq, err)
	}
	return &post, nil
}

func (s *PebbleStore) AllPosts() ([]*feed.Post, error) {
	return s.scanPosts(postPrefix)
}

func (s *PebbleStore) PostCount() (uint64, error) {
	return s.countPrefix(postPrefix)
}

func (s *PebbleStore) MarkUnannounced(seq uint64) error {
	return s.db.Set(unannouncedKey(seq), []byte{1}, pebble.Sync)
}

func (s *PebbleStore) ClearUnannounced(seq uint64) error {
	return s.db.Delete(unannouncedKey(seq), pebble.Sync)
}

func (s *PebbleStore) IsUnannounced(seq uint64) (bool, error) {
	_, ok, err := s.get(unannouncedKey(seq))
	return ok, err
}

// InsertFeed inserts a materialized entry if absent. First writer wins.
func (s *PebbleStore) InsertFeed(id string, post *feed.Post) (bool, error) {
	key := []byte(feedPrefix + id)
	if _, ok, err := s.get(key); err != nil {
		return false, err
	} else if ok {
		return false, nil
	}
	data, err := json.Marshal(post)
	if err != nil {
		return false, fmt.Errorf("encoding feed entry %s: %w", id, err)
	}
	if err := s.db.Set(key, data, pebble.Sync); err != nil {
		return false, err
	}
	return true, nil
}

// PutFeed unconditionally upserts an entry keyed by post id. Used by the
// storage-shard service, which replaces records on update calls; the feed
// actor itself only ever uses InsertFeed.
func (s *PebbleStore) PutFeed(id string, post *feed.Post) error {
	data, err := json.Marshal(post)
	if err != nil {
		return fmt.Errorf("encoding feed entry %s: %w", id, err)
	}
	return s.db.Set([]byte(feedPrefix+id), data, pebble.Sync)
}

func (s *PebbleStore) ContainsFeed(id string) (bool, error) {
	_, ok, err := s.get([]byte(feedPrefix + id))
	return ok, err
}

func (s *PebbleStore) GetFeed(id string) (*feed.Post, error) {
	raw, ok, err := s.get([]byte(feedPrefix + id))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, feed.ErrUnknownPost
	}
	var post feed.Post
	if err := json.Unmarshal(raw, &post); err != nil {
		return nil, fmt.Errorf("decoding feed entry %s: %w", id, err)
	}
	return &post, nil
}

func (s *PebbleStore) AllFeed() ([]*feed.Post, error) {
	return s.scanPosts(feedPrefix)
}

func (s *PebbleStore) FeedCount() (uint64, error) {
	return s.countPrefix(feedPrefix)
}

func (s *PebbleStore) GetMeta(name string) (string, bool, error) {
	raw, ok, err := s.get([]byte(metaPrefix + name))
	if err != nil || !ok {
		return "", false, err
	}
	return string(raw), true, nil
}

func (s *PebbleStore) SetMeta(name, value string) error {
	return s.db.Set([]byte(metaPrefix+name), []byte(value), pebble.Sync)
}

func prefixBounds(prefix string) ([]byte, []byte) {
	lower := []byte(prefix)
	upper := append([]byte(prefix[:len(prefix)-1]), prefix[len(prefix)-1]+1)
	return lower, upper
}

func (s *PebbleStore) scanPosts(prefix string) ([]*feed.Post, error) {
	lower, upper := prefixBounds(prefix)
	iter, err := s.db.NewIter(&pebble.IterOptions{LowerBound: lower, UpperBound: upper})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var posts []*feed.Post
	for iter.First(); iter.Valid(); iter.Next() {
		var post feed.Post
		if err := json.Unmarshal(iter.Value(), &post); err != nil {
			return nil, fmt.Errorf("decoding %s: %w", iter.Key(), err)
		}
		posts = append(posts, &post)
	}
	return posts, iter.Error()
}

func (s *PebbleStore) countPrefix(prefix string) (uint64, error) {
	lower, upper := prefixBounds(prefix)
	iter, err := s.db.NewIter(&pebble.IterOptions{LowerBound: lower, UpperBound: upper})
	if err != nil {
		return 0, err
	}
	defer iter.Close()

	var count uint64
	for iter.First(); iter.Valid(); iter.Next() {
		count++
	}
	return count, iter.Error()
}
