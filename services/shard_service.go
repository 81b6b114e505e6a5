package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/NeutronStarPRO/Proton/feed"
)

// ShardStore is the durable keyspace a storage shard needs: post copies
// keyed by global post id. Both store implementations satisfy it.
type ShardStore interface {
	PutFeed(id string, post *feed.Post) error
	GetFeed(id string) (*feed.Post, error)
	Close() error
}

// ShardServiceConfig configures a reference storage shard.
type ShardServiceConfig struct {
	// Self is the shard's identity, the one that appears as the first
	// segment of post ids stored here.
	Self feed.Identity

	// Endpoint is the public endpoint advertised to the directory.
	Endpoint string

	// Directory and AdminToken drive self-registration on Start. Both
	// optional; a shard registered out of band can leave them empty.
	Directory  *DirectoryHTTPClient
	AdminToken string

	// Graph, CommentNotifier and LikeNotifier drive the shard-side push
	// of comment and like notices: after an update commits, a notice for
	// the post is sent to the author's followers. Feed actors only fan
	// out posts and reposts themselves; without these a shard stores
	// updates silently and comment/like notices never circulate.
	Graph           feed.SocialGraph
	CommentNotifier feed.Notifier
	LikeNotifier    feed.Notifier

	Store ShardStore
	Log   *slog.Logger
}

// ShardService is a reference storage shard: it holds the durable copies
// feed actors replicate to and serve ingestion pulls from.
type ShardService struct {
	config *ShardServiceConfig
	log    *slog.Logger

	// mu serializes the read-modify-write of the update handlers.
	mu sync.Mutex
}

// NewShardService creates a storage shard service.
func NewShardService(config *ShardServiceConfig) (*ShardService, error) {
	if config == nil || config.Store == nil {
		return nil, errors.New("store is required")
	}
	if !config.Self.Valid() {
		return nil, fmt.Errorf("shard identity: %w", feed.ErrInvalidIdentity)
	}
	log := config.Log
	if log == nil {
		log = slog.Default()
	}
	return &ShardService{config: config, log: log}, nil
}

// Self returns the shard's identity.
func (s *ShardService) Self() feed.Identity { return s.config.Self }

// RegisterRoutes registers the shard's HTTP routes.
func (s *ShardService) RegisterRoutes(r chi.Router) {
	r.Post("/store", s.handleStore)
	r.Get("/posts/{post_id}", s.handleGetPost)
	r.Post("/posts/{post_id}/reposts", s.handleUpdateReposts)
	r.Post("/posts/{post_id}/comments", s.handleUpdateComments)
	r.Post("/posts/{post_id}/likes", s.handleUpdateLikes)
}

// Start registers the shard with the root directory.
func (s *ShardService) Start(ctx context.Context) error {
	if s.config.Directory == nil {
		return nil
	}
	info := &ShardInfo{ID: s.config.Self.String(), Endpoint: s.config.Endpoint}
	if err := s.config.Directory.RegisterShard(ctx, s.config.AdminToken, info); err != nil {
		return fmt.Errorf("directory registration failed: %w", err)
	}
	s.log.Info("registered with directory", "id", info.ID, "endpoint", info.Endpoint)
	return nil
}

func (s *ShardService) handleStore(w http.ResponseWriter, r *http.Request) {
	var req StorePostRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.Post == nil {
		http.Error(w, "post is required", http.StatusBadRequest)
		return
	}

	id, err := feed.ParsePostID(req.Post.ID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if id.Shard != s.config.Self {
		// Misrouted replication is refused, not errored: the ack goes
		// back false and the caller aborts its create.
		s.log.Warn("refusing post addressed to another shard", "post_id", req.Post.ID)
		writeJSON(w, http.StatusOK, &AckResponse{OK: false})
		return
	}

	if err := s.config.Store.PutFeed(req.Post.ID, req.Post); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.log.Info("post stored", "post_id", req.Post.ID)
	writeJSON(w, http.StatusOK, &AckResponse{OK: true})
}

func shardPostID(r *http.Request) string {
	rawID := chi.URLParam(r, "post_id")
	if unescaped, err := url.PathUnescape(rawID); err == nil {
		rawID = unescaped
	}
	return rawID
}

func (s *ShardService) handleGetPost(w http.ResponseWriter, r *http.Request) {
	post, err := s.config.Store.GetFeed(shardPostID(r))
	if err != nil {
		if errors.Is(err, feed.ErrUnknownPost) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, post)
}

// update applies fn to the stored post under the service mutex, writes the
// updated copy back and pushes a notice through notifier when one is
// configured.
func (s *ShardService) update(w http.ResponseWriter, r *http.Request, notifier feed.Notifier, fn func(post *feed.Post)) {
	rawID := shardPostID(r)

	s.mu.Lock()
	defer s.mu.Unlock()

	post, err := s.config.Store.GetFeed(rawID)
	if err != nil {
		if errors.Is(err, feed.ErrUnknownPost) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	fn(post)

	if err := s.config.Store.PutFeed(rawID, post); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.announce(r.Context(), notifier, post)
	writeJSON(w, http.StatusOK, &AckResponse{OK: true})
}

// announce pushes a notice about the updated post to the author's
// followers. Delivery is best-effort: the update already committed, a
// failure is logged and the ack stays positive.
func (s *ShardService) announce(ctx context.Context, notifier feed.Notifier, post *feed.Post) {
	if notifier == nil || s.config.Graph == nil {
		return
	}
	id, err := feed.ParsePostID(post.ID)
	if err != nil {
		s.log.Warn("stored post has malformed id", "post_id", post.ID, "err", err)
		return
	}
	audience, err := s.config.Graph.Followers(ctx, post.User)
	if err != nil {
		s.log.Warn("follower lookup failed, notice dropped", "post_id", post.ID, "err", err)
		return
	}
	if len(audience) == 0 {
		return
	}
	if err := notifier.Notify(ctx, audience, id); err != nil {
		s.log.Warn("notice delivery failed", "post_id", post.ID, "err", err)
	}
}

func (s *ShardService) handleUpdateReposts(w http.ResponseWriter, r *http.Request) {
	var req UpdateRepostsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	// Repost fan-out is the authoring feed actor's job; no shard notice.
	s.update(w, r, nil, func(post *feed.Post) { post.Reposts = req.Reposts })
}

func (s *ShardService) handleUpdateComments(w http.ResponseWriter, r *http.Request) {
	var req UpdateCommentsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.update(w, r, s.config.CommentNotifier, func(post *feed.Post) { post.Comments = req.Comments })
}

func (s *ShardService) handleUpdateLikes(w http.ResponseWriter, r *http.Request) {
	var req UpdateLikesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.update(w, r, s.config.LikeNotifier, func(post *feed.Post) { post.Likes = req.Likes })
}
