package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/NeutronStarPRO/Proton/feed"
	"github.com/NeutronStarPRO/Proton/metrics"
)

// FeedServiceConfig configures the HTTP surface of a feed actor.
type FeedServiceConfig struct {
	Actor   *feed.Actor
	Metrics *metrics.FeedMetrics
	Log     *slog.Logger
}

// FeedService exposes a feed actor over HTTP.
type FeedService struct {
	actor   *feed.Actor
	metrics *metrics.FeedMetrics
	log     *slog.Logger
}

// NewFeedService creates the HTTP surface for a feed actor.
func NewFeedService(cfg *FeedServiceConfig) (*FeedService, error) {
	if cfg == nil || cfg.Actor == nil {
		return nil, errors.New("actor is required")
	}
	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}
	m := cfg.Metrics
	if m == nil {
		m = metrics.NewFeedMetrics(prometheus.NewRegistry())
	}
	return &FeedService{actor: cfg.Actor, metrics: m, log: log}, nil
}

// RegisterRoutes registers the feed actor's HTTP routes.
func (s *FeedService) RegisterRoutes(r chi.Router) {
	r.Post("/posts", s.handleCreatePost)
	r.Post("/posts/repost", s.handleRepost)
	r.Post("/posts/comment", s.handleComment)
	r.Post("/posts/like", s.handleLike)
	r.Get("/posts", s.handleAllPosts)
	r.Get("/posts/count", s.handlePostCount)
	r.Get("/posts/{seq}", s.handleGetPost)
	r.Post("/posts/{seq}/renotify", s.handleRenotify)

	r.Post("/notices/feed", s.noticeHandler(feed.PostNotice))
	r.Post("/notices/feed/batch", s.noticeBatchHandler(feed.PostNotice))
	r.Post("/notices/comment", s.noticeHandler(feed.CommentNotice))
	r.Post("/notices/comment/batch", s.noticeBatchHandler(feed.CommentNotice))
	r.Post("/notices/like", s.noticeHandler(feed.LikeNotice))
	r.Post("/notices/like/batch", s.noticeBatchHandler(feed.LikeNotice))

	r.Get("/feed", s.handleLatestFeed)
	r.Get("/feed/count", s.handleFeedCount)
	r.Get("/feed/{post_id}", s.handleFeedEntry)

	r.Post("/shard/check", s.handleCheckShard)
	r.Get("/shard", s.handleGetShard)

	r.Get("/owner", s.handleGetOwner)
	r.Put("/owner", s.handleSetOwner)
	r.Get("/status", s.handleStatus)
}

func caller(r *http.Request) (feed.Identity, error) {
	return feed.ParseIdentity(r.Header.Get(CallerHeader))
}

// writeError maps domain errors to HTTP status codes. Fan-out partial
// failures are handled at the call sites because the operation committed.
func (s *FeedService) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, feed.ErrInvalidIdentity), errors.Is(err, feed.ErrMalformedPostID):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, feed.ErrNotOwner):
		http.Error(w, err.Error(), http.StatusForbidden)
	case errors.Is(err, feed.ErrUnknownPost):
		http.Error(w, err.Error(), http.StatusNotFound)
	default:
		http.Error(w, err.Error(), http.StatusBadGateway)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (s *FeedService) handleCreatePost(w http.ResponseWriter, r *http.Request) {
	who, err := caller(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var req CreatePostRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	id, err := s.actor.CreatePost(r.Context(), who, req.Content, req.MediaRefs)
	if err != nil {
		var fe *feed.FanoutError
		if errors.As(err, &fe) {
			// Stored and replicated; only the announcement failed. The
			// owner can replay it through the renotify endpoint.
			s.metrics.PostsCreated.Inc()
			s.metrics.FanoutFailures.Inc()
			writeJSON(w, http.StatusAccepted, &CreatePostResponse{PostID: id.String(), Warning: fe.Error()})
			return
		}
		s.writeError(w, err)
		return
	}

	s.metrics.PostsCreated.Inc()
	writeJSON(w, http.StatusOK, &CreatePostResponse{PostID: id.String()})
}

type mutationFunc func(r *http.Request, who feed.Identity, req *MutationRequest) (feed.MutationResult, error)

func (s *FeedService) handleMutation(w http.ResponseWriter, r *http.Request, kind string, fn mutationFunc) {
	who, err := caller(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var req MutationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	result, err := fn(r, who, &req)
	if err != nil {
		var fe *feed.FanoutError
		if errors.As(err, &fe) {
			s.metrics.MutationsApplied.WithLabelValues(kind, string(feed.StatusApplied)).Inc()
			s.metrics.FanoutFailures.Inc()
			writeJSON(w, http.StatusAccepted, &MutationResponse{
				Applied: true,
				Status:  string(feed.StatusApplied),
				Warning: fe.Error(),
			})
			return
		}
		s.writeError(w, err)
		return
	}

	s.metrics.MutationsApplied.WithLabelValues(kind, string(result.Status)).Inc()
	writeJSON(w, http.StatusOK, &MutationResponse{
		Applied: result.Applied(),
		Status:  string(result.Status),
		Reason:  result.Reason,
	})
}

func (s *FeedService) handleRepost(w http.ResponseWriter, r *http.Request) {
	s.handleMutation(w, r, "repost", func(r *http.Request, who feed.Identity, req *MutationRequest) (feed.MutationResult, error) {
		return s.actor.CreateRepost(r.Context(), who, req.PostID)
	})
}

func (s *FeedService) handleComment(w http.ResponseWriter, r *http.Request) {
	s.handleMutation(w, r, "comment", func(r *http.Request, who feed.Identity, req *MutationRequest) (feed.MutationResult, error) {
		return s.actor.CreateComment(r.Context(), who, req.PostID, req.Content)
	})
}

func (s *FeedService) handleLike(w http.ResponseWriter, r *http.Request) {
	s.handleMutation(w, r, "like", func(r *http.Request, who feed.Identity, req *MutationRequest) (feed.MutationResult, error) {
		return s.actor.CreateLike(r.Context(), who, req.PostID)
	})
}

func (s *FeedService) noticeHandler(kind feed.NoticeKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req NoticeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		ingested, err := s.receiveNotice(r, kind, req.PostID)
		if err != nil {
			if ingested {
				// Cached fine; only the resharer re-propagation failed.
				s.metrics.NoticesIngested.WithLabelValues(string(kind)).Inc()
				writeJSON(w, http.StatusAccepted, &NoticeResponse{Ingested: true, Warning: err.Error()})
				return
			}
			s.writeError(w, err)
			return
		}

		if ingested {
			s.metrics.NoticesIngested.WithLabelValues(string(kind)).Inc()
		} else {
			s.metrics.NoticesDeduplicated.WithLabelValues(string(kind)).Inc()
		}
		writeJSON(w, http.StatusOK, &NoticeResponse{Ingested: ingested})
	}
}

func (s *FeedService) noticeBatchHandler(kind feed.NoticeKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req NoticeBatchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		switch kind {
		case feed.PostNotice:
			s.actor.ReceiveFeedNoticeBatch(r.Context(), req.PostIDs)
		case feed.CommentNotice:
			s.actor.ReceiveCommentNoticeBatch(r.Context(), req.PostIDs)
		case feed.LikeNotice:
			s.actor.ReceiveLikeNoticeBatch(r.Context(), req.PostIDs)
		}
		writeJSON(w, http.StatusOK, &AckResponse{OK: true})
	}
}

func (s *FeedService) receiveNotice(r *http.Request, kind feed.NoticeKind, rawID string) (bool, error) {
	switch kind {
	case feed.CommentNotice:
		return s.actor.ReceiveCommentNotice(r.Context(), rawID)
	case feed.LikeNotice:
		return s.actor.ReceiveLikeNotice(r.Context(), rawID)
	default:
		return s.actor.ReceiveFeedNotice(r.Context(), rawID)
	}
}

func (s *FeedService) handleGetPost(w http.ResponseWriter, r *http.Request) {
	seq, err := strconv.ParseUint(chi.URLParam(r, "seq"), 10, 64)
	if err != nil {
		http.Error(w, "invalid sequence index", http.StatusBadRequest)
		return
	}
	post, err := s.actor.PostBySeq(seq)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, post)
}

func (s *FeedService) handleAllPosts(w http.ResponseWriter, r *http.Request) {
	posts, err := s.actor.AllPosts()
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, &PostListResponse{Posts: posts})
}

func (s *FeedService) handlePostCount(w http.ResponseWriter, r *http.Request) {
	count, err := s.actor.PostCount()
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, &CountResponse{Count: count})
}

func (s *FeedService) handleRenotify(w http.ResponseWriter, r *http.Request) {
	who, err := caller(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	seq, err := strconv.ParseUint(chi.URLParam(r, "seq"), 10, 64)
	if err != nil {
		http.Error(w, "invalid sequence index", http.StatusBadRequest)
		return
	}
	if err := s.actor.Renotify(r.Context(), who, seq); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, &AckResponse{OK: true})
}

func (s *FeedService) handleFeedEntry(w http.ResponseWriter, r *http.Request) {
	rawID := chi.URLParam(r, "post_id")
	// The '#' separators arrive percent-encoded.
	if unescaped, err := url.PathUnescape(rawID); err == nil {
		rawID = unescaped
	}
	post, err := s.actor.FeedEntry(rawID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, post)
}

func (s *FeedService) handleLatestFeed(w http.ResponseWriter, r *http.Request) {
	n := 20
	if raw := r.URL.Query().Get("n"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			http.Error(w, "invalid n", http.StatusBadRequest)
			return
		}
		n = parsed
	}
	posts, err := s.actor.LatestFeed(n)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, &PostListResponse{Posts: posts})
}

func (s *FeedService) handleFeedCount(w http.ResponseWriter, r *http.Request) {
	count, err := s.actor.FeedCount()
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, &CountResponse{Count: count})
}

func (s *FeedService) handleCheckShard(w http.ResponseWriter, r *http.Request) {
	if err := s.actor.CheckAvailableShard(r.Context()); err != nil {
		s.writeError(w, err)
		return
	}
	shard, _ := s.actor.CachedShard()
	writeJSON(w, http.StatusOK, &ShardResponse{Shard: shard.String(), Cached: true})
}

func (s *FeedService) handleGetShard(w http.ResponseWriter, r *http.Request) {
	shard, ok := s.actor.CachedShard()
	writeJSON(w, http.StatusOK, &ShardResponse{Shard: shard.String(), Cached: ok})
}

func (s *FeedService) handleGetOwner(w http.ResponseWriter, r *http.Request) {
	owner, err := s.actor.Owner()
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, &OwnerResponse{Owner: owner.String()})
}

func (s *FeedService) handleSetOwner(w http.ResponseWriter, r *http.Request) {
	who, err := caller(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	var req SetOwnerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	newOwner, err := feed.ParseIdentity(req.Owner)
	if err != nil {
		http.Error(w, fmt.Sprintf("new owner: %v", err), http.StatusBadRequest)
		return
	}
	if err := s.actor.SetOwner(who, newOwner); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, &OwnerResponse{Owner: newOwner.String()})
}

func (s *FeedService) handleStatus(w http.ResponseWriter, r *http.Request) {
	owner, err := s.actor.Owner()
	if err != nil {
		s.writeError(w, err)
		return
	}
	postCount, err := s.actor.PostCount()
	if err != nil {
		s.writeError(w, err)
		return
	}
	feedCount, err := s.actor.FeedCount()
	if err != nil {
		s.writeError(w, err)
		return
	}
	shard, _ := s.actor.CachedShard()
	writeJSON(w, http.StatusOK, &StatusResponse{
		Self:      s.actor.Self().String(),
		Owner:     owner.String(),
		Shard:     shard.String(),
		PostCount: postCount,
		FeedCount: feedCount,
	})
}
