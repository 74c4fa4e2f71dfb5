package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"google.golang.org/api/youtube/v3"

	"github.com/sakif/tubeclone/internal/apperror"
	"github.com/sakif/tubeclone/internal/auth"
	"github.com/sakif/tubeclone/internal/model"
	"github.com/sakif/tubeclone/internal/service"
)

// YouTubeHandler serves everything under /api/youtube. Every route sits
// behind auth.RequireAuth, so an Identity is always in the context.
//
// Mode-dependent features (videos, comments, ratings, subscriptions, history)
// go through the Capabilities the Dispatcher picks for the caller. Channel
// pages, posts and reports are the same for everyone and call their service
// directly.
type YouTubeHandler struct {
	dispatcher *service.Dispatcher
	channels   *service.ChannelService
	reports    *service.ReportService
	posts      *service.PostService
	logger     *slog.Logger
}

func NewYouTubeHandler(
	dispatcher *service.Dispatcher,
	channels *service.ChannelService,
	reports *service.ReportService,
	posts *service.PostService,
	logger *slog.Logger,
) *YouTubeHandler {
	return &YouTubeHandler{
		dispatcher: dispatcher,
		channels:   channels,
		reports:    reports,
		posts:      posts,
		logger:     logger,
	}
}

// caller returns the authenticated user, or writes 401 and returns nil.
func (h *YouTubeHandler) caller(w http.ResponseWriter, r *http.Request) *auth.Identity {
	id, ok := auth.IdentityFromContext(r.Context())
	if !ok || id.User == nil {
		writeError(w, h.logger, apperror.Unauthenticated("valid authentication required"))
		return nil
	}
	return id
}

// capabilities resolves the caller's Capabilities. On failure the error has
// already been written and ok is false.
func (h *YouTubeHandler) capabilities(w http.ResponseWriter, r *http.Request) (service.Capabilities, bool) {
	id := h.caller(w, r)
	if id == nil {
		return nil, false
	}
	caps, err := h.dispatcher.For(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, err)
		return nil, false
	}
	return caps, true
}

// =========================================================================
// VIDEOS
// =========================================================================

// HandleVideoFeed returns the popular-videos feed.
//
// HTTP: GET /api/youtube/videos?pageToken=...
func (h *YouTubeHandler) HandleVideoFeed(w http.ResponseWriter, r *http.Request) {
	caps, ok := h.capabilities(w, r)
	if !ok {
		return
	}
	resp, err := caps.VideoFeed(r.Context(), r.URL.Query().Get("pageToken"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleVideo returns one video. For local users the first view of a video
// also lands in their history.
//
// HTTP: GET /api/youtube/videos/{videoId}
func (h *YouTubeHandler) HandleVideo(w http.ResponseWriter, r *http.Request) {
	caps, ok := h.capabilities(w, r)
	if !ok {
		return
	}
	v, err := caps.Video(r.Context(), chi.URLParam(r, "videoId"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// HandleRelevantVideos lists other videos from the same channel.
//
// HTTP: GET /api/youtube/videos/relevant/{videoId}?channelId=...&pageToken=...
func (h *YouTubeHandler) HandleRelevantVideos(w http.ResponseWriter, r *http.Request) {
	caps, ok := h.capabilities(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	resp, err := caps.RelevantVideos(r.Context(), chi.URLParam(r, "videoId"), q.Get("channelId"), q.Get("pageToken"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleSearch
//
// HTTP: GET /api/youtube/search?q=...&pageToken=...
func (h *YouTubeHandler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	caps, ok := h.capabilities(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	resp, err := caps.Search(r.Context(), q.Get("q"), q.Get("pageToken"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleLikedVideos
//
// HTTP: GET /api/youtube/videos/liked?pageToken=...
func (h *YouTubeHandler) HandleLikedVideos(w http.ResponseWriter, r *http.Request) {
	caps, ok := h.capabilities(w, r)
	if !ok {
		return
	}
	resp, err := caps.LikedVideos(r.Context(), r.URL.Query().Get("pageToken"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleHistory
//
// HTTP: GET /api/youtube/history
func (h *YouTubeHandler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	caps, ok := h.capabilities(w, r)
	if !ok {
		return
	}
	resp, err := caps.History(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandlePreferenceIDs returns the bare ids of one of the caller's local
// membership sets (liked videos, subscriptions, ...). The client uses them
// to paint button states without fetching the resources.
//
// HTTP: GET /api/youtube/videos/liked/id (and the other */id routes)
func (h *YouTubeHandler) HandlePreferenceIDs(rel model.Relation) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := h.caller(w, r)
		if id == nil {
			return
		}
		ids, err := h.dispatcher.PreferenceIDs(r.Context(), id.User, rel)
		if err != nil {
			writeError(w, h.logger, err)
			return
		}
		writeJSON(w, http.StatusOK, ids)
	}
}

// =========================================================================
// RATINGS
// =========================================================================

type ratingRequest struct {
	Type string `json:"type"`
}

// HandleRateVideo
//
// HTTP: POST /api/youtube/rating/{videoId}/{type}
//
// Local users toggle: rating "like" on an already-liked video clears it.
// Google users set the rating on their account as given.
func (h *YouTubeHandler) HandleRateVideo(w http.ResponseWriter, r *http.Request) {
	rating, err := service.ParseRating(chi.URLParam(r, "type"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	caps, ok := h.capabilities(w, r)
	if !ok {
		return
	}
	if err := caps.RateVideo(r.Context(), chi.URLParam(r, "videoId"), rating); err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeMessage(w, http.StatusOK, "Video rated successfully")
}

// HandleRateComment
//
// HTTP: POST /api/youtube/rating/comments/{commentId}
// REQUEST BODY: {"type": "like"}
func (h *YouTubeHandler) HandleRateComment(w http.ResponseWriter, r *http.Request) {
	var req ratingRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	rating, err := service.ParseRating(req.Type)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	caps, ok := h.capabilities(w, r)
	if !ok {
		return
	}
	if err := caps.RateComment(r.Context(), chi.URLParam(r, "commentId"), rating); err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeMessage(w, http.StatusOK, "Comment rated successfully")
}

// =========================================================================
// SUBSCRIPTIONS
// =========================================================================

// SubscriptionResponse reports the state after a toggle.
type SubscriptionResponse struct {
	Message    string `json:"message"`
	Subscribed bool   `json:"subscribed"`
}

// HandleToggleSubscription subscribes when not subscribed and unsubscribes
// otherwise.
//
// HTTP: POST /api/youtube/subscriptions/{channelId}
func (h *YouTubeHandler) HandleToggleSubscription(w http.ResponseWriter, r *http.Request) {
	caps, ok := h.capabilities(w, r)
	if !ok {
		return
	}
	subscribed, err := caps.ToggleSubscription(r.Context(), chi.URLParam(r, "channelId"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	msg := "Unsubscribed from channel successfully"
	if subscribed {
		msg = "Subscribed to channel successfully"
	}
	writeJSON(w, http.StatusOK, SubscriptionResponse{Message: msg, Subscribed: subscribed})
}

// HandleSubscriptions returns the channels the caller is subscribed to.
//
// HTTP: GET /api/youtube/subscriptions
func (h *YouTubeHandler) HandleSubscriptions(w http.ResponseWriter, r *http.Request) {
	caps, ok := h.capabilities(w, r)
	if !ok {
		return
	}
	chans, err := caps.Subscriptions(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, chans)
}

// =========================================================================
// COMMENTS
// =========================================================================

type addCommentRequest struct {
	Text      string `json:"text"`
	ChannelID string `json:"channelId"`
}

type replyRequest struct {
	Text            string `json:"text"`
	ParentID        string `json:"parentId"`
	AuthorChannelID string `json:"authorChannelId"`
}

type editCommentRequest struct {
	Text     string `json:"text"`
	ParentID string `json:"parentId"`
	VideoID  string `json:"videoId"`
}

// EditCommentResponse carries the updated comment when the platform returns
// one (Google users). Local edits only get the message.
type EditCommentResponse struct {
	Message string           `json:"message"`
	Comment *youtube.Comment `json:"comment,omitempty"`
}

// HandleVideoComments lists comment threads. Local users see their own
// comments first, ahead of the platform's page.
//
// HTTP: GET /api/youtube/videos/comments/{videoId}?order=relevance|time
func (h *YouTubeHandler) HandleVideoComments(w http.ResponseWriter, r *http.Request) {
	caps, ok := h.capabilities(w, r)
	if !ok {
		return
	}
	resp, err := caps.VideoComments(r.Context(), chi.URLParam(r, "videoId"), r.URL.Query().Get("order"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleRepliedComments returns the caller's replies to other people's
// comments on a video, keyed by parent comment id.
//
// HTTP: GET /api/youtube/videos/comments/replied/{videoId}
func (h *YouTubeHandler) HandleRepliedComments(w http.ResponseWriter, r *http.Request) {
	id := h.caller(w, r)
	if id == nil {
		return
	}
	replies, err := h.dispatcher.RepliedOtherComments(r.Context(), id.User, chi.URLParam(r, "videoId"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, replies)
}

// HandleAddComment
//
// HTTP: POST /api/youtube/videos/comments/{videoId}
// REQUEST BODY: {"text": "...", "channelId": "<video's channel>"}
func (h *YouTubeHandler) HandleAddComment(w http.ResponseWriter, r *http.Request) {
	var req addCommentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	caps, ok := h.capabilities(w, r)
	if !ok {
		return
	}
	thread, err := caps.AddComment(r.Context(), chi.URLParam(r, "videoId"), req.Text, req.ChannelID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, thread)
}

// HandleReply
//
// HTTP: POST /api/youtube/videos/comments/reply/{videoId}
// REQUEST BODY: {"text": "...", "parentId": "...", "authorChannelId": "..."}
func (h *YouTubeHandler) HandleReply(w http.ResponseWriter, r *http.Request) {
	var req replyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	caps, ok := h.capabilities(w, r)
	if !ok {
		return
	}
	reply, err := caps.AddReply(r.Context(), chi.URLParam(r, "videoId"), service.ReplyInput{
		ParentID:        req.ParentID,
		Text:            req.Text,
		AuthorChannelID: req.AuthorChannelID,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, reply)
}

// HandleEditComment
//
// HTTP: POST /api/youtube/videos/comments/edit/{commentId}
// REQUEST BODY: {"text": "...", "parentId": "<set for replies>", "videoId": "..."}
func (h *YouTubeHandler) HandleEditComment(w http.ResponseWriter, r *http.Request) {
	var req editCommentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	caps, ok := h.capabilities(w, r)
	if !ok {
		return
	}
	updated, err := caps.EditComment(r.Context(), service.CommentEditInput{
		CommentID: chi.URLParam(r, "commentId"),
		Text:      req.Text,
		ParentID:  req.ParentID,
		VideoID:   req.VideoID,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, EditCommentResponse{Message: "Comment edited successfully", Comment: updated})
}
