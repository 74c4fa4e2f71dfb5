package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/tubeclone/internal/model"
	"github.com/sakif/tubeclone/internal/service"
)

// HandleChannel
//
// HTTP: GET /api/youtube/channels/{channelId}
func (h *YouTubeHandler) HandleChannel(w http.ResponseWriter, r *http.Request) {
	ch, err := h.channels.Channel(r.Context(), chi.URLParam(r, "channelId"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, ch)
}

// HandleChannelsByIDs
//
// HTTP: GET /api/youtube/channels/ids/{channelIds}   (comma-separated)
func (h *YouTubeHandler) HandleChannelsByIDs(w http.ResponseWriter, r *http.Request) {
	chans, err := h.channels.ChannelsByIDs(r.Context(), chi.URLParam(r, "channelIds"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, chans)
}

// HandleFeaturedVideos
//
// HTTP: GET /api/youtube/channels/featured/{channelId}
func (h *YouTubeHandler) HandleFeaturedVideos(w http.ResponseWriter, r *http.Request) {
	resp, err := h.channels.FeaturedVideos(r.Context(), chi.URLParam(r, "channelId"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleChannelVideos pages through the channel's uploads.
//
// HTTP: GET /api/youtube/channels/videos/{channelId}?pageToken=...
func (h *YouTubeHandler) HandleChannelVideos(w http.ResponseWriter, r *http.Request) {
	resp, err := h.channels.ChannelVideos(r.Context(), chi.URLParam(r, "channelId"), r.URL.Query().Get("pageToken"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

type profileRequest struct {
	Name        string `json:"name"`
	DisplayName string `json:"displayName"`
	Description string `json:"description"`
	ProfileURL  string `json:"profileUrl"`
	BannerURL   string `json:"bannerUrl"`
}

// ProfileResponse returns the channel as stored after the edit.
type ProfileResponse struct {
	Message string         `json:"message"`
	Channel *model.Channel `json:"channel"`
}

// HandleEditProfile edits the caller's own channel. Image fields carry the
// stored URL (keep), a data URL (replace) or "" (remove).
//
// HTTP: POST /api/youtube/channels/profile
func (h *YouTubeHandler) HandleEditProfile(w http.ResponseWriter, r *http.Request) {
	var req profileRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	id := h.caller(w, r)
	if id == nil {
		return
	}

	ch, err := h.channels.EditProfile(r.Context(), id.User, service.ProfileInput(req))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, ProfileResponse{Message: "Profile updated successfully", Channel: ch})
}

// =========================================================================
// POSTS
// =========================================================================

type postRequest struct {
	ID     string             `json:"id"`
	Type   model.PostType     `json:"type"`
	Text   string             `json:"text"`
	Images []string           `json:"images"`
	Quiz   []model.QuizAnswer `json:"quiz"`
}

type postTextRequest struct {
	Text string `json:"text"`
}

// PostResponse wraps a newly created post.
type PostResponse struct {
	Message string      `json:"message"`
	Post    *model.Post `json:"post"`
}

// HandleCreatePost
//
// HTTP: POST /api/youtube/channels/posts
// REQUEST BODY: {"id": "<uuid>", "type": "text|image|quiz", "text": "...",
//
//	"images": ["data:image/png;base64,..."], "quiz": [{"text": "...", "isCorrect": true}]}
func (h *YouTubeHandler) HandleCreatePost(w http.ResponseWriter, r *http.Request) {
	var req postRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	id := h.caller(w, r)
	if id == nil {
		return
	}

	post, err := h.posts.Create(r.Context(), id.User.ID, service.PostInput(req))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, PostResponse{Message: "Post created successfully", Post: post})
}

// HandleMyPosts lists the caller's posts, newest first.
//
// HTTP: GET /api/youtube/channels/posts/mine
func (h *YouTubeHandler) HandleMyPosts(w http.ResponseWriter, r *http.Request) {
	id := h.caller(w, r)
	if id == nil {
		return
	}
	posts, err := h.posts.List(r.Context(), id.User.ID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, posts)
}

// HandleEditPost
//
// HTTP: POST /api/youtube/channels/posts/{postId}
func (h *YouTubeHandler) HandleEditPost(w http.ResponseWriter, r *http.Request) {
	var req postTextRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	id := h.caller(w, r)
	if id == nil {
		return
	}
	if err := h.posts.EditText(r.Context(), id.User.ID, chi.URLParam(r, "postId"), req.Text); err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeMessage(w, http.StatusOK, "Post updated successfully")
}

// HandleDeletePost
//
// HTTP: DELETE /api/youtube/channels/posts/{postId}
func (h *YouTubeHandler) HandleDeletePost(w http.ResponseWriter, r *http.Request) {
	id := h.caller(w, r)
	if id == nil {
		return
	}
	if err := h.posts.Delete(r.Context(), id.User.ID, chi.URLParam(r, "postId")); err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeMessage(w, http.StatusOK, "Post deleted successfully")
}
