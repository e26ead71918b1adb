package api

import (
	"net/http"

	"vidtube/internal/models"
)

func (h *Handler) ToggleVideoLike(w http.ResponseWriter, r *http.Request) {
	h.toggleLike(w, r, models.VideoTarget(pathID(r, "videoId")))
}

func (h *Handler) ToggleCommentLike(w http.ResponseWriter, r *http.Request) {
	h.toggleLike(w, r, models.CommentTarget(pathID(r, "commentId")))
}

func (h *Handler) ToggleTweetLike(w http.ResponseWriter, r *http.Request) {
	h.toggleLike(w, r, models.TweetTarget(pathID(r, "tweetId")))
}

func (h *Handler) toggleLike(w http.ResponseWriter, r *http.Request, target models.Target) {
	result, err := h.Engagement.ToggleLike(r.Context(), actingUserID(r), target)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	message := string(target.Kind) + " unliked"
	if result.Liked {
		message = string(target.Kind) + " liked"
	}
	writeJSON(w, http.StatusOK, message, result)
}

func (h *Handler) ToggleSubscription(w http.ResponseWriter, r *http.Request) {
	result, err := h.Engagement.ToggleSubscription(r.Context(), actingUserID(r), pathID(r, "channelId"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	message := "unsubscribed"
	if result.Subscribed {
		message = "subscribed"
	}
	writeJSON(w, http.StatusOK, message, result)
}

func (h *Handler) LikedVideos(w http.ResponseWriter, r *http.Request) {
	page, err := h.Feeds.LikedVideos(r.Context(), actingUserID(r), pageFromQuery(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, "liked videos fetched", page)
}
