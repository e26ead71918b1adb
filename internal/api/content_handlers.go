package api

import (
	"net/http"

	"vidtube/internal/content"
)

// Tweets

func (h *Handler) CreateTweet(w http.ResponseWriter, r *http.Request) {
	var input content.TweetInput
	if err := decodeJSON(w, r, &input); err != nil {
		h.fail(w, r, err)
		return
	}
	tweet, err := h.Content.CreateTweet(r.Context(), actingUserID(r), input)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, "tweet created", tweet)
}

func (h *Handler) UpdateTweet(w http.ResponseWriter, r *http.Request) {
	var input content.TweetInput
	if err := decodeJSON(w, r, &input); err != nil {
		h.fail(w, r, err)
		return
	}
	tweet, err := h.Content.UpdateTweet(r.Context(), actingUserID(r), pathID(r, "tweetId"), input)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, "tweet updated", tweet)
}

func (h *Handler) DeleteTweet(w http.ResponseWriter, r *http.Request) {
	if err := h.Content.DeleteTweet(r.Context(), actingUserID(r), pathID(r, "tweetId")); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, "tweet deleted", nil)
}

// Comments

func (h *Handler) VideoComments(w http.ResponseWriter, r *http.Request) {
	page, err := h.Content.VideoComments(r.Context(), pathID(r, "videoId"), actingUserID(r), pageFromQuery(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, "comments fetched", page)
}

func (h *Handler) AddComment(w http.ResponseWriter, r *http.Request) {
	var input content.CommentInput
	if err := decodeJSON(w, r, &input); err != nil {
		h.fail(w, r, err)
		return
	}
	comment, err := h.Content.AddComment(r.Context(), actingUserID(r), pathID(r, "videoId"), input)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, "comment added", comment)
}

func (h *Handler) UpdateComment(w http.ResponseWriter, r *http.Request) {
	var input content.CommentInput
	if err := decodeJSON(w, r, &input); err != nil {
		h.fail(w, r, err)
		return
	}
	comment, err := h.Content.UpdateComment(r.Context(), actingUserID(r), pathID(r, "commentId"), input)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, "comment updated", comment)
}

func (h *Handler) DeleteComment(w http.ResponseWriter, r *http.Request) {
	if err := h.Content.DeleteComment(r.Context(), actingUserID(r), pathID(r, "commentId")); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, "comment deleted", nil)
}

// Videos

func (h *Handler) ListVideos(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	page, err := h.Content.ListVideos(r.Context(), actingUserID(r), content.ListVideosInput{
		Query:    query.Get("query"),
		OwnerID:  query.Get("userId"),
		SortBy:   query.Get("sortBy"),
		SortType: query.Get("sortType"),
		Page:     pageFromQuery(r),
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, "videos fetched", page)
}

func (h *Handler) PublishVideo(w http.ResponseWriter, r *http.Request) {
	var input content.VideoInput
	if err := decodeJSON(w, r, &input); err != nil {
		h.fail(w, r, err)
		return
	}
	video, err := h.Content.PublishVideo(r.Context(), actingUserID(r), input)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, "video published", video)
}

func (h *Handler) GetVideo(w http.ResponseWriter, r *http.Request) {
	video, err := h.Content.GetVideo(r.Context(), actingUserID(r), pathID(r, "videoId"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, "video fetched", video)
}

func (h *Handler) UpdateVideo(w http.ResponseWriter, r *http.Request) {
	var patch content.VideoPatch
	if err := decodeJSON(w, r, &patch); err != nil {
		h.fail(w, r, err)
		return
	}
	video, err := h.Content.UpdateVideo(r.Context(), actingUserID(r), pathID(r, "videoId"), patch)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, "video updated", video)
}

func (h *Handler) TogglePublish(w http.ResponseWriter, r *http.Request) {
	video, err := h.Content.TogglePublish(r.Context(), actingUserID(r), pathID(r, "videoId"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, "publish status toggled", video)
}

func (h *Handler) DeleteVideo(w http.ResponseWriter, r *http.Request) {
	if err := h.Content.DeleteVideo(r.Context(), actingUserID(r), pathID(r, "videoId")); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, "video deleted", nil)
}

// Playlists

func (h *Handler) CreatePlaylist(w http.ResponseWriter, r *http.Request) {
	var input content.PlaylistInput
	if err := decodeJSON(w, r, &input); err != nil {
		h.fail(w, r, err)
		return
	}
	playlist, err := h.Content.CreatePlaylist(r.Context(), actingUserID(r), input)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, "playlist created", playlist)
}

func (h *Handler) UpdatePlaylist(w http.ResponseWriter, r *http.Request) {
	var patch content.PlaylistPatch
	if err := decodeJSON(w, r, &patch); err != nil {
		h.fail(w, r, err)
		return
	}
	playlist, err := h.Content.UpdatePlaylist(r.Context(), actingUserID(r), pathID(r, "playlistId"), patch)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, "playlist updated", playlist)
}

func (h *Handler) DeletePlaylist(w http.ResponseWriter, r *http.Request) {
	if err := h.Content.DeletePlaylist(r.Context(), actingUserID(r), pathID(r, "playlistId")); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, "playlist deleted", nil)
}

func (h *Handler) AddPlaylistVideo(w http.ResponseWriter, r *http.Request) {
	playlist, err := h.Content.AddVideo(r.Context(), actingUserID(r), pathID(r, "playlistId"), pathID(r, "videoId"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, "video added to playlist", playlist)
}

func (h *Handler) RemovePlaylistVideo(w http.ResponseWriter, r *http.Request) {
	playlist, err := h.Content.RemoveVideo(r.Context(), actingUserID(r), pathID(r, "playlistId"), pathID(r, "videoId"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, "video removed from playlist", playlist)
}
