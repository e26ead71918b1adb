package api

import "net/http"

func (h *Handler) UserTweets(w http.ResponseWriter, r *http.Request) {
	page, err := h.Feeds.UserTweets(r.Context(), pathID(r, "userId"), actingUserID(r), pageFromQuery(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, "tweets fetched", page)
}

func (h *Handler) UserPlaylists(w http.ResponseWriter, r *http.Request) {
	playlists, err := h.Feeds.UserPlaylists(r.Context(), pathID(r, "userId"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, "playlists fetched", playlists)
}

func (h *Handler) PlaylistByID(w http.ResponseWriter, r *http.Request) {
	playlist, err := h.Feeds.PlaylistByID(r.Context(), pathID(r, "playlistId"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, "playlist fetched", playlist)
}

func (h *Handler) ChannelSubscribers(w http.ResponseWriter, r *http.Request) {
	page, err := h.Feeds.ChannelSubscribers(r.Context(), pathID(r, "channelId"), pageFromQuery(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, "subscribers fetched", page)
}

func (h *Handler) SubscribedChannels(w http.ResponseWriter, r *http.Request) {
	page, err := h.Feeds.SubscribedChannels(r.Context(), pathID(r, "subscriberId"), pageFromQuery(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, "subscribed channels fetched", page)
}

// ChannelStats returns the dashboard rollups of the signed-in channel.
func (h *Handler) ChannelStats(w http.ResponseWriter, r *http.Request) {
	result, err := h.Stats.ChannelStats(r.Context(), actingUserID(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, "channel stats fetched", result)
}

func (h *Handler) ChannelVideos(w http.ResponseWriter, r *http.Request) {
	videos, err := h.Stats.ChannelVideos(r.Context(), actingUserID(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, "channel videos fetched", videos)
}
