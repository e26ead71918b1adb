package api

import "net/http"

// Register mounts every API route and the health check on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", h.Health)

	mux.HandleFunc("GET /api/auth/session", h.Session)
	mux.HandleFunc("DELETE /api/auth/session", h.Logout)

	mux.HandleFunc("POST /api/likes/video/{videoId}", h.ToggleVideoLike)
	mux.HandleFunc("POST /api/likes/comment/{commentId}", h.ToggleCommentLike)
	mux.HandleFunc("POST /api/likes/tweet/{tweetId}", h.ToggleTweetLike)
	mux.HandleFunc("GET /api/likes/videos", h.LikedVideos)

	mux.HandleFunc("POST /api/subscriptions/{channelId}", h.ToggleSubscription)
	mux.HandleFunc("GET /api/subscriptions/{channelId}/subscribers", h.ChannelSubscribers)
	mux.HandleFunc("GET /api/subscriptions/{subscriberId}/channels", h.SubscribedChannels)

	mux.HandleFunc("POST /api/tweets", h.CreateTweet)
	mux.HandleFunc("GET /api/tweets/user/{userId}", h.UserTweets)
	mux.HandleFunc("PATCH /api/tweets/{tweetId}", h.UpdateTweet)
	mux.HandleFunc("DELETE /api/tweets/{tweetId}", h.DeleteTweet)

	mux.HandleFunc("GET /api/comments/{videoId}", h.VideoComments)
	mux.HandleFunc("POST /api/comments/{videoId}", h.AddComment)
	mux.HandleFunc("PATCH /api/comments/c/{commentId}", h.UpdateComment)
	mux.HandleFunc("DELETE /api/comments/c/{commentId}", h.DeleteComment)

	mux.HandleFunc("GET /api/videos", h.ListVideos)
	mux.HandleFunc("POST /api/videos", h.PublishVideo)
	mux.HandleFunc("GET /api/videos/{videoId}", h.GetVideo)
	mux.HandleFunc("PATCH /api/videos/{videoId}", h.UpdateVideo)
	mux.HandleFunc("DELETE /api/videos/{videoId}", h.DeleteVideo)
	mux.HandleFunc("PATCH /api/videos/toggle/publish/{videoId}", h.TogglePublish)

	mux.HandleFunc("POST /api/playlists", h.CreatePlaylist)
	mux.HandleFunc("GET /api/playlists/user/{userId}", h.UserPlaylists)
	mux.HandleFunc("GET /api/playlists/{playlistId}", h.PlaylistByID)
	mux.HandleFunc("PATCH /api/playlists/{playlistId}", h.UpdatePlaylist)
	mux.HandleFunc("DELETE /api/playlists/{playlistId}", h.DeletePlaylist)
	mux.HandleFunc("PATCH /api/playlists/add/{videoId}/{playlistId}", h.AddPlaylistVideo)
	mux.HandleFunc("PATCH /api/playlists/remove/{videoId}/{playlistId}", h.RemovePlaylistVideo)

	mux.HandleFunc("GET /api/dashboard/stats", h.ChannelStats)
	mux.HandleFunc("GET /api/dashboard/videos", h.ChannelVideos)
}
