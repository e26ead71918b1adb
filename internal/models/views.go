package models

import "time"

// LikedVideo is a row of the liked-videos feed.
type LikedVideo struct {
	ID          string      `json:"id"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Duration    float64     `json:"duration"`
	Views       int64       `json:"views"`
	Thumbnail   string      `json:"thumbnail"`
	Owner       UserSummary `json:"owner"`
	CreatedAt   time.Time   `json:"createdAt"`
	LikedAt     time.Time   `json:"likedAt"`
}

// TweetView is a tweet decorated with its owner and like state for a viewer.
type TweetView struct {
	ID         string      `json:"id"`
	Content    string      `json:"content"`
	Owner      UserSummary `json:"owner"`
	LikesCount int64       `json:"likesCount"`
	IsLiked    bool        `json:"isLiked"`
	CreatedAt  time.Time   `json:"createdAt"`
}

// CommentView is a comment decorated with its owner and like state.
type CommentView struct {
	ID         string      `json:"id"`
	VideoID    string      `json:"videoId"`
	Content    string      `json:"content"`
	Owner      UserSummary `json:"owner"`
	LikesCount int64       `json:"likesCount"`
	IsLiked    bool        `json:"isLiked"`
	CreatedAt  time.Time   `json:"createdAt"`
	UpdatedAt  time.Time   `json:"updatedAt"`
}

// PlaylistVideo is the video projection embedded in playlists. Description
// and OwnerID are only filled for the single-playlist view.
type PlaylistVideo struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Description string  `json:"description,omitempty"`
	Thumbnail   string  `json:"thumbnail"`
	Duration    float64 `json:"duration"`
	Views       int64   `json:"views"`
	OwnerID     string  `json:"ownerId,omitempty"`
}

// PlaylistView is a playlist with its extant videos, in playlist order, and
// totals over those videos.
type PlaylistView struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Owner       UserSummary     `json:"owner"`
	Videos      []PlaylistVideo `json:"videos"`
	TotalVideos int             `json:"totalVideos"`
	TotalViews  int64           `json:"totalViews"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// ChannelSummary is the user projection used by subscription listings.
type ChannelSummary struct {
	UserSummary
	CreatedAt time.Time `json:"createdAt"`
}

// SubscriberView is one subscriber of a channel.
type SubscriberView struct {
	Subscriber   ChannelSummary `json:"subscriber"`
	SubscribedAt time.Time      `json:"subscribedAt"`
}

// SubscribedChannelView is one channel a user follows, with rollups over all
// of the channel's videos.
type SubscribedChannelView struct {
	Channel      ChannelSummary `json:"channel"`
	TotalVideos  int64          `json:"totalVideos"`
	TotalViews   int64          `json:"totalViews"`
	SubscribedAt time.Time      `json:"subscribedAt"`
}
