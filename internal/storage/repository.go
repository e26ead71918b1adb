package storage

import (
	"context"
	"errors"
	"time"

	"vidtube/internal/models"
)

var (
	// ErrNotFound is returned when the addressed record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrConflict is returned when a write would violate a uniqueness
	// constraint, such as a second like for the same user and target.
	ErrConflict = errors.New("record conflicts with an existing record")
)

// Window selects a slice of an ordered result set.
type Window struct {
	Offset int
	Limit  int
}

func (w Window) normalize() Window {
	if w.Offset < 0 {
		w.Offset = 0
	}
	return w
}

// bounds returns the slice bounds of the window over n rows.
func (w Window) bounds(n int) (int, int) {
	w = w.normalize()
	if w.Offset >= n {
		return n, n
	}
	end := n
	if w.Limit > 0 && w.Offset+w.Limit < n {
		end = w.Offset + w.Limit
	}
	return w.Offset, end
}

type CreateUserParams struct {
	Username      string
	Email         string
	FullName      string
	AvatarURL     string
	CoverImageURL string
}

type CreateVideoParams struct {
	OwnerID     string
	Title       string
	Description string
	Duration    float64
	VideoFile   string
	Thumbnail   string
	IsPublished bool
}

// VideoUpdate carries optional metadata changes; nil fields are left as is.
type VideoUpdate struct {
	Title       *string
	Description *string
	Thumbnail   *string
	IsPublished *bool
}

type VideoSort string

const (
	SortByCreatedAt VideoSort = "createdAt"
	SortByViews     VideoSort = "views"
)

// VideoQuery filters the public video listing. Unpublished videos are only
// visible to their owner, passed as ViewerID.
type VideoQuery struct {
	Query     string
	OwnerID   string
	ViewerID  string
	SortBy    VideoSort
	Ascending bool
	Window    Window
}

type PlaylistUpdate struct {
	Name        *string
	Description *string
}

// UserRepository persists channel owners and viewers.
type UserRepository interface {
	CreateUser(ctx context.Context, params CreateUserParams) (models.User, error)
	GetUser(ctx context.Context, id string) (models.User, error)
	FindUserByUsername(ctx context.Context, username string) (models.User, error)
}

// ContentRepository persists the single-document entities engagement points at.
type ContentRepository interface {
	CreateVideo(ctx context.Context, params CreateVideoParams) (models.Video, error)
	GetVideo(ctx context.Context, id string) (models.Video, error)
	UpdateVideo(ctx context.Context, id string, update VideoUpdate) (models.Video, error)
	IncrementVideoViews(ctx context.Context, id string, delta int64) error
	DeleteVideo(ctx context.Context, id string) error
	ListVideos(ctx context.Context, query VideoQuery) ([]models.Video, int64, error)

	CreateComment(ctx context.Context, videoID, ownerID, content string) (models.Comment, error)
	GetComment(ctx context.Context, id string) (models.Comment, error)
	UpdateComment(ctx context.Context, id, content string) (models.Comment, error)
	DeleteComment(ctx context.Context, id string) error

	CreateTweet(ctx context.Context, ownerID, content string) (models.Tweet, error)
	GetTweet(ctx context.Context, id string) (models.Tweet, error)
	UpdateTweet(ctx context.Context, id, content string) (models.Tweet, error)
	DeleteTweet(ctx context.Context, id string) error

	CreatePlaylist(ctx context.Context, ownerID, name, description string) (models.Playlist, error)
	GetPlaylist(ctx context.Context, id string) (models.Playlist, error)
	UpdatePlaylist(ctx context.Context, id string, update PlaylistUpdate) (models.Playlist, error)
	AddPlaylistVideo(ctx context.Context, playlistID, videoID string) (models.Playlist, error)
	RemovePlaylistVideo(ctx context.Context, playlistID, videoID string) (models.Playlist, error)
	DeletePlaylist(ctx context.Context, id string) error
}

// EngagementRepository persists like and subscription edges. Create methods
// return ErrConflict when the edge already exists; delete methods return
// ErrNotFound when it is already gone.
type EngagementRepository interface {
	FindLike(ctx context.Context, userID string, target models.Target) (models.Like, error)
	CreateLike(ctx context.Context, userID string, target models.Target) (models.Like, error)
	DeleteLike(ctx context.Context, id string) error

	FindSubscription(ctx context.Context, subscriberID, channelID string) (models.Subscription, error)
	CreateSubscription(ctx context.Context, subscriberID, channelID string) (models.Subscription, error)
	DeleteSubscription(ctx context.Context, id string) error
}

// FeedRepository assembles the denormalized read models. Rows whose joined
// records are missing are omitted. Results are ordered newest first with ties
// in insertion order.
type FeedRepository interface {
	LikedVideos(ctx context.Context, userID string, window Window) ([]models.LikedVideo, error)
	UserTweets(ctx context.Context, ownerID, viewerID string, window Window) ([]models.TweetView, error)
	CountTweets(ctx context.Context, ownerID string) (int64, error)
	VideoComments(ctx context.Context, videoID, viewerID string, window Window) ([]models.CommentView, error)
	CountComments(ctx context.Context, videoID string) (int64, error)
	UserPlaylists(ctx context.Context, ownerID string) ([]models.PlaylistView, error)
	PlaylistDetail(ctx context.Context, playlistID string) (models.PlaylistView, error)
	ChannelSubscribers(ctx context.Context, channelID string, window Window) ([]models.SubscriberView, error)
	SubscribedChannels(ctx context.Context, subscriberID string, window Window) ([]models.SubscribedChannelView, error)
	CountSubscriptions(ctx context.Context, subscriberID string) (int64, error)
}

// StatsRepository exposes per-channel rollups. Each returns 0 when there is
// nothing to count.
type StatsRepository interface {
	SumVideoViews(ctx context.Context, ownerID string) (int64, error)
	CountVideos(ctx context.Context, ownerID string) (int64, error)
	CountSubscribers(ctx context.Context, channelID string) (int64, error)
	CountVideoLikes(ctx context.Context, ownerID string) (int64, error)
	ChannelVideos(ctx context.Context, ownerID string) ([]models.Video, error)
}

// Repository is implemented by every storage backend.
type Repository interface {
	UserRepository
	ContentRepository
	EngagementRepository
	FeedRepository
	StatsRepository

	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

func defaultClock() time.Time {
	return time.Now().UTC()
}
