// Package feed assembles the read-side views of the engagement graph: liked
// videos, a user's tweets, playlists and both directions of the subscription
// graph. Rows whose joined records no longer exist are dropped; a missing
// primary subject is reported as not found.
package feed

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"vidtube/internal/apperr"
	"vidtube/internal/ids"
	"vidtube/internal/models"
	"vidtube/internal/observability/logging"
	"vidtube/internal/observability/metrics"
	"vidtube/internal/storage"
)

// Store is the slice of the repository the aggregator reads from.
type Store interface {
	GetUser(ctx context.Context, id string) (models.User, error)
	storage.FeedRepository
	CountSubscribers(ctx context.Context, channelID string) (int64, error)
}

type LikedVideosPage struct {
	Videos []models.LikedVideo `json:"videos"`
	Page   int                 `json:"page"`
	Limit  int                 `json:"limit"`
}

type TweetsPage struct {
	Tweets []models.TweetView `json:"tweets"`
	Total  int64              `json:"total"`
	Page   int                `json:"page"`
	Limit  int                `json:"limit"`
}

type SubscribersPage struct {
	Subscribers []models.SubscriberView `json:"subscribers"`
	Total       int64                   `json:"total"`
	Page        int                     `json:"page"`
	Limit       int                     `json:"limit"`
}

type ChannelsPage struct {
	SubscribedChannels []models.SubscribedChannelView `json:"subscribedChannels"`
	Total              int64                          `json:"total"`
	Page               int                            `json:"page"`
	Limit              int                            `json:"limit"`
}

type Option func(*Aggregator)

func WithLogger(logger *slog.Logger) Option {
	return func(a *Aggregator) {
		if logger != nil {
			a.logger = logger
		}
	}
}

func WithMetrics(recorder *metrics.Recorder) Option {
	return func(a *Aggregator) {
		if recorder != nil {
			a.metrics = recorder
		}
	}
}

type Aggregator struct {
	store   Store
	logger  *slog.Logger
	metrics *metrics.Recorder
}

func NewAggregator(store Store, opts ...Option) *Aggregator {
	a := &Aggregator{
		store:   store,
		logger:  logging.WithComponent(slog.Default(), "feed"),
		metrics: metrics.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}
	return a
}

// LikedVideos lists the videos actingUserID liked, most recent like first.
func (a *Aggregator) LikedVideos(ctx context.Context, actingUserID string, page PageRequest) (out LikedVideosPage, err error) {
	defer a.observe("liked_videos", time.Now(), &err)
	if actingUserID == "" {
		return LikedVideosPage{}, apperr.Unauthorized("authentication required")
	}
	page = page.normalize()
	rows, err := a.store.LikedVideos(ctx, actingUserID, page.Window())
	if err != nil {
		return LikedVideosPage{}, a.internal(ctx, err, "liked videos")
	}
	return LikedVideosPage{Videos: nonNil(rows), Page: page.Page, Limit: page.Limit}, nil
}

// UserTweets lists targetUserID's tweets newest first with like counts and
// whether actingUserID liked each one. actingUserID may be empty.
func (a *Aggregator) UserTweets(ctx context.Context, targetUserID, actingUserID string, page PageRequest) (out TweetsPage, err error) {
	defer a.observe("user_tweets", time.Now(), &err)
	if err := a.requireUser(ctx, targetUserID, "user"); err != nil {
		return TweetsPage{}, err
	}
	page = page.normalize()
	rows, err := a.store.UserTweets(ctx, targetUserID, actingUserID, page.Window())
	if err != nil {
		return TweetsPage{}, a.internal(ctx, err, "user tweets")
	}
	total, err := a.store.CountTweets(ctx, targetUserID)
	if err != nil {
		return TweetsPage{}, a.internal(ctx, err, "count tweets")
	}
	return TweetsPage{Tweets: nonNil(rows), Total: total, Page: page.Page, Limit: page.Limit}, nil
}

// UserPlaylists lists ownerID's playlists newest first. An unknown owner has
// no playlists.
func (a *Aggregator) UserPlaylists(ctx context.Context, ownerID string) (out []models.PlaylistView, err error) {
	defer a.observe("user_playlists", time.Now(), &err)
	if !ids.Valid(ownerID) {
		return nil, apperr.Invalid("invalid user id")
	}
	rows, err := a.store.UserPlaylists(ctx, ownerID)
	if err != nil {
		return nil, a.internal(ctx, err, "user playlists")
	}
	return nonNil(rows), nil
}

// PlaylistByID returns the playlist with full owner and video projections.
func (a *Aggregator) PlaylistByID(ctx context.Context, playlistID string) (out models.PlaylistView, err error) {
	defer a.observe("playlist_detail", time.Now(), &err)
	if !ids.Valid(playlistID) {
		return models.PlaylistView{}, apperr.Invalid("invalid playlist id")
	}
	view, err := a.store.PlaylistDetail(ctx, playlistID)
	if errors.Is(err, storage.ErrNotFound) {
		return models.PlaylistView{}, apperr.NotFound("playlist not found")
	}
	if err != nil {
		return models.PlaylistView{}, a.internal(ctx, err, "playlist detail")
	}
	view.Videos = nonNil(view.Videos)
	return view, nil
}

// ChannelSubscribers lists who subscribes to channelID, newest first. Total
// counts every subscription row, so a page can hold fewer rows than Total
// implies when a subscriber account has vanished.
func (a *Aggregator) ChannelSubscribers(ctx context.Context, channelID string, page PageRequest) (out SubscribersPage, err error) {
	defer a.observe("channel_subscribers", time.Now(), &err)
	if err := a.requireUser(ctx, channelID, "channel"); err != nil {
		return SubscribersPage{}, err
	}
	page = page.normalize()
	rows, err := a.store.ChannelSubscribers(ctx, channelID, page.Window())
	if err != nil {
		return SubscribersPage{}, a.internal(ctx, err, "channel subscribers")
	}
	total, err := a.store.CountSubscribers(ctx, channelID)
	if err != nil {
		return SubscribersPage{}, a.internal(ctx, err, "count subscribers")
	}
	return SubscribersPage{Subscribers: nonNil(rows), Total: total, Page: page.Page, Limit: page.Limit}, nil
}

// SubscribedChannels lists the channels subscriberID follows, newest
// subscription first, with each channel's video and view totals.
func (a *Aggregator) SubscribedChannels(ctx context.Context, subscriberID string, page PageRequest) (out ChannelsPage, err error) {
	defer a.observe("subscribed_channels", time.Now(), &err)
	if err := a.requireUser(ctx, subscriberID, "subscriber"); err != nil {
		return ChannelsPage{}, err
	}
	page = page.normalize()
	rows, err := a.store.SubscribedChannels(ctx, subscriberID, page.Window())
	if err != nil {
		return ChannelsPage{}, a.internal(ctx, err, "subscribed channels")
	}
	total, err := a.store.CountSubscriptions(ctx, subscriberID)
	if err != nil {
		return ChannelsPage{}, a.internal(ctx, err, "count subscriptions")
	}
	return ChannelsPage{SubscribedChannels: nonNil(rows), Total: total, Page: page.Page, Limit: page.Limit}, nil
}

func (a *Aggregator) requireUser(ctx context.Context, id, subject string) error {
	if !ids.Valid(id) {
		return apperr.Invalid("invalid %s id", subject)
	}
	if _, err := a.store.GetUser(ctx, id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return apperr.NotFound("%s not found", subject)
		}
		return a.internal(ctx, err, "load "+subject)
	}
	return nil
}

func (a *Aggregator) observe(pipeline string, start time.Time, err *error) {
	var failure error
	if err != nil && *err != nil && apperr.KindOf(*err) == apperr.KindInternal {
		failure = *err
	}
	a.metrics.ObservePipeline(pipeline, time.Since(start), failure)
}

func (a *Aggregator) internal(ctx context.Context, err error, op string) error {
	logging.WithContext(ctx, a.logger).Error("feed store failure", "op", op, "error", err)
	return apperr.Internal(err, "%s", op)
}

func nonNil[T any](rows []T) []T {
	if rows == nil {
		return []T{}
	}
	return rows
}
