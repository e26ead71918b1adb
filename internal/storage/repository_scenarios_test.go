package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"vidtube/internal/models"
)

// RepositoryFactory constructs a repository backed by the JSON store, Postgres
// or MongoDB for cross-datastore scenario assertions.
type RepositoryFactory func(t *testing.T, opts ...Option) (Repository, func(), error)

func runRepository(t *testing.T, factory RepositoryFactory, opts ...Option) Repository {
	t.Helper()
	if factory == nil {
		t.Fatal("repository factory is required")
	}
	repo, cleanup, err := factory(t, opts...)
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	if repo == nil {
		t.Fatal("repository factory returned nil repository")
	}
	if cleanup != nil {
		t.Cleanup(cleanup)
	}
	return repo
}

func requireNoError(t *testing.T, err error, operation string) {
	t.Helper()
	if err != nil {
		t.Fatalf("%s: %v", operation, err)
	}
}

func requireErrorIs(t *testing.T, err, target error, operation string) {
	t.Helper()
	if !errors.Is(err, target) {
		t.Fatalf("%s: expected %v, got %v", operation, target, err)
	}
}

// steppingClock returns a clock that advances by step on every call.
func steppingClock(start time.Time, step time.Duration) func() time.Time {
	var mu sync.Mutex
	current := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now := current
		current = current.Add(step)
		return now
	}
}

func scenarioClock() Option {
	return WithClock(steppingClock(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC), time.Second))
}

func createScenarioUser(t *testing.T, repo Repository, name string) models.User {
	t.Helper()
	user, err := repo.CreateUser(context.Background(), CreateUserParams{
		Username:  name,
		Email:     name + "@example.com",
		FullName:  name + " fullname",
		AvatarURL: "https://cdn.example.com/" + name + ".png",
	})
	requireNoError(t, err, "create user "+name)
	return user
}

func createScenarioVideo(t *testing.T, repo Repository, ownerID, title string) models.Video {
	t.Helper()
	video, err := repo.CreateVideo(context.Background(), CreateVideoParams{
		OwnerID:     ownerID,
		Title:       title,
		Description: title + " description",
		Duration:    61.5,
		VideoFile:   "https://cdn.example.com/" + title + ".mp4",
		Thumbnail:   "https://cdn.example.com/" + title + ".jpg",
		IsPublished: true,
	})
	requireNoError(t, err, "create video "+title)
	return video
}

// RunRepositoryLikeUniqueness checks that a user holds at most one like per
// target and that likes on different kinds do not collide.
func RunRepositoryLikeUniqueness(t *testing.T, factory RepositoryFactory) {
	repo := runRepository(t, factory, scenarioClock())
	ctx := context.Background()

	owner := createScenarioUser(t, repo, "owner")
	fan := createScenarioUser(t, repo, "fan")
	video := createScenarioVideo(t, repo, owner.ID, "intro")
	tweet, err := repo.CreateTweet(ctx, owner.ID, "hello")
	requireNoError(t, err, "create tweet")

	like, err := repo.CreateLike(ctx, fan.ID, models.VideoTarget(video.ID))
	requireNoError(t, err, "create video like")
	if like.LikedBy != fan.ID || like.Target != models.VideoTarget(video.ID) {
		t.Fatalf("unexpected like %+v", like)
	}

	_, err = repo.CreateLike(ctx, fan.ID, models.VideoTarget(video.ID))
	requireErrorIs(t, err, ErrConflict, "duplicate video like")

	_, err = repo.CreateLike(ctx, fan.ID, models.TweetTarget(tweet.ID))
	requireNoError(t, err, "create tweet like")

	found, err := repo.FindLike(ctx, fan.ID, models.VideoTarget(video.ID))
	requireNoError(t, err, "find like")
	if found.ID != like.ID {
		t.Fatalf("expected like %s, got %s", like.ID, found.ID)
	}

	_, err = repo.FindLike(ctx, owner.ID, models.VideoTarget(video.ID))
	requireErrorIs(t, err, ErrNotFound, "find missing like")

	requireNoError(t, repo.DeleteLike(ctx, like.ID), "delete like")
	requireErrorIs(t, repo.DeleteLike(ctx, like.ID), ErrNotFound, "delete like twice")

	_, err = repo.FindLike(ctx, fan.ID, models.VideoTarget(video.ID))
	requireErrorIs(t, err, ErrNotFound, "find deleted like")

	_, err = repo.CreateLike(ctx, fan.ID, models.VideoTarget(video.ID))
	requireNoError(t, err, "like again after delete")
}

// RunRepositoryConcurrentLikes races many inserts of the same like and expects
// exactly one to win.
func RunRepositoryConcurrentLikes(t *testing.T, factory RepositoryFactory) {
	repo := runRepository(t, factory)
	ctx := context.Background()

	owner := createScenarioUser(t, repo, "owner")
	fan := createScenarioUser(t, repo, "fan")
	video := createScenarioVideo(t, repo, owner.ID, "race")

	const attempts = 16
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		created   int
		conflicts int
		failures  []error
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.CreateLike(ctx, fan.ID, models.VideoTarget(video.ID))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				created++
			case errors.Is(err, ErrConflict):
				conflicts++
			default:
				failures = append(failures, err)
			}
		}()
	}
	wg.Wait()

	if len(failures) > 0 {
		t.Fatalf("unexpected errors: %v", failures)
	}
	if created != 1 || conflicts != attempts-1 {
		t.Fatalf("expected 1 created and %d conflicts, got %d and %d", attempts-1, created, conflicts)
	}
	total, err := repo.CountVideoLikes(ctx, owner.ID)
	requireNoError(t, err, "count video likes")
	if total != 1 {
		t.Fatalf("expected 1 stored like, got %d", total)
	}
}

// RunRepositorySubscriptionUniqueness checks the subscription edge constraint.
func RunRepositorySubscriptionUniqueness(t *testing.T, factory RepositoryFactory) {
	repo := runRepository(t, factory, scenarioClock())
	ctx := context.Background()

	channel := createScenarioUser(t, repo, "channel")
	viewer := createScenarioUser(t, repo, "viewer")

	sub, err := repo.CreateSubscription(ctx, viewer.ID, channel.ID)
	requireNoError(t, err, "create subscription")

	_, err = repo.CreateSubscription(ctx, viewer.ID, channel.ID)
	requireErrorIs(t, err, ErrConflict, "duplicate subscription")

	if _, err := repo.CreateSubscription(ctx, viewer.ID, viewer.ID); err == nil {
		t.Fatal("expected self subscription to be rejected")
	}

	found, err := repo.FindSubscription(ctx, viewer.ID, channel.ID)
	requireNoError(t, err, "find subscription")
	if found.ID != sub.ID {
		t.Fatalf("expected subscription %s, got %s", sub.ID, found.ID)
	}

	requireNoError(t, repo.DeleteSubscription(ctx, sub.ID), "delete subscription")
	requireErrorIs(t, repo.DeleteSubscription(ctx, sub.ID), ErrNotFound, "delete subscription twice")
	_, err = repo.FindSubscription(ctx, viewer.ID, channel.ID)
	requireErrorIs(t, err, ErrNotFound, "find deleted subscription")
}

// RunRepositoryLikedVideosFeed covers ordering, windowing and omission of
// deleted videos in the liked-videos feed.
func RunRepositoryLikedVideosFeed(t *testing.T, factory RepositoryFactory) {
	repo := runRepository(t, factory, scenarioClock())
	ctx := context.Background()

	creator := createScenarioUser(t, repo, "creator")
	fan := createScenarioUser(t, repo, "fan")
	first := createScenarioVideo(t, repo, creator.ID, "first")
	second := createScenarioVideo(t, repo, creator.ID, "second")
	third := createScenarioVideo(t, repo, creator.ID, "third")

	for _, video := range []models.Video{second, first, third} {
		_, err := repo.CreateLike(ctx, fan.ID, models.VideoTarget(video.ID))
		requireNoError(t, err, "like "+video.Title)
	}

	rows, err := repo.LikedVideos(ctx, fan.ID, Window{Limit: 10})
	requireNoError(t, err, "liked videos")
	assertLikedOrder(t, rows, third.ID, first.ID, second.ID)
	if rows[0].Owner.ID != creator.ID || rows[0].Owner.Username != creator.Username {
		t.Fatalf("expected owner projection for %s, got %+v", creator.ID, rows[0].Owner)
	}

	page, err := repo.LikedVideos(ctx, fan.ID, Window{Offset: 1, Limit: 1})
	requireNoError(t, err, "liked videos page 2")
	assertLikedOrder(t, page, first.ID)

	requireNoError(t, repo.DeleteVideo(ctx, first.ID), "delete first")
	rows, err = repo.LikedVideos(ctx, fan.ID, Window{Limit: 10})
	requireNoError(t, err, "liked videos after delete")
	assertLikedOrder(t, rows, third.ID, second.ID)

	empty, err := repo.LikedVideos(ctx, creator.ID, Window{Limit: 10})
	requireNoError(t, err, "liked videos without likes")
	if empty == nil || len(empty) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", empty)
	}
}

func assertLikedOrder(t *testing.T, rows []models.LikedVideo, want ...string) {
	t.Helper()
	if len(rows) != len(want) {
		t.Fatalf("expected %d rows, got %d", len(want), len(rows))
	}
	for i, id := range want {
		if rows[i].ID != id {
			t.Fatalf("row %d: expected %s, got %s", i, id, rows[i].ID)
		}
	}
}

// RunRepositoryTweetLikeScenario follows a tweet through like and unlike from
// both the liker's and the owner's point of view.
func RunRepositoryTweetLikeScenario(t *testing.T, factory RepositoryFactory) {
	repo := runRepository(t, factory, scenarioClock())
	ctx := context.Background()

	author := createScenarioUser(t, repo, "author")
	reader := createScenarioUser(t, repo, "reader")
	older, err := repo.CreateTweet(ctx, author.ID, "older")
	requireNoError(t, err, "create older tweet")
	newer, err := repo.CreateTweet(ctx, author.ID, "newer")
	requireNoError(t, err, "create newer tweet")

	like, err := repo.CreateLike(ctx, reader.ID, models.TweetTarget(older.ID))
	requireNoError(t, err, "like older tweet")

	rows, err := repo.UserTweets(ctx, author.ID, reader.ID, Window{Limit: 10})
	requireNoError(t, err, "user tweets for reader")
	if len(rows) != 2 || rows[0].ID != newer.ID || rows[1].ID != older.ID {
		t.Fatalf("unexpected tweet order %+v", rows)
	}
	if rows[1].LikesCount != 1 || !rows[1].IsLiked {
		t.Fatalf("expected older tweet liked once by reader, got %+v", rows[1])
	}
	if rows[0].LikesCount != 0 || rows[0].IsLiked {
		t.Fatalf("expected newer tweet without likes, got %+v", rows[0])
	}
	if rows[0].Owner.ID != author.ID {
		t.Fatalf("expected owner %s, got %+v", author.ID, rows[0].Owner)
	}

	rows, err = repo.UserTweets(ctx, author.ID, author.ID, Window{Limit: 10})
	requireNoError(t, err, "user tweets for author")
	if rows[1].LikesCount != 1 || rows[1].IsLiked {
		t.Fatalf("expected author to see one like but not own it, got %+v", rows[1])
	}

	requireNoError(t, repo.DeleteLike(ctx, like.ID), "unlike")
	rows, err = repo.UserTweets(ctx, author.ID, reader.ID, Window{Limit: 10})
	requireNoError(t, err, "user tweets after unlike")
	if rows[1].LikesCount != 0 || rows[1].IsLiked {
		t.Fatalf("expected like removed, got %+v", rows[1])
	}

	total, err := repo.CountTweets(ctx, author.ID)
	requireNoError(t, err, "count tweets")
	if total != 2 {
		t.Fatalf("expected 2 tweets, got %d", total)
	}

	_, err = repo.CreateLike(ctx, reader.ID, models.TweetTarget(newer.ID))
	requireNoError(t, err, "like newer tweet")
	requireNoError(t, repo.DeleteTweet(ctx, newer.ID), "delete newer tweet")
	_, err = repo.FindLike(ctx, reader.ID, models.TweetTarget(newer.ID))
	requireErrorIs(t, err, ErrNotFound, "like of deleted tweet")
}

// RunRepositoryPlaylistFeed covers playlist ordering, totals and membership
// changes.
func RunRepositoryPlaylistFeed(t *testing.T, factory RepositoryFactory) {
	repo := runRepository(t, factory, scenarioClock())
	ctx := context.Background()

	curator := createScenarioUser(t, repo, "curator")
	creator := createScenarioUser(t, repo, "creator")
	alpha := createScenarioVideo(t, repo, creator.ID, "alpha")
	beta := createScenarioVideo(t, repo, creator.ID, "beta")
	requireNoError(t, repo.IncrementVideoViews(ctx, alpha.ID, 5), "views alpha")
	requireNoError(t, repo.IncrementVideoViews(ctx, beta.ID, 7), "views beta")

	older, err := repo.CreatePlaylist(ctx, curator.ID, "older", "first list")
	requireNoError(t, err, "create older playlist")
	newer, err := repo.CreatePlaylist(ctx, curator.ID, "newer", "second list")
	requireNoError(t, err, "create newer playlist")

	_, err = repo.AddPlaylistVideo(ctx, older.ID, beta.ID)
	requireNoError(t, err, "add beta")
	playlist, err := repo.AddPlaylistVideo(ctx, older.ID, alpha.ID)
	requireNoError(t, err, "add alpha")
	if len(playlist.VideoIDs) != 2 || playlist.VideoIDs[0] != beta.ID || playlist.VideoIDs[1] != alpha.ID {
		t.Fatalf("unexpected playlist order %v", playlist.VideoIDs)
	}

	_, err = repo.AddPlaylistVideo(ctx, older.ID, alpha.ID)
	requireErrorIs(t, err, ErrConflict, "add duplicate video")

	views, err := repo.UserPlaylists(ctx, curator.ID)
	requireNoError(t, err, "user playlists")
	if len(views) != 2 || views[0].ID != newer.ID || views[1].ID != older.ID {
		t.Fatalf("unexpected playlist listing %+v", views)
	}
	if views[0].TotalVideos != 0 || views[0].TotalViews != 0 || len(views[0].Videos) != 0 {
		t.Fatalf("expected empty playlist totals, got %+v", views[0])
	}
	if views[1].TotalVideos != 2 || views[1].TotalViews != 12 {
		t.Fatalf("expected 2 videos with 12 views, got %+v", views[1])
	}
	if views[1].Videos[0].ID != beta.ID || views[1].Videos[1].ID != alpha.ID {
		t.Fatalf("expected playlist order preserved, got %+v", views[1].Videos)
	}
	if views[1].Videos[0].OwnerID != "" {
		t.Fatalf("listing should not carry video owner, got %+v", views[1].Videos[0])
	}

	detail, err := repo.PlaylistDetail(ctx, older.ID)
	requireNoError(t, err, "playlist detail")
	if detail.Owner.ID != curator.ID || detail.Videos[1].OwnerID != creator.ID || detail.Videos[1].Description == "" {
		t.Fatalf("unexpected detail projection %+v", detail)
	}

	requireNoError(t, repo.DeleteVideo(ctx, beta.ID), "delete beta")
	detail, err = repo.PlaylistDetail(ctx, older.ID)
	requireNoError(t, err, "playlist detail after delete")
	if detail.TotalVideos != 1 || detail.TotalViews != 5 || detail.Videos[0].ID != alpha.ID {
		t.Fatalf("expected only alpha to remain, got %+v", detail)
	}

	_, err = repo.RemovePlaylistVideo(ctx, older.ID, beta.ID)
	requireErrorIs(t, err, ErrNotFound, "remove absent video")
	playlist, err = repo.RemovePlaylistVideo(ctx, older.ID, alpha.ID)
	requireNoError(t, err, "remove alpha")
	if len(playlist.VideoIDs) != 0 {
		t.Fatalf("expected empty playlist, got %v", playlist.VideoIDs)
	}

	name := "renamed"
	renamed, err := repo.UpdatePlaylist(ctx, newer.ID, PlaylistUpdate{Name: &name})
	requireNoError(t, err, "rename playlist")
	if renamed.Name != name || renamed.Description != "second list" {
		t.Fatalf("unexpected rename result %+v", renamed)
	}

	requireNoError(t, repo.DeletePlaylist(ctx, newer.ID), "delete playlist")
	_, err = repo.PlaylistDetail(ctx, newer.ID)
	requireErrorIs(t, err, ErrNotFound, "detail of deleted playlist")

	none, err := repo.UserPlaylists(ctx, creator.ID)
	requireNoError(t, err, "playlists of user without playlists")
	if len(none) != 0 {
		t.Fatalf("expected no playlists, got %d", len(none))
	}
}

// RunRepositorySubscriptionFeeds follows one subscription through both
// listings and the subscriber count.
func RunRepositorySubscriptionFeeds(t *testing.T, factory RepositoryFactory) {
	repo := runRepository(t, factory, scenarioClock())
	ctx := context.Background()

	channel := createScenarioUser(t, repo, "channel")
	early := createScenarioUser(t, repo, "early")
	late := createScenarioUser(t, repo, "late")
	video := createScenarioVideo(t, repo, channel.ID, "upload")
	createScenarioVideo(t, repo, channel.ID, "upload-two")
	requireNoError(t, repo.IncrementVideoViews(ctx, video.ID, 40), "views")

	_, err := repo.CreateSubscription(ctx, early.ID, channel.ID)
	requireNoError(t, err, "early subscribes")
	_, err = repo.CreateSubscription(ctx, late.ID, channel.ID)
	requireNoError(t, err, "late subscribes")

	subscribers, err := repo.ChannelSubscribers(ctx, channel.ID, Window{Limit: 10})
	requireNoError(t, err, "channel subscribers")
	if len(subscribers) != 2 || subscribers[0].Subscriber.ID != late.ID || subscribers[1].Subscriber.ID != early.ID {
		t.Fatalf("unexpected subscribers %+v", subscribers)
	}
	if subscribers[0].Subscriber.Username != late.Username || subscribers[0].Subscriber.CreatedAt.IsZero() {
		t.Fatalf("expected subscriber projection, got %+v", subscribers[0].Subscriber)
	}

	page, err := repo.ChannelSubscribers(ctx, channel.ID, Window{Offset: 1, Limit: 1})
	requireNoError(t, err, "channel subscribers page 2")
	if len(page) != 1 || page[0].Subscriber.ID != early.ID {
		t.Fatalf("unexpected second page %+v", page)
	}

	count, err := repo.CountSubscribers(ctx, channel.ID)
	requireNoError(t, err, "count subscribers")
	if count != 2 {
		t.Fatalf("expected 2 subscribers, got %d", count)
	}

	channels, err := repo.SubscribedChannels(ctx, early.ID, Window{Limit: 10})
	requireNoError(t, err, "subscribed channels")
	if len(channels) != 1 || channels[0].Channel.ID != channel.ID {
		t.Fatalf("unexpected subscribed channels %+v", channels)
	}
	if channels[0].TotalVideos != 2 || channels[0].TotalViews != 40 {
		t.Fatalf("expected 2 videos and 40 views, got %+v", channels[0])
	}

	following, err := repo.CountSubscriptions(ctx, early.ID)
	requireNoError(t, err, "count subscriptions")
	if following != 1 {
		t.Fatalf("expected 1 subscription, got %d", following)
	}

	none, err := repo.SubscribedChannels(ctx, channel.ID, Window{Limit: 10})
	requireNoError(t, err, "subscribed channels of channel")
	if len(none) != 0 {
		t.Fatalf("expected no subscriptions, got %+v", none)
	}
}

// RunRepositoryChannelRollups checks the dashboard counters, including the
// zero floor for a user with no data.
func RunRepositoryChannelRollups(t *testing.T, factory RepositoryFactory) {
	repo := runRepository(t, factory, scenarioClock())
	ctx := context.Background()

	idle := createScenarioUser(t, repo, "idle")
	checks := map[string]func(context.Context, string) (int64, error){
		"views":       repo.SumVideoViews,
		"videos":      repo.CountVideos,
		"subscribers": repo.CountSubscribers,
		"likes":       repo.CountVideoLikes,
	}
	for name, check := range checks {
		value, err := check(ctx, idle.ID)
		requireNoError(t, err, "rollup "+name)
		if value != 0 {
			t.Fatalf("expected %s to be 0 for idle user, got %d", name, value)
		}
	}

	creator := createScenarioUser(t, repo, "creator")
	fan := createScenarioUser(t, repo, "fan")
	first := createScenarioVideo(t, repo, creator.ID, "first")
	second := createScenarioVideo(t, repo, creator.ID, "second")
	requireNoError(t, repo.IncrementVideoViews(ctx, first.ID, 3), "views first")
	requireNoError(t, repo.IncrementVideoViews(ctx, second.ID, 4), "views second")
	_, err := repo.CreateLike(ctx, fan.ID, models.VideoTarget(first.ID))
	requireNoError(t, err, "fan likes first")
	_, err = repo.CreateLike(ctx, idle.ID, models.VideoTarget(first.ID))
	requireNoError(t, err, "idle likes first")
	_, err = repo.CreateLike(ctx, fan.ID, models.VideoTarget(second.ID))
	requireNoError(t, err, "fan likes second")
	tweet, err := repo.CreateTweet(ctx, creator.ID, "not a video")
	requireNoError(t, err, "create tweet")
	_, err = repo.CreateLike(ctx, fan.ID, models.TweetTarget(tweet.ID))
	requireNoError(t, err, "fan likes tweet")
	_, err = repo.CreateSubscription(ctx, fan.ID, creator.ID)
	requireNoError(t, err, "fan subscribes")

	want := map[string]int64{"views": 7, "videos": 2, "subscribers": 1, "likes": 3}
	for name, check := range checks {
		value, err := check(ctx, creator.ID)
		requireNoError(t, err, "rollup "+name)
		if value != want[name] {
			t.Fatalf("expected %s=%d, got %d", name, want[name], value)
		}
	}

	videos, err := repo.ChannelVideos(ctx, creator.ID)
	requireNoError(t, err, "channel videos")
	if len(videos) != 2 || videos[0].ID != second.ID || videos[1].ID != first.ID {
		t.Fatalf("expected newest video first, got %+v", videos)
	}
}

// RunRepositoryCommentsCascade checks comment listing and that deleting a
// video removes its comments and their likes.
func RunRepositoryCommentsCascade(t *testing.T, factory RepositoryFactory) {
	repo := runRepository(t, factory, scenarioClock())
	ctx := context.Background()

	creator := createScenarioUser(t, repo, "creator")
	viewer := createScenarioUser(t, repo, "viewer")
	video := createScenarioVideo(t, repo, creator.ID, "talk")

	first, err := repo.CreateComment(ctx, video.ID, viewer.ID, "first!")
	requireNoError(t, err, "first comment")
	second, err := repo.CreateComment(ctx, video.ID, creator.ID, "thanks")
	requireNoError(t, err, "second comment")
	_, err = repo.CreateLike(ctx, creator.ID, models.CommentTarget(first.ID))
	requireNoError(t, err, "like comment")

	rows, err := repo.VideoComments(ctx, video.ID, creator.ID, Window{Limit: 10})
	requireNoError(t, err, "video comments")
	if len(rows) != 2 || rows[0].ID != second.ID || rows[1].ID != first.ID {
		t.Fatalf("unexpected comment order %+v", rows)
	}
	if rows[1].LikesCount != 1 || !rows[1].IsLiked || rows[1].Owner.ID != viewer.ID {
		t.Fatalf("unexpected comment decoration %+v", rows[1])
	}

	updated, err := repo.UpdateComment(ctx, first.ID, "edited")
	requireNoError(t, err, "update comment")
	if updated.Content != "edited" {
		t.Fatalf("expected edited content, got %q", updated.Content)
	}

	count, err := repo.CountComments(ctx, video.ID)
	requireNoError(t, err, "count comments")
	if count != 2 {
		t.Fatalf("expected 2 comments, got %d", count)
	}

	requireNoError(t, repo.DeleteVideo(ctx, video.ID), "delete video")
	_, err = repo.GetComment(ctx, first.ID)
	requireErrorIs(t, err, ErrNotFound, "comment of deleted video")
	_, err = repo.FindLike(ctx, creator.ID, models.CommentTarget(first.ID))
	requireErrorIs(t, err, ErrNotFound, "like on comment of deleted video")
	requireErrorIs(t, repo.DeleteVideo(ctx, video.ID), ErrNotFound, "delete video twice")
}

// RunRepositoryVideoListing covers visibility, search and paging of videos.
func RunRepositoryVideoListing(t *testing.T, factory RepositoryFactory) {
	repo := runRepository(t, factory, scenarioClock())
	ctx := context.Background()

	creator := createScenarioUser(t, repo, "creator")
	other := createScenarioUser(t, repo, "other")
	for i := 0; i < 3; i++ {
		createScenarioVideo(t, repo, creator.ID, fmt.Sprintf("cooking-%d", i))
	}
	draft, err := repo.CreateVideo(ctx, CreateVideoParams{OwnerID: creator.ID, Title: "cooking-draft"})
	requireNoError(t, err, "create draft")
	createScenarioVideo(t, repo, other.ID, "gardening")

	videos, total, err := repo.ListVideos(ctx, VideoQuery{Query: "COOK", Window: Window{Limit: 2}})
	requireNoError(t, err, "search videos")
	if total != 3 || len(videos) != 2 {
		t.Fatalf("expected 2 of 3 published matches, got %d of %d", len(videos), total)
	}
	if videos[0].Title != "cooking-2" {
		t.Fatalf("expected newest first, got %q", videos[0].Title)
	}

	_, total, err = repo.ListVideos(ctx, VideoQuery{OwnerID: creator.ID, ViewerID: creator.ID})
	requireNoError(t, err, "owner listing")
	if total != 4 {
		t.Fatalf("expected owner to see draft, got %d", total)
	}

	published := true
	video, err := repo.UpdateVideo(ctx, draft.ID, VideoUpdate{IsPublished: &published})
	requireNoError(t, err, "publish draft")
	if !video.IsPublished || video.Title != "cooking-draft" {
		t.Fatalf("unexpected update result %+v", video)
	}

	requireNoError(t, repo.IncrementVideoViews(ctx, video.ID, 9), "views")
	videos, _, err = repo.ListVideos(ctx, VideoQuery{SortBy: SortByViews, Window: Window{Limit: 1}})
	requireNoError(t, err, "sort by views")
	if len(videos) != 1 || videos[0].ID != draft.ID {
		t.Fatalf("expected most viewed first, got %+v", videos)
	}

	if err := repo.IncrementVideoViews(ctx, video.ID, 0); err == nil {
		t.Fatal("expected non-positive view delta to be rejected")
	}
}

// RunRepositoryTieOrder checks that equal timestamps keep insertion order.
func RunRepositoryTieOrder(t *testing.T, factory RepositoryFactory) {
	fixed := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	repo := runRepository(t, factory, WithClock(func() time.Time { return fixed }))
	ctx := context.Background()

	author := createScenarioUser(t, repo, "author")
	var want []string
	for i := 0; i < 4; i++ {
		tweet, err := repo.CreateTweet(ctx, author.ID, fmt.Sprintf("tweet %d", i))
		requireNoError(t, err, "create tweet")
		want = append(want, tweet.ID)
	}

	rows, err := repo.UserTweets(ctx, author.ID, "", Window{Limit: 10})
	requireNoError(t, err, "user tweets")
	if len(rows) != len(want) {
		t.Fatalf("expected %d tweets, got %d", len(want), len(rows))
	}
	for i, id := range want {
		if rows[i].ID != id {
			t.Fatalf("position %d: expected %s, got %s", i, id, rows[i].ID)
		}
	}
}

// RunRepositoryUsers checks user uniqueness and lookup.
func RunRepositoryUsers(t *testing.T, factory RepositoryFactory) {
	repo := runRepository(t, factory)
	ctx := context.Background()

	user := createScenarioUser(t, repo, "Casey")
	if user.Username != "casey" {
		t.Fatalf("expected lowercase username, got %q", user.Username)
	}
	_, err := repo.CreateUser(ctx, CreateUserParams{Username: "CASEY"})
	requireErrorIs(t, err, ErrConflict, "duplicate username")
	_, err = repo.CreateUser(ctx, CreateUserParams{Username: "other", Email: "Casey@Example.com"})
	requireErrorIs(t, err, ErrConflict, "duplicate email")

	found, err := repo.FindUserByUsername(ctx, "CASEY")
	requireNoError(t, err, "find by username")
	if found.ID != user.ID {
		t.Fatalf("expected %s, got %s", user.ID, found.ID)
	}
	_, err = repo.GetUser(ctx, "00000000-0000-4000-8000-000000000000")
	requireErrorIs(t, err, ErrNotFound, "get missing user")
	requireNoError(t, repo.Ping(ctx), "ping")
}

// RunRepositoryScenarios runs every scenario as a subtest.
func RunRepositoryScenarios(t *testing.T, factory RepositoryFactory) {
	scenarios := map[string]func(*testing.T, RepositoryFactory){
		"Users":                  RunRepositoryUsers,
		"LikeUniqueness":         RunRepositoryLikeUniqueness,
		"ConcurrentLikes":        RunRepositoryConcurrentLikes,
		"SubscriptionUniqueness": RunRepositorySubscriptionUniqueness,
		"LikedVideosFeed":        RunRepositoryLikedVideosFeed,
		"TweetLikeScenario":      RunRepositoryTweetLikeScenario,
		"PlaylistFeed":           RunRepositoryPlaylistFeed,
		"SubscriptionFeeds":      RunRepositorySubscriptionFeeds,
		"ChannelRollups":         RunRepositoryChannelRollups,
		"CommentsCascade":        RunRepositoryCommentsCascade,
		"VideoListing":           RunRepositoryVideoListing,
		"TieOrder":               RunRepositoryTieOrder,
	}
	for name, scenario := range scenarios {
		scenario := scenario
		t.Run(name, func(t *testing.T) {
			scenario(t, factory)
		})
	}
}
