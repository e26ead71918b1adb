package storage

import (
	"context"
	"fmt"
	"sort"

	"vidtube/internal/models"
)

func (s *JSONRepository) LikedVideos(_ context.Context, userID string, window Window) ([]models.LikedVideo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	likes := make([]models.Like, 0)
	for _, like := range s.data.Likes {
		if like.LikedBy == userID && like.Target.Kind == models.TargetVideo {
			likes = append(likes, like)
		}
	}
	sort.SliceStable(likes, func(i, j int) bool {
		return s.data.newestFirst(likes[i].CreatedAt, likes[i].ID, likes[j].CreatedAt, likes[j].ID)
	})

	rows := make([]models.LikedVideo, 0, len(likes))
	for _, like := range likes {
		video, ok := s.data.Videos[like.Target.ID]
		if !ok {
			continue
		}
		owner, ok := s.data.Users[video.OwnerID]
		if !ok {
			continue
		}
		rows = append(rows, models.LikedVideo{
			ID:          video.ID,
			Title:       video.Title,
			Description: video.Description,
			Duration:    video.Duration,
			Views:       video.Views,
			Thumbnail:   video.Thumbnail,
			Owner:       owner.Summary(),
			CreatedAt:   video.CreatedAt,
			LikedAt:     like.CreatedAt,
		})
	}

	start, end := window.bounds(len(rows))
	return rows[start:end], nil
}

// likeStatsLocked counts likes on target and reports whether viewerID is
// among the likers.
func (s *JSONRepository) likeStatsLocked(target models.Target, viewerID string) (int64, bool) {
	var count int64
	liked := false
	for _, like := range s.data.Likes {
		if like.Target != target {
			continue
		}
		count++
		if viewerID != "" && like.LikedBy == viewerID {
			liked = true
		}
	}
	return count, liked
}

func (s *JSONRepository) UserTweets(_ context.Context, ownerID, viewerID string, window Window) ([]models.TweetView, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	owner, ok := s.data.Users[ownerID]
	if !ok {
		return []models.TweetView{}, nil
	}

	tweets := make([]models.Tweet, 0)
	for _, tweet := range s.data.Tweets {
		if tweet.OwnerID == ownerID {
			tweets = append(tweets, tweet)
		}
	}
	sort.SliceStable(tweets, func(i, j int) bool {
		return s.data.newestFirst(tweets[i].CreatedAt, tweets[i].ID, tweets[j].CreatedAt, tweets[j].ID)
	})

	start, end := window.bounds(len(tweets))
	rows := make([]models.TweetView, 0, end-start)
	for _, tweet := range tweets[start:end] {
		count, liked := s.likeStatsLocked(models.TweetTarget(tweet.ID), viewerID)
		rows = append(rows, models.TweetView{
			ID:         tweet.ID,
			Content:    tweet.Content,
			Owner:      owner.Summary(),
			LikesCount: count,
			IsLiked:    liked,
			CreatedAt:  tweet.CreatedAt,
		})
	}
	return rows, nil
}

func (s *JSONRepository) CountTweets(_ context.Context, ownerID string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var count int64
	for _, tweet := range s.data.Tweets {
		if tweet.OwnerID == ownerID {
			count++
		}
	}
	return count, nil
}

func (s *JSONRepository) VideoComments(_ context.Context, videoID, viewerID string, window Window) ([]models.CommentView, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	comments := make([]models.Comment, 0)
	for _, comment := range s.data.Comments {
		if comment.VideoID == videoID {
			comments = append(comments, comment)
		}
	}
	sort.SliceStable(comments, func(i, j int) bool {
		return s.data.newestFirst(comments[i].CreatedAt, comments[i].ID, comments[j].CreatedAt, comments[j].ID)
	})

	rows := make([]models.CommentView, 0, len(comments))
	for _, comment := range comments {
		owner, ok := s.data.Users[comment.OwnerID]
		if !ok {
			continue
		}
		count, liked := s.likeStatsLocked(models.CommentTarget(comment.ID), viewerID)
		rows = append(rows, models.CommentView{
			ID:         comment.ID,
			VideoID:    comment.VideoID,
			Content:    comment.Content,
			Owner:      owner.Summary(),
			LikesCount: count,
			IsLiked:    liked,
			CreatedAt:  comment.CreatedAt,
			UpdatedAt:  comment.UpdatedAt,
		})
	}

	start, end := window.bounds(len(rows))
	return rows[start:end], nil
}

func (s *JSONRepository) CountComments(_ context.Context, videoID string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var count int64
	for _, comment := range s.data.Comments {
		if comment.VideoID == videoID {
			count++
		}
	}
	return count, nil
}

// playlistViewLocked joins the playlist's owner and extant videos. The bool is
// false when the owner is missing.
func (s *JSONRepository) playlistViewLocked(playlist models.Playlist, detailed bool) (models.PlaylistView, bool) {
	owner, ok := s.data.Users[playlist.OwnerID]
	if !ok {
		return models.PlaylistView{}, false
	}
	view := models.PlaylistView{
		ID:          playlist.ID,
		Name:        playlist.Name,
		Description: playlist.Description,
		Owner:       owner.Summary(),
		Videos:      make([]models.PlaylistVideo, 0, len(playlist.VideoIDs)),
		CreatedAt:   playlist.CreatedAt,
		UpdatedAt:   playlist.UpdatedAt,
	}
	for _, videoID := range playlist.VideoIDs {
		video, ok := s.data.Videos[videoID]
		if !ok {
			continue
		}
		entry := models.PlaylistVideo{
			ID:        video.ID,
			Title:     video.Title,
			Thumbnail: video.Thumbnail,
			Duration:  video.Duration,
			Views:     video.Views,
		}
		if detailed {
			entry.Description = video.Description
			entry.OwnerID = video.OwnerID
		}
		view.Videos = append(view.Videos, entry)
		view.TotalViews += video.Views
	}
	view.TotalVideos = len(view.Videos)
	return view, true
}

func (s *JSONRepository) UserPlaylists(_ context.Context, ownerID string) ([]models.PlaylistView, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	playlists := make([]models.Playlist, 0)
	for _, playlist := range s.data.Playlists {
		if playlist.OwnerID == ownerID {
			playlists = append(playlists, playlist)
		}
	}
	sort.SliceStable(playlists, func(i, j int) bool {
		return s.data.newestFirst(playlists[i].CreatedAt, playlists[i].ID, playlists[j].CreatedAt, playlists[j].ID)
	})

	views := make([]models.PlaylistView, 0, len(playlists))
	for _, playlist := range playlists {
		if view, ok := s.playlistViewLocked(playlist, false); ok {
			views = append(views, view)
		}
	}
	return views, nil
}

func (s *JSONRepository) PlaylistDetail(_ context.Context, playlistID string) (models.PlaylistView, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	playlist, ok := s.data.Playlists[playlistID]
	if !ok {
		return models.PlaylistView{}, fmt.Errorf("playlist %s: %w", playlistID, ErrNotFound)
	}
	view, ok := s.playlistViewLocked(playlist, true)
	if !ok {
		return models.PlaylistView{}, fmt.Errorf("playlist %s owner: %w", playlistID, ErrNotFound)
	}
	return view, nil
}

func (s *JSONRepository) sortedSubscriptionsLocked(match func(models.Subscription) bool) []models.Subscription {
	subs := make([]models.Subscription, 0)
	for _, sub := range s.data.Subscriptions {
		if match(sub) {
			subs = append(subs, sub)
		}
	}
	sort.SliceStable(subs, func(i, j int) bool {
		return s.data.newestFirst(subs[i].CreatedAt, subs[i].ID, subs[j].CreatedAt, subs[j].ID)
	})
	return subs
}

func channelSummary(user models.User) models.ChannelSummary {
	return models.ChannelSummary{UserSummary: user.Summary(), CreatedAt: user.CreatedAt}
}

func (s *JSONRepository) ChannelSubscribers(_ context.Context, channelID string, window Window) ([]models.SubscriberView, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	subs := s.sortedSubscriptionsLocked(func(sub models.Subscription) bool {
		return sub.ChannelID == channelID
	})
	rows := make([]models.SubscriberView, 0, len(subs))
	for _, sub := range subs {
		subscriber, ok := s.data.Users[sub.SubscriberID]
		if !ok {
			continue
		}
		rows = append(rows, models.SubscriberView{
			Subscriber:   channelSummary(subscriber),
			SubscribedAt: sub.CreatedAt,
		})
	}
	start, end := window.bounds(len(rows))
	return rows[start:end], nil
}

func (s *JSONRepository) SubscribedChannels(_ context.Context, subscriberID string, window Window) ([]models.SubscribedChannelView, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	subs := s.sortedSubscriptionsLocked(func(sub models.Subscription) bool {
		return sub.SubscriberID == subscriberID
	})
	rows := make([]models.SubscribedChannelView, 0, len(subs))
	for _, sub := range subs {
		channel, ok := s.data.Users[sub.ChannelID]
		if !ok {
			continue
		}
		row := models.SubscribedChannelView{
			Channel:      channelSummary(channel),
			SubscribedAt: sub.CreatedAt,
		}
		for _, video := range s.data.Videos {
			if video.OwnerID == channel.ID {
				row.TotalVideos++
				row.TotalViews += video.Views
			}
		}
		rows = append(rows, row)
	}
	start, end := window.bounds(len(rows))
	return rows[start:end], nil
}

func (s *JSONRepository) CountSubscriptions(_ context.Context, subscriberID string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var count int64
	for _, sub := range s.data.Subscriptions {
		if sub.SubscriberID == subscriberID {
			count++
		}
	}
	return count, nil
}

func (s *JSONRepository) CountSubscribers(_ context.Context, channelID string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var count int64
	for _, sub := range s.data.Subscriptions {
		if sub.ChannelID == channelID {
			count++
		}
	}
	return count, nil
}

func (s *JSONRepository) SumVideoViews(_ context.Context, ownerID string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var total int64
	for _, video := range s.data.Videos {
		if video.OwnerID == ownerID {
			total += video.Views
		}
	}
	return total, nil
}

func (s *JSONRepository) CountVideos(_ context.Context, ownerID string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var count int64
	for _, video := range s.data.Videos {
		if video.OwnerID == ownerID {
			count++
		}
	}
	return count, nil
}

// CountVideoLikes counts likes whose target is a video owned by ownerID.
func (s *JSONRepository) CountVideoLikes(_ context.Context, ownerID string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var count int64
	for _, like := range s.data.Likes {
		if like.Target.Kind != models.TargetVideo {
			continue
		}
		video, ok := s.data.Videos[like.Target.ID]
		if ok && video.OwnerID == ownerID {
			count++
		}
	}
	return count, nil
}
