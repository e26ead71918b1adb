package storage

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"vidtube/internal/ids"
	"vidtube/internal/models"
)

func (s *JSONRepository) CreateVideo(_ context.Context, params CreateVideoParams) (models.Video, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.data.Users[params.OwnerID]; !ok {
		return models.Video{}, fmt.Errorf("owner %s: %w", params.OwnerID, ErrNotFound)
	}

	now := s.timestamp()
	video := models.Video{
		ID:          ids.New(),
		OwnerID:     params.OwnerID,
		Title:       strings.TrimSpace(params.Title),
		Description: strings.TrimSpace(params.Description),
		Duration:    params.Duration,
		VideoFile:   strings.TrimSpace(params.VideoFile),
		Thumbnail:   strings.TrimSpace(params.Thumbnail),
		IsPublished: params.IsPublished,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	updated := cloneDataset(s.data)
	updated.Videos[video.ID] = video
	updated.recordInsert(video.ID)
	if err := s.commitLocked(updated); err != nil {
		return models.Video{}, err
	}
	return video, nil
}

func (s *JSONRepository) GetVideo(_ context.Context, id string) (models.Video, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	video, ok := s.data.Videos[id]
	if !ok {
		return models.Video{}, fmt.Errorf("video %s: %w", id, ErrNotFound)
	}
	return video, nil
}

func (s *JSONRepository) UpdateVideo(_ context.Context, id string, update VideoUpdate) (models.Video, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	video, ok := s.data.Videos[id]
	if !ok {
		return models.Video{}, fmt.Errorf("video %s: %w", id, ErrNotFound)
	}
	if update.Title != nil {
		video.Title = strings.TrimSpace(*update.Title)
	}
	if update.Description != nil {
		video.Description = strings.TrimSpace(*update.Description)
	}
	if update.Thumbnail != nil {
		video.Thumbnail = strings.TrimSpace(*update.Thumbnail)
	}
	if update.IsPublished != nil {
		video.IsPublished = *update.IsPublished
	}
	video.UpdatedAt = s.timestamp()

	updated := cloneDataset(s.data)
	updated.Videos[id] = video
	if err := s.commitLocked(updated); err != nil {
		return models.Video{}, err
	}
	return video, nil
}

func (s *JSONRepository) IncrementVideoViews(_ context.Context, id string, delta int64) error {
	if delta <= 0 {
		return fmt.Errorf("view delta must be positive")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	video, ok := s.data.Videos[id]
	if !ok {
		return fmt.Errorf("video %s: %w", id, ErrNotFound)
	}
	video.Views += delta

	updated := cloneDataset(s.data)
	updated.Videos[id] = video
	return s.commitLocked(updated)
}

// DeleteVideo removes the video together with its likes, its comments and
// their likes, and its playlist memberships.
func (s *JSONRepository) DeleteVideo(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.data.Videos[id]; !ok {
		return fmt.Errorf("video %s: %w", id, ErrNotFound)
	}

	updated := cloneDataset(s.data)
	delete(updated.Videos, id)
	delete(updated.Inserted, id)
	updated.deleteLikesFor(models.VideoTarget(id))
	for commentID, comment := range updated.Comments {
		if comment.VideoID != id {
			continue
		}
		delete(updated.Comments, commentID)
		delete(updated.Inserted, commentID)
		updated.deleteLikesFor(models.CommentTarget(commentID))
	}
	for playlistID, playlist := range updated.Playlists {
		if !playlist.HasVideo(id) {
			continue
		}
		playlist.VideoIDs = removeString(playlist.VideoIDs, id)
		updated.Playlists[playlistID] = playlist
	}
	return s.commitLocked(updated)
}

func (d *dataset) deleteLikesFor(target models.Target) {
	for likeID, like := range d.Likes {
		if like.Target == target {
			delete(d.Likes, likeID)
			delete(d.Inserted, likeID)
		}
	}
}

func removeString(values []string, needle string) []string {
	out := make([]string, 0, len(values))
	for _, value := range values {
		if value != needle {
			out = append(out, value)
		}
	}
	return out
}

func (s *JSONRepository) ListVideos(_ context.Context, query VideoQuery) ([]models.Video, int64, error) {
	needle := strings.ToLower(strings.TrimSpace(query.Query))

	s.mu.RLock()
	defer s.mu.RUnlock()

	matches := make([]models.Video, 0)
	for _, video := range s.data.Videos {
		if query.OwnerID != "" && video.OwnerID != query.OwnerID {
			continue
		}
		if !video.IsPublished && (query.ViewerID == "" || video.OwnerID != query.ViewerID) {
			continue
		}
		if needle != "" && !strings.Contains(strings.ToLower(video.Title), needle) {
			continue
		}
		matches = append(matches, video)
	}

	sort.SliceStable(matches, func(i, j int) bool {
		a, b := matches[i], matches[j]
		if query.SortBy == SortByViews && a.Views != b.Views {
			if query.Ascending {
				return a.Views < b.Views
			}
			return a.Views > b.Views
		}
		if query.Ascending && !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return s.data.newestFirst(a.CreatedAt, a.ID, b.CreatedAt, b.ID)
	})

	start, end := query.Window.bounds(len(matches))
	return matches[start:end], int64(len(matches)), nil
}

func (s *JSONRepository) CreateComment(_ context.Context, videoID, ownerID, content string) (models.Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.data.Videos[videoID]; !ok {
		return models.Comment{}, fmt.Errorf("video %s: %w", videoID, ErrNotFound)
	}
	if _, ok := s.data.Users[ownerID]; !ok {
		return models.Comment{}, fmt.Errorf("owner %s: %w", ownerID, ErrNotFound)
	}

	now := s.timestamp()
	comment := models.Comment{
		ID:        ids.New(),
		VideoID:   videoID,
		OwnerID:   ownerID,
		Content:   strings.TrimSpace(content),
		CreatedAt: now,
		UpdatedAt: now,
	}

	updated := cloneDataset(s.data)
	updated.Comments[comment.ID] = comment
	updated.recordInsert(comment.ID)
	if err := s.commitLocked(updated); err != nil {
		return models.Comment{}, err
	}
	return comment, nil
}

func (s *JSONRepository) GetComment(_ context.Context, id string) (models.Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	comment, ok := s.data.Comments[id]
	if !ok {
		return models.Comment{}, fmt.Errorf("comment %s: %w", id, ErrNotFound)
	}
	return comment, nil
}

func (s *JSONRepository) UpdateComment(_ context.Context, id, content string) (models.Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	comment, ok := s.data.Comments[id]
	if !ok {
		return models.Comment{}, fmt.Errorf("comment %s: %w", id, ErrNotFound)
	}
	comment.Content = strings.TrimSpace(content)
	comment.UpdatedAt = s.timestamp()

	updated := cloneDataset(s.data)
	updated.Comments[id] = comment
	if err := s.commitLocked(updated); err != nil {
		return models.Comment{}, err
	}
	return comment, nil
}

func (s *JSONRepository) DeleteComment(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.data.Comments[id]; !ok {
		return fmt.Errorf("comment %s: %w", id, ErrNotFound)
	}
	updated := cloneDataset(s.data)
	delete(updated.Comments, id)
	delete(updated.Inserted, id)
	updated.deleteLikesFor(models.CommentTarget(id))
	return s.commitLocked(updated)
}

func (s *JSONRepository) CreateTweet(_ context.Context, ownerID, content string) (models.Tweet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.data.Users[ownerID]; !ok {
		return models.Tweet{}, fmt.Errorf("owner %s: %w", ownerID, ErrNotFound)
	}

	now := s.timestamp()
	tweet := models.Tweet{
		ID:        ids.New(),
		OwnerID:   ownerID,
		Content:   strings.TrimSpace(content),
		CreatedAt: now,
		UpdatedAt: now,
	}

	updated := cloneDataset(s.data)
	updated.Tweets[tweet.ID] = tweet
	updated.recordInsert(tweet.ID)
	if err := s.commitLocked(updated); err != nil {
		return models.Tweet{}, err
	}
	return tweet, nil
}

func (s *JSONRepository) GetTweet(_ context.Context, id string) (models.Tweet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tweet, ok := s.data.Tweets[id]
	if !ok {
		return models.Tweet{}, fmt.Errorf("tweet %s: %w", id, ErrNotFound)
	}
	return tweet, nil
}

func (s *JSONRepository) UpdateTweet(_ context.Context, id, content string) (models.Tweet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tweet, ok := s.data.Tweets[id]
	if !ok {
		return models.Tweet{}, fmt.Errorf("tweet %s: %w", id, ErrNotFound)
	}
	tweet.Content = strings.TrimSpace(content)
	tweet.UpdatedAt = s.timestamp()

	updated := cloneDataset(s.data)
	updated.Tweets[id] = tweet
	if err := s.commitLocked(updated); err != nil {
		return models.Tweet{}, err
	}
	return tweet, nil
}

func (s *JSONRepository) DeleteTweet(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.data.Tweets[id]; !ok {
		return fmt.Errorf("tweet %s: %w", id, ErrNotFound)
	}
	updated := cloneDataset(s.data)
	delete(updated.Tweets, id)
	delete(updated.Inserted, id)
	updated.deleteLikesFor(models.TweetTarget(id))
	return s.commitLocked(updated)
}

func (s *JSONRepository) CreatePlaylist(_ context.Context, ownerID, name, description string) (models.Playlist, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.data.Users[ownerID]; !ok {
		return models.Playlist{}, fmt.Errorf("owner %s: %w", ownerID, ErrNotFound)
	}

	now := s.timestamp()
	playlist := models.Playlist{
		ID:          ids.New(),
		OwnerID:     ownerID,
		Name:        strings.TrimSpace(name),
		Description: strings.TrimSpace(description),
		VideoIDs:    []string{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	updated := cloneDataset(s.data)
	updated.Playlists[playlist.ID] = playlist
	updated.recordInsert(playlist.ID)
	if err := s.commitLocked(updated); err != nil {
		return models.Playlist{}, err
	}
	return playlist, nil
}

func (s *JSONRepository) GetPlaylist(_ context.Context, id string) (models.Playlist, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	playlist, ok := s.data.Playlists[id]
	if !ok {
		return models.Playlist{}, fmt.Errorf("playlist %s: %w", id, ErrNotFound)
	}
	playlist.VideoIDs = append([]string{}, playlist.VideoIDs...)
	return playlist, nil
}

func (s *JSONRepository) UpdatePlaylist(_ context.Context, id string, update PlaylistUpdate) (models.Playlist, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	updated := cloneDataset(s.data)
	playlist, ok := updated.Playlists[id]
	if !ok {
		return models.Playlist{}, fmt.Errorf("playlist %s: %w", id, ErrNotFound)
	}
	if update.Name != nil {
		playlist.Name = strings.TrimSpace(*update.Name)
	}
	if update.Description != nil {
		playlist.Description = strings.TrimSpace(*update.Description)
	}
	playlist.UpdatedAt = s.timestamp()
	updated.Playlists[id] = playlist
	if err := s.commitLocked(updated); err != nil {
		return models.Playlist{}, err
	}
	return playlist, nil
}

// AddPlaylistVideo appends the video to the playlist. Adding a video that is
// already present returns ErrConflict.
func (s *JSONRepository) AddPlaylistVideo(_ context.Context, playlistID, videoID string) (models.Playlist, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	updated := cloneDataset(s.data)
	playlist, ok := updated.Playlists[playlistID]
	if !ok {
		return models.Playlist{}, fmt.Errorf("playlist %s: %w", playlistID, ErrNotFound)
	}
	if _, ok := updated.Videos[videoID]; !ok {
		return models.Playlist{}, fmt.Errorf("video %s: %w", videoID, ErrNotFound)
	}
	if playlist.HasVideo(videoID) {
		return models.Playlist{}, fmt.Errorf("video %s in playlist %s: %w", videoID, playlistID, ErrConflict)
	}
	playlist.VideoIDs = append(playlist.VideoIDs, videoID)
	playlist.UpdatedAt = s.timestamp()
	updated.Playlists[playlistID] = playlist
	if err := s.commitLocked(updated); err != nil {
		return models.Playlist{}, err
	}
	return playlist, nil
}

// RemovePlaylistVideo drops the video from the playlist. Removing a video that
// is not present returns ErrNotFound.
func (s *JSONRepository) RemovePlaylistVideo(_ context.Context, playlistID, videoID string) (models.Playlist, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	updated := cloneDataset(s.data)
	playlist, ok := updated.Playlists[playlistID]
	if !ok {
		return models.Playlist{}, fmt.Errorf("playlist %s: %w", playlistID, ErrNotFound)
	}
	if !playlist.HasVideo(videoID) {
		return models.Playlist{}, fmt.Errorf("video %s in playlist %s: %w", videoID, playlistID, ErrNotFound)
	}
	playlist.VideoIDs = removeString(playlist.VideoIDs, videoID)
	playlist.UpdatedAt = s.timestamp()
	updated.Playlists[playlistID] = playlist
	if err := s.commitLocked(updated); err != nil {
		return models.Playlist{}, err
	}
	return playlist, nil
}

func (s *JSONRepository) DeletePlaylist(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.data.Playlists[id]; !ok {
		return fmt.Errorf("playlist %s: %w", id, ErrNotFound)
	}
	updated := cloneDataset(s.data)
	delete(updated.Playlists, id)
	delete(updated.Inserted, id)
	return s.commitLocked(updated)
}
