package content

import (
	"context"
	"strings"

	"vidtube/internal/apperr"
	"vidtube/internal/feed"
	"vidtube/internal/models"
	"vidtube/internal/storage"
)

// VideoInput describes a video whose media has already been uploaded to
// external storage.
type VideoInput struct {
	Title       string  `json:"title" validate:"notblank,max=200"`
	Description string  `json:"description" validate:"max=5000"`
	Duration    float64 `json:"duration" validate:"gte=0"`
	VideoFile   string  `json:"videoFile" validate:"required,url"`
	Thumbnail   string  `json:"thumbnail" validate:"required,url"`
	IsPublished *bool   `json:"isPublished"`
}

// VideoPatch changes video metadata; nil fields are left untouched.
type VideoPatch struct {
	Title       *string `json:"title" validate:"omitempty,notblank,max=200"`
	Description *string `json:"description" validate:"omitempty,max=5000"`
	Thumbnail   *string `json:"thumbnail" validate:"omitempty,url"`
}

type ListVideosInput struct {
	Query    string `json:"query" validate:"max=200"`
	OwnerID  string `json:"userId"`
	SortBy   string `json:"sortBy" validate:"omitempty,oneof=createdAt views"`
	SortType string `json:"sortType" validate:"omitempty,oneof=asc desc"`
	Page     feed.PageRequest
}

type VideosPage struct {
	Videos []models.Video `json:"videos"`
	Total  int64          `json:"total"`
	Page   int            `json:"page"`
	Limit  int            `json:"limit"`
}

func (s *Service) PublishVideo(ctx context.Context, actingUserID string, input VideoInput) (models.Video, error) {
	if err := requireActor(actingUserID); err != nil {
		return models.Video{}, err
	}
	if err := s.check(input); err != nil {
		return models.Video{}, err
	}
	published := true
	if input.IsPublished != nil {
		published = *input.IsPublished
	}
	video, err := s.store.CreateVideo(ctx, storage.CreateVideoParams{
		OwnerID:     actingUserID,
		Title:       strings.TrimSpace(input.Title),
		Description: strings.TrimSpace(input.Description),
		Duration:    input.Duration,
		VideoFile:   input.VideoFile,
		Thumbnail:   input.Thumbnail,
		IsPublished: published,
	})
	if err != nil {
		return models.Video{}, s.fail(ctx, err, "user")
	}
	return video, nil
}

// GetVideo returns a video and counts the read as one view. Unpublished
// videos are visible to their owner only.
func (s *Service) GetVideo(ctx context.Context, actingUserID, videoID string) (models.Video, error) {
	if err := requireID(videoID, "video"); err != nil {
		return models.Video{}, err
	}
	video, err := s.visibleVideo(ctx, actingUserID, videoID)
	if err != nil {
		return models.Video{}, err
	}
	if err := s.store.IncrementVideoViews(ctx, videoID, 1); err != nil {
		return models.Video{}, s.fail(ctx, err, "video")
	}
	video.Views++
	return video, nil
}

func (s *Service) UpdateVideo(ctx context.Context, actingUserID, videoID string, patch VideoPatch) (models.Video, error) {
	if _, err := s.ownVideo(ctx, actingUserID, videoID, "update"); err != nil {
		return models.Video{}, err
	}
	if err := s.check(patch); err != nil {
		return models.Video{}, err
	}
	video, err := s.store.UpdateVideo(ctx, videoID, storage.VideoUpdate{
		Title:       trimmed(patch.Title),
		Description: trimmed(patch.Description),
		Thumbnail:   patch.Thumbnail,
	})
	if err != nil {
		return models.Video{}, s.fail(ctx, err, "video")
	}
	return video, nil
}

// TogglePublish flips the published flag and returns the updated video.
func (s *Service) TogglePublish(ctx context.Context, actingUserID, videoID string) (models.Video, error) {
	current, err := s.ownVideo(ctx, actingUserID, videoID, "update")
	if err != nil {
		return models.Video{}, err
	}
	next := !current.IsPublished
	video, err := s.store.UpdateVideo(ctx, videoID, storage.VideoUpdate{IsPublished: &next})
	if err != nil {
		return models.Video{}, s.fail(ctx, err, "video")
	}
	return video, nil
}

// DeleteVideo removes the video together with its likes, its comments, the
// likes on those comments and its playlist memberships.
func (s *Service) DeleteVideo(ctx context.Context, actingUserID, videoID string) error {
	if _, err := s.ownVideo(ctx, actingUserID, videoID, "delete"); err != nil {
		return err
	}
	if err := s.store.DeleteVideo(ctx, videoID); err != nil {
		return s.fail(ctx, err, "video")
	}
	return nil
}

func (s *Service) ListVideos(ctx context.Context, actingUserID string, input ListVideosInput) (VideosPage, error) {
	if err := s.check(input); err != nil {
		return VideosPage{}, err
	}
	if input.OwnerID != "" {
		if err := requireID(input.OwnerID, "user"); err != nil {
			return VideosPage{}, err
		}
	}
	page := input.Page.Normalized()
	sortBy := storage.SortByCreatedAt
	if input.SortBy == string(storage.SortByViews) {
		sortBy = storage.SortByViews
	}
	videos, total, err := s.store.ListVideos(ctx, storage.VideoQuery{
		Query:     input.Query,
		OwnerID:   input.OwnerID,
		ViewerID:  actingUserID,
		SortBy:    sortBy,
		Ascending: input.SortType == "asc",
		Window:    page.Window(),
	})
	if err != nil {
		return VideosPage{}, s.fail(ctx, err, "videos")
	}
	if videos == nil {
		videos = []models.Video{}
	}
	return VideosPage{Videos: videos, Total: total, Page: page.Page, Limit: page.Limit}, nil
}

// visibleVideo loads a video, hiding unpublished videos from everyone but
// their owner.
func (s *Service) visibleVideo(ctx context.Context, actingUserID, videoID string) (models.Video, error) {
	video, err := s.store.GetVideo(ctx, videoID)
	if err != nil {
		return models.Video{}, s.fail(ctx, err, "video")
	}
	if !video.IsPublished && video.OwnerID != actingUserID {
		return models.Video{}, apperr.NotFound("video not found")
	}
	return video, nil
}

func (s *Service) ownVideo(ctx context.Context, actingUserID, videoID, action string) (models.Video, error) {
	if err := requireActor(actingUserID); err != nil {
		return models.Video{}, err
	}
	if err := requireID(videoID, "video"); err != nil {
		return models.Video{}, err
	}
	video, err := s.store.GetVideo(ctx, videoID)
	if err != nil {
		return models.Video{}, s.fail(ctx, err, "video")
	}
	if video.OwnerID != actingUserID {
		return models.Video{}, forbidden(action, "video")
	}
	return video, nil
}

func trimmed(value *string) *string {
	if value == nil {
		return nil
	}
	out := strings.TrimSpace(*value)
	return &out
}
