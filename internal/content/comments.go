package content

import (
	"context"
	"strings"

	"vidtube/internal/feed"
	"vidtube/internal/models"
)

type CommentInput struct {
	Content string `json:"content" validate:"notblank,max=2000"`
}

type CommentsPage struct {
	Comments []models.CommentView `json:"comments"`
	Total    int64                `json:"total"`
	Page     int                  `json:"page"`
	Limit    int                  `json:"limit"`
}

// AddComment posts a comment on a video the caller can see.
func (s *Service) AddComment(ctx context.Context, actingUserID, videoID string, input CommentInput) (models.Comment, error) {
	if err := requireActor(actingUserID); err != nil {
		return models.Comment{}, err
	}
	if err := requireID(videoID, "video"); err != nil {
		return models.Comment{}, err
	}
	if err := s.check(input); err != nil {
		return models.Comment{}, err
	}
	if _, err := s.visibleVideo(ctx, actingUserID, videoID); err != nil {
		return models.Comment{}, err
	}
	comment, err := s.store.CreateComment(ctx, videoID, actingUserID, strings.TrimSpace(input.Content))
	if err != nil {
		return models.Comment{}, s.fail(ctx, err, "video")
	}
	return comment, nil
}

// VideoComments lists a video's comments newest first.
func (s *Service) VideoComments(ctx context.Context, videoID, actingUserID string, page feed.PageRequest) (CommentsPage, error) {
	if err := requireID(videoID, "video"); err != nil {
		return CommentsPage{}, err
	}
	if _, err := s.visibleVideo(ctx, actingUserID, videoID); err != nil {
		return CommentsPage{}, err
	}
	page = page.Normalized()
	rows, err := s.store.VideoComments(ctx, videoID, actingUserID, page.Window())
	if err != nil {
		return CommentsPage{}, s.fail(ctx, err, "comments")
	}
	total, err := s.store.CountComments(ctx, videoID)
	if err != nil {
		return CommentsPage{}, s.fail(ctx, err, "comments")
	}
	if rows == nil {
		rows = []models.CommentView{}
	}
	return CommentsPage{Comments: rows, Total: total, Page: page.Page, Limit: page.Limit}, nil
}

func (s *Service) UpdateComment(ctx context.Context, actingUserID, commentID string, input CommentInput) (models.Comment, error) {
	if err := s.ownComment(ctx, actingUserID, commentID, "update"); err != nil {
		return models.Comment{}, err
	}
	if err := s.check(input); err != nil {
		return models.Comment{}, err
	}
	comment, err := s.store.UpdateComment(ctx, commentID, strings.TrimSpace(input.Content))
	if err != nil {
		return models.Comment{}, s.fail(ctx, err, "comment")
	}
	return comment, nil
}

// DeleteComment removes the comment and every like on it.
func (s *Service) DeleteComment(ctx context.Context, actingUserID, commentID string) error {
	if err := s.ownComment(ctx, actingUserID, commentID, "delete"); err != nil {
		return err
	}
	if err := s.store.DeleteComment(ctx, commentID); err != nil {
		return s.fail(ctx, err, "comment")
	}
	return nil
}

func (s *Service) ownComment(ctx context.Context, actingUserID, commentID, action string) error {
	if err := requireActor(actingUserID); err != nil {
		return err
	}
	if err := requireID(commentID, "comment"); err != nil {
		return err
	}
	comment, err := s.store.GetComment(ctx, commentID)
	if err != nil {
		return s.fail(ctx, err, "comment")
	}
	if comment.OwnerID != actingUserID {
		return forbidden(action, "comment")
	}
	return nil
}
