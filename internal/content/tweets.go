package content

import (
	"context"
	"strings"

	"vidtube/internal/models"
)

type TweetInput struct {
	Content string `json:"content" validate:"notblank,max=500"`
}

func (s *Service) CreateTweet(ctx context.Context, actingUserID string, input TweetInput) (models.Tweet, error) {
	if err := requireActor(actingUserID); err != nil {
		return models.Tweet{}, err
	}
	if err := s.check(input); err != nil {
		return models.Tweet{}, err
	}
	tweet, err := s.store.CreateTweet(ctx, actingUserID, strings.TrimSpace(input.Content))
	if err != nil {
		return models.Tweet{}, s.fail(ctx, err, "user")
	}
	return tweet, nil
}

func (s *Service) UpdateTweet(ctx context.Context, actingUserID, tweetID string, input TweetInput) (models.Tweet, error) {
	if err := s.ownTweet(ctx, actingUserID, tweetID, "update"); err != nil {
		return models.Tweet{}, err
	}
	if err := s.check(input); err != nil {
		return models.Tweet{}, err
	}
	tweet, err := s.store.UpdateTweet(ctx, tweetID, strings.TrimSpace(input.Content))
	if err != nil {
		return models.Tweet{}, s.fail(ctx, err, "tweet")
	}
	return tweet, nil
}

// DeleteTweet removes the tweet and every like on it.
func (s *Service) DeleteTweet(ctx context.Context, actingUserID, tweetID string) error {
	if err := s.ownTweet(ctx, actingUserID, tweetID, "delete"); err != nil {
		return err
	}
	if err := s.store.DeleteTweet(ctx, tweetID); err != nil {
		return s.fail(ctx, err, "tweet")
	}
	return nil
}

func (s *Service) ownTweet(ctx context.Context, actingUserID, tweetID, action string) error {
	if err := requireActor(actingUserID); err != nil {
		return err
	}
	if err := requireID(tweetID, "tweet"); err != nil {
		return err
	}
	tweet, err := s.store.GetTweet(ctx, tweetID)
	if err != nil {
		return s.fail(ctx, err, "tweet")
	}
	if tweet.OwnerID != actingUserID {
		return forbidden(action, "tweet")
	}
	return nil
}
