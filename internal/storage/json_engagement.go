package storage

import (
	"context"
	"fmt"

	"vidtube/internal/ids"
	"vidtube/internal/models"
)

func (d *dataset) targetExists(target models.Target) bool {
	switch target.Kind {
	case models.TargetVideo:
		_, ok := d.Videos[target.ID]
		return ok
	case models.TargetComment:
		_, ok := d.Comments[target.ID]
		return ok
	case models.TargetTweet:
		_, ok := d.Tweets[target.ID]
		return ok
	default:
		return false
	}
}

func (s *JSONRepository) FindLike(_ context.Context, userID string, target models.Target) (models.Like, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.likeIndex[likeKey{userID: userID, target: target}]
	if !ok {
		return models.Like{}, fmt.Errorf("like by %s on %s: %w", userID, target, ErrNotFound)
	}
	return s.data.Likes[id], nil
}

// CreateLike records the like unless one already exists for the same user and
// target, in which case ErrConflict is returned. The check and the insert run
// under the write lock.
func (s *JSONRepository) CreateLike(_ context.Context, userID string, target models.Target) (models.Like, error) {
	if !target.Kind.Valid() {
		return models.Like{}, fmt.Errorf("unknown like target kind %q", target.Kind)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := likeKey{userID: userID, target: target}
	if _, exists := s.likeIndex[key]; exists {
		return models.Like{}, fmt.Errorf("like by %s on %s: %w", userID, target, ErrConflict)
	}
	if _, ok := s.data.Users[userID]; !ok {
		return models.Like{}, fmt.Errorf("user %s: %w", userID, ErrNotFound)
	}
	if !s.data.targetExists(target) {
		return models.Like{}, fmt.Errorf("%s: %w", target, ErrNotFound)
	}

	like := models.Like{
		ID:        ids.New(),
		LikedBy:   userID,
		Target:    target,
		CreatedAt: s.timestamp(),
	}

	updated := cloneDataset(s.data)
	updated.Likes[like.ID] = like
	updated.recordInsert(like.ID)
	if err := s.commitLocked(updated); err != nil {
		return models.Like{}, err
	}
	return like, nil
}

func (s *JSONRepository) DeleteLike(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.data.Likes[id]; !ok {
		return fmt.Errorf("like %s: %w", id, ErrNotFound)
	}
	updated := cloneDataset(s.data)
	delete(updated.Likes, id)
	delete(updated.Inserted, id)
	return s.commitLocked(updated)
}

func (s *JSONRepository) FindSubscription(_ context.Context, subscriberID, channelID string) (models.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.subscriptionIndex[subscriptionKey{subscriberID: subscriberID, channelID: channelID}]
	if !ok {
		return models.Subscription{}, fmt.Errorf("subscription %s -> %s: %w", subscriberID, channelID, ErrNotFound)
	}
	return s.data.Subscriptions[id], nil
}

func (s *JSONRepository) CreateSubscription(_ context.Context, subscriberID, channelID string) (models.Subscription, error) {
	if subscriberID == channelID {
		return models.Subscription{}, fmt.Errorf("subscriber and channel must differ")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := subscriptionKey{subscriberID: subscriberID, channelID: channelID}
	if _, exists := s.subscriptionIndex[key]; exists {
		return models.Subscription{}, fmt.Errorf("subscription %s -> %s: %w", subscriberID, channelID, ErrConflict)
	}
	if _, ok := s.data.Users[subscriberID]; !ok {
		return models.Subscription{}, fmt.Errorf("user %s: %w", subscriberID, ErrNotFound)
	}
	if _, ok := s.data.Users[channelID]; !ok {
		return models.Subscription{}, fmt.Errorf("channel %s: %w", channelID, ErrNotFound)
	}

	sub := models.Subscription{
		ID:           ids.New(),
		SubscriberID: subscriberID,
		ChannelID:    channelID,
		CreatedAt:    s.timestamp(),
	}

	updated := cloneDataset(s.data)
	updated.Subscriptions[sub.ID] = sub
	updated.recordInsert(sub.ID)
	if err := s.commitLocked(updated); err != nil {
		return models.Subscription{}, err
	}
	return sub, nil
}

func (s *JSONRepository) DeleteSubscription(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.data.Subscriptions[id]; !ok {
		return fmt.Errorf("subscription %s: %w", id, ErrNotFound)
	}
	updated := cloneDataset(s.data)
	delete(updated.Subscriptions, id)
	delete(updated.Inserted, id)
	return s.commitLocked(updated)
}
