package storage

import (
	"context"
	"fmt"

	"vidtube/internal/ids"
	"vidtube/internal/models"

	"go.mongodb.org/mongo-driver/bson"
)

// likeTargetField names the document field holding a target of that kind.
func likeTargetField(kind models.TargetKind) (string, error) {
	switch kind {
	case models.TargetVideo:
		return "video", nil
	case models.TargetComment:
		return "comment", nil
	case models.TargetTweet:
		return "tweet", nil
	default:
		return "", fmt.Errorf("unknown like target kind %q", kind)
	}
}

func likeTargetCollection(kind models.TargetKind) string {
	switch kind {
	case models.TargetComment:
		return commentsCollection
	case models.TargetTweet:
		return tweetsCollection
	default:
		return videosCollection
	}
}

func (r *MongoRepository) FindLike(ctx context.Context, userID string, target models.Target) (models.Like, error) {
	field, err := likeTargetField(target.Kind)
	if err != nil {
		return models.Like{}, err
	}
	var doc likeDocument
	err = r.collection(likesCollection).FindOne(ctx, bson.M{"likedBy": userID, field: target.ID}).Decode(&doc)
	if err != nil {
		return models.Like{}, translateMongoError(err, fmt.Sprintf("like by %s on %s", userID, target))
	}
	return doc.model(), nil
}

// CreateLike inserts the like. A concurrent insert for the same user and
// target trips the partial unique index and surfaces as ErrConflict.
func (r *MongoRepository) CreateLike(ctx context.Context, userID string, target models.Target) (models.Like, error) {
	if _, err := likeTargetField(target.Kind); err != nil {
		return models.Like{}, err
	}
	if err := r.requireExists(ctx, likeTargetCollection(target.Kind), target.ID); err != nil {
		return models.Like{}, err
	}
	now := r.timestamp()
	doc := newLikeDocument(ids.New(), userID, target, now, r.seq.next(now))
	if _, err := r.collection(likesCollection).InsertOne(ctx, doc); err != nil {
		return models.Like{}, translateMongoError(err, fmt.Sprintf("like by %s on %s", userID, target))
	}
	return doc.model(), nil
}

func (r *MongoRepository) DeleteLike(ctx context.Context, id string) error {
	result, err := r.collection(likesCollection).DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return translateMongoError(err, "like "+id)
	}
	if result.DeletedCount == 0 {
		return fmt.Errorf("like %s: %w", id, ErrNotFound)
	}
	return nil
}

func (r *MongoRepository) FindSubscription(ctx context.Context, subscriberID, channelID string) (models.Subscription, error) {
	var doc subscriptionDocument
	err := r.collection(subscriptionsCollection).FindOne(ctx, bson.M{"subscriber": subscriberID, "channel": channelID}).Decode(&doc)
	if err != nil {
		return models.Subscription{}, translateMongoError(err, fmt.Sprintf("subscription %s -> %s", subscriberID, channelID))
	}
	return doc.model(), nil
}

func (r *MongoRepository) CreateSubscription(ctx context.Context, subscriberID, channelID string) (models.Subscription, error) {
	if subscriberID == channelID {
		return models.Subscription{}, fmt.Errorf("subscriber and channel must differ")
	}
	if err := r.requireExists(ctx, usersCollection, channelID); err != nil {
		return models.Subscription{}, err
	}
	now := r.timestamp()
	doc := subscriptionDocument{
		ID:         ids.New(),
		Subscriber: subscriberID,
		Channel:    channelID,
		CreatedAt:  now,
		Seq:        r.seq.next(now),
	}
	if _, err := r.collection(subscriptionsCollection).InsertOne(ctx, doc); err != nil {
		return models.Subscription{}, translateMongoError(err, fmt.Sprintf("subscription %s -> %s", subscriberID, channelID))
	}
	return doc.model(), nil
}

func (r *MongoRepository) DeleteSubscription(ctx context.Context, id string) error {
	result, err := r.collection(subscriptionsCollection).DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return translateMongoError(err, "subscription "+id)
	}
	if result.DeletedCount == 0 {
		return fmt.Errorf("subscription %s: %w", id, ErrNotFound)
	}
	return nil
}
