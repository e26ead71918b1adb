package storage

import (
	"context"
	"fmt"

	"vidtube/internal/ids"
	"vidtube/internal/models"

	"github.com/jackc/pgx/v5/pgxpool"
)

// likeTargetColumn names the reference column used for a target kind.
func likeTargetColumn(kind models.TargetKind) (string, error) {
	switch kind {
	case models.TargetVideo:
		return "video_id", nil
	case models.TargetComment:
		return "comment_id", nil
	case models.TargetTweet:
		return "tweet_id", nil
	default:
		return "", fmt.Errorf("unknown like target kind %q", kind)
	}
}

func (r *PostgresRepository) FindLike(ctx context.Context, userID string, target models.Target) (models.Like, error) {
	column, err := likeTargetColumn(target.Kind)
	if err != nil {
		return models.Like{}, err
	}
	like := models.Like{LikedBy: userID, Target: target}
	err = r.withConn(ctx, func(ctx context.Context, conn *pgxpool.Conn) error {
		err := conn.QueryRow(ctx, `SELECT id, created_at FROM likes WHERE liked_by = $1 AND `+column+` = $2`, userID, target.ID).
			Scan(&like.ID, &like.CreatedAt)
		return translatePgError(err, fmt.Sprintf("like by %s on %s", userID, target))
	})
	if err != nil {
		return models.Like{}, err
	}
	return like, nil
}

// CreateLike inserts the like. A concurrent insert for the same user and
// target trips the partial unique index and surfaces as ErrConflict.
func (r *PostgresRepository) CreateLike(ctx context.Context, userID string, target models.Target) (models.Like, error) {
	column, err := likeTargetColumn(target.Kind)
	if err != nil {
		return models.Like{}, err
	}
	like := models.Like{
		ID:        ids.New(),
		LikedBy:   userID,
		Target:    target,
		CreatedAt: r.timestamp(),
	}
	err = r.withConn(ctx, func(ctx context.Context, conn *pgxpool.Conn) error {
		_, err := conn.Exec(ctx, `
INSERT INTO likes (id, liked_by, target_kind, `+column+`, created_at)
VALUES ($1, $2, $3, $4, $5)
`, like.ID, like.LikedBy, string(target.Kind), target.ID, like.CreatedAt)
		return translatePgError(err, fmt.Sprintf("like by %s on %s", userID, target))
	})
	if err != nil {
		return models.Like{}, err
	}
	return like, nil
}

func (r *PostgresRepository) DeleteLike(ctx context.Context, id string) error {
	return r.withConn(ctx, func(ctx context.Context, conn *pgxpool.Conn) error {
		tag, err := conn.Exec(ctx, `DELETE FROM likes WHERE id = $1`, id)
		if err != nil {
			return translatePgError(err, "like "+id)
		}
		return requireAffected(tag, "like "+id)
	})
}

func (r *PostgresRepository) FindSubscription(ctx context.Context, subscriberID, channelID string) (models.Subscription, error) {
	sub := models.Subscription{SubscriberID: subscriberID, ChannelID: channelID}
	err := r.withConn(ctx, func(ctx context.Context, conn *pgxpool.Conn) error {
		err := conn.QueryRow(ctx, `SELECT id, created_at FROM subscriptions WHERE subscriber_id = $1 AND channel_id = $2`,
			subscriberID, channelID).Scan(&sub.ID, &sub.CreatedAt)
		return translatePgError(err, fmt.Sprintf("subscription %s -> %s", subscriberID, channelID))
	})
	if err != nil {
		return models.Subscription{}, err
	}
	return sub, nil
}

func (r *PostgresRepository) CreateSubscription(ctx context.Context, subscriberID, channelID string) (models.Subscription, error) {
	sub := models.Subscription{
		ID:           ids.New(),
		SubscriberID: subscriberID,
		ChannelID:    channelID,
		CreatedAt:    r.timestamp(),
	}
	err := r.withConn(ctx, func(ctx context.Context, conn *pgxpool.Conn) error {
		_, err := conn.Exec(ctx, `
INSERT INTO subscriptions (id, subscriber_id, channel_id, created_at)
VALUES ($1, $2, $3, $4)
`, sub.ID, sub.SubscriberID, sub.ChannelID, sub.CreatedAt)
		return translatePgError(err, fmt.Sprintf("subscription %s -> %s", subscriberID, channelID))
	})
	if err != nil {
		return models.Subscription{}, err
	}
	return sub, nil
}

func (r *PostgresRepository) DeleteSubscription(ctx context.Context, id string) error {
	return r.withConn(ctx, func(ctx context.Context, conn *pgxpool.Conn) error {
		tag, err := conn.Exec(ctx, `DELETE FROM subscriptions WHERE id = $1`, id)
		if err != nil {
			return translatePgError(err, "subscription "+id)
		}
		return requireAffected(tag, "subscription "+id)
	})
}
