package storage

import (
	"sync/atomic"
	"time"

	"vidtube/internal/models"
)

const (
	usersCollection         = "users"
	videosCollection        = "videos"
	commentsCollection      = "comments"
	tweetsCollection        = "tweets"
	playlistsCollection     = "playlists"
	likesCollection         = "likes"
	subscriptionsCollection = "subscriptions"
)

type userDocument struct {
	ID         string    `bson:"_id"`
	Username   string    `bson:"username"`
	Email      string    `bson:"email"`
	FullName   string    `bson:"fullName"`
	Avatar     string    `bson:"avatar"`
	CoverImage string    `bson:"coverImage"`
	CreatedAt  time.Time `bson:"createdAt"`
	UpdatedAt  time.Time `bson:"updatedAt"`
	Seq        int64     `bson:"seq"`
}

func (d userDocument) model() models.User {
	return models.User{
		ID:            d.ID,
		Username:      d.Username,
		Email:         d.Email,
		FullName:      d.FullName,
		AvatarURL:     d.Avatar,
		CoverImageURL: d.CoverImage,
		CreatedAt:     d.CreatedAt.UTC(),
		UpdatedAt:     d.UpdatedAt.UTC(),
	}
}

func (d userDocument) summary() models.UserSummary {
	return models.UserSummary{ID: d.ID, Username: d.Username, FullName: d.FullName, Avatar: d.Avatar}
}

func (d userDocument) channelSummary() models.ChannelSummary {
	return models.ChannelSummary{UserSummary: d.summary(), CreatedAt: d.CreatedAt.UTC()}
}

type videoDocument struct {
	ID          string    `bson:"_id"`
	Owner       string    `bson:"owner"`
	Title       string    `bson:"title"`
	Description string    `bson:"description"`
	Duration    float64   `bson:"duration"`
	Views       int64     `bson:"views"`
	VideoFile   string    `bson:"videoFile"`
	Thumbnail   string    `bson:"thumbnail"`
	IsPublished bool      `bson:"isPublished"`
	CreatedAt   time.Time `bson:"createdAt"`
	UpdatedAt   time.Time `bson:"updatedAt"`
	Seq         int64     `bson:"seq"`
}

func (d videoDocument) model() models.Video {
	return models.Video{
		ID:          d.ID,
		OwnerID:     d.Owner,
		Title:       d.Title,
		Description: d.Description,
		Duration:    d.Duration,
		Views:       d.Views,
		VideoFile:   d.VideoFile,
		Thumbnail:   d.Thumbnail,
		IsPublished: d.IsPublished,
		CreatedAt:   d.CreatedAt.UTC(),
		UpdatedAt:   d.UpdatedAt.UTC(),
	}
}

type commentDocument struct {
	ID        string    `bson:"_id"`
	Video     string    `bson:"video"`
	Owner     string    `bson:"owner"`
	Content   string    `bson:"content"`
	CreatedAt time.Time `bson:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt"`
	Seq       int64     `bson:"seq"`
}

func (d commentDocument) model() models.Comment {
	return models.Comment{
		ID:        d.ID,
		VideoID:   d.Video,
		OwnerID:   d.Owner,
		Content:   d.Content,
		CreatedAt: d.CreatedAt.UTC(),
		UpdatedAt: d.UpdatedAt.UTC(),
	}
}

type tweetDocument struct {
	ID        string    `bson:"_id"`
	Owner     string    `bson:"owner"`
	Content   string    `bson:"content"`
	CreatedAt time.Time `bson:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt"`
	Seq       int64     `bson:"seq"`
}

func (d tweetDocument) model() models.Tweet {
	return models.Tweet{
		ID:        d.ID,
		OwnerID:   d.Owner,
		Content:   d.Content,
		CreatedAt: d.CreatedAt.UTC(),
		UpdatedAt: d.UpdatedAt.UTC(),
	}
}

type playlistDocument struct {
	ID          string    `bson:"_id"`
	Owner       string    `bson:"owner"`
	Name        string    `bson:"name"`
	Description string    `bson:"description"`
	Videos      []string  `bson:"videos"`
	CreatedAt   time.Time `bson:"createdAt"`
	UpdatedAt   time.Time `bson:"updatedAt"`
	Seq         int64     `bson:"seq"`
}

func (d playlistDocument) model() models.Playlist {
	videos := append([]string{}, d.Videos...)
	return models.Playlist{
		ID:          d.ID,
		OwnerID:     d.Owner,
		Name:        d.Name,
		Description: d.Description,
		VideoIDs:    videos,
		CreatedAt:   d.CreatedAt.UTC(),
		UpdatedAt:   d.UpdatedAt.UTC(),
	}
}

// likeDocument sets exactly one of Video, Comment and Tweet. The unset ones
// are omitted so the per-kind partial unique indexes ignore them.
type likeDocument struct {
	ID        string    `bson:"_id"`
	LikedBy   string    `bson:"likedBy"`
	Kind      string    `bson:"kind"`
	Video     string    `bson:"video,omitempty"`
	Comment   string    `bson:"comment,omitempty"`
	Tweet     string    `bson:"tweet,omitempty"`
	CreatedAt time.Time `bson:"createdAt"`
	Seq       int64     `bson:"seq"`
}

func newLikeDocument(id, userID string, target models.Target, createdAt time.Time, seq int64) likeDocument {
	doc := likeDocument{ID: id, LikedBy: userID, Kind: string(target.Kind), CreatedAt: createdAt, Seq: seq}
	switch target.Kind {
	case models.TargetVideo:
		doc.Video = target.ID
	case models.TargetComment:
		doc.Comment = target.ID
	case models.TargetTweet:
		doc.Tweet = target.ID
	}
	return doc
}

func (d likeDocument) model() models.Like {
	target := models.Target{Kind: models.TargetKind(d.Kind)}
	switch target.Kind {
	case models.TargetVideo:
		target.ID = d.Video
	case models.TargetComment:
		target.ID = d.Comment
	case models.TargetTweet:
		target.ID = d.Tweet
	}
	return models.Like{ID: d.ID, LikedBy: d.LikedBy, Target: target, CreatedAt: d.CreatedAt.UTC()}
}

type subscriptionDocument struct {
	ID         string    `bson:"_id"`
	Subscriber string    `bson:"subscriber"`
	Channel    string    `bson:"channel"`
	CreatedAt  time.Time `bson:"createdAt"`
	Seq        int64     `bson:"seq"`
}

func (d subscriptionDocument) model() models.Subscription {
	return models.Subscription{
		ID:           d.ID,
		SubscriberID: d.Subscriber,
		ChannelID:    d.Channel,
		CreatedAt:    d.CreatedAt.UTC(),
	}
}

// insertSequence hands out strictly increasing numbers seeded from the wall
// clock. Documents sort by (createdAt desc, seq asc) so equal timestamps keep
// insertion order within a process.
type insertSequence struct {
	last atomic.Int64
}

func (s *insertSequence) next(now time.Time) int64 {
	for {
		prev := s.last.Load()
		candidate := now.UnixNano()
		if candidate <= prev {
			candidate = prev + 1
		}
		if s.last.CompareAndSwap(prev, candidate) {
			return candidate
		}
	}
}
