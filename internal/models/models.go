package models

import (
	"fmt"
	"strings"
	"time"
)

type User struct {
	ID            string    `json:"id"`
	Username      string    `json:"username"`
	Email         string    `json:"email,omitempty"`
	FullName      string    `json:"fullName"`
	AvatarURL     string    `json:"avatar"`
	CoverImageURL string    `json:"coverImage,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// Video holds the metadata of an uploaded video. Media bytes live in external
// storage; VideoFile and Thumbnail are the URLs handed back by that service.
type Video struct {
	ID          string    `json:"id"`
	OwnerID     string    `json:"ownerId"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Duration    float64   `json:"duration"`
	Views       int64     `json:"views"`
	VideoFile   string    `json:"videoFile"`
	Thumbnail   string    `json:"thumbnail"`
	IsPublished bool      `json:"isPublished"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type Comment struct {
	ID        string    `json:"id"`
	VideoID   string    `json:"videoId"`
	OwnerID   string    `json:"ownerId"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type Tweet struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"ownerId"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Playlist keeps an ordered list of video identifiers. A video appears at most
// once.
type Playlist struct {
	ID          string    `json:"id"`
	OwnerID     string    `json:"ownerId"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	VideoIDs    []string  `json:"videos"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// HasVideo reports whether the playlist already references the video.
func (p Playlist) HasVideo(videoID string) bool {
	for _, id := range p.VideoIDs {
		if id == videoID {
			return true
		}
	}
	return false
}

// TargetKind discriminates the entity a like points at.
type TargetKind string

const (
	TargetVideo   TargetKind = "video"
	TargetComment TargetKind = "comment"
	TargetTweet   TargetKind = "tweet"
)

// ParseTargetKind normalises a kind string and rejects unknown kinds.
func ParseTargetKind(value string) (TargetKind, error) {
	kind := TargetKind(strings.ToLower(strings.TrimSpace(value)))
	if !kind.Valid() {
		return "", fmt.Errorf("unknown like target %q", value)
	}
	return kind, nil
}

func (k TargetKind) Valid() bool {
	switch k {
	case TargetVideo, TargetComment, TargetTweet:
		return true
	default:
		return false
	}
}

// Target identifies exactly one likeable entity.
type Target struct {
	Kind TargetKind `json:"kind"`
	ID   string     `json:"id"`
}

func VideoTarget(id string) Target   { return Target{Kind: TargetVideo, ID: id} }
func CommentTarget(id string) Target { return Target{Kind: TargetComment, ID: id} }
func TweetTarget(id string) Target   { return Target{Kind: TargetTweet, ID: id} }

func (t Target) String() string {
	return string(t.Kind) + ":" + t.ID
}

// Like is an engagement edge from a user to a video, comment or tweet. At most
// one like exists per (LikedBy, Target).
type Like struct {
	ID        string    `json:"id"`
	LikedBy   string    `json:"likedBy"`
	Target    Target    `json:"target"`
	CreatedAt time.Time `json:"createdAt"`
}

// Subscription is an engagement edge from a subscriber to a channel (a user).
// SubscriberID never equals ChannelID.
type Subscription struct {
	ID           string    `json:"id"`
	SubscriberID string    `json:"subscriberId"`
	ChannelID    string    `json:"channelId"`
	CreatedAt    time.Time `json:"createdAt"`
}

// UserSummary is the owner projection embedded in feed rows.
type UserSummary struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	FullName string `json:"fullName"`
	Avatar   string `json:"avatar"`
}

// Summary projects the public identity fields of a user.
func (u User) Summary() UserSummary {
	return UserSummary{ID: u.ID, Username: u.Username, FullName: u.FullName, Avatar: u.AvatarURL}
}
