package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"vidtube/internal/models"
)

func TestJSONRepositoryScenarios(t *testing.T) {
	RunRepositoryScenarios(t, jsonRepositoryFactory)
}

func TestMemoryRepositoryScenarios(t *testing.T) {
	RunRepositoryScenarios(t, memoryRepositoryFactory)
}

func TestJSONRepositoryReloadKeepsIndexes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.json")
	ctx := context.Background()

	store, err := NewJSONRepository(path)
	if err != nil {
		t.Fatalf("NewJSONRepository: %v", err)
	}
	owner, err := store.CreateUser(ctx, CreateUserParams{Username: "owner"})
	if err != nil {
		t.Fatalf("CreateUser owner: %v", err)
	}
	fan, err := store.CreateUser(ctx, CreateUserParams{Username: "fan"})
	if err != nil {
		t.Fatalf("CreateUser fan: %v", err)
	}
	tweet, err := store.CreateTweet(ctx, owner.ID, "persisted")
	if err != nil {
		t.Fatalf("CreateTweet: %v", err)
	}
	if _, err := store.CreateLike(ctx, fan.ID, models.TweetTarget(tweet.ID)); err != nil {
		t.Fatalf("CreateLike: %v", err)
	}
	if _, err := store.CreateSubscription(ctx, fan.ID, owner.ID); err != nil {
		t.Fatalf("CreateSubscription: %v", err)
	}

	reopened, err := NewJSONRepository(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if _, err := reopened.CreateLike(ctx, fan.ID, models.TweetTarget(tweet.ID)); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected like conflict after reload, got %v", err)
	}
	if _, err := reopened.CreateSubscription(ctx, fan.ID, owner.ID); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected subscription conflict after reload, got %v", err)
	}
	rows, err := reopened.UserTweets(ctx, owner.ID, fan.ID, Window{})
	if err != nil {
		t.Fatalf("UserTweets: %v", err)
	}
	if len(rows) != 1 || rows[0].LikesCount != 1 || !rows[0].IsLiked {
		t.Fatalf("unexpected tweets after reload %+v", rows)
	}
}

func TestJSONRepositoryEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.json")
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatalf("write empty file: %v", err)
	}
	store, err := NewJSONRepository(path)
	if err != nil {
		t.Fatalf("NewJSONRepository: %v", err)
	}
	if _, err := store.CreateUser(context.Background(), CreateUserParams{Username: "first"}); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
}

func TestJSONRepositoryCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write corrupt file: %v", err)
	}
	if _, err := NewJSONRepository(path); err == nil {
		t.Fatal("expected decode error for corrupt store file")
	}
}

func TestJSONRepositoryPersistFailureLeavesDataUntouched(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	owner, err := store.CreateUser(ctx, CreateUserParams{Username: "owner"})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	fan, err := store.CreateUser(ctx, CreateUserParams{Username: "fan"})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	video, err := store.CreateVideo(ctx, CreateVideoParams{OwnerID: owner.ID, Title: "keep", IsPublished: true})
	if err != nil {
		t.Fatalf("CreateVideo: %v", err)
	}
	like, err := store.CreateLike(ctx, fan.ID, models.VideoTarget(video.ID))
	if err != nil {
		t.Fatalf("CreateLike: %v", err)
	}

	store.persistOverride = func(dataset) error {
		return errors.New("persist failed")
	}

	if err := store.DeleteVideo(ctx, video.ID); err == nil {
		t.Fatal("expected DeleteVideo error when persist fails")
	}
	if err := store.DeleteLike(ctx, like.ID); err == nil {
		t.Fatal("expected DeleteLike error when persist fails")
	}
	if _, err := store.CreateTweet(ctx, owner.ID, "lost"); err == nil {
		t.Fatal("expected CreateTweet error when persist fails")
	}

	store.persistOverride = nil

	if _, err := store.GetVideo(ctx, video.ID); err != nil {
		t.Fatalf("expected video to remain: %v", err)
	}
	if _, err := store.FindLike(ctx, fan.ID, models.VideoTarget(video.ID)); err != nil {
		t.Fatalf("expected like to remain: %v", err)
	}
	if total, err := store.CountTweets(ctx, owner.ID); err != nil || total != 0 {
		t.Fatalf("expected no tweets, got %d (%v)", total, err)
	}
}

func TestJSONRepositoryCreateLikeRequiresTarget(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	fan, err := store.CreateUser(ctx, CreateUserParams{Username: "fan"})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	missing := "00000000-0000-4000-8000-000000000001"
	for _, target := range []models.Target{models.VideoTarget(missing), models.CommentTarget(missing), models.TweetTarget(missing)} {
		if _, err := store.CreateLike(ctx, fan.ID, target); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound for %s, got %v", target, err)
		}
	}
	if _, err := store.CreateSubscription(ctx, fan.ID, missing); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing channel, got %v", err)
	}
}

// Records whose joined user or video vanished are dropped from feeds rather
// than failing the whole page.
func TestJSONRepositoryFeedsDropDanglingRecords(t *testing.T) {
	store := newTestStore(t, WithClock(steppingClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), time.Minute)))
	ctx := context.Background()

	owner, _ := store.CreateUser(ctx, CreateUserParams{Username: "owner"})
	fan, _ := store.CreateUser(ctx, CreateUserParams{Username: "fan"})
	ghost, _ := store.CreateUser(ctx, CreateUserParams{Username: "ghost"})
	kept, _ := store.CreateVideo(ctx, CreateVideoParams{OwnerID: owner.ID, Title: "kept", IsPublished: true})
	orphan, _ := store.CreateVideo(ctx, CreateVideoParams{OwnerID: ghost.ID, Title: "orphan", IsPublished: true})
	vanished, _ := store.CreateVideo(ctx, CreateVideoParams{OwnerID: owner.ID, Title: "vanished", IsPublished: true})
	for _, video := range []models.Video{kept, orphan, vanished} {
		if _, err := store.CreateLike(ctx, fan.ID, models.VideoTarget(video.ID)); err != nil {
			t.Fatalf("CreateLike %s: %v", video.Title, err)
		}
	}
	playlist, _ := store.CreatePlaylist(ctx, fan.ID, "mix", "")
	for _, video := range []models.Video{kept, vanished} {
		if _, err := store.AddPlaylistVideo(ctx, playlist.ID, video.ID); err != nil {
			t.Fatalf("AddPlaylistVideo: %v", err)
		}
	}
	if _, err := store.CreateSubscription(ctx, ghost.ID, owner.ID); err != nil {
		t.Fatalf("CreateSubscription ghost: %v", err)
	}
	if _, err := store.CreateSubscription(ctx, fan.ID, owner.ID); err != nil {
		t.Fatalf("CreateSubscription fan: %v", err)
	}

	// Remove records underneath the edges without cascading.
	store.mu.Lock()
	delete(store.data.Users, ghost.ID)
	delete(store.data.Videos, vanished.ID)
	store.mu.Unlock()

	liked, err := store.LikedVideos(ctx, fan.ID, Window{})
	if err != nil {
		t.Fatalf("LikedVideos: %v", err)
	}
	if len(liked) != 1 || liked[0].ID != kept.ID {
		t.Fatalf("expected only kept video, got %+v", liked)
	}

	detail, err := store.PlaylistDetail(ctx, playlist.ID)
	if err != nil {
		t.Fatalf("PlaylistDetail: %v", err)
	}
	if detail.TotalVideos != 1 || detail.Videos[0].ID != kept.ID {
		t.Fatalf("expected playlist to skip vanished video, got %+v", detail)
	}

	subscribers, err := store.ChannelSubscribers(ctx, owner.ID, Window{Limit: 1})
	if err != nil {
		t.Fatalf("ChannelSubscribers: %v", err)
	}
	if len(subscribers) != 1 || subscribers[0].Subscriber.ID != fan.ID {
		t.Fatalf("expected window applied after dropping ghost, got %+v", subscribers)
	}
}

func TestJSONRepositoryOrphanTweetsOwner(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	author, _ := store.CreateUser(ctx, CreateUserParams{Username: "author"})
	if _, err := store.CreateTweet(ctx, author.ID, "hello"); err != nil {
		t.Fatalf("CreateTweet: %v", err)
	}
	store.mu.Lock()
	delete(store.data.Users, author.ID)
	store.mu.Unlock()

	rows, err := store.UserTweets(ctx, author.ID, "", Window{})
	if err != nil {
		t.Fatalf("UserTweets: %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("expected no rows for missing owner, got %+v", rows)
	}
}

func TestWindowBounds(t *testing.T) {
	tests := []struct {
		name       string
		window     Window
		n          int
		start, end int
	}{
		{name: "unbounded", window: Window{}, n: 5, start: 0, end: 5},
		{name: "first page", window: Window{Limit: 2}, n: 5, start: 0, end: 2},
		{name: "last partial page", window: Window{Offset: 4, Limit: 2}, n: 5, start: 4, end: 5},
		{name: "past the end", window: Window{Offset: 10, Limit: 2}, n: 5, start: 5, end: 5},
		{name: "negative offset", window: Window{Offset: -3, Limit: 2}, n: 5, start: 0, end: 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start, end := tt.window.bounds(tt.n)
			if start != tt.start || end != tt.end {
				t.Fatalf("bounds(%d) = (%d, %d), want (%d, %d)", tt.n, start, end, tt.start, tt.end)
			}
		})
	}
}
