package engagement

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"

	"vidtube/internal/apperr"
	"vidtube/internal/models"
	"vidtube/internal/observability/metrics"
	"vidtube/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	repo    *storage.JSONRepository
	engine  *Engine
	metrics *metrics.Recorder
	owner   models.User
	fan     models.User
	video   models.Video
	comment models.Comment
	tweet   models.Tweet
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	ctx := context.Background()
	repo, err := storage.NewJSONRepository("")
	require.NoError(t, err)

	owner, err := repo.CreateUser(ctx, storage.CreateUserParams{Username: "owner"})
	require.NoError(t, err)
	fan, err := repo.CreateUser(ctx, storage.CreateUserParams{Username: "fan"})
	require.NoError(t, err)
	video, err := repo.CreateVideo(ctx, storage.CreateVideoParams{OwnerID: owner.ID, Title: "clip", IsPublished: true})
	require.NoError(t, err)
	comment, err := repo.CreateComment(ctx, video.ID, fan.ID, "nice")
	require.NoError(t, err)
	tweet, err := repo.CreateTweet(ctx, owner.ID, "hello")
	require.NoError(t, err)

	recorder := metrics.New()
	engine := NewEngine(repo, WithMetrics(recorder), WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	return fixture{repo: repo, engine: engine, metrics: recorder, owner: owner, fan: fan, video: video, comment: comment, tweet: tweet}
}

func TestToggleLikeAlternates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, target := range []models.Target{
		models.VideoTarget(f.video.ID),
		models.CommentTarget(f.comment.ID),
		models.TweetTarget(f.tweet.ID),
	} {
		t.Run(string(target.Kind), func(t *testing.T) {
			for i, want := range []bool{true, false, true, false} {
				result, err := f.engine.ToggleLike(ctx, f.fan.ID, target)
				require.NoError(t, err, "toggle %d", i)
				assert.Equal(t, want, result.Liked, "toggle %d", i)

				_, err = f.repo.FindLike(ctx, f.fan.ID, target)
				if want {
					assert.NoError(t, err)
				} else {
					assert.ErrorIs(t, err, storage.ErrNotFound)
				}
			}
		})
	}

	assert.Equal(t, 6.0, counterValue(t, f.metrics, "like", metrics.ToggleCreated))
	assert.Equal(t, 6.0, counterValue(t, f.metrics, "like", metrics.ToggleRemoved))
}

func TestToggleLikeConcurrentTogglesStayConsistent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	target := models.VideoTarget(f.video.ID)

	const toggles = 40
	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		liked int
	)
	for i := 0; i < toggles; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := f.engine.ToggleLike(ctx, f.fan.ID, target)
			if !assert.NoError(t, err) {
				return
			}
			if result.Liked {
				mu.Lock()
				liked++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, toggles/2, liked)
	_, err := f.repo.FindLike(ctx, f.fan.ID, target)
	assert.ErrorIs(t, err, storage.ErrNotFound, "an even number of toggles leaves no like")

	total, err := f.repo.CountVideoLikes(ctx, f.owner.ID)
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestToggleLikeValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	missing := "6f1c2a8e-3b4d-4e5f-8a9b-0c1d2e3f4a5b"

	cases := []struct {
		name   string
		userID string
		target models.Target
		kind   apperr.Kind
	}{
		{name: "anonymous", userID: "", target: models.VideoTarget(f.video.ID), kind: apperr.KindUnauthorized},
		{name: "malformed id", userID: f.fan.ID, target: models.VideoTarget("not-an-id"), kind: apperr.KindInvalidArgument},
		{name: "unknown kind", userID: f.fan.ID, target: models.Target{Kind: "playlist", ID: f.video.ID}, kind: apperr.KindInvalidArgument},
		{name: "missing video", userID: f.fan.ID, target: models.VideoTarget(missing), kind: apperr.KindNotFound},
		{name: "missing comment", userID: f.fan.ID, target: models.CommentTarget(missing), kind: apperr.KindNotFound},
		{name: "tweet id used as video", userID: f.fan.ID, target: models.VideoTarget(f.tweet.ID), kind: apperr.KindNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.engine.ToggleLike(ctx, tc.userID, tc.target)
			require.Error(t, err)
			assert.Equal(t, tc.kind, apperr.KindOf(err))
		})
	}
}

func TestToggleSubscription(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	result, err := f.engine.ToggleSubscription(ctx, f.fan.ID, f.owner.ID)
	require.NoError(t, err)
	assert.True(t, result.Subscribed)

	count, err := f.repo.CountSubscribers(ctx, f.owner.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	result, err = f.engine.ToggleSubscription(ctx, f.fan.ID, f.owner.ID)
	require.NoError(t, err)
	assert.False(t, result.Subscribed)

	count, err = f.repo.CountSubscribers(ctx, f.owner.ID)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestToggleSubscriptionValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.engine.ToggleSubscription(ctx, f.fan.ID, f.fan.ID)
	assert.Equal(t, apperr.KindInvalidArgument, apperr.KindOf(err))
	assert.Equal(t, "cannot subscribe to your own channel", apperr.Message(err))

	_, err = f.engine.ToggleSubscription(ctx, f.fan.ID, "bogus")
	assert.Equal(t, apperr.KindInvalidArgument, apperr.KindOf(err))

	_, err = f.engine.ToggleSubscription(ctx, f.fan.ID, "6f1c2a8e-3b4d-4e5f-8a9b-0c1d2e3f4a5b")
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	_, err = f.engine.ToggleSubscription(ctx, "", f.owner.ID)
	assert.Equal(t, apperr.KindUnauthorized, apperr.KindOf(err))

	count, err := f.repo.CountSubscriptions(ctx, f.fan.ID)
	require.NoError(t, err)
	assert.Zero(t, count)
}

// racingStore simulates another process winning the race between the read
// and the write of a toggle.
type racingStore struct {
	*storage.JSONRepository
	createErr error
	deleteErr error
	findErr   error
	existing  bool
}

func (s *racingStore) FindLike(ctx context.Context, userID string, target models.Target) (models.Like, error) {
	if s.findErr != nil {
		return models.Like{}, s.findErr
	}
	if s.existing {
		return models.Like{ID: "like-1", LikedBy: userID, Target: target}, nil
	}
	return models.Like{}, fmt.Errorf("like: %w", storage.ErrNotFound)
}

func (s *racingStore) CreateLike(context.Context, string, models.Target) (models.Like, error) {
	return models.Like{}, s.createErr
}

func (s *racingStore) DeleteLike(context.Context, string) error {
	return s.deleteErr
}

func (s *racingStore) FindSubscription(_ context.Context, subscriberID, channelID string) (models.Subscription, error) {
	if s.existing {
		return models.Subscription{ID: "sub-1", SubscriberID: subscriberID, ChannelID: channelID}, nil
	}
	return models.Subscription{}, storage.ErrNotFound
}

func (s *racingStore) CreateSubscription(context.Context, string, string) (models.Subscription, error) {
	return models.Subscription{}, s.createErr
}

func (s *racingStore) DeleteSubscription(context.Context, string) error {
	return s.deleteErr
}

func TestToggleLikeConflictCountsAsLiked(t *testing.T) {
	f := newFixture(t)
	store := &racingStore{JSONRepository: f.repo, createErr: fmt.Errorf("insert: %w", storage.ErrConflict)}
	engine := NewEngine(store, WithMetrics(f.metrics))

	result, err := engine.ToggleLike(context.Background(), f.fan.ID, models.VideoTarget(f.video.ID))
	require.NoError(t, err)
	assert.True(t, result.Liked)
	assert.Equal(t, 1.0, counterValue(t, f.metrics, "like", metrics.ToggleConflict))
}

func TestToggleLikeVanishedDuringDeleteCountsAsUnliked(t *testing.T) {
	f := newFixture(t)
	store := &racingStore{JSONRepository: f.repo, existing: true, deleteErr: storage.ErrNotFound}
	engine := NewEngine(store, WithMetrics(f.metrics))

	result, err := engine.ToggleLike(context.Background(), f.fan.ID, models.TweetTarget(f.tweet.ID))
	require.NoError(t, err)
	assert.False(t, result.Liked)
}

func TestToggleSubscriptionConflictCountsAsSubscribed(t *testing.T) {
	f := newFixture(t)
	store := &racingStore{JSONRepository: f.repo, createErr: storage.ErrConflict}
	engine := NewEngine(store, WithMetrics(f.metrics))

	result, err := engine.ToggleSubscription(context.Background(), f.fan.ID, f.owner.ID)
	require.NoError(t, err)
	assert.True(t, result.Subscribed)
	assert.Equal(t, 1.0, counterValue(t, f.metrics, "subscription", metrics.ToggleConflict))
}

func TestToggleLikeStoreFailureIsInternal(t *testing.T) {
	f := newFixture(t)
	store := &racingStore{JSONRepository: f.repo, findErr: errors.New("connection reset")}
	engine := NewEngine(store, WithMetrics(f.metrics), WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))

	_, err := engine.ToggleLike(context.Background(), f.fan.ID, models.VideoTarget(f.video.ID))
	require.Error(t, err)
	assert.Equal(t, apperr.KindInternal, apperr.KindOf(err))
}

func TestKeyLocksSerialiseSameKey(t *testing.T) {
	var locks keyLocks
	unlock := locks.lock("like:a:video:b")

	acquired := make(chan struct{})
	go func() {
		release := locks.lock("like:a:video:b")
		close(acquired)
		release()
	}()

	select {
	case <-acquired:
		t.Fatal("second lock acquired while first was held")
	default:
	}
	unlock()
	<-acquired
}

func counterValue(t *testing.T, recorder *metrics.Recorder, edge, result string) float64 {
	t.Helper()
	families, err := recorder.Registry().Gather()
	require.NoError(t, err)
	for _, family := range families {
		if family.GetName() != "vidtube_engagement_toggles_total" {
			continue
		}
		for _, metric := range family.GetMetric() {
			labels := map[string]string{}
			for _, pair := range metric.GetLabel() {
				labels[pair.GetName()] = pair.GetValue()
			}
			if labels["edge"] == edge && labels["result"] == result {
				return metric.GetCounter().GetValue()
			}
		}
	}
	return 0
}
