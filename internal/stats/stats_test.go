package stats

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"

	"vidtube/internal/apperr"
	"vidtube/internal/models"
	"vidtube/internal/observability/metrics"
	"vidtube/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietOptions() []Option {
	return []Option{WithMetrics(metrics.New()), WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))}
}

func TestChannelStatsZeroFloor(t *testing.T) {
	repo, err := storage.NewJSONRepository("")
	require.NoError(t, err)
	user, err := repo.CreateUser(context.Background(), storage.CreateUserParams{Username: "newcomer"})
	require.NoError(t, err)

	got, err := NewAggregator(repo, quietOptions()...).ChannelStats(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, ChannelStats{}, got)
}

func TestChannelStatsRollups(t *testing.T) {
	ctx := context.Background()
	repo, err := storage.NewJSONRepository("")
	require.NoError(t, err)

	creator, err := repo.CreateUser(ctx, storage.CreateUserParams{Username: "creator"})
	require.NoError(t, err)
	fans := make([]models.User, 3)
	for i := range fans {
		fans[i], err = repo.CreateUser(ctx, storage.CreateUserParams{Username: string(rune('a'+i)) + "-fan"})
		require.NoError(t, err)
		_, err = repo.CreateSubscription(ctx, fans[i].ID, creator.ID)
		require.NoError(t, err)
	}
	for i, views := range []int64{10, 20} {
		video, err := repo.CreateVideo(ctx, storage.CreateVideoParams{OwnerID: creator.ID, Title: "v", IsPublished: i == 0})
		require.NoError(t, err)
		require.NoError(t, repo.IncrementVideoViews(ctx, video.ID, views))
		for _, fan := range fans[:i+1] {
			_, err := repo.CreateLike(ctx, fan.ID, models.VideoTarget(video.ID))
			require.NoError(t, err)
		}
	}

	agg := NewAggregator(repo, quietOptions()...)
	got, err := agg.ChannelStats(ctx, creator.ID)
	require.NoError(t, err)
	assert.Equal(t, ChannelStats{TotalViews: 30, TotalSubscribers: 3, TotalVideos: 2, TotalLikes: 3}, got)

	videos, err := agg.ChannelVideos(ctx, creator.ID)
	require.NoError(t, err)
	assert.Len(t, videos, 2)

	none, err := agg.ChannelVideos(ctx, fans[0].ID)
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestChannelStatsRequiresUser(t *testing.T) {
	repo, err := storage.NewJSONRepository("")
	require.NoError(t, err)
	agg := NewAggregator(repo, quietOptions()...)

	_, err = agg.ChannelStats(context.Background(), "")
	assert.Equal(t, apperr.KindUnauthorized, apperr.KindOf(err))
	_, err = agg.ChannelVideos(context.Background(), "")
	assert.Equal(t, apperr.KindUnauthorized, apperr.KindOf(err))
}

type flakyStats struct {
	storage.StatsRepository
	calls atomic.Int32
}

func (f *flakyStats) CountVideoLikes(context.Context, string) (int64, error) {
	f.calls.Add(1)
	return 0, errors.New("likes rollup timed out")
}

func TestChannelStatsFailsWhole(t *testing.T) {
	repo, err := storage.NewJSONRepository("")
	require.NoError(t, err)
	store := &flakyStats{StatsRepository: repo}

	got, err := NewAggregator(store, quietOptions()...).ChannelStats(context.Background(), "6f1c2a8e-3b4d-4e5f-8a9b-0c1d2e3f4a5b")
	require.Error(t, err)
	assert.Equal(t, apperr.KindInternal, apperr.KindOf(err))
	assert.Equal(t, ChannelStats{}, got)
	assert.Equal(t, int32(1), store.calls.Load())
}
