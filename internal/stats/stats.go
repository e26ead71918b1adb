// Package stats computes the creator dashboard rollups.
package stats

import (
	"context"
	"log/slog"
	"time"

	"vidtube/internal/apperr"
	"vidtube/internal/models"
	"vidtube/internal/observability/logging"
	"vidtube/internal/observability/metrics"
	"vidtube/internal/storage"

	"golang.org/x/sync/errgroup"
)

type ChannelStats struct {
	TotalViews       int64 `json:"totalViews"`
	TotalSubscribers int64 `json:"totalSubscribers"`
	TotalVideos      int64 `json:"totalVideos"`
	TotalLikes       int64 `json:"totalLikes"`
}

type Option func(*Aggregator)

func WithLogger(logger *slog.Logger) Option {
	return func(a *Aggregator) {
		if logger != nil {
			a.logger = logger
		}
	}
}

func WithMetrics(recorder *metrics.Recorder) Option {
	return func(a *Aggregator) {
		if recorder != nil {
			a.metrics = recorder
		}
	}
}

type Aggregator struct {
	store   storage.StatsRepository
	logger  *slog.Logger
	metrics *metrics.Recorder
}

func NewAggregator(store storage.StatsRepository, opts ...Option) *Aggregator {
	a := &Aggregator{
		store:   store,
		logger:  logging.WithComponent(slog.Default(), "stats"),
		metrics: metrics.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}
	return a
}

// ChannelStats runs the four rollups for actingUserID concurrently. Any
// failing rollup fails the whole call.
func (a *Aggregator) ChannelStats(ctx context.Context, actingUserID string) (ChannelStats, error) {
	if actingUserID == "" {
		return ChannelStats{}, apperr.Unauthorized("authentication required")
	}
	start := time.Now()

	var out ChannelStats
	g, gctx := errgroup.WithContext(ctx)
	rollups := []struct {
		name string
		run  func(context.Context, string) (int64, error)
		dst  *int64
	}{
		{name: "views", run: a.store.SumVideoViews, dst: &out.TotalViews},
		{name: "subscribers", run: a.store.CountSubscribers, dst: &out.TotalSubscribers},
		{name: "videos", run: a.store.CountVideos, dst: &out.TotalVideos},
		{name: "likes", run: a.store.CountVideoLikes, dst: &out.TotalLikes},
	}
	for _, rollup := range rollups {
		rollup := rollup
		g.Go(func() error {
			value, err := rollup.run(gctx, actingUserID)
			if err != nil {
				return apperr.Internal(err, "channel %s rollup", rollup.name)
			}
			*rollup.dst = value
			return nil
		})
	}
	err := g.Wait()
	a.metrics.ObservePipeline("channel_stats", time.Since(start), err)
	if err != nil {
		logging.WithContext(ctx, a.logger).Error("channel stats failed", "error", err)
		return ChannelStats{}, err
	}
	return out, nil
}

// ChannelVideos lists actingUserID's own videos newest first, drafts included.
func (a *Aggregator) ChannelVideos(ctx context.Context, actingUserID string) ([]models.Video, error) {
	if actingUserID == "" {
		return nil, apperr.Unauthorized("authentication required")
	}
	videos, err := a.store.ChannelVideos(ctx, actingUserID)
	if err != nil {
		logging.WithContext(ctx, a.logger).Error("channel videos failed", "error", err)
		return nil, apperr.Internal(err, "channel videos")
	}
	if videos == nil {
		videos = []models.Video{}
	}
	return videos, nil
}
