// Package engagement flips the like and subscription edges between users and
// content. Each toggle reads the current edge and then deletes or creates it;
// the store's uniqueness constraint settles races between processes.
package engagement

import (
	"context"
	"errors"
	"log/slog"

	"vidtube/internal/apperr"
	"vidtube/internal/ids"
	"vidtube/internal/models"
	"vidtube/internal/observability/logging"
	"vidtube/internal/observability/metrics"
	"vidtube/internal/storage"
)

const (
	edgeLike         = "like"
	edgeSubscription = "subscription"
)

// Store is the slice of the repository the engine needs.
type Store interface {
	GetUser(ctx context.Context, id string) (models.User, error)
	GetVideo(ctx context.Context, id string) (models.Video, error)
	GetComment(ctx context.Context, id string) (models.Comment, error)
	GetTweet(ctx context.Context, id string) (models.Tweet, error)
	storage.EngagementRepository
}

type LikeResult struct {
	Liked bool `json:"liked"`
}

type SubscriptionResult struct {
	Subscribed bool `json:"subscribed"`
}

type Option func(*Engine)

// WithLogger sets the logger used for recovered conflicts and store failures.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithMetrics sets the recorder toggle outcomes are counted on.
func WithMetrics(recorder *metrics.Recorder) Option {
	return func(e *Engine) {
		if recorder != nil {
			e.metrics = recorder
		}
	}
}

type Engine struct {
	store   Store
	locks   keyLocks
	logger  *slog.Logger
	metrics *metrics.Recorder
}

func NewEngine(store Store, opts ...Option) *Engine {
	e := &Engine{
		store:   store,
		logger:  logging.WithComponent(slog.Default(), "engagement"),
		metrics: metrics.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

// ToggleLike removes userID's like on target when one exists and records a
// new one otherwise. Losing a creation race to a concurrent toggle still
// reports the target as liked.
func (e *Engine) ToggleLike(ctx context.Context, userID string, target models.Target) (LikeResult, error) {
	if userID == "" {
		return LikeResult{}, apperr.Unauthorized("authentication required")
	}
	if !target.Kind.Valid() {
		return LikeResult{}, apperr.Invalid("invalid like target %q", target.Kind)
	}
	if !ids.Valid(target.ID) {
		return LikeResult{}, apperr.Invalid("invalid %s id", target.Kind)
	}
	if err := e.requireTarget(ctx, target); err != nil {
		return LikeResult{}, err
	}

	unlock := e.locks.lock(edgeLike + ":" + userID + ":" + target.String())
	defer unlock()

	existing, err := e.store.FindLike(ctx, userID, target)
	switch {
	case err == nil:
		if err := e.store.DeleteLike(ctx, existing.ID); err != nil && !errors.Is(err, storage.ErrNotFound) {
			return LikeResult{}, e.internal(ctx, err, "remove like")
		}
		e.metrics.ObserveToggle(edgeLike, metrics.ToggleRemoved)
		return LikeResult{Liked: false}, nil
	case !errors.Is(err, storage.ErrNotFound):
		return LikeResult{}, e.internal(ctx, err, "find like")
	}

	if _, err := e.store.CreateLike(ctx, userID, target); err != nil {
		switch {
		case errors.Is(err, storage.ErrConflict):
			logging.WithContext(ctx, e.logger).Debug("like created concurrently", "target", target.String())
			e.metrics.ObserveToggle(edgeLike, metrics.ToggleConflict)
			return LikeResult{Liked: true}, nil
		case errors.Is(err, storage.ErrNotFound):
			return LikeResult{}, apperr.NotFound("%s not found", target.Kind)
		default:
			return LikeResult{}, e.internal(ctx, err, "create like")
		}
	}
	e.metrics.ObserveToggle(edgeLike, metrics.ToggleCreated)
	return LikeResult{Liked: true}, nil
}

// ToggleSubscription flips subscriberID's subscription to channelID.
func (e *Engine) ToggleSubscription(ctx context.Context, subscriberID, channelID string) (SubscriptionResult, error) {
	if subscriberID == "" {
		return SubscriptionResult{}, apperr.Unauthorized("authentication required")
	}
	if !ids.Valid(channelID) {
		return SubscriptionResult{}, apperr.Invalid("invalid channel id")
	}
	if _, err := e.store.GetUser(ctx, channelID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return SubscriptionResult{}, apperr.NotFound("channel not found")
		}
		return SubscriptionResult{}, e.internal(ctx, err, "load channel")
	}
	if channelID == subscriberID {
		return SubscriptionResult{}, apperr.Invalid("cannot subscribe to your own channel")
	}

	unlock := e.locks.lock(edgeSubscription + ":" + subscriberID + ":" + channelID)
	defer unlock()

	existing, err := e.store.FindSubscription(ctx, subscriberID, channelID)
	switch {
	case err == nil:
		if err := e.store.DeleteSubscription(ctx, existing.ID); err != nil && !errors.Is(err, storage.ErrNotFound) {
			return SubscriptionResult{}, e.internal(ctx, err, "remove subscription")
		}
		e.metrics.ObserveToggle(edgeSubscription, metrics.ToggleRemoved)
		return SubscriptionResult{Subscribed: false}, nil
	case !errors.Is(err, storage.ErrNotFound):
		return SubscriptionResult{}, e.internal(ctx, err, "find subscription")
	}

	if _, err := e.store.CreateSubscription(ctx, subscriberID, channelID); err != nil {
		switch {
		case errors.Is(err, storage.ErrConflict):
			logging.WithContext(ctx, e.logger).Debug("subscription created concurrently", "channel_id", channelID)
			e.metrics.ObserveToggle(edgeSubscription, metrics.ToggleConflict)
			return SubscriptionResult{Subscribed: true}, nil
		case errors.Is(err, storage.ErrNotFound):
			return SubscriptionResult{}, apperr.NotFound("channel not found")
		default:
			return SubscriptionResult{}, e.internal(ctx, err, "create subscription")
		}
	}
	e.metrics.ObserveToggle(edgeSubscription, metrics.ToggleCreated)
	return SubscriptionResult{Subscribed: true}, nil
}

func (e *Engine) requireTarget(ctx context.Context, target models.Target) error {
	var err error
	switch target.Kind {
	case models.TargetVideo:
		_, err = e.store.GetVideo(ctx, target.ID)
	case models.TargetComment:
		_, err = e.store.GetComment(ctx, target.ID)
	case models.TargetTweet:
		_, err = e.store.GetTweet(ctx, target.ID)
	}
	if err == nil {
		return nil
	}
	if errors.Is(err, storage.ErrNotFound) {
		return apperr.NotFound("%s not found", target.Kind)
	}
	return e.internal(ctx, err, "load "+string(target.Kind))
}

func (e *Engine) internal(ctx context.Context, err error, op string) error {
	logging.WithContext(ctx, e.logger).Error("engagement store failure", "op", op, "error", err)
	return apperr.Internal(err, "%s", op)
}
