package api

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"vidtube/internal/apperr"
	"vidtube/internal/auth"
	"vidtube/internal/content"
	"vidtube/internal/engagement"
	"vidtube/internal/feed"
	"vidtube/internal/observability/logging"
	"vidtube/internal/observability/metrics"
	"vidtube/internal/stats"
	"vidtube/internal/storage"
)

// HealthProbe reports the reachability of a dependency on /healthz.
type HealthProbe struct {
	Component string
	Ping      func(context.Context) error
}

type Handler struct {
	Store        storage.Repository
	Sessions     *auth.SessionManager
	Engagement   *engagement.Engine
	Feeds        *feed.Aggregator
	Stats        *stats.Aggregator
	Content      *content.Service
	CookiePolicy SessionCookiePolicy

	logger    *slog.Logger
	probes    []HealthProbe
	startedAt time.Time
}

type Option func(*handlerOptions)

type handlerOptions struct {
	logger  *slog.Logger
	metrics *metrics.Recorder
	probes  []HealthProbe
	cookies SessionCookiePolicy
}

func WithLogger(logger *slog.Logger) Option {
	return func(o *handlerOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

func WithMetrics(recorder *metrics.Recorder) Option {
	return func(o *handlerOptions) {
		if recorder != nil {
			o.metrics = recorder
		}
	}
}

// WithHealthProbe adds a component to the health report.
func WithHealthProbe(component string, ping func(context.Context) error) Option {
	return func(o *handlerOptions) {
		if component != "" && ping != nil {
			o.probes = append(o.probes, HealthProbe{Component: component, Ping: ping})
		}
	}
}

func WithCookiePolicy(policy SessionCookiePolicy) Option {
	return func(o *handlerOptions) {
		o.cookies = policy
	}
}

// NewHandler wires the domain services over store. A nil session manager is
// replaced by an in-memory one.
func NewHandler(store storage.Repository, sessions *auth.SessionManager, opts ...Option) *Handler {
	cfg := handlerOptions{
		logger:  slog.Default(),
		metrics: metrics.Default(),
		cookies: DefaultSessionCookiePolicy(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if sessions == nil {
		sessions = auth.NewSessionManager(24 * time.Hour)
	}
	return &Handler{
		Store:        store,
		Sessions:     sessions,
		Engagement:   engagement.NewEngine(store, engagement.WithLogger(cfg.logger), engagement.WithMetrics(cfg.metrics)),
		Feeds:        feed.NewAggregator(store, feed.WithLogger(cfg.logger), feed.WithMetrics(cfg.metrics)),
		Stats:        stats.NewAggregator(store, stats.WithLogger(cfg.logger), stats.WithMetrics(cfg.metrics)),
		Content:      content.NewService(store, content.WithLogger(cfg.logger)),
		CookiePolicy: cfg.cookies,
		logger:       logging.WithComponent(cfg.logger, "api"),
		probes:       cfg.probes,
		startedAt:    time.Now(),
	}
}

// fail writes the envelope for err. Internal errors are logged with their
// cause; clients only see a generic message.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		logging.WithContext(r.Context(), h.logger).Error("request failed", "path", r.URL.Path, "error", err)
	}
	WriteError(w, status, apperr.Message(err))
}

func pageFromQuery(r *http.Request) feed.PageRequest {
	query := r.URL.Query()
	return feed.ParsePage(query.Get("page"), query.Get("limit"))
}

func pathID(r *http.Request, name string) string {
	return strings.TrimSpace(r.PathValue(name))
}
