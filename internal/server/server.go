package server

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"vidtube/internal/api"
	"vidtube/internal/apperr"
	"vidtube/internal/observability/logging"
	"vidtube/internal/observability/metrics"
	"vidtube/internal/serverutil"
)

type TLSConfig struct {
	CertFile string
	KeyFile  string
}

type Config struct {
	Addr      string
	TLS       TLSConfig
	RateLimit RateLimitConfig
	Security  SecurityConfig
	CORS      CORSConfig
	// RequestTimeout bounds handler execution; zero disables the limit.
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
	Logger         *slog.Logger
	AuditLogger    *slog.Logger
	Metrics        *metrics.Recorder
}

type Server struct {
	httpServer      *http.Server
	logger          *slog.Logger
	metrics         *metrics.Recorder
	rateLimiter     *rateLimiter
	tls             serverutil.TLSConfig
	shutdownTimeout time.Duration
}

const timeoutBody = `{"statusCode":503,"success":false,"message":"request timed out","data":null}`

// catchAllPattern answers unknown routes with a JSON 404.
const catchAllPattern = "/"

func New(handler *api.Handler, cfg Config) (*Server, error) {
	if handler == nil {
		return nil, fmt.Errorf("api handler is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	recorder := cfg.Metrics
	if recorder == nil {
		recorder = metrics.Default()
	}

	rl, err := newRateLimiter(cfg.RateLimit)
	if err != nil {
		return nil, fmt.Errorf("configure rate limiting: %w", err)
	}
	resolver, err := newClientIPResolver(cfg.RateLimit)
	if err != nil {
		return nil, fmt.Errorf("configure client ip resolution: %w", err)
	}
	cors, err := newCORSPolicy(cfg.CORS)
	if err != nil {
		return nil, fmt.Errorf("configure cors: %w", err)
	}

	mux := http.NewServeMux()
	handler.Register(mux)
	mux.Handle("GET /metrics", recorder.Handler())
	mux.HandleFunc(catchAllPattern, func(w http.ResponseWriter, r *http.Request) {
		writeMiddlewareError(w, http.StatusNotFound, "route not found")
	})

	handlerChain := http.Handler(mux)
	if cfg.RequestTimeout > 0 {
		handlerChain = http.TimeoutHandler(handlerChain, cfg.RequestTimeout, timeoutBody)
	}
	handlerChain = writeThrottleMiddleware(rl, resolver, logger, recorder, handlerChain)
	handlerChain = auditMiddleware(cfg.AuditLogger, resolver, handlerChain)
	handlerChain = authMiddleware(handler, logger, handlerChain)
	handlerChain = rateLimitMiddleware(rl, resolver, logger, recorder, handlerChain)
	handlerChain = corsMiddleware(cors, logger, handlerChain)
	handlerChain = securityHeadersMiddleware(cfg.Security, handlerChain)
	handlerChain = metrics.HTTPMiddleware(recorder, metrics.ServeMuxRoute(mux, catchAllPattern), handlerChain)
	handlerChain = logging.RequestLogger(logging.RequestLoggerConfig{
		Logger:            logger,
		DisableRemoteAddr: true,
		AdditionalFields: func(r *http.Request, _ int, _ time.Duration) []any {
			ip, _ := resolver.ClientIPFromRequest(r)
			return []any{"remote_ip", ip}
		},
	})(handlerChain)
	handlerChain = requestIDMiddleware(logger, handlerChain)

	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handlerChain,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	srv := &Server{
		httpServer:  httpServer,
		logger:      logging.WithComponent(logger, "server"),
		metrics:     recorder,
		rateLimiter: rl,
		tls: serverutil.TLSConfig{
			CertFile: strings.TrimSpace(cfg.TLS.CertFile),
			KeyFile:  strings.TrimSpace(cfg.TLS.KeyFile),
		},
		shutdownTimeout: cfg.ShutdownTimeout,
	}

	if srv.tls.Enabled() {
		httpServer.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	return srv, nil
}

// RateLimiterPing reports whether the shared rate limit store is reachable.
// It is nil-safe and succeeds when limits are process local.
func (s *Server) RateLimiterPing(ctx context.Context) error {
	if s == nil {
		return nil
	}
	return s.rateLimiter.Ping(ctx)
}

// Run serves until ctx is cancelled, then drains in-flight requests.
// onListen, when non-nil, receives the bound address.
func (s *Server) Run(ctx context.Context, onListen func(net.Addr)) error {
	if s == nil || s.httpServer == nil {
		return fmt.Errorf("http server is not configured")
	}
	return serverutil.Run(ctx, serverutil.Config{
		Server:          s.httpServer,
		TLS:             s.tls,
		ShutdownTimeout: s.shutdownTimeout,
		Logger:          s.logger,
		OnListen:        onListen,
	})
}

// Handler exposes the full middleware chain.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

func rateLimitMiddleware(rl *rateLimiter, resolver *clientIPResolver, logger *slog.Logger, recorder *metrics.Recorder, next http.Handler) http.Handler {
	if rl == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.AllowRequest() {
			if recorder != nil {
				recorder.ObserveRateLimited("global")
			}
			if requestLogger := loggingWithRequest(logger, resolver, r); requestLogger != nil {
				requestLogger.Warn("global rate limit exceeded")
			}
			setRetryAfter(w, time.Second)
			writeMiddlewareError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// writeThrottleMiddleware limits mutating /api requests per signed-in user, or
// per client address for anonymous callers.
func writeThrottleMiddleware(rl *rateLimiter, resolver *clientIPResolver, logger *slog.Logger, recorder *metrics.Recorder, next http.Handler) http.Handler {
	if rl == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !isMutatingAPIRequest(r) {
			next.ServeHTTP(w, r)
			return
		}
		key := ""
		if user, ok := api.UserFromContext(r.Context()); ok {
			key = "user:" + user.ID
		} else {
			ip, _ := resolveClientIP(r, resolver)
			key = "ip:" + ip
		}
		allowed, retryAfter, err := rl.AllowWrite(r.Context(), key)
		if err != nil {
			if requestLogger := loggingWithRequest(logger, resolver, r); requestLogger != nil {
				requestLogger.Error("rate limiter failure", "error", err)
			}
			writeMiddlewareError(w, http.StatusServiceUnavailable, "rate limit failure")
			return
		}
		if !allowed {
			if recorder != nil {
				recorder.ObserveRateLimited("write")
			}
			setRetryAfter(w, retryAfter)
			writeMiddlewareError(w, http.StatusTooManyRequests, "too many write requests")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func auditMiddleware(logger *slog.Logger, resolver *clientIPResolver, next http.Handler) http.Handler {
	if logger == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rr := metrics.NewResponseRecorder(w)
		start := time.Now()
		next.ServeHTTP(rr, r)
		if !shouldAudit(r) {
			return
		}
		ip, _ := resolveClientIP(r, resolver)
		fields := []any{
			"method", r.Method,
			"path", r.URL.Path,
			"status", rr.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"remote_ip", ip,
		}
		if user, ok := api.UserFromContext(r.Context()); ok {
			fields = append(fields, "user_id", user.ID)
		}
		logger.Info("audit", fields...)
	})
}

func shouldAudit(r *http.Request) bool {
	return isMutatingAPIRequest(r)
}

// authMiddleware resolves the session token, when present, into the acting
// user. Requests without a token continue anonymously; handlers that need an
// actor reject them. A token that no longer validates is rejected here,
// except on logout so stale cookies can still be cleared.
func authMiddleware(handler *api.Handler, logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/api/") || api.ExtractToken(r) == "" {
			next.ServeHTTP(w, r)
			return
		}
		user, expiresAt, err := handler.AuthenticateRequest(r)
		if err != nil {
			if apperr.Is(err, apperr.KindUnauthorized) && r.Method == http.MethodDelete && r.URL.Path == "/api/auth/session" {
				next.ServeHTTP(w, r)
				return
			}
			if !apperr.Is(err, apperr.KindUnauthorized) {
				if requestLogger := loggingWithRequest(logger, nil, r); requestLogger != nil {
					requestLogger.Error("session lookup failed", "error", err)
				}
			}
			api.WriteAppError(w, err)
			return
		}
		ctx := api.ContextWithUser(r.Context(), user)
		ctx = api.ContextWithSession(ctx, api.ExtractToken(r), expiresAt)
		ctx = logging.ContextWithUserID(ctx, user.ID)
		ctx = logging.ContextWithLogger(ctx, logging.WithContext(ctx, logger))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
