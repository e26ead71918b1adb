package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"vidtube/internal/api"
	"vidtube/internal/auth"
	"vidtube/internal/config"
	"vidtube/internal/observability/logging"
	"vidtube/internal/observability/metrics"
	"vidtube/internal/server"
	"vidtube/internal/storage"
)

const closeTimeout = 10 * time.Second

// app owns every long-lived dependency of the API process.
type app struct {
	store    storage.Repository
	sessions *auth.SessionManager
	server   *server.Server
	redis    []redis.UniversalClient
}

func newApp(ctx context.Context, cfg config.Config, logger *slog.Logger) (_ *app, err error) {
	a := &app{}
	defer func() {
		if err != nil {
			a.close(logger)
		}
	}()

	a.store, err = openStore(ctx, cfg.Storage)
	if err != nil {
		return nil, err
	}

	var sessionRedis redis.UniversalClient
	if cfg.Sessions.Driver == "redis" {
		sessionRedis = newRedisClient(cfg.Sessions.Redis)
		a.redis = append(a.redis, sessionRedis)
	}
	a.sessions, err = openSessions(ctx, cfg.Sessions, a.store, sessionRedis)
	if err != nil {
		return nil, err
	}

	var rateRedis redis.UniversalClient
	if cfg.RateLimit.Redis.Enabled() && cfg.RateLimit.WriteLimit > 0 {
		rateRedis = newRedisClient(cfg.RateLimit.Redis)
		a.redis = append(a.redis, rateRedis)
	}

	recorder := metrics.Default()
	var srv *server.Server
	handler := api.NewHandler(a.store, a.sessions,
		api.WithLogger(logging.WithComponent(logger, "api")),
		api.WithMetrics(recorder),
		api.WithCookiePolicy(cookiePolicy(cfg)),
		api.WithHealthProbe("rate_limiter", func(ctx context.Context) error {
			return srv.RateLimiterPing(ctx)
		}),
	)

	srv, err = server.New(handler, server.Config{
		Addr: cfg.Server.Addr,
		TLS: server.TLSConfig{
			CertFile: cfg.Server.TLSCertFile,
			KeyFile:  cfg.Server.TLSKeyFile,
		},
		RateLimit: server.RateLimitConfig{
			GlobalRPS:             cfg.RateLimit.GlobalRPS,
			GlobalBurst:           cfg.RateLimit.GlobalBurst,
			WriteLimit:            cfg.RateLimit.WriteLimit,
			WriteWindow:           cfg.RateLimit.WriteWindow,
			TrustForwardedHeaders: cfg.RateLimit.TrustForwardedHeaders,
			TrustedProxies:        cfg.RateLimit.TrustedProxies,
			Redis:                 rateRedis,
			RedisKeyPrefix:        cfg.RateLimit.Redis.KeyPrefix,
			RedisTimeout:          cfg.RateLimit.Redis.Timeout,
		},
		CORS:            server.CORSConfig{AllowedOrigins: cfg.Server.AllowedOrigins},
		RequestTimeout:  cfg.Server.RequestTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		Logger:          logger,
		AuditLogger:     logging.WithComponent(logger, "audit"),
		Metrics:         recorder,
	})
	if err != nil {
		return nil, fmt.Errorf("initialise server: %w", err)
	}
	a.server = srv
	return a, nil
}

// cookiePolicy forces Secure cookies in production regardless of the
// request scheme.
func cookiePolicy(cfg config.Config) api.SessionCookiePolicy {
	policy := api.DefaultSessionCookiePolicy()
	if cfg.Mode == config.ModeProduction || cfg.Server.SecureCookies {
		policy.SecureMode = api.SessionCookieSecureAlways
	}
	return policy
}

func openStore(ctx context.Context, cfg config.StorageConfig) (storage.Repository, error) {
	switch cfg.Driver {
	case "json":
		store, err := storage.NewJSONRepository(cfg.JSONPath)
		if err != nil {
			return nil, fmt.Errorf("open json datastore: %w", err)
		}
		return store, nil
	case "postgres":
		pg := cfg.Postgres
		var opts []storage.Option
		if pg.MaxConns > 0 || pg.MinConns > 0 {
			opts = append(opts, storage.WithPostgresPoolLimits(pg.MaxConns, pg.MinConns))
		}
		if pg.MaxConnLifetime > 0 || pg.MaxConnIdle > 0 || pg.HealthInterval > 0 {
			opts = append(opts, storage.WithPostgresPoolDurations(pg.MaxConnLifetime, pg.MaxConnIdle, pg.HealthInterval))
		}
		if pg.AcquireTimeout > 0 {
			opts = append(opts, storage.WithPostgresAcquireTimeout(pg.AcquireTimeout))
		}
		if pg.ApplicationName != "" {
			opts = append(opts, storage.WithPostgresApplicationName(pg.ApplicationName))
		}
		store, err := storage.NewPostgresRepository(ctx, pg.DSN, opts...)
		if err != nil {
			return nil, fmt.Errorf("open postgres datastore: %w", err)
		}
		return store, nil
	case "mongo":
		mg := cfg.Mongo
		var opts []storage.Option
		if mg.MaxPoolSize > 0 || mg.MinPoolSize > 0 {
			opts = append(opts, storage.WithMongoPoolSize(mg.MaxPoolSize, mg.MinPoolSize))
		}
		if mg.ConnectTimeout > 0 || mg.ServerSelectionTimeout > 0 {
			opts = append(opts, storage.WithMongoTimeouts(mg.ConnectTimeout, mg.ServerSelectionTimeout))
		}
		if mg.ApplicationName != "" {
			opts = append(opts, storage.WithMongoApplicationName(mg.ApplicationName))
		}
		store, err := storage.NewMongoRepository(ctx, mg.URI, mg.Database, opts...)
		if err != nil {
			return nil, fmt.Errorf("open mongo datastore: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.Driver)
	}
}

// openSessions builds the session manager. Postgres sessions share the
// repository pool when the repository is Postgres-backed too.
func openSessions(ctx context.Context, cfg config.SessionsConfig, store storage.Repository, client redis.UniversalClient) (*auth.SessionManager, error) {
	var sessionStore auth.SessionStore
	switch cfg.Driver {
	case "memory":
		sessionStore = auth.NewMemorySessionStore()
	case "postgres":
		if pg, ok := store.(*storage.PostgresRepository); ok && cfg.PostgresDSN == pg.DSN() {
			sessionStore = auth.NewPostgresSessionStoreWithPool(pg.Pool())
			break
		}
		pgStore, err := auth.NewPostgresSessionStore(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres session store: %w", err)
		}
		sessionStore = pgStore
	case "redis":
		var opts []auth.RedisSessionStoreOption
		if cfg.Redis.KeyPrefix != "" {
			opts = append(opts, auth.WithRedisKeyPrefix(cfg.Redis.KeyPrefix))
		}
		redisStore, err := auth.NewRedisSessionStore(client, opts...)
		if err != nil {
			return nil, fmt.Errorf("open redis session store: %w", err)
		}
		sessionStore = redisStore
	default:
		return nil, fmt.Errorf("unsupported session store %q", cfg.Driver)
	}

	opts := []auth.SessionOption{auth.WithStore(sessionStore)}
	if cfg.IdleTimeout > 0 {
		opts = append(opts, auth.WithIdleTimeout(cfg.IdleTimeout))
	}
	return auth.NewSessionManager(cfg.TTL, opts...), nil
}

func newRedisClient(cfg config.RedisConfig) redis.UniversalClient {
	opts := &redis.UniversalOptions{
		Addrs:    []string{cfg.Addr},
		Username: cfg.Username,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
	if cfg.Timeout > 0 {
		opts.DialTimeout = cfg.Timeout
		opts.ReadTimeout = cfg.Timeout
		opts.WriteTimeout = cfg.Timeout
	}
	return redis.NewUniversalClient(opts)
}

// close releases resources in reverse dependency order. It tolerates a
// partially built app.
func (a *app) close(logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()

	var errs []error
	if a.sessions != nil {
		if err := a.sessions.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("close session store: %w", err))
		}
	}
	for _, client := range a.redis {
		if err := client.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close redis client: %w", err))
		}
	}
	if a.store != nil {
		if err := a.store.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("close datastore: %w", err))
		}
	}
	if err := errors.Join(errs...); err != nil && logger != nil {
		logger.Warn("shutdown cleanup failed", "error", err)
	}
}
