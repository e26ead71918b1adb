package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
)

type settingKind int

const (
	kindString settingKind = iota
	kindBool
	kindInt
	kindFloat
	kindDuration
	kindList
)

// setting binds one configuration field to its environment variable and flag.
type setting struct {
	flag  string
	env   string
	usage string
	kind  settingKind
	set   func(*Config, string) error
}

var settings = []setting{
	{flag: "mode", env: "VIDTUBE_MODE", usage: "deployment mode (development or production)", set: func(c *Config, v string) error { c.Mode = v; return nil }},

	{flag: "addr", env: "VIDTUBE_ADDR", usage: "HTTP listen address", set: func(c *Config, v string) error { c.Server.Addr = v; return nil }},
	{flag: "tls-cert", env: "VIDTUBE_TLS_CERT", usage: "TLS certificate file", set: func(c *Config, v string) error { c.Server.TLSCertFile = v; return nil }},
	{flag: "tls-key", env: "VIDTUBE_TLS_KEY", usage: "TLS private key file", set: func(c *Config, v string) error { c.Server.TLSKeyFile = v; return nil }},
	{flag: "request-timeout", env: "VIDTUBE_REQUEST_TIMEOUT", usage: "per-request handler timeout (0 disables)", kind: kindDuration, set: durationSetter(func(c *Config) *time.Duration { return &c.Server.RequestTimeout })},
	{flag: "shutdown-timeout", env: "VIDTUBE_SHUTDOWN_TIMEOUT", usage: "graceful shutdown timeout", kind: kindDuration, set: durationSetter(func(c *Config) *time.Duration { return &c.Server.ShutdownTimeout })},
	{flag: "allowed-origins", env: "VIDTUBE_ALLOWED_ORIGINS", usage: "comma-separated CORS origins", kind: kindList, set: func(c *Config, v string) error { c.Server.AllowedOrigins = splitList(v); return nil }},
	{flag: "secure-cookies", env: "VIDTUBE_SECURE_COOKIES", usage: "always mark session cookies Secure", kind: kindBool, set: boolSetter(func(c *Config) *bool { return &c.Server.SecureCookies })},

	{flag: "storage-driver", env: "VIDTUBE_STORAGE_DRIVER", usage: "storage backend (json, postgres or mongo)", set: func(c *Config, v string) error { c.Storage.Driver = v; return nil }},
	{flag: "data", env: "VIDTUBE_DATA", usage: "JSON datastore path (empty keeps data in memory)", set: func(c *Config, v string) error { c.Storage.JSONPath = v; return nil }},
	{flag: "postgres-dsn", env: "VIDTUBE_POSTGRES_DSN", usage: "Postgres connection string", set: func(c *Config, v string) error { c.Storage.Postgres.DSN = v; return nil }},
	{flag: "postgres-max-conns", env: "VIDTUBE_POSTGRES_MAX_CONNS", usage: "maximum pooled Postgres connections", kind: kindInt, set: int32Setter(func(c *Config) *int32 { return &c.Storage.Postgres.MaxConns })},
	{flag: "postgres-min-conns", env: "VIDTUBE_POSTGRES_MIN_CONNS", usage: "minimum idle Postgres connections", kind: kindInt, set: int32Setter(func(c *Config) *int32 { return &c.Storage.Postgres.MinConns })},
	{flag: "postgres-max-conn-lifetime", env: "VIDTUBE_POSTGRES_MAX_CONN_LIFETIME", usage: "maximum Postgres connection lifetime", kind: kindDuration, set: durationSetter(func(c *Config) *time.Duration { return &c.Storage.Postgres.MaxConnLifetime })},
	{flag: "postgres-max-conn-idle", env: "VIDTUBE_POSTGRES_MAX_CONN_IDLE", usage: "maximum Postgres connection idle time", kind: kindDuration, set: durationSetter(func(c *Config) *time.Duration { return &c.Storage.Postgres.MaxConnIdle })},
	{flag: "postgres-health-interval", env: "VIDTUBE_POSTGRES_HEALTH_INTERVAL", usage: "Postgres pool health check interval", kind: kindDuration, set: durationSetter(func(c *Config) *time.Duration { return &c.Storage.Postgres.HealthInterval })},
	{flag: "postgres-acquire-timeout", env: "VIDTUBE_POSTGRES_ACQUIRE_TIMEOUT", usage: "Postgres connection acquire timeout", kind: kindDuration, set: durationSetter(func(c *Config) *time.Duration { return &c.Storage.Postgres.AcquireTimeout })},
	{flag: "postgres-app-name", env: "VIDTUBE_POSTGRES_APP_NAME", usage: "Postgres application_name", set: func(c *Config, v string) error { c.Storage.Postgres.ApplicationName = v; return nil }},
	{flag: "mongo-uri", env: "VIDTUBE_MONGO_URI", usage: "MongoDB connection URI", set: func(c *Config, v string) error { c.Storage.Mongo.URI = v; return nil }},
	{flag: "mongo-database", env: "VIDTUBE_MONGO_DATABASE", usage: "MongoDB database name", set: func(c *Config, v string) error { c.Storage.Mongo.Database = v; return nil }},
	{flag: "mongo-max-pool", env: "VIDTUBE_MONGO_MAX_POOL", usage: "maximum MongoDB pool size", kind: kindInt, set: uint64Setter(func(c *Config) *uint64 { return &c.Storage.Mongo.MaxPoolSize })},
	{flag: "mongo-min-pool", env: "VIDTUBE_MONGO_MIN_POOL", usage: "minimum MongoDB pool size", kind: kindInt, set: uint64Setter(func(c *Config) *uint64 { return &c.Storage.Mongo.MinPoolSize })},
	{flag: "mongo-connect-timeout", env: "VIDTUBE_MONGO_CONNECT_TIMEOUT", usage: "MongoDB connect timeout", kind: kindDuration, set: durationSetter(func(c *Config) *time.Duration { return &c.Storage.Mongo.ConnectTimeout })},
	{flag: "mongo-server-selection-timeout", env: "VIDTUBE_MONGO_SERVER_SELECTION_TIMEOUT", usage: "MongoDB server selection timeout", kind: kindDuration, set: durationSetter(func(c *Config) *time.Duration { return &c.Storage.Mongo.ServerSelectionTimeout })},

	{flag: "session-store", env: "VIDTUBE_SESSION_STORE", usage: "session backend (memory, postgres or redis)", set: func(c *Config, v string) error { c.Sessions.Driver = v; return nil }},
	{flag: "session-ttl", env: "VIDTUBE_SESSION_TTL", usage: "absolute session lifetime", kind: kindDuration, set: durationSetter(func(c *Config) *time.Duration { return &c.Sessions.TTL })},
	{flag: "session-idle-timeout", env: "VIDTUBE_SESSION_IDLE_TIMEOUT", usage: "revoke sessions idle longer than this (0 disables)", kind: kindDuration, set: durationSetter(func(c *Config) *time.Duration { return &c.Sessions.IdleTimeout })},
	{flag: "session-purge-interval", env: "VIDTUBE_SESSION_PURGE_INTERVAL", usage: "expired session sweep interval (0 disables)", kind: kindDuration, set: durationSetter(func(c *Config) *time.Duration { return &c.Sessions.PurgeInterval })},
	{flag: "session-postgres-dsn", env: "VIDTUBE_SESSION_POSTGRES_DSN", usage: "Postgres DSN for sessions (defaults to --postgres-dsn)", set: func(c *Config, v string) error { c.Sessions.PostgresDSN = v; return nil }},
	{flag: "session-redis-addr", env: "VIDTUBE_SESSION_REDIS_ADDR", usage: "Redis address for sessions", set: func(c *Config, v string) error { c.Sessions.Redis.Addr = v; return nil }},
	{flag: "session-redis-password", env: "VIDTUBE_SESSION_REDIS_PASSWORD", usage: "Redis password for sessions", set: func(c *Config, v string) error { c.Sessions.Redis.Password = v; return nil }},
	{flag: "session-redis-db", env: "VIDTUBE_SESSION_REDIS_DB", usage: "Redis database for sessions", kind: kindInt, set: intSetter(func(c *Config) *int { return &c.Sessions.Redis.DB })},
	{flag: "session-redis-prefix", env: "VIDTUBE_SESSION_REDIS_PREFIX", usage: "Redis key prefix for sessions", set: func(c *Config, v string) error { c.Sessions.Redis.KeyPrefix = v; return nil }},

	{flag: "rate-global-rps", env: "VIDTUBE_RATE_GLOBAL_RPS", usage: "global requests per second (0 disables)", kind: kindFloat, set: func(c *Config, v string) error {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("parse float: %w", err)
		}
		c.RateLimit.GlobalRPS = f
		return nil
	}},
	{flag: "rate-global-burst", env: "VIDTUBE_RATE_GLOBAL_BURST", usage: "global burst size", kind: kindInt, set: intSetter(func(c *Config) *int { return &c.RateLimit.GlobalBurst })},
	{flag: "rate-write-limit", env: "VIDTUBE_RATE_WRITE_LIMIT", usage: "mutating requests allowed per caller per window (0 disables)", kind: kindInt, set: intSetter(func(c *Config) *int { return &c.RateLimit.WriteLimit })},
	{flag: "rate-write-window", env: "VIDTUBE_RATE_WRITE_WINDOW", usage: "write throttle window", kind: kindDuration, set: durationSetter(func(c *Config) *time.Duration { return &c.RateLimit.WriteWindow })},
	{flag: "trust-forwarded-headers", env: "VIDTUBE_TRUST_FORWARDED_HEADERS", usage: "trust X-Forwarded-For from any peer", kind: kindBool, set: boolSetter(func(c *Config) *bool { return &c.RateLimit.TrustForwardedHeaders })},
	{flag: "trusted-proxies", env: "VIDTUBE_TRUSTED_PROXIES", usage: "comma-separated proxy CIDRs whose forwarded headers are trusted", kind: kindList, set: func(c *Config, v string) error { c.RateLimit.TrustedProxies = splitList(v); return nil }},
	{flag: "rate-redis-addr", env: "VIDTUBE_RATE_REDIS_ADDR", usage: "Redis address for the shared write throttle", set: func(c *Config, v string) error { c.RateLimit.Redis.Addr = v; return nil }},
	{flag: "rate-redis-password", env: "VIDTUBE_RATE_REDIS_PASSWORD", usage: "Redis password for the write throttle", set: func(c *Config, v string) error { c.RateLimit.Redis.Password = v; return nil }},
	{flag: "rate-redis-db", env: "VIDTUBE_RATE_REDIS_DB", usage: "Redis database for the write throttle", kind: kindInt, set: intSetter(func(c *Config) *int { return &c.RateLimit.Redis.DB })},

	{flag: "log-level", env: "VIDTUBE_LOG_LEVEL", usage: "log level (debug, info, warn or error)", set: func(c *Config, v string) error { c.Log.Level = v; return nil }},
	{flag: "log-format", env: "VIDTUBE_LOG_FORMAT", usage: "log format (json or text)", set: func(c *Config, v string) error { c.Log.Format = v; return nil }},
}

// RegisterFlags adds one flag per configuration setting. Flag defaults are
// zero values; unset flags never override other sources.
func RegisterFlags(fs *pflag.FlagSet) {
	for _, s := range settings {
		if fs.Lookup(s.flag) != nil {
			continue
		}
		switch s.kind {
		case kindBool:
			fs.Bool(s.flag, false, s.usage)
		case kindInt:
			fs.Int64(s.flag, 0, s.usage)
		case kindFloat:
			fs.Float64(s.flag, 0, s.usage)
		case kindDuration:
			fs.Duration(s.flag, 0, s.usage)
		case kindList:
			fs.StringSlice(s.flag, nil, s.usage)
		default:
			fs.String(s.flag, "", s.usage)
		}
	}
}

// EnvVars lists every environment variable Load consults.
func EnvVars() []string {
	names := make([]string, 0, len(settings))
	for _, s := range settings {
		names = append(names, s.env)
	}
	return names
}

func flagValue(fs *pflag.FlagSet, s setting) string {
	if s.kind == kindList {
		values, err := fs.GetStringSlice(s.flag)
		if err == nil {
			return strings.Join(values, ",")
		}
	}
	return fs.Lookup(s.flag).Value.String()
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func durationSetter(field func(*Config) *time.Duration) func(*Config, string) error {
	return func(c *Config, v string) error {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parse duration: %w", err)
		}
		*field(c) = d
		return nil
	}
}

func boolSetter(field func(*Config) *bool) func(*Config, string) error {
	return func(c *Config, v string) error {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("parse bool: %w", err)
		}
		*field(c) = b
		return nil
	}
}

func intSetter(field func(*Config) *int) func(*Config, string) error {
	return func(c *Config, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse int: %w", err)
		}
		*field(c) = n
		return nil
	}
}

func int32Setter(field func(*Config) *int32) func(*Config, string) error {
	return func(c *Config, v string) error {
		n, err := strconv.ParseInt(v, 10, 32)
		if err != nil {
			return fmt.Errorf("parse int: %w", err)
		}
		*field(c) = int32(n)
		return nil
	}
}

func uint64Setter(field func(*Config) *uint64) func(*Config, string) error {
	return func(c *Config, v string) error {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return fmt.Errorf("parse unsigned int: %w", err)
		}
		*field(c) = n
		return nil
	}
}
