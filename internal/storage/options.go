package storage

import (
	"strings"
	"time"
)

// Option configures a repository. Options that do not apply to a backend are
// ignored by it.
type Option interface {
	applyJSON(*JSONRepository)
	applyPostgres(*PostgresConfig)
	applyMongo(*MongoConfig)
}

type optionAdapter struct {
	json  func(*JSONRepository)
	pg    func(*PostgresConfig)
	mongo func(*MongoConfig)
}

func (o optionAdapter) applyJSON(store *JSONRepository) {
	if o.json != nil && store != nil {
		o.json(store)
	}
}

func (o optionAdapter) applyPostgres(cfg *PostgresConfig) {
	if o.pg != nil && cfg != nil {
		o.pg(cfg)
	}
}

func (o optionAdapter) applyMongo(cfg *MongoConfig) {
	if o.mongo != nil && cfg != nil {
		o.mongo(cfg)
	}
}

func composeOption(json func(*JSONRepository), pg func(*PostgresConfig), mongo func(*MongoConfig)) Option {
	return optionAdapter{json: json, pg: pg, mongo: mongo}
}

func postgresOnlyOption(pg func(*PostgresConfig)) Option {
	return optionAdapter{pg: pg}
}

func mongoOnlyOption(mongo func(*MongoConfig)) Option {
	return optionAdapter{mongo: mongo}
}

// WithClock overrides the source of record timestamps. Tests use it to get
// deterministic ordering.
func WithClock(now func() time.Time) Option {
	if now == nil {
		return optionAdapter{}
	}
	return composeOption(
		func(s *JSONRepository) {
			s.now = now
		},
		func(cfg *PostgresConfig) {
			cfg.Clock = now
		},
		func(cfg *MongoConfig) {
			cfg.Clock = now
		},
	)
}

func WithPostgresPoolLimits(maxConns, minConns int32) Option {
	return postgresOnlyOption(func(cfg *PostgresConfig) {
		if maxConns > 0 {
			cfg.MaxConnections = maxConns
		}
		if minConns >= 0 {
			cfg.MinConnections = minConns
		}
	})
}

// WithPostgresAcquireTimeout bounds how long a query waits for a pooled
// connection before failing.
func WithPostgresAcquireTimeout(timeout time.Duration) Option {
	return postgresOnlyOption(func(cfg *PostgresConfig) {
		if timeout > 0 {
			cfg.AcquireTimeout = timeout
		}
	})
}

func WithPostgresPoolDurations(maxLifetime, maxIdle, healthInterval time.Duration) Option {
	return postgresOnlyOption(func(cfg *PostgresConfig) {
		if maxLifetime > 0 {
			cfg.MaxConnLifetime = maxLifetime
		}
		if maxIdle > 0 {
			cfg.MaxConnIdleTime = maxIdle
		}
		if healthInterval > 0 {
			cfg.HealthCheckInterval = healthInterval
		}
	})
}

func WithPostgresApplicationName(name string) Option {
	return postgresOnlyOption(func(cfg *PostgresConfig) {
		if trimmed := strings.TrimSpace(name); trimmed != "" {
			cfg.ApplicationName = trimmed
		}
	})
}

func WithMongoPoolSize(maxPool, minPool uint64) Option {
	return mongoOnlyOption(func(cfg *MongoConfig) {
		if maxPool > 0 {
			cfg.MaxPoolSize = maxPool
		}
		cfg.MinPoolSize = minPool
	})
}

func WithMongoTimeouts(connect, serverSelection time.Duration) Option {
	return mongoOnlyOption(func(cfg *MongoConfig) {
		if connect > 0 {
			cfg.ConnectTimeout = connect
		}
		if serverSelection > 0 {
			cfg.ServerSelectionTimeout = serverSelection
		}
	})
}

func WithMongoApplicationName(name string) Option {
	return mongoOnlyOption(func(cfg *MongoConfig) {
		if trimmed := strings.TrimSpace(name); trimmed != "" {
			cfg.ApplicationName = trimmed
		}
	})
}
