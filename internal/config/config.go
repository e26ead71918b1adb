// Package config assembles the server configuration from defaults, an
// optional YAML file, .env files, VIDTUBE_* environment variables and
// command-line flags, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

const (
	ModeDevelopment = "development"
	ModeProduction  = "production"
)

type Config struct {
	Mode      string          `yaml:"mode" validate:"oneof=development production"`
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Sessions  SessionsConfig  `yaml:"sessions"`
	RateLimit RateLimitConfig `yaml:"rateLimit"`
	Log       LogConfig       `yaml:"log"`
}

type ServerConfig struct {
	Addr            string        `yaml:"addr" validate:"required"`
	TLSCertFile     string        `yaml:"tlsCertFile" validate:"required_with=TLSKeyFile"`
	TLSKeyFile      string        `yaml:"tlsKeyFile" validate:"required_with=TLSCertFile"`
	RequestTimeout  time.Duration `yaml:"requestTimeout" validate:"gte=0"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout" validate:"gte=0"`
	AllowedOrigins  []string      `yaml:"allowedOrigins" validate:"dive,url"`
	// SecureCookies forces the Secure attribute even on plain HTTP, for
	// deployments behind a TLS-terminating proxy that drops X-Forwarded-Proto.
	SecureCookies bool `yaml:"secureCookies"`
}

type StorageConfig struct {
	Driver   string         `yaml:"driver" validate:"oneof=json postgres mongo"`
	JSONPath string         `yaml:"jsonPath"`
	Postgres PostgresConfig `yaml:"postgres"`
	Mongo    MongoConfig    `yaml:"mongo"`
}

type PostgresConfig struct {
	DSN             string        `yaml:"dsn"`
	MaxConns        int32         `yaml:"maxConns" validate:"gte=0"`
	MinConns        int32         `yaml:"minConns" validate:"gte=0"`
	MaxConnLifetime time.Duration `yaml:"maxConnLifetime" validate:"gte=0"`
	MaxConnIdle     time.Duration `yaml:"maxConnIdle" validate:"gte=0"`
	HealthInterval  time.Duration `yaml:"healthInterval" validate:"gte=0"`
	AcquireTimeout  time.Duration `yaml:"acquireTimeout" validate:"gte=0"`
	ApplicationName string        `yaml:"applicationName"`
}

type MongoConfig struct {
	URI                    string        `yaml:"uri"`
	Database               string        `yaml:"database"`
	MaxPoolSize            uint64        `yaml:"maxPoolSize"`
	MinPoolSize            uint64        `yaml:"minPoolSize"`
	ConnectTimeout         time.Duration `yaml:"connectTimeout" validate:"gte=0"`
	ServerSelectionTimeout time.Duration `yaml:"serverSelectionTimeout" validate:"gte=0"`
	ApplicationName        string        `yaml:"applicationName"`
}

type SessionsConfig struct {
	Driver        string        `yaml:"driver" validate:"oneof=memory postgres redis"`
	TTL           time.Duration `yaml:"ttl" validate:"min=1m"`
	IdleTimeout   time.Duration `yaml:"idleTimeout" validate:"gte=0"`
	PurgeInterval time.Duration `yaml:"purgeInterval" validate:"gte=0"`
	// PostgresDSN defaults to the storage DSN when sessions use Postgres.
	PostgresDSN string      `yaml:"postgresDsn"`
	Redis       RedisConfig `yaml:"redis"`
}

type RedisConfig struct {
	Addr      string        `yaml:"addr" validate:"omitempty,hostname_port"`
	Username  string        `yaml:"username"`
	Password  string        `yaml:"password"`
	DB        int           `yaml:"db" validate:"gte=0"`
	KeyPrefix string        `yaml:"keyPrefix"`
	Timeout   time.Duration `yaml:"timeout" validate:"gte=0"`
}

func (c RedisConfig) Enabled() bool {
	return strings.TrimSpace(c.Addr) != ""
}

type RateLimitConfig struct {
	GlobalRPS             float64       `yaml:"globalRps" validate:"gte=0"`
	GlobalBurst           int           `yaml:"globalBurst" validate:"gte=0"`
	WriteLimit            int           `yaml:"writeLimit" validate:"gte=0"`
	WriteWindow           time.Duration `yaml:"writeWindow" validate:"gte=0"`
	TrustForwardedHeaders bool          `yaml:"trustForwardedHeaders"`
	TrustedProxies        []string      `yaml:"trustedProxies"`
	Redis                 RedisConfig   `yaml:"redis"`
}

type LogConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=json text"`
}

// Default returns a configuration suitable for local development: an
// in-memory JSON store and in-memory sessions.
func Default() Config {
	return Config{
		Mode: ModeDevelopment,
		Server: ServerConfig{
			Addr:            ":8080",
			RequestTimeout:  10 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Storage: StorageConfig{
			Driver:   "json",
			JSONPath: "data/vidtube.json",
			Postgres: PostgresConfig{ApplicationName: "vidtube"},
			Mongo:    MongoConfig{Database: "vidtube", ApplicationName: "vidtube"},
		},
		Sessions: SessionsConfig{
			Driver:        "memory",
			TTL:           7 * 24 * time.Hour,
			PurgeInterval: 15 * time.Minute,
		},
		RateLimit: RateLimitConfig{
			WriteLimit:  60,
			WriteWindow: time.Minute,
		},
		Log: LogConfig{Level: "info", Format: "json"},
	}
}

// LoadOptions names the sources Load reads. Empty fields are skipped.
type LoadOptions struct {
	// File is a YAML configuration file. It must exist when set.
	File string
	// EnvFiles are dotenv files; missing files are ignored.
	EnvFiles []string
	// Flags holds parsed command-line flags registered with RegisterFlags.
	// Only flags set explicitly override other sources.
	Flags *pflag.FlagSet
	// LookupEnv defaults to os.LookupEnv.
	LookupEnv func(string) (string, bool)
}

// Load resolves and validates the configuration.
func Load(opts LoadOptions) (Config, error) {
	cfg := Default()

	if path := strings.TrimSpace(opts.File); path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	dotenv, err := readEnvFiles(opts.EnvFiles)
	if err != nil {
		return Config{}, err
	}
	lookup := opts.LookupEnv
	if lookup == nil {
		lookup = os.LookupEnv
	}
	env := func(key string) (string, bool) {
		if value, ok := lookup(key); ok {
			return value, true
		}
		value, ok := dotenv[key]
		return value, ok
	}

	for _, s := range settings {
		if s.env == "" {
			continue
		}
		if raw, ok := env(s.env); ok && strings.TrimSpace(raw) != "" {
			if err := s.set(&cfg, strings.TrimSpace(raw)); err != nil {
				return Config{}, fmt.Errorf("%s: %w", s.env, err)
			}
		}
	}

	if opts.Flags != nil {
		for _, s := range settings {
			flag := opts.Flags.Lookup(s.flag)
			if flag == nil || !flag.Changed {
				continue
			}
			if err := s.set(&cfg, flagValue(opts.Flags, s)); err != nil {
				return Config{}, fmt.Errorf("--%s: %w", s.flag, err)
			}
		}
	}

	cfg.applyDerivedDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func readEnvFiles(paths []string) (map[string]string, error) {
	values := make(map[string]string)
	for _, path := range paths {
		path = strings.TrimSpace(path)
		if path == "" {
			continue
		}
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			continue
		}
		parsed, err := godotenv.Read(path)
		if err != nil {
			return nil, fmt.Errorf("read env file %s: %w", path, err)
		}
		// Earlier files win, matching godotenv.Load.
		for key, value := range parsed {
			if _, seen := values[key]; !seen {
				values[key] = value
			}
		}
	}
	return values, nil
}

func (c *Config) applyDerivedDefaults() {
	c.Mode = strings.ToLower(strings.TrimSpace(c.Mode))
	c.Storage.Driver = strings.ToLower(strings.TrimSpace(c.Storage.Driver))
	c.Sessions.Driver = strings.ToLower(strings.TrimSpace(c.Sessions.Driver))
	c.Log.Level = strings.ToLower(strings.TrimSpace(c.Log.Level))
	c.Log.Format = strings.ToLower(strings.TrimSpace(c.Log.Format))
	if c.Sessions.Driver == "postgres" && strings.TrimSpace(c.Sessions.PostgresDSN) == "" {
		c.Sessions.PostgresDSN = c.Storage.Postgres.DSN
	}
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterStructValidation(validateStorage, StorageConfig{})
	v.RegisterStructValidation(validateSessions, SessionsConfig{})
	return v
}

func validateStorage(sl validator.StructLevel) {
	storage := sl.Current().Interface().(StorageConfig)
	switch storage.Driver {
	case "postgres":
		if strings.TrimSpace(storage.Postgres.DSN) == "" {
			sl.ReportError(storage.Postgres.DSN, "Postgres.DSN", "DSN", "required_for_driver", "postgres")
		}
		if storage.Postgres.MaxConns > 0 && storage.Postgres.MinConns > storage.Postgres.MaxConns {
			sl.ReportError(storage.Postgres.MinConns, "Postgres.MinConns", "MinConns", "ltefield", "MaxConns")
		}
	case "mongo":
		if strings.TrimSpace(storage.Mongo.URI) == "" {
			sl.ReportError(storage.Mongo.URI, "Mongo.URI", "URI", "required_for_driver", "mongo")
		}
		if strings.TrimSpace(storage.Mongo.Database) == "" {
			sl.ReportError(storage.Mongo.Database, "Mongo.Database", "Database", "required_for_driver", "mongo")
		}
	}
}

func validateSessions(sl validator.StructLevel) {
	sessions := sl.Current().Interface().(SessionsConfig)
	switch sessions.Driver {
	case "postgres":
		if strings.TrimSpace(sessions.PostgresDSN) == "" {
			sl.ReportError(sessions.PostgresDSN, "PostgresDSN", "PostgresDSN", "required_for_driver", "postgres")
		}
	case "redis":
		if !sessions.Redis.Enabled() {
			sl.ReportError(sessions.Redis.Addr, "Redis.Addr", "Addr", "required_for_driver", "redis")
		}
	}
	if sessions.IdleTimeout > sessions.TTL {
		sl.ReportError(sessions.IdleTimeout, "IdleTimeout", "IdleTimeout", "ltefield", "TTL")
	}
}

// Validate checks field constraints and the production guard.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			messages := make([]string, 0, len(fieldErrs))
			for _, fe := range fieldErrs {
				messages = append(messages, describe(fe))
			}
			return fmt.Errorf("invalid configuration: %s", strings.Join(messages, "; "))
		}
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if c.Mode == ModeProduction && c.Storage.Driver == "json" {
		return fmt.Errorf("invalid configuration: the json storage driver is for development only; use postgres or mongo in production")
	}
	return nil
}

func describe(fe validator.FieldError) string {
	field := strings.TrimPrefix(fe.Namespace(), "Config.")
	switch fe.Tag() {
	case "required", "required_with":
		return field + " is required"
	case "required_for_driver":
		return fmt.Sprintf("%s is required for the %s driver", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", field, fe.Param())
	case "ltefield":
		return fmt.Sprintf("%s must not exceed %s", field, fe.Param())
	default:
		if fe.Param() != "" {
			return fmt.Sprintf("%s failed %s=%s", field, fe.Tag(), fe.Param())
		}
		return fmt.Sprintf("%s failed %s", field, fe.Tag())
	}
}
