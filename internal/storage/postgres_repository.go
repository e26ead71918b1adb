package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"vidtube/internal/ids"
	"vidtube/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgCheckViolation      = "23514"
)

// PostgresRepository stores everything in Postgres. Uniqueness of likes and
// subscriptions is enforced by unique indexes, so concurrent writers across
// processes still observe ErrConflict.
type PostgresRepository struct {
	pool *pgxpool.Pool
	cfg  PostgresConfig
}

var _ Repository = (*PostgresRepository)(nil)

// NewPostgresRepository opens a Postgres-backed repository. Migrate must have
// been applied before the repository serves traffic.
func NewPostgresRepository(ctx context.Context, dsn string, opts ...Option) (*PostgresRepository, error) {
	cfg := newPostgresConfig(dsn, opts...)
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, fmt.Errorf("postgres dsn required")
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}
	if cfg.MaxConnections > 0 {
		poolCfg.MaxConns = cfg.MaxConnections
	}
	if cfg.MinConnections >= 0 {
		poolCfg.MinConns = cfg.MinConnections
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.MaxConnIdleTime > 0 {
		poolCfg.MaxConnIdleTime = cfg.MaxConnIdleTime
	}
	if cfg.HealthCheckInterval > 0 {
		poolCfg.HealthCheckPeriod = cfg.HealthCheckInterval
	}
	if cfg.AcquireTimeout > 0 {
		poolCfg.ConnConfig.ConnectTimeout = cfg.AcquireTimeout
	}
	if cfg.ApplicationName != "" {
		if poolCfg.ConnConfig.RuntimeParams == nil {
			poolCfg.ConnConfig.RuntimeParams = make(map[string]string)
		}
		poolCfg.ConnConfig.RuntimeParams["application_name"] = cfg.ApplicationName
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("open postgres pool: %w", err)
	}
	return &PostgresRepository{pool: pool, cfg: cfg}, nil
}

// DSN returns the connection string the pool was opened with.
func (r *PostgresRepository) DSN() string {
	return r.cfg.DSN
}

// Pool exposes the connection pool so other Postgres-backed components, such
// as the session store, can share it.
func (r *PostgresRepository) Pool() *pgxpool.Pool {
	return r.pool
}

func (r *PostgresRepository) Close(ctx context.Context) error {
	if r == nil || r.pool == nil {
		return nil
	}
	done := make(chan struct{})
	go func() {
		r.pool.Close()
		close(done)
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.withConn(ctx, func(ctx context.Context, conn *pgxpool.Conn) error {
		return conn.Ping(ctx)
	})
}

// withConn acquires a pooled connection, waiting at most AcquireTimeout.
func (r *PostgresRepository) withConn(ctx context.Context, fn func(context.Context, *pgxpool.Conn) error) error {
	acquireCtx := ctx
	if r.cfg.AcquireTimeout > 0 {
		var cancel context.CancelFunc
		acquireCtx, cancel = context.WithTimeout(ctx, r.cfg.AcquireTimeout)
		defer cancel()
	}
	conn, err := r.pool.Acquire(acquireCtx)
	if err != nil {
		return fmt.Errorf("acquire postgres connection: %w", err)
	}
	defer conn.Release()
	return fn(ctx, conn)
}

func (r *PostgresRepository) withTx(ctx context.Context, fn func(context.Context, pgx.Tx) error) error {
	return r.withConn(ctx, func(ctx context.Context, conn *pgxpool.Conn) error {
		tx, err := conn.BeginTx(ctx, pgx.TxOptions{})
		if err != nil {
			return fmt.Errorf("begin transaction: %w", err)
		}
		defer rollbackTx(ctx, tx)
		if err := fn(ctx, tx); err != nil {
			return err
		}
		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit transaction: %w", err)
		}
		return nil
	})
}

func rollbackTx(ctx context.Context, tx pgx.Tx) {
	_ = tx.Rollback(ctx)
}

// translatePgError maps driver errors onto the storage sentinels.
func translatePgError(err error, subject string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", subject, ErrNotFound)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return fmt.Errorf("%s: %w", subject, ErrConflict)
		case pgForeignKeyViolation:
			return fmt.Errorf("%s references a missing record: %w", subject, ErrNotFound)
		case pgCheckViolation:
			return fmt.Errorf("%s violates %s: %w", subject, pgErr.ConstraintName, err)
		}
	}
	return fmt.Errorf("%s: %w", subject, err)
}

func requireAffected(tag pgconn.CommandTag, subject string) error {
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", subject, ErrNotFound)
	}
	return nil
}

func (r *PostgresRepository) timestamp() time.Time {
	return r.cfg.Clock().UTC()
}

const userColumns = `id, username, email, full_name, avatar_url, cover_image_url, created_at, updated_at`

func scanUser(row pgx.Row) (models.User, error) {
	var user models.User
	err := row.Scan(&user.ID, &user.Username, &user.Email, &user.FullName, &user.AvatarURL, &user.CoverImageURL, &user.CreatedAt, &user.UpdatedAt)
	return user, err
}

func (r *PostgresRepository) CreateUser(ctx context.Context, params CreateUserParams) (models.User, error) {
	username := strings.TrimSpace(params.Username)
	if username == "" {
		return models.User{}, fmt.Errorf("username is required")
	}
	now := r.timestamp()
	user := models.User{
		ID:            ids.New(),
		Username:      strings.ToLower(username),
		Email:         strings.ToLower(strings.TrimSpace(params.Email)),
		FullName:      strings.TrimSpace(params.FullName),
		AvatarURL:     strings.TrimSpace(params.AvatarURL),
		CoverImageURL: strings.TrimSpace(params.CoverImageURL),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	err := r.withConn(ctx, func(ctx context.Context, conn *pgxpool.Conn) error {
		_, err := conn.Exec(ctx, `
INSERT INTO users (id, username, email, full_name, avatar_url, cover_image_url, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
`, user.ID, user.Username, user.Email, user.FullName, user.AvatarURL, user.CoverImageURL, user.CreatedAt, user.UpdatedAt)
		return translatePgError(err, "insert user "+user.Username)
	})
	if err != nil {
		return models.User{}, err
	}
	return user, nil
}

func (r *PostgresRepository) GetUser(ctx context.Context, id string) (models.User, error) {
	var user models.User
	err := r.withConn(ctx, func(ctx context.Context, conn *pgxpool.Conn) error {
		var err error
		user, err = scanUser(conn.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
		return translatePgError(err, "user "+id)
	})
	return user, err
}

func (r *PostgresRepository) FindUserByUsername(ctx context.Context, username string) (models.User, error) {
	needle := strings.ToLower(strings.TrimSpace(username))
	var user models.User
	err := r.withConn(ctx, func(ctx context.Context, conn *pgxpool.Conn) error {
		var err error
		user, err = scanUser(conn.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE lower(username) = $1`, needle))
		return translatePgError(err, "user "+needle)
	})
	return user, err
}
