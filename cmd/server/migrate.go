package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"vidtube/internal/observability/logging"
	"vidtube/internal/storage"
)

type postgresMigrator interface {
	Migrate(ctx context.Context) ([]string, error)
}

type mongoIndexer interface {
	EnsureIndexes(ctx context.Context) error
}

func newMigrateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply Postgres migrations or create MongoDB indexes, then exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.load(cmd)
			if err != nil {
				return err
			}
			logger := logging.New(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, Writer: cmd.ErrOrStderr()})

			store, err := openStore(cmd.Context(), cfg.Storage)
			if err != nil {
				logger.Error("open datastore", "error", err)
				return err
			}
			defer store.Close(context.Background())

			if err := migrateStore(cmd.Context(), store, logger); err != nil {
				logger.Error("migration failed", "error", err)
				return err
			}
			return nil
		},
	}
}

// migrateStore prepares the schema of whichever backend store is. The JSON
// store needs no preparation.
func migrateStore(ctx context.Context, store storage.Repository, logger *slog.Logger) error {
	switch s := store.(type) {
	case postgresMigrator:
		applied, err := s.Migrate(ctx)
		if err != nil {
			return fmt.Errorf("apply migrations: %w", err)
		}
		logger.Info("postgres migrations applied", "count", len(applied), "versions", applied)
	case mongoIndexer:
		if err := s.EnsureIndexes(ctx); err != nil {
			return fmt.Errorf("ensure indexes: %w", err)
		}
		logger.Info("mongo indexes ensured")
	default:
		logger.Info("datastore needs no migration")
	}
	return nil
}
