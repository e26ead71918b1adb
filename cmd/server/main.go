// Command server starts the vidtube engagement and feed API.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"vidtube/internal/config"
	"vidtube/internal/observability/logging"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

type rootOptions struct {
	configFile  string
	envFiles    []string
	autoMigrate bool
}

func (o *rootOptions) load(cmd *cobra.Command) (config.Config, error) {
	file := o.configFile
	if strings.TrimSpace(file) == "" {
		file = os.Getenv("VIDTUBE_CONFIG")
	}
	return config.Load(config.LoadOptions{
		File:     file,
		EnvFiles: o.envFiles,
		Flags:    cmd.Flags(),
	})
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "vidtube-server",
		Short:         "Serve the vidtube engagement and feed API",
		Version:       version,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.load(cmd)
			if err != nil {
				return err
			}
			logger := logging.Init(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := run(ctx, cfg, logger, opts.autoMigrate); err != nil {
				logger.Error("server exited", "error", err)
				return err
			}
			return nil
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.configFile, "config", "", "YAML configuration file (or VIDTUBE_CONFIG)")
	flags.StringSliceVar(&opts.envFiles, "env-file", []string{".env"}, "dotenv files to read; missing files are skipped")
	config.RegisterFlags(flags)
	cmd.Flags().BoolVar(&opts.autoMigrate, "migrate", false, "apply schema migrations or indexes before serving")

	cmd.AddCommand(newMigrateCmd(opts), newBootstrapUserCmd(opts))
	return cmd
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger, autoMigrate bool) error {
	app, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer app.close(logger)

	if autoMigrate {
		if err := migrateStore(ctx, app.store, logger); err != nil {
			return err
		}
	}

	stopPurge := startSessionPurgeWorker(ctx, logging.WithComponent(logger, "session-purger"), app.sessions, cfg.Sessions.PurgeInterval)
	defer stopPurge()

	logger.Info("vidtube api starting",
		"mode", cfg.Mode,
		"storage", cfg.Storage.Driver,
		"sessions", cfg.Sessions.Driver,
		"version", version,
	)
	return app.server.Run(ctx, nil)
}
