package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"vidtube/internal/auth"
	"vidtube/internal/models"
	"vidtube/internal/storage"
)

type bootstrapUserOptions struct {
	username     string
	email        string
	fullName     string
	issueSession bool
}

func newBootstrapUserCmd(root *rootOptions) *cobra.Command {
	opts := &bootstrapUserOptions{}
	cmd := &cobra.Command{
		Use:   "bootstrap-user",
		Short: "Create a user if missing and optionally print a session token for it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if strings.TrimSpace(opts.username) == "" {
				return fmt.Errorf("--username is required")
			}
			cfg, err := root.load(cmd)
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			store, err := openStore(ctx, cfg.Storage)
			if err != nil {
				return err
			}
			defer store.Close(context.Background())

			user, created, err := bootstrapUser(ctx, store, storage.CreateUserParams{
				Username: opts.username,
				Email:    opts.email,
				FullName: opts.fullName,
			})
			if err != nil {
				return fmt.Errorf("bootstrap user: %w", err)
			}
			state := "exists"
			if created {
				state = "created"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "user %s (%s) %s\n", user.Username, user.ID, state)

			if !opts.issueSession {
				return nil
			}
			// Memory sessions die with this process, so a token is only
			// useful from a shared session store.
			if cfg.Sessions.Driver == "memory" {
				return fmt.Errorf("--issue-session needs a postgres or redis session store")
			}
			var client redis.UniversalClient
			if cfg.Sessions.Driver == "redis" {
				client = newRedisClient(cfg.Sessions.Redis)
				defer client.Close()
			}
			sessions, err := openSessions(ctx, cfg.Sessions, store, client)
			if err != nil {
				return err
			}
			defer sessions.Close(context.Background())
			return issueSession(ctx, cmd.OutOrStdout(), sessions, user)
		},
	}
	cmd.Flags().StringVar(&opts.username, "username", "", "username of the account")
	cmd.Flags().StringVar(&opts.email, "email", "", "email address for a new account")
	cmd.Flags().StringVar(&opts.fullName, "full-name", "", "display name for a new account")
	cmd.Flags().BoolVar(&opts.issueSession, "issue-session", false, "print a bearer token for the account")
	return cmd
}

// bootstrapUser returns the account named by params.Username, creating it
// when it does not exist yet.
func bootstrapUser(ctx context.Context, store storage.UserRepository, params storage.CreateUserParams) (models.User, bool, error) {
	username := strings.ToLower(strings.TrimSpace(params.Username))
	existing, err := store.FindUserByUsername(ctx, username)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return models.User{}, false, err
	}
	params.Username = username
	params.Email = strings.ToLower(strings.TrimSpace(params.Email))
	params.FullName = strings.TrimSpace(params.FullName)
	if params.FullName == "" {
		params.FullName = username
	}
	user, err := store.CreateUser(ctx, params)
	if err != nil {
		return models.User{}, false, err
	}
	return user, true, nil
}

func issueSession(ctx context.Context, out io.Writer, sessions *auth.SessionManager, user models.User) error {
	token, expiresAt, err := sessions.Create(ctx, user.ID)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	fmt.Fprintf(out, "token: %s\nexpires: %s\n", token, expiresAt.UTC().Format(time.RFC3339))
	return nil
}
