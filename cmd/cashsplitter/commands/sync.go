package commands

import (
	"fmt"
	"net/http"
	"time"

	"connectrpc.com/connect"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/carlo-colombo/cashsplitter/internal/auth"
	"github.com/carlo-colombo/cashsplitter/internal/middleware"
	"github.com/carlo-colombo/cashsplitter/internal/models"
	"github.com/carlo-colombo/cashsplitter/internal/service"
	"github.com/carlo-colombo/cashsplitter/internal/storage"
)

// pullConcurrency bounds the parallel Pull calls of pull --all.
const pullConcurrency = 4

// client returns a relay client for the configured URL and token.
func (a *app) client() *service.Client {
	return service.NewClient(http.DefaultClient, a.cfg.RelayURL,
		connect.WithInterceptors(middleware.BearerToken(a.cfg.Token)))
}

func (a *app) pushCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "push <group>",
		Short: "Send a group to the relay and keep the merged result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			g, err := a.loadGroup(ctx, args[0])
			if err != nil {
				return err
			}

			merged, err := a.client().Push(ctx, g)
			if err != nil {
				for _, c := range service.ConflictsFromError(err) {
					fmt.Fprintf(a.out, "%s %s\n", styles.Error.Render("conflict"), c)
				}
				return err
			}
			if err := a.save(ctx, merged); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "%s %q at revision %d\n", styles.Success.Render("Pushed"), merged.Description, merged.Revision)
			return nil
		},
	}
}

func (a *app) pullCmd() *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "pull [key]",
		Short: "Fetch a group from the relay and merge it locally",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			client := a.client()

			var keys []string
			switch {
			case all:
				summaries, err := client.List(ctx)
				if err != nil {
					return err
				}
				for _, s := range summaries {
					keys = append(keys, s.Key)
				}
			case len(args) == 1:
				keys = args
			default:
				return fmt.Errorf("give a group key or --all")
			}

			// Fetch concurrently, merge one at a time.
			remotes := make([]models.Group, len(keys))
			fetch, fetchCtx := errgroup.WithContext(ctx)
			fetch.SetLimit(pullConcurrency)
			for i, key := range keys {
				fetch.Go(func() error {
					g, err := client.Pull(fetchCtx, key)
					if err != nil {
						return fmt.Errorf("pull %s: %w", key, err)
					}
					remotes[i] = g
					return nil
				})
			}
			if err := fetch.Wait(); err != nil {
				return err
			}

			for _, remote := range remotes {
				g, outcome, err := a.mergeLocal(ctx, remote)
				if err != nil {
					return a.reportConflicts(err)
				}
				fmt.Fprintf(a.out, "%s %q at revision %d (%s)\n",
					styles.Success.Render(outcome), g.Description, g.Revision, storage.Key(g.Identity()))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "pull every group held by the relay")
	return cmd
}

func (a *app) tokenCmd() *cobra.Command {
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "token <replica>",
		Short: "Issue a relay token for a replica",
		Long: `Issue a relay token for a replica.

The token is signed with SYNC_JWT_SECRET, which must match the relay's.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !a.cfg.AuthEnabled() {
				return fmt.Errorf("SYNC_JWT_SECRET is not set")
			}
			if ttl == 0 {
				ttl = a.cfg.TokenTTL
			}
			token, err := auth.NewJWTManager(a.cfg.JWTSecret, ttl).Generate(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, token)
			return nil
		},
	}
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (default SYNC_TOKEN_TTL)")
	return cmd
}
