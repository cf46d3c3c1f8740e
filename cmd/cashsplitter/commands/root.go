package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/carlo-colombo/cashsplitter/internal/config"
	"github.com/carlo-colombo/cashsplitter/internal/models"
	"github.com/carlo-colombo/cashsplitter/internal/storage"
	"github.com/carlo-colombo/cashsplitter/internal/storage/backend"
	"github.com/carlo-colombo/cashsplitter/pkg/logging"
)

// app carries the state shared by the commands of one invocation.
type app struct {
	cfg     config.Config
	verbose bool

	in  io.Reader
	out io.Writer

	store storage.Store
	now   func() time.Time
}

// Run executes the command line given by args.
func Run(ctx context.Context, args []string, in io.Reader, out, errOut io.Writer) error {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(errOut, "Error:", err)
		return err
	}

	a := &app{cfg: cfg, in: in, out: out, now: time.Now}
	defer a.close()

	root := a.rootCmd()
	root.SetArgs(args)
	root.SetIn(in)
	root.SetOut(out)
	root.SetErr(errOut)
	return root.ExecuteContext(ctx)
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "cashsplitter",
		Short:         "Split shared expenses across replicas",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if a.verbose {
				logging.SetupWithLevel(slog.LevelDebug)
			}
		},
	}

	root.PersistentFlags().StringVar(&a.cfg.DBPath, "db", a.cfg.DBPath, "database file (sqlite) or directory (badger)")
	root.PersistentFlags().StringVar(&a.cfg.Backend, "backend", a.cfg.Backend, "storage backend: sqlite or badger")
	root.PersistentFlags().StringVar(&a.cfg.RelayURL, "relay", a.cfg.RelayURL, "relay base URL (e.g. http://127.0.0.1:8080)")
	root.PersistentFlags().StringVar(&a.cfg.Token, "token", a.cfg.Token, "bearer token for the relay")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(
		a.newCmd(), a.listCmd(), a.showCmd(), a.deleteCmd(),
		a.memberCmd(), a.expenseCmd(), a.transferCmd(),
		a.balancesCmd(), a.settleCmd(),
		a.exportCmd(), a.importCmd(), a.mergeCmd(),
		a.pushCmd(), a.pullCmd(), a.tokenCmd(),
	)
	return root
}

// open returns the local store, opening it on first use.
func (a *app) open() (storage.Store, error) {
	if a.store != nil {
		return a.store, nil
	}
	if a.cfg.Backend == backend.Memory {
		return nil, fmt.Errorf("the memory backend cannot keep groups between commands")
	}
	store, err := backend.Open(a.cfg.Backend, a.cfg.DBPath)
	if err != nil {
		return nil, err
	}
	slog.Debug("Storage initialized", "backend", a.cfg.Backend, "database", a.cfg.DBPath)
	a.store = store
	return store, nil
}

func (a *app) close() {
	if a.store != nil {
		a.store.Close()
		a.store = nil
	}
}

// timestamp returns ts, or the current time in milliseconds when ts is zero.
func (a *app) timestamp(ts int64) int64 {
	if ts != 0 {
		return ts
	}
	return a.now().UnixMilli()
}

// loadGroup finds a stored group by key or by its exact description.
func (a *app) loadGroup(ctx context.Context, ref string) (models.Group, error) {
	store, err := a.open()
	if err != nil {
		return models.Group{}, err
	}
	if _, err := uuid.Parse(ref); err == nil {
		return storage.GetByKey(ctx, store, ref)
	}

	ids, err := store.List(ctx)
	if err != nil {
		return models.Group{}, err
	}
	var matches []models.Identity
	for _, id := range ids {
		if id.Description == ref {
			matches = append(matches, id)
		}
	}
	switch len(matches) {
	case 0:
		return models.Group{}, fmt.Errorf("%w: %q", storage.ErrNotFound, ref)
	case 1:
		return store.Get(ctx, matches[0])
	default:
		return models.Group{}, fmt.Errorf("%d groups are named %q, use the key instead", len(matches), ref)
	}
}

// save stores g and logs the new revision.
func (a *app) save(ctx context.Context, g models.Group) error {
	store, err := a.open()
	if err != nil {
		return err
	}
	if err := store.Put(ctx, g); err != nil {
		return err
	}
	slog.Debug("Group stored", "key", storage.Key(g.Identity()), "revision", g.Revision)
	return nil
}

// memberID resolves a member reference, either its numeric id or its name.
func memberID(g models.Group, ref string) (int64, error) {
	members := g.ListMembers()
	for _, m := range members {
		if fmt.Sprint(m.ID) == ref {
			return m.ID, nil
		}
	}
	for _, m := range members {
		if strings.EqualFold(m.Name, ref) {
			return m.ID, nil
		}
	}
	return 0, models.NewValidationError("no member %q in group %q", ref, g.Description)
}

func memberIDs(g models.Group, refs []string) ([]int64, error) {
	ids := make([]int64, 0, len(refs))
	for _, ref := range refs {
		id, err := memberID(g, ref)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// reportConflicts prints every conflict of a failed merge before returning err.
func (a *app) reportConflicts(err error) error {
	var conflictErr *models.MergeConflictError
	if errors.As(err, &conflictErr) {
		for _, c := range conflictErr.Conflicts {
			fmt.Fprintf(a.out, "%s %s\n", styles.Error.Render("conflict"), c.String())
		}
	}
	return err
}
