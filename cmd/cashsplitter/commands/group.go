package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/carlo-colombo/cashsplitter/internal/codec"
	"github.com/carlo-colombo/cashsplitter/internal/ledger"
	"github.com/carlo-colombo/cashsplitter/internal/models"
	"github.com/carlo-colombo/cashsplitter/internal/storage"
)

func (a *app) newCmd() *cobra.Command {
	var (
		members   []string
		timestamp int64
		legacy    bool
	)
	cmd := &cobra.Command{
		Use:   "new <description>",
		Short: "Create a group",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			description := strings.TrimSpace(args[0])
			if description == "" {
				return models.NewValidationError("group description cannot be empty")
			}
			ts := a.timestamp(timestamp)

			var g models.Group
			if legacy {
				fixed := make([]models.Member, len(members))
				for i, name := range members {
					fixed[i] = models.Member{ID: int64(i + 1), Name: name}
				}
				var err error
				if g, err = ledger.CreateLegacyGroup(description, ts, fixed); err != nil {
					return err
				}
			} else {
				g = ledger.CreateGroup(description, ts)
				for _, name := range members {
					var err error
					if g, err = ledger.AddMember(g, ledger.NextMemberID(g), name); err != nil {
						return err
					}
				}
			}

			ctx := cmd.Context()
			store, err := a.open()
			if err != nil {
				return err
			}
			if _, err := store.Get(ctx, g.Identity()); err == nil {
				return fmt.Errorf("group %q created at %s already exists", description, formatTimestamp(ts))
			}
			if err := a.save(ctx, g); err != nil {
				return err
			}

			fmt.Fprintf(a.out, "%s %q\n", styles.Success.Render("Created group"), description)
			fmt.Fprintf(a.out, "Key: %s\n", storage.Key(g.Identity()))
			return nil
		},
	}
	cmd.Flags().StringSliceVarP(&members, "member", "m", nil, "member name (repeatable)")
	cmd.Flags().Int64Var(&timestamp, "timestamp", 0, "creation time in milliseconds (default now)")
	cmd.Flags().BoolVar(&legacy, "legacy", false, "create a schema v1 group with a fixed member list")
	return cmd
}

func (a *app) listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List local groups",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := a.open()
			if err != nil {
				return err
			}
			ids, err := store.List(ctx)
			if err != nil {
				return err
			}
			if len(ids) == 0 {
				fmt.Fprintln(a.out, styles.Muted.Render("No groups yet."))
				return nil
			}

			rows := make([][]string, 0, len(ids))
			for _, id := range ids {
				g, err := store.Get(ctx, id)
				if err != nil {
					return err
				}
				rows = append(rows, []string{
					storage.Key(id),
					id.Description,
					formatTimestamp(id.Timestamp),
					fmt.Sprint(g.Revision),
					fmt.Sprint(len(g.ListTransactions())),
				})
			}
			fmt.Fprintln(a.out, renderTable([]string{"Key", "Description", "Created", "Revision", "Transactions"}, rows))
			return nil
		},
	}
}

func (a *app) showCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <group>",
		Short: "Show members and transactions of a group",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := a.loadGroup(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fingerprint, err := codec.Fingerprint(g)
			if err != nil {
				return err
			}

			fmt.Fprintln(a.out, styles.Title.Render(g.Description))
			fmt.Fprintf(a.out, "Key:         %s\n", storage.Key(g.Identity()))
			fmt.Fprintf(a.out, "Created:     %s\n", formatTimestamp(g.Timestamp))
			fmt.Fprintf(a.out, "Schema:      v%d\n", g.SchemaVersion)
			fmt.Fprintf(a.out, "Revision:    %d\n", g.Revision)
			fmt.Fprintf(a.out, "Fingerprint: %s\n", fingerprint)

			members := g.ListMembers()
			names := make([]string, len(members))
			for i, m := range members {
				names[i] = fmt.Sprintf("%s (%d)", m.Name, m.ID)
			}
			fmt.Fprintf(a.out, "Members:     %s\n", strings.Join(names, ", "))

			txs := g.ListTransactions()
			if len(txs) == 0 {
				fmt.Fprintln(a.out, styles.Muted.Render("No transactions yet."))
				return nil
			}
			rows := make([][]string, len(txs))
			for i, tx := range txs {
				rows[i] = []string{formatTimestamp(tx.Timestamp), tx.Description, formatMovements(g, tx.Movements)}
			}
			fmt.Fprintln(a.out, renderTable([]string{"When", "Description", "Movements"}, rows))
			return nil
		},
	}
}

func (a *app) deleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <group>",
		Short: "Delete a local group",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			g, err := a.loadGroup(ctx, args[0])
			if err != nil {
				return err
			}
			if err := a.store.Delete(ctx, g.Identity()); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "%s %q\n", styles.Success.Render("Deleted group"), g.Description)
			return nil
		},
	}
}
