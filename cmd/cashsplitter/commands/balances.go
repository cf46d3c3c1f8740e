package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/carlo-colombo/cashsplitter/internal/calculator"
	"github.com/carlo-colombo/cashsplitter/internal/ledger"
)

func (a *app) balancesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "balances <group>",
		Short: "Show what each member owes or is owed",
		Long: `Show what each member owes or is owed.

A positive balance means the member owes money, a negative one that
the member is owed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := a.loadGroup(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			balances := calculator.CalculateBalances(g)
			rows := make([][]string, len(balances))
			for i, b := range balances {
				name := b.Name
				if name == "" {
					name = fmt.Sprintf("#%d", b.MemberID)
				}
				rows[i] = []string{name, formatCents(b.TotalPaid), formatCents(b.TotalOwed), formatCents(b.Balance)}
			}
			fmt.Fprintln(a.out, styles.Title.Render(g.Description))
			fmt.Fprintln(a.out, renderTable([]string{"Member", "Paid", "Share", "Balance"}, rows))
			return nil
		},
	}
}

func (a *app) settleCmd() *cobra.Command {
	var apply bool
	cmd := &cobra.Command{
		Use:   "settle <group>",
		Short: "Suggest payments that clear every balance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			g, err := a.loadGroup(ctx, args[0])
			if err != nil {
				return err
			}

			edges := calculator.SuggestSettlements(calculator.CalculateBalances(g))
			if len(edges) == 0 {
				fmt.Fprintln(a.out, styles.Muted.Render("All settled."))
				return nil
			}
			for _, e := range edges {
				fmt.Fprintf(a.out, "%s → %s %s\n", memberName(g, e.From), memberName(g, e.To), formatCents(e.Amount))
			}
			if !apply {
				return nil
			}

			// Distinct timestamps keep each settlement its own transaction key.
			ts := a.timestamp(0)
			for i, e := range edges {
				description := fmt.Sprintf("Settlement %s to %s", memberName(g, e.From), memberName(g, e.To))
				if g, err = ledger.AddTransaction(g, description, transferMovements(e.From, e.To, e.Amount), ts+int64(i)); err != nil {
					return err
				}
			}
			if err := a.save(ctx, g); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "%s %d settlement(s)\n", styles.Success.Render("Recorded"), len(edges))
			return nil
		},
	}
	cmd.Flags().BoolVar(&apply, "apply", false, "record the suggested payments as transfers")
	return cmd
}
