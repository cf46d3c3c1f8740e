package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/carlo-colombo/cashsplitter/internal/ledger"
	"github.com/carlo-colombo/cashsplitter/internal/models"
)

func (a *app) memberCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "member <group> <name>",
		Short: "Add a member to a group",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			g, err := a.loadGroup(ctx, args[0])
			if err != nil {
				return err
			}
			id := ledger.NextMemberID(g)
			g, err = ledger.AddMember(g, id, strings.TrimSpace(args[1]))
			if err != nil {
				return err
			}
			if err := a.save(ctx, g); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "%s %q (id %d)\n", styles.Success.Render("Added member"), args[1], id)
			return nil
		},
	}
}

func (a *app) expenseCmd() *cobra.Command {
	var (
		payer        string
		participants []string
		splits       []string
		timestamp    int64
	)
	cmd := &cobra.Command{
		Use:   "expense <group> <description> <amount>",
		Short: "Record an expense paid by one member",
		Long: `Record an expense paid by one member.

Split it equally with --participants, or assign explicit shares with
--split name=amount. Exactly one of the two must be given.`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			g, err := a.loadGroup(ctx, args[0])
			if err != nil {
				return err
			}
			amount, err := parseCents(args[2])
			if err != nil {
				return err
			}
			payerID, err := memberID(g, payer)
			if err != nil {
				return err
			}

			var split ledger.ExpenseSplit
			if split.Participants, err = memberIDs(g, participants); err != nil {
				return err
			}
			for _, s := range splits {
				ref, raw, ok := strings.Cut(s, "=")
				if !ok {
					return models.NewValidationError("split %q must look like name=amount", s)
				}
				id, err := memberID(g, ref)
				if err != nil {
					return err
				}
				share, err := parseCents(raw)
				if err != nil {
					return err
				}
				split.Custom = append(split.Custom, models.Movement{MemberID: id, Amount: share})
			}

			g, err = ledger.AddExpense(g, payerID, args[1], amount, a.timestamp(timestamp), split)
			if err != nil {
				return err
			}
			if err := a.save(ctx, g); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "%s %q %s paid by %s\n",
				styles.Success.Render("Recorded expense"), args[1], formatCents(amount), memberName(g, payerID))
			return nil
		},
	}
	cmd.Flags().StringVar(&payer, "payer", "", "member who paid (name or id)")
	cmd.Flags().StringSliceVarP(&participants, "participants", "p", nil, "members sharing the expense equally")
	cmd.Flags().StringArrayVar(&splits, "split", nil, "explicit share as name=amount (repeatable)")
	cmd.Flags().Int64Var(&timestamp, "timestamp", 0, "time in milliseconds (default now)")
	cmd.MarkFlagRequired("payer")
	return cmd
}

func (a *app) transferCmd() *cobra.Command {
	var (
		description string
		timestamp   int64
	)
	cmd := &cobra.Command{
		Use:   "transfer <group> <from> <to> <amount>",
		Short: "Record money handed from one member to another",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			g, err := a.loadGroup(ctx, args[0])
			if err != nil {
				return err
			}
			from, err := memberID(g, args[1])
			if err != nil {
				return err
			}
			to, err := memberID(g, args[2])
			if err != nil {
				return err
			}
			amount, err := parseCents(args[3])
			if err != nil {
				return err
			}

			if description == "" {
				description = fmt.Sprintf("Transfer %s to %s", memberName(g, from), memberName(g, to))
			}
			g, err = ledger.AddTransaction(g, description, transferMovements(from, to, amount), a.timestamp(timestamp))
			if err != nil {
				return err
			}
			if err := a.save(ctx, g); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "%s %s from %s to %s\n",
				styles.Success.Render("Recorded transfer"), formatCents(amount), memberName(g, from), memberName(g, to))
			return nil
		},
	}
	cmd.Flags().StringVarP(&description, "description", "d", "", "transaction description")
	cmd.Flags().Int64Var(&timestamp, "timestamp", 0, "time in milliseconds (default now)")
	return cmd
}

// transferMovements moves amount from one member to another: the sender's
// balance goes down as if they had paid for the receiver.
func transferMovements(from, to, amount int64) []models.Movement {
	return []models.Movement{
		{MemberID: from, Amount: -amount},
		{MemberID: to, Amount: amount},
	}
}
