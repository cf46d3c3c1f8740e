package calculator

import (
	"sort"

	"github.com/carlo-colombo/cashsplitter/internal/models"
)

// MemberBalance represents the balance information for one group member.
type MemberBalance struct {
	MemberID  int64
	Name      string
	Balance   int64 // Positive = owes money, Negative = is owed money
	TotalPaid int64 // Sum of negative movements, as a positive number
	TotalOwed int64 // Sum of positive movements
}

// DebtEdge represents a debt from one member to another.
type DebtEdge struct {
	From   int64 // Member who owes
	To     int64 // Member who is owed
	Amount int64
}

// CalculateBalances folds every movement of every transaction into one
// balance per member.
//
// Algorithm:
// - One entry per declared member, in declaration order, zero-activity members included
// - For each movement: balance[member] += amount
// - Movements for ids that were never declared get their own trailing entry
//
// For any consistent group the balances sum to zero, up to one cent per transaction.
func CalculateBalances(g models.Group) []MemberBalance {
	members := g.ListMembers()

	balances := make([]MemberBalance, 0, len(members))
	index := make(map[int64]int, len(members))
	for _, m := range members {
		if _, exists := index[m.ID]; exists {
			continue
		}
		index[m.ID] = len(balances)
		balances = append(balances, MemberBalance{MemberID: m.ID, Name: m.Name})
	}

	for _, tx := range g.ListTransactions() {
		for _, mv := range tx.Movements {
			i, exists := index[mv.MemberID]
			if !exists {
				i = len(balances)
				index[mv.MemberID] = i
				balances = append(balances, MemberBalance{MemberID: mv.MemberID})
			}

			b := &balances[i]
			b.Balance += mv.Amount
			if mv.Amount < 0 {
				b.TotalPaid -= mv.Amount
			} else {
				b.TotalOwed += mv.Amount
			}
		}
	}

	return balances
}

// SuggestSettlements computes a short list of payments that clears every
// balance. Debtors are members with a positive balance, creditors those with
// a negative one.
//
// Greedy algorithm: match largest debts with largest credits. Ties are broken
// by member id so the result is deterministic.
func SuggestSettlements(balances []MemberBalance) []DebtEdge {
	type entry struct {
		id     int64
		amount int64
	}
	var debtors, creditors []entry
	for _, b := range balances {
		if b.Balance > 0 {
			debtors = append(debtors, entry{b.MemberID, b.Balance})
		} else if b.Balance < 0 {
			creditors = append(creditors, entry{b.MemberID, -b.Balance})
		}
	}

	byAmount := func(s []entry) func(i, j int) bool {
		return func(i, j int) bool {
			if s[i].amount != s[j].amount {
				return s[i].amount > s[j].amount
			}
			return s[i].id < s[j].id
		}
	}
	sort.Slice(debtors, byAmount(debtors))
	sort.Slice(creditors, byAmount(creditors))

	var edges []DebtEdge
	i, j := 0, 0
	for i < len(debtors) && j < len(creditors) {
		// Amount to settle is minimum of what debtor owes and creditor is owed
		amount := min(debtors[i].amount, creditors[j].amount)
		edges = append(edges, DebtEdge{
			From:   debtors[i].id,
			To:     creditors[j].id,
			Amount: amount,
		})

		debtors[i].amount -= amount
		creditors[j].amount -= amount

		if debtors[i].amount == 0 {
			i++
		}
		if creditors[j].amount == 0 {
			j++
		}
	}

	return edges
}
