// Package ledger builds groups and appends records to their logs.
//
// Every function takes a group by value and returns a new group with the
// revision bumped by one. The input is never modified.
package ledger

import (
	"strings"
	"unicode/utf8"

	"github.com/carlo-colombo/cashsplitter/internal/calculator"
	"github.com/carlo-colombo/cashsplitter/internal/models"
)

// roundingTolerance is the largest imbalance, in cents, accepted in a
// transaction or a custom split.
const roundingTolerance = 1

// ExpenseSplit selects how an expense is divided. Exactly one of the two
// fields must be set.
type ExpenseSplit struct {
	// Participants share the expense equally.
	Participants []int64

	// Custom assigns explicit amounts per member; they must add up to the expense.
	Custom []models.Movement
}

// CreateGroup returns a new v2 group at revision 1 with an empty log.
func CreateGroup(description string, timestamp int64) models.Group {
	return models.Group{
		Header:        models.Header,
		SchemaVersion: models.SchemaV2,
		Revision:      1,
		Description:   description,
		Timestamp:     timestamp,
		Operations:    []models.Operation{},
	}
}

// CreateLegacyGroup returns a new v1 group with a fixed member list.
func CreateLegacyGroup(description string, timestamp int64, members []models.Member) (models.Group, error) {
	seen := make(map[int64]bool, len(members))
	for _, m := range members {
		if seen[m.ID] {
			return models.Group{}, models.NewValidationError("duplicate member id %d", m.ID)
		}
		if err := checkName(m.Name); err != nil {
			return models.Group{}, err
		}
		seen[m.ID] = true
	}
	return models.Group{
		Header:        models.Header,
		SchemaVersion: models.SchemaV1,
		Revision:      1,
		Description:   description,
		Timestamp:     timestamp,
		Members:       append(make([]models.Member, 0, len(members)), members...),
		Transactions:  []models.Transaction{},
	}, nil
}

// NextMemberID returns an id not yet used by any member of g.
func NextMemberID(g models.Group) int64 {
	var maxID int64
	for _, m := range g.ListMembers() {
		maxID = max(maxID, m.ID)
	}
	return maxID + 1
}

// AddMember appends an AddMember operation. Only v2 groups accept new
// members; a v1 member list is fixed at creation.
func AddMember(g models.Group, id int64, name string) (models.Group, error) {
	if g.SchemaVersion != models.SchemaV2 {
		return models.Group{}, models.NewValidationError("members of a schema v%d group are fixed", g.SchemaVersion)
	}
	if err := checkName(name); err != nil {
		return models.Group{}, err
	}
	for _, m := range g.ListMembers() {
		if m.ID == id {
			return models.Group{}, models.NewValidationError("member id %d already used by %q", id, m.Name)
		}
	}

	out := g.Clone()
	out.Operations = append(out.Operations, models.AddMember{ID: id, Name: name})
	out.Revision++
	return out, nil
}

// AddTransaction appends a transaction whose movements must sum to zero.
// Description and timestamp identify the transaction, so the pair must not
// already be in the log.
func AddTransaction(g models.Group, description string, movements []models.Movement, timestamp int64) (models.Group, error) {
	if !utf8.ValidString(description) {
		return models.Group{}, models.NewValidationError("transaction description is not valid UTF-8")
	}
	key := models.Identity{Description: description, Timestamp: timestamp}
	for _, tx := range g.ListTransactions() {
		if tx.Key() == key {
			return models.Group{}, models.NewValidationError("transaction %q at %d already recorded", description, timestamp)
		}
	}
	if sum := models.SumMovements(movements); sum > roundingTolerance || sum < -roundingTolerance {
		return models.Group{}, models.NewValidationError("movements must sum to zero")
	}
	if err := checkKnownMembers(g, movements); err != nil {
		return models.Group{}, err
	}

	tx := models.Transaction{
		Description: description,
		Timestamp:   timestamp,
		Movements:   models.CloneMovements(movements),
	}

	out := g.Clone()
	switch g.SchemaVersion {
	case models.SchemaV1:
		out.Transactions = append(out.Transactions, tx)
	case models.SchemaV2:
		out.Operations = append(out.Operations, models.NewAddTransaction(tx))
	default:
		return models.Group{}, models.NewValidationError("unsupported schema version %d", g.SchemaVersion)
	}
	out.Revision++
	return out, nil
}

// AddExpense records that payerID paid amount on behalf of the members
// described by split. The payer does not need to be one of them.
//
// The resulting movements are (payer, -amount) followed by one positive
// share per participant.
func AddExpense(g models.Group, payerID int64, description string, amount int64, timestamp int64, split ExpenseSplit) (models.Group, error) {
	hasParticipants := len(split.Participants) > 0
	hasCustom := len(split.Custom) > 0

	var shares []models.Movement
	switch {
	case hasParticipants && hasCustom:
		return models.Group{}, models.NewValidationError("supply either participants or custom splits, not both")
	case hasParticipants:
		strategy, err := calculator.NewEqualSplitStrategy(split.Participants)
		if err != nil {
			return models.Group{}, err
		}
		shares = strategy.Split(amount)
	case hasCustom:
		if diff := models.SumMovements(split.Custom) - amount; diff > roundingTolerance || diff < -roundingTolerance {
			return models.Group{}, models.NewValidationError("custom splits must sum to the expense amount")
		}
		shares = split.Custom
	default:
		return models.Group{}, models.NewValidationError("an expense needs participants or custom splits")
	}

	movements := make([]models.Movement, 0, len(shares)+1)
	movements = append(movements, models.Movement{MemberID: payerID, Amount: -amount})
	movements = append(movements, shares...)

	return AddTransaction(g, description, movements, timestamp)
}

func checkName(name string) error {
	if strings.TrimSpace(name) == "" {
		return models.NewValidationError("member name cannot be empty")
	}
	if !utf8.ValidString(name) {
		return models.NewValidationError("member name is not valid UTF-8")
	}
	return nil
}

func checkKnownMembers(g models.Group, movements []models.Movement) error {
	known := make(map[int64]bool)
	for _, m := range g.ListMembers() {
		known[m.ID] = true
	}
	for _, mv := range movements {
		if !known[mv.MemberID] {
			return models.NewValidationError("unknown member %d", mv.MemberID)
		}
	}
	return nil
}
