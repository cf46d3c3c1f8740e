// Package merge reconciles two replicas of the same group.
//
// Merge never guesses: any disagreement between the replicas is reported as
// a conflict and nothing is merged. Callers resolve conflicts themselves and
// retry.
package merge

import (
	"github.com/carlo-colombo/cashsplitter/internal/models"
)

// Merge combines a and b into a new group.
//
// Steps:
//  1. Identity check: description and timestamp are both compared; any
//     difference aborts with a groupId conflict per differing field.
//  2. Conflict detection: members with the same id but different names, then
//     transactions with the same (description, timestamp) but different
//     movements.
//  3. Union: a's distinct entries in order, then b's entries not already
//     present. The revision becomes max(a, b)+1.
//
// A *models.MergeConflictError carrying every conflict is returned when step
// 1 or 2 finds anything. Neither input is modified.
func Merge(a, b models.Group) (models.Group, error) {
	if conflicts := identityConflicts(a.Identity(), b.Identity()); len(conflicts) > 0 {
		return models.Group{}, &models.MergeConflictError{Conflicts: conflicts}
	}

	if a.SchemaVersion != b.SchemaVersion {
		a, b = models.Upgrade(a), models.Upgrade(b)
	}

	conflicts := memberConflicts(a.ListMembers(), b.ListMembers())
	conflicts = append(conflicts, transactionConflicts(a.ListTransactions(), b.ListTransactions())...)
	if len(conflicts) > 0 {
		return models.Group{}, &models.MergeConflictError{Conflicts: conflicts}
	}

	out := models.Group{
		Header:        models.Header,
		SchemaVersion: a.SchemaVersion,
		Revision:      max(a.Revision, b.Revision) + 1,
		Description:   a.Description,
		Timestamp:     a.Timestamp,
	}
	if a.SchemaVersion == models.SchemaV1 {
		out.Members = unionMembers(a.Members, b.Members)
		out.Transactions = unionTransactions(a.Transactions, b.Transactions)
	} else {
		out.Operations = unionOperations(a.Operations, b.Operations)
	}
	return out, nil
}

func identityConflicts(a, b models.Identity) []models.Conflict {
	var conflicts []models.Conflict
	if a.Description != b.Description {
		conflicts = append(conflicts, models.Conflict{
			Type:   models.ConflictGroupID,
			Field:  "description",
			Value1: a.Description,
			Value2: b.Description,
		})
	}
	if a.Timestamp != b.Timestamp {
		conflicts = append(conflicts, models.Conflict{
			Type:   models.ConflictGroupID,
			Field:  "timestamp",
			Value1: a.Timestamp,
			Value2: b.Timestamp,
		})
	}
	return conflicts
}

func memberConflicts(a, b []models.Member) []models.Conflict {
	inA := make(map[models.Member]bool, len(a))
	for _, m := range a {
		inA[m] = true
	}
	names := make(map[int64][]string, len(b))
	for _, m := range b {
		if !inA[m] {
			names[m.ID] = append(names[m.ID], m.Name)
		}
	}

	var conflicts []models.Conflict
	reported := make(map[int64]bool)
	for _, m := range a {
		if reported[m.ID] {
			continue
		}
		for _, other := range names[m.ID] {
			if other == m.Name {
				continue
			}
			reported[m.ID] = true
			conflicts = append(conflicts, models.Conflict{
				Type:   models.ConflictMember,
				ID:     m.ID,
				Value1: m.Name,
				Value2: other,
			})
			break
		}
	}
	return conflicts
}

func transactionConflicts(a, b []models.Transaction) []models.Conflict {
	byKey := make(map[models.Identity][]models.Transaction, len(b))
	for _, tx := range b {
		byKey[tx.Key()] = append(byKey[tx.Key()], tx)
	}

	// Entries of b already present in a are shared history, not conflicts.
	inA := make(map[string]bool, len(a))
	for _, tx := range a {
		inA[models.TransactionKey(tx)] = true
	}

	var conflicts []models.Conflict
	reported := make(map[models.Identity]bool)
	for _, tx := range a {
		key := tx.Key()
		if reported[key] {
			continue
		}
		for _, other := range byKey[key] {
			if inA[models.TransactionKey(other)] {
				continue
			}
			if !models.MovementsEqual(tx.Movements, other.Movements) {
				reported[key] = true
				conflicts = append(conflicts, models.Conflict{
					Type:        models.ConflictTransaction,
					Description: tx.Description,
					Timestamp:   tx.Timestamp,
					Value1:      models.CloneMovements(tx.Movements),
					Value2:      models.CloneMovements(other.Movements),
				})
				break
			}
		}
	}
	return conflicts
}

func unionOperations(a, b []models.Operation) []models.Operation {
	out := make([]models.Operation, 0, len(a)+len(b))
	seen := make(map[string]bool, len(a)+len(b))
	for _, log := range [][]models.Operation{a, b} {
		for _, op := range log {
			key := models.OperationKey(op)
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, models.CloneOperation(op))
		}
	}
	return out
}

func unionTransactions(a, b []models.Transaction) []models.Transaction {
	out := make([]models.Transaction, 0, len(a)+len(b))
	seen := make(map[string]bool, len(a)+len(b))
	for _, log := range [][]models.Transaction{a, b} {
		for _, tx := range log {
			key := models.TransactionKey(tx)
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, tx.Clone())
		}
	}
	return out
}

func unionMembers(a, b []models.Member) []models.Member {
	out := make([]models.Member, 0, len(a)+len(b))
	seen := make(map[models.Member]bool, len(a)+len(b))
	for _, list := range [][]models.Member{a, b} {
		for _, m := range list {
			if seen[m] {
				continue
			}
			seen[m] = true
			out = append(out, m)
		}
	}
	return out
}
