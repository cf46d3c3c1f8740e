// Package models defines the core domain model for CashSplitter.
//
// # Groups
//
// A Group is a shared expense list: its identity (description + creation
// timestamp), a revision counter, and an append-only log. Two log layouts
// exist:
//   - Schema v1: a fixed member list plus a list of Transactions
//   - Schema v2: an operation log of AddMember / AddTransaction records
//
// Membership and transactions of a v2 group are derived by folding the log.
//
// # Money
//
// Amounts are integer cents. Within one transaction, movements sum to zero
// (within one cent of rounding). Negative amounts mean "paid", positive
// amounts mean "owes a share".
//
// # Design Principles
//
// 1. **Immutable values**: every mutation returns a new Group; slices are never shared with the input
// 2. **Tagged operations**: Operation is a closed set matched with a type switch, no positional indexes
// 3. **Identity is forever**: Description and Timestamp never change after creation
// 4. **Pure core**: nothing in this package performs I/O
package models
