package models

import (
	"fmt"
	"strings"
)

// OpTag is the numeric tag identifying an operation kind on the wire.
type OpTag int64

const (
	TagAddMember      OpTag = 1
	TagAddTransaction OpTag = 2
)

// Operation is one entry of a v2 operation log.
// The set of implementations is closed: AddMember and AddTransaction.
type Operation interface {
	Tag() OpTag
	isOperation()
}

// AddMember declares a new member.
type AddMember struct {
	ID   int64
	Name string
}

// AddTransaction records a transaction.
type AddTransaction struct {
	Description string
	Timestamp   int64
	Movements   []Movement
}

func (AddMember) Tag() OpTag      { return TagAddMember }
func (AddTransaction) Tag() OpTag { return TagAddTransaction }

func (AddMember) isOperation()      {}
func (AddTransaction) isOperation() {}

// NewAddTransaction builds an AddTransaction operation from tx, copying its movements.
func NewAddTransaction(tx Transaction) AddTransaction {
	return AddTransaction{
		Description: tx.Description,
		Timestamp:   tx.Timestamp,
		Movements:   CloneMovements(tx.Movements),
	}
}

// Transaction returns the transaction recorded by op.
func (op AddTransaction) Transaction() Transaction {
	return Transaction{
		Description: op.Description,
		Timestamp:   op.Timestamp,
		Movements:   CloneMovements(op.Movements),
	}
}

// CloneOperation returns a copy of op that shares no slices with it.
func CloneOperation(op Operation) Operation {
	switch o := op.(type) {
	case AddMember:
		return o
	case AddTransaction:
		o.Movements = CloneMovements(o.Movements)
		return o
	default:
		panic(fmt.Sprintf("models: unknown operation %T", op))
	}
}

// OperationsEqual reports whether a and b are structurally identical.
func OperationsEqual(a, b Operation) bool {
	switch x := a.(type) {
	case AddMember:
		y, ok := b.(AddMember)
		return ok && x == y
	case AddTransaction:
		y, ok := b.(AddTransaction)
		return ok && x.Description == y.Description &&
			x.Timestamp == y.Timestamp &&
			MovementsEqual(x.Movements, y.Movements)
	default:
		return false
	}
}

// OperationKey returns a canonical string for op. Two operations have the
// same key if and only if they are structurally equal.
func OperationKey(op Operation) string {
	switch o := op.(type) {
	case AddMember:
		return fmt.Sprintf("m|%d|%q", o.ID, o.Name)
	case AddTransaction:
		return "t|" + TransactionKey(o.Transaction())
	default:
		panic(fmt.Sprintf("models: unknown operation %T", op))
	}
}

// TransactionKey returns a canonical string covering every field of tx.
func TransactionKey(tx Transaction) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%q|%d", tx.Description, tx.Timestamp)
	for _, m := range tx.Movements {
		fmt.Fprintf(&b, "|%d:%d", m.MemberID, m.Amount)
	}
	return b.String()
}
