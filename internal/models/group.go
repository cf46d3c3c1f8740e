package models

// Header is the magic string every serialized group starts with.
const Header = "cs"

// Supported schema versions.
const (
	SchemaV1 = 1
	SchemaV2 = 2
)

// Identity is the immutable (description, timestamp) pair used to decide
// whether two groups are replicas of the same logical group.
type Identity struct {
	Description string
	Timestamp   int64
}

// Member is a participant of a group.
type Member struct {
	// ID is unique within a group and never reassigned to another name.
	ID int64

	// Name is the display name (e.g., "Alice").
	Name string
}

// Movement attributes a signed amount of cents to one member.
// Negative = paid, positive = owes a share.
type Movement struct {
	MemberID int64
	Amount   int64
}

// Transaction is one money movement between members.
type Transaction struct {
	// Description is the human-readable label (e.g., "Dinner").
	Description string

	// Timestamp is the Unix time in milliseconds of the transaction.
	// Together with Description it forms the transaction key used by merge.
	Timestamp int64

	// Movements must sum to zero within one cent.
	Movements []Movement
}

// Group represents one replica of an expense group.
//
// Groups are values: construction helpers in the ledger package and the merge
// engine always return a new Group and never modify their inputs.
type Group struct {
	// Header is always "cs".
	Header string

	// SchemaVersion selects the log layout (SchemaV1 or SchemaV2).
	SchemaVersion int

	// Revision is bumped by one on each local mutation and set to
	// max(a, b)+1 on merge.
	Revision int64

	// Description is the group name. Part of the identity.
	Description string

	// Timestamp is the creation time in Unix milliseconds. Part of the identity.
	Timestamp int64

	// Members is the fixed member list of a v1 group. Unused in v2.
	Members []Member

	// Transactions is the transaction list of a v1 group. Unused in v2.
	Transactions []Transaction

	// Operations is the operation log of a v2 group. Unused in v1.
	Operations []Operation
}

// Identity returns the group identity.
func (g Group) Identity() Identity {
	return Identity{Description: g.Description, Timestamp: g.Timestamp}
}

// ListMembers returns the members in declaration order.
// For v2 groups the list is folded from AddMember operations.
func (g Group) ListMembers() []Member {
	if g.SchemaVersion == SchemaV1 {
		return append(make([]Member, 0, len(g.Members)), g.Members...)
	}
	members := make([]Member, 0)
	for _, op := range g.Operations {
		if m, ok := op.(AddMember); ok {
			members = append(members, Member{ID: m.ID, Name: m.Name})
		}
	}
	return members
}

// ListTransactions returns the transactions in log order.
// For v2 groups the list is folded from AddTransaction operations.
func (g Group) ListTransactions() []Transaction {
	if g.SchemaVersion == SchemaV1 {
		txs := make([]Transaction, 0, len(g.Transactions))
		for _, tx := range g.Transactions {
			txs = append(txs, tx.Clone())
		}
		return txs
	}
	txs := make([]Transaction, 0)
	for _, op := range g.Operations {
		if t, ok := op.(AddTransaction); ok {
			txs = append(txs, t.Transaction())
		}
	}
	return txs
}

// LogLen returns the number of entries in the group's log.
func (g Group) LogLen() int {
	if g.SchemaVersion == SchemaV1 {
		return len(g.Transactions)
	}
	return len(g.Operations)
}

// Clone returns a deep copy of g sharing no slices with it.
func (g Group) Clone() Group {
	out := g
	out.Members = nil
	out.Transactions = nil
	out.Operations = nil
	switch g.SchemaVersion {
	case SchemaV1:
		out.Members = append(make([]Member, 0, len(g.Members)), g.Members...)
		out.Transactions = make([]Transaction, 0, len(g.Transactions))
		for _, tx := range g.Transactions {
			out.Transactions = append(out.Transactions, tx.Clone())
		}
	default:
		out.Operations = make([]Operation, 0, len(g.Operations))
		for _, op := range g.Operations {
			out.Operations = append(out.Operations, CloneOperation(op))
		}
	}
	return out
}

// Clone returns a copy of tx with its own movement slice.
func (tx Transaction) Clone() Transaction {
	tx.Movements = CloneMovements(tx.Movements)
	return tx
}

// Key returns the (description, timestamp) key used by merge.
func (tx Transaction) Key() Identity {
	return Identity{Description: tx.Description, Timestamp: tx.Timestamp}
}

// Equal reports whether tx and other are structurally identical.
func (tx Transaction) Equal(other Transaction) bool {
	return tx.Description == other.Description &&
		tx.Timestamp == other.Timestamp &&
		MovementsEqual(tx.Movements, other.Movements)
}

// CloneMovements returns a non-nil copy of movements.
func CloneMovements(movements []Movement) []Movement {
	return append(make([]Movement, 0, len(movements)), movements...)
}

// MovementsEqual compares two movement lists element by element.
func MovementsEqual(a, b []Movement) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// SumMovements returns the sum of all movement amounts.
func SumMovements(movements []Movement) int64 {
	var sum int64
	for _, m := range movements {
		sum += m.Amount
	}
	return sum
}

// Upgrade converts a v1 group into an equivalent v2 group: one AddMember per
// member in declaration order, then one AddTransaction per transaction.
// Identity and revision are preserved. A v2 group is returned as a copy.
func Upgrade(g Group) Group {
	if g.SchemaVersion != SchemaV1 {
		return g.Clone()
	}
	ops := make([]Operation, 0, len(g.Members)+len(g.Transactions))
	for _, m := range g.Members {
		ops = append(ops, AddMember{ID: m.ID, Name: m.Name})
	}
	for _, tx := range g.Transactions {
		ops = append(ops, NewAddTransaction(tx))
	}
	return Group{
		Header:        Header,
		SchemaVersion: SchemaV2,
		Revision:      g.Revision,
		Description:   g.Description,
		Timestamp:     g.Timestamp,
		Operations:    ops,
	}
}
