package merge

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carlo-colombo/cashsplitter/internal/ledger"
	"github.com/carlo-colombo/cashsplitter/internal/models"
)

const (
	created = int64(1672400000000)
	dinner  = int64(1672444800000)
	lunch   = int64(1672531200000)
	coffee  = int64(1672617600000)
)

func tx(description string, ts int64, movements ...models.Movement) models.Operation {
	return models.AddTransaction{Description: description, Timestamp: ts, Movements: movements}
}

func group(description string, revision int64, ops ...models.Operation) models.Group {
	return models.Group{
		Header:        models.Header,
		SchemaVersion: models.SchemaV2,
		Revision:      revision,
		Description:   description,
		Timestamp:     created,
		Operations:    append([]models.Operation{}, ops...),
	}
}

func descriptions(g models.Group) []string {
	var out []string
	for _, t := range g.ListTransactions() {
		out = append(out, t.Description)
	}
	return out
}

func requireConflicts(t *testing.T, err error) []models.Conflict {
	t.Helper()
	var mErr *models.MergeConflictError
	require.True(t, errors.As(err, &mErr), "expected MergeConflictError, got %v", err)
	return mErr.Conflicts
}

func TestMerge_ConflictFree(t *testing.T) {
	a := group("Trip expenses", 1, tx("Dinner", dinner, models.Movement{MemberID: 1, Amount: -3000}, models.Movement{MemberID: 2, Amount: 3000}))
	b := group("Trip expenses", 1,
		tx("Lunch", lunch, models.Movement{MemberID: 2, Amount: -2000}, models.Movement{MemberID: 1, Amount: 2000}),
		tx("Coffee", coffee, models.Movement{MemberID: 1, Amount: -500}, models.Movement{MemberID: 2, Amount: 500}),
	)

	merged, err := Merge(a, b)
	require.NoError(t, err)

	assert.Equal(t, int64(2), merged.Revision)
	assert.Equal(t, []string{"Dinner", "Lunch", "Coffee"}, descriptions(merged))
	assert.Equal(t, a.Identity(), merged.Identity())

	// inputs untouched
	assert.Len(t, a.Operations, 1)
	assert.Len(t, b.Operations, 2)
}

func TestMerge_DisjointHistories(t *testing.T) {
	a := group("Trip expenses", 3,
		models.AddMember{ID: 1, Name: "Alice"},
		tx("Dinner", dinner, models.Movement{MemberID: 1, Amount: -100}, models.Movement{MemberID: 1, Amount: 100}),
	)
	b := group("Trip expenses", 5,
		models.AddMember{ID: 2, Name: "Bob"},
		tx("Lunch", lunch, models.Movement{MemberID: 2, Amount: -100}, models.Movement{MemberID: 2, Amount: 100}),
	)

	merged, err := Merge(a, b)
	require.NoError(t, err)

	assert.Equal(t, int64(6), merged.Revision)
	require.Len(t, merged.Operations, len(a.Operations)+len(b.Operations))
	assert.Equal(t, append(append([]models.Operation{}, a.Operations...), b.Operations...), merged.Operations)
}

func TestMerge_Idempotent(t *testing.T) {
	g := ledger.CreateGroup("Trip expenses", created)
	g, err := ledger.AddMember(g, 1, "Alice")
	require.NoError(t, err)
	g, err = ledger.AddMember(g, 2, "Bob")
	require.NoError(t, err)
	g, err = ledger.AddExpense(g, 1, "Dinner", 3000, dinner, ledger.ExpenseSplit{Participants: []int64{1, 2}})
	require.NoError(t, err)

	merged, err := Merge(g, g)
	require.NoError(t, err)
	assert.Equal(t, g.Revision+1, merged.Revision)
	assert.Equal(t, g.Operations, merged.Operations)
}

func TestMerge_SelfWithRepeatedKey(t *testing.T) {
	// Decoded logs may repeat a (description, timestamp) key.
	g := group("Trip expenses", 3,
		tx("Lunch", lunch, models.Movement{MemberID: 1, Amount: -10}, models.Movement{MemberID: 2, Amount: 10}),
		tx("Lunch", lunch, models.Movement{MemberID: 1, Amount: -20}, models.Movement{MemberID: 2, Amount: 20}),
	)

	merged, err := Merge(g, g)
	require.NoError(t, err)
	assert.Equal(t, []string{"Lunch", "Lunch"}, descriptions(merged))

	members := group("Trip expenses", 2, models.AddMember{ID: 1, Name: "Al"}, models.AddMember{ID: 1, Name: "Ally"})
	_, err = Merge(members, members)
	require.NoError(t, err)

	t.Run("new entry under a repeated key still conflicts", func(t *testing.T) {
		other := group("Trip expenses", 3,
			tx("Lunch", lunch, models.Movement{MemberID: 1, Amount: -10}, models.Movement{MemberID: 2, Amount: 10}),
			tx("Lunch", lunch, models.Movement{MemberID: 1, Amount: -30}, models.Movement{MemberID: 2, Amount: 30}),
		)
		_, err := Merge(g, other)
		conflicts := requireConflicts(t, err)
		require.Len(t, conflicts, 1)
		assert.Equal(t, "Lunch", conflicts[0].Description)
	})
}

func TestMerge_SharedPrefixIsDeduplicated(t *testing.T) {
	base := group("Trip expenses", 2, models.AddMember{ID: 1, Name: "Alice"}, models.AddMember{ID: 2, Name: "Bob"})

	a := base
	a.Operations = append(append([]models.Operation{}, base.Operations...), tx("Dinner", dinner, models.Movement{MemberID: 1, Amount: -10}, models.Movement{MemberID: 2, Amount: 10}))
	b := base
	b.Operations = append(append([]models.Operation{}, base.Operations...), tx("Lunch", lunch, models.Movement{MemberID: 2, Amount: -10}, models.Movement{MemberID: 1, Amount: 10}))

	ab, err := Merge(a, b)
	require.NoError(t, err)
	assert.Len(t, ab.Operations, 4)
	assert.Equal(t, []string{"Dinner", "Lunch"}, descriptions(ab))

	ba, err := Merge(b, a)
	require.NoError(t, err)
	assert.ElementsMatch(t, ab.Operations, ba.Operations)
	assert.Equal(t, ab.Revision, ba.Revision)
}

func TestMerge_IdentityConflict(t *testing.T) {
	a := group("Trip expenses", 1)
	b := group("Different trip expenses", 1)

	_, err := Merge(a, b)
	conflicts := requireConflicts(t, err)
	assert.Equal(t, []models.Conflict{{
		Type:   models.ConflictGroupID,
		Field:  "description",
		Value1: "Trip expenses",
		Value2: "Different trip expenses",
	}}, conflicts)
}

func TestMerge_IdentityConflictReportsBothFields(t *testing.T) {
	a := group("Trip expenses", 1, models.AddMember{ID: 1, Name: "Alice"})
	b := group("Other", 1, models.AddMember{ID: 1, Name: "Alicia"})
	b.Timestamp = created + 1

	_, err := Merge(a, b)
	conflicts := requireConflicts(t, err)
	require.Len(t, conflicts, 2)
	assert.Equal(t, "description", conflicts[0].Field)
	assert.Equal(t, "timestamp", conflicts[1].Field)
	assert.Equal(t, created, conflicts[1].Value1)
	assert.Equal(t, created+1, conflicts[1].Value2)
}

func TestMerge_TransactionConflict(t *testing.T) {
	a := group("Trip expenses", 1, tx("Lunch", lunch, models.Movement{MemberID: 1, Amount: -2000}, models.Movement{MemberID: 2, Amount: 2000}))
	b := group("Trip expenses", 1, tx("Lunch", lunch, models.Movement{MemberID: 1, Amount: -2500}, models.Movement{MemberID: 2, Amount: 2500}))

	_, err := Merge(a, b)
	conflicts := requireConflicts(t, err)
	require.Len(t, conflicts, 1)

	c := conflicts[0]
	assert.Equal(t, models.ConflictTransaction, c.Type)
	assert.Equal(t, "Lunch", c.Description)
	assert.Equal(t, lunch, c.Timestamp)
	assert.Equal(t, []models.Movement{{MemberID: 1, Amount: -2000}, {MemberID: 2, Amount: 2000}}, c.Value1)
	assert.Equal(t, []models.Movement{{MemberID: 1, Amount: -2500}, {MemberID: 2, Amount: 2500}}, c.Value2)
}

func TestMerge_MemberConflictsComeFirst(t *testing.T) {
	a := group("Trip expenses", 1,
		models.AddMember{ID: 1, Name: "Alice"},
		tx("Lunch", lunch, models.Movement{MemberID: 1, Amount: -1}, models.Movement{MemberID: 1, Amount: 1}),
	)
	b := group("Trip expenses", 1,
		models.AddMember{ID: 1, Name: "Alicia"},
		tx("Lunch", lunch, models.Movement{MemberID: 1, Amount: -2}, models.Movement{MemberID: 1, Amount: 2}),
	)

	_, err := Merge(a, b)
	conflicts := requireConflicts(t, err)
	require.Len(t, conflicts, 2)
	assert.Equal(t, models.Conflict{Type: models.ConflictMember, ID: 1, Value1: "Alice", Value2: "Alicia"}, conflicts[0])
	assert.Equal(t, models.ConflictTransaction, conflicts[1].Type)
}

func TestMerge_LegacyAndCurrentSchemas(t *testing.T) {
	legacy, err := ledger.CreateLegacyGroup("Trip expenses", created, []models.Member{{ID: 1, Name: "Alice"}, {ID: 2, Name: "Bob"}})
	require.NoError(t, err)
	legacy, err = ledger.AddTransaction(legacy, "Dinner", []models.Movement{{MemberID: 1, Amount: -10}, {MemberID: 2, Amount: 10}}, dinner)
	require.NoError(t, err)

	t.Run("both v1", func(t *testing.T) {
		other, err := ledger.AddTransaction(legacy, "Lunch", []models.Movement{{MemberID: 2, Amount: -10}, {MemberID: 1, Amount: 10}}, lunch)
		require.NoError(t, err)

		merged, err := Merge(legacy, other)
		require.NoError(t, err)
		assert.Equal(t, models.SchemaV1, merged.SchemaVersion)
		assert.Equal(t, []string{"Dinner", "Lunch"}, descriptions(merged))
		assert.Len(t, merged.Members, 2)
		assert.Equal(t, int64(4), merged.Revision)
	})

	t.Run("v1 with v2 upgrades", func(t *testing.T) {
		current := models.Upgrade(legacy)
		current, err := ledger.AddExpense(current, 1, "Coffee", 300, coffee, ledger.ExpenseSplit{Participants: []int64{1, 2}})
		require.NoError(t, err)

		merged, err := Merge(legacy, current)
		require.NoError(t, err)
		assert.Equal(t, models.SchemaV2, merged.SchemaVersion)
		assert.Equal(t, []string{"Dinner", "Coffee"}, descriptions(merged))
		assert.Len(t, merged.ListMembers(), 2)
	})
}
