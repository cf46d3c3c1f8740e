package codec

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carlo-colombo/cashsplitter/internal/ledger"
	"github.com/carlo-colombo/cashsplitter/internal/models"
)

const created = int64(1672400000000)

func sampleGroup(t *testing.T) models.Group {
	t.Helper()
	g := ledger.CreateGroup("Trip expenses", created)
	var err error
	g, err = ledger.AddMember(g, 1, "Alice")
	require.NoError(t, err)
	g, err = ledger.AddMember(g, 2, "Zoë")
	require.NoError(t, err)
	g, err = ledger.AddExpense(g, 1, "Dinner", 3001, 1672444800000, ledger.ExpenseSplit{Participants: []int64{1, 2}})
	require.NoError(t, err)
	g, err = ledger.AddTransaction(g, "Refund", []models.Movement{{MemberID: 2, Amount: 1500}, {MemberID: 1, Amount: -1500}}, 1672531200000)
	require.NoError(t, err)
	return g
}

func legacyGroup(t *testing.T) models.Group {
	t.Helper()
	g, err := ledger.CreateLegacyGroup("Flat", created, []models.Member{{ID: 1, Name: "Alice"}, {ID: 2, Name: "Bob"}})
	require.NoError(t, err)
	g, err = ledger.AddTransaction(g, "Rent", []models.Movement{{MemberID: 1, Amount: -80000}, {MemberID: 2, Amount: 80000}}, created+1)
	require.NoError(t, err)
	return g
}

func TestEncode_Layout(t *testing.T) {
	g := ledger.CreateGroup("Trip", 5)
	g, err := ledger.AddMember(g, 1, "Al")
	require.NoError(t, err)
	g, err = ledger.AddTransaction(g, "X", []models.Movement{{MemberID: 1, Amount: -3}, {MemberID: 1, Amount: 3}}, 7)
	require.NoError(t, err)

	s, err := Encode(g)
	require.NoError(t, err)
	assert.Equal(t, "l2:csi2ei3e4:Tripi5elli1ei1e2:Aleli2e1:Xi7elli1ei-3eeli1ei3eeeeee", s)
}

func TestRoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		group func(t *testing.T) models.Group
	}{
		{name: "empty v2 group", group: func(t *testing.T) models.Group { return ledger.CreateGroup("Empty", created) }},
		{name: "v2 group with members and transactions", group: sampleGroup},
		{name: "v1 group", group: legacyGroup},
		{name: "empty v1 group", group: func(t *testing.T) models.Group {
			g, err := ledger.CreateLegacyGroup("Nobody", created, nil)
			require.NoError(t, err)
			return g
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := tt.group(t)

			s, err := Encode(g)
			require.NoError(t, err)
			decoded, err := Decode(s)
			require.NoError(t, err)
			assert.Equal(t, g, decoded)

			link, err := EncodeLink(g)
			require.NoError(t, err)
			assert.NotContains(t, link, "=")
			fromLink, err := DecodeLink(link)
			require.NoError(t, err)
			assert.Equal(t, g, fromLink)
		})
	}
}

func TestDecode_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		kind  error
	}{
		{name: "not bencode", input: "hello", kind: models.ErrDecodeFailed},
		{name: "empty input", input: "", kind: models.ErrDecodeFailed},
		{name: "not a list", input: "i42e", kind: models.ErrInvalidTopLevel},
		{name: "wrong arity", input: "l2:csi2ei1ee", kind: models.ErrInvalidTopLevel},
		{name: "wrong header", input: "l2:xxi2ei1e1:ai1elee", kind: models.ErrInvalidTopLevel},
		{name: "unknown schema version", input: "l2:csi9ei1e1:ai1elee", kind: models.ErrInvalidTopLevel},
		{name: "v2 with v1 arity", input: "l2:csi2ei1e1:ai1elelee", kind: models.ErrInvalidTopLevel},
		{name: "revision not numeric", input: "l2:cs1:21:11:ai1elee", kind: models.ErrInvalidTopLevel},
		{name: "timestamp not numeric", input: "l2:csi2ei1e1:a1:1lee", kind: models.ErrInvalidTopLevel},
		{name: "description not text", input: "l2:csi2ei1ei5ei1elee", kind: models.ErrInvalidTopLevel},
		{name: "description not utf-8", input: "l2:csi2ei1e1:\xffi1elee", kind: models.ErrInvalidTopLevel},
		{name: "operations not a list", input: "l2:csi2ei1e1:ai1ei0ee", kind: models.ErrInvalidTopLevel},
		{name: "unknown operation tag", input: "l2:csi2ei1e1:ai1elli7eeee", kind: models.ErrInvalidTopLevel},
		{name: "member with extra field", input: "l2:csi2ei1e1:ai1elli1ei1e1:ai0eeee", kind: models.ErrInvalidMember},
		{name: "member id not numeric", input: "l2:csi2ei1e1:ai1elli1e1:x1:aeee", kind: models.ErrInvalidMember},
		{name: "member name not text", input: "l2:csi2ei1e1:ai1elli1ei1ei2eeee", kind: models.ErrInvalidMember},
		{name: "transaction missing movements", input: "l2:csi2ei1e1:ai1elli2e1:xi1eeee", kind: models.ErrInvalidTransaction},
		{name: "transaction timestamp not numeric", input: "l2:csi2ei1e1:ai1elli2e1:x1:tleeee", kind: models.ErrInvalidTransaction},
		{name: "movements not a list", input: "l2:csi2ei1e1:ai1elli2e1:xi1ei0eeee", kind: models.ErrInvalidTransaction},
		{name: "movement not a pair", input: "l2:csi2ei1e1:ai1elli2e1:xi1elli1eeeeee", kind: models.ErrInvalidTransactionEntry},
		{name: "movement amount not numeric", input: "l2:csi2ei1e1:ai1elli2e1:xi1elli1e1:zeeeee", kind: models.ErrInvalidTransactionEntry},
		{name: "v1 member not a list", input: "l2:csi1ei1e1:ai1eli1eelee", kind: models.ErrInvalidMember},
		{name: "v1 transaction not a list", input: "l2:csi1ei1e1:ai1eleli1eee", kind: models.ErrInvalidTransaction},
		{name: "trailing garbage", input: "l2:csi2ei1e1:ai1elee" + "garbage", kind: models.ErrInvalidTopLevel},
		{name: "second value", input: "l2:csi2ei1e1:ai1elee" + "i0e", kind: models.ErrInvalidTopLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.input)
			require.Error(t, err)

			var dErr *models.DecodeError
			require.True(t, errors.As(err, &dErr), "expected DecodeError, got %T: %v", err, err)
			assert.True(t, errors.Is(err, tt.kind), "got %v, want kind %v", err, tt.kind)
		})
	}
}

func TestDecode_DescriptionAsBytes(t *testing.T) {
	g, err := Decode("l2:csi2ei4e5:Z\xc3\xb6\xc3\xabi9elee")
	require.NoError(t, err)
	assert.Equal(t, "Zöë", g.Description)
	assert.Equal(t, int64(4), g.Revision)
	assert.Equal(t, int64(9), g.Timestamp)
}

func TestDecodeLink_InvalidBase64(t *testing.T) {
	_, err := DecodeLink("not base64!")
	assert.True(t, errors.Is(err, models.ErrDecodeFailed))
}

func TestFingerprint(t *testing.T) {
	g := sampleGroup(t)
	a, err := Fingerprint(g)
	require.NoError(t, err)
	b, err := Fingerprint(g.Clone())
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Len(t, a, 64)

	next, err := ledger.AddMember(g, 3, "Charlie")
	require.NoError(t, err)
	c, err := Fingerprint(next)
	require.NoError(t, err)
	assert.NotEqual(t, a, c)
}

func TestEncode_UnsupportedSchema(t *testing.T) {
	_, err := Encode(models.Group{SchemaVersion: 7})
	assert.Error(t, err)
}

func TestDecode_ExactInput(t *testing.T) {
	g, err := Decode("l2:csi2ei1e1:ai1elee")
	require.NoError(t, err)
	assert.Equal(t, "a", g.Description)
	assert.Empty(t, g.Operations)
}

func TestEncode_RejectsInvalidUTF8(t *testing.T) {
	base := models.Group{
		Header:        models.Header,
		SchemaVersion: models.SchemaV2,
		Revision:      1,
		Description:   "Trip",
		Timestamp:     created,
	}

	tests := []struct {
		name  string
		group func() models.Group
	}{
		{"group description", func() models.Group {
			g := base
			g.Description = "Trip\xff"
			return g
		}},
		{"member name", func() models.Group {
			g := base
			g.Operations = []models.Operation{models.AddMember{ID: 1, Name: "A\xff"}}
			return g
		}},
		{"transaction description", func() models.Group {
			g := base
			g.Operations = []models.Operation{
				models.AddMember{ID: 1, Name: "Al"},
				models.NewAddTransaction(models.Transaction{Description: "\xfe", Timestamp: 5, Movements: []models.Movement{{MemberID: 1, Amount: 0}}}),
			}
			return g
		}},
		{"v1 member name", func() models.Group {
			g := base
			g.SchemaVersion = models.SchemaV1
			g.Members = []models.Member{{ID: 1, Name: "B\xc3"}}
			g.Transactions = []models.Transaction{}
			return g
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Encode(tt.group())
			assert.Error(t, err)
		})
	}
}
