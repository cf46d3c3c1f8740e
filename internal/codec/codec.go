// Package codec converts groups to and from the compact bencode wire format
// used in share links.
//
// Layout (schema v2):
//
//	["cs", 2, revision, description, timestamp, [operation...]]
//	AddMember:      [1, id, name]
//	AddTransaction: [2, description, timestamp, [[memberId, amount]...]]
//
// Layout (schema v1):
//
//	["cs", 1, revision, description, timestamp, [[id, name]...], [[description, timestamp, [[memberId, amount]...]]...]]
package codec

import (
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/zeebo/bencode"
	"golang.org/x/crypto/blake2b"

	"github.com/carlo-colombo/cashsplitter/internal/models"
)

const (
	v1Arity = 7
	v2Arity = 6
)

// Encode serializes g.
func Encode(g models.Group) (string, error) {
	b, err := EncodeBytes(g)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// EncodeBytes serializes g and returns the raw bytes. Text that is not
// valid UTF-8 is rejected, since Decode would refuse it.
func EncodeBytes(g models.Group) ([]byte, error) {
	if err := checkText(g); err != nil {
		return nil, err
	}

	var tuple []any
	switch g.SchemaVersion {
	case models.SchemaV1:
		members := make([]any, 0, len(g.Members))
		for _, m := range g.Members {
			members = append(members, []any{m.ID, m.Name})
		}
		txs := make([]any, 0, len(g.Transactions))
		for _, tx := range g.Transactions {
			txs = append(txs, []any{tx.Description, tx.Timestamp, encodeMovements(tx.Movements)})
		}
		tuple = []any{models.Header, int64(models.SchemaV1), g.Revision, g.Description, g.Timestamp, members, txs}
	case models.SchemaV2:
		ops := make([]any, 0, len(g.Operations))
		for _, op := range g.Operations {
			switch o := op.(type) {
			case models.AddMember:
				ops = append(ops, []any{int64(models.TagAddMember), o.ID, o.Name})
			case models.AddTransaction:
				ops = append(ops, []any{int64(models.TagAddTransaction), o.Description, o.Timestamp, encodeMovements(o.Movements)})
			default:
				return nil, fmt.Errorf("encode: unknown operation %T", op)
			}
		}
		tuple = []any{models.Header, int64(models.SchemaV2), g.Revision, g.Description, g.Timestamp, ops}
	default:
		return nil, fmt.Errorf("encode: unsupported schema version %d", g.SchemaVersion)
	}

	b, err := bencode.EncodeBytes(tuple)
	if err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}
	return b, nil
}

func checkText(g models.Group) error {
	if !utf8.ValidString(g.Description) {
		return fmt.Errorf("encode: group description is not valid UTF-8")
	}
	for _, m := range g.ListMembers() {
		if !utf8.ValidString(m.Name) {
			return fmt.Errorf("encode: member %d name is not valid UTF-8", m.ID)
		}
	}
	for _, tx := range g.ListTransactions() {
		if !utf8.ValidString(tx.Description) {
			return fmt.Errorf("encode: transaction at %d description is not valid UTF-8", tx.Timestamp)
		}
	}
	return nil
}

func encodeMovements(movements []models.Movement) []any {
	out := make([]any, 0, len(movements))
	for _, m := range movements {
		out = append(out, []any{m.MemberID, m.Amount})
	}
	return out
}

// Decode parses and validates a serialized group.
//
// Every error is a *models.DecodeError wrapping one of models.ErrInvalidTopLevel,
// models.ErrInvalidMember, models.ErrInvalidTransaction,
// models.ErrInvalidTransactionEntry or models.ErrDecodeFailed.
func Decode(s string) (g models.Group, err error) {
	defer func() {
		if r := recover(); r != nil {
			g, err = models.Group{}, &models.DecodeError{Kind: models.ErrDecodeFailed, Detail: fmt.Sprint(r)}
		}
	}()

	var raw any
	dec := bencode.NewDecoder(strings.NewReader(s))
	if err := dec.Decode(&raw); err != nil {
		return models.Group{}, &models.DecodeError{Kind: models.ErrDecodeFailed, Detail: err.Error()}
	}
	if n := dec.BytesParsed(); n != len(s) {
		return models.Group{}, invalid(models.ErrInvalidTopLevel, "%d trailing bytes after the group", len(s)-n)
	}

	g, err = decodeGroup(raw)
	if err != nil {
		var dErr *models.DecodeError
		if errors.As(err, &dErr) {
			return models.Group{}, dErr
		}
		return models.Group{}, &models.DecodeError{Kind: models.ErrDecodeFailed, Detail: err.Error()}
	}
	return g, nil
}

// DecodeBytes is Decode for a byte slice.
func DecodeBytes(b []byte) (models.Group, error) {
	return Decode(string(b))
}

func decodeGroup(raw any) (models.Group, error) {
	top, ok := raw.([]any)
	if !ok || len(top) < v2Arity {
		return models.Group{}, invalid(models.ErrInvalidTopLevel, "expected a list of %d or %d elements", v2Arity, v1Arity)
	}
	header, ok := asText(top[0])
	if !ok || header != models.Header {
		return models.Group{}, invalid(models.ErrInvalidTopLevel, "bad header")
	}
	version, ok := asInt(top[1])
	if !ok {
		return models.Group{}, invalid(models.ErrInvalidTopLevel, "schema version is not a number")
	}
	switch {
	case version == models.SchemaV2 && len(top) == v2Arity:
	case version == models.SchemaV1 && len(top) == v1Arity:
	default:
		return models.Group{}, invalid(models.ErrInvalidTopLevel, "unsupported schema version %d with %d elements", version, len(top))
	}
	revision, ok := asInt(top[2])
	if !ok {
		return models.Group{}, invalid(models.ErrInvalidTopLevel, "revision is not a number")
	}
	description, ok := asText(top[3])
	if !ok {
		return models.Group{}, invalid(models.ErrInvalidTopLevel, "description is not text")
	}
	timestamp, ok := asInt(top[4])
	if !ok {
		return models.Group{}, invalid(models.ErrInvalidTopLevel, "timestamp is not a number")
	}

	g := models.Group{
		Header:        models.Header,
		SchemaVersion: int(version),
		Revision:      revision,
		Description:   description,
		Timestamp:     timestamp,
	}

	if version == models.SchemaV1 {
		members, err := decodeMembers(top[5])
		if err != nil {
			return models.Group{}, err
		}
		txs, err := decodeTransactions(top[6])
		if err != nil {
			return models.Group{}, err
		}
		g.Members = members
		g.Transactions = txs
		return g, nil
	}

	ops, err := decodeOperations(top[5])
	if err != nil {
		return models.Group{}, err
	}
	g.Operations = ops
	return g, nil
}

func decodeOperations(raw any) ([]models.Operation, error) {
	list, ok := raw.([]any)
	if !ok {
		return nil, invalid(models.ErrInvalidTopLevel, "operations is not a list")
	}
	ops := make([]models.Operation, 0, len(list))
	for i, item := range list {
		entry, ok := item.([]any)
		if !ok || len(entry) == 0 {
			return nil, invalid(models.ErrInvalidTopLevel, "operation %d is not a tagged list", i)
		}
		tag, ok := asInt(entry[0])
		if !ok {
			return nil, invalid(models.ErrInvalidTopLevel, "operation %d has no numeric tag", i)
		}
		switch models.OpTag(tag) {
		case models.TagAddMember:
			m, err := decodeMember(entry[1:], i)
			if err != nil {
				return nil, err
			}
			ops = append(ops, models.AddMember{ID: m.ID, Name: m.Name})
		case models.TagAddTransaction:
			tx, err := decodeTransaction(entry[1:], i)
			if err != nil {
				return nil, err
			}
			ops = append(ops, models.NewAddTransaction(tx))
		default:
			return nil, invalid(models.ErrInvalidTopLevel, "operation %d has unknown tag %d", i, tag)
		}
	}
	return ops, nil
}

func decodeMembers(raw any) ([]models.Member, error) {
	list, ok := raw.([]any)
	if !ok {
		return nil, invalid(models.ErrInvalidTopLevel, "members is not a list")
	}
	members := make([]models.Member, 0, len(list))
	for i, item := range list {
		entry, ok := item.([]any)
		if !ok {
			return nil, invalid(models.ErrInvalidMember, "member %d is not a list", i)
		}
		m, err := decodeMember(entry, i)
		if err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	return members, nil
}

func decodeTransactions(raw any) ([]models.Transaction, error) {
	list, ok := raw.([]any)
	if !ok {
		return nil, invalid(models.ErrInvalidTopLevel, "transactions is not a list")
	}
	txs := make([]models.Transaction, 0, len(list))
	for i, item := range list {
		entry, ok := item.([]any)
		if !ok {
			return nil, invalid(models.ErrInvalidTransaction, "transaction %d is not a list", i)
		}
		tx, err := decodeTransaction(entry, i)
		if err != nil {
			return nil, err
		}
		txs = append(txs, tx)
	}
	return txs, nil
}

// decodeMember parses [id, name].
func decodeMember(fields []any, i int) (models.Member, error) {
	if len(fields) != 2 {
		return models.Member{}, invalid(models.ErrInvalidMember, "entry %d has %d fields", i, len(fields))
	}
	id, ok := asInt(fields[0])
	if !ok {
		return models.Member{}, invalid(models.ErrInvalidMember, "entry %d id is not a number", i)
	}
	name, ok := asText(fields[1])
	if !ok {
		return models.Member{}, invalid(models.ErrInvalidMember, "entry %d name is not text", i)
	}
	return models.Member{ID: id, Name: name}, nil
}

// decodeTransaction parses [description, timestamp, [[memberId, amount]...]].
func decodeTransaction(fields []any, i int) (models.Transaction, error) {
	if len(fields) != 3 {
		return models.Transaction{}, invalid(models.ErrInvalidTransaction, "entry %d has %d fields", i, len(fields))
	}
	description, ok := asText(fields[0])
	if !ok {
		return models.Transaction{}, invalid(models.ErrInvalidTransaction, "entry %d description is not text", i)
	}
	timestamp, ok := asInt(fields[1])
	if !ok {
		return models.Transaction{}, invalid(models.ErrInvalidTransaction, "entry %d timestamp is not a number", i)
	}
	list, ok := fields[2].([]any)
	if !ok {
		return models.Transaction{}, invalid(models.ErrInvalidTransaction, "entry %d movements is not a list", i)
	}

	movements := make([]models.Movement, 0, len(list))
	for j, item := range list {
		pair, ok := item.([]any)
		if !ok || len(pair) != 2 {
			return models.Transaction{}, invalid(models.ErrInvalidTransactionEntry, "entry %d movement %d is not a pair", i, j)
		}
		memberID, ok1 := asInt(pair[0])
		amount, ok2 := asInt(pair[1])
		if !ok1 || !ok2 {
			return models.Transaction{}, invalid(models.ErrInvalidTransactionEntry, "entry %d movement %d is not numeric", i, j)
		}
		movements = append(movements, models.Movement{MemberID: memberID, Amount: amount})
	}

	return models.Transaction{Description: description, Timestamp: timestamp, Movements: movements}, nil
}

func invalid(kind error, format string, args ...any) *models.DecodeError {
	return &models.DecodeError{Kind: kind, Detail: fmt.Sprintf(format, args...)}
}

func asInt(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case uint64:
		return int64(n), n <= 1<<63-1
	default:
		return 0, false
	}
}

// asText accepts byte strings and requires them to be valid UTF-8.
func asText(v any) (string, bool) {
	switch s := v.(type) {
	case string:
		return s, utf8.ValidString(s)
	case []byte:
		return string(s), utf8.Valid(s)
	default:
		return "", false
	}
}

// EncodeLink returns the base64url form of the encoded group, suitable for
// embedding in a URL.
func EncodeLink(g models.Group) (string, error) {
	b, err := EncodeBytes(g)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// DecodeLink reverses EncodeLink.
func DecodeLink(link string) (models.Group, error) {
	b, err := base64.RawURLEncoding.DecodeString(link)
	if err != nil {
		return models.Group{}, &models.DecodeError{Kind: models.ErrDecodeFailed, Detail: "invalid base64url payload"}
	}
	return DecodeBytes(b)
}

// Fingerprint returns the hex BLAKE2b-256 digest of the encoded group.
// Equal groups always have equal fingerprints.
func Fingerprint(g models.Group) (string, error) {
	b, err := EncodeBytes(g)
	if err != nil {
		return "", err
	}
	sum := blake2b.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}
